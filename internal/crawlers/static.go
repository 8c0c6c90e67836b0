package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/RecoveryAshes/CourseCrawl/internal/utils"
	"github.com/andybalholm/brotli"
	"github.com/gocolly/colly/v2"
)

// StaticRenderer 基于Colly的静态渲染器
// 不执行JavaScript,所有链接视为可见,不支持宣传册交互
type StaticRenderer struct {
	collector      *colly.Collector
	headerProvider models.HeaderProvider
	timeout        time.Duration
}

// NewStaticRenderer 创建静态渲染器
func NewStaticRenderer(timeout time.Duration, headerProvider models.HeaderProvider) *StaticRenderer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// 跳过证书验证,允许访问自签名或过期证书的站点
	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		},
		Timeout: timeout,
	}

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
	)
	c.SetClient(httpClient)
	c.SetRequestTimeout(timeout)
	c.WithTransport(httpClient.Transport)
	utils.Debugf("静态渲染器: HTTP超时 %d 秒, TLS证书验证已禁用", int(timeout.Seconds()))

	return &StaticRenderer{
		collector:      c,
		headerProvider: headerProvider,
		timeout:        timeout,
	}
}

// Render 抓取页面并解析链接
func (sr *StaticRenderer) Render(ctx context.Context, pageURL string) (*RenderedPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := sr.collector.Clone()

	var (
		body     []byte
		finalURL = pageURL
		visitErr error
	)

	c.OnRequest(func(r *colly.Request) {
		if sr.headerProvider != nil {
			headers, err := sr.headerProvider.GetHeaders()
			if err != nil {
				utils.Warnf("获取HTTP头部失败: %v", err)
			} else {
				for name, values := range headers {
					if len(values) > 0 {
						r.Headers.Set(name, values[0])
					}
				}
			}
		}
		utils.Debugf("访问: %s", r.URL.String())
	})

	c.OnResponse(func(r *colly.Response) {
		finalURL = r.Request.URL.String()
		decompressed, err := decompressResponse(r.Headers.Get("Content-Encoding"), r.Body)
		if err != nil {
			utils.Warnf("解压响应失败 [%s]: %v", finalURL, err)
			decompressed = r.Body
		}
		body = decompressed
	})

	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			visitErr = fmt.Errorf("HTTP %d: %w", r.StatusCode, err)
			return
		}
		visitErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- c.Visit(pageURL)
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case err := <-done:
		if visitErr == nil {
			visitErr = err
		}
	}
	if visitErr != nil {
		return nil, &models.NavigationError{URL: pageURL, Cause: visitErr}
	}

	html := string(body)
	anchors, err := ParseAnchors(html)
	if err != nil {
		return nil, &models.NavigationError{URL: pageURL, Cause: err}
	}
	return &RenderedPage{URL: finalURL, HTML: html, Anchors: anchors}, nil
}

// Close 静态渲染器无需释放资源
func (sr *StaticRenderer) Close() error {
	return nil
}

// decompressResponse 根据Content-Encoding头部解压响应体
// 支持 gzip, deflate, br (Brotli);Colly可能已自动解压gzip,因此仅在存在gzip魔数时解压
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	encoding := strings.ToLower(strings.TrimSpace(contentEncoding))

	switch encoding {
	case "gzip":
		if len(body) < 2 || body[0] != 0x1f || body[1] != 0x8b {
			return body, nil
		}
		reader, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("gzip解压失败: %w", err)
		}
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("gzip读取失败: %w", err)
		}
		return decompressed, nil

	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}
