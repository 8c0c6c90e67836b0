package crawlers

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/andybalholm/brotli"
)

const catalogHTML = `<html><body>
<a href="/curso/python">Python</a>
<a href="/curso/sql">SQL</a>
<nav><a href="/cursos?page=2">2</a></nav>
</body></html>`

// staticHeaders 固定头部提供者
type staticHeaders http.Header

func (h staticHeaders) GetHeaders() (http.Header, error) {
	return http.Header(h), nil
}

func brotliBytes(t *testing.T, data string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write([]byte(data)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestStaticRenderer_Render(t *testing.T) {
	var gotUA atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/cursos", func(w http.ResponseWriter, r *http.Request) {
		gotUA.Store(r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(catalogHTML))
	})
	mux.HandleFunc("/br", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "br")
		w.Write(brotliBytes(t, catalogHTML))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	headers := staticHeaders{"User-Agent": []string{"CourseCrawl-Test/1.0"}}
	renderer := NewStaticRenderer(5*time.Second, headers)
	defer renderer.Close()

	t.Run("解析链接与分页", func(t *testing.T) {
		page, err := renderer.Render(context.Background(), server.URL+"/cursos")
		if err != nil {
			t.Fatalf("渲染失败: %v", err)
		}
		if len(page.Anchors) != 3 {
			t.Fatalf("链接数量不匹配: got %d, want 3", len(page.Anchors))
		}
		if !page.Anchors[2].Pager {
			t.Error("nav中的链接应标记为分页")
		}
		if ua, _ := gotUA.Load().(string); ua != "CourseCrawl-Test/1.0" {
			t.Errorf("User-Agent未应用: got %q", ua)
		}

		links := CollectDetailLinks(page, NewLinkRules(nil, nil))
		if len(links) != 2 || links[0] != server.URL+"/curso/python" {
			t.Errorf("详情页链接不匹配: %v", links)
		}
	})

	t.Run("brotli压缩响应", func(t *testing.T) {
		page, err := renderer.Render(context.Background(), server.URL+"/br")
		if err != nil {
			t.Fatalf("渲染失败: %v", err)
		}
		if len(page.Anchors) != 3 {
			t.Errorf("解压后链接数量不匹配: got %d, want 3", len(page.Anchors))
		}
	})

	t.Run("404返回导航错误", func(t *testing.T) {
		_, err := renderer.Render(context.Background(), server.URL+"/missing")
		var navErr *models.NavigationError
		if !errors.As(err, &navErr) {
			t.Fatalf("期望NavigationError, got %v", err)
		}
	})

	t.Run("已取消的上下文", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := renderer.Render(ctx, server.URL+"/cursos"); !errors.Is(err, context.Canceled) {
			t.Errorf("期望context.Canceled, got %v", err)
		}
	})
}

func TestDecompressResponse(t *testing.T) {
	const body = "<html>hola</html>"

	var gz bytes.Buffer
	gw := gzip.NewWriter(&gz)
	gw.Write([]byte(body))
	gw.Close()

	var fl bytes.Buffer
	fw, _ := flate.NewWriter(&fl, flate.DefaultCompression)
	fw.Write([]byte(body))
	fw.Close()

	tests := []struct {
		name     string
		encoding string
		input    []byte
	}{
		{"gzip", "gzip", gz.Bytes()},
		{"gzip已被解压", "gzip", []byte(body)},
		{"deflate", "deflate", fl.Bytes()},
		{"brotli", "br", brotliBytes(t, body)},
		{"无压缩", "", []byte(body)},
		{"未知编码原样返回", "zstd", []byte(body)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decompressResponse(tt.encoding, tt.input)
			if err != nil {
				t.Fatalf("解压失败: %v", err)
			}
			if string(got) != body {
				t.Errorf("内容不匹配: got %q, want %q", got, body)
			}
		})
	}
}
