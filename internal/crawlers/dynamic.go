package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/RecoveryAshes/CourseCrawl/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// collectAnchorsJS 收集页面上的链接与按钮及其可见性
const collectAnchorsJS = `() => {
	const pager = "a.page-link, a.pagination, nav a";
	const out = [];
	document.querySelectorAll("a, button").forEach(el => {
		const r = el.getBoundingClientRect();
		const st = window.getComputedStyle(el);
		out.push({
			href: el.getAttribute("href") || "",
			text: (el.innerText || el.textContent || "").trim(),
			visible: r.width > 0 && r.height > 0 && st.visibility !== "hidden" && st.display !== "none",
			pager: el.matches(pager),
		});
	});
	return out;
}`

// scrollJS 滚动到底部触发懒加载
const scrollJS = `() => window.scrollTo(0, document.body ? document.body.scrollHeight : 0)`

// DynamicConfig 动态渲染器配置
type DynamicConfig struct {
	Headless      bool
	PageTimeout   time.Duration
	SettleTimeout time.Duration
	ScrollPasses  int
	ScrollPause   time.Duration
	RecycleEvery  int // 每渲染N页重建标签页,0表示不重建
}

// NewDynamicConfig 根据爬取配置与站点是否缓慢生成渲染器配置
func NewDynamicConfig(cfg models.CrawlConfig, slow bool) DynamicConfig {
	page, settle := cfg.Timeouts(slow)
	return DynamicConfig{
		Headless:      cfg.Headless,
		PageTimeout:   page,
		SettleTimeout: settle,
		ScrollPasses:  cfg.ScrollPasses,
		ScrollPause:   time.Duration(cfg.ScrollPause) * time.Millisecond,
		RecycleEvery:  cfg.RecycleEvery,
	}
}

// DynamicRenderer 基于Rod的浏览器渲染器
// 单浏览器单标签页,页面按顺序渲染
type DynamicRenderer struct {
	config         DynamicConfig
	headerProvider models.HeaderProvider
	monitor        *ResourceMonitor

	browser *rod.Browser
	page    *rod.Page
	mu      sync.Mutex

	rendered int // 当前标签页已渲染页数

	// 浏览器会话管理
	browserRetryCount int
	maxBrowserRetries int
}

// NewDynamicRenderer 创建渲染器,浏览器在首次渲染时启动
func NewDynamicRenderer(config DynamicConfig, headerProvider models.HeaderProvider, monitor *ResourceMonitor) *DynamicRenderer {
	return &DynamicRenderer{
		config:            config,
		headerProvider:    headerProvider,
		monitor:           monitor,
		maxBrowserRetries: 3,
	}
}

// Render 导航并等待页面稳定
// 浏览器崩溃时自动重启,最多重试3次
func (dr *DynamicRenderer) Render(ctx context.Context, pageURL string) (*RenderedPage, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= dr.maxBrowserRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dr.maybeRecycle()
		if err := dr.ensurePage(); err != nil {
			lastErr = err
			utils.Warnf("浏览器启动失败,准备重启(重试%d/%d): %v", attempt+1, dr.maxBrowserRetries, err)
			dr.closeBrowser()
			continue
		}

		page, err := dr.renderOnce(ctx, pageURL)
		if errors.Is(err, models.ErrBrowserCrashed) {
			lastErr = err
			dr.browserRetryCount++
			utils.Warnf("浏览器崩溃,准备重启(重试%d/%d)", attempt+1, dr.maxBrowserRetries)
			dr.closeBrowser()
			continue
		}
		if err != nil {
			return nil, err
		}
		dr.rendered++
		return page, nil
	}
	return nil, &models.NavigationError{
		URL:   pageURL,
		Cause: fmt.Errorf("%w: %v", models.ErrMaxRetriesReached, lastErr),
	}
}

// renderOnce 在当前标签页上渲染一次
func (dr *DynamicRenderer) renderOnce(ctx context.Context, pageURL string) (result *RenderedPage, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("浏览器操作panic: URL=%s, 错误=%v", pageURL, r)
			result, err = nil, models.ErrBrowserCrashed
		}
	}()

	if err := dr.applyHeaders(); err != nil {
		utils.Warnf("应用HTTP头部失败: %v", err)
	}

	page := dr.page.Context(ctx).Timeout(dr.config.PageTimeout)

	if err := page.Navigate(pageURL); err != nil {
		return nil, &models.NavigationError{URL: pageURL, Cause: err}
	}
	if err := page.WaitLoad(); err != nil {
		return nil, &models.NavigationError{URL: pageURL, Cause: fmt.Errorf("等待页面加载失败: %w", err)}
	}

	if dr.config.SettleTimeout > 0 {
		if err := dr.page.Context(ctx).WaitIdle(dr.config.SettleTimeout); err != nil {
			utils.Debugf("等待页面稳定超时,继续处理: %s", pageURL)
		}
	}

	dr.scroll(ctx)

	html, err := page.HTML()
	if err != nil {
		return nil, &models.NavigationError{URL: pageURL, Cause: fmt.Errorf("读取页面HTML失败: %w", err)}
	}

	finalURL := pageURL
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	anchors, err := dr.collectAnchors(page)
	if err != nil {
		utils.Debugf("JS收集链接失败,改用HTML解析: %v", err)
		anchors, err = ParseAnchors(html)
		if err != nil {
			return nil, &models.NavigationError{URL: pageURL, Cause: err}
		}
	}

	utils.Debugf("页面加载完成: %s (链接 %d 个)", finalURL, len(anchors))
	return &RenderedPage{URL: finalURL, HTML: html, Anchors: anchors}, nil
}

// scroll 多次滚动到底部,间隔等待懒加载内容
func (dr *DynamicRenderer) scroll(ctx context.Context) {
	for i := 0; i < dr.config.ScrollPasses; i++ {
		if _, err := dr.page.Context(ctx).Evaluate(rod.Eval(scrollJS)); err != nil {
			utils.Debugf("页面滚动失败: %v", err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(dr.config.ScrollPause):
		}
	}
}

func (dr *DynamicRenderer) collectAnchors(page *rod.Page) ([]Anchor, error) {
	res, err := page.Evaluate(rod.Eval(collectAnchorsJS))
	if err != nil {
		return nil, err
	}
	items := res.Value.Arr()
	anchors := make([]Anchor, 0, len(items))
	for _, item := range items {
		anchors = append(anchors, Anchor{
			Href:    item.Get("href").Str(),
			Text:    item.Get("text").Str(),
			Visible: item.Get("visible").Bool(),
			Pager:   item.Get("pager").Bool(),
		})
	}
	return anchors, nil
}

// applyHeaders 应用自定义头部与User-Agent
func (dr *DynamicRenderer) applyHeaders() error {
	if dr.headerProvider == nil {
		return nil
	}
	headers, err := dr.headerProvider.GetHeaders()
	if err != nil {
		return err
	}

	pairs := make([]string, 0, len(headers)*2)
	for name, values := range headers {
		if len(values) == 0 {
			continue
		}
		if name == "User-Agent" {
			if err := dr.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: values[0]}); err != nil {
				return fmt.Errorf("设置User-Agent失败: %w", err)
			}
			continue
		}
		pairs = append(pairs, name, values[0])
	}
	if len(pairs) == 0 {
		return nil
	}
	if _, err := dr.page.SetExtraHeaders(pairs); err != nil {
		return fmt.Errorf("设置额外头部失败: %w", err)
	}
	return nil
}

// maybeRecycle 按计数或内存压力回收标签页
// 在下一次渲染前执行,保证最近渲染的页面仍可用于交互
func (dr *DynamicRenderer) maybeRecycle() {
	if dr.page == nil {
		return
	}
	recycle := dr.config.RecycleEvery > 0 && dr.rendered >= dr.config.RecycleEvery
	reason := fmt.Sprintf("已渲染 %d 页", dr.rendered)
	if !recycle && dr.monitor != nil {
		recycle, reason = dr.monitor.ShouldRecycle()
	}
	if recycle {
		utils.Debugf("♻️  回收标签页: %s", reason)
		dr.closePage()
	}
}

// ensurePage 确保浏览器与标签页可用
func (dr *DynamicRenderer) ensurePage() error {
	if dr.browser == nil {
		if err := dr.launchBrowser(); err != nil {
			return err
		}
	}
	if dr.page == nil {
		page, err := dr.browser.Page(proto.TargetCreateTarget{})
		if err != nil {
			return fmt.Errorf("创建标签页失败: %w", err)
		}
		dr.page = page
		dr.rendered = 0
	}
	return nil
}

// launchBrowser 启动浏览器
func (dr *DynamicRenderer) launchBrowser() error {
	l := launcher.New().Headless(dr.config.Headless)

	// 允许访问自签名或过期证书的站点
	l = l.Set("ignore-certificate-errors")
	utils.Debugf("浏览器启动参数: --ignore-certificate-errors")

	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("启动浏览器失败: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("连接浏览器失败: %w", err)
	}
	dr.browser = browser

	utils.Debugf("浏览器已启动: %s", controlURL)
	return nil
}

func (dr *DynamicRenderer) closePage() {
	if dr.page != nil {
		if err := dr.page.Close(); err != nil {
			utils.Debugf("关闭标签页失败: %v", err)
		}
		dr.page = nil
	}
	dr.rendered = 0
}

// closeBrowser 关闭浏览器
func (dr *DynamicRenderer) closeBrowser() {
	dr.page = nil
	dr.rendered = 0
	if dr.browser != nil {
		if err := dr.browser.Close(); err != nil {
			utils.Debugf("关闭浏览器失败: %v", err)
		}
		dr.browser = nil
		utils.Debugf("浏览器已关闭")
	}
}

// Close 释放浏览器
func (dr *DynamicRenderer) Close() error {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.closeBrowser()
	return nil
}

// Restarts 浏览器崩溃重启次数
func (dr *DynamicRenderer) Restarts() int {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.browserRetryCount
}

// BrochureTarget 在最近渲染的页面上查找宣传册触发元素
func (dr *DynamicRenderer) BrochureTarget(ctx context.Context, keywords []string) (BrochureSession, bool, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	if dr.page == nil {
		return nil, false, nil
	}
	page := dr.page.Context(ctx).Timeout(dr.config.PageTimeout)

	res, err := page.Evaluate(rod.Eval(markBrochureTriggerJS, keywords))
	if err != nil {
		return nil, false, fmt.Errorf("查找宣传册触发元素失败: %w", err)
	}
	if !res.Value.Bool() {
		return nil, false, nil
	}

	trigger, err := page.Element(brochureTriggerSelector)
	if err != nil {
		return nil, false, fmt.Errorf("定位宣传册触发元素失败: %w", err)
	}
	return &rodBrochureSession{browser: dr.browser, page: dr.page, trigger: trigger}, true, nil
}
