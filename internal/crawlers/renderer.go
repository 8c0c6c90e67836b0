package crawlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// paginationSelector 数字分页链接选择器
const paginationSelector = "a.page-link, a.pagination, nav a"

// Anchor 页面上的可点击元素
type Anchor struct {
	Href    string // 原始href属性,未解析
	Text    string // 可见文本
	Visible bool   // 是否可见
	Pager   bool   // 是否位于分页导航中
}

// RenderedPage 渲染后的页面快照
type RenderedPage struct {
	URL     string // 最终URL(跟随重定向后)
	HTML    string
	Anchors []Anchor
}

// Renderer 页面渲染能力
type Renderer interface {
	// Render 导航到URL并等待页面稳定,失败时返回 *models.NavigationError
	Render(ctx context.Context, pageURL string) (*RenderedPage, error)
	Close() error
}

// InteractiveRenderer 支持在最近渲染的页面上交互的渲染器
type InteractiveRenderer interface {
	Renderer
	// BrochureTarget 按关键字顺序查找第一个可见的宣传册触发元素
	BrochureTarget(ctx context.Context, keywords []string) (BrochureSession, bool, error)
}

// ParseAnchors 从HTML中解析链接与按钮
// 静态HTML无法判断可见性,所有元素视为可见
func ParseAnchors(html string) ([]Anchor, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("解析HTML失败: %w", err)
	}

	anchors := make([]Anchor, 0)
	doc.Find("a, button").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		anchors = append(anchors, Anchor{
			Href:    strings.TrimSpace(href),
			Text:    strings.Join(strings.Fields(s.Text()), " "),
			Visible: true,
			Pager:   s.Is(paginationSelector),
		})
	})
	return anchors, nil
}
