package crawlers

import (
	"context"
	"fmt"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/RecoveryAshes/CourseCrawl/internal/utils"
)

// CatalogCrawler 目录发现爬取器
// 从入口目录页开始按FIFO顺序跟随翻页,收集详情页URL
type CatalogCrawler struct {
	renderer     Renderer
	rules        LinkRules
	nextKeywords []string
}

// DiscoveryResult 发现阶段结果
type DiscoveryResult struct {
	URLs    []string // 详情页URL,按发现顺序去重
	Visited []string // 已访问目录页
	Failed  []string // 导航失败的目录页
}

// NewCatalogCrawler 创建目录发现爬取器
func NewCatalogCrawler(renderer Renderer, rules LinkRules, nextKeywords []string) *CatalogCrawler {
	if len(nextKeywords) == 0 {
		nextKeywords = models.DefaultNextKeywords
	}
	return &CatalogCrawler{
		renderer:     renderer,
		rules:        rules,
		nextKeywords: nextKeywords,
	}
}

// Discover 执行发现
// 终止条件: 页面预算用尽、队列为空或找不到下一页
// 导航失败的目录页计入预算并跳过
func (c *CatalogCrawler) Discover(ctx context.Context, entryURL string, pageBudget int) (*DiscoveryResult, error) {
	if err := models.ValidateURL(entryURL); err != nil {
		return nil, &models.ConfigError{Field: "catalog_url", Reason: "入口URL无效", Cause: err}
	}

	result := &DiscoveryResult{}
	if pageBudget < 1 {
		return result, nil
	}

	frontier := NewCrawlFrontier(pageBudget)
	discovered := NewURLSet()
	frontier.Push(entryURL)

	for !frontier.Exhausted() {
		if err := ctx.Err(); err != nil {
			result.URLs = discovered.Items()
			result.Visited = frontier.Visited()
			return result, err
		}

		pageURL, ok := frontier.Pop()
		if !ok {
			break
		}
		if frontier.IsVisited(pageURL) {
			continue
		}
		frontier.MarkVisited(pageURL)

		utils.Infof("📄 目录页 [%d/%d]: %s", frontier.VisitedCount(), pageBudget, pageURL)

		page, err := c.renderer.Render(ctx, pageURL)
		if err != nil {
			utils.Warnf("⚠️  目录页加载失败,跳过: %v", err)
			result.Failed = append(result.Failed, pageURL)
			continue
		}

		added := 0
		for _, link := range CollectDetailLinks(page, c.rules) {
			if discovered.Add(link) {
				added++
			}
		}
		utils.Infof("🔗 新增详情页 %d 个 (累计 %d)", added, discovered.Len())

		next, found := FindNextPage(page, c.nextKeywords)
		if !found {
			utils.Debugf("未找到下一页: %s", pageURL)
			continue
		}
		if frontier.IsVisited(next) {
			utils.Debugf("下一页已访问,跳过: %s", next)
			continue
		}
		if frontier.Push(next) {
			utils.Debugf("➡️  下一页入队: %s", next)
		}
	}

	result.URLs = discovered.Items()
	result.Visited = frontier.Visited()

	if frontier.Exhausted() && frontier.PendingCount() > 0 {
		utils.Infof("⏹️  页面预算已用尽, 剩余 %d 个目录页未访问", frontier.PendingCount())
	}
	utils.Infof("✅ 目录发现完成: 访问 %d 页, 发现 %d 个详情页", len(result.Visited), len(result.URLs))
	if len(result.Failed) > 0 {
		utils.Warnf("目录页失败 %d 个", len(result.Failed))
	}
	return result, nil
}

// String 便于日志输出
func (r *DiscoveryResult) String() string {
	return fmt.Sprintf("visited=%d urls=%d failed=%d", len(r.Visited), len(r.URLs), len(r.Failed))
}
