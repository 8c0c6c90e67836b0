package crawlers

import (
	"net/url"
)

// CrawlFrontier 目录页队列管理器
// 职责: 维护待访问目录页的FIFO队列与已访问集合,受页面预算约束
// 每个站点的发现阶段独占一个实例,结束后丢弃
type CrawlFrontier struct {
	// 待访问目录页(FIFO)
	pending []string

	// 已在队列中的URL
	queued map[string]bool

	// 已访问URL标记集合
	visited map[string]bool

	// 访问顺序
	order []string

	// 页面预算
	maxPages int
}

// NewCrawlFrontier 创建队列实例
func NewCrawlFrontier(maxPages int) *CrawlFrontier {
	return &CrawlFrontier{
		pending:  make([]string, 0),
		queued:   make(map[string]bool),
		visited:  make(map[string]bool),
		order:    make([]string, 0),
		maxPages: maxPages,
	}
}

// Push 添加目录页到队列
// 已访问或已在队列中的URL返回false
func (f *CrawlFrontier) Push(pageURL string) bool {
	key := FrontierKey(pageURL)
	if key == "" || f.visited[key] || f.queued[key] {
		return false
	}
	f.queued[key] = true
	f.pending = append(f.pending, pageURL)
	return true
}

// Pop 取出下一个待访问URL
func (f *CrawlFrontier) Pop() (string, bool) {
	if len(f.pending) == 0 {
		return "", false
	}
	next := f.pending[0]
	f.pending = f.pending[1:]
	delete(f.queued, FrontierKey(next))
	return next, true
}

// MarkVisited 标记URL为已访问,计入页面预算
func (f *CrawlFrontier) MarkVisited(pageURL string) {
	key := FrontierKey(pageURL)
	if f.visited[key] {
		return
	}
	f.visited[key] = true
	f.order = append(f.order, pageURL)
}

// IsVisited 检查URL是否已访问
func (f *CrawlFrontier) IsVisited(pageURL string) bool {
	return f.visited[FrontierKey(pageURL)]
}

// VisitedCount 已访问页数
func (f *CrawlFrontier) VisitedCount() int {
	return len(f.order)
}

// Visited 按访问顺序返回已访问URL
func (f *CrawlFrontier) Visited() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

// Exhausted 页面预算是否已用完
func (f *CrawlFrontier) Exhausted() bool {
	return len(f.order) >= f.maxPages
}

// PendingCount 返回当前待处理URL数量
func (f *CrawlFrontier) PendingCount() int {
	return len(f.pending)
}

// FrontierKey 目录页标识: 去除片段后的绝对URL
func FrontierKey(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String()
}

// URLSet 按插入顺序保存的去重URL集合
type URLSet struct {
	seen  map[string]bool
	items []string
}

// NewURLSet 创建URL集合
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]bool)}
}

// Add 添加URL,已存在时返回false
func (s *URLSet) Add(u string) bool {
	if u == "" || s.seen[u] {
		return false
	}
	s.seen[u] = true
	s.items = append(s.items, u)
	return true
}

// Len 集合大小
func (s *URLSet) Len() int {
	return len(s.items)
}

// Items 按插入顺序返回URL
func (s *URLSet) Items() []string {
	out := make([]string, len(s.items))
	copy(out, s.items)
	return out
}
