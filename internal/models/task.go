package models

import (
	"fmt"
	"time"
)

// RunStatus 站点运行状态
type RunStatus string

const (
	RunStatusCompleted RunStatus = "completed" // 已完成
	RunStatusFailed    RunStatus = "failed"    // 失败
	RunStatusSkipped   RunStatus = "skipped"   // 已跳过(检查点)
	RunStatusCancelled RunStatus = "cancelled" // 已取消
)

// CrawlMode 渲染模式
type CrawlMode string

const (
	ModeStatic  CrawlMode = "static"  // Colly静态抓取
	ModeDynamic CrawlMode = "dynamic" // Rod浏览器渲染
)

// DefaultNextKeywords 翻页关键字,按优先级排列
var DefaultNextKeywords = []string{"siguiente", "next", "›", "→", ">"}

// SiteStats 站点运行统计
type SiteStats struct {
	CatalogPages       int     `json:"catalog_pages"`        // 已访问目录页数
	CatalogFailures    int     `json:"catalog_failures"`     // 目录页失败数
	DiscoveredURLs     int     `json:"discovered_urls"`      // 发现的详情页数
	ProcessedURLs      int     `json:"processed_urls"`       // 已处理详情页数
	FailedURLs         int     `json:"failed_urls"`          // 导航失败的详情页数
	ExtractionFailures int     `json:"extraction_failures"`  // 提取失败次数
	Brochures          int     `json:"brochures"`            // 获取的宣传册数
	BrochuresReused    int     `json:"brochures_reused"`     // 复用已有文件的宣传册数
	Records            int     `json:"records"`              // 输出记录数
	Duration           float64 `json:"duration"`             // 耗时(秒)
}

// CrawlConfig 爬取配置
type CrawlConfig struct {
	Mode              string   `mapstructure:"mode" yaml:"mode" json:"mode"`                                  // dynamic|static (默认:dynamic)
	Headless          bool     `mapstructure:"headless" yaml:"headless" json:"headless"`                      // 无头模式 (默认:true)
	PageBudget        int      `mapstructure:"page_budget" yaml:"page_budget" json:"page_budget"`             // 每站目录页预算 (默认:30)
	PageTimeout       int      `mapstructure:"page_timeout" yaml:"page_timeout" json:"page_timeout"`          // 导航超时(秒) (默认:90)
	SettleTimeout     int      `mapstructure:"settle_timeout" yaml:"settle_timeout" json:"settle_timeout"`    // 等待稳定超时(秒) (默认:60)
	SlowPageTimeout   int      `mapstructure:"slow_page_timeout" yaml:"slow_page_timeout" json:"slow_page_timeout"`
	SlowSettleTimeout int      `mapstructure:"slow_settle_timeout" yaml:"slow_settle_timeout" json:"slow_settle_timeout"`
	ScrollPasses      int      `mapstructure:"scroll_passes" yaml:"scroll_passes" json:"scroll_passes"`       // 懒加载滚动次数 (默认:3)
	ScrollPause       int      `mapstructure:"scroll_pause_ms" yaml:"scroll_pause_ms" json:"scroll_pause_ms"` // 滚动间隔(毫秒) (默认:1000)
	RecycleEvery      int      `mapstructure:"recycle_every" yaml:"recycle_every" json:"recycle_every"`       // 每N页重建标签页,0表示不重建
	TestLimit         int      `mapstructure:"test_limit" yaml:"test_limit" json:"test_limit"`                // 测试模式每站最大课程数 (默认:2)
	MaxCourses        int      `mapstructure:"max_courses" yaml:"max_courses" json:"max_courses"`             // 每站最大课程数,0表示不限
	SiteDelay         int      `mapstructure:"site_delay" yaml:"site_delay" json:"site_delay"`                // 站点间延迟(秒)
	NextKeywords      []string `mapstructure:"next_keywords" yaml:"next_keywords" json:"next_keywords"`
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	switch CrawlMode(c.Mode) {
	case ModeStatic, ModeDynamic:
	default:
		return &ConfigError{Field: "crawl.mode", Reason: fmt.Sprintf("不支持的渲染模式: %s", c.Mode)}
	}
	if c.PageBudget < 1 {
		return &ConfigError{Field: "crawl.page_budget", Reason: "页面预算必须大于0"}
	}
	if c.PageTimeout < 1 || c.SettleTimeout < 0 {
		return &ConfigError{Field: "crawl.page_timeout", Reason: "超时时间无效"}
	}
	if c.ScrollPasses < 0 || c.ScrollPause < 0 {
		return &ConfigError{Field: "crawl.scroll_passes", Reason: "滚动参数不能为负数"}
	}
	if c.TestLimit < 1 {
		return &ConfigError{Field: "crawl.test_limit", Reason: "测试模式课程数必须大于0"}
	}
	if c.MaxCourses < 0 {
		return &ConfigError{Field: "crawl.max_courses", Reason: "最大课程数不能为负数"}
	}
	return nil
}

// Timeouts 返回站点的导航与稳定等待超时
func (c CrawlConfig) Timeouts(slow bool) (page time.Duration, settle time.Duration) {
	pageSec, settleSec := c.PageTimeout, c.SettleTimeout
	if slow {
		if c.SlowPageTimeout > 0 {
			pageSec = c.SlowPageTimeout
		}
		if c.SlowSettleTimeout > 0 {
			settleSec = c.SlowSettleTimeout
		}
	}
	return time.Duration(pageSec) * time.Second, time.Duration(settleSec) * time.Second
}

// Keywords 返回翻页关键字,未配置时使用默认列表
func (c CrawlConfig) Keywords() []string {
	if len(c.NextKeywords) > 0 {
		return c.NextKeywords
	}
	return DefaultNextKeywords
}
