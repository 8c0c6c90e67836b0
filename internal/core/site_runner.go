package core

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/crawlers"
	"github.com/RecoveryAshes/CourseCrawl/internal/extract"
	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/RecoveryAshes/CourseCrawl/internal/records"
	"github.com/RecoveryAshes/CourseCrawl/internal/utils"
	"github.com/schollz/progressbar/v3"
)

// monitorInterval 资源采样间隔
const monitorInterval = 5 * time.Second

// RendererFactory 为站点创建渲染器
type RendererFactory func(site models.SiteConfig) (crawlers.Renderer, error)

// ExtractorFactory 为站点创建提取器
type ExtractorFactory func(site models.SiteConfig) (extract.Extractor, error)

// RunOptions 单站点运行选项
type RunOptions struct {
	MaxCourses   int  // 详情页上限,0表示不限
	ShowProgress bool // 显示进度条
}

// SiteResult 单站点运行结果
type SiteResult struct {
	Report  models.SiteReport
	Records []models.CourseRecord
}

// SiteRunner 站点运行器
// 流程: 目录发现 → 详情页提取 → 宣传册获取 → 规范化 → 写入站点表
type SiteRunner struct {
	config      *Config
	runID       string
	newRenderer RendererFactory
	newExtract  ExtractorFactory
	reporter    *utils.Reporter
	monitor     *crawlers.ResourceMonitor
}

// NewSiteRunner 创建站点运行器
func NewSiteRunner(config *Config, headerProvider models.HeaderProvider, runID string) *SiteRunner {
	var monitor *crawlers.ResourceMonitor
	if models.CrawlMode(config.Crawl.Mode) == models.ModeDynamic {
		monitor = crawlers.NewResourceMonitor(crawlers.DefaultResourceMonitorConfig())
		monitor.StartMonitoring(monitorInterval)
	}

	return &SiteRunner{
		config:      config,
		runID:       runID,
		newRenderer: DefaultRendererFactory(config.Crawl, headerProvider, monitor),
		newExtract: func(site models.SiteConfig) (extract.Extractor, error) {
			return extract.New(config.Extractor, site.Selectors)
		},
		reporter: utils.NewReporter(config.Output.BaseDir),
		monitor:  monitor,
	}
}

// Close 停止资源监控
func (r *SiteRunner) Close() {
	if r.monitor != nil {
		r.monitor.StopMonitoring()
	}
}

// DefaultRendererFactory 根据渲染模式创建渲染器
func DefaultRendererFactory(crawl models.CrawlConfig, headerProvider models.HeaderProvider, monitor *crawlers.ResourceMonitor) RendererFactory {
	return func(site models.SiteConfig) (crawlers.Renderer, error) {
		switch models.CrawlMode(crawl.Mode) {
		case models.ModeStatic:
			pageTimeout, _ := crawl.Timeouts(site.Slow)
			return crawlers.NewStaticRenderer(pageTimeout, headerProvider), nil
		case models.ModeDynamic:
			return crawlers.NewDynamicRenderer(crawlers.NewDynamicConfig(crawl, site.Slow), headerProvider, monitor), nil
		}
		return nil, &models.ConfigError{Field: "crawl.mode", Reason: fmt.Sprintf("不支持的渲染模式: %s", crawl.Mode)}
	}
}

// WithRendererFactory 替换渲染器工厂
func (r *SiteRunner) WithRendererFactory(f RendererFactory) *SiteRunner {
	r.newRenderer = f
	return r
}

// WithExtractorFactory 替换提取器工厂
func (r *SiteRunner) WithExtractorFactory(f ExtractorFactory) *SiteRunner {
	r.newExtract = f
	return r
}

// Run 运行单个站点
// 成功时返回标记该站点完成的新状态;失败或取消时原样返回传入的状态
func (r *SiteRunner) Run(ctx context.Context, site models.SiteConfig, state models.CampaignState, opts RunOptions) (models.CampaignState, *SiteResult, error) {
	start := time.Now()
	log := utils.WithSite(site.Name)

	result := &SiteResult{Report: models.SiteReport{
		RunID:      r.runID,
		Site:       site.Name,
		CatalogURL: site.CatalogURL,
		Mode:       r.config.Crawl.Mode,
		Status:     models.RunStatusFailed,
		StartTime:  start,
	}}
	report := &result.Report

	finish := func(status models.RunStatus, err error) {
		report.Status = status
		report.EndTime = time.Now()
		report.Stats.Duration = report.EndTime.Sub(start).Seconds()
		if err != nil {
			report.Error = err.Error()
		}
	}

	if err := site.Validate(); err != nil {
		finish(models.RunStatusFailed, err)
		return state, result, err
	}

	extractor, err := r.newExtract(site)
	if err != nil {
		finish(models.RunStatusFailed, err)
		return state, result, err
	}
	report.Extractor = extractor.Name()

	renderer, err := r.newRenderer(site)
	if err != nil {
		finish(models.RunStatusFailed, err)
		return state, result, err
	}
	defer func() {
		if err := renderer.Close(); err != nil {
			utils.Debugf("关闭渲染器失败: %v", err)
		}
	}()

	log.Info().Str("catalog", site.CatalogURL).Msg("🚀 开始站点运行")

	rules := crawlers.NewLinkRules(site.Include, site.Exclude)
	crawler := crawlers.NewCatalogCrawler(renderer, rules, r.config.Crawl.Keywords())
	discovery, err := crawler.Discover(ctx, site.CatalogURL, site.PageBudget(r.config.Crawl.PageBudget))
	if discovery != nil {
		report.Visited = discovery.Visited
		report.Stats.CatalogPages = len(discovery.Visited)
		report.Stats.CatalogFailures = len(discovery.Failed)
		report.Stats.DiscoveredURLs = len(discovery.URLs)
	}
	if err != nil {
		status := models.RunStatusFailed
		if ctx.Err() != nil {
			status = models.RunStatusCancelled
		}
		finish(status, err)
		return state, result, err
	}

	urls := discovery.URLs
	if opts.MaxCourses > 0 && len(urls) > opts.MaxCourses {
		log.Info().Int("limit", opts.MaxCourses).Int("discovered", len(urls)).Msg("🧪 限制详情页数量")
		urls = urls[:opts.MaxCourses]
	}

	recs, err := r.processDetails(ctx, site, renderer, extractor, urls, opts, report)
	if err != nil {
		finish(models.RunStatusCancelled, err)
		return state, result, err
	}
	result.Records = recs
	report.Stats.Records = len(recs)

	tablePath := r.config.TablePath(site)
	if err := records.WriteRecords(tablePath, recs); err != nil {
		log.Error().Err(err).Msg("❌ 写入站点表失败")
		finish(models.RunStatusFailed, err)
		return state, result, err
	}
	report.TablePath = tablePath
	finish(models.RunStatusCompleted, nil)

	if _, err := r.reporter.GenerateSiteReport(*report); err != nil {
		utils.Warnf("⚠️  生成站点报告失败: %v", err)
	}

	log.Info().
		Int("records", len(recs)).
		Int("brochures", report.Stats.Brochures).
		Float64("duration", report.Stats.Duration).
		Msgf("✅ 站点完成: %s", tablePath)

	return state.WithCompleted(site.Name), result, nil
}

// processDetails 逐个处理详情页
// 导航失败跳过该页,提取失败使用 N/A 字段,仅在取消时返回错误
func (r *SiteRunner) processDetails(
	ctx context.Context,
	site models.SiteConfig,
	renderer crawlers.Renderer,
	extractor extract.Extractor,
	urls []string,
	opts RunOptions,
	report *models.SiteReport,
) ([]models.CourseRecord, error) {
	recs := make([]models.CourseRecord, 0, len(urls))
	if len(urls) == 0 {
		utils.Warnf("⚠️  站点 %s 未发现任何详情页", site.Name)
		return recs, nil
	}

	var acquirer *crawlers.BrochureAcquirer
	interactive, isInteractive := renderer.(crawlers.InteractiveRenderer)
	if r.config.Brochure.Enabled && isInteractive {
		acquirer = crawlers.NewBrochureAcquirer(r.config.DownloadsPath(site), r.config.Brochure.Identity, r.config.Brochure.Budgets())
	}

	var bar *progressbar.ProgressBar
	if opts.ShowProgress {
		bar = utils.NewProgressBar(len(urls), utils.TruncateDisplay(site.Name, 24))
		defer bar.Finish()
	}

	for i, pageURL := range urls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		utils.Debugf("🔍 [%d/%d] %s", i+1, len(urls), pageURL)

		rec, ok := r.processDetail(ctx, site, pageURL, renderer, interactive, acquirer, extractor, report)
		if bar != nil {
			bar.Add(1)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if ok {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

func (r *SiteRunner) processDetail(
	ctx context.Context,
	site models.SiteConfig,
	pageURL string,
	renderer crawlers.Renderer,
	interactive crawlers.InteractiveRenderer,
	acquirer *crawlers.BrochureAcquirer,
	extractor extract.Extractor,
	report *models.SiteReport,
) (models.CourseRecord, bool) {
	page, err := renderer.Render(ctx, pageURL)
	if err != nil {
		utils.Warnf("⚠️  详情页加载失败,跳过: %v", err)
		report.Stats.FailedURLs++
		report.FailedURLs = append(report.FailedURLs, pageURL)
		return models.CourseRecord{}, false
	}
	report.Stats.ProcessedURLs++

	htmlFields, err := extractor.ExtractPage(ctx, extract.Document{URL: pageURL, Content: page.HTML})
	if err != nil {
		utils.Warnf("⚠️  详情页提取失败: %v", err)
		report.Stats.ExtractionFailures++
	}
	if htmlFields == nil {
		htmlFields = models.Fields{}
	}

	var pdfFields models.Fields
	if acquirer != nil {
		pdfFields = r.acquireBrochure(ctx, pageURL, htmlFields, interactive, acquirer, extractor, report)
	}

	return records.Normalize(site.Name, pageURL, htmlFields, pdfFields), true
}

// acquireBrochure 查找并下载宣传册,成功时提取宣传册字段
// 失败不影响详情页记录
func (r *SiteRunner) acquireBrochure(
	ctx context.Context,
	pageURL string,
	htmlFields models.Fields,
	interactive crawlers.InteractiveRenderer,
	acquirer *crawlers.BrochureAcquirer,
	extractor extract.Extractor,
	report *models.SiteReport,
) models.Fields {
	session, found, err := interactive.BrochureTarget(ctx, r.config.Brochure.TriggerKeywords())
	if err != nil {
		utils.Debugf("查找宣传册失败: %v", err)
		return nil
	}
	if !found {
		return nil
	}

	res := acquirer.AcquireDetailed(ctx, session, brochureName(htmlFields, pageURL))
	if !res.OK() {
		utils.Debugf("未获取宣传册 [%s]: %s %v", pageURL, res.State, res.Err)
		return nil
	}
	report.Stats.Brochures++
	if res.Reused {
		report.Stats.BrochuresReused++
	}
	htmlFields.Set(models.ColBrochureURL, models.BrochureViaForm)

	text, err := extract.ReadBrochureText(res.Path, r.config.Extractor.MaxBrochure)
	if err != nil {
		utils.Warnf("⚠️  读取宣传册失败: %v", err)
		return nil
	}
	pdfFields, err := extractor.ExtractBrochure(ctx, extract.Document{URL: res.Path, Content: text})
	if err != nil {
		utils.Warnf("⚠️  宣传册提取失败: %v", err)
		report.Stats.ExtractionFailures++
	}
	return pdfFields
}

// brochureName 宣传册文件名依据: 课程名,缺失时使用URL最后一段
func brochureName(htmlFields models.Fields, pageURL string) string {
	if name := htmlFields.Get(models.ColCourseName); !models.IsNotAvailable(name) {
		return name
	}
	if u, err := url.Parse(pageURL); err == nil {
		if base := path.Base(u.Path); base != "/" && base != "." {
			return base
		}
	}
	return pageURL
}
