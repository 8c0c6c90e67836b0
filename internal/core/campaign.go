package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/RecoveryAshes/CourseCrawl/internal/publish"
	"github.com/RecoveryAshes/CourseCrawl/internal/records"
	"github.com/RecoveryAshes/CourseCrawl/internal/utils"
)

// ErrNoData 没有可合并的站点数据
var ErrNoData = errors.New("没有可合并的站点数据")

// SiteRunFunc 单站点运行函数,签名与 SiteRunner.Run 一致
type SiteRunFunc func(ctx context.Context, site models.SiteConfig, state models.CampaignState, opts RunOptions) (models.CampaignState, *SiteResult, error)

// SiteOutcome 单站点运行结果摘要
type SiteOutcome struct {
	Site      string
	Status    models.RunStatus
	Records   int
	Brochures int
	Duration  float64
	Error     error
}

// CampaignSummary 活动摘要
type CampaignSummary struct {
	RunID         string
	TotalSites    int
	SuccessCount  int
	FailCount     int
	SkipCount     int
	TotalRecords  int
	TotalDuration float64
	Results       []SiteOutcome
}

// Campaign 活动编排器
// 依次运行站点,每个站点成功后持久化检查点
type Campaign struct {
	config     *Config
	runID      string
	run        SiteRunFunc
	options    RunOptions
	siteDelay  time.Duration
	checkpoint string
	reporter   *utils.Reporter
	out        io.Writer
}

// NewCampaign 创建活动编排器
func NewCampaign(config *Config, runID string, run SiteRunFunc, options RunOptions) *Campaign {
	return &Campaign{
		config:     config,
		runID:      runID,
		run:        run,
		options:    options,
		siteDelay:  time.Duration(config.Crawl.SiteDelay) * time.Second,
		checkpoint: config.CheckpointPath(),
		reporter:   utils.NewReporter(config.Output.BaseDir),
		out:        os.Stdout,
	}
}

// SetOutput 设置摘要表格输出
func (c *Campaign) SetOutput(w io.Writer) {
	c.out = w
}

// SetSiteDelay 设置站点间延迟
func (c *Campaign) SetSiteDelay(d time.Duration) {
	c.siteDelay = d
}

// Run 依次运行站点
// state 中已完成的站点被跳过;中断时保留检查点并返回 ctx.Err()
func (c *Campaign) Run(ctx context.Context, sites []models.SiteConfig, state models.CampaignState) (models.CampaignState, *CampaignSummary, error) {
	utils.Infof("🚀 开始运行活动: %d个站点", len(sites))

	summary := &CampaignSummary{
		RunID:      c.runID,
		TotalSites: len(sites),
		Results:    make([]SiteOutcome, 0, len(sites)),
	}
	report := models.CampaignReport{
		RunID:     c.runID,
		StartTime: time.Now(),
		Resumed:   len(state.Completed) > 0,
		Completed: []string{},
		Failed:    []string{},
		Skipped:   []string{},
	}

	var runErr error
	ran := 0
	for i, site := range sites {
		if state.IsCompleted(site.Name) {
			utils.Infof("⏭️  [%d/%d] 跳过已完成站点: %s", i+1, len(sites), site.Name)
			summary.SkipCount++
			summary.Results = append(summary.Results, SiteOutcome{Site: site.Name, Status: models.RunStatusSkipped})
			report.Skipped = append(report.Skipped, site.Name)
			continue
		}

		if ran > 0 && c.siteDelay > 0 {
			utils.Debugf("等待 %.0f 秒后处理下一个站点...", c.siteDelay.Seconds())
			select {
			case <-ctx.Done():
			case <-time.After(c.siteDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		ran++

		utils.Infof("==================== [%d/%d] %s ====================", i+1, len(sites), site.Name)

		next, result, err := c.runSite(ctx, site, state)
		outcome := SiteOutcome{Site: site.Name, Status: models.RunStatusCompleted, Error: err}
		if result != nil {
			outcome.Records = result.Report.Stats.Records
			outcome.Brochures = result.Report.Stats.Brochures
			outcome.Duration = result.Report.Stats.Duration
			report.Sites = append(report.Sites, result.Report)
		}

		if err != nil {
			if ctx.Err() != nil {
				outcome.Status = models.RunStatusCancelled
				summary.Results = append(summary.Results, outcome)
				utils.Warnf("⚠️  活动被中断,检查点已保留: %s", c.checkpoint)
				runErr = ctx.Err()
				break
			}
			outcome.Status = models.RunStatusFailed
			summary.FailCount++
			summary.Results = append(summary.Results, outcome)
			report.Failed = append(report.Failed, site.Name)
			utils.Errorf("❌ 站点运行失败 [%s]: %v", site.Name, err)
			continue
		}

		state = next
		if err := state.Save(c.checkpoint); err != nil {
			utils.Errorf("❌ 保存检查点失败: %v", err)
		}
		summary.SuccessCount++
		summary.TotalRecords += outcome.Records
		summary.Results = append(summary.Results, outcome)
		report.Completed = append(report.Completed, site.Name)
	}

	if runErr == nil && state.CoversAll(c.config.Sites) {
		if err := models.RemoveCampaignState(c.checkpoint); err != nil {
			utils.Warnf("⚠️  %v", err)
		} else {
			utils.Debugf("所有站点已完成,删除检查点")
		}
	}

	report.EndTime = time.Now()
	report.Duration = report.EndTime.Sub(report.StartTime).Seconds()
	summary.TotalDuration = report.Duration

	c.printSummary(summary)
	if _, err := c.reporter.GenerateCampaignReport(report); err != nil {
		utils.Warnf("⚠️  生成活动报告失败: %v", err)
	}

	return state, summary, runErr
}

// runSite 运行单个站点,panic 转为错误
func (c *Campaign) runSite(ctx context.Context, site models.SiteConfig, state models.CampaignState) (next models.CampaignState, result *SiteResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Errorf("💥 站点运行崩溃 [%s]: %v\n%s", site.Name, r, debug.Stack())
			next, result, err = state, nil, fmt.Errorf("站点运行崩溃: %v", r)
		}
	}()
	return c.run(ctx, site, state, c.options)
}

// printSummary 打印活动摘要
func (c *Campaign) printSummary(summary *CampaignSummary) {
	utils.Info("📊 活动摘要")
	utils.Infof("总站点数: %d", summary.TotalSites)
	utils.Infof("✅ 成功: %d", summary.SuccessCount)
	utils.Infof("❌ 失败: %d", summary.FailCount)
	utils.Infof("⏭️  跳过: %d", summary.SkipCount)
	utils.Infof("📦 总记录数: %d", summary.TotalRecords)
	utils.Infof("⏱️  总耗时: %.2f秒", summary.TotalDuration)

	if c.out == nil {
		return
	}
	rows := make([][]string, 0, len(summary.Results))
	for _, r := range summary.Results {
		errText := ""
		if r.Error != nil {
			errText = utils.TruncateDisplay(r.Error.Error(), 48)
		}
		rows = append(rows, []string{
			utils.TruncateDisplay(r.Site, 28),
			string(r.Status),
			strconv.Itoa(r.Records),
			strconv.Itoa(r.Brochures),
			fmt.Sprintf("%.1f", r.Duration),
			errText,
		})
	}
	utils.RenderTable(c.out, []string{"站点", "状态", "记录数", "宣传册", "耗时(秒)", "错误"}, rows)
}

// ConsolidateAll 合并所有站点表并写入主表
func ConsolidateAll(config *Config, now time.Time, out io.Writer) (*records.MasterTable, string, error) {
	utils.Info("🔗 开始合并站点表")

	master, err := records.Consolidate(config.SiteTables())
	if err != nil {
		return nil, "", err
	}
	if master.Len() == 0 {
		return master, "", ErrNoData
	}

	path, err := master.Write(config.Output.BaseDir, now)
	if err != nil {
		return master, "", err
	}

	if out != nil {
		rows := make([][]string, 0, len(master.SiteCounts)+1)
		for _, sc := range master.SiteCounts {
			rows = append(rows, []string{utils.TruncateDisplay(sc.Site, 28), strconv.Itoa(sc.Count)})
		}
		rows = append(rows, []string{"合计", strconv.Itoa(master.Len())})
		utils.RenderTable(out, []string{"站点", "记录数"}, rows)
	}

	utils.Infof("✅ 主表已生成: %s (输入 %d 行, 去重后 %d 行)", path, master.InputRows, master.Len())
	if len(master.Skipped) > 0 {
		utils.Warnf("⚠️  跳过的站点表: %v", master.Skipped)
	}
	return master, path, nil
}

// PublishMaster 通过SFTP上传主表
func PublishMaster(ctx context.Context, config *Config, path string) (string, error) {
	cfg := config.Publish.SFTP
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	remote, err := publish.UploadFile(ctx, cfg, path)
	if err != nil {
		return "", fmt.Errorf("上传主表失败: %w", err)
	}
	return remote, nil
}
