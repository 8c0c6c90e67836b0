package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/schollz/progressbar/v3"
)

// Reporter 报告生成器
type Reporter struct {
	outputDir string
}

// NewReporter 创建报告生成器,报告写入 <outputDir>/reports
func NewReporter(outputDir string) *Reporter {
	return &Reporter{outputDir: outputDir}
}

// ReportsDir 报告目录
func (r *Reporter) ReportsDir() string {
	return filepath.Join(r.outputDir, "reports")
}

// GenerateSiteReport 写入站点报告 <site>_report.json
func (r *Reporter) GenerateSiteReport(report models.SiteReport) (string, error) {
	name := models.SanitizeSiteName(report.Site) + "_report.json"
	return r.saveJSONReport(name, report)
}

// GenerateCampaignReport 写入活动报告 campaign_<run_id>.json
func (r *Reporter) GenerateCampaignReport(report models.CampaignReport) (string, error) {
	name := fmt.Sprintf("campaign_%s.json", report.RunID)
	return r.saveJSONReport(name, report)
}

// saveJSONReport 保存JSON报告
func (r *Reporter) saveJSONReport(filename string, data interface{}) (string, error) {
	dir := r.ReportsDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("创建报告目录失败: %w", err)
	}

	path := filepath.Join(dir, filename)
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("序列化JSON失败: %w", err)
	}
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("写入报告文件失败: %w", err)
	}

	Debugf("保存报告: %s", path)
	return path, nil
}

// NewProgressBar 创建进度条
func NewProgressBar(max int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// RenderTable 以表格形式输出
func RenderTable(w io.Writer, header []string, rows [][]string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	head := make(table.Row, 0, len(header))
	for _, h := range header {
		head = append(head, h)
	}
	t.AppendHeader(head)

	for _, row := range rows {
		r := make(table.Row, 0, len(row))
		for _, cell := range row {
			r = append(r, cell)
		}
		t.AppendRow(r)
	}
	t.Render()
}
