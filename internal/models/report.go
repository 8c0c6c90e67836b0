package models

import "time"

// SiteReport 单站点运行报告
type SiteReport struct {
	RunID      string    `json:"run_id"`
	Site       string    `json:"site"`
	CatalogURL string    `json:"catalog_url"`
	Mode       string    `json:"mode"`
	Extractor  string    `json:"extractor"`
	Status     RunStatus `json:"status"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Stats      SiteStats `json:"stats"`
	TablePath  string    `json:"table_path,omitempty"`
	Visited    []string  `json:"visited_pages"`
	FailedURLs []string  `json:"failed_urls"`
	Error      string    `json:"error,omitempty"`
}

// CampaignReport 活动运行报告
type CampaignReport struct {
	RunID      string       `json:"run_id"`
	StartTime  time.Time    `json:"start_time"`
	EndTime    time.Time    `json:"end_time"`
	Duration   float64      `json:"duration"`
	Resumed    bool         `json:"resumed"`
	Sites      []SiteReport `json:"sites"`
	Completed  []string     `json:"completed"`
	Failed     []string     `json:"failed"`
	Skipped    []string     `json:"skipped"`
	MasterPath string       `json:"master_path,omitempty"`
}
