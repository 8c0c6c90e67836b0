package main

import (
	"fmt"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
)

// Action 本次运行要执行的操作
type Action int

const (
	ActionList        Action = iota // 列出站点
	ActionSite                      // 运行单个站点
	ActionAll                       // 运行全部站点
	ActionConsolidate               // 仅合并
)

// Selection 命令行选择的操作
type Selection struct {
	Site            int // 1起始,0表示未指定
	All             bool
	Resume          bool
	ConsolidateOnly bool
}

// ValidateSelection 验证互斥参数并返回要执行的操作
func ValidateSelection(sel Selection, siteCount int) (Action, error) {
	if sel.Site != 0 && sel.All {
		return ActionList, &models.ConfigError{Field: "--site", Reason: "--site 与 --all 不能同时使用"}
	}
	if sel.ConsolidateOnly && (sel.Site != 0 || sel.All) {
		return ActionList, &models.ConfigError{Field: "--consolidate-only", Reason: "--consolidate-only 不能与 --site 或 --all 同时使用"}
	}
	if sel.Resume && !sel.All {
		return ActionList, &models.ConfigError{Field: "--resume", Reason: "--resume 只能与 --all 一起使用"}
	}

	switch {
	case sel.ConsolidateOnly:
		return ActionConsolidate, nil
	case sel.All:
		if siteCount == 0 {
			return ActionList, &models.ConfigError{Field: "sites", Reason: "没有配置任何站点"}
		}
		return ActionAll, nil
	case sel.Site != 0:
		if sel.Site < 1 || sel.Site > siteCount {
			return ActionList, &models.ConfigError{
				Field:  "--site",
				Reason: fmt.Sprintf("站点序号超出范围: %d (有效值: 1-%d)", sel.Site, siteCount),
			}
		}
		return ActionSite, nil
	}
	return ActionList, nil
}
