package models

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	nonSlugChars   = regexp.MustCompile(`[^a-z0-9_]`)
	repeatedUnders = regexp.MustCompile(`_+`)
)

// SiteConfig 单个目录站点配置
type SiteConfig struct {
	Name       string              `mapstructure:"name" yaml:"name" json:"name"`
	CatalogURL string              `mapstructure:"catalog_url" yaml:"catalog_url" json:"catalog_url"`
	DirName    string              `mapstructure:"dir_name" yaml:"dir_name" json:"dir_name"`
	MaxPages   int                 `mapstructure:"max_pages" yaml:"max_pages" json:"max_pages"`
	Slow       bool                `mapstructure:"slow" yaml:"slow" json:"slow"`
	Include    []string            `mapstructure:"include" yaml:"include,omitempty" json:"include,omitempty"`
	Exclude    []string            `mapstructure:"exclude" yaml:"exclude,omitempty" json:"exclude,omitempty"`
	Selectors  map[string][]string `mapstructure:"selectors" yaml:"selectors,omitempty" json:"selectors,omitempty"`
}

// Validate 验证站点配置
func (s SiteConfig) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return &ConfigError{Field: "sites.name", Reason: "站点名称不能为空"}
	}
	if err := ValidateURL(s.CatalogURL); err != nil {
		return &ConfigError{Field: "sites.catalog_url", Reason: fmt.Sprintf("站点 %s 的目录URL无效", s.Name), Cause: err}
	}
	if s.MaxPages < 0 {
		return &ConfigError{Field: "sites.max_pages", Reason: fmt.Sprintf("站点 %s 的页面预算不能为负数", s.Name)}
	}
	return nil
}

// PageBudget 返回站点的页面预算,未配置时使用默认值
func (s SiteConfig) PageBudget(fallback int) int {
	if s.MaxPages > 0 {
		return s.MaxPages
	}
	return fallback
}

// Directory 返回宣传册子目录名
func (s SiteConfig) Directory() string {
	if s.DirName != "" {
		return s.DirName
	}
	return SanitizeSiteName(s.Name)
}

// TableFilename 站点表文件名
func (s SiteConfig) TableFilename() string {
	return TableFilename(s.Name)
}

// SanitizeSiteName 将站点名称转换为文件名安全的小写标识
func SanitizeSiteName(name string) string {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	s = nonSlugChars.ReplaceAllString(s, "_")
	s = repeatedUnders.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// TableFilename 根据站点名称生成站点表文件名
func TableFilename(siteName string) string {
	return SanitizeSiteName(siteName) + "_database.csv"
}
