// Package extract 提供课程字段提取器
//
// 两种实现:
//   - PatternExtractor: 基于goquery选择器与正则的本地提取
//   - ModelExtractor: 调用兼容OpenAI的对话接口提取
package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/RecoveryAshes/CourseCrawl/internal/utils"
)

const (
	KindPattern = "pattern"
	KindModel   = "model"

	// APIKeyEnv 模型接口密钥环境变量
	APIKeyEnv = "OPENAI_API_KEY"
)

// Document 待提取的文档
type Document struct {
	URL     string
	Content string // 页面HTML或宣传册文本
}

// Extractor 字段提取器
type Extractor interface {
	Name() string
	// ExtractPage 从详情页HTML提取 models.PageFieldKeys
	ExtractPage(ctx context.Context, doc Document) (models.Fields, error)
	// ExtractBrochure 从宣传册文本提取 models.BrochureFieldKeys
	ExtractBrochure(ctx context.Context, doc Document) (models.Fields, error)
}

// Config 提取器配置
type Config struct {
	Kind        string  `mapstructure:"kind" yaml:"kind"`
	Model       string  `mapstructure:"model" yaml:"model"`
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string  `mapstructure:"api_key" yaml:"api_key"`
	Timeout     int     `mapstructure:"timeout" yaml:"timeout"` // 秒
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxHTML     int     `mapstructure:"max_html" yaml:"max_html"`
	MaxBrochure int     `mapstructure:"max_brochure" yaml:"max_brochure"`
}

// Validate 验证配置
func (c Config) Validate() error {
	switch c.Kind {
	case KindPattern, KindModel:
		return nil
	}
	return &models.ConfigError{Field: "extractor.kind", Reason: fmt.Sprintf("不支持的提取器类型: %s", c.Kind)}
}

// ResolveAPIKey 配置中的密钥优先,否则读取环境变量
func (c Config) ResolveAPIKey() string {
	if key := strings.TrimSpace(c.APIKey); key != "" {
		return key
	}
	return strings.TrimSpace(os.Getenv(APIKeyEnv))
}

// New 根据配置创建提取器
// model 类型缺少密钥时回退为 pattern
func New(cfg Config, selectors map[string][]string) (Extractor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Kind == KindModel {
		key := cfg.ResolveAPIKey()
		if key == "" {
			utils.Warnf("⚠️  未设置 %s,模型提取器回退为规则提取器", APIKeyEnv)
			return NewPatternExtractor(selectors), nil
		}
		return NewModelExtractor(ModelOptions{
			BaseURL:     cfg.BaseURL,
			APIKey:      key,
			Model:       cfg.Model,
			Timeout:     time.Duration(cfg.Timeout) * time.Second,
			Temperature: cfg.Temperature,
			MaxHTML:     cfg.MaxHTML,
			MaxBrochure: cfg.MaxBrochure,
		}), nil
	}
	return NewPatternExtractor(selectors), nil
}

// emptyFields 所有键均为 N/A 的字段集
func emptyFields(keys []string) models.Fields {
	f := make(models.Fields, len(keys))
	for _, k := range keys {
		f[k] = models.NotAvailable
	}
	return f
}
