package core

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/CourseCrawl/internal/config"
	"github.com/RecoveryAshes/CourseCrawl/internal/crawlers"
	"github.com/RecoveryAshes/CourseCrawl/internal/extract"
	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/RecoveryAshes/CourseCrawl/internal/publish"
	"github.com/RecoveryAshes/CourseCrawl/internal/records"
	"github.com/RecoveryAshes/CourseCrawl/internal/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀,例如 COURSECRAWL_CRAWL_MODE
const EnvPrefix = "COURSECRAWL"

// Config 应用程序配置
type Config struct {
	Crawl     models.CrawlConfig      `mapstructure:"crawl" yaml:"crawl"`
	Brochure  crawlers.BrochureConfig `mapstructure:"brochure" yaml:"brochure"`
	Extractor extract.Config          `mapstructure:"extractor" yaml:"extractor"`
	Logging   LoggingConfig           `mapstructure:"logging" yaml:"logging"`
	Output    OutputConfig            `mapstructure:"output" yaml:"output"`
	Publish   PublishConfig           `mapstructure:"publish" yaml:"publish"`
	Headers   map[string]string       `mapstructure:"headers" yaml:"headers"`
	Sites     []models.SiteConfig     `mapstructure:"sites" yaml:"sites"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level" yaml:"level"`
	LogDir   string         `mapstructure:"log_dir" yaml:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge     int  `mapstructure:"max_age" yaml:"max_age"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir      string `mapstructure:"base_dir" yaml:"base_dir"`
	DownloadsDir string `mapstructure:"downloads_dir" yaml:"downloads_dir"` // 相对 base_dir
}

// PublishConfig 发布配置
type PublishConfig struct {
	SFTP publish.SFTPConfig `mapstructure:"sftp" yaml:"sftp"`
}

// LoadDotEnv 加载 .env,文件不存在时忽略
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("加载 .env 失败: %w", err)
	}
	return nil
}

// LoadConfig 加载配置
// 先读取内置模板,再合并用户配置文件,最后应用环境变量
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadConfig(bytes.NewReader(config.Template())); err != nil {
		return nil, fmt.Errorf("读取内置配置模板失败: %w", err)
	}

	if configPath != "" {
		loader := config.NewFileLoader(configPath)
		if err := loader.ValidateFileSize(); err != nil {
			if models.IsConfigError(err) {
				return nil, err
			}
			return nil, &models.ConfigError{Field: "config", Reason: "配置文件不可用", Cause: err}
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".coursecrawl"))
		}
	}

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, &models.ConfigError{Field: "config", Reason: "读取配置文件失败", Cause: err}
		}
		utils.Debugf("未找到配置文件,使用内置配置")
	} else {
		utils.Debugf("已加载配置文件: %s", v.ConfigFileUsed())
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &models.ConfigError{Field: "config", Reason: "解析配置失败", Cause: err}
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	return &cfg, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	// 爬取配置默认值
	v.SetDefault("crawl.mode", string(models.ModeDynamic))
	v.SetDefault("crawl.headless", true)
	v.SetDefault("crawl.page_budget", 30)
	v.SetDefault("crawl.page_timeout", 90)
	v.SetDefault("crawl.settle_timeout", 60)
	v.SetDefault("crawl.slow_page_timeout", 120)
	v.SetDefault("crawl.slow_settle_timeout", 90)
	v.SetDefault("crawl.scroll_passes", 3)
	v.SetDefault("crawl.scroll_pause_ms", 1000)
	v.SetDefault("crawl.recycle_every", 50)
	v.SetDefault("crawl.test_limit", 2)
	v.SetDefault("crawl.max_courses", 0)
	v.SetDefault("crawl.site_delay", 2)

	// 宣传册默认值
	v.SetDefault("brochure.enabled", true)
	v.SetDefault("brochure.modal_budget_ms", 3000)
	v.SetDefault("brochure.form_budget_ms", 10000)
	v.SetDefault("brochure.download_budget", 15)
	v.SetDefault("brochure.poll_interval_ms", 250)
	v.SetDefault("brochure.identity.name", "Juan Perez")
	v.SetDefault("brochure.identity.email", "test@example.com")

	// 提取器默认值
	v.SetDefault("extractor.kind", extract.KindPattern)
	v.SetDefault("extractor.model", extract.DefaultModel)
	v.SetDefault("extractor.base_url", extract.DefaultBaseURL)
	v.SetDefault("extractor.timeout", 60)
	v.SetDefault("extractor.max_html", extract.DefaultMaxHTML)
	v.SetDefault("extractor.max_brochure", extract.DefaultMaxBrochure)

	// 日志配置默认值
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	// 输出配置默认值
	v.SetDefault("output.base_dir", "output")
	v.SetDefault("output.downloads_dir", "downloads")

	v.SetDefault("publish.sftp.port", 22)
	v.SetDefault("publish.sftp.remote_dir", "/")
	v.SetDefault("publish.sftp.timeout", 20)
}

// Validate 验证配置
func (c *Config) Validate() error {
	if err := c.Crawl.Validate(); err != nil {
		return err
	}
	if err := c.Extractor.Validate(); err != nil {
		return err
	}
	if c.Brochure.ModalBudgetMs < 0 || c.Brochure.FormBudgetMs < 0 || c.Brochure.DownloadBudget < 0 {
		return &models.ConfigError{Field: "brochure", Reason: "等待预算不能为负数"}
	}
	if c.Brochure.Enabled {
		// 预算为0时计时器立即触发,每个宣传册都会超时
		budgets := []struct {
			field string
			value int
		}{
			{"brochure.modal_budget_ms", c.Brochure.ModalBudgetMs},
			{"brochure.form_budget_ms", c.Brochure.FormBudgetMs},
			{"brochure.download_budget", c.Brochure.DownloadBudget},
		}
		for _, b := range budgets {
			if b.value <= 0 {
				return &models.ConfigError{Field: b.field, Reason: "启用宣传册时等待预算必须大于0"}
			}
		}
	}
	if strings.TrimSpace(c.Output.BaseDir) == "" {
		return &models.ConfigError{Field: "output.base_dir", Reason: "输出目录不能为空"}
	}

	seen := make(map[string]bool, len(c.Sites))
	for _, site := range c.Sites {
		if err := site.Validate(); err != nil {
			return err
		}
		key := models.SanitizeSiteName(site.Name)
		if seen[key] {
			return &models.ConfigError{Field: "sites.name", Reason: fmt.Sprintf("站点名称重复: %s", site.Name)}
		}
		seen[key] = true
	}

	if c.Publish.SFTP.Enabled {
		if err := c.Publish.SFTP.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CLIFlags 命令行覆盖项,零值表示未指定
type CLIFlags struct {
	Mode      string
	Headless  *bool
	OutputDir string
	LogLevel  string
	Verbose   bool
}

// MergeCLIFlags 合并命令行参数到配置
// 命令行参数优先于配置文件
func (c *Config) MergeCLIFlags(flags CLIFlags) {
	if flags.Mode != "" {
		c.Crawl.Mode = flags.Mode
	}
	if flags.Headless != nil {
		c.Crawl.Headless = *flags.Headless
	}
	if flags.OutputDir != "" {
		c.Output.BaseDir = flags.OutputDir
	}
	if flags.LogLevel != "" {
		c.Logging.Level = flags.LogLevel
	}
	if flags.Verbose {
		c.Logging.Level = "debug"
	}
}

// LogConfig 转换为日志系统配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// CheckpointPath 检查点文件路径
func (c *Config) CheckpointPath() string {
	return filepath.Join(c.Output.BaseDir, models.CheckpointFilename)
}

// TablePath 站点表路径
func (c *Config) TablePath(site models.SiteConfig) string {
	return filepath.Join(c.Output.BaseDir, site.TableFilename())
}

// DownloadsPath 站点宣传册目录
func (c *Config) DownloadsPath(site models.SiteConfig) string {
	dir := c.Output.DownloadsDir
	if dir == "" {
		dir = "downloads"
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(c.Output.BaseDir, dir)
	}
	return filepath.Join(dir, site.Directory())
}

// SiteTables 按配置顺序返回所有站点表
func (c *Config) SiteTables() []records.SiteTable {
	tables := make([]records.SiteTable, 0, len(c.Sites))
	for _, site := range c.Sites {
		tables = append(tables, records.SiteTable{Site: site.Name, Path: c.TablePath(site)})
	}
	return tables
}

// Redacted 返回隐藏密钥后的配置副本(用于展示)
func (c *Config) Redacted() Config {
	out := *c
	out.Sites = append([]models.SiteConfig(nil), c.Sites...)
	out.Extractor.APIKey = utils.RedactSecret(c.Extractor.APIKey)
	out.Publish.SFTP.Password = utils.RedactSecret(c.Publish.SFTP.Password)

	out.Headers = make(map[string]string, len(c.Headers))
	for name, value := range c.Headers {
		if utils.IsSensitiveName(name) {
			value = utils.RedactSecret(value)
		}
		out.Headers[name] = value
	}
	return out
}
