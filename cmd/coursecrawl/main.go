package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/RecoveryAshes/CourseCrawl/internal/core"
	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"github.com/RecoveryAshes/CourseCrawl/internal/utils"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
var (
	// 全局参数
	configFile string
	verbose    bool
	logLevel   string
	headers    []string
	mode       string
	headless   bool
	outputDir  string

	// 运行参数
	siteIndex       int
	runAll          bool
	resume          bool
	testMode        bool
	consolidateOnly bool
	upload          bool
)

// appConfig 由 PersistentPreRunE 加载
var appConfig *core.Config

var rootCmd = &cobra.Command{
	Use:   "coursecrawl",
	Short: "课程目录爬取与合并工具",
	Long: `CourseCrawl - 课程目录站点爬取工具

依次抓取配置中的课程目录站点,提取课程字段与宣传册信息,
每个站点写入一个CSV表,最后合并为带时间戳的主表。

示例:
  # 列出配置的站点
  coursecrawl

  # 运行第3个站点(测试模式,每站2门课程)
  coursecrawl --site 3 --test

  # 运行全部站点,从检查点恢复
  coursecrawl --all --resume

  # 仅合并已有站点表并上传
  coursecrawl --consolidate-only --upload

  # 自定义HTTP头部
  coursecrawl --all -H "User-Agent: MyBot/1.0"

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := core.LoadDotEnv(); err != nil {
			return err
		}

		config, err := core.LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}

		flags := core.CLIFlags{
			Mode:      mode,
			OutputDir: outputDir,
			LogLevel:  logLevel,
			Verbose:   verbose,
		}
		if cmd.Flags().Changed("headless") {
			flags.Headless = &headless
		}
		config.MergeCLIFlags(flags)

		if err := utils.InitLogger(config.LogConfig()); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}
		if verbose {
			utils.Info("详细模式已启用")
		}

		if err := config.Validate(); err != nil {
			return err
		}
		appConfig = config
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		action, err := ValidateSelection(Selection{
			Site:            siteIndex,
			All:             runAll,
			Resume:          resume,
			ConsolidateOnly: consolidateOnly,
		}, len(appConfig.Sites))
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		switch action {
		case ActionConsolidate:
			return consolidate(ctx, appConfig)
		case ActionSite:
			site := appConfig.Sites[siteIndex-1]
			if err := runCampaign(ctx, appConfig, []models.SiteConfig{site}, false); err != nil {
				return err
			}
			return consolidate(ctx, appConfig)
		case ActionAll:
			if err := runCampaign(ctx, appConfig, appConfig.Sites, resume); err != nil {
				return err
			}
			return consolidate(ctx, appConfig)
		}

		printSites(appConfig.Sites)
		return cmd.Help()
	},
}

// runCampaign 运行站点,中断时返回 nil 并保留检查点
func runCampaign(ctx context.Context, config *core.Config, sites []models.SiteConfig, resumeRun bool) error {
	headerManager, err := core.NewHeaderManager(config.Headers, headers)
	if err != nil {
		return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
	}
	if _, err := headerManager.GetHeaders(); err != nil {
		return fmt.Errorf("HTTP头部验证失败: %w", err)
	}

	state := models.CampaignState{Completed: []string{}}
	checkpoint := config.CheckpointPath()
	switch {
	case resumeRun:
		if state, err = models.LoadCampaignState(checkpoint); err != nil {
			return err
		}
		utils.Infof("🔄 从检查点恢复: 已完成 %d 个站点", len(state.Completed))
	case len(sites) == 1:
		// 单站点运行并入已有进度
		if saved, err := models.LoadCampaignState(checkpoint); err == nil {
			state = saved.Without(sites[0].Name)
		}
	}

	opts := core.RunOptions{MaxCourses: config.Crawl.MaxCourses, ShowProgress: true}
	if testMode {
		opts.MaxCourses = config.Crawl.TestLimit
		utils.Infof("🧪 测试模式: 每站最多 %d 门课程", opts.MaxCourses)
	}

	runID := models.NewRunID()
	runner := core.NewSiteRunner(config, headerManager, runID)
	defer runner.Close()

	campaign := core.NewCampaign(config, runID, runner.Run, opts)
	_, summary, err := campaign.Run(ctx, sites, state)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			utils.Warnf("⚠️  运行已中断,使用 --all --resume 继续")
			return nil
		}
		return err
	}
	if summary.SuccessCount == 0 && summary.SkipCount == 0 {
		return fmt.Errorf("所有站点均运行失败")
	}
	return nil
}

// consolidate 合并站点表,按需上传主表
func consolidate(ctx context.Context, config *core.Config) error {
	if ctx.Err() != nil {
		return nil
	}

	_, path, err := core.ConsolidateAll(config, time.Now(), os.Stdout)
	if err != nil {
		if errors.Is(err, core.ErrNoData) {
			utils.Warnf("⚠️  %v", err)
			return nil
		}
		return err
	}

	if upload || config.Publish.SFTP.Enabled {
		remote, err := core.PublishMaster(ctx, config, path)
		if err != nil {
			return err
		}
		utils.Infof("📤 主表已上传: %s", remote)
	}

	utils.Info("✨ 任务完成!")
	return nil
}

// printSites 以表格形式列出配置的站点
func printSites(sites []models.SiteConfig) {
	rows := make([][]string, 0, len(sites))
	for i, site := range sites {
		slow := ""
		if site.Slow {
			slow = "是"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			utils.TruncateDisplay(site.Name, 28),
			utils.TruncateDisplay(site.CatalogURL, 60),
			slow,
		})
	}
	utils.RenderTable(os.Stdout, []string{"#", "站点", "目录URL", "慢站点"}, rows)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("CourseCrawl %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

func init() {
	// 全局参数
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "日志级别 (trace|debug|info|warn|error)")
	rootCmd.PersistentFlags().StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	rootCmd.PersistentFlags().StringVar(&mode, "mode", "", "渲染模式 (dynamic|static)")
	rootCmd.PersistentFlags().BoolVar(&headless, "headless", true, "无头浏览器模式")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "输出目录")

	// 运行参数
	rootCmd.Flags().IntVar(&siteIndex, "site", 0, "运行指定序号的站点(从1开始)")
	rootCmd.Flags().BoolVar(&runAll, "all", false, "运行全部站点")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "从检查点恢复(与 --all 一起使用)")
	rootCmd.Flags().BoolVar(&testMode, "test", false, "测试模式,每站只处理少量课程")
	rootCmd.Flags().BoolVar(&consolidateOnly, "consolidate-only", false, "仅合并已有站点表")
	rootCmd.Flags().BoolVar(&upload, "upload", false, "合并后通过SFTP上传主表")

	// 添加子命令
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newConfigCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		stop()
		os.Exit(1)
	}
}
