package main

import (
	"fmt"
	"io"

	"github.com/RecoveryAshes/CourseCrawl/internal/config"
	"github.com/RecoveryAshes/CourseCrawl/internal/core"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "配置管理",
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "显示生效的配置(密钥已脱敏)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeConfigYAML(cmd.OutOrStdout(), appConfig)
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "生成默认配置文件",
		// 不加载配置,目标文件可能尚不存在
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := config.NewFileLoader(configFile)
			created, err := loader.EnsureConfigExists()
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "✅ 已生成配置文件: %s\n", loader.Path())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "配置文件已存在,未覆盖: %s\n", loader.Path())
			}
			return nil
		},
	}

	configCmd.AddCommand(showCmd, initCmd)
	return configCmd
}

// writeConfigYAML 输出脱敏后的配置
func writeConfigYAML(w io.Writer, cfg *core.Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg.Redacted()); err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}
	return enc.Close()
}
