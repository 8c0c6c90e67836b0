// Package config 提供内置的配置模板与配置文件生成
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
)

const (
	// DefaultConfigFile 默认配置文件路径
	DefaultConfigFile = "configs/config.yaml"

	// MaxConfigFileSize 配置文件最大大小 (1MB)
	MaxConfigFileSize = 1 * 1024 * 1024
)

//go:embed config_template.yaml
var defaultTemplate []byte

// Template 返回内置配置模板
func Template() []byte {
	return bytes.Clone(defaultTemplate)
}

// FileLoader 配置文件检查器
type FileLoader struct {
	configPath string
}

// NewFileLoader 创建配置文件检查器
func NewFileLoader(configPath string) *FileLoader {
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	return &FileLoader{configPath: configPath}
}

// Path 配置文件路径
func (l *FileLoader) Path() string {
	return l.configPath
}

// EnsureConfigExists 配置文件不存在时写入模板
// 返回: 是否新建了文件
func (l *FileLoader) EnsureConfigExists() (bool, error) {
	if _, err := os.Stat(l.configPath); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("无法读取配置文件信息 [%s]: %w", l.configPath, err)
	}

	dir := filepath.Dir(l.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false, fmt.Errorf("无法创建配置目录 [%s]: %w", dir, err)
	}
	if err := os.WriteFile(l.configPath, defaultTemplate, 0644); err != nil {
		return false, fmt.Errorf("无法生成配置文件 [%s]: %w", l.configPath, err)
	}
	return true, nil
}

// ValidateFileSize 验证配置文件大小是否在限制内
func (l *FileLoader) ValidateFileSize() error {
	info, err := os.Stat(l.configPath)
	if err != nil {
		return fmt.Errorf("无法读取配置文件信息 [%s]: %w", l.configPath, err)
	}
	if info.Size() > MaxConfigFileSize {
		return &models.ConfigError{
			Field:  l.configPath,
			Reason: fmt.Sprintf("配置文件过大: %d 字节 (最大 %d 字节)", info.Size(), MaxConfigFileSize),
		}
	}
	return nil
}
