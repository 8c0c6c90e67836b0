package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDownload 宣传册下载流程失败
	ErrDownload = errors.New("宣传册下载失败")

	// ErrDownloadTimeout 等待下载事件超时
	ErrDownloadTimeout = errors.New("等待下载超时")

	// ErrBrowserCrashed 浏览器崩溃
	ErrBrowserCrashed = errors.New("浏览器崩溃")

	// ErrMaxRetriesReached 已达最大重试次数
	ErrMaxRetriesReached = errors.New("已达最大重试次数")

	// ErrRateLimited 模型接口限流
	ErrRateLimited = errors.New("模型接口限流")
)

// NavigationError 页面导航或等待稳定失败
type NavigationError struct {
	URL   string
	Cause error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("页面导航失败 [%s]: %v", e.URL, e.Cause)
}

func (e *NavigationError) Unwrap() error {
	return e.Cause
}

// ExtractionError 提取器返回了无法解析的结果
type ExtractionError struct {
	URL    string
	Source string // html 或 pdf
	Cause  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("字段提取失败 [%s/%s]: %v", e.Source, e.URL, e.Cause)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// PersistenceError 表写入失败,会使站点运行结果失效
type PersistenceError struct {
	Path  string
	Cause error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("写入数据失败 [%s]: %v", e.Path, e.Cause)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}

// ConfigError 配置或命令行参数无效
type ConfigError struct {
	Field  string
	Reason string
	Cause  error
}

func (e *ConfigError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = fmt.Sprintf("配置项 %s 无效: %s", e.Field, e.Reason)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// IsConfigError 判断错误链中是否包含配置错误
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
