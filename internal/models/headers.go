package models

import (
	"fmt"
	"net/http"
	"strings"
)

// HeaderProvider 为渲染器提供请求头部
type HeaderProvider interface {
	// GetHeaders 返回按优先级合并后的头部(默认 < 配置 < 命令行)
	GetHeaders() (http.Header, error)
}

// CliHeaders 命令行 -H 参数,每项格式为 "Name: Value"
type CliHeaders []string

// Parse 解析为 http.Header
func (ch CliHeaders) Parse() (http.Header, error) {
	result := make(http.Header)
	for i, s := range ch {
		name, value, ok := strings.Cut(s, ":")
		if !ok {
			return nil, &ConfigError{
				Field:  "--header",
				Reason: fmt.Sprintf("第%d项缺少冒号分隔符,应为 'Name: Value'", i+1),
			}
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, &ConfigError{Field: "--header", Reason: fmt.Sprintf("第%d项头部名称为空", i+1)}
		}
		result.Set(name, strings.TrimSpace(value))
	}
	return result, nil
}

// ValidationError 头部验证错误
type ValidationError struct {
	Field      string // name 或 value
	HeaderName string
	Reason     string
	Suggestion string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("头部验证失败 [%s]: %s", e.HeaderName, e.Reason)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (建议: %s)", e.Suggestion)
	}
	return msg
}
