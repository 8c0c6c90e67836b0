package utils

import (
	"net/http"
	"sort"
	"strings"
)

// SensitiveKeywords 敏感名称关键字,头部名与配置键共用
var SensitiveKeywords = []string{
	"authorization",
	"token",
	"key",
	"secret",
	"password",
	"pass",
	"credential",
	"cookie",
}

// IsSensitiveName 根据名称判断是否需要脱敏
func IsSensitiveName(name string) bool {
	lower := strings.ToLower(name)
	for _, keyword := range SensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// RedactSecret 脱敏单个值
// Bearer令牌只保留前缀,长值保留首尾4位,短值完全隐藏
func RedactSecret(value string) string {
	if value == "" {
		return ""
	}
	if strings.HasPrefix(value, "Bearer ") {
		return "Bearer ***"
	}
	if len(value) > 12 {
		return value[:4] + "***" + value[len(value)-4:]
	}
	return "***"
}

// RedactHeaders 脱敏头部,返回按名称排序的 "Name: Value" 列表
func RedactHeaders(headers http.Header) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		values := headers[name]
		if len(values) == 0 {
			continue
		}
		value := values[0]
		if IsSensitiveName(name) {
			value = RedactSecret(value)
		}
		lines = append(lines, name+": "+value)
	}
	return lines
}
