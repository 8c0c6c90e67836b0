package utils

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/RecoveryAshes/CourseCrawl/internal/models"
)

// MaxHeaderValueLength 头部值最大长度 (8KB)
const MaxHeaderValueLength = 8192

var (
	// ForbiddenHeaders 由HTTP客户端或浏览器管理的头部
	ForbiddenHeaders = []string{"Host", "Content-Length", "Transfer-Encoding", "Connection"}

	headerNameRegex  = regexp.MustCompile(`^[A-Za-z0-9-]+$`)
	headerValueRegex = regexp.MustCompile(`^[\x20-\x7E\t]*$`)
)

// ValidateHeader 按 RFC 7230 验证单个头部
func ValidateHeader(name, value string) error {
	for _, forbidden := range ForbiddenHeaders {
		if strings.EqualFold(name, forbidden) {
			return &models.ValidationError{
				Field:      "name",
				HeaderName: name,
				Reason:     "此头部由HTTP客户端自动管理,不允许自定义",
				Suggestion: fmt.Sprintf("移除 '%s' 头部配置", name),
			}
		}
	}

	if name == "" || !headerNameRegex.MatchString(name) {
		return &models.ValidationError{
			Field:      "name",
			HeaderName: name,
			Reason:     "头部名称为空或包含非法字符",
			Suggestion: "使用字母、数字和连字符 (如 'User-Agent')",
		}
	}

	if len(value) > MaxHeaderValueLength {
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     fmt.Sprintf("头部值过长: %d 字节 (最大 %d)", len(value), MaxHeaderValueLength),
		}
	}
	if !headerValueRegex.MatchString(value) {
		return &models.ValidationError{
			Field:      "value",
			HeaderName: name,
			Reason:     "头部值包含非法字符 (仅允许可打印ASCII字符)",
			Suggestion: "移除换行符等控制字符",
		}
	}
	return nil
}

// ValidateHeaders 验证所有头部,返回第一个错误
func ValidateHeaders(headers http.Header) error {
	for name, values := range headers {
		for _, value := range values {
			if err := ValidateHeader(name, value); err != nil {
				return err
			}
		}
	}
	return nil
}
