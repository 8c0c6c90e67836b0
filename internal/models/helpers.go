package models

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxSlugLength 宣传册文件名最大长度(不含扩展名)
	MaxSlugLength = 50

	// BrochureExtension 宣传册文件扩展名
	BrochureExtension = ".pdf"
)

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]`)

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// NewRunID 生成运行ID
func NewRunID() string {
	return uuid.New().String()
}

// BrochureSlug 根据课程名生成文件系统安全的短名称
func BrochureSlug(courseName string) string {
	slug := strings.Trim(nonAlnum.ReplaceAllString(courseName, "_"), "_")
	if len(slug) > MaxSlugLength {
		slug = slug[:MaxSlugLength]
	}
	if slug == "" {
		slug = "brochure"
	}
	return slug
}

// BrochureFilename 宣传册文件名
func BrochureFilename(courseName string) string {
	return BrochureSlug(courseName) + BrochureExtension
}
