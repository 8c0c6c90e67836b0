package utils

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// TruncateDisplay 按终端显示宽度截断文本,用于日志与进度条描述
func TruncateDisplay(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// TruncateRunes 按字符数截断,避免切断多字节字符
func TruncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
