package extract

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	// DefaultMaxBrochure 宣传册文本最大字符数
	DefaultMaxBrochure = 10000

	brochureHeadPages = 5
	brochureTailPages = 3
)

// BrochurePages 返回需要读取的页码(从1开始): 前5页加最后3页,不重复
func BrochurePages(total int) []int {
	pages := make([]int, 0, brochureHeadPages+brochureTailPages)
	seen := make(map[int]bool)
	add := func(i int) {
		if i >= 1 && i <= total && !seen[i] {
			seen[i] = true
			pages = append(pages, i)
		}
	}
	for i := 1; i <= brochureHeadPages; i++ {
		add(i)
	}
	if total > brochureHeadPages {
		for i := total - brochureTailPages + 1; i <= total; i++ {
			add(i)
		}
	}
	return pages
}

// ReadBrochureText 读取宣传册PDF文本
func ReadBrochureText(path string, max int) (text string, err error) {
	if max <= 0 {
		max = DefaultMaxBrochure
	}

	// 损坏的PDF可能使解析器panic
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("解析PDF失败 [%s]: %v", path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("打开PDF失败: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, i := range BrochurePages(r.NumPage()) {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n")
	}
	return truncate(sb.String(), max), nil
}
