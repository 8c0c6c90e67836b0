package extract

import (
	"context"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/RecoveryAshes/CourseCrawl/internal/models"
	"golang.org/x/net/html"
)

// DefaultSelectors 通用选择器,站点选择器优先
// 形如 "sel@attr" 的选择器读取属性值
var DefaultSelectors = map[string][]string{
	models.ColCourseName: {
		"h1",
		"meta[property='og:title']@content",
		"title",
	},
	models.ColPriceRaw: {
		".price ins .amount",
		".price .amount",
		"[class*='precio-actual']",
		"[class*='precio']",
		"[class*='price']",
	},
	models.ColPriceOriginal: {
		".price del .amount",
		"[class*='precio-antes']",
		"[class*='regular-price']",
		"del",
	},
	models.ColDuration: {
		"[class*='duracion']",
		"[class*='duration']",
	},
	models.ColStartDate: {
		"[class*='inicio']",
		"[class*='start-date']",
		"[class*='fecha']",
	},
	models.ColInstructor: {
		"[class*='instructor']",
		"[class*='docente']",
		"[class*='teacher']",
	},
	models.ColModality: {
		"[class*='modalidad']",
		"[class*='modality']",
	},
}

// CourseTypeKeywords 课程类型关键字,按优先级排列
var CourseTypeKeywords = []struct {
	Match string
	Type  string
}{
	{"bootcamp", "Bootcamp"},
	{"diplomado", "Diplomado"},
	{"especializaci", "Especialización"},
	{"programa", "Programa"},
	{"certificaci", "Certificación"},
	{"maestr", "Maestría"},
	{"taller", "Taller"},
	{"curso", "Curso"},
	{"course", "Curso"},
}

// ModalityKeywords 授课方式关键字,按优先级排列
var ModalityKeywords = []struct {
	Match    string
	Modality string
}{
	{"en vivo", "En vivo"},
	{"semipresencial", "Híbrido"},
	{"presencial", "Presencial"},
	{"híbrido", "Híbrido"},
	{"hibrido", "Híbrido"},
	{"online", "Online"},
	{"virtual", "Online"},
	{"grabado", "Grabado"},
	{"asincr", "Grabado"},
}

var (
	pricePattern     = regexp.MustCompile(`(?:S/\.?\s?\d[\d.,]*|US\$\s?\d[\d.,]*|\$\s?\d[\d.,]*|€\s?\d[\d.,]*|\d[\d.,]*\s?(?:PEN|USD|EUR)\b)`)
	durationPattern  = regexp.MustCompile(`(?i)\b\d+\s*(?:horas|hrs|semanas|meses|sesiones|hours|weeks)\b(?:\s+(?:académicas|academicas|lectivas|cronológicas|cronologicas))?`)
	startDatePattern = regexp.MustCompile(`(?i)inicio[^:\n]{0,20}:\s*([^\n|]{3,40})`)
	modulePattern    = regexp.MustCompile(`(?i)^\s*(?:módulo|modulo|unidad|sesión|sesion|module)\s*\d*\s*[:.\-–]?\s*\S`)
	spacePattern     = regexp.MustCompile(`\s+`)
)

const maxLineField = 300

// PatternExtractor 基于选择器与正则的提取器
type PatternExtractor struct {
	selectors map[string][]string
}

// NewPatternExtractor 创建提取器,selectors 为站点自定义选择器
func NewPatternExtractor(selectors map[string][]string) *PatternExtractor {
	return &PatternExtractor{selectors: selectors}
}

func (p *PatternExtractor) Name() string { return KindPattern }

// ExtractPage 从详情页HTML提取字段
func (p *PatternExtractor) ExtractPage(ctx context.Context, doc Document) (models.Fields, error) {
	fields := emptyFields(models.PageFieldKeys)

	dom, err := goquery.NewDocumentFromReader(strings.NewReader(doc.Content))
	if err != nil {
		return fields, &models.ExtractionError{URL: doc.URL, Source: "html", Cause: err}
	}
	dom.Find("script, style, noscript").Remove()

	for _, key := range models.PageFieldKeys {
		if v := p.selectField(dom, key); v != "" {
			fields.Set(key, v)
		}
	}

	body := strings.Join(splitLines(blockText(dom.Find("body"))), "\n")

	if models.IsNotAvailable(fields[models.ColPriceRaw]) {
		if m := pricePattern.FindString(body); m != "" {
			fields.Set(models.ColPriceRaw, m)
		}
	} else if m := pricePattern.FindString(fields[models.ColPriceRaw]); m != "" {
		fields.Set(models.ColPriceRaw, m)
	}
	if models.IsNotAvailable(fields[models.ColDuration]) {
		if m := durationPattern.FindString(body); m != "" {
			fields.Set(models.ColDuration, m)
		}
	}
	if models.IsNotAvailable(fields[models.ColStartDate]) {
		if m := startDatePattern.FindStringSubmatch(body); m != nil {
			fields.Set(models.ColStartDate, m[1])
		}
	}
	if models.IsNotAvailable(fields[models.ColModality]) {
		if m := matchModality(body); m != "" {
			fields.Set(models.ColModality, m)
		}
	}
	if models.IsNotAvailable(fields[models.ColCourseType]) {
		if t := DetectCourseType(fields[models.ColCourseName], doc.URL); t != "" {
			fields.Set(models.ColCourseType, t)
		}
	}
	return fields, nil
}

// ExtractBrochure 从宣传册文本提取字段
func (p *PatternExtractor) ExtractBrochure(ctx context.Context, doc Document) (models.Fields, error) {
	fields := emptyFields(models.BrochureFieldKeys)
	if strings.TrimSpace(doc.Content) == "" {
		return fields, nil
	}

	lines := splitLines(doc.Content)
	text := strings.Join(lines, "\n")

	if m := durationPattern.FindString(text); m != "" {
		fields.Set(models.ColDuration, m)
	}
	if m := startDatePattern.FindStringSubmatch(text); m != nil {
		fields.Set(models.ColStartDate, m[1])
	}
	if v := lineContaining(lines, "certific"); v != "" {
		fields.Set(models.ColCertification, v)
	}
	if v := lineContaining(lines, "metodolog"); v != "" {
		fields.Set(models.ColMethodology, v)
	}
	if v := lineContaining(lines, "docente", "instructor", "expositor", "profesor"); v != "" {
		fields.Set(models.ColInstructor, v)
	}
	if v := contentSummary(lines); v != "" {
		fields.Set(models.ColContent, v)
	}
	return fields, nil
}

// selectField 按站点选择器、默认选择器的顺序取第一个非空值
func (p *PatternExtractor) selectField(dom *goquery.Document, key string) string {
	candidates := append(append([]string{}, p.selectors[key]...), DefaultSelectors[key]...)
	for _, sel := range candidates {
		if v := selectValue(dom, sel); v != "" {
			return v
		}
	}
	return ""
}

func selectValue(dom *goquery.Document, sel string) string {
	attr := ""
	if i := strings.LastIndex(sel, "@"); i > 0 {
		sel, attr = sel[:i], sel[i+1:]
	}

	var value string
	dom.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if attr != "" {
			value, _ = s.Attr(attr)
		} else {
			value = s.Text()
		}
		value = normalizeSpace(value)
		return value == ""
	})
	return value
}

// DetectCourseType 根据课程名与URL路径识别课程类型
func DetectCourseType(name, pageURL string) string {
	candidates := []string{strings.ToLower(name)}
	if u, err := url.Parse(pageURL); err == nil {
		candidates = append(candidates, strings.ToLower(u.Path))
	}
	for _, text := range candidates {
		for _, kw := range CourseTypeKeywords {
			if strings.Contains(text, kw.Match) {
				return kw.Type
			}
		}
	}
	return ""
}

func matchModality(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range ModalityKeywords {
		if strings.Contains(lower, kw.Match) {
			return kw.Modality
		}
	}
	return ""
}

var blockTags = map[string]bool{
	"p": true, "div": true, "li": true, "br": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"section": true, "article": true, "header": true, "footer": true,
	"ul": true, "ol": true, "dd": true, "dt": true, "table": true,
}

// blockText 提取文本,块级元素之间换行
func blockText(sel *goquery.Selection) string {
	var sb strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if droppedTags[n.Data] {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockTags[n.Data] {
			sb.WriteString("\n")
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return sb.String()
}

func normalizeSpace(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

func splitLines(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if l = normalizeSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

// lineContaining 返回第一个包含任一关键字的行
// 仅有标题的短行会拼接下一行
func lineContaining(lines []string, keywords ...string) string {
	for i, line := range lines {
		lower := strings.ToLower(line)
		for _, kw := range keywords {
			if !strings.Contains(lower, kw) {
				continue
			}
			out := line
			if len([]rune(line)) < 25 && i+1 < len(lines) {
				out = line + " " + lines[i+1]
			}
			return truncate(out, maxLineField)
		}
	}
	return ""
}

// contentSummary 汇总模块标题,找不到时取"temario/contenido"后的几行
func contentSummary(lines []string) string {
	modules := make([]string, 0)
	for _, line := range lines {
		if modulePattern.MatchString(line) {
			modules = append(modules, truncate(line, 80))
			if len(modules) == 10 {
				break
			}
		}
	}
	if len(modules) > 0 {
		return strings.Join(modules, "; ")
	}

	for i, line := range lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "temario") && !strings.Contains(lower, "contenido") {
			continue
		}
		end := i + 6
		if end > len(lines) {
			end = len(lines)
		}
		if i+1 >= end {
			return ""
		}
		return truncate(strings.Join(lines[i+1:end], "; "), maxLineField)
	}
	return ""
}
