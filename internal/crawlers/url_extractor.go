package crawlers

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultIncludePatterns 详情页路径特征
var DefaultIncludePatterns = []string{
	"/curso/", "/cursos/", "/course/", "/courses/",
	"/programa/", "/program/", "/programas/", "/programs/",
	"/especializacion/", "/diplomado/", "/bootcamp/", "/certificacion/",
	"/ruta/", "/carrera/", "/escuela/", "/producto/",
	"/cursos-y-certificaciones-internacionales/", "/propuesta_academica/",
}

// DefaultExcludePatterns 非详情页特征(登录、购物车、追踪参数等)
var DefaultExcludePatterns = []string{
	"login", "cart", "checkout", "category", "filtro", "search",
	"about", "contact", "privacy", "ver-todas", "gad_source", "utm_",
	"javascript:", "mailto:", "#", "pricing", "plans", "account",
	"profile", "settings", "/courses/courses", "/cursos/cursos",
	"inscripcion", "registro", "payment", "blog", "faq",
	"/tipo-de-actividad/", "/certificacion/", "/especializacion/", "/diplomado/",
}

var pageNumberPath = regexp.MustCompile(`/page/(\d+)`)

// LinkRules 详情页链接过滤规则
type LinkRules struct {
	Include []string
	Exclude []string
}

// NewLinkRules 创建过滤规则,空列表使用默认值
func NewLinkRules(include, exclude []string) LinkRules {
	rules := LinkRules{Include: DefaultIncludePatterns, Exclude: DefaultExcludePatterns}
	if len(include) > 0 {
		rules.Include = include
	}
	if len(exclude) > 0 {
		rules.Exclude = exclude
	}
	return rules
}

// Match 判断已解析的链接是否为详情页候选
// 匹配对象为小写的路径+查询,存在片段时附加 #片段
func (r LinkRules) Match(u *url.URL) bool {
	candidate := strings.ToLower(u.RequestURI())
	if u.Fragment != "" {
		candidate += "#" + strings.ToLower(u.Fragment)
	}

	for _, pattern := range r.Exclude {
		if strings.Contains(candidate, strings.ToLower(pattern)) {
			return false
		}
	}
	for _, pattern := range r.Include {
		if strings.Contains(candidate, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// ResolveLink 将href解析为绝对URL
// 空链接、纯片段、javascript/mailto/tel 以及非HTTP协议视为不可用
func ResolveLink(base *url.URL, href string) (*url.URL, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil, false
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:"} {
		if strings.HasPrefix(lower, prefix) {
			return nil, false
		}
	}

	ref, err := url.Parse(href)
	if err != nil {
		return nil, false
	}
	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}
	if abs.Scheme != "http" && abs.Scheme != "https" || abs.Host == "" {
		return nil, false
	}
	return abs, true
}

// stripFragment 返回去除片段后的URL字符串
func stripFragment(u *url.URL) string {
	clean := *u
	clean.Fragment = ""
	clean.RawFragment = ""
	return clean.String()
}

// CollectDetailLinks 收集页面中符合规则的详情页链接
// 相对链接以当前页面URL为基准转换为绝对URL
func CollectDetailLinks(page *RenderedPage, rules LinkRules) []string {
	base, err := url.Parse(page.URL)
	if err != nil {
		log.Debug().Err(err).Str("url", page.URL).Msg("页面URL无效,跳过链接收集")
		return nil
	}

	seen := make(map[string]bool)
	links := make([]string, 0)
	for _, a := range page.Anchors {
		abs, ok := ResolveLink(base, a.Href)
		if !ok || !rules.Match(abs) {
			continue
		}
		link := stripFragment(abs)
		if seen[link] {
			continue
		}
		seen[link] = true
		links = append(links, link)
	}
	return links
}

// CurrentPageNumber 从URL中识别当前页码
// 支持 /page/N、?page=N、?paged=N,无法识别时为第1页
func CurrentPageNumber(pageURL string) int {
	u, err := url.Parse(pageURL)
	if err != nil {
		return 1
	}
	if m := pageNumberPath.FindStringSubmatch(u.Path); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
			return n
		}
	}
	q := u.Query()
	for _, key := range []string{"page", "paged"} {
		if n, err := strconv.Atoi(q.Get(key)); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// FindNextPage 查找下一页链接
//  1. 按关键字顺序匹配可见文本(不区分大小写),元素须带有可用链接
//  2. 否则查找文本恰为 当前页码+1 的分页链接
func FindNextPage(page *RenderedPage, keywords []string) (string, bool) {
	base, err := url.Parse(page.URL)
	if err != nil {
		return "", false
	}

	for _, keyword := range keywords {
		kw := strings.ToLower(keyword)
		for _, a := range page.Anchors {
			if !a.Visible || !strings.Contains(strings.ToLower(a.Text), kw) {
				continue
			}
			if abs, ok := ResolveLink(base, a.Href); ok {
				return stripFragment(abs), true
			}
		}
	}

	want := strconv.Itoa(CurrentPageNumber(page.URL) + 1)
	for _, a := range page.Anchors {
		if !a.Pager || strings.TrimSpace(a.Text) != want {
			continue
		}
		if abs, ok := ResolveLink(base, a.Href); ok {
			return stripFragment(abs), true
		}
	}
	return "", false
}
