package extract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// DefaultMaxHTML 发送给模型的HTML最大字符数
const DefaultMaxHTML = 15000

var droppedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"svg":      true,
}

// CleanHTML 移除脚本、样式等节点并截断
func CleanHTML(raw string, max int) string {
	if max <= 0 {
		max = DefaultMaxHTML
	}

	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return truncate(raw, max)
	}
	removeNodes(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return truncate(raw, max)
	}
	return truncate(buf.String(), max)
}

func removeNodes(n *html.Node) {
	child := n.FirstChild
	for child != nil {
		next := child.NextSibling
		if child.Type == html.CommentNode || (child.Type == html.ElementNode && droppedTags[child.Data]) {
			n.RemoveChild(child)
		} else {
			removeNodes(child)
		}
		child = next
	}
}

// truncate 按字符截断,不拆分多字节字符
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
