package utils

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var markdownImage = regexp.MustCompile(`!\[[^\]]*\]\(\s*<?([^)\s>]+)>?(?:\s+"[^"]*")?\s*\)`)

// FirstImageURL 取正文中第一张图片的地址，正文可以是 markdown 或 HTML，
// 跳过 .ico 图标，没有图片时返回空串
func FirstImageURL(content string) string {
	htmlURL, htmlPos := firstHTMLImage(content)
	mdURL, mdPos := firstMarkdownImage(content)

	switch {
	case htmlPos < 0 && mdPos < 0:
		return ""
	case htmlPos < 0:
		return mdURL
	case mdPos < 0:
		return htmlURL
	case mdPos < htmlPos:
		return mdURL
	default:
		return htmlURL
	}
}

func isIcon(src string) bool {
	return strings.Contains(strings.ToLower(src), ".ico")
}

func firstMarkdownImage(content string) (string, int) {
	for _, m := range markdownImage.FindAllStringSubmatchIndex(content, -1) {
		src := content[m[2]:m[3]]
		if !isIcon(src) {
			return src, m[0]
		}
	}
	return "", -1
}

// firstHTMLImage 返回第一张 <img> 的 src 及其在正文中的字节偏移
func firstHTMLImage(content string) (string, int) {
	z := html.NewTokenizer(strings.NewReader(content))
	offset := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF 或者解析失败
			return "", -1
		}
		raw := len(z.Raw())
		if tt == html.StartTagToken || tt == html.SelfClosingTagToken {
			tok := z.Token()
			if tok.Data == "img" {
				for _, attr := range tok.Attr {
					if attr.Key == "src" && attr.Val != "" && !isIcon(attr.Val) {
						return attr.Val, offset
					}
				}
			}
		}
		offset += raw
	}
}
