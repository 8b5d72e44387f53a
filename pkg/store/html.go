package store

import (
	"strings"

	"golang.org/x/net/html"
)

var skippedElements = map[string]struct{}{
	"script": {}, "style": {}, "noscript": {}, "head": {}, "template": {},
}

var blockElements = map[string]struct{}{
	"p": {}, "div": {}, "br": {}, "li": {}, "h1": {}, "h2": {}, "h3": {},
	"h4": {}, "h5": {}, "h6": {}, "tr": {}, "section": {}, "article": {}, "blockquote": {},
}

// PlainText strips markup from an article body. Text that does not parse
// as HTML is returned with whitespace collapsed.
func PlainText(body string) string {
	if !strings.ContainsAny(body, "<&") {
		return collapseSpace(body)
	}
	root, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return collapseSpace(body)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if _, skip := skippedElements[n.Data]; skip {
				return
			}
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode {
			if _, block := blockElements[n.Data]; block {
				b.WriteString("\n")
			}
		}
	}
	walk(root)

	return collapseSpace(b.String())
}

func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
