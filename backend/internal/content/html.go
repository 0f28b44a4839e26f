package content

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HTMLToText extracts the visible text of an HTML fragment.
// Script and style contents are removed and text nodes are joined by spaces.
func HTMLToText(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(src))
	if err != nil {
		// The tokenizer accepts almost anything, so fall back to the raw text
		return CollapseWhitespace(src)
	}
	doc.Find("script, style, noscript, template").Remove()

	var parts []string
	for _, n := range doc.Nodes {
		collectText(n, &parts)
	}
	return CollapseWhitespace(strings.Join(parts, " "))
}

func collectText(n *html.Node, parts *[]string) {
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*parts = append(*parts, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, parts)
	}
}
