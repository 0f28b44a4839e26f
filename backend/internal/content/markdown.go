package content

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"knowledge-base/backend/internal/models"
)

var markdown = goldmark.New()

// MarkdownToText renders the readable text of a markdown document.
// Code blocks and inline HTML tags are dropped, HTML blocks are reduced to
// their text, and whitespace is collapsed to single spaces.
func MarkdownToText(src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}

	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var b bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				b.WriteByte(' ')
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			var raw bytes.Buffer
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				raw.Write(seg.Value(source))
			}
			if node.HasClosure() {
				raw.Write(node.ClosureLine.Value(source))
			}
			b.WriteString(HTMLToText(raw.String()))
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			b.Write(node.Label(source))
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			b.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(node.Value)
		}
		return ast.WalkContinue, nil
	})

	return CollapseWhitespace(b.String())
}

// PlainText extracts the searchable text of a note body in the given format
func PlainText(body string, format models.ContentFormat) string {
	if format == models.ContentHTML {
		return HTMLToText(body)
	}
	return MarkdownToText(body)
}

// CollapseWhitespace trims s and replaces every whitespace run with one space
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
