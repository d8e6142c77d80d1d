package extract

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// MarkdownText renders markdown documents to plain text.
type MarkdownText struct {
	parser goldmark.Markdown
}

// NewMarkdownText creates a markdown text renderer with table support.
func NewMarkdownText() *MarkdownText {
	return &MarkdownText{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// Text walks the markdown AST and returns its text content. Block elements
// are separated by newlines and table rows render as "a | b".
func (m *MarkdownText) Text(content []byte) string {
	doc := m.parser.Parser().Parse(text.NewReader(content))

	var b strings.Builder
	newline := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "\n") {
			b.WriteString("\n")
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock {
				newline()
			}
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.List, *ast.ListItem, *ast.Blockquote:
			newline()
		case *ast.Text:
			b.Write(node.Segment.Value(content))
			if node.SoftLineBreak() || node.HardLineBreak() {
				b.WriteString("\n")
			}
		case *ast.String:
			b.Write(node.Value)
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			newline()
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				b.Write(line.Value(content))
			}
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock, *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		default:
			kindName := n.Kind().String()
			if kindName == "TableRow" || kindName == "TableHeader" {
				newline()
				b.WriteString(tableRowText(n, content))
				b.WriteString("\n")
				return ast.WalkSkipChildren, nil
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}

func tableRowText(row ast.Node, content []byte) string {
	var cells []string
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		cells = append(cells, inlineText(c, content))
	}
	return strings.Join(cells, " | ")
}

func inlineText(n ast.Node, content []byte) string {
	var b strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(content))
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(b.String())
}
