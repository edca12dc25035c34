package source

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// PlainText reduces markdown to readable text. Paragraph breaks survive as
// blank lines so each block still becomes its own take. Code and HTML
// blocks are dropped.
func PlainText(markdown string) string {
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var blocks []string
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		collectBlocks(n, reader.Source(), &blocks)
	}
	return strings.Join(blocks, "\n\n")
}

func collectBlocks(node ast.Node, source []byte, blocks *[]string) {
	switch n := node.(type) {
	case *ast.CodeBlock, *ast.FencedCodeBlock, *ast.HTMLBlock, *ast.ThematicBreak:
		return

	case *ast.List, *ast.Blockquote:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			collectBlocks(c, source, blocks)
		}
		return

	case *ast.ListItem:
		var buf strings.Builder
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if _, nested := c.(*ast.List); nested {
				continue
			}
			walkInline(c, source, &buf)
			buf.WriteString(" ")
		}
		appendBlock(blocks, buf.String())
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if l, nested := c.(*ast.List); nested {
				collectBlocks(l, source, blocks)
			}
		}
		return
	}

	var buf strings.Builder
	walkInline(node, source, &buf)
	appendBlock(blocks, buf.String())
}

func appendBlock(blocks *[]string, s string) {
	s = strings.Join(strings.Fields(s), " ")
	if s != "" {
		*blocks = append(*blocks, s)
	}
}

// walkInline writes the text content of node.
func walkInline(node ast.Node, source []byte, buf *strings.Builder) {
	switch n := node.(type) {
	case *ast.Text:
		buf.Write(n.Segment.Value(source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			buf.WriteString(" ")
		}
		return

	case *ast.String:
		buf.Write(n.Value)
		return

	case *ast.CodeSpan:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if t, ok := c.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return

	case *ast.AutoLink:
		buf.Write(n.Label(source))
		return

	case *ast.Image:
		// Alt text only.
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			walkInline(c, source, buf)
		}
		return

	case *ast.RawHTML:
		return
	}

	// Links, emphasis, headings and paragraphs keep their children.
	for c := node.FirstChild(); c != nil; c = c.NextSibling() {
		walkInline(c, source, buf)
	}
}
