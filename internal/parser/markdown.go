package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/podsite/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown pages using goldmark. Markdown has no
// begin/end directives, so it never reports malformed markup.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(src))

	tree := doctree.NewTree(filename, doctree.Meta{})
	tree.Title = titleFromFilename(filename)

	c := &mdConverter{src: src}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		c.block(tree.Root, n)
	}
	tree.Index()
	return tree, nil
}

type mdConverter struct {
	src []byte
}

// lineOf returns the 1-based line of a block's first content line.
func (c *mdConverter) lineOf(n ast.Node) int {
	if n.Type() != ast.TypeBlock {
		return 0
	}
	lines := n.Lines()
	if lines.Len() == 0 {
		if fc := n.FirstChild(); fc != nil && fc.Type() == ast.TypeBlock {
			return c.lineOf(fc)
		}
		return 0
	}
	return bytes.Count(c.src[:lines.At(0).Start], []byte("\n")) + 1
}

func (c *mdConverter) rawLines(n ast.Node) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(c.src))
	}
	return strings.TrimRight(buf.String(), "\n")
}

func (c *mdConverter) block(parent *doctree.Node, n ast.Node) {
	line := c.lineOf(n)
	switch node := n.(type) {
	case *ast.Heading:
		parent.Append(&doctree.Node{Kind: doctree.KindHeading, Line: line, Level: node.Level, Children: c.inlines(node, line)})

	case *ast.Paragraph, *ast.TextBlock:
		if kids := c.inlines(node, line); len(kids) > 0 {
			parent.Append(&doctree.Node{Kind: doctree.KindParagraph, Line: line, Children: kids})
		}

	case *ast.FencedCodeBlock:
		cb := &doctree.Node{Kind: doctree.KindCodeBlock, Line: line, Text: c.rawLines(node)}
		if lang := node.Language(c.src); len(lang) > 0 {
			cb.Lang = string(lang)
		}
		if node.Info != nil {
			_, attrs, _ := strings.Cut(string(node.Info.Segment.Value(c.src)), " ")
			if cfg := parseConfig(attrs); len(cfg) > 0 {
				cb.Config = cfg
			}
		}
		parent.Append(cb)

	case *ast.CodeBlock:
		parent.Append(&doctree.Node{Kind: doctree.KindCodeBlock, Line: line, Text: c.rawLines(node)})

	case *ast.List:
		list := &doctree.Node{Kind: doctree.KindList, Line: line}
		for li := node.FirstChild(); li != nil; li = li.NextSibling() {
			item := &doctree.Node{Kind: doctree.KindItem, Line: c.lineOf(li), Level: 1}
			for b := li.FirstChild(); b != nil; b = b.NextSibling() {
				c.block(item, b)
			}
			list.Append(item)
		}
		parent.Append(list)

	case *ast.Blockquote:
		for b := node.FirstChild(); b != nil; b = b.NextSibling() {
			c.block(parent, b)
		}

	case *ast.ThematicBreak, *ast.HTMLBlock:
		// Layout only.
	}
}

func (c *mdConverter) inlines(parent ast.Node, line int) []*doctree.Node {
	var out []*doctree.Node
	var buf strings.Builder
	flush := func() {
		if buf.Len() > 0 {
			out = append(out, &doctree.Node{Kind: doctree.KindText, Text: buf.String(), Line: line})
			buf.Reset()
		}
	}
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Text:
			buf.Write(node.Value(c.src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(node.Value)
		case *ast.CodeSpan:
			flush()
			out = append(out, &doctree.Node{
				Kind: doctree.KindFormat, Format: 'C', Line: line,
				Children: []*doctree.Node{{Kind: doctree.KindText, Text: c.plain(node), Line: line}},
			})
		case *ast.Emphasis:
			flush()
			f := byte('I')
			if node.Level >= 2 {
				f = 'B'
			}
			out = append(out, &doctree.Node{Kind: doctree.KindFormat, Format: f, Line: line, Children: c.inlines(node, line)})
		case *ast.Link:
			flush()
			out = append(out, newLink(c.inlines(node, line), string(node.Destination), line))
		case *ast.AutoLink:
			flush()
			url := string(node.URL(c.src))
			out = append(out, newLink(nil, url, line))
		default:
			buf.WriteString(c.plain(node))
		}
	}
	flush()
	return out
}

// plain returns the text of an inline node and its descendants.
func (c *mdConverter) plain(n ast.Node) string {
	var buf strings.Builder
	for ch := n.FirstChild(); ch != nil; ch = ch.NextSibling() {
		switch t := ch.(type) {
		case *ast.Text:
			buf.Write(t.Value(c.src))
		case *ast.String:
			buf.Write(t.Value)
		default:
			buf.WriteString(c.plain(ch))
		}
	}
	return buf.String()
}
