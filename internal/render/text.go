package render

import (
	"bufio"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/podsite/internal/doctree"
)

// Text renders pages as plain text: underlined headings, indented code
// and link targets in brackets.
type Text struct{}

func (Text) Ext() string { return ".txt" }

func (Text) Render(w io.Writer, tree *doctree.Tree) error {
	bw := bufio.NewWriter(w)
	tw := &textWriter{w: bw}
	if tree.Title != "" {
		tw.heading(tree.Title, '=')
		if tree.Subtitle != "" {
			tw.para(tree.Subtitle)
		}
	}
	for _, n := range tree.Root.Children {
		tw.block(n, "")
	}
	return bw.Flush()
}

func (Text) RenderIndex(w io.Writer, pages []Page) error {
	bw := bufio.NewWriter(w)
	tw := &textWriter{w: bw}
	tw.heading("Index", '=')
	for _, p := range pages {
		tw.line("- " + p.Title + " (" + p.Path + ")")
	}
	return bw.Flush()
}

type textWriter struct {
	w       *bufio.Writer
	started bool
}

func (tw *textWriter) line(s string) {
	tw.w.WriteString(s)
	tw.w.WriteByte('\n')
}

// gap separates blocks with a single blank line.
func (tw *textWriter) gap() {
	if tw.started {
		tw.w.WriteByte('\n')
	}
	tw.started = true
}

func (tw *textWriter) heading(s string, under rune) {
	tw.gap()
	tw.line(s)
	tw.line(strings.Repeat(string(under), max(utf8.RuneCountInString(s), 1)))
}

func (tw *textWriter) para(s string) {
	tw.gap()
	tw.line(s)
}

func (tw *textWriter) block(n *doctree.Node, indent string) {
	switch n.Kind {
	case doctree.KindHeading:
		under := '-'
		if n.Level <= 1 {
			under = '='
		}
		tw.heading(inlineText(n.Children), under)

	case doctree.KindParagraph:
		tw.para(indent + inlineText(n.Children))

	case doctree.KindCodeBlock:
		tw.gap()
		for _, l := range strings.Split(n.Text, "\n") {
			if l == "" {
				tw.line("")
				continue
			}
			tw.line(indent + "    " + l)
		}

	case doctree.KindList:
		tw.gap()
		for _, item := range n.Children {
			prefix := indent + strings.Repeat("  ", max(item.Level-1, 0)) + "- "
			var parts []string
			for _, c := range item.Children {
				if c.Kind == doctree.KindParagraph {
					parts = append(parts, inlineText(c.Children))
				}
			}
			tw.line(prefix + strings.Join(parts, " "))
		}

	case doctree.KindDefinitionList:
		tw.gap()
		for _, def := range n.Children {
			tw.line(indent + def.Text)
			for _, c := range def.Children {
				if c.Kind == doctree.KindParagraph {
					tw.line(indent + "    " + inlineText(c.Children))
				}
			}
		}

	case doctree.KindTable:
		tw.gap()
		for i, row := range n.Rows {
			tw.line(indent + strings.Join(row, " | "))
			if i == 0 && n.Header {
				tw.line(indent + strings.Repeat("-", utf8.RuneCountInString(strings.Join(row, " | "))))
			}
		}
	}
}

// inlineText flattens inline nodes, appending resolved link targets in
// brackets.
func inlineText(nodes []*doctree.Node) string {
	var sb strings.Builder
	var walk func([]*doctree.Node)
	walk = func(ns []*doctree.Node) {
		for _, n := range ns {
			switch n.Kind {
			case doctree.KindText:
				sb.WriteString(n.Text)
			case doctree.KindLink:
				walk(n.Children)
				switch {
				case n.URL != "":
					sb.WriteString(" <" + n.URL + ">")
				case len(n.Targets) > 0:
					refs := make([]string, len(n.Targets))
					for i, t := range n.Targets {
						refs[i] = t.Source
						if t.Anchor != "" {
							refs[i] += "#" + t.Anchor
						}
					}
					sb.WriteString(" [" + strings.Join(refs, ", ") + "]")
				}
			case doctree.KindFormat:
				if n.Format != 'Z' {
					walk(n.Children)
				}
			default:
				walk(n.Children)
			}
		}
	}
	walk(nodes)
	return strings.Join(strings.Fields(sb.String()), " ")
}
