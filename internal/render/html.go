package render

import (
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dgallion1/podsite/internal/doctree"
)

// HTML renders pages as standalone HTML documents. The output is built as
// an html.Node tree and serialised with html.Render, so all text is
// escaped by the library.
type HTML struct{}

func (HTML) Ext() string { return ".html" }

// formatTags maps formatting codes to the element that presents them.
var formatTags = map[byte]atom.Atom{
	'B': atom.Strong,
	'I': atom.Em,
	'C': atom.Code,
	'U': atom.U,
	'K': atom.Kbd,
	'T': atom.Samp,
	'R': atom.Var,
}

func el(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func appendAll(parent *html.Node, kids ...*html.Node) *html.Node {
	for _, k := range kids {
		parent.AppendChild(k)
	}
	return parent
}

// document wraps body content in the page skeleton.
func document(title string) (doc, body *html.Node) {
	doc = &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	root := el(atom.Html)
	head := el(atom.Head)
	head.AppendChild(el(atom.Meta, "charset", "utf-8"))
	head.AppendChild(appendAll(el(atom.Title), textNode(title)))
	body = el(atom.Body)
	appendAll(root, head, body)
	doc.AppendChild(root)
	return doc, body
}

func (HTML) Render(w io.Writer, tree *doctree.Tree) error {
	title := tree.Title
	if title == "" {
		title = tree.Page()
	}
	doc, body := document(title)

	article := el(atom.Article)
	if tree.Meta.Kind != "" {
		article.Attr = append(article.Attr, html.Attribute{Key: "data-kind", Val: tree.Meta.Kind})
	}
	if tree.Title != "" {
		article.AppendChild(appendAll(el(atom.H1, "class", "title"), textNode(tree.Title)))
	}
	if tree.Subtitle != "" {
		article.AppendChild(appendAll(el(atom.P, "class", "subtitle"), textNode(tree.Subtitle)))
	}
	hr := &htmlWriter{page: tree.Page()}
	for _, n := range tree.Root.Children {
		if b := hr.block(n); b != nil {
			article.AppendChild(b)
		}
	}
	body.AppendChild(article)

	if err := html.Render(w, doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func (HTML) RenderIndex(w io.Writer, pages []Page) error {
	doc, body := document("Index")
	body.AppendChild(appendAll(el(atom.H1), textNode("Index")))
	ul := el(atom.Ul, "class", "pages")
	for _, p := range pages {
		a := appendAll(el(atom.A, "href", p.Path+".html"), textNode(p.Title))
		li := appendAll(el(atom.Li), a)
		if p.Kind != "" {
			li.Attr = append(li.Attr, html.Attribute{Key: "data-kind", Val: p.Kind})
		}
		ul.AppendChild(li)
	}
	body.AppendChild(ul)
	if err := html.Render(w, doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

type htmlWriter struct {
	page string
}

func (hw *htmlWriter) block(n *doctree.Node) *html.Node {
	switch n.Kind {
	case doctree.KindHeading:
		level := min(max(n.Level, 1), 6)
		h := el(headingAtoms[level-1], "id", n.Anchor)
		return appendAll(h, hw.inlines(n.Children)...)

	case doctree.KindParagraph:
		return appendAll(el(atom.P), hw.inlines(n.Children)...)

	case doctree.KindCodeBlock:
		code := el(atom.Code)
		if n.Lang != "" {
			code.Attr = append(code.Attr, html.Attribute{Key: "class", Val: "language-" + n.Lang})
		}
		code.AppendChild(textNode(n.Text))
		pre := el(atom.Pre)
		if b := n.Config["block"]; b != "" {
			pre.Attr = append(pre.Attr, html.Attribute{Key: "class", Val: b})
		}
		return appendAll(pre, code)

	case doctree.KindList:
		ul := el(atom.Ul)
		for _, item := range n.Children {
			li := el(atom.Li)
			if item.Level > 1 {
				li.Attr = append(li.Attr, html.Attribute{Key: "class", Val: "level-" + strconv.Itoa(item.Level)})
			}
			for _, c := range item.Children {
				if b := hw.block(c); b != nil {
					li.AppendChild(b)
				}
			}
			ul.AppendChild(li)
		}
		return ul

	case doctree.KindDefinitionList:
		dl := el(atom.Dl)
		for _, def := range n.Children {
			dl.AppendChild(appendAll(el(atom.Dt), textNode(def.Text)))
			dd := el(atom.Dd)
			for _, c := range def.Children {
				if b := hw.block(c); b != nil {
					dd.AppendChild(b)
				}
			}
			dl.AppendChild(dd)
		}
		return dl

	case doctree.KindTable:
		return hw.table(n)

	case doctree.KindItem, doctree.KindDefinition:
		// Only reachable for malformed trees; render the content.
		div := el(atom.Div)
		for _, c := range n.Children {
			if b := hw.block(c); b != nil {
				div.AppendChild(b)
			}
		}
		return div
	}
	return nil
}

var headingAtoms = [...]atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

func (hw *htmlWriter) table(n *doctree.Node) *html.Node {
	table := el(atom.Table)
	rows := n.Rows
	if n.Header && len(rows) > 0 {
		tr := el(atom.Tr)
		for _, cell := range rows[0] {
			tr.AppendChild(appendAll(el(atom.Th), textNode(cell)))
		}
		table.AppendChild(appendAll(el(atom.Thead), tr))
		rows = rows[1:]
	}
	tbody := el(atom.Tbody)
	for _, row := range rows {
		tr := el(atom.Tr)
		for _, cell := range row {
			tr.AppendChild(appendAll(el(atom.Td), textNode(cell)))
		}
		tbody.AppendChild(tr)
	}
	return appendAll(table, tbody)
}

func (hw *htmlWriter) inlines(nodes []*doctree.Node) []*html.Node {
	var out []*html.Node
	for _, n := range nodes {
		out = append(out, hw.inline(n)...)
	}
	return out
}

func (hw *htmlWriter) inline(n *doctree.Node) []*html.Node {
	switch n.Kind {
	case doctree.KindText:
		return []*html.Node{textNode(n.Text)}

	case doctree.KindLink:
		return []*html.Node{hw.link(n)}

	case doctree.KindFormat:
		switch n.Format {
		case 'Z':
			return nil
		case 'N':
			return []*html.Node{appendAll(el(atom.Span, "class", "footnote"), hw.inlines(n.Children)...)}
		case 'X':
			return []*html.Node{appendAll(el(atom.Span, "class", "index-entry"), hw.inlines(n.Children)...)}
		}
		if a, ok := formatTags[n.Format]; ok {
			return []*html.Node{appendAll(el(a), hw.inlines(n.Children)...)}
		}
		return hw.inlines(n.Children)
	}
	return nil
}

func (hw *htmlWriter) link(n *doctree.Node) *html.Node {
	label := hw.inlines(n.Children)
	switch {
	case n.URL != "":
		return appendAll(el(atom.A, "href", n.URL, "class", "external"), label...)

	case len(n.Targets) == 1:
		return appendAll(el(atom.A, "href", hw.href(n.Targets[0], n.Fragment)), label...)

	case len(n.Targets) > 1:
		span := appendAll(el(atom.Span, "class", "xref-ambiguous"), label...)
		choices := el(atom.Span, "class", "xref-choices")
		for i, t := range n.Targets {
			if i > 0 {
				choices.AppendChild(textNode(" "))
			}
			choices.AppendChild(appendAll(el(atom.A, "href", hw.href(t, n.Fragment)), textNode(choiceLabel(t))))
		}
		return appendAll(span, textNode(" "), choices)
	}
	return appendAll(el(atom.Span, "class", "xref-unresolved", "title", n.Target), label...)
}

func (hw *htmlWriter) href(t doctree.Target, fragment string) string {
	anchor := t.Anchor
	if anchor == "" {
		anchor = fragment
	}
	if t.Source == hw.page && anchor != "" {
		return "#" + anchor
	}
	return relHref(hw.page, t.Source, ".html", anchor)
}

func choiceLabel(t doctree.Target) string {
	label := t.Source[strings.LastIndex(t.Source, "/")+1:]
	if t.Anchor != "" {
		label += "#" + t.Anchor
	}
	return label
}
