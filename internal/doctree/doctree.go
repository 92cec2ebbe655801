package doctree

import (
	"strconv"
	"strings"
)

// Kind identifies the variant of a Node.
type Kind int

const (
	KindRoot Kind = iota
	KindHeading
	KindParagraph
	KindCodeBlock
	KindList
	KindItem
	KindDefinitionList
	KindDefinition
	KindTable
	KindText
	KindFormat
	KindLink
)

var kindNames = [...]string{
	KindRoot:           "root",
	KindHeading:        "heading",
	KindParagraph:      "paragraph",
	KindCodeBlock:      "code",
	KindList:           "list",
	KindItem:           "item",
	KindDefinitionList: "definition-list",
	KindDefinition:     "definition",
	KindTable:          "table",
	KindText:           "text",
	KindFormat:         "format",
	KindLink:           "link",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Meta is the metadata declared by a source's leading directive, e.g.
// `=begin pod :kind("Type") :subkind("class") :category("basic")`.
type Meta struct {
	Kind     string
	Subkind  string
	Category string
	Extra    map[string]string // any other config pairs
}

// Source is one input file. It is not modified after loading.
type Source struct {
	Path string // slash-separated, relative to the input root
	Raw  []byte
	Meta Meta
}

// Target is one resolved destination of a Link.
type Target struct {
	Source string // defining document path, without extension
	Anchor string // empty for the document itself
	Kind   string
}

// Node is an element of a parsed document. Children are kept in reading
// order.
type Node struct {
	Kind  Kind
	Line  int // 1-based source line where the node starts
	Level int // heading level or item nesting level

	// Text holds the literal content of Text nodes, the body of code
	// blocks and the term of a Definition.
	Text string

	Format byte   // formatting code letter for KindFormat (C, B, I, ...)
	Lang   string // code block language
	Anchor string // headings only, unique within the tree

	Config map[string]string // block configuration pairs

	// Links: the raw target as written, its fragment, and the targets it
	// resolved to. An external link has URL set and is never resolved.
	Target   string
	Fragment string
	URL      string
	Targets  []Target

	Rows   [][]string // tables
	Header bool       // first table row is a header

	Children []*Node
}

// Append adds c as the last child of n.
func (n *Node) Append(c *Node) {
	n.Children = append(n.Children, c)
}

// SkipTest reports whether a code block is marked :skip-test.
func (n *Node) SkipTest() bool {
	_, ok := n.Config["skip-test"]
	return ok
}

// Tree is the root of a parsed document plus its heading index.
type Tree struct {
	Source   string // path of the originating Source
	Meta     Meta
	Title    string
	Subtitle string
	Root     *Node

	headings map[int][]*Node
	ordered  []*Node
	anchors  map[string]bool
}

// NewTree returns an empty tree for the source at path.
func NewTree(path string, meta Meta) *Tree {
	return &Tree{
		Source: path,
		Meta:   meta,
		Root:   &Node{Kind: KindRoot},
	}
}

// Page returns the source path without its extension, which is the
// document's address in the rendered site.
func (t *Tree) Page() string {
	return PagePath(t.Source)
}

// PagePath strips the file extension from a slash-separated source path.
func PagePath(path string) string {
	slash := strings.LastIndex(path, "/")
	if dot := strings.LastIndex(path, "."); dot > slash+1 {
		return path[:dot]
	}
	return path
}

// Index assigns anchors to headings and rebuilds the flat heading index.
// Parsers call it once after the tree is complete.
func (t *Tree) Index() {
	t.headings = make(map[int][]*Node)
	t.ordered = nil
	t.anchors = make(map[string]bool)
	t.Walk(func(n *Node) bool {
		if n.Kind != KindHeading {
			return true
		}
		base := Anchor(PlainText(n.Children))
		a := base
		for i := 2; t.anchors[a]; i++ {
			a = base + "-" + strconv.Itoa(i)
		}
		n.Anchor = a
		t.anchors[a] = true
		t.headings[n.Level] = append(t.headings[n.Level], n)
		t.ordered = append(t.ordered, n)
		return false
	})
}

// Headings returns the headings of the given level in document order.
func (t *Tree) Headings(level int) []*Node {
	return t.headings[level]
}

// AllHeadings returns every heading in document order.
func (t *Tree) AllHeadings() []*Node {
	return t.ordered
}

// HasAnchor reports whether a heading in the tree carries anchor a.
func (t *Tree) HasAnchor(a string) bool {
	return t.anchors[a]
}

// Walk visits nodes depth-first in reading order. Returning false from fn
// skips the node's children.
func (t *Tree) Walk(fn func(n *Node) bool) {
	var walk func(n *Node)
	walk = func(n *Node) {
		if !fn(n) {
			return
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(t.Root)
}

// Links returns every Link node in reading order.
func (t *Tree) Links() []*Node {
	var out []*Node
	t.Walk(func(n *Node) bool {
		if n.Kind == KindLink {
			out = append(out, n)
		}
		return true
	})
	return out
}

// CodeBlocks returns every code block in reading order.
func (t *Tree) CodeBlocks() []*Node {
	var out []*Node
	t.Walk(func(n *Node) bool {
		if n.Kind == KindCodeBlock {
			out = append(out, n)
			return false
		}
		return true
	})
	return out
}

// PlainText concatenates the text content of inline nodes, dropping
// formatting and index-entry codes.
func PlainText(nodes []*Node) string {
	var sb strings.Builder
	var walk func([]*Node)
	walk = func(ns []*Node) {
		for _, n := range ns {
			switch n.Kind {
			case KindText:
				sb.WriteString(n.Text)
			case KindFormat:
				// Comments and footnotes are not part of the running text.
				if n.Format != 'Z' && n.Format != 'N' {
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
