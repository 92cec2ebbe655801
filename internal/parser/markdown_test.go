package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/podsite/internal/doctree"
)

func TestMarkdownParser_HeadingsAndParagraphs(t *testing.T) {
	input := `# Title

Intro text with a [link](/type/Map) and ` + "`code`" + `.

## Section A

Section A content.
`
	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader(input), "guide/intro.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tree.Title != "intro" {
		t.Errorf("expected title %q, got %q", "intro", tree.Title)
	}

	children := tree.Root.Children
	if len(children) != 4 {
		t.Fatalf("expected 4 top-level nodes, got %d", len(children))
	}
	if children[0].Kind != doctree.KindHeading || children[0].Level != 1 {
		t.Errorf("expected h1, got %s level %d", children[0].Kind, children[0].Level)
	}
	if children[2].Kind != doctree.KindHeading || children[2].Level != 2 {
		t.Errorf("expected h2, got %s level %d", children[2].Kind, children[2].Level)
	}
	if children[2].Line != 5 {
		t.Errorf("expected h2 on line 5, got %d", children[2].Line)
	}

	links := tree.Links()
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	if links[0].Target != "/type/Map" {
		t.Errorf("expected target %q, got %q", "/type/Map", links[0].Target)
	}
	if got := doctree.PlainText(links[0].Children); got != "link" {
		t.Errorf("expected link text %q, got %q", "link", got)
	}

	para := children[1]
	var sawCode bool
	for _, n := range para.Children {
		if n.Kind == doctree.KindFormat && n.Format == 'C' {
			sawCode = true
		}
	}
	if !sawCode {
		t.Error("expected inline code span in paragraph")
	}

	if got := tree.Headings(2)[0].Anchor; got != "Section_A" {
		t.Errorf("expected anchor %q, got %q", "Section_A", got)
	}
}

func TestMarkdownParser_FencedCode(t *testing.T) {
	input := "Example:\n\n```raku :skip-test\nsay 42; # OUTPUT: «42␤»\n```\n"
	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader(input), "example.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	blocks := tree.CodeBlocks()
	if len(blocks) != 1 {
		t.Fatalf("expected 1 code block, got %d", len(blocks))
	}
	cb := blocks[0]
	if cb.Lang != "raku" {
		t.Errorf("expected lang raku, got %q", cb.Lang)
	}
	if !cb.SkipTest() {
		t.Error("expected skip-test from info string")
	}
	if cb.Text != "say 42; # OUTPUT: «42␤»" {
		t.Errorf("unexpected code %q", cb.Text)
	}
}

func TestMarkdownParser_List(t *testing.T) {
	input := "- one\n- two\n"
	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader(input), "list.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Root.Children) != 1 || tree.Root.Children[0].Kind != doctree.KindList {
		t.Fatalf("expected a single list, got %+v", tree.Root.Children)
	}
	items := tree.Root.Children[0].Children
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if got := doctree.PlainText(items[1].Children[0].Children); got != "two" {
		t.Errorf("expected %q, got %q", "two", got)
	}
}

func TestMarkdownParser_EmptyInput(t *testing.T) {
	p := &MarkdownParser{}
	tree, err := p.Parse(strings.NewReader(""), "empty.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Root.Children) != 0 {
		t.Errorf("expected 0 children for empty input, got %d", len(tree.Root.Children))
	}
}

func TestMarkdownParser_TitleStripping(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"readme.md", "readme"},
		{"notes.markdown", "notes"},
		{"docs/plain.md", "plain"},
	}
	p := &MarkdownParser{}
	for _, tt := range tests {
		tree, err := p.Parse(strings.NewReader("text"), tt.filename)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tt.filename, err)
		}
		if tree.Title != tt.want {
			t.Errorf("filename=%q: expected title %q, got %q", tt.filename, tt.want, tree.Title)
		}
	}
}
