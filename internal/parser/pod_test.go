package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgallion1/podsite/internal/diag"
	"github.com/dgallion1/podsite/internal/doctree"
)

const mapDoc = `=begin pod :kind("Type") :subkind("class") :category("basic")

=TITLE class Map

=SUBTITLE Immutable mapping from strings to values

    class Map does Associative does Iterable { }

A Map is an immutable mapping. See L<Hash|/type/Hash> and C<Pair>.

=head1 Methods

=head2 method new

=for code :skip-test
method new(*@args --> Map)

Creates a new Map.

=begin code :lang<raku>
my %h = Map.new('a', 1);
say %h; # OUTPUT: «Map.new((a => 1))␤»
=end code

=item First
=item2 Nested

=defn Term
Definition text.

=end pod
`

func parsePod(t *testing.T, input, filename string) *doctree.Tree {
	t.Helper()
	p := &PodParser{}
	tree, err := p.Parse(strings.NewReader(input), filename)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tree
}

func TestPodParser_Document(t *testing.T) {
	tree := parsePod(t, mapDoc, "type/Map.rakudoc")

	if tree.Title != "class Map" {
		t.Errorf("expected title %q, got %q", "class Map", tree.Title)
	}
	if tree.Subtitle != "Immutable mapping from strings to values" {
		t.Errorf("unexpected subtitle %q", tree.Subtitle)
	}
	if tree.Meta.Kind != "Type" || tree.Meta.Subkind != "class" || tree.Meta.Category != "basic" {
		t.Errorf("unexpected meta %+v", tree.Meta)
	}

	kinds := []doctree.Kind{
		doctree.KindCodeBlock,
		doctree.KindParagraph,
		doctree.KindHeading,
		doctree.KindHeading,
		doctree.KindCodeBlock,
		doctree.KindParagraph,
		doctree.KindCodeBlock,
		doctree.KindList,
		doctree.KindDefinitionList,
	}
	children := tree.Root.Children
	if len(children) != len(kinds) {
		t.Fatalf("expected %d top-level nodes, got %d", len(kinds), len(children))
	}
	for i, k := range kinds {
		if children[i].Kind != k {
			t.Errorf("node[%d]: expected %s, got %s", i, k, children[i].Kind)
		}
	}

	if children[0].Text != "class Map does Associative does Iterable { }" {
		t.Errorf("unexpected implicit code %q", children[0].Text)
	}

	skip := children[4]
	if !skip.SkipTest() {
		t.Error("expected =for code block to be skip-test")
	}
	if skip.Text != "method new(*@args --> Map)" {
		t.Errorf("unexpected code text %q", skip.Text)
	}

	raku := children[6]
	if raku.Lang != "raku" {
		t.Errorf("expected lang raku, got %q", raku.Lang)
	}
	if !strings.Contains(raku.Text, "# OUTPUT: «Map.new((a => 1))␤»") {
		t.Errorf("expected verbatim code body, got %q", raku.Text)
	}

	list := children[7]
	if len(list.Children) != 2 {
		t.Fatalf("expected 2 items, got %d", len(list.Children))
	}
	if list.Children[1].Level != 2 {
		t.Errorf("expected nested item level 2, got %d", list.Children[1].Level)
	}

	defs := children[8]
	if len(defs.Children) != 1 || defs.Children[0].Text != "Term" {
		t.Fatalf("unexpected definitions %+v", defs.Children)
	}
	if got := doctree.PlainText(defs.Children[0].Children[0].Children); got != "Definition text." {
		t.Errorf("unexpected definition body %q", got)
	}

	h2 := tree.Headings(2)
	if len(h2) != 1 || h2[0].Anchor != "method_new" {
		t.Fatalf("unexpected level-2 headings %+v", h2)
	}
	if h2[0].Line != 13 {
		t.Errorf("expected heading on line 13, got %d", h2[0].Line)
	}
}

func TestPodParser_LinksInParagraph(t *testing.T) {
	tree := parsePod(t, mapDoc, "type/Map.rakudoc")
	links := tree.Links()
	if len(links) != 1 {
		t.Fatalf("expected 1 link, got %d", len(links))
	}
	l := links[0]
	if l.Target != "/type/Hash" {
		t.Errorf("expected target %q, got %q", "/type/Hash", l.Target)
	}
	if got := doctree.PlainText(l.Children); got != "Hash" {
		t.Errorf("expected link text %q, got %q", "Hash", got)
	}
	if l.Line != 9 {
		t.Errorf("expected link on line 9, got %d", l.Line)
	}
}

func TestPodParser_TitleFallback(t *testing.T) {
	tree := parsePod(t, "=begin pod\n\nSome text.\n\n=end pod\n", "language/exceptions.rakudoc")
	if tree.Title != "exceptions" {
		t.Errorf("expected title %q, got %q", "exceptions", tree.Title)
	}
}

func TestPodParser_Balanced(t *testing.T) {
	input := "=begin pod\n=begin nested\nInner.\n=end nested\n=begin comment\n=end pod\n=end comment\n=end pod\n"
	tree := parsePod(t, input, "a.pod6")
	if len(tree.Root.Children) != 1 {
		t.Fatalf("expected only the nested paragraph, got %d nodes", len(tree.Root.Children))
	}
}

func TestPodParser_MalformedMarkup(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		line      int
		directive string
	}{
		{"end without begin", "=begin pod\n\n=end code\n", 3, "=end code"},
		{"crossed nesting", "=begin pod\n=begin nested\n=end pod\n=end nested\n", 3, "=end pod"},
		{"unterminated verbatim", "=begin pod\n=begin code\nfoo\n=end pod\n", 2, "=begin code"},
		{"unterminated pod", "=begin pod\nHello\n", 1, "=begin pod"},
		{"unrecognized directive", "=begin pod\n=frobnicate x\n=end pod\n", 2, "=frobnicate"},
		{"unrecognized block", "=begin pod\n=begin widget\n=end widget\n=end pod\n", 2, "=begin widget"},
		{"missing block name", "=begin pod\n=begin\n=end pod\n", 2, "=begin"},
		{"unterminated code", "=begin pod\nText\nmore B<bold\n=end pod\n", 3, "B<"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &PodParser{}
			_, err := p.Parse(strings.NewReader(tt.input), "bad.pod6")
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !errors.Is(err, diag.ErrMalformedMarkup) {
				t.Fatalf("expected malformed markup, got %v", err)
			}
			var me *diag.MarkupError
			if !errors.As(err, &me) {
				t.Fatalf("expected *diag.MarkupError, got %T", err)
			}
			if me.Line != tt.line {
				t.Errorf("expected line %d, got %d (%v)", tt.line, me.Line, err)
			}
			if me.Directive != tt.directive {
				t.Errorf("expected directive %q, got %q", tt.directive, me.Directive)
			}
			if me.File != "bad.pod6" {
				t.Errorf("expected file bad.pod6, got %q", me.File)
			}
		})
	}
}

func TestPodParser_Pod5Rejected(t *testing.T) {
	input := "=head1 NAME\n\nFoo - a module\n\n=over 4\n\n=item bar\n\n=back\n\n=cut\n"
	p := &PodParser{}
	_, err := p.Parse(strings.NewReader(input), "lib/Foo.pod")
	var me *diag.MarkupError
	if !errors.As(err, &me) {
		t.Fatalf("expected *diag.MarkupError, got %v", err)
	}
	if me.Line != 5 || me.Directive != "=over" {
		t.Errorf("expected =over on line 5, got %q on line %d", me.Directive, me.Line)
	}
	if !strings.Contains(me.Msg, "Pod5") {
		t.Errorf("expected message to name Pod5, got %q", me.Msg)
	}
}

func TestPodParser_IndentedPodBlock(t *testing.T) {
	input := "  =begin pod\n  Plain text.\n\n      say 42;\n  =end pod\n"
	tree := parsePod(t, input, "a.pod6")
	if len(tree.Root.Children) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(tree.Root.Children))
	}
	if tree.Root.Children[0].Kind != doctree.KindParagraph {
		t.Errorf("expected paragraph, got %s", tree.Root.Children[0].Kind)
	}
	if code := tree.Root.Children[1]; code.Kind != doctree.KindCodeBlock || code.Text != "say 42;" {
		t.Errorf("expected implicit code, got %+v", code)
	}
}

func TestPodParser_ImplicitCodeThenParagraph(t *testing.T) {
	input := "=begin pod\n\n    my %h = a => 1;\n    =comment not a directive\n\nAfter.\n=end pod\n"
	tree := parsePod(t, input, "a.pod6")
	if len(tree.Root.Children) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(tree.Root.Children))
	}
	code := tree.Root.Children[0]
	if code.Text != "my %h = a => 1;\n=comment not a directive" {
		t.Errorf("unexpected code %q", code.Text)
	}
}

func TestPodParser_BeginHeadAndDefn(t *testing.T) {
	input := "=begin pod\n=begin head2\nroutine keys\n=end head2\n=begin defn\nKey\nThe key of a pair.\n=end defn\n=end pod\n"
	tree := parsePod(t, input, "a.pod6")
	h := tree.Headings(2)
	if len(h) != 1 || h[0].Anchor != "routine_keys" {
		t.Fatalf("unexpected headings %+v", h)
	}
	defs := tree.Root.Children[1]
	if defs.Kind != doctree.KindDefinitionList {
		t.Fatalf("expected definition list, got %s", defs.Kind)
	}
	def := defs.Children[0]
	if def.Text != "Key" {
		t.Errorf("expected term %q, got %q", "Key", def.Text)
	}
	if got := doctree.PlainText(def.Children[0].Children); got != "The key of a pair." {
		t.Errorf("unexpected body %q", got)
	}
}

func TestPodParser_Table(t *testing.T) {
	input := "=begin pod\n=begin table\nName | Value\n=====|======\na    | 1\n=end table\n=end pod\n"
	tree := parsePod(t, input, "a.pod6")
	tbl := tree.Root.Children[0]
	if tbl.Kind != doctree.KindTable {
		t.Fatalf("expected table, got %s", tbl.Kind)
	}
	if !tbl.Header {
		t.Error("expected header row")
	}
	want := [][]string{{"Name", "Value"}, {"a", "1"}}
	if len(tbl.Rows) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(tbl.Rows))
	}
	for i := range want {
		if strings.Join(tbl.Rows[i], ",") != strings.Join(want[i], ",") {
			t.Errorf("row %d: expected %v, got %v", i, want[i], tbl.Rows[i])
		}
	}
}

func TestPodParser_InputOutputBlocks(t *testing.T) {
	input := "=begin pod\n=begin output\n42\n=end output\n=end pod\n"
	tree := parsePod(t, input, "a.pod6")
	out := tree.Root.Children[0]
	if out.Kind != doctree.KindCodeBlock || out.Config["block"] != "output" {
		t.Errorf("expected output code block, got %+v", out)
	}
}

func TestParseInline_FormattingCodes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, nodes []*doctree.Node)
	}{
		{"double angle code", "C<<$a < $b>>", func(t *testing.T, ns []*doctree.Node) {
			if ns[0].Format != 'C' || ns[0].Children[0].Text != "$a < $b" {
				t.Errorf("unexpected nodes %+v", ns[0])
			}
		}},
		{"guillemets", "C«foo»", func(t *testing.T, ns []*doctree.Node) {
			if ns[0].Children[0].Text != "foo" {
				t.Errorf("unexpected code text %q", ns[0].Children[0].Text)
			}
		}},
		{"balanced angles in code", "C<Hash[Int, Array<Str>]>", func(t *testing.T, ns []*doctree.Node) {
			if ns[0].Children[0].Text != "Hash[Int, Array<Str>]" {
				t.Errorf("unexpected code text %q", ns[0].Children[0].Text)
			}
		}},
		{"link with formatted text", "L<C<Map>|/type/Map#method new>", func(t *testing.T, ns []*doctree.Node) {
			l := ns[0]
			if l.Kind != doctree.KindLink || l.Target != "/type/Map#method new" {
				t.Fatalf("unexpected link %+v", l)
			}
			if l.Children[0].Format != 'C' {
				t.Errorf("expected formatted link text")
			}
		}},
		{"bare link", "L<Map>", func(t *testing.T, ns []*doctree.Node) {
			if ns[0].Target != "Map" {
				t.Errorf("expected target Map, got %q", ns[0].Target)
			}
		}},
		{"external link", "L<Raku|https://raku.org>", func(t *testing.T, ns []*doctree.Node) {
			if ns[0].URL != "https://raku.org" {
				t.Errorf("expected URL, got %q", ns[0].URL)
			}
		}},
		{"entities", "E<0x2022>E<laquo;raquo>E<171>", func(t *testing.T, ns []*doctree.Node) {
			got := ""
			for _, n := range ns {
				got += n.Text
			}
			if got != "•«»«" {
				t.Errorf("unexpected entity text %q", got)
			}
		}},
		{"index entry", "X<Map|Types,Map>", func(t *testing.T, ns []*doctree.Node) {
			if ns[0].Format != 'X' || ns[0].Target != "Types,Map" {
				t.Errorf("unexpected index node %+v", ns[0])
			}
			if doctree.PlainText(ns) != "Map" {
				t.Errorf("unexpected plain text %q", doctree.PlainText(ns))
			}
		}},
		{"nested", "B<nested I<italic>>", func(t *testing.T, ns []*doctree.Node) {
			b := ns[0]
			if b.Format != 'B' || len(b.Children) != 2 || b.Children[1].Format != 'I' {
				t.Errorf("unexpected nesting %+v", b)
			}
		}},
		{"word prefix is not a code", "FOOB<a>", func(t *testing.T, ns []*doctree.Node) {
			if len(ns) != 1 || ns[0].Kind != doctree.KindText || ns[0].Text != "FOOB<a>" {
				t.Errorf("expected literal text, got %+v", ns)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := parseInline("x.pod6", tt.input, 1)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(nodes) == 0 {
				t.Fatal("expected nodes")
			}
			tt.check(t, nodes)
		})
	}
}

func TestParseInline_LinkLine(t *testing.T) {
	nodes, err := parseInline("x.pod6", "first line\nsecond L<Frob>", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if nodes[1].Kind != doctree.KindLink || nodes[1].Line != 6 {
		t.Errorf("expected link on line 6, got %+v", nodes[1])
	}
}

func TestParseConfig(t *testing.T) {
	cfg := parseConfig(`:kind("Type") :subkind<class> :skip-test :!allow :lang['raku']`)
	want := map[string]string{
		"kind":      "Type",
		"subkind":   "class",
		"skip-test": "",
		"allow":     "False",
		"lang":      "raku",
	}
	if len(cfg) != len(want) {
		t.Fatalf("expected %d pairs, got %v", len(want), cfg)
	}
	for k, v := range want {
		got, ok := cfg[k]
		if !ok || got != v {
			t.Errorf("%s: expected %q, got %q (present=%v)", k, v, got, ok)
		}
	}
}

func TestScanMeta(t *testing.T) {
	m := ScanMeta([]byte("# comment\n=begin pod :kind(\"Language\") :category(\"fundamental\") :link<x>\n=end pod\n"))
	if m.Kind != "Language" || m.Category != "fundamental" {
		t.Errorf("unexpected meta %+v", m)
	}
	if m.Extra["link"] != "x" {
		t.Errorf("expected extra link pair, got %v", m.Extra)
	}
	if got := ScanMeta([]byte("no pod here")); got.Kind != "" {
		t.Errorf("expected empty meta, got %+v", got)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		filename string
		wantErr  bool
	}{
		{"type/Map.rakudoc", false},
		{"a.pod6", false},
		{"README.md", false},
		{"notes.txt", true},
	}
	for _, tt := range tests {
		_, err := ForFile(tt.filename)
		if (err != nil) != tt.wantErr {
			t.Errorf("ForFile(%q): err = %v, wantErr %v", tt.filename, err, tt.wantErr)
		}
	}
	if !IsSupportedExtension("x.RAKUDOC") {
		t.Error("expected case-insensitive extension match")
	}
}
