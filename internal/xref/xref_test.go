package xref

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/podsite/internal/diag"
	"github.com/dgallion1/podsite/internal/doctree"
	"github.com/dgallion1/podsite/internal/parser"
)

func parse(t *testing.T, path, src string) *doctree.Tree {
	t.Helper()
	p, err := parser.ForFile(path)
	require.NoError(t, err)
	tree, err := p.Parse(strings.NewReader(src), path)
	require.NoError(t, err)
	return tree
}

const mapSrc = `=begin pod :kind("Type")
=TITLE class Map

See L<Hash|/type/Hash>, L<new|/routine/new> and L<Frobnicate>.

=head2 method new

Creates a Map.
=end pod
`

const hashSrc = `=begin pod :kind("Type")
=TITLE class Hash

=head2 method new

Creates a Hash. Back to L<the top|#method_new>.

=head2 method keys

External L<docs|https://example.org/hash>.
=end pod
`

const exceptionsSrc = `=begin pod :kind("Language")
=TITLE Exceptions

Read L<the guide|/language/exceptions#Catching>.
=end pod
`

func corpus(t *testing.T) []*doctree.Tree {
	return []*doctree.Tree{
		parse(t, "type/Map.rakudoc", mapSrc),
		parse(t, "type/Hash.rakudoc", hashSrc),
		parse(t, "language/exceptions.rakudoc", exceptionsSrc),
	}
}

func TestBuild_SharedRoutineName(t *testing.T) {
	ix := Build(corpus(t))

	want := []Entry{
		{Name: "new", Kind: "routine", Source: "type/Hash", Anchor: "method_new"},
		{Name: "new", Kind: "routine", Source: "type/Map", Anchor: "method_new"},
	}
	if diff := cmp.Diff(want, ix.Lookup("new")); diff != "" {
		t.Errorf("Lookup(new) mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []Entry{{Name: "Map", Kind: "type", Source: "type/Map"}}, ix.Lookup("Map"))
	assert.Equal(t, []string{"Exceptions", "Hash", "Map", "exceptions", "keys", "new"}, ix.Names())
}

func TestBuild_OrderIndependent(t *testing.T) {
	trees := corpus(t)
	reversed := []*doctree.Tree{trees[2], trees[1], trees[0]}

	if diff := cmp.Diff(Build(trees).Map(), Build(reversed).Map()); diff != "" {
		t.Errorf("index depends on input order (-forward +reversed):\n%s", diff)
	}
}

func TestIndex_AddDeduplicates(t *testing.T) {
	ix := NewIndex()
	e := Entry{Name: "x", Kind: "routine", Source: "type/A", Anchor: "sub_x"}
	ix.Add(e)
	ix.Add(e)
	ix.Add(Entry{Name: "x", Kind: "routine", Source: "type/0"})
	require.Len(t, ix.Lookup("x"), 2)
	assert.Equal(t, "type/0", ix.Lookup("x")[0].Source)
	assert.Equal(t, 1, ix.Len())
}

func TestResolve_UnresolvedLink(t *testing.T) {
	trees := corpus(t)
	ix := Build(trees)

	ds := Resolve(ix, trees[0])
	require.Len(t, ds, 1)
	assert.ErrorIs(t, ds[0].Kind, diag.ErrUnresolvedLink)
	assert.Equal(t, "type/Map.rakudoc", ds[0].File)
	assert.Equal(t, 4, ds[0].Line)
	assert.Contains(t, ds[0].Message, `"Frobnicate"`)

	links := trees[0].Links()
	require.Len(t, links, 3)
	assert.Equal(t, []doctree.Target{{Source: "type/Hash", Kind: "type"}}, links[0].Targets)
	assert.Len(t, links[1].Targets, 2, "ambiguous link keeps every target")
	assert.Empty(t, links[2].Targets)
}

func TestResolve_LocalAnchorAndExternal(t *testing.T) {
	trees := corpus(t)
	ix := Build(trees)

	assert.Empty(t, Resolve(ix, trees[1]))
	links := trees[1].Links()
	require.Len(t, links, 2)
	assert.Equal(t, []doctree.Target{{Source: "type/Hash", Anchor: "method_new", Kind: "anchor"}}, links[0].Targets)
	assert.Empty(t, links[1].Targets)
	assert.Equal(t, "https://example.org/hash", links[1].URL)
}

func TestResolve_LanguageStemAndFragment(t *testing.T) {
	trees := corpus(t)
	ix := Build(trees)

	assert.Empty(t, Resolve(ix, trees[2]))
	link := trees[2].Links()[0]
	assert.Equal(t, "Catching", link.Fragment)
	assert.Equal(t, []doctree.Target{{Source: "language/exceptions", Kind: "language"}}, link.Targets)
}

func TestResolve_MissingLocalAnchor(t *testing.T) {
	tree := parse(t, "type/X.rakudoc", "=begin pod\nL<nowhere|#gone>\n=end pod\n")
	ds := Resolve(NewIndex(), tree)
	require.Len(t, ds, 1)
	assert.Equal(t, 2, ds[0].Line)
}

func TestResolveAll_Sorted(t *testing.T) {
	a := parse(t, "b.rakudoc", "=begin pod\nL<Nope>\n\nL<Nada>\n=end pod\n")
	b := parse(t, "a.rakudoc", "=begin pod\nL<Zilch>\n=end pod\n")
	ds := ResolveAll(NewIndex(), []*doctree.Tree{a, b})
	require.Len(t, ds, 3)
	assert.Equal(t, "a.rakudoc", ds[0].File)
	assert.Equal(t, 2, ds[1].Line)
	assert.Equal(t, 4, ds[2].Line)
}

func TestLinkName(t *testing.T) {
	tests := []struct {
		target, name, fragment string
	}{
		{"/type/Map", "Map", ""},
		{"/type/IO::Path", "IO::Path", ""},
		{"/routine/new", "new", ""},
		{"/routine/%3D%3D", "==", ""},
		{"/language/exceptions#Catching", "exceptions", "Catching"},
		{"/syntax/if", "if", ""},
		{"#method_new", "", "method_new"},
		{"doc:Map", "Map", ""},
		{"Frobnicate", "Frobnicate", ""},
		{"/other/thing", "other/thing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			name, fragment := LinkName(tt.target)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.fragment, fragment)
		})
	}
}

func TestTitleAndRoutineSymbols(t *testing.T) {
	assert.Equal(t, "Map", TitleSymbol("class Map"))
	assert.Equal(t, "Exceptions", TitleSymbol("Exceptions"))
	assert.Equal(t, "role", TitleSymbol("role"))
	assert.Equal(t, "new", RoutineSymbol("method new"))
	assert.Equal(t, "infix:<+>", RoutineSymbol("multi sub infix:<+>"))
	assert.Equal(t, "+", RoutineSymbol("infix +"))
	assert.Equal(t, "", RoutineSymbol("Methods"))
	assert.Equal(t, "", RoutineSymbol("method"))
	assert.Equal(t, "", RoutineSymbol("Sub signatures"))
	assert.Equal(t, "", RoutineSymbol("Multi dispatch"))
	assert.Equal(t, "", RoutineSymbol("Term precedence"))
}

func TestDeclarations_ProseHeadingsAndSubtitle(t *testing.T) {
	tree := parse(t, "language/functions.rakudoc", `=begin pod :kind("Language")
=TITLE Functions
=SUBTITLE Routines, signatures and dispatch

=head2 Sub signatures

=head2 Multi dispatch

=head2 Term precedence

=head2 sub greet
=end pod
`)
	ix := Build([]*doctree.Tree{tree})
	assert.Equal(t, []string{"Functions", "functions", "greet"}, ix.Names())
	assert.Empty(t, ix.Lookup("Routines, signatures and dispatch"))
}
