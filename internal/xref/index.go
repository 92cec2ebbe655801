// Package xref builds the corpus-wide symbol index and resolves links
// against it.
package xref

import (
	"sort"
	"strings"

	"github.com/dgallion1/podsite/internal/doctree"
)

// Entry is one place where a symbol is declared.
type Entry struct {
	Name   string `json:"-"`
	Source string `json:"source"` // page path, without extension
	Anchor string `json:"anchor"` // "" for the page itself
	Kind   string `json:"kind"`
}

// Target converts e into a link target.
func (e Entry) Target() doctree.Target {
	return doctree.Target{Source: e.Source, Anchor: e.Anchor, Kind: e.Kind}
}

func entryLess(a, b Entry) bool {
	if a.Source != b.Source {
		return a.Source < b.Source
	}
	if a.Anchor != b.Anchor {
		return a.Anchor < b.Anchor
	}
	return a.Kind < b.Kind
}

// titleKinds are the words stripped from the front of a page title to get
// the symbol it declares ("class Map" declares Map).
var titleKinds = map[string]bool{
	"class":   true,
	"role":    true,
	"grammar": true,
	"module":  true,
	"package": true,
	"enum":    true,
	"subset":  true,
	"native":  true,
}

// routineKinds mark headings that declare a routine ("method new").
var routineKinds = map[string]bool{
	"method":        true,
	"routine":       true,
	"sub":           true,
	"submethod":     true,
	"multi":         true,
	"infix":         true,
	"prefix":        true,
	"postfix":       true,
	"circumfix":     true,
	"postcircumfix": true,
	"term":          true,
	"trait":         true,
}

// Index maps symbol names to the sorted entries that declare them. The
// zero value is not usable; call NewIndex or Build.
type Index struct {
	entries map[string][]Entry
}

func NewIndex() *Index {
	return &Index{entries: make(map[string][]Entry)}
}

// Build indexes the declarations of every tree. The result does not
// depend on the order of trees.
func Build(trees []*doctree.Tree) *Index {
	ix := NewIndex()
	for _, t := range trees {
		if t == nil {
			continue
		}
		for _, e := range Declarations(t) {
			ix.Add(e)
		}
	}
	return ix
}

// Add inserts e in sorted position. Duplicate entries are ignored.
func (ix *Index) Add(e Entry) {
	list := ix.entries[e.Name]
	i := sort.Search(len(list), func(i int) bool { return !entryLess(list[i], e) })
	if i < len(list) && list[i] == e {
		return
	}
	list = append(list, Entry{})
	copy(list[i+1:], list[i:])
	list[i] = e
	ix.entries[e.Name] = list
}

// Lookup returns the entries declaring name, or nil.
func (ix *Index) Lookup(name string) []Entry {
	return ix.entries[name]
}

// Names returns every declared name, sorted.
func (ix *Index) Names() []string {
	names := make([]string, 0, len(ix.entries))
	for n := range ix.entries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of distinct names.
func (ix *Index) Len() int { return len(ix.entries) }

// Map returns a copy of the index suitable for serialisation.
func (ix *Index) Map() map[string][]Entry {
	out := make(map[string][]Entry, len(ix.entries))
	for n, list := range ix.entries {
		out[n] = append([]Entry(nil), list...)
	}
	return out
}

// Declarations returns the symbols a single tree declares: its title, its
// routine headings and, for language pages, its file stem.
func Declarations(t *doctree.Tree) []Entry {
	page := t.Page()
	kind := strings.ToLower(t.Meta.Kind)
	if kind == "" {
		kind = "type"
	}

	var out []Entry
	if name := TitleSymbol(t.Title); name != "" {
		out = append(out, Entry{Name: name, Kind: kind, Source: page})
	}
	if kind == "language" {
		stem := page[strings.LastIndex(page, "/")+1:]
		out = append(out, Entry{Name: stem, Kind: kind, Source: page})
	}
	for _, h := range t.AllHeadings() {
		if name := RoutineSymbol(doctree.PlainText(h.Children)); name != "" {
			out = append(out, Entry{Name: name, Kind: "routine", Source: page, Anchor: h.Anchor})
		}
	}
	return out
}

// TitleSymbol strips a leading kind word from a page title.
func TitleSymbol(title string) string {
	fields := strings.Fields(title)
	if len(fields) > 1 && titleKinds[strings.ToLower(fields[0])] {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}

// RoutineSymbol returns the routine declared by a heading such as
// "method new" or "multi sub infix:<+>", or "" if the heading declares
// none. Kind words are lowercase; "Sub signatures" is prose.
func RoutineSymbol(heading string) string {
	fields := strings.Fields(heading)
	if len(fields) < 2 || !routineKinds[fields[0]] {
		return ""
	}
	for len(fields) > 1 && routineKinds[fields[0]] {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}
