package xref

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/dgallion1/podsite/internal/diag"
	"github.com/dgallion1/podsite/internal/doctree"
)

// linkSections are the leading path segments of site-relative targets
// whose remainder names the symbol ("/type/Map" names Map).
var linkSections = map[string]bool{
	"type":     true,
	"routine":  true,
	"language": true,
	"syntax":   true,
	"programs": true,
}

// LinkName splits a raw link target into the symbol name to look up and
// its fragment. A target that is only a fragment returns name "".
func LinkName(target string) (name, fragment string) {
	target = strings.TrimSpace(strings.TrimPrefix(target, "doc:"))
	target, fragment, _ = strings.Cut(target, "#")

	path := strings.TrimPrefix(target, "/")
	if section, rest, ok := strings.Cut(path, "/"); ok && linkSections[section] && rest != "" {
		path = rest
	}
	if u, err := url.PathUnescape(path); err == nil {
		path = u
	}
	return path, fragment
}

// Resolve rewrites every link in tree to carry its resolved targets and
// returns one UnresolvedLink diagnostic per link that matched nothing.
// External links are left alone.
func Resolve(ix *Index, tree *doctree.Tree) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, link := range tree.Links() {
		link.Targets = nil
		if link.URL != "" {
			continue
		}
		name, fragment := LinkName(link.Target)
		link.Fragment = fragment

		if name == "" {
			if fragment != "" && tree.HasAnchor(fragment) {
				link.Targets = []doctree.Target{{Source: tree.Page(), Anchor: fragment, Kind: "anchor"}}
				continue
			}
		} else {
			for _, e := range ix.Lookup(name) {
				link.Targets = append(link.Targets, e.Target())
			}
			if len(link.Targets) > 0 {
				continue
			}
		}
		out = append(out, diag.Diagnostic{
			Kind:    diag.ErrUnresolvedLink,
			File:    tree.Source,
			Line:    link.Line,
			Message: fmt.Sprintf("no symbol matches link target %q", link.Target),
		})
	}
	return out
}

// ResolveAll resolves the links of every tree and returns the sorted
// diagnostics. Trees are only read from ix, so callers may resolve
// different trees concurrently with Resolve instead.
func ResolveAll(ix *Index, trees []*doctree.Tree) []diag.Diagnostic {
	var out []diag.Diagnostic
	for _, t := range trees {
		if t != nil {
			out = append(out, Resolve(ix, t)...)
		}
	}
	diag.Sort(out)
	return out
}
