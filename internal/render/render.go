// Package render turns resolved document trees into output artifacts.
//
// Renderers are pure: the same tree always produces the same bytes. Only
// the functions in write.go touch the filesystem.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/podsite/internal/doctree"
)

// Renderer writes one artifact per document plus a site index.
type Renderer interface {
	// Ext is the file extension of rendered pages, including the dot.
	Ext() string
	Render(w io.Writer, tree *doctree.Tree) error
	RenderIndex(w io.Writer, pages []Page) error
}

// Page summarises a rendered document for the site index.
type Page struct {
	Path  string // page path, without extension
	Title string
	Kind  string
}

// Formats lists the supported output formats.
var Formats = []string{"html", "text"}

// ForFormat returns the renderer for a format name.
func ForFormat(name string) (Renderer, error) {
	switch strings.ToLower(name) {
	case "html", "":
		return HTML{}, nil
	case "text", "txt":
		return Text{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", name)
	}
}

// OutputPath returns the slash-separated output path for a page.
func OutputPath(page string, r Renderer) string {
	return page + r.Ext()
}

// PageOf builds the index entry for a tree.
func PageOf(tree *doctree.Tree) Page {
	title := tree.Title
	if title == "" {
		title = tree.Page()
	}
	return Page{Path: tree.Page(), Title: title, Kind: tree.Meta.Kind}
}

// relHref returns the link from page from to page to (both page paths)
// with an optional fragment.
func relHref(from, to, ext, fragment string) string {
	href := strings.Repeat("../", strings.Count(from, "/")) + to + ext
	if fragment != "" {
		href += "#" + fragment
	}
	return href
}
