package parser

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/dgallion1/podsite/internal/doctree"
)

// Parser converts raw document bytes into a Tree. Markup errors are
// returned as *diag.MarkupError.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Tree, error)
}

// SupportedExtensions lists the source extensions handled by default.
var SupportedExtensions = map[string]bool{
	".rakudoc":  true,
	".pod6":     true,
	".pod":      true,
	".md":       true,
	".markdown": true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".rakudoc", ".pod6", ".pod":
		return &PodParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(path.Ext(filename))
	return SupportedExtensions[ext]
}

// titleFromFilename is the fallback title for sources without =TITLE.
func titleFromFilename(filename string) string {
	return path.Base(doctree.PagePath(filename))
}
