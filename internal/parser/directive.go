package parser

import (
	"strconv"
	"strings"
)

// directive is one `=name ...` line.
type directive struct {
	name  string // begin, end, for, config, or an abbreviated block name
	block string // block name for begin/end/for; same as name otherwise
	base  string // block name without a numeric level suffix
	level int    // level of headN / itemN, 0 when absent
	rest  string // text after the name (and block name)

	indent int // leading whitespace before '='
}

// parseDirective recognises a line whose first non-blank character is '='
// followed by a letter. It does not check that the name is known.
func parseDirective(line string) (directive, bool) {
	s := strings.TrimLeft(line, " \t")
	if len(s) < 2 || s[0] != '=' || !isLetter(s[1]) {
		return directive{}, false
	}
	i := 1
	for i < len(s) && isNameByte(s[i]) {
		i++
	}
	d := directive{name: s[1:i], rest: strings.TrimSpace(s[i:]), indent: len(line) - len(s)}
	switch d.name {
	case "begin", "end", "for":
		end := strings.IndexAny(d.rest, " \t")
		if end < 0 {
			end = len(d.rest)
		}
		d.block = d.rest[:end]
		d.rest = strings.TrimSpace(d.rest[end:])
	default:
		d.block = d.name
	}
	d.base, d.level = splitLevel(d.block)
	return d, true
}

func isLetter(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// splitLevel separates a trailing numeric level: "head2" -> ("head", 2).
func splitLevel(name string) (string, int) {
	j := len(name)
	for j > 0 && name[j-1] >= '0' && name[j-1] <= '9' {
		j--
	}
	if j == len(name) || j == 0 {
		return name, 0
	}
	n, err := strconv.Atoi(name[j:])
	if err != nil {
		return name, 0
	}
	return name[:j], n
}

// blockNames lists the block types the parser understands, with the
// maximum numeric level each accepts.
var blockNames = map[string]int{
	"pod":      0,
	"code":     0,
	"comment":  0,
	"para":     0,
	"table":    0,
	"input":    0,
	"output":   0,
	"nested":   0,
	"item":     9,
	"defn":     0,
	"head":     6,
	"TITLE":    0,
	"SUBTITLE": 0,
}

func knownBlock(base string, level int) bool {
	max, ok := blockNames[base]
	return ok && level <= max
}

// pod5Directives appear in Perl's Pod, which shares the .pod extension.
var pod5Directives = map[string]bool{
	"pod":      true,
	"cut":      true,
	"over":     true,
	"back":     true,
	"encoding": true,
}

// verbatimBlocks keep their content literally until the matching =end.
var verbatimBlocks = map[string]bool{
	"code":    true,
	"comment": true,
	"input":   true,
	"output":  true,
	"table":   true,
}
