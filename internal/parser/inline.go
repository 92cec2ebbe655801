package parser

import (
	"errors"
	"strconv"
	"strings"

	"github.com/dgallion1/podsite/internal/diag"
	"github.com/dgallion1/podsite/internal/doctree"
	"golang.org/x/net/html"
)

// codeLetters are the formatting codes recognised in running text.
const codeLetters = "BCEIKLNRTUVXZ"

var errUnterminated = errors.New("unterminated")

// inlineParser turns paragraph text into Text, Format and Link nodes.
type inlineParser struct {
	file string
	s    string
	pos  int
	base int // source line of s[0]
}

// parseInline parses s, whose first character sits on source line line.
func parseInline(file, s string, line int) ([]*doctree.Node, error) {
	ip := &inlineParser{file: file, s: s, base: line}
	nodes, _, err := ip.parseUntil("", "", false)
	return nodes, err
}

func (ip *inlineParser) lineAt(pos int) int {
	return ip.base + strings.Count(ip.s[:pos], "\n")
}

// openAt reports whether a formatting code starts at pos and returns its
// letter and delimiters.
func (ip *inlineParser) openAt(pos int) (byte, string, string, bool) {
	s := ip.s
	if pos+1 >= len(s) || strings.IndexByte(codeLetters, s[pos]) < 0 {
		return 0, "", "", false
	}
	if pos > 0 && isWordByte(s[pos-1]) {
		return 0, "", "", false
	}
	rest := s[pos+1:]
	switch {
	case strings.HasPrefix(rest, "<<"):
		return s[pos], "<<", ">>", true
	case strings.HasPrefix(rest, "<"):
		return s[pos], "<", ">", true
	case strings.HasPrefix(rest, "«"):
		return s[pos], "«", "»", true
	}
	return 0, "", "", false
}

func isWordByte(b byte) bool {
	return b == '_' || isLetter(b) || b >= '0' && b <= '9'
}

// parseUntil parses nodes up to the closing delimiter (or end of input
// when close is empty). Unmatched opening delimiters inside the code nest
// as literal text. With stopAtBar, a top-level '|' also ends the run and
// hitBar is reported.
func (ip *inlineParser) parseUntil(open, close string, stopAtBar bool) (nodes []*doctree.Node, hitBar bool, err error) {
	var text strings.Builder
	textStart := ip.pos
	lit := func(s string) {
		if text.Len() == 0 {
			textStart = ip.pos
		}
		text.WriteString(s)
		ip.pos += len(s)
	}
	flush := func() {
		if text.Len() > 0 {
			nodes = append(nodes, &doctree.Node{Kind: doctree.KindText, Text: text.String(), Line: ip.lineAt(textStart)})
			text.Reset()
		}
	}

	depth := 0
	for ip.pos < len(ip.s) {
		rest := ip.s[ip.pos:]
		if close != "" && depth == 0 && strings.HasPrefix(rest, close) {
			flush()
			ip.pos += len(close)
			return nodes, false, nil
		}
		if stopAtBar && depth == 0 && rest[0] == '|' {
			flush()
			ip.pos++
			return nodes, true, nil
		}
		if letter, o, c, ok := ip.openAt(ip.pos); ok {
			flush()
			n, err := ip.parseCode(letter, o, c)
			if err != nil {
				return nil, false, err
			}
			nodes = append(nodes, n)
			continue
		}
		if close != "" {
			if strings.HasPrefix(rest, open) {
				depth++
				lit(open)
				continue
			}
			if strings.HasPrefix(rest, close) {
				depth--
				lit(close)
				continue
			}
		}
		lit(rest[:1])
	}
	flush()
	if close != "" {
		return nil, false, errUnterminated
	}
	return nodes, false, nil
}

// rawUntil returns the literal text up to the closing delimiter, keeping
// balanced inner delimiters.
func (ip *inlineParser) rawUntil(open, close string) (string, error) {
	start := ip.pos
	depth := 0
	for ip.pos < len(ip.s) {
		rest := ip.s[ip.pos:]
		switch {
		case strings.HasPrefix(rest, close):
			if depth == 0 {
				body := ip.s[start:ip.pos]
				ip.pos += len(close)
				return body, nil
			}
			depth--
			ip.pos += len(close)
		case strings.HasPrefix(rest, open):
			depth++
			ip.pos += len(open)
		default:
			ip.pos++
		}
	}
	return "", errUnterminated
}

func (ip *inlineParser) parseCode(letter byte, open, close string) (*doctree.Node, error) {
	line := ip.lineAt(ip.pos)
	ip.pos += 1 + len(open)
	unterminated := func() error {
		return &diag.MarkupError{
			File:      ip.file,
			Line:      line,
			Directive: string(letter) + open,
			Msg:       "unterminated formatting code",
		}
	}

	switch letter {
	case 'C', 'V':
		// Code and verbatim text are not scanned for nested codes.
		body, err := ip.rawUntil(open, close)
		if err != nil {
			return nil, unterminated()
		}
		text := &doctree.Node{Kind: doctree.KindText, Text: body, Line: line}
		if letter == 'V' {
			return text, nil
		}
		return &doctree.Node{Kind: doctree.KindFormat, Format: 'C', Line: line, Children: []*doctree.Node{text}}, nil

	case 'L', 'X':
		children, bar, err := ip.parseUntil(open, close, true)
		if err != nil {
			return nil, unterminated()
		}
		var after string
		if bar {
			if after, err = ip.rawUntil(open, close); err != nil {
				return nil, unterminated()
			}
		}
		if letter == 'X' {
			return &doctree.Node{Kind: doctree.KindFormat, Format: 'X', Line: line, Target: strings.TrimSpace(after), Children: children}, nil
		}
		target := strings.TrimSpace(after)
		if !bar {
			target = doctree.PlainText(children)
		}
		return newLink(children, target, line), nil

	case 'E':
		body, err := ip.rawUntil(open, close)
		if err != nil {
			return nil, unterminated()
		}
		return &doctree.Node{Kind: doctree.KindText, Text: decodeEntities(body), Line: line}, nil

	default:
		children, _, err := ip.parseUntil(open, close, false)
		if err != nil {
			return nil, unterminated()
		}
		return &doctree.Node{Kind: doctree.KindFormat, Format: letter, Line: line, Children: children}, nil
	}
}

func newLink(children []*doctree.Node, target string, line int) *doctree.Node {
	if len(children) == 0 {
		children = []*doctree.Node{{Kind: doctree.KindText, Text: target, Line: line}}
	}
	n := &doctree.Node{Kind: doctree.KindLink, Line: line, Target: target, Children: children}
	if strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:") {
		n.URL = target
	}
	return n
}

// decodeEntities expands the body of an E<> code: semicolon-separated
// numeric code points (decimal, 0x, 0o, 0b) or HTML entity names.
func decodeEntities(body string) string {
	var sb strings.Builder
	for _, part := range strings.Split(body, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if r, ok := parseCodePoint(part); ok {
			sb.WriteRune(r)
			continue
		}
		ent := "&" + part + ";"
		if dec := html.UnescapeString(ent); dec != ent {
			sb.WriteString(dec)
			continue
		}
		sb.WriteString("E<" + part + ">")
	}
	return sb.String()
}

func parseCodePoint(s string) (rune, bool) {
	base := 10
	switch {
	case strings.HasPrefix(s, "0x"):
		base, s = 16, s[2:]
	case strings.HasPrefix(s, "0o"):
		base, s = 8, s[2:]
	case strings.HasPrefix(s, "0b"):
		base, s = 2, s[2:]
	}
	n, err := strconv.ParseInt(s, base, 32)
	if err != nil || n < 0 {
		return 0, false
	}
	return rune(n), true
}
