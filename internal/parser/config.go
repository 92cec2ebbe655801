package parser

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/dgallion1/podsite/internal/doctree"
)

// parseConfig reads Pod config pairs such as
//
//	:kind("Type") :subkind<class> :skip-test :!allow :lang['raku']
//
// Values are returned unquoted. A bare :name has the empty value and a
// negated :!name has the value "False".
func parseConfig(s string) map[string]string {
	cfg := make(map[string]string)
	i := 0
	for i < len(s) {
		if s[i] != ':' {
			i++
			continue
		}
		i++
		negated := false
		if i < len(s) && s[i] == '!' {
			negated = true
			i++
		}
		start := i
		for i < len(s) && isNameByte(s[i]) {
			i++
		}
		name := s[start:i]
		if name == "" {
			continue
		}
		if negated {
			cfg[name] = "False"
			continue
		}
		if i >= len(s) {
			cfg[name] = ""
			break
		}
		var closer byte
		switch s[i] {
		case '<':
			closer = '>'
		case '(':
			closer = ')'
		case '[':
			closer = ']'
		case '{':
			closer = '}'
		default:
			cfg[name] = ""
			continue
		}
		opener := s[i]
		depth := 1
		i++
		vstart := i
		for i < len(s) && depth > 0 {
			switch s[i] {
			case opener:
				depth++
			case closer:
				depth--
			}
			if depth > 0 {
				i++
			}
		}
		cfg[name] = unquote(strings.TrimSpace(s[vstart:i]))
		if i < len(s) {
			i++
		}
	}
	return cfg
}

func isNameByte(b byte) bool {
	return b == '-' || b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// metaFromConfig splits a config map into the well-known metadata keys and
// the rest.
func metaFromConfig(cfg map[string]string) doctree.Meta {
	m := doctree.Meta{}
	for k, v := range cfg {
		switch k {
		case "kind":
			m.Kind = v
		case "subkind":
			m.Subkind = v
		case "category":
			m.Category = v
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[k] = v
		}
	}
	return m
}

// ScanMeta returns the metadata declared by the first `=begin pod`
// directive in raw, or the zero Meta if there is none.
func ScanMeta(raw []byte) doctree.Meta {
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		d, ok := parseDirective(scanner.Text())
		if ok && d.name == "begin" && d.block == "pod" {
			return metaFromConfig(parseConfig(d.rest))
		}
	}
	return doctree.Meta{}
}
