package parser

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/dgallion1/podsite/internal/diag"
	"github.com/dgallion1/podsite/internal/doctree"
)

// PodParser handles Pod6 documentation sources (.rakudoc, .pod6, .pod).
type PodParser struct{}

// openBlock is an entry of the =begin/=end stack.
type openBlock struct {
	name   string
	line   int
	indent int
	config map[string]string
	node   *doctree.Node // container receiving children, nil for pod/nested
}

// pending is the paragraph or abbreviated block being accumulated.
type pending struct {
	block  string // "" for an ordinary paragraph, "implicit-code" for indented text
	level  int
	config map[string]string
	line   int
	lines  []string
	abbrev bool // first line came from the directive itself
}

type podState struct {
	file  string
	tree  *doctree.Tree
	stack []openBlock

	cur *pending

	// verbatim capture for =begin code/comment/input/output/table
	verbatim     *openBlock
	verbatimBody []string

	sawMeta bool
}

func (p *PodParser) Parse(r io.Reader, filename string) (*doctree.Tree, error) {
	st := &podState{
		file: filename,
		tree: doctree.NewTree(filename, doctree.Meta{}),
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := st.line(lineNo, strings.TrimRight(scanner.Text(), "\r")); err != nil {
			return nil, err
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	if err := st.finish(); err != nil {
		return nil, err
	}

	if st.tree.Title == "" {
		st.tree.Title = titleFromFilename(filename)
	}
	st.tree.Index()
	return st.tree, nil
}

func (st *podState) errorf(line int, dir, format string, args ...any) error {
	return &diag.MarkupError{File: st.file, Line: line, Directive: dir, Msg: fmt.Sprintf(format, args...)}
}

// container returns the node new blocks are appended to.
func (st *podState) container() *doctree.Node {
	for i := len(st.stack) - 1; i >= 0; i-- {
		if st.stack[i].node != nil {
			return st.stack[i].node
		}
	}
	return st.tree.Root
}

func (st *podState) line(n int, text string) error {
	if st.verbatim != nil {
		if d, ok := parseDirective(text); ok && d.name == "end" && d.block == st.verbatim.name {
			return st.closeVerbatim()
		}
		st.verbatimBody = append(st.verbatimBody, text)
		return nil
	}

	if d, ok := parseDirective(text); ok {
		// A directive ends the running paragraph. Indented "=" lines
		// inside an implicit code block are part of the code.
		if st.cur == nil || st.cur.block != "implicit-code" || !st.indented(text) {
			if err := st.flush(); err != nil {
				return err
			}
			return st.directive(n, d)
		}
	}

	if strings.TrimSpace(text) == "" {
		return st.flush()
	}

	if st.cur == nil {
		st.cur = &pending{line: n}
		if st.indented(text) {
			st.cur.block = "implicit-code"
		}
	}
	st.cur.lines = append(st.cur.lines, text)
	return nil
}

func (st *podState) directive(n int, d directive) error {
	raw := "=" + d.name
	if d.name == "begin" || d.name == "end" || d.name == "for" {
		raw += " " + d.block
		if d.block == "" {
			return st.errorf(n, "="+d.name, "missing block name")
		}
	}

	switch d.name {
	case "config":
		return nil

	case "begin":
		if !knownBlock(d.base, d.level) {
			return st.errorf(n, raw, "unrecognized directive")
		}
		cfg := parseConfig(d.rest)
		ob := openBlock{name: d.block, line: n, indent: d.indent, config: cfg}
		if d.block == "pod" && !st.sawMeta {
			st.tree.Meta = metaFromConfig(cfg)
			st.sawMeta = true
		}
		if verbatimBlocks[d.block] || d.base == "head" || d.block == "TITLE" || d.block == "SUBTITLE" {
			st.verbatim = &ob
			st.verbatimBody = nil
			return nil
		}
		switch d.base {
		case "item":
			item := &doctree.Node{Kind: doctree.KindItem, Line: n, Level: max(d.level, 1)}
			st.listFor(doctree.KindList).Append(item)
			ob.node = item
		case "defn":
			def := &doctree.Node{Kind: doctree.KindDefinition, Line: n}
			st.listFor(doctree.KindDefinitionList).Append(def)
			ob.node = def
		}
		st.stack = append(st.stack, ob)
		return nil

	case "end":
		if len(st.stack) == 0 {
			return st.errorf(n, raw, "unmatched directive")
		}
		top := st.stack[len(st.stack)-1]
		if top.name != d.block {
			return st.errorf(n, raw, "unmatched directive (open block %q from line %d)", top.name, top.line)
		}
		st.stack = st.stack[:len(st.stack)-1]
		if top.node != nil && top.node.Kind == doctree.KindDefinition {
			splitDefinitionTerm(top.node)
		}
		return nil

	case "for":
		if !knownBlock(d.base, d.level) {
			return st.errorf(n, raw, "unrecognized directive")
		}
		st.cur = &pending{block: d.block, level: d.level, config: parseConfig(d.rest), line: n}
		return nil
	}

	if pod5Directives[d.name] {
		return st.errorf(n, raw, "Pod5 directive, only Pod6 sources are supported")
	}
	if !knownBlock(d.base, d.level) || d.block == "pod" {
		return st.errorf(n, raw, "unrecognized directive")
	}
	// Abbreviated block: the directive's remaining text is the first line.
	st.cur = &pending{block: d.block, level: d.level, line: n}
	if d.rest != "" {
		st.cur.lines = []string{d.rest}
		st.cur.abbrev = true
	}
	return nil
}

// flush turns the pending paragraph into nodes.
func (st *podState) flush() error {
	p := st.cur
	st.cur = nil
	if p == nil {
		return nil
	}
	base, level := splitLevel(p.block)
	if p.level > 0 {
		level = p.level
	}
	switch base {
	case "comment":
		return nil
	case "implicit-code":
		st.container().Append(&doctree.Node{Kind: doctree.KindCodeBlock, Line: p.line, Text: dedent(p.lines)})
		return nil
	case "code", "input", "output":
		line := p.line + 1
		if p.abbrev {
			line = p.line
		}
		st.container().Append(codeNode(base, p.config, line, p.lines))
		return nil
	case "table":
		st.container().Append(tableNode(p.config, p.line, p.lines))
		return nil
	}

	inline, err := parseInline(st.file, strings.Join(p.lines, "\n"), p.line)
	if err != nil {
		return err
	}
	switch base {
	case "head":
		st.container().Append(&doctree.Node{Kind: doctree.KindHeading, Line: p.line, Level: max(level, 1), Children: inline})
	case "TITLE":
		st.tree.Title = doctree.PlainText(inline)
	case "SUBTITLE":
		st.tree.Subtitle = doctree.PlainText(inline)
	case "item":
		item := &doctree.Node{Kind: doctree.KindItem, Line: p.line, Level: max(level, 1)}
		item.Append(&doctree.Node{Kind: doctree.KindParagraph, Line: p.line, Children: inline})
		st.listFor(doctree.KindList).Append(item)
	case "defn":
		term, body := "", p.lines
		if len(body) > 0 {
			term, body = strings.TrimSpace(body[0]), body[1:]
		}
		def := &doctree.Node{Kind: doctree.KindDefinition, Line: p.line, Text: term}
		if len(body) > 0 {
			bodyInline, err := parseInline(st.file, strings.Join(body, "\n"), p.line+1)
			if err != nil {
				return err
			}
			def.Append(&doctree.Node{Kind: doctree.KindParagraph, Line: p.line + 1, Children: bodyInline})
		}
		st.listFor(doctree.KindDefinitionList).Append(def)
	default:
		if len(inline) > 0 {
			st.container().Append(&doctree.Node{Kind: doctree.KindParagraph, Line: p.line, Children: inline})
		}
	}
	return nil
}

// listFor returns the List or DefinitionList that a new item or
// definition joins: the container's last child if it has that kind,
// otherwise a new one.
func (st *podState) listFor(kind doctree.Kind) *doctree.Node {
	c := st.container()
	if k := len(c.Children); k > 0 && c.Children[k-1].Kind == kind {
		return c.Children[k-1]
	}
	list := &doctree.Node{Kind: kind}
	c.Append(list)
	return list
}

func (st *podState) closeVerbatim() error {
	ob := st.verbatim
	body := st.verbatimBody
	st.verbatim, st.verbatimBody = nil, nil

	base, level := splitLevel(ob.name)
	switch base {
	case "comment":
	case "code", "input", "output":
		st.container().Append(codeNode(base, ob.config, ob.line+1, body))
	case "table":
		st.container().Append(tableNode(ob.config, ob.line, body))
	default:
		// =begin headN / TITLE / SUBTITLE: the body is the text.
		st.cur = &pending{block: ob.name, level: level, line: ob.line + 1, lines: nonBlank(body)}
		return st.flush()
	}
	return nil
}

func (st *podState) finish() error {
	if st.verbatim != nil {
		return st.errorf(st.verbatim.line, "=begin "+st.verbatim.name, "unterminated block")
	}
	if err := st.flush(); err != nil {
		return err
	}
	if len(st.stack) > 0 {
		top := st.stack[len(st.stack)-1]
		return st.errorf(top.line, "=begin "+top.name, "unterminated block")
	}
	return nil
}

// codeNode builds a code block whose body starts on source line line.
func codeNode(block string, cfg map[string]string, line int, lines []string) *doctree.Node {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			break
		}
		line++
	}
	n := &doctree.Node{Kind: doctree.KindCodeBlock, Line: line, Text: dedent(lines), Config: cfg}
	if cfg != nil {
		n.Lang = cfg["lang"]
	}
	if block != "code" {
		if n.Config == nil {
			n.Config = make(map[string]string)
		}
		n.Config["block"] = block
	}
	return n
}

// splitDefinitionTerm takes the term of a =begin defn block from the
// first line of its first paragraph.
func splitDefinitionTerm(def *doctree.Node) {
	if len(def.Children) == 0 || def.Children[0].Kind != doctree.KindParagraph {
		return
	}
	para := def.Children[0]
	if len(para.Children) == 0 || para.Children[0].Kind != doctree.KindText {
		return
	}
	first := para.Children[0]
	term, rest, _ := strings.Cut(first.Text, "\n")
	def.Text = strings.TrimSpace(term)
	first.Text = rest
	if rest == "" {
		para.Children = para.Children[1:]
	}
	if len(para.Children) == 0 {
		def.Children = def.Children[1:]
	}
}

var (
	tableSeparator = regexp.MustCompile(`^[\s|+=_-]*[=_-][\s|+=_-]*$`)
	columnGap      = regexp.MustCompile(`\s{2,}`)
)

func tableNode(cfg map[string]string, line int, lines []string) *doctree.Node {
	n := &doctree.Node{Kind: doctree.KindTable, Line: line, Config: cfg}
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if tableSeparator.MatchString(l) {
			if len(n.Rows) == 1 {
				n.Header = true
			}
			continue
		}
		n.Rows = append(n.Rows, splitRow(l))
	}
	return n
}

func splitRow(l string) []string {
	l = strings.TrimSpace(l)
	var cells []string
	if strings.Contains(l, "|") {
		cells = strings.Split(strings.Trim(l, "|"), "|")
	} else {
		cells = columnGap.Split(l, -1)
	}
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

// dedent removes the indentation common to all non-blank lines and trims
// leading and trailing blank lines.
func dedent(lines []string) string {
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	common := -1
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		ind := len(l) - len(strings.TrimLeft(l, " \t"))
		if common < 0 || ind < common {
			common = ind
		}
	}
	var buf bytes.Buffer
	for i, l := range lines {
		if i > 0 {
			buf.WriteByte('\n')
		}
		if len(l) >= common && common > 0 {
			l = l[common:]
		}
		buf.WriteString(strings.TrimRight(l, " \t"))
	}
	return buf.String()
}

// indented reports whether s is indented further than the innermost
// =begin directive, which makes it implicit code.
func (st *podState) indented(s string) bool {
	base := 0
	if k := len(st.stack); k > 0 {
		base = st.stack[k-1].indent
	}
	return len(s)-len(strings.TrimLeft(s, " \t")) > base
}

func nonBlank(lines []string) []string {
	out := lines[:0:0]
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, strings.TrimSpace(l))
		}
	}
	return out
}
