package dsl

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/DeusData/gradle-model-mcp/internal/lang"
)

// defaultIndent is used when a file has no indented line to learn from.
const defaultIndent = "    "

// ErrEditConflict is returned when two pending edits touch the same bytes.
var ErrEditConflict = errors.New("dsl: overlapping edits")

// edit replaces source[start:end] with text.
type edit struct {
	start, end int
	text       string
}

// writer collects the text edits that realise a file's pending changes.
type writer struct {
	f     *File
	src   string
	unit  string
	edits []edit
	err   error
}

func newWriter(f *File) *writer {
	unit := f.IndentUnit
	if unit == "" {
		unit = detectIndent(f.source)
	}
	return &writer{f: f, src: f.source, unit: unit}
}

// Text returns the file's source with pending edits applied. Regions the
// edits do not touch are returned byte for byte.
func (f *File) Text() string {
	text, _ := f.Render()
	return text
}

// Render is Text that also reports edits it could not place. On
// ErrEditConflict the returned text lacks the conflicting edits.
func (f *File) Render() (string, error) {
	if f.root == nil {
		return f.source, nil
	}
	w := newWriter(f)
	w.statements(f.root)
	text := w.apply(0, len(w.src), w.edits)
	if w.err != nil {
		return text, fmt.Errorf("render %s: %w", f.Path, w.err)
	}
	return text, nil
}

// apply splices edits into src[start:end]. Insertions sort ahead of
// replacements that begin at the same offset.
func (w *writer) apply(start, end int, edits []edit) string {
	sort.SliceStable(edits, func(i, j int) bool {
		a, b := edits[i], edits[j]
		if a.start != b.start {
			return a.start < b.start
		}
		return a.end == a.start && b.end > b.start
	})
	var b strings.Builder
	cur := start
	for _, e := range edits {
		if e.start < cur || e.end > end {
			if w.err == nil {
				w.err = ErrEditConflict
			}
			continue
		}
		b.WriteString(w.src[cur:e.start])
		b.WriteString(e.text)
		cur = e.end
	}
	b.WriteString(w.src[cur:end])
	return b.String()
}

// textOf returns the statement text of an existing element with its own
// pending edits applied.
func (w *writer) textOf(e *Element) string {
	sub := &writer{f: w.f, src: w.src, unit: w.unit}
	sub.element(e)
	text := sub.apply(e.src.Stmt.Start, e.src.Stmt.End, sub.edits)
	if sub.err != nil && w.err == nil {
		w.err = sub.err
	}
	return text
}

func (w *writer) add(start, end int, text string) {
	w.edits = append(w.edits, edit{start: start, end: end, text: text})
}

// element records the edits inside an existing, non-removed element.
func (w *writer) element(e *Element) {
	switch e.Kind {
	case KindLiteral:
		if e.modified {
			w.add(e.src.Value.Start, e.src.Value.End, w.renderValue(e.Value))
		}
	case KindBlock:
		w.statements(e)
	default:
		w.commaList(e)
	}
	w.chain(e)
}

func (w *writer) chain(e *Element) {
	for _, c := range e.Chain {
		switch {
		case c.state == StateToBeAdded:
			w.add(e.src.Stmt.End, e.src.Stmt.End, " "+c.Name+" "+w.renderValue(c.Value))
		case c.state == StateToBeRemoved:
			start := c.src.Stmt.Start
			for start > 0 && (w.src[start-1] == ' ' || w.src[start-1] == '\t') {
				start--
			}
			w.add(start, c.src.Stmt.End, "")
		case c.modified:
			w.add(c.src.Value.Start, c.src.Value.End, w.renderValue(c.Value))
		}
	}
}

// vanishes reports whether a parenthesis-free call lost all its arguments,
// in which case the whole statement goes.
func vanishes(e *Element) bool {
	if e.Kind == KindLiteral || e.Kind == KindBlock || e.src == nil || e.src.Open >= 0 {
		return false
	}
	return len(e.children) > 0 && len(e.Children()) == 0
}

// statements handles a newline-separated container: the file root or a
// block body.
func (w *writer) statements(c *Element) {
	if w.inline(c) && restructured(c) {
		w.inlineBody(c)
		return
	}
	indent := w.childIndent(c)
	at := -1
	var pending []*Element
	flush := func() {
		if len(pending) > 0 {
			w.insertStatements(c, at, pending, indent)
			pending = nil
		}
	}
	for _, ch := range c.children {
		switch {
		case ch.IsReadOnly():
			continue
		case ch.src == nil:
			pending = append(pending, ch)
		case ch.state == StateToBeRemoved || vanishes(ch):
			flush()
			at = w.removeStatement(ch)
		default:
			flush()
			w.element(ch)
			at = ch.src.Stmt.End
		}
	}
	flush()
}

// inline reports whether c is a block written on one line that already
// holds statements, like `repositories { jcenter() }`.
func (w *writer) inline(c *Element) bool {
	if c.src == nil || c.src.Open < 0 || strings.Contains(w.src[c.src.Open:c.src.Close], "\n") {
		return false
	}
	for _, ch := range c.children {
		if !ch.IsReadOnly() && ch.src != nil {
			return true
		}
	}
	return false
}

// restructured reports whether statements were added to or removed from c.
func restructured(c *Element) bool {
	for _, ch := range c.children {
		if ch.IsReadOnly() {
			continue
		}
		if ch.src == nil || ch.state == StateToBeRemoved || vanishes(ch) {
			return true
		}
	}
	return false
}

// inlineBody regenerates the body of a one-line block whose statements
// changed. A new statement spanning lines expands the block onto one line
// per statement.
func (w *writer) inlineBody(c *Element) {
	indent := w.childIndent(c)
	var items []string
	multiline := false
	for _, ch := range c.children {
		switch {
		case ch.IsReadOnly(), ch.state == StateToBeRemoved, vanishes(ch):
		case ch.src == nil:
			r := w.render(ch, indent)
			multiline = multiline || strings.Contains(r, "\n")
			items = append(items, r)
		default:
			items = append(items, w.textOf(ch))
		}
	}
	open, closePos := c.src.Open, c.src.Close
	switch {
	case len(items) == 0:
		w.add(open+1, closePos, " ")
	case multiline:
		var b strings.Builder
		b.WriteByte('\n')
		for _, it := range items {
			b.WriteString(indent + it + "\n")
		}
		b.WriteString(lineIndent(w.src, open))
		w.add(open+1, closePos, b.String())
	default:
		w.add(open+1, closePos, " "+strings.Join(items, "; ")+" ")
	}
}

// insertStatements adds pending after offset at, the end of the previous
// statement or the start of its removed text. at < 0 means the top of c.
func (w *writer) insertStatements(c *Element, at int, pending []*Element, indent string) {
	rendered := make([]string, len(pending))
	for i, p := range pending {
		rendered[i] = w.render(p, indent)
	}
	lines := func() string {
		var b strings.Builder
		for _, r := range rendered {
			b.WriteString(indent)
			b.WriteString(r)
			b.WriteByte('\n')
		}
		return b.String()
	}

	if at < 0 {
		if c.src == nil {
			w.add(0, 0, lines())
			return
		}
		open, closePos := c.src.Open, c.src.Close
		if !strings.Contains(w.src[open:closePos], "\n") {
			w.add(open+1, closePos, "\n"+lines()+lineIndent(w.src, open))
			return
		}
		nl := strings.IndexByte(w.src[open:], '\n') + open
		w.add(nl+1, nl+1, lines())
		return
	}

	lineStart := strings.LastIndexByte(w.src[:at], '\n') + 1
	atLineStart := strings.TrimSpace(w.src[lineStart:at]) == ""
	nl := strings.IndexByte(w.src[at:], '\n')
	if c.src != nil && c.src.Close >= at && (nl < 0 || c.src.Close < at+nl) {
		// the last statement shares its line with the closing brace
		if atLineStart {
			w.add(at, at, strings.Join(rendered, "; ")+" ")
		} else {
			w.add(at, at, "; "+strings.Join(rendered, "; "))
		}
		return
	}
	if nl < 0 {
		text := strings.TrimSuffix(lines(), "\n")
		if atLineStart && lineStart == at {
			w.add(at, at, text)
			return
		}
		w.add(len(w.src), len(w.src), "\n"+text)
		return
	}
	w.add(at+nl+1, at+nl+1, lines())
}

// removeStatement deletes a statement, taking its whole line when nothing
// else shares it. It returns the offset where the removed text began.
func (w *writer) removeStatement(e *Element) int {
	start, end := e.src.Stmt.Start, e.src.Stmt.End
	lineStart := strings.LastIndexByte(w.src[:start], '\n') + 1
	ownLine := strings.TrimSpace(w.src[lineStart:start]) == ""

	i := end
	for i < len(w.src) && (w.src[i] == ' ' || w.src[i] == '\t' || w.src[i] == ';' || w.src[i] == '\r') {
		i++
	}
	if strings.HasPrefix(w.src[i:], "//") {
		for i < len(w.src) && w.src[i] != '\n' {
			i++
		}
	}
	atLineEnd := i == len(w.src) || w.src[i] == '\n'

	if ownLine && atLineEnd {
		if i < len(w.src) {
			i++
		}
		w.add(lineStart, i, "")
		return lineStart
	}
	// shares its line: drop the statement and the separator after it
	j := end
	for j < len(w.src) && (w.src[j] == ' ' || w.src[j] == '\t' || w.src[j] == ';') {
		j++
	}
	w.add(start, j, "")
	return start
}

// commaList handles lists, maps and call arguments. Any added or removed
// item regenerates the argument region; untouched items keep their text.
func (w *writer) commaList(c *Element) {
	changed := false
	for _, ch := range c.children {
		if ch.src == nil || ch.state == StateToBeRemoved {
			changed = true
			break
		}
	}
	if !changed {
		for _, ch := range c.children {
			w.element(ch)
		}
		return
	}

	var region Range
	if c.src.Open >= 0 {
		region = Range{c.src.Open + 1, c.src.Close}
	} else {
		region = c.src.Value
	}

	var original []*Element
	for _, ch := range c.children {
		if ch.src != nil {
			original = append(original, ch)
		}
	}
	prefix, suffix, sep := "", "", ", "
	if len(original) > 0 {
		prefix = w.src[region.Start:original[0].src.Stmt.Start]
		suffix = w.src[original[len(original)-1].src.Stmt.End:region.End]
	}
	if len(original) > 1 {
		sep = w.src[original[0].src.Stmt.End:original[1].src.Stmt.Start]
	}

	var items []string
	for _, ch := range c.children {
		switch {
		case ch.state == StateToBeRemoved:
		case ch.src == nil:
			items = append(items, w.renderArg(ch))
		default:
			items = append(items, w.textOf(ch))
		}
	}
	w.add(region.Start, region.End, prefix+strings.Join(items, sep)+suffix)
}

// childIndent is the indentation of statements inside c.
func (w *writer) childIndent(c *Element) string {
	if c.src == nil {
		if c.parent == nil {
			return ""
		}
		return w.unit
	}
	for _, ch := range c.children {
		if ch.src == nil {
			continue
		}
		if strings.Contains(w.src[c.src.Open:ch.src.Stmt.Start], "\n") {
			return lineIndent(w.src, ch.src.Stmt.Start)
		}
	}
	return lineIndent(w.src, c.src.Open) + w.unit
}

// detectIndent returns the smallest indentation found in src.
func detectIndent(src string) string {
	best := ""
	for _, line := range strings.Split(src, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == '\t' {
			return "\t"
		}
		n := len(line) - len(strings.TrimLeft(line, " "))
		if n > 0 && (best == "" || n < len(best)) {
			best = line[:n]
		}
	}
	if best == "" {
		return defaultIndent
	}
	return best
}

func (w *writer) spec() *lang.LanguageSpec {
	if s := lang.ForLanguage(w.f.Language); s != nil {
		return s
	}
	return lang.ForLanguage(lang.Groovy)
}

func (w *writer) kotlin() bool { return w.f.Language == lang.Kotlin }

// render returns the statement text of a new element. indent is the
// indentation of the line the statement starts on.
func (w *writer) render(e *Element, indent string) string {
	if e.src != nil {
		return w.textOf(e)
	}
	if w.f.Language == lang.Properties {
		return e.Name + "=" + w.renderValue(e.Value)
	}

	var s string
	switch e.Kind {
	case KindLiteral:
		s = w.renderLiteral(e)
	case KindBlock:
		s = w.renderBlock(e, indent)
	case KindList:
		s = w.named(e, w.renderList(e))
	case KindMap:
		if e.Syntax == SyntaxApplication {
			if w.kotlin() {
				s = e.Name + "(" + w.joinArgs(e) + ")"
			} else {
				s = e.Name + " " + w.joinArgs(e)
			}
		} else {
			s = w.named(e, w.renderMap(e))
		}
	case KindMethodCall:
		s = w.renderCall(e)
	}
	return s + w.renderChain(e)
}

// named prefixes a value with its name in the element's syntax.
func (w *writer) named(e *Element, value string) string {
	switch e.Syntax {
	case SyntaxVariable:
		return w.spec().VariableKeyword + " " + e.Name + " = " + value
	case SyntaxApplication:
		if w.kotlin() {
			return e.Name + "(" + value + ")"
		}
		return e.Name + " " + value
	case SyntaxCall:
		return e.Name + "(" + value + ")"
	case SyntaxEntry:
		return e.Name + w.spec().NamedArgSeparator + " " + value
	case SyntaxArgument:
		return value
	default:
		if key, ok := strings.CutPrefix(e.Name, "extra."); ok && w.kotlin() {
			return "extra[" + quote(key, '"') + "] = " + value
		}
		return e.Name + " = " + value
	}
}

func (w *writer) renderLiteral(e *Element) string {
	if e.Syntax == SyntaxStatement {
		return e.Value.Raw
	}
	if e.Value.Type == ValueNone {
		return e.Name
	}
	return w.named(e, w.renderValue(e.Value))
}

func (w *writer) renderBlock(e *Element, indent string) string {
	var b strings.Builder
	b.WriteString(e.Name)
	if len(e.Args) > 0 {
		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = w.renderArg(a)
		}
		b.WriteString("(" + strings.Join(args, ", ") + ")")
	}
	b.WriteString(" {\n")
	inner := indent + w.unit
	for _, c := range e.Children() {
		if c.IsReadOnly() {
			continue
		}
		b.WriteString(inner)
		b.WriteString(w.render(c, inner))
		b.WriteByte('\n')
	}
	b.WriteString(indent + "}")
	return b.String()
}

func (w *writer) renderCall(e *Element) string {
	switch e.Syntax {
	case SyntaxCall, SyntaxArgument:
		return e.Name + "(" + w.joinArgs(e) + ")"
	case SyntaxApplication:
		if w.kotlin() || len(e.Children()) == 0 {
			return e.Name + "(" + w.joinArgs(e) + ")"
		}
		return e.Name + " " + w.joinArgs(e)
	}
	// named wrapper around a call value
	return w.named(e, w.joinArgs(e))
}

func (w *writer) renderList(e *Element) string {
	if w.kotlin() {
		return "listOf(" + w.joinArgs(e) + ")"
	}
	return "[" + w.joinArgs(e) + "]"
}

func (w *writer) renderMap(e *Element) string {
	if w.kotlin() {
		var parts []string
		for _, c := range e.Children() {
			parts = append(parts, quote(c.Name, '"')+" to "+w.renderArgValue(c))
		}
		return "mapOf(" + strings.Join(parts, ", ") + ")"
	}
	if len(e.Children()) == 0 {
		return "[:]"
	}
	return "[" + w.joinArgs(e) + "]"
}

func (w *writer) joinArgs(e *Element) string {
	var parts []string
	for _, c := range e.Children() {
		parts = append(parts, w.renderArg(c))
	}
	return strings.Join(parts, ", ")
}

// renderArg renders an element in argument position: a value, or
// `name: value` for entries.
func (w *writer) renderArg(e *Element) string {
	if e.src != nil {
		return w.textOf(e)
	}
	v := w.renderArgValue(e)
	if e.Syntax == SyntaxEntry {
		return e.Name + w.spec().NamedArgSeparator + " " + v
	}
	return v
}

func (w *writer) renderArgValue(e *Element) string {
	switch e.Kind {
	case KindList:
		return w.renderList(e)
	case KindMap:
		return w.renderMap(e)
	case KindMethodCall:
		if e.Syntax == SyntaxEntry || e.Syntax == SyntaxAssignment {
			return w.joinArgs(e)
		}
		return e.Name + "(" + w.joinArgs(e) + ")"
	case KindBlock:
		return w.renderBlock(e, "")
	}
	if e.Value.Type == ValueNone {
		return e.Name
	}
	return w.renderValue(e.Value)
}

func (w *writer) renderChain(e *Element) string {
	var b strings.Builder
	for _, c := range e.Chain {
		if c.state == StateToBeRemoved {
			continue
		}
		b.WriteString(" " + c.Name + " " + w.renderValue(c.Value))
	}
	return b.String()
}

// renderValue returns the source text of a value in the file's dialect.
func (w *writer) renderValue(v Value) string {
	if w.f.Language == lang.Properties {
		if v.Raw != "" {
			return v.Raw
		}
		return escapeProperty(v.Text)
	}
	if v.Raw != "" {
		return v.Raw
	}
	switch v.Type {
	case ValueString:
		return quote(v.Text, w.spec().StringQuote)
	case ValueInterpolated:
		return `"` + v.Text + `"`
	case ValueNull:
		return "null"
	}
	return v.Text
}

// quote renders s as a string literal. Double-quoted strings escape '$' so
// that Groovy and Kotlin do not treat it as a template.
func quote(s string, q byte) string {
	var b strings.Builder
	b.WriteByte(q)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\\':
			b.WriteString(`\\`)
		case c == q:
			b.WriteByte('\\')
			b.WriteByte(c)
		case c == '\n':
			b.WriteString(`\n`)
		case c == '\t':
			b.WriteString(`\t`)
		case c == '$' && q == '"':
			b.WriteString(`\$`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte(q)
	return b.String()
}
