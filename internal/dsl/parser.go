package dsl

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSyntax is returned when a script cannot be tokenized. The file is
// still usable: its text is kept as one opaque statement.
var ErrSyntax = errors.New("syntax error")

// statementKeywords start statements that are kept verbatim.
var statementKeywords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "when": true, "try": true, "catch": true, "finally": true,
	"return": true, "throw": true, "import": true, "package": true,
	"class": true, "interface": true, "enum": true, "object": true,
	"fun": true, "assert": true, "synchronized": true, "break": true,
	"continue": true, "new": true,
}

var variableKeywords = map[string]bool{"def": true, "val": true, "var": true}

// scriptParser turns a token stream into elements attached to a file's root.
type scriptParser struct {
	src    string
	tokens []Token
	pos    int
}

func parseScript(f *File) error {
	tokens, err := Lex(f.source)
	if err != nil {
		if strings.TrimSpace(f.source) != "" {
			f.root.attach(opaque(f.source, 0, len(f.source)), len(f.root.children))
		}
		return fmt.Errorf("%s: %w: %v", f.Path, ErrSyntax, err)
	}
	p := &scriptParser{src: f.source, tokens: tokens}
	p.parseBody(f.root, false)
	return nil
}

func (p *scriptParser) peek() Token {
	if p.pos >= len(p.tokens) {
		return Token{Type: TokEOF, Pos: len(p.src), End: len(p.src)}
	}
	return p.tokens[p.pos]
}

func (p *scriptParser) peekAt(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return Token{Type: TokEOF, Pos: len(p.src), End: len(p.src)}
	}
	return p.tokens[p.pos+n]
}

func (p *scriptParser) advance() Token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

// lastEnd is the end offset of the most recently consumed token.
func (p *scriptParser) lastEnd() int {
	if p.pos == 0 {
		return 0
	}
	return p.tokens[p.pos-1].End
}

func (p *scriptParser) skipNewlines() {
	for p.peek().Type == TokNewline {
		p.advance()
	}
}

func (p *scriptParser) skipSeparators() {
	for t := p.peek().Type; t == TokNewline || t == TokSemi; t = p.peek().Type {
		p.advance()
	}
}

func (p *scriptParser) atStatementEnd() bool {
	switch p.peek().Type {
	case TokNewline, TokSemi, TokEOF, TokRBrace:
		return true
	}
	return false
}

func (p *scriptParser) atValueEnd() bool {
	switch p.peek().Type {
	case TokComma, TokRParen, TokRBracket, TokRBrace, TokNewline, TokSemi, TokEOF, TokIdent, TokLBrace:
		return true
	}
	return false
}

// braceFollows reports whether a '{' comes next, possibly after newlines.
func (p *scriptParser) braceFollows() bool {
	for i := 0; ; i++ {
		switch p.peekAt(i).Type {
		case TokNewline:
			continue
		case TokLBrace:
			return true
		default:
			return false
		}
	}
}

func (p *scriptParser) parseBody(parent *Element, closing bool) {
	for {
		p.skipSeparators()
		t := p.peek()
		switch {
		case t.Type == TokEOF:
			return
		case t.Type == TokRBrace:
			if closing {
				return
			}
			p.advance()
			parent.attach(opaque(p.src, t.Pos, t.End), len(parent.children))
			continue
		}
		p.parseStatement(parent)
	}
}

func (p *scriptParser) parseStatement(parent *Element) {
	start := p.pos
	t := p.peek()
	if t.Type == TokIdent {
		var e *Element
		switch {
		case variableKeywords[t.Value]:
			e = p.parseVariable()
		case !statementKeywords[t.Value]:
			e = p.parseProperty()
		}
		if e != nil {
			parent.attach(e, len(parent.children))
			return
		}
		p.pos = start
	}
	p.parseOpaque(parent)
}

// parseOpaque keeps a statement the model does not understand as text.
func (p *scriptParser) parseOpaque(parent *Element) {
	startTok := p.peek()
	first := p.pos
	depth := 0
loop:
	for {
		t := p.peek()
		switch t.Type {
		case TokEOF:
			break loop
		case TokLParen, TokLBracket, TokLBrace:
			depth++
		case TokRParen, TokRBracket, TokRBrace:
			if depth == 0 {
				if t.Type == TokRBrace {
					break loop
				}
			} else {
				depth--
			}
		case TokSemi:
			if depth == 0 {
				break loop
			}
		case TokNewline:
			if depth == 0 && !p.continues() {
				break loop
			}
		}
		p.advance()
	}
	if p.pos == first {
		p.advance()
	}
	parent.attach(opaque(p.src, startTok.Pos, p.lastEnd()), len(parent.children))
}

// continues reports whether the statement goes on past the newline at the
// current position.
func (p *scriptParser) continues() bool {
	if p.pos > 0 {
		switch p.tokens[p.pos-1].Type {
		case TokOp, TokAssign, TokDot, TokColon, TokComma:
			return true
		}
	}
	i := 0
	for p.peekAt(i).Type == TokNewline {
		i++
	}
	next := p.peekAt(i)
	switch {
	case next.Type == TokDot, next.Type == TokLBrace:
		return true
	case next.Type == TokOp && strings.HasPrefix(next.Value, "?."):
		return true
	case next.Type == TokIdent && (next.Value == "else" || next.Value == "catch" || next.Value == "finally"):
		return true
	}
	return false
}

// parseName consumes ident (. ident)* and returns the dotted name.
func (p *scriptParser) parseName() string {
	var b strings.Builder
	b.WriteString(p.advance().Value)
	for p.peek().Type == TokDot && p.peekAt(1).Type == TokIdent {
		p.advance()
		b.WriteByte('.')
		b.WriteString(p.advance().Value)
	}
	return b.String()
}

func (p *scriptParser) parseVariable() *Element {
	kw := p.advance()
	if p.peek().Type != TokIdent {
		return nil
	}
	name := p.advance()
	if p.peek().Type == TokIdent {
		// typed Groovy declaration: def String x = ...
		name = p.advance()
	}
	if p.peek().Type == TokColon {
		// Kotlin type annotation
		for t := p.peek().Type; t != TokAssign; t = p.peek().Type {
			if t == TokNewline || t == TokEOF || t == TokLBrace {
				return nil
			}
			p.advance()
		}
	}
	if p.peek().Type != TokAssign {
		return nil
	}
	p.advance()
	e := p.parseValue(name.Value)
	if e == nil || !p.atStatementEnd() {
		return nil
	}
	e.Syntax = SyntaxVariable
	e.Variable = true
	e.src.Stmt = Range{Start: kw.Pos, End: p.lastEnd()}
	return e
}

// parseProperty handles every statement that starts with a name.
func (p *scriptParser) parseProperty() *Element {
	startTok := p.peek()
	name := p.parseName()

	switch t := p.peek(); {
	case t.Type == TokLBracket && t.Pos == p.lastEnd():
		// Kotlin extra["key"] = value
		if p.peekAt(1).Type != TokString || p.peekAt(2).Type != TokRBracket || p.peekAt(3).Type != TokAssign {
			return nil
		}
		p.advance()
		key, _ := decodeString(p.advance().Value)
		p.advance()
		p.advance()
		return p.finishAssignment(name+"."+key.Text, startTok)

	case t.Type == TokLParen:
		return p.parseCallStatement(name, startTok)

	case t.Type == TokAssign:
		p.advance()
		return p.finishAssignment(name, startTok)

	case t.Type == TokLBrace || (t.Type == TokNewline && p.braceFollows()):
		p.skipNewlines()
		return p.parseBlock(name, startTok, nil)

	case p.atStatementEnd():
		e := NewLiteral(name, Value{})
		e.src = &Source{Stmt: Range{startTok.Pos, p.lastEnd()}, Value: Range{p.lastEnd(), p.lastEnd()}, Open: -1, Close: -1}
		return e
	}
	return p.parseCommand(name, startTok)
}

func (p *scriptParser) finishAssignment(name string, startTok Token) *Element {
	e := p.parseValue(name)
	if e == nil || !p.atStatementEnd() {
		return nil
	}
	e.Syntax = SyntaxAssignment
	e.src.Stmt = Range{Start: startTok.Pos, End: p.lastEnd()}
	return e
}

// parseCallStatement handles `name(args)`, `name(args) { }`,
// `name(args).x = v` and `name(args) infix value` chains.
func (p *scriptParser) parseCallStatement(name string, startTok Token) *Element {
	open := p.advance()
	args, ok := p.parseArgs(TokRParen, true)
	if !ok {
		return nil
	}
	closeTok := p.advance()

	switch {
	case p.peek().Type == TokDot:
		// project(':a').projectDir = ..., keep the call text in the name
		for p.peek().Type == TokDot && p.peekAt(1).Type == TokIdent {
			p.advance()
			p.advance()
		}
		raw := p.src[startTok.Pos:p.lastEnd()]
		switch {
		case p.peek().Type == TokAssign:
			p.advance()
			return p.finishAssignment(raw, startTok)
		case p.peek().Type == TokLBrace:
			return p.parseBlock(raw, startTok, nil)
		}
		return nil

	case p.peek().Type == TokLBrace || (p.peek().Type == TokNewline && p.braceFollows()):
		p.skipNewlines()
		return p.parseBlock(name, startTok, args)
	}

	e := &Element{Name: name, Kind: KindMethodCall, Syntax: SyntaxCall}
	for _, a := range args {
		e.attach(a, len(e.children))
	}
	e.src = &Source{
		Value: Range{startTok.Pos, closeTok.End},
		Open:  open.Pos,
		Close: closeTok.Pos,
	}
	if !p.parseChain(e) || !p.atStatementEnd() {
		return nil
	}
	e.src.Stmt = Range{startTok.Pos, p.lastEnd()}
	return e
}

// parseChain reads `ident value` pairs following a call: version '1' apply false.
func (p *scriptParser) parseChain(e *Element) bool {
	for p.peek().Type == TokIdent {
		keyTok := p.advance()
		if p.atStatementEnd() {
			return false
		}
		v := p.parseValue(keyTok.Value)
		if v == nil || v.Kind != KindLiteral {
			return false
		}
		v.Syntax = SyntaxApplication
		v.src.Stmt = Range{keyTok.Pos, p.lastEnd()}
		v.parent = e
		e.Chain = append(e.Chain, v)
	}
	return true
}

func (p *scriptParser) parseBlock(name string, startTok Token, args []*Element) *Element {
	open := p.advance()
	blk := &Element{Name: name, Kind: KindBlock, Syntax: SyntaxApplication}
	for _, a := range args {
		a.parent = blk
		blk.Args = append(blk.Args, a)
	}
	p.parseBody(blk, true)
	if p.peek().Type != TokRBrace {
		return nil
	}
	closeTok := p.advance()
	blk.src = &Source{
		Stmt:  Range{startTok.Pos, closeTok.End},
		Value: Range{open.Pos, closeTok.End},
		Open:  open.Pos,
		Close: closeTok.Pos,
	}
	return blk
}

// parseCommand handles parenthesis-free calls: `name v`, `name a, b`,
// `name k: v`, `name v { }` and `id 'x' version '1'`.
func (p *scriptParser) parseCommand(name string, startTok Token) *Element {
	switch t := p.peek(); t.Type {
	case TokString, TokNumber, TokIdent, TokLBracket:
	case TokOp:
		if t.Value != "-" && t.Value != "!" {
			return nil
		}
	default:
		return nil
	}

	var args []*Element
	for {
		a := p.parseArg(false)
		if a == nil {
			return nil
		}
		args = append(args, a)
		if p.peek().Type != TokComma {
			break
		}
		p.advance()
		p.skipNewlines()
	}
	argStart, argEnd := args[0].src.Stmt.Start, args[len(args)-1].src.Stmt.End

	if p.peek().Type == TokLBrace {
		return p.parseBlock(name, startTok, args)
	}

	var e *Element
	allEntries := true
	for _, a := range args {
		if a.Syntax != SyntaxEntry {
			allEntries = false
		}
	}
	switch {
	case allEntries:
		e = &Element{Name: name, Kind: KindMap, Syntax: SyntaxApplication}
		for _, a := range args {
			e.attach(a, len(e.children))
		}
		e.src = &Source{Value: Range{argStart, argEnd}, Open: -1, Close: -1}
	case len(args) == 1 && (args[0].Kind == KindLiteral || args[0].Kind == KindList):
		e = args[0]
		e.Name = name
		e.Syntax = SyntaxApplication
	default:
		e = &Element{Name: name, Kind: KindMethodCall, Syntax: SyntaxApplication}
		for _, a := range args {
			e.attach(a, len(e.children))
		}
		e.src = &Source{Value: Range{argStart, argEnd}, Open: -1, Close: -1}
	}

	if len(args) == 1 && !p.parseChain(e) {
		return nil
	}
	if !p.atStatementEnd() {
		return nil
	}
	e.src.Stmt = Range{startTok.Pos, p.lastEnd()}
	return e
}

// parseArgs reads arguments up to the closer, leaving the closer unconsumed.
func (p *scriptParser) parseArgs(closer TokenType, named bool) ([]*Element, bool) {
	var args []*Element
	for {
		p.skipNewlines()
		if p.peek().Type == closer {
			return args, true
		}
		a := p.parseArg(named)
		if a == nil {
			return nil, false
		}
		args = append(args, a)
		p.skipNewlines()
		switch p.peek().Type {
		case TokComma:
			p.advance()
		case closer:
			return args, true
		default:
			return nil, false
		}
	}
}

// parseArg reads one argument: `k: v`, Kotlin `k = v` when named, or a value.
func (p *scriptParser) parseArg(named bool) *Element {
	keyTok := p.peek()
	next := p.peekAt(1).Type
	isKey := keyTok.Type == TokIdent || keyTok.Type == TokString
	if isKey && (next == TokColon || (named && keyTok.Type == TokIdent && next == TokAssign)) {
		key := keyTok.Value
		if keyTok.Type == TokString {
			v, _ := decodeString(keyTok.Value)
			key = v.Text
		}
		p.advance()
		p.advance()
		p.skipNewlines()
		e := p.parseValue(key)
		if e == nil {
			return nil
		}
		e.Syntax = SyntaxEntry
		e.src.Stmt = Range{keyTok.Pos, p.lastEnd()}
		return e
	}
	e := p.parseValue("")
	if e == nil {
		return nil
	}
	e.Syntax = SyntaxArgument
	return e
}

// parseValue reads an expression. Anything beyond literals, references,
// calls, lists and maps becomes an opaque literal holding its text.
func (p *scriptParser) parseValue(name string) *Element {
	startIdx := p.pos
	start := p.peek()
	var e *Element

	switch start.Type {
	case TokString:
		p.advance()
		v, _ := decodeString(start.Value)
		e = NewLiteral(name, v)
	case TokNumber:
		p.advance()
		e = NewLiteral(name, Value{Type: ValueNumber, Raw: start.Value, Text: start.Value})
	case TokOp:
		if start.Value == "-" && p.peekAt(1).Type == TokNumber && p.peekAt(1).Pos == start.End {
			p.advance()
			num := p.advance()
			raw := p.src[start.Pos:num.End]
			e = NewLiteral(name, Value{Type: ValueNumber, Raw: raw, Text: raw})
		}
	case TokIdent:
		if statementKeywords[start.Value] {
			break
		}
		switch start.Value {
		case "true", "false":
			p.advance()
			e = NewLiteral(name, Value{Type: ValueBool, Raw: start.Value, Text: start.Value})
		case "null":
			p.advance()
			e = NewLiteral(name, Value{Type: ValueNull, Raw: start.Value, Text: start.Value})
		default:
			ref := p.parseName()
			if p.peek().Type == TokLParen {
				e = p.parseCallExpr(name, ref, start)
			} else {
				e = NewLiteral(name, Value{Type: ValueReference, Raw: ref, Text: ref})
			}
		}
	case TokLBracket:
		e = p.parseCollection(name)
	}

	if e != nil && p.atValueEnd() {
		if e.src == nil {
			e.src = &Source{Open: -1, Close: -1}
		}
		e.src.Value = Range{start.Pos, p.lastEnd()}
		e.src.Stmt = e.src.Value
		return e
	}

	// opaque expression
	p.pos = startIdx
	p.skipExpression()
	if p.pos == startIdx {
		return nil
	}
	return opaqueValue(name, p.src, start.Pos, p.lastEnd())
}

func (p *scriptParser) parseCallExpr(name, callee string, start Token) *Element {
	open := p.advance()
	args, ok := p.parseArgs(TokRParen, true)
	if !ok {
		return nil
	}
	closeTok := p.advance()
	e := &Element{Name: name, Kind: KindMethodCall, Syntax: SyntaxArgument}
	// a named value keeps the callee on an inner call element
	if name != "" {
		inner := &Element{Name: callee, Kind: KindMethodCall, Syntax: SyntaxCall}
		for _, a := range args {
			inner.attach(a, len(inner.children))
		}
		inner.src = &Source{Stmt: Range{start.Pos, closeTok.End}, Value: Range{start.Pos, closeTok.End}, Open: open.Pos, Close: closeTok.Pos}
		e.attach(inner, 0)
		e.src = &Source{Open: -1, Close: -1}
		return e
	}
	e.Name = callee
	for _, a := range args {
		e.attach(a, len(e.children))
	}
	e.src = &Source{Open: open.Pos, Close: closeTok.Pos}
	return e
}

// parseCollection reads a Groovy list `[a, b]` or map `[k: v]` literal.
func (p *scriptParser) parseCollection(name string) *Element {
	open := p.advance()
	p.skipNewlines()

	isMap := false
	if p.peek().Type == TokColon && p.peekAt(1).Type == TokRBracket {
		p.advance()
		isMap = true
	} else {
		k := p.peek().Type
		isMap = (k == TokIdent || k == TokString || k == TokNumber) && p.peekAt(1).Type == TokColon
	}

	e := &Element{Name: name, Kind: KindList}
	if isMap {
		e.Kind = KindMap
	}
	for {
		p.skipNewlines()
		if p.peek().Type == TokRBracket {
			break
		}
		var item *Element
		if isMap {
			keyTok := p.advance()
			if p.peek().Type != TokColon {
				return nil
			}
			p.advance()
			p.skipNewlines()
			key := keyTok.Value
			if keyTok.Type == TokString {
				v, _ := decodeString(keyTok.Value)
				key = v.Text
			}
			item = p.parseValue(key)
			if item == nil {
				return nil
			}
			item.Syntax = SyntaxEntry
			item.src.Stmt = Range{keyTok.Pos, p.lastEnd()}
		} else {
			item = p.parseValue("")
			if item == nil {
				return nil
			}
			item.Syntax = SyntaxArgument
		}
		e.attach(item, len(e.children))
		p.skipNewlines()
		if p.peek().Type == TokComma {
			p.advance()
			continue
		}
		if p.peek().Type != TokRBracket {
			return nil
		}
	}
	closeTok := p.advance()
	e.src = &Source{Open: open.Pos, Close: closeTok.Pos}
	return e
}

// skipExpression consumes tokens up to the end of the current expression.
func (p *scriptParser) skipExpression() {
	depth := 0
	for {
		t := p.peek()
		switch t.Type {
		case TokEOF:
			return
		case TokLParen, TokLBracket, TokLBrace:
			depth++
		case TokRParen, TokRBracket, TokRBrace:
			if depth == 0 {
				return
			}
			depth--
		case TokComma, TokSemi:
			if depth == 0 {
				return
			}
		case TokNewline:
			if depth == 0 && !p.continues() {
				return
			}
		}
		p.advance()
	}
}

func opaque(src string, start, end int) *Element {
	e := NewLiteral("", RawValue(src[start:end]))
	e.Syntax = SyntaxStatement
	e.src = &Source{Stmt: Range{start, end}, Value: Range{start, end}, Open: -1, Close: -1}
	return e
}

func opaqueValue(name, src string, start, end int) *Element {
	e := NewLiteral(name, RawValue(src[start:end]))
	e.src = &Source{Stmt: Range{start, end}, Value: Range{start, end}, Open: -1, Close: -1}
	return e
}

// decodeString turns a string token into a Value. Double-quoted strings with
// templates become ValueInterpolated and keep their raw body in Text.
func decodeString(tok string) (Value, bool) {
	if len(tok) < 2 {
		return RawValue(tok), false
	}
	quote := tok[0]
	body := tok[1 : len(tok)-1]
	if len(tok) >= 6 && strings.HasPrefix(tok, strings.Repeat(string(quote), 3)) {
		body = tok[3 : len(tok)-3]
	}
	if quote == '"' && hasTemplate(body) {
		return Value{Type: ValueInterpolated, Raw: tok, Text: body}, true
	}
	return Value{Type: ValueString, Raw: tok, Text: unescape(body)}, true
}

func hasTemplate(body string) bool {
	for i := 0; i < len(body)-1; i++ {
		switch body[i] {
		case '\\':
			i++
		case '$':
			if body[i+1] == '{' || isIdentStart(body[i+1]) && body[i+1] != '$' {
				return true
			}
		}
	}
	return false
}

func unescape(s string) string {
	if !strings.Contains(s, "\\") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}
