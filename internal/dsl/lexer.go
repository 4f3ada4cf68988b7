package dsl

import (
	"fmt"
)

// TokenType classifies a lexer token.
type TokenType int

const (
	TokIdent  TokenType = iota // identifier or keyword
	TokString                  // '...', "...", '''...''', """..."""
	TokNumber                  // 42, 1.5f, 0x1F

	TokLBrace   // {
	TokRBrace   // }
	TokLParen   // (
	TokRParen   // )
	TokLBracket // [
	TokRBracket // ]
	TokComma    // ,
	TokColon    // :
	TokAssign   // =
	TokDot      // .
	TokSemi     // ;
	TokNewline  // \n
	TokOp       // any other operator run: == + - ?: -> ...

	TokEOF
)

// Token is a single lexer token. Pos and End are byte offsets into the
// source, End exclusive.
type Token struct {
	Type  TokenType
	Value string
	Pos   int
	End   int
}

func (t Token) String() string {
	return fmt.Sprintf("Token(%d, %q, pos=%d)", t.Type, t.Value, t.Pos)
}

var singleCharTokens = map[byte]TokenType{
	'{': TokLBrace,
	'}': TokRBrace,
	'(': TokLParen,
	')': TokRParen,
	'[': TokLBracket,
	']': TokRBracket,
	',': TokComma,
	';': TokSemi,
}

// operator characters that glue together into one TokOp.
const opChars = "+-*/%<>!&|^~?@=:."

// Lexer tokenizes Groovy and Kotlin build scripts. It never fails on
// unknown input: stray characters become TokOp tokens so the parser can
// keep them as opaque text.
type Lexer struct {
	input  string
	pos    int
	tokens []Token
}

// Lex tokenizes the input into a slice of tokens ending with TokEOF.
func Lex(input string) ([]Token, error) {
	l := &Lexer{input: input}
	if err := l.tokenize(); err != nil {
		return nil, err
	}
	return l.tokens, nil
}

func (l *Lexer) tokenize() error {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		if l.skipWhitespaceAndComments(ch) {
			continue
		}

		if err := l.lexNextToken(ch); err != nil {
			return err
		}
	}

	l.tokens = append(l.tokens, Token{Type: TokEOF, Pos: l.pos, End: l.pos})
	return nil
}

func (l *Lexer) emit(typ TokenType, start int) {
	l.tokens = append(l.tokens, Token{Type: typ, Value: l.input[start:l.pos], Pos: start, End: l.pos})
}

func (l *Lexer) skipWhitespaceAndComments(ch byte) bool {
	switch {
	case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\f':
		l.pos++
		return true
	case ch == '\\' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '\n':
		// explicit line continuation
		l.pos += 2
		return true
	case ch == '/' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '/':
		for l.pos < len(l.input) && l.input[l.pos] != '\n' {
			l.pos++
		}
		return true
	case ch == '/' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '*':
		end := indexFrom(l.input, "*/", l.pos+2)
		if end < 0 {
			l.pos = len(l.input)
		} else {
			l.pos = end + 2
		}
		return true
	case ch == '#' && l.pos == 0 && len(l.input) > 1 && l.input[1] == '!':
		// shebang
		for l.pos < len(l.input) && l.input[l.pos] != '\n' {
			l.pos++
		}
		return true
	}
	return false
}

func (l *Lexer) lexNextToken(ch byte) error {
	start := l.pos
	switch {
	case ch == '\n':
		l.pos++
		l.emit(TokNewline, start)
	case ch == '\'' || ch == '"':
		if err := l.lexString(ch); err != nil {
			return err
		}
		l.emit(TokString, start)
	case isDigit(ch):
		l.lexNumber()
		l.emit(TokNumber, start)
	case isIdentStart(ch):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		l.emit(TokIdent, start)
	case ch == '`':
		// Kotlin backtick identifier
		end := indexFrom(l.input, "`", l.pos+1)
		if end < 0 {
			return fmt.Errorf("unterminated backtick identifier at pos %d", start)
		}
		l.pos = end + 1
		l.emit(TokIdent, start)
	default:
		if typ, ok := singleCharTokens[ch]; ok {
			l.pos++
			l.emit(typ, start)
			return nil
		}
		l.lexOperator()
	}
	return nil
}

func (l *Lexer) lexOperator() {
	start := l.pos
	for l.pos < len(l.input) && isOpChar(l.input[l.pos]) {
		// stop before comment starts so they are skipped properly
		if l.pos > start && l.input[l.pos] == '/' && l.pos+1 < len(l.input) &&
			(l.input[l.pos+1] == '/' || l.input[l.pos+1] == '*') {
			break
		}
		l.pos++
	}
	if l.pos == start {
		// unknown byte; keep it as a one-byte operator
		l.pos++
	}
	text := l.input[start:l.pos]
	switch text {
	case "=":
		l.emit(TokAssign, start)
	case ":":
		l.emit(TokColon, start)
	case ".":
		l.emit(TokDot, start)
	default:
		// a single ':' or '.' glued to '=' etc. stays an operator ("?:", "?.")
		l.emit(TokOp, start)
	}
}

// lexString scans a quoted string starting at l.pos. Double-quoted strings
// may contain ${...} templates with nested braces and strings.
func (l *Lexer) lexString(quote byte) error {
	start := l.pos
	triple := l.pos+2 < len(l.input) && l.input[l.pos+1] == quote && l.input[l.pos+2] == quote
	if triple {
		l.pos += 3
	} else {
		l.pos++
	}
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == '\\':
			l.pos += 2
			continue
		case c == '\n' && !triple:
			return fmt.Errorf("unterminated string at pos %d", start)
		case c == '$' && quote == '"' && l.pos+1 < len(l.input) && l.input[l.pos+1] == '{':
			if err := l.skipTemplate(); err != nil {
				return err
			}
			continue
		case c == quote:
			if !triple {
				l.pos++
				return nil
			}
			if l.pos+2 < len(l.input) && l.input[l.pos+1] == quote && l.input[l.pos+2] == quote {
				l.pos += 3
				return nil
			}
		}
		l.pos++
	}
	return fmt.Errorf("unterminated string at pos %d", start)
}

// skipTemplate advances past a ${...} template inside a string.
func (l *Lexer) skipTemplate() error {
	start := l.pos
	l.pos += 2
	depth := 1
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				l.pos++
				return nil
			}
		case '\'', '"':
			if err := l.lexString(c); err != nil {
				return err
			}
			continue
		}
		l.pos++
	}
	return fmt.Errorf("unterminated template at pos %d", start)
}

func (l *Lexer) lexNumber() {
	if l.input[l.pos] == '0' && l.pos+1 < len(l.input) && (l.input[l.pos+1] == 'x' || l.input[l.pos+1] == 'X') {
		l.pos += 2
		for l.pos < len(l.input) && (isHexDigit(l.input[l.pos]) || l.input[l.pos] == '_') {
			l.pos++
		}
	} else {
		for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '_') {
			l.pos++
		}
		// fraction, but not a range operator (1..3) or member access (1.toString)
		if l.pos+1 < len(l.input) && l.input[l.pos] == '.' && isDigit(l.input[l.pos+1]) {
			l.pos++
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.pos++
			}
		}
		if l.pos < len(l.input) && (l.input[l.pos] == 'e' || l.input[l.pos] == 'E') {
			l.pos++
			if l.pos < len(l.input) && (l.input[l.pos] == '+' || l.input[l.pos] == '-') {
				l.pos++
			}
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.pos++
			}
		}
	}
	// type suffixes: 10L, 1.5f, 2.0d, 3g
	if l.pos < len(l.input) && isNumberSuffix(l.input[l.pos]) {
		l.pos++
	}
}

func indexFrom(s, sub string, from int) int {
	if from > len(s) {
		return -1
	}
	for i := from; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func isDigit(c byte) bool    { return c >= '0' && c <= '9' }
func isHexDigit(c byte) bool { return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

func isOpChar(c byte) bool {
	for i := 0; i < len(opChars); i++ {
		if opChars[i] == c {
			return true
		}
	}
	return false
}

func isNumberSuffix(c byte) bool {
	switch c {
	case 'l', 'L', 'f', 'F', 'd', 'D', 'g', 'G':
		return true
	}
	return false
}
