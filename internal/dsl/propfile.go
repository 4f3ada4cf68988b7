package dsl

import "strings"

// parseProperties reads a gradle.properties file. Every key becomes a
// string literal; comments and blank lines are left in the text.
func parseProperties(f *File) {
	src := f.source
	pos := 0
	for pos < len(src) {
		lineStart := pos
		end := logicalLineEnd(src, pos)
		pos = end
		if pos < len(src) {
			pos++ // newline
		}

		i := lineStart
		for i < end && isPropSpace(src[i]) {
			i++
		}
		if i == end || src[i] == '#' || src[i] == '!' {
			continue
		}

		keyStart := i
		for i < end && !isPropSpace(src[i]) && src[i] != '=' && src[i] != ':' {
			if src[i] == '\\' {
				i++
			}
			i++
		}
		if i > end {
			i = end
		}
		keyEnd := i
		for i < end && isPropSpace(src[i]) {
			i++
		}
		if i < end && (src[i] == '=' || src[i] == ':') {
			i++
			for i < end && isPropSpace(src[i]) {
				i++
			}
		}
		valEnd := end
		for valEnd > i && (src[valEnd-1] == '\r') {
			valEnd--
		}

		e := NewLiteral(unescapeProperty(src[keyStart:keyEnd]), Value{
			Type: ValueString,
			Raw:  src[i:valEnd],
			Text: unescapeProperty(src[i:valEnd]),
		})
		e.Syntax = SyntaxProperty
		e.src = &Source{
			Stmt:  Range{keyStart, valEnd},
			Value: Range{i, valEnd},
			Open:  -1,
			Close: -1,
		}
		f.root.attach(e, len(f.root.children))
	}
}

// logicalLineEnd returns the offset of the newline ending the logical line
// that starts at pos, following backslash continuations.
func logicalLineEnd(src string, pos int) int {
	for {
		nl := strings.IndexByte(src[pos:], '\n')
		if nl < 0 {
			return len(src)
		}
		end := pos + nl
		line := strings.TrimRight(src[pos:end], "\r")
		if !endsWithContinuation(line) {
			return end
		}
		pos = end + 1
	}
}

func endsWithContinuation(line string) bool {
	n := 0
	for i := len(line) - 1; i >= 0 && line[i] == '\\'; i-- {
		n++
	}
	return n%2 == 1
}

func isPropSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\f' }

// unescapeProperty decodes escapes and joins continuation lines.
func unescapeProperty(s string) string {
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
		case 'f':
			b.WriteByte('\f')
		case '\r', '\n':
			// continuation: drop the line break and the next line's indent
			if s[i] == '\r' && i+1 < len(s) && s[i+1] == '\n' {
				i++
			}
			for i+1 < len(s) && isPropSpace(s[i+1]) {
				i++
			}
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// escapeProperty encodes a value for a properties file line.
func escapeProperty(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
