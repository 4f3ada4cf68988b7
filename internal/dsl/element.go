package dsl

import (
	"strconv"
	"strings"
)

// Kind is the variant tag of an Element.
type Kind int

const (
	KindLiteral Kind = iota
	KindList
	KindMap
	KindBlock
	KindMethodCall
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	case KindBlock:
		return "block"
	case KindMethodCall:
		return "call"
	default:
		return "unknown"
	}
}

// State tracks an element's relationship to the file text.
type State int

const (
	StateExisting    State = iota // parsed from the file
	StateToBeAdded                // created by a setter, not yet written
	StateToBeRemoved              // parsed, removal pending
	StateInherited                // copied from a parent module's subprojects{} block
	StateApplied                  // merged from a file pulled in with `apply from:`
)

func (s State) String() string {
	switch s {
	case StateExisting:
		return "existing"
	case StateToBeAdded:
		return "to-be-added"
	case StateToBeRemoved:
		return "to-be-removed"
	case StateInherited:
		return "inherited"
	case StateApplied:
		return "applied"
	default:
		return "unknown"
	}
}

// Syntax records the surface form an element was (or will be) written in.
type Syntax int

const (
	SyntaxApplication Syntax = iota // name value / name a, b / name k: v
	SyntaxAssignment                // name = value
	SyntaxCall                      // name(args)
	SyntaxVariable                  // def name = value / val name = value
	SyntaxArgument                  // positional argument, list item
	SyntaxEntry                     // named argument or map entry: k: v
	SyntaxProperty                  // gradle.properties line
	SyntaxStatement                 // opaque statement
)

// ValueType classifies a literal value.
type ValueType int

const (
	ValueNone         ValueType = iota // bare name with no value
	ValueString                        // 'x', "x" without templates
	ValueInterpolated                  // "x${y}"
	ValueNumber
	ValueBool
	ValueNull
	ValueReference // foo, rootProject.ext.bar, libs.plugins.x
	ValueUnknown   // any other expression, kept verbatim
)

func (v ValueType) String() string {
	switch v {
	case ValueNone:
		return "none"
	case ValueString:
		return "string"
	case ValueInterpolated:
		return "interpolated"
	case ValueNumber:
		return "number"
	case ValueBool:
		return "bool"
	case ValueNull:
		return "null"
	case ValueReference:
		return "reference"
	default:
		return "unknown"
	}
}

// Value is the content of a literal element.
type Value struct {
	Type ValueType
	// Raw is the source text of the value (quotes included for strings).
	Raw string
	// Text is the decoded content: string contents without quotes, or Raw
	// for every other type.
	Text string
}

// StringValue builds a plain string value. Raw is filled in on write.
func StringValue(s string) Value { return Value{Type: ValueString, Text: s} }

// IntValue builds a number value.
func IntValue(n int) Value {
	s := strconv.Itoa(n)
	return Value{Type: ValueNumber, Raw: s, Text: s}
}

// BoolValue builds a boolean value.
func BoolValue(b bool) Value {
	s := strconv.FormatBool(b)
	return Value{Type: ValueBool, Raw: s, Text: s}
}

// ReferenceValue builds a reference to another property or variable.
func ReferenceValue(name string) Value {
	return Value{Type: ValueReference, Raw: name, Text: name}
}

// RawValue builds an opaque expression that is written verbatim.
func RawValue(expr string) Value {
	return Value{Type: ValueUnknown, Raw: expr, Text: expr}
}

// Int returns the value as an integer if it is a plain number.
func (v Value) Int() (int, bool) {
	if v.Type != ValueNumber {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimRight(strings.ReplaceAll(v.Text, "_", ""), "lLgG"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Bool returns the value as a boolean if it is true or false.
func (v Value) Bool() (bool, bool) {
	if v.Type != ValueBool {
		return false, false
	}
	return v.Text == "true", true
}

// Range is a half-open byte span [Start, End) of a file's source.
type Range struct {
	Start int
	End   int
}

// Source records where an element came from. Positions are -1 when the
// construct has no such delimiter.
type Source struct {
	Stmt  Range // whole statement, argument or entry
	Value Range // literal value, or the list/map/call expression
	Open  int   // '{' of a block, '(' of a call, '[' of a list or map
	Close int   // matching closing delimiter
}

// Element is a node of the build-script property tree.
type Element struct {
	Name   string
	Kind   Kind
	Syntax Syntax
	Value  Value // literals only

	// Args holds the arguments of a block written as `name(args) { }`.
	Args []*Element
	// Chain holds command-chain continuations: `id 'x' version '1' apply false`
	// yields Chain entries version='1' and apply=false.
	Chain []*Element

	// Variable marks def/val locals; they resolve but are not properties.
	Variable bool

	parent   *Element
	children []*Element
	file     *File
	state    State
	src      *Source
	origin   *Element // source element of inherited/applied copies
	modified bool
	original Value
}

// NewLiteral creates a detached literal element.
func NewLiteral(name string, v Value) *Element {
	return &Element{Name: name, Kind: KindLiteral, Value: v}
}

// NewBlock creates a detached block element.
func NewBlock(name string) *Element {
	return &Element{Name: name, Kind: KindBlock}
}

// NewList creates a detached list element holding the given item values.
func NewList(name string, items ...Value) *Element {
	e := &Element{Name: name, Kind: KindList}
	for _, v := range items {
		item := NewLiteral("", v)
		item.Syntax = SyntaxArgument
		e.attach(item, len(e.children))
	}
	return e
}

// NewMap creates a detached map element.
func NewMap(name string) *Element {
	return &Element{Name: name, Kind: KindMap}
}

// NewMethodCall creates a detached call element `name(args...)`.
func NewMethodCall(name string, args ...*Element) *Element {
	e := &Element{Name: name, Kind: KindMethodCall, Syntax: SyntaxCall}
	for _, a := range args {
		if a.Syntax != SyntaxEntry {
			a.Syntax = SyntaxArgument
		}
		e.attach(a, len(e.children))
	}
	return e
}

// Parent returns the containing element; nil for the root.
func (e *Element) Parent() *Element { return e.parent }

// File returns the file the element belongs to.
func (e *Element) File() *File { return e.file }

// State returns the element's pending-edit state.
func (e *Element) State() State { return e.state }

// Source returns the element's provenance, nil for synthetic elements.
func (e *Element) Source() *Source { return e.src }

// Origin returns the element an inherited or applied copy was made from.
func (e *Element) Origin() *Element { return e.origin }

// IsReadOnly reports whether the element is a copy owned by another file.
func (e *Element) IsReadOnly() bool {
	return e.state == StateInherited || e.state == StateApplied
}

// IsRemoved reports whether the element is pending removal, directly or
// through an ancestor.
func (e *Element) IsRemoved() bool {
	for cur := e; cur != nil; cur = cur.parent {
		if cur.state == StateToBeRemoved {
			return true
		}
	}
	return false
}

// Children returns all non-removed children in order.
func (e *Element) Children() []*Element {
	out := make([]*Element, 0, len(e.children))
	for _, c := range e.children {
		if c.state != StateToBeRemoved {
			out = append(out, c)
		}
	}
	return out
}

// Text returns the source text of the element's statement, or "" for
// synthetic elements.
func (e *Element) Text() string {
	if e.src == nil || e.file == nil {
		return ""
	}
	return e.file.source[e.src.Stmt.Start:e.src.Stmt.End]
}

// Path returns the dotted names of the element's ancestors and itself,
// skipping unnamed levels.
func (e *Element) Path() string {
	var parts []string
	for cur := e; cur != nil && cur.parent != nil; cur = cur.parent {
		if cur.Name != "" {
			parts = append(parts, cur.Name)
		}
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// attach appends or inserts child at index. A child with another parent is
// a programming error.
func (e *Element) attach(child *Element, index int) {
	if child.parent != nil && child.parent != e {
		panic("dsl: element " + child.Name + " already has a parent")
	}
	if child.parent == e {
		panic("dsl: element " + child.Name + " attached twice")
	}
	child.parent = e
	child.setFile(e.file)
	if index < 0 || index > len(e.children) {
		index = len(e.children)
	}
	e.children = append(e.children, nil)
	copy(e.children[index+1:], e.children[index:])
	e.children[index] = child
}

func (e *Element) setFile(f *File) {
	e.file = f
	for _, c := range e.children {
		c.setFile(f)
	}
	for _, a := range e.Args {
		a.setFile(f)
	}
	for _, c := range e.Chain {
		c.setFile(f)
	}
}

// detach removes child from e.children without recording an edit.
func (e *Element) detach(child *Element) {
	for i, c := range e.children {
		if c == child {
			e.children = append(e.children[:i], e.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// mustBeWritable panics when e is an inherited or applied copy.
func (e *Element) mustBeWritable() {
	if e.IsReadOnly() {
		panic("dsl: cannot modify " + e.state.String() + " element " + e.Path())
	}
}

// SetValue replaces a literal's value, recording the edit.
func (e *Element) SetValue(v Value) {
	e.mustBeWritable()
	if e.Kind != KindLiteral {
		panic("dsl: SetValue on " + e.Kind.String() + " element " + e.Path())
	}
	if e.state == StateExisting && !e.modified {
		e.original = e.Value
	}
	if e.state == StateExisting && e.Value.Type == v.Type && e.Value.Text == v.Text {
		return
	}
	v.Raw = ""
	e.Value = v
	if e.state == StateExisting {
		e.modified = true
	}
	e.markDirty()
}

// Remove marks the element for removal. Newly added elements are dropped
// immediately.
func (e *Element) Remove() {
	e.mustBeWritable()
	if e.parent == nil {
		panic("dsl: cannot remove the root element")
	}
	switch e.state {
	case StateToBeAdded:
		e.parent.markDirty()
		e.parent.detach(e)
	case StateExisting:
		e.state = StateToBeRemoved
		e.markDirty()
	}
}

// IsModified reports whether e or any descendant has pending edits.
func (e *Element) IsModified() bool {
	if e.modified || e.state == StateToBeAdded || e.state == StateToBeRemoved {
		return true
	}
	for _, c := range e.children {
		if c.IsModified() {
			return true
		}
	}
	for _, c := range e.Args {
		if c.IsModified() {
			return true
		}
	}
	for _, c := range e.Chain {
		if c.IsModified() {
			return true
		}
	}
	return false
}

// markDirty records a pending edit on the owning file.
func (e *Element) markDirty() {
	if e.file != nil {
		e.file.edits++
	}
}

// clone deep-copies e with the given state. The copy has no provenance and
// keeps a pointer back to the element it was made from.
func (e *Element) clone(state State) *Element {
	c := &Element{
		Name:     e.Name,
		Kind:     e.Kind,
		Syntax:   e.Syntax,
		Value:    e.Value,
		Variable: e.Variable,
		state:    state,
		origin:   e,
	}
	if e.origin != nil {
		c.origin = e.origin
	}
	for _, a := range e.Args {
		ac := a.clone(state)
		ac.parent = c
		c.Args = append(c.Args, ac)
	}
	for _, ch := range e.Chain {
		cc := ch.clone(state)
		cc.parent = c
		c.Chain = append(c.Chain, cc)
	}
	for _, child := range e.children {
		if child.state == StateToBeRemoved {
			continue
		}
		cc := child.clone(state)
		cc.parent = c
		c.children = append(c.children, cc)
	}
	return c
}
