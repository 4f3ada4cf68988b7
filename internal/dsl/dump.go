package dsl

import (
	"fmt"
	"io"
	"strings"
)

// Node is a position-free snapshot of an element, used for structural
// comparison and JSON output.
type Node struct {
	Name     string  `json:"name,omitempty"`
	Kind     string  `json:"kind"`
	Value    string  `json:"value,omitempty"`
	Type     string  `json:"type,omitempty"`
	State    string  `json:"state,omitempty"`
	Args     []*Node `json:"args,omitempty"`
	Chain    []*Node `json:"chain,omitempty"`
	Children []*Node `json:"children,omitempty"`
}

// Dump snapshots e and its visible descendants. Opaque statements are
// included with their text; Existing state is left blank.
func Dump(e *Element) *Node {
	n := &Node{Name: e.Name, Kind: e.Kind.String()}
	if e.state != StateExisting {
		n.State = e.state.String()
	}
	if e.Kind == KindLiteral {
		n.Type = e.Value.Type.String()
		n.Value = e.Value.Text
		if e.Variable {
			n.Kind = "variable"
		}
	}
	for _, a := range e.Args {
		n.Args = append(n.Args, Dump(a))
	}
	for _, c := range e.Chain {
		if c.state != StateToBeRemoved {
			n.Chain = append(n.Chain, Dump(c))
		}
	}
	for _, c := range e.Children() {
		n.Children = append(n.Children, Dump(c))
	}
	return n
}

// WriteTree prints an indented outline of e to w.
func WriteTree(w io.Writer, e *Element) error {
	return writeNode(w, Dump(e), 0)
}

func writeNode(w io.Writer, n *Node, depth int) error {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.Kind)
	if n.Name != "" {
		b.WriteString(" " + n.Name)
	}
	if n.Type != "" {
		fmt.Fprintf(&b, " %s=%q", n.Type, n.Value)
	}
	if n.State != "" {
		b.WriteString(" [" + n.State + "]")
	}
	for _, a := range n.Args {
		fmt.Fprintf(&b, " (%s %q)", a.Kind, a.Value)
	}
	for _, c := range n.Chain {
		fmt.Fprintf(&b, " %s %q", c.Name, c.Value)
	}
	b.WriteByte('\n')
	if _, err := io.WriteString(w, b.String()); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := writeNode(w, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}
