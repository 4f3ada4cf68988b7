package parser

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/gradle-model-mcp/internal/lang"
)

// maxDiagnostics bounds the diagnostics reported for one file.
const maxDiagnostics = 20

// Diagnostic is a syntax problem reported by the grammar.
type Diagnostic struct {
	Line      int // 1-based
	Column    int // 1-based
	StartByte uint
	EndByte   uint
	Message   string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%d:%d: %s", d.Line, d.Column, d.Message)
}

// Check parses source with the tree-sitter grammar for l and returns the
// ERROR and MISSING nodes it found. A nil slice means the grammar accepted
// the whole file.
func Check(l lang.Language, source []byte) ([]Diagnostic, error) {
	tree, err := Parse(l, source)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || !root.HasError() {
		return nil, nil
	}

	var diags []Diagnostic
	Walk(root, func(n *tree_sitter.Node) bool {
		if len(diags) >= maxDiagnostics {
			return false
		}
		switch {
		case n.IsMissing():
			diags = append(diags, newDiagnostic(n, fmt.Sprintf("missing %s", n.Kind())))
			return false
		case n.IsError():
			diags = append(diags, newDiagnostic(n, fmt.Sprintf("unexpected %q", snippet(NodeText(n, source)))))
			return false
		}
		return n.HasError()
	})
	return diags, nil
}

func newDiagnostic(n *tree_sitter.Node, msg string) Diagnostic {
	pos := n.StartPosition()
	return Diagnostic{
		Line:      int(pos.Row) + 1,
		Column:    int(pos.Column) + 1,
		StartByte: n.StartByte(),
		EndByte:   n.EndByte(),
		Message:   msg,
	}
}

func snippet(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
