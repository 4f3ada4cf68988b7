package buildmodel

import (
	"errors"
	"strings"

	"github.com/DeusData/gradle-model-mcp/internal/dsl"
	"github.com/DeusData/gradle-model-mcp/internal/lang"
)

// ExtProperty is one extra property declared in the build file.
type ExtProperty struct {
	Name string
	Property
}

// ExtModel is the extra properties of a build file: ext{} blocks,
// `ext.x = v` and Kotlin `extra["x"] = v`.
type ExtModel struct {
	model *BuildModel
}

// Ext returns the extra properties model.
func (m *BuildModel) Ext() *ExtModel { return &ExtModel{model: m} }

var extPrefixes = []string{"ext.", "extra.", "project.ext."}

// extName returns the property name declared by a top-level statement.
func extName(e *dsl.Element) (string, bool) {
	for _, p := range extPrefixes {
		if name, ok := strings.CutPrefix(e.Name, p); ok && name != "" {
			return name, true
		}
	}
	return "", false
}

// declarations returns every ext declaration of the file in source order,
// including inherited and applied ones.
func (x *ExtModel) declarations() []ExtProperty {
	var out []ExtProperty
	for _, ch := range x.model.root().Children() {
		if ch.Variable {
			continue
		}
		if (ch.Name == "ext" || ch.Name == "extra") && ch.Kind == dsl.KindBlock {
			for _, p := range ch.Properties() {
				out = append(out, ExtProperty{Name: p.Name, Property: propertyOf(p)})
			}
			continue
		}
		if name, ok := extName(ch); ok {
			out = append(out, ExtProperty{Name: name, Property: propertyOf(ch)})
		}
	}
	return out
}

// Properties returns the declared extra properties, one per name, in
// order of first declaration. A redeclared name reports its last value.
func (x *ExtModel) Properties() []ExtProperty {
	decls := x.declarations()
	index := make(map[string]int)
	var out []ExtProperty
	for _, d := range decls {
		if i, ok := index[d.Name]; ok {
			out[i] = d
			continue
		}
		index[d.Name] = len(out)
		out = append(out, d)
	}
	return out
}

// Property resolves name as seen from the top of the build file: local
// extra properties, gradle.properties, then parent modules.
func (x *ExtModel) Property(name string) Property {
	root := x.model.root()
	v, err := dsl.ResolveValue(root, name)
	p := Property{Value: v.Text, Unresolved: err != nil}
	if e, rerr := dsl.ResolveReference(root, name); rerr == nil {
		p.Element = e
	} else if !errors.Is(rerr, dsl.ErrUnresolved) {
		p.Unresolved = true
	}
	if p.Unresolved && p.Element == nil {
		p.Value = ""
	}
	return p
}

// SetProperty sets a local extra property. An existing writable
// declaration is updated in place; otherwise the property is added to the
// last ext{} block, or as `ext.name = v` (Kotlin `extra["name"] = v`).
func (x *ExtModel) SetProperty(name string, v dsl.Value) *dsl.Element {
	var last *dsl.Element
	for _, d := range x.declarations() {
		if d.Name == name {
			last = d.Element
		}
	}
	if last != nil && !last.IsReadOnly() {
		if lit := last.SingleValue(); lit != nil {
			lit.SetValue(v)
			return lit
		}
		last.Remove()
	}

	root := x.model.root()
	if x.model.file.Language != lang.Kotlin {
		if blk := root.Block("ext"); blk != nil && !blk.IsReadOnly() {
			return blk.SetNewLiteral(name, v)
		}
	}
	prefix := "ext."
	if x.model.file.Language == lang.Kotlin {
		prefix = "extra."
	}
	e := dsl.NewLiteral(prefix+name, v)
	e.Syntax = dsl.SyntaxAssignment
	return root.SetNewElement(e)
}

// RemoveProperty removes every writable local declaration of name.
func (x *ExtModel) RemoveProperty(name string) bool {
	removed := false
	for _, d := range x.declarations() {
		if d.Name != name || d.Element == nil || d.Element.IsReadOnly() {
			continue
		}
		d.Element.Remove()
		removed = true
	}
	return removed
}
