package buildmodel

import (
	"strings"

	"github.com/DeusData/gradle-model-mcp/internal/dsl"
	"github.com/DeusData/gradle-model-mcp/internal/lang"
)

// PluginModel is one applied plugin, backed by an entry of plugins{} or by
// an apply statement.
type PluginModel struct {
	model *BuildModel
	elem  *dsl.Element
	value *dsl.Element
	id    string
}

// Name returns the plugin id.
func (p *PluginModel) Name() string { return p.id }

// Element returns the backing statement.
func (p *PluginModel) Element() *dsl.Element { return p.elem }

// IsReadOnly reports whether the plugin comes from an applied or inherited
// script.
func (p *PluginModel) IsReadOnly() bool { return p.elem.IsReadOnly() }

// Version returns the `version` of a plugins{} entry.
func (p *PluginModel) Version() Property {
	return propertyOf(p.elem.ChainValue("version"))
}

// Apply reports whether the plugin is applied, i.e. not `apply false`.
func (p *PluginModel) Apply() bool {
	if a := p.elem.ChainValue("apply"); a != nil {
		if b, ok := a.Value.Bool(); ok {
			return b
		}
	}
	return true
}

// SetVersion sets or adds the `version` of a plugins{} entry.
func (p *PluginModel) SetVersion(v string) {
	p.elem.SetChainValue("version", dsl.StringValue(v))
}

// SetApply sets or adds `apply false` / `apply true`.
func (p *PluginModel) SetApply(apply bool) {
	p.elem.SetChainValue("apply", dsl.BoolValue(apply))
}

// Remove deletes the backing statement, or just the argument when the
// statement applies several plugins.
func (p *PluginModel) Remove() {
	if p.value != nil && p.value != p.elem && p.elem.Kind == dsl.KindMethodCall && len(p.elem.Arguments()) > 1 {
		p.value.Remove()
		return
	}
	p.elem.Remove()
}

// pluginRef is a plugin declaration found in the tree.
type pluginRef struct {
	elem  *dsl.Element
	value *dsl.Element
	id    string
}

// Plugins returns the applied plugins in declaration order. A plugin
// declared more than once is reported at its first declaration.
func (m *BuildModel) Plugins() []*PluginModel {
	root := m.root()
	refs := m.pluginRefs(root)
	out := make([]*PluginModel, 0, len(refs))
	seen := make(map[string]bool)
	for _, r := range refs {
		if seen[r.id] {
			continue
		}
		seen[r.id] = true
		out = append(out, m.pluginView(r))
	}
	return out
}

// Plugin returns the plugin with the given id, or nil.
func (m *BuildModel) Plugin(id string) *PluginModel {
	for _, p := range m.Plugins() {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (m *BuildModel) pluginView(r pluginRef) *PluginModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.plugins[r.elem]; ok && p.id == r.id {
		return p
	}
	p := &PluginModel{model: m, elem: r.elem, value: r.value, id: r.id}
	m.plugins[r.elem] = p
	return p
}

func (m *BuildModel) pluginRefs(root *dsl.Element) []pluginRef {
	var refs []pluginRef
	for _, ch := range root.Children() {
		switch {
		case ch.Name == "plugins" && ch.Kind == dsl.KindBlock:
			for _, entry := range ch.Children() {
				if r, ok := m.pluginsEntry(entry); ok {
					refs = append(refs, r)
				}
			}
		case ch.Name == "apply":
			refs = append(refs, applyPlugins(ch)...)
		}
	}
	return refs
}

// pluginsEntry reads one statement of a plugins{} block.
func (m *BuildModel) pluginsEntry(e *dsl.Element) (pluginRef, bool) {
	switch e.Name {
	case "id":
		if lit := e.SingleValue(); lit != nil {
			return pluginRef{elem: e, value: lit, id: valueText(lit)}, true
		}
	case "kotlin":
		if lit := e.SingleValue(); lit != nil && e.Kind == dsl.KindMethodCall {
			return pluginRef{elem: e, value: lit, id: "org.jetbrains.kotlin." + valueText(lit)}, true
		}
	case "alias":
		if lit := e.SingleValue(); lit != nil {
			id := lit.Value.Text
			if cat := m.ctx.catalog; cat != nil {
				if p, ok := cat.Plugin(lit.Value.Text); ok {
					id = p.ID
				}
			}
			return pluginRef{elem: e, value: lit, id: id}, true
		}
	case "":
	default:
		// core plugin accessors: java, application, `java-library`
		if e.Kind == dsl.KindLiteral && e.Value.Type == dsl.ValueNone {
			return pluginRef{elem: e, value: e, id: strings.Trim(e.Name, "`")}, true
		}
	}
	return pluginRef{}, false
}

// applyPlugins reads `apply plugin: 'x'`, `apply(plugin = "x")` and
// `apply { plugin 'x' }`.
func applyPlugins(e *dsl.Element) []pluginRef {
	switch e.Kind {
	case dsl.KindMap, dsl.KindMethodCall:
		if v := e.Entry("plugin"); v != nil && v.Kind == dsl.KindLiteral {
			return []pluginRef{{elem: e, value: v, id: valueText(v)}}
		}
	case dsl.KindBlock:
		var refs []pluginRef
		for _, ch := range e.PropertyElements("plugin") {
			if lit := ch.SingleValue(); lit != nil {
				refs = append(refs, pluginRef{elem: ch, value: lit, id: valueText(lit)})
			}
		}
		return refs
	}
	return nil
}

// valueText resolves a literal, falling back to its unresolved text.
func valueText(lit *dsl.Element) string {
	v, _ := lit.Resolve()
	return v.Text
}

// ApplyPlugin applies the plugin id. Applying an already applied plugin
// returns the existing model and changes nothing. Files with neither a
// plugins{} block nor an apply statement get a plugins{} block as their
// first statement; apply-only files get another apply statement.
func (m *BuildModel) ApplyPlugin(id string) *PluginModel {
	if p := m.Plugin(id); p != nil {
		return p
	}
	root := m.root()
	kotlin := m.file.Language == lang.Kotlin

	var plugins *dsl.Element
	hasApply := false
	for _, ch := range root.Children() {
		switch {
		case ch.IsReadOnly():
		case ch.Name == "plugins" && ch.Kind == dsl.KindBlock:
			plugins = ch
		case ch.Name == "apply" && len(applyPlugins(ch)) > 0:
			hasApply = true
		}
	}

	var r pluginRef
	switch {
	case plugins == nil && hasApply:
		var stmt *dsl.Element
		v := dsl.NewLiteral("plugin", dsl.StringValue(id))
		v.Syntax = dsl.SyntaxEntry
		if kotlin {
			stmt = dsl.NewMethodCall("apply", v)
			stmt.Syntax = dsl.SyntaxApplication
		} else {
			stmt = dsl.NewMap("apply")
			stmt.Syntax = dsl.SyntaxApplication
			stmt.SetNewElement(v)
		}
		root.SetNewElement(stmt)
		r = pluginRef{elem: stmt, value: v, id: id}
	default:
		if plugins == nil {
			plugins = root.AddNewElementAt(0, dsl.NewBlock("plugins"))
		}
		entry := newPluginID(id, kotlin)
		plugins.SetNewElement(entry)
		r = pluginRef{elem: entry, value: entry.SingleValue(), id: id}
	}
	return m.pluginView(r)
}

// newPluginID builds `id 'x'` (Groovy) or `id("x")` (Kotlin).
func newPluginID(id string, kotlin bool) *dsl.Element {
	if kotlin {
		return dsl.NewMethodCall("id", dsl.NewLiteral("", dsl.StringValue(id)))
	}
	e := dsl.NewLiteral("id", dsl.StringValue(id))
	e.Syntax = dsl.SyntaxApplication
	return e
}

// RemovePlugin removes every writable declaration of id and reports
// whether any was found.
func (m *BuildModel) RemovePlugin(id string) bool {
	removed := false
	for _, r := range m.pluginRefs(m.root()) {
		if r.id != id || r.elem.IsReadOnly() {
			continue
		}
		(&PluginModel{model: m, elem: r.elem, value: r.value, id: r.id}).Remove()
		removed = true
	}
	return removed
}
