package buildmodel

import (
	"errors"
	"fmt"
	"sync"

	"github.com/DeusData/gradle-model-mcp/internal/dsl"
	"github.com/DeusData/gradle-model-mcp/internal/lang"
)

// ModelState tracks a build model through load, edit and write-back.
type ModelState int

const (
	StateUninitialized ModelState = iota
	StateLoaded
	StateModified
	StateApplied
)

func (s ModelState) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateModified:
		return "modified"
	case StateApplied:
		return "applied"
	default:
		return "uninitialized"
	}
}

// Property is a model value together with the element it was read from.
// Element is nil for implied defaults.
type Property struct {
	Value      string
	Element    *dsl.Element
	Unresolved bool
}

// IsSet reports whether the property has a value, explicit or implied.
func (p Property) IsSet() bool { return p.Element != nil || p.Value != "" }

// propertyOf resolves the value carried by e. Unresolved references keep
// their partial text.
func propertyOf(e *dsl.Element) Property {
	if e == nil {
		return Property{}
	}
	lit := e.SingleValue()
	if lit == nil {
		return Property{Element: e}
	}
	v, err := lit.Resolve()
	return Property{Value: v.Text, Element: e, Unresolved: err != nil}
}

// BuildModel is the typed view of one build file.
type BuildModel struct {
	ctx  *Context
	file *dsl.File

	mu      sync.Mutex
	state   ModelState
	gen     int
	plugins map[*dsl.Element]*PluginModel
}

// BuildModel returns the model of the build file at path, loading it on
// first use. A missing file yields an empty model.
func (c *Context) BuildModel(path string) (*BuildModel, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	f, err := c.loadLocked(c.abs(path), false)
	if err != nil {
		return nil, err
	}
	if f.Kind != lang.KindBuild {
		return nil, fmt.Errorf("build model %s: %s file", c.rel(f.Path), f.Kind)
	}
	if m, ok := c.models[f.ID]; ok {
		return m, nil
	}
	m := &BuildModel{ctx: c, file: f, plugins: make(map[*dsl.Element]*PluginModel)}
	c.models[f.ID] = m
	return m, nil
}

// ModuleModel returns the model of a module declared in settings. Without
// a settings file only ":" is known.
func (c *Context) ModuleModel(path string) (*BuildModel, error) {
	s, err := c.Settings()
	if errors.Is(err, ErrNoSettings) && NormalizeModulePath(path) == ":" {
		for _, name := range []string{lang.FnBuildGradleKts, lang.FnBuildGradle} {
			if c.exists(c.abs(name)) {
				return c.BuildModel(name)
			}
		}
		return c.BuildModel(c.cfg.BuildFileName(false))
	}
	if err != nil {
		return nil, err
	}
	if !s.HasModule(path) {
		return nil, fmt.Errorf("module %s: not declared in settings", NormalizeModulePath(path))
	}
	return s.ModuleModel(path)
}

// File returns the backing build file.
func (m *BuildModel) File() *dsl.File { return m.file }

// Context returns the owning context.
func (m *BuildModel) Context() *Context { return m.ctx }

// Path returns the build file path relative to the build root.
func (m *BuildModel) Path() string { return m.ctx.rel(m.file.Path) }

// State returns where the model is in its load/edit/write cycle.
func (m *BuildModel) State() ModelState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateUninitialized && m.file.IsModified() {
		return StateModified
	}
	return m.state
}

// IsModified reports whether the model has unsaved edits.
func (m *BuildModel) IsModified() bool { return m.file.IsModified() }

// root marks the model loaded and returns the tree root. View caches are
// dropped when the file was reparsed since the last read.
func (m *BuildModel) root() *dsl.Element {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateUninitialized || m.state == StateApplied {
		m.state = StateLoaded
	}
	if g := m.file.Generation(); g != m.gen {
		m.gen = g
		m.plugins = make(map[*dsl.Element]*PluginModel)
	}
	return m.file.Root()
}

// ApplyChanges writes the build file if it has edits and reparses it.
// Views obtained before the call refer to the old tree.
func (m *BuildModel) ApplyChanges() error {
	if !m.file.IsModified() {
		return nil
	}
	if err := m.ctx.writeFile(m.file); err != nil {
		return err
	}
	m.applied()
	return nil
}

func (m *BuildModel) applied() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateApplied
}

// Reset discards unsaved edits.
func (m *BuildModel) Reset() error {
	m.ctx.loadMu.Lock()
	err := m.file.Reset()
	m.ctx.loadMu.Unlock()
	if err != nil && !errors.Is(err, dsl.ErrSyntax) {
		return err
	}
	return nil
}

// Text returns the file content with pending edits applied.
func (m *BuildModel) Text() string { return m.file.Text() }

// block returns the named top-level block, or nil.
func (m *BuildModel) block(name string) *dsl.Element {
	return m.root().Block(name)
}

// ensureBlock returns the named block of parent, appending it when absent.
func ensureBlock(parent *dsl.Element, name string) *dsl.Element {
	if b := parent.Block(name); b != nil && !b.IsReadOnly() {
		return b
	}
	return parent.SetNewElement(dsl.NewBlock(name))
}
