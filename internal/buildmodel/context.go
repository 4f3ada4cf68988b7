// Package buildmodel exposes typed views over the build, settings and
// properties files of one Gradle build.
package buildmodel

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/DeusData/gradle-model-mcp/internal/catalog"
	"github.com/DeusData/gradle-model-mcp/internal/config"
	"github.com/DeusData/gradle-model-mcp/internal/dsl"
	"github.com/DeusData/gradle-model-mcp/internal/lang"
	"github.com/DeusData/gradle-model-mcp/internal/parser"
)

var (
	// ErrClosed is returned by operations on a closed Context.
	ErrClosed = errors.New("buildmodel: context closed")
	// ErrNoSettings is returned when the build root has no settings file.
	ErrNoSettings = errors.New("buildmodel: no settings file")
)

// Context owns every file parsed for one Gradle build. Files are parsed
// once and cached by path until Close.
//
// Callers bracket model access with Read (queries) or Write (mutations).
// Readers run concurrently; writers are exclusive.
type Context struct {
	fs   afero.Fs
	root string
	cfg  *config.ProjectConfig

	mu sync.RWMutex

	// loadMu serializes lazy loading, which may happen under Read.
	loadMu  sync.Mutex
	arena   *dsl.Arena
	files   map[string]dsl.FileID
	loading map[string]bool
	models  map[dsl.FileID]*BuildModel
	catalog *catalog.Catalog
	closed  bool
}

// NewContext creates a context for the build rooted at root on fs.
func NewContext(fs afero.Fs, root string) *Context {
	root = filepath.Clean(root)
	c := &Context{
		fs:      fs,
		root:    root,
		cfg:     config.LoadConfig(fs, root),
		arena:   dsl.NewArena(),
		files:   make(map[string]dsl.FileID),
		loading: make(map[string]bool),
		models:  make(map[dsl.FileID]*BuildModel),
	}
	cat, err := catalog.Load(fs, root)
	switch {
	case err == nil:
		c.catalog = cat
		c.arena.Catalog = cat
	case !errors.Is(err, os.ErrNotExist):
		slog.Warn("buildmodel.catalog", "root", root, "err", err)
	}
	return c
}

// Root returns the build root directory.
func (c *Context) Root() string { return c.root }

// Fs returns the file system the context reads and writes.
func (c *Context) Fs() afero.Fs { return c.fs }

// Config returns the per-project configuration.
func (c *Context) Config() *config.ProjectConfig { return c.cfg }

// Catalog returns the version catalog, or nil when the build has none.
func (c *Context) Catalog() *catalog.Catalog { return c.catalog }

// Read runs fn while holding the shared lock.
func (c *Context) Read(fn func() error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.isClosed() {
		return ErrClosed
	}
	return fn()
}

// Write runs fn while holding the exclusive lock.
func (c *Context) Write(fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}
	return fn()
}

func (c *Context) isClosed() bool {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.closed
}

// Close releases every parsed file. Models obtained from the context must
// not be used afterwards.
func (c *Context) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if c.closed {
		return
	}
	c.arena.Dispose()
	c.files = nil
	c.models = nil
	c.closed = true
}

// abs resolves p against the build root.
func (c *Context) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(c.root, p)
}

// rel returns p relative to the build root, slash separated.
func (c *Context) rel(p string) string {
	r, err := filepath.Rel(c.root, p)
	if err != nil {
		return p
	}
	return filepath.ToSlash(r)
}

func (c *Context) exists(p string) bool {
	ok, err := afero.Exists(c.fs, p)
	return err == nil && ok
}

// ModifiedFiles returns the files with unsaved edits.
func (c *Context) ModifiedFiles() []*dsl.File {
	var out []*dsl.File
	for _, f := range c.arena.Files() {
		if f.IsModified() {
			out = append(out, f)
		}
	}
	return out
}

// ApplyChanges writes every modified file and reparses it.
func (c *Context) ApplyChanges() error {
	for _, f := range c.ModifiedFiles() {
		if err := c.writeFile(f); err != nil {
			return err
		}
		if m := c.modelFor(f); m != nil {
			m.applied()
		}
	}
	return nil
}

func (c *Context) modelFor(f *dsl.File) *BuildModel {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.models[f.ID]
}

// writeFile serializes f to disk and reloads it from the written text.
func (c *Context) writeFile(f *dsl.File) error {
	text, err := f.Render()
	if err != nil {
		return err
	}
	if err := c.fs.MkdirAll(filepath.Dir(f.Path), 0o755); err != nil {
		return fmt.Errorf("write %s: %w", c.rel(f.Path), err)
	}
	if err := afero.WriteFile(c.fs, f.Path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", c.rel(f.Path), err)
	}
	c.loadMu.Lock()
	err = f.Reparse(text)
	c.loadMu.Unlock()
	if err != nil && !errors.Is(err, dsl.ErrSyntax) {
		return fmt.Errorf("reparse %s: %w", c.rel(f.Path), err)
	}
	slog.Info("buildmodel.write", "path", c.rel(f.Path), "bytes", len(text))
	return nil
}

// file returns the parsed file at p, loading it on first use. A missing
// build file yields an empty tree so that edits can create it. Files
// loaded through `apply from:` pass applied=true and skip parent-module
// inheritance.
func (c *Context) file(p string, applied bool) (*dsl.File, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.loadLocked(c.abs(p), applied)
}

// PropertiesFile returns the gradle.properties file of dir, relative to
// the build root. A missing file yields an empty tree.
func (c *Context) PropertiesFile(dir string) (*dsl.File, error) {
	return c.file(filepath.Join(dir, lang.FnGradleProperties), false)
}

func (c *Context) loadLocked(p string, applied bool) (*dsl.File, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if id, ok := c.files[p]; ok {
		return c.arena.File(id), nil
	}

	l, kind, ok := lang.Classify(p)
	if !ok || kind == lang.KindCatalog {
		return nil, fmt.Errorf("load %s: not a gradle script", c.rel(p))
	}
	data, err := afero.ReadFile(c.fs, p)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", c.rel(p), err)
	}

	f := c.arena.NewFile(p, kind, l)
	f.Applied = applied
	f.IndentUnit = c.cfg.IndentUnit()
	c.files[p] = f.ID
	c.loading[p] = true
	defer delete(c.loading, p)

	if kind != lang.KindProperties {
		c.linkProperties(f)
	}
	if kind == lang.KindBuild && !applied {
		c.linkParent(f)
	}
	if kind != lang.KindProperties {
		f.OnParse = c.mergeApplied
	}

	slog.Debug("buildmodel.load", "path", c.rel(p), "kind", kind.String(), "applied", applied)
	if err := f.Parse(string(data)); err != nil {
		slog.Warn("dsl.parse", "path", c.rel(p), "err", err)
	}
	if kind != lang.KindProperties && c.cfg.EffectiveSyntaxCheck() && len(data) > 0 {
		c.check(f, data)
	}
	return f, nil
}

// check records grammar diagnostics on f. They never fail the load.
func (c *Context) check(f *dsl.File, data []byte) {
	diags, err := parser.Check(f.Language, data)
	if err != nil {
		slog.Debug("dsl.syntax", "path", c.rel(f.Path), "err", err)
		return
	}
	f.Diagnostics = diags
	if len(diags) > 0 {
		slog.Warn("dsl.syntax", "path", c.rel(f.Path), "errors", len(diags), "first", diags[0].String())
	}
}

func (c *Context) linkProperties(f *dsl.File) {
	props := filepath.Join(filepath.Dir(f.Path), lang.FnGradleProperties)
	if !c.exists(props) {
		return
	}
	pf, err := c.loadLocked(props, false)
	if err != nil {
		slog.Debug("buildmodel.properties", "path", c.rel(props), "err", err)
		return
	}
	f.SetPropertiesFile(pf.ID)
}

// linkParent connects a build file to its parent module's build file and
// inherits the parent's subprojects{} and allprojects{} contents.
func (c *Context) linkParent(f *dsl.File) {
	pp := c.parentBuildPath(f.Path)
	if pp == "" || c.loading[pp] {
		return
	}
	parent, err := c.loadLocked(pp, false)
	if err != nil {
		slog.Debug("buildmodel.parent", "path", c.rel(f.Path), "err", err)
		return
	}
	f.SetParentModule(parent.ID)
	for _, ch := range parent.Root().Children() {
		switch {
		case ch.State() == dsl.StateInherited:
			f.Inherit(ch)
		case ch.Kind == dsl.KindBlock && (ch.Name == "subprojects" || ch.Name == "allprojects"):
			f.Inherit(ch.Children()...)
		}
	}
}

// parentBuildPath finds the build file of the module containing the
// module whose build file is p.
func (c *Context) parentBuildPath(p string) string {
	dir := filepath.Dir(p)
	if dir == c.root || !strings.HasPrefix(dir, c.root+string(filepath.Separator)) {
		return ""
	}
	s, err := c.settingsLocked()
	if err != nil {
		// no settings: every build below the root hangs off the root build
		for _, name := range []string{lang.FnBuildGradle, lang.FnBuildGradleKts} {
			if rb := filepath.Join(c.root, name); c.exists(rb) {
				return rb
			}
		}
		return ""
	}
	mp := s.ModuleWithDirectory(dir)
	if mp == "" {
		return ""
	}
	parent, ok := s.ParentModule(mp)
	if !ok {
		return ""
	}
	bf := s.BuildFile(parent)
	if !c.exists(bf) {
		return ""
	}
	return bf
}

// mergeApplied loads the targets of `apply from:` statements and merges
// their properties after each statement.
func (c *Context) mergeApplied(f *dsl.File) {
	type target struct {
		stmt *dsl.Element
		path string
	}
	var targets []target
	for _, ch := range f.Root().Children() {
		if ch.IsReadOnly() {
			continue
		}
		if from := applyFrom(ch); from != "" {
			if strings.Contains(from, "://") {
				continue
			}
			p := from
			if !filepath.IsAbs(p) {
				p = filepath.Join(filepath.Dir(f.Path), filepath.FromSlash(from))
			}
			targets = append(targets, target{ch, filepath.Clean(p)})
		}
	}
	for _, t := range targets {
		if c.loading[t.path] {
			slog.Debug("buildmodel.cycle", "path", c.rel(f.Path), "apply", c.rel(t.path))
			continue
		}
		applied, err := c.loadLocked(t.path, true)
		if err != nil || applied.Root() == nil {
			slog.Debug("buildmodel.apply", "path", c.rel(t.path), "err", err)
			continue
		}
		f.MergeApplied(t.stmt, applied)
	}
}

// applyFrom returns the script named by `apply from: 'x'` or
// `apply(from = "x")`.
func applyFrom(e *dsl.Element) string {
	if e.Name != "apply" {
		return ""
	}
	var from *dsl.Element
	switch e.Kind {
	case dsl.KindMap, dsl.KindMethodCall:
		from = e.Entry("from")
	}
	if from == nil || from.Kind != dsl.KindLiteral {
		return ""
	}
	v, err := from.Resolve()
	if err != nil {
		return ""
	}
	return v.Text
}
