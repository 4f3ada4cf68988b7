package buildmodel

import (
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/DeusData/gradle-model-mcp/internal/dsl"
	"github.com/DeusData/gradle-model-mcp/internal/lang"
)

// SettingsModel is the module graph declared by settings.gradle(.kts).
type SettingsModel struct {
	ctx  *Context
	file *dsl.File
}

var (
	// project(':a').projectDir / project(':a').buildFileName
	projectOverrideRe = regexp.MustCompile(`^project\(\s*['"]([^'"]*)['"]\s*\)\.(projectDir|buildFileName)$`)
	// new File(rootDir, 'x'), File(settingsDir, "x")
	rootFileRe = regexp.MustCompile(`(?:new\s+)?File\(\s*(?:rootDir|settingsDir|rootProject\.projectDir)\s*,\s*['"]([^'"]+)['"]\s*\)`)
	// file('x')
	fileCallRe = regexp.MustCompile(`\bfile\(\s*['"]([^'"]+)['"]\s*\)`)
)

// Settings returns the settings model of the build, or ErrNoSettings.
func (c *Context) Settings() (*SettingsModel, error) {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	return c.settingsLocked()
}

func (c *Context) settingsLocked() (*SettingsModel, error) {
	if c.closed {
		return nil, ErrClosed
	}
	for _, name := range []string{lang.FnSettingsGradle, lang.FnSettingsGradleKts} {
		p := filepath.Join(c.root, name)
		if _, cached := c.files[p]; !cached && !c.exists(p) {
			continue
		}
		f, err := c.loadLocked(p, false)
		if err != nil {
			return nil, err
		}
		return &SettingsModel{ctx: c, file: f}, nil
	}
	return nil, ErrNoSettings
}

// File returns the backing settings file.
func (s *SettingsModel) File() *dsl.File { return s.file }

// RootProjectName returns rootProject.name, or the root directory name.
func (s *SettingsModel) RootProjectName() string {
	if e := s.file.Root().PropertyElement("rootProject.name"); e != nil {
		if lit := e.SingleValue(); lit != nil {
			if v, err := lit.Resolve(); err == nil {
				return v.Text
			}
		}
	}
	return filepath.Base(s.ctx.root)
}

// NormalizeModulePath prefixes p with ':' when missing.
func NormalizeModulePath(p string) string {
	p = strings.TrimSpace(p)
	if !strings.HasPrefix(p, ":") {
		p = ":" + p
	}
	return p
}

// includeItem is one argument of an include statement.
type includeItem struct {
	stmt *dsl.Element
	arg  *dsl.Element
	path string
}

func (s *SettingsModel) includes() []includeItem {
	var out []includeItem
	for _, stmt := range s.file.Root().PropertyElements("include") {
		for _, a := range includeArgs(stmt) {
			v, err := a.Resolve()
			if err != nil || v.Text == "" {
				slog.Debug("settings.include", "expr", a.Value.Text, "err", err)
				continue
			}
			out = append(out, includeItem{stmt: stmt, arg: a, path: NormalizeModulePath(v.Text)})
		}
	}
	return out
}

// includeArgs flattens `include 'a'`, `include 'a', 'b'`, `include(...)`
// and `include(['a', 'b'])` into their literal arguments.
func includeArgs(stmt *dsl.Element) []*dsl.Element {
	if stmt.Kind == dsl.KindLiteral {
		return []*dsl.Element{stmt}
	}
	var out []*dsl.Element
	for _, a := range stmt.Arguments() {
		switch a.Kind {
		case dsl.KindLiteral:
			out = append(out, a)
		case dsl.KindList:
			for _, item := range a.Arguments() {
				if item.Kind == dsl.KindLiteral {
					out = append(out, item)
				}
			}
		}
	}
	return out
}

// ModulePaths returns ":" followed by the included module paths in
// declaration order, without duplicates.
func (s *SettingsModel) ModulePaths() []string {
	paths := []string{":"}
	seen := map[string]bool{":": true}
	for _, it := range s.includes() {
		if !seen[it.path] {
			seen[it.path] = true
			paths = append(paths, it.path)
		}
	}
	return paths
}

// HasModule reports whether path is declared.
func (s *SettingsModel) HasModule(path string) bool {
	path = NormalizeModulePath(path)
	for _, p := range s.ModulePaths() {
		if p == path {
			return true
		}
	}
	return false
}

// override returns the value expression of a per-project setting, from
// `project(':x').prop = v` or `project(':x') { prop = v }`. Last wins.
func (s *SettingsModel) override(path, prop string) *dsl.Element {
	var found *dsl.Element
	for _, ch := range s.file.Root().Children() {
		switch {
		case ch.Kind == dsl.KindBlock && ch.Name == "project" && len(ch.Args) == 1:
			if ch.Args[0].Kind != dsl.KindLiteral || NormalizeModulePath(ch.Args[0].Value.Text) != path {
				continue
			}
			if e := ch.PropertyElement(prop); e != nil {
				found = e
			}
		case path == ":" && ch.Name == "rootProject."+prop:
			found = ch
		default:
			m := projectOverrideRe.FindStringSubmatch(ch.Name)
			if m != nil && m[2] == prop && NormalizeModulePath(m[1]) == path {
				found = ch
			}
		}
	}
	return found
}

// ModuleDirectory returns the absolute directory of a module: its parent's
// directory plus the last path segment, unless settings assign projectDir.
func (s *SettingsModel) ModuleDirectory(path string) string {
	path = NormalizeModulePath(path)
	if path == ":" {
		return s.ctx.root
	}
	if e := s.override(path, "projectDir"); e != nil {
		if dir := s.dirExpr(e); dir != "" {
			return dir
		}
	}
	i := strings.LastIndexByte(path, ':')
	parent := path[:i]
	if parent == "" {
		parent = ":"
	}
	return filepath.Join(s.ModuleDirectory(parent), path[i+1:])
}

// dirExpr evaluates the directory expressions settings files use.
func (s *SettingsModel) dirExpr(e *dsl.Element) string {
	text := e.Text()
	if m := rootFileRe.FindStringSubmatch(text); m != nil {
		return filepath.Join(s.ctx.root, filepath.FromSlash(m[1]))
	}
	if m := fileCallRe.FindStringSubmatch(text); m != nil {
		if filepath.IsAbs(m[1]) {
			return filepath.Clean(m[1])
		}
		return filepath.Join(s.ctx.root, filepath.FromSlash(m[1]))
	}
	slog.Debug("settings.projectdir", "expr", text)
	return ""
}

// BuildFileName returns the build file name of a module: the settings
// override, else the configured default, else whichever of build.gradle
// and build.gradle.kts exists, falling back to the settings dialect.
func (s *SettingsModel) BuildFileName(path string) string {
	path = NormalizeModulePath(path)
	if e := s.override(path, "buildFileName"); e != nil {
		if lit := e.SingleValue(); lit != nil {
			if v, err := lit.Resolve(); err == nil && v.Text != "" {
				return v.Text
			}
		}
	}
	if s.ctx.cfg.DefaultBuildFile != "" {
		return s.ctx.cfg.DefaultBuildFile
	}
	dir := s.ModuleDirectory(path)
	for _, name := range []string{lang.FnBuildGradle, lang.FnBuildGradleKts} {
		if s.ctx.exists(filepath.Join(dir, name)) {
			return name
		}
	}
	return s.ctx.cfg.BuildFileName(s.file.Language == lang.Kotlin)
}

// BuildFile returns the absolute path of a module's build file.
func (s *SettingsModel) BuildFile(path string) string {
	return filepath.Join(s.ModuleDirectory(path), s.BuildFileName(path))
}

// ModuleWithDirectory returns the declared module whose directory is dir,
// or "".
func (s *SettingsModel) ModuleWithDirectory(dir string) string {
	dir = s.ctx.abs(dir)
	for _, p := range s.ModulePaths() {
		if s.ModuleDirectory(p) == dir {
			return p
		}
	}
	return ""
}

// ParentModule returns the parent of a module path. ok is false for the
// root and when the parent is not a declared module.
func (s *SettingsModel) ParentModule(path string) (string, bool) {
	path = NormalizeModulePath(path)
	if path == ":" {
		return "", false
	}
	parent := path[:strings.LastIndexByte(path, ':')]
	if parent == "" {
		return ":", true
	}
	if !s.HasModule(parent) {
		return "", false
	}
	return parent, true
}

// ParentModuleModel returns the build model of a module's parent, or nil
// when there is no parent or its build file cannot be read.
func (s *SettingsModel) ParentModuleModel(path string) *BuildModel {
	parent, ok := s.ParentModule(path)
	if !ok {
		return nil
	}
	bf := s.BuildFile(parent)
	if !s.ctx.exists(bf) {
		slog.Debug("settings.parent", "module", parent, "err", "no build file")
		return nil
	}
	m, err := s.ctx.BuildModel(bf)
	if err != nil {
		slog.Debug("settings.parent", "module", parent, "err", err)
		return nil
	}
	return m
}

// ModuleModel returns the build model of a declared module.
func (s *SettingsModel) ModuleModel(path string) (*BuildModel, error) {
	return s.ctx.BuildModel(s.BuildFile(path))
}

// AddModulePath appends an include statement for path unless it is
// already declared.
func (s *SettingsModel) AddModulePath(path string) {
	path = NormalizeModulePath(path)
	if s.HasModule(path) {
		return
	}
	var stmt *dsl.Element
	if s.file.Language == lang.Kotlin {
		stmt = dsl.NewMethodCall("include", dsl.NewLiteral("", dsl.StringValue(path)))
	} else {
		stmt = dsl.NewLiteral("include", dsl.StringValue(path))
		stmt.Syntax = dsl.SyntaxApplication
	}
	s.file.Root().SetNewElement(stmt)
}

// RemoveModulePath drops every include of path. Statements left without
// arguments are removed whole.
func (s *SettingsModel) RemoveModulePath(path string) bool {
	path = NormalizeModulePath(path)
	removed := false
	for _, it := range s.includes() {
		if it.path != path || it.arg.IsReadOnly() || it.arg.IsRemoved() {
			continue
		}
		removed = true
		if it.arg == it.stmt {
			it.stmt.Remove()
			continue
		}
		it.arg.Remove()
		if len(includeArgs(it.stmt)) == 0 && !it.stmt.IsRemoved() {
			it.stmt.Remove()
		}
	}
	return removed
}
