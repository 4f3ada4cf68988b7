package buildmodel

import (
	"strings"

	"github.com/DeusData/gradle-model-mcp/internal/dsl"
	"github.com/DeusData/gradle-model-mcp/internal/lang"
)

// ArtifactDependencyModel is an external module dependency, written in
// compact `g:a:v[:c][@ext]` notation, as a map, or as a catalog reference.
type ArtifactDependencyModel struct {
	Configuration string
	Group         string
	Name          string
	Version       string
	Classifier    string
	Extension     string
	// CatalogRef is the `libs.` accessor the dependency was declared with.
	CatalogRef string
	// Platform is set for platform(...) and enforcedPlatform(...).
	Platform bool

	stmt  *dsl.Element
	value *dsl.Element
}

// Element returns the statement declaring the dependency.
func (a *ArtifactDependencyModel) Element() *dsl.Element { return a.stmt }

// Compact returns the dependency in `g:a:v[:c][@ext]` notation.
func (a *ArtifactDependencyModel) Compact() string {
	var b strings.Builder
	b.WriteString(a.Group + ":" + a.Name)
	if a.Version != "" || a.Classifier != "" {
		b.WriteString(":" + a.Version)
	}
	if a.Classifier != "" {
		b.WriteString(":" + a.Classifier)
	}
	if a.Extension != "" {
		b.WriteString("@" + a.Extension)
	}
	return b.String()
}

// SetVersion rewrites the version in place. Catalog references and
// interpolated strings cannot be rewritten and report false.
func (a *ArtifactDependencyModel) SetVersion(version string) bool {
	if a.CatalogRef != "" || a.value.IsReadOnly() {
		return false
	}
	switch a.value.Kind {
	case dsl.KindLiteral:
		if a.value.Value.Type != dsl.ValueString {
			return false
		}
		a.Version = version
		a.value.SetValue(dsl.StringValue(a.Compact()))
		return true
	case dsl.KindMap, dsl.KindMethodCall:
		if v := a.value.Entry("version"); v != nil && v.Kind == dsl.KindLiteral {
			v.SetValue(dsl.StringValue(version))
		} else {
			entry := dsl.NewLiteral("version", dsl.StringValue(version))
			entry.Syntax = dsl.SyntaxEntry
			a.value.SetNewElement(entry)
		}
		a.Version = version
		return true
	}
	return false
}

// Remove deletes the dependency. A statement declaring several
// dependencies keeps the others.
func (a *ArtifactDependencyModel) Remove() { removeDependency(a.stmt, a.value) }

// ModuleDependencyModel is a `project(':x')` dependency.
type ModuleDependencyModel struct {
	Configuration string
	Path          string

	stmt  *dsl.Element
	value *dsl.Element
}

// Element returns the statement declaring the dependency.
func (d *ModuleDependencyModel) Element() *dsl.Element { return d.stmt }

// Remove deletes the dependency.
func (d *ModuleDependencyModel) Remove() { removeDependency(d.stmt, d.value) }

// FileDependencyModel is a files(...) or fileTree(...) dependency.
type FileDependencyModel struct {
	Configuration string
	Files         []string
	Tree          bool

	stmt *dsl.Element
}

// Element returns the statement declaring the dependency.
func (d *FileDependencyModel) Element() *dsl.Element { return d.stmt }

func removeDependency(stmt, value *dsl.Element) {
	if value != stmt && value.Parent() == stmt && len(stmt.Arguments()) > 1 {
		value.Remove()
		return
	}
	stmt.Remove()
}

// DependenciesModel is the dependencies{} content of a build file or of
// its buildscript{} block.
type DependenciesModel struct {
	model *BuildModel
	// parent returns the enclosing block, nil when absent; writable
	// returns it, creating it when absent.
	parent   func() *dsl.Element
	writable func() *dsl.Element
}

// Dependencies returns the top-level dependencies model.
func (m *BuildModel) Dependencies() *DependenciesModel {
	return &DependenciesModel{model: m, parent: m.root, writable: m.root}
}

type depValue struct {
	stmt  *dsl.Element
	value *dsl.Element
}

// statements returns each configuration statement with its dependency
// values.
func (dm *DependenciesModel) statements() []depValue {
	parent := dm.parent()
	if parent == nil {
		return nil
	}
	var out []depValue
	for _, blk := range parent.Blocks("dependencies") {
		for _, stmt := range blk.Children() {
			if stmt.Name == "" || stmt.Variable {
				continue
			}
			for _, v := range dependencyValues(stmt) {
				out = append(out, depValue{stmt: stmt, value: v})
			}
		}
	}
	return out
}

// dependencyValues returns the dependency notations of one statement.
func dependencyValues(stmt *dsl.Element) []*dsl.Element {
	switch stmt.Kind {
	case dsl.KindLiteral:
		if stmt.Value.Type == dsl.ValueNone || stmt.Syntax == dsl.SyntaxStatement {
			return nil
		}
		return []*dsl.Element{stmt}
	case dsl.KindMap:
		return []*dsl.Element{stmt}
	case dsl.KindMethodCall:
		if stmt.Entry("group") != nil || stmt.Entry("name") != nil {
			return []*dsl.Element{stmt}
		}
		return stmt.Arguments()
	case dsl.KindBlock:
		return stmt.Args
	}
	return nil
}

// Artifacts returns the external module dependencies in order.
func (dm *DependenciesModel) Artifacts() []*ArtifactDependencyModel {
	var out []*ArtifactDependencyModel
	for _, dv := range dm.statements() {
		if a := dm.artifactOf(dv.stmt, dv.value); a != nil {
			out = append(out, a)
		}
	}
	return out
}

func (dm *DependenciesModel) artifactOf(stmt, v *dsl.Element) *ArtifactDependencyModel {
	a := &ArtifactDependencyModel{Configuration: stmt.Name, stmt: stmt, value: v}
	switch v.Kind {
	case dsl.KindLiteral:
		if v.Value.Type == dsl.ValueReference && strings.HasPrefix(v.Value.Text, "libs.") {
			a.CatalogRef = v.Value.Text
			if cat := dm.model.ctx.catalog; cat != nil {
				if lib, ok := cat.Library(v.Value.Text); ok {
					a.Group, a.Name, a.Version = lib.Group, lib.Name, lib.Version
					return a
				}
			}
			return a
		}
		val, err := v.Resolve()
		if err != nil || !parseCompact(val.Text, a) {
			return nil
		}
		return a
	case dsl.KindMap:
		return mapArtifact(a, v)
	case dsl.KindMethodCall:
		switch v.CallName() {
		case "platform", "enforcedPlatform":
			if inner := v.Arguments(); len(inner) == 1 {
				if pa := dm.artifactOf(stmt, inner[0]); pa != nil {
					pa.value = v
					pa.Platform = true
					return pa
				}
			}
			return nil
		case "kotlin":
			if lit := v.SingleValue(); lit != nil {
				a.Group, a.Name = "org.jetbrains.kotlin", "kotlin-"+valueText(lit)
				return a
			}
			return nil
		}
		if v == stmt {
			return mapArtifact(a, v)
		}
	}
	return nil
}

func mapArtifact(a *ArtifactDependencyModel, m *dsl.Element) *ArtifactDependencyModel {
	text := func(key string) string {
		if e := m.Entry(key); e != nil && e.Kind == dsl.KindLiteral {
			return valueText(e)
		}
		return ""
	}
	a.Group, a.Name, a.Version = text("group"), text("name"), text("version")
	a.Classifier, a.Extension = text("classifier"), text("ext")
	if a.Name == "" {
		return nil
	}
	return a
}

// parseCompact fills a from `g:a[:v[:c]][@ext]`.
func parseCompact(s string, a *ArtifactDependencyModel) bool {
	s, ext, _ := strings.Cut(s, "@")
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 4 || parts[1] == "" {
		return false
	}
	a.Group, a.Name = parts[0], parts[1]
	if len(parts) > 2 {
		a.Version = parts[2]
	}
	if len(parts) > 3 {
		a.Classifier = parts[3]
	}
	a.Extension = ext
	return true
}

// Modules returns the project dependencies in order.
func (dm *DependenciesModel) Modules() []*ModuleDependencyModel {
	var out []*ModuleDependencyModel
	for _, dv := range dm.statements() {
		v := dv.value
		if v.Kind != dsl.KindMethodCall || v.CallName() != "project" || v == dv.stmt {
			continue
		}
		var path string
		if e := v.Entry("path"); e != nil {
			path = valueText(e)
		} else if lit := v.SingleValue(); lit != nil {
			path = valueText(lit)
		}
		if path == "" {
			continue
		}
		out = append(out, &ModuleDependencyModel{
			Configuration: dv.stmt.Name,
			Path:          NormalizeModulePath(path),
			stmt:          dv.stmt,
			value:         v,
		})
	}
	return out
}

// Files returns the files(...) and fileTree(...) dependencies in order.
func (dm *DependenciesModel) Files() []*FileDependencyModel {
	var out []*FileDependencyModel
	for _, dv := range dm.statements() {
		v := dv.value
		if v.Kind != dsl.KindMethodCall || v == dv.stmt {
			continue
		}
		d := &FileDependencyModel{Configuration: dv.stmt.Name, stmt: dv.stmt}
		switch v.CallName() {
		case "files":
			for _, p := range listProperties(v) {
				d.Files = append(d.Files, p.Value)
			}
		case "fileTree":
			d.Tree = true
			if e := v.Entry("dir"); e != nil {
				d.Files = append(d.Files, valueText(e))
			} else if lit := v.SingleValue(); lit != nil {
				d.Files = append(d.Files, valueText(lit))
			}
		default:
			continue
		}
		out = append(out, d)
	}
	return out
}

func (dm *DependenciesModel) kotlin() bool {
	return dm.model.file.Language == lang.Kotlin
}

// AddArtifact adds `configuration 'g:a:v'`. An identical declaration in the
// same configuration is returned instead of being duplicated.
func (dm *DependenciesModel) AddArtifact(configuration, compact string) *ArtifactDependencyModel {
	want := &ArtifactDependencyModel{}
	if !parseCompact(compact, want) {
		return nil
	}
	for _, a := range dm.Artifacts() {
		if a.Configuration == configuration && a.Compact() == want.Compact() {
			return a
		}
	}
	var stmt, value *dsl.Element
	if dm.kotlin() {
		value = dsl.NewLiteral("", dsl.StringValue(compact))
		stmt = dsl.NewMethodCall(configuration, value)
	} else {
		stmt = dsl.NewLiteral(configuration, dsl.StringValue(compact))
		stmt.Syntax = dsl.SyntaxApplication
		value = stmt
	}
	ensureBlock(dm.writable(), "dependencies").SetNewElement(stmt)
	want.Configuration, want.stmt, want.value = configuration, stmt, value
	return want
}

// AddModule adds `configuration project(':path')`.
func (dm *DependenciesModel) AddModule(configuration, path string) *ModuleDependencyModel {
	path = NormalizeModulePath(path)
	for _, d := range dm.Modules() {
		if d.Configuration == configuration && d.Path == path {
			return d
		}
	}
	project := dsl.NewMethodCall("project", dsl.NewLiteral("", dsl.StringValue(path)))
	stmt := dsl.NewMethodCall(configuration, project)
	if !dm.kotlin() {
		stmt.Syntax = dsl.SyntaxApplication
	}
	ensureBlock(dm.writable(), "dependencies").SetNewElement(stmt)
	return &ModuleDependencyModel{Configuration: configuration, Path: path, stmt: stmt, value: project}
}

// RemoveArtifact removes dependencies on group:name in configuration (any
// configuration when empty) and reports how many were removed.
func (dm *DependenciesModel) RemoveArtifact(configuration, groupName string) int {
	n := 0
	for _, a := range dm.Artifacts() {
		if configuration != "" && a.Configuration != configuration {
			continue
		}
		if a.Group+":"+a.Name != groupName || a.stmt.IsReadOnly() {
			continue
		}
		a.Remove()
		n++
	}
	return n
}
