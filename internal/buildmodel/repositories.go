package buildmodel

import (
	"github.com/DeusData/gradle-model-mcp/internal/dsl"
	"github.com/DeusData/gradle-model-mcp/internal/lang"
)

// RepositoryType distinguishes the repository declarations the model
// understands.
type RepositoryType int

const (
	// RepoDefault is a named shortcut such as google() or mavenCentral().
	RepoDefault RepositoryType = iota
	RepoMaven
	RepoIvy
	RepoFlatDir
)

func (t RepositoryType) String() string {
	switch t {
	case RepoMaven:
		return "maven"
	case RepoIvy:
		return "ivy"
	case RepoFlatDir:
		return "flatDir"
	default:
		return "default"
	}
}

type repoDefaults struct {
	name string
	url  string
}

// defaultRepositories maps shortcut method names to the repository name
// and URL Gradle gives them.
var defaultRepositories = map[string]repoDefaults{
	"jcenter":            {"BintrayJCenter2", "https://jcenter.bintray.com/"},
	"mavenCentral":       {"MavenRepo", "https://repo1.maven.org/maven2/"},
	"google":             {"Google", "https://dl.google.com/dl/android/maven2/"},
	"gradlePluginPortal": {"Gradle Central Plugin Repository", "https://plugins.gradle.org/m2/"},
	"mavenLocal":         {"MavenLocal", ""},
}

// IsDefaultRepository reports whether method is a repository shortcut.
func IsDefaultRepository(method string) bool {
	_, ok := defaultRepositories[method]
	return ok
}

// RepositoryModel is one declared repository.
type RepositoryModel struct {
	elem   *dsl.Element
	typ    RepositoryType
	method string
}

// Type returns the kind of declaration.
func (r *RepositoryModel) Type() RepositoryType { return r.typ }

// MethodName returns the declaring method: "google", "maven", "flatDir"...
func (r *RepositoryModel) MethodName() string { return r.method }

// Element returns the backing statement.
func (r *RepositoryModel) Element() *dsl.Element { return r.elem }

// Name returns the repository name. Shortcuts and unnamed repositories
// report Gradle's implied name with no backing element.
func (r *RepositoryModel) Name() Property {
	if r.elem.Kind == dsl.KindBlock {
		if e := r.elem.PropertyElement("name"); e != nil {
			return propertyOf(e)
		}
	}
	if r.elem.Kind == dsl.KindMethodCall {
		if e := r.elem.Entry("name"); e != nil {
			return propertyOf(e)
		}
	}
	if d, ok := defaultRepositories[r.method]; ok {
		return Property{Value: d.name}
	}
	return Property{Value: r.method}
}

// URL returns the repository URL; implied for shortcuts.
func (r *RepositoryModel) URL() Property {
	switch r.typ {
	case RepoDefault:
		return Property{Value: defaultRepositories[r.method].url}
	case RepoFlatDir:
		return Property{}
	}
	switch r.elem.Kind {
	case dsl.KindBlock:
		for _, name := range []string{"url", "setUrl"} {
			if e := r.elem.PropertyElement(name); e != nil {
				return callProperty(e)
			}
		}
	case dsl.KindMethodCall:
		if e := r.elem.Entry("url"); e != nil {
			return callProperty(e)
		}
		if args := r.elem.Arguments(); len(args) == 1 {
			return callProperty(args[0])
		}
	}
	return Property{}
}

// ArtifactURLs returns the `artifactUrls` of a maven repository.
func (r *RepositoryModel) ArtifactURLs() []Property {
	if r.elem.Kind != dsl.KindBlock {
		return nil
	}
	var out []Property
	for _, e := range r.elem.PropertyElements("artifactUrls") {
		out = append(out, listProperties(e)...)
	}
	return out
}

// Credentials returns the username and password of a credentials{} block.
func (r *RepositoryModel) Credentials() (username, password Property) {
	if r.elem.Kind != dsl.KindBlock {
		return Property{}, Property{}
	}
	c := r.elem.Block("credentials")
	if c == nil {
		return Property{}, Property{}
	}
	return propertyOf(c.PropertyElement("username")), propertyOf(c.PropertyElement("password"))
}

// Dirs returns the directories of a flatDir repository.
func (r *RepositoryModel) Dirs() []Property {
	if r.typ != RepoFlatDir {
		return nil
	}
	switch r.elem.Kind {
	case dsl.KindBlock:
		var out []Property
		for _, name := range []string{"dirs", "dir"} {
			for _, e := range r.elem.PropertyElements(name) {
				out = append(out, listProperties(e)...)
			}
		}
		return out
	case dsl.KindMap, dsl.KindMethodCall:
		if e := r.elem.Entry("dirs"); e != nil {
			return listProperties(e)
		}
	}
	return nil
}

// Remove deletes the repository declaration.
func (r *RepositoryModel) Remove() { r.elem.Remove() }

// callProperty reads `v`, `uri(v)` and `file(v)` values.
func callProperty(e *dsl.Element) Property {
	if e.Kind == dsl.KindMethodCall && e.SingleValue() == nil {
		if args := e.Children(); len(args) == 1 && args[0].Kind == dsl.KindMethodCall {
			p := propertyOf(args[0])
			p.Element = e
			return p
		}
	}
	return propertyOf(e)
}

// listProperties reads each literal of a value, list or argument list.
func listProperties(e *dsl.Element) []Property {
	switch e.Kind {
	case dsl.KindLiteral:
		return []Property{propertyOf(e)}
	case dsl.KindList, dsl.KindMethodCall:
		var out []Property
		for _, a := range e.Arguments() {
			out = append(out, listProperties(a)...)
		}
		return out
	}
	return nil
}

// RepositoriesModel is the repositories{} content of a build file or of
// its buildscript{} block.
type RepositoriesModel struct {
	model *BuildModel
	// parent returns the enclosing block, nil when absent; writable
	// returns it, creating it when absent.
	parent   func() *dsl.Element
	writable func() *dsl.Element
}

// Repositories returns the top-level repositories model.
func (m *BuildModel) Repositories() *RepositoriesModel {
	return &RepositoriesModel{model: m, parent: m.root, writable: m.root}
}

func (rm *RepositoriesModel) kotlin() bool {
	return rm.model.file.Language == lang.Kotlin
}

// Repositories returns the declared repositories in order.
func (rm *RepositoriesModel) Repositories() []*RepositoryModel {
	parent := rm.parent()
	if parent == nil {
		return nil
	}
	var out []*RepositoryModel
	for _, blk := range parent.Blocks("repositories") {
		for _, ch := range blk.Children() {
			if r := repositoryOf(ch); r != nil {
				out = append(out, r)
			}
		}
	}
	return out
}

func repositoryOf(e *dsl.Element) *RepositoryModel {
	switch e.Name {
	case "maven":
		return &RepositoryModel{elem: e, typ: RepoMaven, method: e.Name}
	case "ivy":
		return &RepositoryModel{elem: e, typ: RepoIvy, method: e.Name}
	case "flatDir":
		return &RepositoryModel{elem: e, typ: RepoFlatDir, method: e.Name}
	}
	if !IsDefaultRepository(e.Name) {
		return nil
	}
	switch e.Kind {
	case dsl.KindMethodCall, dsl.KindBlock:
	case dsl.KindLiteral:
		if e.Value.Type != dsl.ValueNone {
			return nil
		}
	default:
		return nil
	}
	return &RepositoryModel{elem: e, typ: RepoDefault, method: e.Name}
}

// block returns the repositories{} block to add to, creating it.
func (rm *RepositoriesModel) block() *dsl.Element {
	return ensureBlock(rm.writable(), "repositories")
}

// AddRepositoryByMethodName adds a shortcut such as google(). It is a
// no-op, leaving the model unmodified, when the shortcut is present.
func (rm *RepositoriesModel) AddRepositoryByMethodName(method string) *RepositoryModel {
	for _, r := range rm.Repositories() {
		if r.method == method {
			return r
		}
	}
	e := rm.block().SetNewElement(dsl.NewMethodCall(method))
	typ := RepoDefault
	if !IsDefaultRepository(method) {
		typ = RepoMaven
	}
	return &RepositoryModel{elem: e, typ: typ, method: method}
}

// AddMavenRepositoryByURL adds a maven{} repository. It does not check for
// an existing repository with the same URL; see HasMavenRepositoryURL.
func (rm *RepositoriesModel) AddMavenRepositoryByURL(url string) *RepositoryModel {
	maven := dsl.NewBlock("maven")
	if rm.kotlin() {
		u := dsl.NewMethodCall("url", dsl.NewMethodCall("uri", dsl.NewLiteral("", dsl.StringValue(url))))
		u.Syntax = dsl.SyntaxAssignment
		maven.SetNewElement(u)
	} else {
		u := dsl.NewLiteral("url", dsl.StringValue(url))
		u.Syntax = dsl.SyntaxApplication
		maven.SetNewElement(u)
	}
	rm.block().SetNewElement(maven)
	return &RepositoryModel{elem: maven, typ: RepoMaven, method: "maven"}
}

// HasMavenRepositoryURL reports whether a maven repository with url is
// declared.
func (rm *RepositoriesModel) HasMavenRepositoryURL(url string) bool {
	for _, r := range rm.Repositories() {
		if r.typ == RepoMaven && r.URL().Value == url {
			return true
		}
	}
	return false
}

// AddFlatDirRepository adds `flatDir { dirs ... }`.
func (rm *RepositoriesModel) AddFlatDirRepository(dirs ...string) *RepositoryModel {
	flat := dsl.NewBlock("flatDir")
	args := make([]*dsl.Element, len(dirs))
	for i, d := range dirs {
		args[i] = dsl.NewLiteral("", dsl.StringValue(d))
	}
	var e *dsl.Element
	switch {
	case rm.kotlin():
		e = dsl.NewMethodCall("dirs", args...)
	case len(dirs) == 1:
		e = dsl.NewLiteral("dirs", dsl.StringValue(dirs[0]))
		e.Syntax = dsl.SyntaxApplication
	default:
		e = dsl.NewMethodCall("dirs", args...)
		e.Syntax = dsl.SyntaxApplication
	}
	flat.SetNewElement(e)
	rm.block().SetNewElement(flat)
	return &RepositoryModel{elem: flat, typ: RepoFlatDir, method: "flatDir"}
}

// RemoveRepository removes repositories declared by method name or, for
// maven repositories, by URL. It reports whether any was removed.
func (rm *RepositoriesModel) RemoveRepository(nameOrURL string) bool {
	removed := false
	for _, r := range rm.Repositories() {
		if r.elem.IsReadOnly() {
			continue
		}
		if (r.typ != RepoMaven && r.method == nameOrURL) || (r.typ == RepoMaven && r.URL().Value == nameOrURL) {
			r.Remove()
			removed = true
		}
	}
	return removed
}
