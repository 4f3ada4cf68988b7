package dsl

import (
	"fmt"
	"strings"
	"sync"

	"github.com/DeusData/gradle-model-mcp/internal/lang"
	"github.com/DeusData/gradle-model-mcp/internal/parser"
)

// FileID indexes a File inside its Arena.
type FileID int

// NoFile is the zero reference between files.
const NoFile FileID = -1

// CatalogLookup resolves `libs.` references against a version catalog.
// ref is the full dotted reference, e.g. "libs.versions.kotlin".
type CatalogLookup interface {
	Lookup(ref string) (Value, bool)
}

// File is the root container for one physical build, settings or
// properties file.
type File struct {
	ID       FileID
	Path     string
	Kind     lang.FileKind
	Language lang.Language

	// Applied marks files loaded through `apply from:`.
	Applied bool
	// IndentUnit overrides the detected indentation for new statements.
	IndentUnit string
	// Diagnostics holds grammar errors reported by the syntax check.
	Diagnostics []parser.Diagnostic
	// OnParse runs after every Parse and Reparse so owners can re-merge
	// applied elements.
	OnParse func(*File)

	arena      *Arena
	root       *Element
	source     string
	inherited  []*Element
	parentFile FileID
	propsFile  FileID
	generation int
	edits      int
}

// Root returns the root element of the file.
func (f *File) Root() *Element { return f.root }

// Source returns the text the file was last parsed from.
func (f *File) Source() string { return f.source }

// Arena returns the arena owning the file.
func (f *File) Arena() *Arena { return f.arena }

// Generation counts reparses. Views use it to notice that their backing
// elements were replaced.
func (f *File) Generation() int { return f.generation }

// Edits counts mutations since the last parse, including ones that were
// later undone.
func (f *File) Edits() int { return f.edits }

// SetParentModule links the file to the build file of its parent module.
func (f *File) SetParentModule(id FileID) { f.parentFile = id }

// ParentModule returns the parent module's build file, or nil.
func (f *File) ParentModule() *File { return f.arena.File(f.parentFile) }

// SetPropertiesFile links the file to its sibling gradle.properties.
func (f *File) SetPropertiesFile(id FileID) { f.propsFile = id }

// PropertiesFile returns the sibling properties file, or nil.
func (f *File) PropertiesFile() *File { return f.arena.File(f.propsFile) }

// Inherit records elements copied from a parent module's subprojects{}
// block. They are placed before the parsed statements on every parse, so
// the file's own definitions win lookups.
func (f *File) Inherit(elems ...*Element) {
	f.inherited = append(f.inherited, elems...)
}

// MergeApplied inserts read-only copies of from's properties directly after
// the statement `after`.
func (f *File) MergeApplied(after *Element, from *File) {
	parent := after.parent
	if parent == nil || parent.file != f {
		panic("dsl: apply statement does not belong to " + f.Path)
	}
	index := indexOf(parent.children, after) + 1
	for _, child := range from.root.Children() {
		c := child.clone(StateApplied)
		parent.attach(c, index)
		index++
	}
}

// Parse parses text as the file's content, replacing any previous tree.
// Lexing failures keep the whole text as one opaque statement so that the
// content still round-trips.
func (f *File) Parse(text string) error {
	f.source = text
	f.edits = 0
	f.root = &Element{Kind: KindBlock, file: f}
	for _, src := range f.inherited {
		c := src.clone(StateInherited)
		f.root.attach(c, len(f.root.children))
	}

	var err error
	if f.Language == lang.Properties {
		parseProperties(f)
	} else {
		err = parseScript(f)
	}
	if f.OnParse != nil {
		f.OnParse(f)
	}
	return err
}

// Reparse reloads the file from text. Pending edits are discarded.
func (f *File) Reparse(text string) error {
	f.generation++
	return f.Parse(text)
}

// Reset discards pending edits.
func (f *File) Reset() error {
	return f.Reparse(f.source)
}

// IsModified reports whether the tree has edits not yet written out.
func (f *File) IsModified() bool {
	return f.root != nil && f.root.IsModified()
}

// Arena holds every parsed file of one build-model context. Files refer to
// each other by FileID.
type Arena struct {
	mu      sync.RWMutex // guards files only; trees are unsynchronized
	files   []*File
	Catalog CatalogLookup
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// NewFile registers an empty file. Call Parse to populate it.
func (a *Arena) NewFile(path string, kind lang.FileKind, l lang.Language) *File {
	f := &File{
		Path:       path,
		Kind:       kind,
		Language:   l,
		arena:      a,
		parentFile: NoFile,
		propsFile:  NoFile,
	}
	a.mu.Lock()
	f.ID = FileID(len(a.files))
	a.files = append(a.files, f)
	a.mu.Unlock()
	return f
}

// File returns the file with the given ID, or nil.
func (a *Arena) File(id FileID) *File {
	if a == nil {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if id < 0 || int(id) >= len(a.files) {
		return nil
	}
	return a.files[id]
}

// Files returns all files in registration order.
func (a *Arena) Files() []*File {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*File(nil), a.files...)
}

// Dispose drops every file. The arena must not be used afterwards.
func (a *Arena) Dispose() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, f := range a.files {
		f.root = nil
		f.inherited = nil
		f.OnParse = nil
	}
	a.files = nil
	a.Catalog = nil
}

// ParseString parses text into a standalone file in a fresh arena.
func ParseString(path, text string) (*File, error) {
	l, kind, ok := lang.Classify(path)
	if !ok {
		return nil, fmt.Errorf("parse %s: not a gradle file", path)
	}
	f := NewArena().NewFile(path, kind, l)
	if err := f.Parse(text); err != nil {
		return f, err
	}
	return f, nil
}

func indexOf(elems []*Element, e *Element) int {
	for i, c := range elems {
		if c == e {
			return i
		}
	}
	return -1
}

// lineIndent returns the whitespace at the start of the line holding pos.
func lineIndent(src string, pos int) string {
	start := strings.LastIndexByte(src[:pos], '\n') + 1
	end := start
	for end < len(src) && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return src[start:end]
}
