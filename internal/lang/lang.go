package lang

import (
	"path"
	"strings"
)

// Language identifies the syntax a Gradle file is written in.
type Language string

const (
	Groovy     Language = "groovy"
	Kotlin     Language = "kotlin"
	Properties Language = "properties"
	TOML       Language = "toml" // version catalogs; no LanguageSpec, read by internal/catalog
)

// Well-known Gradle file names.
const (
	FnBuildGradle       = "build.gradle"
	FnBuildGradleKts    = "build.gradle.kts"
	FnSettingsGradle    = "settings.gradle"
	FnSettingsGradleKts = "settings.gradle.kts"
	FnGradleProperties  = "gradle.properties"
	FnVersionCatalog    = "gradle/libs.versions.toml"
)

// FileKind classifies the role a file plays in a Gradle build.
type FileKind int

const (
	KindUnknown FileKind = iota
	KindBuild
	KindSettings
	KindProperties
	KindCatalog
)

func (k FileKind) String() string {
	switch k {
	case KindBuild:
		return "build"
	case KindSettings:
		return "settings"
	case KindProperties:
		return "properties"
	case KindCatalog:
		return "catalog"
	default:
		return "unknown"
	}
}

// ScriptLanguages returns the script dialects that carry a LanguageSpec.
func ScriptLanguages() []Language {
	return []Language{Groovy, Kotlin}
}

// LanguageSpec describes one Gradle script dialect.
type LanguageSpec struct {
	Language         Language
	FileSuffixes     []string
	BuildFileName    string
	SettingsFileName string

	// StringQuote is the quote used when rendering new string literals.
	StringQuote byte
	// VariableKeyword introduces a local variable ("def" / "val").
	VariableKeyword string
	// NamedArgSeparator separates a named argument from its value (":" / "=").
	NamedArgSeparator string
	// CommandSyntax reports whether calls may omit parentheses (`id 'x'`).
	CommandSyntax bool

	// ModuleNodeTypes lists tree-sitter root node kinds.
	ModuleNodeTypes []string
	// CallNodeTypes lists tree-sitter call node kinds.
	CallNodeTypes []string
}

// registry maps languages to their specs.
var registry = map[Language]*LanguageSpec{}

// Register adds a LanguageSpec to the global registry.
func Register(spec *LanguageSpec) {
	registry[spec.Language] = spec
}

// ForLanguage returns the LanguageSpec for a language, or nil.
func ForLanguage(l Language) *LanguageSpec {
	return registry[l]
}

// Classify returns the language and role of a Gradle file from its path.
// ok is false for files that are not part of a Gradle build.
func Classify(p string) (Language, FileKind, bool) {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	switch {
	case base == FnGradleProperties:
		return Properties, KindProperties, true
	case base == "libs.versions.toml" || strings.HasSuffix(base, ".versions.toml"):
		return TOML, KindCatalog, true
	case base == FnSettingsGradle:
		return Groovy, KindSettings, true
	case base == FnSettingsGradleKts:
		return Kotlin, KindSettings, true
	case strings.HasSuffix(base, ".gradle.kts"):
		return Kotlin, KindBuild, true
	case strings.HasSuffix(base, ".gradle"):
		return Groovy, KindBuild, true
	}
	return "", KindUnknown, false
}
