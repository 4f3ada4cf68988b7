package config

import (
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// FileName is the per-project settings file looked up in the build root.
const FileName = ".gradlemodel.yaml"

// defaultIgnoreDirs are never descended into while discovering modules.
var defaultIgnoreDirs = []string{
	".git", ".gradle", ".idea", "build", "out", "node_modules",
}

// ProjectConfig holds user-overridable settings for one Gradle build.
type ProjectConfig struct {
	// IgnoreDirs are directory names skipped during discovery, added to
	// (not replacing) the built-in defaults.
	IgnoreDirs []string `yaml:"ignore_dirs"`

	// Indent overrides the detected indentation for inserted statements.
	// "tab" selects a tab; a number selects that many spaces.
	Indent string `yaml:"indent"`

	// SyntaxCheck enables the tree-sitter validation pass.
	// Default: true.
	SyntaxCheck *bool `yaml:"syntax_check"`

	// DefaultBuildFile is the build file name used when settings do not
	// override it. Default: build.gradle, or build.gradle.kts when the
	// settings file is Kotlin.
	DefaultBuildFile string `yaml:"default_build_file"`
}

// DefaultConfig returns the default project configuration.
func DefaultConfig() *ProjectConfig {
	return &ProjectConfig{}
}

// LoadConfig reads .gradlemodel.yaml from dir on fs.
// Returns the default config if the file is missing or invalid.
func LoadConfig(fs afero.Fs, dir string) *ProjectConfig {
	cfg := DefaultConfig()

	data, err := afero.ReadFile(fs, filepath.Join(dir, FileName))
	if err != nil {
		return cfg
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig()
	}
	return cfg
}

// EffectiveSyntaxCheck returns the configured syntax check setting,
// or the default (true) if not set.
func (c *ProjectConfig) EffectiveSyntaxCheck() bool {
	if c.SyntaxCheck != nil {
		return *c.SyntaxCheck
	}
	return true
}

// IndentUnit returns the configured indentation string, or "" to let the
// writer detect it from the file.
func (c *ProjectConfig) IndentUnit() string {
	s := strings.TrimSpace(c.Indent)
	if s == "" {
		return ""
	}
	if strings.EqualFold(s, "tab") {
		return "\t"
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return ""
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 || n > 16 {
		return ""
	}
	return strings.Repeat(" ", n)
}

// AllIgnoreDirs returns the combined list of default and configured
// ignored directory names.
func (c *ProjectConfig) AllIgnoreDirs() []string {
	combined := make([]string, 0, len(defaultIgnoreDirs)+len(c.IgnoreDirs))
	combined = append(combined, defaultIgnoreDirs...)
	combined = append(combined, c.IgnoreDirs...)
	return combined
}

// IsIgnored reports whether a directory base name is skipped.
func (c *ProjectConfig) IsIgnored(name string) bool {
	for _, d := range c.AllIgnoreDirs() {
		if d == name {
			return true
		}
	}
	return false
}

// BuildFileName returns the default build file name for a build whose
// settings file is Kotlin (kotlin) or Groovy.
func (c *ProjectConfig) BuildFileName(kotlin bool) string {
	if c.DefaultBuildFile != "" {
		return c.DefaultBuildFile
	}
	if kotlin {
		return "build.gradle.kts"
	}
	return "build.gradle"
}
