package config

import (
	"testing"

	"github.com/spf13/afero"
)

func TestLoadConfigDefault(t *testing.T) {
	cfg := LoadConfig(afero.NewMemMapFs(), "/nonexistent")
	if !cfg.EffectiveSyntaxCheck() {
		t.Error("expected default syntax_check true")
	}
	if cfg.IndentUnit() != "" {
		t.Errorf("expected no indent override, got %q", cfg.IndentUnit())
	}
	if got := cfg.BuildFileName(false); got != "build.gradle" {
		t.Errorf("groovy build file = %q", got)
	}
	if got := cfg.BuildFileName(true); got != "build.gradle.kts" {
		t.Errorf("kotlin build file = %q", got)
	}
	if len(cfg.AllIgnoreDirs()) != len(defaultIgnoreDirs) {
		t.Errorf("expected %d default ignore dirs, got %d", len(defaultIgnoreDirs), len(cfg.AllIgnoreDirs()))
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := `
ignore_dirs:
  - generated
indent: "2"
syntax_check: false
default_build_file: module.gradle
`
	if err := afero.WriteFile(fs, "/proj/"+FileName, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := LoadConfig(fs, "/proj")
	if cfg.EffectiveSyntaxCheck() {
		t.Error("expected syntax_check false")
	}
	if cfg.IndentUnit() != "  " {
		t.Errorf("indent = %q, want two spaces", cfg.IndentUnit())
	}
	if cfg.BuildFileName(true) != "module.gradle" {
		t.Errorf("build file = %q", cfg.BuildFileName(true))
	}
	if !cfg.IsIgnored("generated") || !cfg.IsIgnored(".gradle") {
		t.Error("expected configured and default dirs to be ignored")
	}
	if cfg.IsIgnored("app") {
		t.Error("app should not be ignored")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/proj/"+FileName, []byte("not: [valid: yaml"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg := LoadConfig(fs, "/proj")
	if !cfg.EffectiveSyntaxCheck() || len(cfg.IgnoreDirs) != 0 {
		t.Errorf("expected defaults on invalid yaml, got %+v", cfg)
	}
}

func TestIndentUnit(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"tab", "\t"},
		{"TAB", "\t"},
		{"4", "    "},
		{"0", ""},
		{"abc", ""},
		{"99", ""},
	}
	for _, tt := range tests {
		cfg := &ProjectConfig{Indent: tt.in}
		if got := cfg.IndentUnit(); got != tt.want {
			t.Errorf("IndentUnit(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
