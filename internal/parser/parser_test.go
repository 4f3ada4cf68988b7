package parser

import (
	"testing"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/DeusData/gradle-model-mcp/internal/lang"
)

func TestParseGroovyBuildScript(t *testing.T) {
	source := []byte(`plugins {
    id 'com.android.application'
}

android {
    compileSdkVersion 28
}
`)
	tree, err := Parse(lang.Groovy, source)
	if err != nil {
		t.Fatalf("Parse Groovy: %v", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil {
		t.Fatal("root node is nil")
	}
	if root.Kind() != "source_file" {
		t.Errorf("root kind = %q, want source_file", root.Kind())
	}
}

func TestParseKotlinBuildScript(t *testing.T) {
	source := []byte(`plugins {
    id("com.android.application")
}

android {
    compileSdk = 34
}
`)
	tree, err := Parse(lang.Kotlin, source)
	if err != nil {
		t.Fatalf("Parse Kotlin: %v", err)
	}
	defer tree.Close()

	var calls int
	Walk(tree.RootNode(), func(n *tree_sitter.Node) bool {
		if n.Kind() == "call_expression" {
			calls++
		}
		return true
	})
	if calls == 0 {
		t.Error("expected at least one call_expression")
	}
}

func TestScriptLanguagesLoad(t *testing.T) {
	for _, l := range lang.ScriptLanguages() {
		if _, err := GetLanguage(l); err != nil {
			t.Errorf("GetLanguage(%s): %v", l, err)
		}
	}
}

func TestUnsupportedLanguage(t *testing.T) {
	if _, err := Parse(lang.Properties, []byte("a=b")); err == nil {
		t.Error("expected error for properties language")
	}
}

func TestCheckUnbalancedBlock(t *testing.T) {
	diags, err := Check(lang.Kotlin, []byte("android {\n    compileSdk = 34\n"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) == 0 {
		t.Fatal("expected diagnostics for unterminated block")
	}
	if diags[0].Line < 1 || diags[0].Column < 1 {
		t.Errorf("diagnostic position not 1-based: %+v", diags[0])
	}
}

func TestCheckCleanKotlin(t *testing.T) {
	diags, err := Check(lang.Kotlin, []byte("val x = 1\n"))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %v", diags)
	}
}
