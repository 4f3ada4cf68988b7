package buildmodel

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"

	"github.com/DeusData/gradle-model-mcp/internal/config"
)

const testRoot = "/proj"

// newTestContext writes files under testRoot on a MemMapFs and opens a
// context on it. Grammar checks are off unless the files carry their own
// project config.
func newTestContext(t *testing.T, files map[string]string) *Context {
	t.Helper()
	fs := afero.NewMemMapFs()
	all := map[string]string{config.FileName: "syntax_check: false\n"}
	for name, text := range files {
		all[name] = text
	}
	for name, text := range all {
		p := filepath.Join(testRoot, filepath.FromSlash(name))
		if err := afero.WriteFile(fs, p, []byte(text), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	ctx := NewContext(fs, testRoot)
	t.Cleanup(ctx.Close)
	return ctx
}

func mustBuildModel(t *testing.T, ctx *Context, path string) *BuildModel {
	t.Helper()
	m, err := ctx.BuildModel(path)
	if err != nil {
		t.Fatalf("BuildModel(%s): %v", path, err)
	}
	return m
}

func readFile(t *testing.T, ctx *Context, name string) string {
	t.Helper()
	data, err := afero.ReadFile(ctx.Fs(), filepath.Join(testRoot, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

const roundTripBuild = `// top comment
plugins {
    id 'com.android.application'
    id 'org.jetbrains.kotlin.android' version '1.9.0' apply false
}

def localVersion = "2.0"

android {
    compileSdkVersion 33   // trailing comment
    defaultConfig {
        applicationId "com.example.app"
        minSdkVersion 21
    }
    if (project.hasProperty('ci')) {
        buildToolsVersion '33.0.1'
    }
}

repositories { google(); mavenCentral() }

dependencies {
    implementation "com.example:lib:$localVersion"
    implementation(project(':core')) {
        exclude group: 'x'
    }
}
`

func TestRoundTripUnchanged(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": roundTripBuild})
	m := mustBuildModel(t, ctx, "build.gradle")

	// reading through every view must not change the text
	m.Plugins()
	m.Repositories().Repositories()
	m.Dependencies().Artifacts()
	m.Android().DefaultConfig().MinSdkVersion()
	m.Ext().Properties()

	if m.IsModified() {
		t.Fatal("model modified by reads")
	}
	if got := m.Text(); got != roundTripBuild {
		t.Errorf("Text() changed the source:\n%s", got)
	}
}

func TestResetDiscardsEdits(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": roundTripBuild})
	m := mustBuildModel(t, ctx, "build.gradle")
	m.ApplyPlugin("idea")
	m.Android().SetCompileSdkVersion(34)
	if !m.IsModified() {
		t.Fatal("expected modified model")
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if m.IsModified() {
		t.Error("model still modified after Reset")
	}
	if got := m.Text(); got != roundTripBuild {
		t.Errorf("Text() after Reset:\n%s", got)
	}
}

func TestStateMachine(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": "plugins {\n    id 'java'\n}\n"})
	m := mustBuildModel(t, ctx, "build.gradle")

	if got := m.State(); got != StateUninitialized {
		t.Fatalf("initial state = %s", got)
	}
	m.Plugins()
	if got := m.State(); got != StateLoaded {
		t.Fatalf("after read = %s", got)
	}
	m.ApplyPlugin("idea")
	if got := m.State(); got != StateModified {
		t.Fatalf("after edit = %s", got)
	}
	if err := m.ApplyChanges(); err != nil {
		t.Fatalf("ApplyChanges: %v", err)
	}
	if got := m.State(); got != StateApplied {
		t.Fatalf("after apply = %s", got)
	}
	if got := len(m.Plugins()); got != 2 {
		t.Fatalf("plugins after apply = %d, want 2", got)
	}
	if got := m.State(); got != StateLoaded {
		t.Fatalf("after reread = %s", got)
	}
	if p := m.Plugin("idea"); p == nil || p.Element().Source() == nil {
		t.Error("plugin not backed by the reparsed file")
	}
}

func TestApplyChangesIdempotent(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": "plugins {\n    id 'java'\n}\n"})
	m := mustBuildModel(t, ctx, "build.gradle")
	m.ApplyPlugin("idea")
	if err := m.ApplyChanges(); err != nil {
		t.Fatalf("ApplyChanges: %v", err)
	}
	want := "plugins {\n    id 'java'\n    id 'idea'\n}\n"
	if got := readFile(t, ctx, "build.gradle"); got != want {
		t.Fatalf("written:\n%s\nwant:\n%s", got, want)
	}

	m.ApplyPlugin("idea")
	if m.IsModified() {
		t.Error("reapplying a written plugin modified the model")
	}
	if err := m.ApplyChanges(); err != nil {
		t.Fatalf("second ApplyChanges: %v", err)
	}
	if got := readFile(t, ctx, "build.gradle"); got != want {
		t.Errorf("second write changed the file:\n%s", got)
	}
}

func TestContextApplyChangesWritesEveryFile(t *testing.T) {
	ctx := newTestContext(t, map[string]string{
		"settings.gradle": "include ':app'\n",
		"app/build.gradle": "",
	})
	s, err := ctx.Settings()
	if err != nil {
		t.Fatalf("Settings: %v", err)
	}
	s.AddModulePath(":lib")
	m, err := ctx.ModuleModel(":app")
	if err != nil {
		t.Fatalf("ModuleModel: %v", err)
	}
	m.ApplyPlugin("java")

	if got := len(ctx.ModifiedFiles()); got != 2 {
		t.Fatalf("ModifiedFiles = %d, want 2", got)
	}
	if err := ctx.ApplyChanges(); err != nil {
		t.Fatalf("ApplyChanges: %v", err)
	}
	if got := len(ctx.ModifiedFiles()); got != 0 {
		t.Errorf("ModifiedFiles after apply = %d", got)
	}
	if got, want := readFile(t, ctx, "settings.gradle"), "include ':app'\ninclude ':lib'\n"; got != want {
		t.Errorf("settings.gradle = %q, want %q", got, want)
	}
	if got, want := readFile(t, ctx, "app/build.gradle"), "plugins {\n    id 'java'\n}\n"; got != want {
		t.Errorf("app/build.gradle = %q, want %q", got, want)
	}
	if m.State() != StateApplied {
		t.Errorf("model state = %s, want applied", m.State())
	}
}

func TestClosedContext(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": ""})
	ctx.Close()
	if err := ctx.Read(func() error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Read after Close = %v", err)
	}
	if err := ctx.Write(func() error { return nil }); !errors.Is(err, ErrClosed) {
		t.Errorf("Write after Close = %v", err)
	}
	if _, err := ctx.BuildModel("build.gradle"); !errors.Is(err, ErrClosed) {
		t.Errorf("BuildModel after Close = %v", err)
	}
}

func TestReadWriteRunCallback(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": "plugins {\n    id 'java'\n}\n"})
	var names []string
	err := ctx.Read(func() error {
		m, err := ctx.BuildModel("build.gradle")
		if err != nil {
			return err
		}
		for _, p := range m.Plugins() {
			names = append(names, p.Name())
		}
		return nil
	})
	if err != nil || len(names) != 1 || names[0] != "java" {
		t.Fatalf("Read = %v, names %v", err, names)
	}
	sentinel := errors.New("stop")
	if err := ctx.Write(func() error { return sentinel }); err != sentinel {
		t.Errorf("Write returned %v, want callback error", err)
	}
}

func TestBuildModelCachedPerFile(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": ""})
	a := mustBuildModel(t, ctx, "build.gradle")
	b := mustBuildModel(t, ctx, filepath.Join(testRoot, "build.gradle"))
	if a != b {
		t.Error("relative and absolute paths gave different models")
	}
	if _, err := ctx.BuildModel("gradle.properties"); err == nil {
		t.Error("BuildModel accepted a properties file")
	}
}

func TestInheritFromParentModule(t *testing.T) {
	ctx := newTestContext(t, map[string]string{
		"settings.gradle": "include ':app'\n",
		"build.gradle": `ext {
    sdk = 34
}
subprojects {
    repositories {
        google()
    }
}
`,
		"app/build.gradle": "android {\n    compileSdkVersion sdk\n}\n",
	})
	m, err := ctx.ModuleModel(":app")
	if err != nil {
		t.Fatalf("ModuleModel: %v", err)
	}
	if got := m.Android().CompileSdkVersion(); got.Value != "34" || got.Unresolved {
		t.Errorf("compileSdkVersion = %+v, want 34", got)
	}
	repos := m.Repositories().Repositories()
	if len(repos) != 1 || repos[0].MethodName() != "google" {
		t.Fatalf("inherited repositories = %v", repos)
	}
	if !repos[0].Element().IsReadOnly() {
		t.Error("inherited repository is writable")
	}
	if got := m.Text(); got != "android {\n    compileSdkVersion sdk\n}\n" {
		t.Errorf("inherited elements leaked into text:\n%s", got)
	}
}

func TestApplyFromMergesProperties(t *testing.T) {
	ctx := newTestContext(t, map[string]string{
		"versions.gradle": "ext.sdkVersion = 31\n",
		"build.gradle":    "apply from: 'versions.gradle'\nandroid {\n    compileSdkVersion sdkVersion\n}\n",
	})
	m := mustBuildModel(t, ctx, "build.gradle")
	if got := m.Android().CompileSdkVersion(); got.Value != "31" || got.Unresolved {
		t.Errorf("compileSdkVersion = %+v, want 31", got)
	}
	var found bool
	for _, p := range m.Ext().Properties() {
		if p.Name == "sdkVersion" {
			found = true
			if !p.Element.IsReadOnly() {
				t.Error("applied property is writable")
			}
		}
	}
	if !found {
		t.Error("applied ext property missing")
	}
	if m.IsModified() {
		t.Error("merging applied script marked the model modified")
	}
}

func TestApplyFromCycle(t *testing.T) {
	ctx := newTestContext(t, map[string]string{
		"a.gradle":     "apply from: 'b.gradle'\next.a = 1\n",
		"b.gradle":     "apply from: 'a.gradle'\next.b = 2\n",
		"build.gradle": "apply from: 'a.gradle'\n",
	})
	m := mustBuildModel(t, ctx, "build.gradle")
	if got := m.Ext().Property("a"); got.Value != "1" {
		t.Errorf("a = %+v", got)
	}
}

func TestModuleModelWithoutSettings(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle.kts": ""})
	if _, err := ctx.Settings(); !errors.Is(err, ErrNoSettings) {
		t.Fatalf("Settings() err = %v, want ErrNoSettings", err)
	}
	m, err := ctx.ModuleModel(":")
	if err != nil {
		t.Fatalf("ModuleModel(:): %v", err)
	}
	if m.Path() != "build.gradle.kts" {
		t.Errorf("root module path = %s", m.Path())
	}
	if _, err := ctx.ModuleModel(":app"); err == nil {
		t.Error("ModuleModel(:app) without settings succeeded")
	}
}

func TestPropertiesFile(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"gradle.properties": "org.gradle.caching=true\n"})
	f, err := ctx.PropertiesFile(".")
	if err != nil {
		t.Fatalf("PropertiesFile: %v", err)
	}
	e := f.Root().PropertyElement("org.gradle.caching")
	if e == nil || e.Value.Text != "true" {
		t.Errorf("org.gradle.caching = %v", e)
	}
}

func TestResetKeepsAppliedScripts(t *testing.T) {
	ctx := newTestContext(t, map[string]string{
		"versions.gradle": "ext.sdkVersion = 31\n",
		"build.gradle":    "apply from: 'versions.gradle'\nandroid {\n    compileSdkVersion sdkVersion\n}\n",
	})
	m := mustBuildModel(t, ctx, "build.gradle")
	m.Android().SetCompileSdkVersion(34)
	if got := m.Android().CompileSdkVersion().Value; got != "34" {
		t.Fatalf("compileSdkVersion after set = %q", got)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := m.Android().CompileSdkVersion(); got.Value != "31" || got.Unresolved {
		t.Errorf("compileSdkVersion after Reset = %+v, want 31", got)
	}
	if m.IsModified() {
		t.Error("model modified after Reset")
	}
}
