package dsl

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const groovyBuild = `plugins {
    id 'com.android.application'
    id 'org.jetbrains.kotlin.android' version '1.9.0' apply false
}

apply plugin: 'kotlin-kapt'

ext {
    compileSdk = 33
    libraries = [guava: 'com.google.guava:guava:28.0-jre']
}

def appVersion = '1.0'

android {
    compileSdkVersion compileSdk
    defaultConfig {
        applicationId "com.example.app"
        targetSdkVersion compileSdkVersion
        versionName "v$appVersion"
    }
    buildTypes {
        release {
            minifyEnabled false
            proguardFiles getDefaultProguardFile('proguard-android.txt'), 'proguard-rules.pro'
        }
    }
}

repositories {
    google()
    maven { url 'https://jitpack.io' }
}

dependencies {
    implementation 'androidx.core:core-ktx:1.9.0'
    implementation project(':lib')
    implementation(libraries.guava) {
        exclude group: 'com.google.code.findbugs'
    }
    testImplementation group: 'junit', name: 'junit', version: '4.13.2'
}

task clean(type: Delete) {
    delete rootProject.buildDir
}

if (project.hasProperty('ci')) {
    println 'ci build'
} else {
    println 'local build'
}
`

const kotlinBuild = `plugins {
    id("com.android.application") version "8.1.0" apply false
    kotlin("android")
    ` + "`kotlin-dsl`" + `
}

val kotlinVersion: String = "1.9.0"
extra["compose"] = "1.5.0"

android {
    namespace = "com.example"
    compileSdk = 34
    defaultConfig {
        minSdk = 21
    }
    buildTypes {
        getByName("release") {
            isMinifyEnabled = false
        }
    }
}

dependencies {
    implementation("androidx.core:core-ktx:1.9.0")
    implementation(project(":lib"))
}

tasks.register<Delete>("clean") {
    delete(rootProject.buildDir)
}
`

func mustParse(t *testing.T, path, text string) *File {
	t.Helper()
	f, err := ParseString(path, text)
	if err != nil {
		t.Fatalf("ParseString(%s): %v", path, err)
	}
	return f
}

func TestRoundTripUnmodified(t *testing.T) {
	tests := []struct {
		path string
		text string
	}{
		{"build.gradle", groovyBuild},
		{"build.gradle.kts", kotlinBuild},
		{"settings.gradle", "include ':a', ':a:b'\nrootProject.name = 'demo'"},
		{"gradle.properties", "# comment\norg.gradle.jvmargs=-Xmx2g \\\n  -Dfile.encoding=UTF-8\nandroid.useAndroidX=true\n"},
		{"build.gradle", ""},
		{"build.gradle", "\n\n  // only a comment\n"},
	}
	for _, tt := range tests {
		f := mustParse(t, tt.path, tt.text)
		if got := f.Text(); got != tt.text {
			t.Errorf("%s: round trip changed text:\n%s", tt.path, cmp.Diff(tt.text, got))
		}
		if f.IsModified() {
			t.Errorf("%s: fresh parse reports modified", tt.path)
		}
		again := mustParse(t, tt.path, f.Text())
		if diff := cmp.Diff(Dump(f.Root()), Dump(again.Root())); diff != "" {
			t.Errorf("%s: reparse differs (-first +second):\n%s", tt.path, diff)
		}
	}
}

func TestParseGroovyStructure(t *testing.T) {
	f := mustParse(t, "build.gradle", groovyBuild)
	root := f.Root()

	plugins := root.Block("plugins")
	if plugins == nil {
		t.Fatal("plugins block not found")
	}
	ids := plugins.PropertyElements("id")
	if len(ids) != 2 {
		t.Fatalf("got %d plugin ids, want 2", len(ids))
	}
	if ids[0].Kind != KindLiteral || ids[0].Value.Text != "com.android.application" {
		t.Errorf("first id = %+v", ids[0].Value)
	}
	if v := ids[1].ChainValue("version"); v == nil || v.Value.Text != "1.9.0" {
		t.Errorf("version chain = %v", v)
	}
	if a := ids[1].ChainValue("apply"); a == nil || a.Value.Type != ValueBool || a.Value.Text != "false" {
		t.Errorf("apply chain = %v", a)
	}

	apply := root.PropertyElement("apply", KindMap)
	if apply == nil || apply.Entry("plugin") == nil || apply.Entry("plugin").Value.Text != "kotlin-kapt" {
		t.Fatalf("apply map not parsed: %+v", apply)
	}

	if vars := root.Variables(); len(vars) != 1 || vars[0].Name != "appVersion" {
		t.Errorf("variables = %v", vars)
	}
	if root.PropertyElement("appVersion") != nil {
		t.Error("variable returned as property")
	}

	android := root.Block("android")
	csv := android.PropertyElement("compileSdkVersion", KindLiteral)
	if csv == nil || csv.Value.Type != ValueReference || csv.Value.Text != "compileSdk" {
		t.Errorf("compileSdkVersion = %+v", csv)
	}
	if got := android.PropertyElement("compileSdkVersion", KindBlock); got != nil {
		t.Error("kind filter ignored")
	}
	name := android.Block("defaultConfig").PropertyElement("versionName")
	if name.Value.Type != ValueInterpolated {
		t.Errorf("versionName type = %s", name.Value.Type)
	}

	release := android.Block("buildTypes").Block("release")
	pf := release.PropertyElement("proguardFiles", KindMethodCall)
	if pf == nil || len(pf.Arguments()) != 2 {
		t.Fatalf("proguardFiles = %+v", pf)
	}
	if pf.Arguments()[0].CallName() != "getDefaultProguardFile" {
		t.Errorf("first proguard arg callee = %q", pf.Arguments()[0].CallName())
	}

	maven := root.Block("repositories").Block("maven")
	if url := maven.PropertyElement("url"); url == nil || url.Value.Text != "https://jitpack.io" {
		t.Errorf("maven url = %+v", url)
	}

	deps := root.Block("dependencies")
	impl := deps.PropertyElements("implementation")
	if len(impl) != 3 {
		t.Fatalf("got %d implementation deps, want 3", len(impl))
	}
	if impl[1].CallName() != "project" {
		t.Errorf("project dependency callee = %q", impl[1].CallName())
	}
	if impl[2].Kind != KindBlock || len(impl[2].Args) != 1 {
		t.Errorf("closure dependency = kind %s args %d", impl[2].Kind, len(impl[2].Args))
	}
	junit := deps.PropertyElement("testImplementation", KindMap)
	if junit == nil || junit.Entry("version").Value.Text != "4.13.2" {
		t.Errorf("map dependency = %+v", junit)
	}

	task := root.PropertyElement("task", KindBlock)
	if task == nil || task.Args[0].CallName() != "clean" {
		t.Errorf("task block = %+v", task)
	}

	var opaque int
	for _, c := range root.Children() {
		if c.Syntax == SyntaxStatement {
			opaque++
			if c.Name != "" || c.Value.Type != ValueUnknown {
				t.Errorf("opaque element = %+v", c)
			}
		}
	}
	if opaque != 1 {
		t.Errorf("got %d opaque statements, want 1 (if/else)", opaque)
	}
}

func TestParseKotlinStructure(t *testing.T) {
	f := mustParse(t, "build.gradle.kts", kotlinBuild)
	root := f.Root()

	plugins := root.Block("plugins")
	id := plugins.PropertyElement("id", KindMethodCall)
	if id == nil || id.SingleValue() == nil || id.SingleValue().Value.Text != "com.android.application" {
		t.Fatalf("id call = %+v", id)
	}
	if v := id.ChainValue("version"); v == nil || v.Value.Text != "8.1.0" {
		t.Errorf("version chain = %v", v)
	}
	if k := plugins.PropertyElement("kotlin", KindMethodCall); k == nil || k.SingleValue().Value.Text != "android" {
		t.Errorf("kotlin() = %+v", k)
	}
	if dsl := plugins.PropertyElement("`kotlin-dsl`"); dsl == nil {
		t.Error("backtick plugin not parsed")
	}

	vars := root.Variables()
	if len(vars) != 1 || vars[0].Name != "kotlinVersion" || vars[0].Value.Text != "1.9.0" {
		t.Errorf("variables = %+v", vars)
	}
	if extra := root.PropertyElement("extra.compose"); extra == nil || extra.Value.Text != "1.5.0" {
		t.Errorf("extra[] = %+v", extra)
	}

	android := root.Block("android")
	if cs := android.PropertyElement("compileSdk"); cs == nil || cs.Syntax != SyntaxAssignment {
		t.Errorf("compileSdk = %+v", cs)
	}
	release := android.Block("buildTypes").PropertyElement("getByName", KindBlock)
	if release == nil || release.Args[0].Value.Text != "release" {
		t.Fatalf("getByName block = %+v", release)
	}

	impl := root.Block("dependencies").PropertyElements("implementation")
	if len(impl) != 2 || impl[1].CallName() != "project" {
		t.Errorf("implementation = %+v", impl)
	}
}

func TestParseSettings(t *testing.T) {
	f := mustParse(t, "settings.gradle", `include ':app', ':lib'
include(':core')
project(':lib').projectDir = new File(rootDir, 'libs/lib')
project(':core') {
    buildFileName = 'core.gradle'
}
`)
	root := f.Root()
	incs := root.PropertyElements("include")
	if len(incs) != 2 {
		t.Fatalf("got %d include statements, want 2", len(incs))
	}
	if incs[0].Kind != KindMethodCall || len(incs[0].Arguments()) != 2 {
		t.Errorf("first include = %+v", incs[0])
	}
	if incs[1].SingleValue() == nil || incs[1].SingleValue().Value.Text != ":core" {
		t.Errorf("second include = %+v", incs[1])
	}
	dir := root.PropertyElement("project(':lib').projectDir")
	if dir == nil || dir.Value.Type != ValueUnknown {
		t.Errorf("projectDir override = %+v", dir)
	}
	blk := root.PropertyElement("project", KindBlock)
	if blk == nil || blk.Args[0].Value.Text != ":core" {
		t.Fatalf("project block = %+v", blk)
	}
	if bf := blk.PropertyElement("buildFileName"); bf == nil || bf.Value.Text != "core.gradle" {
		t.Errorf("buildFileName = %+v", bf)
	}
}

func TestParseProperties(t *testing.T) {
	f := mustParse(t, "gradle.properties", "# c\n! c2\nkey1=value1\nkey2 : value2\nkey3 value3\nmulti=a \\\n    b\nempty=\n")
	tests := map[string]string{
		"key1":  "value1",
		"key2":  "value2",
		"key3":  "value3",
		"multi": "a b",
		"empty": "",
	}
	for k, want := range tests {
		e := f.Root().PropertyElement(k)
		if e == nil {
			t.Errorf("%s missing", k)
			continue
		}
		if e.Value.Text != want {
			t.Errorf("%s = %q, want %q", k, e.Value.Text, want)
		}
	}
	if n := len(f.Root().Properties()); n != 5 {
		t.Errorf("got %d properties, want 5", n)
	}
}

func TestParseUnterminatedStringKeepsText(t *testing.T) {
	src := "android {\n    name 'broken\n}\n"
	f, err := ParseString("build.gradle", src)
	if !errors.Is(err, ErrSyntax) {
		t.Fatalf("err = %v, want ErrSyntax", err)
	}
	if f.Text() != src {
		t.Errorf("text changed: %q", f.Text())
	}
	if len(f.Root().Children()) != 1 || f.Root().Children()[0].Syntax != SyntaxStatement {
		t.Errorf("expected one opaque statement, got %+v", Dump(f.Root()))
	}
}

func TestParseUnbalancedBlockIsOpaque(t *testing.T) {
	src := "android {\n    compileSdkVersion 28\n"
	f := mustParse(t, "build.gradle", src)
	if f.Root().Block("android") != nil {
		t.Error("unterminated block parsed as a block")
	}
	if f.Text() != src {
		t.Errorf("text changed: %q", f.Text())
	}
}
