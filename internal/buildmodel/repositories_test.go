package buildmodel

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultRepositoryNotDuplicated(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": "repositories {\n    jcenter()\n}\n"})
	m := mustBuildModel(t, ctx, "build.gradle")
	rm := m.Repositories()
	existing := rm.Repositories()[0]

	got := rm.AddRepositoryByMethodName("jcenter")
	if got.Element() != existing.Element() {
		t.Error("AddRepositoryByMethodName returned a new declaration")
	}
	if m.IsModified() {
		t.Error("adding a present default repository modified the model")
	}
	if n := len(rm.Repositories()); n != 1 {
		t.Errorf("repositories = %d, want 1", n)
	}
}

func TestDefaultRepositoryProperties(t *testing.T) {
	tests := []struct {
		method string
		name   string
		url    string
	}{
		{"jcenter", "BintrayJCenter2", "https://jcenter.bintray.com/"},
		{"mavenCentral", "MavenRepo", "https://repo1.maven.org/maven2/"},
		{"google", "Google", "https://dl.google.com/dl/android/maven2/"},
		{"gradlePluginPortal", "Gradle Central Plugin Repository", "https://plugins.gradle.org/m2/"},
		{"mavenLocal", "MavenLocal", ""},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			ctx := newTestContext(t, map[string]string{"build.gradle": "repositories {\n    " + tt.method + "()\n}\n"})
			m := mustBuildModel(t, ctx, "build.gradle")
			repos := m.Repositories().Repositories()
			if len(repos) != 1 {
				t.Fatalf("repositories = %d, want 1", len(repos))
			}
			r := repos[0]
			if r.Type() != RepoDefault {
				t.Errorf("type = %s", r.Type())
			}
			name, url := r.Name(), r.URL()
			if name.Value != tt.name || name.Element != nil {
				t.Errorf("name = %+v, want implied %q", name, tt.name)
			}
			if url.Value != tt.url || url.Element != nil {
				t.Errorf("url = %+v, want implied %q", url, tt.url)
			}
		})
	}
}

func TestAddRepositoryByMethodName(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": "repositories {\n    jcenter()\n}\n"})
	m := mustBuildModel(t, ctx, "build.gradle")
	r := m.Repositories().AddRepositoryByMethodName("google")
	if r.Type() != RepoDefault || r.Name().Value != "Google" {
		t.Errorf("added repository = %s %+v", r.Type(), r.Name())
	}
	want := "repositories {\n    jcenter()\n    google()\n}\n"
	if got := m.Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestAddMavenRepositoryByURL(t *testing.T) {
	tests := []struct {
		file string
		src  string
		want string
	}{
		{
			file: "build.gradle",
			src:  "repositories {\n    jcenter()\n}\n",
			want: "repositories {\n    jcenter()\n    maven {\n        url 'https://jitpack.io'\n    }\n}\n",
		},
		{
			file: "build.gradle.kts",
			src:  "repositories {\n    google()\n}\n",
			want: "repositories {\n    google()\n    maven {\n        url = uri(\"https://jitpack.io\")\n    }\n}\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			ctx := newTestContext(t, map[string]string{tt.file: tt.src})
			m := mustBuildModel(t, ctx, tt.file)
			rm := m.Repositories()
			if rm.HasMavenRepositoryURL("https://jitpack.io") {
				t.Fatal("HasMavenRepositoryURL before add")
			}
			r := rm.AddMavenRepositoryByURL("https://jitpack.io")
			if got := r.URL().Value; got != "https://jitpack.io" {
				t.Errorf("URL() = %q", got)
			}
			if !rm.HasMavenRepositoryURL("https://jitpack.io") {
				t.Error("HasMavenRepositoryURL after add = false")
			}
			if got := m.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddMavenRepositoryNeverDeduplicated(t *testing.T) {
	ctx := newTestContext(t, nil)
	m := mustBuildModel(t, ctx, "build.gradle")
	rm := m.Repositories()
	rm.AddMavenRepositoryByURL("https://a.example/")
	rm.AddMavenRepositoryByURL("https://a.example/")
	if n := len(rm.Repositories()); n != 2 {
		t.Errorf("repositories = %d, want 2", n)
	}
}

func TestMavenRepositoryDetails(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": `ext.repoPath = 'releases'
repositories {
    maven {
        name = 'internal'
        url = "https://repo.example.com/${repoPath}"
        artifactUrls 'https://mirror.example.com/'
        credentials {
            username = 'deploy'
            password = 'secret'
        }
    }
    maven { url 'https://jitpack.io' }
}
`})
	m := mustBuildModel(t, ctx, "build.gradle")
	repos := m.Repositories().Repositories()
	if len(repos) != 2 {
		t.Fatalf("repositories = %d, want 2", len(repos))
	}
	r := repos[0]
	if got := r.Name(); got.Value != "internal" || got.Element == nil {
		t.Errorf("name = %+v", got)
	}
	if got := r.URL(); got.Value != "https://repo.example.com/releases" || got.Unresolved {
		t.Errorf("url = %+v", got)
	}
	var urls []string
	for _, p := range r.ArtifactURLs() {
		urls = append(urls, p.Value)
	}
	if diff := cmp.Diff([]string{"https://mirror.example.com/"}, urls); diff != "" {
		t.Errorf("artifactUrls (-want +got):\n%s", diff)
	}
	user, pass := r.Credentials()
	if user.Value != "deploy" || pass.Value != "secret" {
		t.Errorf("credentials = %q/%q", user.Value, pass.Value)
	}
	if got := repos[1].Name(); got.Value != "maven" || got.Element != nil {
		t.Errorf("unnamed maven name = %+v", got)
	}
	if got := repos[1].URL().Value; got != "https://jitpack.io" {
		t.Errorf("single-line maven url = %q", got)
	}
}

func TestFlatDirRepository(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": "repositories {\n    flatDir {\n        dirs 'libs', 'vendor'\n    }\n}\n"})
	m := mustBuildModel(t, ctx, "build.gradle")
	repos := m.Repositories().Repositories()
	if len(repos) != 1 || repos[0].Type() != RepoFlatDir {
		t.Fatalf("repositories = %v", repos)
	}
	var dirs []string
	for _, p := range repos[0].Dirs() {
		dirs = append(dirs, p.Value)
	}
	if diff := cmp.Diff([]string{"libs", "vendor"}, dirs); diff != "" {
		t.Errorf("dirs (-want +got):\n%s", diff)
	}
}

func TestAddFlatDirRepository(t *testing.T) {
	ctx := newTestContext(t, nil)
	m := mustBuildModel(t, ctx, "build.gradle")
	r := m.Repositories().AddFlatDirRepository("libs")
	want := "repositories {\n    flatDir {\n        dirs 'libs'\n    }\n}\n"
	if got := m.Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
	if dirs := r.Dirs(); len(dirs) != 1 || dirs[0].Value != "libs" {
		t.Errorf("Dirs() = %+v", dirs)
	}
}

func TestRemoveRepository(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": `repositories {
    jcenter()
    google()
    maven {
        url 'https://jitpack.io'
    }
}
`})
	m := mustBuildModel(t, ctx, "build.gradle")
	rm := m.Repositories()
	if !rm.RemoveRepository("jcenter") {
		t.Fatal("RemoveRepository(jcenter) = false")
	}
	if !rm.RemoveRepository("https://jitpack.io") {
		t.Fatal("RemoveRepository(url) = false")
	}
	if rm.RemoveRepository("mavenCentral") {
		t.Error("RemoveRepository of an undeclared repository = true")
	}
	want := "repositories {\n    google()\n}\n"
	if got := m.Text(); got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestBuildscriptRepositoriesAreSeparate(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": `buildscript {
    repositories {
        google()
    }
}
repositories {
    mavenCentral()
}
`})
	m := mustBuildModel(t, ctx, "build.gradle")
	bs := m.Buildscript().Repositories().Repositories()
	top := m.Repositories().Repositories()
	if len(bs) != 1 || bs[0].MethodName() != "google" {
		t.Errorf("buildscript repositories = %v", bs)
	}
	if len(top) != 1 || top[0].MethodName() != "mavenCentral" {
		t.Errorf("top-level repositories = %v", top)
	}
}

func TestReplaceRepositoryOnOneLine(t *testing.T) {
	tests := []struct {
		file string
		src  string
		want string
	}{
		{"build.gradle", "repositories { jcenter() }\n", "repositories { google() }\n"},
		{"build.gradle.kts", "repositories { jcenter() }\n", "repositories { google() }\n"},
		{"build.gradle", "repositories {\n    jcenter()\n}\n", "repositories {\n    google()\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			ctx := newTestContext(t, map[string]string{tt.file: tt.src})
			m := mustBuildModel(t, ctx, tt.file)
			rm := m.Repositories()
			if !rm.RemoveRepository("jcenter") {
				t.Fatal("RemoveRepository(jcenter) = false")
			}
			rm.AddRepositoryByMethodName("google")
			if err := m.ApplyChanges(); err != nil {
				t.Fatalf("ApplyChanges: %v", err)
			}
			if got := readFile(t, ctx, tt.file); got != tt.want {
				t.Errorf("written = %q, want %q", got, tt.want)
			}
			var names []string
			for _, r := range m.Repositories().Repositories() {
				names = append(names, r.MethodName())
			}
			if diff := cmp.Diff([]string{"google"}, names); diff != "" {
				t.Errorf("repositories after write (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAddMavenRepositoryToOneLineBlock(t *testing.T) {
	ctx := newTestContext(t, map[string]string{"build.gradle": "repositories { google() }\n"})
	m := mustBuildModel(t, ctx, "build.gradle")
	m.Repositories().AddMavenRepositoryByURL("https://jitpack.io")
	if err := m.ApplyChanges(); err != nil {
		t.Fatalf("ApplyChanges: %v", err)
	}
	want := "repositories {\n    google()\n    maven {\n        url 'https://jitpack.io'\n    }\n}\n"
	if got := readFile(t, ctx, "build.gradle"); got != want {
		t.Errorf("written = %q, want %q", got, want)
	}
	if !m.Repositories().HasMavenRepositoryURL("https://jitpack.io") {
		t.Error("maven repository lost after write")
	}
}
