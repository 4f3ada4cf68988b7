package discover

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/DeusData/gradle-model-mcp/internal/lang"
)

func writeFiles(t *testing.T, fs afero.Fs, files map[string]string) {
	t.Helper()
	for p, content := range files {
		if err := afero.WriteFile(fs, p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestDiscoverBasic(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/repo/settings.gradle.kts":        "include(\":app\")\n",
		"/repo/gradle.properties":          "x=1\n",
		"/repo/gradle/libs.versions.toml":  "[versions]\n",
		"/repo/app/build.gradle.kts":       "",
		"/repo/app/src/Main.kt":            "fun main() {}\n",
		"/repo/app/build/tmp/build.gradle": "",
		"/repo/.gradle/8.1/cache.gradle":   "",
		"/repo/README.md":                  "",
	})

	files, err := Discover(context.Background(), fs, "/repo", nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	got := make(map[string]lang.FileKind)
	for _, f := range files {
		if f.Path != filepath.Join("/repo", filepath.FromSlash(f.RelPath)) {
			t.Errorf("Path %s does not match RelPath %s", f.Path, f.RelPath)
		}
		if f.Language == "" {
			t.Errorf("%s: empty language", f.RelPath)
		}
		got[f.RelPath] = f.Kind
	}
	want := map[string]lang.FileKind{
		"settings.gradle.kts":       lang.KindSettings,
		"gradle.properties":         lang.KindProperties,
		"gradle/libs.versions.toml": lang.KindCatalog,
		"app/build.gradle.kts":      lang.KindBuild,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("discovered files (-want +got):\n%s", diff)
	}
}

func TestDiscoverIgnoreFileAndConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/repo/.gradlemodel.yaml":       "ignore_dirs: [samples]\n",
		"/repo/.gradlemodelignore":      "# fixtures\nfixtures/*\n",
		"/repo/build.gradle":            "",
		"/repo/samples/build.gradle":    "",
		"/repo/fixtures/a/build.gradle": "",
		"/repo/lib/build.gradle":        "",
	})
	files, err := Discover(context.Background(), fs, "/repo", nil)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	var rels []string
	for _, f := range files {
		rels = append(rels, f.RelPath)
	}
	if diff := cmp.Diff([]string{"build.gradle", "lib/build.gradle"}, rels); diff != "" {
		t.Errorf("discovered files (-want +got):\n%s", diff)
	}
}

func TestDiscoverCancellation(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{"/repo/build.gradle": ""})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Discover(ctx, fs, "/repo", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestFindBuildRoots(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, map[string]string{
		"/ws/android/settings.gradle":       "include ':app'\n",
		"/ws/android/build.gradle":          "",
		"/ws/android/app/build.gradle":      "",
		"/ws/android/buildSrc/build.gradle": "",
		"/ws/tool/build.gradle.kts":         "",
		"/ws/tool/sub/build.gradle.kts":     "",
		"/ws/tool-x/build.gradle":           "",
		"/ws/docs/readme.txt":               "",
	})
	roots, err := FindBuildRoots(context.Background(), fs, "/ws")
	if err != nil {
		t.Fatalf("FindBuildRoots: %v", err)
	}
	want := []string{"/ws/android", "/ws/tool", "/ws/tool-x"}
	if diff := cmp.Diff(want, roots); diff != "" {
		t.Errorf("roots (-want +got):\n%s", diff)
	}
}
