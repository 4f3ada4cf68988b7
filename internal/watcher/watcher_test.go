package watcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"

	"github.com/DeusData/gradle-model-mcp/internal/pipeline"
	"github.com/DeusData/gradle-model-mcp/internal/store"
)

const root = "/work/demo"

func setup(t *testing.T) (*store.Store, afero.Fs) {
	t.Helper()
	s, err := store.OpenMemory()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	fs := afero.NewMemMapFs()
	writeFile(t, fs, root+"/.gradlemodel.yaml", "syntax_check: false\n")
	writeFile(t, fs, root+"/build.gradle", "apply plugin: 'java'\n")
	return s, fs
}

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func resetPolls(w *Watcher) {
	for _, state := range w.projects {
		state.nextPoll = time.Time{}
	}
}

func TestSnapshotsEqual(t *testing.T) {
	now := time.Now()

	a := map[string]fileSnapshot{
		"build.gradle":    {modTime: now, size: 100},
		"settings.gradle": {modTime: now, size: 200},
	}
	tests := []struct {
		name string
		b    map[string]fileSnapshot
		want bool
	}{
		{"identical", map[string]fileSnapshot{
			"build.gradle":    {modTime: now, size: 100},
			"settings.gradle": {modTime: now, size: 200},
		}, true},
		{"size", map[string]fileSnapshot{
			"build.gradle":    {modTime: now, size: 101},
			"settings.gradle": {modTime: now, size: 200},
		}, false},
		{"mtime", map[string]fileSnapshot{
			"build.gradle":    {modTime: now.Add(time.Second), size: 100},
			"settings.gradle": {modTime: now, size: 200},
		}, false},
		{"missing", map[string]fileSnapshot{
			"build.gradle": {modTime: now, size: 100},
		}, false},
		{"renamed", map[string]fileSnapshot{
			"build.gradle":        {modTime: now, size: 100},
			"settings.gradle.kts": {modTime: now, size: 200},
		}, false},
	}
	for _, tt := range tests {
		if got := snapshotsEqual(a, tt.b); got != tt.want {
			t.Errorf("%s: snapshotsEqual = %v, want %v", tt.name, got, tt.want)
		}
	}
	if !snapshotsEqual(map[string]fileSnapshot{}, map[string]fileSnapshot{}) {
		t.Error("both empty should be equal")
	}
}

func TestPollInterval(t *testing.T) {
	tests := []struct {
		files    int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{499, 1 * time.Second},
		{500, 2 * time.Second},
		{2000, 5 * time.Second},
		{50000, 60 * time.Second},
		{100000, 60 * time.Second},
	}
	for _, tt := range tests {
		if got := pollInterval(tt.files); got != tt.expected {
			t.Errorf("pollInterval(%d) = %v, want %v", tt.files, got, tt.expected)
		}
	}
}

func TestCaptureSnapshot(t *testing.T) {
	s, fs := setup(t)
	writeFile(t, fs, root+"/src/Main.java", "class Main {}\n")
	w := New(s, fs, nil)

	snap, err := w.captureSnapshot(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != 1 {
		t.Fatalf("expected 1 file, got %d", len(snap))
	}
	fsnap, ok := snap["build.gradle"]
	if !ok {
		t.Fatal("expected build.gradle in snapshot")
	}
	if fsnap.size == 0 || fsnap.modTime.IsZero() {
		t.Errorf("snapshot = %+v", fsnap)
	}
}

func TestWatcherTriggersOnChange(t *testing.T) {
	s, fs := setup(t)
	if err := s.UpsertProject("work-demo", root, "demo"); err != nil {
		t.Fatal(err)
	}

	var indexCount atomic.Int32
	w := New(s, fs, func(_ context.Context, _, _ string) error {
		indexCount.Add(1)
		return nil
	})

	w.pollAll()
	if indexCount.Load() != 0 {
		t.Errorf("first poll should not trigger index, got %d", indexCount.Load())
	}

	resetPolls(w)
	w.pollAll()
	if indexCount.Load() != 0 {
		t.Errorf("no-change poll should not trigger index, got %d", indexCount.Load())
	}

	writeFile(t, fs, root+"/build.gradle", "apply plugin: 'java-library'\n")
	resetPolls(w)
	w.pollAll()
	if indexCount.Load() != 1 {
		t.Errorf("changed file should trigger index, got %d", indexCount.Load())
	}
}

func TestWatcherIgnoresTouchedFiles(t *testing.T) {
	s, fs := setup(t)
	if _, err := pipeline.New(context.Background(), s, fs, root).Run(); err != nil {
		t.Fatalf("index: %v", err)
	}

	var indexCount atomic.Int32
	w := New(s, fs, func(_ context.Context, _, _ string) error {
		indexCount.Add(1)
		return nil
	})
	w.pollAll()

	later := time.Now().Add(time.Minute)
	if err := fs.Chtimes(root+"/build.gradle", later, later); err != nil {
		t.Fatal(err)
	}
	resetPolls(w)
	w.pollAll()
	if indexCount.Load() != 0 {
		t.Errorf("touched file with indexed content triggered index %d times", indexCount.Load())
	}
	if got := w.projects["work-demo"].snapshot["build.gradle"].modTime; !got.Equal(later) {
		t.Errorf("baseline not advanced: %v", got)
	}
}

func TestWatcherCancellation(t *testing.T) {
	s, fs := setup(t)
	w := New(s, fs, func(_ context.Context, _, _ string) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not stop after context cancellation")
	}
}

func TestWatcherSkipsMissingRoot(t *testing.T) {
	s, fs := setup(t)
	if err := s.UpsertProject("ghost", "/nonexistent/path", "ghost"); err != nil {
		t.Fatal(err)
	}

	var indexCount atomic.Int32
	w := New(s, fs, func(_ context.Context, _, _ string) error {
		indexCount.Add(1)
		return nil
	})
	w.pollAll()
	resetPolls(w)
	w.pollAll()
	if indexCount.Load() != 0 {
		t.Errorf("should not index missing root, got %d", indexCount.Load())
	}
}

func TestWatcherNewFileTriggersIndex(t *testing.T) {
	s, fs := setup(t)
	if err := s.UpsertProject("work-demo", root, "demo"); err != nil {
		t.Fatal(err)
	}

	var indexCount atomic.Int32
	w := New(s, fs, func(_ context.Context, _, _ string) error {
		indexCount.Add(1)
		return nil
	})
	w.pollAll()

	writeFile(t, fs, root+"/settings.gradle", "include ':app'\n")
	resetPolls(w)
	w.pollAll()
	if indexCount.Load() != 1 {
		t.Errorf("new file should trigger index, got %d", indexCount.Load())
	}
}
