package watcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/DeusData/gradle-model-mcp/internal/discover"
	"github.com/DeusData/gradle-model-mcp/internal/pipeline"
	"github.com/DeusData/gradle-model-mcp/internal/store"
)

const (
	baseInterval = 1 * time.Second
	maxInterval  = 60 * time.Second
)

type fileSnapshot struct {
	modTime time.Time
	size    int64
}

type projectState struct {
	snapshot map[string]fileSnapshot
	interval time.Duration
	nextPoll time.Time
}

// IndexFunc is the callback signature for triggering a re-index.
type IndexFunc func(ctx context.Context, projectName, rootPath string) error

// Watcher polls indexed builds for changed Gradle files and triggers
// re-indexing.
type Watcher struct {
	store    *store.Store
	fs       afero.Fs
	indexFn  IndexFunc
	projects map[string]*projectState
	ctx      context.Context
}

// New creates a Watcher. indexFn is called when file changes are detected.
func New(s *store.Store, fs afero.Fs, indexFn IndexFunc) *Watcher {
	return &Watcher{
		store:    s,
		fs:       fs,
		indexFn:  indexFn,
		projects: make(map[string]*projectState),
		ctx:      context.Background(),
	}
}

// Run blocks until ctx is cancelled. Ticks at baseInterval, polling each
// project only when its adaptive interval has elapsed.
func (w *Watcher) Run(ctx context.Context) {
	w.ctx = ctx
	ticker := time.NewTicker(baseInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollAll()
		}
	}
}

// pollAll lists all indexed projects and polls each that is due.
func (w *Watcher) pollAll() {
	projects, err := w.store.ListProjects()
	if err != nil {
		slog.Warn("watcher.list_projects", "err", err)
		return
	}

	now := time.Now()
	for _, proj := range projects {
		state, exists := w.projects[proj.Name]
		if !exists {
			state = &projectState{}
			w.projects[proj.Name] = state
		}
		if exists && now.Before(state.nextPoll) {
			continue
		}
		w.pollProject(proj, state)
	}
}

// pollProject captures a snapshot of the build's files and compares it
// with the previous one. The first poll only records a baseline. A change
// in mtime or size triggers indexFn unless every file still hashes to the
// indexed content.
func (w *Watcher) pollProject(proj *store.Project, state *projectState) {
	if ok, err := afero.DirExists(w.fs, proj.RootPath); err != nil || !ok {
		slog.Warn("watcher.root_gone", "project", proj.Name, "path", proj.RootPath)
		state.nextPoll = time.Now().Add(maxInterval)
		return
	}

	snap, err := w.captureSnapshot(proj.RootPath)
	if err != nil {
		slog.Warn("watcher.snapshot", "project", proj.Name, "err", err)
		state.nextPoll = time.Now().Add(state.interval)
		return
	}

	interval := pollInterval(len(snap))

	if state.snapshot == nil {
		slog.Debug("watcher.baseline", "project", proj.Name, "files", len(snap))
		state.snapshot = snap
		state.interval = interval
		state.nextPoll = time.Now().Add(interval)
		return
	}

	if snapshotsEqual(state.snapshot, snap) || w.contentUnchanged(proj, state.snapshot, snap) {
		state.snapshot = snap
		state.interval = interval
		state.nextPoll = time.Now().Add(interval)
		return
	}

	slog.Info("watcher.changed", "project", proj.Name, "files", len(snap))
	if err := w.indexFn(w.ctx, proj.Name, proj.RootPath); err != nil {
		slog.Warn("watcher.index", "project", proj.Name, "err", err)
		// keep the old snapshot so the next cycle retries
		state.nextPoll = time.Now().Add(interval)
		return
	}

	state.snapshot = snap
	state.interval = pollInterval(len(snap))
	state.nextPoll = time.Now().Add(state.interval)
}

// contentUnchanged reports whether the same files exist and every file
// whose mtime or size moved still hashes to its indexed digest.
func (w *Watcher) contentUnchanged(proj *store.Project, old, cur map[string]fileSnapshot) bool {
	if len(old) != len(cur) {
		return false
	}
	stored, err := w.store.GetFileHashes(proj.Name)
	if err != nil {
		return false
	}
	for rel, s := range cur {
		o, ok := old[rel]
		if !ok {
			return false
		}
		if o.modTime.Equal(s.modTime) && o.size == s.size {
			continue
		}
		h, err := pipeline.HashFile(w.fs, filepath.Join(proj.RootPath, filepath.FromSlash(rel)))
		if err != nil || stored[rel] == "" || h != stored[rel] {
			return false
		}
	}
	return true
}

// captureSnapshot walks the build with discover.Discover and captures
// mtime+size for each file.
func (w *Watcher) captureSnapshot(rootPath string) (map[string]fileSnapshot, error) {
	files, err := discover.Discover(w.ctx, w.fs, rootPath, nil)
	if err != nil {
		return nil, err
	}

	snap := make(map[string]fileSnapshot, len(files))
	for _, f := range files {
		info, statErr := w.fs.Stat(f.Path)
		if statErr != nil {
			continue
		}
		snap[f.RelPath] = fileSnapshot{
			modTime: info.ModTime(),
			size:    info.Size(),
		}
	}
	return snap, nil
}

// snapshotsEqual returns true if two snapshots have identical files with same mtime+size.
func snapshotsEqual(a, b map[string]fileSnapshot) bool {
	if len(a) != len(b) {
		return false
	}
	for path, aSnap := range a {
		bSnap, ok := b[path]
		if !ok {
			return false
		}
		if !aSnap.modTime.Equal(bSnap.modTime) || aSnap.size != bSnap.size {
			return false
		}
	}
	return true
}

// pollInterval computes the adaptive interval from file count.
// 1s base + 1s per 500 files, capped at 60s.
func pollInterval(fileCount int) time.Duration {
	ms := 1000 + (fileCount/500)*1000
	if ms > 60000 {
		ms = 60000
	}
	return time.Duration(ms) * time.Millisecond
}
