package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"github.com/DeusData/gradle-model-mcp/internal/buildmodel"
	"github.com/DeusData/gradle-model-mcp/internal/discover"
	"github.com/DeusData/gradle-model-mcp/internal/store"
)

// ErrNoBuild is returned when a directory holds no Gradle build.
var ErrNoBuild = errors.New("pipeline: no gradle build found")

// Pipeline indexes one Gradle build into the store.
type Pipeline struct {
	ctx         context.Context
	Store       *store.Store
	Fs          afero.Fs
	RepoPath    string
	ProjectName string
	// Force reindexes even when no file content changed.
	Force bool
}

// Result summarizes one indexing run.
type Result struct {
	Project  string `json:"project"`
	RootPath string `json:"root_path"`
	Files    int    `json:"files"`
	Changed  int    `json:"changed"`
	Deleted  int    `json:"deleted"`
	Modules  int    `json:"modules"`
	Skipped  bool   `json:"skipped"`
	Elapsed  string `json:"elapsed"`
}

// New creates a new Pipeline.
func New(ctx context.Context, s *store.Store, fs afero.Fs, repoPath string) *Pipeline {
	return &Pipeline{
		ctx:         ctx,
		Store:       s,
		Fs:          fs,
		RepoPath:    filepath.Clean(repoPath),
		ProjectName: ProjectNameFromPath(repoPath),
	}
}

// ProjectNameFromPath derives a unique project name from an absolute path
// by replacing path separators with dashes and trimming the leading dash.
func ProjectNameFromPath(absPath string) string {
	cleaned := filepath.ToSlash(filepath.Clean(absPath))
	name := strings.ReplaceAll(cleaned, "/", "-")
	name = strings.ReplaceAll(name, ":", "")
	name = strings.TrimLeft(name, "-")
	if name == "" {
		return "root"
	}
	return name
}

// Run discovers the build's files, skips the run when none changed since
// the last index, and otherwise rebuilds the project's module records in
// one transaction.
func (p *Pipeline) Run() (*Result, error) {
	start := time.Now()
	slog.Info("pipeline.start", "project", p.ProjectName, "path", p.RepoPath)

	if err := p.ctx.Err(); err != nil {
		return nil, err
	}
	files, err := discover.Discover(p.ctx, p.Fs, p.RepoPath, nil)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s: %w", p.RepoPath, ErrNoBuild)
	}
	slog.Info("pipeline.discovered", "files", len(files))

	hashes, err := p.hashFiles(files)
	if err != nil {
		return nil, err
	}
	stored, err := p.Store.GetFileHashes(p.ProjectName)
	if err != nil {
		return nil, err
	}
	changed, deleted := diffHashes(files, hashes, stored)

	res := &Result{
		Project:  p.ProjectName,
		RootPath: p.RepoPath,
		Files:    len(files),
		Changed:  len(changed),
		Deleted:  len(deleted),
	}
	_, projErr := p.Store.GetProject(p.ProjectName)
	if projErr == nil && !p.Force && len(changed) == 0 && len(deleted) == 0 {
		n, _ := p.Store.CountModules(p.ProjectName)
		res.Modules = n
		res.Skipped = true
		res.Elapsed = time.Since(start).String()
		slog.Info("pipeline.unchanged", "project", p.ProjectName)
		return res, nil
	}

	mods, rootName, err := p.extract()
	if err != nil {
		return nil, err
	}
	if err := p.ctx.Err(); err != nil {
		return nil, err
	}

	batch := make([]store.FileHash, 0, len(files))
	for i, f := range files {
		if hashes[i] != "" {
			batch = append(batch, store.FileHash{Project: p.ProjectName, RelPath: f.RelPath, Hash: hashes[i]})
		}
	}
	err = p.Store.WithTransaction(p.ctx, func(tx *store.Store) error {
		if err := tx.UpsertProject(p.ProjectName, p.RepoPath, rootName); err != nil {
			return err
		}
		if err := tx.ReplaceModules(p.ProjectName, mods); err != nil {
			return err
		}
		if err := tx.UpsertFileHashBatch(batch); err != nil {
			return err
		}
		for _, rel := range deleted {
			if err := tx.DeleteFileHash(p.ProjectName, rel); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}

	res.Modules = len(mods)
	res.Elapsed = time.Since(start).String()
	slog.Info("pipeline.done", "project", p.ProjectName, "modules", res.Modules,
		"changed", res.Changed, "deleted", res.Deleted, "elapsed", res.Elapsed)
	return res, nil
}

// extract builds the model of every module on the calling goroutine.
func (p *Pipeline) extract() ([]*store.Module, string, error) {
	bc := buildmodel.NewContext(p.Fs, p.RepoPath)
	defer bc.Close()

	var mods []*store.Module
	var rootName string
	err := bc.Read(func() error {
		var err error
		mods, rootName, err = ExtractModules(bc)
		return err
	})
	if err != nil {
		return nil, "", fmt.Errorf("extract: %w", err)
	}
	return mods, rootName, nil
}

// hashFiles computes content hashes in parallel. A file that cannot be
// read gets an empty hash and is treated as changed.
func (p *Pipeline) hashFiles(files []discover.FileInfo) ([]string, error) {
	results := make([]string, len(files))
	numWorkers := runtime.NumCPU()
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	g, gctx := errgroup.WithContext(p.ctx)
	g.SetLimit(numWorkers)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			hash, err := HashFile(p.Fs, f.Path)
			if err != nil {
				slog.Debug("pipeline.hash", "path", f.RelPath, "err", err)
				return nil
			}
			results[i] = hash
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// diffHashes returns the files whose hash differs from the stored one and
// the stored paths that no longer exist.
func diffHashes(files []discover.FileInfo, hashes []string, stored map[string]string) (changed, deleted []string) {
	seen := make(map[string]bool, len(files))
	for i, f := range files {
		seen[f.RelPath] = true
		if h, ok := stored[f.RelPath]; !ok || hashes[i] == "" || h != hashes[i] {
			changed = append(changed, f.RelPath)
		}
	}
	for rel := range stored {
		if !seen[rel] {
			deleted = append(deleted, rel)
		}
	}
	return changed, deleted
}

// HashFile returns the hex xxh3 digest of a file's content.
func HashFile(fs afero.Fs, path string) (string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxh3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IndexAll indexes every build root found below dir.
func IndexAll(ctx context.Context, s *store.Store, fs afero.Fs, dir string, force bool) ([]*Result, error) {
	roots, err := discover.FindBuildRoots(ctx, fs, dir)
	if err != nil {
		return nil, fmt.Errorf("find build roots: %w", err)
	}
	if len(roots) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoBuild)
	}
	results := make([]*Result, 0, len(roots))
	for _, root := range roots {
		p := New(ctx, s, fs, root)
		p.Force = force
		res, err := p.Run()
		if err != nil {
			return results, fmt.Errorf("index %s: %w", root, err)
		}
		results = append(results, res)
	}
	return results, nil
}
