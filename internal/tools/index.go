package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/gradle-model-mcp/internal/pipeline"
)

func (s *Server) handleIndexProject(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}

	path := getStringArg(args, "path")
	if path == "" {
		return errResult("path is required"), nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errResult(fmt.Sprintf("invalid path: %v", err)), nil
	}

	// Lock to prevent concurrent indexing with the watcher
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	results, err := pipeline.IndexAll(ctx, s.store, s.fs, absPath, getBoolArg(args, "force"))
	for _, r := range results {
		s.dropContext(r.RootPath)
	}
	if errors.Is(err, pipeline.ErrNoBuild) {
		return errResult(fmt.Sprintf("no Gradle build found under %s", absPath)), nil
	}
	if err != nil {
		return errResult(fmt.Sprintf("indexing failed: %v", err)), nil
	}
	return jsonResult(results), nil
}

// Reindex indexes one known project. It matches watcher.IndexFunc.
func (s *Server) Reindex(ctx context.Context, projectName, rootPath string) error {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	p := pipeline.New(ctx, s.store, s.fs, rootPath)
	p.ProjectName = projectName
	res, err := p.Run()
	if err != nil {
		return err
	}
	s.dropContext(res.RootPath)
	slog.Info("tools.reindex", "project", projectName, "modules", res.Modules, "skipped", res.Skipped)
	return nil
}

// reindexAfterEdit refreshes the index after a tool wrote build files.
// The parsed context stays cached since it already holds the new text.
func (s *Server) reindexAfterEdit(ctx context.Context, projectName, rootPath string) {
	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	p := pipeline.New(ctx, s.store, s.fs, rootPath)
	p.ProjectName = projectName
	if _, err := p.Run(); err != nil {
		slog.Warn("tools.reindex", "project", projectName, "err", err)
	}
}
