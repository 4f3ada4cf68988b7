package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/gradle-model-mcp/internal/buildmodel"
	"github.com/DeusData/gradle-model-mcp/internal/store"
)

// editResult reports one build file edit.
type editResult struct {
	Module    string `json:"module"`
	BuildFile string `json:"build_file"`
	Changed   bool   `json:"changed"`
	DryRun    bool   `json:"dry_run"`
	Text      string `json:"text"`
}

// editModule runs mutate against the module's build model under the write
// lock. Changes are written back, or discarded after capturing the edited
// text when dryRun is set. A successful write reindexes the project.
func (s *Server) editModule(ctx context.Context, proj *store.Project, modulePath string, dryRun bool,
	mutate func(m *buildmodel.BuildModel) error,
) *mcp.CallToolResult {
	res := editResult{Module: modulePath, DryRun: dryRun}
	err := s.withBuild(proj.RootPath, func(bc *buildmodel.Context) error {
		return bc.Write(func() error {
			m, err := bc.ModuleModel(modulePath)
			if err != nil {
				return err
			}
			if err := mutate(m); err != nil {
				_ = m.Reset()
				return err
			}
			res.BuildFile = m.Path()
			res.Changed = m.IsModified()
			res.Text = m.Text()
			if !res.Changed {
				return nil
			}
			if dryRun {
				return m.Reset()
			}
			return m.ApplyChanges()
		})
	})
	if err != nil {
		return errResult(fmt.Sprintf("edit %s: %v", modulePath, err))
	}
	if res.Changed && !dryRun {
		slog.Info("tools.edit", "project", proj.Name, "module", modulePath, "file", res.BuildFile)
		s.reindexAfterEdit(ctx, proj.Name, proj.RootPath)
	}
	return jsonResult(res)
}

func (s *Server) handleApplyPlugin(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	proj, res := s.project(args)
	if res != nil {
		return res, nil
	}
	id := getStringArg(args, "plugin_id")
	if id == "" {
		return errResult("plugin_id is required"), nil
	}
	return s.editModule(ctx, proj, moduleArg(args), getBoolArg(args, "dry_run"), func(m *buildmodel.BuildModel) error {
		m.ApplyPlugin(id)
		return nil
	}), nil
}

func (s *Server) handleAddRepository(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	proj, res := s.project(args)
	if res != nil {
		return res, nil
	}
	method := getStringArg(args, "method")
	url := getStringArg(args, "url")
	if method == "" && url == "" {
		return errResult("method or url is required"), nil
	}
	buildscript := getBoolArg(args, "buildscript")
	return s.editModule(ctx, proj, moduleArg(args), getBoolArg(args, "dry_run"), func(m *buildmodel.BuildModel) error {
		repos := m.Repositories()
		if buildscript {
			repos = m.Buildscript().Repositories()
		}
		switch {
		case method != "":
			repos.AddRepositoryByMethodName(method)
		case !repos.HasMavenRepositoryURL(url):
			repos.AddMavenRepositoryByURL(url)
		}
		return nil
	}), nil
}

func (s *Server) handleAddDependency(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	proj, res := s.project(args)
	if res != nil {
		return res, nil
	}
	configuration := getStringArg(args, "configuration")
	if configuration == "" {
		return errResult("configuration is required"), nil
	}
	artifact := getStringArg(args, "artifact")
	moduleDep := getStringArg(args, "module_dependency")
	if artifact == "" && moduleDep == "" {
		return errResult("artifact or module_dependency is required"), nil
	}
	buildscript := getBoolArg(args, "buildscript")
	return s.editModule(ctx, proj, moduleArg(args), getBoolArg(args, "dry_run"), func(m *buildmodel.BuildModel) error {
		deps := m.Dependencies()
		if buildscript {
			deps = m.Buildscript().Dependencies()
		}
		if artifact != "" {
			if deps.AddArtifact(configuration, artifact) == nil {
				return fmt.Errorf("invalid artifact notation %q", artifact)
			}
			return nil
		}
		deps.AddModule(configuration, moduleDep)
		return nil
	}), nil
}
