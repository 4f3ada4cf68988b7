package tools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DeusData/gradle-model-mcp/internal/store"
)

func (s *Server) handleListProjects(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := s.store.ListProjects()
	if err != nil {
		return errResult(fmt.Sprintf("list projects: %v", err)), nil
	}

	type projectInfo struct {
		Name      string `json:"name"`
		RootPath  string `json:"root_path"`
		RootName  string `json:"root_name"`
		IndexedAt string `json:"indexed_at"`
		Modules   int    `json:"modules"`
	}

	result := make([]projectInfo, 0, len(projects))
	for _, p := range projects {
		n, _ := s.store.CountModules(p.Name)
		result = append(result, projectInfo{
			Name:      p.Name,
			RootPath:  p.RootPath,
			RootName:  p.RootName,
			IndexedAt: p.IndexedAt,
			Modules:   n,
		})
	}
	return jsonResult(result), nil
}

func (s *Server) handleDeleteProject(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	proj, res := s.project(args)
	if res != nil {
		return res, nil
	}

	s.indexMu.Lock()
	defer s.indexMu.Unlock()

	if err := s.store.DeleteProject(proj.Name); err != nil {
		return errResult(fmt.Sprintf("delete failed: %v", err)), nil
	}
	s.dropContext(proj.RootPath)

	return jsonResult(map[string]any{
		"deleted": proj.Name,
		"status":  "ok",
	}), nil
}

func (s *Server) handleListModules(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	proj, res := s.project(args)
	if res != nil {
		return res, nil
	}

	mods, err := s.store.ListModules(proj.Name)
	if err != nil {
		return errResult(fmt.Sprintf("list modules: %v", err)), nil
	}

	type moduleInfo struct {
		Path      string `json:"path"`
		Dir       string `json:"dir"`
		BuildFile string `json:"build_file"`
		Language  string `json:"language"`
	}
	out := make([]moduleInfo, 0, len(mods))
	for _, m := range mods {
		out = append(out, moduleInfo{Path: m.Path, Dir: m.Dir, BuildFile: m.BuildFile, Language: m.Language})
	}
	return jsonResult(map[string]any{
		"project":   proj.Name,
		"root_name": proj.RootName,
		"modules":   out,
	}), nil
}

func (s *Server) handleFindDependents(_ context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, err := parseArgs(req)
	if err != nil {
		return errResult(err.Error()), nil
	}
	proj, res := s.project(args)
	if res != nil {
		return res, nil
	}

	artifact := getStringArg(args, "artifact")
	pluginID := getStringArg(args, "plugin_id")

	var usages []store.Usage
	switch {
	case artifact != "":
		usages, err = s.store.FindDependents(proj.Name, artifact)
	case pluginID != "":
		usages, err = s.store.FindPluginUsers(proj.Name, pluginID)
	default:
		return errResult("artifact or plugin_id is required"), nil
	}
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	if usages == nil {
		usages = []store.Usage{}
	}
	return jsonResult(map[string]any{
		"project": proj.Name,
		"usages":  usages,
		"total":   len(usages),
	}), nil
}
