package pipeline

import (
	"errors"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/DeusData/gradle-model-mcp/internal/buildmodel"
	"github.com/DeusData/gradle-model-mcp/internal/store"
)

// ExtractModules reads every module declared by the build's settings, or
// the root module alone when there is no settings file. It returns the
// module records and the root project name. Call it under bc.Read.
func ExtractModules(bc *buildmodel.Context) ([]*store.Module, string, error) {
	rootName := filepath.Base(bc.Root())
	paths := []string{":"}
	s, err := bc.Settings()
	switch {
	case err == nil:
		paths = s.ModulePaths()
		rootName = s.RootProjectName()
	case !errors.Is(err, buildmodel.ErrNoSettings):
		return nil, "", err
	}

	mods := make([]*store.Module, 0, len(paths))
	for _, mp := range paths {
		m, err := bc.ModuleModel(mp)
		if err != nil {
			slog.Warn("pipeline.module", "module", mp, "err", err)
			continue
		}
		mods = append(mods, ExtractModule(m, mp))
	}
	return mods, rootName, nil
}

// ExtractModule flattens one build model into a module record.
func ExtractModule(m *buildmodel.BuildModel, modulePath string) *store.Module {
	rel := m.Path()
	mod := &store.Module{
		Path:      modulePath,
		Dir:       path.Dir(rel),
		BuildFile: rel,
		Language:  string(m.File().Language),
	}
	for _, p := range m.Plugins() {
		mod.Plugins = append(mod.Plugins, store.Plugin{
			ID:      p.Name(),
			Version: p.Version().Value,
			Applied: p.Apply(),
		})
	}

	scopes := []struct {
		name string
		repo *buildmodel.RepositoriesModel
		deps *buildmodel.DependenciesModel
	}{
		{store.ScopeBuildscript, m.Buildscript().Repositories(), m.Buildscript().Dependencies()},
		{store.ScopeProject, m.Repositories(), m.Dependencies()},
	}
	for _, sc := range scopes {
		for _, r := range sc.repo.Repositories() {
			mod.Repositories = append(mod.Repositories, store.Repository{
				Scope: sc.name,
				Type:  r.Type().String(),
				Name:  r.Name().Value,
				URL:   r.URL().Value,
			})
		}
		for _, a := range sc.deps.Artifacts() {
			mod.Dependencies = append(mod.Dependencies, store.Dependency{
				Scope:         sc.name,
				Configuration: a.Configuration,
				Kind:          "artifact",
				Notation:      a.Compact(),
				GroupName:     a.Group + ":" + a.Name,
			})
		}
		for _, d := range sc.deps.Modules() {
			mod.Dependencies = append(mod.Dependencies, store.Dependency{
				Scope:         sc.name,
				Configuration: d.Configuration,
				Kind:          "module",
				Notation:      d.Path,
			})
		}
		for _, d := range sc.deps.Files() {
			mod.Dependencies = append(mod.Dependencies, store.Dependency{
				Scope:         sc.name,
				Configuration: d.Configuration,
				Kind:          "files",
				Notation:      strings.Join(d.Files, ","),
			})
		}
	}
	return mod
}
