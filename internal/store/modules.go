package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// Dependency scopes: the project's own dependencies{} or the
// buildscript{} classpath.
const (
	ScopeProject     = "project"
	ScopeBuildscript = "buildscript"
)

// Module is one indexed Gradle module together with what its build file
// declares.
type Module struct {
	Project   string `json:"project"`
	Path      string `json:"path"`       // ":" or ":a:b"
	Dir       string `json:"dir"`        // relative to the build root
	BuildFile string `json:"build_file"` // relative to the build root
	Language  string `json:"language"`

	Plugins      []Plugin     `json:"plugins,omitempty"`
	Repositories []Repository `json:"repositories,omitempty"`
	Dependencies []Dependency `json:"dependencies,omitempty"`
}

// Plugin is an applied plugin of a module.
type Plugin struct {
	ID      string `json:"id"`
	Version string `json:"version,omitempty"`
	Applied bool   `json:"applied"`
}

// Repository is a declared repository of a module.
type Repository struct {
	Scope string `json:"scope"`
	Type  string `json:"type"`
	Name  string `json:"name,omitempty"`
	URL   string `json:"url,omitempty"`
}

// Dependency is a declared dependency of a module. GroupName is
// "group:name" for artifacts and empty otherwise.
type Dependency struct {
	Scope         string `json:"scope"`
	Configuration string `json:"configuration"`
	Kind          string `json:"kind"` // artifact, module, files
	Notation      string `json:"notation"`
	GroupName     string `json:"group_name,omitempty"`
}

// ReplaceModules drops every module of project and inserts mods. Run it
// inside WithTransaction.
func (s *Store) ReplaceModules(project string, mods []*Module) error {
	if _, err := s.q.Exec("DELETE FROM modules WHERE project=?", project); err != nil {
		return fmt.Errorf("clear modules: %w", err)
	}
	for _, m := range mods {
		if err := s.insertModule(project, m); err != nil {
			return fmt.Errorf("insert module %s: %w", m.Path, err)
		}
	}
	return nil
}

func (s *Store) insertModule(project string, m *Module) error {
	if _, err := s.q.Exec(`INSERT INTO modules (project, path, dir, build_file, language) VALUES (?, ?, ?, ?, ?)`,
		project, m.Path, m.Dir, m.BuildFile, m.Language); err != nil {
		return err
	}
	for _, p := range m.Plugins {
		if _, err := s.q.Exec(`INSERT INTO plugins (project, module, plugin_id, version, applied) VALUES (?, ?, ?, ?, ?)`,
			project, m.Path, p.ID, p.Version, p.Applied); err != nil {
			return err
		}
	}
	for _, r := range m.Repositories {
		if _, err := s.q.Exec(`INSERT INTO repositories (project, module, scope, type, name, url) VALUES (?, ?, ?, ?, ?, ?)`,
			project, m.Path, r.Scope, r.Type, r.Name, r.URL); err != nil {
			return err
		}
	}
	for _, d := range m.Dependencies {
		if _, err := s.q.Exec(`INSERT INTO dependencies (project, module, scope, configuration, kind, notation, group_name) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			project, m.Path, d.Scope, d.Configuration, d.Kind, d.Notation, d.GroupName); err != nil {
			return err
		}
	}
	return nil
}

// ListModules returns the modules of a project ordered by path, without
// their declarations.
func (s *Store) ListModules(project string) ([]*Module, error) {
	rows, err := s.q.Query("SELECT path, dir, build_file, language FROM modules WHERE project=? ORDER BY path", project)
	if err != nil {
		return nil, fmt.Errorf("list modules: %w", err)
	}
	defer rows.Close()
	var result []*Module
	for rows.Next() {
		m := &Module{Project: project}
		if err := rows.Scan(&m.Path, &m.Dir, &m.BuildFile, &m.Language); err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

// CountModules returns the number of modules of a project.
func (s *Store) CountModules(project string) (int, error) {
	var n int
	err := s.q.QueryRow("SELECT COUNT(*) FROM modules WHERE project=?", project).Scan(&n)
	return n, err
}

// GetModule returns one module with its plugins, repositories and
// dependencies, or ErrNotFound.
func (s *Store) GetModule(project, path string) (*Module, error) {
	m := &Module{Project: project, Path: path}
	err := s.q.QueryRow("SELECT dir, build_file, language FROM modules WHERE project=? AND path=?", project, path).
		Scan(&m.Dir, &m.BuildFile, &m.Language)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("module %s %s: %w", project, path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get module: %w", err)
	}
	if m.Plugins, err = s.modulePlugins(project, path); err != nil {
		return nil, err
	}
	if m.Repositories, err = s.moduleRepositories(project, path); err != nil {
		return nil, err
	}
	if m.Dependencies, err = s.moduleDependencies(project, path); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) modulePlugins(project, path string) ([]Plugin, error) {
	rows, err := s.q.Query("SELECT plugin_id, version, applied FROM plugins WHERE project=? AND module=? ORDER BY rowid", project, path)
	if err != nil {
		return nil, fmt.Errorf("module plugins: %w", err)
	}
	defer rows.Close()
	var out []Plugin
	for rows.Next() {
		var p Plugin
		if err := rows.Scan(&p.ID, &p.Version, &p.Applied); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) moduleRepositories(project, path string) ([]Repository, error) {
	rows, err := s.q.Query("SELECT scope, type, name, url FROM repositories WHERE project=? AND module=? ORDER BY rowid", project, path)
	if err != nil {
		return nil, fmt.Errorf("module repositories: %w", err)
	}
	defer rows.Close()
	var out []Repository
	for rows.Next() {
		var r Repository
		if err := rows.Scan(&r.Scope, &r.Type, &r.Name, &r.URL); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) moduleDependencies(project, path string) ([]Dependency, error) {
	rows, err := s.q.Query("SELECT scope, configuration, kind, notation, group_name FROM dependencies WHERE project=? AND module=? ORDER BY rowid", project, path)
	if err != nil {
		return nil, fmt.Errorf("module dependencies: %w", err)
	}
	defer rows.Close()
	var out []Dependency
	for rows.Next() {
		var d Dependency
		if err := rows.Scan(&d.Scope, &d.Configuration, &d.Kind, &d.Notation, &d.GroupName); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Usage is one module that declares a plugin or dependency.
type Usage struct {
	Module        string `json:"module"`
	Configuration string `json:"configuration,omitempty"`
	Notation      string `json:"notation"`
}

// FindDependents returns the modules of project that depend on the
// artifact "group:name".
func (s *Store) FindDependents(project, groupName string) ([]Usage, error) {
	rows, err := s.q.Query(`SELECT module, configuration, notation FROM dependencies
		WHERE project=? AND group_name=? ORDER BY module, rowid`, project, groupName)
	if err != nil {
		return nil, fmt.Errorf("find dependents: %w", err)
	}
	defer rows.Close()
	var out []Usage
	for rows.Next() {
		var u Usage
		if err := rows.Scan(&u.Module, &u.Configuration, &u.Notation); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// FindPluginUsers returns the modules of project that apply pluginID.
func (s *Store) FindPluginUsers(project, pluginID string) ([]Usage, error) {
	rows, err := s.q.Query(`SELECT module, version FROM plugins
		WHERE project=? AND plugin_id=? AND applied=1 ORDER BY module`, project, pluginID)
	if err != nil {
		return nil, fmt.Errorf("find plugin users: %w", err)
	}
	defer rows.Close()
	var out []Usage
	for rows.Next() {
		var u Usage
		var version string
		if err := rows.Scan(&u.Module, &version); err != nil {
			return nil, err
		}
		u.Notation = pluginID
		if version != "" {
			u.Notation += ":" + version
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
