package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a project is not in the index.
var ErrNotFound = errors.New("store: not found")

// Project represents an indexed Gradle build.
type Project struct {
	Name      string
	IndexedAt string
	RootPath  string
	RootName  string // rootProject.name, or the root directory name
}

// UpsertProject creates or updates a project record.
func (s *Store) UpsertProject(name, rootPath, rootName string) error {
	_, err := s.q.Exec(`
		INSERT INTO projects (name, indexed_at, root_path, root_name) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET indexed_at=excluded.indexed_at, root_path=excluded.root_path, root_name=excluded.root_name`,
		name, Now(), rootPath, rootName)
	if err != nil {
		return fmt.Errorf("upsert project %s: %w", name, err)
	}
	return nil
}

// GetProject returns a project by name, or ErrNotFound.
func (s *Store) GetProject(name string) (*Project, error) {
	var p Project
	err := s.q.QueryRow("SELECT name, indexed_at, root_path, root_name FROM projects WHERE name=?", name).
		Scan(&p.Name, &p.IndexedAt, &p.RootPath, &p.RootName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get project %s: %w", name, err)
	}
	return &p, nil
}

// ListProjects returns all indexed projects.
func (s *Store) ListProjects() ([]*Project, error) {
	rows, err := s.q.Query("SELECT name, indexed_at, root_path, root_name FROM projects ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()
	var result []*Project
	for rows.Next() {
		var p Project
		if err := rows.Scan(&p.Name, &p.IndexedAt, &p.RootPath, &p.RootName); err != nil {
			return nil, err
		}
		result = append(result, &p)
	}
	return result, rows.Err()
}

// DeleteProject deletes a project and all associated data (CASCADE).
func (s *Store) DeleteProject(name string) error {
	res, err := s.q.Exec("DELETE FROM projects WHERE name=?", name)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("project %s: %w", name, ErrNotFound)
	}
	return nil
}

// FileHash represents a stored file content hash for incremental reindex.
type FileHash struct {
	Project string
	RelPath string
	Hash    string
}

// UpsertFileHashBatch stores the content hashes of several files.
func (s *Store) UpsertFileHashBatch(batch []FileHash) error {
	for _, fh := range batch {
		_, err := s.q.Exec(`
			INSERT INTO file_hashes (project, rel_path, hash) VALUES (?, ?, ?)
			ON CONFLICT(project, rel_path) DO UPDATE SET hash=excluded.hash`,
			fh.Project, fh.RelPath, fh.Hash)
		if err != nil {
			return fmt.Errorf("upsert file hash %s: %w", fh.RelPath, err)
		}
	}
	return nil
}

// GetFileHashes returns all file hashes for a project.
func (s *Store) GetFileHashes(project string) (map[string]string, error) {
	rows, err := s.q.Query("SELECT rel_path, hash FROM file_hashes WHERE project=?", project)
	if err != nil {
		return nil, fmt.Errorf("get file hashes: %w", err)
	}
	defer rows.Close()
	result := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		result[path] = hash
	}
	return result, rows.Err()
}

// DeleteFileHash deletes a single file hash entry.
func (s *Store) DeleteFileHash(project, relPath string) error {
	_, err := s.q.Exec("DELETE FROM file_hashes WHERE project=? AND rel_path=?", project, relPath)
	return err
}
