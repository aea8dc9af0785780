package project

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// Project represents a repository arbor manages worktrees for.
type Project struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	GitBranch    string    `json:"git_branch,omitempty"`
	LastAccessed time.Time `json:"last_accessed"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewProject creates a new project with the given path and name
func NewProject(path, name string) (*Project, error) {
	if path == "" {
		return nil, fmt.Errorf("project path cannot be empty")
	}

	// Clean and validate the path
	cleanPath := filepath.Clean(path)
	if !filepath.IsAbs(cleanPath) {
		return nil, fmt.Errorf("project path must be absolute: %s", path)
	}

	// Generate project name from path if not provided
	if name == "" {
		name = filepath.Base(cleanPath)
		if name == "." || name == "/" {
			return nil, fmt.Errorf("could not determine project name from path: %s", path)
		}
	}

	id := generateProjectID(cleanPath)

	now := time.Now()
	return &Project{
		ID:           id,
		Name:         name,
		Path:         cleanPath,
		LastAccessed: now,
		CreatedAt:    now,
	}, nil
}

// generateProjectID creates a unique identifier from the project path
func generateProjectID(path string) string {
	id := strings.ReplaceAll(path, string(filepath.Separator), "_")
	if strings.HasPrefix(id, "_") {
		id = id[1:]
	}
	return id
}

// Touch updates the last accessed time
func (p *Project) Touch() {
	p.LastAccessed = time.Now()
}

// Validate ensures the project data is valid
func (p *Project) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("project ID cannot be empty")
	}
	if p.Name == "" {
		return fmt.Errorf("project name cannot be empty")
	}
	if p.Path == "" {
		return fmt.Errorf("project path cannot be empty")
	}
	if !filepath.IsAbs(p.Path) {
		return fmt.Errorf("project path must be absolute: %s", p.Path)
	}
	return nil
}
