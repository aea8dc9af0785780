package project

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"arbor/config"
	"arbor/log"
)

// Settings is the effective per-project configuration handed to the worktree
// layer: app config merged with project fields and the arbor.yaml override.
type Settings struct {
	BranchPrefix     string
	PushOnCreate     bool
	BaseRef          string
	PreservePatterns []string
	ManagedPrefixes  []string
}

// Manager manages multiple projects and their state
type Manager struct {
	mu       sync.RWMutex
	projects map[string]*Project
	storage  Storage
	cfg      *config.Config
}

// NewManager creates a new project manager with the given storage backend
func NewManager(storage Storage, cfg *config.Config) (*Manager, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	m := &Manager{
		projects: make(map[string]*Project),
		storage:  storage,
		cfg:      cfg,
	}

	if err := m.loadProjects(); err != nil {
		return nil, fmt.Errorf("failed to load projects: %w", err)
	}

	return m, nil
}

// AddProject adds a new project to the manager
func (m *Manager) AddProject(path, name string) (*Project, error) {
	p, err := NewProject(path, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	if _, err := os.Stat(p.Path); os.IsNotExist(err) {
		return nil, fmt.Errorf("project path does not exist: %s", p.Path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.projects {
		if existing.Path == p.Path {
			return nil, fmt.Errorf("project with path already exists: %s", path)
		}
	}

	m.projects[p.ID] = p

	if err := m.saveProjectsLocked(); err != nil {
		delete(m.projects, p.ID)
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	return p, nil
}

// GetProject retrieves a project by ID
func (m *Manager) GetProject(projectID string) (*Project, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, exists := m.projects[projectID]
	return p, exists
}

// GetProjectByPath retrieves a project by its repository path
func (m *Manager) GetProjectByPath(path string) (*Project, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.projects {
		if p.Path == path {
			return p, true
		}
	}
	return nil, false
}

// ListProjects returns all projects
func (m *Manager) ListProjects() []*Project {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out
}

// RemoveProject removes a project from the manager
func (m *Manager) RemoveProject(projectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.projects[projectID]; !exists {
		return fmt.Errorf("project not found: %s", projectID)
	}
	delete(m.projects, projectID)
	return m.saveProjectsLocked()
}

// UpdateGitBranch persists a discovered base reference for a project. It is a
// best-effort side effect: callers log failures and carry on.
func (m *Manager) UpdateGitBranch(projectID, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, exists := m.projects[projectID]
	if !exists {
		return fmt.Errorf("project not found: %s", projectID)
	}
	if p.GitBranch == ref {
		return nil
	}
	p.GitBranch = ref
	p.Touch()
	return m.saveProjectsLocked()
}

// Settings returns the effective settings for a project, merging app config,
// stored project fields, and the project's arbor.yaml override.
func (m *Manager) Settings(projectID, projectPath string) Settings {
	s := Settings{
		BranchPrefix:     m.cfg.BranchPrefix,
		PushOnCreate:     m.cfg.PushOnCreate,
		PreservePatterns: m.cfg.PreservePatterns,
		ManagedPrefixes:  m.cfg.ManagedPrefixes,
	}

	m.mu.RLock()
	if p, exists := m.projects[projectID]; exists {
		s.BaseRef = p.GitBranch
		if projectPath == "" {
			projectPath = p.Path
		}
	}
	m.mu.RUnlock()

	if projectPath == "" {
		return s
	}

	override, err := config.LoadOverride(projectPath)
	if err != nil {
		log.WarningLog.Printf("failed to load %s for %s: %v", config.OverrideFileName, projectPath, err)
		return s
	}
	if override.BranchPrefix != "" {
		s.BranchPrefix = override.BranchPrefix
		s.ManagedPrefixes = append([]string{override.BranchPrefix}, s.ManagedPrefixes...)
	}
	if override.BaseBranch != "" {
		s.BaseRef = override.BaseBranch
	}
	if override.PushOnCreate != nil {
		s.PushOnCreate = *override.PushOnCreate
	}
	if len(override.PreservePatterns) > 0 {
		s.PreservePatterns = override.PreservePatterns
	}
	return s
}

// loadProjects deserializes projects from storage
func (m *Manager) loadProjects() error {
	projectsJSON := m.storage.GetProjects()
	if len(projectsJSON) == 0 {
		return nil
	}

	var projects map[string]*Project
	if err := json.Unmarshal(projectsJSON, &projects); err != nil {
		return fmt.Errorf("failed to unmarshal projects: %w", err)
	}

	for id, p := range projects {
		if err := p.Validate(); err != nil {
			log.WarningLog.Printf("skipping invalid stored project %s: %v", id, err)
			continue
		}
		m.projects[id] = p
	}
	return nil
}

// saveProjectsLocked serializes projects to storage. Caller holds mu.
func (m *Manager) saveProjectsLocked() error {
	data, err := json.Marshal(m.projects)
	if err != nil {
		return fmt.Errorf("failed to marshal projects: %w", err)
	}
	return m.storage.SaveProjects(data)
}
