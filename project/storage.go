package project

import (
	"encoding/json"
	"fmt"

	"arbor/config"
)

// Storage defines the interface for project persistence
type Storage interface {
	SaveProjects(projectsJSON json.RawMessage) error
	GetProjects() json.RawMessage
	SetActiveProject(projectID string) error
	GetActiveProject() string
}

// StateStorage implements Storage using the application state
type StateStorage struct {
	state *config.State
}

// NewStateStorage creates a new project storage backed by application state
func NewStateStorage(state *config.State) *StateStorage {
	return &StateStorage{state: state}
}

// SaveProjects saves the serialized project data to state
func (s *StateStorage) SaveProjects(projectsJSON json.RawMessage) error {
	s.state.ProjectsData = projectsJSON
	if err := config.SaveState(s.state); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// GetProjects returns the serialized project data from state
func (s *StateStorage) GetProjects() json.RawMessage {
	if len(s.state.ProjectsData) == 0 {
		return json.RawMessage("{}")
	}
	return s.state.ProjectsData
}

// SetActiveProject sets the currently active project ID
func (s *StateStorage) SetActiveProject(projectID string) error {
	s.state.ActiveProject = projectID
	return config.SaveState(s.state)
}

// GetActiveProject returns the currently active project ID
func (s *StateStorage) GetActiveProject() string {
	return s.state.ActiveProject
}
