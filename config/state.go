package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"arbor/log"
)

const StateFileName = "state.json"

// StateManager is the interface for application state persistence.
type StateManager interface {
	Save() error
}

// State holds persisted application state across runs. The project registry
// serializes itself into ProjectsData through the project storage layer.
type State struct {
	// ProjectsData stores the serialized project registry
	ProjectsData json.RawMessage `json:"projects_data"`
	// ActiveProject is the id of the currently active project
	ActiveProject string `json:"active_project"`
}

// DefaultState returns the default empty state
func DefaultState() *State {
	return &State{
		ProjectsData:  json.RawMessage("{}"),
		ActiveProject: "",
	}
}

// LoadState loads the state from disk. If it cannot be done, we return the default state.
func LoadState() *State {
	configDir, err := GetConfigDir()
	if err != nil {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
		return DefaultState()
	}

	statePath := filepath.Join(configDir, StateFileName)
	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultState()
		}
		log.WarningLog.Printf("failed to read state file: %v", err)
		return DefaultState()
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		log.ErrorLog.Printf("failed to parse state file: %v", err)
		return DefaultState()
	}

	return &state
}

// SaveState saves the state to disk
func SaveState(state *State) error {
	configDir, err := GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	statePath := filepath.Join(configDir, StateFileName)
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	return os.WriteFile(statePath, data, 0644)
}

// Save implements StateManager.
func (s *State) Save() error {
	return SaveState(s)
}
