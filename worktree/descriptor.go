package worktree

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"time"
)

// Status of a worktree. The lifecycle layer only ever produces Active; the
// other values are informational states set by collaborators.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Descriptor describes one active isolated working copy.
type Descriptor struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Branch string `json:"branch"`
	Path   string `json:"path"`
	// Base is the reference the worktree branch was actually created from,
	// after any fetch fallback.
	Base         BaseRef    `json:"base"`
	ProjectID    string     `json:"project_id"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

// PathID derives the stable descriptor id from a worktree path. It is
// content-addressed so repeated lookups by the same path are idempotent.
func PathID(path string) string {
	abs, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		abs = filepath.Clean(path)
	}
	sum := sha256.Sum256([]byte(abs))
	return hex.EncodeToString(sum[:])[:12]
}

// BaseRef is the resolved base reference a worktree branch is created from.
// An empty Remote means a local-only repository.
type BaseRef struct {
	Remote  string `json:"remote"`
	Branch  string `json:"branch"`
	FullRef string `json:"full_ref"`
}

// PreserveResult reports which gitignored files were carried into a new
// worktree and which were skipped because the destination already had them.
type PreserveResult struct {
	Copied  []string `json:"copied"`
	Skipped []string `json:"skipped"`
}
