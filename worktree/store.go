package worktree

import "sync"

// Store is the in-process registry of worktree descriptors. It is injectable
// so the lifecycle manager can be tested without filesystem or subprocess
// dependencies.
type Store interface {
	Get(id string) (*Descriptor, bool)
	GetByPath(path string) (*Descriptor, bool)
	Put(d *Descriptor)
	Delete(id string)
	List(projectID string) []*Descriptor
}

// MemoryStore is the default Store implementation. All mutations are applied
// atomically relative to reads used for listing and removal-safety checks.
type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string]*Descriptor
}

// NewMemoryStore returns an empty in-memory registry.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]*Descriptor)}
}

func (s *MemoryStore) Get(id string) (*Descriptor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.byID[id]
	return d, ok
}

func (s *MemoryStore) GetByPath(path string) (*Descriptor, bool) {
	return s.Get(PathID(path))
}

func (s *MemoryStore) Put(d *Descriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[d.ID] = d
}

func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

// List returns descriptors for a project; an empty projectID lists everything.
func (s *MemoryStore) List(projectID string) []*Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Descriptor, 0, len(s.byID))
	for _, d := range s.byID {
		if projectID == "" || d.ProjectID == projectID {
			out = append(out, d)
		}
	}
	return out
}
