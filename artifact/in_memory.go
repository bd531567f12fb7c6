package artifact

import (
	"sort"
	"sync"

	"github.com/osok/agent-patterns/core"
)

var _ core.ArtifactStore = (*InMemoryStore)(nil)

// InMemoryStore keeps artifacts in process memory, keyed by session and
// artifact ID. Data is copied on save and on get so callers cannot mutate
// stored bytes.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]map[string][]byte
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]map[string][]byte)}
}

// Save stores a copy of data under the session and artifact ID, overwriting
// any previous version.
func (s *InMemoryStore) Save(sessionID, artifactID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.sessions[sessionID]
	if !ok {
		m = make(map[string][]byte)
		s.sessions[sessionID] = m
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	m[artifactID] = cp
	return nil
}

// Get returns a copy of the stored artifact or ErrNotFound.
func (s *InMemoryStore) Get(sessionID, artifactID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.sessions[sessionID][artifactID]
	if !ok {
		return nil, ErrNotFound
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

// List returns the artifact IDs of a session in sorted order.
func (s *InMemoryStore) List(sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m := s.sessions[sessionID]
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete removes an artifact. Returns ErrNotFound if it does not exist.
func (s *InMemoryStore) Delete(sessionID, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if _, ok := m[artifactID]; !ok {
		return ErrNotFound
	}
	delete(m, artifactID)
	if len(m) == 0 {
		delete(s.sessions, sessionID)
	}
	return nil
}
