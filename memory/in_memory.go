package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/osok/agent-patterns/core"
)

var _ core.MemoryStore = (*InMemoryStore)(nil)

// InMemoryStore keeps memory in process memory and matches queries by
// keyword overlap. Scores are the fraction of query terms found in the
// record content.
type InMemoryStore struct {
	mu      sync.RWMutex
	state   map[string]map[string]any
	records map[string][]Record
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		state:   make(map[string]map[string]any),
		records: make(map[string][]Record),
	}
}

// Get returns a copy of the session's key-value memory.
func (s *InMemoryStore) Get(sessionID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.state[sessionID]))
	for k, v := range s.state[sessionID] {
		out[k] = v
	}
	return out, nil
}

// Put merges the delta into the session's key-value memory.
func (s *InMemoryStore) Put(sessionID string, delta map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.state[sessionID]
	if !ok {
		m = make(map[string]any)
		s.state[sessionID] = m
	}
	for k, v := range delta {
		m[k] = v
	}
	return nil
}

// Store appends a memory record for the session.
func (s *InMemoryStore) Store(sessionID, content string, metadata map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[sessionID] = append(s.records[sessionID], Record{
		ID:        core.NewID(),
		SessionID: sessionID,
		Content:   content,
		Type:      TypeOf(metadata),
		Metadata:  metadata,
		Created:   time.Now(),
	})
	return nil
}

// Search scores records by query term overlap and returns the best matches.
func (s *InMemoryStore) Search(sessionID, query string, limit int) ([]core.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return []core.SearchResult{}, nil
	}

	results := make([]core.SearchResult, 0)
	for _, rec := range s.records[sessionID] {
		content := strings.ToLower(rec.Content)
		matched := 0
		for _, term := range terms {
			if strings.Contains(content, term) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		results = append(results, core.SearchResult{
			ID:       rec.ID,
			Content:  rec.Content,
			Score:    float64(matched) / float64(len(terms)),
			Metadata: rec.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a record by ID. Deleting a missing record is a no-op.
func (s *InMemoryStore) Delete(sessionID, memoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := s.records[sessionID]
	for i, rec := range recs {
		if rec.ID == memoryID {
			s.records[sessionID] = append(recs[:i], recs[i+1:]...)
			return nil
		}
	}
	return nil
}
