package memory

import (
	"sort"

	"github.com/osok/agent-patterns/core"
)

var _ core.MemoryStore = (*CompositeStore)(nil)

// CompositeStore routes records to per-type backends. Store consults the
// memory_type metadata key to pick the backend; Search fans out across all
// backends and merges results by score. Key-value memory and deletes go to
// every backend that might hold the data.
type CompositeStore struct {
	backends map[RecordType]core.MemoryStore
	fallback core.MemoryStore
}

// NewCompositeStore builds a composite over the given backends. Types with
// no dedicated backend fall back to the semantic store, which is required.
func NewCompositeStore(backends map[RecordType]core.MemoryStore) *CompositeStore {
	fallback, ok := backends[Semantic]
	if !ok {
		fallback = NewInMemoryStore()
		if backends == nil {
			backends = make(map[RecordType]core.MemoryStore)
		}
		backends[Semantic] = fallback
	}
	return &CompositeStore{backends: backends, fallback: fallback}
}

func (s *CompositeStore) backendFor(t RecordType) core.MemoryStore {
	if b, ok := s.backends[t]; ok {
		return b
	}
	return s.fallback
}

// Get returns the key-value memory from the semantic backend.
func (s *CompositeStore) Get(sessionID string) (map[string]any, error) {
	return s.fallback.Get(sessionID)
}

// Put merges the delta into the semantic backend.
func (s *CompositeStore) Put(sessionID string, delta map[string]any) error {
	return s.fallback.Put(sessionID, delta)
}

// Store routes the record to the backend for its declared type.
func (s *CompositeStore) Store(sessionID, content string, metadata map[string]any) error {
	return s.backendFor(TypeOf(metadata)).Store(sessionID, content, metadata)
}

// Search queries every backend and merges results by descending score.
func (s *CompositeStore) Search(sessionID, query string, limit int) ([]core.SearchResult, error) {
	seen := make(map[core.MemoryStore]bool)
	var merged []core.SearchResult
	for _, b := range s.backends {
		if seen[b] {
			continue
		}
		seen[b] = true
		results, err := b.Search(sessionID, query, limit)
		if err != nil {
			return nil, err
		}
		merged = append(merged, results...)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Delete forwards the delete to every distinct backend.
func (s *CompositeStore) Delete(sessionID, memoryID string) error {
	seen := make(map[core.MemoryStore]bool)
	for _, b := range s.backends {
		if seen[b] {
			continue
		}
		seen[b] = true
		if err := b.Delete(sessionID, memoryID); err != nil {
			return err
		}
	}
	return nil
}
