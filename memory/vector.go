package memory

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/philippgille/chromem-go"

	"github.com/osok/agent-patterns/core"
)

var _ core.MemoryStore = (*VectorStore)(nil)

// VectorStoreOptions configures the embedded vector store.
type VectorStoreOptions struct {
	// PersistPath is a directory for on-disk persistence. Empty keeps
	// everything in memory.
	PersistPath string
	// Compress enables gzip compression of persisted documents.
	Compress bool
}

// VectorStore retrieves memory by cosine similarity over embeddings, backed
// by an embedded chromem database. Each session gets its own collection.
// Key-value memory is held in process memory alongside the vectors.
type VectorStore struct {
	db       *chromem.DB
	embedder Embedder

	mu          sync.Mutex
	collections map[string]*chromem.Collection
	state       map[string]map[string]any
}

// NewVectorStore creates a vector store using the given embedder.
func NewVectorStore(embedder Embedder, optFns ...func(o *VectorStoreOptions)) (*VectorStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}

	var opts VectorStoreOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	var db *chromem.DB
	var err error
	if opts.PersistPath != "" {
		db, err = chromem.NewPersistentDB(opts.PersistPath, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("open vector db: %w", err)
		}
	} else {
		db = chromem.NewDB()
	}

	return &VectorStore{
		db:          db,
		embedder:    embedder,
		collections: make(map[string]*chromem.Collection),
		state:       make(map[string]map[string]any),
	}, nil
}

func (s *VectorStore) collection(sessionID string) (*chromem.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if col, ok := s.collections[sessionID]; ok {
		return col, nil
	}

	// Embeddings are always pre-computed, the func must never be reached.
	failFunc := func(ctx context.Context, text string) ([]float32, error) {
		return nil, fmt.Errorf("embedding requested for %q but vectors are pre-computed", text)
	}

	col, err := s.db.GetOrCreateCollection("memory-"+sessionID, nil, failFunc)
	if err != nil {
		return nil, fmt.Errorf("get collection for session %s: %w", sessionID, err)
	}
	s.collections[sessionID] = col
	return col, nil
}

// Get returns a copy of the session's key-value memory.
func (s *VectorStore) Get(sessionID string) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any, len(s.state[sessionID]))
	for k, v := range s.state[sessionID] {
		out[k] = v
	}
	return out, nil
}

// Put merges the delta into the session's key-value memory.
func (s *VectorStore) Put(sessionID string, delta map[string]any) error {
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

// Store embeds the content and adds it to the session's collection.
func (s *VectorStore) Store(sessionID, content string, metadata map[string]any) error {
	ctx := context.Background()

	vec, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}

	col, err := s.collection(sessionID)
	if err != nil {
		return err
	}

	strMeta := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		strMeta[k] = fmt.Sprint(v)
	}
	strMeta[TypeMetadataKey] = string(TypeOf(metadata))
	strMeta["created"] = time.Now().UTC().Format(time.RFC3339)

	doc := chromem.Document{
		ID:        core.NewID(),
		Content:   content,
		Metadata:  strMeta,
		Embedding: vec,
	}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("store memory: %w", err)
	}
	return nil
}

// Search embeds the query and returns the most similar records.
func (s *VectorStore) Search(sessionID, query string, limit int) ([]core.SearchResult, error) {
	ctx := context.Background()

	col, err := s.collection(sessionID)
	if err != nil {
		return nil, err
	}

	// chromem rejects queries asking for more results than stored docs.
	count := col.Count()
	if count == 0 {
		return []core.SearchResult{}, nil
	}
	if limit <= 0 || limit > count {
		limit = count
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := col.QueryEmbedding(ctx, vec, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("search memory: %w", err)
	}

	results := make([]core.SearchResult, 0, len(hits))
	for _, h := range hits {
		meta := make(map[string]any, len(h.Metadata))
		for k, v := range h.Metadata {
			meta[k] = v
		}
		results = append(results, core.SearchResult{
			ID:       h.ID,
			Content:  h.Content,
			Score:    float64(h.Similarity),
			Metadata: meta,
		})
	}
	return results, nil
}

// Delete removes a record from the session's collection.
func (s *VectorStore) Delete(sessionID, memoryID string) error {
	col, err := s.collection(sessionID)
	if err != nil {
		return err
	}
	if err := col.Delete(context.Background(), nil, nil, memoryID); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}
