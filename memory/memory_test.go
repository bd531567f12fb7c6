package memory

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/core"
)

func TestTypeOf(t *testing.T) {
	assert.Equal(t, Semantic, TypeOf(nil))
	assert.Equal(t, Semantic, TypeOf(map[string]any{}))
	assert.Equal(t, Episodic, TypeOf(map[string]any{TypeMetadataKey: "episodic"}))
	assert.Equal(t, Procedural, TypeOf(map[string]any{TypeMetadataKey: Procedural}))
	assert.Equal(t, Semantic, TypeOf(map[string]any{TypeMetadataKey: "bogus"}))
}

func TestInMemoryStore_PutGet(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Put("s1", map[string]any{"lang": "go"}))
	require.NoError(t, store.Put("s1", map[string]any{"level": "expert"}))

	m, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "go", m["lang"])
	assert.Equal(t, "expert", m["level"])

	// Returned map is a copy.
	m["lang"] = "rust"
	again, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "go", again["lang"])
}

func TestInMemoryStore_SearchRanksByOverlap(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Store("s1", "the user prefers Python for scripting", nil))
	require.NoError(t, store.Store("s1", "deploy with make release", nil))
	require.NoError(t, store.Store("s1", "the user prefers dark mode", nil))

	results, err := store.Search("s1", "user prefers python", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, strings.ToLower(results[0].Content), "python")
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestInMemoryStore_SearchLimitAndScope(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Store("s1", "alpha beta", nil))
	require.NoError(t, store.Store("s1", "alpha gamma", nil))
	require.NoError(t, store.Store("s2", "alpha delta", nil))

	results, err := store.Search("s1", "alpha", 1)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	none, err := store.Search("s1", "", 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryStore_Delete(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Store("s1", "remember this", nil))
	results, err := store.Search("s1", "remember", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, store.Delete("s1", results[0].ID))
	results, err = store.Search("s1", "remember", 10)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Deleting twice is a no-op.
	assert.NoError(t, store.Delete("s1", "missing"))
}

// recordingStore captures Store calls so routing can be asserted.
type recordingStore struct {
	*InMemoryStore
	stored []string
}

func (r *recordingStore) Store(sessionID, content string, metadata map[string]any) error {
	r.stored = append(r.stored, content)
	return r.InMemoryStore.Store(sessionID, content, metadata)
}

func TestCompositeStore_RoutesByType(t *testing.T) {
	semantic := &recordingStore{InMemoryStore: NewInMemoryStore()}
	episodic := &recordingStore{InMemoryStore: NewInMemoryStore()}

	store := NewCompositeStore(map[RecordType]core.MemoryStore{
		Semantic: semantic,
		Episodic: episodic,
	})

	require.NoError(t, store.Store("s1", "a fact", nil))
	require.NoError(t, store.Store("s1", "an episode", map[string]any{TypeMetadataKey: "episodic"}))
	// No procedural backend registered, falls back to semantic.
	require.NoError(t, store.Store("s1", "a procedure", map[string]any{TypeMetadataKey: "procedural"}))

	assert.Equal(t, []string{"a fact", "a procedure"}, semantic.stored)
	assert.Equal(t, []string{"an episode"}, episodic.stored)
}

func TestCompositeStore_SearchMergesBackends(t *testing.T) {
	store := NewCompositeStore(map[RecordType]core.MemoryStore{
		Semantic: NewInMemoryStore(),
		Episodic: NewInMemoryStore(),
	})

	require.NoError(t, store.Store("s1", "paris is the capital of france", nil))
	require.NoError(t, store.Store("s1", "visited paris last run", map[string]any{TypeMetadataKey: "episodic"}))

	results, err := store.Search("s1", "paris", 10)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestCompositeStore_DefaultsSemanticBackend(t *testing.T) {
	store := NewCompositeStore(nil)
	require.NoError(t, store.Put("s1", map[string]any{"k": "v"}))
	m, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "v", m["k"])
}

// wordEmbedder produces deterministic bag-of-words vectors over a tiny
// vocabulary so similarity search can be tested without a network call.
type wordEmbedder struct {
	vocab []string
}

func (e *wordEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(e.vocab))
	lower := strings.ToLower(text)
	for i, w := range e.vocab {
		if strings.Contains(lower, w) {
			vec[i] = 1
		}
	}
	// Normalize so cosine similarity behaves.
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

func newTestVectorStore(t *testing.T) *VectorStore {
	t.Helper()
	store, err := NewVectorStore(&wordEmbedder{
		vocab: []string{"paris", "capital", "france", "deploy", "release", "dark"},
	})
	require.NoError(t, err)
	return store
}

func TestVectorStore_RequiresEmbedder(t *testing.T) {
	_, err := NewVectorStore(nil)
	assert.Error(t, err)
}

func TestVectorStore_StoreAndSearch(t *testing.T) {
	store := newTestVectorStore(t)

	require.NoError(t, store.Store("s1", "paris is the capital of france", nil))
	require.NoError(t, store.Store("s1", "deploy with make release", map[string]any{TypeMetadataKey: "procedural"}))

	results, err := store.Search("s1", "what is the capital of france", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].Content, "paris")
	assert.Equal(t, "semantic", results[0].Metadata[TypeMetadataKey])
}

func TestVectorStore_SearchEmptyCollection(t *testing.T) {
	store := newTestVectorStore(t)

	results, err := store.Search("s1", "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorStore_Delete(t *testing.T) {
	store := newTestVectorStore(t)

	require.NoError(t, store.Store("s1", "paris", nil))
	results, err := store.Search("s1", "paris", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, store.Delete("s1", results[0].ID))
	results, err = store.Search("s1", "paris", 1)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorStore_KeyValueMemory(t *testing.T) {
	store := newTestVectorStore(t)

	require.NoError(t, store.Put("s1", map[string]any{"goal": "research"}))
	m, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "research", m["goal"])
}
