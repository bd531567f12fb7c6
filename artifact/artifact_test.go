package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osok/agent-patterns/core"
)

func stores(t *testing.T) map[string]core.ArtifactStore {
	t.Helper()
	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	return map[string]core.ArtifactStore{
		"memory": NewInMemoryStore(),
		"file":   fileStore,
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save("s1", "report.txt", []byte("findings")))

			data, err := store.Get("s1", "report.txt")
			require.NoError(t, err)
			assert.Equal(t, []byte("findings"), data)
		})
	}
}

func TestStore_GetMissing(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get("s1", "nope")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStore_Overwrite(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save("s1", "a", []byte("v1")))
			require.NoError(t, store.Save("s1", "a", []byte("v2")))

			data, err := store.Get("s1", "a")
			require.NoError(t, err)
			assert.Equal(t, []byte("v2"), data)
		})
	}
}

func TestStore_ListSortedAndScoped(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save("s1", "b", []byte("2")))
			require.NoError(t, store.Save("s1", "a", []byte("1")))
			require.NoError(t, store.Save("s2", "c", []byte("3")))

			ids, err := store.List("s1")
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids)

			empty, err := store.List("unknown")
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Save("s1", "a", []byte("1")))
			require.NoError(t, store.Delete("s1", "a"))

			_, err := store.Get("s1", "a")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, store.Delete("s1", "a"), ErrNotFound)
		})
	}
}

func TestInMemoryStore_CopiesData(t *testing.T) {
	store := NewInMemoryStore()
	data := []byte("original")
	require.NoError(t, store.Save("s1", "a", data))

	data[0] = 'X'
	got, err := store.Get("s1", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, err := store.Get("s1", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Save("s1", "a", []byte("kept")))

	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	data, err := reopened.Get("s1", "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), data)
}
