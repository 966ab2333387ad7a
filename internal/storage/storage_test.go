package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stores(t *testing.T) map[string]Store {
	t.Helper()

	fileStore, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	sqliteStore, err := NewSQLiteStore(filepath.Join(t.TempDir(), "todoquest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fileStore,
		"sqlite": sqliteStore,
	}
}

func TestStore_SetGetDelete(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := st.Get(KeyTasks)
			require.NoError(t, err)
			assert.False(t, ok, "missing key must report absent, not error")

			require.NoError(t, st.Set(KeyTasks, []byte(`[{"id":"a"}]`)))
			v, ok, err := st.Get(KeyTasks)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, `[{"id":"a"}]`, string(v))

			require.NoError(t, st.Set(KeyTasks, []byte(`[]`)))
			v, _, err = st.Get(KeyTasks)
			require.NoError(t, err)
			assert.Equal(t, `[]`, string(v))

			require.NoError(t, st.Delete(KeyTasks))
			_, ok, err = st.Get(KeyTasks)
			require.NoError(t, err)
			assert.False(t, ok)

			// Deleting twice is a no-op.
			require.NoError(t, st.Delete(KeyTasks))
		})
	}
}

func TestStore_Keys(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, st.Set(KeyHealth, []byte(`{}`)))
			require.NoError(t, st.Set(KeyCharacter, []byte(`3`)))

			keys, err := st.Keys()
			require.NoError(t, err)
			assert.Equal(t, []string{KeyCharacter, KeyHealth}, keys)
		})
	}
}

func TestFileStore_RejectsTraversalKeys(t *testing.T) {
	st, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	require.Error(t, st.Set("../escape", []byte(`{}`)))
	_, _, err = st.Get("a/b")
	require.Error(t, err)
}
