package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageWriteAtomicAndRead(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(filepath.Join(dir, "nested"))
	require.NoError(t, err)

	require.NoError(t, store.WriteAtomic("db.json", []byte(`{"a":1}`)))
	require.NoError(t, store.WriteAtomic("db.json", []byte(`{"a":2}`)))

	data, err := store.Read("db.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(data))
	assert.True(t, store.Exists("db.json"))

	entries, err := os.ReadDir(filepath.Join(dir, "nested"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLocalStorageReadMissing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read("missing.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.False(t, store.Exists("missing.json"))
}

func TestLocalStorageDelete(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.WriteAtomic("db.json", []byte("{}")))
	require.NoError(t, store.Delete("db.json"))
	require.NoError(t, store.Delete("db.json"))
	assert.False(t, store.Exists("db.json"))
}
