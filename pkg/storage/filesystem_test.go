package storage

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveReadReplace(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Read("curriculum.json")
	assert.True(t, errors.Is(err, os.ErrNotExist))

	require.NoError(t, store.Save("curriculum.json", []byte(`[1]`)))
	require.NoError(t, store.Save("curriculum.json", []byte(`[1,2]`)))

	data, err := store.Read("curriculum.json")
	require.NoError(t, err)
	assert.Equal(t, `[1,2]`, string(data))

	entries, err := os.ReadDir(filepath.Dir(store.Path("curriculum.json")))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalStorageCleanupOlderThan(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.SaveStream("uploads/old.png", bytes.NewReader([]byte("old")))
	require.NoError(t, err)
	_, err = store.SaveStream("uploads/new.png", bytes.NewReader([]byte("new")))
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("uploads/old.png"), past, past))

	deleted, err := store.CleanupOlderThan("uploads", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("uploads", "old.png")}, deleted)

	missing, err := store.CleanupOlderThan("nothing-here", time.Hour)
	require.NoError(t, err)
	assert.Empty(t, missing)
}
