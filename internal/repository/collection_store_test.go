package repository

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/curriculum-api/pkg/storage"
)

func TestCollectionStores(t *testing.T) {
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	stores := map[string]CollectionStore{
		"memory": NewMemoryCollectionStore(),
		"file":   NewFileCollectionStore(files),
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			missing, err := store.Load(ctx, CollectionReports)
			require.NoError(t, err)
			assert.Nil(t, missing)

			require.NoError(t, store.ReplaceAll(ctx, CollectionReports, json.RawMessage(`[{"id":"r1"}]`)))
			require.NoError(t, store.ReplaceAll(ctx, CollectionReports, json.RawMessage(`[{"id":"r2"}]`)))

			got, err := store.Load(ctx, CollectionReports)
			require.NoError(t, err)
			assert.JSONEq(t, `[{"id":"r2"}]`, string(got))
		})
	}
}
