package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logsync/internal/kv/kvtest"
)

func createTestStore(t *testing.T) (*Store, string, func()) {
	dir, err := os.MkdirTemp("", "logsync-sqlite-")
	require.NoError(t, err)

	config := DefaultConfig()
	config.Path = filepath.Join(dir, "kv.db")

	store, err := NewStore(context.Background(), config)
	require.NoError(t, err)

	return store, config.Path, func() {
		store.Close()
		os.RemoveAll(dir)
	}
}

func TestStoreContract(t *testing.T) {
	store, _, close := createTestStore(t)
	defer close()

	kvtest.RunContract(t, store)
}

func TestStoreReopen(t *testing.T) {
	store, path, close := createTestStore(t)
	defer close()

	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "sync_checkpoint:x", []byte(`{"start_block":7}`)))
	require.NoError(t, store.Close())

	reopened, err := NewStore(ctx, Config{Path: path})
	require.NoError(t, err)
	defer reopened.Close()

	value, ok, err := reopened.Get(ctx, "sync_checkpoint:x")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"start_block":7}`, string(value))
}

func TestStoreRejectsBadTable(t *testing.T) {
	_, err := NewStore(context.Background(), Config{Path: filepath.Join(t.TempDir(), "kv.db"), Table: "bad table"})
	assert.Error(t, err)
}
