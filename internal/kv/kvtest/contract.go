// Package kvtest holds the behaviour every kv.Store backend must share.
package kvtest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logsync/internal/kv"
)

// RunContract exercises get/put/delete/scan against an empty store.
func RunContract(t *testing.T, store kv.Store) {
	ctx := context.Background()

	// missing key
	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	// put and overwrite
	require.NoError(t, store.Put(ctx, "100_0", []byte(`{"n":1}`)))
	require.NoError(t, store.Put(ctx, "100_0", []byte(`{"n":2}`)))

	value, ok, err := store.Get(ctx, "100_0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"n":2}`, string(value))

	// prefix scan in key order, unrelated keys excluded
	require.NoError(t, store.Put(ctx, "100_1", []byte(`{"n":3}`)))
	require.NoError(t, store.Put(ctx, "101_2", []byte(`{"n":4}`)))
	require.NoError(t, store.Put(ctx, "sync_checkpoint:a", []byte(`{"nonce":3}`)))

	var keys []string
	require.NoError(t, store.Scan(ctx, "100_", func(e kv.Entry) error {
		keys = append(keys, e.Key)
		return nil
	}))
	assert.Equal(t, []string{"100_0", "100_1"}, keys)

	var all []string
	require.NoError(t, store.Scan(ctx, "", func(e kv.Entry) error {
		all = append(all, e.Key)
		return nil
	}))
	assert.Equal(t, []string{"100_0", "100_1", "101_2", "sync_checkpoint:a"}, all)

	// json helpers
	type doc struct {
		StartBlock uint64 `json:"start_block"`
	}
	require.NoError(t, kv.PutJSON(ctx, store, "doc", doc{StartBlock: 42}))
	var got doc
	ok, err = kv.GetJSON(ctx, store, "doc", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(42), got.StartBlock)

	// delete, twice
	require.NoError(t, store.Delete(ctx, "100_0"))
	require.NoError(t, store.Delete(ctx, "100_0"))
	_, ok, err = store.Get(ctx, "100_0")
	require.NoError(t, err)
	assert.False(t, ok)
}
