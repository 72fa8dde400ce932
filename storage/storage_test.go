package storage_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrovis/starstream/storage"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "starstream")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	store := storage.NewFileStore(dir)
	t.Run("put and ranged get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "a", []byte("hello world")))
		value, err := store.GetRange(ctx, "a", 6, 5)
		require.NoError(t, err)
		assert.Equal(t, []byte("world"), value)
	})
	t.Run("range past the end", func(t *testing.T) {
		_, err := store.GetRange(ctx, "a", 6, 100)
		assert.ErrorIs(t, err, storage.ErrInvalidRange)
	})
	t.Run("missing object", func(t *testing.T) {
		_, err := store.GetRange(ctx, "nope", 0, 1)
		assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	})
	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, "a"))
		_, err := store.GetRange(ctx, "a", 0, 1)
		assert.ErrorIs(t, err, storage.ErrObjectNotFound)
		require.NoError(t, store.Delete(ctx, "a"))
	})
}

func TestMemStore(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemStore()
	t.Run("put and ranged get", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, "a", []byte{1, 2, 3, 4}))
		value, err := store.GetRange(ctx, "a", 1, 2)
		require.NoError(t, err)
		assert.Equal(t, []byte{2, 3}, value)
	})
	t.Run("invalid ranges", func(t *testing.T) {
		_, err := store.GetRange(ctx, "a", 2, 10)
		assert.ErrorIs(t, err, storage.ErrInvalidRange)
		_, err = store.GetRange(ctx, "a", -1, 2)
		assert.ErrorIs(t, err, storage.ErrInvalidRange)
	})
	t.Run("missing object", func(t *testing.T) {
		_, err := store.GetRange(ctx, "nope", 0, 0)
		assert.ErrorIs(t, err, storage.ErrObjectNotFound)
	})
	t.Run("returned slice is a copy", func(t *testing.T) {
		value, err := store.GetRange(ctx, "a", 0, 4)
		require.NoError(t, err)
		value[0] = 99
		again, err := store.GetRange(ctx, "a", 0, 4)
		require.NoError(t, err)
		assert.Equal(t, byte(1), again[0])
	})
}
