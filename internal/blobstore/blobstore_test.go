package blobstore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRoundTrip(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	hash, err := store.Put(ctx, []byte("hello rift"))
	require.NoError(t, err)
	assert.Equal(t, store.Hash([]byte("hello rift")), hash)

	has, err := store.Has(ctx, hash)
	require.NoError(t, err)
	assert.True(t, has)

	data, err := store.Get(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "hello rift", string(data))
}

func TestPutIsIdempotent(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	h1, err := store.Put(ctx, []byte("same content"))
	require.NoError(t, err)
	h2, err := store.Put(ctx, []byte("same content"))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestGetMissingBlob(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Get(context.Background(), "deadbeef")
	require.ErrorIs(t, err, ErrBlobNotFound)
}

func TestHashReaderMatchesPut(t *testing.T) {
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	content := "streamed content for hashing"
	hash, n, err := HashReader(strings.NewReader(content))
	require.NoError(t, err)
	assert.EqualValues(t, len(content), n)
	assert.Equal(t, store.Hash([]byte(content)), hash)
}
