package chunkstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryPutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	hash := []byte("some-64-byte-hash-placeholder")
	value := []byte("ciphertext")

	require.NoError(t, m.Put(ctx, hash, value))

	got, err := m.Get(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, value, got)

	require.NoError(t, m.Delete(ctx, hash))
	_, err = m.Get(ctx, hash)
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryPutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	hash := []byte("hash")

	require.NoError(t, m.Put(ctx, hash, []byte("first")))
	require.NoError(t, m.Put(ctx, hash, []byte("second")))

	got, err := m.Get(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, []byte("first"), got)
}

func TestMemoryDeleteAbsentIsNotError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Delete(ctx, []byte("absent")))
}
