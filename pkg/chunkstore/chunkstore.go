// Package chunkstore defines the content-addressed blob storage contract
// consumed by the self-encryption engine, plus two concrete implementations.
package chunkstore

import "context"

// ChunkStore is content-addressed blob storage. Keys are raw SHA-512
// digests (64 bytes); values are the opaque ciphertext produced by the
// engine's chunk codec.
//
// Implementations must be safe for concurrent Get/Put/Delete calls on
// distinct keys. The engine itself serializes competing Put/Delete calls on
// the same key; a ChunkStore does not need to guard against that case
// beyond not corrupting its own internal state.
type ChunkStore interface {
	// Get returns the stored ciphertext for hash, or ErrNotFound if absent.
	Get(ctx context.Context, hash []byte) ([]byte, error)

	// Put stores value under hash. Puts are idempotent: storing the same
	// hash twice is a no-op on the second call, since content addressing
	// means the value is determined by the key.
	Put(ctx context.Context, hash []byte, value []byte) error

	// Delete removes the entry for hash. Deleting an absent key is not an
	// error.
	Delete(ctx context.Context, hash []byte) error
}

// ErrNotFound is returned by Get when hash has no stored value.
var ErrNotFound = chunkNotFoundError{}

type chunkNotFoundError struct{}

func (chunkNotFoundError) Error() string { return "chunkstore: chunk not found" }
