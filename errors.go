package selfencrypt

import "errors"

// Sentinel errors matching the taxonomy in the error handling design:
// callers compare against these with errors.Is; call sites wrap them with
// fmt.Errorf("...: %w", err) to add context.
var (
	// ErrInvalidChunkIndex is returned when a chunk index is out of range.
	ErrInvalidChunkIndex = errors.New("selfencrypt: invalid chunk index")

	// ErrInvalidPosition is returned for an out-of-range read/write offset.
	ErrInvalidPosition = errors.New("selfencrypt: invalid position")

	// ErrMissingChunk is returned when the chunk store has no value for a
	// hash the data map references.
	ErrMissingChunk = errors.New("selfencrypt: missing chunk")

	// ErrDecryption is returned when the read-side pipeline fails.
	ErrDecryption = errors.New("selfencrypt: decryption failed")

	// ErrEncryption is returned when the write-side pipeline fails.
	ErrEncryption = errors.New("selfencrypt: encryption failed")

	// ErrFailedToStoreChunk is returned when ChunkStore.Put fails.
	ErrFailedToStoreChunk = errors.New("selfencrypt: failed to store chunk")

	// ErrStoreDelete is returned when ChunkStore.Delete fails.
	ErrStoreDelete = errors.New("selfencrypt: failed to delete chunk")

	// ErrOutOfMemory is returned when a buffer allocation fails or a
	// requested buffer would exceed sane bounds.
	ErrOutOfMemory = errors.New("selfencrypt: out of memory")
)
