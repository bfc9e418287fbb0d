package selfencrypt

import (
	"fmt"

	"github.com/i5heu/selfencrypt/internal/chunkcodec"
	workerpool "github.com/i5heu/selfencrypt/pkg/workerPool"
)

// encryptChunk implements EncryptChunk: derive pad/iv/key, run the write
// pipeline (gzip, AES-CFB, XOR pad), record the resulting post-hash and
// size in the data map, and store the ciphertext. Cleanup of whatever hash
// this chunk held before the current rewrite is handled once, for every
// chunk at once, by Flush's reconcileStaleHashes rather than here —
// mirroring HandleRewrite's intent without its snapshot bookkeeping (see
// prepare.go's doc comment).
func (e *SelfEncryptor) encryptChunk(i int, plaintext []byte) error {
	key, iv, pad, err := e.getPadIvKey(i)
	if err != nil {
		return err
	}

	ciphertext, err := chunkcodec.Encrypt(plaintext, key, iv, pad)
	if err != nil {
		return fmt.Errorf("%w: chunk %d: %v", ErrEncryption, i, err)
	}

	newHash := chunkcodec.PostHash(ciphertext)
	if err := e.store.Put(e.ctx(), newHash, ciphertext); err != nil {
		return fmt.Errorf("%w: chunk %d: %v", ErrFailedToStoreChunk, i, err)
	}

	e.dataMap.Chunks[i].Hash = newHash
	e.dataMap.Chunks[i].Size = uint32(len(plaintext))
	e.cfg.Logger.Debug("encrypted chunk", "index", i, "size", len(plaintext))
	return nil
}

// decryptChunk implements DecryptChunk: derive pad/iv/key, fetch the
// ciphertext, and run the inverse pipeline.
func (e *SelfEncryptor) decryptChunk(i int) ([]byte, error) {
	if i < 0 || i >= len(e.dataMap.Chunks) {
		return nil, fmt.Errorf("%w: chunk %d", ErrInvalidChunkIndex, i)
	}

	key, iv, pad, err := e.getPadIvKey(i)
	if err != nil {
		return nil, err
	}

	chunk := e.dataMap.Chunks[i]
	ciphertext, err := e.store.Get(e.ctx(), chunk.Hash)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrMissingChunk, i, err)
	}

	plaintext, err := chunkcodec.Decrypt(ciphertext, key, iv, pad, chunk.Size)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk %d: %v", ErrDecryption, i, err)
	}
	e.cfg.Logger.Debug("decrypted chunk", "index", i, "size", len(plaintext))
	return plaintext, nil
}

// encryptRange encrypts count chunks starting at baseIndex in parallel
// using the worker pool, matching the "data-parallel worker pool" scheduling
// model: ProcessMainQueue parallelizes EncryptChunk across chunks.
// plainAt(j) returns the plaintext for the chunk at baseIndex+j.
func (e *SelfEncryptor) encryptRange(baseIndex, count int, plainAt func(j int) []byte) error {
	if count == 0 {
		return nil
	}
	room := e.pool.NewRoom(count)
	for j := 0; j < count; j++ {
		idx := baseIndex + j
		plain := plainAt(j)
		room.Submit(func() workerpool.Result {
			err := e.encryptChunk(idx, plain)
			return workerpool.Result{Index: idx, Err: err}
		})
	}
	_, err := room.Collect()
	return err
}

// decryptRange decrypts chunks [start, end) in parallel using the worker
// pool, matching ReadDataMapChunks's parallel DecryptChunk scheduling.
func (e *SelfEncryptor) decryptRange(start, end int) ([][]byte, error) {
	indices := make([]int, 0, end-start)
	for i := start; i < end; i++ {
		indices = append(indices, i)
	}
	return e.decryptIndices(indices)
}

// decryptIndices decrypts an arbitrary set of chunk indices in parallel,
// returning one plaintext slice per input index in the same order.
func (e *SelfEncryptor) decryptIndices(indices []int) ([][]byte, error) {
	if len(indices) == 0 {
		return nil, nil
	}
	out := make([][]byte, len(indices))
	room := e.pool.NewRoom(len(indices))
	for pos, idx := range indices {
		idx, pos := idx, pos
		room.Submit(func() workerpool.Result {
			plain, err := e.decryptChunk(idx)
			return workerpool.Result{Index: pos, Data: plain, Err: err}
		})
	}
	results, err := room.Collect()
	if err != nil {
		return nil, err
	}
	for _, r := range results {
		out[r.Index] = r.Data
	}
	return out, nil
}

// decryptAll decrypts every chunk of the current data map and concatenates
// them into a single contiguous plaintext buffer.
func (e *SelfEncryptor) decryptAll() ([]byte, error) {
	plains, err := e.decryptRange(0, len(e.dataMap.Chunks))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, e.fileSize)
	for _, p := range plains {
		out = append(out, p...)
	}
	return out, nil
}
