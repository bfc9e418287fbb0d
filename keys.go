package selfencrypt

import (
	"fmt"

	"github.com/i5heu/selfencrypt/internal/chunkcodec"
)

func preHash(plaintext []byte) []byte {
	return chunkcodec.PreHash(plaintext)
}

// chunk1Plaintext assembles chunk 1's logical plaintext from the raw
// buffers, handling the tail case where normal < C and chunk 1's bytes
// straddle the chunk0Raw/chunk1Raw boundary.
func (e *SelfEncryptor) chunk1Plaintext() []byte {
	C := e.cfg.ChunkSize
	normal := e.normalChunkSize

	if 2*normal <= C {
		return e.chunk0Raw[normal : 2*normal]
	}

	out := make([]byte, 0, 2*normal-C+(C-normal))
	out = append(out, e.chunk0Raw[normal:C]...)
	out = append(out, e.chunk1Raw[:2*normal-C]...)
	return out
}

// ensurePreHash returns the pre-hash for chunk i, computing it from the raw
// buffers for i in {0,1} when it has not yet been recorded in the data map
// (the case during regimeQueued before chunk0/1 have themselves been
// encrypted), and caching the result.
//
// encryptRange and processMainQueue fan a batch of chunks out across the
// worker pool, and any chunk whose neighbour wraps around to index 0 or 1
// reaches this lazy computation from more than one goroutine at once;
// prehashMu serializes the check-and-set so two workers never race on
// writing dataMap.Chunks[0]/[1].
func (e *SelfEncryptor) ensurePreHash(i int) ([]byte, error) {
	e.prehashMu.Lock()
	defer e.prehashMu.Unlock()

	if i < len(e.dataMap.Chunks) && len(e.dataMap.Chunks[i].PreHash) > 0 {
		return e.dataMap.Chunks[i].PreHash, nil
	}

	switch i {
	case 0:
		ph := preHash(e.chunk0Raw[:e.normalChunkSize])
		e.setChunkPreHash(0, ph, uint32(e.normalChunkSize))
		return ph, nil
	case 1:
		plain := e.chunk1Plaintext()
		ph := preHash(plain)
		e.setChunkPreHash(1, ph, uint32(len(plain)))
		return ph, nil
	default:
		return nil, fmt.Errorf("%w: pre-hash for chunk %d is not available", ErrInvalidChunkIndex, i)
	}
}

func (e *SelfEncryptor) setChunkPreHash(i int, ph []byte, size uint32) {
	e.ensureChunkLen(i + 1)
	e.dataMap.Chunks[i].PreHash = ph
	if e.dataMap.Chunks[i].Size == 0 {
		e.dataMap.Chunks[i].Size = size
	}
}

// getPadIvKey implements GetPadIvKey: given chunk index i and the total
// chunk count N, derive n1=(i+N-1)%N and n2=(i+N-2)%N and build the AES
// key, IV, and XOR pad from the three pre-hashes.
func (e *SelfEncryptor) getPadIvKey(i int) (key, iv, pad []byte, err error) {
	n := len(e.dataMap.Chunks)
	if n == 0 {
		return nil, nil, nil, fmt.Errorf("%w: data map has no chunks", ErrInvalidChunkIndex)
	}
	n1 := (i + n - 1) % n
	n2 := (i + n - 2) % n

	h1, err := e.ensurePreHash(n1)
	if err != nil {
		return nil, nil, nil, err
	}
	hi, err := e.ensurePreHash(i)
	if err != nil {
		return nil, nil, nil, err
	}
	h2, err := e.ensurePreHash(n2)
	if err != nil {
		return nil, nil, nil, err
	}

	key, iv, pad, err = chunkcodec.DerivePadIvKey(h1, hi, h2)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("derive pad/iv/key for chunk %d: %w", i, err)
	}
	return key, iv, pad, nil
}
