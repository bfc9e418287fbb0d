package selfencrypt

import "fmt"

// Read implements the Read state machine: small reads are served from and
// populate a single reusable cache window sized num_procs*C (falling back
// to C when num_procs is zero), matching the "read cache sized for a small,
// out-of-band read" behaviour; larger reads bypass the cache and fill the
// caller's buffer directly. Both paths fall through to Transmogrify.
func (e *SelfEncryptor) Read(buf []byte, position uint64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(buf) == 0 {
		return true, nil
	}
	if err := e.prepareToRead(); err != nil {
		return false, fmt.Errorf("selfencrypt: read: %w", err)
	}

	cacheSize := uint64(e.cfg.NumProcs) * e.cfg.ChunkSize
	if cacheSize == 0 {
		cacheSize = e.cfg.ChunkSize
	}

	if uint64(len(buf)) >= cacheSize {
		if err := e.transmogrify(buf, position); err != nil {
			return false, fmt.Errorf("selfencrypt: read: %w", err)
		}
		return true, nil
	}

	cacheEnd := e.cacheStartPosition + uint64(len(e.readCache))
	covered := e.readCache != nil && position >= e.cacheStartPosition &&
		position+uint64(len(buf)) <= cacheEnd
	if !covered {
		cache := make([]byte, cacheSize)
		if err := e.transmogrify(cache, position); err != nil {
			return false, fmt.Errorf("selfencrypt: read: %w", err)
		}
		e.readCache = cache
		e.cacheStartPosition = position
	}

	copy(buf, e.readCache[position-e.cacheStartPosition:])
	return true, nil
}

// transmogrify implements Transmogrify: zero-fill buf, then serve tiny
// files straight from inline content (or chunk0_raw, if a write is already
// in progress), and otherwise assemble the answer from the on-disk chunks
// overlaid with whatever is still buffered in memory.
func (e *SelfEncryptor) transmogrify(buf []byte, position uint64) error {
	zero(buf)

	if e.fileSize < 3*e.cfg.MinChunkSize {
		if position >= 3*e.cfg.MinChunkSize {
			return fmt.Errorf("%w: position %d", ErrInvalidPosition, position)
		}
		var src []byte
		if e.preparedForWriting {
			src = e.chunk0Raw
		} else {
			src = e.dataMap.Content
		}
		if position < uint64(len(src)) {
			copy(buf, src[position:])
		}
		return nil
	}

	if err := e.readDataMapChunks(buf, position); err != nil {
		return err
	}
	if e.preparedForWriting {
		e.readInProcessData(buf, position)
	}
	return nil
}

// readDataMapChunks implements ReadDataMapChunks: decrypt, in parallel,
// every already-encrypted chunk overlapping [position, position+len(buf))
// and copy the overlapping portion into buf. Chunks that have not been
// encrypted yet (no hash recorded, because a write is in progress) are
// left at zero here; readInProcessData fills them from the live buffers.
func (e *SelfEncryptor) readDataMapChunks(buf []byte, position uint64) error {
	if len(e.dataMap.Chunks) == 0 {
		return nil
	}

	offsets := make([]uint64, len(e.dataMap.Chunks)+1)
	for i, c := range e.dataMap.Chunks {
		offsets[i+1] = offsets[i] + uint64(c.Size)
	}
	end := position + uint64(len(buf))

	var indices []int
	for i, c := range e.dataMap.Chunks {
		if len(c.Hash) == 0 {
			continue
		}
		if offsets[i+1] > position && offsets[i] < end {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return nil
	}

	plains, err := e.decryptIndices(indices)
	if err != nil {
		return err
	}

	for j, idx := range indices {
		chunkStart := offsets[idx]
		plain := plains[j]

		srcStart := uint64(0)
		dstStart := chunkStart
		if chunkStart < position {
			srcStart = position - chunkStart
			dstStart = position
		}
		srcEnd := uint64(len(plain))
		if chunkStart+srcEnd > end {
			srcEnd = end - chunkStart
		}
		if srcStart >= srcEnd {
			continue
		}
		copy(buf[dstStart-position:], plain[srcStart:srcEnd])
	}
	return nil
}

// readInProcessData implements ReadInProcessData: overlay whatever is still
// only buffered in memory (chunk0/1 raw, the main encrypt queue, and the
// sequencer) on top of whatever readDataMapChunks already filled in from
// the store, so a Read always observes the most recent Write.
func (e *SelfEncryptor) readInProcessData(buf []byte, position uint64) {
	switch e.regime() {
	case regimeThirds:
		for _, b := range e.seq.Blocks() {
			overlay(buf, position, b.Position, b.Data)
		}

	case regimeQueued:
		overlay(buf, position, 0, e.chunk0Raw[:e.normalChunkSize])
		overlay(buf, position, e.normalChunkSize, e.chunk1Plaintext())
		overlay(buf, position, e.queueStartPosition, e.mainQueue)
		for _, b := range e.seq.Blocks() {
			overlay(buf, position, b.Position, b.Data)
		}
	}
}

// overlay copies the portion of src (logically starting at srcPos) that
// falls within [bufPos, bufPos+len(buf)) into buf.
func overlay(buf []byte, bufPos, srcPos uint64, src []byte) {
	if len(src) == 0 {
		return
	}
	bufEnd := bufPos + uint64(len(buf))
	srcEnd := srcPos + uint64(len(src))

	lo := bufPos
	if srcPos > lo {
		lo = srcPos
	}
	hi := bufEnd
	if srcEnd < hi {
		hi = srcEnd
	}
	if lo >= hi {
		return
	}
	copy(buf[lo-bufPos:], src[lo-srcPos:hi-srcPos])
}
