package selfencrypt

import "fmt"

// Flush implements the Flush state machine: idempotent if no write has
// happened since construction or the last Flush, inline-content for tiny
// files, and otherwise a full rebuild of the chunk list from whatever is
// currently buffered in the raw chunk0/1 buffers, the main encrypt queue,
// and the sequencer.
//
// Because this engine decrypts the entire existing file into its write
// buffers up front (see prepare.go) rather than lazily re-encrypting only
// the chunks a rewrite touches, Flush here always fully recomputes the
// chunk list; it does not need the source's old_n1/n2_pre_hash snapshot
// mechanism to stay correct across multiple writing sessions, since a
// session either hasn't started writing (idempotent no-op) or has already
// pulled every chunk's plaintext into memory.
func (e *SelfEncryptor) Flush() (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.preparedForWriting {
		return true, nil
	}

	switch e.regime() {
	case regimeTiny:
		e.dataMap.Content = append([]byte(nil), e.chunk0Raw[:e.fileSize]...)
		e.dataMap.Chunks = nil
	case regimeThirds:
		if err := e.flushThirds(); err != nil {
			return false, err
		}
		e.dataMap.Content = nil
	default:
		if err := e.flushQueued(); err != nil {
			return false, err
		}
		e.dataMap.Content = nil
	}

	if err := e.reconcileStaleHashes(); err != nil {
		return false, err
	}

	e.chunk0Modified = false
	e.chunk1Modified = false
	e.resetWritePipeline()
	return true, nil
}

// reconcileStaleHashes deletes every hash captured by prepareToWrite that
// did not reappear in the freshly rebuilt chunk list, implementing both
// ordinary rewrite cleanup and Truncate's "delete chunks beyond the
// truncation point" in one mechanism (see the staleHashes field doc).
// Every deletion is attempted even if an earlier one fails; the most
// recent failure wins, matching the last-writer-wins error aggregation
// used for the worker pool's result rooms.
func (e *SelfEncryptor) reconcileStaleHashes() error {
	if len(e.staleHashes) == 0 {
		return nil
	}

	keep := make(map[string]struct{}, len(e.dataMap.Chunks))
	for _, c := range e.dataMap.Chunks {
		if len(c.Hash) > 0 {
			keep[string(c.Hash)] = struct{}{}
		}
	}

	var lastErr error
	for _, h := range e.staleHashes {
		if _, ok := keep[string(h)]; ok {
			continue
		}
		if err := e.store.Delete(e.ctx(), h); err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrStoreDelete, err)
		}
	}
	e.staleHashes = nil
	return lastErr
}

// flushThirds handles the 3*Cmin <= size < 3*C regime: exactly three
// chunks, materialized densely from the sequencer.
func (e *SelfEncryptor) flushThirds() error {
	buf := e.materializeThirds()
	normal := e.normalChunkSize

	bounds := []struct{ start, end uint64 }{
		{0, normal},
		{normal, 2 * normal},
		{2 * normal, e.fileSize},
	}

	e.ensureChunkLen(3)
	for i, b := range bounds {
		slice := buf[b.start:b.end]
		ph := preHash(slice)
		e.dataMap.Chunks[i].PreHash = ph
		e.dataMap.Chunks[i].Size = uint32(len(slice))
	}

	if err := e.encryptRange(0, 3, func(j int) []byte {
		return buf[bounds[j].start:bounds[j].end]
	}); err != nil {
		return err
	}

	e.seq.Clear()
	return nil
}

// flushQueued handles the size >= 3*C regime: drains the queue and
// sequencer into a dense tail buffer, processes every full-size chunk via
// processMainQueue, then encrypts the trailing remainder and finally chunk
// 0 and chunk 1, which must be encrypted last since the convergent keying
// of every other chunk may depend on their pre-hashes.
func (e *SelfEncryptor) flushQueued() error {
	if err := e.reconcileRegime(); err != nil {
		return err
	}

	if e.fileSize < e.queueStartPosition {
		return fmt.Errorf("selfencrypt: file size %d precedes queue start %d", e.fileSize, e.queueStartPosition)
	}
	total := e.fileSize - e.queueStartPosition
	dense := make([]byte, total)
	copy(dense, e.mainQueue)

	for _, b := range e.seq.Blocks() {
		if b.Position < e.queueStartPosition {
			continue
		}
		off := b.Position - e.queueStartPosition
		if off >= total {
			continue
		}
		end := off + uint64(len(b.Data))
		if end > total {
			end = total
		}
		copy(dense[off:end], b.Data[:end-off])
	}
	e.seq.Clear()
	e.mainQueue = dense

	if err := e.processMainQueue(); err != nil {
		return err
	}

	finalIndex := int(e.queueStartPosition / e.cfg.ChunkSize)
	tail := e.mainQueue
	if len(tail) > 0 {
		e.ensureChunkLen(finalIndex + 1)
		e.dataMap.Chunks[finalIndex].PreHash = preHash(tail)
		e.dataMap.Chunks[finalIndex].Size = uint32(len(tail))
	} else {
		e.ensureChunkLen(finalIndex)
	}

	if len(tail) > 0 {
		if err := e.encryptChunk(finalIndex, tail); err != nil {
			return err
		}
		e.queueStartPosition += uint64(len(tail))
		e.mainQueue = nil
	}

	if err := e.encryptChunk(0, e.chunk0Raw[:e.normalChunkSize]); err != nil {
		return err
	}
	if err := e.encryptChunk(1, e.chunk1Plaintext()); err != nil {
		return err
	}

	return nil
}
