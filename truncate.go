package selfencrypt

import "fmt"

// Truncate implements the Truncate state machine. The source's version
// iterates the on-disk chunk list, deletes everything beyond the
// truncation point, and leaves the boundary chunk's retained prefix
// re-queued in the sequencer — a path its own comments mark as
// incompletely implemented (see spec §9/REDESIGN FLAGS decision 1).
//
// This engine implements that decision directly rather than re-deriving
// it from the persisted chunk list: prepareToWrite has already pulled
// the entire file into the live write pipeline (and recorded every
// existing chunk's hash in staleHashes), so Truncate only needs to
// re-materialize that pipeline's current contents, keep the prefix up to
// length, reset the pipeline, and re-stage the retained prefix via
// stageExistingPlaintext. The next Flush rebuilds the chunk list from
// that prefix and reconcileStaleHashes deletes every old hash that didn't
// reappear — which is exactly "delete all chunks beyond this one, and the
// boundary chunk too if nothing of it survives".
func (e *SelfEncryptor) Truncate(length uint64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.prepareToWrite(); err != nil {
		return false, fmt.Errorf("selfencrypt: truncate: %w", err)
	}

	if length >= e.fileSize {
		return true, nil
	}

	retained := append([]byte(nil), e.materializeBuffered()[:length]...)

	e.seq.Clear()
	e.mainQueue = nil
	e.queueStartPosition = 2 * e.cfg.ChunkSize
	zero(e.chunk0Raw)
	zero(e.chunk1Raw)

	e.fileSize = length
	e.normalChunkSize, e.lastChunkPosition = calculateSizes(length, e.cfg.ChunkSize, e.cfg.MinChunkSize)
	e.dataMap.Chunks = nil
	if e.currentPosition > length {
		e.currentPosition = length
	}

	e.stageExistingPlaintext(retained)
	e.chunk0Modified = true
	e.chunk1Modified = true
	e.readCache = nil

	return true, nil
}
