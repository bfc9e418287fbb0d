package selfencrypt

import "fmt"

// prepareToWrite is the initializer run before the first Write of a
// writing session; a session runs from here until the next successful
// Flush, which calls resetWritePipeline so the following Write reloads
// fresh (see Flush's doc comment and §3 Lifecycle).
//
// The source lazily decrypts just enough of the existing data map to seed
// chunk0_raw/chunk1_raw and re-queues the rest into the sequencer. This
// engine takes the simpler route suggested by the source's own design
// notes: since Flush is all-or-nothing (no resumable/crash-safe flush is a
// stated non-goal), there is no need to preserve a partially-encrypted
// rewrite across sessions. prepareToWrite instead eagerly decrypts the
// entire existing file into the live write buffers and clears the chunk
// list; Flush rebuilds it from scratch. This trades memory for dropping
// the old_n1/n2_pre_hash cross-session bookkeeping entirely. Every
// pre-existing chunk hash is recorded in staleHashes so Flush can delete
// whichever of them didn't make it back into the rebuilt list.
func (e *SelfEncryptor) prepareToWrite() error {
	if e.preparedForWriting {
		return nil
	}

	e.chunk0Raw = e.bytes.Get(int(e.cfg.ChunkSize))
	e.chunk1Raw = e.bytes.Get(int(e.cfg.ChunkSize))
	zero(e.chunk0Raw)
	zero(e.chunk1Raw)

	switch {
	case e.dataMap.IsTiny():
		copy(e.chunk0Raw, e.dataMap.Content)
		e.chunk0Modified = true
		e.dataMap.Content = nil

	case len(e.dataMap.Chunks) > 0:
		for _, c := range e.dataMap.Chunks {
			if len(c.Hash) > 0 {
				e.staleHashes = append(e.staleHashes, c.Hash)
			}
		}

		plaintext, err := e.decryptAll()
		if err != nil {
			return fmt.Errorf("prepare to write: %w", err)
		}
		e.dataMap.Chunks = nil
		e.mainQueue = nil
		e.seq.Clear()
		e.queueStartPosition = 2 * e.cfg.ChunkSize
		e.stageExistingPlaintext(plaintext)
		e.chunk0Modified = true
		e.chunk1Modified = true
	}

	e.preparedForWriting = true
	return nil
}

// stageExistingPlaintext re-primes the write buffers from content that is
// already known-good (freshly decrypted by prepareToWrite, or the retained
// prefix in Truncate) without running it through the capacity-triggered
// incremental encrypt path that ordinary Write calls use. Routing a bulk
// reload through ingestPlaintext/appendToQueue would let processMainQueue
// fire mid-reload and advance queueStartPosition past positions the
// now-active session hasn't even been asked to touch yet; a later Write
// at one of those positions would then have nowhere to land, since the
// routing rules only accept a write into the raw buffers, at the exact
// queue frontier, or into the sequencer pending that frontier. Staging the
// whole reload directly into chunk0Raw/chunk1Raw/mainQueue up front keeps
// queueStartPosition pinned at the raw boundary for the rest of the
// session, so every chunk's plaintext stays reachable for a rewrite until
// Flush actually processes the queue.
func (e *SelfEncryptor) stageExistingPlaintext(plaintext []byte) {
	switch e.regime() {
	case regimeTiny:
		copy(e.chunk0Raw, plaintext)
	case regimeThirds:
		e.seq.Add(plaintext, 0)
	default:
		boundary := 2 * e.cfg.ChunkSize
		n := boundary
		if n > uint64(len(plaintext)) {
			n = uint64(len(plaintext))
		}
		e.writeRaw(plaintext[:n], 0)
		e.mainQueue = append([]byte(nil), plaintext[n:]...)
		e.queueStartPosition = boundary
	}
}

// resetWritePipeline ends the current writing session once Flush has
// persisted it: releases the raw chunk buffers back to the pool, drops the
// main queue and sequencer, and clears preparedForWriting so the next
// Write re-runs prepareToWrite and reloads the just-flushed data map from
// scratch. Without this, a session's write pipeline would survive past
// its Flush with queueStartPosition left at fileSize, and a later rewrite
// of anything already drained out of mainQueue would be silently dropped.
func (e *SelfEncryptor) resetWritePipeline() {
	if e.chunk0Raw != nil {
		e.bytes.Put(e.chunk0Raw)
		e.chunk0Raw = nil
	}
	if e.chunk1Raw != nil {
		e.bytes.Put(e.chunk1Raw)
		e.chunk1Raw = nil
	}
	e.mainQueue = nil
	e.seq.Clear()
	e.queueStartPosition = 2 * e.cfg.ChunkSize
	e.preparedForWriting = false
}

// prepareToRead is the one-shot initializer run before the first Read.
func (e *SelfEncryptor) prepareToRead() error {
	if e.preparedForReading {
		return nil
	}
	e.preparedForReading = true
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
