package selfencrypt

import "fmt"

// Write implements the Write state machine: lazily prepares the engine for
// writing, extends file_size if needed, and routes the bytes into the raw
// buffers, queue, or sequencer depending on regime and offset.
func (e *SelfEncryptor) Write(data []byte, position uint64) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(data) == 0 {
		return true, nil
	}

	if err := e.prepareToWrite(); err != nil {
		return false, fmt.Errorf("selfencrypt: write: %w", err)
	}

	end := position + uint64(len(data))
	if end > e.fileSize {
		wasTiny := e.regime() == regimeTiny
		oldSize := e.fileSize
		e.fileSize = end
		e.normalChunkSize, e.lastChunkPosition = calculateSizes(e.fileSize, e.cfg.ChunkSize, e.cfg.MinChunkSize)
		if wasTiny && e.regime() == regimeThirds {
			// Bytes written while the file was tiny live only in chunk0Raw;
			// the three-chunk regime reads and flushes from the sequencer.
			e.seq.Add(e.chunk0Raw[:oldSize], 0)
		}
	}

	if err := e.reconcileRegime(); err != nil {
		return false, fmt.Errorf("selfencrypt: write: %w", err)
	}

	if err := e.ingestPlaintext(data, position); err != nil {
		return false, fmt.Errorf("selfencrypt: write: %w", err)
	}

	if end > e.currentPosition {
		e.currentPosition = end
	}

	if e.preparedForReading {
		e.putToReadCache(data, position)
	}

	return true, nil
}

// putToReadCache patches the read cache with freshly written bytes,
// implemented as write-through only after the first Read, per the
// documented "write-through only after first Read" behaviour: before the
// cache exists there is nothing to patch.
func (e *SelfEncryptor) putToReadCache(data []byte, position uint64) {
	if e.readCache == nil {
		return
	}
	cacheEnd := e.cacheStartPosition + uint64(len(e.readCache))
	end := position + uint64(len(data))

	start := position
	if start < e.cacheStartPosition {
		start = e.cacheStartPosition
	}
	if end > cacheEnd {
		end = cacheEnd
	}
	if start >= end {
		return
	}
	copy(e.readCache[start-e.cacheStartPosition:], data[start-position:end-position])
}
