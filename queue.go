package selfencrypt

import (
	"fmt"

	"github.com/i5heu/selfencrypt/pkg/model"
)

// regime classifies how the current file size is being written, per the
// sizing algorithm in calculateSizes.
type regime int

const (
	regimeTiny   regime = iota // size < 3*Cmin: inline content only
	regimeThirds               // 3*Cmin <= size < 3*C: exactly three chunks
	regimeQueued               // size >= 3*C: chunk0/1 raw + queue + sequencer
)

func (e *SelfEncryptor) regime() regime {
	switch {
	case e.fileSize < 3*e.cfg.MinChunkSize:
		return regimeTiny
	case e.normalChunkSize < e.cfg.ChunkSize:
		return regimeThirds
	default:
		return regimeQueued
	}
}

// ingestPlaintext routes a write of data at an absolute file offset into
// chunk0_raw/chunk1_raw, the main encrypt queue, or the sequencer,
// depending on the current regime and offset, per the Write routing rules.
func (e *SelfEncryptor) ingestPlaintext(data []byte, position uint64) error {
	if len(data) == 0 {
		return nil
	}

	switch e.regime() {
	case regimeTiny:
		copy(e.chunk0Raw[position:], data)
		e.chunk0Modified = true
		return nil

	case regimeThirds:
		e.seq.Add(data, position)
		return nil

	default:
		return e.ingestQueued(data, position)
	}
}

// ingestQueued implements the regimeQueued routing: offsets in [0, 2*C)
// land in the raw buffers, offsets contiguous with the queue's tail are
// appended directly, everything else buffers in the sequencer until it
// becomes contiguous.
func (e *SelfEncryptor) ingestQueued(data []byte, position uint64) error {
	boundary := 2 * e.cfg.ChunkSize

	if position < boundary {
		n := boundary - position
		if n > uint64(len(data)) {
			n = uint64(len(data))
		}
		e.writeRaw(data[:n], position)
		data = data[n:]
		position += n
	}

	if len(data) > 0 {
		frontier := e.queueStartPosition + uint64(len(e.mainQueue))
		if position == frontier {
			if err := e.appendToQueue(data); err != nil {
				return err
			}
		} else {
			e.seq.Add(data, position)
		}
	}

	return e.drainSequencerIntoQueue()
}

// writeRaw copies data (known to lie within [0, 2*C)) into chunk0Raw and/or
// chunk1Raw as appropriate.
func (e *SelfEncryptor) writeRaw(data []byte, position uint64) {
	C := e.cfg.ChunkSize

	if position < C && len(data) > 0 {
		n := C - position
		if n > uint64(len(data)) {
			n = uint64(len(data))
		}
		copy(e.chunk0Raw[position:], data[:n])
		e.chunk0Modified = true
		data = data[n:]
		position += n
	}

	if len(data) > 0 {
		off := position - C
		copy(e.chunk1Raw[off:], data)
		e.chunk1Modified = true
	}
}

// appendToQueue appends data to the main encrypt queue, draining full
// chunks via processMainQueue whenever the queue reaches capacity
// Q = num_procs*C + C.
func (e *SelfEncryptor) appendToQueue(data []byte) error {
	capQ := uint64(e.cfg.NumProcs)*e.cfg.ChunkSize + e.cfg.ChunkSize

	for len(data) > 0 {
		room := capQ - uint64(len(e.mainQueue))
		if room == 0 {
			if err := e.processMainQueue(); err != nil {
				return err
			}
			room = capQ - uint64(len(e.mainQueue))
			if room == 0 {
				return fmt.Errorf("%w: main encrypt queue stuck at capacity", ErrOutOfMemory)
			}
		}
		n := room
		if n > uint64(len(data)) {
			n = uint64(len(data))
		}
		e.mainQueue = append(e.mainQueue, data[:n]...)
		data = data[n:]

		if uint64(len(e.mainQueue)) >= capQ {
			if err := e.processMainQueue(); err != nil {
				return err
			}
		}
	}
	return nil
}

// drainSequencerIntoQueue repeatedly pops sequencer blocks that are exactly
// contiguous with the queue's current tail and appends them, per Write
// step 4 ("consult the sequencer... iterate until no such block exists").
func (e *SelfEncryptor) drainSequencerIntoQueue() error {
	for {
		frontier := e.queueStartPosition + uint64(len(e.mainQueue))
		blk, ok := e.seq.Get(frontier)
		if !ok {
			return nil
		}
		if err := e.appendToQueue(blk.Data); err != nil {
			return err
		}
	}
}

// reconcileRegime drains any sequencer residue from a prior regimeThirds
// session into the raw buffers once the file has grown into regimeQueued,
// and lazily allocates the raw buffers the first time they are needed.
func (e *SelfEncryptor) reconcileRegime() error {
	if e.chunk0Raw == nil {
		e.chunk0Raw = e.bytes.Get(int(e.cfg.ChunkSize))
		zero(e.chunk0Raw)
	}
	if e.chunk1Raw == nil {
		e.chunk1Raw = e.bytes.Get(int(e.cfg.ChunkSize))
		zero(e.chunk1Raw)
	}

	if e.regime() != regimeQueued {
		return nil
	}

	boundary := 2 * e.cfg.ChunkSize

	// Pull every sequencer block that starts before the [0,2C) boundary
	// directly into the raw buffers; anything straddling the boundary is
	// naturally handled by writeRaw's own clamping.
	for {
		moved := false
		for _, b := range e.seq.Blocks() {
			if b.Position >= boundary {
				continue
			}
			blk, ok := e.seq.Get(b.Position)
			if !ok {
				continue
			}
			n := uint64(len(blk.Data))
			if blk.Position+n > boundary {
				n = boundary - blk.Position
			}
			e.writeRaw(blk.Data[:n], blk.Position)
			if n < uint64(len(blk.Data)) {
				e.seq.Add(blk.Data[n:], blk.Position+n)
			}
			moved = true
			break
		}
		if !moved {
			break
		}
	}

	return e.drainSequencerIntoQueue()
}

// materializeThirds assembles the dense plaintext buffer for the
// regimeThirds case by overlaying every sequencer block onto a zero-filled
// buffer of length fileSize.
func (e *SelfEncryptor) materializeThirds() []byte {
	buf := make([]byte, e.fileSize)
	for _, b := range e.seq.Blocks() {
		end := b.Position + uint64(len(b.Data))
		if end > e.fileSize {
			end = e.fileSize
		}
		if end <= b.Position {
			continue
		}
		copy(buf[b.Position:end], b.Data[:end-b.Position])
	}
	return buf
}

// materializeBuffered assembles a dense buffer of the full current
// fileSize from whichever buffers the active regime actually uses, for
// operations (Truncate) that need a single snapshot of everything written
// so far regardless of regime.
func (e *SelfEncryptor) materializeBuffered() []byte {
	buf := make([]byte, e.fileSize)

	switch e.regime() {
	case regimeTiny:
		copy(buf, e.chunk0Raw[:e.fileSize])
	case regimeThirds:
		for _, b := range e.seq.Blocks() {
			overlay(buf, 0, b.Position, b.Data)
		}
	default:
		overlay(buf, 0, 0, e.chunk0Raw[:e.normalChunkSize])
		overlay(buf, 0, e.normalChunkSize, e.chunk1Plaintext())
		overlay(buf, 0, e.queueStartPosition, e.mainQueue)
		for _, b := range e.seq.Blocks() {
			overlay(buf, 0, b.Position, b.Data)
		}
	}
	return buf
}

// ensureChunkLen grows dataMap.Chunks to at least n entries, preserving any
// already-computed entries.
func (e *SelfEncryptor) ensureChunkLen(n int) {
	for len(e.dataMap.Chunks) < n {
		e.dataMap.Chunks = append(e.dataMap.Chunks, model.ChunkDetails{})
	}
}

// processMainQueue drains as many full-size chunks as are currently
// available from the main encrypt queue: chunks_to_process = len/C, minus
// one if the trailing remainder would be smaller than Cmin (so that
// remainder stays large enough to become a valid final chunk later).
func (e *SelfEncryptor) processMainQueue() error {
	C := e.cfg.ChunkSize
	n := uint64(len(e.mainQueue))
	chunksToProcess := n / C

	tail := n % C
	if tail < e.cfg.MinChunkSize && chunksToProcess > 0 {
		chunksToProcess--
	}
	if chunksToProcess == 0 {
		return nil
	}

	baseIndex := int(e.queueStartPosition / C)
	e.ensureChunkLen(baseIndex + int(chunksToProcess))

	for j := uint64(0); j < chunksToProcess; j++ {
		slice := e.mainQueue[j*C : (j+1)*C]
		ph := preHash(slice)
		idx := baseIndex + int(j)
		e.dataMap.Chunks[idx].PreHash = ph
		e.dataMap.Chunks[idx].Size = uint32(len(slice))
	}

	if err := e.encryptRange(baseIndex, int(chunksToProcess), func(j int) []byte {
		return e.mainQueue[uint64(j)*C : uint64(j+1)*C]
	}); err != nil {
		return err
	}

	consumed := chunksToProcess * C
	remaining := append([]byte(nil), e.mainQueue[consumed:]...)
	e.mainQueue = remaining
	e.queueStartPosition += consumed
	return nil
}
