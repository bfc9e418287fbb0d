// Package sequencer implements the ordered map of buffered, out-of-order
// writes described in the system overview: an absolute file offset maps to
// an owned byte slice that cannot yet be placed into the main encrypt queue.
package sequencer

import (
	"sort"
)

// Sentinel is the offset returned by GetFirst and Peek when the sequencer
// holds nothing relevant to the query. It mirrors the source's UINT64_MAX
// sentinel used during flush to detect "no more buffered data".
const Sentinel = ^uint64(0)

// Block is a contiguous run of owned bytes starting at Position.
type Block struct {
	Position uint64
	Data     []byte
}

// End returns the offset one past the last byte in the block.
func (b Block) End() uint64 {
	return b.Position + uint64(len(b.Data))
}

// Sequencer is an ordered map from absolute file offset to a buffered byte
// slice, holding data until enough of it is available to place into
// contiguous chunks. The zero value is ready to use. A Sequencer is not
// safe for concurrent use; the engine that owns one serializes access to it
// the way it serializes all other per-instance state.
type Sequencer struct {
	blocks []Block // kept sorted by Position; no two entries overlap
}

// Add inserts data at position, overlapping or adjacent existing entries are
// coalesced so no two stored blocks overlap; newer bytes win on overlap.
func (s *Sequencer) Add(data []byte, position uint64) {
	if len(data) == 0 {
		return
	}
	newEnd := position + uint64(len(data))

	idx := sort.Search(len(s.blocks), func(i int) bool {
		return s.blocks[i].End() >= position
	})

	merged := append([]byte(nil), data...)
	mergedStart := position
	mergedEnd := newEnd

	// Absorb every existing block that overlaps or touches [position, newEnd].
	j := idx
	for j < len(s.blocks) && s.blocks[j].Position <= mergedEnd {
		b := s.blocks[j]
		if b.End() < mergedStart {
			break
		}
		if b.Position < mergedStart {
			prefix := b.Data[:mergedStart-b.Position]
			merged = append(append([]byte(nil), prefix...), merged...)
			mergedStart = b.Position
		}
		if b.End() > mergedEnd {
			suffix := b.Data[mergedEnd-b.Position:]
			merged = append(merged, suffix...)
			mergedEnd = b.End()
		}
		j++
	}

	out := make([]Block, 0, len(s.blocks)-(j-idx)+1)
	out = append(out, s.blocks[:idx]...)
	out = append(out, Block{Position: mergedStart, Data: merged})
	out = append(out, s.blocks[j:]...)
	s.blocks = out
}

// Get removes and returns the block whose start offset equals position.
func (s *Sequencer) Get(position uint64) (Block, bool) {
	for i, b := range s.blocks {
		if b.Position == position {
			s.blocks = append(s.blocks[:i], s.blocks[i+1:]...)
			return b, true
		}
	}
	return Block{}, false
}

// GetFirst removes and returns the block with the smallest offset, or a
// sentinel empty block at offset Sentinel if the sequencer is empty.
func (s *Sequencer) GetFirst() Block {
	if len(s.blocks) == 0 {
		return Block{Position: Sentinel}
	}
	b := s.blocks[0]
	s.blocks = s.blocks[1:]
	return b
}

// Peek returns, without removing, the block whose range contains position,
// or the next block after position, or a sentinel empty block at offset
// Sentinel if none qualifies.
func (s *Sequencer) Peek(position uint64) Block {
	for _, b := range s.blocks {
		if position >= b.Position && position < b.End() {
			return b
		}
		if b.Position > position {
			return b
		}
	}
	return Block{Position: Sentinel}
}

// Clear drops all buffered blocks.
func (s *Sequencer) Clear() {
	s.blocks = nil
}

// Blocks returns the buffered blocks in ascending offset order. The caller
// must not mutate the returned slice's backing array.
func (s *Sequencer) Blocks() []Block {
	return s.blocks
}

// Empty reports whether the sequencer currently holds no data.
func (s *Sequencer) Empty() bool {
	return len(s.blocks) == 0
}
