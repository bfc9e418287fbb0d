// Package model defines the core data types shared across the self-encryption
// engine: the per-chunk bookkeeping record and the serializable data map that
// ties a file's chunks back together.
package model

import (
	"bytes"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// ChunkDetails is the per-chunk bookkeeping record kept inside a DataMap.
//
// PreHash and Hash are both SHA-512 digests (64 bytes) but serve different
// purposes: PreHash is computed over plaintext and is keying material for
// this chunk's neighbours; Hash is computed over ciphertext and is this
// chunk's address in the ChunkStore.
type ChunkDetails struct {
	// PreHash is the SHA-512 of this chunk's plaintext at its current size.
	PreHash []byte `cbor:"1,keyasint"`

	// Hash is the SHA-512 of the stored ciphertext; also the ChunkStore key.
	Hash []byte `cbor:"2,keyasint"`

	// Size is the pre-compression plaintext length of this chunk.
	Size uint32 `cbor:"3,keyasint"`

	// OldN1PreHash and OldN2PreHash snapshot the pre-hashes of this chunk's
	// two predecessors as they were before an in-progress rewrite started
	// modifying them. They let a still-on-disk chunk be decrypted even after
	// its neighbours have changed in memory but before it has itself been
	// re-encrypted. In-memory only: never present after a successful Flush.
	// The selfencrypt engine rebuilds every chunk on Flush and neither sets
	// nor reads these fields.
	OldN1PreHash []byte `cbor:"-"`
	OldN2PreHash []byte `cbor:"-"`
}

// HasOldPreHashes reports whether this chunk is carrying rewrite-bookkeeping
// snapshots that a Flush has not yet consumed.
func (c *ChunkDetails) HasOldPreHashes() bool {
	return len(c.OldN1PreHash) > 0 || len(c.OldN2PreHash) > 0
}

// ClearOldPreHashes drops the rewrite-bookkeeping snapshots.
func (c *ChunkDetails) ClearOldPreHashes() {
	c.OldN1PreHash = nil
	c.OldN2PreHash = nil
}

// DataMap is the serializable descriptor produced by a flushed SelfEncryptor:
// either inline Content for a tiny file, or an ordered list of Chunks
// describing the content-addressed ciphertext chunks held in a ChunkStore.
type DataMap struct {
	// Chunks is empty for a tiny inline file, otherwise has length >= 3.
	Chunks []ChunkDetails

	// Content holds the raw plaintext when the file is too small to chunk.
	Content []byte
}

// dataMapWire is the CBOR wire shape. old_n1/n2_pre_hash are deliberately
// excluded (see ChunkDetails doc comment) by giving them the cbor "-" tag
// above; UnmarshalBinary therefore always produces chunks with those two
// fields unset, matching the data map's on-flush invariant.
type dataMapWire struct {
	Chunks  []ChunkDetails `cbor:"1,keyasint"`
	Content []byte         `cbor:"2,keyasint"`
}

// IsTiny reports whether this data map holds inline content rather than
// chunks.
func (d *DataMap) IsTiny() bool {
	return len(d.Chunks) == 0 && len(d.Content) > 0
}

// MarshalBinary encodes the data map to its CBOR wire format.
func (d *DataMap) MarshalBinary() ([]byte, error) {
	wire := dataMapWire{Chunks: d.Chunks, Content: d.Content}
	buf := new(bytes.Buffer)
	enc := cbor.NewEncoder(buf)
	if err := enc.Encode(&wire); err != nil {
		return nil, fmt.Errorf("encode data map: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a data map from its CBOR wire format. Decoded
// chunks never carry OldN1PreHash/OldN2PreHash, since the wire format never
// carries them.
func (d *DataMap) UnmarshalBinary(data []byte) error {
	var wire dataMapWire
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("decode data map: %w", err)
	}
	d.Chunks = wire.Chunks
	d.Content = wire.Content
	for i := range d.Chunks {
		d.Chunks[i].OldN1PreHash = nil
		d.Chunks[i].OldN2PreHash = nil
	}
	return nil
}
