package selfencrypt

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/i5heu/selfencrypt/internal/chunkcodec"
	"github.com/i5heu/selfencrypt/pkg/chunkstore"
)

// genWriteSchedule draws up to six pieces, each to be written at offset 0,
// and returns the expected final contents alongside them. Pieces are at
// most 2600 bytes, so with testConfig (3*C = 3072) the schedules cover the
// tiny inline and three-chunk regimes; they do not reach the queued regime.
func genWriteSchedule(t *rapid.T) (writes [][]byte, want []byte) {
	n := rapid.IntRange(0, 6).Draw(t, "numWrites")
	var size int
	pieces := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		l := rapid.IntRange(0, 2600).Draw(t, "pieceLen")
		b := rapid.SliceOfN(rapid.Byte(), l, l).Draw(t, "piece")
		pieces = append(pieces, b)
		if l > size {
			size = l
		}
	}
	if size == 0 {
		size = rapid.IntRange(0, 2600).Draw(t, "fallbackSize")
	}
	want = make([]byte, size)
	for _, p := range pieces {
		copy(want, p)
	}
	return pieces, want
}

func TestDeterminismAcrossIndependentInstances(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pieces, want := genWriteSchedule(t)

		storeA := chunkstore.NewMemory()
		storeB := chunkstore.NewMemory()

		eA, err := New(nil, storeA, testConfig())
		if err != nil {
			t.Fatal(err)
		}
		eB, err := New(nil, storeB, testConfig())
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range pieces {
			if _, err := eA.Write(p, 0); err != nil {
				t.Fatal(err)
			}
			if _, err := eB.Write(p, 0); err != nil {
				t.Fatal(err)
			}
		}
		if err := eA.Close(); err != nil {
			t.Fatal(err)
		}
		if err := eB.Close(); err != nil {
			t.Fatal(err)
		}

		dmA, dmB := eA.DataMap(), eB.DataMap()
		if len(dmA.Chunks) != len(dmB.Chunks) {
			t.Fatalf("chunk count mismatch: %d vs %d", len(dmA.Chunks), len(dmB.Chunks))
		}
		for i := range dmA.Chunks {
			if string(dmA.Chunks[i].Hash) != string(dmB.Chunks[i].Hash) {
				t.Fatalf("chunk %d hash mismatch", i)
			}
		}
		_ = want
	})
}

func TestRoundTripAndRandomAccess(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pieces, want := genWriteSchedule(t)

		store := chunkstore.NewMemory()
		e, err := New(nil, store, testConfig())
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range pieces {
			if _, err := e.Write(p, 0); err != nil {
				t.Fatal(err)
			}
		}
		if ok, err := e.Flush(); err != nil || !ok {
			t.Fatalf("flush: ok=%v err=%v", ok, err)
		}

		reopened, err := New(e.DataMap(), store, testConfig())
		if err != nil {
			t.Fatal(err)
		}

		got := make([]byte, len(want))
		if len(got) > 0 {
			if ok, err := reopened.Read(got, 0); err != nil || !ok {
				t.Fatalf("read: ok=%v err=%v", ok, err)
			}
		}
		if string(got) != string(want) {
			t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", len(got), len(want))
		}

		if len(want) > 0 {
			offset := rapid.IntRange(0, len(want)-1).Draw(t, "offset")
			length := rapid.IntRange(0, len(want)-offset).Draw(t, "length")
			buf := make([]byte, length)
			if length > 0 {
				if ok, err := reopened.Read(buf, uint64(offset)); err != nil || !ok {
					t.Fatalf("random access read: ok=%v err=%v", ok, err)
				}
			}
			if string(buf) != string(want[offset:offset+length]) {
				t.Fatalf("random access mismatch at [%d:%d]", offset, offset+length)
			}
		}
	})
}

func TestContentAddressing(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		pieces, _ := genWriteSchedule(t)

		store := chunkstore.NewMemory()
		e, err := New(nil, store, testConfig())
		if err != nil {
			t.Fatal(err)
		}
		for _, p := range pieces {
			if _, err := e.Write(p, 0); err != nil {
				t.Fatal(err)
			}
		}
		if ok, err := e.Flush(); err != nil || !ok {
			t.Fatalf("flush: ok=%v err=%v", ok, err)
		}

		for i, c := range e.DataMap().Chunks {
			ciphertext, err := store.Get(e.ctx(), c.Hash)
			if err != nil {
				t.Fatalf("chunk %d missing from store: %v", i, err)
			}
			if string(chunkcodec.PostHash(ciphertext)) != string(c.Hash) {
				t.Fatalf("chunk %d hash does not address its own ciphertext", i)
			}
		}
	})
}
