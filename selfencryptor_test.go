package selfencrypt

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/i5heu/selfencrypt/pkg/chunkstore"
	"github.com/i5heu/selfencrypt/pkg/model"
)

func testConfig() Config {
	return Config{ChunkSize: 1024, MinChunkSize: 64, NumProcs: 2}
}

func deterministicBytes(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte((uint64(i) * 2654435761) % 256)
	}
	return out
}

func newEncryptor(t *testing.T, store chunkstore.ChunkStore, dm *model.DataMap) *SelfEncryptor {
	t.Helper()
	e, err := New(dm, store, testConfig())
	require.NoError(t, err)
	return e
}

func TestWriteZeroBytes(t *testing.T) {
	store := chunkstore.NewMemory()
	e := newEncryptor(t, store, nil)

	ok, err := e.Write(nil, 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.Flush()
	require.NoError(t, err)
	require.True(t, ok)

	dm := e.DataMap()
	require.Empty(t, dm.Content)
	require.Empty(t, dm.Chunks)
}

func TestTinyFile(t *testing.T) {
	store := chunkstore.NewMemory()
	e := newEncryptor(t, store, nil)

	ok, err := e.Write([]byte("hello"), 0)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = e.Flush()
	require.NoError(t, err)
	require.True(t, ok)

	dm := e.DataMap()
	require.Equal(t, []byte("hello"), dm.Content)
	require.Empty(t, dm.Chunks)
}

func TestExactlyThreeChunks(t *testing.T) {
	store := chunkstore.NewMemory()
	e := newEncryptor(t, store, nil)
	data := deterministicBytes(3 * 1024)

	ok, err := e.Write(data, 0)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = e.Flush()
	require.NoError(t, err)
	require.True(t, ok)

	dm := e.DataMap()
	require.Len(t, dm.Chunks, 3)
	for _, c := range dm.Chunks {
		require.EqualValues(t, 1024, c.Size)
	}

	reopened := newEncryptor(t, store, dm)
	buf := make([]byte, len(data))
	ok, err = reopened.Read(buf, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, data, buf)
}

func TestSparseThenFlush(t *testing.T) {
	store := chunkstore.NewMemory()
	e := newEncryptor(t, store, nil)

	c := uint64(1024)
	a := bytesOfByte('A', 1024)
	b := bytesOfByte('B', 1024)
	cc := bytesOfByte('C', 1024)

	_, err := e.Write(a, 10*c)
	require.NoError(t, err)
	_, err = e.Write(b, 0)
	require.NoError(t, err)
	_, err = e.Write(cc, 5*c)
	require.NoError(t, err)

	require.Equal(t, 11*c, e.Size())

	ok, err := e.Flush()
	require.NoError(t, err)
	require.True(t, ok)

	dm := e.DataMap()
	reopened := newEncryptor(t, store, dm)

	check := func(offset uint64, want []byte) {
		buf := make([]byte, len(want))
		ok, err := reopened.Read(buf, offset)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, want, buf)
	}
	check(0, b)
	check(5*c, cc)
	check(10*c, a)

	gap := make([]byte, 1024)
	ok, err = reopened.Read(gap, 2*c)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, make([]byte, 1024), gap)
}

func TestRewriteMiddleChunkChangesNeighbourKeys(t *testing.T) {
	store := chunkstore.NewMemory()
	e := newEncryptor(t, store, nil)

	data := bytesOfByte('X', 5*1024)
	_, err := e.Write(data, 0)
	require.NoError(t, err)
	ok, err := e.Flush()
	require.NoError(t, err)
	require.True(t, ok)

	dm := e.DataMap()
	require.Len(t, dm.Chunks, 5)
	h2Before := append([]byte(nil), dm.Chunks[2].Hash...)
	h3Before := append([]byte(nil), dm.Chunks[3].Hash...)
	h4Before := append([]byte(nil), dm.Chunks[4].Hash...)

	_, err = e.Write(bytesOfByte('Y', 1024), 2*1024)
	require.NoError(t, err)
	ok, err = e.Flush()
	require.NoError(t, err)
	require.True(t, ok)

	require.NotEqual(t, h2Before, dm.Chunks[2].Hash)
	require.NotEqual(t, h3Before, dm.Chunks[3].Hash)
	require.NotEqual(t, h4Before, dm.Chunks[4].Hash)
}

func TestIdempotentFlush(t *testing.T) {
	store := chunkstore.NewMemory()
	e := newEncryptor(t, store, nil)

	_, err := e.Write(deterministicBytes(5*1024), 0)
	require.NoError(t, err)
	ok, err := e.Flush()
	require.NoError(t, err)
	require.True(t, ok)

	before := make([]model.ChunkDetails, len(e.DataMap().Chunks))
	copy(before, e.DataMap().Chunks)

	ok, err = e.Flush()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, before, e.DataMap().Chunks)
}

func TestTruncateDeletesTrailingChunks(t *testing.T) {
	store := chunkstore.NewMemory()
	e := newEncryptor(t, store, nil)

	_, err := e.Write(bytesOfByte('Z', 10*1024), 0)
	require.NoError(t, err)
	ok, err := e.Flush()
	require.NoError(t, err)
	require.True(t, ok)

	var oldHashes [][]byte
	for _, c := range e.DataMap().Chunks {
		oldHashes = append(oldHashes, append([]byte(nil), c.Hash...))
	}

	ok, err = e.Truncate(3*1024 + 100)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = e.Flush()
	require.NoError(t, err)
	require.True(t, ok)

	require.Equal(t, uint64(3*1024+100), e.Size())

	keep := map[string]struct{}{}
	for _, c := range e.DataMap().Chunks {
		keep[string(c.Hash)] = struct{}{}
	}
	for _, h := range oldHashes {
		if _, ok := keep[string(h)]; !ok {
			_, err := store.Get(e.ctx(), h)
			require.ErrorIs(t, err, chunkstore.ErrNotFound)
		}
	}

	buf := make([]byte, 3*1024+100)
	ok, err = e.Read(buf, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, bytesOfByte('Z', len(buf)), buf)
}

func bytesOfByte(b byte, n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
