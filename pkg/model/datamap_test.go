package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDataMapRoundTrip(t *testing.T) {
	dm := &DataMap{
		Chunks: []ChunkDetails{
			{PreHash: bytesOf(64, 1), Hash: bytesOf(64, 2), Size: 1024},
			{PreHash: bytesOf(64, 3), Hash: bytesOf(64, 4), Size: 1024,
				OldN1PreHash: bytesOf(64, 5), OldN2PreHash: bytesOf(64, 6)},
			{PreHash: bytesOf(64, 7), Hash: bytesOf(64, 8), Size: 512},
		},
	}

	encoded, err := dm.MarshalBinary()
	require.NoError(t, err)

	var decoded DataMap
	require.NoError(t, decoded.UnmarshalBinary(encoded))

	require.Len(t, decoded.Chunks, 3)
	for i, c := range decoded.Chunks {
		require.Equal(t, dm.Chunks[i].PreHash, c.PreHash)
		require.Equal(t, dm.Chunks[i].Hash, c.Hash)
		require.Equal(t, dm.Chunks[i].Size, c.Size)
		require.Nil(t, c.OldN1PreHash)
		require.Nil(t, c.OldN2PreHash)
	}
}

func TestDataMapTinyRoundTrip(t *testing.T) {
	dm := &DataMap{Content: []byte("hello")}
	require.True(t, dm.IsTiny())

	encoded, err := dm.MarshalBinary()
	require.NoError(t, err)

	var decoded DataMap
	require.NoError(t, decoded.UnmarshalBinary(encoded))
	require.Equal(t, []byte("hello"), decoded.Content)
	require.Empty(t, decoded.Chunks)
}

func bytesOf(n int, seed byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = seed
	}
	return b
}
