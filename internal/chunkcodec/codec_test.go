package chunkcodec

import (
	"crypto/sha512"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	n1 := fill(1)
	i := fill(2)
	n2 := fill(3)

	key, iv, pad, err := DerivePadIvKey(n1, i, n2)
	require.NoError(t, err)
	require.Len(t, key, KeySize)
	require.Len(t, iv, IVSize)
	require.Len(t, pad, PadSize)

	plaintext := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility, " +
		"the quick brown fox jumps over the lazy dog")

	ciphertext, err := Encrypt(plaintext, key, iv, pad)
	require.NoError(t, err)
	require.NotEqual(t, plaintext, ciphertext)

	recovered, err := Decrypt(ciphertext, key, iv, pad, uint32(len(plaintext)))
	require.NoError(t, err)
	require.Equal(t, plaintext, recovered)
}

func TestEncryptDeterministic(t *testing.T) {
	n1, i, n2 := fill(10), fill(20), fill(30)
	key, iv, pad, err := DerivePadIvKey(n1, i, n2)
	require.NoError(t, err)

	plaintext := []byte("deterministic content")
	a, err := Encrypt(plaintext, key, iv, pad)
	require.NoError(t, err)
	b, err := Encrypt(plaintext, key, iv, pad)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestPostHashMatchesStoredCiphertext(t *testing.T) {
	n1, i, n2 := fill(1), fill(2), fill(3)
	key, iv, pad, err := DerivePadIvKey(n1, i, n2)
	require.NoError(t, err)

	ciphertext, err := Encrypt([]byte("payload"), key, iv, pad)
	require.NoError(t, err)

	want := sha512.Sum512(ciphertext)
	require.Equal(t, want[:], PostHash(ciphertext))
}

func fill(seed byte) []byte {
	b := make([]byte, sha512.Size)
	for idx := range b {
		b[idx] = seed
	}
	return b
}
