// Package chunkcodec implements the on-the-wire chunk transform: compress,
// then AES-CFB encrypt, then XOR against a derived pad for writes, and the
// inverse pipeline for reads. It also carries the pre-hash/post-hash helpers
// shared by the engine's keying logic.
package chunkcodec

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// KeySize and IVSize are AES-256-CFB's key and IV lengths in bytes.
const (
	KeySize = 32
	IVSize  = 16
)

// PadSize is 3*|SHA512| - |AES key| - |AES IV|, the length of the XOR
// keystream derived from a chunk and its two predecessors' pre-hashes.
const PadSize = 3*sha512.Size - KeySize - IVSize

// GzipLevel mirrors the source's choice of gzip compression level.
const GzipLevel = 6

// PreHash returns the SHA-512 digest of a chunk's plaintext.
func PreHash(plaintext []byte) []byte {
	sum := sha512.Sum512(plaintext)
	return sum[:]
}

// PostHash returns the SHA-512 digest of a chunk's ciphertext; this is the
// chunk's address in the ChunkStore.
func PostHash(ciphertext []byte) []byte {
	sum := sha512.Sum512(ciphertext)
	return sum[:]
}

// Encrypt runs the write-side pipeline: gzip-compress plaintext, AES-CFB
// encrypt with key/iv, then XOR the result against pad (cycled modulo
// len(pad)).
func Encrypt(plaintext []byte, key, iv, pad []byte) ([]byte, error) {
	compressed, err := gzipCompress(plaintext)
	if err != nil {
		return nil, fmt.Errorf("compress chunk: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("build aes cipher: %w", err)
	}
	stream := cipher.NewCFBEncrypter(block, iv)
	ciphertext := make([]byte, len(compressed))
	stream.XORKeyStream(ciphertext, compressed)

	xorPad(ciphertext, pad)
	return ciphertext, nil
}

// Decrypt runs the read-side inverse pipeline: XOR against pad, AES-CFB
// decrypt, then gunzip. plaintextLen is the original pre-compressed length
// and is used to size/truncate the recovered plaintext.
func Decrypt(ciphertext []byte, key, iv, pad []byte, plaintextLen uint32) ([]byte, error) {
	unpadded := make([]byte, len(ciphertext))
	copy(unpadded, ciphertext)
	xorPad(unpadded, pad)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("build aes cipher: %w", err)
	}
	stream := cipher.NewCFBDecrypter(block, iv)
	compressed := make([]byte, len(unpadded))
	stream.XORKeyStream(compressed, unpadded)

	plaintext, err := gzipDecompress(compressed)
	if err != nil {
		return nil, fmt.Errorf("decompress chunk: %w", err)
	}
	if uint32(len(plaintext)) > plaintextLen {
		plaintext = plaintext[:plaintextLen]
	}
	return plaintext, nil
}

// DerivePadIvKey implements GetPadIvKey: given the pre-hashes of a chunk's
// two predecessors (n1, n2, each a 64-byte SHA-512 digest) and of the chunk
// itself, deterministically derives the AES key, IV, and XOR pad.
func DerivePadIvKey(n1PreHash, iPreHash, n2PreHash []byte) (key, iv, pad []byte, err error) {
	if len(n1PreHash) != sha512.Size || len(iPreHash) != sha512.Size || len(n2PreHash) != sha512.Size {
		return nil, nil, nil, fmt.Errorf("derive pad/iv/key: pre-hashes must each be %d bytes", sha512.Size)
	}

	key = n2PreHash[:KeySize]
	iv = n2PreHash[KeySize : KeySize+IVSize]
	tail := n2PreHash[KeySize+IVSize:]

	pad = make([]byte, 0, PadSize)
	pad = append(pad, n1PreHash...)
	pad = append(pad, iPreHash...)
	pad = append(pad, tail...)
	return key, iv, pad, nil
}

func xorPad(data []byte, pad []byte) {
	if len(pad) == 0 {
		return
	}
	for i := range data {
		data[i] ^= pad[i%len(pad)]
	}
}

func gzipCompress(data []byte) ([]byte, error) {
	buf := new(bytes.Buffer)
	w, err := gzip.NewWriterLevel(buf, GzipLevel)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
