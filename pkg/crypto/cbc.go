package crypto

import (
	"crypto/cipher"
	"errors"
)

var zeroIV = make([]byte, BlockSize)

// SSCIV computes the CBC initialization vector for a secure messaging
// operation by encrypting the 16-byte send-sequence counter under a zero IV.
// A single-block CBC encryption with a zero IV is equivalent to one ECB
// block.
func SSCIV(block cipher.Block, ssc [BlockSize]byte) [BlockSize]byte {
	var iv [BlockSize]byte
	enc := cipher.NewCBCEncrypter(block, zeroIV)
	enc.CryptBlocks(iv[:], ssc[:])
	return iv
}

// EncryptCBC encrypts plaintext with AES-CBC under the given IV. The
// plaintext length must be a multiple of the block size; the input slice is
// not modified.
func EncryptCBC(block cipher.Block, iv [BlockSize]byte, plaintext []byte) ([]byte, error) {
	if len(plaintext)%BlockSize != 0 {
		return nil, errors.New("crypto: CBC plaintext is not block aligned")
	}
	ciphertext := make([]byte, len(plaintext))
	enc := cipher.NewCBCEncrypter(block, iv[:])
	enc.CryptBlocks(ciphertext, plaintext)
	return ciphertext, nil
}

// DecryptCBC decrypts ciphertext with AES-CBC under the given IV.
func DecryptCBC(block cipher.Block, iv [BlockSize]byte, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, errors.New("crypto: CBC ciphertext is not block aligned")
	}
	plaintext := make([]byte, len(ciphertext))
	dec := cipher.NewCBCDecrypter(block, iv[:])
	dec.CryptBlocks(plaintext, ciphertext)
	return plaintext, nil
}
