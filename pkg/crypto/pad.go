package crypto

import "errors"

// BlockSize is the AES block size used by the secure messaging transform.
const BlockSize = 16

// ErrInvalidPadding is returned when a deciphered block does not end in a
// valid ISO/IEC 7816-4 padding suffix.
var ErrInvalidPadding = errors.New("crypto: invalid ISO 7816-4 padding")

// Pad80 appends ISO/IEC 7816-4 padding: a single 0x80 byte followed by zero
// bytes up to the next multiple of blockSize. Padding is always applied, so
// block-aligned input grows by a full block.
func Pad80(b []byte, blockSize int) []byte {
	padded := make([]byte, len(b)+blockSize-len(b)%blockSize)
	copy(padded, b)
	padded[len(b)] = 0x80
	return padded
}

// UnpadISO7816 strips ISO/IEC 7816-4 padding. It fails if the input does not
// end in 0x80 followed only by zero bytes.
func UnpadISO7816(b []byte) ([]byte, error) {
	offset := len(b) - 1
	for offset >= 0 && b[offset] == 0x00 {
		offset--
	}
	if offset < 0 || b[offset] != 0x80 {
		return nil, ErrInvalidPadding
	}
	return b[:offset], nil
}
