package crypto

import (
	"crypto/cipher"

	"github.com/aead/cmac"
	"github.com/pkg/errors"
)

// ChecksumSize is the length of a truncated secure messaging MAC.
const ChecksumSize = 8

// CMAC computes the full 16-byte CMAC-AES128 over data.
func CMAC(block cipher.Block, data []byte) ([]byte, error) {
	mac, err := cmac.NewWithTagSize(block, block.BlockSize())
	if err != nil {
		return nil, errors.Wrap(err, "crypto: create CMAC")
	}
	if _, err := mac.Write(data); err != nil {
		return nil, errors.Wrap(err, "crypto: update CMAC")
	}
	return mac.Sum(nil), nil
}

// CMACTrunc8 computes CMAC-AES128 over data and returns the leading 8 bytes,
// the truncation used for secure messaging checksums.
func CMACTrunc8(block cipher.Block, data []byte) ([]byte, error) {
	mac, err := CMAC(block, data)
	if err != nil {
		return nil, err
	}
	return mac[:ChecksumSize], nil
}
