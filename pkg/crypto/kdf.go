package crypto

import (
	"crypto/sha1"
	"encoding/binary"
)

// SymmetricKeySize is the size of the derived AES-128 session keys.
const SymmetricKeySize = 16

// Key derivation counters. The counter value selects which session key the
// KDF produces from the shared secret material.
const (
	// KDFCounterEnc derives the encryption key Kenc.
	KDFCounterEnc uint32 = 1
	// KDFCounterMac derives the MAC key Kmac.
	KDFCounterMac uint32 = 2
)

// DeriveKey16 derives a 16-byte AES key from shared secret material:
//
//	key = SHA1(secret || counter)[0:16]
//
// where counter is encoded as a 4-byte big-endian integer. The truncation to
// 16 bytes is only specified for 256-bit curve secrets; callers are expected
// to reject larger curves before deriving (see securechannel.DeriveSessionKeys).
func DeriveKey16(secret []byte, counter uint32) [SymmetricKeySize]byte {
	h := sha1.New()
	h.Write(secret)

	var c [4]byte
	binary.BigEndian.PutUint32(c[:], counter)
	h.Write(c[:])

	var key [SymmetricKeySize]byte
	copy(key[:], h.Sum(nil))
	return key
}
