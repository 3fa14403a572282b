// Package crypto provides the cryptographic primitives used by the trusted
// channel: brainpool elliptic-curve key agreement, AES-CBC enciphering,
// CMAC-AES128 checksums, ISO/IEC 7816-4 padding and the SHA-1 counter KDF.
package crypto

import (
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"

	"github.com/ebfe/brainpool"
)

// CurveID identifies one of the supported brainpool domain parameter sets
// (RFC 5639).
type CurveID int

const (
	// BrainpoolP256r1 is the 256-bit brainpool curve. This is the only
	// variant for which the session key derivation is fully specified.
	BrainpoolP256r1 CurveID = iota + 1
	// BrainpoolP384r1 is the 384-bit brainpool curve.
	BrainpoolP384r1
	// BrainpoolP512r1 is the 512-bit brainpool curve.
	BrainpoolP512r1
)

// String returns the RFC 5639 curve name.
func (id CurveID) String() string {
	switch id {
	case BrainpoolP256r1:
		return "brainpoolP256r1"
	case BrainpoolP384r1:
		return "brainpoolP384r1"
	case BrainpoolP512r1:
		return "brainpoolP512r1"
	default:
		return fmt.Sprintf("CurveID(%d)", int(id))
	}
}

// Curve returns the elliptic.Curve implementing the domain parameters.
func (id CurveID) Curve() (elliptic.Curve, error) {
	switch id {
	case BrainpoolP256r1:
		return brainpool.P256r1(), nil
	case BrainpoolP384r1:
		return brainpool.P384r1(), nil
	case BrainpoolP512r1:
		return brainpool.P512r1(), nil
	default:
		return nil, fmt.Errorf("crypto: unsupported curve ID %d", int(id))
	}
}

// FieldSize returns the width of a field coordinate in bytes.
func (id CurveID) FieldSize() int {
	switch id {
	case BrainpoolP256r1:
		return 32
	case BrainpoolP384r1:
		return 48
	case BrainpoolP512r1:
		return 64
	default:
		return 0
	}
}

// PointSize returns the length of an uncompressed point encoding
// (0x04 || X || Y) for the curve.
func (id CurveID) PointSize() int {
	return 1 + 2*id.FieldSize()
}

// CurveIDForPoint infers the curve from the length of an uncompressed point
// encoding. The protocol only carries brainpool r1 curves, so the length is
// unambiguous.
func CurveIDForPoint(point []byte) (CurveID, error) {
	switch len(point) {
	case BrainpoolP256r1.PointSize():
		return BrainpoolP256r1, nil
	case BrainpoolP384r1.PointSize():
		return BrainpoolP384r1, nil
	case BrainpoolP512r1.PointSize():
		return BrainpoolP512r1, nil
	default:
		return 0, fmt.Errorf("crypto: no brainpool curve with %d-byte points", len(point))
	}
}

// KeyPair is an EC key pair on one of the supported brainpool curves.
type KeyPair struct {
	id CurveID
	d  []byte
	x  *big.Int
	y  *big.Int
}

// GenerateKeyPair generates a fresh key pair using crypto/rand.
func GenerateKeyPair(id CurveID) (*KeyPair, error) {
	return GenerateKeyPairFrom(rand.Reader, id)
}

// GenerateKeyPairFrom generates a key pair reading scalar candidates from r.
// Candidates are FieldSize-byte big-endian values; values outside [1, N-1]
// are rejected and the next candidate is read.
func GenerateKeyPairFrom(r io.Reader, id CurveID) (*KeyPair, error) {
	curve, err := id.Curve()
	if err != nil {
		return nil, err
	}

	n := curve.Params().N
	buf := make([]byte, id.FieldSize())

	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, fmt.Errorf("crypto: reading key material: %w", err)
		}

		k := new(big.Int).SetBytes(buf)
		if k.Sign() == 0 || k.Cmp(n) >= 0 {
			continue
		}

		return KeyPairFromScalar(id, buf)
	}
}

// KeyPairFromScalar creates a key pair from an existing private scalar.
// The scalar must be FieldSize bytes, big-endian, in [1, N-1].
func KeyPairFromScalar(id CurveID, scalar []byte) (*KeyPair, error) {
	curve, err := id.Curve()
	if err != nil {
		return nil, err
	}
	if len(scalar) != id.FieldSize() {
		return nil, fmt.Errorf("crypto: private scalar must be %d bytes, got %d", id.FieldSize(), len(scalar))
	}

	k := new(big.Int).SetBytes(scalar)
	if k.Sign() == 0 || k.Cmp(curve.Params().N) >= 0 {
		return nil, errors.New("crypto: private scalar out of range")
	}

	d := make([]byte, len(scalar))
	copy(d, scalar)

	x, y := curve.ScalarBaseMult(d)

	return &KeyPair{id: id, d: d, x: x, y: y}, nil
}

// CurveID returns the curve the key pair lives on.
func (kp *KeyPair) CurveID() CurveID {
	return kp.id
}

// PublicKey returns the public key in uncompressed encoding (0x04 || X || Y).
func (kp *KeyPair) PublicKey() []byte {
	return EncodePoint(kp.id, kp.x, kp.y)
}

// PrivateScalar returns a copy of the private scalar.
func (kp *KeyPair) PrivateScalar() []byte {
	d := make([]byte, len(kp.d))
	copy(d, kp.d)
	return d
}

// EncodePoint encodes an EC point in uncompressed form, with both
// coordinates left-padded to the curve's field size.
func EncodePoint(id CurveID, x, y *big.Int) []byte {
	size := id.FieldSize()
	out := make([]byte, 1+2*size)
	out[0] = 0x04
	x.FillBytes(out[1 : 1+size])
	y.FillBytes(out[1+size:])
	return out
}

// DecodePoint decodes an uncompressed point encoding and verifies that the
// point lies on the given curve.
func DecodePoint(id CurveID, point []byte) (x, y *big.Int, err error) {
	curve, err := id.Curve()
	if err != nil {
		return nil, nil, err
	}
	if len(point) != id.PointSize() {
		return nil, nil, fmt.Errorf("crypto: point must be %d bytes on %s, got %d", id.PointSize(), id, len(point))
	}
	if point[0] != 0x04 {
		return nil, nil, errors.New("crypto: point is not in uncompressed encoding")
	}

	size := id.FieldSize()
	x = new(big.Int).SetBytes(point[1 : 1+size])
	y = new(big.Int).SetBytes(point[1+size:])

	if !curve.IsOnCurve(x, y) {
		return nil, nil, fmt.Errorf("crypto: point is not on %s", id)
	}

	return x, y, nil
}

// ECDH computes the Diffie-Hellman shared secret between the private key and
// the peer's uncompressed public point. The result is the x-coordinate of
// the shared point, left-padded to the curve's field size.
func ECDH(kp *KeyPair, peerPublic []byte) ([]byte, error) {
	curve, err := kp.id.Curve()
	if err != nil {
		return nil, err
	}

	x, y, err := DecodePoint(kp.id, peerPublic)
	if err != nil {
		return nil, err
	}

	sx, _ := curve.ScalarMult(x, y, kp.d)
	if sx.Sign() == 0 {
		return nil, errors.New("crypto: ECDH produced the point at infinity")
	}

	secret := make([]byte, kp.id.FieldSize())
	sx.FillBytes(secret)
	return secret, nil
}
