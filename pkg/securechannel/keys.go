package securechannel

import (
	"fmt"

	"github.com/mwolff-dev/cardchannel/pkg/crypto"
)

// SessionKeys holds the negotiated AES-128 session keys.
type SessionKeys struct {
	// Enc encrypts and decrypts secure messaging payloads.
	Enc [crypto.SymmetricKeySize]byte
	// Mac authenticates commands and responses.
	Mac [crypto.SymmetricKeySize]byte
}

// DeriveSessionKeys derives the session keys from the two ECDH shared
// secrets of the mutual authentication:
//
//	kd   = k1 || k2
//	Kenc = SHA1(kd || 00000001)[0:16]
//	Kmac = SHA1(kd || 00000002)[0:16]
//
// The derivation is only specified for brainpoolP256r1 secrets (32 bytes
// each). How the truncation applies to the larger curves is an unresolved
// protocol parameter, so other secret sizes are rejected rather than
// silently truncated.
func DeriveSessionKeys(k1, k2 []byte) (SessionKeys, error) {
	secretSize := crypto.BrainpoolP256r1.FieldSize()

	if len(k1) != secretSize || len(k2) != secretSize {
		return SessionKeys{}, ConfigurationError{
			Message: fmt.Sprintf("session key derivation is only defined for %d-byte brainpoolP256r1 secrets, got %d and %d bytes",
				secretSize, len(k1), len(k2)),
		}
	}

	kd := make([]byte, 0, len(k1)+len(k2))
	kd = append(kd, k1...)
	kd = append(kd, k2...)

	return SessionKeys{
		Enc: crypto.DeriveKey16(kd, crypto.KDFCounterEnc),
		Mac: crypto.DeriveKey16(kd, crypto.KDFCounterMac),
	}, nil
}
