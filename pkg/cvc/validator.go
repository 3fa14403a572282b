package cvc

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/mwolff-dev/cardchannel/pkg/crypto"
)

// Validation errors.
var (
	ErrSignatureVerifyFailed = errors.New("cvc: signature verification failed")
	ErrChainBroken           = errors.New("cvc: certificate chain validation failed")
	ErrUntrustedRoot         = errors.New("cvc: chain does not end at a trusted root")
)

// maxChainDepth bounds chain walks so a CAR/CHR reference cycle cannot loop.
const maxChainDepth = 8

// Validator verifies certificate signatures and issuer relationships. The
// secure channel consumes this interface so tests can substitute their own
// trust decisions.
type Validator interface {
	// VerifySignature checks the certificate's ECDSA signature under the
	// issuer's public key (uncompressed point).
	VerifySignature(cert *Certificate, issuerPublic []byte) error
	// IsIssuer reports whether issuer's holder reference matches subject's
	// authority reference.
	IsIssuer(issuer, subject *Certificate) bool
	// BuildChain returns the leaf-to-root chain ending at a trust anchor,
	// drawing intermediates from the given pool.
	BuildChain(leaf *Certificate, intermediates []*Certificate) ([]*Certificate, error)
}

// ChainValidator validates certificates against a pool of trust anchors.
// Anchors must be self-signed root certificates; their signatures are checked
// on insertion.
type ChainValidator struct {
	roots map[Reference]*Certificate
}

// NewChainValidator creates a validator with the given trust anchors.
func NewChainValidator(anchors ...*Certificate) (*ChainValidator, error) {
	v := &ChainValidator{roots: make(map[Reference]*Certificate)}
	for _, anchor := range anchors {
		if err := v.AddTrustAnchor(anchor); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// AddTrustAnchor adds a self-signed root certificate to the pool.
func (v *ChainValidator) AddTrustAnchor(anchor *Certificate) error {
	if anchor.Role != RoleRoot {
		return fmt.Errorf("cvc: trust anchor %s is not a root certificate", anchor.CHR)
	}
	if !anchor.IsSelfSigned() {
		return fmt.Errorf("cvc: trust anchor %s is not self-signed", anchor.CHR)
	}
	if err := v.VerifySignature(anchor, anchor.PublicKey); err != nil {
		return err
	}
	v.roots[anchor.CHR] = anchor
	return nil
}

// VerifySignature implements Validator.
func (v *ChainValidator) VerifySignature(cert *Certificate, issuerPublic []byte) error {
	curveID, err := crypto.CurveIDForPoint(issuerPublic)
	if err != nil {
		return fmt.Errorf("cvc: issuer public key: %w", err)
	}
	curve, err := curveID.Curve()
	if err != nil {
		return err
	}
	x, y, err := crypto.DecodePoint(curveID, issuerPublic)
	if err != nil {
		return fmt.Errorf("cvc: issuer public key: %w", err)
	}

	size := curveID.FieldSize()
	if len(cert.Signature) != 2*size {
		return fmt.Errorf("%w: signature is %d bytes, issuer curve %s needs %d",
			ErrSignatureVerifyFailed, len(cert.Signature), curveID, 2*size)
	}

	digest := sha256.Sum256(cert.Body())
	r := new(big.Int).SetBytes(cert.Signature[:size])
	s := new(big.Int).SetBytes(cert.Signature[size:])

	pub := &ecdsa.PublicKey{Curve: curve, X: x, Y: y}
	if !ecdsa.Verify(pub, digest[:], r, s) {
		return ErrSignatureVerifyFailed
	}
	return nil
}

// IsIssuer implements Validator.
func (v *ChainValidator) IsIssuer(issuer, subject *Certificate) bool {
	return issuer.CHR == subject.CAR
}

// BuildChain implements Validator. The returned slice starts at the leaf and
// ends at the trust anchor that closes the chain. Every link is checked: the
// issuer must carry a CA role and its key must verify the subject's
// signature.
func (v *ChainValidator) BuildChain(leaf *Certificate, intermediates []*Certificate) ([]*Certificate, error) {
	pool := make(map[Reference]*Certificate, len(intermediates))
	for _, cert := range intermediates {
		pool[cert.CHR] = cert
	}

	chain := []*Certificate{leaf}
	current := leaf

	for depth := 0; depth < maxChainDepth; depth++ {
		if root, ok := v.roots[current.CAR]; ok {
			if err := v.VerifySignature(current, root.PublicKey); err != nil {
				return nil, fmt.Errorf("%w: %s not signed by root %s: %v",
					ErrChainBroken, current.CHR, root.CHR, err)
			}
			if current != root {
				chain = append(chain, root)
			}
			return chain, nil
		}

		issuer, ok := pool[current.CAR]
		if !ok {
			return nil, fmt.Errorf("%w: no certificate for authority %s",
				ErrUntrustedRoot, current.CAR)
		}
		if issuer.Role == RoleEndEntity {
			return nil, fmt.Errorf("%w: issuer %s is an end-entity certificate",
				ErrChainBroken, issuer.CHR)
		}
		if err := v.VerifySignature(current, issuer.PublicKey); err != nil {
			return nil, fmt.Errorf("%w: %s not signed by %s: %v",
				ErrChainBroken, current.CHR, issuer.CHR, err)
		}

		chain = append(chain, issuer)
		current = issuer
	}

	return nil, fmt.Errorf("%w: chain exceeds %d certificates", ErrChainBroken, maxChainDepth)
}
