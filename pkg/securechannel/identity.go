package securechannel

import (
	"bytes"
	"fmt"

	"github.com/mwolff-dev/cardchannel/pkg/crypto"
	"github.com/mwolff-dev/cardchannel/pkg/cvc"
)

// Identity is the host's static authentication material: an EC private key,
// the matching end-entity certificate and the sub-CA certificate that issued
// it. An Identity is immutable once constructed and may be shared across
// concurrent sessions; it holds the private key exclusively.
type Identity struct {
	key   *crypto.KeyPair
	cert  *cvc.Certificate
	subCA *cvc.Certificate
}

// NewIdentity validates and assembles a static identity. It fails with a
// ConfigurationError unless:
//
//   - the sub-CA certificate chains to a trust anchor of the validator,
//   - the end-entity certificate is signed by the sub-CA,
//   - the roles are sub-CA and end-entity respectively,
//   - the sub-CA's holder reference matches the end-entity's authority
//     reference, and
//   - the end-entity certificate carries the public key derived from key.
func NewIdentity(key *crypto.KeyPair, eeCert, subCACert *cvc.Certificate, v cvc.Validator) (*Identity, error) {
	if key == nil || eeCert == nil || subCACert == nil || v == nil {
		return nil, ConfigurationError{Message: "identity requires a private key, both certificates and a validator"}
	}

	if subCACert.Role != cvc.RoleSubCA {
		return nil, ConfigurationError{
			Message: fmt.Sprintf("issuing certificate %s has role %s, want sub-CA", subCACert.CHR, subCACert.Role),
		}
	}
	if eeCert.Role != cvc.RoleEndEntity {
		return nil, ConfigurationError{
			Message: fmt.Sprintf("identity certificate %s has role %s, want end-entity", eeCert.CHR, eeCert.Role),
		}
	}

	if !v.IsIssuer(subCACert, eeCert) {
		return nil, ConfigurationError{
			Message: fmt.Sprintf("sub-CA holder reference %s does not match end-entity authority reference %s",
				subCACert.CHR, eeCert.CAR),
		}
	}

	if _, err := v.BuildChain(subCACert, nil); err != nil {
		return nil, ConfigurationError{Message: "sub-CA certificate is not trusted", Cause: err}
	}
	if err := v.VerifySignature(eeCert, subCACert.PublicKey); err != nil {
		return nil, ConfigurationError{Message: "end-entity certificate signature is invalid", Cause: err}
	}

	if !bytes.Equal(eeCert.PublicKey, key.PublicKey()) {
		return nil, ConfigurationError{Message: "end-entity certificate does not match the private key"}
	}

	return &Identity{key: key, cert: eeCert, subCA: subCACert}, nil
}

// Certificate returns the end-entity certificate.
func (id *Identity) Certificate() *cvc.Certificate {
	return id.cert
}

// SubCACertificate returns the issuing sub-CA certificate.
func (id *Identity) SubCACertificate() *cvc.Certificate {
	return id.subCA
}

// HolderReference returns the CHR sent in the first handshake step.
func (id *Identity) HolderReference() cvc.Reference {
	return id.cert.CHR
}

// CurveID returns the domain parameters of the static key.
func (id *Identity) CurveID() crypto.CurveID {
	return id.key.CurveID()
}
