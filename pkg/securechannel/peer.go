package securechannel

import (
	"fmt"

	"github.com/mwolff-dev/cardchannel/pkg/crypto"
	"github.com/mwolff-dev/cardchannel/pkg/cvc"
)

// PeerCertificate is the card's end-entity certificate, stored verbatim as
// imported. It is set once per negotiation cycle; importing a new one starts
// a new cycle.
type PeerCertificate struct {
	raw  []byte
	cert *cvc.Certificate
}

// ImportPeerCertificate decodes and validates the peer's certificate. The
// certificate must be an end-entity certificate chaining to one of the
// validator's trust anchors through the given intermediates. The returned
// chain runs leaf to root; it is informational for the caller and does not
// influence the channel.
func ImportPeerCertificate(raw []byte, intermediates []*cvc.Certificate, v cvc.Validator) (*PeerCertificate, []*cvc.Certificate, error) {
	if v == nil {
		return nil, nil, ConfigurationError{Message: "peer certificate import requires a validator"}
	}

	cert, err := cvc.Decode(raw)
	if err != nil {
		return nil, nil, ConfigurationError{Message: "peer certificate does not decode", Cause: err}
	}

	if cert.Role != cvc.RoleEndEntity {
		return nil, nil, ConfigurationError{
			Message: fmt.Sprintf("peer certificate %s has role %s, want end-entity", cert.CHR, cert.Role),
		}
	}

	chain, err := v.BuildChain(cert, intermediates)
	if err != nil {
		return nil, nil, ConfigurationError{Message: "peer certificate is not trusted", Cause: err}
	}

	peer := &PeerCertificate{
		raw:  append([]byte(nil), raw...),
		cert: cert,
	}
	return peer, chain, nil
}

// Certificate returns the decoded certificate.
func (p *PeerCertificate) Certificate() *cvc.Certificate {
	return p.cert
}

// Raw returns a copy of the encoded certificate as imported.
func (p *PeerCertificate) Raw() []byte {
	return append([]byte(nil), p.raw...)
}

// PublicKey returns the peer's static public key point.
func (p *PeerCertificate) PublicKey() []byte {
	return p.cert.PublicKey
}

// CurveID returns the domain parameters of the peer's static key.
func (p *PeerCertificate) CurveID() crypto.CurveID {
	return p.cert.Curve
}
