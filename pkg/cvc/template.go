package cvc

import (
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"math/big"

	"github.com/pkg/errors"

	"github.com/mwolff-dev/cardchannel/pkg/crypto"
	"github.com/mwolff-dev/cardchannel/pkg/tlv"
)

// Template describes a certificate to be issued. Signing a template produces
// the encoded certificate; it is used by issuing tooling and by tests that
// need freshly built chains.
type Template struct {
	Profile   byte
	CAR       Reference
	CHR       Reference
	PublicKey []byte // uncompressed point
	Role      Role
}

// roleOctet returns the holder authorization octet for the role.
func (r Role) roleOctet() byte {
	return byte(r)
}

// Sign encodes the template body, signs it with the issuer key and returns
// the decoded certificate.
func (t *Template) Sign(issuer *crypto.KeyPair) (*Certificate, error) {
	curve, err := crypto.CurveIDForPoint(t.PublicKey)
	if err != nil {
		return nil, errors.Wrap(err, "cvc: template public key")
	}
	if _, _, err := crypto.DecodePoint(curve, t.PublicKey); err != nil {
		return nil, errors.Wrap(err, "cvc: template public key")
	}

	body, err := t.encodeBody()
	if err != nil {
		return nil, err
	}

	signature, err := signBody(issuer, body)
	if err != nil {
		return nil, err
	}

	w := tlv.NewWriter()
	w.StartConstructed(tlv.TagCVCertificate)
	// Body is already a complete element; splice its fields back in.
	bodyElem, err := tlv.ParseOne(body)
	if err != nil {
		return nil, errors.Wrap(err, "cvc: re-parse body")
	}
	w.PutPrimitive(tlv.TagCertificateBody, bodyElem.Value)
	w.PutPrimitive(tlv.TagSignature, signature)
	if err := w.EndConstructed(); err != nil {
		return nil, err
	}

	raw, err := w.Bytes()
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

func (t *Template) encodeBody() ([]byte, error) {
	w := tlv.NewWriter()
	w.StartConstructed(tlv.TagCertificateBody)
	w.PutPrimitive(tlv.TagProfileIdentifier, []byte{t.Profile})
	w.PutPrimitive(tlv.TagAuthorityReference, t.CAR[:])
	w.StartConstructed(tlv.TagPublicKey)
	w.PutPrimitive(tlv.TagPublicPoint, t.PublicKey)
	if err := w.EndConstructed(); err != nil {
		return nil, err
	}
	w.PutPrimitive(tlv.TagHolderReferenceBody, t.CHR[:])
	w.StartConstructed(tlv.TagHolderAuthorization)
	w.PutPrimitive(tlv.TagDiscretionaryData, []byte{t.Role.roleOctet()})
	if err := w.EndConstructed(); err != nil {
		return nil, err
	}
	if err := w.EndConstructed(); err != nil {
		return nil, err
	}
	return w.Bytes()
}

// signBody computes an ECDSA signature over SHA-256 of the encoded body,
// returning r || s with both components padded to the field size.
func signBody(issuer *crypto.KeyPair, body []byte) ([]byte, error) {
	priv, err := ecdsaPrivateKey(issuer)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(body)
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return nil, errors.Wrap(err, "cvc: ECDSA sign")
	}

	size := issuer.CurveID().FieldSize()
	sig := make([]byte, 2*size)
	r.FillBytes(sig[:size])
	s.FillBytes(sig[size:])
	return sig, nil
}

// ecdsaPrivateKey converts a crypto.KeyPair into an ecdsa.PrivateKey.
func ecdsaPrivateKey(kp *crypto.KeyPair) (*ecdsa.PrivateKey, error) {
	curve, err := kp.CurveID().Curve()
	if err != nil {
		return nil, err
	}
	x, y, err := crypto.DecodePoint(kp.CurveID(), kp.PublicKey())
	if err != nil {
		return nil, err
	}
	return &ecdsa.PrivateKey{
		PublicKey: ecdsa.PublicKey{Curve: curve, X: x, Y: y},
		D:         new(big.Int).SetBytes(kp.PrivateScalar()),
	}, nil
}
