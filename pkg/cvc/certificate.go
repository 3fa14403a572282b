// Package cvc implements the card-verifiable certificate (CVC) model used by
// the trusted channel: a compact TLV certificate format carrying an elliptic
// curve public key, a holder reference (CHR), the issuing authority reference
// (CAR) and a holder role, verified directly with ECDSA.
package cvc

import (
	"fmt"
	"unicode"

	"github.com/pkg/errors"

	"github.com/mwolff-dev/cardchannel/pkg/crypto"
	"github.com/mwolff-dev/cardchannel/pkg/tlv"
)

// ReferenceSize is the size of holder and authority references.
const ReferenceSize = 8

// Reference identifies a certificate holder (CHR) or issuing authority (CAR).
type Reference [ReferenceSize]byte

// MakeReference builds a Reference from exactly ReferenceSize bytes.
func MakeReference(b []byte) (Reference, error) {
	var r Reference
	if len(b) != ReferenceSize {
		return r, fmt.Errorf("cvc: reference must be %d bytes, got %d", ReferenceSize, len(b))
	}
	copy(r[:], b)
	return r, nil
}

// String renders printable references as text and others as hex.
func (r Reference) String() string {
	for _, b := range r {
		if b > unicode.MaxASCII || !unicode.IsPrint(rune(b)) {
			return fmt.Sprintf("%X", r[:])
		}
	}
	return string(r[:])
}

// Role is the certificate holder role encoded in the holder authorization
// template. The two high bits of the role octet select the role.
type Role byte

const (
	// RoleEndEntity marks a leaf certificate bound to a card or terminal.
	RoleEndEntity Role = 0x00
	// RoleSubCA marks an intermediate certification authority.
	RoleSubCA Role = 0x80
	// RoleRoot marks a self-signed trust anchor.
	RoleRoot Role = 0xC0
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleEndEntity:
		return "end-entity"
	case RoleSubCA:
		return "sub-CA"
	case RoleRoot:
		return "root"
	default:
		return fmt.Sprintf("Role(%#02x)", byte(r))
	}
}

// roleFromOctet maps a holder authorization octet to a Role. The sub-CA bit
// pattern has two variants (domestic and foreign authority).
func roleFromOctet(b byte) Role {
	switch b & 0xC0 {
	case 0xC0:
		return RoleRoot
	case 0x80, 0x40:
		return RoleSubCA
	default:
		return RoleEndEntity
	}
}

// Certificate is a decoded card-verifiable certificate.
type Certificate struct {
	// Profile is the certificate profile identifier octet.
	Profile byte
	// CAR references the issuing authority.
	CAR Reference
	// CHR references the certificate holder.
	CHR Reference
	// Curve is the domain parameter set of the embedded public key,
	// inferred from the point length.
	Curve crypto.CurveID
	// PublicKey is the holder's public key in uncompressed encoding.
	PublicKey []byte
	// Role is the holder role.
	Role Role
	// Signature is the issuer's ECDSA signature (r || s, each padded to the
	// curve's field size).
	Signature []byte

	raw  []byte
	body []byte
}

// Decode parses a certificate from its raw TLV encoding.
func Decode(raw []byte) (*Certificate, error) {
	outer, err := tlv.ParseOne(raw)
	if err != nil {
		return nil, errors.Wrap(err, "cvc: parse certificate")
	}
	if outer.Tag != tlv.TagCVCertificate {
		return nil, fmt.Errorf("cvc: expected certificate template %#x, got %#x", uint16(tlv.TagCVCertificate), uint16(outer.Tag))
	}

	elements, err := outer.Children()
	if err != nil {
		return nil, errors.Wrap(err, "cvc: parse certificate content")
	}

	bodyElem, ok := tlv.Find(elements, tlv.TagCertificateBody)
	if !ok {
		return nil, errors.New("cvc: certificate body missing")
	}
	sigElem, ok := tlv.Find(elements, tlv.TagSignature)
	if !ok {
		return nil, errors.New("cvc: signature missing")
	}

	cert, err := decodeBody(bodyElem)
	if err != nil {
		return nil, err
	}

	expected := cert.Curve.FieldSize() * 2
	if len(sigElem.Value) != expected {
		return nil, fmt.Errorf("cvc: signature must be %d bytes on %s, got %d", expected, cert.Curve, len(sigElem.Value))
	}

	cert.Signature = append([]byte(nil), sigElem.Value...)
	cert.raw = append([]byte(nil), raw...)
	cert.body = tlv.Encode(tlv.TagCertificateBody, bodyElem.Value)
	return cert, nil
}

func decodeBody(body tlv.Element) (*Certificate, error) {
	fields, err := body.Children()
	if err != nil {
		return nil, errors.Wrap(err, "cvc: parse certificate body")
	}

	cert := &Certificate{}

	profile, ok := tlv.Find(fields, tlv.TagProfileIdentifier)
	if !ok || len(profile.Value) != 1 {
		return nil, errors.New("cvc: profile identifier missing or malformed")
	}
	cert.Profile = profile.Value[0]

	car, ok := tlv.Find(fields, tlv.TagAuthorityReference)
	if !ok {
		return nil, errors.New("cvc: authority reference missing")
	}
	if cert.CAR, err = MakeReference(car.Value); err != nil {
		return nil, err
	}

	chr, ok := tlv.Find(fields, tlv.TagHolderReferenceBody)
	if !ok {
		return nil, errors.New("cvc: holder reference missing")
	}
	if cert.CHR, err = MakeReference(chr.Value); err != nil {
		return nil, err
	}

	pubTemplate, ok := tlv.Find(fields, tlv.TagPublicKey)
	if !ok {
		return nil, errors.New("cvc: public key template missing")
	}
	point, ok := pubTemplate.Find(tlv.TagPublicPoint)
	if !ok {
		return nil, errors.New("cvc: public point missing")
	}
	if cert.Curve, err = crypto.CurveIDForPoint(point.Value); err != nil {
		return nil, err
	}
	if _, _, err := crypto.DecodePoint(cert.Curve, point.Value); err != nil {
		return nil, errors.Wrap(err, "cvc: invalid public key")
	}
	cert.PublicKey = append([]byte(nil), point.Value...)

	chat, ok := tlv.Find(fields, tlv.TagHolderAuthorization)
	if !ok {
		return nil, errors.New("cvc: holder authorization missing")
	}
	role, ok := chat.Find(tlv.TagDiscretionaryData)
	if !ok || len(role.Value) != 1 {
		return nil, errors.New("cvc: role octet missing or malformed")
	}
	cert.Role = roleFromOctet(role.Value[0])

	return cert, nil
}

// Raw returns a copy of the full certificate encoding.
func (c *Certificate) Raw() []byte {
	return append([]byte(nil), c.raw...)
}

// Body returns a copy of the to-be-signed body encoding, including its tag
// and length octets. This is the input to signature verification.
func (c *Certificate) Body() []byte {
	return append([]byte(nil), c.body...)
}

// IsSelfSigned reports whether holder and authority reference coincide.
func (c *Certificate) IsSelfSigned() bool {
	return c.CAR == c.CHR
}

// String summarizes the certificate for logs.
func (c *Certificate) String() string {
	return fmt.Sprintf("CVC{CHR=%s CAR=%s role=%s curve=%s}", c.CHR, c.CAR, c.Role, c.Curve)
}
