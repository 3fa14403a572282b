// Package tlv implements the BER-TLV subset used by card-verifiable
// certificates and the GENERAL AUTHENTICATE dynamic authentication templates:
// definite lengths and tags of one or two octets.
package tlv

// Tag is a BER-TLV tag of one or two octets. Two-octet tags (first octet
// with all five low tag-number bits set, e.g. 0x7F21) are stored with the
// leading octet in the high byte.
type Tag uint16

// Tags used by the trusted-channel wire structures.
const (
	// TagDynamicAuth is the dynamic authentication data template (0x7C).
	TagDynamicAuth Tag = 0x7C
	// TagHolderReference carries the certificate holder reference inside a
	// dynamic authentication template (0xC3).
	TagHolderReference Tag = 0xC3
	// TagEphemeralKey carries an uncompressed ephemeral public key point (0x85).
	TagEphemeralKey Tag = 0x85

	// TagCVCertificate is the CV certificate template (0x7F21).
	TagCVCertificate Tag = 0x7F21
	// TagCertificateBody is the to-be-signed certificate body (0x7F4E).
	TagCertificateBody Tag = 0x7F4E
	// TagProfileIdentifier is the certificate profile identifier (0x5F29).
	TagProfileIdentifier Tag = 0x5F29
	// TagAuthorityReference is the certification authority reference (0x42).
	TagAuthorityReference Tag = 0x42
	// TagPublicKey is the public key template (0x7F49).
	TagPublicKey Tag = 0x7F49
	// TagPublicPoint is the uncompressed public point inside a public key
	// template (0x86).
	TagPublicPoint Tag = 0x86
	// TagHolderReferenceBody is the certificate holder reference inside a
	// certificate body (0x5F20).
	TagHolderReferenceBody Tag = 0x5F20
	// TagHolderAuthorization is the certificate holder authorization
	// template (0x7F4C).
	TagHolderAuthorization Tag = 0x7F4C
	// TagDiscretionaryData carries the role octet inside the holder
	// authorization template (0x53).
	TagDiscretionaryData Tag = 0x53
	// TagSignature is the certificate signature (0x5F37).
	TagSignature Tag = 0x5F37
)

// leading returns the first tag octet.
func (t Tag) leading() byte {
	if t > 0xFF {
		return byte(t >> 8)
	}
	return byte(t)
}

// Constructed reports whether the tag marks a constructed element.
func (t Tag) Constructed() bool {
	return t.leading()&0x20 != 0
}

// Bytes returns the encoded tag octets.
func (t Tag) Bytes() []byte {
	if t > 0xFF {
		return []byte{byte(t >> 8), byte(t)}
	}
	return []byte{byte(t)}
}

// parseTag decodes a tag from the start of data and returns it together with
// the number of octets consumed.
func parseTag(data []byte) (Tag, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrTruncated
	}

	first := data[0]
	if first&0x1F != 0x1F {
		return Tag(first), 1, nil
	}

	// High tag-number form; only a single subsequent octet is supported.
	if len(data) < 2 {
		return 0, 0, ErrTruncated
	}
	if data[1]&0x80 != 0 {
		return 0, 0, ErrTagTooLong
	}
	return Tag(uint16(first)<<8 | uint16(data[1])), 2, nil
}
