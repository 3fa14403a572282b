package tlv

import (
	"bytes"
	"errors"
	"testing"
)

func TestTagBytes(t *testing.T) {
	tests := []struct {
		tag  Tag
		want []byte
	}{
		{TagDynamicAuth, []byte{0x7C}},
		{TagEphemeralKey, []byte{0x85}},
		{TagCVCertificate, []byte{0x7F, 0x21}},
		{TagSignature, []byte{0x5F, 0x37}},
	}
	for _, tt := range tests {
		if got := tt.tag.Bytes(); !bytes.Equal(got, tt.want) {
			t.Errorf("Tag(%#x).Bytes() = %x, want %x", uint16(tt.tag), got, tt.want)
		}
	}
}

func TestTagConstructed(t *testing.T) {
	constructed := []Tag{TagDynamicAuth, TagCVCertificate, TagCertificateBody, TagPublicKey, TagHolderAuthorization}
	for _, tag := range constructed {
		if !tag.Constructed() {
			t.Errorf("Tag(%#x) should be constructed", uint16(tag))
		}
	}

	primitive := []Tag{TagEphemeralKey, TagHolderReference, TagSignature, TagPublicPoint, TagAuthorityReference}
	for _, tag := range primitive {
		if tag.Constructed() {
			t.Errorf("Tag(%#x) should be primitive", uint16(tag))
		}
	}
}

func TestWriterNesting(t *testing.T) {
	w := NewWriter()
	w.StartConstructed(TagDynamicAuth)
	w.PutPrimitive(TagHolderReference, []byte{0x01, 0x02, 0x03})
	if err := w.EndConstructed(); err != nil {
		t.Fatalf("EndConstructed: %v", err)
	}

	got, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	want := []byte{0x7C, 0x05, 0xC3, 0x03, 0x01, 0x02, 0x03}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded = %x, want %x", got, want)
	}
}

func TestWriterTwoByteTag(t *testing.T) {
	w := NewWriter()
	w.StartConstructed(TagCVCertificate)
	w.PutPrimitive(TagSignature, []byte{0xAA})
	if err := w.EndConstructed(); err != nil {
		t.Fatalf("EndConstructed: %v", err)
	}

	got, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	want := []byte{0x7F, 0x21, 0x05, 0x5F, 0x37, 0x01, 0xAA}
	if !bytes.Equal(got, want) {
		t.Errorf("encoded = %x, want %x", got, want)
	}
}

func TestWriterUnbalanced(t *testing.T) {
	w := NewWriter()
	w.StartConstructed(TagDynamicAuth)
	if _, err := w.Bytes(); !errors.Is(err, ErrUnbalancedWriter) {
		t.Errorf("Bytes with open element: err = %v", err)
	}

	w = NewWriter()
	if err := w.EndConstructed(); !errors.Is(err, ErrUnbalancedWriter) {
		t.Errorf("EndConstructed without start: err = %v", err)
	}
}

func TestLongLengthRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 0x7F, 0x80, 0xFF, 0x100, 0x1234} {
		value := bytes.Repeat([]byte{0xA5}, n)
		encoded := Encode(TagEphemeralKey, value)

		elem, err := ParseOne(encoded)
		if err != nil {
			t.Fatalf("ParseOne for %d-byte value: %v", n, err)
		}
		if elem.Tag != TagEphemeralKey {
			t.Errorf("tag = %#x", uint16(elem.Tag))
		}
		if !bytes.Equal(elem.Value, value) {
			t.Errorf("value mismatch for %d-byte value", n)
		}
	}
}

func TestParseNested(t *testing.T) {
	encoded := Encode(TagDynamicAuth, Encode(TagEphemeralKey, []byte{0x04, 0x11, 0x22}))

	outer, err := ParseOne(encoded)
	if err != nil {
		t.Fatalf("ParseOne: %v", err)
	}
	if outer.Tag != TagDynamicAuth {
		t.Fatalf("outer tag = %#x", uint16(outer.Tag))
	}

	inner, ok := outer.Find(TagEphemeralKey)
	if !ok {
		t.Fatal("inner element not found")
	}
	if !bytes.Equal(inner.Value, []byte{0x04, 0x11, 0x22}) {
		t.Errorf("inner value = %x", inner.Value)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want error
	}{
		{"value shorter than length", []byte{0x7C, 0x05, 0x01}, ErrTruncated},
		{"missing length octet", []byte{0x7C}, ErrTruncated},
		{"indefinite length", []byte{0x7C, 0x80, 0x00, 0x00}, ErrIndefiniteLength},
		{"three-octet length", []byte{0x7C, 0x83, 0x00, 0x00, 0x01}, ErrLengthTooLong},
		{"three-octet tag", []byte{0x7F, 0xA1, 0x21, 0x00}, ErrTagTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Parse(%x) err = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestChildrenOnPrimitive(t *testing.T) {
	elem := Element{Tag: TagEphemeralKey, Value: []byte{0x01}}
	if _, err := elem.Children(); !errors.Is(err, ErrNotConstructed) {
		t.Errorf("Children on primitive: err = %v", err)
	}
}
