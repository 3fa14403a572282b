package securechannel

import (
	"github.com/skythen/apdu"

	"github.com/mwolff-dev/cardchannel/pkg/cvc"
	"github.com/mwolff-dev/cardchannel/pkg/tlv"
)

// GENERAL AUTHENTICATE command header bytes.
const (
	claPlain               byte = 0x00
	claChaining            byte = 0x10
	insGeneralAuthenticate byte = 0x86
)

// encodeHolderReference builds the step-1 payload 0x7C{0xC3{CHR}}.
func encodeHolderReference(chr cvc.Reference) []byte {
	return tlv.Encode(tlv.TagDynamicAuth, tlv.Encode(tlv.TagHolderReference, chr[:]))
}

// encodeEphemeralKey builds the step-2 payload 0x7C{0x85{point}}.
func encodeEphemeralKey(point []byte) []byte {
	return tlv.Encode(tlv.TagDynamicAuth, tlv.Encode(tlv.TagEphemeralKey, point))
}

// parseHolderReference extracts the holder reference from a step-1 payload
// 0x7C{0xC3{CHR}}. The card side of the handshake consumes this.
func parseHolderReference(data []byte) (cvc.Reference, error) {
	outer, err := tlv.ParseOne(data)
	if err != nil || outer.Tag != tlv.TagDynamicAuth {
		return cvc.Reference{}, ProtocolError{Message: "malformed handshake message"}
	}
	chr, ok := outer.Find(tlv.TagHolderReference)
	if !ok {
		return cvc.Reference{}, ProtocolError{Message: "malformed handshake message"}
	}
	r, err := cvc.MakeReference(chr.Value)
	if err != nil {
		return cvc.Reference{}, ProtocolError{Message: "malformed handshake message"}
	}
	return r, nil
}

// parseEphemeralKey extracts the peer's ephemeral public point from a
// 0x7C{0x85{point}} response payload.
func parseEphemeralKey(data []byte) ([]byte, error) {
	outer, err := tlv.ParseOne(data)
	if err != nil || outer.Tag != tlv.TagDynamicAuth {
		return nil, ProtocolError{Message: "malformed handshake message"}
	}
	point, ok := outer.Find(tlv.TagEphemeralKey)
	if !ok {
		return nil, ProtocolError{Message: "malformed handshake message"}
	}
	return point.Value, nil
}

// generalAuthenticate builds a GENERAL AUTHENTICATE command. The first
// handshake step sets the command-chaining class byte because the
// authentication continues with the second step.
func generalAuthenticate(chained bool, data []byte) apdu.Capdu {
	cla := claPlain
	if chained {
		cla = claChaining
	}
	return apdu.Capdu{
		Cla:  cla,
		Ins:  insGeneralAuthenticate,
		P1:   0x00,
		P2:   0x00,
		Data: data,
		Ne:   apdu.MaxLenResponseDataStandard,
	}
}
