package securechannel

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"errors"
	"testing"

	"github.com/mwolff-dev/cardchannel/pkg/crypto"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

func key16(t *testing.T, s string) [16]byte {
	t.Helper()
	var k [16]byte
	copy(k[:], mustHex(t, s))
	return k
}

// testEngine returns an enabled engine with fixed session keys.
func testEngine(t *testing.T, kenc, kmac string) *Engine {
	t.Helper()
	e := NewEngine()
	if err := e.activate(SessionKeys{Enc: key16(t, kenc), Mac: key16(t, kmac)}); err != nil {
		t.Fatalf("activate: %v", err)
	}
	return e
}

const (
	// Session keys derived from the fixed-scalar handshake vectors.
	vecKenc = "9d870e7f567c72f4e396a6a78ef8fb88"
	vecKmac = "be214fbedc3c06e3f5e81c9541d760cb"
)

func TestEngineStartsDisabled(t *testing.T) {
	e := NewEngine()

	var stateErr SessionStateError
	if _, err := e.Encipher([]byte{0x01}); !errors.As(err, &stateErr) {
		t.Errorf("Encipher on disabled engine: %v", err)
	}
	if _, err := e.Decipher([]byte{0x01}); !errors.As(err, &stateErr) {
		t.Errorf("Decipher on disabled engine: %v", err)
	}
	if _, err := e.ComputeChecksum(nil); !errors.As(err, &stateErr) {
		t.Errorf("ComputeChecksum on disabled engine: %v", err)
	}
	if _, err := e.VerifyChecksum(nil, nil); !errors.As(err, &stateErr) {
		t.Errorf("VerifyChecksum on disabled engine: %v", err)
	}
}

func TestActivateResetsCounters(t *testing.T) {
	e := testEngine(t, vecKenc, vecKmac)

	cmd := e.CommandCounter()
	if cmd[15] != 1 || !bytes.Equal(cmd[:15], make([]byte, 15)) {
		t.Errorf("sscCmd after activation = %X, want ...01", cmd)
	}
	if rsp := e.ResponseCounter(); rsp != [16]byte{} {
		t.Errorf("sscRsp after activation = %X, want zero", rsp)
	}
	if !e.Enabled() {
		t.Error("engine not enabled after activation")
	}
}

func TestEncipherVector(t *testing.T) {
	e := testEngine(t, vecKenc, vecKmac)

	got, err := e.Encipher([]byte{0x01, 0x02, 0x03})
	if err != nil {
		t.Fatalf("Encipher: %v", err)
	}
	want := mustHex(t, "011dfdba3d8e603c3cb8f1d5c2d4b1e2fe")
	if !bytes.Equal(got, want) {
		t.Errorf("Encipher = %X, want %X", got, want)
	}

	// Enciphering does not advance the command counter.
	if cmd := e.CommandCounter(); cmd[15] != 1 {
		t.Errorf("sscCmd after Encipher = %X", cmd)
	}
}

func TestComputeChecksumVectors(t *testing.T) {
	// Kmac = 000102...0f, message 040506 under sscCmd = 1 matches the
	// protocol-shaped CMAC vector.
	e := testEngine(t, vecKenc, "000102030405060708090a0b0c0d0e0f")

	mac, err := e.ComputeChecksum([]byte{0x04, 0x05, 0x06})
	if err != nil {
		t.Fatalf("ComputeChecksum: %v", err)
	}
	if want := mustHex(t, "0c03d6f560283579"); !bytes.Equal(mac, want) {
		t.Errorf("first MAC = %X, want %X", mac, want)
	}

	if cmd := e.CommandCounter(); cmd[15] != 3 {
		t.Errorf("sscCmd after one checksum = %X, want ...03", cmd)
	}

	// Same message, advanced counter: different MAC.
	second, err := e.ComputeChecksum([]byte{0x04, 0x05, 0x06})
	if err != nil {
		t.Fatalf("ComputeChecksum: %v", err)
	}
	if bytes.Equal(mac, second) {
		t.Error("MAC did not change with advancing counter")
	}
}

func TestChecksumDeterminism(t *testing.T) {
	msg := []byte{0xDE, 0xAD, 0xBE, 0xEF}

	a, err := testEngine(t, vecKenc, vecKmac).ComputeChecksum(msg)
	if err != nil {
		t.Fatalf("ComputeChecksum: %v", err)
	}
	b, err := testEngine(t, vecKenc, vecKmac).ComputeChecksum(msg)
	if err != nil {
		t.Fatalf("ComputeChecksum: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("identical state produced different MACs: %X vs %X", a, b)
	}
}

func TestRoundTrip(t *testing.T) {
	messages := [][]byte{
		{},
		{0x00},
		{0x01, 0x02, 0x03},
		bytes.Repeat([]byte{0xA5}, 16), // block aligned
		bytes.Repeat([]byte{0x42}, 47),
	}

	for _, msg := range messages {
		host := testEngine(t, vecKenc, vecKmac)
		card := testEngine(t, vecKenc, vecKmac)

		// Align the card's response counter with the host's command
		// counter so the card's decipher sees the same IV.
		card.sscRsp = host.sscCmd

		enciphered, err := host.Encipher(msg)
		if err != nil {
			t.Fatalf("Encipher(%X): %v", msg, err)
		}
		plain, err := card.Decipher(enciphered)
		if err != nil {
			t.Fatalf("Decipher(%X): %v", msg, err)
		}
		if !bytes.Equal(plain, msg) {
			t.Errorf("round trip of %X yielded %X", msg, plain)
		}
	}
}

func TestVerifyChecksum(t *testing.T) {
	host := testEngine(t, vecKenc, vecKmac)

	data := []byte{0x11, 0x22, 0x33}

	// Compute the expected response MAC the way the card would: over the
	// pre-incremented response counter.
	var ssc [16]byte
	ssc[15] = 2
	macBlock := newAESBlock(t, vecKmac)
	input := append(ssc[:], crypto.Pad80(data, crypto.BlockSize)...)
	mac, err := crypto.CMACTrunc8(macBlock, input)
	if err != nil {
		t.Fatalf("CMACTrunc8: %v", err)
	}

	ok, err := host.VerifyChecksum(data, mac)
	if err != nil {
		t.Fatalf("VerifyChecksum: %v", err)
	}
	if !ok {
		t.Fatal("valid checksum rejected")
	}
	if rsp := host.ResponseCounter(); rsp[15] != 2 {
		t.Errorf("sscRsp after verify = %X, want ...02", rsp)
	}
	if !host.Enabled() {
		t.Error("engine disabled after successful verification")
	}
}

func TestVerifyChecksumMismatchDisables(t *testing.T) {
	e := testEngine(t, vecKenc, vecKmac)

	ok, err := e.VerifyChecksum([]byte{0x01}, make([]byte, 8))
	if err != nil {
		t.Fatalf("VerifyChecksum: %v", err)
	}
	if ok {
		t.Fatal("bogus checksum accepted")
	}
	if e.Enabled() {
		t.Fatal("engine still enabled after checksum mismatch")
	}

	// Every subsequent operation fails with SessionStateError.
	var stateErr SessionStateError
	if _, err := e.Encipher([]byte{0x01}); !errors.As(err, &stateErr) {
		t.Errorf("Encipher after mismatch: %v", err)
	}
	if _, err := e.ComputeChecksum(nil); !errors.As(err, &stateErr) {
		t.Errorf("ComputeChecksum after mismatch: %v", err)
	}
	if _, err := e.VerifyChecksum(nil, nil); !errors.As(err, &stateErr) {
		t.Errorf("VerifyChecksum after mismatch: %v", err)
	}
}

func TestDecipherBadIndicator(t *testing.T) {
	inputs := [][]byte{
		nil,
		{0x00},
		{0x02, 0xAA, 0xBB},
		append([]byte{0x85}, make([]byte, 16)...),
	}

	for _, data := range inputs {
		e := testEngine(t, vecKenc, vecKmac)

		var protoErr ProtocolError
		if _, err := e.Decipher(data); !errors.As(err, &protoErr) {
			t.Errorf("Decipher(%X): %v, want ProtocolError", data, err)
		}
		if e.Enabled() {
			t.Errorf("engine still enabled after bad indicator %X", data)
		}
	}
}

func TestDecipherBadPaddingDisables(t *testing.T) {
	card := testEngine(t, vecKenc, vecKmac)

	// Encrypt a block that cannot carry valid ISO padding.
	encBlock := newAESBlock(t, vecKenc)
	iv := crypto.SSCIV(encBlock, card.sscRsp)
	ct, err := crypto.EncryptCBC(encBlock, iv, bytes.Repeat([]byte{0x00}, 16))
	if err != nil {
		t.Fatalf("EncryptCBC: %v", err)
	}

	var protoErr ProtocolError
	if _, err := card.Decipher(append([]byte{0x01}, ct...)); !errors.As(err, &protoErr) {
		t.Errorf("Decipher of unpadded plaintext: %v, want ProtocolError", err)
	}
	if card.Enabled() {
		t.Error("engine still enabled after padding failure")
	}
}

func TestCounterWraparound(t *testing.T) {
	var ssc [16]byte
	for i := range ssc {
		ssc[i] = 0xFF
	}
	incrementCounter(&ssc)
	if ssc != [16]byte{} {
		t.Errorf("increment of all-ones = %X, want zero", ssc)
	}

	// Through the engine: a checksum from the all-ones counter wraps the
	// counter past zero without error.
	e := testEngine(t, vecKenc, vecKmac)
	for i := range e.sscCmd {
		e.sscCmd[i] = 0xFF
	}
	if _, err := e.ComputeChecksum([]byte{0x01}); err != nil {
		t.Fatalf("ComputeChecksum at wraparound: %v", err)
	}
	cmd := e.CommandCounter()
	if cmd[15] != 1 || !bytes.Equal(cmd[:15], make([]byte, 15)) {
		t.Errorf("sscCmd after wraparound = %X, want ...01", cmd)
	}
}

func TestCounterCarryPropagation(t *testing.T) {
	var ssc [16]byte
	ssc[15] = 0xFF
	incrementCounter(&ssc)
	if ssc[14] != 1 || ssc[15] != 0 {
		t.Errorf("carry into next byte failed: %X", ssc)
	}
}

func newAESBlock(t *testing.T, key string) cipher.Block {
	t.Helper()
	k := key16(t, key)
	block, err := aes.NewCipher(k[:])
	if err != nil {
		t.Fatalf("aes.NewCipher: %v", err)
	}
	return block
}
