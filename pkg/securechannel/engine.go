package securechannel

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"sync"

	"github.com/pkg/errors"

	"github.com/mwolff-dev/cardchannel/pkg/crypto"
)

// Transformer is the per-message cryptographic transform of an established
// secure channel. The software engine below implements it; hardware-backed
// implementations plug into the same interface.
type Transformer interface {
	// Encipher pads and encrypts a command payload, returning the padding
	// indicator 0x01 followed by the ciphertext.
	Encipher(message []byte) ([]byte, error)
	// Decipher decrypts a response payload produced by the peer's encipher
	// and strips the padding.
	Decipher(data []byte) ([]byte, error)
	// ComputeChecksum MACs a command and advances the command counter.
	ComputeChecksum(message []byte) ([]byte, error)
	// VerifyChecksum advances the response counter, MACs the response data
	// and compares against the received checksum. A mismatch disables the
	// engine and is reported through the boolean, not an error.
	VerifyChecksum(data, checksum []byte) (bool, error)
}

// counterSize is the width of the send-sequence counters.
const counterSize = 16

// Engine is the stateful secure messaging transform. It owns the session
// keys, the two 16-byte big-endian send-sequence counters and the enabled
// flag. A fresh Engine is disabled; a successful handshake enables it, and a
// checksum or decipher failure disables it until the next handshake.
//
// Every protected operation mutates counter state, so an Engine must not be
// shared across sessions; the mutex only guards against accidental
// concurrent calls, it does not make interleaved command/response sequences
// meaningful.
type Engine struct {
	mu sync.Mutex

	encBlock cipher.Block
	macBlock cipher.Block

	sscCmd  [counterSize]byte
	sscRsp  [counterSize]byte
	enabled bool
}

var _ Transformer = (*Engine)(nil)

// NewEngine creates a disabled engine. It becomes usable once a handshake
// completes.
func NewEngine() *Engine {
	return &Engine{}
}

// activate installs fresh session keys and resets the counters to the start
// of a cycle: sscCmd = 1, sscRsp = 0.
func (e *Engine) activate(keys SessionKeys) error {
	encBlock, err := aes.NewCipher(keys.Enc[:])
	if err != nil {
		return errors.Wrap(err, "securechannel: create Kenc cipher")
	}
	macBlock, err := aes.NewCipher(keys.Mac[:])
	if err != nil {
		return errors.Wrap(err, "securechannel: create Kmac cipher")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.encBlock = encBlock
	e.macBlock = macBlock
	e.sscCmd = [counterSize]byte{}
	e.sscCmd[counterSize-1] = 1
	e.sscRsp = [counterSize]byte{}
	e.enabled = true
	return nil
}

// Enabled reports whether the engine holds usable session keys.
func (e *Engine) Enabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enabled
}

// CommandCounter returns a copy of the command send-sequence counter.
func (e *Engine) CommandCounter() [counterSize]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sscCmd
}

// ResponseCounter returns a copy of the response send-sequence counter.
func (e *Engine) ResponseCounter() [counterSize]byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sscRsp
}

// Encipher implements Transformer. The command counter is not mutated;
// ComputeChecksum advances it after the full command transform.
func (e *Engine) Encipher(message []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return nil, SessionStateError{Message: "no session keys available"}
	}

	padded := crypto.Pad80(message, crypto.BlockSize)
	iv := crypto.SSCIV(e.encBlock, e.sscCmd)

	ciphertext, err := crypto.EncryptCBC(e.encBlock, iv, padded)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, 1+len(ciphertext))
	out = append(out, 0x01)
	return append(out, ciphertext...), nil
}

// Decipher implements Transformer. A wrong padding indicator or invalid ISO
// padding means deciphering was attempted on data that should already have
// failed checksum verification; the session is disabled and a ProtocolError
// raised.
func (e *Engine) Decipher(data []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return nil, SessionStateError{Message: "no session keys available"}
	}

	if len(data) == 0 || data[0] != 0x01 {
		e.enabled = false
		return nil, ProtocolError{Message: "decipher error"}
	}

	iv := crypto.SSCIV(e.encBlock, e.sscRsp)
	padded, err := crypto.DecryptCBC(e.encBlock, iv, data[1:])
	if err != nil {
		e.enabled = false
		return nil, ProtocolError{Message: "decipher error"}
	}

	plaintext, err := crypto.UnpadISO7816(padded)
	if err != nil {
		e.enabled = false
		return nil, ProtocolError{Message: "decipher error"}
	}
	return plaintext, nil
}

// ComputeChecksum implements Transformer. The command counter advances by
// two after the MAC is computed, covering one full command transform.
func (e *Engine) ComputeChecksum(message []byte) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return nil, SessionStateError{Message: "no session keys available"}
	}

	mac, err := e.checksum(e.sscCmd, message)
	if err != nil {
		return nil, err
	}

	incrementCounter(&e.sscCmd)
	incrementCounter(&e.sscCmd)
	return mac, nil
}

// VerifyChecksum implements Transformer. The response counter advances by
// two before the MAC is checked, because an incoming response is
// authenticated before anything else happens to it. A mismatch silently
// disables the session; subsequent operations fail with SessionStateError.
func (e *Engine) VerifyChecksum(data, checksum []byte) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.enabled {
		return false, SessionStateError{Message: "no session keys available"}
	}

	incrementCounter(&e.sscRsp)
	incrementCounter(&e.sscRsp)

	mac, err := e.checksum(e.sscRsp, data)
	if err != nil {
		return false, err
	}

	e.enabled = subtle.ConstantTimeCompare(mac, checksum) == 1
	return e.enabled, nil
}

// checksum computes the truncated CMAC over ssc || paddedMessage. Callers
// hold the mutex.
func (e *Engine) checksum(ssc [counterSize]byte, message []byte) ([]byte, error) {
	padded := crypto.Pad80(message, crypto.BlockSize)

	input := make([]byte, 0, counterSize+len(padded))
	input = append(input, ssc[:]...)
	input = append(input, padded...)

	return crypto.CMACTrunc8(e.macBlock, input)
}

// incrementCounter performs one big-endian increment over the 16-byte
// counter, carrying toward the most-significant byte and silently wrapping
// past all-ones.
func incrementCounter(ssc *[counterSize]byte) {
	for i := counterSize - 1; i >= 0; i-- {
		ssc[i]++
		if ssc[i] != 0 {
			return
		}
	}
}
