package securechannel

import (
	"github.com/pion/logging"
	"github.com/skythen/apdu"

	"github.com/mwolff-dev/cardchannel/pkg/crypto"
)

// Transmitter sends a command APDU and returns the card's response. The
// PC/SC transport implements it; tests substitute loopbacks.
type Transmitter interface {
	Transmit(capdu apdu.Capdu) (apdu.Rapdu, error)
}

// secured marks class bytes of commands protected by secure messaging.
const claSecureMessaging byte = 0x0C

// ChannelConfig configures a secured channel.
type ChannelConfig struct {
	// Transmitter carries the wrapped traffic. Required.
	Transmitter Transmitter

	// Engine is the established secure messaging engine. Required.
	Engine *Engine

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Channel applies secure messaging to command/response pairs: the command
// data field is enciphered and an 8-byte checksum appended; the response
// checksum is verified before the response data is deciphered. Commands must
// be serialized; the engine's counters order every pair.
type Channel struct {
	transmitter Transmitter
	engine      *Engine
	log         logging.LeveledLogger
}

// NewChannel validates the configuration and creates a channel.
func NewChannel(config ChannelConfig) (*Channel, error) {
	if config.Transmitter == nil || config.Engine == nil {
		return nil, ConfigurationError{Message: "channel requires a transmitter and an engine"}
	}

	c := &Channel{
		transmitter: config.Transmitter,
		engine:      config.Engine,
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("channel")
	}
	return c, nil
}

// Transmit wraps the command, sends it and unwraps the response.
func (c *Channel) Transmit(capdu apdu.Capdu) (apdu.Rapdu, error) {
	wrapped, err := c.wrap(capdu)
	if err != nil {
		return apdu.Rapdu{}, err
	}

	resp, err := c.transmitter.Transmit(wrapped)
	if err != nil {
		return apdu.Rapdu{}, err
	}

	return c.unwrap(resp)
}

// wrap enciphers the command data field and appends the command checksum.
// The checksum covers the secure-messaging header followed by the enciphered
// data field.
func (c *Channel) wrap(capdu apdu.Capdu) (apdu.Capdu, error) {
	wrapped := capdu
	wrapped.Cla = capdu.Cla | claSecureMessaging

	var enciphered []byte
	if len(capdu.Data) > 0 {
		var err error
		enciphered, err = c.engine.Encipher(capdu.Data)
		if err != nil {
			return apdu.Capdu{}, err
		}
	}

	macInput := make([]byte, 0, 4+len(enciphered))
	macInput = append(macInput, wrapped.Cla, wrapped.Ins, wrapped.P1, wrapped.P2)
	macInput = append(macInput, enciphered...)

	mac, err := c.engine.ComputeChecksum(macInput)
	if err != nil {
		return apdu.Capdu{}, err
	}

	wrapped.Data = append(enciphered, mac...)

	if c.log != nil {
		c.log.Tracef("wrapped %d-byte data field into %d bytes", len(capdu.Data), len(wrapped.Data))
	}
	return wrapped, nil
}

// unwrap verifies the response checksum and deciphers the response data. The
// checksum covers the enciphered payload followed by the status word.
func (c *Channel) unwrap(resp apdu.Rapdu) (apdu.Rapdu, error) {
	if len(resp.Data) < crypto.ChecksumSize {
		return apdu.Rapdu{}, ProtocolError{Message: "response carries no checksum"}
	}

	payload := resp.Data[:len(resp.Data)-crypto.ChecksumSize]
	checksum := resp.Data[len(resp.Data)-crypto.ChecksumSize:]

	macInput := make([]byte, 0, len(payload)+2)
	macInput = append(macInput, payload...)
	macInput = append(macInput, resp.SW1, resp.SW2)

	ok, err := c.engine.VerifyChecksum(macInput, checksum)
	if err != nil {
		return apdu.Rapdu{}, err
	}
	if !ok {
		if c.log != nil {
			c.log.Warnf("response checksum mismatch, session disabled")
		}
		return apdu.Rapdu{}, CryptoValidationError{Message: "response checksum mismatch"}
	}

	var plaintext []byte
	if len(payload) > 0 {
		plaintext, err = c.engine.Decipher(payload)
		if err != nil {
			return apdu.Rapdu{}, err
		}
	}

	return apdu.Rapdu{Data: plaintext, SW1: resp.SW1, SW2: resp.SW2}, nil
}
