// Package transport carries APDUs between the secure channel and a physical
// card reader. The PC/SC implementation satisfies securechannel.Transmitter.
package transport

import (
	"errors"
	"fmt"

	"github.com/ebfe/scard"
	"github.com/pion/logging"
	"github.com/skythen/apdu"
)

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed transport.
	ErrClosed = errors.New("transport: closed")

	// ErrNoReaders is returned when no PC/SC reader is attached.
	ErrNoReaders = errors.New("transport: no readers found")

	// ErrShortResponse is returned when the card answers with fewer than
	// the two status bytes.
	ErrShortResponse = errors.New("transport: response shorter than a status word")
)

// PCSCConfig configures a PC/SC connection.
type PCSCConfig struct {
	// ReaderIndex selects the reader from the system's reader list,
	// 0-based. Defaults to the first reader.
	ReaderIndex int

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// PCSC is a card connection over the platform's PC/SC stack.
type PCSC struct {
	ctx    *scard.Context
	card   *scard.Card
	reader string
	log    logging.LeveledLogger
}

// ListReaders returns the names of the attached PC/SC readers.
func ListReaders() ([]string, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("transport: establish PC/SC context: %w", err)
	}
	defer ctx.Release()

	readers, err := ctx.ListReaders()
	if err != nil {
		return nil, fmt.Errorf("transport: list readers: %w", err)
	}
	return readers, nil
}

// ConnectPCSC connects to the card in the configured reader with shared
// access and any available protocol.
func ConnectPCSC(config PCSCConfig) (*PCSC, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("transport: establish PC/SC context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		ctx.Release()
		if err != nil {
			return nil, fmt.Errorf("transport: list readers: %w", err)
		}
		return nil, ErrNoReaders
	}
	if config.ReaderIndex < 0 || config.ReaderIndex >= len(readers) {
		ctx.Release()
		return nil, fmt.Errorf("transport: reader index %d out of range (0..%d)",
			config.ReaderIndex, len(readers)-1)
	}

	reader := readers[config.ReaderIndex]
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolAny)
	if err != nil {
		ctx.Release()
		return nil, fmt.Errorf("transport: connect to %q: %w", reader, err)
	}

	p := &PCSC{ctx: ctx, card: card, reader: reader}
	if config.LoggerFactory != nil {
		p.log = config.LoggerFactory.NewLogger("pcsc")
	}
	if p.log != nil {
		p.log.Infof("connected to reader %q", reader)
	}
	return p, nil
}

// Reader returns the name of the connected reader.
func (p *PCSC) Reader() string {
	return p.reader
}

// Transmit sends a command APDU to the card and returns the parsed response.
func (p *PCSC) Transmit(capdu apdu.Capdu) (apdu.Rapdu, error) {
	if p.card == nil {
		return apdu.Rapdu{}, ErrClosed
	}

	cmd, err := capdu.Bytes()
	if err != nil {
		return apdu.Rapdu{}, fmt.Errorf("transport: encode command: %w", err)
	}

	raw, err := p.card.Transmit(cmd)
	if err != nil {
		return apdu.Rapdu{}, fmt.Errorf("transport: transmit: %w", err)
	}

	resp, err := parseResponse(raw)
	if err != nil {
		return apdu.Rapdu{}, err
	}

	if p.log != nil {
		p.log.Tracef("exchanged %d command bytes for %d response bytes, SW %02X%02X",
			len(capdu.Data), len(resp.Data), resp.SW1, resp.SW2)
	}
	return resp, nil
}

// Close disconnects from the card and releases the PC/SC context.
func (p *PCSC) Close() error {
	var firstErr error
	if p.card != nil {
		if err := p.card.Disconnect(scard.LeaveCard); err != nil {
			firstErr = fmt.Errorf("transport: disconnect: %w", err)
		}
		p.card = nil
	}
	if p.ctx != nil {
		if err := p.ctx.Release(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("transport: release context: %w", err)
		}
		p.ctx = nil
	}
	return firstErr
}

// parseResponse splits a raw card response into data field and status word.
func parseResponse(raw []byte) (apdu.Rapdu, error) {
	if len(raw) < 2 {
		return apdu.Rapdu{}, ErrShortResponse
	}
	return apdu.Rapdu{
		Data: raw[:len(raw)-2],
		SW1:  raw[len(raw)-2],
		SW2:  raw[len(raw)-1],
	}, nil
}
