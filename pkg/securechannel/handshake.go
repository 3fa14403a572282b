package securechannel

import (
	"crypto/rand"
	"fmt"
	"io"

	"github.com/pion/logging"
	"github.com/skythen/apdu"

	"github.com/mwolff-dev/cardchannel/pkg/crypto"
)

// State is the handshake coordinator state.
type State int

const (
	// StateIdle is the initial state; no handshake message has been built.
	StateIdle State = iota
	// StateAwaitingPeerEphemeral means the step-1 request has been built
	// and the coordinator waits for the card's ephemeral key.
	StateAwaitingPeerEphemeral
	// StateEstablished means the handshake completed and the engine holds
	// session keys.
	StateEstablished
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingPeerEphemeral:
		return "AwaitingPeerEphemeral"
	case StateEstablished:
		return "Established"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// HandshakeConfig configures a handshake coordinator.
type HandshakeConfig struct {
	// Identity is the host's static key and certificates. Required.
	Identity *Identity

	// Peer is the card's imported end-entity certificate. Required; its
	// key must live on the same curve as the identity key.
	Peer *PeerCertificate

	// Engine receives the session keys when the handshake completes.
	// Required.
	Engine *Engine

	// Rand is the source for the ephemeral key pair.
	// If nil, crypto/rand is used.
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Handshake runs the two-step GENERAL AUTHENTICATE mutual authentication.
// It moves Idle → AwaitingPeerEphemeral → Established; a failed attempt can
// be restarted with Reset. The coordinator is not safe for concurrent use.
type Handshake struct {
	identity *Identity
	peer     *PeerCertificate
	engine   *Engine
	rand     io.Reader
	log      logging.LeveledLogger

	state State
}

// NewHandshake validates the configuration and creates an idle coordinator.
func NewHandshake(config HandshakeConfig) (*Handshake, error) {
	if config.Identity == nil || config.Peer == nil || config.Engine == nil {
		return nil, ConfigurationError{Message: "handshake requires an identity, a peer certificate and an engine"}
	}
	if config.Identity.CurveID() != config.Peer.CurveID() {
		return nil, ConfigurationError{
			Message: fmt.Sprintf("identity key on %s but peer key on %s",
				config.Identity.CurveID(), config.Peer.CurveID()),
		}
	}

	h := &Handshake{
		identity: config.Identity,
		peer:     config.Peer,
		engine:   config.Engine,
		rand:     config.Rand,
		state:    StateIdle,
	}
	if h.rand == nil {
		h.rand = rand.Reader
	}
	if config.LoggerFactory != nil {
		h.log = config.LoggerFactory.NewLogger("handshake")
	}
	return h, nil
}

// State returns the current handshake state.
func (h *Handshake) State() State {
	return h.state
}

// Reset returns the coordinator to Idle so the handshake can be rerun. The
// engine keeps its previous keys until Complete succeeds again.
func (h *Handshake) Reset() {
	h.state = StateIdle
}

// BuildStep1 builds the first mutual-authentication command carrying the
// host's holder reference as 0x7C{0xC3{CHR}}. No cryptography happens yet;
// the call is side-effect free and may be repeated.
func (h *Handshake) BuildStep1() apdu.Capdu {
	h.state = StateAwaitingPeerEphemeral
	chr := h.identity.HolderReference()

	if h.log != nil {
		h.log.Debugf("step 1: announcing holder reference %s", chr)
	}
	return generalAuthenticate(true, encodeHolderReference(chr))
}

// Complete consumes the card's step-1 response and finishes the mutual
// authentication:
//
//  1. the response status must be success,
//  2. the payload must parse as 0x7C{0x85{point}},
//  3. the point must lie on the identity key's curve,
//  4. a fresh ephemeral key pair is generated,
//  5. k1 = ECDH(ephemeral, peer static), k2 = ECDH(static, peer ephemeral),
//  6. the session keys are derived from k1 || k2 and installed in the
//     engine with sscCmd = 1 and sscRsp = 0,
//  7. the returned command carries the host's ephemeral point as
//     0x7C{0x85{point}}.
//
// Failures before key derivation leave the engine untouched; ephemeral key
// material from a failed attempt is discarded.
func (h *Handshake) Complete(response apdu.Rapdu) (apdu.Capdu, error) {
	if h.state != StateAwaitingPeerEphemeral {
		return apdu.Capdu{}, ProtocolError{
			Message: fmt.Sprintf("handshake completion in state %s", h.state),
		}
	}

	if !response.IsSuccess() {
		return apdu.Capdu{}, ProtocolError{Message: "unexpected status"}
	}

	peerPoint, err := parseEphemeralKey(response.Data)
	if err != nil {
		return apdu.Capdu{}, err
	}

	curve := h.identity.CurveID()
	if len(peerPoint) != curve.PointSize() {
		return apdu.Capdu{}, CryptoValidationError{
			Message: fmt.Sprintf("peer ephemeral key is not a %s point", curve),
		}
	}
	if _, _, err := crypto.DecodePoint(curve, peerPoint); err != nil {
		return apdu.Capdu{}, CryptoValidationError{Message: "peer ephemeral key rejected", Cause: err}
	}

	ephemeral, err := crypto.GenerateKeyPairFrom(h.rand, curve)
	if err != nil {
		return apdu.Capdu{}, CryptoValidationError{Message: "ephemeral key generation failed", Cause: err}
	}

	k1, err := crypto.ECDH(ephemeral, h.peer.PublicKey())
	if err != nil {
		return apdu.Capdu{}, CryptoValidationError{Message: "ECDH with peer static key failed", Cause: err}
	}
	k2, err := crypto.ECDH(h.identity.key, peerPoint)
	if err != nil {
		return apdu.Capdu{}, CryptoValidationError{Message: "ECDH with peer ephemeral key failed", Cause: err}
	}

	keys, err := DeriveSessionKeys(k1, k2)
	if err != nil {
		return apdu.Capdu{}, err
	}

	if err := h.engine.activate(keys); err != nil {
		return apdu.Capdu{}, err
	}

	h.state = StateEstablished
	if h.log != nil {
		h.log.Infof("trusted channel established with %s", h.peer.Certificate().CHR)
	}

	return generalAuthenticate(false, encodeEphemeralKey(ephemeral.PublicKey())), nil
}
