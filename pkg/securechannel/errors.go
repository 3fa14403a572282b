package securechannel

import "fmt"

// ConfigurationError results from invalid identity or peer certificate
// material at setup time. It is fatal: the object under construction is not
// usable and the error is never retried automatically.
type ConfigurationError struct {
	Message string
	Cause   error
}

func (e ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("securechannel: configuration error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("securechannel: configuration error: %s", e.Message)
}

func (e ConfigurationError) Unwrap() error {
	return e.Cause
}

// ProtocolError results from an unexpected status word, a malformed
// handshake message, a wrong padding indicator or bad ISO padding.
type ProtocolError struct {
	Message string
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("securechannel: protocol error: %s", e.Message)
}

// CryptoValidationError results from peer key material failing mathematical
// validation, such as a public point not lying on the negotiated curve. The
// handshake must be restarted.
type CryptoValidationError struct {
	Message string
	Cause   error
}

func (e CryptoValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("securechannel: crypto validation error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("securechannel: crypto validation error: %s", e.Message)
}

func (e CryptoValidationError) Unwrap() error {
	return e.Cause
}

// SessionStateError results from a protected operation attempted while the
// engine is disabled, either before a handshake or after a checksum or
// decipher failure ended the session.
type SessionStateError struct {
	Message string
}

func (e SessionStateError) Error() string {
	return fmt.Sprintf("securechannel: session state error: %s", e.Message)
}
