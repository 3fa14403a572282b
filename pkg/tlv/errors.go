package tlv

import "errors"

// Errors returned while encoding or decoding TLV structures.
var (
	// ErrTruncated is returned when an element claims more content than the
	// input provides.
	ErrTruncated = errors.New("tlv: truncated element")

	// ErrTagTooLong is returned for tag numbers needing more than two octets.
	ErrTagTooLong = errors.New("tlv: tag numbers above two octets are not supported")

	// ErrIndefiniteLength is returned for BER indefinite-length encodings,
	// which the card protocols never use.
	ErrIndefiniteLength = errors.New("tlv: indefinite lengths are not supported")

	// ErrLengthTooLong is returned for length fields wider than two octets.
	ErrLengthTooLong = errors.New("tlv: length fields above two octets are not supported")

	// ErrNotConstructed is returned when children are requested from a
	// primitive element.
	ErrNotConstructed = errors.New("tlv: element is not constructed")

	// ErrUnbalancedWriter is returned when a writer is finalized with open
	// constructed elements, or closed without one.
	ErrUnbalancedWriter = errors.New("tlv: unbalanced constructed elements")
)
