package tlv

import "bytes"

// Writer builds nested TLV structures. Constructed elements buffer their
// children so definite lengths can be emitted once the element is closed.
type Writer struct {
	stack []*frame
}

type frame struct {
	tag Tag
	buf bytes.Buffer
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	return &Writer{stack: []*frame{{}}}
}

func (w *Writer) top() *frame {
	return w.stack[len(w.stack)-1]
}

// PutPrimitive appends a primitive element with the given tag and value.
func (w *Writer) PutPrimitive(tag Tag, value []byte) {
	buf := &w.top().buf
	buf.Write(tag.Bytes())
	buf.Write(encodeLength(len(value)))
	buf.Write(value)
}

// StartConstructed opens a constructed element. Every call must be matched by
// EndConstructed.
func (w *Writer) StartConstructed(tag Tag) {
	w.stack = append(w.stack, &frame{tag: tag})
}

// EndConstructed closes the innermost constructed element.
func (w *Writer) EndConstructed() error {
	if len(w.stack) < 2 {
		return ErrUnbalancedWriter
	}

	top := w.top()
	w.stack = w.stack[:len(w.stack)-1]

	buf := &w.top().buf
	buf.Write(top.tag.Bytes())
	buf.Write(encodeLength(top.buf.Len()))
	buf.Write(top.buf.Bytes())
	return nil
}

// Bytes returns the encoded structure. All constructed elements must have
// been closed.
func (w *Writer) Bytes() ([]byte, error) {
	if len(w.stack) != 1 {
		return nil, ErrUnbalancedWriter
	}
	return w.top().buf.Bytes(), nil
}

// Encode is a convenience helper encoding a single element.
func Encode(tag Tag, value []byte) []byte {
	out := make([]byte, 0, 2+3+len(value))
	out = append(out, tag.Bytes()...)
	out = append(out, encodeLength(len(value))...)
	return append(out, value...)
}

// encodeLength emits a definite BER length of up to two octets.
func encodeLength(n int) []byte {
	switch {
	case n < 0x80:
		return []byte{byte(n)}
	case n <= 0xFF:
		return []byte{0x81, byte(n)}
	default:
		return []byte{0x82, byte(n >> 8), byte(n)}
	}
}
