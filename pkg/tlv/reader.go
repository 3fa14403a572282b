package tlv

// Element is a decoded TLV element. Value aliases the input buffer; callers
// must copy it if the buffer is reused.
type Element struct {
	Tag   Tag
	Value []byte
}

// Constructed reports whether the element holds nested elements.
func (e Element) Constructed() bool {
	return e.Tag.Constructed()
}

// Children parses the element's value as a sequence of nested elements.
func (e Element) Children() ([]Element, error) {
	if !e.Constructed() {
		return nil, ErrNotConstructed
	}
	return Parse(e.Value)
}

// Find returns the first child with the given tag.
func (e Element) Find(tag Tag) (Element, bool) {
	children, err := e.Children()
	if err != nil {
		return Element{}, false
	}
	return Find(children, tag)
}

// Parse decodes data as a sequence of TLV elements consuming the whole input.
func Parse(data []byte) ([]Element, error) {
	var elements []Element

	for len(data) > 0 {
		tag, n, err := parseTag(data)
		if err != nil {
			return nil, err
		}
		data = data[n:]

		length, n, err := parseLength(data)
		if err != nil {
			return nil, err
		}
		data = data[n:]

		if length > len(data) {
			return nil, ErrTruncated
		}

		elements = append(elements, Element{Tag: tag, Value: data[:length]})
		data = data[length:]
	}

	return elements, nil
}

// ParseOne decodes exactly one element; trailing bytes are an error.
func ParseOne(data []byte) (Element, error) {
	elements, err := Parse(data)
	if err != nil {
		return Element{}, err
	}
	if len(elements) != 1 {
		return Element{}, ErrTruncated
	}
	return elements[0], nil
}

// Find returns the first element with the given tag.
func Find(elements []Element, tag Tag) (Element, bool) {
	for _, e := range elements {
		if e.Tag == tag {
			return e, true
		}
	}
	return Element{}, false
}

// parseLength decodes a definite BER length and returns it together with the
// number of octets consumed.
func parseLength(data []byte) (int, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrTruncated
	}

	first := data[0]
	switch {
	case first < 0x80:
		return int(first), 1, nil
	case first == 0x80:
		return 0, 0, ErrIndefiniteLength
	case first == 0x81:
		if len(data) < 2 {
			return 0, 0, ErrTruncated
		}
		return int(data[1]), 2, nil
	case first == 0x82:
		if len(data) < 3 {
			return 0, 0, ErrTruncated
		}
		return int(data[1])<<8 | int(data[2]), 3, nil
	default:
		return 0, 0, ErrLengthTooLong
	}
}
