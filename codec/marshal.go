package cbor

import "bytes"

// Marshal encodes v with a default-configured Encoder and returns the item
// bytes.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalCanonical encodes v in canonical style: map keys and set members
// sorted by encoded bytes, floats in the narrowest lossless width.
func MarshalCanonical(v any) ([]byte, error) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.SetCanonical(true)
	if err := e.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes exactly one item from b. Trailing bytes after the item
// are an error.
func Unmarshal(b []byte) (any, error) {
	r := bytes.NewReader(b)
	v, err := NewDecoder(r).Decode()
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, DecodeError{Reason: "trailing bytes after item"}
	}
	return v, nil
}
