package cbor

import "unicode/utf8"

// Valid checks that the next CBOR data item in b is well-formed per
// RFC 8949 and returns the remaining bytes after that item.
// Checks performed:
//   - Structural correctness of arrays, maps, tags, simple values
//   - String UTF-8 validity (for major type 3)
//   - Prohibits reserved additional info values 28, 29, 30
func Valid(b []byte) (rest []byte, err error) {
	return validItem(b, 0)
}

// ValidDocument checks that all items in b are well-formed until the input
// is exhausted.
func ValidDocument(b []byte) error {
	var err error
	for len(b) > 0 {
		b, err = validItem(b, 0)
		if err != nil {
			return err
		}
	}
	return nil
}

// Skip advances past the next item without materializing it.
func Skip(b []byte) ([]byte, error) {
	return validItem(b, 0)
}

func validItem(b []byte, depth int) ([]byte, error) {
	if depth > defaultRecursionLimit {
		return b, ErrRecursion
	}
	if len(b) < 1 {
		return b, ErrShortBytes
	}
	lead := b[0]
	major, arg, indef, p, err := readHeadBytes(b)
	if err != nil {
		return b, err
	}

	switch major {
	case majorTypeUint, majorTypeNegInt:
		return p, nil

	case majorTypeTag:
		return validItem(p, depth+1)

	case majorTypeBytes:
		if indef {
			for {
				if len(p) < 1 {
					return b, ErrShortBytes
				}
				if p[0] == breakByte {
					return p[1:], nil
				}
				sz, q, err := readUintCore(p, majorTypeBytes)
				if err != nil {
					return b, err
				}
				if sz > uint64(len(q)) {
					return b, ErrShortBytes
				}
				p = q[sz:]
			}
		}
		if arg > uint64(len(p)) {
			return b, ErrShortBytes
		}
		return p[arg:], nil

	case majorTypeText:
		if indef {
			for {
				if len(p) < 1 {
					return b, ErrShortBytes
				}
				if p[0] == breakByte {
					return p[1:], nil
				}
				sz, q, err := readUintCore(p, majorTypeText)
				if err != nil {
					return b, err
				}
				if sz > uint64(len(q)) {
					return b, ErrShortBytes
				}
				if !utf8.Valid(q[:sz]) {
					return b, ErrInvalidUTF8
				}
				p = q[sz:]
			}
		}
		if arg > uint64(len(p)) {
			return b, ErrShortBytes
		}
		if !utf8.Valid(p[:arg]) {
			return b, ErrInvalidUTF8
		}
		return p[arg:], nil

	case majorTypeArray:
		if indef {
			for {
				if len(p) < 1 {
					return b, ErrShortBytes
				}
				if p[0] == breakByte {
					return p[1:], nil
				}
				p, err = validItem(p, depth+1)
				if err != nil {
					return b, err
				}
			}
		}
		for i := uint64(0); i < arg; i++ {
			p, err = validItem(p, depth+1)
			if err != nil {
				return b, err
			}
		}
		return p, nil

	case majorTypeMap:
		if indef {
			for {
				if len(p) < 1 {
					return b, ErrShortBytes
				}
				if p[0] == breakByte {
					return p[1:], nil
				}
				p, err = validItem(p, depth+1) // key
				if err != nil {
					return b, err
				}
				p, err = validItem(p, depth+1) // value
				if err != nil {
					return b, err
				}
			}
		}
		for i := uint64(0); i < arg; i++ {
			p, err = validItem(p, depth+1) // key
			if err != nil {
				return b, err
			}
			p, err = validItem(p, depth+1) // value
			if err != nil {
				return b, err
			}
		}
		return p, nil

	default: // majorTypeSimple
		// readHeadBytes already consumed the argument bytes (the float
		// payload or the one-byte simple value) and rejected a stray
		// break. Only the reserved two-byte simple range remains.
		if getAddInfo(lead) == addInfoUint8 && arg < 32 {
			return b, malformed("two-byte simple value below 32", lead)
		}
		return p, nil
	}
}
