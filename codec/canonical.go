package cbor

import (
	"bytes"
	"sort"
)

// Canonical encoding sorts map entries and set members by the CBOR bytes of
// the key. Each key is encoded into a pooled scratch buffer with the same
// encoder (so nested canonical rules apply inside keys too), the collected
// rows are sorted bytewise, and the raw key bytes are spliced into the
// output ahead of each value.

// encodeDetached encodes v into a borrowed buffer instead of the current
// item buffer. The caller must PutByteBuffer the returned buffer.
func (e *Encoder) encodeDetached(v any) (*ByteBuffer, error) {
	saved := e.buf
	bb := GetByteBuffer()
	e.buf = bb
	err := e.encodeItem(v)
	e.buf = saved
	if err != nil {
		PutByteBuffer(bb)
		return nil, err
	}
	return bb, nil
}

type canonicalRow struct {
	keyEnc *ByteBuffer
	val    any
	hasVal bool
}

func putRows(rows []canonicalRow) {
	for i := range rows {
		PutByteBuffer(rows[i].keyEnc)
	}
}

// encodeCanonicalPairs emits a map head plus entries in canonical order.
// iter invokes emit once per key/value pair.
func (e *Encoder) encodeCanonicalPairs(n uint64, iter func(emit func(k, v any) error) error) error {
	rows := make([]canonicalRow, 0, n)
	err := iter(func(k, v any) error {
		bb, err := e.encodeDetached(k)
		if err != nil {
			return err
		}
		rows = append(rows, canonicalRow{keyEnc: bb, val: v, hasVal: true})
		return nil
	})
	if err != nil {
		putRows(rows)
		return err
	}
	sort.Slice(rows, func(i, j int) bool {
		return bytes.Compare(rows[i].keyEnc.Bytes(), rows[j].keyEnc.Bytes()) < 0
	})
	e.buf.b = AppendHead(e.buf.b, majorTypeMap, n)
	for i := range rows {
		e.buf.b = append(e.buf.b, rows[i].keyEnc.Bytes()...)
		if err := e.encodeItem(rows[i].val); err != nil {
			putRows(rows)
			return err
		}
	}
	putRows(rows)
	return nil
}

// encodeCanonicalMembers emits an array head plus members in canonical
// order; the set tag is the caller's concern.
func (e *Encoder) encodeCanonicalMembers(n uint64, iter func(emit func(m any) error) error) error {
	rows := make([]canonicalRow, 0, n)
	err := iter(func(m any) error {
		bb, err := e.encodeDetached(m)
		if err != nil {
			return err
		}
		rows = append(rows, canonicalRow{keyEnc: bb})
		return nil
	})
	if err != nil {
		putRows(rows)
		return err
	}
	sort.Slice(rows, func(i, j int) bool {
		return bytes.Compare(rows[i].keyEnc.Bytes(), rows[j].keyEnc.Bytes()) < 0
	})
	e.buf.b = AppendHead(e.buf.b, majorTypeArray, n)
	for i := range rows {
		e.buf.b = append(e.buf.b, rows[i].keyEnc.Bytes()...)
	}
	putRows(rows)
	return nil
}
