// Package binary implements the primitive encodings of the WebAssembly
// binary format: LEB128 integers, names, vectors and length-prefixed blocks.
package binary

import (
	"encoding/binary"
	"fmt"

	"fortio.org/safecast"
)

// Writer appends encoded values to a byte slice. The first length that does
// not fit a u32 is kept in Err; later writes still happen but the output
// must be discarded.
type Writer struct {
	buf []byte
	err error
}

// AppendTo returns a Writer that appends to dst
func AppendTo(dst []byte) *Writer { return &Writer{buf: dst} }

// Bytes returns the encoded bytes
func (w *Writer) Bytes() []byte { return w.buf }

// Err returns the first encoding error
func (w *Writer) Err() error { return w.err }

func (w *Writer) Byte(b byte) { w.buf = append(w.buf, b) }

func (w *Writer) Raw(b []byte) { w.buf = append(w.buf, b...) }

// U32 appends an unsigned LEB128 value
func (w *Writer) U32(v uint32) {
	w.buf = AppendU32(w.buf, v)
}

// S32 appends a signed LEB128 value
func (w *Writer) S32(v int32) {
	w.buf = AppendS64(w.buf, int64(v))
}

// S64 appends a signed LEB128 value
func (w *Writer) S64(v int64) {
	w.buf = AppendS64(w.buf, v)
}

// Fixed32 appends a little-endian u32 (magic and version)
func (w *Writer) Fixed32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// Len appends n as a u32 count or size
func (w *Writer) Len(n int) {
	v, err := safecast.Conv[uint32](n)
	if err != nil && w.err == nil {
		w.err = fmt.Errorf("length %d: %w", n, err)
	}
	w.U32(v)
}

// Name appends a length-prefixed UTF-8 string
func (w *Writer) Name(s string) {
	w.Len(len(s))
	w.buf = append(w.buf, s...)
}

// Sized appends the bytes written by fill, prefixed with their length
func (w *Writer) Sized(fill func(*Writer)) {
	var sub Writer
	fill(&sub)
	if sub.err != nil && w.err == nil {
		w.err = sub.err
	}
	w.Len(len(sub.buf))
	w.Raw(sub.buf)
}

// Section appends a section with id whose contents are written by fill
func (w *Writer) Section(id byte, fill func(*Writer)) {
	w.Byte(id)
	w.Sized(fill)
}

// AppendU32 appends v in unsigned LEB128
func AppendU32(dst []byte, v uint32) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// AppendS64 appends v in signed LEB128
func AppendS64(dst []byte, v int64) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(dst, b)
		}
		dst = append(dst, b|0x80)
	}
}
