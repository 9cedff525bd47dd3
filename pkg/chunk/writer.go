package chunk

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/Faultbox/pofconv/pkg/encoding"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

// Writer is a little-endian sink backed by a growable byte slice.
// Sizes are patched in place, so chunks can be written before their
// length is known.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the written data.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the number of bytes written.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Write appends raw bytes. It never fails.
func (w *Writer) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Uint8 writes an unsigned byte.
func (w *Writer) Uint8(v uint8) {
	w.buf = append(w.buf, v)
}

// Int8 writes a signed byte.
func (w *Writer) Int8(v int8) {
	w.Uint8(uint8(v))
}

// Uint16 writes a little-endian uint16.
func (w *Writer) Uint16(v uint16) {
	w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
}

// Int16 writes a little-endian int16.
func (w *Writer) Int16(v int16) {
	w.Uint16(uint16(v))
}

// Uint32 writes a little-endian uint32.
func (w *Writer) Uint32(v uint32) {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
}

// Int32 writes a little-endian int32.
func (w *Writer) Int32(v int32) {
	w.Uint32(uint32(v))
}

// Int writes an int as int32.
func (w *Writer) Int(v int) {
	w.Int32(int32(v))
}

// Float32 writes an IEEE-754 float.
func (w *Writer) Float32(v float32) {
	w.Uint32(math.Float32bits(v))
}

// Vec3 writes three floats.
func (w *Writer) Vec3(v pm.Vec3) {
	w.Float32(v.X)
	w.Float32(v.Y)
	w.Float32(v.Z)
}

// String writes an int32 length and the Windows-1252 bytes, without a terminator.
func (w *Writer) String(s string) {
	b := encoding.EncodeLegacy(s)
	w.Int(len(b))
	w.buf = append(w.buf, b...)
}

// Int32s writes each value as int32.
func (w *Writer) Int32s(vs []int32) {
	for _, v := range vs {
		w.Int32(v)
	}
}

// PutUint32At overwrites 4 bytes at off.
func (w *Writer) PutUint32At(off int, v uint32) error {
	if off < 0 || off+4 > len(w.buf) {
		return fmt.Errorf("patch offset %d outside %d written bytes", off, len(w.buf))
	}
	binary.LittleEndian.PutUint32(w.buf[off:], v)
	return nil
}

// WriteHeader writes a chunk header verbatim.
func (w *Writer) WriteHeader(h Header) {
	w.buf = append(w.buf, h.Tag[:]...)
	w.Uint32(h.Size)
}

// Begin writes tag and a placeholder size and returns a mark for End.
func (w *Writer) Begin(tag Tag) int {
	w.WriteHeader(Header{Tag: tag})
	return len(w.buf)
}

// End patches the size of the chunk started at mark with the number of
// payload bytes written since.
func (w *Writer) End(mark int) error {
	if mark < HeaderSize || mark > len(w.buf) {
		return fmt.Errorf("invalid chunk mark %d", mark)
	}
	return w.PutUint32At(mark-4, uint32(len(w.buf)-mark))
}

// WriteChunk writes a framed chunk whose payload is produced by body.
func (w *Writer) WriteChunk(tag Tag, body func(w *Writer)) error {
	mark := w.Begin(tag)
	body(w)
	return w.End(mark)
}
