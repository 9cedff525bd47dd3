package chunk

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/Faultbox/pofconv/pkg/encoding"
	pm "github.com/Faultbox/pofconv/pkg/math"
)

// ErrIncompleteData is returned when a read would consume more bytes than remain.
var ErrIncompleteData = errors.New("incomplete data")

// Reader is a little-endian cursor over a byte slice.
//
// The first failed read records an error that wraps ErrIncompleteData;
// every later read returns a zero value. Callers check Err once per record.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader returns a Reader positioned at the start of data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first read error, if any.
func (r *Reader) Err() error {
	return r.err
}

// Pos returns the cursor offset.
func (r *Reader) Pos() int {
	return r.off
}

// Len returns the total number of bytes in the source.
func (r *Reader) Len() int {
	return len(r.data)
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Seek moves the cursor to an absolute offset within the source.
func (r *Reader) Seek(off int) error {
	if off < 0 || off > len(r.data) {
		r.fail(fmt.Errorf("%w: seek to %d outside %d bytes", ErrIncompleteData, off, len(r.data)))
		return r.err
	}
	r.off = off
	return nil
}

// Skip advances the cursor by exactly n bytes.
func (r *Reader) Skip(n int) {
	r.take(n)
}

// Bytes returns the next n bytes. The slice aliases the source.
func (r *Reader) Bytes(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	return b[:n:n]
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.Remaining() {
		r.fail(fmt.Errorf("%w: need %d bytes at offset %d, %d remain", ErrIncompleteData, n, r.off, r.Remaining()))
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

// Uint8 reads an unsigned byte.
func (r *Reader) Uint8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

// Int8 reads a signed byte.
func (r *Reader) Int8() int8 {
	return int8(r.Uint8())
}

// Uint16 reads a little-endian uint16.
func (r *Reader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

// Int16 reads a little-endian int16.
func (r *Reader) Int16() int16 {
	return int16(r.Uint16())
}

// Uint32 reads a little-endian uint32.
func (r *Reader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// Int32 reads a little-endian int32.
func (r *Reader) Int32() int32 {
	return int32(r.Uint32())
}

// Float32 reads a little-endian IEEE-754 float.
func (r *Reader) Float32() float32 {
	return math.Float32frombits(r.Uint32())
}

// Vec3 reads three floats.
func (r *Reader) Vec3() pm.Vec3 {
	x := r.Float32()
	y := r.Float32()
	z := r.Float32()
	return pm.Vec3{X: x, Y: y, Z: z}
}

// String reads an int32 length followed by that many Windows-1252 bytes.
// A non-positive length yields the empty string.
func (r *Reader) String() string {
	n := r.Int32()
	if n <= 0 {
		return ""
	}
	b := r.take(int(n))
	if b == nil {
		return ""
	}
	return encoding.DecodeLegacy(b)
}

// Count reads an int32 element count and checks that count elements of at
// least minSize bytes each could still fit in the source.
func (r *Reader) Count(minSize int) int {
	n := r.Int32()
	if r.err != nil {
		return 0
	}
	if n < 0 {
		r.fail(fmt.Errorf("%w: negative count %d at offset %d", ErrIncompleteData, n, r.off-4))
		return 0
	}
	if minSize > 0 && int64(n)*int64(minSize) > int64(r.Remaining()) {
		r.fail(fmt.Errorf("%w: count %d of %d-byte elements exceeds %d remaining bytes",
			ErrIncompleteData, n, minSize, r.Remaining()))
		return 0
	}
	return int(n)
}

// Int32s reads n int32 values.
func (r *Reader) Int32s(n int) []int32 {
	out := make([]int32, n)
	for i := range out {
		out[i] = r.Int32()
	}
	return out
}

// ReadHeader reads a chunk header. An unknown tag is not an error;
// use Header.Tag.Known to decide whether to skip.
func (r *Reader) ReadHeader() (Header, error) {
	var h Header
	b := r.take(4)
	if b == nil {
		return h, r.err
	}
	copy(h.Tag[:], b)
	h.Size = r.Uint32()
	return h, r.err
}

// SkipChunk advances the cursor by exactly size bytes.
func (r *Reader) SkipChunk(size uint32) error {
	r.take(int(size))
	return r.err
}
