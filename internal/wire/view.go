// Package wire holds the fixed binary layout of capture records and a bounds-checked
// view for reading them.
package wire

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/tracekit/internal/core"
)

// View is a read-only window over a capture buffer. Every accessor fails closed with
// core.ErrOutOfRange instead of panicking on a short buffer.
type View struct {
	buf []byte
}

// NewView wraps buf without copying.
func NewView(buf []byte) View {
	return View{buf: buf}
}

// Len returns the number of bytes in the view.
func (v View) Len() int {
	return len(v.buf)
}

func (v View) check(off, n int) error {
	if off < 0 || n < 0 || off > len(v.buf)-n {
		return fmt.Errorf("%w: offset=%d size=%d len=%d", core.ErrOutOfRange, off, n, len(v.buf))
	}
	return nil
}

// U8 reads one byte.
func (v View) U8(off int) (uint8, error) {
	if err := v.check(off, 1); err != nil {
		return 0, err
	}
	return v.buf[off], nil
}

// U16BE reads a big-endian uint16.
func (v View) U16BE(off int) (uint16, error) {
	if err := v.check(off, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(v.buf[off:]), nil
}

// U16HighLow reads two bytes stored high byte first and combines them as low|high<<8.
// Log records store their length this way even though their marker is little-endian.
func (v View) U16HighLow(off int) (uint16, error) {
	if err := v.check(off, 2); err != nil {
		return 0, err
	}
	high, low := v.buf[off], v.buf[off+1]
	return uint16(low) | uint16(high)<<8, nil
}

// U32BE reads a big-endian uint32.
func (v View) U32BE(off int) (uint32, error) {
	if err := v.check(off, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(v.buf[off:]), nil
}

// U32LE reads a little-endian uint32.
func (v View) U32LE(off int) (uint32, error) {
	if err := v.check(off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(v.buf[off:]), nil
}

// Slice returns buf[off:off+n] without copying.
func (v View) Slice(off, n int) ([]byte, error) {
	if err := v.check(off, n); err != nil {
		return nil, err
	}
	return v.buf[off : off+n], nil
}

// Clip returns up to n bytes starting at off, stopping at the end of the buffer.
// It fails only when off itself is outside the buffer.
func (v View) Clip(off, n int) ([]byte, error) {
	if off < 0 || off > len(v.buf) || n < 0 {
		return nil, fmt.Errorf("%w: offset=%d len=%d", core.ErrOutOfRange, off, len(v.buf))
	}
	end := off + n
	if end > len(v.buf) {
		end = len(v.buf)
	}
	return v.buf[off:end], nil
}
