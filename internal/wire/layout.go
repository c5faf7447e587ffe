package wire

import (
	"firestige.xyz/tracekit/internal/core"
)

// Offsets shared by both record families, relative to the record start.
const (
	MarkerSize   = 4
	PIDOffset    = 4
	LengthOffset = 5
	// HeaderSize is the number of bytes before the length-counted region.
	HeaderSize = 7
)

// Frame record offsets.
const (
	FrameTagOffset       = 7
	FramePortOffset      = 8
	FrameProtocolOffset  = 9
	FrameDirectionOffset = 10
	FrameSecondsOffset   = 11
	FrameMillisOffset    = 15
	FrameContentOffset   = 17
	// FrameFixedFields is the part of the frame length taken by tag..millis.
	FrameFixedFields = FrameContentOffset - HeaderSize
)

// LogTextOffset is where the log payload text starts.
const LogTextOffset = HeaderSize

// DefaultMaxLength is the largest record length the device writes.
const DefaultMaxLength = 10000

// Layout describes how to recognise and size one record family.
type Layout struct {
	Kind      core.Kind
	Marker    core.Marker
	MinLength int
	MaxLength int
}

// FrameLayout returns the frame family layout.
func FrameLayout() Layout {
	return Layout{
		Kind:      core.KindFrame,
		Marker:    core.FrameMarker,
		MinLength: FrameFixedFields,
		MaxLength: DefaultMaxLength,
	}
}

// LogLayout returns the log family layout.
func LogLayout() Layout {
	return Layout{
		Kind:      core.KindLog,
		Marker:    core.LogMarker,
		MinLength: 1,
		MaxLength: DefaultMaxLength,
	}
}

// ReadMarker reads the 4-byte word at off in this family's byte order.
func (l Layout) ReadMarker(v View, off int) (core.Marker, error) {
	var (
		w   uint32
		err error
	)
	if l.Kind == core.KindFrame {
		w, err = v.U32BE(off)
	} else {
		w, err = v.U32LE(off)
	}
	return core.Marker(w), err
}

// MatchesAt reports whether the family marker starts at off.
func (l Layout) MatchesAt(v View, off int) bool {
	m, err := l.ReadMarker(v, off)
	return err == nil && m == l.Marker
}

// ReadLength reads the declared length of the record starting at off.
func (l Layout) ReadLength(v View, off int) (int, error) {
	var (
		n   uint16
		err error
	)
	if l.Kind == core.KindFrame {
		n, err = v.U16BE(off + LengthOffset)
	} else {
		n, err = v.U16HighLow(off + LengthOffset)
	}
	return int(n), err
}

// RecordEnd returns the offset one past the record that starts at off with length n.
func RecordEnd(off, n int) int {
	return off + HeaderSize + n
}
