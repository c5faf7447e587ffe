// Package core defines core types with zero external dependencies.
package core

import (
	"fmt"
	"time"
)

// TimestampLayout is how entry timestamps are rendered.
const TimestampLayout = "2006-01-02 15:04:05.000"

// Marker is the 32-bit magic word that starts every record.
type Marker uint32

const (
	// FrameMarker starts a frame record, stored big-endian.
	FrameMarker Marker = 0x22222223
	// LogMarker starts a log record, stored little-endian.
	LogMarker Marker = 0x22222222
)

// Kind identifies a record family. It is selected once, by marker, in the scanner.
type Kind uint8

const (
	KindFrame Kind = iota + 1
	KindLog
)

func (k Kind) String() string {
	switch k {
	case KindFrame:
		return "frame"
	case KindLog:
		return "log"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ParseKind maps a family name from configuration to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "frame", "frames":
		return KindFrame, nil
	case "log", "logs":
		return KindLog, nil
	default:
		return 0, fmt.Errorf("%w: unknown record family %q", ErrConfigInvalid, s)
	}
}

// Direction is the transfer direction of a frame record.
type Direction uint8

const (
	DirectionOut Direction = 0
	DirectionIn  Direction = 1
)

// NormalizeDirection maps out-of-set values (zero-filled or corrupt captures) to In.
func NormalizeDirection(v uint8) Direction {
	switch Direction(v) {
	case DirectionOut, DirectionIn:
		return Direction(v)
	default:
		return DirectionIn
	}
}

func (d Direction) String() string {
	if d == DirectionOut {
		return "out"
	}
	return "in"
}

// FrameRecord is one decoded protocol frame.
type FrameRecord struct {
	ID               string    `json:"id" yaml:"id"`
	ProcessID        uint8     `json:"pid" yaml:"pid"`
	Tag              uint8     `json:"tag" yaml:"tag"`
	TagName          string    `json:"tag_name" yaml:"tag_name"`
	Port             uint8     `json:"port" yaml:"port"`
	PortName         string    `json:"port_name" yaml:"port_name"`
	Protocol         uint8     `json:"protocol" yaml:"protocol"`
	ProtocolName     string    `json:"protocol_name" yaml:"protocol_name"`
	Direction        Direction `json:"direction" yaml:"direction"`
	DirectionName    string    `json:"direction_name" yaml:"direction_name"`
	TimestampSeconds uint32    `json:"timestamp_seconds" yaml:"timestamp_seconds"`
	TimestampMillis  uint16    `json:"timestamp_millis" yaml:"timestamp_millis"`
	Timestamp        string    `json:"timestamp" yaml:"timestamp"`
	Time             time.Time `json:"-" yaml:"-"`
	ContentHex       string    `json:"content" yaml:"content"`
	RawHex           string    `json:"raw_data" yaml:"raw_data"`
	SourceOffset     int       `json:"position" yaml:"position"`
	Length           int       `json:"length" yaml:"length"`
	Truncated        bool      `json:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// FallbackKind records which stage of the text sub-parser produced a log record.
type FallbackKind uint8

const (
	FallbackNone       FallbackKind = iota // bracketed structured format
	FallbackMultiLine                      // time/level/[pid:tid] lines
	FallbackUnmatched                      // placeholder, no format matched
	FallbackParseError                     // placeholder after a recovered panic
)

func (f FallbackKind) String() string {
	switch f {
	case FallbackNone:
		return "structured"
	case FallbackMultiLine:
		return "multiline"
	case FallbackUnmatched:
		return "unmatched"
	case FallbackParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// LogRecord is one diagnostic log line. Message and RawData are never empty.
type LogRecord struct {
	ID           string       `json:"id" yaml:"id"`
	ProcessID    string       `json:"pid" yaml:"pid"`
	ThreadID     string       `json:"tid" yaml:"tid"`
	Timestamp    string       `json:"timestamp" yaml:"timestamp"`
	Level        string       `json:"level" yaml:"level"`
	Tag          string       `json:"tag" yaml:"tag"`
	Func         string       `json:"func" yaml:"func"`
	Line         *string      `json:"line" yaml:"line"`
	Message      string       `json:"message" yaml:"message"`
	RawData      string       `json:"raw_data" yaml:"raw_data"`
	SourceOffset int          `json:"position" yaml:"position"`
	SourcePID    uint8        `json:"source_pid" yaml:"source_pid"`
	Truncated    bool         `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	Fallback     FallbackKind `json:"-" yaml:"-"`
}

// LineNumber returns the source line or "" when absent.
func (r *LogRecord) LineNumber() string {
	if r.Line == nil {
		return ""
	}
	return *r.Line
}

// Entry is a closed union over the two record kinds; exactly one pointer is set.
type Entry struct {
	Kind  Kind
	Frame *FrameRecord
	Log   *LogRecord
}

// Offset returns the byte offset of the record the entry came from.
func (e Entry) Offset() int {
	switch e.Kind {
	case KindFrame:
		return e.Frame.SourceOffset
	case KindLog:
		return e.Log.SourceOffset
	default:
		return -1
	}
}

// Entries is the aggregated, ordered output for one file.
type Entries struct {
	Frames []*FrameRecord `json:"frames" yaml:"frames"`
	Logs   []*LogRecord   `json:"logs" yaml:"logs"`
}

// Len returns the total number of entries.
func (e Entries) Len() int {
	return len(e.Frames) + len(e.Logs)
}
