package wire

import (
	"encoding/binary"

	"firestige.xyz/tracekit/internal/core"
)

// FrameFields are the values written by AppendFrame.
type FrameFields struct {
	ProcessID uint8
	Tag       uint8
	Port      uint8
	Protocol  uint8
	Direction uint8
	Seconds   uint32
	Millis    uint16
	Content   []byte
}

// AppendFrame appends one encoded frame record to dst. It is used to build fixtures
// and sample captures.
func AppendFrame(dst []byte, f FrameFields) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(core.FrameMarker))
	dst = append(dst, f.ProcessID)
	dst = binary.BigEndian.AppendUint16(dst, uint16(FrameFixedFields+len(f.Content)))
	dst = append(dst, f.Tag, f.Port, f.Protocol, f.Direction)
	dst = binary.BigEndian.AppendUint32(dst, f.Seconds)
	dst = binary.BigEndian.AppendUint16(dst, f.Millis)
	return append(dst, f.Content...)
}

// AppendLog appends one encoded log record carrying text to dst.
func AppendLog(dst []byte, pid uint8, text string) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(core.LogMarker))
	n := len(text)
	dst = append(dst, pid, byte(n>>8), byte(n))
	return append(dst, text...)
}
