package decoder

import (
	"encoding/hex"
	"sync/atomic"
	"time"

	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/wire"
)

// fieldReader reads fixed-offset fields relative to a record start and keeps the
// first error, so a run of reads can be checked once.
type fieldReader struct {
	v    wire.View
	base int
	err  error
}

func (r *fieldReader) u8(off int) uint8 {
	if r.err != nil {
		return 0
	}
	b, err := r.v.U8(r.base + off)
	r.err = err
	return b
}

func (r *fieldReader) u16(off int) uint16 {
	if r.err != nil {
		return 0
	}
	n, err := r.v.U16BE(r.base + off)
	r.err = err
	return n
}

func (r *fieldReader) u32(off int) uint32 {
	if r.err != nil {
		return 0
	}
	n, err := r.v.U32BE(r.base + off)
	r.err = err
	return n
}

// DecodeFrame decodes the frame record starting at off. A record whose content runs
// past the buffer is clipped and marked Truncated.
func (d *Decoder) DecodeFrame(buf []byte, off int) (*core.FrameRecord, bool) {
	r := fieldReader{v: wire.NewView(buf), base: off}

	pid := r.u8(wire.PIDOffset)
	length := int(r.u16(wire.LengthOffset))
	tag := r.u8(wire.FrameTagOffset)
	port := r.u8(wire.FramePortOffset)
	protocol := r.u8(wire.FrameProtocolOffset)
	dir := core.NormalizeDirection(r.u8(wire.FrameDirectionOffset))
	seconds := r.u32(wire.FrameSecondsOffset)
	millis := r.u16(wire.FrameMillisOffset)
	if r.err != nil || length < wire.FrameFixedFields {
		atomic.AddUint64(&d.skippedCount, 1)
		return nil, false
	}

	want := length - wire.FrameFixedFields
	content, err := r.v.Clip(off+wire.FrameContentOffset, want)
	if err != nil {
		atomic.AddUint64(&d.skippedCount, 1)
		return nil, false
	}
	raw, _ := r.v.Clip(off, wire.FrameContentOffset+len(content))
	truncated := len(content) < want

	ts := time.UnixMilli(int64(seconds)*1000 + int64(millis)).In(d.loc)
	rec := &core.FrameRecord{
		ID:               d.newID(),
		ProcessID:        pid,
		Tag:              tag,
		TagName:          TagName(tag),
		Port:             port,
		PortName:         PortName(port),
		Protocol:         protocol,
		ProtocolName:     ProtocolName(protocol),
		Direction:        dir,
		DirectionName:    DirectionName(dir),
		TimestampSeconds: seconds,
		TimestampMillis:  millis,
		Timestamp:        ts.Format(core.TimestampLayout),
		Time:             ts,
		ContentHex:       hex.EncodeToString(content),
		RawHex:           hex.EncodeToString(raw),
		SourceOffset:     off,
		Length:           length,
		Truncated:        truncated,
	}

	atomic.AddUint64(&d.frameCount, 1)
	if truncated {
		atomic.AddUint64(&d.truncatedCount, 1)
	}
	return rec, true
}
