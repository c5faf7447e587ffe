package decoder

import (
	"strconv"
	"sync/atomic"

	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/textparse"
	"firestige.xyz/tracekit/internal/wire"
)

// DecodeLog decodes the log record starting at off. The payload text is handed to the
// text parser; with SplitEmbedded set, every embedded log line becomes its own record.
// The envelope process ID replaces whatever pid the text carried.
func (d *Decoder) DecodeLog(buf []byte, off int) ([]*core.LogRecord, bool) {
	v := wire.NewView(buf)

	pid, err := v.U8(off + wire.PIDOffset)
	if err != nil {
		atomic.AddUint64(&d.skippedCount, 1)
		return nil, false
	}
	length, err := wire.LogLayout().ReadLength(v, off)
	if err != nil {
		atomic.AddUint64(&d.skippedCount, 1)
		return nil, false
	}
	payload, err := v.Clip(off+wire.LogTextOffset, length)
	if err != nil {
		atomic.AddUint64(&d.skippedCount, 1)
		return nil, false
	}
	truncated := len(payload) < length

	text := decodeText(d.charset, payload)
	parts := []string{text}
	if d.split {
		parts = textparse.SplitEmbedded(text)
	}

	pidText := strconv.Itoa(int(pid))
	records := make([]*core.LogRecord, 0, len(parts))
	for _, part := range parts {
		rec := d.parser.ParseMessage(part)
		rec.ID = d.newID()
		rec.ProcessID = pidText
		rec.SourcePID = pid
		rec.SourceOffset = off
		rec.Truncated = truncated
		records = append(records, rec)
	}

	atomic.AddUint64(&d.logCount, uint64(len(records)))
	if truncated {
		atomic.AddUint64(&d.truncatedCount, 1)
	}
	return records, true
}
