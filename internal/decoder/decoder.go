// Package decoder turns scanner hits into frame and log records. All reads go through
// wire.View, so a short buffer yields a skipped record instead of a panic.
package decoder

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding"

	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/scanner"
	"firestige.xyz/tracekit/internal/textparse"
)

// Decoder is safe for concurrent use; workers share one instance.
type Decoder struct {
	loc     *time.Location
	charset encoding.Encoding
	parser  *textparse.Parser
	split   bool
	newID   func() string

	statistics
}

type statistics struct {
	frameCount     uint64
	logCount       uint64
	truncatedCount uint64
	skippedCount   uint64
}

// Stats is a snapshot of decoder counters.
type Stats struct {
	Frames    uint64
	Logs      uint64
	Truncated uint64
	Skipped   uint64
}

// Options configures a Decoder.
type Options struct {
	// Location frame timestamps are rendered in. Defaults to UTC.
	Location *time.Location
	// Charset of log payloads: utf-8 (default), gbk, gb18030 or latin1.
	Charset string
	// Parser for log text. Defaults to textparse.New().
	Parser *textparse.Parser
	// SplitEmbedded parses every embedded log line of a payload separately.
	SplitEmbedded bool
	// NewID generates entry IDs. Defaults to random UUIDs.
	NewID func() string
}

// New creates a decoder. It fails only on an unsupported charset.
func New(opts Options) (*Decoder, error) {
	enc, err := lookupCharset(opts.Charset)
	if err != nil {
		return nil, err
	}
	d := &Decoder{
		loc:     opts.Location,
		charset: enc,
		parser:  opts.Parser,
		split:   opts.SplitEmbedded,
		newID:   opts.NewID,
	}
	if d.loc == nil {
		d.loc = time.UTC
	}
	if d.parser == nil {
		d.parser = textparse.New(textparse.WithLocation(d.loc))
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	return d, nil
}

// Decode decodes the record at hit. Frames yield one entry, logs one entry per
// embedded line. ok is false when the record header is not in buf.
func (d *Decoder) Decode(buf []byte, hit scanner.Hit) ([]core.Entry, bool) {
	switch hit.Kind {
	case core.KindFrame:
		f, ok := d.DecodeFrame(buf, hit.Offset)
		if !ok {
			return nil, false
		}
		return []core.Entry{{Kind: core.KindFrame, Frame: f}}, true
	case core.KindLog:
		logs, ok := d.DecodeLog(buf, hit.Offset)
		if !ok {
			return nil, false
		}
		entries := make([]core.Entry, len(logs))
		for i, l := range logs {
			entries[i] = core.Entry{Kind: core.KindLog, Log: l}
		}
		return entries, true
	default:
		atomic.AddUint64(&d.skippedCount, 1)
		return nil, false
	}
}

// Stats returns the counters accumulated since the decoder was created.
func (d *Decoder) Stats() Stats {
	return Stats{
		Frames:    atomic.LoadUint64(&d.frameCount),
		Logs:      atomic.LoadUint64(&d.logCount),
		Truncated: atomic.LoadUint64(&d.truncatedCount),
		Skipped:   atomic.LoadUint64(&d.skippedCount),
	}
}

// Location returns the zone timestamps are rendered in.
func (d *Decoder) Location() *time.Location {
	return d.loc
}
