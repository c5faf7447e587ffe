// Package console prints entries to stdout, one line each.
package console

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/sink"
)

const Name = "console"

// Config is decoded from the output options.
type Config struct {
	Format string `mapstructure:"format"` // "text" (default) or "json"
	Stream string `mapstructure:"stream"` // "stdout" (default) or "stderr"
}

type Sink struct {
	mu           sync.Mutex
	out          io.Writer
	format       string
	writtenCount atomic.Uint64
}

func init() {
	sink.Register(Name, func() sink.Sink { return NewSink(os.Stdout) })
}

func NewSink(w io.Writer) *Sink {
	return &Sink{out: w, format: "text"}
}

func (s *Sink) Name() string { return Name }

func (s *Sink) Init(options map[string]any) error {
	var cfg Config
	if err := sink.DecodeOptions(options, &cfg); err != nil {
		return err
	}
	switch cfg.Format {
	case "":
	case "text", "json":
		s.format = cfg.Format
	default:
		return fmt.Errorf("invalid format %q, must be json or text", cfg.Format)
	}
	switch cfg.Stream {
	case "", "stdout":
	case "stderr":
		s.out = os.Stderr
	default:
		return fmt.Errorf("invalid stream %q, must be stdout or stderr", cfg.Stream)
	}
	return nil
}

func (s *Sink) Start(ctx context.Context) error {
	slog.Debug("console output started", "format", s.format)
	return nil
}

func (s *Sink) Write(ctx context.Context, batch sink.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w := bufio.NewWriter(s.out)
	if s.format == "json" {
		enc := json.NewEncoder(w)
		for _, env := range sink.Envelopes(batch) {
			if err := enc.Encode(env); err != nil {
				return fmt.Errorf("json encode failed: %w", err)
			}
		}
	} else {
		for _, f := range batch.Entries.Frames {
			writeFrame(w, f)
		}
		for _, l := range batch.Entries.Logs {
			writeLog(w, l)
		}
	}
	s.writtenCount.Add(uint64(batch.Entries.Len()))
	return w.Flush()
}

func (s *Sink) Stop(ctx context.Context) error {
	slog.Debug("console output stopped", "total_written", s.writtenCount.Load())
	return nil
}

// writeFrame prints "[ts] pid=N dir tag port proto len=N content".
func writeFrame(w io.Writer, f *core.FrameRecord) {
	fmt.Fprintf(w, "[%s] pid=%d %-7s %s port=%s proto=%s len=%d %s",
		f.Timestamp, f.ProcessID, f.DirectionName,
		f.TagName, f.PortName, f.ProtocolName, f.Length, f.ContentHex)
	if f.Truncated {
		fmt.Fprint(w, " (truncated)")
	}
	fmt.Fprintln(w)
}

// writeLog prints "[ts] LEVEL pid:tid func:line message".
func writeLog(w io.Writer, l *core.LogRecord) {
	fmt.Fprintf(w, "[%s] %-5s %s:%s", l.Timestamp, l.Level, l.ProcessID, l.ThreadID)
	if l.Func != "" {
		fmt.Fprintf(w, " %s", l.Func)
		if line := l.LineNumber(); line != "" {
			fmt.Fprintf(w, ":%s", line)
		}
	}
	fmt.Fprintf(w, " %s", l.Message)
	if l.Truncated {
		fmt.Fprint(w, " (truncated)")
	}
	fmt.Fprintln(w)
}
