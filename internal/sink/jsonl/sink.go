// Package jsonl writes entries to a file as JSON lines.
package jsonl

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"firestige.xyz/tracekit/internal/sink"
)

const Name = "jsonl"

type Config struct {
	Path   string `mapstructure:"path"`   // required
	Append bool   `mapstructure:"append"` // keep existing content, default truncate
}

type Sink struct {
	mu      sync.Mutex
	cfg     Config
	file    *os.File
	w       *bufio.Writer
	written uint64
}

func init() {
	sink.Register(Name, func() sink.Sink { return &Sink{} })
}

func (s *Sink) Name() string { return Name }

func (s *Sink) Init(options map[string]any) error {
	if err := sink.DecodeOptions(options, &s.cfg); err != nil {
		return err
	}
	if s.cfg.Path == "" {
		return fmt.Errorf("path is required")
	}
	return nil
}

func (s *Sink) Start(ctx context.Context) error {
	flags := os.O_CREATE | os.O_WRONLY
	if s.cfg.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(s.cfg.Path, flags, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.cfg.Path, err)
	}
	s.file = f
	s.w = bufio.NewWriter(f)
	slog.Debug("jsonl output started", "path", s.cfg.Path, "append", s.cfg.Append)
	return nil
}

func (s *Sink) Write(ctx context.Context, batch sink.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.w == nil {
		return fmt.Errorf("jsonl output not started")
	}

	enc := json.NewEncoder(s.w)
	for _, env := range sink.Envelopes(batch) {
		if err := enc.Encode(env); err != nil {
			return fmt.Errorf("json encode failed: %w", err)
		}
		s.written++
	}
	return s.w.Flush()
}

func (s *Sink) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	flushErr := s.w.Flush()
	closeErr := s.file.Close()
	s.file, s.w = nil, nil
	slog.Debug("jsonl output stopped", "path", s.cfg.Path, "total_written", s.written)
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
