// Package yaml writes one YAML document per parsed file.
package yaml

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/sink"
)

const Name = "yaml"

type Config struct {
	Path   string `mapstructure:"path"`   // required
	Indent int    `mapstructure:"indent"` // default 2
}

// document is the YAML shape of one batch.
type document struct {
	Source string              `yaml:"source"`
	Frames []*core.FrameRecord `yaml:"frames"`
	Logs   []*core.LogRecord   `yaml:"logs"`
}

type Sink struct {
	mu   sync.Mutex
	cfg  Config
	file *os.File
	enc  *yaml.Encoder
}

func init() {
	sink.Register(Name, func() sink.Sink { return &Sink{} })
}

func (s *Sink) Name() string { return Name }

func (s *Sink) Init(options map[string]any) error {
	s.cfg.Indent = 2
	if err := sink.DecodeOptions(options, &s.cfg); err != nil {
		return err
	}
	if s.cfg.Path == "" {
		return fmt.Errorf("path is required")
	}
	if s.cfg.Indent <= 0 {
		return fmt.Errorf("indent must be > 0")
	}
	return nil
}

func (s *Sink) Start(ctx context.Context) error {
	f, err := os.Create(s.cfg.Path)
	if err != nil {
		return fmt.Errorf("create %s: %w", s.cfg.Path, err)
	}
	s.file = f
	s.enc = yaml.NewEncoder(f)
	s.enc.SetIndent(s.cfg.Indent)
	slog.Debug("yaml output started", "path", s.cfg.Path)
	return nil
}

func (s *Sink) Write(ctx context.Context, batch sink.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.enc == nil {
		return fmt.Errorf("yaml output not started")
	}
	doc := document{
		Source: batch.Source,
		Frames: batch.Entries.Frames,
		Logs:   batch.Entries.Logs,
	}
	if err := s.enc.Encode(doc); err != nil {
		return fmt.Errorf("yaml encode failed: %w", err)
	}
	return nil
}

func (s *Sink) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	encErr := s.enc.Close()
	closeErr := s.file.Close()
	s.file, s.enc = nil, nil
	if encErr != nil {
		return encErr
	}
	return closeErr
}
