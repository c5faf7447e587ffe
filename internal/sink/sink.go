// Package sink delivers parsed entries to outputs. Output types register a
// constructor at init time; Build creates the configured set.
package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/tracekit/internal/config"
	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/metrics"
)

// Batch is the output of one parsed file.
type Batch struct {
	Source  string
	Entries core.Entries
}

// Sink writes batches somewhere. Init receives the raw `options` map of the output.
type Sink interface {
	Name() string
	Init(options map[string]any) error
	Start(ctx context.Context) error
	Write(ctx context.Context, batch Batch) error
	Stop(ctx context.Context) error
}

var (
	mu       sync.RWMutex
	registry = make(map[string]func() Sink)
)

// Register makes an output type available to Build. Registering a name twice panics.
func Register(name string, constructor func() Sink) {
	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("sink %q already registered", name))
	}
	registry[name] = constructor
}

// Names lists registered output types.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New creates and initialises one sink.
func New(cfg config.OutputConfig) (Sink, error) {
	mu.RLock()
	constructor, ok := registry[cfg.Type]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", core.ErrUnknownSink, cfg.Type, Names())
	}
	s := constructor()
	if err := s.Init(cfg.Options); err != nil {
		return nil, fmt.Errorf("init %s output: %w", cfg.Type, err)
	}
	return s, nil
}

// DecodeOptions decodes an options map into out using mapstructure tags. Strings are
// accepted for numbers, booleans and durations.
func DecodeOptions(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(options)
}

// Set fans batches out to several sinks.
type Set struct {
	sinks []Sink
}

// Build creates every configured output. On error the sinks built so far are
// discarded; nothing has been started yet.
func Build(outputs []config.OutputConfig) (*Set, error) {
	set := &Set{}
	for i, out := range outputs {
		s, err := New(out)
		if err != nil {
			return nil, fmt.Errorf("outputs[%d]: %w", i, err)
		}
		set.sinks = append(set.sinks, s)
	}
	return set, nil
}

// NewSet wraps already initialised sinks.
func NewSet(sinks ...Sink) *Set {
	return &Set{sinks: sinks}
}

func (s *Set) Len() int {
	return len(s.sinks)
}

func (s *Set) Start(ctx context.Context) error {
	for i, sk := range s.sinks {
		if err := sk.Start(ctx); err != nil {
			for j := i - 1; j >= 0; j-- {
				_ = s.sinks[j].Stop(ctx)
			}
			return fmt.Errorf("start %s output: %w", sk.Name(), err)
		}
	}
	return nil
}

// Write hands the batch to every sink. A failing sink does not stop the others; all
// errors are joined.
func (s *Set) Write(ctx context.Context, batch Batch) error {
	var errs []error
	for _, sk := range s.sinks {
		metrics.SinkBatchSize.WithLabelValues(sk.Name()).Observe(float64(batch.Entries.Len()))
		if err := sk.Write(ctx, batch); err != nil {
			metrics.SinkErrorsTotal.WithLabelValues(sk.Name(), "write").Inc()
			slog.Error("output write failed", "sink", sk.Name(), "source", batch.Source, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sk.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (s *Set) Stop(ctx context.Context) error {
	var errs []error
	for _, sk := range s.sinks {
		if err := sk.Stop(ctx); err != nil {
			metrics.SinkErrorsTotal.WithLabelValues(sk.Name(), "stop").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", sk.Name(), err))
		}
	}
	return errors.Join(errs...)
}
