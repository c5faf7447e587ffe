// Package engine drives a parse: it plans tasks over a capture buffer, runs them on the
// worker pool and aggregates the results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/facebookgo/clock"

	"firestige.xyz/tracekit/internal/aggregate"
	"firestige.xyz/tracekit/internal/cache"
	"firestige.xyz/tracekit/internal/config"
	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/decoder"
	"firestige.xyz/tracekit/internal/metrics"
	"firestige.xyz/tracekit/internal/pool"
	"firestige.xyz/tracekit/internal/source/file"
	"firestige.xyz/tracekit/internal/textparse"
	"firestige.xyz/tracekit/internal/wire"
)

// File status values, also used as metric labels.
const (
	StatusOK     = "ok"
	StatusEmpty  = "empty"
	StatusCached = "cached"
	StatusError  = "error"
)

// FileResult is the outcome of parsing one file or buffer.
type FileResult struct {
	Name     string
	Size     int
	Entries  core.Entries
	Stats    core.TaskStats
	Tasks    int
	Cached   bool
	Duration time.Duration
	Err      error
}

// Status reports ok, empty, cached or error.
func (r *FileResult) Status() string {
	switch {
	case r.Err != nil:
		return StatusError
	case r.Cached:
		return StatusCached
	case r.Entries.Len() == 0:
		return StatusEmpty
	default:
		return StatusOK
	}
}

// Option customises an Engine.
type Option func(*options)

type options struct {
	clock       clock.Clock
	newID       func() string
	compression string
	maxBytes    int64
}

// WithClock sets the clock used for log lines without a readable timestamp.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator replaces the random entry ID source.
func WithIDGenerator(fn func() string) Option {
	return func(o *options) { o.newID = fn }
}

// WithCompression forces the input compression for ParseFiles (auto by default).
func WithCompression(mode string) Option {
	return func(o *options) { o.compression = mode }
}

// WithMaxFileBytes rejects input files larger than n bytes after decompression.
func WithMaxFileBytes(n int64) Option {
	return func(o *options) { o.maxBytes = n }
}

// Engine is safe for concurrent use. Close it to stop the worker pool.
type Engine struct {
	parser      config.ParserConfig
	families    []core.Kind
	layouts     []wire.Layout
	decoder     *decoder.Decoder
	pool        *pool.Pool
	cache       *cache.ResultCache
	fingerprint string
	opts        options
}

// New builds an engine from validated configuration.
func New(cfg *config.GlobalConfig, opts ...Option) (*Engine, error) {
	o := options{compression: file.CompressionAuto}
	for _, opt := range opts {
		opt(&o)
	}

	families, err := cfg.Parser.Kinds()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Parser.Location()
	if err != nil {
		return nil, fmt.Errorf("%w: timezone: %v", core.ErrConfigInvalid, err)
	}

	parserOpts := []textparse.Option{textparse.WithLocation(loc)}
	if o.clock != nil {
		parserOpts = append(parserOpts, textparse.WithClock(o.clock))
	}
	dec, err := decoder.New(decoder.Options{
		Location:      loc,
		Charset:       cfg.Parser.Charset,
		Parser:        textparse.New(parserOpts...),
		SplitEmbedded: cfg.Parser.SplitEmbedded,
		NewID:         o.newID,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{
		parser:   cfg.Parser,
		families: families,
		layouts:  layoutsFor(cfg.Parser.MaxRecordLength),
		decoder:  dec,
		opts:     o,
	}
	e.fingerprint = fingerprint(cfg.Parser, loc)
	if cfg.Cache.Enabled {
		e.cache = cache.New(cfg.Cache.TTLDuration(), cfg.Cache.CleanupDuration())
	}
	e.pool = pool.New(pool.Config{
		Name:                "parse",
		MaxWorkers:          cfg.Pool.MaxWorkers,
		MaxPendingPerWorker: cfg.Pool.MaxPendingPerWorker,
		Dispatch:            cfg.Pool.Dispatch,
	}, e.parseTask)

	slog.Debug("parse engine ready",
		"families", cfg.Parser.Families,
		"charset", cfg.Parser.Charset,
		"timezone", loc.String(),
		"segment_size", cfg.Parser.SegmentSize,
		"cache", cfg.Cache.Enabled)
	return e, nil
}

// layoutsFor returns both family layouts with the configured length ceiling.
func layoutsFor(maxLength int) []wire.Layout {
	layouts := []wire.Layout{wire.FrameLayout(), wire.LogLayout()}
	if maxLength > 0 {
		for i := range layouts {
			layouts[i].MaxLength = maxLength
		}
	}
	return layouts
}

func fingerprint(p config.ParserConfig, loc fmt.Stringer) string {
	return strings.Join([]string{
		strings.ToLower(p.Charset),
		loc.String(),
		strings.Join(p.Families, ","),
		fmt.Sprint(p.MaxRecordLength),
		fmt.Sprint(p.SplitEmbedded),
	}, "|")
}

// ParseBuffer parses one in-memory capture. name labels tasks and logs. An empty
// result is not an error; check FileResult.Status.
func (e *Engine) ParseBuffer(ctx context.Context, name string, buf []byte) (*FileResult, error) {
	start := time.Now()
	res := &FileResult{Name: name, Size: len(buf)}

	var key string
	if e.cache != nil {
		key = cache.Key(buf, e.fingerprint)
		if entries, ok := e.cache.Get(key); ok {
			res.Entries = entries
			res.Cached = true
			res.Duration = time.Since(start)
			metrics.FilesTotal.WithLabelValues(StatusCached).Inc()
			slog.Debug("parse result served from cache", "name", name, "entries", entries.Len())
			return res, nil
		}
	}

	tasks, err := e.plan(name, buf)
	if err != nil {
		metrics.FilesTotal.WithLabelValues(StatusError).Inc()
		return nil, err
	}
	res.Tasks = len(tasks)

	futures := make([]*pool.Future, len(tasks))
	for i, t := range tasks {
		futures[i] = e.pool.Submit(t)
	}

	results := make([]*core.TaskResult, 0, len(futures))
	var firstErr error
	for _, f := range futures {
		tr, err := f.Wait(ctx)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("task %s: %w", f.TaskID(), err)
			}
			continue
		}
		results = append(results, tr)
		addStats(&res.Stats, tr.Stats)
	}
	if firstErr != nil {
		metrics.FilesTotal.WithLabelValues(StatusError).Inc()
		return nil, fmt.Errorf("parse %s: %w", name, firstErr)
	}

	res.Entries = aggregate.Aggregate(results)
	res.Duration = time.Since(start)
	if e.cache != nil {
		e.cache.Put(key, res.Entries)
	}

	metrics.FilesTotal.WithLabelValues(res.Status()).Inc()
	slog.Debug("parsed buffer",
		"name", name,
		"bytes", len(buf),
		"tasks", res.Tasks,
		"frames", len(res.Entries.Frames),
		"logs", len(res.Entries.Logs),
		"skipped", res.Stats.Skipped,
		"truncated", res.Stats.Truncated,
		"duration", res.Duration)
	return res, nil
}

// ParseFiles parses each path independently. A file that cannot be read or parsed
// gets its error in FileResult.Err; the rest of the batch still runs. Results keep
// the order of paths.
func (e *Engine) ParseFiles(ctx context.Context, paths []string) []*FileResult {
	out := make([]*FileResult, len(paths))
	for i, path := range paths {
		out[i] = e.parseFile(ctx, path)
	}
	return out
}

func (e *Engine) parseFile(ctx context.Context, path string) *FileResult {
	if err := ctx.Err(); err != nil {
		return &FileResult{Name: path, Err: err}
	}
	buf, err := file.ReadFile(ctx, &file.FileCfg{
		Path:        path,
		Compression: e.opts.compression,
		MaxBytes:    e.opts.maxBytes,
	})
	if err != nil {
		metrics.FilesTotal.WithLabelValues(StatusError).Inc()
		slog.Warn("failed to read capture file", "path", path, "error", err)
		return &FileResult{Name: path, Err: err}
	}

	res, err := e.ParseBuffer(ctx, path, buf)
	if err != nil {
		slog.Warn("failed to parse capture file", "path", path, "error", err)
		return &FileResult{Name: path, Size: len(buf), Err: err}
	}
	if res.Status() == StatusEmpty {
		slog.Info("no data found", "path", path, "bytes", len(buf))
	}
	return res
}

// Stats exposes pool and decoder counters.
func (e *Engine) Stats() (pool.Stats, decoder.Stats) {
	return e.pool.Stats(), e.decoder.Stats()
}

// Close stops the worker pool. In-flight ParseBuffer calls fail with
// core.ErrPoolTerminated.
func (e *Engine) Close() error {
	e.pool.Terminate()
	if e.cache != nil {
		e.cache.Flush()
	}
	return nil
}

// IsTerminated reports whether err comes from a closed engine.
func IsTerminated(err error) bool {
	return errors.Is(err, core.ErrPoolTerminated)
}

func addStats(dst *core.TaskStats, s core.TaskStats) {
	dst.Candidates += s.Candidates
	dst.Accepted += s.Accepted
	dst.Skipped += s.Skipped
	dst.Truncated += s.Truncated
	dst.LogFallbacks += s.LogFallbacks
	dst.BytesScanned += s.BytesScanned
}
