package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"firestige.xyz/tracekit/internal/config"
	"firestige.xyz/tracekit/internal/engine"
	"firestige.xyz/tracekit/internal/filter"
	"firestige.xyz/tracekit/internal/metrics"
	"firestige.xyz/tracekit/internal/sink"
	"firestige.xyz/tracekit/internal/sink/console"
)

// fileParser is the part of the engine the parse command drives.
type fileParser interface {
	ParseFiles(ctx context.Context, paths []string) []*engine.FileResult
}

var parseCmd = &cobra.Command{
	Use:   "parse FILE...",
	Short: "Parse capture files and write the entries to the outputs",
	Long: `Parse one or more capture files. Every file is parsed independently; a file that
cannot be read or parsed is reported and the rest of the batch continues.

Without configured outputs, entries are printed to stdout (--format text|json).

Examples:
  tracekit parse device.bin
  tracekit parse --level ERROR --keyword power *.bin.gz
  tracekit parse -c tracekit.yml --segment-size 1MiB --workers 8 big.bin`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runParseCommand(cmd.Context(), args)
	},
}

var (
	parseFormat      string
	parseSegmentSize string
	parseWorkers     int
	parseCompression string
	parseFamilies    []string
	parseFilter      filter.Spec
	parsePorts       []uint
	parseProtocols   []uint
	parseTags        []uint
)

func init() {
	f := parseCmd.Flags()
	f.StringVar(&parseFormat, "format", "text", "console format when no outputs are configured (text, json)")
	f.StringVar(&parseSegmentSize, "segment-size", "", "split files into tasks of about this size, e.g. 1MiB")
	f.IntVar(&parseWorkers, "workers", 0, "maximum parse workers (0 = config or NumCPU)")
	f.StringVar(&parseCompression, "compression", "auto", "input compression (auto, none, gzip, zstd)")
	f.StringSliceVar(&parseFamilies, "families", nil, "record families to decode (frame, log)")

	f.StringSliceVar(&parseFilter.Kinds, "kind", nil, "only output these entry kinds (frame, log)")
	f.StringVar(&parseFilter.Level, "level", "", "only logs with this level")
	f.StringVar(&parseFilter.Keyword, "keyword", "", "only logs whose message or tag contains this text")
	f.StringVar(&parseFilter.TagPrefix, "tag-prefix", "", "only logs whose tag starts with this prefix")
	f.StringVar(&parseFilter.Since, "since", "", "only entries at or after this time (2006-01-02 15:04:05)")
	f.StringVar(&parseFilter.Until, "until", "", "only entries at or before this time")
	f.UintSliceVar(&parsePorts, "port", nil, "only frames on these ports")
	f.UintSliceVar(&parseProtocols, "protocol", nil, "only frames with these protocols")
	f.UintSliceVar(&parseTags, "tag", nil, "only frames with these record tags")
	f.StringVar(&parseFilter.Direction, "direction", "", "only frames in this direction (send, receive)")
}

func runParseCommand(ctx context.Context, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyParseFlags(cfg); err != nil {
		return err
	}

	spec := parseFilter
	if spec.Ports, err = toBytes("port", parsePorts); err != nil {
		return err
	}
	if spec.Protocols, err = toBytes("protocol", parseProtocols); err != nil {
		return err
	}
	if spec.Tags, err = toBytes("tag", parseTags); err != nil {
		return err
	}
	filters, err := filter.Build(spec)
	if err != nil {
		return fmt.Errorf("invalid filter: %w", err)
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer srv.Stop(context.Background())
	}

	sinks, err := buildSinks(cfg.Outputs, parseFormat)
	if err != nil {
		return err
	}
	if err := sinks.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sinks.Stop(context.Background()); err != nil {
			slog.Error("failed to stop outputs", "error", err)
		}
	}()

	eng, err := engine.New(cfg, engine.WithCompression(parseCompression))
	if err != nil {
		return err
	}
	defer eng.Close()

	return runParse(ctx, eng, paths, filters, sinks, os.Stderr)
}

// applyParseFlags lets command-line flags override the loaded configuration.
func applyParseFlags(cfg *config.GlobalConfig) error {
	if parseSegmentSize != "" {
		n, err := humanize.ParseBytes(parseSegmentSize)
		if err != nil {
			return fmt.Errorf("invalid --segment-size: %w", err)
		}
		cfg.Parser.SegmentSize = int(n)
	}
	if parseWorkers > 0 {
		cfg.Pool.MaxWorkers = parseWorkers
	}
	if len(parseFamilies) > 0 {
		cfg.Parser.Families = parseFamilies
	}
	return cfg.ValidateAndApplyDefaults()
}

// buildSinks creates the configured outputs, or a console output when none is set.
func buildSinks(outputs []config.OutputConfig, format string) (*sink.Set, error) {
	if len(outputs) > 0 {
		return sink.Build(outputs)
	}
	s := console.NewSink(os.Stdout)
	if err := s.Init(map[string]any{"format": format}); err != nil {
		return nil, err
	}
	return sink.NewSet(s), nil
}

// runParse parses paths, filters each result and writes it. Failed files are
// reported on stderr; the returned error says how many failed.
func runParse(ctx context.Context, p fileParser, paths []string, filters []filter.Filter, sinks *sink.Set, stderr io.Writer) error {
	start := time.Now()
	results := p.ParseFiles(ctx, paths)

	var failed, written int
	var bytesIn uint64
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(stderr, "%s: %v\n", res.Name, res.Err)
			continue
		}
		bytesIn += uint64(res.Size)
		if res.Status() == engine.StatusEmpty {
			fmt.Fprintf(stderr, "%s: no data found\n", res.Name)
			continue
		}

		entries := filter.Apply(res.Entries, filters)
		written += entries.Len()
		if err := sinks.Write(ctx, sink.Batch{Source: res.Name, Entries: entries}); err != nil {
			failed++
			fmt.Fprintf(stderr, "%s: output failed: %v\n", res.Name, err)
		}
	}

	fmt.Fprintf(stderr, "parsed %d file(s), %s, %s entries written in %s\n",
		len(results), humanize.Bytes(bytesIn), humanize.Comma(int64(written)),
		time.Since(start).Round(time.Millisecond))

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(results))
	}
	return nil
}

func toBytes(flag string, values []uint) ([]uint8, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]uint8, len(values))
	for i, v := range values {
		if v > 0xFF {
			return nil, fmt.Errorf("invalid --%s %d: must be 0..255", flag, v)
		}
		out[i] = uint8(v)
	}
	return out, nil
}
