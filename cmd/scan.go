package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"firestige.xyz/tracekit/internal/config"
	"firestige.xyz/tracekit/internal/core"
	"firestige.xyz/tracekit/internal/scanner"
	"firestige.xyz/tracekit/internal/source/file"
	"firestige.xyz/tracekit/internal/wire"
)

var scanCmd = &cobra.Command{
	Use:   "scan FILE...",
	Short: "List record boundaries without decoding",
	Long: `Scan capture files for record boundaries and report how many records of each
family were found, how many candidates were rejected and why.

Examples:
  tracekit scan device.bin
  tracekit scan --offsets device.bin.zst`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return runScan(cmd.Context(), cfg, args, scanOffsets, os.Stdout)
	},
}

var scanOffsets bool

func init() {
	scanCmd.Flags().BoolVar(&scanOffsets, "offsets", false, "print every record offset")
}

// runScan prints a per-file summary of scanner hits to w.
func runScan(ctx context.Context, cfg *config.GlobalConfig, paths []string, offsets bool, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	layouts := []wire.Layout{wire.FrameLayout(), wire.LogLayout()}
	for i := range layouts {
		layouts[i].MaxLength = cfg.Parser.MaxRecordLength
	}

	var failed int
	for _, path := range paths {
		buf, err := file.ReadFile(ctx, &file.FileCfg{Path: path})
		if err != nil {
			failed++
			fmt.Fprintf(w, "%s: %v\n", path, err)
			continue
		}

		hits, stats := scanner.Scan(buf, 0, 0, layouts...)
		var frames, logs, truncated int
		for _, h := range hits {
			switch h.Kind {
			case core.KindFrame:
				frames++
			case core.KindLog:
				logs++
			}
			if h.Truncated {
				truncated++
			}
		}

		fmt.Fprintf(w, "%s: %s, %s frames, %s logs, %d truncated, %s candidates\n",
			path, humanize.Bytes(uint64(len(buf))),
			humanize.Comma(int64(frames)), humanize.Comma(int64(logs)),
			truncated, humanize.Comma(int64(stats.Candidates)))
		stats.EachRejection(func(r scanner.Reason, n int) {
			fmt.Fprintf(w, "  rejected %-12s %s\n", r.String(), humanize.Comma(int64(n)))
		})
		if offsets {
			for _, h := range hits {
				fmt.Fprintf(w, "  %10d %-5s len=%d\n", h.Offset, h.Kind, h.Length)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(paths))
	}
	return nil
}
