// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/tracekit/internal/config"
	"firestige.xyz/tracekit/internal/log"

	// Output types register themselves with the sink registry.
	_ "firestige.xyz/tracekit/internal/sink/console"
	_ "firestige.xyz/tracekit/internal/sink/jsonl"
	_ "firestige.xyz/tracekit/internal/sink/kafka"
	_ "firestige.xyz/tracekit/internal/sink/yaml"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "tracekit",
	Short: "tracekit - device capture file parser",
	Long: `tracekit parses binary capture files written by field devices. A capture interleaves
protocol frames and diagnostic log lines; tracekit finds the record boundaries, decodes
both families in parallel and writes the entries, ordered, to the configured outputs.

Features:
  - Resynchronises on corrupt or partially written data
  - Tolerates a truncated trailing record
  - Reads plain, gzip and zstd compressed captures
  - Console, JSON lines, YAML and Kafka outputs`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults apply when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log level (debug, info, warn, error)")

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(validateCmd)
}

// loadConfig loads the global configuration and initialises logging.
func loadConfig() (*config.GlobalConfig, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := log.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to init logging: %w", err)
	}
	return cfg, nil
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
