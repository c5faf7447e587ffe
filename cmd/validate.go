package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/tracekit/internal/config"
	"firestige.xyz/tracekit/internal/sink"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file without parsing anything. Outputs are constructed
(but not started) so option errors surface too.

Examples:
  tracekit validate -f tracekit.yml
  tracekit -c tracekit.yml validate`,
	Run: func(cmd *cobra.Command, args []string) {
		path := validateConfigFile
		if path == "" {
			path = configFile
		}
		if path == "" {
			exitWithError("no config file given (use -f or --config)", nil)
		}
		if err := runValidate(path, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
			os.Exit(1)
		}
	},
}

var validateConfigFile string

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "file", "f", "",
		"configuration file to validate (defaults to --config)")
}

func runValidate(path string, w io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if _, err := sink.Build(cfg.Outputs); err != nil {
		return err
	}

	fmt.Fprintf(w, "VALID: %s: %d output(s), families %v, %s charset, %s time zone, dispatch %s\n",
		path,
		len(cfg.Outputs),
		cfg.Parser.Families,
		cfg.Parser.Charset,
		cfg.Parser.Timezone,
		cfg.Pool.Dispatch,
	)
	return nil
}
