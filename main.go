// Package main is the entry point for the tracekit capture file parser.
package main

import (
	"fmt"
	"os"

	"firestige.xyz/tracekit/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
