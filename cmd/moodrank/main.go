// Command moodrank ranks game candidates against moods from the command line
// or over HTTP.
//
// Usage:
//
//	moodrank [flags] <command>
//
// Commands:
//
//	rank   - Rank a catalog file and print the result as JSON
//	serve  - Serve POST /v1/rerank, /healthz and /metrics
//
// Configuration is read from MOODRANK_CONFIG (YAML) and MOODRANK_* env vars.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
