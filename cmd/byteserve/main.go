// Package main is the ByteServe server entrypoint.
package main

import (
	"fmt"
	"os"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = `ByteServe - self-hosted S3-compatible object storage

Usage:
  byteserve <command> [flags]

Commands:
  init     Initialize a sample configuration file
  start    Start the ByteServe server
  version  Show version information

Flags:
  --config string    Path to config file (default: $XDG_CONFIG_HOME/byteserve/config.yaml)
  --force            Force overwrite existing config file (init command only)

Examples:
  byteserve init
  byteserve start
  byteserve start --config /etc/byteserve/config.yaml
  BYTESERVE_LOGGING_LEVEL=DEBUG byteserve start

Environment Variables:
  All configuration options can be overridden using environment variables.
  Format: BYTESERVE_<SECTION>_<KEY> (use underscores for nested keys)

  Examples:
    BYTESERVE_LOGGING_LEVEL=DEBUG
    BYTESERVE_SERVER_PORT=9000
    BYTESERVE_STORAGE_BLOB_ROOT=/data/blobs
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "start":
		runStart(os.Args[2:])
	case "help", "--help", "-h":
		fmt.Print(usage)
		os.Exit(0)
	case "version", "--version", "-v":
		fmt.Printf("byteserve %s (commit: %s, built: %s)\n", version, commit, date)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}
