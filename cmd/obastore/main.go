// Package main provides the entry point for the obastore CLI.
package main

import (
	"fmt"
	"io"
	"os"
)

// Output streams, replaced in tests.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	exitCode := run(os.Args)
	os.Exit(exitCode)
}

// run executes the CLI and returns an exit code.
// This is separated from main() to facilitate testing.
func run(args []string) int {
	if len(args) < 2 {
		printUsage(stdout)
		return 1
	}

	switch args[1] {
	case "stats":
		return statsCmd(args[2:])
	case "verify":
		return verifyCmd(args[2:])
	case "compact":
		return compactCmd(args[2:])
	case "search":
		return searchCmd(args[2:])
	case "export":
		return exportCmd(args[2:])
	case "import":
		return importCmd(args[2:])
	case "config":
		return configCmd(args[2:])
	case "version":
		return versionCmd(args[2:])
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		fmt.Fprintln(stderr, "Run 'obastore help' for usage.")
		return 1
	}
}
