// Package logging provides structured logging for the obastore storage layer.
//
// # Overview
//
// The logging package exposes a small leveled Logger interface backed by
// log/slog handlers:
//
//   - Multiple log levels (debug, info, warn, error)
//   - Text and JSON output formats
//   - Field-based contextual logging
//
// # Creating a Logger
//
//	logger := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "/var/log/obastore/store.log",
//	})
//
// Tables, indices and the partition accept a nil Logger and fall back to
// NewNop.
//
// # Contextual Fields
//
//	tableLogger := logger.WithFields("table", "uid_forward")
//	tableLogger.Debug("table opened", "keys", 42)
//
// # Output Formats
//
// Text format:
//
//	ts=2026-02-18T10:30:00Z level=info msg="table opened" table=uid_forward
//
// JSON format:
//
//	{"ts":"2026-02-18T10:30:00Z","level":"info","msg":"table opened","table":"uid_forward"}
package logging
