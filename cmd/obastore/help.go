package main

import (
	"fmt"
	"io"
)

const storeOptions = `  -config string
        Path to configuration file
  -data-dir string
        Data directory path (overrides config, default "/var/lib/obastore")
  -backend string
        Storage backend: memory, file (overrides config)
  -log-level string
        Log level: debug, info, warn, error (overrides config)
  -h, -help
        Show this help message
`

// printUsage prints the main usage information to the given writer.
func printUsage(w io.Writer) {
	fmt.Fprint(w, `obastore - indexed entry storage for LDAP directories

Usage:
  obastore <command> [options]

Commands:
  stats       Show table and journal statistics
  verify      Check index consistency
  compact     Rewrite journals as snapshots
  search      Search indexed attributes
  export      Export entries as LDIF
  import      Import entries from LDIF
  config      Configuration management
  version     Show version information

Use "obastore <command> -h" for more information about a command.
`)
}

// printStatsUsage prints the stats command usage.
func printStatsUsage(w io.Writer) {
	fmt.Fprint(w, `Show table and journal statistics

Usage:
  obastore stats [options]

Options:
`+storeOptions)
}

// printVerifyUsage prints the verify command usage.
func printVerifyUsage(w io.Writer) {
	fmt.Fprint(w, `Check that every index agrees with itself and with the stored entries

Usage:
  obastore verify [options]

Options:
`+storeOptions+`
Exit status is 1 when an inconsistency is found.
`)
}

// printCompactUsage prints the compact command usage.
func printCompactUsage(w io.Writer) {
	fmt.Fprint(w, `Rewrite every journal as a snapshot

Usage:
  obastore compact [options]

Options:
`+storeOptions)
}

// printSearchUsage prints the search command usage.
func printSearchUsage(w io.Writer) {
	fmt.Fprint(w, `Search indexed attributes

Usage:
  obastore search -filter <filter> [options]
  obastore search -attr <name> [conditions] [options]

Conditions (combined with AND):
  -filter string
        LDAP filter such as "(&(objectClass=person)(cn=*smith*))"
  -equal string
        Values equal to this
  -ge string
        Values greater than or equal to this
  -le string
        Values less than or equal to this
  -substring string
        Values matching a wildcard pattern such as "*smith"
  -present
        Entries that carry the attribute

Options:
  -attr string
        Attribute for -equal, -ge, -le, -substring and -present
  -ldif
        Print matching entries as LDIF instead of DNs
`+storeOptions)
}

// printExportUsage prints the export command usage.
func printExportUsage(w io.Writer) {
	fmt.Fprint(w, `Export entries as LDIF

Usage:
  obastore export [options]

Options:
  -output string
        Output file path, - for stdout (default "-")
  -compress
        Compress the LDIF with zstd
  -level int
        zstd compression level (0 for default)
`+storeOptions)
}

// printImportUsage prints the import command usage.
func printImportUsage(w io.Writer) {
	fmt.Fprint(w, `Import entries from LDIF, plain or zstd-compressed

Usage:
  obastore import -input <file> [options]

Options:
  -input string
        Input LDIF file, - for stdin (required)
`+storeOptions)
}

// printConfigUsage prints the config command usage.
func printConfigUsage(w io.Writer) {
	fmt.Fprint(w, `Configuration management

Usage:
  obastore config <subcommand> [options]

Subcommands:
  validate    Validate a configuration file
  init        Print the default configuration
  show        Print the effective configuration
`)
}

// printVersionUsage prints the version command usage.
func printVersionUsage(w io.Writer) {
	fmt.Fprint(w, `Show version information

Usage:
  obastore version [options]

Options:
  -short
        Show only version number
  -h, -help
        Show this help message
`)
}
