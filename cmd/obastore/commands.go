// Package main provides CLI commands for obastore.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/KilimcininKorOglu/obastore/internal/backup"
	"github.com/KilimcininKorOglu/obastore/internal/config"
	"github.com/KilimcininKorOglu/obastore/internal/filter"
	"github.com/KilimcininKorOglu/obastore/internal/logging"
	"github.com/KilimcininKorOglu/obastore/internal/storage/partition"
)

// storeFlags are shared by every command that opens a partition.
type storeFlags struct {
	configFile *string
	dataDir    *string
	backend    *string
	logLevel   *string
}

func addStoreFlags(fs *flag.FlagSet) *storeFlags {
	return &storeFlags{
		configFile: fs.String("config", "", "Path to configuration file"),
		dataDir:    fs.String("data-dir", "", "Data directory path (overrides config)"),
		backend:    fs.String("backend", "", "Storage backend: memory, file (overrides config)"),
		logLevel:   fs.String("log-level", "", "Log level: debug, info, warn, error (overrides config)"),
	}
}

// load reads the configuration and applies flag overrides.
func (sf *storeFlags) load() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if *sf.configFile != "" {
		var err error
		if cfg, err = config.LoadConfig(*sf.configFile); err != nil {
			return nil, err
		}
	}

	if *sf.dataDir != "" {
		abs, err := filepath.Abs(*sf.dataDir)
		if err != nil {
			return nil, err
		}
		cfg.Storage.DataDir = abs
	}
	if *sf.backend != "" {
		cfg.Storage.Backend = *sf.backend
	}
	if *sf.logLevel != "" {
		cfg.Logging.Level = *sf.logLevel
	}

	// Command output owns stdout.
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
	return cfg, nil
}

// open loads the configuration and opens the partition it describes.
func (sf *storeFlags) open() (*partition.Partition, error) {
	cfg, err := sf.load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	return partition.Open(cfg, logger)
}

// withPartition parses args, opens the partition and runs fn on it.
func withPartition(name string, args []string, usage func(io.Writer), define func(fs *flag.FlagSet), fn func(p *partition.Partition) int) int {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	sf := addStoreFlags(fs)
	if define != nil {
		define(fs)
	}
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		usage(stdout)
		return 0
	}

	p, err := sf.open()
	if err != nil {
		fmt.Fprintf(stderr, "Error opening partition: %v\n", err)
		return 1
	}

	code := fn(p)
	if err := p.Close(); err != nil {
		fmt.Fprintf(stderr, "Error closing partition: %v\n", err)
		return 1
	}
	return code
}

// statsCmd handles the stats command.
func statsCmd(args []string) int {
	return withPartition("stats", args, printStatsUsage, nil, func(p *partition.Partition) int {
		return printStats(p)
	})
}

func printStats(p *partition.Partition) int {
	stats, err := p.Stats()
	if err != nil {
		fmt.Fprintf(stderr, "Error reading stats: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Backend: %s\n", p.Backend())
	fmt.Fprintf(stdout, "Entries: %d\n\n", p.Count())

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TABLE\tKEYS\tCOUNT\tDUPS\tLOG RECORDS\tLOG BYTES\tSNAPSHOT BYTES")
	for _, s := range stats {
		var records, logBytes, snapBytes int64
		if s.Journal != nil {
			records = int64(s.Journal.LogRecords)
			logBytes = s.Journal.LogBytes
			snapBytes = s.Journal.SnapshotBytes
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%v\t%d\t%d\t%d\n",
			s.Name, s.Keys, s.Count, s.Duplicates, records, logBytes, snapBytes)
	}
	if err := tw.Flush(); err != nil {
		return 1
	}
	return 0
}

// verifyCmd handles the verify command.
func verifyCmd(args []string) int {
	return withPartition("verify", args, printVerifyUsage, nil, func(p *partition.Partition) int {
		start := time.Now()
		if err := p.Verify(); err != nil {
			fmt.Fprintf(stderr, "Verification failed: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Partition is consistent: %d entries checked in %v\n",
			p.Count(), time.Since(start).Round(time.Millisecond))
		return 0
	})
}

// compactCmd handles the compact command.
func compactCmd(args []string) int {
	return withPartition("compact", args, printCompactUsage, nil, func(p *partition.Partition) int {
		start := time.Now()
		if err := p.Compact(); err != nil {
			fmt.Fprintf(stderr, "Compaction failed: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "Compaction completed in %v\n\n", time.Since(start).Round(time.Millisecond))
		return printStats(p)
	})
}

// searchCmd handles the search command.
func searchCmd(args []string) int {
	var filterStr, attr, equal, ge, le, substring *string
	var present, ldif *bool

	define := func(fs *flag.FlagSet) {
		filterStr = fs.String("filter", "", "LDAP search filter, e.g. (&(uid=alice)(mail=*))")
		attr = fs.String("attr", "", "Attribute to search")
		equal = fs.String("equal", "", "Match values equal to this")
		ge = fs.String("ge", "", "Match values greater than or equal to this")
		le = fs.String("le", "", "Match values less than or equal to this")
		substring = fs.String("substring", "", "Match values against a wildcard pattern")
		present = fs.Bool("present", false, "Match entries that carry the attribute")
		ldif = fs.Bool("ldif", false, "Print matching entries as LDIF")
	}

	return withPartition("search", args, printSearchUsage, define, func(p *partition.Partition) int {
		var searches []func() (*roaring64.Bitmap, error)
		if *filterStr != "" {
			f, err := filter.Parse(*filterStr)
			if err != nil {
				fmt.Fprintf(stderr, "Invalid filter: %v\n", err)
				return 1
			}
			searches = append(searches, func() (*roaring64.Bitmap, error) { return filter.Candidates(p, f) })
		}
		attrSearches := len(searches)
		if *equal != "" {
			searches = append(searches, func() (*roaring64.Bitmap, error) { return p.Equal(*attr, *equal) })
		}
		if *ge != "" {
			searches = append(searches, func() (*roaring64.Bitmap, error) { return p.GreaterOrEqual(*attr, *ge) })
		}
		if *le != "" {
			searches = append(searches, func() (*roaring64.Bitmap, error) { return p.LessOrEqual(*attr, *le) })
		}
		if *substring != "" {
			searches = append(searches, func() (*roaring64.Bitmap, error) { return p.Substring(*attr, *substring) })
		}
		if *present {
			searches = append(searches, func() (*roaring64.Bitmap, error) { return p.Present(*attr) })
		}
		if len(searches) > attrSearches && *attr == "" {
			fmt.Fprintln(stderr, "Error: -attr is required")
			return 1
		}
		if len(searches) == 0 {
			fmt.Fprintln(stderr, "Error: -filter or one of -equal, -ge, -le, -substring, -present is required")
			return 1
		}

		// Several conditions are combined with AND.
		var ids *roaring64.Bitmap
		for _, search := range searches {
			found, err := search()
			if err != nil {
				fmt.Fprintf(stderr, "Search failed: %v\n", err)
				return 1
			}
			if ids == nil {
				ids = found
			} else {
				ids.And(found)
			}
		}

		it := ids.Iterator()
		for it.HasNext() {
			e, ok, err := p.Lookup(it.Next())
			if err != nil {
				fmt.Fprintf(stderr, "Lookup failed: %v\n", err)
				return 1
			}
			if !ok {
				continue
			}
			if *ldif {
				if err := backup.WriteEntry(stdout, e); err != nil {
					return 1
				}
			} else {
				fmt.Fprintln(stdout, e.DN)
			}
		}
		fmt.Fprintf(stderr, "%d entries matched\n", ids.GetCardinality())
		return 0
	})
}

// exportCmd handles the export command.
func exportCmd(args []string) int {
	var output *string
	var compress *bool
	var level *int

	define := func(fs *flag.FlagSet) {
		output = fs.String("output", "-", "Output file path, - for stdout")
		compress = fs.Bool("compress", false, "Compress the LDIF with zstd")
		level = fs.Int("level", 0, "zstd compression level (0 for default)")
	}

	return withPartition("export", args, printExportUsage, define, func(p *partition.Partition) int {
		w := stdout
		if *output != "-" {
			f, err := os.Create(*output)
			if err != nil {
				fmt.Fprintf(stderr, "Error creating output: %v\n", err)
				return 1
			}
			defer f.Close()
			w = f
		}

		stats, err := backup.Export(w, p, backup.Options{Compress: *compress, Level: *level})
		if err != nil {
			fmt.Fprintf(stderr, "Export failed: %v\n", err)
			return 1
		}

		fmt.Fprintf(stderr, "Exported %d entries (%d bytes", stats.Entries, stats.TotalBytes)
		if stats.CompressedBytes > 0 {
			fmt.Fprintf(stderr, ", %d compressed, %.1f%% reduction", stats.CompressedBytes, stats.CompressionRatio()*100)
		}
		fmt.Fprintf(stderr, ") in %v\n", stats.Duration.Round(time.Millisecond))
		return 0
	})
}

// importCmd handles the import command.
func importCmd(args []string) int {
	var input *string

	define := func(fs *flag.FlagSet) {
		input = fs.String("input", "", "Input LDIF file, - for stdin")
	}

	return withPartition("import", args, printImportUsage, define, func(p *partition.Partition) int {
		var r io.Reader
		switch *input {
		case "":
			fmt.Fprintln(stderr, "Error: -input is required")
			return 1
		case "-":
			r = os.Stdin
		default:
			f, err := os.Open(*input)
			if err != nil {
				fmt.Fprintf(stderr, "Error opening input: %v\n", err)
				return 1
			}
			defer f.Close()
			r = f
		}

		stats, err := backup.Import(r, p)
		if err != nil {
			fmt.Fprintf(stderr, "Import failed after %d entries: %v\n", stats.Entries, err)
			return 1
		}
		if err := p.Sync(); err != nil {
			fmt.Fprintf(stderr, "Sync failed: %v\n", err)
			return 1
		}

		fmt.Fprintf(stdout, "Imported %d entries in %v\n", stats.Entries, stats.Duration.Round(time.Millisecond))
		return 0
	})
}
