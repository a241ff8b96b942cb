package main

import (
	"flag"
	"fmt"

	"github.com/KilimcininKorOglu/obastore/internal/config"
)

// configCmd handles the config command.
func configCmd(args []string) int {
	if len(args) == 0 {
		printConfigUsage(stdout)
		return 0
	}

	// Check for help flags
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printConfigUsage(stdout)
		return 0
	}

	switch args[0] {
	case "validate":
		return configValidateCmd(args[1:])
	case "init":
		return configInitCmd(args[1:])
	case "show":
		return configShowCmd(args[1:])
	default:
		fmt.Fprintf(stderr, "Unknown config subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, "Run 'obastore config help' for usage.")
		return 1
	}
}

// configValidateCmd handles the config validate subcommand.
func configValidateCmd(args []string) int {
	fs := flag.NewFlagSet("config validate", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configFile := fs.String("config", "", "Path to configuration file")
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		fmt.Fprintln(stdout, "Validate configuration file")
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "Usage:")
		fmt.Fprintln(stdout, "  obastore config validate -config <file>")
		return 0
	}

	if *configFile == "" {
		fmt.Fprintln(stderr, "Error: -config is required")
		return 1
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "Invalid configuration: %v\n", err)
		return 1
	}

	errs := config.ValidateConfig(cfg)
	if len(errs) > 0 {
		fmt.Fprintln(stderr, "Configuration errors:")
		for _, e := range errs {
			fmt.Fprintf(stderr, "  - %s\n", e)
		}
		return 1
	}

	fmt.Fprintln(stdout, "Configuration is valid")
	return 0
}

// configInitCmd handles the config init subcommand.
func configInitCmd(args []string) int {
	fs := flag.NewFlagSet("config init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		fmt.Fprintln(stdout, "Generate default configuration")
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "Usage:")
		fmt.Fprintln(stdout, "  obastore config init")
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "Outputs default configuration to stdout in YAML format.")
		return 0
	}

	return printConfig(config.DefaultConfig())
}

// configShowCmd handles the config show subcommand.
func configShowCmd(args []string) int {
	fs := flag.NewFlagSet("config show", flag.ContinueOnError)
	fs.SetOutput(stderr)

	sf := addStoreFlags(fs)
	help := fs.Bool("h", false, "Show help message")
	helpLong := fs.Bool("help", false, "Show help message")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	if *help || *helpLong {
		fmt.Fprintln(stdout, "Show effective configuration")
		fmt.Fprintln(stdout)
		fmt.Fprintln(stdout, "Usage:")
		fmt.Fprintln(stdout, "  obastore config show [-config <file>] [-data-dir <dir>] [-backend <name>]")
		return 0
	}

	cfg, err := sf.load()
	if err != nil {
		fmt.Fprintf(stderr, "Error loading configuration: %v\n", err)
		return 1
	}
	return printConfig(cfg)
}

func printConfig(cfg *config.Config) int {
	data, err := config.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error rendering configuration: %v\n", err)
		return 1
	}
	fmt.Fprint(stdout, string(data))
	return 0
}
