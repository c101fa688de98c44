// =============================================================================
// csrc - Register Map Compiler
// =============================================================================
//
// csrc turns register descriptions (YAML or JSON) into a bus register map
// and checks the result against a set of register design rules.
//
// THE PIPELINE:
//   1. CUE validator checks each description file (crash on schema mismatch)
//   2. Descriptions build registers, memories and constants
//   3. The collector flattens the tree in creation order with unique names
//   4. Every register is split into bus-width slots with consecutive addresses
//   5. The register map tables are checked against their own contract
//   6. OPA evaluates the lint rules against the tables
//
// WHEN A MAP LOOKS WRONG:
//   Start at the description, then the slot table (csrc -v), then the rules.
// =============================================================================

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/robert-at-pretension-io/csrc/internal/compiler"
	"github.com/robert-at-pretension-io/csrc/internal/config"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]

	switch cmd {
	case "init":
		runInit()
	case "-v", "--verbose":
		if len(os.Args) < 3 {
			printUsage()
			os.Exit(1)
		}
		runCompile(os.Args[2], "", true)
	case "-h", "--help", "help":
		printUsage()
	case "-c", "--config":
		if len(os.Args) < 4 {
			printUsage()
			os.Exit(1)
		}
		runCompile(os.Args[3], os.Args[2], false)
	default:
		runCompile(cmd, "", false)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: csrc [command] [options] <path>

Commands:
  init              Create a csrc.json configuration file
  <path>            Compile and lint the register descriptions under path

Options:
  -v, --verbose     Print the address map and debug logs
  -c, --config      Specify config file: csrc -c csrc.json <path>
  -h, --help        Show this help message

Configuration:
  csrc looks for configuration in:
    1. ./csrc.json, ./.csrc.json, ./csrc.yaml, ./.csrc.yaml
    2. the same names in <path>
    3. ~/.config/csrc/config.json

  Run 'csrc init' to create a default configuration file.`)
}

func runInit() {
	configPath := "csrc.json"

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config file %s already exists. Overwrite? [y/N]: ", configPath)
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted.")
			return
		}
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("\nEdit this file to configure:")
	fmt.Println("  - Bus width")
	fmt.Println("  - Description file patterns")
	fmt.Println("  - Lint rule severities")
}

func runCompile(path, configPath string, verbose bool) {
	log := newLogger(verbose)

	var cfg *config.Config
	var err error
	if configPath != "" {
		if cfg, err = config.LoadFile(configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config %s: %v\n", configPath, err)
			os.Exit(1)
		}
	} else if cfg, err = config.Load(path); err != nil {
		log.Error(err, "could not load config, using defaults")
		cfg = config.DefaultConfig()
	}

	c := compiler.NewWithConfig(cfg)
	c.Log = log
	c.Verbose = verbose
	if err := c.Run(context.Background(), path); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) logr.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level))
	return zapr.NewLogger(zap.New(core))
}
