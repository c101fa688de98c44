package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/robert-at-pretension-io/csrc/internal/compiler"
	"github.com/robert-at-pretension-io/csrc/internal/config"
	"github.com/robert-at-pretension-io/csrc/internal/regmap"
)

func main() {
	output := flag.String("output", "", "write register map JSON to file (default: stdout)")
	flag.StringVar(output, "o", "", "write register map JSON to file (shorthand)")
	deltaFrom := flag.String("delta-from", "", "previous register map JSON to compute delta from")
	deltaOut := flag.String("delta-out", "", "write delta JSON to file (requires --delta-from)")
	verbose := flag.Bool("v", false, "log each compiled unit")
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: csr-map [-v] [--output file] [--delta-from prev.json --delta-out delta.json] <path>")
		os.Exit(1)
	}

	path := args[0]
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	level := zapcore.WarnLevel
	if *verbose {
		level = zapcore.DebugLevel
	}
	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	zaplogger := zap.New(zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(level)))

	c := compiler.NewWithConfig(cfg)
	c.Log = zapr.NewLogger(zaplogger)
	units, compileErrs, err := c.Compile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(compileErrs) > 0 {
		for _, e := range compileErrs {
			fmt.Fprintf(os.Stderr, "Error: %s\n", e.Message)
		}
		os.Exit(1)
	}

	maps := make([]regmap.Tables, 0, len(units))
	for _, u := range units {
		maps = append(maps, u.Tables)
	}

	if *output != "" {
		if err := writeJSON(*output, maps); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing register map: %v\n", err)
			os.Exit(1)
		}
	} else {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(maps); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding register map: %v\n", err)
			os.Exit(1)
		}
	}

	if *deltaFrom != "" || *deltaOut != "" {
		if *deltaFrom == "" || *deltaOut == "" {
			fmt.Fprintln(os.Stderr, "Error: --delta-from and --delta-out must be used together")
			os.Exit(1)
		}
		prev, err := readMaps(*deltaFrom)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading delta-from: %v\n", err)
			os.Exit(1)
		}
		delta := regmap.ComputeUnitDeltas(prev, maps)
		if err := writeJSON(*deltaOut, delta); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing delta: %v\n", err)
			os.Exit(1)
		}
	}
}

func readMaps(path string) ([]regmap.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var maps []regmap.Tables
	if err := json.NewDecoder(f).Decode(&maps); err != nil {
		return nil, err
	}
	return maps, nil
}

func writeJSON(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
