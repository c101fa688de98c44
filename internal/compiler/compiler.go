package compiler

// =============================================================================
// COMPILER: ONE DESCRIPTION FILE, ONE BANK
// =============================================================================
//
// Every description file is a compilation unit. For each unit the compiler:
// 1. Loads the file and checks it against the #Description contract
// 2. Builds the component tree (registers, memories, constants, submodules)
// 3. Collects the tree into flat, creation-ordered lists with unique names
// 4. Splits every register into bus-width slots and assigns addresses
// 5. Flattens the bank into register map tables, checked by #RegisterMap
//
// The tables of all units then go through the lint rules.
//
// A unit that fails to build is reported and skipped; the remaining units
// are still compiled and linted. Construction errors keep their type
// (csr.LayoutOverlapError and friends) through the wrapping added here.
// =============================================================================

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	"github.com/robert-at-pretension-io/csrc/internal/config"
	"github.com/robert-at-pretension-io/csrc/internal/csr"
	"github.com/robert-at-pretension-io/csrc/internal/desc"
	"github.com/robert-at-pretension-io/csrc/internal/policy"
	"github.com/robert-at-pretension-io/csrc/internal/regmap"
	"github.com/robert-at-pretension-io/csrc/internal/validator"
)

// Compiler turns register description files into register maps and lints
// them.
type Compiler struct {
	// Configuration loaded from csrc.json
	Config *config.Config

	// Log receives progress and per-unit details. Defaults to logr.Discard().
	Log logr.Logger

	// Out receives the human or JSON report. Defaults to os.Stdout.
	Out io.Writer

	// Verbose output: print the address map of every unit
	Verbose bool

	// JSON output mode
	JSONOutput bool

	// Timing output (JSONL)
	Timing     bool
	TimingPath string
}

// Unit is one compiled description file.
type Unit struct {
	File        string
	Description *desc.Description
	Tree        *desc.Tree
	Registers   []csr.Register
	Memories    []*csr.Memory
	Constants   []*csr.Constant
	Bank        *csr.Bank
	Tables      regmap.Tables
}

// LintResult is the structured result of a run.
// This can be serialized to JSON for programmatic consumption
type LintResult struct {
	// Violations found by policy evaluation, after severity overrides
	Violations []policy.Violation `json:"violations"`

	// Summary counts
	Summary policy.Summary `json:"summary"`

	// Per-unit statistics
	Units []UnitResult `json:"units"`

	// Units that failed to compile
	CompileErrors []CompileError `json:"compile_errors,omitempty"`
}

// UnitResult summarizes one compiled unit.
type UnitResult struct {
	File       string `json:"file"`
	BusWidth   int    `json:"bus_width"`
	DecodeBits int    `json:"decode_bits"`
	Registers  int    `json:"registers"`
	Slots      int    `json:"slots"`
	Constants  int    `json:"constants"`
	Memories   int    `json:"memories"`
}

// CompileError records a unit that failed to compile.
type CompileError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// New creates a compiler with the default configuration.
func New() *Compiler {
	return NewWithConfig(config.DefaultConfig())
}

// NewWithConfig creates a compiler with the given configuration.
func NewWithConfig(cfg *config.Config) *Compiler {
	return &Compiler{
		Config:     cfg,
		Log:        logr.Discard(),
		Out:        os.Stdout,
		JSONOutput: cfg.Output.JSON,
	}
}

// CompileFile compiles a single description file.
func (c *Compiler) CompileFile(path string) (*Unit, error) {
	v, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("CRITICAL: Failed to initialize CUE validator: %w", err)
	}
	mv, err := validator.NewMapValidator()
	if err != nil {
		return nil, fmt.Errorf("CRITICAL: Failed to initialize register map validator: %w", err)
	}
	return c.compileUnit(path, v, mv, nil)
}

func (c *Compiler) compileUnit(path string, v *validator.Validator, mv *validator.MapValidator, timing *timingRecorder) (*Unit, error) {
	log := c.Log.WithName("unit").WithValues("file", path)

	stepStart := time.Now()
	d, err := desc.Load(path, v)
	if err != nil {
		return nil, err
	}
	timing.RecordUnit("load", path, "", stepStart)

	stepStart = time.Now()
	tree, err := desc.Build(d, path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	unit := &Unit{File: path, Description: d, Tree: tree}
	if unit.Registers, err = csr.CollectRegisters(tree.Root); err != nil {
		return nil, fmt.Errorf("%s: collecting registers: %w", path, err)
	}
	if unit.Memories, err = csr.CollectMemories(tree.Root); err != nil {
		return nil, fmt.Errorf("%s: collecting memories: %w", path, err)
	}
	if unit.Constants, err = csr.CollectConstants(tree.Root); err != nil {
		return nil, fmt.Errorf("%s: collecting constants: %w", path, err)
	}
	timing.RecordUnit("build", path, "", stepStart)

	stepStart = time.Now()
	busWidth := c.Config.BusWidth
	if d.BusWidth != 0 {
		busWidth = d.BusWidth
	}
	if unit.Bank, err = csr.NewBank(unit.Registers, busWidth); err != nil {
		return nil, fmt.Errorf("%s: splitting registers: %w", path, err)
	}
	timing.RecordUnit("split", path, "", stepStart)

	stepStart = time.Now()
	unit.Tables = regmap.BuildTables(unit.Bank, unit.Memories, unit.Constants, tree.Sources)
	unit.Tables.Unit = path
	if err := mv.Validate(unit.Tables); err != nil {
		return nil, fmt.Errorf("CRITICAL: Data contract violation (register map -> policy engine mismatch) in %s: %w", path, err)
	}
	timing.RecordUnit("tables", path, "", stepStart)

	log.V(1).Info("compiled",
		"busWidth", busWidth,
		"registers", len(unit.Registers),
		"slots", len(unit.Bank.Slots),
		"decodeBits", unit.Bank.DecodeBits)
	return unit, nil
}

// Compile resolves the description files under rootPath and compiles them
// in parallel. Units come back in file order; units that fail are returned
// as CompileErrors alongside the good ones.
func (c *Compiler) Compile(rootPath string) ([]*Unit, []CompileError, error) {
	return c.compile(rootPath, nil)
}

func (c *Compiler) compile(rootPath string, timing *timingRecorder) ([]*Unit, []CompileError, error) {
	log := c.Log.WithName("compiler")

	stepStart := time.Now()
	files, err := c.Config.ResolveDescriptions(rootPath)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving description files: %w", err)
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("no description files found under %s", rootPath)
	}
	timing.RecordStage("resolve", stepStart, "")
	log.Info("resolved description files", "root", rootPath, "count", len(files))

	stepStart = time.Now()
	results := make([]*Unit, len(files))
	failures := make([]error, len(files))
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			// CUE contexts are not safe for concurrent use.
			v, err := validator.New()
			if err != nil {
				return fmt.Errorf("CRITICAL: Failed to initialize CUE validator: %w", err)
			}
			mv, err := validator.NewMapValidator()
			if err != nil {
				return fmt.Errorf("CRITICAL: Failed to initialize register map validator: %w", err)
			}
			results[i], failures[i] = c.compileUnit(f, v, mv, timing)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var units []*Unit
	var errs []CompileError
	for i, f := range files {
		if failures[i] != nil {
			log.Error(failures[i], "unit failed", "file", f)
			errs = append(errs, CompileError{File: f, Message: failures[i].Error()})
			continue
		}
		units = append(units, results[i])
	}
	timing.RecordStage("compile", stepStart, "")
	return units, errs, nil
}

// Lint evaluates the lint rules over every unit and applies the configured
// severities. Rules set to "off" are dropped.
func (c *Compiler) Lint(ctx context.Context, units []*Unit) (*LintResult, error) {
	var engine *policy.Engine
	var err error
	if c.Config.Lint.PolicyDir != "" {
		engine, err = policy.New(c.Config.Lint.PolicyDir)
	} else {
		engine, err = policy.NewDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("initialize policy engine: %w", err)
	}

	result := &LintResult{
		Violations: []policy.Violation{},
		Units:      []UnitResult{},
	}
	for _, u := range units {
		pr, err := engine.Evaluate(ctx, u.Tables)
		if err != nil {
			return nil, fmt.Errorf("policy evaluation failed for %s: %w", u.File, err)
		}
		for _, v := range pr.Violations {
			if !c.Config.IsRuleEnabled(v.Rule) {
				continue
			}
			v.Severity = c.Config.GetRuleSeverity(v.Rule, v.Severity)
			if v.File == "" {
				v.File = u.File
			}
			result.Violations = append(result.Violations, v)
		}
		result.Units = append(result.Units, UnitResult{
			File:       u.File,
			BusWidth:   u.Tables.BusWidth,
			DecodeBits: u.Tables.DecodeBits,
			Registers:  len(u.Tables.Registers),
			Slots:      len(u.Tables.Slots),
			Constants:  len(u.Tables.Constants),
			Memories:   len(u.Tables.Memories),
		})
	}
	result.Summary = policy.Summarize(result.Violations)
	return result, nil
}

// Run compiles and lints everything under rootPath and writes the report.
// It fails when a unit does not compile or when a violation reaches the
// configured failOn severity.
func (c *Compiler) Run(ctx context.Context, rootPath string) error {
	runStart := time.Now()
	log := c.Log.WithName("compiler")

	timing := newTimingRecorder(runStart, c.resolveTimingPath(rootPath))
	defer timing.Close()
	if err := timing.Err(); err != nil {
		log.Error(err, "timing output disabled")
	}

	units, compileErrs, err := c.compile(rootPath, timing)
	if err != nil {
		return err
	}

	stepStart := time.Now()
	result, err := c.Lint(ctx, units)
	if err != nil {
		return err
	}
	result.CompileErrors = compileErrs
	timing.RecordStage("policy", stepStart, "")

	if err := c.report(units, result); err != nil {
		return err
	}
	timing.RecordStage("total", runStart, "")
	log.V(1).Info("run complete", "units", len(units), "violations", result.Summary.TotalViolations, "elapsed", formatDuration(time.Since(runStart)))

	if len(compileErrs) > 0 {
		msgs := make([]string, 0, len(compileErrs))
		for _, e := range compileErrs {
			msgs = append(msgs, e.Message)
		}
		return fmt.Errorf("compile errors:\n%s", formatErrors(msgs))
	}
	if failed(c.Config.Lint.FailOn, result.Summary) {
		return fmt.Errorf("lint failed: %d error(s), %d warning(s)", result.Summary.Errors, result.Summary.Warnings)
	}
	return nil
}

func failed(failOn string, s policy.Summary) bool {
	if s.Errors > 0 {
		return true
	}
	return failOn == "warning" && s.Warnings > 0
}

func (c *Compiler) report(units []*Unit, result *LintResult) error {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}

	if c.JSONOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
		return nil
	}

	if c.Verbose {
		for _, u := range units {
			printAddressMap(out, u)
		}
	}

	if len(result.Violations) > 0 {
		fmt.Fprintf(out, "\n=== Policy Violations ===\n")
		for _, v := range result.Violations {
			icon := "ℹ"
			if v.Severity == "error" {
				icon = "✗"
			} else if v.Severity == "warning" {
				icon = "⚠"
			}
			fmt.Fprintf(out, "%s [%s] %s:%s - %s\n", icon, v.Rule, v.File, v.Register, v.Message)
		}
	}

	fmt.Fprintf(out, "\n=== Policy Summary ===\n")
	fmt.Fprintf(out, "  Errors:   %d\n", result.Summary.Errors)
	fmt.Fprintf(out, "  Warnings: %d\n", result.Summary.Warnings)
	fmt.Fprintf(out, "  Info:     %d\n", result.Summary.Info)

	var registers, slots, constants, memories int
	for _, u := range result.Units {
		registers += u.Registers
		slots += u.Slots
		constants += u.Constants
		memories += u.Memories
	}
	fmt.Fprintf(out, "\n=== Compile Summary ===\n")
	fmt.Fprintf(out, "  Units:     %d\n", len(result.Units))
	fmt.Fprintf(out, "  Registers: %d\n", registers)
	fmt.Fprintf(out, "  Slots:     %d\n", slots)
	fmt.Fprintf(out, "  Constants: %d\n", constants)
	fmt.Fprintf(out, "  Memories:  %d\n", memories)

	if len(result.CompileErrors) > 0 {
		fmt.Fprintf(out, "\n=== Compile Errors ===\n")
		for _, e := range result.CompileErrors {
			fmt.Fprintf(out, "  %s\n", e.Message)
		}
	}
	return nil
}

func printAddressMap(out io.Writer, u *Unit) {
	t := u.Tables
	fmt.Fprintf(out, "\n=== Address Map: %s (bus %d bits, %d decode bits) ===\n", u.File, t.BusWidth, t.DecodeBits)
	digits := (t.DecodeBits + 3) / 4
	for _, s := range t.Slots {
		fmt.Fprintf(out, "  0x%0*x  %-24s %s[%d:%d]  %s\n", digits, s.Address, s.Name, s.Register, s.Hi-1, s.Lo, s.Access)
	}
	for _, k := range t.Constants {
		fmt.Fprintf(out, "  const    %-24s %s (%d bits)\n", k.Name, k.Value, k.Width)
	}
	for _, m := range t.Memories {
		fmt.Fprintf(out, "  memory   %-24s %dx%d\n", m.Name, m.Depth, m.Width)
	}
}

func formatErrors(msgs []string) string {
	var b strings.Builder
	for i, m := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(m)
	}
	return b.String()
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%dus", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}
