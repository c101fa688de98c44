package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sigs.k8s.io/yaml"
)

// DefaultBusWidth is the CSR data width used when none is configured.
const DefaultBusWidth = 8

// Config is the top-level configuration for csrc
type Config struct {
	// BusWidth is the CSR bus data width in bits
	BusWidth int `json:"busWidth,omitempty"`

	// Descriptions is a list of glob patterns for register description files
	Descriptions []string `json:"descriptions,omitempty"`

	// Exclude is a list of glob patterns removed from Descriptions
	Exclude []string `json:"exclude,omitempty"`

	// Lint contains register-map rule configuration
	Lint LintConfig `json:"lint,omitempty"`

	// Output controls report and timing output
	Output OutputConfig `json:"output,omitempty"`
}

// LintConfig contains register-map rule configuration
type LintConfig struct {
	// Rules maps rule names to severity: "off", "info", "warning", "error"
	Rules map[string]string `json:"rules,omitempty"`

	// PolicyDir overrides the built-in rules with the .rego files in a directory
	PolicyDir string `json:"policyDir,omitempty"`

	// FailOn is the lowest severity that makes the run fail: "error" or "warning"
	FailOn string `json:"failOn,omitempty"`
}

// OutputConfig controls output
type OutputConfig struct {
	// JSON prints the report as JSON instead of text
	JSON bool `json:"json,omitempty"`

	// TimingPath writes per-stage timing events as JSON lines
	TimingPath string `json:"timingPath,omitempty"`
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() *Config {
	return &Config{
		BusWidth:     DefaultBusWidth,
		Descriptions: defaultDescriptions(),
		Exclude:      []string{},
		Lint: LintConfig{
			Rules:  map[string]string{},
			FailOn: "error",
		},
	}
}

func defaultDescriptions() []string {
	return []string{"*.csr.yaml", "*.csr.yml", "*.csr.json", "**/*.csr.yaml", "**/*.csr.yml", "**/*.csr.json"}
}

var configNames = []string{"csrc.json", ".csrc.json", "csrc.yaml", ".csrc.yaml"}

// Load finds and loads the configuration file
// Search order:
//  1. ./csrc.json, ./.csrc.json, ./csrc.yaml, ./.csrc.yaml (current working directory)
//  2. the same names under <rootPath> (if a directory different from cwd)
//  3. ~/.config/csrc/config.json
//
// Returns DefaultConfig if no config file is found
func Load(rootPath string) (*Config, error) {
	cwd, _ := os.Getwd()

	var searchPaths []string
	for _, name := range configNames {
		searchPaths = append(searchPaths, filepath.Join(cwd, name))
	}

	if info, err := os.Stat(rootPath); err == nil && info.IsDir() {
		absRoot, _ := filepath.Abs(rootPath)
		if absRoot != cwd {
			for _, name := range configNames {
				searchPaths = append(searchPaths, filepath.Join(rootPath, name))
			}
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(home, ".config", "csrc", "config.json"))
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}

	return DefaultConfig(), nil
}

// LoadFile loads configuration from a specific JSON or YAML file
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	return &cfg, nil
}

// applyDefaults fills in missing configuration with defaults
func (c *Config) applyDefaults() {
	if c.BusWidth == 0 {
		c.BusWidth = DefaultBusWidth
	}
	if len(c.Descriptions) == 0 {
		c.Descriptions = defaultDescriptions()
	}
	if c.Lint.Rules == nil {
		c.Lint.Rules = make(map[string]string)
	}
	if c.Lint.FailOn == "" {
		c.Lint.FailOn = "error"
	}
}

var severities = map[string]bool{"off": true, "info": true, "warning": true, "error": true}

// Validate rejects values the compiler cannot use
func (c *Config) Validate() error {
	if c.BusWidth < 1 {
		return fmt.Errorf("busWidth %d must be at least 1", c.BusWidth)
	}
	for rule, sev := range c.Lint.Rules {
		if !severities[sev] {
			return fmt.Errorf("rule %s: unknown severity %q", rule, sev)
		}
	}
	if c.Lint.FailOn != "error" && c.Lint.FailOn != "warning" {
		return fmt.Errorf("failOn must be error or warning, got %q", c.Lint.FailOn)
	}
	return nil
}

// Save writes the configuration to a file, as YAML when the name ends in .yaml or .yml
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// GetRuleSeverity returns the severity for a rule, or the default if not configured
func (c *Config) GetRuleSeverity(rule string, defaultSeverity string) string {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity
	}
	return defaultSeverity
}

// IsRuleEnabled returns true if the rule is not set to "off"
func (c *Config) IsRuleEnabled(rule string) bool {
	if severity, ok := c.Lint.Rules[rule]; ok {
		return severity != "off"
	}
	return true // enabled by default
}
