// Package desc loads register description files and builds the component
// tree they declare.
package desc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"regexp"
	"strings"

	yamlv3 "gopkg.in/yaml.v3"
	"sigs.k8s.io/yaml"

	"github.com/robert-at-pretension-io/csrc/internal/validator"
)

// Description is one module of a register description file.
type Description struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	BusWidth    int            `json:"busWidth,omitempty"`
	Registers   []RegisterDesc `json:"registers,omitempty"`
	Memories    []MemoryDesc   `json:"memories,omitempty"`
	Constants   []ConstantDesc `json:"constants,omitempty"`
	Submodules  []Description  `json:"submodules,omitempty"`
	// Exclude names direct items left out of collection.
	Exclude []string `json:"exclude,omitempty"`
}

type RegisterDesc struct {
	Name          string      `json:"name"`
	Kind          string      `json:"kind"`
	Size          int         `json:"size,omitempty"`
	Reset         *Value      `json:"reset,omitempty"`
	Description   string      `json:"description,omitempty"`
	Fields        []FieldDesc `json:"fields,omitempty"`
	AtomicWrite   bool        `json:"atomicWrite,omitempty"`
	WriteFromDev  bool        `json:"writeFromDev,omitempty"`
	AlignmentBits int         `json:"alignmentBits,omitempty"`
}

type FieldDesc struct {
	Name        string           `json:"name"`
	Size        int              `json:"size,omitempty"`
	Offset      *int             `json:"offset,omitempty"`
	Reset       *Value           `json:"reset,omitempty"`
	Access      string           `json:"access,omitempty"`
	Pulse       bool             `json:"pulse,omitempty"`
	Description string           `json:"description,omitempty"`
	Values      []FieldValueDesc `json:"values,omitempty"`
}

type FieldValueDesc struct {
	Value       Value  `json:"value"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type MemoryDesc struct {
	Name        string `json:"name"`
	Width       int    `json:"width"`
	Depth       int    `json:"depth"`
	Description string `json:"description,omitempty"`
}

type ConstantDesc struct {
	Name        string `json:"name"`
	Value       Value  `json:"value"`
	Width       int    `json:"width,omitempty"`
	Description string `json:"description,omitempty"`
}

// Value is a non-negative integer of any width. It decodes from a JSON
// number or from a string with an optional 0x, 0b or 0o prefix and
// underscore digit separators. Parse turns bare decimal numbers wider than
// 64 bits into strings before decoding; callers of UnmarshalJSON with raw
// JSON must quote them.
type Value big.Int

// NewValue wraps v.
func NewValue(v int64) *Value { return (*Value)(big.NewInt(v)) }

// Int returns a copy of the value, zero for a nil Value.
func (v *Value) Int() *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set((*big.Int)(v))
}

func (v *Value) UnmarshalJSON(data []byte) error {
	text := string(data)
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
	}
	n, ok := new(big.Int).SetString(strings.ReplaceAll(text, "_", ""), 0)
	if !ok {
		return fmt.Errorf("invalid integer %s", data)
	}
	if n.Sign() < 0 {
		return fmt.Errorf("value %s must not be negative", n)
	}
	(*big.Int)(v).Set(n)
	return nil
}

func (v *Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(fmt.Sprintf("0x%x", (*big.Int)(v)))
}

// Parse decodes a YAML or JSON description. When v is non-nil the document
// is checked against the description schema first.
func Parse(data []byte, v *validator.Validator) (*Description, error) {
	data, err := quoteWideIntegers(data)
	if err != nil {
		return nil, fmt.Errorf("parsing description: %w", err)
	}
	jsonBytes, err := yaml.YAMLToJSON(data)
	if err != nil {
		return nil, fmt.Errorf("parsing description: %w", err)
	}
	if v != nil {
		if err := v.ValidateJSON(jsonBytes); err != nil {
			return nil, err
		}
	}

	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.DisallowUnknownFields()
	var d Description
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("decoding description: %w", err)
	}
	return &d, nil
}

var wideInteger = regexp.MustCompile(`^[0-9][0-9_]*$`)

// quoteWideIntegers rewrites plain decimal scalars that only resolve as
// floats, because they overflow 64 bits, into quoted strings. Left alone
// they would reach Value rounded.
func quoteWideIntegers(data []byte) ([]byte, error) {
	var doc yamlv3.Node
	if err := yamlv3.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 || !quoteWide(&doc) {
		return data, nil
	}
	return yamlv3.Marshal(&doc)
}

func quoteWide(n *yamlv3.Node) bool {
	changed := false
	if n.Kind == yamlv3.ScalarNode && n.Style == 0 && n.ShortTag() == "!!float" && wideInteger.MatchString(n.Value) {
		n.Tag = "!!str"
		n.Style = yamlv3.DoubleQuotedStyle
		changed = true
	}
	for _, c := range n.Content {
		if quoteWide(c) {
			changed = true
		}
	}
	return changed
}

// Load reads and parses a description file.
func Load(path string, v *validator.Validator) (*Description, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading description: %w", err)
	}
	d, err := Parse(data, v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}
