package desc

import (
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/robert-at-pretension-io/csrc/internal/csr"
	"github.com/robert-at-pretension-io/csrc/internal/validator"
)

const socYAML = `
name: soc
busWidth: 8
registers:
  - name: ctrl
    kind: storage
    atomicWrite: true
    fields:
      - name: enable
        reset: 1
        values:
          - {value: 0, name: idle}
          - {value: 1, name: run}
      - name: divider
        size: 12
        reset: "0x0_40"
  - name: level
    kind: status
    size: 4
  - name: cmd
    kind: csr
    size: 8
constants:
  - name: version
    value: "0b11"
memories:
  - name: fifo
    width: 32
    depth: 16
submodules:
  - name: uart
    registers:
      - name: baud
        kind: storage
        size: 16
        reset: 0x1b2
`

const socJSON = `{
  "name": "soc",
  "busWidth": 8,
  "registers": [
    {"name": "ctrl", "kind": "storage", "atomicWrite": true, "fields": [
      {"name": "enable", "reset": 1, "values": [{"value": 0, "name": "idle"}, {"value": 1, "name": "run"}]},
      {"name": "divider", "size": 12, "reset": "0x0_40"}
    ]},
    {"name": "level", "kind": "status", "size": 4},
    {"name": "cmd", "kind": "csr", "size": 8}
  ],
  "constants": [{"name": "version", "value": "0b11"}],
  "memories": [{"name": "fifo", "width": 32, "depth": 16}],
  "submodules": [
    {"name": "uart", "registers": [{"name": "baud", "kind": "storage", "size": 16, "reset": 434}]}
  ]
}`

func newValidator(t *testing.T) *validator.Validator {
	t.Helper()
	v, err := validator.New()
	if err != nil {
		t.Fatalf("validator.New: %v", err)
	}
	return v
}

func TestParseYAMLAndJSONAgree(t *testing.T) {
	v := newValidator(t)
	fromYAML, err := Parse([]byte(socYAML), v)
	if err != nil {
		t.Fatalf("Parse YAML: %v", err)
	}
	fromJSON, err := Parse([]byte(socJSON), v)
	if err != nil {
		t.Fatalf("Parse JSON: %v", err)
	}
	if !reflect.DeepEqual(fromYAML, fromJSON) {
		t.Fatalf("YAML and JSON descriptions differ:\n%+v\n%+v", fromYAML, fromJSON)
	}
}

func TestParseValues(t *testing.T) {
	d, err := Parse([]byte(socYAML), newValidator(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := d.Registers[0].Fields[1].Reset.Int(); got.Int64() != 0x40 {
		t.Fatalf("expected divider reset 0x40, got %s", got)
	}
	if got := d.Constants[0].Value.Int(); got.Int64() != 3 {
		t.Fatalf("expected version 3, got %s", got)
	}
	if got := d.Submodules[0].Registers[0].Reset.Int(); got.Int64() != 0x1b2 {
		t.Fatalf("expected baud reset 0x1b2, got %s", got)
	}
}

func TestParseWideDecimalValues(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"yaml", "name: soc\nregisters:\n  - {name: key, kind: storage, size: 72, reset: 1180591620717411303423}\n"},
		{"json", `{"name": "soc", "registers": [{"name": "key", "kind": "storage", "size": 72, "reset": 1180591620717411303423}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := Parse([]byte(tt.doc), newValidator(t))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := d.Registers[0].Reset.Int().String(); got != "1180591620717411303423" {
				t.Fatalf("expected reset 2^70-1, got %s", got)
			}
			if d.Registers[0].Size != 72 {
				t.Fatalf("expected size 72 to stay numeric, got %d", d.Registers[0].Size)
			}
		})
	}
}

func TestValueUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{`42`, "42", false},
		{`"0xff"`, "255", false},
		{`"0b1010"`, "10", false},
		{`"0o17"`, "15", false},
		{`"1_000"`, "1000", false},
		{`"0xffff_ffff_ffff_ffff_ffff"`, "1208925819614629174706175", false},
		{`"-1"`, "", true},
		{`"0xzz"`, "", true},
		{`1.5`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var v Value
			err := v.UnmarshalJSON([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalJSON(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && v.Int().String() != tt.want {
				t.Fatalf("UnmarshalJSON(%s) = %s, want %s", tt.in, v.Int(), tt.want)
			}
		})
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	v := newValidator(t)
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown_kind", "name: soc\nregisters:\n  - {name: x, kind: fifo}\n"},
		{"unknown_key", "name: soc\nregs: []\n"},
		{"zero_size", "name: soc\nregisters:\n  - {name: x, kind: status, size: 0}\n"},
		{"bad_access", "name: soc\nregisters:\n  - {name: x, kind: storage, fields: [{name: a, access: rw}]}\n"},
		{"not_yaml", "name: [unterminated\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc), v); err == nil {
				t.Fatalf("expected %s to be rejected", tt.name)
			}
		})
	}
}

func TestParseWithoutValidatorStillRejectsUnknownKeys(t *testing.T) {
	if _, err := Parse([]byte("name: soc\nregs: []\n"), nil); err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
}

func TestLoadNamesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csr.yaml")
	if err := os.WriteFile(path, []byte("registers: []\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(path, newValidator(t))
	if err == nil {
		t.Fatal("expected description without a name to be rejected")
	}
	if want := path; !strings.Contains(err.Error(), want) {
		t.Fatalf("expected error to name %s, got %v", want, err)
	}
}

func TestBuildCollectsInFileOrder(t *testing.T) {
	d, err := Parse([]byte(socYAML), newValidator(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tree, err := Build(d, "soc.csr.yaml")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	regs, err := csr.CollectRegisters(tree.Root)
	if err != nil {
		t.Fatalf("CollectRegisters: %v", err)
	}
	var names []string
	for _, r := range regs {
		names = append(names, r.Name())
		if tree.Sources[r.ID()] != "soc.csr.yaml" {
			t.Fatalf("register %s has no source", r.Name())
		}
	}
	want := []string{"ctrl", "level", "cmd", "uart_baud"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("expected %v, got %v", want, names)
	}

	ctrl := regs[0].(*csr.Storage)
	if ctrl.Size() != 13 || !ctrl.AtomicWrite() {
		t.Fatalf("unexpected ctrl: size %d atomic %v", ctrl.Size(), ctrl.AtomicWrite())
	}
	if got := ctrl.StorageFull.Reset(); got.Cmp(big.NewInt(0x40<<1|1)) != 0 {
		t.Fatalf("expected ctrl reset 0x81, got %#x", got)
	}
	enable, ok := ctrl.Fields().Field("enable")
	if !ok || len(enable.Values) != 2 || enable.Values[1].Name != "run" {
		t.Fatalf("expected enable values to be carried, got %+v", enable)
	}

	consts, err := csr.CollectConstants(tree.Root)
	if err != nil {
		t.Fatalf("CollectConstants: %v", err)
	}
	if len(consts) != 1 || consts[0].Width() != 2 {
		t.Fatalf("expected a 2-bit version constant, got %+v", consts)
	}
	mems, err := csr.CollectMemories(tree.Root)
	if err != nil {
		t.Fatalf("CollectMemories: %v", err)
	}
	if len(mems) != 1 || mems[0].Depth() != 16 {
		t.Fatalf("expected one memory, got %+v", mems)
	}
}

func TestBuildHonorsExclude(t *testing.T) {
	d := &Description{
		Name: "soc",
		Registers: []RegisterDesc{
			{Name: "keep", Kind: "storage", Size: 8},
			{Name: "debug", Kind: "status", Size: 8},
		},
		Exclude: []string{"debug"},
	}
	tree, err := Build(d, "soc.csr.yaml")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	regs, err := csr.CollectRegisters(tree.Root)
	if err != nil {
		t.Fatalf("CollectRegisters: %v", err)
	}
	if len(regs) != 1 || regs[0].Name() != "keep" {
		t.Fatalf("expected only keep, got %d registers", len(regs))
	}
}

func TestBuildRejectsWideStatusReset(t *testing.T) {
	d, err := Parse([]byte(`
name: soc
registers:
  - name: level
    kind: status
    size: 8
    reset: 0x1ff
`), newValidator(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	_, err = Build(d, "soc.csr.yaml")
	var cfgErr *csr.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Register != "level" {
		t.Fatalf("expected error to name register level, got %q", cfgErr.Register)
	}
}

func TestBuildReportsTypedErrors(t *testing.T) {
	tests := []struct {
		name    string
		d       Description
		wantErr any
	}{
		{
			name: "duplicate_register",
			d: Description{Name: "soc", Registers: []RegisterDesc{
				{Name: "a", Kind: "storage"}, {Name: "a", Kind: "status"},
			}},
			wantErr: new(*csr.NameCollisionError),
		},
		{
			name: "overlapping_fields",
			d: Description{Name: "soc", Registers: []RegisterDesc{{Name: "a", Kind: "storage", Fields: []FieldDesc{
				{Name: "x", Size: 4}, {Name: "y", Offset: csr.At(2)},
			}}}},
			wantErr: new(*csr.LayoutOverlapError),
		},
		{
			name: "write_only_status_field",
			d: Description{Name: "soc", Registers: []RegisterDesc{{Name: "a", Kind: "status", Fields: []FieldDesc{
				{Name: "x", Access: "write-only"},
			}}}},
			wantErr: new(*csr.AccessModeConflictError),
		},
		{
			name: "reset_too_wide",
			d: Description{Name: "soc", Registers: []RegisterDesc{
				{Name: "a", Kind: "storage", Size: 4, Reset: NewValue(16)},
			}},
			wantErr: new(*csr.ConfigurationError),
		},
		{
			name: "status_reset_too_wide",
			d: Description{Name: "soc", Registers: []RegisterDesc{
				{Name: "a", Kind: "status", Size: 8, Reset: NewValue(0x1ff)},
			}},
			wantErr: new(*csr.ConfigurationError),
		},
		{
			name: "csr_with_reset",
			d: Description{Name: "soc", Registers: []RegisterDesc{
				{Name: "a", Kind: "csr", Reset: NewValue(1)},
			}},
			wantErr: new(*csr.ConfigurationError),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(&tt.d, "x.csr.yaml")
			if err == nil {
				t.Fatal("expected an error")
			}
			if !errors.As(err, tt.wantErr) {
				t.Fatalf("expected %T, got %v", tt.wantErr, err)
			}
		})
	}
}
