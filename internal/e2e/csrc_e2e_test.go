package e2e

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/robert-at-pretension-io/csrc/internal/compiler"
	"github.com/robert-at-pretension-io/csrc/internal/config"
	"github.com/robert-at-pretension-io/csrc/internal/csr"
	"github.com/robert-at-pretension-io/csrc/internal/hdl"
)

const socYAML = `
name: soc
registers:
  - name: ctrl
    kind: storage
    atomicWrite: true
    size: 24
    reset: 0xabcdef
  - name: irq
    kind: status
    fields:
      - {name: pending, size: 4}
      - {name: level, size: 8}
submodules:
  - name: uart
    registers:
      - name: baud
        kind: storage
        size: 16
        reset: 0x1b2
`

// bus drives a compiled bank the way a bus adapter would: one slot per
// address, writes pulse RE for a cycle, reads sample W.
type bus struct {
	t    *testing.T
	bank *csr.Bank
	sim  *hdl.Sim
}

func newBus(t *testing.T, bank *csr.Bank) *bus {
	t.Helper()
	sim, err := hdl.NewSim(bank.Modules()...)
	if err != nil {
		t.Fatalf("NewSim: %v", err)
	}
	return &bus{t: t, bank: bank, sim: sim}
}

func (b *bus) write(addr int, v uint64) {
	b.t.Helper()
	s := b.bank.Slots[addr]
	if err := b.sim.Set(s.R, v); err != nil {
		b.t.Fatalf("set R: %v", err)
	}
	if err := b.sim.Set(s.RE, 1); err != nil {
		b.t.Fatalf("set RE: %v", err)
	}
	if err := b.sim.Tick(); err != nil {
		b.t.Fatalf("tick: %v", err)
	}
	if err := b.sim.Set(s.RE, 0); err != nil {
		b.t.Fatalf("clear RE: %v", err)
	}
}

func (b *bus) read(addr int) uint64 {
	return b.sim.GetUint64(b.bank.Slots[addr].W)
}

func (b *bus) expect(addr int, want uint64) {
	b.t.Helper()
	if got := b.read(addr); got != want {
		b.t.Fatalf("address %d (%s): expected %#x, got %#x", addr, b.bank.Slots[addr].Name(), want, got)
	}
}

func compile(t *testing.T) *compiler.Unit {
	t.Helper()
	path := filepath.Join(t.TempDir(), "soc.csr.yaml")
	if err := os.WriteFile(path, []byte(socYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	unit, err := compiler.NewWithConfig(config.DefaultConfig()).CompileFile(path)
	if err != nil {
		t.Fatalf("CompileFile: %v", err)
	}
	return unit
}

func TestAddressMap(t *testing.T) {
	unit := compile(t)
	want := []string{"ctrl2", "ctrl1", "ctrl0", "irq1", "irq0", "uart_baud1", "uart_baud0"}
	if len(unit.Bank.Slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(unit.Bank.Slots))
	}
	for i, name := range want {
		s := unit.Bank.Slots[i]
		if s.Name() != name || s.Address != i {
			t.Fatalf("slot %d: expected %s, got %s at %d", i, name, s.Name(), s.Address)
		}
	}
	if unit.Bank.DecodeBits != 3 {
		t.Fatalf("expected 3 decode bits, got %d", unit.Bank.DecodeBits)
	}
}

func TestResetValuesOverTheBus(t *testing.T) {
	unit := compile(t)
	b := newBus(t, unit.Bank)
	b.expect(0, 0xab)
	b.expect(1, 0xcd)
	b.expect(2, 0xef)
	b.expect(5, 0x01)
	b.expect(6, 0xb2)
}

func TestAtomicWriteOverTheBus(t *testing.T) {
	unit := compile(t)
	b := newBus(t, unit.Bank)
	ctrl := unit.Registers[0].(*csr.Storage)

	b.write(0, 0x11)
	b.write(1, 0x22)
	if got := b.sim.GetUint64(ctrl.Storage); got != 0xabcdef {
		t.Fatalf("expected storage unchanged before the commit, got %#x", got)
	}
	b.expect(0, 0xab)

	b.write(2, 0x33)
	if got := b.sim.GetUint64(ctrl.Storage); got != 0x112233 {
		t.Fatalf("expected committed value 0x112233, got %#x", got)
	}
	b.expect(0, 0x11)
	b.expect(1, 0x22)
	b.expect(2, 0x33)
}

func TestNonAtomicWriteOverTheBus(t *testing.T) {
	unit := compile(t)
	b := newBus(t, unit.Bank)
	baud, ok := unit.Bank.Lookup("uart_baud1")
	if !ok {
		t.Fatal("uart_baud1 not found")
	}

	b.write(baud.Address, 0x12)
	storage := baud.Register.(*csr.Storage)
	if got := b.sim.GetUint64(storage.Storage); got != 0x12b2 {
		t.Fatalf("expected 0x12b2 right after the high word write, got %#x", got)
	}
}

func TestStatusFieldsOverTheBus(t *testing.T) {
	unit := compile(t)
	b := newBus(t, unit.Bank)
	irq := unit.Registers[1].(*csr.Status)

	pending, _ := irq.Fields().Field("pending")
	level, _ := irq.Fields().Field("level")
	if err := b.sim.Set(pending.Signal, 0xa); err != nil {
		t.Fatalf("set pending: %v", err)
	}
	if err := b.sim.Set(level.Signal, 0x5c); err != nil {
		t.Fatalf("set level: %v", err)
	}

	b.expect(3, 0x5)
	b.expect(4, 0xca)
}
