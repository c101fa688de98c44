package csr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/robert-at-pretension-io/csrc/internal/hdl"
)

func TestNewBankAddressesAndDecodeBits(t *testing.T) {
	cmd, err := NewCSR("cmd", 8)
	if err != nil {
		t.Fatalf("NewCSR: %v", err)
	}
	ctrl, err := NewStorage("ctrl", StorageConfig{Size: 20, AtomicWrite: true})
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	st := mustStatus(t, "stat", 8)

	bank, err := NewBank([]Register{cmd, ctrl, st}, 8)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}

	want := []struct {
		name   string
		word   int
		lo, hi int
	}{
		{"cmd", 0, 0, 8},
		{"ctrl2", 2, 16, 20},
		{"ctrl1", 1, 8, 16},
		{"ctrl0", 0, 0, 8},
		{"stat", 0, 0, 8},
	}
	if len(bank.Slots) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(bank.Slots))
	}
	for i, w := range want {
		s := bank.Slots[i]
		if s.Name() != w.name || s.Address != i || s.Word != w.word || s.Lo != w.lo || s.Hi != w.hi {
			t.Fatalf("slot %d: expected %+v at %d, got %s word=%d [%d,%d) at %d", i, w, i, s.Name(), s.Word, s.Lo, s.Hi, s.Address)
		}
	}
	if bank.DecodeBits != 3 {
		t.Fatalf("expected 3 decode bits for 5 slots, got %d", bank.DecodeBits)
	}
	if len(bank.Modules()) != 2 {
		t.Fatalf("expected logic for the two compound registers, got %d", len(bank.Modules()))
	}
	if s, ok := bank.Lookup("ctrl0"); !ok || s.Register != Register(ctrl) {
		t.Fatalf("expected ctrl0 to belong to ctrl")
	}
}

func TestBitsFor(t *testing.T) {
	tests := []struct{ n, want int }{
		{-1, 1}, {0, 1}, {1, 1}, {2, 2}, {3, 2}, {4, 3}, {255, 8}, {256, 9},
	}
	for _, tt := range tests {
		if got := bitsFor(tt.n); got != tt.want {
			t.Fatalf("bitsFor(%d): expected %d, got %d", tt.n, tt.want, got)
		}
	}
}

func TestDecodeBitsReachEverySlot(t *testing.T) {
	tests := []struct{ slots, want int }{
		{1, 1}, {2, 1}, {3, 2}, {4, 2}, {5, 3}, {9, 4},
	}
	for _, tt := range tests {
		var regs []Register
		for i := 0; i < tt.slots; i++ {
			c, err := NewCSR(fmt.Sprintf("r%d", i), 8)
			if err != nil {
				t.Fatalf("NewCSR: %v", err)
			}
			regs = append(regs, c)
		}
		bank, err := NewBank(regs, 8)
		if err != nil {
			t.Fatalf("NewBank: %v", err)
		}
		if bank.DecodeBits != tt.want {
			t.Fatalf("%d slots: expected %d decode bits, got %d", tt.slots, tt.want, bank.DecodeBits)
		}
		if top := len(bank.Slots) - 1; top >= 1<<bank.DecodeBits {
			t.Fatalf("%d slots: address %d does not fit in %d bits", tt.slots, top, bank.DecodeBits)
		}
	}
}

func TestNewBankRejectsOversizedPlainCSR(t *testing.T) {
	wide, err := NewCSR("wide", 32)
	if err != nil {
		t.Fatalf("NewCSR: %v", err)
	}
	_, err = NewBank([]Register{wide}, 8)
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Register != "wide" {
		t.Fatalf("expected ConfigurationError for wide, got %v", err)
	}
}

func TestBankSimulatesEveryRegister(t *testing.T) {
	a, err := NewStorage("a", StorageConfig{Size: 16, AtomicWrite: true})
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	b, err := NewStorage("b", StorageConfig{Size: 8})
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	bank, err := NewBank([]Register{a, b}, 8)
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	sim, err := hdl.NewSim(bank.Modules()...)
	if err != nil {
		t.Fatalf("NewSim: %v", err)
	}
	for _, s := range bank.Slots {
		busWrite(t, sim, s.CSR, uint64(0x10+s.Address))
	}
	if got := sim.GetUint64(a.Storage); got != 0x1011 {
		t.Fatalf("expected a=0x1011, got %#x", got)
	}
	if got := sim.GetUint64(b.Storage); got != 0x12 {
		t.Fatalf("expected b=0x12, got %#x", got)
	}
}
