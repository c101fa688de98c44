package csr

import (
	"fmt"
	"math/bits"

	"github.com/robert-at-pretension-io/csrc/internal/hdl"
)

// Slot is a simple CSR placed at a bus address.
type Slot struct {
	*CSR
	Address  int
	Register Register
	// Word is the slot's index in its register, 0 for the least significant.
	Word int
	// Lo and Hi bound the register bits [Lo, Hi) the slot covers.
	Lo, Hi int
}

// Bank is the flat list of slots a bus adapter decodes.
type Bank struct {
	BusWidth   int
	Registers  []Register
	Slots      []Slot
	// DecodeBits is the address width the bus adapter decodes: the bit
	// length of the highest slot address, at least 1. This is not
	// ceil(log2(n-1)), which comes up one bit short for 2, 3, 5 or 9 slots
	// and leaves the top slot unreachable.
	DecodeBits int
}

// NewBank splits every register for busWidth and assigns consecutive
// addresses in register order.
func NewBank(registers []Register, busWidth int) (*Bank, error) {
	if busWidth < 1 {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("bus width %d must be at least 1", busWidth)}
	}
	b := &Bank{BusWidth: busWidth, Registers: registers}
	for _, r := range registers {
		scs, err := Split(r, busWidth)
		if err != nil {
			return nil, err
		}
		for k, sc := range scs {
			word := len(scs) - 1 - k
			lo := word * busWidth
			b.Slots = append(b.Slots, Slot{
				CSR:      sc,
				Address:  len(b.Slots),
				Register: r,
				Word:     word,
				Lo:       lo,
				Hi:       lo + sc.Size(),
			})
		}
	}
	b.DecodeBits = bitsFor(len(b.Slots) - 1)
	return b, nil
}

// Modules returns the logic of every register in the bank.
func (b *Bank) Modules() []*hdl.Module {
	var mods []*hdl.Module
	for _, r := range b.Registers {
		if m := r.Module(); m != nil {
			mods = append(mods, m)
		}
	}
	return mods
}

// Lookup returns the slot with the given name.
func (b *Bank) Lookup(name string) (Slot, bool) {
	for _, s := range b.Slots {
		if s.Name() == name {
			return s, true
		}
	}
	return Slot{}, false
}

// bitsFor is the number of bits needed to represent n, at least 1.
func bitsFor(n int) int {
	if n <= 0 {
		return 1
	}
	return bits.Len(uint(n))
}
