package csr

import (
	"fmt"
	"math/big"

	"github.com/robert-at-pretension-io/csrc/internal/hdl"
)

// StatusConfig describes a status register. When Fields is set the size and
// reset value come from the field layout.
type StatusConfig struct {
	Size        int
	Reset       *big.Int
	Fields      []Field
	Description string
}

// Status is a register the design drives and the CPU only reads.
//
// Reads spanning several bus words are not atomic: the design may update
// Status between two word reads and the CPU then sees a torn value.
type Status struct {
	compound
	Status *hdl.Signal
}

// NewStatus declares a status register.
func NewStatus(name string, cfg StatusConfig) (*Status, error) {
	size, reset := cfg.Size, cfg.Reset
	var agg *FieldAggregate
	if len(cfg.Fields) > 0 {
		var err error
		if agg, err = BuildFields(cfg.Fields, AccessReadOnly); err != nil {
			return nil, inRegister(err, name)
		}
		if size != 0 && size != agg.Size() {
			return nil, &ConfigurationError{Register: name, Reason: fmt.Sprintf("size %d does not match field layout size %d", size, agg.Size())}
		}
		size, reset = agg.Size(), agg.Reset()
	}
	c, err := newCompound(name, size, cfg.Description, agg)
	if err != nil {
		return nil, err
	}
	if reset != nil && (reset.Sign() < 0 || reset.BitLen() > size) {
		return nil, &ConfigurationError{Register: name, Reason: fmt.Sprintf("reset %s does not fit in %d bits", reset, size)}
	}

	s := &Status{
		compound: c,
		Status:   hdl.NewSignalReset(name+"_status", size, reset),
	}
	if agg != nil {
		for _, f := range agg.Fields() {
			s.module.AddComb(s.Status.EqRange(f.Lo(), f.Hi(), f.Signal))
		}
	}
	return s, nil
}

func (s *Status) Kind() Kind { return KindStatus }

// Finalize creates one read-only slot per bus word.
func (s *Status) Finalize(busWidth int) error {
	if err := s.beginFinalize(busWidth); err != nil {
		return err
	}
	n := s.words(busWidth)
	for i := n - 1; i >= 0; i-- {
		sc, lo, hi, err := s.slot(i, n, busWidth)
		if err != nil {
			return err
		}
		s.module.AddComb(sc.W.Eq(hdl.Slice(s.Status, lo, hi)))
		s.slots = append(s.slots, sc)
	}
	s.busWidth = busWidth
	return nil
}
