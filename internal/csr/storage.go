package csr

import (
	"fmt"
	"math/big"

	"github.com/robert-at-pretension-io/csrc/internal/hdl"
)

// StorageConfig describes a storage register.
//
// With Fields set, field offsets are positions in the alignment-adjusted
// value, the register size is the layout size plus AlignmentBits and the
// reset value comes from the fields.
type StorageConfig struct {
	Size        int
	Reset       *big.Int
	Fields      []Field
	Description string

	// AtomicWrite stages writes to every word but the least significant in
	// a back-buffer and commits the whole register when the least
	// significant word is written.
	AtomicWrite bool
	// WriteFromDev adds WE and DatW so the design can overwrite the value.
	WriteFromDev bool
	// AlignmentBits low-order bits are not software addressable. They read
	// as zero and ignore writes.
	AlignmentBits int
}

// Storage is a register the CPU writes and the design reads, and
// optionally writes.
//
// Atomic writes rely on software writing words from the highest address to
// the lowest. Writing the least-significant word commits whatever the
// back-buffer holds at that moment, stale or not. Design writes through WE
// are not interlocked with CPU writes; when both land on the same edge the
// CPU write wins.
type Storage struct {
	compound

	// StorageFull is the complete stored value, alignment bits included.
	StorageFull *hdl.Signal
	// Storage is StorageFull without the alignment bits.
	Storage *hdl.Signal
	// RE pulses for one cycle after the least-significant word is written.
	RE *hdl.Signal
	// WE and DatW exist only with WriteFromDev.
	WE   *hdl.Signal
	DatW *hdl.Signal
	// Backstore exists only for atomic registers spanning several words,
	// after Finalize.
	Backstore *hdl.Signal

	atomicWrite   bool
	writeFromDev  bool
	alignmentBits int
}

// NewStorage declares a storage register.
func NewStorage(name string, cfg StorageConfig) (*Storage, error) {
	size, reset := cfg.Size, cfg.Reset
	if reset == nil {
		reset = new(big.Int)
	}
	if cfg.AlignmentBits < 0 {
		return nil, &ConfigurationError{Register: name, Reason: fmt.Sprintf("alignment bits %d must not be negative", cfg.AlignmentBits)}
	}
	var agg *FieldAggregate
	if len(cfg.Fields) > 0 {
		var err error
		if agg, err = BuildFields(cfg.Fields, AccessReadWrite); err != nil {
			return nil, inRegister(err, name)
		}
		want := agg.Size() + cfg.AlignmentBits
		if size != 0 && size != want {
			return nil, &ConfigurationError{Register: name, Reason: fmt.Sprintf("size %d does not match field layout size %d", size, want)}
		}
		size = want
		reset = agg.Reset()
		reset.Lsh(reset, uint(cfg.AlignmentBits))
	}
	c, err := newCompound(name, size, cfg.Description, agg)
	if err != nil {
		return nil, err
	}
	if cfg.AlignmentBits >= size {
		return nil, &ConfigurationError{Register: name, Reason: fmt.Sprintf("alignment bits %d leave no addressable bit in %d", cfg.AlignmentBits, size)}
	}
	if reset.Sign() < 0 || reset.BitLen() > size {
		return nil, &ConfigurationError{Register: name, Reason: fmt.Sprintf("reset %s does not fit in %d bits", reset, size)}
	}

	align := cfg.AlignmentBits
	aligned := new(big.Int).Rsh(reset, uint(align))
	s := &Storage{
		compound:      c,
		StorageFull:   hdl.NewSignalReset(name+"_full", size, new(big.Int).Lsh(aligned, uint(align))),
		Storage:       hdl.NewSignalReset(name+"_storage", size-align, aligned),
		RE:            hdl.NewSignal(name+"_re", 1),
		atomicWrite:   cfg.AtomicWrite,
		writeFromDev:  cfg.WriteFromDev,
		alignmentBits: align,
	}
	s.module.AddComb(s.Storage.Eq(hdl.Slice(s.StorageFull, align, size)))

	if cfg.WriteFromDev {
		s.WE = hdl.NewSignal(name+"_we", 1)
		s.DatW = hdl.NewSignal(name+"_dat_w", size-align)
		s.module.AddSync(hdl.If(s.WE, s.StorageFull.EqRange(align, size, s.DatW)))
	}

	if agg != nil {
		for _, f := range agg.Fields() {
			bind := f.Signal.Eq(hdl.Slice(s.Storage, f.Lo(), f.Hi()))
			if f.Pulse {
				bind = hdl.If(s.RE, bind)
			}
			s.module.AddComb(bind)
		}
	}
	return s, nil
}

func (s *Storage) Kind() Kind { return KindStorage }

// AtomicWrite reports whether multi-word writes commit atomically.
func (s *Storage) AtomicWrite() bool { return s.atomicWrite }

// WriteFromDev reports whether the design can overwrite the value.
func (s *Storage) WriteFromDev() bool { return s.writeFromDev }

// AlignmentBits returns the number of low-order bits that are not addressable.
func (s *Storage) AlignmentBits() int { return s.alignmentBits }

// Finalize creates one slot per bus word with read data, write logic and,
// for atomic registers, the back-buffer. The least-significant slot is
// created last.
func (s *Storage) Finalize(busWidth int) error {
	if err := s.beginFinalize(busWidth); err != nil {
		return err
	}
	n := s.words(busWidth)
	align := s.alignmentBits
	atomic := n > 1 && s.atomicWrite
	if atomic {
		s.Backstore = hdl.NewSignal(s.name+"_backstore", s.size-busWidth)
	}

	var last *CSR
	for i := n - 1; i >= 0; i-- {
		sc, lo, hi, err := s.slot(i, n, busWidth)
		if err != nil {
			return err
		}
		s.slots = append(s.slots, sc)
		last = sc

		switch {
		case lo >= align:
			s.module.AddComb(sc.W.Eq(hdl.Slice(s.StorageFull, lo, hi)))
		case hi > align:
			s.module.AddComb(sc.W.Eq(hdl.Cat(hdl.Zero(align-lo), hdl.Slice(s.StorageFull, align, hi))))
		default:
			s.module.AddComb(sc.W.Eq(hdl.Zero(hi - lo)))
		}

		switch {
		case atomic && i > 0:
			s.module.AddSync(hdl.If(sc.RE, s.Backstore.EqRange(lo-busWidth, hi-busWidth, sc.R)))
		case atomic:
			full := hdl.Cat(sc.R, s.Backstore)
			s.module.AddSync(hdl.If(sc.RE, s.StorageFull.EqRange(align, s.size, hdl.Slice(full, align, s.size))))
		case hi > align:
			wlo := max(lo, align)
			s.module.AddSync(hdl.If(sc.RE, s.StorageFull.EqRange(wlo, hi, hdl.Slice(sc.R, wlo-lo, hi-lo))))
		}
	}
	s.module.AddSync(s.RE.Eq(last.RE))
	s.busWidth = busWidth
	return nil
}
