// Package csr compiles configuration and status register descriptions into
// bus-word-sized register slots.
//
// A logical register (CSR, Status or Storage) may be wider than the bus.
// Finalizing it for a bus width splits it into plain CSR slots, most
// significant first, and adds the read and write logic that ties the slots
// to the register value. Modules group registers, memories and constants
// into a tree, and collecting from a module flattens that tree with
// prefixed, collision-free names in creation order.
package csr

import (
	"fmt"
	"math/big"

	"github.com/robert-at-pretension-io/csrc/internal/hdl"
)

// Kind distinguishes the logical register types.
type Kind string

const (
	KindCSR     Kind = "csr"
	KindStatus  Kind = "status"
	KindStorage Kind = "storage"
)

// Register is a logical register.
type Register interface {
	ID() ID
	Name() string
	Size() int
	Kind() Kind
	Description() string
	// Fields returns the field layout, or nil for registers declared by size.
	Fields() *FieldAggregate
	// Module returns the logic owned by the register, nil for plain CSRs.
	Module() *hdl.Module
	// Finalize splits the register for busWidth. It may be called once.
	Finalize(busWidth int) error
	// SimpleCSRs returns the slots produced by Finalize, most significant first.
	SimpleCSRs() ([]*CSR, error)
	// BusWidth returns the width the register was finalized for, 0 before.
	BusWidth() int

	prefix(p string)
}

type base struct {
	id          ID
	name        string
	size        int
	description string
}

func newBase(name string, size int, description string) (base, error) {
	if name == "" {
		return base{}, &NameResolutionError{Reason: "register has no name"}
	}
	if size < 1 {
		return base{}, &ConfigurationError{Register: name, Reason: fmt.Sprintf("size %d must be at least 1", size)}
	}
	return base{id: nextID(), name: name, size: size, description: description}, nil
}

func (b *base) ID() ID { return b.id }
func (b *base) Name() string { return b.name }
func (b *base) Size() int { return b.size }
func (b *base) Description() string { return b.description }
func (b *base) prefix(p string) { b.name = p + b.name }

// CSR is a plain register of at most one bus word. The bus drives R and
// pulses RE for one cycle on a write; the design drives W for reads.
type CSR struct {
	base
	R  *hdl.Signal
	RE *hdl.Signal
	W  *hdl.Signal

	busWidth int
}

// NewCSR declares a plain register.
func NewCSR(name string, size int) (*CSR, error) {
	b, err := newBase(name, size, "")
	if err != nil {
		return nil, err
	}
	return &CSR{
		base: b,
		RE:   hdl.NewSignal(name+"_re", 1),
		R:    hdl.NewSignal(name+"_r", size),
		W:    hdl.NewSignal(name+"_w", size),
	}, nil
}

// SetDescription documents a plain register.
func (c *CSR) SetDescription(text string) { c.description = text }

func (c *CSR) Kind() Kind { return KindCSR }
func (c *CSR) Fields() *FieldAggregate { return nil }
func (c *CSR) Module() *hdl.Module { return nil }
func (c *CSR) BusWidth() int { return c.busWidth }

// Finalize checks that the register fits in one bus word.
func (c *CSR) Finalize(busWidth int) error {
	if busWidth < 1 {
		return &ConfigurationError{Register: c.name, Reason: fmt.Sprintf("bus width %d must be at least 1", busWidth)}
	}
	if c.busWidth != 0 {
		return &ConfigurationError{Register: c.name, Reason: "already finalized"}
	}
	if c.size > busWidth {
		return &ConfigurationError{Register: c.name, Reason: fmt.Sprintf("plain register of %d bits does not fit a %d-bit bus word", c.size, busWidth)}
	}
	c.busWidth = busWidth
	return nil
}

// SimpleCSRs returns the register itself.
func (c *CSR) SimpleCSRs() ([]*CSR, error) {
	if c.busWidth == 0 {
		return nil, &ConfigurationError{Register: c.name, Reason: "not finalized"}
	}
	return []*CSR{c}, nil
}

// Constant is a named immutable value. It occupies no slot.
type Constant struct {
	id          ID
	name        string
	value       *big.Int
	width       int
	description string
}

// NewConstant declares a constant. A width of 0 uses the value's bit length.
func NewConstant(name string, value *big.Int, width int, description string) (*Constant, error) {
	if name == "" {
		return nil, &NameResolutionError{Reason: "constant has no name"}
	}
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 {
		return nil, &ConfigurationError{Register: name, Reason: "constant value must not be negative"}
	}
	if width == 0 {
		width = max(1, value.BitLen())
	}
	if width < value.BitLen() {
		return nil, &ConfigurationError{Register: name, Reason: fmt.Sprintf("value %s does not fit in %d bits", value, width)}
	}
	return &Constant{
		id:          nextID(),
		name:        name,
		value:       new(big.Int).Set(value),
		width:       width,
		description: description,
	}, nil
}

func (c *Constant) ID() ID { return c.id }
func (c *Constant) Name() string { return c.name }
func (c *Constant) Width() int { return c.width }
func (c *Constant) Description() string { return c.description }
func (c *Constant) prefix(p string) { c.name = p + c.name }

// Value returns a copy of the constant value.
func (c *Constant) Value() *big.Int { return new(big.Int).Set(c.value) }

// Memory is an addressable block collected alongside registers.
type Memory struct {
	id          ID
	name        string
	width       int
	depth       int
	description string
}

// NewMemory declares a memory of depth words of width bits.
func NewMemory(name string, width, depth int, description string) (*Memory, error) {
	if name == "" {
		return nil, &NameResolutionError{Reason: "memory has no name"}
	}
	if width < 1 || depth < 1 {
		return nil, &ConfigurationError{Register: name, Reason: fmt.Sprintf("memory %dx%d must have positive width and depth", width, depth)}
	}
	return &Memory{id: nextID(), name: name, width: width, depth: depth, description: description}, nil
}

func (m *Memory) ID() ID { return m.id }
func (m *Memory) Name() string { return m.name }
func (m *Memory) Width() int { return m.width }
func (m *Memory) Depth() int { return m.depth }
func (m *Memory) Description() string { return m.description }
func (m *Memory) prefix(p string) { m.name = p + m.name }
