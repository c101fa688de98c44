package csr

import (
	"fmt"
	"strconv"

	"github.com/robert-at-pretension-io/csrc/internal/hdl"
)

// compound holds what Status and Storage share: a register wider than a
// bus word that is split into slots on Finalize.
type compound struct {
	base
	fields   *FieldAggregate
	module   *hdl.Module
	slots    []*CSR
	busWidth int
}

func newCompound(name string, size int, description string, fields *FieldAggregate) (compound, error) {
	b, err := newBase(name, size, description)
	if err != nil {
		return compound{}, err
	}
	return compound{base: b, fields: fields, module: hdl.NewModule(name)}, nil
}

func (c *compound) Fields() *FieldAggregate { return c.fields }
func (c *compound) Module() *hdl.Module { return c.module }
func (c *compound) BusWidth() int { return c.busWidth }

// SimpleCSRs returns the slots created by Finalize.
func (c *compound) SimpleCSRs() ([]*CSR, error) {
	if c.busWidth == 0 {
		return nil, &ConfigurationError{Register: c.name, Reason: "not finalized"}
	}
	return c.slots, nil
}

// words is ceil(size / busWidth).
func (c *compound) words(busWidth int) int {
	return (c.size + busWidth - 1) / busWidth
}

func (c *compound) beginFinalize(busWidth int) error {
	if busWidth < 1 {
		return &ConfigurationError{Register: c.name, Reason: fmt.Sprintf("bus width %d must be at least 1", busWidth)}
	}
	if c.busWidth != 0 {
		return &ConfigurationError{Register: c.name, Reason: "already finalized"}
	}
	return nil
}

// slot creates the simple CSR covering word i of n and returns it with the
// register bit range [lo, hi) it covers.
func (c *compound) slot(i, n, busWidth int) (sc *CSR, lo, hi int, err error) {
	lo = i * busWidth
	hi = min(c.size, lo+busWidth)
	name := c.name
	if n > 1 {
		name += strconv.Itoa(i)
	}
	sc, err = NewCSR(name, hi-lo)
	if err != nil {
		return nil, 0, 0, err
	}
	sc.busWidth = busWidth
	return sc, lo, hi, nil
}

// Split finalizes reg for busWidth and returns its slots, most significant
// first. A register already finalized for the same width returns its
// existing slots.
func Split(reg Register, busWidth int) ([]*CSR, error) {
	if busWidth < 1 {
		return nil, &ConfigurationError{Register: reg.Name(), Reason: fmt.Sprintf("bus width %d must be at least 1", busWidth)}
	}
	if reg.Size() < 1 {
		return nil, &ConfigurationError{Register: reg.Name(), Reason: "size must be at least 1"}
	}
	switch w := reg.BusWidth(); {
	case w == busWidth:
		return reg.SimpleCSRs()
	case w != 0:
		return nil, &ConfigurationError{Register: reg.Name(), Reason: fmt.Sprintf("already finalized for a %d-bit bus, not %d", w, busWidth)}
	}
	if err := reg.Finalize(busWidth); err != nil {
		return nil, err
	}
	return reg.SimpleCSRs()
}
