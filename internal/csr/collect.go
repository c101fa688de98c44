package csr

import (
	"fmt"
	"sort"
)

// Collector is implemented by any component that can list the registers,
// memories and constants reachable from it.
type Collector interface {
	CollectRegisters() ([]Register, error)
	CollectMemories() ([]*Memory, error)
	CollectConstants() ([]*Constant, error)
}

type child struct {
	name string
	item any
}

// Module is a collection root: an ordered set of named children, each a
// register, memory, constant or nested Collector.
//
// Items gathered from a nested Collector get "<child name>_" prepended to
// their name exactly once. The module remembers which items it has
// prefixed, so collecting again never prefixes twice.
type Module struct {
	children []child
	names    map[string]bool
	exclude  map[string]bool
	prefixed map[ID]bool
}

// NewModule creates an empty collection root.
func NewModule() *Module {
	return &Module{
		names:    make(map[string]bool),
		exclude:  make(map[string]bool),
		prefixed: make(map[ID]bool),
	}
}

// Add attaches item under name. Item must be a Register, *Memory,
// *Constant or Collector.
func (m *Module) Add(name string, item any) error {
	if name == "" {
		return &NameResolutionError{Reason: "child has no name"}
	}
	switch item.(type) {
	case Register, *Memory, *Constant, Collector:
	default:
		return &ConfigurationError{Register: name, Reason: fmt.Sprintf("cannot collect %T", item)}
	}
	if m.names[name] {
		return &NameCollisionError{Name: name}
	}
	m.names[name] = true
	m.children = append(m.children, child{name: name, item: item})
	return nil
}

// AddRegister attaches r under its own name.
func (m *Module) AddRegister(r Register) error { return m.Add(r.Name(), r) }

// AddMemory attaches mem under its own name.
func (m *Module) AddMemory(mem *Memory) error { return m.Add(mem.Name(), mem) }

// AddConstant attaches c under its own name.
func (m *Module) AddConstant(c *Constant) error { return m.Add(c.Name(), c) }

// AddSubmodule attaches a nested collector whose items will be prefixed with name.
func (m *Module) AddSubmodule(name string, sub Collector) error { return m.Add(name, sub) }

// Exclude skips the named children of this module in every collection.
// Nested modules keep their own exclusions.
func (m *Module) Exclude(names ...string) {
	for _, n := range names {
		m.exclude[n] = true
	}
}

// CollectRegisters returns every register reachable from m, ordered by creation.
func (m *Module) CollectRegisters() ([]Register, error) {
	return gather(m, Collector.CollectRegisters)
}

// CollectMemories returns every memory reachable from m, ordered by creation.
func (m *Module) CollectMemories() ([]*Memory, error) {
	return gather(m, Collector.CollectMemories)
}

// CollectConstants returns every constant reachable from m, ordered by creation.
func (m *Module) CollectConstants() ([]*Constant, error) {
	return gather(m, Collector.CollectConstants)
}

func gather[T named](m *Module, nested func(Collector) ([]T, error)) ([]T, error) {
	var out []T
	for _, c := range m.children {
		if m.exclude[c.name] {
			continue
		}
		if item, ok := c.item.(T); ok {
			out = append(out, item)
			continue
		}
		sub, ok := c.item.(Collector)
		if !ok {
			continue
		}
		items, err := nested(sub)
		if err != nil {
			return nil, fmt.Errorf("collecting %s: %w", c.name, err)
		}
		for _, item := range items {
			if !m.prefixed[item.ID()] {
				item.prefix(c.name + "_")
				m.prefixed[item.ID()] = true
			}
		}
		out = append(out, items...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })

	seen := make(map[string]bool, len(out))
	for _, item := range out {
		if seen[item.Name()] {
			return nil, &NameCollisionError{Name: item.Name()}
		}
		seen[item.Name()] = true
	}
	return out, nil
}

// CollectRegisters collects the registers reachable from c.
func CollectRegisters(c Collector) ([]Register, error) { return c.CollectRegisters() }

// CollectMemories collects the memories reachable from c.
func CollectMemories(c Collector) ([]*Memory, error) { return c.CollectMemories() }

// CollectConstants collects the constants reachable from c.
func CollectConstants(c Collector) ([]*Constant, error) { return c.CollectConstants() }
