package hdl

import (
	"fmt"
	"math/big"
)

const maxSettleIterations = 64

// Sim evaluates a set of modules cycle by cycle.
//
// Combinationally driven signals are recomputed from their reset value on
// every settle until no value changes. Clocked statements all read the values
// from before the edge and commit together.
type Sim struct {
	modules []*Module
	comb    map[*Signal]bool
	values  Values
	cycle   int
}

// NewSim builds a simulator over modules and settles the initial state.
func NewSim(modules ...*Module) (*Sim, error) {
	s := &Sim{
		modules: modules,
		comb:    make(map[*Signal]bool),
		values:  make(Values),
	}
	for _, m := range modules {
		for _, st := range m.comb {
			st.targets(func(sig *Signal) { s.comb[sig] = true })
		}
	}
	if err := s.Settle(); err != nil {
		return nil, err
	}
	return s, nil
}

// Cycle returns the number of clock edges simulated so far.
func (s *Sim) Cycle() int { return s.cycle }

// Get returns the current value of sig.
func (s *Sim) Get(sig *Signal) *big.Int {
	return new(big.Int).Set(sig.eval(s.values))
}

// GetUint64 returns the current value of sig truncated to 64 bits.
func (s *Sim) GetUint64(sig *Signal) uint64 {
	return s.Get(sig).Uint64()
}

// Set drives an input signal and settles combinational logic.
func (s *Sim) Set(sig *Signal, value uint64) error {
	return s.SetBig(sig, new(big.Int).SetUint64(value))
}

// SetBig drives an input signal with an arbitrary-size value.
func (s *Sim) SetBig(sig *Signal, value *big.Int) error {
	if s.comb[sig] {
		return fmt.Errorf("signal %s is driven combinationally", sig.Name)
	}
	s.values[sig] = truncate(value, sig.width)
	return s.Settle()
}

// Tick advances one clock edge.
func (s *Sim) Tick() error {
	next := s.values.clone()
	for _, m := range s.modules {
		for _, st := range m.sync {
			st.exec(s.values, next)
		}
	}
	s.values = next
	s.cycle++
	return s.Settle()
}

// Settle propagates combinational assignments to a fixed point.
func (s *Sim) Settle() error {
	for i := 0; i < maxSettleIterations; i++ {
		next := s.values.clone()
		for sig := range s.comb {
			next[sig] = sig.Reset()
		}
		for _, m := range s.modules {
			for _, st := range m.comb {
				st.exec(s.values, next)
			}
		}
		if next.equal(s.values) {
			return nil
		}
		s.values = next
	}
	return fmt.Errorf("combinational logic did not settle after %d iterations", maxSettleIterations)
}

func (v Values) clone() Values {
	out := make(Values, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

func (v Values) equal(o Values) bool {
	if len(v) != len(o) {
		return false
	}
	for k, x := range v {
		y, ok := o[k]
		if !ok || x.Cmp(y) != 0 {
			return false
		}
	}
	return true
}
