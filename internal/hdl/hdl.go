// Package hdl is a minimal hardware-description model: named bit vectors,
// bit-range expressions, combinational and clocked statements grouped into
// modules, and a cycle simulator that evaluates them.
//
// Register logic built by package csr is expressed with these primitives.
// Nothing here emits HDL text.
package hdl

import (
	"fmt"
	"math/big"
)

// Values maps signals to their current value.
type Values map[*Signal]*big.Int

// Expr is a value-producing expression of fixed width.
type Expr interface {
	Width() int
	eval(v Values) *big.Int
}

// Signal is a named bit vector. Reset is its value before any assignment
// and, for combinationally driven signals, the default each settle starts from.
type Signal struct {
	Name  string
	width int
	reset *big.Int
}

// NewSignal declares a signal with a zero reset value.
func NewSignal(name string, width int) *Signal {
	return NewSignalReset(name, width, nil)
}

// NewSignalReset declares a signal with the given reset value, truncated to width.
func NewSignalReset(name string, width int, reset *big.Int) *Signal {
	r := new(big.Int)
	if reset != nil {
		r = truncate(reset, width)
	}
	return &Signal{Name: name, width: width, reset: r}
}

func (s *Signal) Width() int { return s.width }

// Reset returns a copy of the reset value.
func (s *Signal) Reset() *big.Int { return new(big.Int).Set(s.reset) }

func (s *Signal) String() string { return fmt.Sprintf("%s[%d]", s.Name, s.width) }

func (s *Signal) eval(v Values) *big.Int {
	if x, ok := v[s]; ok {
		return x
	}
	return s.reset
}

// Eq assigns value to the whole signal.
func (s *Signal) Eq(value Expr) Statement {
	return &assign{target: s, lo: 0, hi: s.width, value: value}
}

// EqRange assigns value to bits [lo, hi) of the signal.
func (s *Signal) EqRange(lo, hi int, value Expr) Statement {
	return &assign{target: s, lo: lo, hi: hi, value: value}
}

type sliceExpr struct {
	x      Expr
	lo, hi int
}

// Slice selects bits [lo, hi) of x.
func Slice(x Expr, lo, hi int) Expr {
	return &sliceExpr{x: x, lo: lo, hi: hi}
}

func (e *sliceExpr) Width() int { return e.hi - e.lo }

func (e *sliceExpr) eval(v Values) *big.Int {
	x := new(big.Int).Rsh(e.x.eval(v), uint(e.lo))
	return truncate(x, e.hi-e.lo)
}

type catExpr struct {
	parts []Expr
}

// Cat concatenates parts, least-significant first.
func Cat(parts ...Expr) Expr {
	return &catExpr{parts: parts}
}

func (e *catExpr) Width() int {
	w := 0
	for _, p := range e.parts {
		w += p.Width()
	}
	return w
}

func (e *catExpr) eval(v Values) *big.Int {
	out := new(big.Int)
	shift := 0
	for _, p := range e.parts {
		part := truncate(p.eval(v), p.Width())
		out.Or(out, part.Lsh(part, uint(shift)))
		shift += p.Width()
	}
	return out
}

type constExpr struct {
	value *big.Int
	width int
}

// Const is a literal of the given width.
func Const(value uint64, width int) Expr {
	return ConstBig(new(big.Int).SetUint64(value), width)
}

// ConstBig is a literal of the given width holding an arbitrary-size value.
func ConstBig(value *big.Int, width int) Expr {
	return &constExpr{value: truncate(value, width), width: width}
}

// Zero is a width-bit literal zero.
func Zero(width int) Expr {
	return &constExpr{value: new(big.Int), width: width}
}

func (e *constExpr) Width() int { return e.width }

func (e *constExpr) eval(Values) *big.Int { return e.value }

// Statement is an assignment, possibly guarded.
type Statement interface {
	exec(read, write Values)
	targets(func(*Signal))
}

type assign struct {
	target *Signal
	lo, hi int
	value  Expr
}

func (a *assign) exec(read, write Values) {
	cur, ok := write[a.target]
	if !ok {
		cur = a.target.eval(read)
	}
	write[a.target] = setRange(cur, a.lo, a.hi, a.value.eval(read))
}

func (a *assign) targets(fn func(*Signal)) { fn(a.target) }

type ifStmt struct {
	cond Expr
	body []Statement
}

// If guards body with cond; the body runs when cond is non-zero.
func If(cond Expr, body ...Statement) Statement {
	return &ifStmt{cond: cond, body: body}
}

func (s *ifStmt) exec(read, write Values) {
	if s.cond.eval(read).Sign() == 0 {
		return
	}
	for _, st := range s.body {
		st.exec(read, write)
	}
}

func (s *ifStmt) targets(fn func(*Signal)) {
	for _, st := range s.body {
		st.targets(fn)
	}
}

// Module groups the combinational and clocked statements of one block of logic.
type Module struct {
	Name string
	comb []Statement
	sync []Statement
}

// NewModule creates an empty module.
func NewModule(name string) *Module {
	return &Module{Name: name}
}

// AddComb appends continuous assignments.
func (m *Module) AddComb(stmts ...Statement) { m.comb = append(m.comb, stmts...) }

// AddSync appends assignments taking effect on the next clock edge.
// Later statements win when several assign the same bits in one edge.
func (m *Module) AddSync(stmts ...Statement) { m.sync = append(m.sync, stmts...) }

// Comb returns the combinational statements in order.
func (m *Module) Comb() []Statement { return m.comb }

// Sync returns the clocked statements in order.
func (m *Module) Sync() []Statement { return m.sync }

func truncate(x *big.Int, width int) *big.Int {
	if width <= 0 {
		return new(big.Int)
	}
	return new(big.Int).And(x, mask(width))
}

func mask(width int) *big.Int {
	m := new(big.Int).Lsh(big.NewInt(1), uint(width))
	return m.Sub(m, big.NewInt(1))
}

func setRange(cur *big.Int, lo, hi int, value *big.Int) *big.Int {
	m := new(big.Int).Lsh(mask(hi-lo), uint(lo))
	out := new(big.Int).AndNot(cur, m)
	v := truncate(value, hi-lo)
	return out.Or(out, v.Lsh(v, uint(lo)))
}
