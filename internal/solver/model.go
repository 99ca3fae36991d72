package solver

import (
	"fmt"
	"slices"
)

// IntVar is a handle to an integer variable. Handles stay valid in clones of
// the model that created them.
type IntVar struct {
	index int
}

// BoolVar is a handle to a 0/1 variable.
type BoolVar struct {
	index int
}

// Int returns the boolean as an integer variable for use in linear terms.
func (b BoolVar) Int() IntVar {
	return IntVar{index: b.index}
}

// Index returns the variable's position in its model.
func (v IntVar) Index() int {
	return v.index
}

type varDef struct {
	name    string
	lo, hi  int64
	boolean bool
}

// Model holds variables and constraints. The zero value is not usable; call
// NewModel.
type Model struct {
	vars        []varDef
	constraints []*Constraint
}

// NewModel creates an empty model.
func NewModel() *Model {
	return &Model{}
}

// NewIntVar adds an integer variable with domain [lo, hi].
func (m *Model) NewIntVar(lo, hi int64, name string) IntVar {
	m.vars = append(m.vars, varDef{name: name, lo: lo, hi: hi})
	return IntVar{index: len(m.vars) - 1}
}

// NewBoolVar adds a boolean variable.
func (m *Model) NewBoolVar(name string) BoolVar {
	m.vars = append(m.vars, varDef{name: name, lo: 0, hi: 1, boolean: true})
	return BoolVar{index: len(m.vars) - 1}
}

// Add posts expr op rhs.
func (m *Model) Add(expr LinearExpr, op Op, rhs int64) *Constraint {
	c := &Constraint{expr: expr.clone(), op: op, rhs: rhs}
	m.constraints = append(m.constraints, c)
	return c
}

// AddEquality posts a == b.
func (m *Model) AddEquality(a, b LinearExpr) *Constraint {
	return m.Add(a.Minus(b), OpEq, 0)
}

// AddNotEqual posts a != b.
func (m *Model) AddNotEqual(a, b LinearExpr) *Constraint {
	return m.Add(a.Minus(b), OpNe, 0)
}

// AddExactlyOne posts sum(lits) == 1.
func (m *Model) AddExactlyOne(lits ...BoolVar) *Constraint {
	vars := make([]IntVar, len(lits))
	for i, l := range lits {
		vars[i] = l.Int()
	}
	return m.Add(Sum(vars...), OpEq, 1)
}

// Clone returns an independent copy. Constraints added to the clone do not
// affect the original and vice versa.
func (m *Model) Clone() *Model {
	out := &Model{
		vars:        slices.Clone(m.vars),
		constraints: make([]*Constraint, len(m.constraints)),
	}
	for i, c := range m.constraints {
		out.constraints[i] = c.clone()
	}
	return out
}

// Name returns a variable's name.
func (m *Model) Name(v IntVar) string {
	return m.vars[v.index].name
}

// Domain returns a variable's bounds.
func (m *Model) Domain(v IntVar) (lo, hi int64) {
	d := m.vars[v.index]
	return d.lo, d.hi
}

// Stats summarizes model size.
type Stats struct {
	IntVars     int `json:"int_vars"`
	BoolVars    int `json:"bool_vars"`
	Constraints int `json:"constraints"`
}

// Stats returns the number of variables and constraints.
func (m *Model) Stats() Stats {
	var s Stats
	for _, v := range m.vars {
		if v.boolean {
			s.BoolVars++
		} else {
			s.IntVars++
		}
	}
	s.Constraints = len(m.constraints)
	return s
}

// Validate checks that every variable has a non-empty domain and every
// constraint references variables of this model.
func (m *Model) Validate() error {
	for i, v := range m.vars {
		if v.lo > v.hi {
			return fmt.Errorf("%w: variable %d (%s) has empty domain [%d, %d]", ErrInvalidModel, i, v.name, v.lo, v.hi)
		}
	}
	for i, c := range m.constraints {
		for _, idx := range c.vars() {
			if idx < 0 || idx >= len(m.vars) {
				return fmt.Errorf("%w: constraint %d references unknown variable %d", ErrInvalidModel, i, idx)
			}
		}
		for _, lit := range c.enforce {
			if !m.vars[lit.index].boolean {
				return fmt.Errorf("%w: constraint %d enforced by non-boolean variable %s", ErrInvalidModel, i, m.vars[lit.index].name)
			}
		}
	}
	return nil
}
