package solver

import (
	"fmt"
	"slices"
)

// Op is a comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLe
	OpGe
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "=="
	case OpNe:
		return "!="
	case OpLe:
		return "<="
	case OpGe:
		return ">="
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

func (o Op) holds(lhs, rhs int64) bool {
	switch o {
	case OpEq:
		return lhs == rhs
	case OpNe:
		return lhs != rhs
	case OpLe:
		return lhs <= rhs
	case OpGe:
		return lhs >= rhs
	}
	return false
}

// Term is coeff * var.
type Term struct {
	Var   IntVar
	Coeff int64
}

// LinearExpr is sum(terms) + offset.
type LinearExpr struct {
	Terms  []Term
	Offset int64
}

// Var is the expression 1*v.
func Var(v IntVar) LinearExpr {
	return LinearExpr{Terms: []Term{{Var: v, Coeff: 1}}}
}

// Const is a constant expression.
func Const(c int64) LinearExpr {
	return LinearExpr{Offset: c}
}

// Sum adds variables with unit coefficients.
func Sum(vars ...IntVar) LinearExpr {
	e := LinearExpr{Terms: make([]Term, len(vars))}
	for i, v := range vars {
		e.Terms[i] = Term{Var: v, Coeff: 1}
	}
	return e
}

// Plus returns e + o.
func (e LinearExpr) Plus(o LinearExpr) LinearExpr {
	out := LinearExpr{
		Terms:  make([]Term, 0, len(e.Terms)+len(o.Terms)),
		Offset: e.Offset + o.Offset,
	}
	out.Terms = append(out.Terms, e.Terms...)
	out.Terms = append(out.Terms, o.Terms...)
	return out
}

// Scale returns k * e.
func (e LinearExpr) Scale(k int64) LinearExpr {
	out := LinearExpr{Terms: make([]Term, len(e.Terms)), Offset: e.Offset * k}
	for i, t := range e.Terms {
		out.Terms[i] = Term{Var: t.Var, Coeff: t.Coeff * k}
	}
	return out
}

// Minus returns e - o.
func (e LinearExpr) Minus(o LinearExpr) LinearExpr {
	return e.Plus(o.Scale(-1))
}

func (e LinearExpr) clone() LinearExpr {
	return LinearExpr{Terms: slices.Clone(e.Terms), Offset: e.Offset}
}

func (e LinearExpr) eval(values []int64) int64 {
	sum := e.Offset
	for _, t := range e.Terms {
		sum += t.Coeff * values[t.Var.index]
	}
	return sum
}

// Constraint is a posted linear constraint, optionally guarded by
// enforcement literals.
type Constraint struct {
	expr    LinearExpr
	op      Op
	rhs     int64
	enforce []BoolVar
}

// OnlyEnforceIf makes the constraint active only when every literal is true.
func (c *Constraint) OnlyEnforceIf(lits ...BoolVar) *Constraint {
	c.enforce = append(c.enforce, lits...)
	return c
}

func (c *Constraint) clone() *Constraint {
	return &Constraint{
		expr:    c.expr.clone(),
		op:      c.op,
		rhs:     c.rhs,
		enforce: slices.Clone(c.enforce),
	}
}

// vars lists every variable index the constraint reads.
func (c *Constraint) vars() []int {
	idx := make([]int, 0, len(c.expr.Terms)+len(c.enforce))
	for _, t := range c.expr.Terms {
		idx = append(idx, t.Var.index)
	}
	for _, l := range c.enforce {
		idx = append(idx, l.index)
	}
	return idx
}

// satisfied evaluates the constraint on a complete prefix of values.
func (c *Constraint) satisfied(values []int64) bool {
	for _, l := range c.enforce {
		if values[l.index] == 0 {
			return true
		}
	}
	return c.op.holds(c.expr.eval(values), c.rhs)
}
