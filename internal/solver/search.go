package solver

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrInvalidModel is returned when a model cannot be searched.
var ErrInvalidModel = errors.New("invalid model")

// Status is the terminal state of a search.
type Status int

const (
	StatusUnknown Status = iota
	StatusFeasible
	StatusInfeasible
	StatusCanceled
)

func (s Status) String() string {
	switch s {
	case StatusFeasible:
		return "FEASIBLE"
	case StatusInfeasible:
		return "INFEASIBLE"
	case StatusCanceled:
		return "CANCELED"
	}
	return "UNKNOWN"
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Solution is one feasible total assignment. It is only valid for the
// duration of the callback; copy values out if they must outlive it.
type Solution struct {
	values []int64
}

// Value returns the value of v.
func (s Solution) Value(v IntVar) int64 {
	return s.values[v.index]
}

// BoolValue returns the value of b.
func (s Solution) BoolValue(b BoolVar) bool {
	return s.values[b.index] != 0
}

// Result summarizes a search.
type Result struct {
	Status    Status `json:"status"`
	Solutions int    `json:"solutions"`
	Branches  int64  `json:"branches"`
}

// Solver runs exhaustive search. The zero value enumerates every solution.
type Solver struct {
	// MaxSolutions stops the search after this many solutions (0 = no limit).
	// A limited search that stops early reports StatusFeasible.
	MaxSolutions int
}

// SearchAll enumerates every feasible assignment of m with a zero-value Solver.
func SearchAll(ctx context.Context, m *Model, fn func(Solution)) (Result, error) {
	var s Solver
	return s.SearchAll(ctx, m, fn)
}

// SearchAll visits every feasible total assignment exactly once, calling fn
// for each. The returned status is StatusFeasible when at least one solution
// was found, StatusInfeasible when the search space was exhausted without
// one, and StatusCanceled when ctx ended first.
func (s *Solver) SearchAll(ctx context.Context, m *Model, fn func(Solution)) (Result, error) {
	if err := m.Validate(); err != nil {
		return Result{}, err
	}

	st := &searchState{
		ctx:    ctx,
		model:  m,
		fn:     fn,
		limit:  s.MaxSolutions,
		values: make([]int64, len(m.vars)),
		watch:  make([][]*Constraint, len(m.vars)),
	}

	// Each constraint is checked once, when the highest-indexed variable it
	// reads gets bound. Constant constraints are checked up front.
	for _, c := range m.constraints {
		vars := c.vars()
		if len(vars) == 0 {
			if !c.satisfied(nil) {
				return Result{Status: StatusInfeasible}, nil
			}
			continue
		}
		last := slices.Max(vars)
		st.watch[last] = append(st.watch[last], c)
	}

	err := st.descend(0)
	res := Result{Solutions: st.found, Branches: st.branches}
	switch {
	case errors.Is(err, errStop):
		res.Status = StatusFeasible
	case err != nil:
		res.Status = StatusCanceled
		return res, fmt.Errorf("search canceled after %d solution(s): %w", st.found, err)
	case st.found > 0:
		res.Status = StatusFeasible
	default:
		res.Status = StatusInfeasible
	}
	return res, nil
}

var errStop = errors.New("solution limit reached")

type searchState struct {
	ctx      context.Context
	model    *Model
	fn       func(Solution)
	limit    int
	values   []int64
	watch    [][]*Constraint
	found    int
	branches int64
}

func (st *searchState) descend(i int) error {
	if i == len(st.values) {
		st.found++
		if st.fn != nil {
			st.fn(Solution{values: st.values})
		}
		if st.limit > 0 && st.found >= st.limit {
			return errStop
		}
		return nil
	}

	if err := st.ctx.Err(); err != nil {
		return err
	}

	def := st.model.vars[i]
	for v := def.lo; v <= def.hi; v++ {
		st.branches++
		st.values[i] = v
		if !st.consistent(i) {
			continue
		}
		if err := st.descend(i + 1); err != nil {
			return err
		}
	}
	return nil
}

func (st *searchState) consistent(i int) bool {
	for _, c := range st.watch[i] {
		if !c.satisfied(st.values) {
			return false
		}
	}
	return true
}
