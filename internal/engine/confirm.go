package engine

import (
	"context"

	"github.com/roach88/foodcsp/internal/compiler"
)

// Confirmer decides whether a protected default may be removed to make room
// for a new record.
type Confirmer interface {
	ConfirmOverride(ctx context.Context, report compiler.ConflictReport) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, report compiler.ConflictReport) (bool, error)

// ConfirmOverride calls f.
func (f ConfirmFunc) ConfirmOverride(ctx context.Context, report compiler.ConflictReport) (bool, error) {
	return f(ctx, report)
}

var (
	// AlwaysConfirm approves every override.
	AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, compiler.ConflictReport) (bool, error) {
		return true, nil
	})

	// NeverConfirm declines every override.
	NeverConfirm Confirmer = ConfirmFunc(func(context.Context, compiler.ConflictReport) (bool, error) {
		return false, nil
	})
)
