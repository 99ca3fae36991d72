package compiler

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/foodcsp/internal/ir"
)

func defaultDomain(t testing.TB) *Domain {
	t.Helper()
	d, err := DefaultDomain()
	require.NoError(t, err)
	return d
}

func defaultRegistry(t testing.TB) *ir.Registry {
	t.Helper()
	return defaultDomain(t).Registry
}
