package engine

import (
	"context"
	"io"
	"log/slog"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/foodcsp/internal/compiler"
	"github.com/roach88/foodcsp/internal/ir"
	"github.com/roach88/foodcsp/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func defaultDomain(t testing.TB) *compiler.Domain {
	t.Helper()
	d, err := compiler.DefaultDomain()
	require.NoError(t, err)
	return d
}

func testOptions() Options {
	return Options{
		Logger:   discardLogger(),
		IDs:      testutil.NewSequentialIDs("rec"),
		EntryIDs: testutil.NewSequentialIDs("entry"),
		Clock:    testutil.NewDeterministicClock(),
	}
}

// newTestSession starts a session on the default domain with deterministic
// IDs and a discarded log.
func newTestSession(t testing.TB) *Session {
	t.Helper()
	d := defaultDomain(t)
	s, err := NewSession(context.Background(), d.Registry, d.Defaults, testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// oracle enumerates every total assignment of reg by brute force and keeps
// those satisfying every record.
func oracle(reg *ir.Registry, records []ir.Record) []map[ir.VarKey]string {
	keys := reg.EligiblePairs()

	var out []map[ir.VarKey]string
	picks := make(map[ir.VarKey]string, len(keys))

	var walk func(i int)
	walk = func(i int) {
		if i == len(keys) {
			for _, r := range records {
				if !satisfies(reg, r, picks) {
					return
				}
			}
			cp := make(map[ir.VarKey]string, len(picks))
			for k, v := range picks {
				cp[k] = v
			}
			out = append(out, cp)
			return
		}
		shop, _ := reg.Shop(keys[i].Shop)
		for _, item := range shop.Items {
			picks[keys[i]] = item
			walk(i + 1)
		}
	}
	walk(0)
	return out
}

func satisfies(reg *ir.Registry, r ir.Record, picks map[ir.VarKey]string) bool {
	x, ok := picks[ir.VarKey{Participant: r.Participant1, Shop: r.Shop}]
	if !ok {
		return true
	}
	switch r.Kind {
	case ir.KindCannotSelect:
		return !slices.Contains(r.Items, x)
	case ir.KindMustSelect:
		return slices.Contains(r.Items, x)
	case ir.KindMustOrder:
		return true
	case ir.KindMustNotOrder:
		return false
	case ir.KindSameSelection:
		return x == picks[ir.VarKey{Participant: r.Participant2, Shop: r.Shop}]
	case ir.KindDifferentSelection:
		return x != picks[ir.VarKey{Participant: r.Participant2, Shop: r.Shop}]
	}
	return true
}

// picksOf turns an unfiltered assignment back into a pick map.
func picksOf(a Assignment) map[ir.VarKey]string {
	out := make(map[ir.VarKey]string)
	for _, c := range a.Cells {
		if c.Item == NotApplicable {
			continue
		}
		out[ir.VarKey{Participant: c.Participant, Shop: c.Shop}] = c.Item
	}
	return out
}
