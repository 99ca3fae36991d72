package compiler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/roach88/foodcsp/internal/ir"
	"github.com/roach88/foodcsp/internal/solver"
)

func countSolutions(t *testing.T, cm *CompiledModel) int {
	t.Helper()
	res, err := solver.SearchAll(context.Background(), cm.Model, nil)
	require.NoError(t, err)
	return res.Solutions
}

func TestBuildDefaultDomain(t *testing.T) {
	d := defaultDomain(t)

	cm, err := Build(d.Defaults, d.Registry)
	require.NoError(t, err)

	assert.Equal(t, []ir.VarKey{
		{Participant: "Adam", Shop: "Fruit Shop"},
		{Participant: "Bobby", Shop: "Fruit Shop"},
		{Participant: "Cathy", Shop: "Fruit Shop"},
		{Participant: "Dean", Shop: "Fruit Shop"},
		{Participant: "Bobby", Shop: "Dish Shop"},
	}, cm.Vars.Keys())

	// structural exactly-one on Dish Shop (2 indicators, 2 enforced
	// equalities, 1 exactly-one) plus four default rules; the default
	// must_order record collapses into the structural rule.
	assert.Equal(t, solver.Stats{IntVars: 5, BoolVars: 2, Constraints: 7}, cm.Model.Stats())
	assert.Len(t, cm.Records, 5)
	assert.Empty(t, cm.Warnings)
	assert.Equal(t, 54, countSolutions(t, cm))

	_, ok := cm.Vars.Lookup("Adam", "Dish Shop")
	assert.False(t, ok, "ineligible pairs get no variable")
	lo, hi := cm.Model.Domain(mustVar(t, cm, "Bobby", "Dish Shop"))
	assert.Equal(t, int64(0), lo)
	assert.Equal(t, int64(1), hi)
}

func mustVar(t *testing.T, cm *CompiledModel, participant, shop string) solver.IntVar {
	t.Helper()
	v, ok := cm.Vars.Lookup(participant, shop)
	require.True(t, ok, "no variable for %s in %s", participant, shop)
	return v
}

// TestBuildMatchesBruteForce enumerates every fruit tuple and dish and
// checks each one directly against the four default rules.
func TestBuildMatchesBruteForce(t *testing.T) {
	d := defaultDomain(t)
	cm, err := Build(d.Defaults, d.Registry)
	require.NoError(t, err)

	const (
		quenepa = 1
		salak   = 3
	)
	valid := func(a, b, c, dn int64) bool {
		return c != salak && a != b && a == c && dn != quenepa
	}

	type tuple [5]int64
	want := make(map[tuple]bool)
	for a := int64(0); a < 4; a++ {
		for b := int64(0); b < 4; b++ {
			for c := int64(0); c < 4; c++ {
				for dn := int64(0); dn < 4; dn++ {
					for dish := int64(0); dish < 2; dish++ {
						if valid(a, b, c, dn) {
							want[tuple{a, b, c, dn, dish}] = true
						}
					}
				}
			}
		}
	}
	require.Len(t, want, 54)

	keys := cm.Vars.Keys()
	got := make(map[tuple]bool)
	_, err = solver.SearchAll(context.Background(), cm.Model, func(s solver.Solution) {
		var tup tuple
		for i, k := range keys {
			tup[i] = s.Value(mustVar(t, cm, k.Participant, k.Shop))
		}
		assert.False(t, got[tup], "tuple %v visited twice", tup)
		assert.True(t, valid(tup[0], tup[1], tup[2], tup[3]), "tuple %v breaks a default rule", tup)
		got[tup] = true
	})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestBuildDedupFirstWins(t *testing.T) {
	reg := defaultRegistry(t)

	first := ir.NewCannotSelect("Adam", "Fruit Shop", "Papaya")
	second := ir.NewCannotSelect("Adam", "Fruit Shop", "Quenepa", "Rambutan")

	cm, err := Build([]ir.Record{first, second}, reg)
	require.NoError(t, err)

	// 4 fruit x 4 fruit x 4 x 4 x 2 dishes, Adam loses Papaya only
	assert.Equal(t, 3*4*4*4*2, countSolutions(t, cm))
	require.Len(t, cm.Records, 2)
	assert.Equal(t, first.Items, cm.Records[1].Items)
	assert.True(t, cm.Applied[first.Key()])
}

func TestBuildSkipsUntranslatable(t *testing.T) {
	reg := defaultRegistry(t)

	records := []ir.Record{
		ir.NewCannotSelect("Adam", "Fruit Shop", "Durian"),
		ir.NewMustOrder("Cathy", "Dish Shop"),
		ir.NewSameSelection("Adam", "Bobby", "Dish Shop"),
		{Kind: "prefers", Participant1: "Adam", Shop: "Fruit Shop"},
		ir.NewCannotSelect("Adam", "Fruit Shop", "Papaya"),
	}

	cm, err := Build(records, reg)
	require.NoError(t, err)
	require.Len(t, cm.Warnings, 4)
	assert.Contains(t, cm.Warnings[0].Error(), `unknown item "Durian"`)
	assert.Contains(t, cm.Warnings[1].Error(), "Cathy has no variable in Dish Shop")
	assert.Contains(t, cm.Warnings[2].Error(), "not supported for restricted shop")
	assert.Contains(t, cm.Warnings[3].Error(), `unknown constraint kind "prefers"`)

	// the bad records posted nothing; the last one still applied
	assert.Equal(t, 3*4*4*4*2, countSolutions(t, cm))
	assert.True(t, cm.Applied[records[4].Key()])
	assert.False(t, cm.Applied[records[0].Key()], "a failed record does not claim its dedup key")
}

func TestBuildIndicatorEncodings(t *testing.T) {
	reg := defaultRegistry(t)

	tests := []struct {
		name  string
		rec   ir.Record
		count int
	}{
		{"must select narrows Dean", ir.NewMustSelect("Dean", "Fruit Shop", "Papaya", "Salak"), 2 * 4 * 4 * 4 * 2},
		{"must select repeats collapse", ir.NewMustSelect("Dean", "Fruit Shop", "Papaya", "Papaya"), 1 * 4 * 4 * 4 * 2},
		{"must select dish", ir.NewMustSelect("Bobby", "Dish Shop", "Risotto"), 4 * 4 * 4 * 4},
		{"must order is a no-op on an open shop", ir.NewMustOrder("Adam", "Fruit Shop"), 4 * 4 * 4 * 4 * 2},
		{"must not order empties an open shop", ir.NewMustNotOrder("Adam", "Fruit Shop"), 0},
		{"same selection", ir.NewSameSelection("Adam", "Dean", "Fruit Shop"), 4 * 4 * 4 * 2},
		{"different selection", ir.NewDifferentSelection("Adam", "Dean", "Fruit Shop"), 4 * 3 * 4 * 4 * 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cm, err := Build([]ir.Record{tt.rec}, reg)
			require.NoError(t, err)
			assert.Empty(t, cm.Warnings)
			assert.Equal(t, tt.count, countSolutions(t, cm))
		})
	}
}

func TestBuildInfeasibleCoveringItems(t *testing.T) {
	reg := defaultRegistry(t)
	shop, _ := reg.Shop("Fruit Shop")

	records := []ir.Record{
		ir.NewMustSelect("Cathy", "Fruit Shop", shop.Items...),
		ir.NewCannotSelect("Cathy", "Fruit Shop", shop.Items...),
	}
	cm, err := Build(records, reg)
	require.NoError(t, err)

	res, err := solver.SearchAll(context.Background(), cm.Model, nil)
	require.NoError(t, err)
	assert.Equal(t, solver.StatusInfeasible, res.Status)
}

func TestApplyMatchesRebuild(t *testing.T) {
	d := defaultDomain(t)
	b := NewBuilder(nil)

	extra := ir.NewMustSelect("Dean", "Fruit Shop", "Rambutan", "Salak")

	incremental, err := b.Build(d.Defaults, d.Registry)
	require.NoError(t, err)
	posted, err := b.Apply(incremental, extra)
	require.NoError(t, err)
	assert.True(t, posted)

	posted, err = b.Apply(incremental, extra)
	require.NoError(t, err)
	assert.False(t, posted, "second apply of the same key is skipped")

	rebuilt, err := b.Build(append(d.Defaults, extra), d.Registry)
	require.NoError(t, err)

	assert.Equal(t, rebuilt.Model.Stats(), incremental.Model.Stats())
	assert.Equal(t, countSolutions(t, rebuilt), countSolutions(t, incremental))

	fa, err := incremental.Fingerprint()
	require.NoError(t, err)
	fb, err := rebuilt.Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fb, fa)
}

func TestApplyReturnsTranslationWarning(t *testing.T) {
	reg := defaultRegistry(t)
	b := NewBuilder(nil)
	cm, err := b.Build(nil, reg)
	require.NoError(t, err)

	_, err = b.Apply(cm, ir.NewCannotSelect("Adam", "Fruit Shop", "Durian"))
	var w *TranslationWarning
	require.True(t, errors.As(err, &w))
	assert.Equal(t, "Adam", w.Record.Participant1)
	require.Len(t, cm.Warnings, 1)
}

func TestCloneIsolatesModel(t *testing.T) {
	d := defaultDomain(t)
	cm, err := Build(d.Defaults, d.Registry)
	require.NoError(t, err)

	clone := cm.Clone()
	shop, _ := d.Registry.Shop("Fruit Shop")
	PostOneOf(clone.Model, mustVar(t, clone, "Dean", "Fruit Shop"), "Dean", shop, []int64{0})

	assert.Equal(t, 54, countSolutions(t, cm))
	assert.Equal(t, 18, countSolutions(t, clone))
}

// TestBuildDeterministic checks that rebuilding from the same list yields
// the same model shape and fingerprint.
func TestBuildDeterministic(t *testing.T) {
	reg := defaultRegistry(t)
	participants := reg.Participants()
	fruit, _ := reg.Shop("Fruit Shop")

	genRecord := rapid.Custom(func(t *rapid.T) ir.Record {
		kind := rapid.SampledFrom(ir.Kinds).Draw(t, "kind")
		p1 := rapid.SampledFrom(participants).Draw(t, "p1")
		p2 := rapid.SampledFrom(participants).Draw(t, "p2")
		items := rapid.SliceOfNDistinct(rapid.SampledFrom(fruit.Items), 1, 3, rapid.ID[string]).Draw(t, "items")
		rec, _ := ir.NewRecord(kind, p1, p2, "Fruit Shop", items)
		return rec
	})

	rapid.Check(t, func(t *rapid.T) {
		records := rapid.SliceOfN(genRecord, 0, 8).Draw(t, "records")

		a, err := Build(records, reg)
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		b, err := Build(records, reg)
		if err != nil {
			t.Fatalf("rebuild: %v", err)
		}

		if a.Model.Stats() != b.Model.Stats() {
			t.Fatalf("stats differ: %+v vs %+v", a.Model.Stats(), b.Model.Stats())
		}
		fa, _ := a.Fingerprint()
		fb, _ := b.Fingerprint()
		if fa != fb {
			t.Fatalf("fingerprints differ")
		}
		if len(a.Records) > len(records)+1 {
			t.Fatalf("applied %d records from %d inputs", len(a.Records), len(records))
		}
	})
}
