package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/foodcsp/internal/ir"
)

func TestDefaultDomain(t *testing.T) {
	d := defaultDomain(t)

	assert.Equal(t, []string{"Adam", "Bobby", "Cathy", "Dean"}, d.Registry.Participants())
	assert.Equal(t, []string{"Fruit Shop", "Dish Shop"}, d.Registry.ShopNames())

	dish, ok := d.Registry.Shop("Dish Shop")
	require.True(t, ok)
	assert.Equal(t, []string{"Pasta", "Risotto"}, dish.Items)
	assert.True(t, dish.Restricted())
	assert.True(t, d.Registry.IsEligible("Bobby", "Dish Shop"))
	assert.False(t, d.Registry.IsEligible("Adam", "Dish Shop"))

	require.Len(t, d.Defaults, 5)
	for _, rec := range d.Defaults {
		assert.True(t, rec.Default, rec.Description)
		assert.NotEmpty(t, rec.Rationale, rec.Description)
	}
	assert.Equal(t, "Cathy will not pick Salak", d.Defaults[0].Description)
	assert.Equal(t, ir.KindDifferentSelection, d.Defaults[1].Kind)
	assert.Equal(t, ir.KindSameSelection, d.Defaults[2].Kind)
	assert.Equal(t, []string{"Quenepa"}, d.Defaults[3].Items)
	assert.Equal(t, "Bobby must select one of Pasta, Risotto from Dish Shop", d.Defaults[4].Description)
	assert.Empty(t, d.Constraints)
}

func TestLoadDomainWithConstraints(t *testing.T) {
	src := `
participants: ["Ann", "Ben"]
shops: [{name: "Bakery", items: ["Bun", "Roll", "Scone"]}]
constraints: [
	{kind: "cannot_select", participant1: "Ann", shop: "Bakery", items: ["Scone"]},
	{kind: "different_selection", participant1: "Ann", participant2: "Ben", shop: "Bakery", rationale: "they share"},
	{kind: "must_order", participant1: "Ben", shop: "Bakery", description: "Ben is hungry"},
]
`
	d, err := LoadDomain([]byte(src), "bakery.cue")
	require.NoError(t, err)

	assert.Empty(t, d.Defaults)
	require.Len(t, d.Constraints, 3)
	require.Len(t, d.ConstraintPos, 3)

	assert.Equal(t, "Ann cannot select Scone from Bakery", d.Constraints[0].Description)
	assert.False(t, d.Constraints[0].Default)
	assert.Equal(t, "they share", d.Constraints[1].Rationale)
	assert.Equal(t, "Ben is hungry", d.Constraints[2].Description)
	assert.Equal(t, 6, d.ConstraintPos[1].Line())
}

func TestLoadDomainKeepsShapeErrorsForValidation(t *testing.T) {
	src := `
participants: ["Ann", "Ben"]
shops: [{name: "Bakery", items: ["Bun"]}]
constraints: [
	{kind: "must_order", participant1: "Ann", participant2: "Ben", shop: "Bakery"},
]
`
	d, err := LoadDomain([]byte(src), "shape.cue")
	require.NoError(t, err)
	require.Len(t, d.Constraints, 1)

	errs := Validate(d.Constraints[0], d.Registry)
	assert.Equal(t, []string{ErrUnexpectedField}, codes(errs))
}

func TestLoadDomainErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
	}{
		{
			name:    "syntax",
			src:     `participants: [`,
			message: "bakery.cue",
		},
		{
			name:    "missing shops",
			src:     `participants: ["Ann"]`,
			message: "shops",
		},
		{
			name:    "unknown top-level field",
			src:     `participants: ["Ann"], shops: [{name: "B", items: ["x"]}], extra: 1`,
			message: "extra",
		},
		{
			name:    "unknown kind",
			src:     `participants: ["Ann"], shops: [{name: "B", items: ["x"]}], constraints: [{kind: "likes", participant1: "Ann", shop: "B"}]`,
			message: "kind",
		},
		{
			name:    "empty items",
			src:     `participants: ["Ann"], shops: [{name: "B", items: []}]`,
			message: "items",
		},
		{
			name:    "duplicate participant",
			src:     `participants: ["Ann", "Ann"], shops: [{name: "B", items: ["x"]}]`,
			message: `duplicate participant "Ann"`,
		},
		{
			name:    "unknown eligible participant",
			src:     `participants: ["Ann"], shops: [{name: "B", items: ["x"], eligible: ["Zed"]}]`,
			message: `unknown eligible participant "Zed"`,
		},
		{
			name:    "invalid default",
			src:     `participants: ["Ann"], shops: [{name: "B", items: ["x"]}], defaults: [{kind: "cannot_select", participant1: "Ann", shop: "B", items: ["y"]}]`,
			message: "[E126]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadDomain([]byte(tt.src), "bakery.cue")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestLoadDomainInvalidDefaultPosition(t *testing.T) {
	src := `participants: ["Ann"]
shops: [{name: "B", items: ["x"]}]
defaults: [
	{kind: "must_not_order", participant1: "Bob", shop: "B"},
]
`
	_, err := LoadDomain([]byte(src), "pos.cue")
	require.Error(t, err)

	var ce *CompileError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "defaults[0]", ce.Field)
	assert.Equal(t, 4, ce.Pos.Line())
	assert.Contains(t, ce.Message, ErrUnknownParticipant)
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "shops", Message: "bad"}
	assert.Equal(t, "shops: bad", err.Error())
}
