package compiler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/foodcsp/internal/ir"
)

func codes(errs ValidationErrors) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateAcceptsEveryKind(t *testing.T) {
	reg := defaultRegistry(t)

	records := []ir.Record{
		ir.NewCannotSelect("Adam", "Fruit Shop", "Papaya", "Salak"),
		ir.NewMustSelect("Dean", "Fruit Shop", "Rambutan"),
		ir.NewMustSelect("Bobby", "Dish Shop", "Pasta"),
		ir.NewMustOrder("Cathy", "Fruit Shop"),
		ir.NewMustNotOrder("Dean", "Fruit Shop"),
		ir.NewSameSelection("Bobby", "Dean", "Fruit Shop"),
		ir.NewDifferentSelection("Cathy", "Dean", "Fruit Shop"),
	}

	for _, rec := range records {
		t.Run(rec.Description, func(t *testing.T) {
			assert.Empty(t, Validate(rec, reg))
		})
	}
}

func TestValidateRejects(t *testing.T) {
	reg := defaultRegistry(t)

	tests := []struct {
		name  string
		rec   ir.Record
		codes []string
	}{
		{
			name:  "unknown kind",
			rec:   ir.Record{Kind: "prefers", Participant1: "Adam", Shop: "Fruit Shop"},
			codes: []string{ErrUnknownKind},
		},
		{
			name:  "missing participant and shop",
			rec:   ir.Record{Kind: ir.KindMustOrder},
			codes: []string{ErrMissingField, ErrMissingField},
		},
		{
			name:  "relational without second participant",
			rec:   ir.Record{Kind: ir.KindSameSelection, Participant1: "Adam", Shop: "Fruit Shop"},
			codes: []string{ErrMissingField},
		},
		{
			name:  "item set without items",
			rec:   ir.NewCannotSelect("Adam", "Fruit Shop"),
			codes: []string{ErrMissingField},
		},
		{
			name: "ordering with items and second participant",
			rec: ir.Record{
				Kind:         ir.KindMustOrder,
				Participant1: "Adam",
				Participant2: "Bobby",
				Shop:         "Fruit Shop",
				Items:        []string{"Papaya"},
			},
			codes: []string{ErrUnexpectedField, ErrUnexpectedField},
		},
		{
			name:  "unknown participants",
			rec:   ir.NewDifferentSelection("Zed", "Yan", "Fruit Shop"),
			codes: []string{ErrUnknownParticipant, ErrUnknownParticipant},
		},
		{
			name:  "unknown shop",
			rec:   ir.NewMustOrder("Adam", "Bakery"),
			codes: []string{ErrUnknownShop},
		},
		{
			name:  "unknown item",
			rec:   ir.NewCannotSelect("Adam", "Fruit Shop", "Durian"),
			codes: []string{ErrUnknownItem},
		},
		{
			name:  "duplicate item",
			rec:   ir.NewMustSelect("Adam", "Fruit Shop", "Papaya", "Papaya"),
			codes: []string{ErrDuplicateItem},
		},
		{
			name:  "ineligible item set",
			rec:   ir.NewCannotSelect("Adam", "Dish Shop", "Pasta"),
			codes: []string{ErrIneligible},
		},
		{
			name:  "ineligible ordering",
			rec:   ir.NewMustOrder("Cathy", "Dish Shop"),
			codes: []string{ErrIneligible},
		},
		{
			name:  "protected ordering",
			rec:   ir.NewMustNotOrder("Bobby", "Dish Shop"),
			codes: []string{ErrProtectedOrder},
		},
		{
			name:  "self relation",
			rec:   ir.NewSameSelection("Adam", "Adam", "Fruit Shop"),
			codes: []string{ErrSelfRelation},
		},
		{
			name:  "relational on restricted shop",
			rec:   ir.NewSameSelection("Adam", "Bobby", "Dish Shop"),
			codes: []string{ErrRelationalRestricted},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := Validate(tt.rec, reg)
			assert.Equal(t, tt.codes, codes(errs))
			assert.True(t, IsValidationError(errs.Err()))
		})
	}
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "items[0]", Message: "unknown item", Code: ErrUnknownItem}
	assert.Equal(t, "[E126] items[0]: unknown item", err.Error())

	err.Line = 12
	assert.Equal(t, "[E126] line 12: items[0]: unknown item", err.Error())
}

func TestValidationErrorsErr(t *testing.T) {
	var none ValidationErrors
	assert.NoError(t, none.Err())

	errs := ValidationErrors{
		{Field: "shop", Message: "shop is required", Code: ErrMissingField},
		{Field: "participant1", Message: "participant1 is required", Code: ErrMissingField},
	}
	require.Error(t, errs.Err())
	assert.Equal(t, "[E121] shop: shop is required; [E121] participant1: participant1 is required", errs.Error())

	wrapped := fmt.Errorf("add constraint: %w", errs)
	assert.True(t, IsValidationError(wrapped))
	assert.False(t, IsValidationError(fmt.Errorf("other")))
}
