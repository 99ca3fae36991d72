package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Record is one constraint rule.
//
// The fields a record carries depend on its Kind:
//   - item-set kinds (cannot_select, must_select): Participant1, Shop, Items
//   - ordering kinds (must_order, must_not_order): Participant1, Shop
//   - relational kinds (same_selection, different_selection): Participant1, Participant2, Shop
//
// Records are built through the New* constructors and checked against a
// Registry by compiler.Validate before they reach a store.
type Record struct {
	ID           string   `json:"id"`
	Kind         Kind     `json:"kind"`
	Participant1 string   `json:"participant1"`
	Participant2 string   `json:"participant2,omitempty"`
	Shop         string   `json:"shop"`
	Items        []string `json:"items,omitempty"`
	Description  string   `json:"description"`
	Rationale    string   `json:"rationale,omitempty"`
	Default      bool     `json:"default"`
}

// DedupKey identifies records that collapse to one applied constraint.
type DedupKey struct {
	Kind         Kind
	Participant1 string
	Participant2 string
	Shop         string
}

func (k DedupKey) String() string {
	return fmt.Sprintf("%s_%s_%s_%s", k.Kind, k.Participant1, k.Participant2, k.Shop)
}

// Key returns the record's dedup key.
func (r Record) Key() DedupKey {
	return DedupKey{
		Kind:         r.Kind,
		Participant1: r.Participant1,
		Participant2: r.Participant2,
		Shop:         r.Shop,
	}
}

// SamePair reports whether both records name the same two participants,
// in either order.
func (r Record) SamePair(o Record) bool {
	return (r.Participant1 == o.Participant1 && r.Participant2 == o.Participant2) ||
		(r.Participant1 == o.Participant2 && r.Participant2 == o.Participant1)
}

// Clone returns a deep copy.
func (r Record) Clone() Record {
	r.Items = slices.Clone(r.Items)
	return r
}

// WithRationale returns a copy carrying an explanatory note.
func (r Record) WithRationale(text string) Record {
	r.Rationale = text
	return r
}

// AsDefault returns a copy marked as a protected default.
func (r Record) AsDefault() Record {
	r.Default = true
	return r
}

// NewCannotSelect builds a cannot_select record.
func NewCannotSelect(participant, shop string, items ...string) Record {
	return Record{
		Kind:         KindCannotSelect,
		Participant1: participant,
		Shop:         shop,
		Items:        slices.Clone(items),
		Description:  fmt.Sprintf("%s cannot select %s from %s", participant, strings.Join(items, ", "), shop),
	}
}

// NewMustSelect builds a must_select record.
func NewMustSelect(participant, shop string, items ...string) Record {
	return Record{
		Kind:         KindMustSelect,
		Participant1: participant,
		Shop:         shop,
		Items:        slices.Clone(items),
		Description:  fmt.Sprintf("%s must select one of %s from %s", participant, strings.Join(items, ", "), shop),
	}
}

// NewMustOrder builds a must_order record.
func NewMustOrder(participant, shop string) Record {
	return Record{
		Kind:         KindMustOrder,
		Participant1: participant,
		Shop:         shop,
		Description:  fmt.Sprintf("%s must order from %s", participant, shop),
	}
}

// NewMustNotOrder builds a must_not_order record.
func NewMustNotOrder(participant, shop string) Record {
	return Record{
		Kind:         KindMustNotOrder,
		Participant1: participant,
		Shop:         shop,
		Description:  fmt.Sprintf("%s must not order from %s", participant, shop),
	}
}

// NewSameSelection builds a same_selection record.
func NewSameSelection(p1, p2, shop string) Record {
	return Record{
		Kind:         KindSameSelection,
		Participant1: p1,
		Participant2: p2,
		Shop:         shop,
		Description:  fmt.Sprintf("%s must have same selection as %s in %s", p1, p2, shop),
	}
}

// NewDifferentSelection builds a different_selection record.
func NewDifferentSelection(p1, p2, shop string) Record {
	return Record{
		Kind:         KindDifferentSelection,
		Participant1: p1,
		Participant2: p2,
		Shop:         shop,
		Description:  fmt.Sprintf("%s must have different selection from %s in %s", p1, p2, shop),
	}
}

// NewRecord dispatches to the kind's constructor. Fields the kind does not
// carry are ignored.
func NewRecord(kind Kind, p1, p2, shop string, items []string) (Record, error) {
	switch kind {
	case KindCannotSelect:
		return NewCannotSelect(p1, shop, items...), nil
	case KindMustSelect:
		return NewMustSelect(p1, shop, items...), nil
	case KindMustOrder:
		return NewMustOrder(p1, shop), nil
	case KindMustNotOrder:
		return NewMustNotOrder(p1, shop), nil
	case KindSameSelection:
		return NewSameSelection(p1, p2, shop), nil
	case KindDifferentSelection:
		return NewDifferentSelection(p1, p2, shop), nil
	}
	return Record{}, fmt.Errorf("unknown constraint kind %q", kind)
}

// StructuralOrder is the record every restricted-shop participant starts with:
// they must pick exactly one item from that shop.
func StructuralOrder(participant string, shop Shop) Record {
	return Record{
		Kind:         KindMustOrder,
		Participant1: participant,
		Shop:         shop.Name,
		Description:  fmt.Sprintf("%s must select one of %s from %s", participant, strings.Join(shop.Items, ", "), shop.Name),
		Default:      true,
	}
}
