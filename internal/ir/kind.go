package ir

import "fmt"

// Kind is the closed set of constraint kinds.
type Kind string

const (
	KindCannotSelect       Kind = "cannot_select"
	KindMustSelect         Kind = "must_select"
	KindMustOrder          Kind = "must_order"
	KindMustNotOrder       Kind = "must_not_order"
	KindSameSelection      Kind = "same_selection"
	KindDifferentSelection Kind = "different_selection"
)

// Kinds lists every kind in menu order.
var Kinds = []Kind{
	KindCannotSelect,
	KindMustSelect,
	KindMustOrder,
	KindMustNotOrder,
	KindSameSelection,
	KindDifferentSelection,
}

// ParseKind converts a wire name into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown constraint kind %q", s)
}

// Valid reports whether k is one of the six kinds.
func (k Kind) Valid() bool {
	_, err := ParseKind(string(k))
	return err == nil
}

// IsOrdering reports whether k constrains whether a participant orders at all.
func (k Kind) IsOrdering() bool {
	return k == KindMustOrder || k == KindMustNotOrder
}

// IsRelational reports whether k relates two participants.
func (k Kind) IsRelational() bool {
	return k == KindSameSelection || k == KindDifferentSelection
}

// IsItemSet reports whether k carries an explicit item list.
func (k Kind) IsItemSet() bool {
	return k == KindCannotSelect || k == KindMustSelect
}

// Opposite returns the kind that contradicts k, if any.
func (k Kind) Opposite() (Kind, bool) {
	switch k {
	case KindMustOrder:
		return KindMustNotOrder, true
	case KindMustNotOrder:
		return KindMustOrder, true
	case KindSameSelection:
		return KindDifferentSelection, true
	case KindDifferentSelection:
		return KindSameSelection, true
	case KindMustSelect:
		return KindCannotSelect, true
	case KindCannotSelect:
		return KindMustSelect, true
	}
	return "", false
}

// Label is the human-readable menu label for k.
func (k Kind) Label() string {
	switch k {
	case KindCannotSelect:
		return "Cannot select specific items"
	case KindMustSelect:
		return "Must select one of specific items"
	case KindMustOrder:
		return "Must order from shop"
	case KindMustNotOrder:
		return "Must not order from shop"
	case KindSameSelection:
		return "Same selection as another participant"
	case KindDifferentSelection:
		return "Different selection from another participant"
	}
	return string(k)
}
