package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/foodcsp/internal/ir"
)

// Validation error codes (E120-E139)
const (
	// Shape errors (E120-E122)
	ErrUnknownKind     = "E120" // kind is not one of the six
	ErrMissingField    = "E121" // required field empty for the kind
	ErrUnexpectedField = "E122" // field set that the kind does not carry

	// Registry errors (E123-E127)
	ErrRelationalRestricted = "E123" // same/different selection on a restricted shop
	ErrUnknownParticipant   = "E124" // participant not in registry
	ErrUnknownShop          = "E125" // shop not in registry
	ErrUnknownItem          = "E126" // item not in the shop's catalog
	ErrIneligible           = "E127" // participant may not select from the shop

	// Semantic errors (E128-E130)
	ErrSelfRelation   = "E128" // participant related to themselves
	ErrProtectedOrder = "E129" // must_not_order on a participant's restricted shop
	ErrDuplicateItem  = "E130" // item listed twice
)

// ValidationError represents a record that cannot enter the store.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors is every problem found with one record.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Err returns errs as an error, or nil when empty.
func (errs ValidationErrors) Err() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Validate checks a record's shape against its kind and its names against
// the registry. Returns all errors found (does not fail-fast).
func Validate(rec ir.Record, reg *ir.Registry) ValidationErrors {
	var errs ValidationErrors

	// E120: kind
	if !rec.Kind.Valid() {
		return append(errs, ValidationError{
			Field:   "kind",
			Message: fmt.Sprintf("unknown constraint kind %q", rec.Kind),
			Code:    ErrUnknownKind,
		})
	}

	errs = append(errs, validateShape(rec)...)
	if len(errs) > 0 {
		return errs
	}

	// E124, E125: names
	if !reg.HasParticipant(rec.Participant1) {
		errs = append(errs, ValidationError{
			Field:   "participant1",
			Message: fmt.Sprintf("unknown participant %q", rec.Participant1),
			Code:    ErrUnknownParticipant,
		})
	}
	if rec.Kind.IsRelational() && !reg.HasParticipant(rec.Participant2) {
		errs = append(errs, ValidationError{
			Field:   "participant2",
			Message: fmt.Sprintf("unknown participant %q", rec.Participant2),
			Code:    ErrUnknownParticipant,
		})
	}
	shop, ok := reg.Shop(rec.Shop)
	if !ok {
		errs = append(errs, ValidationError{
			Field:   "shop",
			Message: fmt.Sprintf("unknown shop %q", rec.Shop),
			Code:    ErrUnknownShop,
		})
	}
	if len(errs) > 0 {
		return errs
	}

	switch {
	case rec.Kind.IsRelational():
		errs = append(errs, validateRelational(rec, shop)...)
	case rec.Kind.IsItemSet():
		errs = append(errs, validateItems(rec, shop, reg)...)
	default:
		errs = append(errs, validateOrdering(rec, shop, reg)...)
	}

	return errs
}

// validateShape checks that the record carries exactly the fields its kind needs.
func validateShape(rec ir.Record) []ValidationError {
	var errs []ValidationError

	// E121: fields every kind needs
	if strings.TrimSpace(rec.Participant1) == "" {
		errs = append(errs, ValidationError{
			Field:   "participant1",
			Message: "participant1 is required",
			Code:    ErrMissingField,
		})
	}
	if strings.TrimSpace(rec.Shop) == "" {
		errs = append(errs, ValidationError{
			Field:   "shop",
			Message: "shop is required",
			Code:    ErrMissingField,
		})
	}

	if rec.Kind.IsRelational() {
		if strings.TrimSpace(rec.Participant2) == "" {
			errs = append(errs, ValidationError{
				Field:   "participant2",
				Message: fmt.Sprintf("participant2 is required for %s", rec.Kind),
				Code:    ErrMissingField,
			})
		}
	} else if rec.Participant2 != "" {
		// E122
		errs = append(errs, ValidationError{
			Field:   "participant2",
			Message: fmt.Sprintf("%s does not take a second participant", rec.Kind),
			Code:    ErrUnexpectedField,
		})
	}

	if rec.Kind.IsItemSet() {
		if len(rec.Items) == 0 {
			errs = append(errs, ValidationError{
				Field:   "items",
				Message: fmt.Sprintf("%s requires at least one item", rec.Kind),
				Code:    ErrMissingField,
			})
		}
	} else if len(rec.Items) > 0 {
		errs = append(errs, ValidationError{
			Field:   "items",
			Message: fmt.Sprintf("%s does not take items", rec.Kind),
			Code:    ErrUnexpectedField,
		})
	}

	return errs
}

func validateRelational(rec ir.Record, shop ir.Shop) []ValidationError {
	var errs []ValidationError

	// E128
	if rec.Participant1 == rec.Participant2 {
		errs = append(errs, ValidationError{
			Field:   "participant2",
			Message: fmt.Sprintf("%s cannot be related to themselves", rec.Participant1),
			Code:    ErrSelfRelation,
		})
	}

	// E123: a restricted shop has at most one variable per eligible
	// participant, so a pairwise rule there never constrains anything.
	if shop.Restricted() {
		errs = append(errs, ValidationError{
			Field:   "shop",
			Message: fmt.Sprintf("%s is not supported for restricted shop %q", rec.Kind, shop.Name),
			Code:    ErrRelationalRestricted,
		})
	}

	return errs
}

func validateItems(rec ir.Record, shop ir.Shop, reg *ir.Registry) []ValidationError {
	var errs []ValidationError

	// E127
	if !reg.IsEligible(rec.Participant1, shop.Name) {
		errs = append(errs, ValidationError{
			Field:   "participant1",
			Message: fmt.Sprintf("%s may not select from %s", rec.Participant1, shop.Name),
			Code:    ErrIneligible,
		})
	}

	seen := make(map[string]bool, len(rec.Items))
	for i, item := range rec.Items {
		// E126
		if _, ok := shop.Code(item); !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("items[%d]", i),
				Message: fmt.Sprintf("unknown item %q in %s", item, shop.Name),
				Code:    ErrUnknownItem,
			})
		}
		// E130
		if seen[item] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("items[%d]", i),
				Message: fmt.Sprintf("item %q listed twice", item),
				Code:    ErrDuplicateItem,
			})
		}
		seen[item] = true
	}

	return errs
}

func validateOrdering(rec ir.Record, shop ir.Shop, reg *ir.Registry) []ValidationError {
	eligible := reg.IsEligible(rec.Participant1, shop.Name)

	// E129: the restricted shop's eligible participants always order from it
	if rec.Kind == ir.KindMustNotOrder && shop.Restricted() && eligible {
		return []ValidationError{{
			Field:   "kind",
			Message: fmt.Sprintf("cannot restrict %s from %s (default constraint)", rec.Participant1, shop.Name),
			Code:    ErrProtectedOrder,
		}}
	}

	// E127
	if !eligible {
		return []ValidationError{{
			Field:   "participant1",
			Message: fmt.Sprintf("%s may not select from %s", rec.Participant1, shop.Name),
			Code:    ErrIneligible,
		}}
	}

	return nil
}

// IsValidationError reports whether err carries record validation failures.
func IsValidationError(err error) bool {
	var ve ValidationErrors
	var single ValidationError
	return errors.As(err, &ve) || errors.As(err, &single)
}
