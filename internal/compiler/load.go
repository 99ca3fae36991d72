package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/foodcsp/internal/ir"
)

//go:embed cue/schema.cue
var schemaSource []byte

//go:embed cue/defaults.cue
var defaultsSource []byte

// Domain is a compiled domain file: the registry, its protected defaults
// and any custom constraints listed after them.
type Domain struct {
	Registry    *ir.Registry
	Defaults    []ir.Record
	Constraints []ir.Record

	// ConstraintPos holds the source position of each entry in Constraints.
	ConstraintPos []token.Pos
}

// DefaultDomain compiles the embedded default domain.
func DefaultDomain() (*Domain, error) {
	return LoadDomain(defaultsSource, "defaults.cue")
}

// LoadDomain compiles a CUE domain file.
//
// The file is unified with the embedded #Domain schema and must be
// concrete. Defaults are validated against the registry and a bad default
// fails the load; custom constraints are only shape-checked by the schema
// and left to the caller to validate.
func LoadDomain(src []byte, filename string) (*Domain, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile domain schema: %w", formatCUEError(err))
	}
	def := schema.LookupPath(cue.ParsePath("#Domain"))

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := def.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	participants, err := parseStrings(v.LookupPath(cue.ParsePath("participants")), "participants")
	if err != nil {
		return nil, err
	}

	shopsVal := v.LookupPath(cue.ParsePath("shops"))
	shops, err := parseShops(shopsVal)
	if err != nil {
		return nil, err
	}

	reg, err := ir.NewRegistry(participants, shops)
	if err != nil {
		return nil, &CompileError{
			Field:   "shops",
			Message: err.Error(),
			Pos:     shopsVal.Pos(),
		}
	}

	domain := &Domain{Registry: reg}

	defaults, positions, err := parseRecords(v, "defaults")
	if err != nil {
		return nil, err
	}
	for i, rec := range defaults {
		if errs := Validate(rec, reg); len(errs) > 0 {
			return nil, &CompileError{
				Field:   fmt.Sprintf("defaults[%d]", i),
				Message: errs.Error(),
				Pos:     positions[i],
			}
		}
		domain.Defaults = append(domain.Defaults, rec.AsDefault())
	}

	domain.Constraints, domain.ConstraintPos, err = parseRecords(v, "constraints")
	if err != nil {
		return nil, err
	}

	return domain, nil
}

// parseShops extracts the shop list.
func parseShops(v cue.Value) ([]ir.Shop, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var shops []ir.Shop
	for i := 0; iter.Next(); i++ {
		sv := iter.Value()
		field := fmt.Sprintf("shops[%d]", i)

		name, err := sv.LookupPath(cue.ParsePath("name")).String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		items, err := parseStrings(sv.LookupPath(cue.ParsePath("items")), field+".items")
		if err != nil {
			return nil, err
		}

		shop := ir.Shop{Name: name, Items: items}
		if ev := sv.LookupPath(cue.ParsePath("eligible")); ev.Exists() {
			shop.Eligible, err = parseStrings(ev, field+".eligible")
			if err != nil {
				return nil, err
			}
		}
		shops = append(shops, shop)
	}

	return shops, nil
}

// parseRecords extracts an optional list of constraint records.
func parseRecords(v cue.Value, field string) ([]ir.Record, []token.Pos, error) {
	lv := v.LookupPath(cue.ParsePath(field))
	if !lv.Exists() {
		return nil, nil, nil
	}

	iter, err := lv.List()
	if err != nil {
		return nil, nil, formatCUEError(err)
	}

	var (
		records   []ir.Record
		positions []token.Pos
	)
	for i := 0; iter.Next(); i++ {
		rec, err := parseRecord(iter.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
		positions = append(positions, iter.Value().Pos())
	}

	return records, positions, nil
}

// parseRecord builds one record through its kind's constructor so the
// description is generated when the file leaves it out.
func parseRecord(v cue.Value, field string) (ir.Record, error) {
	kindStr, err := v.LookupPath(cue.ParsePath("kind")).String()
	if err != nil {
		return ir.Record{}, formatCUEError(err)
	}
	kind, err := ir.ParseKind(kindStr)
	if err != nil {
		return ir.Record{}, &CompileError{Field: field + ".kind", Message: err.Error(), Pos: v.Pos()}
	}

	p1, err := optionalString(v, "participant1")
	if err != nil {
		return ir.Record{}, err
	}
	p2, err := optionalString(v, "participant2")
	if err != nil {
		return ir.Record{}, err
	}
	shop, err := optionalString(v, "shop")
	if err != nil {
		return ir.Record{}, err
	}

	var items []string
	if iv := v.LookupPath(cue.ParsePath("items")); iv.Exists() {
		items, err = parseStrings(iv, field+".items")
		if err != nil {
			return ir.Record{}, err
		}
	}

	rec, err := ir.NewRecord(kind, p1, p2, shop, items)
	if err != nil {
		return ir.Record{}, &CompileError{Field: field, Message: err.Error(), Pos: v.Pos()}
	}

	// Constructors drop fields the kind does not carry; keep them so the
	// validator can report the mismatch.
	if kind.IsItemSet() || len(items) > 0 {
		rec.Items = items
	}
	if !kind.IsRelational() {
		rec.Participant2 = p2
	}

	desc, err := optionalString(v, "description")
	if err != nil {
		return ir.Record{}, err
	}
	if desc != "" {
		rec.Description = desc
	}
	rec.Rationale, err = optionalString(v, "rationale")
	if err != nil {
		return ir.Record{}, err
	}

	return rec, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func parseStrings(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
