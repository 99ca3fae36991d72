package compiler

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/foodcsp/internal/ir"
	"github.com/roach88/foodcsp/internal/solver"
)

// VarTable maps each eligible (participant, shop) pair to the assignment
// variable created for it. Handles stay valid in clones of the model.
type VarTable struct {
	keys []ir.VarKey
	vars map[ir.VarKey]solver.IntVar
}

// Lookup returns the variable for participant in shop.
func (t VarTable) Lookup(participant, shop string) (solver.IntVar, bool) {
	v, ok := t.vars[ir.VarKey{Participant: participant, Shop: shop}]
	return v, ok
}

// Keys returns the pairs in creation order.
func (t VarTable) Keys() []ir.VarKey {
	return slices.Clone(t.keys)
}

// Len returns the number of assignment variables.
func (t VarTable) Len() int {
	return len(t.keys)
}

// TranslationWarning records a record the builder skipped.
type TranslationWarning struct {
	Record ir.Record `json:"record"`
	Err    error     `json:"-"`
}

func (w *TranslationWarning) Error() string {
	return fmt.Sprintf("failed to apply constraint %q: %v", w.Record.Description, w.Err)
}

func (w *TranslationWarning) Unwrap() error {
	return w.Err
}

// CompiledModel is a solver model together with the exact variables and
// records it was compiled from. Every constraint in Model references only
// variables in Vars.
type CompiledModel struct {
	Model    *solver.Model
	Vars     VarTable
	Registry *ir.Registry

	// Applied holds the dedup key of every posted record.
	Applied map[ir.DedupKey]bool
	// Records lists the posted records in posting order, structural rules first.
	Records  []ir.Record
	Warnings []*TranslationWarning
}

// Fingerprint hashes the registry and the posted records.
func (cm *CompiledModel) Fingerprint() (string, error) {
	return ir.Fingerprint(cm.Registry, cm.Records)
}

// Clone returns a copy whose model can take extra constraints without
// touching cm. The variable table is shared; it is never mutated.
func (cm *CompiledModel) Clone() *CompiledModel {
	applied := make(map[ir.DedupKey]bool, len(cm.Applied))
	for k, v := range cm.Applied {
		applied[k] = v
	}
	records := make([]ir.Record, len(cm.Records))
	for i, r := range cm.Records {
		records[i] = r.Clone()
	}
	return &CompiledModel{
		Model:    cm.Model.Clone(),
		Vars:     cm.Vars,
		Registry: cm.Registry,
		Applied:  applied,
		Records:  records,
		Warnings: slices.Clone(cm.Warnings),
	}
}

// Builder compiles record lists into solver models.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder returns a builder that logs skipped records to logger.
// A nil logger uses slog.Default().
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// Build compiles records with a default builder.
func Build(records []ir.Record, reg *ir.Registry) (*CompiledModel, error) {
	return NewBuilder(nil).Build(records, reg)
}

// Build creates a fresh model: one variable per eligible pair, the
// structural exactly-one rule for every restricted-shop participant, then
// each record in order with first-occurrence-wins dedup.
//
// A record that cannot be translated is skipped and reported in Warnings;
// only an unusable registry is an error.
func (b *Builder) Build(records []ir.Record, reg *ir.Registry) (*CompiledModel, error) {
	if reg == nil {
		return nil, fmt.Errorf("build model: registry is nil")
	}

	model := solver.NewModel()
	cm := &CompiledModel{
		Model: model,
		Vars: VarTable{
			vars: make(map[ir.VarKey]solver.IntVar),
		},
		Registry: reg,
		Applied:  make(map[ir.DedupKey]bool),
	}

	for _, key := range reg.EligiblePairs() {
		shop, _ := reg.Shop(key.Shop)
		v := model.NewIntVar(0, int64(len(shop.Items)-1), fmt.Sprintf("x_%s_%s", key.Participant, key.Shop))
		cm.Vars.keys = append(cm.Vars.keys, key)
		cm.Vars.vars[key] = v
	}

	for _, shop := range reg.Shops() {
		if !shop.Restricted() {
			continue
		}
		for _, p := range shop.Eligible {
			structural := ir.StructuralOrder(p, shop)
			if _, err := b.Apply(cm, structural); err != nil {
				return nil, fmt.Errorf("build model: structural rule for %s: %w", p, err)
			}
		}
	}

	for _, rec := range records {
		// Warnings are collected on cm.
		_, _ = b.Apply(cm, rec)
	}

	b.logger.Debug("model built",
		"records", len(records),
		"applied", len(cm.Records),
		"warnings", len(cm.Warnings),
		"vars", cm.Vars.Len())

	return cm, nil
}

// Apply posts one record onto cm. It reports false without error when the
// record's dedup key is already applied. A record that cannot be translated
// posts nothing, is appended to cm.Warnings and returned as a
// *TranslationWarning.
func (b *Builder) Apply(cm *CompiledModel, rec ir.Record) (bool, error) {
	key := rec.Key()
	if cm.Applied[key] {
		b.logger.Debug("constraint already applied, skipping",
			"key", key.String(),
			"description", rec.Description)
		return false, nil
	}

	post, err := translate(cm, rec)
	if err != nil {
		w := &TranslationWarning{Record: rec.Clone(), Err: err}
		cm.Warnings = append(cm.Warnings, w)
		b.logger.Warn("skipping constraint",
			"description", rec.Description,
			"error", err)
		return false, w
	}

	post(cm.Model)
	cm.Applied[key] = true
	cm.Records = append(cm.Records, rec.Clone())
	return true, nil
}

// translate resolves every name in rec before anything is posted, so a
// failing record leaves the model untouched.
func translate(cm *CompiledModel, rec ir.Record) (func(*solver.Model), error) {
	shop, ok := cm.Registry.Shop(rec.Shop)
	if !ok {
		return nil, fmt.Errorf("unknown shop %q", rec.Shop)
	}
	if rec.Kind.IsRelational() && shop.Restricted() {
		return nil, fmt.Errorf("%s is not supported for restricted shop %q", rec.Kind, shop.Name)
	}
	x, ok := cm.Vars.Lookup(rec.Participant1, rec.Shop)
	if !ok {
		return nil, fmt.Errorf("%s has no variable in %s", rec.Participant1, rec.Shop)
	}

	switch rec.Kind {
	case ir.KindCannotSelect:
		codes, err := itemCodes(shop, rec.Items)
		if err != nil {
			return nil, err
		}
		return func(m *solver.Model) {
			for _, c := range codes {
				m.AddNotEqual(solver.Var(x), solver.Const(c))
			}
		}, nil

	case ir.KindMustSelect:
		codes, err := itemCodes(shop, rec.Items)
		if err != nil {
			return nil, err
		}
		return func(m *solver.Model) {
			PostOneOf(m, x, rec.Participant1, shop, codes)
		}, nil

	case ir.KindMustOrder:
		return func(m *solver.Model) {
			PostOneOf(m, x, rec.Participant1, shop, allCodes(shop))
		}, nil

	case ir.KindMustNotOrder:
		return func(m *solver.Model) {
			for _, c := range allCodes(shop) {
				m.AddNotEqual(solver.Var(x), solver.Const(c))
			}
		}, nil

	case ir.KindSameSelection, ir.KindDifferentSelection:
		y, ok := cm.Vars.Lookup(rec.Participant2, rec.Shop)
		if !ok {
			return nil, fmt.Errorf("%s has no variable in %s", rec.Participant2, rec.Shop)
		}
		if rec.Kind == ir.KindSameSelection {
			return func(m *solver.Model) {
				m.AddEquality(solver.Var(x), solver.Var(y))
			}, nil
		}
		return func(m *solver.Model) {
			m.AddNotEqual(solver.Var(x), solver.Var(y))
		}, nil
	}

	return nil, fmt.Errorf("unknown constraint kind %q", rec.Kind)
}

// PostOneOf restricts x to codes with one indicator per code and an
// exactly-one over the indicators. It is the encoding shared by
// must_select, must_order and ephemeral item filters.
func PostOneOf(m *solver.Model, x solver.IntVar, participant string, shop ir.Shop, codes []int64) {
	lits := make([]solver.BoolVar, 0, len(codes))
	for _, c := range codes {
		item, _ := shop.Item(c)
		b := m.NewBoolVar(fmt.Sprintf("%s_selects_%s", participant, item))
		m.AddEquality(solver.Var(x), solver.Const(c)).OnlyEnforceIf(b)
		lits = append(lits, b)
	}
	m.AddExactlyOne(lits...)
}

// itemCodes resolves item names to codes, dropping repeats so the
// indicators of a one-of stay functionally determined by x.
func itemCodes(shop ir.Shop, items []string) ([]int64, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no items given for %s", shop.Name)
	}
	codes := make([]int64, 0, len(items))
	for _, item := range items {
		c, ok := shop.Code(item)
		if !ok {
			return nil, fmt.Errorf("unknown item %q in %s", item, shop.Name)
		}
		if !slices.Contains(codes, c) {
			codes = append(codes, c)
		}
	}
	return codes, nil
}

func allCodes(shop ir.Shop) []int64 {
	codes := make([]int64, len(shop.Items))
	for i := range shop.Items {
		codes[i] = int64(i)
	}
	return codes
}
