package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	gocache "github.com/patrickmn/go-cache"

	"github.com/roach88/foodcsp/internal/compiler"
	"github.com/roach88/foodcsp/internal/ir"
	"github.com/roach88/foodcsp/internal/predicate"
	"github.com/roach88/foodcsp/internal/solver"
	"github.com/roach88/foodcsp/internal/store"
)

// Options configures a session. Zero values select production defaults.
type Options struct {
	// Logger receives session logs. Defaults to slog.Default().
	Logger *slog.Logger

	// IDs assigns record IDs. Defaults to UUIDv7Generator.
	IDs IDGenerator

	// EntryIDs assigns journal entry IDs. Defaults to UUIDv7Generator.
	EntryIDs IDGenerator

	// Clock stamps journal entries. Defaults to NewClock().
	Clock Sequencer

	// JournalPath is the SQLite journal file. Defaults to store.MemoryPath.
	JournalPath string
}

// ModelState is the compiled model for the current store contents.
// It is replaced, never mutated, once published; treat it as read-only.
type ModelState struct {
	*compiler.CompiledModel
	Fingerprint string
}

// Outcome is the result category of AddConstraint.
type Outcome string

const (
	OutcomeApplied           Outcome = "applied"
	OutcomeConflictsResolved Outcome = "conflicts_resolved"
	OutcomeAborted           Outcome = "aborted"
)

// AddResult reports what AddConstraint did.
type AddResult struct {
	Outcome Outcome   `json:"outcome"`
	Record  ir.Record `json:"record"`

	// Conflicts lists every stored record the candidate overlapped.
	Conflicts []compiler.ConflictReport `json:"conflicts,omitempty"`
	// Removed lists the records dropped to resolve the conflicts.
	Removed []ir.Record `json:"removed,omitempty"`

	// Reason wraps ErrConflictAbort when Outcome is OutcomeAborted.
	Reason error `json:"-"`

	// Shadowed is set when an earlier record with the same dedup key already
	// shaped the model, so this record changes nothing.
	Shadowed bool `json:"shadowed,omitempty"`

	// Warning is set when the record was stored but could not be posted.
	Warning *compiler.TranslationWarning `json:"-"`
}

// RemoveResult reports what RemoveConstraint did.
type RemoveResult struct {
	Removed []ir.Record `json:"removed"`
	// Protected lists matching defaults that were left in place.
	Protected []ir.Record `json:"protected,omitempty"`
}

// FindOptions filters one FindSolutions call. Nothing here outlives the call.
type FindOptions struct {
	Display DisplayFilter `json:"display"`
	Items   *ItemFilter   `json:"items,omitempty"`
	Where   string        `json:"where,omitempty"`
}

// SolutionReport is the result of FindSolutions.
type SolutionReport struct {
	Status      solver.Status `json:"status"`
	Count       int           `json:"count"`
	Solutions   []Assignment  `json:"solutions"`
	Fingerprint string        `json:"fingerprint"`

	// Listing holds the current records when Status is StatusInfeasible.
	Listing []ir.Record `json:"listing,omitempty"`

	// Cached is set when the report was served from the solution cache.
	Cached bool `json:"cached"`
}

// Feasible reports whether at least one solution was found.
func (r *SolutionReport) Feasible() bool {
	return r.Status != solver.StatusInfeasible
}

// Session owns one constraint lifecycle: the record store, its compiled
// model and the edit journal.
//
// Thread-safety: methods serialize on an internal mutex. A session is meant
// for one caller; the mutex only keeps accidental concurrent edits apart.
type Session struct {
	mu sync.Mutex

	reg     *ir.Registry
	store   *store.Store
	journal *store.Journal
	builder *compiler.Builder
	state   *ModelState

	ids        IDGenerator
	entryIDs   IDGenerator
	clock      Sequencer
	logger     *slog.Logger
	predicates *predicate.Compiler
	reports    *gocache.Cache
}

// NewSession starts a session holding defaults, marked protected, followed
// by the structural must_order record of every restricted-shop participant
// the defaults do not already cover. The initial model is built before
// returning.
func NewSession(ctx context.Context, reg *ir.Registry, defaults []ir.Record, opts Options) (*Session, error) {
	if reg == nil {
		return nil, errors.New("new session: registry is nil")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.IDs == nil {
		opts.IDs = UUIDv7Generator{}
	}
	if opts.EntryIDs == nil {
		opts.EntryIDs = UUIDv7Generator{}
	}
	if opts.Clock == nil {
		opts.Clock = NewClock()
	}
	if opts.JournalPath == "" {
		opts.JournalPath = store.MemoryPath
	}

	predicates, err := predicate.NewCompiler()
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	records := make([]ir.Record, 0, len(defaults))
	seen := make(map[ir.DedupKey]bool, len(defaults))
	for i, d := range defaults {
		if errs := compiler.Validate(d, reg); len(errs) > 0 {
			return nil, fmt.Errorf("new session: default %d (%s): %w", i, d.Description, errs)
		}
		records = append(records, d.AsDefault())
		seen[d.Key()] = true
	}
	for _, shop := range reg.Shops() {
		if !shop.Restricted() {
			continue
		}
		for _, p := range shop.Eligible {
			structural := ir.StructuralOrder(p, shop)
			if !seen[structural.Key()] {
				records = append(records, structural)
				seen[structural.Key()] = true
			}
		}
	}

	journal, err := store.OpenJournal(opts.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	if err := journal.Reset(ctx); err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("new session: %w", err)
	}

	s := &Session{
		reg:        reg,
		journal:    journal,
		builder:    compiler.NewBuilder(opts.Logger),
		ids:        opts.IDs,
		entryIDs:   opts.EntryIDs,
		clock:      opts.Clock,
		logger:     opts.Logger,
		predicates: predicates,
		reports:    gocache.New(gocache.NoExpiration, 0),
	}

	for i := range records {
		if records[i].ID == "" {
			records[i].ID = s.ids.Generate()
		}
	}
	s.store, err = store.New(records...)
	if err != nil {
		_ = journal.Close()
		return nil, fmt.Errorf("new session: %w", err)
	}

	for _, r := range records {
		if err := s.record(ctx, store.OpAdd, r, "default", ""); err != nil {
			_ = journal.Close()
			return nil, err
		}
	}
	if err := s.rebuild(ctx, "session start"); err != nil {
		_ = journal.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the journal.
func (s *Session) Close() error {
	return s.journal.Close()
}

// Registry returns the session's domain.
func (s *Session) Registry() *ir.Registry {
	return s.reg
}

// State returns the current compiled model.
func (s *Session) State() *ModelState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ListConstraints returns every stored record in insertion order, defaults
// included.
func (s *Session) ListConstraints() []ir.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Snapshot()
}

// AddConstraint validates rec, resolves its conflicts and stores it.
//
// A record that fails validation is returned as a compiler.ValidationErrors
// error and nothing changes. When a conflicting record is a protected
// default, confirmer must approve its removal; a nil confirmer declines.
// Every decision is collected before anything is changed, so one refusal
// leaves the store, journal and model exactly as they were and yields
// OutcomeAborted with a nil error. If a journal write fails the store and
// model are rolled back before the error is returned.
func (s *Session) AddConstraint(ctx context.Context, rec ir.Record, confirmer Confirmer) (AddResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if errs := compiler.Validate(rec, s.reg); len(errs) > 0 {
		return AddResult{}, fmt.Errorf("add constraint: %w", errs)
	}

	rec = rec.Clone()
	rec.Default = false
	if rec.Description == "" {
		generated, err := ir.NewRecord(rec.Kind, rec.Participant1, rec.Participant2, rec.Shop, rec.Items)
		if err != nil {
			return AddResult{}, fmt.Errorf("add constraint: %w", err)
		}
		rec.Description = generated.Description
	}
	if rec.ID == "" {
		rec.ID = s.ids.Generate()
	}
	if _, taken := s.store.Get(rec.ID); taken {
		return AddResult{}, fmt.Errorf("add constraint %s: %w", rec.ID, store.ErrDuplicateID)
	}

	reports := compiler.DetectConflicts(rec, s.store.Snapshot())
	result := AddResult{Record: rec, Conflicts: reports}

	if len(reports) == 0 {
		err := s.atomically(func() (err error) {
			result, err = s.applyIncremental(ctx, result)
			return err
		})
		if err != nil {
			return AddResult{}, err
		}
		return result, nil
	}

	for _, r := range reports {
		if !r.Default {
			continue
		}
		ok := false
		if confirmer != nil {
			var err error
			ok, err = confirmer.ConfirmOverride(ctx, r)
			if err != nil {
				return AddResult{}, fmt.Errorf("add constraint: confirm override of %q: %w", r.Existing.Description, err)
			}
		}
		if !ok {
			s.logger.Info("override declined",
				"candidate", rec.Description,
				"default", r.Existing.Description)
			result.Outcome = OutcomeAborted
			result.Reason = fmt.Errorf("%s: %w", r.Existing.Description, ErrConflictAbort)
			return result, nil
		}
	}

	ids := make([]string, len(reports))
	for i, r := range reports {
		ids[i] = r.Existing.ID
	}
	err := s.atomically(func() error {
		result.Removed = s.store.Remove(ids...)
		for i, removed := range result.Removed {
			if err := s.record(ctx, store.OpOverride, removed, reports[i].Reason, ""); err != nil {
				return err
			}
		}
		if err := s.store.Append(rec); err != nil {
			return fmt.Errorf("add constraint: %w", err)
		}
		if err := s.record(ctx, store.OpAdd, rec, "", ""); err != nil {
			return err
		}
		return s.rebuild(ctx, "conflicts resolved")
	})
	if err != nil {
		return AddResult{}, err
	}
	for _, removed := range result.Removed {
		s.logger.Info("constraint overridden",
			"removed", removed.Description,
			"by", rec.Description)
	}

	result.Outcome = OutcomeConflictsResolved
	result.Warning = s.warningFor(rec.ID)
	return result, nil
}

// applyIncremental stores a conflict-free record and posts it onto a clone
// of the current model.
func (s *Session) applyIncremental(ctx context.Context, result AddResult) (AddResult, error) {
	rec := result.Record

	if err := s.store.Append(rec); err != nil {
		return AddResult{}, fmt.Errorf("add constraint: %w", err)
	}
	if err := s.record(ctx, store.OpAdd, rec, "", ""); err != nil {
		return AddResult{}, err
	}

	next := s.state.Clone()
	if next.Applied[rec.Key()] {
		result.Shadowed = true
		s.logger.Warn("constraint shadowed by an earlier record with the same key",
			"description", rec.Description,
			"key", rec.Key().String())
	}

	if _, err := s.builder.Apply(next, rec); err != nil {
		var w *compiler.TranslationWarning
		if !errors.As(err, &w) {
			return AddResult{}, fmt.Errorf("add constraint: %w", err)
		}
		result.Warning = w
	}

	if err := s.publish(next); err != nil {
		return AddResult{}, err
	}

	result.Outcome = OutcomeApplied
	return result, nil
}

// RemoveConstraint removes every custom record matching pred. Matching
// defaults are reported as protected and kept. Like AddConstraint, a failed
// journal write leaves the store and model unchanged.
func (s *Session) RemoveConstraint(ctx context.Context, pred func(ir.Record) bool) (RemoveResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		result RemoveResult
		ids    []string
	)
	for _, r := range s.store.Filter(pred) {
		if r.Default {
			result.Protected = append(result.Protected, r)
			continue
		}
		ids = append(ids, r.ID)
	}
	if len(ids) == 0 {
		return result, nil
	}

	err := s.atomically(func() error {
		result.Removed = s.store.Remove(ids...)
		for _, r := range result.Removed {
			if err := s.record(ctx, store.OpRemove, r, "", ""); err != nil {
				return err
			}
		}
		return s.rebuild(ctx, "constraints removed")
	})
	if err != nil {
		return RemoveResult{}, err
	}

	s.logger.Info("constraints removed", "count", len(result.Removed))
	return result, nil
}

// RemoveByID removes one custom record.
func (s *Session) RemoveByID(ctx context.Context, id string) (RemoveResult, error) {
	s.mu.Lock()
	_, ok := s.store.Get(id)
	s.mu.Unlock()
	if !ok {
		return RemoveResult{}, &SessionError{
			Code:     ErrCodeUnknownRecord,
			Message:  "no stored constraint has this ID",
			RecordID: id,
		}
	}
	return s.RemoveConstraint(ctx, func(r ir.Record) bool { return r.ID == id })
}

// RebuildModel recompiles the model from the store.
func (s *Session) RebuildModel(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rebuild(ctx, "requested")
}

// SetRationale replaces the rationale of a stored record. The model does
// not depend on rationales and is left as is.
func (s *Session) SetRationale(ctx context.Context, id, text string) (ir.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var previous ir.Record
	updated, err := s.store.Update(id, func(r *ir.Record) {
		previous = *r
		r.Rationale = text
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ir.Record{}, &SessionError{
				Code:     ErrCodeUnknownRecord,
				Message:  "no stored constraint has this ID",
				RecordID: id,
				Err:      err,
			}
		}
		return ir.Record{}, err
	}

	if err := s.record(ctx, store.OpRationale, updated, "", ""); err != nil {
		_, _ = s.store.Update(id, func(r *ir.Record) { r.Rationale = previous.Rationale })
		return ir.Record{}, err
	}
	return updated, nil
}

// History returns the journal in sequence order.
func (s *Session) History(ctx context.Context) ([]store.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.journal.Entries(ctx)
	if err != nil {
		return nil, &SessionError{Code: ErrCodeJournal, Message: "read journal", Err: err}
	}
	return entries, nil
}

// RecordHistory returns the journal entries that touched the record with
// id, in sequence order.
func (s *Session) RecordHistory(ctx context.Context, id string) ([]store.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.journal.EntriesFor(ctx, id)
	if err != nil {
		return nil, &SessionError{Code: ErrCodeJournal, Message: "read journal", RecordID: id, Err: err}
	}
	return entries, nil
}

// FindSolutions enumerates the current model under opts.
//
// Reports are cached by model fingerprint and filters; a repeated request
// on an unchanged model is answered from the cache with Cached set.
// An infeasible report carries the current record listing.
func (s *Session) FindSolutions(ctx context.Context, opts FindOptions) (*SolutionReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := s.state
	key, err := reportKey(state.Fingerprint, opts)
	if err != nil {
		return nil, fmt.Errorf("find solutions: %w", err)
	}

	if cached, ok := s.reports.Get(key); ok {
		if report, ok := cached.(SolutionReport); ok {
			report.Solutions = cloneAssignments(report.Solutions)
			report.Cached = true
			if !report.Feasible() {
				report.Listing = s.store.Snapshot()
			}
			s.logger.Debug("solution report served from cache", "fingerprint", state.Fingerprint)
			return &report, nil
		}
	}

	eopts := EnumerateOptions{Display: opts.Display, Items: opts.Items}
	if opts.Where != "" {
		eopts.Where, err = s.predicates.Compile(opts.Where)
		if err != nil {
			return nil, &SessionError{Code: ErrCodeInvalidFilter, Message: "invalid where expression", Err: err}
		}
	}

	report := SolutionReport{
		Fingerprint: state.Fingerprint,
		Solutions:   []Assignment{},
	}
	res, err := Enumerate(ctx, state.CompiledModel, eopts, func(a Assignment) {
		report.Solutions = append(report.Solutions, a)
	})
	if err != nil {
		return nil, err
	}
	report.Status = res.Status
	report.Count = res.Count

	s.logger.Info("solutions found",
		"status", res.Status.String(),
		"count", res.Count,
		"branches", res.Branches)

	cached := report
	cached.Solutions = cloneAssignments(report.Solutions)
	s.reports.Set(key, cached, gocache.DefaultExpiration)

	if !report.Feasible() {
		report.Listing = s.store.Snapshot()
	}
	return &report, nil
}

func cloneAssignments(in []Assignment) []Assignment {
	out := make([]Assignment, len(in))
	for i, a := range in {
		out[i] = Assignment{Index: a.Index, Cells: slices.Clone(a.Cells)}
	}
	return out
}

func reportKey(fingerprint string, opts FindOptions) (string, error) {
	data, err := json.Marshal(opts)
	if err != nil {
		return "", err
	}
	return fingerprint + "|" + string(data), nil
}

// atomically runs edit and puts the store and model back if it fails.
// Journal entries written before the failure stay in the journal.
func (s *Session) atomically(edit func() error) error {
	records := s.store.Snapshot()
	state := s.state
	if err := edit(); err != nil {
		s.store.Restore(records)
		s.state = state
		s.logger.Warn("edit rolled back", "error", err)
		return err
	}
	return nil
}

// rebuild compiles a fresh model from a store snapshot, journals it and
// publishes it.
func (s *Session) rebuild(ctx context.Context, note string) error {
	cm, err := s.builder.Build(s.store.Snapshot(), s.reg)
	if err != nil {
		return fmt.Errorf("rebuild model: %w", err)
	}
	fp, err := cm.Fingerprint()
	if err != nil {
		return fmt.Errorf("fingerprint model: %w", err)
	}
	if err := s.record(ctx, store.OpRebuild, ir.Record{}, note, fp); err != nil {
		return err
	}
	s.publishFingerprinted(cm, fp)

	stats := cm.Model.Stats()
	s.logger.Info("model rebuilt",
		"fingerprint", s.state.Fingerprint,
		"applied", len(cm.Records),
		"warnings", len(cm.Warnings),
		"int_vars", stats.IntVars,
		"bool_vars", stats.BoolVars,
		"constraints", stats.Constraints)
	return nil
}

func (s *Session) publish(cm *compiler.CompiledModel) error {
	fp, err := cm.Fingerprint()
	if err != nil {
		return fmt.Errorf("fingerprint model: %w", err)
	}
	s.publishFingerprinted(cm, fp)
	return nil
}

// publishFingerprinted swaps in cm. Cached reports are dropped whenever the
// fingerprint moves, so the cache only ever holds reports of the live model.
func (s *Session) publishFingerprinted(cm *compiler.CompiledModel, fp string) {
	if s.state == nil || s.state.Fingerprint != fp {
		s.reports.Flush()
	}
	s.state = &ModelState{CompiledModel: cm, Fingerprint: fp}
}

func (s *Session) warningFor(id string) *compiler.TranslationWarning {
	for _, w := range s.state.Warnings {
		if w.Record.ID == id {
			return w
		}
	}
	return nil
}

func (s *Session) record(ctx context.Context, op store.Op, rec ir.Record, note, fingerprint string) error {
	entry := store.Entry{
		ID:          s.entryIDs.Generate(),
		Seq:         s.clock.Next(),
		Op:          op,
		RecordID:    rec.ID,
		Record:      rec,
		Note:        note,
		Fingerprint: fingerprint,
	}
	if err := s.journal.Append(ctx, entry); err != nil {
		return &SessionError{Code: ErrCodeJournal, Message: fmt.Sprintf("journal %s", op), RecordID: rec.ID, Err: err}
	}
	return nil
}
