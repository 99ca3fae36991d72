package store

import (
	"errors"
	"fmt"

	"github.com/roach88/foodcsp/internal/ir"
)

var (
	// ErrNotFound is returned when no record has the requested ID.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateID is returned when appending a record whose ID is taken.
	ErrDuplicateID = errors.New("duplicate record ID")
)

// Store is the ordered constraint record list. It is not safe for
// concurrent use; the session serializes edits.
type Store struct {
	records []ir.Record
}

// New returns a store holding records in the given order.
func New(records ...ir.Record) (*Store, error) {
	s := &Store{}
	for _, r := range records {
		if err := s.Append(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Snapshot returns a deep copy of the records in insertion order.
// Rebuilds iterate a snapshot, never the live list.
func (s *Store) Snapshot() []ir.Record {
	out := make([]ir.Record, len(s.records))
	for i, r := range s.records {
		out[i] = r.Clone()
	}
	return out
}

// Get returns the record with the given ID.
func (s *Store) Get(id string) (ir.Record, bool) {
	i := s.index(id)
	if i < 0 {
		return ir.Record{}, false
	}
	return s.records[i].Clone(), true
}

// Append adds a record at the end. The record must carry a unique,
// non-empty ID.
func (s *Store) Append(r ir.Record) error {
	if r.ID == "" {
		return fmt.Errorf("append record %q: empty ID", r.Description)
	}
	if s.index(r.ID) >= 0 {
		return fmt.Errorf("append record %s: %w", r.ID, ErrDuplicateID)
	}
	s.records = append(s.records, r.Clone())
	return nil
}

// Remove deletes the records with the given IDs and returns them in store
// order. Unknown IDs are ignored.
func (s *Store) Remove(ids ...string) []ir.Record {
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	var removed []ir.Record
	kept := s.records[:0:0]
	for _, r := range s.records {
		if drop[r.ID] {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	s.records = kept
	return removed
}

// Restore replaces the records with copies of records, in order. Paired
// with Snapshot it undoes the edits made in between.
func (s *Store) Restore(records []ir.Record) {
	s.records = make([]ir.Record, len(records))
	for i, r := range records {
		s.records[i] = r.Clone()
	}
}

// Filter returns copies of the records matching pred, in store order.
func (s *Store) Filter(pred func(ir.Record) bool) []ir.Record {
	var out []ir.Record
	for _, r := range s.records {
		if pred(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Update applies fn to the record with the given ID. The record's ID, kind
// and default flag cannot be changed through fn.
func (s *Store) Update(id string, fn func(*ir.Record)) (ir.Record, error) {
	i := s.index(id)
	if i < 0 {
		return ir.Record{}, fmt.Errorf("update record %s: %w", id, ErrNotFound)
	}

	r := s.records[i].Clone()
	fn(&r)
	r.ID = s.records[i].ID
	r.Kind = s.records[i].Kind
	r.Default = s.records[i].Default
	s.records[i] = r
	return r.Clone(), nil
}

func (s *Store) index(id string) int {
	for i, r := range s.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}
