package store

import (
	"testing"

	"github.com/roach88/foodcsp/internal/ir"
)

// createTestJournal opens a session-only journal for testing.
func createTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenJournal(MemoryPath)
	if err != nil {
		t.Fatalf("OpenJournal() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// withID returns rec carrying id.
func withID(rec ir.Record, id string) ir.Record {
	rec.ID = id
	return rec
}
