package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/foodcsp/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on journal.record_id
const currentSchemaVersion = 1

// MemoryPath opens a journal that lives only as long as the process.
const MemoryPath = ":memory:"

// Op names a journaled change.
type Op string

const (
	OpAdd       Op = "add"       // record appended
	OpRemove    Op = "remove"    // custom record removed
	OpOverride  Op = "override"  // record removed while resolving a conflict
	OpRationale Op = "rationale" // rationale edited
	OpRebuild   Op = "rebuild"   // model rebuilt
)

// Entry is one journal row.
type Entry struct {
	ID          string    `json:"id"`
	Seq         int64     `json:"seq"`
	Op          Op        `json:"op"`
	RecordID    string    `json:"record_id,omitempty"`
	Record      ir.Record `json:"record"`
	Note        string    `json:"note,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

// Journal is the SQLite-backed session edit log.
type Journal struct {
	db *sql.DB
}

// OpenJournal creates or opens a journal database at path. Use MemoryPath
// for a session-only journal.
//
// This function is idempotent - safe to call multiple times on one file.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// An in-memory database belongs to one connection; keep exactly one.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Reset deletes every entry. A session starts from an empty journal even
// when the file already holds an earlier session.
func (j *Journal) Reset(ctx context.Context) error {
	if _, err := j.db.ExecContext(ctx, `DELETE FROM journal`); err != nil {
		return fmt.Errorf("reset journal: %w", err)
	}
	return nil
}

// Append writes one entry. Duplicate entry IDs are silently ignored.
func (j *Journal) Append(ctx context.Context, e Entry) error {
	if e.ID == "" {
		return fmt.Errorf("append journal entry: empty ID")
	}
	payload, err := marshalRecord(e.Record)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO journal
		(id, seq, op, record_id, record, note, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.Seq,
		string(e.Op),
		e.RecordID,
		payload,
		e.Note,
		e.Fingerprint,
	)
	if err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return nil
}

// Entries returns every entry in seq order.
func (j *Journal) Entries(ctx context.Context) ([]Entry, error) {
	return j.query(ctx, `
		SELECT id, seq, op, record_id, record, note, fingerprint
		FROM journal
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`)
}

// EntriesFor returns the entries that touched one record, in seq order.
func (j *Journal) EntriesFor(ctx context.Context, recordID string) ([]Entry, error) {
	return j.query(ctx, `
		SELECT id, seq, op, record_id, record, note, fingerprint
		FROM journal
		WHERE record_id = ?
		ORDER BY seq ASC, id ASC COLLATE BINARY
	`, recordID)
}

func (j *Journal) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			op      string
			payload string
		)
		if err := rows.Scan(&e.ID, &e.Seq, &op, &e.RecordID, &payload, &e.Note, &e.Fingerprint); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		e.Op = Op(op)
		if e.Record, err = unmarshalRecord(payload); err != nil {
			return nil, fmt.Errorf("journal entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate journal: %w", err)
	}
	return entries, nil
}

// marshalRecord converts a record to canonical JSON TEXT for storage.
// The zero record is stored as "{}".
func marshalRecord(r ir.Record) (string, error) {
	if r.Kind == "" && r.ID == "" {
		return "{}", nil
	}
	obj := map[string]any{
		"id":           r.ID,
		"kind":         r.Kind,
		"participant1": r.Participant1,
		"shop":         r.Shop,
		"description":  r.Description,
		"default":      r.Default,
	}
	if r.Participant2 != "" {
		obj["participant2"] = r.Participant2
	}
	if len(r.Items) > 0 {
		obj["items"] = r.Items
	}
	if r.Rationale != "" {
		obj["rationale"] = r.Rationale
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	return string(data), nil
}

func unmarshalRecord(data string) (ir.Record, error) {
	var r ir.Record
	if data == "" || data == "{}" {
		return r, nil
	}
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return ir.Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return r, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes record_id for per-record history lookups.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_journal_record
		ON journal(record_id)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (j *Journal) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := j.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
