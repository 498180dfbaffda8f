package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tberndt/worksync/internal/record"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added merged_at bookkeeping column usage + record order index
const currentSchemaVersion = 1

// SQLiteStore persists replicas in a SQLite database.
// Uses WAL mode for concurrent read access during a save.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// Open creates or opens a SQLite replica store at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
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

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadReplica reads all records of a replica in stored order.
// Unknown coordinates yield an empty replica.
func (s *SQLiteStore) LoadReplica(ctx context.Context, entity record.EntityType, ownerID, period string, side record.Side) (record.Replica, error) {
	rep := record.NewReplica(ownerID, period, side)

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, tag, payload
		FROM records
		WHERE entity = ? AND owner_id = ? AND period = ? AND side = ?
		ORDER BY pos
	`, string(entity), ownerID, period, string(side))
	if err != nil {
		return record.Replica{}, &StoreError{Op: "load", Entity: entity, OwnerID: ownerID, Period: period, Side: side, Err: err}
	}
	defer rows.Close()

	for rows.Next() {
		var key, tag, payload string
		if err := rows.Scan(&key, &tag, &payload); err != nil {
			return record.Replica{}, &StoreError{Op: "load", Entity: entity, OwnerID: ownerID, Period: period, Side: side, Err: err}
		}
		rec := record.Record{Key: key, OwnerID: ownerID, Tag: record.Tag(tag)}
		if payload != "" {
			rec.Payload = json.RawMessage(payload)
		}
		rep.Records = append(rep.Records, rec)
	}
	if err := rows.Err(); err != nil {
		return record.Replica{}, &StoreError{Op: "load", Entity: entity, OwnerID: ownerID, Period: period, Side: side, Err: err}
	}

	return rep, nil
}

// SaveReplica replaces the replica's record rows in one transaction.
func (s *SQLiteStore) SaveReplica(ctx context.Context, entity record.EntityType, rep record.Replica) error {
	return s.SaveReplicas(ctx, entity, rep)
}

// SaveReplicas replaces several replicas in a single transaction. Either
// every replica commits or none does; the reconciler saves both sides of a
// merge through this, so a failure can never strand one side merged and
// the other not.
func (s *SQLiteStore) SaveReplicas(ctx context.Context, entity record.EntityType, reps ...record.Replica) error {
	for _, rep := range reps {
		if err := rep.Validate(); err != nil {
			return &StoreError{Op: "save", Entity: entity, OwnerID: rep.OwnerID, Period: rep.Period, Side: rep.Side, Err: err}
		}
	}
	if len(reps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		first := reps[0]
		return &StoreError{Op: "save", Entity: entity, OwnerID: first.OwnerID, Period: first.Period, Side: first.Side, Err: fmt.Errorf("begin tx: %w", err)}
	}
	defer tx.Rollback() // No-op if committed

	for _, rep := range reps {
		if err := saveReplicaTx(ctx, tx, entity, rep); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		first := reps[0]
		return &StoreError{Op: "save", Entity: entity, OwnerID: first.OwnerID, Period: first.Period, Side: first.Side, Err: fmt.Errorf("commit: %w", err)}
	}
	return nil
}

// saveReplicaTx writes one replica's rows inside an open transaction.
func saveReplicaTx(ctx context.Context, tx *sql.Tx, entity record.EntityType, rep record.Replica) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `
		INSERT INTO replicas (entity, owner_id, period, side, merged_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(entity, owner_id, period, side) DO UPDATE SET merged_at = excluded.merged_at
	`, string(entity), rep.OwnerID, rep.Period, string(rep.Side), now)
	if err != nil {
		return &StoreError{Op: "save", Entity: entity, OwnerID: rep.OwnerID, Period: rep.Period, Side: rep.Side, Err: err}
	}

	_, err = tx.ExecContext(ctx, `
		DELETE FROM records
		WHERE entity = ? AND owner_id = ? AND period = ? AND side = ?
	`, string(entity), rep.OwnerID, rep.Period, string(rep.Side))
	if err != nil {
		return &StoreError{Op: "save", Entity: entity, OwnerID: rep.OwnerID, Period: rep.Period, Side: rep.Side, Err: err}
	}

	for pos, rec := range rep.Records {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO records (entity, owner_id, period, side, key, tag, payload, pos)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, string(entity), rep.OwnerID, rep.Period, string(rep.Side), rec.Key, string(rec.Tag), string(rec.Payload), pos)
		if err != nil {
			return &StoreError{Op: "save", Entity: entity, OwnerID: rep.OwnerID, Period: rep.Period, Side: rep.Side, Err: err}
		}
	}
	return nil
}

// MergedAt reads the save bookkeeping timestamp of a replica.
func (s *SQLiteStore) MergedAt(ctx context.Context, entity record.EntityType, ownerID, period string, side record.Side) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `
		SELECT merged_at FROM replicas
		WHERE entity = ? AND owner_id = ? AND period = ? AND side = ?
	`, string(entity), ownerID, period, string(side)).Scan(&raw)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, &StoreError{Op: "load", Entity: entity, OwnerID: ownerID, Period: period, Side: side, Err: err}
	}

	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, &StoreError{Op: "load", Entity: entity, OwnerID: ownerID, Period: period, Side: side, Err: fmt.Errorf("parse merged_at %q: %w", raw, err)}
	}
	return t, true, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
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
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	// No incremental migrations yet; new databases start at the current
	// version so future ones have a baseline to migrate from.
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}
