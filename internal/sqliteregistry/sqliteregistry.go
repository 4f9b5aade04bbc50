// Package sqliteregistry implements the registry.Registry interface (§4.C)
// against a SQLite database, durable across process restarts.
package sqliteregistry

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/watchloop/monitor/internal/registry"
)

// SchemaVersion tracks the current database schema. Bump when adding
// migrations.
const SchemaVersion = 1

// Store wraps a SQLite database holding session records. Thread-safe for
// concurrent use from multiple goroutines within one process; WAL mode plus
// a busy timeout also makes it safe across processes sharing one file.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at dbPath, applying WAL mode and
// a busy timeout, then runs Migrate.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("sqliteregistry: mkdir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqliteregistry: open: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqliteregistry: wal mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqliteregistry: busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close checkpoints WAL and closes the database.
func (s *Store) Close() error {
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

func (s *Store) migrate() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqliteregistry: begin migrate: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("sqliteregistry: create metadata: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id                TEXT PRIMARY KEY,
			name              TEXT NOT NULL,
			pane_id           TEXT NOT NULL,
			created_at        INTEGER NOT NULL,
			status            TEXT NOT NULL DEFAULT 'active',
			quota_time_of_day TEXT NOT NULL DEFAULT '',
			quota_command     TEXT NOT NULL DEFAULT '',
			quota_next_exec   INTEGER NOT NULL DEFAULT 0
		)
	`); err != nil {
		return fmt.Errorf("sqliteregistry: create sessions: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)
	`, fmt.Sprintf("%d", SchemaVersion)); err != nil {
		return fmt.Errorf("sqliteregistry: set schema version: %w", err)
	}

	return tx.Commit()
}

// Create inserts a new session record with a generated ID and
// StatusActive, returning the assigned ID.
func (s *Store) Create(ctx context.Context, name, paneID string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, pane_id, created_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, id, name, paneID, time.Now().Unix(), string(registry.StatusActive))
	if err != nil {
		return "", fmt.Errorf("sqliteregistry: create: %w", err)
	}
	return id, nil
}

// Get implements registry.Registry.
func (s *Store) Get(ctx context.Context, sessionID string) (*registry.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, pane_id, created_at, status,
			quota_time_of_day, quota_command, quota_next_exec
		FROM sessions WHERE id = ?
	`, sessionID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, registry.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqliteregistry: get: %w", err)
	}
	return rec, nil
}

// Update implements registry.Registry, merging only the fields upd sets.
func (s *Store) Update(ctx context.Context, sessionID string, upd registry.Update) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqliteregistry: begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `
		SELECT id, name, pane_id, created_at, status,
			quota_time_of_day, quota_command, quota_next_exec
		FROM sessions WHERE id = ?
	`, sessionID)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return registry.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("sqliteregistry: update read: %w", err)
	}

	if upd.Status != nil {
		rec.Status = *upd.Status
	}
	if upd.QuotaScheduleCleared {
		rec.QuotaSchedule = nil
	} else if upd.QuotaSchedule != nil {
		rec.QuotaSchedule = upd.QuotaSchedule
	}

	timeOfDay, command, nextExec := "", "", int64(0)
	if rec.QuotaSchedule != nil {
		timeOfDay = rec.QuotaSchedule.TimeOfDay
		command = rec.QuotaSchedule.Command
		nextExec = rec.QuotaSchedule.NextExecution.Unix()
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE sessions SET status = ?, quota_time_of_day = ?, quota_command = ?, quota_next_exec = ?
		WHERE id = ?
	`, string(rec.Status), timeOfDay, command, nextExec, sessionID); err != nil {
		return fmt.Errorf("sqliteregistry: update write: %w", err)
	}

	return tx.Commit()
}

// List implements registry.Registry.
func (s *Store) List(ctx context.Context) ([]*registry.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, pane_id, created_at, status,
			quota_time_of_day, quota_command, quota_next_exec
		FROM sessions ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("sqliteregistry: list: %w", err)
	}
	defer rows.Close()

	var out []*registry.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("sqliteregistry: list scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a session record entirely, used when a pane is torn down
// rather than merely marked StatusEnded.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
	return err
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*registry.Record, error) {
	var rec registry.Record
	var createdUnix int64
	var status, timeOfDay, command string
	var nextExec int64

	if err := row.Scan(&rec.ID, &rec.Name, &rec.PaneID, &createdUnix, &status,
		&timeOfDay, &command, &nextExec); err != nil {
		return nil, err
	}

	rec.Created = time.Unix(createdUnix, 0)
	rec.Status = registry.Status(status)
	if timeOfDay != "" {
		rec.QuotaSchedule = &registry.QuotaSchedule{
			TimeOfDay:     timeOfDay,
			Command:       command,
			NextExecution: time.Unix(nextExec, 0),
		}
	}
	return &rec, nil
}

var _ registry.Registry = (*Store)(nil)
