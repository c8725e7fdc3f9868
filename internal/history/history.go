// Package history provides an optional SQLite-backed ledger of past
// runs and per-file outcomes (spec.md's supplemented §D.1 feature),
// letting --history-db answer "was this file already rewritten under
// this codec" across separate invocations of the program.
package history

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/zfsctool/zfsctool/internal/codec"
	"github.com/zfsctool/zfsctool/internal/rewrite"
)

// DB is a handle to a run-history database.
type DB struct {
	db *sql.DB

	mu    sync.Mutex
	runID int64
}

// Open opens (or creates) the history database at path and starts a new
// run row for targetCodec.
func Open(path string, targetCodec codec.Codec) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}

	d := &DB{db: sqlDB}
	if err := d.init(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	if err := d.startRun(targetCodec); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) init() error {
	_, err := d.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at    INTEGER NOT NULL,
			target_codec  TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS files (
			run_id      INTEGER NOT NULL,
			path        TEXT NOT NULL,
			result      TEXT NOT NULL,
			new_size    INTEGER NOT NULL,
			err         TEXT,
			finished_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_files_path ON files(path);
	`)
	if err != nil {
		return fmt.Errorf("history: create tables: %w", err)
	}
	return nil
}

func (d *DB) startRun(targetCodec codec.Codec) error {
	res, err := d.db.Exec(
		"INSERT INTO runs (started_at, target_codec) VALUES (?, ?)",
		time.Now().Unix(), string(targetCodec),
	)
	if err != nil {
		return fmt.Errorf("history: start run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("history: run id: %w", err)
	}
	d.mu.Lock()
	d.runID = id
	d.mu.Unlock()
	return nil
}

// RecordOutcome appends one FileRewriter outcome to the current run.
func (d *DB) RecordOutcome(o rewrite.Outcome) error {
	var errText sql.NullString
	if o.Err != nil {
		errText = sql.NullString{String: o.Err.Error(), Valid: true}
	}
	d.mu.Lock()
	runID := d.runID
	d.mu.Unlock()

	_, err := d.db.Exec(
		"INSERT INTO files (run_id, path, result, new_size, err, finished_at) VALUES (?, ?, ?, ?, ?, ?)",
		runID, o.Path, o.Result.String(), o.NewSize, errText, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("history: record outcome for %s: %w", o.Path, err)
	}
	return nil
}

// LastResult reports the most recent recorded result for path across any
// run, if one exists.
func (d *DB) LastResult(path string) (result string, ok bool) {
	row := d.db.QueryRow(
		"SELECT result FROM files WHERE path = ? ORDER BY finished_at DESC LIMIT 1", path,
	)
	if err := row.Scan(&result); err != nil {
		return "", false
	}
	return result, true
}

// Close closes the underlying database handle.
func (d *DB) Close() error {
	return d.db.Close()
}
