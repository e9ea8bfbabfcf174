package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates the SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// Conservative pool settings for SQLite
	db.SetMaxOpenConns(1) // SQLite is not great with many writers
	db.SetMaxIdleConns(1)

	// Pragmas to improve reliability
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA journal_mode=WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA foreign_keys=ON: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set PRAGMA busy_timeout=5000: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

// upload_records doubles as the retry queue (status = PENDING) and the
// durable history (status = SENT | FAILED). A record is created before the
// first network attempt, so a crash can never lose an accepted upload.
const schemaUploadRecords = `
CREATE TABLE IF NOT EXISTS upload_records (
    id TEXT PRIMARY KEY,
    device_no TEXT NOT NULL,
    scan_no TEXT NOT NULL,
    weight_kg REAL NOT NULL,
    length_cm REAL,
    width_cm REAL,
    height_cm REAL,
    status TEXT NOT NULL,
    attempts INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    last_attempt_at TIMESTAMP,
    server_scan_no TEXT,
    error_detail TEXT
);
`

const schemaUploadRecordsStatusIdx = `
CREATE INDEX IF NOT EXISTS idx_upload_records_status
    ON upload_records (status, created_at);
`

// Record identity is (device_no, scan_no, created_at); a second insert of
// the same identity is a duplicate, not a new upload.
const schemaUploadRecordsIdentityIdx = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_upload_records_identity
    ON upload_records (device_no, scan_no, created_at);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// In case of panic, rollback to avoid leaving an open transaction
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaUploadRecords,
		schemaUploadRecordsStatusIdx,
		schemaUploadRecordsIdentityIdx,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
