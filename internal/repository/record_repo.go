package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"weigh_station/internal/models"
)

// sqliteTimeFormat is the TIMESTAMP layout used across the table.
const sqliteTimeFormat = "2006-01-02 15:04:05"

// ErrNotFound is returned when a record id has no row.
var ErrNotFound = errors.New("upload record not found")

type RecordSQLite struct {
	db *sql.DB
}

func NewRecordSQLite(db *sql.DB) *RecordSQLite { return &RecordSQLite{db: db} }

const recordColumns = `id, device_no, scan_no, weight_kg, length_cm, width_cm, height_cm,
       status, attempts, created_at, last_attempt_at, server_scan_no, error_detail`

// Create persists a new record in PENDING before any network attempt. ID and
// CreatedAt are assigned when empty. A duplicate identity
// (device_no, scan_no, created_at) fails the insert.
func (r *RecordSQLite) Create(ctx context.Context, rec *models.UploadRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	} else {
		rec.CreatedAt = rec.CreatedAt.UTC()
	}
	rec.Status = models.UploadPending
	rec.Attempts = 0

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO upload_records
			(id, device_no, scan_no, weight_kg, length_cm, width_cm, height_cm,
			 status, attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.DeviceNo,
		rec.ScanNo,
		rec.WeightKg,
		rec.LengthCm,
		rec.WidthCm,
		rec.HeightCm,
		rec.Status,
		rec.Attempts,
		rec.CreatedAt.Format(sqliteTimeFormat),
	)
	return err
}

// MarkAttempt checkpoints one delivery attempt before the request goes out,
// so a crash mid-flight still counts against the retry budget.
func (r *RecordSQLite) MarkAttempt(ctx context.Context, id string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE upload_records
		SET attempts = attempts + 1, last_attempt_at = ?
		WHERE id = ?
	`, at.UTC().Format(sqliteTimeFormat), id)
	return err
}

// MarkResult moves a record to a terminal status. Only a still-PENDING row is
// touched; a prior terminal outcome is never overwritten. The bool reports
// whether the transition was applied.
func (r *RecordSQLite) MarkResult(ctx context.Context, id, status, serverScanNo, detail string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE upload_records
		SET status = ?, server_scan_no = ?, error_detail = ?, last_attempt_at = ?
		WHERE id = ? AND status = ?
	`,
		status,
		serverScanNo,
		detail,
		at.UTC().Format(sqliteTimeFormat),
		id,
		models.UploadPending,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PendingOldestFirst returns every PENDING record in submission order. Used
// by the worker to drain the queue and by startup recovery after a crash.
func (r *RecordSQLite) PendingOldestFirst(ctx context.Context) ([]models.UploadRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM upload_records
		WHERE status = ?
		ORDER BY created_at ASC, rowid ASC
	`, models.UploadPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// Recent returns the last n records, newest first.
func (r *RecordSQLite) Recent(ctx context.Context, n int) ([]models.UploadRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM upload_records
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// List returns records filtered by [from, to] (inclusive) and/or status,
// newest first.
func (r *RecordSQLite) List(ctx context.Context, from, to time.Time, status string) ([]models.UploadRecord, error) {
	var (
		conds []string
		args  []any
	)

	if !from.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, from.UTC().Format(sqliteTimeFormat))
	}
	if !to.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, to.UTC().Format(sqliteTimeFormat))
	}
	if status = strings.ToUpper(strings.TrimSpace(status)); status != "" {
		conds = append(conds, "status = ?")
		args = append(args, status)
	}

	q := `SELECT ` + recordColumns + ` FROM upload_records`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC, rowid DESC"

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRecords(rows)
}

// GetByID returns one record or ErrNotFound.
func (r *RecordSQLite) GetByID(ctx context.Context, id string) (models.UploadRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM upload_records
		WHERE id = ?
	`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UploadRecord{}, ErrNotFound
	}
	return rec, err
}

// CountPending reports how many records still await delivery.
func (r *RecordSQLite) CountPending(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM upload_records WHERE status = ?
	`, models.UploadPending).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.UploadRecord, error) {
	var (
		rec           models.UploadRecord
		length        sql.NullFloat64
		width         sql.NullFloat64
		height        sql.NullFloat64
		lastAttemptAt sql.NullTime
		serverScanNo  sql.NullString
		errorDetail   sql.NullString
	)
	if err := row.Scan(
		&rec.ID,
		&rec.DeviceNo,
		&rec.ScanNo,
		&rec.WeightKg,
		&length,
		&width,
		&height,
		&rec.Status,
		&rec.Attempts,
		&rec.CreatedAt,
		&lastAttemptAt,
		&serverScanNo,
		&errorDetail,
	); err != nil {
		return models.UploadRecord{}, err
	}

	rec.CreatedAt = rec.CreatedAt.UTC()
	if length.Valid {
		rec.LengthCm = &length.Float64
	}
	if width.Valid {
		rec.WidthCm = &width.Float64
	}
	if height.Valid {
		rec.HeightCm = &height.Float64
	}
	if lastAttemptAt.Valid {
		rec.LastAttemptAt = lastAttemptAt.Time.UTC()
	}
	if serverScanNo.Valid {
		rec.ServerScanNo = serverScanNo.String
	}
	if errorDetail.Valid {
		rec.ErrorDetail = errorDetail.String
	}
	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]models.UploadRecord, error) {
	out := make([]models.UploadRecord, 0, 16)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
