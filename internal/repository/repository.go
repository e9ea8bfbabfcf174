package repository

import (
	"context"
	"database/sql"
	"time"

	"weigh_station/internal/models"
	sqlitedb "weigh_station/internal/repository/db"
)

// Records is the durable upload queue plus history surface. Create/MarkAttempt/
// MarkResult drive the queue; the rest are reads for display and recovery.
type Records interface {
	Create(ctx context.Context, rec *models.UploadRecord) error
	MarkAttempt(ctx context.Context, id string, at time.Time) error
	MarkResult(ctx context.Context, id, status, serverScanNo, detail string, at time.Time) (bool, error)
	PendingOldestFirst(ctx context.Context) ([]models.UploadRecord, error)
	Recent(ctx context.Context, n int) ([]models.UploadRecord, error)
	List(ctx context.Context, from, to time.Time, status string) ([]models.UploadRecord, error)
	GetByID(ctx context.Context, id string) (models.UploadRecord, error)
	CountPending(ctx context.Context) (int, error)
}

type Repository struct {
	Records Records
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Records: NewRecordSQLite(db),
	}
}

// InitDB opens the SQLite file and ensures the schema exists. Forwarded so
// callers wire storage through this package alone.
func InitDB(path string) (*sql.DB, error) {
	return sqlitedb.InitDB(path)
}
