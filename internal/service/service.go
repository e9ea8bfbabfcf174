package service

import (
	"context"

	"weigh_station/internal/config"
	"weigh_station/internal/events"
	"weigh_station/internal/logger"
	"weigh_station/internal/models"
	"weigh_station/internal/repository"
)

type Authorization interface {
	Unlock(password string) (string, error)
	ParseToken(accessToken string) (string, error)
}

// Status exposes the live scale snapshot: link state, latest reading,
// stability verdict.
type Status interface {
	Scale() models.ScaleStatus
}

// Uploads owns the delivery queue: enqueueing captures and driving pending
// records to a terminal status. Run is stopped via context cancellation in
// main() for graceful shutdown.
type Uploads interface {
	Enqueue(ctx context.Context, p UploadParams) (models.UploadRecord, error)
	Get(ctx context.Context, id string) (models.UploadRecord, error)
	RecoverPending(ctx context.Context) (int, error)
	Run(ctx context.Context)
}

// History exposes read-only access to finished and in-flight uploads.
type History interface {
	Recent(ctx context.Context, limit int) ([]models.UploadRecord, error)
	List(ctx context.Context, f HistoryFilter) ([]models.UploadRecord, error)
}

// Settings reads and rewrites the device configuration.
type Settings interface {
	Current() SettingsView
	Update(ctx context.Context, p SettingsParams) (SettingsView, error)
}

// Sender delivers one upload record to the intake API.
// *intake.Client is the production implementation.
type Sender interface {
	Send(ctx context.Context, dev config.Device, rec models.UploadRecord) (string, error)
}

// ScaleStatusSource is where the live reading comes from.
// *scale.Reader is the production implementation.
type ScaleStatusSource interface {
	Status() models.ScaleStatus
}

// ConfigStore is the slice of *config.Store the services use.
type ConfigStore interface {
	Snapshot() config.Snapshot
	UpdateDevice(d config.Device) (config.Snapshot, error)
}

type Service struct {
	Status
	Uploads
	History
	Settings
	Authorization
}

// NewService wires repositories, the config store and the live pipeline into
// concrete services.
func NewService(repos *repository.Repository, store ConfigStore, scale ScaleStatusSource, sender Sender, bus *events.Bus, log *logger.Logger) *Service {
	return &Service{
		Status:        NewStatusService(scale),
		Uploads:       NewUploadService(repos.Records, store, scale, sender, bus, log),
		History:       NewHistoryService(repos.Records),
		Settings:      NewSettingsService(store, log),
		Authorization: NewAuthService(store),
	}
}
