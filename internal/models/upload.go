package models

import "time"

// Upload record lifecycle. Sent and Failed are terminal: once reached, the
// record never transitions again.
const (
	UploadPending = "PENDING"
	UploadSent    = "SENT"
	UploadFailed  = "FAILED"
)

// UploadRecord is one user-confirmed weight headed for the intake API.
// Created PENDING before any network call, mutated only by the upload worker.
type UploadRecord struct {
	ID       string  `json:"id"`
	DeviceNo string  `json:"device_no"`
	ScanNo   string  `json:"scan_no"`
	WeightKg float64 `json:"weight_kg"`

	// Parcel dimensions are optional; nil uploads as JSON null.
	LengthCm *float64 `json:"length_cm,omitempty"`
	WidthCm  *float64 `json:"width_cm,omitempty"`
	HeightCm *float64 `json:"height_cm,omitempty"`

	Status        string    `json:"status"` // PENDING | SENT | FAILED
	Attempts      int       `json:"attempts"`
	CreatedAt     time.Time `json:"created_at"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`
	// ServerScanNo echoes data.scanNo from a code-0 acknowledgment.
	ServerScanNo string `json:"server_scan_no,omitempty"`
	ErrorDetail  string `json:"error_detail,omitempty"`
}

// Terminal reports whether the record has reached a final status.
func (r UploadRecord) Terminal() bool {
	return r.Status == UploadSent || r.Status == UploadFailed
}
