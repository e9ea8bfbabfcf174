package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"weigh_station/internal/events"
	"weigh_station/internal/intake"
	"weigh_station/internal/logger"
	"weigh_station/internal/metrics"
	"weigh_station/internal/models"
	"weigh_station/internal/repository"
)

// queueSweepInterval is the fallback poll. The queue is normally driven by
// notify kicks from Enqueue; the sweep picks up records left behind by a
// transient repository error.
const queueSweepInterval = 30 * time.Second

// Validation errors for enqueue requests.
var (
	ErrScanNoRequired = errors.New("scan number is required")
	ErrNoReading      = errors.New("no weight reading available")
	ErrNotStable      = errors.New("weight reading is not stable")
	ErrZeroWeight     = errors.New("weight reading must be positive")
	ErrBadDimension   = errors.New("dimensions must be positive numbers when provided")
)

// UploadService persists captures and drives them to a terminal status.
// The upload_records table is the queue: records are created PENDING before
// any network call, so nothing is lost if the process dies mid-delivery.
type UploadService struct {
	records repository.Records
	cfg     ConfigStore
	scale   ScaleStatusSource
	sender  Sender
	bus     *events.Bus
	log     *logger.Logger

	notify chan struct{}
}

func NewUploadService(records repository.Records, cfg ConfigStore, scale ScaleStatusSource, sender Sender, bus *events.Bus, log *logger.Logger) *UploadService {
	return &UploadService{
		records: records,
		cfg:     cfg,
		scale:   scale,
		sender:  sender,
		bus:     bus,
		log:     log.Named("uploads"),
		notify:  make(chan struct{}, 1),
	}
}

// Enqueue captures the current stable weight under the given scan number and
// persists it PENDING. The weight is read from the scale here, not taken from
// the caller, so a request can never upload a value the operator did not see.
func (s *UploadService) Enqueue(ctx context.Context, p UploadParams) (models.UploadRecord, error) {
	scanNo := strings.TrimSpace(p.ScanNo)
	if scanNo == "" {
		return models.UploadRecord{}, ErrScanNoRequired
	}
	if err := validateDimensions(p); err != nil {
		return models.UploadRecord{}, err
	}

	snap := s.cfg.Snapshot()
	if !snap.Device.Credentialed() {
		return models.UploadRecord{}, intake.ErrNotConfigured
	}

	st := s.scale.Status()
	if st.Sample == nil {
		return models.UploadRecord{}, ErrNoReading
	}
	if !st.Stability.IsStable {
		return models.UploadRecord{}, ErrNotStable
	}
	if st.Sample.ValueKg <= 0 {
		return models.UploadRecord{}, ErrZeroWeight
	}

	rec := models.UploadRecord{
		DeviceNo: snap.Device.DeviceNo,
		ScanNo:   scanNo,
		WeightKg: st.Sample.ValueKg,
		LengthCm: p.LengthCm,
		WidthCm:  p.WidthCm,
		HeightCm: p.HeightCm,
	}
	if err := s.records.Create(ctx, &rec); err != nil {
		return models.UploadRecord{}, err
	}

	s.refreshQueueGauge(ctx)
	s.bus.Publish(events.Event{Type: events.TypeUpload, Data: rec})
	s.log.Infow("upload queued", "id", rec.ID, "scan_no", rec.ScanNo, "weight_kg", rec.WeightKg)
	s.kick()
	return rec, nil
}

// Get returns one record by id.
func (s *UploadService) Get(ctx context.Context, id string) (models.UploadRecord, error) {
	return s.records.GetByID(ctx, id)
}

// RecoverPending reports how many records survived a previous run still
// undelivered and schedules them for the worker's first pass.
func (s *UploadService) RecoverPending(ctx context.Context) (int, error) {
	n, err := s.records.CountPending(ctx)
	if err != nil {
		return 0, err
	}
	metrics.PendingUploads.Set(float64(n))
	if n > 0 {
		s.log.Infow("recovered pending uploads", "count", n)
		s.kick()
	}
	return n, nil
}

// Run processes the queue until ctx is canceled. One worker per process;
// records are handled oldest first so delivery order follows capture order.
func (s *UploadService) Run(ctx context.Context) {
	ticker := time.NewTicker(queueSweepInterval)
	defer ticker.Stop()

	for {
		s.drain(ctx)
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
		case <-ticker.C:
		}
	}
}

// kick wakes the worker without blocking. A full buffer means a wake-up is
// already scheduled.
func (s *UploadService) kick() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// drain makes one pass over the pending records. New records enqueued while
// draining land a notify kick, so the worker comes straight back.
func (s *UploadService) drain(ctx context.Context) {
	pending, err := s.records.PendingOldestFirst(ctx)
	if err != nil {
		s.log.Errorw("load pending uploads", "err", err)
		return
	}
	for i := range pending {
		if ctx.Err() != nil {
			return
		}
		s.process(ctx, pending[i])
	}
}

// process drives one record to SENT or FAILED. The attempt counter is written
// before each network call, so a crash mid-request never resets the budget.
// Context cancellation leaves the record PENDING for the next run.
func (s *UploadService) process(ctx context.Context, rec models.UploadRecord) {
	snap := s.cfg.Snapshot()
	maxAttempts := snap.Upload.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	backoff := snap.Upload.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	attempts := rec.Attempts
	if attempts >= maxAttempts {
		// Crashed after the last MarkAttempt; the budget is spent.
		s.finish(ctx, rec, attempts, models.UploadFailed, "", "attempt budget exhausted")
		return
	}

	for {
		attempts++
		if err := s.records.MarkAttempt(ctx, rec.ID, time.Now().UTC()); err != nil {
			s.log.Errorw("mark upload attempt", "id", rec.ID, "err", err)
			return
		}
		metrics.UploadAttemptsTotal.Inc()

		start := time.Now()
		serverScanNo, err := s.sender.Send(ctx, snap.Device, rec)
		metrics.UploadDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			s.finish(ctx, rec, attempts, models.UploadSent, serverScanNo, "")
			return
		}

		var reject *intake.RejectError
		switch {
		case errors.As(err, &reject):
			// The server understood the request and said no. Retrying the
			// same payload would only repeat the answer.
			s.log.Warnw("upload rejected", "id", rec.ID, "scan_no", rec.ScanNo, "code", reject.Code, "msg", reject.Msg)
			s.finish(ctx, rec, attempts, models.UploadFailed, "", err.Error())
			return
		case errors.Is(err, intake.ErrNotConfigured):
			s.finish(ctx, rec, attempts, models.UploadFailed, "", err.Error())
			return
		}

		if attempts >= maxAttempts {
			s.log.Errorw("upload failed", "id", rec.ID, "scan_no", rec.ScanNo, "attempts", attempts, "err", err)
			s.finish(ctx, rec, attempts, models.UploadFailed, "", err.Error())
			return
		}
		s.log.Warnw("upload attempt failed", "id", rec.ID, "attempt", attempts, "err", err)
		if !waitWithContext(ctx, backoff) {
			return
		}
		backoff *= 2
	}
}

// finish records the terminal status. MarkResult refuses to touch a record
// that is already terminal, so a lost race just means nothing to announce.
func (s *UploadService) finish(ctx context.Context, rec models.UploadRecord, attempts int, status, serverScanNo, detail string) {
	now := time.Now().UTC()
	applied, err := s.records.MarkResult(ctx, rec.ID, status, serverScanNo, detail, now)
	if err != nil {
		s.log.Errorw("mark upload result", "id", rec.ID, "status", status, "err", err)
		return
	}
	if !applied {
		return
	}

	metrics.UploadsTotal.WithLabelValues(strings.ToLower(status)).Inc()
	s.refreshQueueGauge(ctx)

	rec.Status = status
	rec.Attempts = attempts
	rec.LastAttemptAt = now
	rec.ServerScanNo = serverScanNo
	rec.ErrorDetail = detail
	s.bus.Publish(events.Event{Type: events.TypeUpload, Data: rec})

	if status == models.UploadSent {
		s.log.Infow("upload delivered", "id", rec.ID, "scan_no", rec.ScanNo, "server_scan_no", serverScanNo, "attempts", attempts)
	}
}

func (s *UploadService) refreshQueueGauge(ctx context.Context) {
	if n, err := s.records.CountPending(ctx); err == nil {
		metrics.PendingUploads.Set(float64(n))
	}
}

func validateDimensions(p UploadParams) error {
	for _, d := range []*float64{p.LengthCm, p.WidthCm, p.HeightCm} {
		if d == nil {
			continue
		}
		if *d <= 0 || math.IsNaN(*d) || math.IsInf(*d, 0) {
			return ErrBadDimension
		}
	}
	return nil
}

// waitWithContext sleeps d or until ctx is done. Returns false on cancel.
func waitWithContext(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
