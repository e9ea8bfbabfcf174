package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"weigh_station/internal/models"
	"weigh_station/internal/repository"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
)

type HistoryService struct {
	records repository.Records
}

func NewHistoryService(records repository.Records) *HistoryService {
	return &HistoryService{records: records}
}

var errInvalidTimeRange = errors.New("invalid time range: From must be <= To")

// normalizeToUTC returns t in UTC, preserving zero time values.
func normalizeToUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// normalizeStatus trims spaces and uppercases the status filter.
func normalizeStatus(s string) string {
	return strings.TrimSpace(strings.ToUpper(s))
}

// normalizeAndValidateFilter prepares query parameters and validates the time range.
func normalizeAndValidateFilter(f HistoryFilter) (time.Time, time.Time, string, error) {
	from := normalizeToUTC(f.From)
	to := normalizeToUTC(f.To)

	if !from.IsZero() && !to.IsZero() && from.After(to) {
		return time.Time{}, time.Time{}, "", errInvalidTimeRange
	}

	status := normalizeStatus(f.Status)
	return from, to, status, nil
}

// Recent returns the newest records, capped so the display request cannot
// drag the whole table over.
func (s *HistoryService) Recent(ctx context.Context, limit int) ([]models.UploadRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}
	return s.records.Recent(ctx, limit)
}

func (s *HistoryService) List(ctx context.Context, f HistoryFilter) ([]models.UploadRecord, error) {
	from, to, status, err := normalizeAndValidateFilter(f)
	if err != nil {
		return nil, err
	}
	return s.records.List(ctx, from, to, status)
}
