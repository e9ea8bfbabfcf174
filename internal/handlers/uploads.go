package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"weigh_station/internal/intake"
	"weigh_station/internal/repository"
	"weigh_station/internal/service"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	errCreateUpload  = "failed to enqueue upload"
	errGetUpload     = "failed to load upload record"
	errLoadHistory   = "failed to load history"
	errRecordMissing = "record not found"

	errFromInvalid  = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid    = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"
	errLimitInvalid = "invalid 'limit'; must be a positive integer"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// Request DTO for triggering an upload.
type uploadRequest struct {
	ScanNo   string   `json:"scan_no" binding:"required"`
	LengthCm *float64 `json:"length_cm"`
	WidthCm  *float64 `json:"width_cm"`
	HeightCm *float64 `json:"height_cm"`
}

// CreateUploadRequest is an exported model for Swagger docs of the upload payload.
type CreateUploadRequest struct {
	// Scanned waybill / parcel number
	ScanNo string `json:"scan_no" example:"SF123456789"`
	// Parcel length in centimeters (optional)
	LengthCm *float64 `json:"length_cm,omitempty" example:"30"`
	// Parcel width in centimeters (optional)
	WidthCm *float64 `json:"width_cm,omitempty" example:"20"`
	// Parcel height in centimeters (optional)
	HeightCm *float64 `json:"height_cm,omitempty" example:"15"`
}

// @Summary      Trigger an upload
// @Description  Captures the current stable weight under the scanned number and queues it for delivery
// @Tags         uploads
// @Accept       json
// @Produce      json
// @Param        body  body   CreateUploadRequest  true  "Capture payload"
// @Success      202   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      409   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/v1/uploads [post]
func (h *Handler) createUpload(c *gin.Context) {
	var req uploadRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	ctx := c.Request.Context()
	rec, err := h.services.Uploads.Enqueue(ctx, service.UploadParams{
		ScanNo:   req.ScanNo,
		LengthCm: req.LengthCm,
		WidthCm:  req.WidthCm,
		HeightCm: req.HeightCm,
	})
	if err != nil {
		h.respondEnqueueError(c, err, req.ScanNo)
		return
	}
	// Delivery is asynchronous; the record is what the caller can poll.
	c.JSON(http.StatusAccepted, rec)
}

// respondEnqueueError maps the service's typed errors onto HTTP codes:
// malformed input is 400, a scale or configuration state that cannot accept
// the capture right now is 409.
func (h *Handler) respondEnqueueError(c *gin.Context, err error, scanNo string) {
	switch {
	case errors.Is(err, service.ErrScanNoRequired), errors.Is(err, service.ErrBadDimension):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNoReading),
		errors.Is(err, service.ErrNotStable),
		errors.Is(err, service.ErrZeroWeight),
		errors.Is(err, intake.ErrNotConfigured):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logAndJSONError(c, http.StatusInternalServerError, errCreateUpload, "upload_enqueue_failed", err, "scan_no", scanNo)
	}
}

// @Summary      Get one upload record
// @Tags         uploads
// @Produce      json
// @Param        id   path      string  true  "Record id"
// @Success      200  {object}  map[string]interface{}
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/uploads/{id} [get]
func (h *Handler) getUpload(c *gin.Context) {
	id := c.Param("id")
	rec, err := h.services.Uploads.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": errRecordMissing})
			return
		}
		h.logAndJSONError(c, http.StatusInternalServerError, errGetUpload, "upload_get_failed", err, "id", id)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// @Summary      Upload history
// @Description  Without filters returns the newest records (default 10, 'limit' up to 100). Filter by date (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD') and status. If 'to' is date-only, it is treated as end-of-day inclusive.
// @Tags         uploads
// @Produce      json
// @Param        limit   query   int     false  "Max records when no filters are set"  example(10)
// @Param        from    query   string  false  "Start of range (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD')"  example(2026-08-01)
// @Param        to      query   string  false  "End of range. Date-only treated as end of day."  example(2026-08-31)
// @Param        status  query   string  false  "Record status"  Enums(PENDING,SENT,FAILED)
// @Success      200     {object}  map[string]interface{}  "count, records"
// @Failure      400     {object}  map[string]string
// @Failure      500     {object}  map[string]string
// @Router       /api/v1/history [get]
func (h *Handler) getHistory(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		from time.Time
		to   time.Time
		// Normalize status: trim spaces and uppercase to match stored values.
		status = strings.ToUpper(strings.TrimSpace(c.Query("status")))
		err    error
	)
	// Parse 'from' (optional)
	if qs := c.Query("from"); qs != "" {
		from, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFromInvalid})
			return
		}
	}
	// Parse 'to' (optional). If only a date is provided, make it end-of-day inclusive.
	if qs := c.Query("to"); qs != "" {
		to, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errToInvalid})
			return
		}
		if isDateOnly(qs) {
			to = to.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}
	// Validate range if both provided
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'from' must be <= 'to'"})
		return
	}

	// No filters: the recent view the station display polls.
	if from.IsZero() && to.IsZero() && status == "" {
		limit := 0
		if qs := c.Query("limit"); qs != "" {
			limit, err = strconv.Atoi(qs)
			if err != nil || limit < 1 {
				c.JSON(http.StatusBadRequest, gin.H{"error": errLimitInvalid})
				return
			}
		}
		records, err := h.services.History.Recent(ctx, limit)
		if err != nil {
			h.logAndJSONError(c, http.StatusInternalServerError, errLoadHistory, "history_recent_failed", err, "limit", limit)
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(records), "records": records})
		return
	}

	records, err := h.services.History.List(ctx, service.HistoryFilter{
		From:   from,
		To:     to,
		Status: status,
	})
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadHistory, "history_list_failed", err, "from", from, "to", to, "status", status)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(records), "records": records})
}

func parseQueryTime(s string) (time.Time, error) {
	// Try multiple accepted formats, normalizing to UTC.
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2026-08-20T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}
