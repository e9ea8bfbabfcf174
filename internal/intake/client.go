package intake

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"weigh_station/internal/config"
	"weigh_station/internal/models"
)

const uploadPath = "/api/device/inWarehouse"

// ErrNotConfigured means the station still carries the placeholder
// credentials. Not retryable: nothing changes until an operator fixes the
// settings.
var ErrNotConfigured = errors.New("intake api credentials not configured")

// RejectError is an application-level rejection (code != 0): the server
// understood the request and refused it. Retrying the same record cannot
// change the outcome.
type RejectError struct {
	Code int
	Msg  string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("rejected by server: code=%d msg=%q", e.Code, e.Msg)
}

// Client posts confirmed weights to the warehouse intake API. One HTTP
// request per call; retry policy belongs to the upload worker.
type Client struct {
	http *http.Client
}

// New builds a client with the per-request timeout applied at transport
// level, so a stalled server cannot hold the upload worker past it.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{http: &http.Client{Timeout: timeout}}
}

// request is the wire payload. Dimension pointers marshal to null when the
// operator leaves them blank; the server expects the keys either way.
type request struct {
	DeviceNo      string   `json:"deviceNo"`
	ScanNo        string   `json:"scanNo"`
	Weight        float64  `json:"weight"`
	Length        *float64 `json:"length"`
	Width         *float64 `json:"width"`
	Height        *float64 `json:"height"`
	PictureBase64 string   `json:"pictureBase64"`
}

// response decodes the intake answer. Code is a pointer: an answer without
// the field is malformed and treated as a transport failure, not success.
type response struct {
	Code *int   `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		ScanNo string `json:"scanNo"`
	} `json:"data"`
}

// Send delivers one record. On success it returns the server-echoed scanNo.
// A *RejectError return is terminal; any other error is transport-level and
// worth retrying.
func (c *Client) Send(ctx context.Context, dev config.Device, rec models.UploadRecord) (string, error) {
	if !dev.Credentialed() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(request{
		DeviceNo:      rec.DeviceNo,
		ScanNo:        rec.ScanNo,
		Weight:        math.Round(rec.WeightKg*1000) / 1000,
		Length:        rec.LengthCm,
		Width:         rec.WidthCm,
		Height:        rec.HeightCm,
		PictureBase64: "",
	})
	if err != nil {
		return "", fmt.Errorf("encode upload: %w", err)
	}

	url := fmt.Sprintf("http://%s:%d%s", dev.APIHost, dev.APIPort, uploadPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	// The intake service reads these two names verbatim; assigning the map
	// directly skips Go's header canonicalization.
	req.Header["userId"] = []string{dev.UserID}
	req.Header["signature"] = []string{Signature(dev.UserID, dev.SecretKey)}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("post upload: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("intake http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var payload response
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("intake json: %w", err)
	}
	if payload.Code == nil {
		return "", fmt.Errorf("intake response missing code: %s", strings.TrimSpace(string(raw)))
	}
	if *payload.Code != 0 {
		return "", &RejectError{Code: *payload.Code, Msg: payload.Msg}
	}

	return payload.Data.ScanNo, nil
}

// Signature derives the request signature the intake API verifies:
// md5(userId + upper(secretKey) + salt) where salt is the first 16 hex
// characters of sha256(secretKey).
func Signature(userID, secretKey string) string {
	sum := sha256.Sum256([]byte(secretKey))
	salt := hex.EncodeToString(sum[:])[:16]
	digest := md5.Sum([]byte(userID + strings.ToUpper(secretKey) + salt))
	return hex.EncodeToString(digest[:])
}
