package intake

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"weigh_station/internal/config"
	"weigh_station/internal/models"
)

func testDevice(t *testing.T, srvURL string) config.Device {
	t.Helper()
	u, err := url.Parse(srvURL)
	if err != nil {
		t.Fatalf("parse test server url: %v", err)
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("test server port: %v", err)
	}
	return config.Device{
		DeviceNo:  "WS-1",
		APIHost:   u.Hostname(),
		APIPort:   port,
		UserID:    "operator",
		SecretKey: "s3cret",
	}
}

func testRecord() models.UploadRecord {
	return models.UploadRecord{
		ID:       "rec-1",
		DeviceNo: "WS-1",
		ScanNo:   "SN-1001",
		WeightKg: 12.345,
	}
}

func TestSendSuccess(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/device/inWarehouse" {
			t.Errorf("path = %s", r.URL.Path)
		}
		// Header names travel verbatim, not canonicalized.
		if got := r.Header["userId"]; len(got) != 1 || got[0] != "operator" {
			t.Errorf("userId header = %v", got)
		}
		if got := r.Header["signature"]; len(got) != 1 || got[0] != "0ea734eb4ea9d0b31d8f39be8901f33b" {
			t.Errorf("signature header = %v", got)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content-type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0, "msg": "ok", "data": map[string]any{"scanNo": "SN-1001"},
		})
	}))
	defer srv.Close()

	scanNo, err := New(2*time.Second).Send(context.Background(), testDevice(t, srv.URL), testRecord())
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if scanNo != "SN-1001" {
		t.Errorf("scanNo = %q, want SN-1001", scanNo)
	}

	if gotBody["weight"] != 12.345 {
		t.Errorf("weight = %v, want 12.345", gotBody["weight"])
	}
	// Blank dimensions go over the wire as explicit nulls.
	for _, key := range []string{"length", "width", "height"} {
		v, ok := gotBody[key]
		if !ok {
			t.Errorf("payload missing %q", key)
		} else if v != nil {
			t.Errorf("%s = %v, want null", key, v)
		}
	}
	if gotBody["pictureBase64"] != "" {
		t.Errorf("pictureBase64 = %v, want empty string", gotBody["pictureBase64"])
	}
}

func TestSendRejection(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 40001, "msg": "duplicate scanNo"})
	}))
	defer srv.Close()

	_, err := New(2*time.Second).Send(context.Background(), testDevice(t, srv.URL), testRecord())

	var reject *RejectError
	if !errors.As(err, &reject) {
		t.Fatalf("err = %v, want *RejectError", err)
	}
	if reject.Code != 40001 || reject.Msg != "duplicate scanNo" {
		t.Errorf("reject = %+v", reject)
	}
}

func TestSendTransportFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http 500",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
		},
		{
			name: "malformed json",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>not json</html>"))
			},
		},
		{
			name: "missing code field",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{"msg": "who knows"})
			},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			_, err := New(2*time.Second).Send(context.Background(), testDevice(t, srv.URL), testRecord())
			if err == nil {
				t.Fatal("expected error")
			}
			var reject *RejectError
			if errors.As(err, &reject) {
				t.Errorf("transport failure classified as rejection: %v", err)
			}
		})
	}
}

func TestSendPlaceholderCredentials(t *testing.T) {
	t.Parallel()

	dev := config.Device{
		DeviceNo:  "WS-1",
		APIHost:   "127.0.0.1",
		APIPort:   1, // must never be dialed
		UserID:    config.PlaceholderUserID,
		SecretKey: config.PlaceholderSecretKey,
	}

	_, err := New(time.Second).Send(context.Background(), dev, testRecord())
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestSignature(t *testing.T) {
	t.Parallel()

	if got := Signature("operator", "s3cret"); got != "0ea734eb4ea9d0b31d8f39be8901f33b" {
		t.Errorf("Signature = %q", got)
	}
	// The salt hashes the raw key, so casing still matters even though the
	// digest input uppercases it.
	if Signature("operator", "S3CRET") == Signature("operator", "s3cret") {
		t.Error("keys differing in case must not collide")
	}
}
