package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"weigh_station/internal/events"
	"weigh_station/internal/models"
	"weigh_station/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newWSServer(t *testing.T, s *service.Service, bus *events.Bus) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(s, bus, nil)
	r.GET("/ws", h.wsLive)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	u, _ := url.Parse(srv.URL)
	u.Scheme = "ws"
	u.Path = "/ws"
	dialer := websocket.Dialer{HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(u.String(), nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWebSocket_InitialStatusThenBusEvents(t *testing.T) {
	st := &mockStatus{status: models.ScaleStatus{
		Connection: models.Connection{Status: models.ConnConnected, PortName: "/dev/ttyUSB0"},
		Stability:  models.StabilityState{IsStable: false, CurrentValue: 0},
	}}
	s := &service.Service{Status: st}
	bus := events.NewBus()

	srv := newWSServer(t, s, bus)
	conn := dialWS(t, srv)

	type envelope struct {
		Type  string          `json:"type"`
		Data  json.RawMessage `json:"data"`
		Error string          `json:"error"`
	}

	// The first frame is always the current status. Reading it also proves
	// the handler has subscribed, so events published after this point
	// cannot be missed.
	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if env.Type != "status" || len(env.Data) == 0 {
		t.Fatalf("bad initial envelope: %+v", env)
	}
	var got models.ScaleStatus
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if got.Connection.Status != models.ConnConnected {
		t.Fatalf("unexpected status: %+v", got)
	}

	// A published reading arrives as a typed envelope.
	sample := models.WeightSample{ValueKg: 6543.21, RawUnit: models.UnitKg, CapturedAt: time.Now().UTC()}
	bus.Publish(events.Event{Type: events.TypeReading, Data: sample})

	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	env = envelope{}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read reading event: %v", err)
	}
	if env.Type != string(events.TypeReading) {
		t.Fatalf("expected type=reading, got %+v", env)
	}
	var ws models.WeightSample
	if err := json.Unmarshal(env.Data, &ws); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	if ws.ValueKg != 6543.21 {
		t.Fatalf("unexpected sample: %+v", ws)
	}

	// Upload lifecycle events flow through the same socket.
	bus.Publish(events.Event{Type: events.TypeUpload, Data: models.UploadRecord{ID: "rec-1", Status: models.UploadSent}})

	_ = conn.SetReadDeadline(time.Now().Add(1 * time.Second))
	env = envelope{}
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read upload event: %v", err)
	}
	if env.Type != string(events.TypeUpload) {
		t.Fatalf("expected type=upload, got %+v", env)
	}
	var rec models.UploadRecord
	if err := json.Unmarshal(env.Data, &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	if rec.ID != "rec-1" || rec.Status != models.UploadSent {
		t.Fatalf("unexpected record: %+v", rec)
	}
}

func TestWebSocket_PlainHTTPRequestRejected(t *testing.T) {
	s := &service.Service{Status: &mockStatus{}}
	srv := newWSServer(t, s, events.NewBus())

	// No upgrade headers → the upgrader writes 400 itself.
	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-websocket request, got %d", resp.StatusCode)
	}
}
