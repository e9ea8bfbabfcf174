package handlers

import (
	"context"
	"net/http"

	"weigh_station/internal/events"
	"weigh_station/internal/models"
	"weigh_station/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	unlockToken string
	unlockErr   error
	parseScope  string
	parseErr    error

	lastUnlockPassword string
	lastParseToken     string
}

func (m *mockAuth) Unlock(password string) (string, error) {
	m.lastUnlockPassword = password
	return m.unlockToken, m.unlockErr
}
func (m *mockAuth) ParseToken(accessToken string) (string, error) {
	m.lastParseToken = accessToken
	return m.parseScope, m.parseErr
}

type mockStatus struct {
	status models.ScaleStatus
}

func (m *mockStatus) Scale() models.ScaleStatus {
	return m.status
}

type mockUploads struct {
	enqueueRec models.UploadRecord
	enqueueErr error
	getRec     models.UploadRecord
	getErr     error
	recoverN   int
	recoverErr error

	lastEnqueue  service.UploadParams
	enqueueCalls int
	lastGetID    string
}

func (m *mockUploads) Enqueue(ctx context.Context, p service.UploadParams) (models.UploadRecord, error) {
	m.enqueueCalls++
	m.lastEnqueue = p
	return m.enqueueRec, m.enqueueErr
}
func (m *mockUploads) Get(ctx context.Context, id string) (models.UploadRecord, error) {
	m.lastGetID = id
	return m.getRec, m.getErr
}
func (m *mockUploads) RecoverPending(ctx context.Context) (int, error) {
	return m.recoverN, m.recoverErr
}
func (m *mockUploads) Run(ctx context.Context) {}

type mockHistory struct {
	recentResp []models.UploadRecord
	recentErr  error
	listResp   []models.UploadRecord
	listErr    error

	lastLimit   int
	recentCalls int
	lastFilter  service.HistoryFilter
	listCalls   int
}

func (m *mockHistory) Recent(ctx context.Context, limit int) ([]models.UploadRecord, error) {
	m.recentCalls++
	m.lastLimit = limit
	return m.recentResp, m.recentErr
}
func (m *mockHistory) List(ctx context.Context, f service.HistoryFilter) ([]models.UploadRecord, error) {
	m.listCalls++
	m.lastFilter = f
	return m.listResp, m.listErr
}

type mockSettings struct {
	current    service.SettingsView
	updateView service.SettingsView
	updateErr  error

	lastUpdate  service.SettingsParams
	updateCalls int
}

func (m *mockSettings) Current() service.SettingsView {
	return m.current
}
func (m *mockSettings) Update(ctx context.Context, p service.SettingsParams) (service.SettingsView, error) {
	m.updateCalls++
	m.lastUpdate = p
	return m.updateView, m.updateErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, events.NewBus(), nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
