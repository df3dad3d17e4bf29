package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xavierca1/kviz-leads/internal/entity"
	"github.com/xavierca1/kviz-leads/internal/infra/http/middleware"
	"github.com/xavierca1/kviz-leads/internal/usecase"
)

type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) FindByPhoneHash(ctx context.Context, hash string) (*entity.Lead, error) {
	args := m.Called(ctx, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) FindRecentByIP(ctx context.Context, ip string, since time.Time) (*entity.Lead, error) {
	args := m.Called(ctx, ip, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) Insert(ctx context.Context, lead *entity.Lead) error {
	return m.Called(ctx, lead).Error(0)
}

func (m *MockLeadRepository) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockLeadRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLeadRepository) List(ctx context.Context, limit, offset int) ([]*entity.Lead, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entity.Lead), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, n usecase.LeadNotification) bool {
	return m.Called(ctx, n).Bool(0)
}

type MockEventSink struct {
	mock.Mock
}

func (m *MockEventSink) Record(ctx context.Context, event entity.AnalyticsEvent) error {
	return m.Called(ctx, event).Error(0)
}

type leadFixture struct {
	repo     *MockLeadRepository
	notifier *MockNotifier
	events   *MockEventSink
	handler  http.Handler
}

func newLeadFixture() *leadFixture {
	f := &leadFixture{
		repo:     new(MockLeadRepository),
		notifier: new(MockNotifier),
		events:   new(MockEventSink),
	}
	saver := usecase.NewSaveLeadUseCase(f.repo, true, usecase.DefaultIPWindow)
	uc := usecase.NewIntakeLeadUseCase(f.repo, saver, f.notifier, f.events)
	f.handler = middleware.WithClientInfo(http.HandlerFunc(NewLeadHandler(uc).Handle))
	return f
}

func postLead(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/lead", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

const validLead = `{"lead":{"name":"Anna","phone":"+7 912 345 67 89","capital":"up-to-200"},"utmParams":{"utm_source":"ig"},"userData":{"ip":"192.168.0.10","language":"ru"}}`

func TestLeadHandler_PersistedAndNotified(t *testing.T) {
	f := newLeadFixture()

	f.repo.On("Ping", mock.Anything).Return(nil)
	f.repo.On("FindByPhoneHash", mock.Anything, entity.PhoneHash("+7 912 345 67 89")).Return(nil, nil)
	f.repo.On("FindRecentByIP", mock.Anything, "203.0.113.9", mock.Anything).Return(nil, nil)
	f.repo.On("Insert", mock.Anything, mock.MatchedBy(func(l *entity.Lead) bool {
		return l.IP() == "203.0.113.9" && l.LeadData["capital"] == "up-to-200"
	})).Return(nil)
	f.events.On("Record", mock.Anything, mock.MatchedBy(func(e entity.AnalyticsEvent) bool {
		return e.Event == entity.EventLeadCreated
	})).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.MatchedBy(func(n usecase.LeadNotification) bool {
		device, _ := n.UserData["device"].(map[string]any)
		return n.UserData["ip"] == "203.0.113.9" &&
			n.UserData["language"] == "ru" &&
			device["browser"] == "Chrome"
	})).Return(true)

	rec, resp := postLead(t, f.handler, validLead)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, "Lead processed successfully", resp["message"])
	assert.Equal(t, true, resp["telegramSent"])
	assert.Equal(t, true, resp["savedToMongo"])
	assert.Equal(t, false, resp["isDuplicate"])
	assert.Equal(t, false, resp["isIPDuplicate"])
	assert.Equal(t, "sent", resp["notification"])

	f.repo.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.events.AssertExpectations(t)
}

func TestLeadHandler_MissingPhone(t *testing.T) {
	f := newLeadFixture()

	rec, resp := postLead(t, f.handler, `{"lead":{"name":"Anna"}}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "Lead data is required (name and phone)", resp["message"])
	f.repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestLeadHandler_InvalidJSON(t *testing.T) {
	f := newLeadFixture()

	rec, resp := postLead(t, f.handler, `{"lead":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, resp["success"])
	f.repo.AssertNotCalled(t, "Ping", mock.Anything)
}

func TestLeadHandler_DuplicatePhone(t *testing.T) {
	f := newLeadFixture()
	existing := entity.NewLead(map[string]any{"name": "Anna", "phone": "+79123456789"}, nil, nil, time.Now())

	f.repo.On("Ping", mock.Anything).Return(nil)
	f.repo.On("FindByPhoneHash", mock.Anything, mock.Anything).Return(existing, nil)

	rec, resp := postLead(t, f.handler, validLead)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, true, resp["isDuplicate"])
	assert.Equal(t, "Lead with this phone number already exists", resp["message"])
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	f.repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestLeadHandler_DuplicateIP(t *testing.T) {
	f := newLeadFixture()
	recent := entity.NewLead(map[string]any{"name": "Other", "phone": "555"}, nil, map[string]any{"ip": "203.0.113.9"}, time.Now())

	f.repo.On("Ping", mock.Anything).Return(nil)
	f.repo.On("FindByPhoneHash", mock.Anything, mock.Anything).Return(nil, nil)
	f.repo.On("FindRecentByIP", mock.Anything, "203.0.113.9", mock.Anything).Return(recent, nil)

	rec, resp := postLead(t, f.handler, validLead)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, true, resp["isIPDuplicate"])
	assert.Equal(t, false, resp["telegramSent"])
	assert.Equal(t, false, resp["savedToMongo"])
	assert.Equal(t, "skipped", resp["notification"])
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestLeadHandler_StoreUnavailableStillNotifies(t *testing.T) {
	f := newLeadFixture()

	f.repo.On("Ping", mock.Anything).Return(errors.New("connection refused"))
	f.events.On("Record", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(true)

	rec, resp := postLead(t, f.handler, validLead)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, resp["savedToMongo"])
	assert.Equal(t, true, resp["telegramSent"])
	f.repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestLeadHandler_NotifyFailureStillSucceeds(t *testing.T) {
	f := newLeadFixture()

	f.repo.On("Ping", mock.Anything).Return(nil)
	f.repo.On("FindByPhoneHash", mock.Anything, mock.Anything).Return(nil, nil)
	f.repo.On("FindRecentByIP", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.repo.On("Insert", mock.Anything, mock.Anything).Return(nil)
	f.events.On("Record", mock.Anything, mock.Anything).Return(nil)
	f.notifier.On("Send", mock.Anything, mock.Anything).Return(false)

	rec, resp := postLead(t, f.handler, validLead)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, false, resp["telegramSent"])
	assert.Equal(t, "failed", resp["notification"])
}

func TestEnrichUserData(t *testing.T) {
	in := map[string]any{"ip": "10.0.0.1", "userAgent": "client-ua"}
	out := enrichUserData(in, middleware.ClientInfo{IP: "1.2.3.4", UserAgent: "server-ua", Browser: "Firefox"})

	assert.Equal(t, "1.2.3.4", out["ip"])
	assert.Equal(t, "client-ua", out["userAgent"])
	assert.Equal(t, "10.0.0.1", in["ip"], "input map must not be mutated")

	out = enrichUserData(nil, middleware.ClientInfo{IP: "unknown"})
	assert.Equal(t, map[string]any{"ip": "unknown"}, out)
}

func newEventHandler(sink *MockEventSink) http.Handler {
	return middleware.WithClientInfo(http.HandlerFunc(NewEventHandler(usecase.NewLogEventUseCase(sink)).Handle))
}

func TestEventHandler_InjectsIP(t *testing.T) {
	sink := new(MockEventSink)
	sink.On("Record", mock.Anything, mock.MatchedBy(func(e entity.AnalyticsEvent) bool {
		return e.Event == "quiz_start" && e.UserData["ip"] == "198.51.100.4" && e.Fields["step"] == float64(1)
	})).Return(nil)

	req := httptest.NewRequest(http.MethodPost, "/api/analytics/event",
		bytes.NewBufferString(`{"event":"quiz_start","userData":{"ip":"spoofed"},"step":1}`))
	req.Header.Set("X-Real-IP", "198.51.100.4")
	rec := httptest.NewRecorder()
	newEventHandler(sink).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"message":"Event logged successfully"}`, rec.Body.String())
	sink.AssertExpectations(t)
}

func TestEventHandler_AcceptsLooselyTypedOptionalFields(t *testing.T) {
	bodies := map[string]string{
		"string data":     `{"userData":{},"data":"cta-button"}`,
		"numeric pageUrl": `{"userData":{},"pageUrl":42}`,
		"client loggedAt": `{"userData":{},"loggedAt":"yesterday"}`,
		"numeric event":   `{"event":7,"userData":{}}`,
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			sink := new(MockEventSink)
			sink.On("Record", mock.Anything, mock.MatchedBy(func(e entity.AnalyticsEvent) bool {
				return !e.LoggedAt.IsZero() && time.Since(e.LoggedAt) < time.Minute && e.UserData["ip"] != nil
			})).Return(nil)

			req := httptest.NewRequest(http.MethodPost, "/api/analytics/event", bytes.NewBufferString(body))
			rec := httptest.NewRecorder()
			newEventHandler(sink).ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
			sink.AssertExpectations(t)
		})
	}
}

func TestEventHandler_NonObjectUserData(t *testing.T) {
	sink := new(MockEventSink)

	req := httptest.NewRequest(http.MethodPost, "/api/analytics/event", bytes.NewBufferString(`{"userData":"me"}`))
	rec := httptest.NewRecorder()
	newEventHandler(sink).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	sink.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestEventHandler_MissingUserData(t *testing.T) {
	sink := new(MockEventSink)

	req := httptest.NewRequest(http.MethodPost, "/api/analytics/event", bytes.NewBufferString(`{"event":"quiz_start"}`))
	rec := httptest.NewRecorder()
	newEventHandler(sink).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"success":false,"message":"Failed to log event"}`, rec.Body.String())
	sink.AssertNotCalled(t, "Record", mock.Anything, mock.Anything)
}

func TestEventHandler_InvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/analytics/event", bytes.NewBufferString(`nope`))
	rec := httptest.NewRecorder()
	newEventHandler(new(MockEventSink)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeQueue struct{ healthy bool }

func (q fakeQueue) Healthy() bool { return q.healthy }

func TestHealthHandler(t *testing.T) {
	repo := new(MockLeadRepository)
	repo.On("Ping", mock.Anything).Return(nil).Once()
	repo.On("Ping", mock.Anything).Return(errors.New("down")).Once()

	h := NewHealthHandler(repo, fakeQueue{healthy: true}, true)

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "healthy", resp.Dependencies["database"])
	assert.Equal(t, "healthy", resp.Dependencies["rabbitmq"])
	assert.Equal(t, "configured", resp.Dependencies["telegram"])

	rec = httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "unhealthy", resp.Dependencies["database"])
}

func TestHealthHandler_NotConfigured(t *testing.T) {
	h := NewHealthHandler(nil, nil, false)

	rec := httptest.NewRecorder()
	h.Handle(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "not configured", resp.Dependencies["database"])
	assert.Equal(t, "not configured", resp.Dependencies["rabbitmq"])

	rec = httptest.NewRecorder()
	h.HandleService(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Contains(t, rec.Body.String(), "Analytics service is running")
}

func TestDiagnosticsHandler(t *testing.T) {
	r := chi.NewRouter()
	d := NewDiagnosticsHandler(r)
	r.Get("/api/routes", d.Routes)
	r.Get("/api/lead", d.LeadRequiresPost)
	r.Post("/api/test", d.Echo)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/routes", nil))
	var routes struct {
		Routes []string `json:"routes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &routes))
	assert.Contains(t, routes.Routes, "GET /api/lead")
	assert.Contains(t, routes.Routes, "POST /api/test")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/lead", nil))
	assert.Contains(t, rec.Body.String(), `"requiredMethod":"POST"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/test", bytes.NewBufferString(`{"a":1}`)))
	assert.Contains(t, rec.Body.String(), `"receivedData":{"a":1}`)
}
