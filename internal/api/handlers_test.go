package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/knowledge-chat/backend/internal/config"
	"github.com/knowledge-chat/backend/internal/guide"
	"github.com/knowledge-chat/backend/internal/models"
	"github.com/knowledge-chat/backend/internal/session"
	"github.com/knowledge-chat/backend/internal/testutil"
	"github.com/knowledge-chat/backend/internal/upload"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testAPI is a fully routed server over an in-memory session manager and a mock webhook.
type testAPI struct {
	e        *echo.Echo
	sessions *session.Manager
	hook     *testutil.MockWebhook
}

func fastTiming() upload.Timing {
	return upload.Timing{
		MinDuration:   40 * time.Millisecond,
		TickInterval:  2 * time.Millisecond,
		MaxIncrement:  15,
		Cap:           90,
		CompleteDelay: 2 * time.Millisecond,
		Rand:          func() float64 { return 0.9 },
	}
}

func newTestAPI(t *testing.T, mutate ...func(*Dependencies)) *testAPI {
	t.Helper()

	hook := testutil.NewMockWebhook()
	sessions := session.NewManager(session.Deps{
		Ingestor: hook,
		Answerer: hook,
		Timing:   fastTiming(),
	}, 10)

	g, err := guide.Default()
	require.NoError(t, err)

	deps := &Dependencies{
		Sessions: sessions,
		Guide:    g,
		Client: ClientConfig{
			AcceptedFileTypes: []string{".pdf", ".doc", ".docx", ".txt", ".md"},
			MinUploadMs:       10000,
			CompleteDelayMs:   500,
			Version:           "test",
		},
		BaseContext:          context.Background(),
		Version:              "test",
		AllowSessionDeletion: true,
		Heartbeat:            50 * time.Millisecond,
		WSMaxMessageSize:     64 * 1024,
	}
	for _, fn := range mutate {
		fn(deps)
	}

	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler
	RegisterRoutes(e, NewHandlers(deps))

	return &testAPI{e: e, sessions: sessions, hook: hook}
}

func (a *testAPI) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) newSession(t *testing.T) *session.Session {
	t.Helper()
	rec := a.do(http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var snap models.SessionSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	s, ok := a.sessions.Get(snap.ID)
	require.True(t, ok)
	return s
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t)
	a.newSession(t)

	rec := a.do(http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, float64(1), body["sessions"])
}

func TestSessionLifecycle(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var snap models.SessionSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.NotEmpty(t, snap.ID)
	assert.Equal(t, models.UploadStatusIdle, snap.Upload.Status)
	assert.Empty(t, snap.Chat.Messages)
	assert.False(t, snap.Chat.Waiting)

	base := "/api/sessions/" + snap.ID

	rec = a.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPost, base+"/keepalive", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodGet, base+"/notifications", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = a.do(http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeAPIError(t, rec).Code)
}

func TestDeleteSession_Disabled(t *testing.T) {
	a := newTestAPI(t, func(d *Dependencies) { d.AllowSessionDeletion = false })
	s := a.newSession(t)

	rec := a.do(http.MethodDelete, "/api/sessions/"+s.ID, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeAPIError(t, rec).Code)
	assert.Equal(t, 1, a.sessions.Count())
}

func TestUnknownSession(t *testing.T) {
	a := newTestAPI(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/sessions/missing"},
		{http.MethodPost, "/api/sessions/missing/keepalive"},
		{http.MethodGet, "/api/sessions/missing/upload"},
		{http.MethodGet, "/api/sessions/missing/chat/transcript"},
		{http.MethodGet, "/api/sessions/missing/events"},
	}
	for _, p := range paths {
		rec := a.do(p.method, p.path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", p.method, p.path)
	}
}

func TestClientConfig(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/api/client-config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg ClientConfig
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	assert.Equal(t, ".pdf,.doc,.docx,.txt,.md", cfg.Accept)
	assert.Len(t, cfg.AcceptedFileTypes, 5)
	assert.Equal(t, int64(10000), cfg.MinUploadMs)
}

func TestGuide(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(http.MethodGet, "/api/guide", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var g guide.Guide
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &g))
	assert.Len(t, g.Steps, 3)
}

type fakeDeliveryLog struct {
	stats []models.FlowStats
	sent  []models.Delivery
	err   error
	limit int
}

func (f *fakeDeliveryLog) Stats(ctx context.Context) ([]models.FlowStats, error) {
	return f.stats, f.err
}

func (f *fakeDeliveryLog) Recent(ctx context.Context, limit int) ([]models.Delivery, error) {
	f.limit = limit
	return f.sent, f.err
}

func TestDeliveries(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		a := newTestAPI(t)
		rec := a.do(http.MethodGet, "/api/deliveries/stats", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		rec = a.do(http.MethodGet, "/api/deliveries/recent", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("stats and recent", func(t *testing.T) {
		log := &fakeDeliveryLog{
			stats: []models.FlowStats{{Flow: models.FlowQuestion, Total: 2, Succeeded: 1, Failed: 1}},
			sent:  []models.Delivery{{Flow: models.FlowQuestion, StatusCode: 500}},
		}
		a := newTestAPI(t, func(d *Dependencies) { d.Deliveries = log })

		rec := a.do(http.MethodGet, "/api/deliveries/stats", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var stats []models.FlowStats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
		assert.Equal(t, log.stats, stats)

		rec = a.do(http.MethodGet, "/api/deliveries/recent?limit=10000", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, maxRecentDeliveries, log.limit)

		rec = a.do(http.MethodGet, "/api/deliveries/recent?limit=abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("query failure", func(t *testing.T) {
		log := &fakeDeliveryLog{err: errors.New("boom")}
		a := newTestAPI(t, func(d *Dependencies) { d.Deliveries = log })

		rec := a.do(http.MethodGet, "/api/deliveries/stats", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "INTERNAL_ERROR", decodeAPIError(t, rec).Code)
	})
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"upload in flight", NewUploadInFlightError(upload.ErrUploadInFlight), http.StatusConflict, "UPLOAD_IN_FLIGHT"},
		{"chat busy", NewChatBusyError(errors.New("busy")), http.StatusConflict, "CHAT_BUSY"},
		{"rate limited", NewRateLimitedError(), http.StatusTooManyRequests, "RATE_LIMITED"},
		{"echo error", echo.NewHTTPError(http.StatusRequestEntityTooLarge, "too big"), http.StatusRequestEntityTooLarge, "HTTP_ERROR"},
		{"plain error", errors.New("oops"), http.StatusInternalServerError, "UNKNOWN_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			ErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeAPIError(t, rec).Code)
		})
	}
}

func TestSetupMiddleware_RateLimiterDenies(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Server.RateLimitPerSecond = 1
	cfg.Advanced.EnableRequestLogging = false

	e := echo.New()
	SetupMiddleware(e, cfg)
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/api/ping", ok)
	e.GET("/page", ok)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	require.Equal(t, http.StatusOK, get("/api/ping").Code)
	rec := get("/api/ping")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMITED", decodeAPIError(t, rec).Code)

	assert.Equal(t, http.StatusOK, get("/page").Code, "only /api/ is limited")
}
