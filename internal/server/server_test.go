package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"zing/internal/bootstrap"
	"zing/internal/config"
	"zing/internal/models"
	"zing/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

type testServer struct {
	srv *Server
	app *fiber.App
	rt  *bootstrap.Runtime
	tdb *testutil.TestDB
}

// newTestServer serves the full route table over an in-memory database with
// synchronous notification fan-out.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	cfg := &config.Config{
		Port:                 "0",
		JWTSecret:            testSecret,
		AllowedOrigins:       "http://localhost:5173",
		FeedPageSize:         20,
		TrendingWindowHours:  168,
		TrendingCacheSeconds: 30,
		FanoutWorkers:        1,
		LockStripes:          16,
	}
	rt := bootstrap.NewRuntime(cfg, tdb.DB, nil, bootstrap.Options{SyncFanout: true, Now: tdb.Clock.Peek})
	t.Cleanup(func() { _ = rt.Dispatcher.Close(context.Background()) })

	srv := NewServer(cfg, rt)
	return &testServer{srv: srv, app: srv.App(), rt: rt, tdb: tdb}
}

func (ts *testServer) user(t *testing.T, username string) (*models.User, string) {
	t.Helper()
	u := ts.tdb.CreateUser(t, username)
	token, err := ts.srv.auth.IssueToken(u.ID, time.Hour)
	require.NoError(t, err)
	return u, token
}

// do sends a request and decodes a JSON reply into out when out is non-nil.
func (ts *testServer) do(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out), "%s %s", method, path)
	}
	return resp.StatusCode
}

func (ts *testServer) createPost(t *testing.T, token, content string) models.Post {
	t.Helper()
	var out struct {
		Post models.Post `json:"post"`
	}
	status := ts.do(t, http.MethodPost, "/api/posts", token, fiber.Map{"content": content}, &out)
	require.Equal(t, http.StatusCreated, status)
	return out.Post
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t)

	var live map[string]any
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health/live", "", nil, &live))
	assert.Equal(t, "up", live["status"])

	var ready struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health/ready", "", nil, &ready))
	assert.Equal(t, "healthy", ready.Status)
	assert.Equal(t, "healthy", ready.Checks["database"])
	assert.Equal(t, "disabled", ready.Checks["redis"])
}

func TestServer_ReadinessFailsWithoutDatabase(t *testing.T) {
	ts := newTestServer(t)
	sqlDB, err := ts.rt.DB.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	var ready struct {
		Status string `json:"status"`
	}
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, http.MethodGet, "/health", "", nil, &ready))
	assert.Equal(t, "unhealthy", ready.Status)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/health/live", "", nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "http_requests_total")
}

func TestServer_AuthRequired(t *testing.T) {
	ts := newTestServer(t)

	var errResp ErrorResponse
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/posts/feed", "", nil, &errResp))
	assert.NotEmpty(t, errResp.Error)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/api/posts/feed", "not-a-token", nil, nil))
}

func TestServer_UnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	var errResp ErrorResponse
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/api/nowhere", "", nil, &errResp))
	assert.NotEmpty(t, errResp.Error)
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv := &Server{config: &config.Config{}}
	assert.NoError(t, srv.Shutdown(context.Background()))
}
