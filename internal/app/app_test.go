package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadflow/internal/authz"
	"leadflow/internal/config"
	"leadflow/internal/logging"
	"leadflow/internal/middleware"
	"leadflow/internal/models"
)

func call(t *testing.T, a *App, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)
	return w
}

func newApp(t *testing.T, raw string) *App {
	t.Helper()
	cfg, err := config.Parse([]byte(raw))
	require.NoError(t, err)
	a, err := New(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

func TestAppWiresSideEffects(t *testing.T) {
	mr := miniredis.RunT(t)
	a := newApp(t, fmt.Sprintf(`
storage: sql
database:
  dialect: sqlite
  url: %s
  auto_migrate: true
redis:
  addr: %s
workflow:
  use_redis_lock: true
jwt:
  secret: app-secret
automation:
  stages: [QUALIFYING]
`, filepath.Join(t.TempDir(), "leadflow.db"), mr.Addr()))

	token, err := middleware.IssueToken([]byte("app-secret"), 5, authz.RoleSales, time.Hour)
	require.NoError(t, err)

	w := call(t, a, http.MethodPost, "/workflow/leads", token, map[string]string{"title": "Initech"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var lead models.Leads
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &lead))

	w = call(t, a, http.MethodPost, fmt.Sprintf("/workflow/leads/%d/transition", lead.ID), token, map[string]string{"stage": "QUALIFYING"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	ctx := context.Background()
	require.Eventually(t, func() bool {
		n, err := a.Queue.Len(ctx)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)

	job, err := a.Queue.Dequeue(ctx)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, job.LeadID)
	assert.Equal(t, models.StageQualifying, job.Stage)

	w = call(t, a, http.MethodGet, fmt.Sprintf("/workflow/leads/%d/history", lead.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"to_stage":"QUALIFYING"`)
}

func TestAppMemoryStorage(t *testing.T) {
	a := newApp(t, "storage: memory\njwt: {secret: s}\n")

	token, err := middleware.IssueToken([]byte("s"), 1, authz.RoleAdmin, time.Hour)
	require.NoError(t, err)
	w := call(t, a, http.MethodGet, "/workflow/stages", token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = call(t, a, http.MethodGet, "/swagger/index.html", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	a := newApp(t, fmt.Sprintf("server: {port: %d}\nstorage: memory\njwt: {secret: s}\n", port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
}
