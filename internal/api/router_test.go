package api

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentineld/avengine/internal/auth"
	"github.com/sentineld/avengine/internal/monitor"
	"github.com/sentineld/avengine/internal/quarantine"
	"github.com/sentineld/avengine/internal/scanner"
	"github.com/sentineld/avengine/internal/scheduledscan"
	"github.com/sentineld/avengine/internal/signatures"
	"github.com/sentineld/avengine/internal/threatengine"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	sigStore := signatures.New(nil)
	qStore, err := quarantine.Open(filepath.Join(t.TempDir(), "quarantine"), nil)
	require.NoError(t, err)
	engine := threatengine.New(sigStore, qStore, nil)
	sc := scanner.New(engine, scanner.DefaultOptions(), nil)
	mon := monitor.New(engine, nil)
	sched := scheduledscan.New(sc, nil)

	t.Setenv("JWT_SECRET", "test-secret")
	authSvc := auth.New(nil, nil)

	return Router(Deps{
		Engine:     engine,
		Scanner:    sc,
		Monitor:    mon,
		Scheduler:  sched,
		AuthSvc:    authSvc,
		AuditStore: nil,
	})
}

func TestHealthRouteIsPublic(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestProtectedRouteRejectsMissingToken(t *testing.T) {
	router := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/scans/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginRouteRejectsBadCredentials(t *testing.T) {
	router := newTestRouter(t)
	body := strings.NewReader(`{"username":"nobody","password":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/login", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
