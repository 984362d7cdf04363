package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"spcpulse/internal/config"
)

func newTestApp(t *testing.T) *Application {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "licenses.db")
	cfg.License.SigningSecret = "test-signing-secret-at-least-32-chars"
	cfg.Auth.JWTSecret = "test-jwt-secret"
	cfg.Auth.AdminPasswordHash = string(hash)
	cfg.Telemetry.Enabled = false

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	app, err := NewWithConfig(cfg, logger)
	require.NoError(t, err)
	return app
}

func TestApplicationRoutes(t *testing.T) {
	app := newTestApp(t)

	// Public endpoints respond without auth.
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/version", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// Admin endpoints are closed without a token.
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/licenses", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestApplicationAdminFlow(t *testing.T) {
	app := newTestApp(t)

	// Login for a bearer token.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "secret"})
	req := httptest.NewRequest("POST", "/api/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	require.NotEmpty(t, login.Token)

	// Issue a license through the admin API.
	body, _ = json.Marshal(map[string]string{
		"type":         "standard",
		"company_name": "Acme Precision GmbH",
	})
	req = httptest.NewRequest("POST", "/api/licenses", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var issued struct {
		LicenseKey string `json:"license_key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))

	// Activate it through the public API, no token needed.
	body, _ = json.Marshal(map[string]string{
		"license_key": issued.LicenseKey,
		"fingerprint": "0123456789ABCDEF0123456789ABCDEF",
	})
	req = httptest.NewRequest("POST", "/api/license/activate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestExpirySweepRunsOnStartupState(t *testing.T) {
	app := newTestApp(t)

	// No licenses yet; the sweep is a no-op and must not error.
	n, err := app.LicenseService.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
