package infrastructure

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spcpulse/internal/config"
)

func TestInitializeOTel(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	cfg := config.TelemetryConfig{
		Enabled:     true,
		ServiceName: "spcpulse-test",
	}

	providers, err := InitializeOTel(cfg, logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)
	require.NotNil(t, providers.PrometheusHTTP)
	require.NotNil(t, providers.Metrics)

	// Counters must be usable immediately.
	providers.Metrics.ActivationAttempts.Add(context.Background(), 1)
	providers.Metrics.LicensesIssued.Add(context.Background(), 1)

	// Prometheus handler serves scrapes.
	rec := httptest.NewRecorder()
	providers.PrometheusHTTP.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.NotEmpty(t, rec.Body.String())
}

func TestOTelSpans(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	providers, err := InitializeOTel(config.TelemetryConfig{ServiceName: "spcpulse-test"}, logger)
	require.NoError(t, err)
	defer providers.Shutdown(context.Background())

	ctx, span := providers.Tracer.Start(context.Background(), "test-span")
	require.NotNil(t, ctx)
	span.End()
}
