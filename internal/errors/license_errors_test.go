package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapLicenseError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", ErrLicenseNotFound, http.StatusNotFound, "LICENSE_NOT_FOUND"},
		{"revoked", ErrLicenseRevoked, http.StatusForbidden, "LICENSE_REVOKED"},
		{"expired", ErrLicenseExpired, http.StatusForbidden, "LICENSE_EXPIRED"},
		{"fingerprint mismatch", ErrFingerprintMismatch, http.StatusConflict, "FINGERPRINT_MISMATCH"},
		{"invalid key format", ErrInvalidKeyFormat, http.StatusBadRequest, "INVALID_KEY_FORMAT"},
		{"invalid fingerprint", ErrInvalidFingerprint, http.StatusBadRequest, "INVALID_FINGERPRINT"},
		{"not activated", ErrLicenseNotActivated, http.StatusPreconditionRequired, "LICENSE_NOT_ACTIVATED"},
		{"unknown error", fmt.Errorf("disk on fire"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renderer := MapLicenseError(tt.err, "trace-123")
			pd, ok := renderer.(*ProblemDetails)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, pd.Status)
			assert.Equal(t, tt.wantCode, pd.Extensions["error_code"])
			assert.Equal(t, "trace-123", pd.Extensions["trace_id"])
		})
	}
}

func TestMapLicenseErrorWrapped(t *testing.T) {
	wrapped := fmt.Errorf("activate license: %w", ErrLicenseRevoked)
	pd, ok := MapLicenseError(wrapped, "t1").(*ProblemDetails)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, pd.Status)
	assert.Equal(t, "LICENSE_REVOKED", pd.Extensions["error_code"])
}

func TestMapLicenseErrorDistinctCodes(t *testing.T) {
	sentinels := []error{
		ErrLicenseNotFound, ErrLicenseRevoked, ErrLicenseExpired,
		ErrFingerprintMismatch, ErrInvalidKeyFormat, ErrInvalidFingerprint,
	}
	seen := make(map[string]bool)
	for _, err := range sentinels {
		pd := MapLicenseError(err, "t").(*ProblemDetails)
		code := pd.Extensions["error_code"].(string)
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
}

func TestProblemDetailsMarshalIncludesExtensions(t *testing.T) {
	pd := NewProblemDetails(http.StatusConflict, "/errors/x", "X", "detail", "/api/x").
		WithExtension("error_code", "X_CODE").
		WithExtension("retry_after", 900)

	raw, err := json.Marshal(pd)
	require.NoError(t, err)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, "X", out["title"])
	assert.Equal(t, float64(http.StatusConflict), out["status"])
	assert.Equal(t, "X_CODE", out["error_code"])
	assert.Equal(t, float64(900), out["retry_after"])
}

func TestAPIError(t *testing.T) {
	err := NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", "bad input", "field x")
	assert.Equal(t, "bad input", err.Error())
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)

	resp := NewErrorResponse(err)
	assert.False(t, resp.Success)
	assert.Equal(t, "VALIDATION_FAILED", resp.Error.ErrorCode)
}
