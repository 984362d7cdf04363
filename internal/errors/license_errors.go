package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// License domain sentinel errors. Services return these; the transport layer
// maps them to problem details via MapLicenseError. Each activation failure
// mode has its own sentinel so clients always receive a distinct,
// machine-readable code.
var (
	ErrLicenseNotFound     = errors.New("license not found")
	ErrLicenseRevoked      = errors.New("license revoked")
	ErrLicenseExpired      = errors.New("license expired")
	ErrFingerprintMismatch = errors.New("license bound to different hardware")
	ErrInvalidKeyFormat    = errors.New("invalid license key format")
	ErrInvalidFingerprint  = errors.New("invalid hardware fingerprint")
	ErrLicenseNotActivated = errors.New("license not activated")
	ErrKeySpaceExhausted   = errors.New("license key generation retries exhausted")
)

// ProblemDetails implements RFC 7807 Problem Details for HTTP APIs
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`

	// Additional fields for extensibility
	Extensions map[string]interface{} `json:"-"`
}

// Render implements the render.Renderer interface
func (pd *ProblemDetails) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, pd.Status)
	return nil
}

// MarshalJSON custom marshaler to include extensions
func (pd *ProblemDetails) MarshalJSON() ([]byte, error) {
	data := make(map[string]interface{})

	data["type"] = pd.Type
	data["title"] = pd.Title
	data["status"] = pd.Status

	if pd.Detail != "" {
		data["detail"] = pd.Detail
	}
	if pd.Instance != "" {
		data["instance"] = pd.Instance
	}

	for k, v := range pd.Extensions {
		data[k] = v
	}

	return json.Marshal(data)
}

// NewProblemDetails creates a new RFC 7807 compliant error
func NewProblemDetails(status int, problemType, title, detail, instance string) *ProblemDetails {
	return &ProblemDetails{
		Type:       problemType,
		Title:      title,
		Status:     status,
		Detail:     detail,
		Instance:   instance,
		Extensions: make(map[string]interface{}),
	}
}

// WithExtension adds an extension field to the problem details
func (pd *ProblemDetails) WithExtension(key string, value interface{}) *ProblemDetails {
	pd.Extensions[key] = value
	return pd
}

// MapLicenseError maps domain errors to HTTP problem details. Every sentinel
// gets its own type URI, status and error_code extension; unknown errors
// collapse into a generic 500 without leaking internals.
func MapLicenseError(err error, traceID string) render.Renderer {
	instance := fmt.Sprintf("/api/license#trace-%s", traceID)

	switch {
	case errors.Is(err, ErrLicenseNotFound):
		return NewProblemDetails(
			http.StatusNotFound,
			"/errors/license-not-found",
			"License Not Found",
			"No license exists for the provided key.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "LICENSE_NOT_FOUND")

	case errors.Is(err, ErrLicenseRevoked):
		return NewProblemDetails(
			http.StatusForbidden,
			"/errors/license-revoked",
			"License Revoked",
			"This license has been revoked and can no longer be used.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "LICENSE_REVOKED")

	case errors.Is(err, ErrLicenseExpired):
		return NewProblemDetails(
			http.StatusForbidden,
			"/errors/license-expired",
			"License Expired",
			"This license has expired. Please renew to continue.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "LICENSE_EXPIRED")

	case errors.Is(err, ErrFingerprintMismatch):
		return NewProblemDetails(
			http.StatusConflict,
			"/errors/fingerprint-mismatch",
			"License Bound to Different Hardware",
			"This license is already activated on another device. Contact support to transfer it.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "FINGERPRINT_MISMATCH")

	case errors.Is(err, ErrInvalidKeyFormat):
		return NewProblemDetails(
			http.StatusBadRequest,
			"/errors/invalid-license-key",
			"Invalid License Key",
			"License key must be in format: SPC-XXXX-XXXX-XXXX-XXXX",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "INVALID_KEY_FORMAT").
			WithExtension("expected_format", "SPC-XXXX-XXXX-XXXX-XXXX")

	case errors.Is(err, ErrInvalidFingerprint):
		return NewProblemDetails(
			http.StatusBadRequest,
			"/errors/invalid-fingerprint",
			"Invalid Hardware Fingerprint",
			"Hardware fingerprint must be 32 uppercase hexadecimal characters.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "INVALID_FINGERPRINT")

	case errors.Is(err, ErrLicenseNotActivated):
		return NewProblemDetails(
			http.StatusPreconditionRequired,
			"/errors/license-not-activated",
			"License Not Activated",
			"This license has not been activated yet.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "LICENSE_NOT_ACTIVATED")

	default:
		return NewProblemDetails(
			http.StatusInternalServerError,
			"/errors/internal-error",
			"Internal Server Error",
			"An unexpected error occurred while processing your request.",
			instance,
		).WithExtension("trace_id", traceID).
			WithExtension("error_code", "INTERNAL_ERROR")
	}
}
