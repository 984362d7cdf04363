package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	apperrors "spcpulse/internal/errors"
	"spcpulse/internal/infrastructure"
	"spcpulse/internal/license"
	"spcpulse/internal/middleware"
	"spcpulse/internal/services"
)

// LicenseHandler serves the public license API used by SPC Pulse
// installations: activation, heartbeat, offline file validation, and
// status lookup.
type LicenseHandler struct {
	service   services.LicenseService
	validator *middleware.RequestValidator
	logger    *slog.Logger
}

// NewLicenseHandler creates a new license handler
func NewLicenseHandler(service services.LicenseService, validator *middleware.RequestValidator, logger *slog.Logger) *LicenseHandler {
	return &LicenseHandler{
		service:   service,
		validator: validator,
		logger:    logger.With(slog.String("handler", "license")),
	}
}

// ActivationRequest is the POST /api/license/activate payload.
type ActivationRequest struct {
	LicenseKey  string `json:"license_key" validate:"required,license_key"`
	Fingerprint string `json:"fingerprint" validate:"required,fingerprint"`
}

// HeartbeatRequest is the POST /api/license/heartbeat payload.
type HeartbeatRequest struct {
	LicenseKey  string `json:"license_key" validate:"required,license_key"`
	Fingerprint string `json:"fingerprint" validate:"required,fingerprint"`
}

// OfflineValidationRequest is the POST /api/license/offline/validate
// payload. Content carries the base64 offline file as produced by the
// admin export endpoint.
type OfflineValidationRequest struct {
	Content     string `json:"content" validate:"required"`
	Fingerprint string `json:"fingerprint" validate:"required,fingerprint"`
}

// ActivationResponse wraps a successful activation.
type ActivationResponse struct {
	Success     bool                 `json:"success"`
	Message     string               `json:"message"`
	License     services.LicenseView `json:"license"`
	Reactivated bool                 `json:"reactivated"`
	TraceID     string               `json:"trace_id"`
	Timestamp   time.Time            `json:"timestamp"`
}

// Routes returns a chi router for the public license endpoints.
func (h *LicenseHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Post("/activate", h.Activate)
	r.Post("/heartbeat", h.Heartbeat)
	r.Post("/offline/validate", h.ValidateOffline)
	r.Get("/{key}", h.Get)

	return r
}

// Activate handles POST /api/license/activate
func (h *LicenseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tracer := otel.Tracer(infrastructure.TracerName)

	ctx, span := tracer.Start(ctx, "license_handler.activate",
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.route", "/api/license/activate"),
		),
	)
	defer span.End()

	var req ActivationRequest
	if err := render.Decode(r, &req); err != nil {
		span.RecordError(err)
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.InvalidRequestWithError(err)))
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		span.RecordError(err)
		renderError(w, r, h.logger, err)
		return
	}

	span.SetAttributes(attribute.String("license.key_prefix", maskKey(req.LicenseKey)))

	result, err := h.service.Activate(ctx, services.ActivateRequest{
		Key:         req.LicenseKey,
		Fingerprint: req.Fingerprint,
		Meta:        requestMeta(r),
	})
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("license.result", "failure"))
		renderError(w, r, h.logger, err)
		return
	}

	span.SetAttributes(
		attribute.String("license.result", "success"),
		attribute.Bool("license.reactivated", result.Reactivated),
	)

	message := "License activated successfully."
	if result.Reactivated {
		message = "License re-activated on this device."
	}
	render.JSON(w, r, ActivationResponse{
		Success:     true,
		Message:     message,
		License:     result.License,
		Reactivated: result.Reactivated,
		TraceID:     middleware.GetRequestID(ctx),
		Timestamp:   time.Now().UTC(),
	})
}

// Heartbeat handles POST /api/license/heartbeat
func (h *LicenseHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req HeartbeatRequest
	if err := render.Decode(r, &req); err != nil {
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.InvalidRequestWithError(err)))
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		renderError(w, r, h.logger, err)
		return
	}

	result, err := h.service.Heartbeat(ctx, req.LicenseKey, req.Fingerprint, requestMeta(r))
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, result)
}

// ValidateOffline handles POST /api/license/offline/validate. An invalid
// file is a 200 with valid=false and a code; only malformed requests and
// infrastructure failures produce error statuses.
func (h *LicenseHandler) ValidateOffline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req OfflineValidationRequest
	if err := render.Decode(r, &req); err != nil {
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.InvalidRequestWithError(err)))
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		renderError(w, r, h.logger, err)
		return
	}

	result := h.service.ValidateOfflineFile(ctx, req.Content, req.Fingerprint, requestMeta(r))
	render.JSON(w, r, result)
}

// Get handles GET /api/license/{key}. The response status is always the
// computed effective status, so an expired license reads as expired even
// though the store still says active.
func (h *LicenseHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	if !license.ValidKeyFormat(key) {
		renderError(w, r, h.logger, apperrors.ErrInvalidKeyFormat)
		return
	}

	view, err := h.service.Get(ctx, key)
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, view)
}

// FingerprintHandler serves GET /api/fingerprint: the hardware
// fingerprint of the machine the server runs on, derived from locally
// collected signals. Useful for operators binding a license to the
// server host itself.
func FingerprintHandler(w http.ResponseWriter, r *http.Request) {
	signals := license.CollectSignals()
	render.JSON(w, r, map[string]string{
		"fingerprint": license.Fingerprint(signals),
	})
}

// requestMeta extracts caller attribution for the audit trail.
func requestMeta(r *http.Request) services.RequestMeta {
	return services.RequestMeta{
		IP:        r.RemoteAddr,
		UserAgent: r.UserAgent(),
	}
}

// maskKey masks a license key for spans and logs.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:8] + "****"
}

// renderError translates service errors into HTTP responses. APIError
// values render as-is; everything else goes through the license error
// mapper and comes out as an RFC 7807 problem.
func renderError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	ctx := r.Context()
	traceID := middleware.GetRequestID(ctx)

	logger.ErrorContext(ctx, "request failed",
		slog.String("error", err.Error()),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.String("trace_id", traceID))

	var apiErr *apperrors.APIError
	if errors.As(err, &apiErr) {
		render.Render(w, r, apperrors.NewErrorResponse(apiErr))
		return
	}
	render.Render(w, r, apperrors.MapLicenseError(err, traceID))
}
