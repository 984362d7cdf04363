package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apperrors "spcpulse/internal/errors"
	"spcpulse/internal/exporter"
	"spcpulse/internal/license"
	"spcpulse/internal/middleware"
	"spcpulse/internal/services"
	"spcpulse/internal/store"
)

// AdminHandler serves the issuer-role API. Every route here sits behind
// the AdminAuth middleware.
type AdminHandler struct {
	service   services.LicenseService
	validator *middleware.RequestValidator
	logger    *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(service services.LicenseService, validator *middleware.RequestValidator, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		service:   service,
		validator: validator,
		logger:    logger.With(slog.String("handler", "admin")),
	}
}

// IssueRequest is the POST /api/licenses payload.
type IssueRequest struct {
	Type         string     `json:"type" validate:"required,oneof=trial standard professional enterprise"`
	CompanyName  string     `json:"company_name" validate:"required,min=2,max=200"`
	ContactEmail string     `json:"contact_email" validate:"omitempty,email"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// OfflineFileRequest is the POST /api/licenses/{key}/offline payload.
type OfflineFileRequest struct {
	Fingerprint string `json:"fingerprint" validate:"required,fingerprint"`
}

// ListResponse wraps a license listing.
type ListResponse struct {
	Licenses []services.LicenseView `json:"licenses"`
	Count    int                    `json:"count"`
}

// AuditResponse wraps an audit trail listing.
type AuditResponse struct {
	LicenseKey string             `json:"license_key"`
	Entries    []store.AuditEntry `json:"entries"`
	Count      int                `json:"count"`
}

// Routes returns a chi router for the admin endpoints.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Issue)
	r.Get("/", h.List)
	r.Get("/statistics", h.Statistics)
	r.Get("/export", h.Export)
	r.Post("/{key}/revoke", h.Revoke)
	r.Post("/{key}/transfer", h.Transfer)
	r.Post("/{key}/offline", h.GenerateOffline)
	r.Get("/{key}/audit", h.Audit)

	return r
}

// Issue handles POST /api/licenses
func (h *AdminHandler) Issue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req IssueRequest
	if err := render.Decode(r, &req); err != nil {
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.InvalidRequestWithError(err)))
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		renderError(w, r, h.logger, err)
		return
	}

	view, err := h.service.Issue(ctx, services.IssueRequest{
		Type:         license.Type(req.Type),
		CompanyName:  req.CompanyName,
		ContactEmail: req.ContactEmail,
		ExpiresAt:    req.ExpiresAt,
	})
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, view)
}

// List handles GET /api/licenses with optional type, status, limit and
// offset query parameters.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	f, err := parseListFilter(r)
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}

	views, err := h.service.List(ctx, f)
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, ListResponse{Licenses: views, Count: len(views)})
}

// Statistics handles GET /api/licenses/statistics
func (h *AdminHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Statistics(r.Context())
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, stats)
}

// Export handles GET /api/licenses/export: the full license register as
// an xlsx workbook.
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	views, err := h.service.List(ctx, store.Filter{})
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}

	book, err := exporter.LicenseRegister(views)
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	defer book.Close()

	filename := fmt.Sprintf("licenses-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := book.Write(w); err != nil {
		h.logger.ErrorContext(ctx, "failed to stream license export",
			slog.String("error", err.Error()))
	}
}

// Revoke handles POST /api/licenses/{key}/revoke
func (h *AdminHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	if err := h.service.Revoke(ctx, key); err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"success":     true,
		"license_key": key,
		"status":      license.StatusRevoked,
	})
}

// Transfer handles POST /api/licenses/{key}/transfer. It releases the
// hardware binding; the next activation on any device rebinds the key.
func (h *AdminHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	if err := h.service.Transfer(ctx, key); err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, map[string]any{
		"success":     true,
		"license_key": key,
		"message":     "Hardware binding released. The license can be activated on a new device.",
	})
}

// GenerateOffline handles POST /api/licenses/{key}/offline. The response
// body is the offline file itself, served as a download.
func (h *AdminHandler) GenerateOffline(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	var req OfflineFileRequest
	if err := render.Decode(r, &req); err != nil {
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.InvalidRequestWithError(err)))
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		renderError(w, r, h.logger, err)
		return
	}

	file, err := h.service.GenerateOfflineFile(ctx, key, req.Fingerprint)
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	w.Write([]byte(file.Content))
}

// Audit handles GET /api/licenses/{key}/audit
func (h *AdminHandler) Audit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			render.Render(w, r, apperrors.NewErrorResponse(
				apperrors.ErrValidation("limit", "limit must be a positive integer")))
			return
		}
		limit = n
	}

	entries, err := h.service.Audit(ctx, key, limit)
	if err != nil {
		renderError(w, r, h.logger, err)
		return
	}
	render.JSON(w, r, AuditResponse{LicenseKey: key, Entries: entries, Count: len(entries)})
}

// parseListFilter validates the listing query parameters.
func parseListFilter(r *http.Request) (store.Filter, error) {
	var f store.Filter
	q := r.URL.Query()

	if raw := q.Get("type"); raw != "" {
		t := license.Type(raw)
		if !t.Valid() {
			return f, fmt.Errorf("%w: unknown license type %q", apperrors.ErrInvalidParameter, raw)
		}
		f.Type = t
	}
	if raw := q.Get("status"); raw != "" {
		s := license.Status(raw)
		if !s.Stored() {
			return f, fmt.Errorf("%w: cannot filter by status %q", apperrors.ErrInvalidParameter, raw)
		}
		f.Status = s
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return f, fmt.Errorf("%w: limit must be a positive integer", apperrors.ErrInvalidParameter)
		}
		f.Limit = n
	}
	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, fmt.Errorf("%w: offset must not be negative", apperrors.ErrInvalidParameter)
		}
		f.Offset = n
	}
	return f, nil
}
