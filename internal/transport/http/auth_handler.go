package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	apperrors "spcpulse/internal/errors"
	"spcpulse/internal/middleware"
	"spcpulse/internal/services"
)

// AuthHandler serves admin login.
type AuthHandler struct {
	service   services.AuthService
	validator *middleware.RequestValidator
	logger    *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service services.AuthService, validator *middleware.RequestValidator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: validator,
		logger:    logger.With(slog.String("handler", "auth")),
	}
}

// LoginRequest is the POST /api/auth/login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginRequest
	if err := render.Decode(r, &req); err != nil {
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.InvalidRequestWithError(err)))
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		renderError(w, r, h.logger, err)
		return
	}

	resp, err := h.service.Login(ctx, req.Username, req.Password)
	if err != nil {
		// Failed logins log at warn with the username only; the password
		// never reaches the log.
		h.logger.WarnContext(ctx, "login rejected",
			slog.String("username", req.Username),
			slog.String("remote_addr", r.RemoteAddr))
		render.Render(w, r, apperrors.NewErrorResponse(apperrors.ErrInvalidCredentials))
		return
	}

	render.JSON(w, r, resp)
}
