package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	apperrors "spcpulse/internal/errors"
	"spcpulse/internal/services"
)

type claimsKey struct{}

// AdminAuth guards the issuer-role API. Requests must carry a bearer token
// issued by the auth service; anything else gets a uniform 401 so the
// middleware leaks nothing about why the token failed.
func AdminAuth(auth services.AuthService) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				render.Render(w, r, apperrors.NewErrorResponse(apperrors.ErrUnauthorized))
				return
			}

			claims, err := auth.ValidateToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				render.Render(w, r, apperrors.NewErrorResponse(apperrors.ErrInvalidToken))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClaimsFromContext returns the admin claims set by AdminAuth, if any.
func ClaimsFromContext(ctx context.Context) (*services.Claims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(*services.Claims)
	return claims, ok
}
