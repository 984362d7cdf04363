package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"spcpulse/internal/config"
	apperrors "spcpulse/internal/errors"
)

// AuthService authenticates the issuer role and validates bearer tokens
// for the admin API.
type AuthService interface {
	Login(ctx context.Context, username, password string) (*TokenResponse, error)
	ValidateToken(tokenString string) (*Claims, error)
}

// TokenResponse is the login result.
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Claims are the JWT claims carried by admin tokens.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

type authService struct {
	cfg    config.AuthConfig
	secret []byte
	logger *slog.Logger
	now    func() time.Time
}

// NewAuthService creates the admin auth service.
func NewAuthService(cfg config.AuthConfig, logger *slog.Logger) AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &authService{
		cfg:    cfg,
		secret: []byte(cfg.JWTSecret),
		logger: logger.With(slog.String("service", "auth")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Login verifies the admin credential and issues an HS256 bearer token.
// Username and password failures are indistinguishable to the caller.
func (s *authService) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	if username != s.cfg.AdminUsername {
		// Burn a bcrypt comparison anyway so response timing does not
		// reveal which field was wrong.
		_ = bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password))
		return nil, apperrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.AdminPasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "failed admin login attempt",
			slog.String("username", username))
		return nil, apperrors.ErrInvalidCredentials
	}

	now := s.now()
	expiresAt := now.Add(s.cfg.TokenTTL)
	claims := Claims{
		Username: username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "spcpulse-license-server",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.logger.InfoContext(ctx, "admin login", slog.String("username", username))
	return &TokenResponse{Token: token, ExpiresAt: expiresAt}, nil
}

// ValidateToken parses and verifies a bearer token.
func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.ErrInvalidToken
	}
	return claims, nil
}
