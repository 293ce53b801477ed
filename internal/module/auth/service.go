package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/luofanlf/hdbPilot-admin/internal/domain"
)

// Backend is the part of the backend API that signs users in and up.
type Backend interface {
	Login(ctx context.Context, loginPath, username, password string) ([]*http.Cookie, error)
	Register(ctx context.Context, username, password, confirmPassword string) error
}

// Service defines the sign-in and sign-up flows.
type Service interface {
	Login(ctx context.Context, username, password string) ([]*http.Cookie, error)
	Register(ctx context.Context, username, password, confirmPassword string) error
}

type authService struct {
	backend   Backend
	loginPath string
}

// NewService creates a Service that signs in against loginPath. An empty
// loginPath uses the backend's default admin endpoint.
func NewService(b Backend, loginPath string) Service {
	return &authService{backend: b, loginPath: loginPath}
}

// Login returns the backend session cookies for the credentials.
func (s *authService) Login(ctx context.Context, username, password string) ([]*http.Cookie, error) {
	username = strings.TrimSpace(username)
	cookies, err := s.backend.Login(ctx, s.loginPath, username, password)
	if err != nil {
		slog.InfoContext(ctx, "sign-in refused", "username", username, "error", err)
		return nil, err
	}
	if len(cookies) == 0 {
		return nil, domain.NewApplicationError("The server did not start a session. Please try again.")
	}
	slog.InfoContext(ctx, "signed in", "username", username)
	return cookies, nil
}

// Register creates an account. Mismatched passwords never reach the
// backend.
func (s *authService) Register(ctx context.Context, username, password, confirmPassword string) error {
	if password != confirmPassword {
		return domain.NewValidationError("Passwords do not match")
	}
	username = strings.TrimSpace(username)
	if err := s.backend.Register(ctx, username, password, confirmPassword); err != nil {
		return err
	}
	slog.InfoContext(ctx, "account registered", "username", username)
	return nil
}
