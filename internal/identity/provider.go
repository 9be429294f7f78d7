// Package identity defines the contract for the identity provider behind the
// auth and profile endpoints, with an in-process implementation and a client
// for the hosted Identity Toolkit API.
package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"g4m3ify-proxy/internal/config"
)

// MinPasswordLength matches the hosted provider's password rule.
const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	ErrInvalidEmail       = errors.New("email address is malformed")
	ErrUnauthenticated    = errors.New("session is missing, invalid or expired")
)

// User is an authenticated user. Token is the opaque session handle the
// caller presents on later requests.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	Token       string `json:"-"`
}

// Provider authenticates users and manages their profile.
type Provider interface {
	SignUp(ctx context.Context, email, password string) (*User, error)
	SignIn(ctx context.Context, email, password string) (*User, error)
	Lookup(ctx context.Context, token string) (*User, error)
	UpdateProfile(ctx context.Context, token, displayName string) (*User, error)
	SignOut(ctx context.Context, token string) error
}

// New builds the provider selected in cfg. It returns nil for "none".
func New(cfg *config.Config, logger *slog.Logger) (Provider, error) {
	switch cfg.Identity.Provider {
	case "none":
		logger.Info("identity provider disabled")
		return nil, nil
	case "firebase":
		client := &http.Client{Timeout: 15 * time.Second}
		return NewFirebase(cfg.Identity.APIKey, cfg.Identity.BaseURL, client, logger), nil
	case "memory", "":
		ttl := time.Duration(cfg.Identity.SessionTTLMinutes) * time.Minute
		if cfg.Identity.SessionSecret == "" {
			logger.Warn("identity.session_secret is empty; sessions will not survive a restart")
		}
		m, err := NewMemory([]byte(cfg.Identity.SessionSecret), ttl)
		if err != nil {
			return nil, fmt.Errorf("identity: %w", err)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("identity: unknown provider %q", cfg.Identity.Provider)
	}
}
