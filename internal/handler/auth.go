package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"g4m3ify-proxy/internal/identity"
	"g4m3ify-proxy/internal/middleware"
	"g4m3ify-proxy/internal/validation"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// loginRequest does not enforce the password length; a short password is a
// failed sign-in, not a malformed request.
type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileRequest struct {
	DisplayName string `json:"display_name" validate:"max=64"`
}

type sessionResponse struct {
	Token string         `json:"token"`
	User  *identity.User `json:"user"`
}

// AuthHandler exposes the identity provider over HTTP.
type AuthHandler struct {
	provider identity.Provider
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. It returns nil when p is nil, which
// leaves the auth routes unregistered.
func NewAuthHandler(p identity.Provider, logger *slog.Logger) *AuthHandler {
	if p == nil {
		return nil
	}
	return &AuthHandler{provider: p, logger: logger.With("component", "auth_handler")}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if msg := bindRequest(c, &req); msg != "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}

	u, err := h.provider.SignUp(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.mapError(c, "sign up", err)
	}
	return c.JSON(http.StatusCreated, sessionResponse{Token: u.Token, User: u})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if msg := bindRequest(c, &req); msg != "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}

	u, err := h.provider.SignIn(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.mapError(c, "sign in", err)
	}
	return c.JSON(http.StatusOK, sessionResponse{Token: u.Token, User: u})
}

// Logout handles POST /api/auth/logout. It must run behind middleware.RequireUser.
func (h *AuthHandler) Logout(c echo.Context) error {
	u, ok := middleware.UserFrom(c)
	if !ok {
		return h.mapError(c, "sign out", identity.ErrUnauthenticated)
	}
	if err := h.provider.SignOut(c.Request().Context(), u.Token); err != nil {
		return h.mapError(c, "sign out", err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetProfile handles GET /api/profile.
func (h *AuthHandler) GetProfile(c echo.Context) error {
	u, ok := middleware.UserFrom(c)
	if !ok {
		return h.mapError(c, "profile", identity.ErrUnauthenticated)
	}
	return c.JSON(http.StatusOK, u)
}

// UpdateProfile handles PATCH /api/profile.
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	u, ok := middleware.UserFrom(c)
	if !ok {
		return h.mapError(c, "update profile", identity.ErrUnauthenticated)
	}

	var req profileRequest
	if msg := bindRequest(c, &req); msg != "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
	}

	updated, err := h.provider.UpdateProfile(c.Request().Context(), u.Token, req.DisplayName)
	if err != nil {
		return h.mapError(c, "update profile", err)
	}
	return c.JSON(http.StatusOK, updated)
}

// bindRequest decodes and validates the JSON body into dst. It returns a
// client-facing message, or "" when dst is usable.
func bindRequest(c echo.Context, dst any) string {
	if err := c.Bind(dst); err != nil {
		return "invalid request payload"
	}
	if err := validation.Struct(dst); err != nil {
		return validation.Message(err)
	}
	return ""
}

func (h *AuthHandler) mapError(c echo.Context, op string, err error) error {
	status := http.StatusBadGateway
	msg := "identity provider unavailable"

	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, identity.ErrUnauthenticated):
		status, msg = http.StatusUnauthorized, err.Error()
	case errors.Is(err, identity.ErrEmailTaken):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, identity.ErrWeakPassword), errors.Is(err, identity.ErrInvalidEmail):
		status, msg = http.StatusBadRequest, err.Error()
	default:
		h.logger.Error("identity provider error", "op", op, "err", err)
	}

	return c.JSON(status, map[string]string{"error": msg})
}
