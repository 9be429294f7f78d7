package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"g4m3ify-proxy/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Root answers HEAD and GET / with 200. Catalog clients probe it to decide
// whether proxied games can be shown.
func (h *HealthHandler) Root(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

type statusResponse struct {
	Status         string `json:"status"`
	Version        string `json:"version"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxRedirects   int    `json:"max_redirects"`
	Identity       string `json:"identity_provider"`
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:         "ok",
		Version:        string(h.version),
		TimeoutSeconds: h.cfg.Proxy.TimeoutSeconds,
		MaxRedirects:   h.cfg.Proxy.MaxRedirects,
		Identity:       h.cfg.Identity.Provider,
	})
}
