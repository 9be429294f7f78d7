package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"g4m3ify-proxy/internal/config"
	"g4m3ify-proxy/internal/identity"
	"g4m3ify-proxy/internal/metrics"
	"g4m3ify-proxy/internal/middleware"
)

var getOrHead = []string{http.MethodGet, http.MethodHead}

// Routes groups the handlers RegisterRoutes wires. Auth and Metrics may be
// nil, in which case their routes are not registered.
type Routes struct {
	Proxy    *ProxyHandler
	Health   *HealthHandler
	Catalog  *CatalogHandler
	Auth     *AuthHandler
	Provider identity.Provider
	Metrics  *metrics.Metrics
}

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, r Routes, cfg *config.Config) {
	e.Match(getOrHead, "/", r.Health.Root)
	e.GET("/healthz", r.Health.Healthz)
	e.GET("/proxy/status", r.Health.Status)

	e.Match(getOrHead, "/proxy", r.Proxy.Handle)

	api := e.Group("/api")
	api.GET("/games", r.Catalog.List)
	api.GET("/games/:id", r.Catalog.Get)
	api.GET("/categories", r.Catalog.Categories)

	if r.Auth != nil && r.Provider != nil {
		requireUser := middleware.RequireUser(r.Provider)

		api.POST("/auth/register", r.Auth.Register)
		api.POST("/auth/login", r.Auth.Login)
		api.POST("/auth/logout", r.Auth.Logout, requireUser)
		api.GET("/profile", r.Auth.GetProfile, requireUser)
		api.PATCH("/profile", r.Auth.UpdateProfile, requireUser)
	}

	if cfg.Metrics.Enabled && r.Metrics != nil {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(r.Metrics.Registry, promhttp.HandlerOpts{
			Registry: r.Metrics.Registry,
		})))
	}
}
