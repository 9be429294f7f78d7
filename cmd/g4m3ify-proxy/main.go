package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"g4m3ify-proxy/internal/catalog"
	"g4m3ify-proxy/internal/client"
	"g4m3ify-proxy/internal/config"
	"g4m3ify-proxy/internal/handler"
	"g4m3ify-proxy/internal/identity"
	"g4m3ify-proxy/internal/metrics"
	"g4m3ify-proxy/internal/middleware"
	"g4m3ify-proxy/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("g4m3ify-proxy"),
		kong.Description("Frame proxy and catalog API for the g4m3ify game portal."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			newMetrics,
			newEcho,
			loadCatalog,
			identity.New,
			client.NewFetcher,
			service.NewProxyService,
			handler.NewProxyHandler,
			handler.NewHealthHandler,
			handler.NewCatalogHandler,
			handler.NewAuthHandler,
		),
		fx.Invoke(registerRoutes, warnConfigPermissions, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

// newMetrics returns nil when metrics are disabled; every consumer accepts nil.
func newMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New()
}

func loadCatalog(cfg *config.Config, logger *slog.Logger) (*catalog.Catalog, error) {
	c, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	source := cfg.Catalog.Path
	if source == "" {
		source = "built-in"
	}
	logger.Info("catalog loaded", "source", source, "games", c.Len())
	return c, nil
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout stays 0: relayed game assets can stream for longer than
	// any fixed deadline. The outbound timeout bounds the upstream side.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	if m != nil {
		e.Use(middleware.MetricsMiddleware(m))
	}
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.SecurityHeaders(middleware.SkipPaths("/proxy")))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.Proxy.AllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPatch},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))

	if cfg.Server.RateLimit.Enabled {
		e.Use(middleware.RateLimit(cfg.Server.RateLimit.RequestsPerSecond, middleware.SkipPaths("/", "/healthz")))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

// routeParams lets fx fill handler.Routes; the auth handler, the provider
// and metrics may legitimately be nil.
type routeParams struct {
	fx.In

	Proxy    *handler.ProxyHandler
	Health   *handler.HealthHandler
	Catalog  *handler.CatalogHandler
	Auth     *handler.AuthHandler
	Provider identity.Provider
	Metrics  *metrics.Metrics
}

func registerRoutes(e *echo.Echo, p routeParams, cfg *config.Config, logger *slog.Logger) {
	handler.RegisterRoutes(e, handler.Routes{
		Proxy:    p.Proxy,
		Health:   p.Health,
		Catalog:  p.Catalog,
		Auth:     p.Auth,
		Provider: p.Provider,
		Metrics:  p.Metrics,
	}, cfg)
	if p.Auth == nil {
		logger.Info("auth routes disabled")
	}
	if p.Metrics != nil {
		logger.Info("metrics enabled", "path", cfg.Metrics.Path)
	}
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server",
				"addr", addr,
				"identity_provider", cfg.Identity.Provider,
				"allow_private_networks", cfg.Proxy.AllowPrivateNetworks,
			)
			go func() {
				if err := e.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
