// Package middleware provides Echo middleware for logging, metrics,
// security headers and session checks.
package middleware

import (
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
)

// RequestLogger returns an Echo middleware that logs each request with slog.
// Client errors are logged at warn and server errors at error. Proxy
// requests also carry the target host, never the full target URL.
func RequestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	logger = logger.With("component", "http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			req := c.Request()
			res := c.Response()
			status := responseStatus(c, err)

			attrs := []any{
				"method", req.Method,
				"path", req.URL.Path,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", res.Header().Get(echo.HeaderXRequestID),
				"remote_ip", c.RealIP(),
				"bytes_out", res.Size,
			}
			if host := targetHost(c); host != "" {
				attrs = append(attrs, "target_host", host)
			}

			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}
			logger.Log(req.Context(), level, "request", attrs...)

			return err
		}
	}
}

// responseStatus resolves the status a request ended with. When a handler
// returns an *echo.HTTPError the response has not been written yet; Echo's
// central error handler does that later.
func responseStatus(c echo.Context, err error) int {
	if err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he.Code
		}
	}
	return c.Response().Status
}

// targetHost returns the host of a /proxy request's url parameter.
func targetHost(c echo.Context) string {
	if c.Request().URL.Path != "/proxy" {
		return ""
	}
	u, err := url.Parse(c.QueryParam("url"))
	if err != nil {
		return ""
	}
	return u.Hostname()
}
