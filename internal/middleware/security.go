package middleware

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

// hopByHopHeaders are connection-scoped request headers dropped on arrival.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Upgrade",
}

// SecurityHeaders returns an Echo middleware that strips hop-by-hop request
// headers and marks responses as not frameable and not sniffable.
//
// Responses for which skip returns true keep only the header stripping;
// relayed pages must stay frameable and keep the content handling the
// target chose. skip may be nil.
func SecurityHeaders(skip echomw.Skipper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}

			// Set before next: streamed responses commit their headers early.
			if skip == nil || !skip(c) {
				c.Response().Header().Set(echo.HeaderXContentTypeOptions, "nosniff")
				c.Response().Header().Set(echo.HeaderXFrameOptions, "DENY")
			}

			return next(c)
		}
	}
}

// SkipPaths returns a Skipper matching requests whose path is one of paths.
func SkipPaths(paths ...string) echomw.Skipper {
	set := make(map[string]bool, len(paths))
	for _, p := range paths {
		set[p] = true
	}
	return func(c echo.Context) bool {
		return set[c.Request().URL.Path]
	}
}
