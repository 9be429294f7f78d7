// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
	"net/url"
)

// ProxyRequest is a validated request to relay a single target URL.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	Target *url.URL
	Header http.Header
	// Origin is the caller's Origin header, used to pick the
	// Access-Control-Allow-Origin value.
	Origin string
}

// ProxyResponse represents the upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}
