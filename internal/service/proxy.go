// Package service implements the core proxy forwarding logic.
package service

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"g4m3ify-proxy/internal/client"
	"g4m3ify-proxy/internal/config"
	"g4m3ify-proxy/internal/framing"
	"g4m3ify-proxy/internal/model"
)

// ErrInvalidTarget is returned when the target URL is missing or is not an
// absolute http(s) URL with a host.
var ErrInvalidTarget = errors.New("invalid target url")

// forwardableRequestHeaders are the only caller headers sent to the target.
// Cookies and credentials belong to the proxy origin, not the target.
var forwardableRequestHeaders = []string{
	"Accept",
	"Accept-Encoding",
	"Accept-Language",
	"Cache-Control",
	"If-None-Match",
	"If-Modified-Since",
	"Range",
	"If-Range",
	"User-Agent",
}

// ParseTarget validates a raw target URL. It never performs network I/O.
func ParseTarget(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: url parameter is required", ErrInvalidTarget)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("%w: url must be absolute", ErrInvalidTarget)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: scheme %q is not http or https", ErrInvalidTarget, u.Scheme)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%w: url has no host", ErrInvalidTarget)
	}
	if u.User != nil {
		return nil, fmt.Errorf("%w: url must not carry credentials", ErrInvalidTarget)
	}
	return u, nil
}

// ProxyService handles the forwarding logic for proxy requests.
type ProxyService struct {
	fetcher   *client.Fetcher
	policy    framing.Policy
	userAgent string
	logger    *slog.Logger
}

// NewProxyService creates a ProxyService.
func NewProxyService(f *client.Fetcher, cfg *config.Config, logger *slog.Logger) *ProxyService {
	return &ProxyService{
		fetcher:   f,
		policy:    framing.Policy{AllowedOrigins: cfg.Proxy.AllowedOrigins},
		userAgent: cfg.Proxy.UserAgent,
		logger:    logger.With("component", "proxy_service"),
	}
}

// Forward fetches the request's target and returns the response with framing
// restrictions removed. The upstream status is kept as-is, error statuses
// included. The caller is responsible for closing the response body.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	if pr.Target == nil {
		return nil, fmt.Errorf("%w: url parameter is required", ErrInvalidTarget)
	}

	header := s.filterRequestHeaders(pr.Header)

	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"host", pr.Target.Host,
	)

	resp, err := s.fetcher.DoStream(pr.Ctx, pr.Method, pr.Target.String(), header)
	if err != nil {
		return nil, fmt.Errorf("forward to target: %w", err)
	}

	resp.Header = s.policy.Transform(resp.Header, pr.Origin)
	return resp, nil
}

func (s *ProxyService) filterRequestHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, key := range forwardableRequestHeaders {
		if vals := src.Values(key); len(vals) > 0 {
			dst[http.CanonicalHeaderKey(key)] = vals
		}
	}
	if dst.Get("User-Agent") == "" && s.userAgent != "" {
		dst.Set("User-Agent", s.userAgent)
	}
	return dst
}
