// Package client provides the outbound HTTP client used to fetch proxy targets.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"g4m3ify-proxy/internal/config"
	"g4m3ify-proxy/internal/metrics"
	"g4m3ify-proxy/internal/model"
)

// ErrTooManyRedirects is returned when a target redirects more than the
// configured number of times.
var ErrTooManyRedirects = errors.New("too many redirects")

// ErrFetchTimeout is returned when a fetch, redirects included, does not
// reach response headers within the configured timeout.
var ErrFetchTimeout = errors.New("fetch timed out")

// Fetcher sends requests to proxy targets.
type Fetcher struct {
	httpClient   *http.Client
	timeout      time.Duration
	maxRedirects int
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewFetcher creates a Fetcher with connection pooling, a bounded redirect
// policy and a response-header timeout. Unless the config allows private
// networks, dials to non-public addresses are refused.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewFetcher(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *Fetcher {
	timeout := time.Duration(cfg.Proxy.TimeoutSeconds) * time.Second

	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}
	dial := dialer.DialContext
	if !cfg.Proxy.AllowPrivateNetworks {
		dial = guardedDial(dialer, net.DefaultResolver)
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dial,
		MaxIdleConns:          cfg.Proxy.IdleConnections,
		MaxIdleConnsPerHost:   cfg.Proxy.IdleConnections,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
	if !cfg.Proxy.AllowPrivateNetworks {
		// An environment proxy would dial on our behalf and bypass the guard.
		transport.Proxy = nil
	}

	f := &Fetcher{
		timeout:      timeout,
		maxRedirects: cfg.Proxy.MaxRedirects,
		logger:       logger.With("component", "fetcher"),
		metrics:      m,
	}
	f.httpClient = &http.Client{
		Transport:     transport,
		CheckRedirect: f.checkRedirect,
	}
	return f
}

// checkRedirect bounds the redirect chain. Request headers are carried over
// by net/http, minus credentials on cross-host hops.
func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > f.maxRedirects {
		return fmt.Errorf("%w: stopped after %d", ErrTooManyRedirects, f.maxRedirects)
	}
	f.logger.Debug("following redirect",
		"hop", len(via),
		"host", req.URL.Host,
	)
	return nil
}

// Do executes an HTTP request against the target and returns the raw response.
// The caller is responsible for closing the response body.
func (f *Fetcher) Do(req *http.Request) (*model.ProxyResponse, error) {
	f.logger.Debug("upstream request",
		"method", req.Method,
		"host", req.URL.Host,
	)

	start := time.Now()
	resp, err := f.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via ProxyResponse
	duration := time.Since(start).Seconds()

	method := metrics.NormalizeMethod(req.Method)

	if err != nil {
		if f.metrics != nil {
			f.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		}
		return nil, fmt.Errorf("upstream request: %w", err)
	}

	if f.metrics != nil {
		status := strconv.Itoa(resp.StatusCode)
		f.metrics.UpstreamDuration.WithLabelValues(method).Observe(duration)
		f.metrics.UpstreamResponses.WithLabelValues(method, status).Inc()
	}

	return &model.ProxyResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, nil
}

// DoStream executes a body-less request and returns the response body as a stream.
// The caller is responsible for closing the returned ReadCloser.
// The provided context controls the lifetime of the upstream request:
// when the context is canceled (e.g. client disconnects), the upstream
// request is also canceled. The configured timeout bounds the whole fetch
// up to response headers, across every redirect hop; the body is not
// subject to it.
func (f *Fetcher) DoStream(ctx context.Context, method, target string, header http.Header) (*model.ProxyResponse, error) {
	ctx, cancel := context.WithCancelCause(ctx)

	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		cancel(nil)
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header = header

	var timer *time.Timer
	if f.timeout > 0 {
		timer = time.AfterFunc(f.timeout, func() { cancel(ErrFetchTimeout) })
	}
	resp, err := f.Do(req)
	if timer != nil && !timer.Stop() && errors.Is(context.Cause(ctx), ErrFetchTimeout) {
		if err == nil {
			_ = resp.Body.Close()
		}
		cancel(nil)
		return nil, fmt.Errorf("%w after %s", ErrFetchTimeout, f.timeout)
	}
	if err != nil {
		cancel(nil)
		return nil, err
	}

	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose releases the fetch context once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelCauseFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel(nil)
	return err
}
