package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"regexp"

	"github.com/labstack/echo/v4"

	"g4m3ify-proxy/internal/client"
	"g4m3ify-proxy/internal/metrics"
	"g4m3ify-proxy/internal/model"
	"g4m3ify-proxy/internal/service"
)

// streamBufferSize is the chunk size used when relaying upstream bodies.
const streamBufferSize = 32 * 1024

// queryPattern matches query strings of URLs embedded in error messages.
// Target URLs are caller-supplied and may carry tokens.
var queryPattern = regexp.MustCompile(`\?[^\s"]*`)

// ProxyHandler relays a target URL with framing restrictions removed.
type ProxyHandler struct {
	service *service.ProxyService
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewProxyHandler creates a ProxyHandler.
// The metrics parameter is optional; pass nil to disable relay metrics.
func NewProxyHandler(svc *service.ProxyService, m *metrics.Metrics, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		metrics: m,
		logger:  logger.With("component", "proxy_handler"),
	}
}

// Handle validates the url query parameter, fetches the target and streams
// the response back.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	// echo's QueryParam swallows decoding errors; a malformed query must be
	// rejected, not treated as empty.
	query, err := url.ParseQuery(req.URL.RawQuery)
	if err != nil {
		return h.mapError(c, errors.Join(service.ErrInvalidTarget, err))
	}
	target, err := service.ParseTarget(query.Get("url"))
	if err != nil {
		return h.mapError(c, err)
	}

	pr := &model.ProxyRequest{
		Ctx:    req.Context(),
		Method: req.Method,
		Target: target,
		Header: req.Header,
		Origin: req.Header.Get(echo.HeaderOrigin),
	}

	resp, err := h.service.Forward(pr)
	if err != nil {
		return h.mapError(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Replace rather than append: the CORS middleware may already have set
	// Access-Control-Allow-Origin, and duplicates are rejected by browsers.
	out := c.Response().Header()
	for key, vals := range resp.Header {
		out[key] = vals
	}

	c.Response().WriteHeader(resp.StatusCode)

	// Once the status is sent a mid-stream failure can only truncate the
	// body, so it is logged and the handler returns normally.
	n, err := h.stream(c.Response(), resp.Body)
	if h.metrics != nil {
		h.metrics.UpstreamBytes.Add(float64(n))
	}
	if err != nil {
		h.logger.Warn("streaming response body",
			"err", sanitizeError(err),
			"host", target.Host,
			"bytes", n,
		)
	}

	return nil
}

// stream copies body to the client, flushing after every chunk so the
// caller sees data as soon as the target sends it.
func (h *ProxyHandler) stream(w *echo.Response, body io.Reader) (int64, error) {
	buf := make([]byte, streamBufferSize)
	var written int64
	for {
		nr, rerr := body.Read(buf)
		if nr > 0 {
			nw, werr := w.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			w.Flush()
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	status, msg, reason := classifyError(err)

	if status == http.StatusBadRequest {
		h.logger.Debug("rejected proxy target", "err", sanitizeError(err))
	} else {
		h.logger.Error("proxy error",
			"err", sanitizeError(err),
			"status", status,
		)
	}
	if h.metrics != nil && reason != "" {
		h.metrics.RejectedTargets.WithLabelValues(reason).Inc()
	}

	return c.JSON(status, map[string]string{"error": msg})
}

// classifyError maps a forwarding error to a status, a client-facing message
// and a metrics reason.
func classifyError(err error) (int, string, string) {
	if errors.Is(err, service.ErrInvalidTarget) {
		return http.StatusBadRequest, "url parameter must be an absolute http or https URL", "invalid_target"
	}

	if errors.Is(err, client.ErrBlockedAddress) {
		return http.StatusForbidden, "target address is not allowed", "blocked_address"
	}

	// Before the url.Error case: CheckRedirect failures arrive wrapped in one.
	if errors.Is(err, client.ErrTooManyRedirects) {
		return http.StatusBadGateway, "target redirected too many times", "too_many_redirects"
	}

	if errors.Is(err, client.ErrFetchTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "target request timed out", "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return http.StatusGatewayTimeout, "target request timed out", "timeout"
	}

	if errors.Is(err, context.Canceled) {
		return http.StatusBadGateway, "client disconnected", ""
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return http.StatusBadGateway, "target host unreachable", "unreachable"
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return http.StatusBadGateway, "target connection failed", "unreachable"
	}

	return http.StatusBadGateway, "target request failed", "unreachable"
}

// sanitizeError redacts query strings from error messages that may contain target URLs.
func sanitizeError(err error) string {
	return queryPattern.ReplaceAllString(err.Error(), "?[REDACTED]")
}
