// Package probe checks whether a forwarding proxy is reachable.
package probe

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a single liveness check.
const DefaultTimeout = 5 * time.Second

// Prober sends HEAD {base}/ and treats only a 200 as online.
type Prober struct {
	base    string
	client  *http.Client
	timeout time.Duration
	group   singleflight.Group
	logger  *slog.Logger
}

// New creates a Prober for the proxy at base. A nil client uses
// http.DefaultClient; a zero timeout uses DefaultTimeout.
func New(base string, client *http.Client, timeout time.Duration, logger *slog.Logger) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Prober{
		base:    strings.TrimRight(base, "/"),
		client:  client,
		timeout: timeout,
		logger:  logger.With("component", "prober"),
	}
}

// URL returns the liveness URL that Check requests.
func (p *Prober) URL() string {
	return p.base + "/"
}

// Check reports whether the proxy answered 200. Concurrent calls share one
// request, which is not canceled when the caller that started it goes away.
func (p *Prober) Check(ctx context.Context) bool {
	v, _, _ := p.group.Do("check", func() (any, error) {
		return p.check(context.WithoutCancel(ctx)), nil
	})
	return v.(bool)
}

func (p *Prober) check(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.URL(), nil)
	if err != nil {
		p.logger.Warn("build liveness request", "err", err)
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Debug("proxy unreachable", "url", p.URL(), "err", err)
		return false
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Debug("proxy not healthy", "url", p.URL(), "status", resp.StatusCode)
		return false
	}
	return true
}
