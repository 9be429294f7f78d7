package catalog

import (
	"context"
	"fmt"
)

// ProxyStatus is the last known liveness of the forwarding proxy.
type ProxyStatus int

const (
	// StatusUnknown means the proxy has not been probed yet.
	StatusUnknown ProxyStatus = iota
	StatusOnline
	StatusOffline
)

func (s ProxyStatus) String() string {
	switch s {
	case StatusOnline:
		return "online"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Checker reports whether the forwarding proxy is reachable.
type Checker interface {
	Check(ctx context.Context) bool
}

// Tile is an entry as the client renders it.
type Tile struct {
	Entry
	// FrameSrc is empty when the tile is degraded.
	FrameSrc string `json:"frame_src"`
	// FallbackURL is the direct target, for "open in new tab".
	FallbackURL string `json:"fallback_url"`
	Degraded    bool   `json:"degraded"`
}

// Session is one client's view of the catalog: the proxy base it frames
// through, the last probe result and the frames that failed to load.
// A Session is not safe for concurrent use.
type Session struct {
	catalog   *Catalog
	proxyBase string
	checker   Checker

	status ProxyStatus
	failed map[string]bool
}

// NewSession creates a Session. checker may be nil, in which case the proxy
// status stays unknown and no tile is degraded for it.
func NewSession(c *Catalog, proxyBase string, checker Checker) *Session {
	return &Session{
		catalog:   c,
		proxyBase: proxyBase,
		checker:   checker,
		failed:    make(map[string]bool),
	}
}

// Catalog returns the session's catalog.
func (s *Session) Catalog() *Catalog { return s.catalog }

// Status returns the result of the last Probe.
func (s *Session) Status() ProxyStatus { return s.status }

// Probe re-checks proxy liveness and records the result.
func (s *Session) Probe(ctx context.Context) ProxyStatus {
	if s.checker == nil {
		return s.status
	}
	if s.checker.Check(ctx) {
		s.status = StatusOnline
	} else {
		s.status = StatusOffline
	}
	return s.status
}

// MarkFrameFailed records that the frame for id did not load. Browsers report
// cross-origin frame failures unreliably, so this is best-effort input.
func (s *Session) MarkFrameFailed(id string) error {
	if _, err := s.catalog.Get(id); err != nil {
		return err
	}
	s.failed[id] = true
	return nil
}

// View returns the filtered entries as tiles.
func (s *Session) View(search, category string) []Tile {
	entries := s.catalog.Filter(search, category)
	tiles := make([]Tile, 0, len(entries))
	for _, e := range entries {
		tiles = append(tiles, s.tile(e))
	}
	return tiles
}

// Tile returns the tile for a single entry.
func (s *Session) Tile(id string) (Tile, error) {
	e, err := s.catalog.Get(id)
	if err != nil {
		return Tile{}, fmt.Errorf("session: %w", err)
	}
	return s.tile(e), nil
}

func (s *Session) tile(e Entry) Tile {
	t := Tile{
		Entry:       e,
		FallbackURL: e.URL,
		Degraded:    s.failed[e.ID] || (e.Proxy && s.status == StatusOffline),
	}
	if !t.Degraded {
		t.FrameSrc = FrameSource(e, s.proxyBase)
	}
	return t
}
