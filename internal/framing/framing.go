// Package framing rewrites upstream response headers so a relayed page can be
// displayed inside a frame on another origin.
//
// Everything here is a pure function of its inputs; the streaming side of the
// proxy lives in the service and handler packages.
package framing

import (
	"net/http"
	"strings"
)

// hopByHopHeaders are connection-scoped and never relayed.
var hopByHopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// blockingHeaders stop a page from rendering in a cross-origin frame, or
// only make sense for the target's own origin.
var blockingHeaders = []string{
	"X-Frame-Options",
	"Cross-Origin-Opener-Policy",
	"Cross-Origin-Embedder-Policy",
	"Cross-Origin-Resource-Policy",
	"Set-Cookie",
	"Set-Cookie2",
	"Strict-Transport-Security",
	"Alt-Svc",
	// Upstream CORS answers are replaced by our own.
	"Access-Control-Allow-Origin",
	"Access-Control-Allow-Credentials",
}

var cspHeaders = []string{
	"Content-Security-Policy",
	"Content-Security-Policy-Report-Only",
}

// Policy decides the Access-Control-Allow-Origin value.
type Policy struct {
	// AllowedOrigins is either empty, contains "*", or lists exact origins.
	AllowedOrigins []string
}

// Transform returns a copy of src with framing restrictions removed and an
// Access-Control-Allow-Origin header chosen for origin. src is not modified.
func (p Policy) Transform(src http.Header, origin string) http.Header {
	dst := src.Clone()
	if dst == nil {
		dst = make(http.Header)
	}

	for _, token := range connectionTokens(src) {
		dst.Del(token)
	}
	for _, h := range hopByHopHeaders {
		dst.Del(h)
	}
	for _, h := range blockingHeaders {
		dst.Del(h)
	}

	for _, h := range cspHeaders {
		policies := dst.Values(h)
		if len(policies) == 0 {
			continue
		}
		dst.Del(h)
		for _, v := range policies {
			if cleaned := StripFrameAncestors(v); cleaned != "" {
				dst.Add(h, cleaned)
			}
		}
	}

	p.applyAllowOrigin(dst, origin)
	return dst
}

func (p Policy) applyAllowOrigin(h http.Header, origin string) {
	if p.allowsAny() {
		h.Set("Access-Control-Allow-Origin", "*")
		return
	}
	h.Add("Vary", "Origin")
	if origin != "" && p.allows(origin) {
		h.Set("Access-Control-Allow-Origin", origin)
	}
}

func (p Policy) allowsAny() bool {
	if len(p.AllowedOrigins) == 0 {
		return true
	}
	for _, o := range p.AllowedOrigins {
		if o == "*" {
			return true
		}
	}
	return false
}

func (p Policy) allows(origin string) bool {
	for _, o := range p.AllowedOrigins {
		if strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// StripFrameAncestors removes every frame-ancestors directive from a CSP
// header value and returns the remaining policy. The result is empty when
// nothing else was set.
func StripFrameAncestors(policy string) string {
	directives := strings.Split(policy, ";")
	kept := make([]string, 0, len(directives))
	for _, d := range directives {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		name, _, _ := strings.Cut(d, " ")
		if strings.EqualFold(name, "frame-ancestors") {
			continue
		}
		kept = append(kept, d)
	}
	return strings.Join(kept, "; ")
}

// connectionTokens returns the header names listed in Connection, which are
// hop-by-hop for this response only.
func connectionTokens(h http.Header) []string {
	var tokens []string
	for _, v := range h.Values("Connection") {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				tokens = append(tokens, t)
			}
		}
	}
	return tokens
}
