package framing

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFrameAncestors(t *testing.T) {
	tests := []struct {
		name   string
		policy string
		want   string
	}{
		{"only frame-ancestors", "frame-ancestors 'none'", ""},
		{"first directive", "frame-ancestors 'self'; script-src 'self'", "script-src 'self'"},
		{"middle directive", "default-src 'self'; frame-ancestors https://a.example; img-src *", "default-src 'self'; img-src *"},
		{"case insensitive", "Frame-Ancestors 'none';default-src https:", "default-src https:"},
		{"repeated", "frame-ancestors 'none'; frame-ancestors 'self'; style-src 'unsafe-inline'", "style-src 'unsafe-inline'"},
		{"no frame-ancestors", "default-src 'self'", "default-src 'self'"},
		{"trailing semicolons", "default-src 'self';; ", "default-src 'self'"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripFrameAncestors(tt.policy))
		})
	}
}

func TestTransform_RemovesFramingRestrictions(t *testing.T) {
	src := http.Header{
		"Content-Type":                 {"text/html; charset=utf-8"},
		"X-Frame-Options":              {"DENY"},
		"Content-Security-Policy":      {"frame-ancestors 'none'; script-src 'self'"},
		"Cross-Origin-Opener-Policy":   {"same-origin"},
		"Cross-Origin-Embedder-Policy": {"require-corp"},
		"Cross-Origin-Resource-Policy": {"same-origin"},
		"Set-Cookie":                   {"sid=1; HttpOnly"},
		"Strict-Transport-Security":    {"max-age=31536000"},
		"Cache-Control":                {"max-age=60"},
		"Etag":                         {`"abc"`},
	}

	dst := Policy{}.Transform(src, "")

	assert.Equal(t, "text/html; charset=utf-8", dst.Get("Content-Type"))
	assert.Equal(t, "max-age=60", dst.Get("Cache-Control"))
	assert.Equal(t, `"abc"`, dst.Get("Etag"))
	assert.Equal(t, "script-src 'self'", dst.Get("Content-Security-Policy"))
	assert.Equal(t, "*", dst.Get("Access-Control-Allow-Origin"))

	for _, h := range []string{
		"X-Frame-Options",
		"Cross-Origin-Opener-Policy",
		"Cross-Origin-Embedder-Policy",
		"Cross-Origin-Resource-Policy",
		"Set-Cookie",
		"Strict-Transport-Security",
	} {
		assert.Empty(t, dst.Values(h), "header %s should be removed", h)
	}

	// The input must be left alone.
	assert.Equal(t, "DENY", src.Get("X-Frame-Options"))
}

func TestTransform_DropsEmptyCSP(t *testing.T) {
	src := http.Header{
		"Content-Security-Policy":             {"frame-ancestors 'self'"},
		"Content-Security-Policy-Report-Only": {"frame-ancestors 'none'; report-uri /csp"},
	}

	dst := Policy{}.Transform(src, "")

	assert.Empty(t, dst.Values("Content-Security-Policy"))
	assert.Equal(t, []string{"report-uri /csp"}, dst.Values("Content-Security-Policy-Report-Only"))
}

func TestTransform_MultipleCSPValues(t *testing.T) {
	src := http.Header{
		"Content-Security-Policy": {"frame-ancestors 'none'", "default-src 'self'; frame-ancestors 'self'"},
	}

	dst := Policy{}.Transform(src, "")

	assert.Equal(t, []string{"default-src 'self'"}, dst.Values("Content-Security-Policy"))
}

func TestTransform_StripsHopByHop(t *testing.T) {
	src := http.Header{
		"Connection":        {"keep-alive, X-Session-Hint"},
		"Keep-Alive":        {"timeout=5"},
		"Transfer-Encoding": {"chunked"},
		"X-Session-Hint":    {"abc"},
		"Content-Length":    {"42"},
	}

	dst := Policy{}.Transform(src, "")

	assert.Empty(t, dst.Values("Connection"))
	assert.Empty(t, dst.Values("Keep-Alive"))
	assert.Empty(t, dst.Values("Transfer-Encoding"))
	assert.Empty(t, dst.Values("X-Session-Hint"), "headers named in Connection are hop-by-hop")
	assert.Equal(t, "42", dst.Get("Content-Length"))
}

func TestTransform_AllowOrigin(t *testing.T) {
	tests := []struct {
		name     string
		allowed  []string
		origin   string
		wantACAO string
		wantVary bool
	}{
		{"empty list allows any", nil, "https://games.example.com", "*", false},
		{"wildcard", []string{"*"}, "", "*", false},
		{"listed origin echoed", []string{"https://games.example.com"}, "https://games.example.com", "https://games.example.com", true},
		{"origin match ignores case", []string{"https://Games.example.com"}, "https://games.example.com", "https://games.example.com", true},
		{"unlisted origin", []string{"https://games.example.com"}, "https://evil.example.com", "", true},
		{"no origin header", []string{"https://games.example.com"}, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := http.Header{"Access-Control-Allow-Origin": {"https://upstream.example.com"}}
			dst := Policy{AllowedOrigins: tt.allowed}.Transform(src, tt.origin)

			assert.Equal(t, tt.wantACAO, dst.Get("Access-Control-Allow-Origin"))
			if tt.wantVary {
				assert.Contains(t, dst.Values("Vary"), "Origin")
			} else {
				assert.NotContains(t, dst.Values("Vary"), "Origin")
			}
		})
	}
}

func TestTransform_NilHeader(t *testing.T) {
	dst := Policy{}.Transform(nil, "")
	require.NotNil(t, dst)
	assert.Equal(t, "*", dst.Get("Access-Control-Allow-Origin"))
}
