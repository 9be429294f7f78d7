package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"g4m3ify-proxy/internal/identity"
)

// downProvider fails every call as an unreachable hosted provider would.
type downProvider struct{ identity.Provider }

func (downProvider) Lookup(context.Context, string) (*identity.User, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func newAuthEcho(p identity.Provider) *echo.Echo {
	e := echo.New()
	e.GET("/api/profile", func(c echo.Context) error {
		u, ok := UserFrom(c)
		if !ok {
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.String(http.StatusOK, u.Email)
	}, RequireUser(p))
	return e
}

func TestRequireUser(t *testing.T) {
	mem, err := identity.NewMemory([]byte("test-secret"), time.Hour)
	require.NoError(t, err)
	u, err := mem.SignUp(context.Background(), "player@example.com", "hunter22")
	require.NoError(t, err)

	e := newAuthEcho(mem)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", "Bearer " + u.Token, http.StatusOK, "player@example.com"},
		{"lower-case scheme", "bearer " + u.Token, http.StatusOK, "player@example.com"},
		{"missing header", "", http.StatusUnauthorized, "Bearer"},
		{"wrong scheme", "Basic " + u.Token, http.StatusUnauthorized, "Bearer"},
		{"empty token", "Bearer   ", http.StatusUnauthorized, "Bearer"},
		{"garbage token", "Bearer not-a-token", http.StatusUnauthorized, "invalid or expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/profile", http.NoBody)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestRequireUser_ProviderDown(t *testing.T) {
	e := newAuthEcho(downProvider{})

	req := httptest.NewRequest(http.MethodGet, "/api/profile", http.NoBody)
	req.Header.Set(echo.HeaderAuthorization, "Bearer abc")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestUserFrom_Unset(t *testing.T) {
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", http.NoBody), httptest.NewRecorder())
	_, ok := UserFrom(c)
	assert.False(t, ok)
}
