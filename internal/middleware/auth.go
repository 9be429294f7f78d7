package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"g4m3ify-proxy/internal/identity"
)

// userContextKey is the echo.Context key holding the authenticated *identity.User.
const userContextKey = "identity.user"

// RequireUser resolves "Authorization: Bearer <token>" through the provider
// and stores the user on the context. Requests without a valid session get
// 401 before reaching the handler.
func RequireUser(p identity.Provider) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, ok := bearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok {
				return c.JSON(http.StatusUnauthorized, map[string]string{
					"error": "authorization header must be Bearer {token}",
				})
			}

			user, err := p.Lookup(c.Request().Context(), token)
			if err != nil {
				if errors.Is(err, identity.ErrUnauthenticated) {
					return c.JSON(http.StatusUnauthorized, map[string]string{
						"error": "session is invalid or expired",
					})
				}
				return c.JSON(http.StatusBadGateway, map[string]string{
					"error": "identity provider unavailable",
				})
			}

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// UserFrom returns the user stored by RequireUser.
func UserFrom(c echo.Context) (*identity.User, bool) {
	u, ok := c.Get(userContextKey).(*identity.User)
	return u, ok
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
