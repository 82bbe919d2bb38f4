package tenant

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/cannadmin/internal/presentation/http/response"
	"github.com/Additional-Code/cannadmin/pkg/errorbank"
)

const sessionKey = "tenant.session"

// Middleware authenticates the bearer token and stores the session on the echo context.
func Middleware(tokens *TokenManager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c)
			if raw == "" {
				return response.New(c).WithError(errorbank.Unauthorized("missing bearer token")).Build()
			}
			s, err := tokens.Parse(raw)
			if err != nil {
				msg := "invalid session token"
				if errors.Is(err, ErrExpiredToken) {
					msg = "session token expired"
				}
				return response.New(c).WithError(errorbank.Unauthorized(msg, errorbank.WithCause(err))).Build()
			}
			c.Set(sessionKey, s)
			return next(c)
		}
	}
}

// FromEcho returns the session attached by Middleware.
func FromEcho(c echo.Context) (Session, error) {
	s, ok := c.Get(sessionKey).(Session)
	if !ok {
		return Session{}, ErrMissingTenant
	}
	return s, s.Validate()
}

// WithSession attaches a session to the echo context; used by tests and internal callers.
func WithSession(c echo.Context, s Session) {
	c.Set(sessionKey, s)
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	// Browsers cannot set headers on websocket upgrades.
	return c.QueryParam("access_token")
}
