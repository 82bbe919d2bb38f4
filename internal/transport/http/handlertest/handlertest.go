// Package handlertest drives echo handlers in tests through a session-injecting route group.
package handlertest

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/cannadmin/internal/tenant"
)

// Envelope mirrors the response.Builder payload.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    map[string]any  `json:"meta"`
	Error   struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"error"`
}

// Serve registers routes on a group that attaches sess (when non-nil) and performs one request.
func Serve(t *testing.T, register func(*echo.Group), sess *tenant.Session, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	e := echo.New()
	g := e.Group("", func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if sess != nil {
				tenant.WithSession(c, *sess)
			}
			return next(c)
		}
	})
	register(g)

	var reader *bytes.Reader
	switch v := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(v))
	default:
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// Decode parses the envelope and, when dst is non-nil, its data payload.
func Decode(t *testing.T, rec *httptest.ResponseRecorder, dst any) Envelope {
	t.Helper()

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if dst != nil && len(env.Data) > 0 {
		require.NoError(t, json.Unmarshal(env.Data, dst))
	}
	return env
}
