package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	echo "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/cannadmin/internal/config"
	"github.com/Additional-Code/cannadmin/internal/presentation/http/response"
)

func newTestEcho() *echo.Echo {
	var cfg config.Config
	cfg.HTTP.BodyLimit = "1K"
	return NewEcho(cfg, nil, zap.NewNop())
}

func do(e *echo.Echo, req *http.Request) (*httptest.ResponseRecorder, response.Envelope) {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env response.Envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	rec, env := do(newTestEcho(), httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "not_found", env.Error.Kind)
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestPanicIsRecovered(t *testing.T) {
	e := newTestEcho()
	e.GET("/boom", func(echo.Context) error { panic(errors.New("boom")) })

	rec, env := do(e, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "internal", env.Error.Kind)
}

func TestHealth(t *testing.T) {
	rec, _ := do(newTestEcho(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
