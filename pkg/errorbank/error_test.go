package errorbank

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestStatusCodes(t *testing.T) {
	cases := []struct {
		err  *AppError
		http int
		grpc codes.Code
	}{
		{BadRequest("x"), http.StatusBadRequest, codes.InvalidArgument},
		{Unauthorized("x"), http.StatusUnauthorized, codes.Unauthenticated},
		{Forbidden("x"), http.StatusForbidden, codes.PermissionDenied},
		{NotFound("x"), http.StatusNotFound, codes.NotFound},
		{Conflict("x"), http.StatusConflict, codes.Aborted},
		{Unprocessable("x"), http.StatusUnprocessableEntity, codes.FailedPrecondition},
		{Unavailable("x"), http.StatusServiceUnavailable, codes.Unavailable},
		{Internal("x"), http.StatusInternalServerError, codes.Internal},
		{New("teapot", ""), http.StatusInternalServerError, codes.Internal},
	}
	for _, tc := range cases {
		t.Run(string(tc.err.Kind()), func(t *testing.T) {
			assert.Equal(t, tc.http, tc.err.StatusCode())
			assert.Equal(t, tc.grpc, tc.err.GRPCCode())
		})
	}
}

func TestFromWrapsUnknownErrors(t *testing.T) {
	cause := errors.New("boom")
	appErr := From(cause)
	require.NotNil(t, appErr)
	assert.Equal(t, KindInternal, appErr.Kind())
	assert.ErrorIs(t, appErr, cause)

	conflict := Conflict("stale", WithDetail("version", 3))
	wrapped := fmt.Errorf("update: %w", conflict)
	assert.Same(t, conflict, From(wrapped))
	assert.True(t, IsKind(wrapped, KindConflict))
	assert.False(t, IsKind(wrapped, KindNotFound))
	assert.Equal(t, 3, conflict.Details()["version"])
}

func TestRetryable(t *testing.T) {
	assert.True(t, KindConflict.Retryable())
	assert.True(t, KindUnavailable.Retryable())
	assert.False(t, KindBadRequest.Retryable())
	assert.False(t, KindInternal.Retryable())
}

func TestAsAndNil(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)

	var nilErr *AppError
	assert.Equal(t, KindInternal, nilErr.Kind())
	assert.Equal(t, http.StatusInternalServerError, nilErr.StatusCode())
	assert.Nil(t, From(nil))
}
