package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeUnavailable, "ledger unreachable")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "ledger unreachable: connection refused", err.Error())
	assert.Equal(t, "ledger unreachable", err.Message())
}

func TestIsMatchesThroughChain(t *testing.T) {
	inner := New(CodeNotFound, "alert not found")
	outer := fmt.Errorf("load alert: %w", inner)

	assert.True(t, Is(outer, CodeNotFound))
	assert.False(t, Is(outer, CodeConflict))
	assert.False(t, Is(errors.New("plain"), CodeNotFound))
}

func TestErrorIsComparesByValue(t *testing.T) {
	err := fmt.Errorf("validate: %w", New(CodeUnauthorized, "token has expired"))

	assert.ErrorIs(t, err, New(CodeUnauthorized, "token has expired"))
	assert.NotErrorIs(t, err, New(CodeUnauthorized, "invalid token"))
	assert.NotErrorIs(t, err, New(CodeForbidden, "token has expired"))
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	assert.Equal(t, CodeConflict, CodeOf(New(CodeConflict, "stale status")))

	wrapped := fmt.Errorf("update alert: %w", New(CodeConflict, "stale status"))
	assert.Equal(t, CodeConflict, CodeOf(wrapped))
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := map[Code]int{
		CodeInternal:     http.StatusInternalServerError,
		CodeBadRequest:   http.StatusBadRequest,
		CodeInvalidInput: http.StatusBadRequest,
		CodeNotFound:     http.StatusNotFound,
		CodeConflict:     http.StatusConflict,
		CodeUnauthorized: http.StatusUnauthorized,
		CodeForbidden:    http.StatusForbidden,
		CodeTimeout:      http.StatusGatewayTimeout,
		CodeUnavailable:  http.StatusServiceUnavailable,
	}
	for code, want := range cases {
		require.Equal(t, want, HTTPStatus(code), "code %s", code)
	}
}
