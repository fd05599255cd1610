package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "cortex/pkg/domain-errors"
)

func TestDomainCodeToHTTPStatus(t *testing.T) {
	tests := []struct {
		code dErrors.Code
		want int
	}{
		{dErrors.CodeValidation, http.StatusBadRequest},
		{dErrors.CodeInvalidInput, http.StatusBadRequest},
		{dErrors.CodeUnauthorized, http.StatusUnauthorized},
		{dErrors.CodeForbidden, http.StatusForbidden},
		{dErrors.CodeNotFound, http.StatusNotFound},
		{dErrors.CodeRateLimited, http.StatusTooManyRequests},
		{dErrors.CodeUpstreamConfig, http.StatusServiceUnavailable},
		{dErrors.CodeUpstreamUnavailable, http.StatusServiceUnavailable},
		{dErrors.CodeEmptyCompletion, http.StatusServiceUnavailable},
		{dErrors.CodeUpstreamTimeout, http.StatusGatewayTimeout},
		{dErrors.CodeInternal, http.StatusInternalServerError},
		{dErrors.Code("unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, DomainCodeToHTTPStatus(tt.code))
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("domain error surfaces message and status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, dErrors.New(dErrors.CodeForbidden, "Chat not found or access denied"))

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, "Chat not found or access denied", resp.Error)
	})

	t.Run("plain error maps to opaque 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("pq: connection reset"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotContains(t, resp.Error, "pq:")
	})

	t.Run("wrapped domain error keeps original code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		inner := dErrors.New(dErrors.CodeUpstreamTimeout, "AI service request timed out")
		WriteError(rec, dErrors.Wrap(inner, dErrors.CodeInternal, "AI service request timed out"))

		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid body decodes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ada"}`))

		got, ok := DecodeJSON[payload](rec, req, nil)
		require.True(t, ok)
		assert.Equal(t, "ada", got.Name)
	})

	t.Run("malformed body writes 400 envelope", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{not json`))

		got, ok := DecodeJSON[payload](rec, req, nil)
		assert.False(t, ok)
		assert.Nil(t, got)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.False(t, resp.Success)
		assert.Equal(t, "Invalid JSON in request body", resp.Error)
	})
}
