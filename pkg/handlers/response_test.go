package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/catalogai/catalog-engine/pkg/apperrors"
)

func TestWriteServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", fmt.Errorf("%w: name is required", apperrors.ErrValidation), http.StatusBadRequest, "validation_failed"},
		{"unauthorized", apperrors.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", fmt.Errorf("%w: reviewer role required", apperrors.ErrForbidden), http.StatusForbidden, "forbidden"},
		{"not found", fmt.Errorf("%w: catalog item", apperrors.ErrNotFound), http.StatusNotFound, "not_found"},
		{"conflict", fmt.Errorf("%w: already reviewed", apperrors.ErrConflict), http.StatusConflict, "conflict"},
		{"unavailable", fmt.Errorf("%w: circuit open", apperrors.ErrUnavailable), http.StatusServiceUnavailable, "service_unavailable"},
		{"unknown", errors.New("pq: connection lost"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteServiceError(rec, zap.NewNop(), tt.err)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["error"])
		})
	}
}

func TestWriteServiceError_InternalErrorsDontLeak(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteServiceError(rec, zap.NewNop(), errors.New("dial tcp 10.0.0.3:5432: connect: connection refused"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body["message"])
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	err := WriteJSON(rec, http.StatusCreated, map[string]string{"id": "abc"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"id":"abc"}`, rec.Body.String())
}
