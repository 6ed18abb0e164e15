package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, BadRequest.Status())
	assert.Equal(t, http.StatusUnauthorized, Unauthorized.Status())
	assert.Equal(t, http.StatusNotFound, NotFound.Status())
	assert.Equal(t, http.StatusInternalServerError, Internal.Status())
	assert.Equal(t, http.StatusInternalServerError, Kind("mystery").Status())
}

func TestWrapPreservesCauseForUnwrapping(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := Wrap(Internal, "reload failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "reload failed")
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestWriteHTTPRendersEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, New(NotFound, "model not found"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var envelope struct {
		Error struct {
			Message string      `json:"message"`
			Type    string      `json:"type"`
			Code    interface{} `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "model not found", envelope.Error.Message)
	assert.Equal(t, "invalid_request_error", envelope.Error.Type)
	assert.Nil(t, envelope.Error.Code)
}

func TestWriteHTTPUnwrapsNestedError(t *testing.T) {
	rec := httptest.NewRecorder()
	wrapped := fmt.Errorf("handler: %w", New(Unauthorized, "unauthorized"))
	WriteHTTP(rec, wrapped)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWriteHTTPTreatsPlainErrorsAsInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteHTTP(rec, errors.New("something odd"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
