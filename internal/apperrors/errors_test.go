package apperrors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteHTTP_HidesInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()
	cause := errors.New("pq: connection refused")

	Internal("failed to load broker").WithInternal(cause).WriteHTTP(rec)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, CodeInternal, body.Error.Code)
	assert.Equal(t, "failed to load broker", body.Error.Message)
}

func TestStatuses(t *testing.T) {
	cases := map[int]*AppError{
		http.StatusBadRequest:          BadRequest("x"),
		http.StatusUnprocessableEntity: ValidationError("x"),
		http.StatusUnauthorized:        Unauthorized("x"),
		http.StatusForbidden:           Forbidden("x"),
		http.StatusNotFound:            NotFound("broker"),
		http.StatusConflict:            Conflict("x"),
	}
	for status, appErr := range cases {
		assert.Equal(t, status, appErr.Status)
	}
	assert.Equal(t, "broker not found", NotFound("broker").Message)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Internal("x").WithInternal(cause)
	assert.ErrorIs(t, err, cause)
}
