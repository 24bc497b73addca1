package common

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	body := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRespondWithErrorCarriesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithError(rec, http.StatusNotFound, "Task not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	body := decodeBody(t, rec)
	assert.Equal(t, "Task not found", body["error"])
	assert.Equal(t, "Task not found", body["message"])
	assert.NotContains(t, body, "errors")
}

func TestRespondWithAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithAppError(rec, NewError(ErrConflict, "User with this email or username already exists"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "User with this email or username already exists", decodeBody(t, rec)["message"])

	rec = httptest.NewRecorder()
	RespondWithAppError(rec, &ValidationError{Fields: []FieldError{{Field: "title", Message: "is required"}}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Validation failed", body["message"])
	assert.Len(t, body["errors"], 1)

	rec = httptest.NewRecorder()
	RespondWithAppError(rec, assert.AnError)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server error", decodeBody(t, rec)["message"])
}
