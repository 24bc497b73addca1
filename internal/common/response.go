package common

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorResponse carries the same text under "error" and "message"; browser
// clients read the latter.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Details []FieldError `json:"errors,omitempty"`
}

func newErrorResponse(message string) ErrorResponse {
	return ErrorResponse{Error: message, Message: message}
}

func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, newErrorResponse(message))
}

// RespondWithAppError writes err using its mapped status and public message.
func RespondWithAppError(w http.ResponseWriter, err error) {
	resp := newErrorResponse(PublicMessage(err))
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		resp.Details = vErr.Fields
	}
	RespondWithJSON(w, HTTPStatusFromError(err), resp)
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
