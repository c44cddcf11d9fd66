// Package shared centralizes JSON response and domain error translation for
// all HTTP handlers.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "docanchor/pkg/domain-errors"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError translates a domain error into an HTTP response. Only the
// caller-safe message is emitted; wrapped causes stay in logs.
func WriteError(w http.ResponseWriter, err error) {
	status := dErrors.ToHTTPStatus(err)
	WriteJSON(w, status, errorBody{
		Error: errorDetail{
			Code:    string(dErrors.CodeOf(err)),
			Message: dErrors.Message(err),
		},
	})
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
