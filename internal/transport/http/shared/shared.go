// Package shared centralizes JSON response writing so every handler produces
// the same envelopes.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "intellikyc/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope. Errors
// without a code become 500s with no detail leaked.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := string(dErrors.CodeInternal)
	message := "internal server error"

	var gw dErrors.GatewayError
	if errors.As(err, &gw) {
		status = dErrors.ToHTTPStatus(gw.Code)
		code = string(gw.Code)
		message = gw.Message
	}

	WriteJSON(w, status, map[string]string{
		"error":             code,
		"error_description": message,
	})
}
