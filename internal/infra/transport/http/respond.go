package http

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the JSON shape of error responses, matching what the browser
// client expects.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(payload)
}

// Error writes a JSON error response with a descriptive message.
func Error(w http.ResponseWriter, status int, detail string) {
	JSON(w, status, ErrorBody{Detail: detail})
}
