package errors

import (
	"encoding/json"
	"net/http"
)

// APIError is the wire envelope for every non-2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e APIError) Error() string {
	return e.Code + ": " + e.Message
}

// Write serializes payload as JSON with the given status. Encoding failures
// are ignored because the status line is already on the wire.
func Write(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
