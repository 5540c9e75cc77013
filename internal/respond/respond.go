// Package respond writes the API's JSON envelope. Every response, success or
// failure, carries {success, data?, error?} so clients never branch on shape.
package respond

import (
	"encoding/json"
	"net/http"
)

type envelope struct {
	Success         bool   `json:"success"`
	Data            any    `json:"data,omitempty"`
	Error           string `json:"error,omitempty"`
	NeedsOnboarding bool   `json:"needsOnboarding,omitempty"`
}

// JSON writes a success envelope. A nil data payload is omitted, so a bare
// acknowledgement serializes as {"success":true}.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, envelope{Success: true, Data: data})
}

// Error writes a failure envelope. msg is client-facing: callers log the
// underlying error and pass a short description here, never storage or
// provider error text.
func Error(w http.ResponseWriter, status int, msg string) {
	write(w, status, envelope{Success: false, Error: msg})
}

// NeedsOnboarding marks a valid identity that has no profile yet. Clients
// branch on the flag, not the error string.
func NeedsOnboarding(w http.ResponseWriter) {
	write(w, http.StatusNotFound, envelope{Success: false, Error: "Profile not found", NeedsOnboarding: true})
}

func write(w http.ResponseWriter, status int, e envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(e)
}
