package apierr

import (
	"encoding/json"
	"net/http"
)

// Envelope is the HTTP JSON response wrapper used by every Coordinator REST
// endpoint, resolving a detail spec.md left unspecified by following the
// original implementation's ApiResponse<T>
// (original_source/mothership-common/src/protocol.rs).
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// WriteJSON writes data as a successful envelope.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: true, Data: data})
}

// WriteMessage writes a successful envelope with no data, just a message.
func WriteMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: true, Message: message})
}

// WriteError writes err as a failed envelope, deriving the HTTP status and
// wire code from the apierr taxonomy when possible.
func WriteError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	env := Envelope{Success: false, Error: err.Error(), Code: WireCode(err)}
	_ = json.NewEncoder(w).Encode(env)
}
