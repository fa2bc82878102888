package handler

import (
	"encoding/json"
	"net/http"

	"github.com/wadjakorntonsri/atf-link-tracker/pkg/logger"
)

// Envelope is the body of every JSON response:
// {"success": true|false, "data": ...}
type Envelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

// MessageData is the failure payload.
type MessageData struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// writeJSON writes raw JSON with Content-Type.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func success(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

func fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	writeJSON(w, status, Envelope{
		Success: false,
		Data:    MessageData{Message: message, RequestID: logger.RequestID(r.Context())},
	})
}
