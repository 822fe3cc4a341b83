package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// envelope is the response shape shared by every endpoint. Error carries
// internal detail and is populated only in development mode.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func (h *Handler) writeFailure(w http.ResponseWriter, status int, message string, err error) {
	response := envelope{Success: false, Message: message}
	if err != nil && h.DevMode {
		response.Error = err.Error()
	}
	writeJSON(w, status, response)
}

// WriteFailure writes a failure envelope without internal detail. Middleware
// outside this package uses it to keep rejection responses uniform.
func WriteFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func decodeJSON(r *http.Request, dest interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}
