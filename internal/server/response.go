package server

import (
	"encoding/json"
	"net/http"

	"github.com/pixelforge-ai/pixelforge/internal/apperr"
)

// ErrorResponse is the API error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps an error through the taxonomy and writes the envelope.
func writeError(w http.ResponseWriter, err error) {
	writeErrorCode(w, apperr.Status(err), apperr.Code(err), err.Error())
}

// writeErrorCode writes an error envelope with an explicit status and code.
func writeErrorCode(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}
