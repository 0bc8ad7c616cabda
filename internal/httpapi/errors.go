package httpapi

import (
	"encoding/json"
	"net/http"

	"vramd/internal/service"
	"vramd/pkg/types"
)

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg, Code: status})
}

// writeError maps service errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case service.IsRequestNotFound(err):
		writeJSONError(w, http.StatusNotFound, err.Error())
	case service.IsInvalidRequest(err):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case service.IsInsufficientVRAM(err):
		IncrementContention("insufficient_vram")
		writeJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}
