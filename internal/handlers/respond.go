package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"crowdwatch/internal/services/detector"
	"crowdwatch/internal/services/zones"
)

// writeJSON encodes a success payload.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError maps a service error onto the HTTP taxonomy and encodes
// it as {"error": "..."}.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusForError(err), map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, detector.ErrAlreadyRunning),
		errors.Is(err, detector.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, detector.ErrNoSourceSelected),
		errors.Is(err, zones.ErrMissingDimensions):
		return http.StatusBadRequest
	case errors.Is(err, zones.ErrNotFound):
		return http.StatusNotFound
	}

	var ve *zones.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}

	var re *detector.RemoteUnavailableError
	if errors.As(err, &re) {
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}
