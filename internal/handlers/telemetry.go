package handlers

import (
	"net/http"
	"time"

	"crowdwatch/internal/logger"
	"crowdwatch/internal/models"
	"crowdwatch/internal/repository"
)

// GetTelemetryHandler returns the stored telemetry history for one
// camera, newest first.
func GetTelemetryHandler(telemetryRepo repository.TelemetryRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := &models.TelemetryFilter{
			CameraID: atoiDefault(q.Get("camera_id"), 1),
			Limit:    atoiDefault(q.Get("limit"), 100),
			Since:    parseSince(q.Get("since")),
		}

		samples, err := telemetryRepo.GetByCamera(filter)
		if err != nil {
			logger.Error("Error querying telemetry for camera %d: %v", filter.CameraID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"camera_id": filter.CameraID,
			"samples":   samples,
			"count":     len(samples),
		})
	}
}

// GetViolationsHandler returns stored capacity violations, filtered by
// the query parameters, newest first.
func GetViolationsHandler(violationRepo repository.ViolationRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		filter := &models.ViolationFilter{
			CameraID: atoiDefault(q.Get("camera_id"), 0),
			ZoneID:   int64(atoiDefault(q.Get("zone_id"), 0)),
			Kind:     q.Get("violation_type"),
			Since:    parseSince(q.Get("since")),
			Limit:    atoiDefault(q.Get("limit"), 50),
			Offset:   atoiDefault(q.Get("offset"), 0),
		}

		violations, err := violationRepo.GetAll(filter)
		if err != nil {
			logger.Error("Error querying violations: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"violations": violations,
			"count":      len(violations),
		})
	}
}

// parseSince parses an RFC 3339 timestamp or a date in the HTML input
// format "2006-01-02".
func parseSince(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", v); err == nil {
		return t
	}
	return time.Time{}
}
