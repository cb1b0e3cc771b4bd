package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"crowdwatch/internal/logger"
	"crowdwatch/internal/middleware"
	"crowdwatch/internal/services"
	"crowdwatch/internal/services/detector"
)

type startRequest struct {
	CameraID    int    `json:"camera_id"`
	Kind        string `json:"kind"`
	CameraIndex int    `json:"camera_index"`
}

type stopRequest struct {
	CameraID int `json:"camera_id"`
}

// StartDetectionHandler accepts a detection start request for one
// camera. The request is accepted as soon as the session is created;
// progress arrives over the observer channel.
func StartDetectionHandler(coordinator *services.Coordinator, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req startRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.CameraID <= 0 {
			http.Error(w, "camera_id is required", http.StatusBadRequest)
			return
		}

		principal, _ := middleware.PrincipalFrom(r)

		source := detector.SourceSpec{
			Kind:        detector.SourceKind(req.Kind),
			CameraIndex: req.CameraIndex,
			UserID:      principal.ID,
		}
		if source.Kind == "" {
			source.Kind = detector.SourceVideo
		}

		if err := coordinator.StartDetection(req.CameraID, source); err != nil {
			logger.Warning("Start detection for camera %d rejected: %v", req.CameraID, err)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"accepted":  true,
			"camera_id": req.CameraID,
		})
	}
}

// StopDetectionHandler requests a stop of one camera's session.
func StopDetectionHandler(coordinator *services.Coordinator, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req stopRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if err := coordinator.StopDetection(req.CameraID); err != nil {
			logger.Warning("Stop detection for camera %d rejected: %v", req.CameraID, err)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]interface{}{
			"accepted":  true,
			"camera_id": req.CameraID,
		})
	}
}

// GetStatusHandler reports the live status of one camera or of every
// camera with a session.
func GetStatusHandler(coordinator *services.Coordinator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if idString := r.URL.Query().Get("camera_id"); idString != "" {
			cameraID, err := strconv.Atoi(idString)
			if err != nil {
				http.Error(w, "Invalid camera_id", http.StatusBadRequest)
				return
			}

			st, ok := coordinator.GetStatus(cameraID)
			if !ok {
				writeJSON(w, http.StatusOK, map[string]interface{}{
					"camera_id": cameraID,
					"status":    "no active process",
				})
				return
			}
			writeJSON(w, http.StatusOK, st)
			return
		}

		writeJSON(w, http.StatusOK, coordinator.GetAllStatuses())
	}
}

// SyncZonesHandler pushes the remote camera's zone set to the edge
// device on demand.
func SyncZonesHandler(coordinator *services.Coordinator, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		result, err := coordinator.SyncRemoteZones()
		if err != nil {
			logger.Error("Zone sync failed: %v", err)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

// RemoteStatusHandler reports the edge device's self-reported state.
func RemoteStatusHandler(proxy *detector.RemoteProxy, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := proxy.Status()
		if err != nil {
			logger.Warning("Remote status check failed: %v", err)
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, status)
	}
}

// RemoteVideoFeedHandler pipes the edge device's MJPEG stream through
// to the dashboard.
func RemoteVideoFeedHandler(proxy *detector.RemoteProxy, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, contentType, err := proxy.OpenVideoFeed()
		if err != nil {
			logger.Error("Video feed unavailable: %v", err)
			writeError(w, err)
			return
		}
		defer body.Close()

		if contentType == "" {
			contentType = "multipart/x-mixed-replace; boundary=frame"
		}
		w.Header().Set("Content-Type", contentType)

		if _, err := io.Copy(w, body); err != nil {
			logger.Info("Video feed closed: %v", err)
		}
	}
}
