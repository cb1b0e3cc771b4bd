package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"crowdwatch/internal/logger"
	"crowdwatch/internal/middleware"
	"crowdwatch/internal/models"
	"crowdwatch/internal/services/zones"
)

// ListZonesHandler returns the caller's zones for one camera.
func ListZonesHandler(registry *zones.Registry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cameraID := atoiDefault(r.URL.Query().Get("camera_id"), 1)
		principal, _ := middleware.PrincipalFrom(r)

		zoneList, err := registry.ListZonesForUser(cameraID, principal.ID)
		if err != nil {
			logger.Error("Error querying zones for camera %d: %v", cameraID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"camera_id": cameraID,
			"zones":     zoneList,
		})
	}
}

// CreateZoneHandler stores a new zone for the caller.
func CreateZoneHandler(registry *zones.Registry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var z models.Zone
		if err := json.NewDecoder(r.Body).Decode(&z); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		principal, _ := middleware.PrincipalFrom(r)
		z.UserID = principal.ID
		if z.CameraID <= 0 {
			z.CameraID = 1
		}

		id, err := registry.Create(&z)
		if err != nil {
			logger.Warning("Zone creation rejected: %v", err)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"zone_id": id,
			"zone":    z,
		})
	}
}

// UpdateZoneHandler applies a partial update to one of the caller's
// zones.
func UpdateZoneHandler(registry *zones.Registry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut && r.Method != http.MethodPatch {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		zoneID, ok := zoneIDFromQuery(w, r)
		if !ok {
			return
		}

		var patch models.ZonePatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		principal, _ := middleware.PrincipalFrom(r)
		z, err := registry.Update(zoneID, principal.ID, patch)
		if err != nil {
			logger.Warning("Zone %d update rejected: %v", zoneID, err)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"zone":    z,
		})
	}
}

// UpdateZoneCapacityHandler rewrites one zone's capacity policy.
func UpdateZoneCapacityHandler(registry *zones.Registry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut && r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		zoneID, ok := zoneIDFromQuery(w, r)
		if !ok {
			return
		}

		var policy models.CapacityPolicy
		if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		principal, _ := middleware.PrincipalFrom(r)
		if err := registry.UpdateCapacityPolicy(zoneID, principal.ID, policy); err != nil {
			logger.Warning("Capacity update for zone %d rejected: %v", zoneID, err)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// DeleteZoneHandler removes one of the caller's zones along with its
// violation history.
func DeleteZoneHandler(registry *zones.Registry, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		zoneID, ok := zoneIDFromQuery(w, r)
		if !ok {
			return
		}

		principal, _ := middleware.PrincipalFrom(r)
		if err := registry.Delete(zoneID, principal.ID); err != nil {
			logger.Warning("Zone %d delete rejected: %v", zoneID, err)
			writeError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// zoneIDFromQuery extracts the required zone_id query parameter.
func zoneIDFromQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idString := r.URL.Query().Get("zone_id")
	if idString == "" {
		http.Error(w, "zone_id is required", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(idString, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid zone_id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// atoiDefault converts string to int or returns a default when
// conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
