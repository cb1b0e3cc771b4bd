package dto

import "crowdwatch/internal/models"

// ZoneSyncEntry is one zone's polygon and capacity policy as pushed to
// the remote detector device.
type ZoneSyncEntry struct {
	Name             string         `json:"name"`
	Coordinates      []models.Point `json:"coordinates"`
	CapacityLimit    int            `json:"capacity_limit"`
	WarningThreshold int            `json:"warning_threshold"`
	AlertColor       string         `json:"alert_color"`
}

// ZoneSyncPayload is the body of POST /zones on the remote device,
// keyed by zone id.
type ZoneSyncPayload struct {
	Zones map[string]ZoneSyncEntry `json:"zones"`
}

// ZoneSyncResult reports how many zones were pushed.
type ZoneSyncResult struct {
	Synced int `json:"synced"`
}
