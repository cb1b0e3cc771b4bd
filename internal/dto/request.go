package dto

// Snapshot request names an observer may ask for over the
// request/response channel.
const (
	SnapshotStatus    = "status_snapshot"
	SnapshotZones     = "zone_snapshot"
	SnapshotAnalytics = "analytics_snapshot"
)

// SnapshotRequest asks for a named piece of current state. Exactly one
// Response with the same correlation id is sent back to the requesting
// connection only.
type SnapshotRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	CameraID int    `json:"camera_id,omitempty"`
}

// Response answers one SnapshotRequest.
type Response struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}
