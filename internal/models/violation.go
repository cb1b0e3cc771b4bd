package models

import "time"

// Violation kinds as stored and broadcast.
const (
	ViolationWarning  = "warning"
	ViolationExceeded = "exceeded"
	ViolationUnknown  = "unknown"
)

// CapacityViolation records a detected crossing of a zone's occupancy
// threshold. Violations are only ever opened; EndedAt and
// DurationSeconds exist in the schema but no code path closes a
// violation yet.
type CapacityViolation struct {
	ID            int64      `json:"id"`
	ZoneID        int64      `json:"zone_id,omitempty"`
	CameraID      int        `json:"camera_id"`
	ZoneName      string     `json:"zone_name"`
	PeopleCount   int        `json:"people_count"`
	CapacityLimit int        `json:"capacity_limit"`
	Kind          string     `json:"violation_type"`
	StartedAt     time.Time  `json:"violation_start"`
	EndedAt       *time.Time `json:"violation_end,omitempty"`
	DurationSec   *int       `json:"duration_seconds,omitempty"`
}

// ViolationFilter contains filtering options for querying stored
// violations.
type ViolationFilter struct {
	CameraID int
	ZoneID   int64
	Kind     string
	Since    time.Time
	Limit    int
	Offset   int
}
