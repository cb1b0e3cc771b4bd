package models

import "time"

// TelemetrySample is one occupancy/performance snapshot reported by a
// detector. Samples are immutable once stored; the history is
// append-only.
type TelemetrySample struct {
	ID               int64          `json:"id,omitempty"`
	CameraID         int            `json:"camera_id"`
	TotalCount       int            `json:"total_count"`
	ZoneCounts       map[string]int `json:"zone_counts"`
	FPS              float64        `json:"fps"`
	ProcessingTimeMs float64        `json:"processing_time,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
}

// TelemetryFilter contains filtering options for querying stored
// telemetry samples.
type TelemetryFilter struct {
	CameraID int
	Since    time.Time
	Limit    int
}
