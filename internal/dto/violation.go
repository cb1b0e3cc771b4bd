package dto

import "time"

// ViolationEvent is an inbound capacity alert, either produced by the
// evaluator on telemetry ingest or delivered directly by a detector.
// Ongoing marks a heartbeat for a sustained violation: it is broadcast
// but never opens a new stored row. LegacyType is the pre-rename field
// some detectors still send instead of violation_type.
type ViolationEvent struct {
	ID            int64      `json:"id,omitempty"`
	ZoneID        int64      `json:"zone_id,omitempty"`
	CameraID      int        `json:"camera_id,omitempty"`
	ZoneName      string     `json:"zone_name,omitempty"`
	PeopleCount   int        `json:"people_count"`
	CapacityLimit int        `json:"capacity_limit"`
	Kind          string     `json:"violation_type,omitempty"`
	LegacyType    string     `json:"type,omitempty"`
	Ongoing       bool       `json:"ongoing,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}
