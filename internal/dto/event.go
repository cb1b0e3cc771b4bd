package dto

import "encoding/json"

// Observer event names. Every message pushed to a dashboard client is
// an Event envelope carrying one of these.
const (
	EventStatusChanged   = "status_changed"
	EventOutputLine      = "output_line"
	EventLiveSample      = "live_sample"
	EventAnalyticsUpdate = "analytics_update"
	EventViolationAlert  = "violation_alert"
	EventZonesChanged    = "zones_changed"
	EventResponse        = "response"
)

// Inbound message names (from detectors and observers).
const (
	EventRequest = "request"
)

// Event is the envelope for every websocket message in both
// directions: {"event": "...", "data": {...}}.
type Event struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// RawEvent is the inbound counterpart of Event; the payload is decoded
// a second time once the event name is known.
type RawEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// OutputLine is one line of detector process output forwarded to
// observers.
type OutputLine struct {
	CameraID int    `json:"camera_id"`
	Stream   string `json:"stream"`
	Message  string `json:"message"`
}

// ZonesChanged notifies observers that the zone set of a camera was
// mutated and any cached composition should be refreshed.
type ZonesChanged struct {
	CameraID int `json:"camera_id"`
}
