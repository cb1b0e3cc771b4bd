package dto

// ZoneAnalytics is the evaluated occupancy state of a single zone at
// one point in time.
type ZoneAnalytics struct {
	Count            int     `json:"count"`
	Capacity         int     `json:"capacity"`
	WarningThreshold int     `json:"warning_threshold"`
	Utilization      float64 `json:"utilization"`
	Status           string  `json:"status"`
}

// AnalyticsSummary aggregates zone statuses across one camera.
type AnalyticsSummary struct {
	ZonesAtWarning     int     `json:"zones_at_warning"`
	ZonesAtCapacity    int     `json:"zones_at_capacity"`
	OverallUtilization float64 `json:"overall_utilization"`
}

// Performance carries detector throughput figures alongside an
// analytics update.
type Performance struct {
	FPS            float64 `json:"fps"`
	ProcessingTime float64 `json:"processing_time"`
}

// AnalyticsUpdate is the derived analytics-shaped event broadcast for
// every ingested telemetry sample.
type AnalyticsUpdate struct {
	CameraID    int                      `json:"camera_id"`
	Timestamp   string                   `json:"timestamp"`
	TotalPeople int                      `json:"total_people"`
	Zones       map[string]ZoneAnalytics `json:"zones"`
	Summary     AnalyticsSummary         `json:"summary"`
	Performance Performance              `json:"performance"`
}
