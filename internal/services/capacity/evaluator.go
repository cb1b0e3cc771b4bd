package capacity

import (
	"crowdwatch/internal/dto"
	"crowdwatch/internal/models"
)

// Zone occupancy statuses.
const (
	StatusNormal   = "normal"
	StatusWarning  = "warning"
	StatusExceeded = "exceeded"
)

// Evaluator-wide utilization thresholds, in percent. These are
// deliberately independent of the per-zone warning_threshold field,
// which is carried through unchanged for display only.
const (
	warningUtilization  = 80.0
	exceededUtilization = 100.0
)

// Evaluate computes the occupancy state of one zone from its current
// count and capacity policy. Utilization is 0 when the capacity limit
// is not positive, never a division error.
func Evaluate(count int, policy models.CapacityPolicy) dto.ZoneAnalytics {
	var utilization float64
	if policy.CapacityLimit > 0 {
		utilization = float64(count) / float64(policy.CapacityLimit) * 100
	}

	status := StatusNormal
	switch {
	case utilization >= exceededUtilization:
		status = StatusExceeded
	case utilization >= warningUtilization:
		status = StatusWarning
	}

	return dto.ZoneAnalytics{
		Count:            count,
		Capacity:         policy.CapacityLimit,
		WarningThreshold: policy.WarningThreshold,
		Utilization:      utilization,
		Status:           status,
	}
}

// EvaluateZones evaluates every zone of a camera against the counts of
// one telemetry sample. Zones absent from the counts map evaluate at
// zero occupancy.
func EvaluateZones(zones []models.Zone, counts map[string]int) map[string]dto.ZoneAnalytics {
	analytics := make(map[string]dto.ZoneAnalytics, len(zones))
	for _, z := range zones {
		analytics[z.Name] = Evaluate(counts[z.Name], models.CapacityPolicy{
			CapacityLimit:    z.CapacityLimit,
			WarningThreshold: z.WarningThreshold,
		})
	}
	return analytics
}

// Summarize aggregates zone statuses into a point-in-time summary for
// one camera.
func Summarize(analytics map[string]dto.ZoneAnalytics) dto.AnalyticsSummary {
	var summary dto.AnalyticsSummary
	var totalCount, totalCapacity int

	for _, z := range analytics {
		switch z.Status {
		case StatusWarning:
			summary.ZonesAtWarning++
		case StatusExceeded:
			summary.ZonesAtCapacity++
		}
		totalCount += z.Count
		totalCapacity += z.Capacity
	}

	if totalCapacity > 0 {
		summary.OverallUtilization = float64(totalCount) / float64(totalCapacity) * 100
	}

	return summary
}

// ViolationKind maps a zone status to the violation kind it opens, or
// an empty string for normal occupancy.
func ViolationKind(status string) string {
	switch status {
	case StatusWarning:
		return models.ViolationWarning
	case StatusExceeded:
		return models.ViolationExceeded
	}
	return ""
}
