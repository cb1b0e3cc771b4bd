package capacity

import (
	"time"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/models"
)

// NormalizeViolation fills the defaults of a partially populated
// violation event. Detectors in the field send inconsistent payloads;
// the evaluator trusts the caller's ongoing flag and repairs only the
// identifying fields: a missing zone name becomes "Unknown Zone", a
// missing camera id defaults to 1, and a missing kind is taken from
// the legacy type field or reported as unknown.
func NormalizeViolation(ev dto.ViolationEvent) dto.ViolationEvent {
	if ev.ZoneName == "" {
		ev.ZoneName = "Unknown Zone"
	}
	if ev.CameraID == 0 {
		ev.CameraID = 1
	}
	if ev.Kind == "" {
		if ev.LegacyType != "" {
			ev.Kind = ev.LegacyType
		} else {
			ev.Kind = models.ViolationUnknown
		}
	}
	if ev.Timestamp == nil {
		now := time.Now()
		ev.Timestamp = &now
	}
	return ev
}

// ViolationRecord converts a normalized event into the stored record
// form. The caller decides whether the record is actually persisted.
func ViolationRecord(ev dto.ViolationEvent) models.CapacityViolation {
	return models.CapacityViolation{
		ZoneID:        ev.ZoneID,
		CameraID:      ev.CameraID,
		ZoneName:      ev.ZoneName,
		PeopleCount:   ev.PeopleCount,
		CapacityLimit: ev.CapacityLimit,
		Kind:          ev.Kind,
		StartedAt:     *ev.Timestamp,
	}
}
