package repository

import (
	"crowdwatch/internal/models"
)

// ZoneRepository defines the interface for zone data operations.
type ZoneRepository interface {
	// Create operations
	Insert(z *models.Zone) (int64, error)

	// Read operations
	GetByID(id int64) (*models.Zone, error)
	GetByCamera(cameraID int) ([]models.Zone, error)
	GetByCameraAndUser(cameraID int, userID int64) ([]models.Zone, error)

	// Update operations
	Update(z *models.Zone) error
	UpdateCapacityPolicy(id int64, policy models.CapacityPolicy) error

	// Delete operations
	Delete(id int64) error
}

// TelemetryRepository defines the interface for telemetry sample
// operations. The history is append-only.
type TelemetryRepository interface {
	Insert(s *models.TelemetrySample) (int64, error)
	InsertBatch(samples []models.TelemetrySample) error
	GetByCamera(filter *models.TelemetryFilter) ([]models.TelemetrySample, error)
}

// ViolationRepository defines the interface for capacity violation
// records.
type ViolationRepository interface {
	Insert(v *models.CapacityViolation) (int64, error)
	GetAll(filter *models.ViolationFilter) ([]models.CapacityViolation, error)
}

// VideoRepository defines the interface for uploaded source videos.
type VideoRepository interface {
	Insert(v *models.Video) (int64, error)
	GetByUser(userID int64) ([]models.Video, error)
	GetCurrentPath(userID int64) (string, error)
	SetCurrent(videoID, userID int64) error
	Delete(videoID, userID int64) error
}
