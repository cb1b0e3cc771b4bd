package zones

import (
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"crowdwatch/internal/logger"
	"crowdwatch/internal/models"
	"crowdwatch/internal/repository"
)

// Registry errors.
var (
	// ErrNotFound is returned when no zone matches the given id and owner.
	ErrNotFound = errors.New("zone not found")
	// ErrMissingDimensions is returned when a zone is created without
	// source frame dimensions; its coordinates would be unscalable.
	ErrMissingDimensions = errors.New("zone frame dimensions missing")
)

// ValidationError reports a missing or invalid zone field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid zone: %s: %s", e.Field, e.Message)
}

// Defaults applied when a zone is created without an explicit policy.
const (
	DefaultCapacityLimit = 50
	DefaultAlertColor    = "#4ecdc4"
	cacheTTL             = 30 * time.Second
)

// Registry is the catalog of monitoring zones per camera. Reads go
// through a TTL cache; every mutation invalidates the cache and fires
// the registered zones-changed callback with the camera id so syncing
// components can re-push.
type Registry struct {
	repo      repository.ZoneRepository
	cache     *gocache.Cache
	logger    *logger.Logger
	onChanged func(cameraID int)
}

// NewRegistry creates a zone registry backed by the given repository.
func NewRegistry(repo repository.ZoneRepository, logger *logger.Logger) *Registry {
	return &Registry{
		repo:   repo,
		cache:  gocache.New(cacheTTL, 2*cacheTTL),
		logger: logger,
	}
}

// OnZonesChanged registers the callback fired after every mutation.
func (r *Registry) OnZonesChanged(fn func(cameraID int)) {
	r.onChanged = fn
}

// ListZones returns all zones for a camera. Results are cached for a
// short TTL; mutations invalidate the entry.
func (r *Registry) ListZones(cameraID int) ([]models.Zone, error) {
	key := cacheKey(cameraID)
	if cached, ok := r.cache.Get(key); ok {
		return cached.([]models.Zone), nil
	}

	zones, err := r.repo.GetByCamera(cameraID)
	if err != nil {
		return nil, err
	}

	r.cache.Set(key, zones, gocache.DefaultExpiration)
	return zones, nil
}

// ListZonesForUser returns the zones of a camera owned by one user.
// User-scoped reads bypass the cache; they are rare compared to the
// evaluator's camera-wide reads.
func (r *Registry) ListZonesForUser(cameraID int, userID int64) ([]models.Zone, error) {
	return r.repo.GetByCameraAndUser(cameraID, userID)
}

// Create validates and stores a new zone, applying policy defaults:
// capacity 50, warning threshold 80% of capacity, teal alert color.
func (r *Registry) Create(z *models.Zone) (int64, error) {
	if z.Name == "" {
		return 0, &ValidationError{Field: "name", Message: "required"}
	}
	if len(z.Coordinates) < 3 {
		return 0, &ValidationError{Field: "coordinates", Message: "polygon needs at least 3 points"}
	}
	if z.CameraID <= 0 {
		return 0, &ValidationError{Field: "camera_id", Message: "required"}
	}
	if z.UserID <= 0 {
		return 0, &ValidationError{Field: "user_id", Message: "required"}
	}
	if z.FrameWidth <= 0 || z.FrameHeight <= 0 {
		return 0, ErrMissingDimensions
	}

	if z.CapacityLimit <= 0 {
		z.CapacityLimit = DefaultCapacityLimit
	}
	if z.WarningThreshold <= 0 {
		z.WarningThreshold = z.CapacityLimit * 80 / 100
	}
	if z.AlertColor == "" {
		z.AlertColor = DefaultAlertColor
	}

	id, err := r.repo.Insert(z)
	if err != nil {
		return 0, fmt.Errorf("failed to create zone: %w", err)
	}
	z.ID = id

	r.logger.Info("Zone '%s' created for camera %d (capacity=%d, warning=%d)",
		z.Name, z.CameraID, z.CapacityLimit, z.WarningThreshold)
	r.invalidate(z.CameraID)
	return id, nil
}

// Update applies a patch to a zone after verifying ownership. The
// existence check always runs before the mutation.
func (r *Registry) Update(zoneID, userID int64, patch models.ZonePatch) (*models.Zone, error) {
	z, err := r.ownedZone(zoneID, userID)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		z.Name = *patch.Name
	}
	if patch.Coordinates != nil {
		z.Coordinates = patch.Coordinates
	}
	if patch.FrameWidth != nil {
		z.FrameWidth = *patch.FrameWidth
	}
	if patch.FrameHeight != nil {
		z.FrameHeight = *patch.FrameHeight
	}
	if patch.AlertColor != nil {
		z.AlertColor = *patch.AlertColor
	}

	if err := r.repo.Update(z); err != nil {
		return nil, fmt.Errorf("failed to update zone %d: %w", zoneID, err)
	}

	z.Incomplete = z.FrameWidth <= 0 || z.FrameHeight <= 0
	r.invalidate(z.CameraID)
	return z, nil
}

// UpdateCapacityPolicy rewrites a zone's capacity policy. A warning
// threshold above the capacity limit is clamped to it.
func (r *Registry) UpdateCapacityPolicy(zoneID, userID int64, policy models.CapacityPolicy) error {
	z, err := r.ownedZone(zoneID, userID)
	if err != nil {
		return err
	}

	if policy.CapacityLimit <= 0 {
		return &ValidationError{Field: "capacity_limit", Message: "must be positive"}
	}
	if policy.WarningThreshold <= 0 {
		policy.WarningThreshold = policy.CapacityLimit * 80 / 100
	}
	if policy.WarningThreshold > policy.CapacityLimit {
		policy.WarningThreshold = policy.CapacityLimit
	}

	if err := r.repo.UpdateCapacityPolicy(zoneID, policy); err != nil {
		return fmt.Errorf("failed to update capacity policy for zone %d: %w", zoneID, err)
	}

	r.invalidate(z.CameraID)
	return nil
}

// Delete removes a zone and its violation history after verifying
// ownership.
func (r *Registry) Delete(zoneID, userID int64) error {
	z, err := r.ownedZone(zoneID, userID)
	if err != nil {
		return err
	}

	if err := r.repo.Delete(zoneID); err != nil {
		return fmt.Errorf("failed to delete zone %d: %w", zoneID, err)
	}

	r.logger.Info("Zone '%s' deleted from camera %d", z.Name, z.CameraID)
	r.invalidate(z.CameraID)
	return nil
}

// ownedZone loads a zone and verifies the caller owns it.
func (r *Registry) ownedZone(zoneID, userID int64) (*models.Zone, error) {
	z, err := r.repo.GetByID(zoneID)
	if err != nil {
		return nil, err
	}
	if z == nil || z.UserID != userID {
		return nil, ErrNotFound
	}
	return z, nil
}

func (r *Registry) invalidate(cameraID int) {
	r.cache.Delete(cacheKey(cameraID))
	if r.onChanged != nil {
		r.onChanged(cameraID)
	}
}

func cacheKey(cameraID int) string {
	return fmt.Sprintf("camera:%d", cameraID)
}
