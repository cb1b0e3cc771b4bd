package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"crowdwatch/internal/models"
)

// ZoneRepository implements repository.ZoneRepository for SQLite.
// Polygon coordinates are stored as a JSON array of [x, y] pairs.
type ZoneRepository struct {
	db *DB
}

// NewZoneRepository creates a new SQLite zone repository.
func NewZoneRepository(db *DB) *ZoneRepository {
	return &ZoneRepository{db: db}
}

// Insert adds a new zone record to the database.
func (r *ZoneRepository) Insert(z *models.Zone) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	coords, err := json.Marshal(z.Coordinates)
	if err != nil {
		return 0, fmt.Errorf("failed to encode coordinates: %w", err)
	}

	result, err := r.db.Conn().Exec(`
		INSERT INTO zones (camera_id, user_id, name, coordinates, capacity_limit, warning_threshold, alert_color, frame_width, frame_height)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, z.CameraID, z.UserID, z.Name, string(coords), z.CapacityLimit, z.WarningThreshold, z.AlertColor, z.FrameWidth, z.FrameHeight)
	if err != nil {
		return 0, fmt.Errorf("failed to insert zone: %w", err)
	}

	return result.LastInsertId()
}

// GetByID retrieves a single zone, or nil if it does not exist.
func (r *ZoneRepository) GetByID(id int64) (*models.Zone, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`
		SELECT id, camera_id, user_id, name, coordinates, capacity_limit, warning_threshold, alert_color, frame_width, frame_height, created_at
		FROM zones WHERE id = ?
	`, id)

	z, err := scanZone(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query zone: %w", err)
	}
	return z, nil
}

// GetByCamera retrieves all zones for a camera, newest first.
func (r *ZoneRepository) GetByCamera(cameraID int) ([]models.Zone, error) {
	return r.query(`
		SELECT id, camera_id, user_id, name, coordinates, capacity_limit, warning_threshold, alert_color, frame_width, frame_height, created_at
		FROM zones WHERE camera_id = ? ORDER BY created_at DESC
	`, cameraID)
}

// GetByCameraAndUser retrieves zones for a camera owned by one user.
func (r *ZoneRepository) GetByCameraAndUser(cameraID int, userID int64) ([]models.Zone, error) {
	return r.query(`
		SELECT id, camera_id, user_id, name, coordinates, capacity_limit, warning_threshold, alert_color, frame_width, frame_height, created_at
		FROM zones WHERE camera_id = ? AND user_id = ? ORDER BY created_at DESC
	`, cameraID, userID)
}

// Update rewrites the mutable composition fields of a zone.
func (r *ZoneRepository) Update(z *models.Zone) error {
	r.db.Lock()
	defer r.db.Unlock()

	coords, err := json.Marshal(z.Coordinates)
	if err != nil {
		return fmt.Errorf("failed to encode coordinates: %w", err)
	}

	_, err = r.db.Conn().Exec(`
		UPDATE zones SET name = ?, coordinates = ?, alert_color = ?, frame_width = ?, frame_height = ?
		WHERE id = ?
	`, z.Name, string(coords), z.AlertColor, z.FrameWidth, z.FrameHeight, z.ID)
	if err != nil {
		return fmt.Errorf("failed to update zone: %w", err)
	}
	return nil
}

// UpdateCapacityPolicy rewrites only the capacity policy of a zone.
func (r *ZoneRepository) UpdateCapacityPolicy(id int64, policy models.CapacityPolicy) error {
	r.db.Lock()
	defer r.db.Unlock()

	if policy.AlertColor != "" {
		_, err := r.db.Conn().Exec(`
			UPDATE zones SET capacity_limit = ?, warning_threshold = ?, alert_color = ? WHERE id = ?
		`, policy.CapacityLimit, policy.WarningThreshold, policy.AlertColor, id)
		if err != nil {
			return fmt.Errorf("failed to update capacity policy: %w", err)
		}
		return nil
	}

	_, err := r.db.Conn().Exec(`
		UPDATE zones SET capacity_limit = ?, warning_threshold = ? WHERE id = ?
	`, policy.CapacityLimit, policy.WarningThreshold, id)
	if err != nil {
		return fmt.Errorf("failed to update capacity policy: %w", err)
	}
	return nil
}

// Delete removes a zone and its violation history.
func (r *ZoneRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM violations WHERE zone_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete zone violations: %w", err)
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM zones WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete zone: %w", err)
	}
	return nil
}

func (r *ZoneRepository) query(q string, args ...interface{}) ([]models.Zone, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query zones: %w", err)
	}
	defer rows.Close()

	var zones []models.Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		zones = append(zones, *z)
	}

	return zones, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanZone(row rowScanner) (*models.Zone, error) {
	var z models.Zone
	var coords string
	err := row.Scan(&z.ID, &z.CameraID, &z.UserID, &z.Name, &coords, &z.CapacityLimit,
		&z.WarningThreshold, &z.AlertColor, &z.FrameWidth, &z.FrameHeight, &z.CreatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(coords), &z.Coordinates); err != nil {
		return nil, fmt.Errorf("invalid coordinates for zone %d: %w", z.ID, err)
	}

	z.Incomplete = z.FrameWidth <= 0 || z.FrameHeight <= 0
	return &z, nil
}
