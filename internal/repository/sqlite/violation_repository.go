package sqlite

import (
	"fmt"

	"crowdwatch/internal/models"
)

// ViolationRepository implements repository.ViolationRepository for
// SQLite.
type ViolationRepository struct {
	db *DB
}

// NewViolationRepository creates a new SQLite violation repository.
func NewViolationRepository(db *DB) *ViolationRepository {
	return &ViolationRepository{db: db}
}

// Insert opens a new violation record and returns its generated id.
func (r *ViolationRepository) Insert(v *models.CapacityViolation) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO violations (zone_id, camera_id, zone_name, people_count, capacity_limit, violation_type, violation_start)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, v.ZoneID, v.CameraID, v.ZoneName, v.PeopleCount, v.CapacityLimit, v.Kind, v.StartedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert violation: %w", err)
	}

	return result.LastInsertId()
}

// GetAll retrieves violations matching the filter, newest first.
func (r *ViolationRepository) GetAll(filter *models.ViolationFilter) ([]models.CapacityViolation, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, zone_id, camera_id, zone_name, people_count, capacity_limit, violation_type, violation_start, violation_end, duration_seconds
		FROM violations WHERE 1=1
	`
	args := []interface{}{}

	if filter.CameraID > 0 {
		query += " AND camera_id = ?"
		args = append(args, filter.CameraID)
	}

	if filter.ZoneID > 0 {
		query += " AND zone_id = ?"
		args = append(args, filter.ZoneID)
	}

	if filter.Kind != "" {
		query += " AND violation_type = ?"
		args = append(args, filter.Kind)
	}

	if !filter.Since.IsZero() {
		query += " AND violation_start >= ?"
		args = append(args, filter.Since)
	}

	query += " ORDER BY violation_start DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var violations []models.CapacityViolation
	for rows.Next() {
		var v models.CapacityViolation
		if err := rows.Scan(&v.ID, &v.ZoneID, &v.CameraID, &v.ZoneName, &v.PeopleCount,
			&v.CapacityLimit, &v.Kind, &v.StartedAt, &v.EndedAt, &v.DurationSec); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		violations = append(violations, v)
	}

	return violations, rows.Err()
}
