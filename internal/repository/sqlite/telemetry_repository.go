package sqlite

import (
	"encoding/json"
	"fmt"

	"crowdwatch/internal/models"
)

// TelemetryRepository implements repository.TelemetryRepository for
// SQLite. Per-zone counts are stored as a JSON object keyed by zone
// name.
type TelemetryRepository struct {
	db *DB
}

// NewTelemetryRepository creates a new SQLite telemetry repository.
func NewTelemetryRepository(db *DB) *TelemetryRepository {
	return &TelemetryRepository{db: db}
}

// Insert adds one telemetry sample.
func (r *TelemetryRepository) Insert(s *models.TelemetrySample) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	counts, err := json.Marshal(s.ZoneCounts)
	if err != nil {
		return 0, fmt.Errorf("failed to encode zone counts: %w", err)
	}

	result, err := r.db.Conn().Exec(`
		INSERT INTO telemetry (camera_id, total_count, zone_counts, fps, processing_time, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, s.CameraID, s.TotalCount, string(counts), s.FPS, s.ProcessingTimeMs, s.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("failed to insert telemetry: %w", err)
	}

	return result.LastInsertId()
}

// InsertBatch adds multiple samples in a single transaction.
func (r *TelemetryRepository) InsertBatch(samples []models.TelemetrySample) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO telemetry (camera_id, total_count, zone_counts, fps, processing_time, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		counts, err := json.Marshal(s.ZoneCounts)
		if err != nil {
			return fmt.Errorf("failed to encode zone counts: %w", err)
		}
		if _, err := stmt.Exec(s.CameraID, s.TotalCount, string(counts), s.FPS, s.ProcessingTimeMs, s.Timestamp); err != nil {
			return fmt.Errorf("failed to insert telemetry: %w", err)
		}
	}

	return tx.Commit()
}

// GetByCamera retrieves stored samples for a camera, newest first.
func (r *TelemetryRepository) GetByCamera(filter *models.TelemetryFilter) ([]models.TelemetrySample, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query := `
		SELECT id, camera_id, total_count, zone_counts, fps, processing_time, timestamp
		FROM telemetry WHERE camera_id = ?
	`
	args := []interface{}{filter.CameraID}

	if !filter.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.Since)
	}

	query += " ORDER BY timestamp DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry: %w", err)
	}
	defer rows.Close()

	var samples []models.TelemetrySample
	for rows.Next() {
		var s models.TelemetrySample
		var counts string
		if err := rows.Scan(&s.ID, &s.CameraID, &s.TotalCount, &counts, &s.FPS, &s.ProcessingTimeMs, &s.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan telemetry: %w", err)
		}
		if err := json.Unmarshal([]byte(counts), &s.ZoneCounts); err != nil {
			return nil, fmt.Errorf("invalid zone counts for sample %d: %w", s.ID, err)
		}
		samples = append(samples, s)
	}

	return samples, rows.Err()
}
