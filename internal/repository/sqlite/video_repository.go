package sqlite

import (
	"database/sql"
	"fmt"

	"crowdwatch/internal/models"
)

// VideoRepository implements repository.VideoRepository for SQLite.
type VideoRepository struct {
	db *DB
}

// NewVideoRepository creates a new SQLite video repository.
func NewVideoRepository(db *DB) *VideoRepository {
	return &VideoRepository{db: db}
}

// Insert adds a new video record.
func (r *VideoRepository) Insert(v *models.Video) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`
		INSERT INTO videos (user_id, filename, filepath, is_current)
		VALUES (?, ?, ?, ?)
	`, v.UserID, v.Filename, v.FilePath, boolToInt(v.Current))
	if err != nil {
		return 0, fmt.Errorf("failed to insert video: %w", err)
	}

	return result.LastInsertId()
}

// GetByUser retrieves all videos owned by a user, newest first.
func (r *VideoRepository) GetByUser(userID int64) ([]models.Video, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, user_id, filename, filepath, is_current, uploaded_at
		FROM videos WHERE user_id = ? ORDER BY uploaded_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var v models.Video
		var current int
		if err := rows.Scan(&v.ID, &v.UserID, &v.Filename, &v.FilePath, &current, &v.UploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		v.Current = current != 0
		videos = append(videos, v)
	}

	return videos, rows.Err()
}

// GetCurrentPath returns the file path of the user's current video, or
// an empty string if no video is selected.
func (r *VideoRepository) GetCurrentPath(userID int64) (string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var path string
	err := r.db.Conn().QueryRow(`
		SELECT filepath FROM videos WHERE user_id = ? AND is_current = 1 ORDER BY uploaded_at DESC LIMIT 1
	`, userID).Scan(&path)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query current video: %w", err)
	}

	return path, nil
}

// SetCurrent marks one video as the user's current source and clears
// the flag on every other video of that user. The ownership check runs
// before the mutation.
func (r *VideoRepository) SetCurrent(videoID, userID int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM videos WHERE id = ? AND user_id = ?`, videoID, userID).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check video ownership: %w", err)
	}
	if count == 0 {
		return sql.ErrNoRows
	}

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE videos SET is_current = 0 WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to clear current video: %w", err)
	}

	if _, err := tx.Exec(`UPDATE videos SET is_current = 1 WHERE id = ?`, videoID); err != nil {
		return fmt.Errorf("failed to set current video: %w", err)
	}

	return tx.Commit()
}

// Delete removes a video owned by the user.
func (r *VideoRepository) Delete(videoID, userID int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(`DELETE FROM videos WHERE id = ? AND user_id = ?`, videoID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
