package models

import "time"

// Video is an uploaded source file owned by a user. At most one video
// per user is marked current; the current video is what a local
// detection session processes when started in video mode.
type Video struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Filename   string    `json:"filename"`
	FilePath   string    `json:"filepath"`
	Current    bool      `json:"current"`
	UploadedAt time.Time `json:"uploaded_at"`
}
