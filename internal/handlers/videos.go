package handlers

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"crowdwatch/internal/config"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/middleware"
	"crowdwatch/internal/models"
	"crowdwatch/internal/repository"
)

const (
	// MaxVideoUploadSize caps a single upload at 500 MB.
	MaxVideoUploadSize = 500 << 20
)

// ListVideosHandler returns the caller's uploaded source videos.
func ListVideosHandler(videoRepo repository.VideoRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, _ := middleware.PrincipalFrom(r)

		videos, err := videoRepo.GetByUser(principal.ID)
		if err != nil {
			logger.Error("Error querying videos for user %d: %v", principal.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"videos": videos,
			"count":  len(videos),
		})
	}
}

// UploadVideoHandler stores an uploaded source video on disk and
// registers it. The first video a user uploads becomes current.
func UploadVideoHandler(cfg *config.Config, videoRepo repository.VideoRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, MaxVideoUploadSize)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "Upload too large or malformed", http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("video")
		if err != nil {
			http.Error(w, "Video file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		filename := sanitizeFilename(header.Filename)
		if filename == "" {
			http.Error(w, "Invalid filename", http.StatusBadRequest)
			return
		}

		if err := os.MkdirAll(cfg.VideoDirectory, 0755); err != nil {
			logger.Error("Failed to create video directory: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		destPath := filepath.Join(cfg.VideoDirectory, filename)
		dest, err := os.Create(destPath)
		if err != nil {
			logger.Error("Failed to create video file %s: %v", destPath, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		defer dest.Close()

		if _, err := io.Copy(dest, file); err != nil {
			logger.Error("Failed to write video file %s: %v", destPath, err)
			os.Remove(destPath)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		principal, _ := middleware.PrincipalFrom(r)

		existing, err := videoRepo.GetByUser(principal.ID)
		if err != nil {
			logger.Error("Error querying videos for user %d: %v", principal.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		video := &models.Video{
			UserID:     principal.ID,
			Filename:   filename,
			FilePath:   destPath,
			Current:    len(existing) == 0,
			UploadedAt: time.Now(),
		}

		id, err := videoRepo.Insert(video)
		if err != nil {
			logger.Error("Failed to register video %s: %v", filename, err)
			os.Remove(destPath)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		video.ID = id

		logger.Info("Video '%s' uploaded by user %d", filename, principal.ID)
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success": true,
			"video":   video,
		})
	}
}

// SelectVideoHandler marks one of the caller's videos as the current
// detection source.
func SelectVideoHandler(videoRepo repository.VideoRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		videoID, ok := videoIDFromQuery(w, r)
		if !ok {
			return
		}

		principal, _ := middleware.PrincipalFrom(r)
		if err := videoRepo.SetCurrent(videoID, principal.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "Video not found", http.StatusNotFound)
				return
			}
			logger.Error("Failed to select video %d: %v", videoID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// DeleteVideoHandler removes one of the caller's videos from disk and
// the catalog.
func DeleteVideoHandler(videoRepo repository.VideoRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		videoID, ok := videoIDFromQuery(w, r)
		if !ok {
			return
		}

		principal, _ := middleware.PrincipalFrom(r)

		videos, err := videoRepo.GetByUser(principal.ID)
		if err != nil {
			logger.Error("Error querying videos for user %d: %v", principal.ID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		var path string
		for _, v := range videos {
			if v.ID == videoID {
				path = v.FilePath
				break
			}
		}

		if err := videoRepo.Delete(videoID, principal.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				http.Error(w, "Video not found", http.StatusNotFound)
				return
			}
			logger.Error("Failed to delete video %d: %v", videoID, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if path != "" {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Error("Failed to delete video file %s: %v", path, err)
			}
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
	}
}

// videoIDFromQuery extracts the required video_id query parameter.
func videoIDFromQuery(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idString := r.URL.Query().Get("video_id")
	if idString == "" {
		http.Error(w, "video_id is required", http.StatusBadRequest)
		return 0, false
	}
	id, err := strconv.ParseInt(idString, 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid video_id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// sanitizeFilename strips any path components from an uploaded
// filename.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}
