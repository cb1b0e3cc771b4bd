package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                  int
	Password              string
	DBPath                string
	LogDirectory          string
	VideoDirectory        string
	PythonBin             string
	DetectorScript        string
	RemoteDeviceURL       string
	RemoteCameraID        int // camera reserved for the edge device
	TelemetryBufferLimit  int
	TelemetryFlushSeconds int
}

func Load() *Config {
	// Best effort; env vars win over .env entries.
	_ = godotenv.Load()

	return &Config{
		Port:                  getEnvAsInt("PORT", 7000),
		Password:              getEnv("PASSWORD", "changeme"),
		DBPath:                getEnv("DB_PATH", filepath.Join(".", "data", "crowdwatch.db")),
		LogDirectory:          getEnv("LOG_DIR", filepath.Join(".", "logs")),
		VideoDirectory:        getEnv("VIDEO_DIR", filepath.Join(".", "videos")),
		PythonBin:             getEnv("PYTHON_BIN", "python3"),
		DetectorScript:        getEnv("DETECTOR_SCRIPT", filepath.Join(".", "detector", "yolo_processor.py")),
		RemoteDeviceURL:       getEnv("REMOTE_DEVICE_URL", "http://192.168.137.10:5000"),
		RemoteCameraID:        getEnvAsInt("REMOTE_CAMERA_ID", 1),
		TelemetryBufferLimit:  getEnvAsInt("BUFFER_LIMIT", 50),
		TelemetryFlushSeconds: getEnvAsInt("FLUSH_INTERVAL", 10),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
