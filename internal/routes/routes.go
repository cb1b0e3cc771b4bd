package routes

import (
	"net/http"
	"os"
	"path/filepath"

	"crowdwatch/internal/config"
	"crowdwatch/internal/handlers"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/middleware"
	"crowdwatch/internal/repository"
	"crowdwatch/internal/services"
	"crowdwatch/internal/services/detector"
	"crowdwatch/internal/services/zones"
)

// dynamicHTMLHandler serves /path as /static/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	if path == "/" {
		path = "/index"
	}

	filePath := filepath.Join("static", path+".html")

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		http.NotFound(w, r)
		return
	}

	http.ServeFile(w, r, filePath)
}

// SetupRoutes registers HTTP routes, static file serving, API endpoints,
// and wraps the mux with the recovery and authentication middleware.
func SetupRoutes(coordinator *services.Coordinator, registry *zones.Registry,
	proxy *detector.RemoteProxy, cfg *config.Config, logger *logger.Logger,
	telemetryRepo repository.TelemetryRepository, violationRepo repository.ViolationRepository,
	videoRepo repository.VideoRepository) http.Handler {

	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Websocket endpoints
	mux.HandleFunc("/api/view", handlers.ViewWebsocketHandler(coordinator, logger))
	mux.HandleFunc("/api/detector", handlers.DetectorWebsocketHandler(coordinator, logger))

	// Detection control
	mux.HandleFunc("/api/detection/start", handlers.StartDetectionHandler(coordinator, logger))
	mux.HandleFunc("/api/detection/stop", handlers.StopDetectionHandler(coordinator, logger))
	mux.HandleFunc("/api/detection/status", handlers.GetStatusHandler(coordinator))
	mux.HandleFunc("/api/detection/sync_zones", handlers.SyncZonesHandler(coordinator, logger))
	mux.HandleFunc("/api/detection/remote_status", handlers.RemoteStatusHandler(proxy, logger))
	mux.HandleFunc("/api/detection/video_feed", handlers.RemoteVideoFeedHandler(proxy, logger))

	// Zones
	mux.HandleFunc("/api/zones", handlers.ListZonesHandler(registry, logger))
	mux.HandleFunc("/api/zones/create", handlers.CreateZoneHandler(registry, logger))
	mux.HandleFunc("/api/zones/update", handlers.UpdateZoneHandler(registry, logger))
	mux.HandleFunc("/api/zones/capacity", handlers.UpdateZoneCapacityHandler(registry, logger))
	mux.HandleFunc("/api/zones/delete", handlers.DeleteZoneHandler(registry, logger))

	// History
	mux.HandleFunc("/api/telemetry", handlers.GetTelemetryHandler(telemetryRepo, logger))
	mux.HandleFunc("/api/violations", handlers.GetViolationsHandler(violationRepo, logger))

	// Videos
	mux.HandleFunc("/api/videos", handlers.ListVideosHandler(videoRepo, logger))
	mux.HandleFunc("/api/videos/upload", handlers.UploadVideoHandler(cfg, videoRepo, logger))
	mux.HandleFunc("/api/videos/select", handlers.SelectVideoHandler(videoRepo, logger))
	mux.HandleFunc("/api/videos/delete", handlers.DeleteVideoHandler(videoRepo, logger))

	// Log endpoints
	mux.HandleFunc("/logs/info", handlers.ShowInfoLogsHandler(cfg))
	mux.HandleFunc("/logs/warning", handlers.ShowWarningLogsHandler(cfg))
	mux.HandleFunc("/logs/error", handlers.ShowErrorLogsHandler(cfg))

	mux.HandleFunc("/logs/info/clear", handlers.ClearInfoLogsHandler(logger))
	mux.HandleFunc("/logs/warning/clear", handlers.ClearWarningLogsHandler(logger))
	mux.HandleFunc("/logs/error/clear", handlers.ClearErrorLogsHandler(logger))

	// Auth endpoints
	mux.HandleFunc("/auth/login", handlers.LoginHandler(cfg, logger))
	mux.HandleFunc("/auth/logout", handlers.LogoutHandler())

	// Automatic HTML handler mapping for example: /zones -> /static/zones.html
	mux.HandleFunc("/", dynamicHTMLHandler)

	// Apply middleware
	return middleware.RecoverMiddleware(logger)(middleware.AuthMiddleware(mux))
}
