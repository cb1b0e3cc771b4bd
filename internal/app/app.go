package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"crowdwatch/internal/config"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/repository/sqlite"
	"crowdwatch/internal/routes"
	"crowdwatch/internal/services"
	"crowdwatch/internal/services/detector"
	"crowdwatch/internal/services/storage"
	"crowdwatch/internal/services/websocket"
	"crowdwatch/internal/services/zones"
)

// App wires the services together and owns the process lifecycle.
type App struct {
	config      *config.Config
	logger      *logger.Logger
	db          *sqlite.DB
	buffer      *storage.BufferService
	hub         *websocket.HubService
	coordinator *services.Coordinator

	telemetryRepo *sqlite.TelemetryRepository
	violationRepo *sqlite.ViolationRepository
	videoRepo     *sqlite.VideoRepository
	registry      *zones.Registry
	proxy         *detector.RemoteProxy
}

// NewApp loads configuration and constructs every service.
func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg.LogDirectory)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	zoneRepo := sqlite.NewZoneRepository(db)
	telemetryRepo := sqlite.NewTelemetryRepository(db)
	violationRepo := sqlite.NewViolationRepository(db)
	videoRepo := sqlite.NewVideoRepository(db)

	registry := zones.NewRegistry(zoneRepo, log)
	buffer := storage.NewBufferService(telemetryRepo, cfg.TelemetryBufferLimit, log)
	hub := websocket.NewHubService(log)
	proxy := detector.NewRemoteProxy(cfg.RemoteDeviceURL, log)

	coordinator := services.NewCoordinator(registry, buffer, violationRepo, hub,
		proxy, cfg.RemoteCameraID, log)
	supervisor := detector.NewSupervisor(cfg, videoRepo, coordinator, log)
	coordinator.AttachSupervisor(supervisor)

	return &App{
		config:        cfg,
		logger:        log,
		db:            db,
		buffer:        buffer,
		hub:           hub,
		coordinator:   coordinator,
		telemetryRepo: telemetryRepo,
		violationRepo: violationRepo,
		videoRepo:     videoRepo,
		registry:      registry,
		proxy:         proxy,
	}, nil
}

// Run starts the background services and the HTTP server, then blocks
// until a termination signal arrives and the shutdown completes.
func (a *App) Run() error {
	// Start background services
	go a.bufferRun()
	go a.hub.Run()

	router := routes.SetupRoutes(a.coordinator, a.registry, a.proxy, a.config,
		a.logger, a.telemetryRepo, a.violationRepo, a.videoRepo)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: router,
	}

	fmt.Printf("🚀 Crowd Monitoring Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📁 Database: %s\n", a.config.DBPath)
	fmt.Printf("📡 Remote device: %s (camera %d)\n", a.config.RemoteDeviceURL, a.config.RemoteCameraID)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		a.logger.Info("Received %v, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP shutdown error: %v", err)
	}

	a.coordinator.Shutdown()
	a.buffer.Flush()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Database close error: %v", err)
	}

	a.logger.Info("Shutdown complete")
	return nil
}

func (a *App) bufferRun() {
	a.buffer.Run(a.config.TelemetryFlushSeconds)
}
