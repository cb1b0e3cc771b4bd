package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"crowdwatch/internal/models"
	"crowdwatch/internal/repository/sqlite"
)

// zoneExport mirrors the JSON file older deployments kept their zones
// in: a map keyed by zone id with the zone fields inline.
type zoneExport struct {
	Name             string         `json:"name"`
	Coordinates      []models.Point `json:"coordinates"`
	CapacityLimit    int            `json:"capacity_limit"`
	WarningThreshold int            `json:"warning_threshold"`
	AlertColor       string         `json:"alert_color"`
	FrameWidth       int            `json:"frame_width"`
	FrameHeight      int            `json:"frame_height"`
}

func main() {
	zonesFile := flag.String("zones", "zones.json", "JSON file with exported zones")
	dbPath := flag.String("db", "data/crowdwatch.db", "Database path")
	cameraID := flag.Int("camera", 1, "Camera the zones belong to")
	userID := flag.Int64("user", 1, "Owning user id")
	flag.Parse()

	fmt.Printf("Migrating zones from %s to database %s\n", *zonesFile, *dbPath)

	data, err := os.ReadFile(*zonesFile)
	if err != nil {
		log.Fatalf("Failed to read zones file: %v", err)
	}

	var export map[string]zoneExport
	if err := json.Unmarshal(data, &export); err != nil {
		log.Fatalf("Failed to parse zones file: %v", err)
	}

	if len(export) == 0 {
		fmt.Println("No zones found to migrate")
		return
	}

	// Ensure database directory exists
	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewZoneRepository(db)

	inserted := 0
	skipped := 0
	for key, z := range export {
		if z.Name == "" || len(z.Coordinates) < 3 {
			log.Printf("⚠️  Skipping zone %s: missing name or polygon", key)
			skipped++
			continue
		}

		zone := &models.Zone{
			CameraID:         *cameraID,
			UserID:           *userID,
			Name:             z.Name,
			Coordinates:      z.Coordinates,
			CapacityLimit:    z.CapacityLimit,
			WarningThreshold: z.WarningThreshold,
			AlertColor:       z.AlertColor,
			FrameWidth:       z.FrameWidth,
			FrameHeight:      z.FrameHeight,
		}
		if zone.CapacityLimit <= 0 {
			zone.CapacityLimit = 50
		}
		if zone.WarningThreshold <= 0 {
			zone.WarningThreshold = zone.CapacityLimit * 80 / 100
		}
		if zone.AlertColor == "" {
			zone.AlertColor = "#4ecdc4"
		}

		if _, err := repo.Insert(zone); err != nil {
			log.Printf("⚠️  Failed to insert zone %s: %v", z.Name, err)
			skipped++
			continue
		}
		inserted++
	}

	fmt.Printf("✅ Successfully migrated %d zone(s) to camera %d\n", inserted, *cameraID)
	if skipped > 0 {
		fmt.Printf("⚠️  Skipped %d zone(s) (invalid entries or errors)\n", skipped)
	}
}
