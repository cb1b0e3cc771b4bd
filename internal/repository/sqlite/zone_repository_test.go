package sqlite

import (
	"testing"
	"time"

	"crowdwatch/internal/models"
)

func sampleZone(name string) *models.Zone {
	return &models.Zone{
		CameraID:         1,
		UserID:           1,
		Name:             name,
		Coordinates:      []models.Point{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 100, Y: 100}},
		CapacityLimit:    50,
		WarningThreshold: 40,
		AlertColor:       "#4ecdc4",
		FrameWidth:       1280,
		FrameHeight:      720,
	}
}

func TestZoneRepository_InsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewZoneRepository(db)

	id, err := repo.Insert(sampleZone("Lobby"))
	if err != nil {
		t.Fatalf("Failed to insert zone: %v", err)
	}
	if id <= 0 {
		t.Fatalf("Expected positive zone id, got %d", id)
	}

	z, err := repo.GetByID(id)
	if err != nil {
		t.Fatalf("Failed to get zone: %v", err)
	}
	if z == nil {
		t.Fatal("Expected zone, got nil")
	}
	if z.Name != "Lobby" {
		t.Errorf("Name = %q, want Lobby", z.Name)
	}
	if len(z.Coordinates) != 3 {
		t.Errorf("Expected 3 coordinates, got %d", len(z.Coordinates))
	}
	if z.Coordinates[1] != (models.Point{X: 100, Y: 0}) {
		t.Errorf("Coordinate round trip failed: %+v", z.Coordinates[1])
	}
	if z.Incomplete {
		t.Error("Zone with frame dimensions should not be incomplete")
	}
}

func TestZoneRepository_GetByID_NotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewZoneRepository(db)

	z, err := repo.GetByID(999)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if z != nil {
		t.Errorf("Expected nil for missing zone, got %+v", z)
	}
}

func TestZoneRepository_UniqueNamePerCameraAndUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewZoneRepository(db)

	if _, err := repo.Insert(sampleZone("Lobby")); err != nil {
		t.Fatalf("Failed to insert first zone: %v", err)
	}
	if _, err := repo.Insert(sampleZone("Lobby")); err == nil {
		t.Error("Expected unique constraint error for duplicate zone name")
	}

	// Same name for another user is allowed.
	other := sampleZone("Lobby")
	other.UserID = 2
	if _, err := repo.Insert(other); err != nil {
		t.Errorf("Same name for another user should be allowed: %v", err)
	}
}

func TestZoneRepository_GetByCameraAndUser(t *testing.T) {
	db := setupTestDB(t)
	repo := NewZoneRepository(db)

	if _, err := repo.Insert(sampleZone("Mine")); err != nil {
		t.Fatalf("Failed to insert zone: %v", err)
	}
	other := sampleZone("Theirs")
	other.UserID = 2
	if _, err := repo.Insert(other); err != nil {
		t.Fatalf("Failed to insert zone: %v", err)
	}

	zones, err := repo.GetByCameraAndUser(1, 1)
	if err != nil {
		t.Fatalf("Failed to query zones: %v", err)
	}
	if len(zones) != 1 || zones[0].Name != "Mine" {
		t.Errorf("Expected only the owner's zone, got %+v", zones)
	}

	all, err := repo.GetByCamera(1)
	if err != nil {
		t.Fatalf("Failed to query camera zones: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 zones for the camera, got %d", len(all))
	}
}

func TestZoneRepository_Update(t *testing.T) {
	db := setupTestDB(t)
	repo := NewZoneRepository(db)

	id, err := repo.Insert(sampleZone("Old"))
	if err != nil {
		t.Fatalf("Failed to insert zone: %v", err)
	}

	z, _ := repo.GetByID(id)
	z.Name = "New"
	z.Coordinates = []models.Point{{X: 1, Y: 1}, {X: 2, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 4}}
	if err := repo.Update(z); err != nil {
		t.Fatalf("Failed to update zone: %v", err)
	}

	updated, _ := repo.GetByID(id)
	if updated.Name != "New" {
		t.Errorf("Name = %q, want New", updated.Name)
	}
	if len(updated.Coordinates) != 4 {
		t.Errorf("Expected 4 coordinates after update, got %d", len(updated.Coordinates))
	}
	// Capacity policy is untouched by composition updates.
	if updated.CapacityLimit != 50 || updated.WarningThreshold != 40 {
		t.Errorf("Capacity policy changed unexpectedly: %+v", updated)
	}
}

func TestZoneRepository_UpdateCapacityPolicy(t *testing.T) {
	db := setupTestDB(t)
	repo := NewZoneRepository(db)

	id, err := repo.Insert(sampleZone("Hall"))
	if err != nil {
		t.Fatalf("Failed to insert zone: %v", err)
	}

	policy := models.CapacityPolicy{CapacityLimit: 100, WarningThreshold: 80}
	if err := repo.UpdateCapacityPolicy(id, policy); err != nil {
		t.Fatalf("Failed to update capacity policy: %v", err)
	}

	z, _ := repo.GetByID(id)
	if z.CapacityLimit != 100 || z.WarningThreshold != 80 {
		t.Errorf("Policy = %d/%d, want 100/80", z.CapacityLimit, z.WarningThreshold)
	}
	// Color unchanged when not provided.
	if z.AlertColor != "#4ecdc4" {
		t.Errorf("AlertColor = %q, want unchanged", z.AlertColor)
	}

	withColor := models.CapacityPolicy{CapacityLimit: 60, WarningThreshold: 48, AlertColor: "#ff0000"}
	if err := repo.UpdateCapacityPolicy(id, withColor); err != nil {
		t.Fatalf("Failed to update capacity policy with color: %v", err)
	}
	z, _ = repo.GetByID(id)
	if z.AlertColor != "#ff0000" {
		t.Errorf("AlertColor = %q, want #ff0000", z.AlertColor)
	}
}

func TestZoneRepository_DeleteCascadesViolations(t *testing.T) {
	db := setupTestDB(t)
	zoneRepo := NewZoneRepository(db)
	violationRepo := NewViolationRepository(db)

	id, err := zoneRepo.Insert(sampleZone("Doomed"))
	if err != nil {
		t.Fatalf("Failed to insert zone: %v", err)
	}

	_, err = violationRepo.Insert(&models.CapacityViolation{
		ZoneID:    id,
		CameraID:  1,
		ZoneName:  "Doomed",
		Kind:      models.ViolationWarning,
		StartedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("Failed to insert violation: %v", err)
	}

	if err := zoneRepo.Delete(id); err != nil {
		t.Fatalf("Failed to delete zone: %v", err)
	}

	z, _ := zoneRepo.GetByID(id)
	if z != nil {
		t.Error("Zone should be deleted")
	}

	violations, err := violationRepo.GetAll(&models.ViolationFilter{ZoneID: id})
	if err != nil {
		t.Fatalf("Failed to query violations: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("Expected violations cascade-deleted, got %d", len(violations))
	}
}
