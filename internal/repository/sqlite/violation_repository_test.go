package sqlite

import (
	"testing"
	"time"

	"crowdwatch/internal/models"
)

func insertViolation(t *testing.T, repo *ViolationRepository, cameraID int, kind string, start time.Time) int64 {
	t.Helper()
	id, err := repo.Insert(&models.CapacityViolation{
		CameraID:      cameraID,
		ZoneName:      "Lobby",
		PeopleCount:   12,
		CapacityLimit: 10,
		Kind:          kind,
		StartedAt:     start,
	})
	if err != nil {
		t.Fatalf("Failed to insert violation: %v", err)
	}
	return id
}

func TestViolationRepository_InsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewViolationRepository(db)

	id := insertViolation(t, repo, 1, models.ViolationExceeded, time.Now().UTC())
	if id <= 0 {
		t.Fatalf("Expected positive violation id, got %d", id)
	}

	violations, err := repo.GetAll(&models.ViolationFilter{})
	if err != nil {
		t.Fatalf("Failed to query violations: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("Expected 1 violation, got %d", len(violations))
	}

	v := violations[0]
	if v.Kind != models.ViolationExceeded {
		t.Errorf("Kind = %q, want exceeded", v.Kind)
	}
	// Violations are opened, never closed.
	if v.EndedAt != nil || v.DurationSec != nil {
		t.Errorf("Open violation should have no end fields: %+v", v)
	}
}

func TestViolationRepository_Filters(t *testing.T) {
	db := setupTestDB(t)
	repo := NewViolationRepository(db)

	base := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	insertViolation(t, repo, 1, models.ViolationWarning, base)
	insertViolation(t, repo, 1, models.ViolationExceeded, base.Add(time.Minute))
	insertViolation(t, repo, 2, models.ViolationExceeded, base.Add(2*time.Minute))

	byCamera, err := repo.GetAll(&models.ViolationFilter{CameraID: 1})
	if err != nil {
		t.Fatalf("Failed to query by camera: %v", err)
	}
	if len(byCamera) != 2 {
		t.Errorf("Camera filter returned %d violations, want 2", len(byCamera))
	}

	byKind, err := repo.GetAll(&models.ViolationFilter{Kind: models.ViolationExceeded})
	if err != nil {
		t.Fatalf("Failed to query by kind: %v", err)
	}
	if len(byKind) != 2 {
		t.Errorf("Kind filter returned %d violations, want 2", len(byKind))
	}

	since, err := repo.GetAll(&models.ViolationFilter{Since: base.Add(90 * time.Second)})
	if err != nil {
		t.Fatalf("Failed to query since: %v", err)
	}
	if len(since) != 1 {
		t.Errorf("Since filter returned %d violations, want 1", len(since))
	}

	limited, err := repo.GetAll(&models.ViolationFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Failed to query limited: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("Limit filter returned %d violations, want 1", len(limited))
	}
	// Newest first, offset 1 skips the newest.
	if !limited[0].StartedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("Offset ordering wrong: %v", limited[0].StartedAt)
	}
}
