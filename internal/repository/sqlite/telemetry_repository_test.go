package sqlite

import (
	"testing"
	"time"

	"crowdwatch/internal/models"
)

func TestTelemetryRepository_InsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTelemetryRepository(db)

	sample := &models.TelemetrySample{
		CameraID:   2,
		TotalCount: 14,
		ZoneCounts: map[string]int{"Lobby": 8, "Hall": 6},
		FPS:        24.5,
		Timestamp:  time.Now().UTC(),
	}

	id, err := repo.Insert(sample)
	if err != nil {
		t.Fatalf("Failed to insert sample: %v", err)
	}
	if id <= 0 {
		t.Fatalf("Expected positive sample id, got %d", id)
	}

	samples, err := repo.GetByCamera(&models.TelemetryFilter{CameraID: 2})
	if err != nil {
		t.Fatalf("Failed to query samples: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("Expected 1 sample, got %d", len(samples))
	}
	if samples[0].TotalCount != 14 {
		t.Errorf("TotalCount = %d, want 14", samples[0].TotalCount)
	}
	if samples[0].ZoneCounts["Lobby"] != 8 {
		t.Errorf("Zone counts round trip failed: %+v", samples[0].ZoneCounts)
	}
}

func TestTelemetryRepository_InsertBatch(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTelemetryRepository(db)

	base := time.Now().UTC()
	batch := make([]models.TelemetrySample, 5)
	for i := range batch {
		batch[i] = models.TelemetrySample{
			CameraID:   1,
			TotalCount: i,
			ZoneCounts: map[string]int{"A": i},
			Timestamp:  base.Add(time.Duration(i) * time.Second),
		}
	}

	if err := repo.InsertBatch(batch); err != nil {
		t.Fatalf("Failed to insert batch: %v", err)
	}

	samples, err := repo.GetByCamera(&models.TelemetryFilter{CameraID: 1})
	if err != nil {
		t.Fatalf("Failed to query samples: %v", err)
	}
	if len(samples) != 5 {
		t.Fatalf("Expected 5 samples, got %d", len(samples))
	}
	// Newest first
	if samples[0].TotalCount != 4 {
		t.Errorf("First sample TotalCount = %d, want newest (4)", samples[0].TotalCount)
	}
}

func TestTelemetryRepository_FilterSinceAndLimit(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTelemetryRepository(db)

	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	var batch []models.TelemetrySample
	for i := 0; i < 10; i++ {
		batch = append(batch, models.TelemetrySample{
			CameraID:   1,
			TotalCount: i,
			ZoneCounts: map[string]int{},
			Timestamp:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	if err := repo.InsertBatch(batch); err != nil {
		t.Fatalf("Failed to insert batch: %v", err)
	}

	samples, err := repo.GetByCamera(&models.TelemetryFilter{
		CameraID: 1,
		Since:    base.Add(5 * time.Minute),
		Limit:    3,
	})
	if err != nil {
		t.Fatalf("Failed to query samples: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("Expected 3 samples, got %d", len(samples))
	}
	for _, s := range samples {
		if s.Timestamp.Before(base.Add(5 * time.Minute)) {
			t.Errorf("Sample %d older than the since filter: %v", s.ID, s.Timestamp)
		}
	}
}
