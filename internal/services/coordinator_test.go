package services

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdwatch/internal/config"
	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/models"
	"crowdwatch/internal/services/detector"
	"crowdwatch/internal/services/storage"
	"crowdwatch/internal/services/websocket"
	"crowdwatch/internal/services/zones"
)

// ========================================
// In-memory fakes
// ========================================

type memZoneRepo struct {
	mu     sync.Mutex
	zones  map[int64]*models.Zone
	nextID int64
}

func newMemZoneRepo() *memZoneRepo {
	return &memZoneRepo{zones: make(map[int64]*models.Zone), nextID: 1}
}

func (m *memZoneRepo) Insert(z *models.Zone) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	clone := *z
	clone.ID = id
	m.zones[id] = &clone
	return id, nil
}

func (m *memZoneRepo) GetByID(id int64) (*models.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	z, ok := m.zones[id]
	if !ok {
		return nil, nil
	}
	clone := *z
	return &clone, nil
}

func (m *memZoneRepo) GetByCamera(cameraID int) ([]models.Zone, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Zone
	for _, z := range m.zones {
		if z.CameraID == cameraID {
			out = append(out, *z)
		}
	}
	return out, nil
}

func (m *memZoneRepo) GetByCameraAndUser(cameraID int, userID int64) ([]models.Zone, error) {
	var out []models.Zone
	all, _ := m.GetByCamera(cameraID)
	for _, z := range all {
		if z.UserID == userID {
			out = append(out, z)
		}
	}
	return out, nil
}

func (m *memZoneRepo) Update(z *models.Zone) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *z
	m.zones[z.ID] = &clone
	return nil
}

func (m *memZoneRepo) UpdateCapacityPolicy(id int64, policy models.CapacityPolicy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if z, ok := m.zones[id]; ok {
		z.CapacityLimit = policy.CapacityLimit
		z.WarningThreshold = policy.WarningThreshold
	}
	return nil
}

func (m *memZoneRepo) Delete(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.zones, id)
	return nil
}

type memTelemetryRepo struct {
	mu      sync.Mutex
	samples []models.TelemetrySample
}

func (m *memTelemetryRepo) Insert(s *models.TelemetrySample) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, *s)
	return int64(len(m.samples)), nil
}

func (m *memTelemetryRepo) InsertBatch(samples []models.TelemetrySample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples = append(m.samples, samples...)
	return nil
}

func (m *memTelemetryRepo) GetByCamera(filter *models.TelemetryFilter) ([]models.TelemetrySample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.TelemetrySample(nil), m.samples...), nil
}

type memViolationRepo struct {
	mu   sync.Mutex
	rows []models.CapacityViolation
	fail error
}

func (m *memViolationRepo) Insert(v *models.CapacityViolation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return 0, m.fail
	}
	clone := *v
	clone.ID = int64(len(m.rows) + 1)
	m.rows = append(m.rows, clone)
	return clone.ID, nil
}

func (m *memViolationRepo) GetAll(filter *models.ViolationFilter) ([]models.CapacityViolation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CapacityViolation(nil), m.rows...), nil
}

func (m *memViolationRepo) stored() []models.CapacityViolation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CapacityViolation(nil), m.rows...)
}

// ========================================
// Setup
// ========================================

type coordinatorFixture struct {
	coordinator *Coordinator
	registry    *zones.Registry
	violations  *memViolationRepo
	telemetry   *memTelemetryRepo
	buffer      *storage.BufferService
}

// remote camera 99 keeps all tests on the local path unless a test
// explicitly targets it.
func setupCoordinator(t *testing.T) *coordinatorFixture {
	t.Helper()

	log := logger.NewLogger(t.TempDir())
	zoneRepo := newMemZoneRepo()
	registry := zones.NewRegistry(zoneRepo, log)
	telemetry := &memTelemetryRepo{}
	buffer := storage.NewBufferService(telemetry, 100, log)
	violations := &memViolationRepo{}
	hub := websocket.NewHubService(log)
	go hub.Run()
	proxy := detector.NewRemoteProxy("http://127.0.0.1:1", log)

	coordinator := NewCoordinator(registry, buffer, violations, hub, proxy, 99, log)

	return &coordinatorFixture{
		coordinator: coordinator,
		registry:    registry,
		violations:  violations,
		telemetry:   telemetry,
		buffer:      buffer,
	}
}

// dialObserver connects one websocket observer to the fixture's hub
// and waits until the hub has registered it.
func dialObserver(t *testing.T, hub *websocket.HubService) *gws.Conn {
	t.Helper()

	upgrader := gws.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	require.Equal(t, 1, hub.GetClientCount())
	return conn
}

func addZone(t *testing.T, registry *zones.Registry, name string, capacity int) {
	t.Helper()
	_, err := registry.Create(&models.Zone{
		CameraID:      1,
		UserID:        1,
		Name:          name,
		Coordinates:   []models.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}},
		CapacityLimit: capacity,
		FrameWidth:    1280,
		FrameHeight:   720,
	})
	require.NoError(t, err)
}

// ========================================
// Status table
// ========================================

func TestCoordinator_StatusTable(t *testing.T) {
	f := setupCoordinator(t)

	st := models.NewSessionStatus(2, false).WithState(models.SessionRunning, "detector running")
	f.coordinator.StatusChanged(st)

	got, ok := f.coordinator.GetStatus(2)
	require.True(t, ok)
	assert.Equal(t, models.SessionRunning, got.State)

	all := f.coordinator.GetAllStatuses()
	assert.Len(t, all, 1)

	f.coordinator.StatusCleared(2)
	_, ok = f.coordinator.GetStatus(2)
	assert.False(t, ok)
}

func TestCoordinator_StartDetection_AlreadyRunning(t *testing.T) {
	f := setupCoordinator(t)

	f.coordinator.StatusChanged(models.NewSessionStatus(1, false))

	err := f.coordinator.StartDetection(1, detector.SourceSpec{Kind: detector.SourceLive})
	assert.ErrorIs(t, err, detector.ErrAlreadyRunning)
}

func TestCoordinator_StartDetection_TerminalStatusAllowsRestart(t *testing.T) {
	f := setupCoordinator(t)

	// A terminal entry still in its grace window does not gate control
	// operations the way a live one does.
	st := models.NewSessionStatus(1, false).WithExit(0, "done")
	f.coordinator.StatusChanged(st)

	got, ok := f.coordinator.GetStatus(1)
	require.True(t, ok)
	assert.True(t, got.State.Terminal())

	err := f.coordinator.StopDetection(1)
	assert.ErrorIs(t, err, detector.ErrNotRunning)
}

func TestCoordinator_StopDetection_NotRunning(t *testing.T) {
	f := setupCoordinator(t)

	err := f.coordinator.StopDetection(5)
	assert.ErrorIs(t, err, detector.ErrNotRunning)
}

// blockingVideoRepo parks GetCurrentPath until released, holding a
// video-mode start mid-flight.
type blockingVideoRepo struct {
	release chan struct{}
}

func (b *blockingVideoRepo) Insert(v *models.Video) (int64, error) { return 0, nil }

func (b *blockingVideoRepo) GetByUser(userID int64) ([]models.Video, error) { return nil, nil }

func (b *blockingVideoRepo) GetCurrentPath(userID int64) (string, error) {
	<-b.release
	return "", nil
}

func (b *blockingVideoRepo) SetCurrent(videoID, userID int64) error { return nil }

func (b *blockingVideoRepo) Delete(videoID, userID int64) error { return nil }

func TestCoordinator_StartDetection_ConcurrentStartsSingleWinner(t *testing.T) {
	f := setupCoordinator(t)

	videos := &blockingVideoRepo{release: make(chan struct{})}
	cfg := &config.Config{PythonBin: "/bin/sh", DetectorScript: "detector.sh"}
	sup := detector.NewSupervisor(cfg, videos, f.coordinator, logger.NewLogger(t.TempDir()))
	f.coordinator.AttachSupervisor(sup)

	first := make(chan error, 1)
	go func() {
		first <- f.coordinator.StartDetection(2, detector.SourceSpec{Kind: detector.SourceVideo, UserID: 1})
	}()

	// Wait until the first start holds the camera's handle entry.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.coordinator.mu.Lock()
		_, reserved := f.coordinator.handles[2]
		f.coordinator.mu.Unlock()
		if reserved {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	// A second start for the same camera is rejected while the first is
	// still in flight, before any status has been published.
	err := f.coordinator.StartDetection(2, detector.SourceSpec{Kind: detector.SourceLive})
	assert.ErrorIs(t, err, detector.ErrAlreadyRunning)

	close(videos.release)
	assert.ErrorIs(t, <-first, detector.ErrNoSourceSelected)

	// The failed start released its own reservation and nothing else.
	f.coordinator.mu.Lock()
	_, reserved := f.coordinator.handles[2]
	f.coordinator.mu.Unlock()
	assert.False(t, reserved)

	assert.ErrorIs(t, f.coordinator.StopDetection(2), detector.ErrNotRunning)
}

// ========================================
// Telemetry ingestion and violations
// ========================================

func TestCoordinator_IngestTelemetry_BuffersSample(t *testing.T) {
	f := setupCoordinator(t)

	f.coordinator.IngestTelemetry(models.TelemetrySample{
		CameraID:   1,
		TotalCount: 3,
		ZoneCounts: map[string]int{},
	})

	assert.Equal(t, 1, f.buffer.Pending())
}

func TestCoordinator_IngestTelemetry_OpensViolationOnTransition(t *testing.T) {
	f := setupCoordinator(t)
	addZone(t, f.registry, "Lobby", 10)

	// 8/10 crosses the warning threshold: one stored row.
	f.coordinator.IngestTelemetry(models.TelemetrySample{
		CameraID:   1,
		TotalCount: 8,
		ZoneCounts: map[string]int{"Lobby": 8},
	})

	stored := f.violations.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, models.ViolationWarning, stored[0].Kind)
	assert.Equal(t, "Lobby", stored[0].ZoneName)
	assert.Equal(t, 8, stored[0].PeopleCount)

	// Still 8/10: ongoing, no new row.
	f.coordinator.IngestTelemetry(models.TelemetrySample{
		CameraID:   1,
		TotalCount: 8,
		ZoneCounts: map[string]int{"Lobby": 8},
	})
	assert.Len(t, f.violations.stored(), 1)

	// 10/10: status changed to exceeded, a second row opens.
	f.coordinator.IngestTelemetry(models.TelemetrySample{
		CameraID:   1,
		TotalCount: 10,
		ZoneCounts: map[string]int{"Lobby": 10},
	})
	stored = f.violations.stored()
	require.Len(t, stored, 2)
	assert.Equal(t, models.ViolationExceeded, stored[1].Kind)

	// Back to normal clears the tracking: the next crossing opens anew.
	f.coordinator.IngestTelemetry(models.TelemetrySample{
		CameraID:   1,
		TotalCount: 2,
		ZoneCounts: map[string]int{"Lobby": 2},
	})
	f.coordinator.IngestTelemetry(models.TelemetrySample{
		CameraID:   1,
		TotalCount: 9,
		ZoneCounts: map[string]int{"Lobby": 9},
	})
	assert.Len(t, f.violations.stored(), 3)
}

func TestCoordinator_IngestTelemetry_KeepsLastAnalytics(t *testing.T) {
	f := setupCoordinator(t)
	addZone(t, f.registry, "Lobby", 10)

	ts := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	f.coordinator.IngestTelemetry(models.TelemetrySample{
		CameraID:   1,
		TotalCount: 5,
		ZoneCounts: map[string]int{"Lobby": 5},
		FPS:        20,
		Timestamp:  ts,
	})

	f.coordinator.mu.Lock()
	update, ok := f.coordinator.lastAnalytics[1]
	f.coordinator.mu.Unlock()

	require.True(t, ok)
	assert.Equal(t, 5, update.TotalPeople)
	assert.Equal(t, ts.Format(time.RFC3339), update.Timestamp)
	assert.Equal(t, 50.0, update.Zones["Lobby"].Utilization)
	assert.Equal(t, 20.0, update.Performance.FPS)
}

func TestCoordinator_HandleViolation_Normalizes(t *testing.T) {
	f := setupCoordinator(t)

	f.coordinator.HandleViolation(dto.ViolationEvent{
		PeopleCount:   15,
		CapacityLimit: 10,
		LegacyType:    "exceeded",
	})

	stored := f.violations.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, "Unknown Zone", stored[0].ZoneName)
	assert.Equal(t, 1, stored[0].CameraID)
	assert.Equal(t, "exceeded", stored[0].Kind)
}

func TestCoordinator_HandleViolation_OngoingNotStored(t *testing.T) {
	f := setupCoordinator(t)

	f.coordinator.HandleViolation(dto.ViolationEvent{
		ZoneName: "Lobby",
		CameraID: 1,
		Kind:     models.ViolationWarning,
		Ongoing:  true,
	})

	assert.Empty(t, f.violations.stored())
}

func TestCoordinator_HandleViolation_BroadcastCarriesStoredID(t *testing.T) {
	f := setupCoordinator(t)
	conn := dialObserver(t, f.coordinator.Hub())

	f.coordinator.HandleViolation(dto.ViolationEvent{
		ZoneName:      "Lobby",
		CameraID:      1,
		Kind:          models.ViolationWarning,
		PeopleCount:   8,
		CapacityLimit: 10,
	})

	var envelope struct {
		Event string             `json:"event"`
		Data  dto.ViolationEvent `json:"data"`
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&envelope))

	assert.Equal(t, dto.EventViolationAlert, envelope.Event)
	stored := f.violations.stored()
	require.Len(t, stored, 1)
	assert.Equal(t, stored[0].ID, envelope.Data.ID)
	assert.False(t, envelope.Data.Ongoing)

	// A heartbeat still broadcasts but opens no row and carries no id.
	envelope.Data = dto.ViolationEvent{}
	f.coordinator.HandleViolation(dto.ViolationEvent{
		ZoneName: "Lobby",
		CameraID: 1,
		Kind:     models.ViolationWarning,
		Ongoing:  true,
	})
	require.NoError(t, conn.ReadJSON(&envelope))
	assert.Equal(t, dto.EventViolationAlert, envelope.Event)
	assert.True(t, envelope.Data.Ongoing)
	assert.Zero(t, envelope.Data.ID)
	assert.Len(t, f.violations.stored(), 1)
}

func TestCoordinator_HandleViolation_PersistenceFailureSwallowed(t *testing.T) {
	f := setupCoordinator(t)
	f.violations.fail = assert.AnError

	// Must not panic; the alert still goes out on the hub.
	f.coordinator.HandleViolation(dto.ViolationEvent{
		ZoneName: "Lobby",
		CameraID: 1,
		Kind:     models.ViolationExceeded,
	})

	assert.Empty(t, f.violations.stored())
}

// ========================================
// Zone change propagation
// ========================================

func TestCoordinator_ZonesChanged_LocalCameraNoRemoteSync(t *testing.T) {
	f := setupCoordinator(t)

	// Camera 1 is local; creating a zone fires the callback but must
	// not attempt a device push.
	addZone(t, f.registry, "Lobby", 10)

	// Nothing to assert beyond no panic and no stored violations; the
	// unroutable proxy URL would surface as an error log if called.
	assert.Empty(t, f.violations.stored())
}

func TestCoordinator_SyncRemoteZones_Empty(t *testing.T) {
	f := setupCoordinator(t)

	result, err := f.coordinator.SyncRemoteZones()
	require.NoError(t, err)
	assert.Equal(t, 0, result.Synced)
}
