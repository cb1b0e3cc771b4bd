package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/models"
	"crowdwatch/internal/repository"
	"crowdwatch/internal/services/capacity"
	"crowdwatch/internal/services/detector"
	"crowdwatch/internal/services/storage"
	"crowdwatch/internal/services/websocket"
	"crowdwatch/internal/services/zones"
)

// Coordinator is the session coordination hub. It owns the per-camera
// live status table, routes inbound telemetry through the capacity
// evaluator and the persistence buffer, and fans events out to every
// connected observer. It implements detector.Events: supervisor and
// remote-handle transitions land here and are applied as whole-entry
// replacements on the status table.
type Coordinator struct {
	registry   *zones.Registry
	buffer     *storage.BufferService
	violations repository.ViolationRepository
	hub        *websocket.HubService
	remote     *detector.RemoteProxy
	supervisor *detector.Supervisor
	logger     *logger.Logger

	remoteCameraID int

	mu             sync.Mutex
	statuses       map[int]models.SessionStatus
	handles        map[int]detector.Handle
	lastZoneStatus map[string]string
	lastAnalytics  map[int]dto.AnalyticsUpdate
}

// NewCoordinator creates the coordinator. The supervisor is attached
// afterwards because it needs the coordinator as its event sink.
func NewCoordinator(registry *zones.Registry, buffer *storage.BufferService,
	violations repository.ViolationRepository, hub *websocket.HubService,
	remote *detector.RemoteProxy, remoteCameraID int, logger *logger.Logger) *Coordinator {

	c := &Coordinator{
		registry:       registry,
		buffer:         buffer,
		violations:     violations,
		hub:            hub,
		remote:         remote,
		remoteCameraID: remoteCameraID,
		logger:         logger,
		statuses:       make(map[int]models.SessionStatus),
		handles:        make(map[int]detector.Handle),
		lastZoneStatus: make(map[string]string),
		lastAnalytics:  make(map[int]dto.AnalyticsUpdate),
	}

	registry.OnZonesChanged(c.ZonesChanged)
	hub.OnConnect(c.replayStatuses)
	return c
}

// AttachSupervisor wires in the process supervisor once it has been
// constructed with this coordinator as its event sink.
func (c *Coordinator) AttachSupervisor(sup *detector.Supervisor) {
	c.supervisor = sup
}

// Hub returns the observer broadcast channel.
func (c *Coordinator) Hub() *websocket.HubService {
	return c.hub
}

// ---- detector.Events ----

// StatusChanged replaces the camera's live status entry and broadcasts
// the transition.
func (c *Coordinator) StatusChanged(status models.SessionStatus) {
	c.mu.Lock()
	c.statuses[status.CameraID] = status
	c.mu.Unlock()

	c.hub.Emit(dto.EventStatusChanged, status)
}

// StatusCleared removes a camera's session from the live table once
// its grace period has elapsed; subsequent status queries report no
// active process.
func (c *Coordinator) StatusCleared(cameraID int) {
	c.mu.Lock()
	delete(c.statuses, cameraID)
	delete(c.handles, cameraID)
	c.mu.Unlock()
}

// OutputLine forwards a detector output line to observers verbatim.
func (c *Coordinator) OutputLine(cameraID int, stream, message string) {
	c.hub.Emit(dto.EventOutputLine, dto.OutputLine{
		CameraID: cameraID,
		Stream:   stream,
		Message:  message,
	})
}

// ---- session control ----

// StartDetection accepts a start request for a camera. The detector
// handle - local subprocess or remote proxy - is selected once here,
// at session-creation time.
func (c *Coordinator) StartDetection(cameraID int, source detector.SourceSpec) error {
	c.mu.Lock()
	if st, ok := c.statuses[cameraID]; ok && !st.State.Terminal() {
		c.mu.Unlock()
		return detector.ErrAlreadyRunning
	}
	// A handle entry means another start for this camera is still in
	// flight or its session has not been cleared yet. Installing ours
	// under the same lock as the guard reserves the camera.
	if _, ok := c.handles[cameraID]; ok {
		c.mu.Unlock()
		return detector.ErrAlreadyRunning
	}

	var handle detector.Handle
	if cameraID == c.remoteCameraID {
		handle = detector.NewRemoteHandle(c.remote, c, cameraID)
	} else {
		handle = detector.LocalHandle{Supervisor: c.supervisor, CameraID: cameraID}
	}
	c.handles[cameraID] = handle
	c.mu.Unlock()

	if err := handle.Start(source); err != nil {
		c.mu.Lock()
		// Remove only the handle this call installed; the entry may
		// already belong to a later start.
		if c.handles[cameraID] == handle {
			delete(c.handles, cameraID)
		}
		c.mu.Unlock()
		return err
	}

	return nil
}

// StopDetection requests a stop for the camera's live session.
func (c *Coordinator) StopDetection(cameraID int) error {
	c.mu.Lock()
	handle, ok := c.handles[cameraID]
	c.mu.Unlock()

	if !ok {
		return detector.ErrNotRunning
	}

	return handle.Stop()
}

// GetStatus returns the live status of one camera, if any.
func (c *Coordinator) GetStatus(cameraID int) (models.SessionStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.statuses[cameraID]
	return st, ok
}

// GetAllStatuses returns the full live status table.
func (c *Coordinator) GetAllStatuses() []models.SessionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]models.SessionStatus, 0, len(c.statuses))
	for _, st := range c.statuses {
		statuses = append(statuses, st)
	}
	return statuses
}

// ---- telemetry ingestion ----

// IngestTelemetry handles one inbound sample: timestamp it if missing,
// queue it for persistence, evaluate every zone of the camera, and
// broadcast both the raw sample and the derived analytics event.
// Threshold crossings open violations; sustained violations heartbeat
// as ongoing alerts without new stored rows.
func (c *Coordinator) IngestTelemetry(sample models.TelemetrySample) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	c.buffer.Add(sample)
	c.hub.Emit(dto.EventLiveSample, sample)

	zoneList, err := c.registry.ListZones(sample.CameraID)
	if err != nil {
		c.logger.Error("Camera %d: failed to load zones for evaluation: %v", sample.CameraID, err)
		return
	}
	if len(zoneList) == 0 {
		return
	}

	analytics := capacity.EvaluateZones(zoneList, sample.ZoneCounts)
	update := dto.AnalyticsUpdate{
		CameraID:    sample.CameraID,
		Timestamp:   sample.Timestamp.Format(time.RFC3339),
		TotalPeople: sample.TotalCount,
		Zones:       analytics,
		Summary:     capacity.Summarize(analytics),
		Performance: dto.Performance{
			FPS:            sample.FPS,
			ProcessingTime: sample.ProcessingTimeMs,
		},
	}

	c.mu.Lock()
	c.lastAnalytics[sample.CameraID] = update
	c.mu.Unlock()

	c.hub.Emit(dto.EventAnalyticsUpdate, update)

	for _, z := range zoneList {
		za := analytics[z.Name]
		ongoing := c.trackZoneStatus(sample.CameraID, z.Name, za.Status)

		kind := capacity.ViolationKind(za.Status)
		if kind == "" {
			continue
		}

		ts := sample.Timestamp
		c.HandleViolation(dto.ViolationEvent{
			ZoneID:        z.ID,
			CameraID:      sample.CameraID,
			ZoneName:      z.Name,
			PeopleCount:   za.Count,
			CapacityLimit: za.Capacity,
			Kind:          kind,
			Ongoing:       ongoing,
			Timestamp:     &ts,
		})
	}
}

// trackZoneStatus records the zone's new status and reports whether it
// is unchanged since the previous sample (an ongoing condition rather
// than a fresh transition).
func (c *Coordinator) trackZoneStatus(cameraID int, zoneName, status string) bool {
	key := fmt.Sprintf("%d|%s", cameraID, zoneName)

	c.mu.Lock()
	defer c.mu.Unlock()

	last := c.lastZoneStatus[key]
	if status == capacity.StatusNormal {
		delete(c.lastZoneStatus, key)
	} else {
		c.lastZoneStatus[key] = status
	}
	return last == status
}

// HandleViolation normalizes an inbound capacity alert, opens a stored
// violation unless the event is an ongoing heartbeat, and broadcasts
// the alert either way. A failed insert is logged and the alert still
// goes out; persistence never blocks the live path.
func (c *Coordinator) HandleViolation(ev dto.ViolationEvent) {
	ev = capacity.NormalizeViolation(ev)

	if !ev.Ongoing {
		record := capacity.ViolationRecord(ev)
		id, err := c.violations.Insert(&record)
		if err != nil {
			c.logger.Error("Failed to store %s violation for zone '%s': %v", ev.Kind, ev.ZoneName, err)
		} else {
			ev.ID = id
			c.logger.Warning("Zone '%s' (camera %d): %s violation opened, %d/%d",
				ev.ZoneName, ev.CameraID, ev.Kind, ev.PeopleCount, ev.CapacityLimit)
		}
	}

	c.hub.Emit(dto.EventViolationAlert, ev)
}

// ---- zones ----

// ZonesChanged broadcasts a zone-composition change and, when the
// remote camera is affected, re-pushes the zone set to the device in
// the background.
func (c *Coordinator) ZonesChanged(cameraID int) {
	c.hub.Emit(dto.EventZonesChanged, dto.ZonesChanged{CameraID: cameraID})

	if cameraID == c.remoteCameraID {
		go func() {
			if _, err := c.SyncRemoteZones(); err != nil {
				c.logger.Error("Zone re-push to remote device failed: %v", err)
			}
		}()
	}
}

// SyncRemoteZones pushes the remote camera's full zone set to the edge
// device.
func (c *Coordinator) SyncRemoteZones() (dto.ZoneSyncResult, error) {
	zoneList, err := c.registry.ListZones(c.remoteCameraID)
	if err != nil {
		return dto.ZoneSyncResult{}, fmt.Errorf("failed to load zones for sync: %w", err)
	}
	return c.remote.SyncZones(zoneList)
}

// ---- observers ----

// replayStatuses sends the full live status table to a newly connected
// observer so its view is consistent without waiting for the next
// transition.
func (c *Coordinator) replayStatuses(client *websocket.Client) {
	for _, st := range c.GetAllStatuses() {
		c.hub.EmitTo(client, dto.EventStatusChanged, st)
	}
}

// HandleRequest answers a named snapshot request with exactly one
// reply to the requesting client.
func (c *Coordinator) HandleRequest(client *websocket.Client, req dto.SnapshotRequest) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	resp := dto.Response{ID: req.ID, Name: req.Name}

	switch req.Name {
	case dto.SnapshotStatus:
		if req.CameraID > 0 {
			st, ok := c.GetStatus(req.CameraID)
			if ok {
				resp.Data = st
			} else {
				resp.Error = "no active process"
			}
		} else {
			resp.Data = c.GetAllStatuses()
		}

	case dto.SnapshotZones:
		zoneList, err := c.registry.ListZones(req.CameraID)
		if err != nil {
			resp.Error = "failed to load zones"
			c.logger.Error("Snapshot request %s: %v", req.ID, err)
		} else {
			resp.Data = zoneList
		}

	case dto.SnapshotAnalytics:
		c.mu.Lock()
		update, ok := c.lastAnalytics[req.CameraID]
		c.mu.Unlock()
		if ok {
			resp.Data = update
		} else {
			resp.Error = "no analytics yet"
		}

	default:
		resp.Error = fmt.Sprintf("unknown request %q", req.Name)
	}

	c.hub.EmitTo(client, dto.EventResponse, resp)
}

// Shutdown terminates every live local session before the host exits.
func (c *Coordinator) Shutdown() {
	if c.supervisor != nil {
		c.supervisor.StopAll()
	}
}
