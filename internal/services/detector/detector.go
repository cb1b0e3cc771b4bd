package detector

import (
	"errors"

	"crowdwatch/internal/models"
)

// Session control errors.
var (
	// ErrAlreadyRunning is returned when a start request hits a camera
	// that already has a live session.
	ErrAlreadyRunning = errors.New("detection already running for this camera")
	// ErrNotRunning is returned when a stop request hits a camera with
	// no live session.
	ErrNotRunning = errors.New("no active detection for this camera")
	// ErrNoSourceSelected is returned when a video-mode start request
	// finds no current video for the requesting user.
	ErrNoSourceSelected = errors.New("no video selected for processing")
)

// SourceKind selects what a local detector session processes.
type SourceKind string

const (
	SourceLive  SourceKind = "live"
	SourceVideo SourceKind = "video"
)

// SourceSpec describes the input of a detection session: a live camera
// index, or the requesting user's current video resolved at start time.
type SourceSpec struct {
	Kind        SourceKind `json:"kind"`
	CameraIndex int        `json:"camera_index,omitempty"`
	UserID      int64      `json:"-"`
}

// Events receives session lifecycle notifications from detector
// handles. The session coordinator implements it; handles never block
// on the sink.
type Events interface {
	// StatusChanged delivers a full replacement status record.
	StatusChanged(status models.SessionStatus)
	// StatusCleared removes a camera's session from the live table
	// after its grace period.
	StatusCleared(cameraID int)
	// OutputLine forwards one line of detector process output.
	OutputLine(cameraID int, stream, message string)
}

// Handle is the per-camera detector control capability. Two
// implementations exist: LocalHandle for subprocess-based detectors and
// RemoteHandle for the network-controlled edge device. The coordinator
// selects one per camera id at session-creation time.
type Handle interface {
	Start(source SourceSpec) error
	Stop() error
}

// LocalHandle drives one camera's session through the process
// supervisor.
type LocalHandle struct {
	Supervisor *Supervisor
	CameraID   int
}

func (h LocalHandle) Start(source SourceSpec) error {
	return h.Supervisor.Start(h.CameraID, source)
}

func (h LocalHandle) Stop() error {
	return h.Supervisor.Stop(h.CameraID)
}
