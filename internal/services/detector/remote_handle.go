package detector

import (
	"sync"
	"time"

	"crowdwatch/internal/models"
)

// RemoteHandle drives the edge device through the proxy and reports
// state transitions through the same Events sink as the local
// supervisor, so observers see one status vocabulary regardless of
// where a detector runs. A handle is created once per session and
// carries the session's status record between Start and Stop.
type RemoteHandle struct {
	Proxy    *RemoteProxy
	Events   Events
	CameraID int

	// GraceDelay keeps the terminal status readable before the entry
	// is cleared; zero means the default of 5s.
	GraceDelay time.Duration

	mu   sync.Mutex
	last models.SessionStatus
}

// NewRemoteHandle creates the control handle for the remote camera.
func NewRemoteHandle(proxy *RemoteProxy, events Events, cameraID int) *RemoteHandle {
	return &RemoteHandle{Proxy: proxy, Events: events, CameraID: cameraID}
}

func (h *RemoteHandle) Start(source SourceSpec) error {
	st := models.NewSessionStatus(h.CameraID, true)
	h.setStatus(st)

	if err := h.Proxy.Start(); err != nil {
		h.setStatus(st.WithState(models.SessionError, err.Error()))
		h.Events.StatusCleared(h.CameraID)
		return err
	}

	h.setStatus(st.WithState(models.SessionRunning, "remote device processing"))
	return nil
}

func (h *RemoteHandle) Stop() error {
	h.mu.Lock()
	st := h.last
	h.mu.Unlock()

	h.setStatus(st.WithState(models.SessionStopping, "stop requested"))

	if err := h.Proxy.Stop(); err != nil {
		h.setStatus(st.WithState(models.SessionError, err.Error()))
		h.Events.StatusCleared(h.CameraID)
		return err
	}

	h.setStatus(st.WithState(models.SessionStopped, "remote device stopped"))

	grace := h.GraceDelay
	if grace == 0 {
		grace = 5 * time.Second
	}
	time.AfterFunc(grace, func() {
		h.Events.StatusCleared(h.CameraID)
	})
	return nil
}

// setStatus replaces the handle's record and forwards it to the sink.
func (h *RemoteHandle) setStatus(st models.SessionStatus) {
	h.mu.Lock()
	h.last = st
	h.mu.Unlock()
	h.Events.StatusChanged(st)
}
