package models

import "time"

// SessionState is the lifecycle state of one camera's detection session.
type SessionState string

const (
	SessionStarting     SessionState = "starting"
	SessionInitializing SessionState = "initializing"
	SessionRunning      SessionState = "running"
	SessionStopping     SessionState = "stopping"
	SessionStopped      SessionState = "stopped"
	SessionError        SessionState = "error"
)

// Terminal reports whether the state is final for the session.
func (s SessionState) Terminal() bool {
	return s == SessionStopped || s == SessionError
}

// SessionStatus is the live status record for one camera's detection
// session. Records are values: every transition goes through WithState
// or WithExit, which return a new record, so the keyed status table is
// only ever mutated by whole-entry replacement.
type SessionStatus struct {
	CameraID  int          `json:"camera_id"`
	State     SessionState `json:"status"`
	Message   string       `json:"message,omitempty"`
	PID       int          `json:"pid,omitempty"`
	ExitCode  *int         `json:"exit_code,omitempty"`
	Remote    bool         `json:"remote,omitempty"`
	StartedAt time.Time    `json:"started_at"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
}

// NewSessionStatus creates the initial record for a freshly accepted
// start request.
func NewSessionStatus(cameraID int, remote bool) SessionStatus {
	return SessionStatus{
		CameraID:  cameraID,
		State:     SessionStarting,
		Remote:    remote,
		StartedAt: time.Now(),
	}
}

// WithState returns a copy of the record transitioned to the given
// state with a new message.
func (s SessionStatus) WithState(state SessionState, message string) SessionStatus {
	s.State = state
	s.Message = message
	if state.Terminal() && s.EndedAt == nil {
		now := time.Now()
		s.EndedAt = &now
	}
	return s
}

// WithPID returns a copy of the record carrying the process id.
func (s SessionStatus) WithPID(pid int) SessionStatus {
	s.PID = pid
	return s
}

// WithExit returns a copy of the record transitioned to its terminal
// state for the given process exit code.
func (s SessionStatus) WithExit(code int, message string) SessionStatus {
	s.ExitCode = &code
	if code == 0 {
		return s.WithState(SessionStopped, message)
	}
	return s.WithState(SessionError, message)
}
