package detector

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"crowdwatch/internal/config"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/models"
	"crowdwatch/internal/repository"
)

// Readiness markers printed by the detector script; either promotes a
// starting session to running.
var readyMarkers = []string{"processor ready", "starting processing"}

// session pairs the live status record with the owning process handle.
type session struct {
	status models.SessionStatus
	cmd    *exec.Cmd
}

// Supervisor owns the lifecycle of local subprocess-based detectors,
// one per camera id: spawn, readiness detection from the output
// streams, graceful then forced termination, and reaping. All session
// table mutations are whole-entry replacements under one mutex.
type Supervisor struct {
	pythonBin string
	script    string
	videos    repository.VideoRepository
	events    Events
	logger    *logger.Logger

	mu       sync.Mutex
	sessions map[int]*session

	// Transition delays; defaults per contract, shortened in tests.
	initializingDelay time.Duration
	graceDelay        time.Duration
	forceDelay        time.Duration
	shutdownGrace     time.Duration
}

// NewSupervisor creates a process supervisor.
func NewSupervisor(cfg *config.Config, videos repository.VideoRepository, events Events, logger *logger.Logger) *Supervisor {
	return &Supervisor{
		pythonBin:         cfg.PythonBin,
		script:            cfg.DetectorScript,
		videos:            videos,
		events:            events,
		logger:            logger,
		sessions:          make(map[int]*session),
		initializingDelay: 2 * time.Second,
		graceDelay:        5 * time.Second,
		forceDelay:        5 * time.Second,
		shutdownGrace:     3 * time.Second,
	}
}

// Start spawns a detector process for the camera and returns
// immediately; observation continues asynchronously. Fails with
// ErrAlreadyRunning if a session exists and ErrNoSourceSelected if a
// video-mode start has no current video.
func (s *Supervisor) Start(cameraID int, source SourceSpec) error {
	s.mu.Lock()
	_, exists := s.sessions[cameraID]
	s.mu.Unlock()
	if exists {
		return ErrAlreadyRunning
	}

	args, err := s.buildArgs(cameraID, source)
	if err != nil {
		return err
	}

	cmd := exec.Command(s.pythonBin, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr pipe: %w", err)
	}

	s.mu.Lock()
	if _, exists := s.sessions[cameraID]; exists {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}

	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		// Spawn failure is fatal for this session only: broadcast the
		// error and leave no live entry behind.
		st := models.NewSessionStatus(cameraID, false).
			WithState(models.SessionError, fmt.Sprintf("failed to spawn detector: %v", err))
		s.events.StatusChanged(st)
		s.events.StatusCleared(cameraID)
		s.logger.Error("Camera %d: detector spawn failed: %v", cameraID, err)
		return fmt.Errorf("failed to spawn detector: %w", err)
	}

	st := models.NewSessionStatus(cameraID, false).WithPID(cmd.Process.Pid)
	s.sessions[cameraID] = &session{status: st, cmd: cmd}
	s.mu.Unlock()

	s.logger.Info("Camera %d: detector started (pid %d)", cameraID, cmd.Process.Pid)
	s.events.StatusChanged(st)

	go s.watchOutput(cameraID, stdout, "stdout")
	go s.watchOutput(cameraID, stderr, "stderr")
	go s.reap(cameraID, cmd)

	// Liveness heartbeat for slow-starting detectors.
	time.AfterFunc(s.initializingDelay, func() {
		s.transition(cameraID, func(st models.SessionStatus) (models.SessionStatus, bool) {
			if st.State != models.SessionStarting {
				return st, false
			}
			return st.WithState(models.SessionInitializing, "detector initializing"), true
		})
	})

	return nil
}

// Stop sends a graceful termination signal and schedules a forced kill
// if the process has not exited within the force delay. Fails with
// ErrNotRunning if no live session exists.
func (s *Supervisor) Stop(cameraID int) error {
	s.mu.Lock()
	sess, ok := s.sessions[cameraID]
	if !ok || sess.status.State.Terminal() {
		s.mu.Unlock()
		return ErrNotRunning
	}

	sess.status = sess.status.WithState(models.SessionStopping, "stop requested")
	st := sess.status
	cmd := sess.cmd
	s.mu.Unlock()

	s.events.StatusChanged(st)
	s.logger.Info("Camera %d: stopping detector (pid %d)", cameraID, cmd.Process.Pid)

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		s.logger.Warning("Camera %d: SIGTERM failed: %v", cameraID, err)
	}

	time.AfterFunc(s.forceDelay, func() {
		s.mu.Lock()
		sess, ok := s.sessions[cameraID]
		alive := ok && !sess.status.State.Terminal()
		s.mu.Unlock()

		if alive {
			s.logger.Warning("Camera %d: detector did not exit, killing", cameraID)
			_ = cmd.Process.Kill()
		}
	})

	return nil
}

// StopAll gracefully terminates every live session, then force-kills
// any still alive after a short grace window. Called on shutdown.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	cmds := make(map[int]*exec.Cmd, len(s.sessions))
	for id, sess := range s.sessions {
		if !sess.status.State.Terminal() {
			sess.status = sess.status.WithState(models.SessionStopping, "server shutting down")
			cmds[id] = sess.cmd
		}
	}
	s.mu.Unlock()

	if len(cmds) == 0 {
		return
	}

	s.logger.Info("Shutting down %d detector session(s)", len(cmds))
	for id, cmd := range cmds {
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			s.logger.Warning("Camera %d: SIGTERM failed: %v", id, err)
		}
	}

	deadline := time.Now().Add(s.shutdownGrace)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		remaining := 0
		for id := range cmds {
			if sess, ok := s.sessions[id]; ok && !sess.status.State.Terminal() {
				remaining++
			}
		}
		s.mu.Unlock()
		if remaining == 0 {
			return
		}
		time.Sleep(100 * time.Millisecond)
	}

	for id, cmd := range cmds {
		s.mu.Lock()
		sess, ok := s.sessions[id]
		alive := ok && !sess.status.State.Terminal()
		s.mu.Unlock()
		if alive {
			s.logger.Warning("Camera %d: detector survived shutdown grace, killing", id)
			_ = cmd.Process.Kill()
		}
	}
}

// buildArgs derives the detector command line from the selected source.
// Video mode resolves the requesting user's current video first.
func (s *Supervisor) buildArgs(cameraID int, source SourceSpec) ([]string, error) {
	args := []string{s.script, "--camera-id", strconv.Itoa(cameraID), "--headless"}

	switch source.Kind {
	case SourceVideo:
		path, err := s.videos.GetCurrentPath(source.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve current video: %w", err)
		}
		if path == "" {
			return nil, ErrNoSourceSelected
		}
		args = append(args, "--video", path)
	case SourceLive:
		args = append(args, "--camera-index", strconv.Itoa(source.CameraIndex))
	default:
		return nil, fmt.Errorf("unknown source kind %q", source.Kind)
	}

	return args, nil
}

// watchOutput forwards process output line by line. Stdout lines are
// always forwarded and inspected for readiness markers; stderr lines
// are forwarded unless they carry an informational severity marker.
func (s *Supervisor) watchOutput(cameraID int, r io.Reader, stream string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)

	for scanner.Scan() {
		line := scanner.Text()

		if stream == "stderr" && benignStderr(line) {
			continue
		}

		s.events.OutputLine(cameraID, stream, line)

		if stream == "stdout" && isReadyMarker(line) {
			s.transition(cameraID, func(st models.SessionStatus) (models.SessionStatus, bool) {
				if st.State != models.SessionStarting && st.State != models.SessionInitializing {
					return st, false
				}
				return st.WithState(models.SessionRunning, "detector running"), true
			})
		}
	}
}

// reap waits for process exit, broadcasts the terminal status, and
// removes the session after the grace delay so late observers can
// still read the final state.
func (s *Supervisor) reap(cameraID int, cmd *exec.Cmd) {
	err := cmd.Wait()

	code := 0
	if cmd.ProcessState != nil {
		code = cmd.ProcessState.ExitCode()
	}

	s.mu.Lock()
	sess, ok := s.sessions[cameraID]
	if !ok {
		s.mu.Unlock()
		return
	}

	switch {
	case sess.status.State == models.SessionStopping:
		sess.status = sess.status.WithState(models.SessionStopped, "detector stopped")
		sess.status.ExitCode = &code
	case code == 0:
		sess.status = sess.status.WithExit(code, "detector finished")
	default:
		msg := fmt.Sprintf("detector exited with code %d", code)
		if err != nil {
			msg = fmt.Sprintf("detector exited with code %d: %v", code, err)
		}
		sess.status = sess.status.WithExit(code, msg)
	}
	st := sess.status
	s.mu.Unlock()

	if st.State == models.SessionError {
		s.logger.Error("Camera %d: %s", cameraID, st.Message)
	} else {
		s.logger.Info("Camera %d: detector exited (code %d)", cameraID, code)
	}
	s.events.StatusChanged(st)

	time.AfterFunc(s.graceDelay, func() {
		s.mu.Lock()
		delete(s.sessions, cameraID)
		s.mu.Unlock()
		s.events.StatusCleared(cameraID)
	})
}

// transition applies a state transition to the camera's session under
// the lock and broadcasts the replaced record if it changed.
func (s *Supervisor) transition(cameraID int, fn func(models.SessionStatus) (models.SessionStatus, bool)) {
	s.mu.Lock()
	sess, ok := s.sessions[cameraID]
	if !ok {
		s.mu.Unlock()
		return
	}
	next, changed := fn(sess.status)
	if changed {
		sess.status = next
	}
	s.mu.Unlock()

	if changed {
		s.events.StatusChanged(next)
	}
}

func isReadyMarker(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range readyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// benignStderr reports whether a stderr line is routine logging rather
// than an actual error. Python detectors log INFO/DEBUG to stderr.
func benignStderr(line string) bool {
	return strings.Contains(line, "- INFO -") || strings.Contains(line, "- DEBUG -")
}
