package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/models"
)

// Call budgets for the edge device; status checks are quick, control
// calls get a little longer, the video pipe needs time to produce its
// first frame.
const (
	statusTimeout  = 3 * time.Second
	controlTimeout = 5 * time.Second
	syncTimeout    = 5 * time.Second
	videoTimeout   = 30 * time.Second
)

// RemoteUnavailableError normalizes every remote-device failure mode
// (unreachable, timeout, non-success response) into one error carrying
// enough detail for a retry hint.
type RemoteUnavailableError struct {
	Op     string
	Detail string
	Err    error
}

func (e *RemoteUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote detector unavailable (%s): %s: %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("remote detector unavailable (%s): %s", e.Op, e.Detail)
}

func (e *RemoteUnavailableError) Unwrap() error {
	return e.Err
}

// RemoteStatus is the edge device's self-reported state.
type RemoteStatus struct {
	Status           string  `json:"status"`
	Device           string  `json:"device"`
	CameraActive     bool    `json:"camera_active"`
	ProcessingActive bool    `json:"processing_active"`
	ZonesLoaded      int     `json:"zones_loaded"`
	FPS              float64 `json:"fps"`
}

// remoteResponse is the success envelope of the device's control
// endpoints.
type remoteResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ZonesCount int    `json:"zones_count"`
}

// RemoteProxy issues control calls to the edge detector device and
// translates its responses and failures into the supervisor's status
// vocabulary.
type RemoteProxy struct {
	baseURL string
	client  *http.Client
	stream  *http.Client
	logger  *logger.Logger
}

// NewRemoteProxy creates a proxy for the device at baseURL.
func NewRemoteProxy(baseURL string, logger *logger.Logger) *RemoteProxy {
	return &RemoteProxy{
		baseURL: baseURL,
		client:  &http.Client{},
		stream: &http.Client{
			Transport: &http.Transport{ResponseHeaderTimeout: videoTimeout},
		},
		logger: logger,
	}
}

// Start tells the device to begin processing.
func (p *RemoteProxy) Start() error {
	var resp remoteResponse
	if err := p.post("start_processing", controlTimeout, nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &RemoteUnavailableError{Op: "start", Detail: nonSuccess(resp.Message)}
	}
	return nil
}

// Stop tells the device to stop processing.
func (p *RemoteProxy) Stop() error {
	var resp remoteResponse
	if err := p.post("stop_processing", controlTimeout, nil, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &RemoteUnavailableError{Op: "stop", Detail: nonSuccess(resp.Message)}
	}
	return nil
}

// Status fetches the device's self-reported state.
func (p *RemoteProxy) Status() (*RemoteStatus, error) {
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/status", nil)
	if err != nil {
		return nil, &RemoteUnavailableError{Op: "status", Detail: "failed to build request", Err: err}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &RemoteUnavailableError{Op: "status", Detail: "device unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &RemoteUnavailableError{Op: "status", Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	var status RemoteStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, &RemoteUnavailableError{Op: "status", Detail: "invalid response body", Err: err}
	}

	return &status, nil
}

// SyncZones pushes the full current zone set for the remote camera to
// the device. With zero zones it reports synced: 0 without issuing a
// network call.
func (p *RemoteProxy) SyncZones(zones []models.Zone) (dto.ZoneSyncResult, error) {
	if len(zones) == 0 {
		p.logger.Warning("Zone sync skipped: no zones to push")
		return dto.ZoneSyncResult{Synced: 0}, nil
	}

	payload := dto.ZoneSyncPayload{Zones: make(map[string]dto.ZoneSyncEntry, len(zones))}
	for _, z := range zones {
		payload.Zones[strconv.FormatInt(z.ID, 10)] = dto.ZoneSyncEntry{
			Name:             z.Name,
			Coordinates:      z.Coordinates,
			CapacityLimit:    z.CapacityLimit,
			WarningThreshold: z.WarningThreshold,
			AlertColor:       z.AlertColor,
		}
	}

	var resp remoteResponse
	if err := p.post("zones", syncTimeout, payload, &resp); err != nil {
		return dto.ZoneSyncResult{}, err
	}
	if !resp.Success {
		return dto.ZoneSyncResult{}, &RemoteUnavailableError{Op: "sync", Detail: nonSuccess(resp.Message)}
	}

	synced := resp.ZonesCount
	if synced == 0 {
		synced = len(zones)
	}
	p.logger.Info("Synced %d zone(s) to remote device", synced)
	return dto.ZoneSyncResult{Synced: synced}, nil
}

// OpenVideoFeed opens the device's MJPEG stream. The caller owns the
// returned body; only the connection and response headers are bounded
// by the video budget, the stream itself is unbounded.
func (p *RemoteProxy) OpenVideoFeed() (io.ReadCloser, string, error) {
	req, err := http.NewRequest(http.MethodGet, p.baseURL+"/video_feed", nil)
	if err != nil {
		return nil, "", &RemoteUnavailableError{Op: "video", Detail: "failed to build request", Err: err}
	}

	resp, err := p.stream.Do(req)
	if err != nil {
		return nil, "", &RemoteUnavailableError{Op: "video", Detail: "device unreachable", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", &RemoteUnavailableError{Op: "video", Detail: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// post issues a bounded JSON POST and decodes the success envelope.
func (p *RemoteProxy) post(endpoint string, timeout time.Duration, payload interface{}, out *remoteResponse) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return &RemoteUnavailableError{Op: endpoint, Detail: "failed to encode payload", Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+endpoint, body)
	if err != nil {
		return &RemoteUnavailableError{Op: endpoint, Detail: "failed to build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return &RemoteUnavailableError{Op: endpoint, Detail: "device unreachable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RemoteUnavailableError{Op: endpoint, Detail: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, detail)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteUnavailableError{Op: endpoint, Detail: "invalid response body", Err: err}
	}

	return nil
}

func nonSuccess(message string) string {
	if message == "" {
		return "device reported failure"
	}
	return "device reported failure: " + message
}
