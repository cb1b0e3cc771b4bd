package detector

import (
	"io"
	"net/http"
	"testing"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdwatch/internal/logger"
	"crowdwatch/internal/models"
)

const deviceURL = "http://device.test:5000"

func setupProxy(t *testing.T) *RemoteProxy {
	t.Helper()
	proxy := NewRemoteProxy(deviceURL, logger.NewLogger(t.TempDir()))
	httpmock.ActivateNonDefault(proxy.client)
	httpmock.ActivateNonDefault(proxy.stream)
	t.Cleanup(httpmock.DeactivateAndReset)
	return proxy
}

func TestRemoteProxy_StartStop(t *testing.T) {
	proxy := setupProxy(t)

	httpmock.RegisterResponder(http.MethodPost, deviceURL+"/start_processing",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{"success": true}))
	httpmock.RegisterResponder(http.MethodPost, deviceURL+"/stop_processing",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{"success": true}))

	assert.NoError(t, proxy.Start())
	assert.NoError(t, proxy.Stop())
}

func TestRemoteProxy_Start_DeviceReportsFailure(t *testing.T) {
	proxy := setupProxy(t)

	httpmock.RegisterResponder(http.MethodPost, deviceURL+"/start_processing",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{"success": false, "message": "camera busy"}))

	err := proxy.Start()
	var re *RemoteUnavailableError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Detail, "camera busy")
}

func TestRemoteProxy_Start_Unreachable(t *testing.T) {
	proxy := setupProxy(t)
	// No responder registered: the transport fails the call.

	err := proxy.Start()
	var re *RemoteUnavailableError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "start_processing", re.Op)
}

func TestRemoteProxy_Start_HTTPError(t *testing.T) {
	proxy := setupProxy(t)

	httpmock.RegisterResponder(http.MethodPost, deviceURL+"/start_processing",
		httpmock.NewStringResponder(500, "boom"))

	err := proxy.Start()
	var re *RemoteUnavailableError
	require.ErrorAs(t, err, &re)
	assert.Contains(t, re.Detail, "HTTP 500")
}

func TestRemoteProxy_Status(t *testing.T) {
	proxy := setupProxy(t)

	httpmock.RegisterResponder(http.MethodGet, deviceURL+"/status",
		httpmock.NewJsonResponderOrPanic(200, map[string]interface{}{
			"status":            "ok",
			"device":            "pi5",
			"processing_active": true,
			"zones_loaded":      3,
			"fps":               12.5,
		}))

	status, err := proxy.Status()
	require.NoError(t, err)
	assert.Equal(t, "pi5", status.Device)
	assert.True(t, status.ProcessingActive)
	assert.Equal(t, 3, status.ZonesLoaded)
}

func TestRemoteProxy_SyncZones(t *testing.T) {
	proxy := setupProxy(t)

	var captured map[string]interface{}
	httpmock.RegisterResponder(http.MethodPost, deviceURL+"/zones",
		func(req *http.Request) (*http.Response, error) {
			body, _ := io.ReadAll(req.Body)
			captured = map[string]interface{}{"raw": string(body)}
			return httpmock.NewJsonResponse(200, map[string]interface{}{"success": true, "zones_count": 2})
		})

	zones := []models.Zone{
		{ID: 1, Name: "Lobby", Coordinates: []models.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}, CapacityLimit: 10, WarningThreshold: 8},
		{ID: 2, Name: "Hall", Coordinates: []models.Point{{X: 0, Y: 0}, {X: 5, Y: 0}, {X: 5, Y: 5}}, CapacityLimit: 20, WarningThreshold: 16},
	}

	result, err := proxy.SyncZones(zones)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Synced)

	require.NotNil(t, captured)
	raw := captured["raw"].(string)
	assert.Contains(t, raw, `"zones"`)
	assert.Contains(t, raw, `"1"`)
	assert.Contains(t, raw, `"Lobby"`)
	assert.Contains(t, raw, `[0,0]`)
}

func TestRemoteProxy_SyncZones_Empty(t *testing.T) {
	proxy := setupProxy(t)
	// No responder: a network call would fail the test.

	result, err := proxy.SyncZones(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Synced)
	assert.Zero(t, httpmock.GetTotalCallCount())
}

func TestRemoteProxy_OpenVideoFeed(t *testing.T) {
	proxy := setupProxy(t)

	responder := httpmock.NewStringResponder(200, "frames")
	responder = responder.HeaderSet(http.Header{"Content-Type": []string{"multipart/x-mixed-replace; boundary=frame"}})
	httpmock.RegisterResponder(http.MethodGet, deviceURL+"/video_feed", responder)

	body, contentType, err := proxy.OpenVideoFeed()
	require.NoError(t, err)
	defer body.Close()

	assert.Contains(t, contentType, "multipart/x-mixed-replace")
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "frames", string(data))
}
