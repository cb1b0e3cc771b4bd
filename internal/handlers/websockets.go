package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
	"crowdwatch/internal/models"
	"crowdwatch/internal/services"
)

var Upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Observer read deadline and the ping cadence that refreshes it. A
// dashboard that only listens still answers pings with pongs.
var (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// ViewWebsocketHandler handles dashboard observer connections. The
// observer is registered in the hub (which replays the live status
// table) and may send snapshot requests; everything else it receives
// is broadcast fan-out.
func ViewWebsocketHandler(coordinator *services.Coordinator, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		connection.SetReadLimit(4096)
		connection.SetReadDeadline(time.Now().Add(pongWait))
		connection.SetPongHandler(func(appData string) error {
			connection.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		defer connection.Close()

		client := coordinator.Hub().Register(connection)
		defer coordinator.Hub().Unregister(client)

		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(pingPeriod)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := client.Ping(time.Now().Add(10 * time.Second)); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := connection.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					logger.Info("Observer %s disconnected normally", client.ID)
				} else {
					logger.Error("Observer %s disconnected with error: %v", client.ID, err)
				}
				break
			}
			connection.SetReadDeadline(time.Now().Add(pongWait))

			var raw dto.RawEvent
			if err := json.Unmarshal(msg, &raw); err != nil {
				logger.Warning("Observer %s sent invalid message: %v", client.ID, err)
				continue
			}

			if raw.Event != dto.EventRequest {
				continue
			}

			var req dto.SnapshotRequest
			if err := json.Unmarshal(raw.Data, &req); err != nil {
				logger.Warning("Observer %s sent invalid request: %v", client.ID, err)
				continue
			}
			coordinator.HandleRequest(client, req)
		}
	}
}

// DetectorWebsocketHandler handles the local detector subprocess
// connection. Each inbound message is one telemetry sample or one
// violation event; samples for a single camera arrive and are
// processed in order on this loop.
func DetectorWebsocketHandler(coordinator *services.Coordinator, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}
		defer connection.Close()

		logger.Info("Detector connected from %s", r.RemoteAddr)

		for {
			_, msg, err := connection.ReadMessage()
			if err != nil {
				logger.Info("Detector disconnected: %v", err)
				break
			}

			var raw dto.RawEvent
			if err := json.Unmarshal(msg, &raw); err != nil {
				logger.Warning("Detector sent invalid message: %v", err)
				continue
			}

			switch raw.Event {
			case dto.EventLiveSample:
				var sample models.TelemetrySample
				if err := json.Unmarshal(raw.Data, &sample); err != nil {
					logger.Warning("Invalid telemetry sample: %v", err)
					continue
				}
				coordinator.IngestTelemetry(sample)

			case dto.EventViolationAlert:
				var ev dto.ViolationEvent
				if err := json.Unmarshal(raw.Data, &ev); err != nil {
					logger.Warning("Invalid violation event: %v", err)
					continue
				}
				coordinator.HandleViolation(ev)

			default:
				logger.Warning("Detector sent unknown event %q", raw.Event)
			}
		}
	}
}
