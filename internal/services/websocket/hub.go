package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"crowdwatch/internal/dto"
	"crowdwatch/internal/logger"
)

// writeWait bounds a single client write; a peer that stalls longer
// than this is dropped instead of holding up the broadcast loop.
var writeWait = 10 * time.Second

// Client is one connected observer. Each connection gets a uuid so log
// lines and request replies can name it.
type Client struct {
	ID   string
	conn *websocket.Conn

	// writeMu serializes writes: broadcasts and one-shot replies may
	// target the same connection concurrently, with no ordering
	// guarantee between them.
	writeMu sync.Mutex
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{ID: uuid.NewString(), conn: conn}
}

func (c *Client) write(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

// Ping sends a websocket ping control frame.
func (c *Client) Ping(deadline time.Time) error {
	return c.conn.WriteControl(websocket.PingMessage, nil, deadline)
}

// HubService is the observer broadcast channel: a connect/disconnect
// tracked set of clients supporting broadcast-to-all and send-to-one.
// A single Run loop owns the client set.
type HubService struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	logger     *logger.Logger

	onConnect func(client *Client)
}

// NewHubService creates the hub.
func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
	}
}

// OnConnect registers a hook invoked for every newly registered
// client, before any later broadcast reaches it. The coordinator uses
// it to replay the live status table.
func (h *HubService) OnConnect(fn func(client *Client)) {
	h.onConnect = fn
}

// Run owns the client set; start it once on its own goroutine.
func (h *HubService) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Observer %s connected. Total: %d", client.ID, total)

			if h.onConnect != nil {
				h.onConnect(client)
			}

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.conn.Close()
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Observer %s disconnected. Total: %d", client.ID, total)

		case message := <-h.broadcast:
			h.mutex.Lock()
			for client := range h.clients {
				if err := client.write(message); err != nil {
					h.logger.Error("Error sending to observer %s: %v", client.ID, err)
					delete(h.clients, client)
					client.conn.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Register adds a connection to the hub and returns its client record.
func (h *HubService) Register(conn *websocket.Conn) *Client {
	client := newClient(conn)
	h.register <- client
	return client
}

// Unregister removes a client and closes its connection.
func (h *HubService) Unregister(client *Client) {
	h.unregister <- client
}

// Emit broadcasts one named event to every connected observer.
func (h *HubService) Emit(event string, data interface{}) {
	message, err := json.Marshal(dto.Event{Event: event, Data: data})
	if err != nil {
		h.logger.Error("Error encoding %s event: %v", event, err)
		return
	}
	h.broadcast <- message
}

// EmitTo sends one named event to a single client only, bypassing the
// broadcast channel. Used for request/response replies and the status
// replay on connect.
func (h *HubService) EmitTo(client *Client, event string, data interface{}) {
	message, err := json.Marshal(dto.Event{Event: event, Data: data})
	if err != nil {
		h.logger.Error("Error encoding %s event: %v", event, err)
		return
	}
	if err := client.write(message); err != nil {
		h.logger.Error("Error sending to observer %s: %v", client.ID, err)
	}
}

// GetClientCount returns the number of connected observers.
func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
