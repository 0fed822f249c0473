// Package websocket pushes document change events to connected browser
// clients. Every client receives every change frame; clients decide for
// themselves whether to refetch. The Stream bridges the in-process change
// notifier onto WebSocket connections.
package websocket

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medifile/medifile/internal/platform/notifier"
)

// Frame is the JSON message pushed to clients when the document
// collection changes.
type Frame struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// FrameTypeChanged signals that the document collection was mutated and
// clients holding a document view should refetch.
const FrameTypeChanged = "documents.changed"

// Client represents a single WebSocket connection.
type Client struct {
	ID   string
	Send chan []byte
	done chan struct{}
	sub  *notifier.Subscription
}

// Done is closed when the client is unregistered. The write pump uses it
// to shut down; the Send channel itself is never closed, because an
// in-flight broadcast may still deliver to it after unregistration.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Stream tracks connected clients and wires each one to the change
// notifier. All operations are thread-safe via sync.RWMutex.
type Stream struct {
	mu      sync.RWMutex
	hub     *notifier.Hub
	clients map[*Client]struct{}
}

// NewStream creates a Stream bound to the given change notifier.
func NewStream(hub *notifier.Hub) *Stream {
	return &Stream{
		hub:     hub,
		clients: make(map[*Client]struct{}),
	}
}

// Register adds a client and subscribes it to change events. The
// subscription callback never blocks: if the client's buffer is full the
// frame is dropped, and the next one will trigger the refetch instead.
func (s *Stream) Register(client *Client) {
	client.done = make(chan struct{})
	client.sub = s.hub.Subscribe(func() {
		frame, err := json.Marshal(Frame{
			Type:      FrameTypeChanged,
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			return
		}
		select {
		case client.Send <- frame:
		default:
		}
	})

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()
}

// Unregister releases the client's notifier subscription and signals its
// done channel. Send is left open: the hub invokes subscriber callbacks
// outside its lock, so a broadcast snapshotted before Release may still
// deliver one frame after unregistration. Safe to call more than once.
func (s *Stream) Unregister(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[client]; !ok {
		return
	}
	delete(s.clients, client)
	client.sub.Release()
	close(client.done)
}

// ClientCount returns the number of connected clients.
func (s *Stream) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

var upgrader = gorillawebsocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; tighten in production.
	},
}

// StreamHandler handles HTTP-to-WebSocket upgrades for the change stream.
type StreamHandler struct {
	stream *Stream
	logger zerolog.Logger
}

// NewStreamHandler creates a new handler bound to the given Stream.
func NewStreamHandler(stream *Stream, logger zerolog.Logger) *StreamHandler {
	return &StreamHandler{stream: stream, logger: logger}
}

// RegisterRoutes registers the WebSocket endpoint on the provided Echo group.
func (h *StreamHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/ws", h.HandleConnect)
}

// HandleConnect upgrades an HTTP connection to WebSocket, registers the
// client with the stream, and starts read/write pumps.
func (h *StreamHandler) HandleConnect(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := &Client{
		ID:   uuid.New().String(),
		Send: make(chan []byte, 16),
	}

	h.stream.Register(client)
	h.logger.Debug().Str("client_id", client.ID).Msg("websocket client connected")

	go h.writePump(client, ws)
	go h.readPump(client, ws)

	return nil
}

// readPump drains inbound messages until the connection drops. Clients
// send nothing meaningful; the read loop exists to detect disconnects.
func (h *StreamHandler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.stream.Unregister(client)
		ws.Close()
		h.logger.Debug().Str("client_id", client.ID).Msg("websocket client disconnected")
	}()

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}

// writePump writes frames from the Send channel to the WebSocket connection
// until the client is unregistered or the write fails.
func (h *StreamHandler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	defer ws.Close()

	for {
		select {
		case <-client.Done():
			return
		case frame := <-client.Send:
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, frame); err != nil {
				return
			}
		}
	}
}
