package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"

	"github.com/example/realtime-chat/metrics"
)

const clientBufferSize = 256

// ErrHubStopped is returned when sending through a hub that is not running.
var ErrHubStopped = errors.New("hub stopped")

// Sink is the write side of a live connection.
type Sink interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is a registered live connection. Frames are queued on send and
// written by the client's own writer goroutine, so every write to one
// connection happens on a single goroutine.
type Client struct {
	ID   string
	sink Sink
	send chan []byte
	done chan struct{}

	// closeSink is set before send is closed when the hub shuts down.
	closeSink bool
}

// NewClient wraps a sink for registration.
func NewClient(id string, sink Sink) *Client {
	return &Client{
		ID:   id,
		sink: sink,
		send: make(chan []byte, clientBufferSize),
		done: make(chan struct{}),
	}
}

// Done is closed once the client's writer has stopped. After that the hub
// never touches the sink again, so the owner may release it.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

type envelope struct {
	targets []string // nil means every client
	data    []byte
}

// Hub manages live connections and routes frames to them. Frames are routed
// in the order they were submitted.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan string
	outbound   chan *envelope
	done       chan struct{}
	mu         sync.RWMutex
	logger     types.Logger
}

// NewHub creates a new Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan string),
		outbound:   make(chan *envelope, 1024),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run starts the hub's main loop. It accepts a context for graceful shutdown.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case id := <-h.unregister:
			h.handleUnregister(id)
		case env := <-h.outbound:
			h.handleOutbound(env)
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// closeAllClients stops every writer. Each writer closes its connection
// after the last queued frame, before Done is signalled.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		client.closeSink = true
		close(client.send)
		delete(h.clients, id)
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		<-client.done
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.clients[client.ID]; ok {
		close(old.send)
	}
	h.clients[client.ID] = client
	go h.writePump(client)
	h.logger.Debug("Client registered", "conn_id", client.ID)
}

func (h *Hub) handleUnregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client, ok := h.clients[id]; ok {
		delete(h.clients, id)
		close(client.send)
		h.logger.Debug("Client unregistered", "conn_id", id)
	}
}

func (h *Hub) handleOutbound(env *envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if env.targets == nil {
		for _, client := range h.clients {
			h.enqueue(client, env.data)
		}
		return
	}
	for _, id := range env.targets {
		if client, ok := h.clients[id]; ok {
			h.enqueue(client, env.data)
		}
	}
}

// enqueue never blocks the hub; a client that cannot keep up loses the frame.
func (h *Hub) enqueue(client *Client, data []byte) {
	select {
	case client.send <- data:
	default:
		metrics.FanoutDeliveries.WithLabelValues("dropped").Inc()
		h.logger.Warn("Client send buffer full, dropping frame", "conn_id", client.ID)
	}
}

// writePump is the only writer to client.sink. After a failed write the
// connection is treated as gone and the rest of the queue is discarded.
func (h *Hub) writePump(client *Client) {
	defer close(client.done)

	broken := false
	for data := range client.send {
		if broken {
			metrics.FanoutDeliveries.WithLabelValues("dropped").Inc()
			continue
		}
		if err := client.sink.WriteMessage(websocket.TextMessage, data); err != nil {
			broken = true
			metrics.FanoutDeliveries.WithLabelValues("error").Inc()
			h.logger.Debug("Failed to send to client", "conn_id", client.ID, "error", err)
			continue
		}
		metrics.FanoutDeliveries.WithLabelValues("ok").Inc()
	}
	if client.closeSink {
		_ = client.sink.Close()
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) error {
	select {
	case h.register <- client:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister removes a client from the hub. Frames already queued for it
// are still written; the client's Done channel closes when they are.
func (h *Hub) Unregister(id string) {
	select {
	case h.unregister <- id:
	case <-h.done:
	}
}

// Deliver sends payload to the given connections. Unknown ids are skipped.
func (h *Hub) Deliver(connIDs []string, payload any) error {
	if len(connIDs) == 0 {
		return nil
	}
	targets := append([]string(nil), connIDs...)
	return h.submit(targets, payload)
}

// BroadcastAll sends payload to every connected client.
func (h *Hub) BroadcastAll(payload any) error {
	return h.submit(nil, payload)
}

// SendTo sends payload to a single connection.
func (h *Hub) SendTo(connID string, payload any) error {
	return h.submit([]string{connID}, payload)
}

func (h *Hub) submit(targets []string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}
	select {
	case h.outbound <- &envelope{targets: targets, data: data}:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HasClient reports whether id is registered.
func (h *Hub) HasClient(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[id]
	return ok
}
