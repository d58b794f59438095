package broadcast

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/realtime-chat/events"
)

// EventChatCreated is the frame type announcing a new chat to its members.
const EventChatCreated = "chat-created"

// ConnectionLocator finds the live connections bound to users.
type ConnectionLocator interface {
	ConnectionsOf(userIDs []string) []string
}

// BroadcastModule owns the connection hub and pushes chat lifecycle events
// to the live connections of the affected users.
type BroadcastModule struct {
	hub       *Hub
	locator   ConnectionLocator
	cancelHub context.CancelFunc
	logger    types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*BroadcastModule)(nil)
var _ mono.EventConsumerModule = (*BroadcastModule)(nil)
var _ mono.HealthCheckableModule = (*BroadcastModule)(nil)

// NewModule creates a new BroadcastModule.
func NewModule(logger types.Logger) *BroadcastModule {
	logger = logger.WithModule("broadcast")
	return &BroadcastModule{
		hub:    NewHub(logger),
		logger: logger,
	}
}

// Name returns the module name.
func (m *BroadcastModule) Name() string {
	return "broadcast"
}

// SetLocator sets the user to connection lookup (called from main.go).
func (m *BroadcastModule) SetLocator(locator ConnectionLocator) {
	m.locator = locator
}

// Start initializes the module and starts the hub.
func (m *BroadcastModule) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelHub = cancel
	go m.hub.Run(ctx)
	m.logger.Info("Broadcast module started")
	return nil
}

// Stop shuts down the module.
func (m *BroadcastModule) Stop(_ context.Context) error {
	clientCount := m.hub.ClientCount()
	if m.cancelHub != nil {
		m.cancelHub()
		m.hub.Wait()
	}
	m.logger.Info("Broadcast module stopped", "clients", clientCount)
	return nil
}

// Health returns the health status.
func (m *BroadcastModule) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connected_clients": m.hub.ClientCount(),
		},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *BroadcastModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ChatCreatedV1, m.handleChatCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register ChatCreated consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", "ChatCreated")
	return nil
}

func (m *BroadcastModule) handleChatCreated(_ context.Context, event events.ChatCreatedEvent, _ *mono.Msg) error {
	if m.locator == nil {
		return nil
	}
	conns := m.locator.ConnectionsOf(event.Members)
	if len(conns) == 0 {
		return nil
	}

	m.logger.Debug("Announcing chat", "chat_id", event.ChatID, "connections", len(conns))
	if err := m.hub.Deliver(conns, ChatCreatedFrame{
		Type:      EventChatCreated,
		ChatID:    event.ChatID,
		IsGroup:   event.IsGroup,
		Name:      event.Name,
		Members:   event.Members,
		Timestamp: event.Timestamp,
	}); err != nil {
		m.logger.Warn("Failed to announce chat", "chat_id", event.ChatID, "error", err)
	}
	return nil
}

// GetHub returns the connection hub for the API and chat modules.
func (m *BroadcastModule) GetHub() *Hub {
	return m.hub
}

// ChatCreatedFrame tells a member's connections that a chat exists so the
// client can subscribe to it.
type ChatCreatedFrame struct {
	Type      string    `json:"type"`
	ChatID    string    `json:"chat_id"`
	IsGroup   bool      `json:"is_group"`
	Name      string    `json:"name,omitempty"`
	Members   []string  `json:"members"`
	Timestamp time.Time `json:"timestamp"`
}
