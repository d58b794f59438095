package relay

import (
	"context"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/realtime-chat/config"
	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/metrics"
)

// Routing keys on the relay exchange.
const (
	RoutingMessageSent     = "chat.message.sent"
	RoutingPresenceChanged = "chat.presence.changed"
	RoutingChatCreated     = "chat.chat.created"
)

// Publisher sends a document to the external broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, v any) error
	Ping() error
	Close() error
}

// Module forwards domain events from the bus to an external broker so that
// other services can follow chat activity.
type Module struct {
	cfg       config.AMQPConfig
	publisher Publisher
	logger    types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the relay module. With an empty URL the module consumes
// events but publishes nothing.
func NewModule(cfg config.AMQPConfig, logger types.Logger) *Module {
	return &Module{
		cfg:    cfg,
		logger: logger.WithModule("relay"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// SetPublisher replaces the broker connection.
func (m *Module) SetPublisher(p Publisher) {
	m.publisher = p
}

// Start connects to the broker when configured.
func (m *Module) Start(_ context.Context) error {
	if m.publisher == nil && m.cfg.URL != "" {
		p, err := DialPublisher(m.cfg.URL, m.cfg.Exchange)
		if err != nil {
			return err
		}
		m.publisher = p
		m.logger.Info("Relay connected", "exchange", m.cfg.Exchange)
	}
	if m.publisher == nil {
		m.logger.Info("Relay disabled, AMQP_URL not set")
	}
	return nil
}

// Stop closes the broker connection.
func (m *Module) Stop(_ context.Context) error {
	if m.publisher != nil {
		if err := m.publisher.Close(); err != nil {
			return fmt.Errorf("failed to close relay publisher: %w", err)
		}
	}
	m.logger.Info("Relay module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.publisher == nil {
		return mono.HealthStatus{Healthy: true, Message: "disabled"}
	}
	if err := m.publisher.Ping(); err != nil {
		return mono.HealthStatus{Healthy: false, Message: err.Error()}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{"exchange": m.cfg.Exchange},
	}
}

// RegisterEventConsumers registers event handlers.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.MessageSentV1, m.handleMessageSent, m,
	); err != nil {
		return fmt.Errorf("failed to register MessageSent consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.PresenceChangedV1, m.handlePresenceChanged, m,
	); err != nil {
		return fmt.Errorf("failed to register PresenceChanged consumer: %w", err)
	}
	if err := helper.RegisterTypedEventConsumer(
		registry, events.ChatCreatedV1, m.handleChatCreated, m,
	); err != nil {
		return fmt.Errorf("failed to register ChatCreated consumer: %w", err)
	}

	m.logger.Info("Registered event consumers", "events", "MessageSent, PresenceChanged, ChatCreated")
	return nil
}

func (m *Module) handleMessageSent(ctx context.Context, event events.MessageSentEvent, _ *mono.Msg) error {
	m.forward(ctx, RoutingMessageSent, event)
	return nil
}

func (m *Module) handlePresenceChanged(ctx context.Context, event events.PresenceChangedEvent, _ *mono.Msg) error {
	m.forward(ctx, RoutingPresenceChanged, event)
	return nil
}

func (m *Module) handleChatCreated(ctx context.Context, event events.ChatCreatedEvent, _ *mono.Msg) error {
	m.forward(ctx, RoutingChatCreated, event)
	return nil
}

// forward publishes once; the relay is best effort and never blocks the bus.
func (m *Module) forward(ctx context.Context, routingKey string, v any) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, routingKey, v); err != nil {
		metrics.RelayPublished.WithLabelValues(routingKey, "error").Inc()
		m.logger.Warn("Failed to relay event", "routing_key", routingKey, "error", err)
		return
	}
	metrics.RelayPublished.WithLabelValues(routingKey, "ok").Inc()
}
