package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/redis/go-redis/v9"

	"github.com/example/realtime-chat/config"
	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/modules/chat"
)

// Store is the persistence the session module needs.
type Store interface {
	PresenceStore
	ResetPresence(ctx context.Context) error
}

// Module owns the connection registry, room subscriptions and presence.
type Module struct {
	registry *Registry
	rooms    *Rooms
	tracker  *Tracker

	store       Store
	broadcaster Broadcaster
	redisCfg    config.RedisConfig
	redis       *redis.Client
	mirror      *RedisMirror
	eventBus    mono.EventBus

	cancel context.CancelFunc
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the session module. The registry and rooms exist from
// construction so the API module can be wired before Start.
func NewModule(redisCfg config.RedisConfig, store Store, logger types.Logger) *Module {
	logger = logger.WithModule("session")
	tracker := NewTracker(TrackerDeps{}, logger)
	registry := NewRegistry(tracker)
	return &Module{
		registry: registry,
		rooms:    NewRooms(registry, nil),
		tracker:  tracker,
		store:    store,
		redisCfg: redisCfg,
		logger:   logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "session"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"chat"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "chat":
		// A checker wired in process takes precedence over request-reply.
		if !m.rooms.hasMembership() {
			m.rooms.SetMembership(chat.NewChatAdapter(container))
		}
	}
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.PresenceChangedV1.ToBase(),
	}
}

// SetBroadcaster sets the presence broadcast target (called from main.go).
func (m *Module) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

// Registry returns the connection registry.
func (m *Module) Registry() *Registry {
	return m.registry
}

// Rooms returns the room membership tracker.
func (m *Module) Rooms() *Rooms {
	return m.rooms
}

// Tracker returns the presence tracker.
func (m *Module) Tracker() *Tracker {
	return m.tracker
}

// Start connects the Redis mirror when configured and starts delivering
// presence transitions.
func (m *Module) Start(ctx context.Context) error {
	if m.broadcaster == nil {
		return fmt.Errorf("broadcaster dependency not set")
	}

	if m.store != nil {
		if err := m.store.ResetPresence(ctx); err != nil {
			return err
		}
	}

	deps := TrackerDeps{
		Broadcaster: m.broadcaster,
		Notify:      m.publishPresence,
	}
	if m.store != nil {
		deps.Store = m.store
	}

	if m.redisCfg.Addr != "" {
		m.redis = redis.NewClient(&redis.Options{
			Addr:         m.redisCfg.Addr,
			Password:     m.redisCfg.Password,
			DB:           m.redisCfg.DB,
			PoolSize:     20,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		})
		if err := m.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		m.mirror = NewRedisMirror(m.redis, m.redisCfg.PresenceKey)
		if err := m.mirror.Reset(ctx); err != nil {
			return err
		}
		deps.Mirror = m.mirror
		m.logger.Info("Presence mirror connected", "addr", m.redisCfg.Addr, "key", m.redisCfg.PresenceKey)
	}

	m.tracker.SetDeps(deps)

	runCtx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.tracker.Run(runCtx)

	m.logger.Info("Session module started")
	return nil
}

// Stop drains pending presence transitions and closes Redis.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
		m.tracker.Wait()
	}
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			return fmt.Errorf("failed to close Redis connection: %w", err)
		}
	}
	m.logger.Info("Session module stopped", "connections", m.registry.ConnectionCount())
	return nil
}

// Health returns the health status.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	details := map[string]any{
		"connections":      m.registry.ConnectionCount(),
		"online_users":     len(m.registry.OnlineUsers()),
		"subscribed_chats": m.rooms.ChatCount(),
	}
	if m.mirror != nil {
		mirrored, err := m.mirror.Online(ctx)
		if err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("presence mirror unavailable: %v", err),
				Details: details,
			}
		}
		details["presence_mirror"] = m.redisCfg.Addr
		details["mirrored_online_users"] = len(mirrored)
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: details,
	}
}

func (m *Module) publishPresence(change Change) {
	if m.eventBus == nil {
		return
	}
	event := events.PresenceChangedEvent{
		UserID:    change.UserID,
		Online:    change.Online,
		Timestamp: change.At,
	}
	if err := events.PresenceChangedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish PresenceChanged event", "error", err)
	}
}
