package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/events"
)

// Service names registered by the chat module.
const (
	ServiceCreatePrivate   = "create-private-chat"
	ServiceCreateGroup     = "create-group-chat"
	ServiceListChats       = "list-chats"
	ServiceHistory         = "chat-history"
	ServiceSubmit          = "submit-message"
	ServiceCheckMembership = "check-membership"
)

// Pinger is implemented by storage that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Module exposes the chat service to other modules and publishes chat events.
type Module struct {
	service  *Service
	pinger   Pinger
	eventBus mono.EventBus
	logger   types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
	_ Notifier                   = (*Module)(nil)
)

// NewModule creates a new chat module backed by repo.
func NewModule(repo Repository, opts Options, logger types.Logger) *Module {
	logger = logger.WithModule("chat")
	m := &Module{
		service: NewService(repo, opts, logger),
		logger:  logger,
	}
	if p, ok := repo.(Pinger); ok {
		m.pinger = p
	}
	m.service.SetNotifier(m)
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// Service returns the chat service.
func (m *Module) Service() *Service {
	return m.service
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
		events.ChatCreatedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceCreatePrivate,
		json.Unmarshal,
		json.Marshal,
		m.handleCreatePrivate,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreatePrivate, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceCreateGroup,
		json.Unmarshal,
		json.Marshal,
		m.handleCreateGroup,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCreateGroup, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceListChats,
		json.Unmarshal,
		json.Marshal,
		m.handleListChats,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceListChats, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceHistory,
		json.Unmarshal,
		json.Marshal,
		m.handleHistory,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceHistory, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceSubmit,
		json.Unmarshal,
		json.Marshal,
		m.handleSubmit,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceSubmit, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceCheckMembership,
		json.Unmarshal,
		json.Marshal,
		m.handleCheckMembership,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceCheckMembership, err)
	}

	m.logger.Info("Registered services",
		"services", []string{ServiceCreatePrivate, ServiceCreateGroup, ServiceListChats, ServiceHistory, ServiceSubmit, ServiceCheckMembership})
	return nil
}

// replyError turns err into the error carried by a reply. Every request gets
// a reply: storage failures are reported as persistence_failed rather than
// leaving the caller waiting for a timeout.
func (m *Module) replyError(service string, err error) *domain.Error {
	if de, ok := domain.AsError(err); ok {
		return de
	}
	m.logger.Error("Chat request failed", "service", service, "error", err)
	return domain.NewError(domain.KindPersistenceFailed, "storage unavailable")
}

func (m *Module) handleCreatePrivate(ctx context.Context, req CreatePrivateRequest, _ *mono.Msg) (ChatResponse, error) {
	c, created, err := m.service.CreatePrivate(ctx, req.UserID, req.OtherUserID)
	if err != nil {
		return ChatResponse{Error: m.replyError(ServiceCreatePrivate, err)}, nil
	}
	return ChatResponse{Chat: c, Created: created}, nil
}

func (m *Module) handleCreateGroup(ctx context.Context, req CreateGroupRequest, _ *mono.Msg) (ChatResponse, error) {
	c, err := m.service.CreateGroup(ctx, req.CreatorID, req.Name, req.MemberIDs)
	if err != nil {
		return ChatResponse{Error: m.replyError(ServiceCreateGroup, err)}, nil
	}
	return ChatResponse{Chat: c, Created: true}, nil
}

func (m *Module) handleListChats(ctx context.Context, req ListChatsRequest, _ *mono.Msg) (ListChatsResponse, error) {
	chats, err := m.service.ListFor(ctx, req.UserID)
	if err != nil {
		return ListChatsResponse{Error: m.replyError(ServiceListChats, err)}, nil
	}
	return ListChatsResponse{Chats: chats}, nil
}

func (m *Module) handleHistory(ctx context.Context, req HistoryRequest, _ *mono.Msg) (HistoryResponse, error) {
	msgs, err := m.service.History(ctx, req.UserID, req.ChatID, req.Limit)
	if err != nil {
		return HistoryResponse{ChatID: req.ChatID, Error: m.replyError(ServiceHistory, err)}, nil
	}
	return HistoryResponse{ChatID: req.ChatID, Messages: msgs}, nil
}

func (m *Module) handleSubmit(ctx context.Context, req SubmitInput, _ *mono.Msg) (SubmitResponse, error) {
	res, err := m.service.Submit(ctx, req)
	if err != nil {
		return SubmitResponse{Error: m.replyError(ServiceSubmit, err)}, nil
	}
	return SubmitResponse{Message: res.Message, Recipients: res.Recipients}, nil
}

func (m *Module) handleCheckMembership(ctx context.Context, req MembershipRequest, _ *mono.Msg) (MembershipResponse, error) {
	if err := m.service.CheckMembership(ctx, req.ChatID, req.UserID); err != nil {
		return MembershipResponse{Error: m.replyError(ServiceCheckMembership, err)}, nil
	}
	return MembershipResponse{}, nil
}

// MessageSent publishes a MessageSent event.
func (m *Module) MessageSent(event events.MessageSentEvent) {
	if m.eventBus == nil {
		return
	}
	if err := events.MessageSentV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish MessageSent event", "error", err)
	}
}

// ChatCreated publishes a ChatCreated event.
func (m *Module) ChatCreated(event events.ChatCreatedEvent) {
	if m.eventBus == nil {
		return
	}
	if err := events.ChatCreatedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish ChatCreated event", "error", err)
	}
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	if m.service.fanout == nil || m.service.subscribers == nil {
		return fmt.Errorf("fanout dependencies not set")
	}
	m.logger.Info("Chat module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Chat module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.pinger != nil {
		if err := m.pinger.Ping(ctx); err != nil {
			return mono.HealthStatus{
				Healthy: false,
				Message: fmt.Sprintf("database ping failed: %v", err),
			}
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"attachments": m.service.attachments != nil,
		},
	}
}
