package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/realtime-chat/config"
	domain "github.com/example/realtime-chat/domain/chat"
)

// Service names registered by the auth module.
const (
	ServiceRegister  = "register"
	ServiceLogin     = "login"
	ServiceListUsers = "list-users"
)

// Module provides account services over the service container.
type Module struct {
	service *Service
	jwt     *JWTManager
	logger  types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the auth module over repo.
func NewModule(repo UserRepository, cfg config.JWTConfig, logger types.Logger) *Module {
	jwt := NewJWTManager(cfg)
	return &Module{
		service: NewService(repo, NewPasswordHasher(DefaultBcryptCost), jwt),
		jwt:     jwt,
		logger:  logger.WithModule("auth"),
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "auth"
}

// Service returns the auth service.
func (m *Module) Service() *Service {
	return m.service
}

// JWT returns the token manager.
func (m *Module) JWT() *JWTManager {
	return m.jwt
}

// Start starts the module.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Auth module started")
	return nil
}

// Stop stops the module.
func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("Auth module stopped")
	return nil
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"token_ttl_seconds": m.jwt.TTL(),
		},
	}
}

// RegisterServices registers request-reply services in the service container.
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceRegister,
		json.Unmarshal,
		json.Marshal,
		m.handleRegister,
	); err != nil {
		return fmt.Errorf("failed to register register service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceLogin,
		json.Unmarshal,
		json.Marshal,
		m.handleLogin,
	); err != nil {
		return fmt.Errorf("failed to register login service: %w", err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container,
		ServiceListUsers,
		json.Unmarshal,
		json.Marshal,
		m.handleListUsers,
	); err != nil {
		return fmt.Errorf("failed to register list-users service: %w", err)
	}

	m.logger.Info("Registered services", "services", []string{ServiceRegister, ServiceLogin, ServiceListUsers})
	return nil
}

func (m *Module) handleRegister(ctx context.Context, req RegisterRequest, _ *mono.Msg) (SessionResponse, error) {
	sess, err := m.service.Register(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		return SessionResponse{Error: m.replyError(ServiceRegister, err)}, nil
	}
	m.logger.Info("User registered", "user_id", sess.User.ID)
	return SessionResponse{Session: sess}, nil
}

func (m *Module) handleLogin(ctx context.Context, req LoginRequest, _ *mono.Msg) (SessionResponse, error) {
	sess, err := m.service.Login(ctx, req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return SessionResponse{Unauthorized: true}, nil
		}
		return SessionResponse{Error: m.replyError(ServiceLogin, err)}, nil
	}
	return SessionResponse{Session: sess}, nil
}

func (m *Module) handleListUsers(ctx context.Context, _ ListUsersRequest, _ *mono.Msg) (ListUsersResponse, error) {
	users, err := m.service.ListUsers(ctx)
	if err != nil {
		return ListUsersResponse{Error: m.replyError(ServiceListUsers, err)}, nil
	}
	return ListUsersResponse{Users: users}, nil
}

// replyError keeps every failure inside the reply so callers never wait out
// the request timeout.
func (m *Module) replyError(service string, err error) *domain.Error {
	if de, ok := domain.AsError(err); ok {
		return de
	}
	m.logger.Error("Auth request failed", "service", service, "error", err)
	return domain.NewError(domain.KindPersistenceFailed, "storage unavailable")
}
