package api

import (
	"context"
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/example/realtime-chat/config"
	"github.com/example/realtime-chat/modules/attachment"
	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/chat"
)

// Sessions is the connection registry as seen by the websocket surface.
type Sessions interface {
	Connect() string
	BindUser(connID, userID string) error
	Disconnect(connID string)
	UserOf(connID string) (string, bool)
	OnlineUsers() []string
}

// Subscriptions is the room membership tracker.
type Subscriptions interface {
	Subscribe(ctx context.Context, connID, chatID string) error
}

// Hub delivers frames to live connections.
type Hub interface {
	Register(client *broadcast.Client) error
	Unregister(id string)
	SendTo(connID string, payload any) error
	ClientCount() int
}

// Pipeline is the message pipeline. It runs in process so submits on
// different chats never queue behind each other.
type Pipeline interface {
	Submit(ctx context.Context, in chat.SubmitInput) (*chat.SubmitResult, error)
}

// AttachmentStore stores and serves attachments.
type AttachmentStore interface {
	Upload(ctx context.Context, filename string, data []byte, contentType string) (*attachment.Attachment, error)
	Open(ctx context.Context, ref string) ([]byte, *attachment.Attachment, error)
}

// APIModule serves the REST API and the websocket endpoint.
type APIModule struct {
	app         *fiber.App
	cfg         *config.Config
	chat        chat.ChatPort
	pipeline    Pipeline
	auth        auth.AuthPort
	attachments AttachmentStore
	hub         Hub
	sessions    Sessions
	rooms       Subscriptions
	validate    *validator.Validate
	logger      types.Logger
}

// Compile-time interface checks.
var _ mono.Module = (*APIModule)(nil)
var _ mono.DependentModule = (*APIModule)(nil)
var _ mono.HealthCheckableModule = (*APIModule)(nil)

// NewModule creates a new APIModule.
func NewModule(cfg *config.Config, logger types.Logger) *APIModule {
	return &APIModule{
		cfg:      cfg,
		validate: validator.New(),
		logger:   logger.WithModule("api"),
	}
}

// Name returns the module name.
func (m *APIModule) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *APIModule) Dependencies() []string {
	return []string{"chat", "auth"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *APIModule) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "chat":
		m.chat = chat.NewChatAdapter(container)
	case "auth":
		m.auth = auth.NewAuthAdapter(container)
	}
}

// SetHub sets the broadcast hub (called from main.go).
func (m *APIModule) SetHub(hub Hub) {
	m.hub = hub
}

// SetSessions sets the connection registry and room tracker (called from main.go).
func (m *APIModule) SetSessions(sessions Sessions, rooms Subscriptions) {
	m.sessions = sessions
	m.rooms = rooms
}

// SetPipeline sets the message pipeline (called from main.go).
func (m *APIModule) SetPipeline(p Pipeline) {
	m.pipeline = p
}

// SetAttachments sets the attachment store (called from main.go).
func (m *APIModule) SetAttachments(store AttachmentStore) {
	m.attachments = store
}

// SetPorts replaces the service adapters.
func (m *APIModule) SetPorts(chatPort chat.ChatPort, authPort auth.AuthPort) {
	m.chat = chatPort
	m.auth = authPort
}

// Start initializes the Fiber HTTP server.
func (m *APIModule) Start(_ context.Context) error {
	switch {
	case m.chat == nil:
		return fmt.Errorf("chat adapter dependency not set")
	case m.pipeline == nil:
		return fmt.Errorf("message pipeline dependency not set")
	case m.auth == nil:
		return fmt.Errorf("auth adapter dependency not set")
	case m.hub == nil:
		return fmt.Errorf("broadcast hub dependency not set")
	case m.sessions == nil || m.rooms == nil:
		return fmt.Errorf("session dependencies not set")
	case m.attachments == nil:
		return fmt.Errorf("attachment store dependency not set")
	}

	m.app = m.newApp()

	go func() {
		if err := m.app.Listen(":" + m.cfg.Port); err != nil {
			m.logger.Error("HTTP server error", "error", err)
		}
	}()

	m.logger.Info("HTTP server started", "port", m.cfg.Port)
	return nil
}

// newApp builds the Fiber application with every route registered.
func (m *APIModule) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		BodyLimit:             int(m.cfg.MaxUploadSize) + 1024*1024,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: m.cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(m.loggerMiddleware())

	m.setupRoutes(app)
	return app
}

// Stop shuts down the Fiber HTTP server.
func (m *APIModule) Stop(_ context.Context) error {
	if m.app == nil {
		return nil
	}
	m.logger.Info("Shutting down HTTP server")
	return m.app.Shutdown()
}

// Health returns the health status.
func (m *APIModule) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{"port": m.cfg.Port}
	if m.hub != nil {
		details["connected_clients"] = m.hub.ClientCount()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}
