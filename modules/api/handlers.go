package api

import (
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/modules/chat"
)

// setupRoutes configures all HTTP routes.
func (m *APIModule) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// WebSocket endpoint
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}, m.jwtProtected())
	app.Get("/ws", m.websocketHandler())

	// REST API v1
	api := app.Group("/api/v1")

	api.Post("/auth/register", m.register)
	api.Post("/auth/login", m.login)

	protected := api.Group("", m.jwtProtected())
	protected.Get("/users", m.listUsers)
	protected.Post("/chats", m.createChat)
	protected.Get("/chats", m.listChats)
	protected.Get("/chats/:id/messages", m.getHistory)
	protected.Post("/messages", m.sendMessage)
	protected.Post("/attachments", m.uploadAttachment)
	protected.Get("/attachments/:id/:name", m.downloadAttachment)
}

// healthHandler handles GET /health.
func (m *APIModule) healthHandler(c *fiber.Ctx) error {
	return c.JSON(HealthResponse{
		Status: "healthy",
		Details: map[string]any{
			"module":            "api",
			"connected_clients": m.hub.ClientCount(),
			"online_users":      len(m.sessions.OnlineUsers()),
		},
	})
}

// register handles POST /api/v1/auth/register.
func (m *APIModule) register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := m.parseAndValidate(c, &req); err != nil {
		return m.respondError(c, err)
	}

	session, err := m.auth.Register(c.UserContext(), req.Username, req.Email, req.Password)
	if err != nil {
		return m.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(SessionResponse{
		Token:     session.Token,
		ExpiresIn: session.ExpiresIn,
		User:      session.User,
	})
}

// login handles POST /api/v1/auth/login.
func (m *APIModule) login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := m.parseAndValidate(c, &req); err != nil {
		return m.respondError(c, err)
	}

	session, err := m.auth.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return m.respondError(c, err)
	}

	return c.JSON(SessionResponse{
		Token:     session.Token,
		ExpiresIn: session.ExpiresIn,
		User:      session.User,
	})
}

// listUsers handles GET /api/v1/users.
func (m *APIModule) listUsers(c *fiber.Ctx) error {
	users, err := m.auth.ListUsers(c.UserContext())
	if err != nil {
		return m.respondError(c, err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return c.JSON(UserListResponse{Users: users})
}

// createChat handles POST /api/v1/chats. A private chat that already
// exists is returned with 200 rather than 201.
func (m *APIModule) createChat(c *fiber.Ctx) error {
	var req CreateChatRequest
	if err := m.parseAndValidate(c, &req); err != nil {
		return m.respondError(c, err)
	}
	userID := currentUser(c)

	if req.IsGroup {
		created, err := m.chat.CreateGroup(c.UserContext(), userID, req.Name, req.Users)
		if err != nil {
			return m.respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(created)
	}

	existing, created, err := m.chat.CreatePrivate(c.UserContext(), userID, req.UserID)
	if err != nil {
		return m.respondError(c, err)
	}
	status := fiber.StatusOK
	if created {
		status = fiber.StatusCreated
	}
	return c.Status(status).JSON(existing)
}

// listChats handles GET /api/v1/chats.
func (m *APIModule) listChats(c *fiber.Ctx) error {
	chats, err := m.chat.ListFor(c.UserContext(), currentUser(c))
	if err != nil {
		return m.respondError(c, err)
	}
	if chats == nil {
		chats = []domain.Chat{}
	}
	return c.JSON(ChatListResponse{Chats: chats})
}

// getHistory handles GET /api/v1/chats/:id/messages.
func (m *APIModule) getHistory(c *fiber.Ctx) error {
	chatID := c.Params("id")
	limit := 0
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			return m.respondError(c, domain.Validation("limit must be a positive integer"))
		}
		limit = parsed
	}

	messages, err := m.chat.History(c.UserContext(), currentUser(c), chatID, limit)
	if err != nil {
		return m.respondError(c, err)
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return c.JSON(HistoryResponse{ChatID: chatID, Messages: messages})
}

// sendMessage handles POST /api/v1/messages.
func (m *APIModule) sendMessage(c *fiber.Ctx) error {
	var req SendMessageRequest
	if err := m.parseAndValidate(c, &req); err != nil {
		return m.respondError(c, err)
	}

	res, err := m.pipeline.Submit(c.UserContext(), chat.SubmitInput{
		SenderID:      currentUser(c),
		ChatID:        req.ChatID,
		Content:       req.Content,
		AttachmentRef: req.AttachmentRef,
		Transport:     chat.TransportREST,
	})
	if err != nil {
		return m.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res.Message)
}

// uploadAttachment handles POST /api/v1/attachments.
func (m *APIModule) uploadAttachment(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return m.respondError(c, domain.Validation("multipart field \"file\" is required"))
	}
	if file.Size > m.cfg.MaxUploadSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(ErrorResponse{
			Error:   "file_too_large",
			Message: fmt.Sprintf("File exceeds the %d byte limit", m.cfg.MaxUploadSize),
		})
	}

	src, err := file.Open()
	if err != nil {
		return m.respondError(c, fmt.Errorf("failed to open upload: %w", err))
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return m.respondError(c, fmt.Errorf("failed to read upload: %w", err))
	}

	att, err := m.attachments.Upload(c.UserContext(), file.Filename, data, file.Header.Get("Content-Type"))
	if err != nil {
		return m.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(att)
}

// downloadAttachment handles GET /api/v1/attachments/:id/:name.
func (m *APIModule) downloadAttachment(c *fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return m.respondError(c, domain.Validation("invalid attachment name"))
	}

	data, att, err := m.attachments.Open(c.UserContext(), c.Params("id")+"/"+name)
	if err != nil {
		return m.respondError(c, err)
	}

	c.Set(fiber.HeaderContentType, att.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", att.Name))
	return c.Send(data)
}
