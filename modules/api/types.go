package api

import (
	domain "github.com/example/realtime-chat/domain/chat"
)

// RegisterRequest is the API request to create an account.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// LoginRequest is the API request to log in.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// CreateChatRequest creates a private chat with UserID, or a group chat
// when IsGroup is set.
type CreateChatRequest struct {
	UserID  string   `json:"user_id" validate:"required_without=IsGroup"`
	IsGroup bool     `json:"is_group"`
	Name    string   `json:"name" validate:"required_if=IsGroup true,max=100"`
	Users   []string `json:"users" validate:"required_if=IsGroup true,dive,required"`
}

// SendMessageRequest submits a message over REST.
type SendMessageRequest struct {
	ChatID        string `json:"chat_id" validate:"required"`
	Content       string `json:"content" validate:"max=5000"`
	AttachmentRef string `json:"attachment_ref"`
}

// SessionResponse is returned by register and login.
type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expires_in"`
	User      *domain.User `json:"user"`
}

// UserListResponse lists accounts.
type UserListResponse struct {
	Users []domain.User `json:"users"`
}

// ChatListResponse lists the caller's chats.
type ChatListResponse struct {
	Chats []domain.Chat `json:"chats"`
}

// HistoryResponse is the API response for message history.
type HistoryResponse struct {
	ChatID   string           `json:"chat_id"`
	Messages []domain.Message `json:"messages"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}

// Websocket frame types.
const (
	FrameJoin          = "join"
	FrameSubscribe     = "subscribe"
	FrameSubmitMessage = "submit-message"

	FrameConnected  = "connected"
	FrameJoined     = "joined"
	FrameSubscribed = "subscribed"
	FrameSubmitted  = "submitted"
	FrameError      = "error"
)

// InboundFrame is a client request on the websocket.
type InboundFrame struct {
	Type          string `json:"type"`
	UserID        string `json:"user_id,omitempty"`
	ChatID        string `json:"chat_id,omitempty"`
	Content       string `json:"content,omitempty"`
	AttachmentRef string `json:"attachment_ref,omitempty"`
}

// ConnectedFrame greets a new connection.
type ConnectedFrame struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
}

// JoinedFrame acknowledges a join.
type JoinedFrame struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
}

// SubscribedFrame acknowledges a subscription.
type SubscribedFrame struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
}

// SubmittedFrame acknowledges a stored message to its sender.
type SubmittedFrame struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

// ErrorFrame reports a rejected request.
type ErrorFrame struct {
	Type        string `json:"type"`
	RequestType string `json:"request_type,omitempty"`
	Error       string `json:"error"`
	Message     string `json:"message"`
}
