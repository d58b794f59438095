package chat

import (
	"strings"
	"time"
	"unicode/utf8"

	domain "github.com/example/realtime-chat/domain/chat"
)

// Validation constants
const (
	MaxGroupNameLength = 100
	MaxMessageLength   = 5000
	MaxGroupMembers    = 256
)

// Frame types written to live connections by the pipeline.
const (
	EventMessage = "message"
)

// Transports that submit messages.
const (
	TransportREST = "rest"
	TransportWS   = "ws"
)

// MessageFrame is the live event fanned out to a chat's subscribers.
type MessageFrame struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
}

// SubmitInput is a message submission, whatever transport it came from.
type SubmitInput struct {
	SenderID      string `json:"sender_id"`
	ChatID        string `json:"chat_id"`
	Content       string `json:"content"`
	AttachmentRef string `json:"attachment_ref,omitempty"`
	Transport     string `json:"transport,omitempty"`
}

// ValidateGroupName validates a group chat name.
func ValidateGroupName(name string) error {
	if strings.TrimSpace(name) == "" {
		return domain.Validation("group name is required")
	}
	if len(name) > MaxGroupNameLength {
		return domain.Validation("group name exceeds %d characters", MaxGroupNameLength)
	}
	if !utf8.ValidString(name) {
		return domain.Validation("group name contains invalid characters")
	}
	return nil
}

// ValidateSubmit validates a submission's fields. A message needs text, an
// attachment, or both.
func ValidateSubmit(in SubmitInput) error {
	if in.SenderID == "" {
		return domain.Validation("sender id is required")
	}
	if in.ChatID == "" {
		return domain.Validation("chat id is required")
	}
	if strings.TrimSpace(in.Content) == "" && in.AttachmentRef == "" {
		return domain.Validation("message needs content or an attachment")
	}
	if len(in.Content) > MaxMessageLength {
		return domain.Validation("message exceeds %d characters", MaxMessageLength)
	}
	if !utf8.ValidString(in.Content) {
		return domain.Validation("message contains invalid characters")
	}
	return nil
}

// Request/response types of the chat module's request-reply services.
// Domain errors travel in the Error field so their kind survives the hop.

// CreatePrivateRequest asks for the private chat between two users.
type CreatePrivateRequest struct {
	UserID      string `json:"user_id"`
	OtherUserID string `json:"other_user_id"`
}

// CreateGroupRequest creates a group chat.
type CreateGroupRequest struct {
	CreatorID string   `json:"creator_id"`
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

// ChatResponse carries a single chat.
type ChatResponse struct {
	Chat    *domain.Chat  `json:"chat,omitempty"`
	Created bool          `json:"created"`
	Error   *domain.Error `json:"error,omitempty"`
}

// ListChatsRequest lists a user's chats.
type ListChatsRequest struct {
	UserID string `json:"user_id"`
}

// ListChatsResponse carries a user's chats.
type ListChatsResponse struct {
	Chats []domain.Chat `json:"chats"`
	Error *domain.Error `json:"error,omitempty"`
}

// HistoryRequest fetches a chat's recent messages.
type HistoryRequest struct {
	UserID string `json:"user_id"`
	ChatID string `json:"chat_id"`
	Limit  int    `json:"limit"`
}

// HistoryResponse carries messages oldest first.
type HistoryResponse struct {
	ChatID   string           `json:"chat_id"`
	Messages []domain.Message `json:"messages"`
	Error    *domain.Error    `json:"error,omitempty"`
}

// SubmitResponse carries the stored message.
type SubmitResponse struct {
	Message    *domain.Message `json:"message,omitempty"`
	Recipients int             `json:"recipients"`
	Error      *domain.Error   `json:"error,omitempty"`
}

// MembershipRequest checks chat membership.
type MembershipRequest struct {
	ChatID string `json:"chat_id"`
	UserID string `json:"user_id"`
}

// MembershipResponse is empty on success.
type MembershipResponse struct {
	Error *domain.Error `json:"error,omitempty"`
}

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	Message    *domain.Message
	Recipients int
	StoredAt   time.Time
}
