package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessageSentEvent is emitted after a message has been persisted and fanned
// out. Recipients lists every member of the chat.
type MessageSentEvent struct {
	MessageID     string    `json:"message_id"`
	ChatID        string    `json:"chat_id"`
	SenderID      string    `json:"sender_id"`
	Content       string    `json:"content"`
	AttachmentRef string    `json:"attachment_ref,omitempty"`
	Seq           int64     `json:"seq"`
	Timestamp     time.Time `json:"timestamp"`
	Recipients    []string  `json:"recipients"`
}

// PresenceChangedEvent is emitted when a user goes online or offline.
type PresenceChangedEvent struct {
	UserID    string    `json:"user_id"`
	Online    bool      `json:"online"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatCreatedEvent is emitted when a new chat is stored.
type ChatCreatedEvent struct {
	ChatID    string    `json:"chat_id"`
	IsGroup   bool      `json:"is_group"`
	Name      string    `json:"name,omitempty"`
	Members   []string  `json:"members"`
	CreatedBy string    `json:"created_by,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"chat",
		"MessageSent",
		"v1",
	)

	PresenceChangedV1 = helper.EventDefinition[PresenceChangedEvent](
		"session",
		"PresenceChanged",
		"v1",
	)

	ChatCreatedV1 = helper.EventDefinition[ChatCreatedEvent](
		"chat",
		"ChatCreated",
		"v1",
	)
)
