package chat

import (
	"sort"
	"strings"
	"time"
)

// User is a registered account. Online mirrors the presence tracker.
type User struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	Username     string    `json:"username" gorm:"size:50;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string    `json:"-" gorm:"not null"`
	Online       bool      `json:"online" gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the table name for User.
func (User) TableName() string {
	return "users"
}

// Chat is either a private chat between two users or a named group.
//
// PairKey is set only for private chats and is unique, so two concurrent
// creations for the same pair converge on one row.
type Chat struct {
	ID               string       `json:"id" gorm:"primaryKey;size:36"`
	IsGroup          bool         `json:"is_group" gorm:"not null;default:false"`
	Name             string       `json:"name,omitempty" gorm:"size:100"`
	PairKey          *string      `json:"-" gorm:"uniqueIndex;size:80"`
	CreatedBy        string       `json:"created_by,omitempty" gorm:"size:36"`
	Members          []ChatMember `json:"members" gorm:"foreignKey:ChatID"`
	LatestMessageID  *string      `json:"latest_message_id,omitempty" gorm:"size:26"`
	LatestMessageSeq int64        `json:"-" gorm:"not null;default:0"`
	LatestMessageAt  *time.Time   `json:"latest_message_at,omitempty" gorm:"index"`
	LatestMessage    *Message     `json:"latest_message,omitempty" gorm:"foreignKey:LatestMessageID;references:ID"`
	CreatedAt        time.Time    `json:"created_at"`
}

// TableName returns the table name for Chat.
func (Chat) TableName() string {
	return "chats"
}

// MemberIDs returns the ids of the chat's members.
func (c *Chat) MemberIDs() []string {
	ids := make([]string, 0, len(c.Members))
	for _, m := range c.Members {
		ids = append(ids, m.UserID)
	}
	return ids
}

// HasMember reports whether userID is a member of the chat.
func (c *Chat) HasMember(userID string) bool {
	for _, m := range c.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

// ChatMember links a user to a chat. Membership is fixed at creation.
type ChatMember struct {
	ChatID string `json:"chat_id" gorm:"primaryKey;size:36"`
	UserID string `json:"user_id" gorm:"primaryKey;size:36;index"`
	User   *User  `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
}

// TableName returns the table name for ChatMember.
func (ChatMember) TableName() string {
	return "chat_members"
}

// Message is an immutable chat message. Seq is the per-chat order and is
// unique within a chat; Timestamp is strictly increasing with Seq.
type Message struct {
	ID            string    `json:"id" gorm:"primaryKey;size:26"`
	ChatID        string    `json:"chat_id" gorm:"size:36;not null;uniqueIndex:idx_messages_chat_seq,priority:1"`
	SenderID      string    `json:"sender_id" gorm:"size:36;not null"`
	Content       string    `json:"content"`
	AttachmentRef string    `json:"attachment_ref,omitempty" gorm:"size:255"`
	Seq           int64     `json:"seq" gorm:"not null;uniqueIndex:idx_messages_chat_seq,priority:2"`
	Timestamp     time.Time `json:"timestamp" gorm:"not null"`
}

// TableName returns the table name for Message.
func (Message) TableName() string {
	return "messages"
}

// PairKeyFor returns the canonical key of a private chat between two users.
// The key is order independent.
func PairKeyFor(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, ":")
}
