package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	domain "github.com/example/realtime-chat/domain/chat"
)

// Repository is the persistence adapter for users, chats and messages.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a repository over db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB returns the underlying gorm handle.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// Users

// CreateUser inserts a user. A duplicate email is reported as a validation error.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	err := r.db.WithContext(ctx).Create(user).Error
	if err == nil {
		return nil
	}
	if _, getErr := r.FindUserByEmail(ctx, user.Email); getErr == nil {
		return domain.Validation("email %s is already registered", user.Email)
	}
	return fmt.Errorf("failed to create user: %w", err)
}

// FindUserByID returns the user with the given id.
func (r *Repository) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "user %s", id)
	}
	return &user, nil
}

// FindUserByEmail returns the user registered with email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, notFound(err, "user with email %s", email)
	}
	return &user, nil
}

// ListUsers returns all users ordered by username.
func (r *Repository) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	if err := r.db.WithContext(ctx).Order("username ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// MissingUsers returns the ids in ids that do not exist.
func (r *Repository) MissingUsers(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var found []string
	if err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id IN ?", ids).
		Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("failed to look up users: %w", err)
	}

	exists := make(map[string]bool, len(found))
	for _, id := range found {
		exists[id] = true
	}
	var missing []string
	for _, id := range ids {
		if !exists[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// SetOnline records the user's presence flag.
func (r *Repository) SetOnline(ctx context.Context, userID string, online bool) error {
	if err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("id = ?", userID).
		Update("online", online).Error; err != nil {
		return fmt.Errorf("failed to update presence: %w", err)
	}
	return nil
}

// ResetPresence marks every user offline. Used at startup, when no
// connection can be live.
func (r *Repository) ResetPresence(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Model(&domain.User{}).
		Where("online = ?", true).
		Update("online", false).Error; err != nil {
		return fmt.Errorf("failed to reset presence: %w", err)
	}
	return nil
}

// Chats

// CreateChat inserts a chat together with its members.
func (r *Repository) CreateChat(ctx context.Context, c *domain.Chat) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("failed to create chat: %w", err)
	}
	return nil
}

// CreatePrivateChat inserts a private chat, or returns the existing chat with
// the same pair key when the insert loses a race. The bool reports whether c
// was inserted.
func (r *Repository) CreatePrivateChat(ctx context.Context, c *domain.Chat) (*domain.Chat, bool, error) {
	if c.PairKey == nil || *c.PairKey == "" {
		return nil, false, errors.New("private chat requires a pair key")
	}

	err := r.db.WithContext(ctx).Create(c).Error
	if err == nil {
		return c, true, nil
	}

	existing, getErr := r.FindChatByPairKey(ctx, *c.PairKey)
	if getErr == nil {
		return existing, false, nil
	}
	if errors.Is(getErr, domain.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to create chat: %w", err)
	}
	return nil, false, getErr
}

// FindChat returns a chat with its members.
func (r *Repository) FindChat(ctx context.Context, id string) (*domain.Chat, error) {
	var c domain.Chat
	if err := r.db.WithContext(ctx).
		Preload("Members").
		First(&c, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "chat %s", id)
	}
	return &c, nil
}

// FindChatByPairKey returns the private chat for a pair key.
func (r *Repository) FindChatByPairKey(ctx context.Context, pairKey string) (*domain.Chat, error) {
	var c domain.Chat
	if err := r.db.WithContext(ctx).
		Preload("Members").
		First(&c, "pair_key = ?", pairKey).Error; err != nil {
		return nil, notFound(err, "chat for pair %s", pairKey)
	}
	return &c, nil
}

// ChatsForUser returns the chats userID belongs to, most recently active
// first, with members and the latest message loaded.
func (r *Repository) ChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error) {
	var chats []domain.Chat
	if err := r.db.WithContext(ctx).
		Joins("JOIN chat_members cm ON cm.chat_id = chats.id AND cm.user_id = ?", userID).
		Preload("Members.User").
		Preload("LatestMessage").
		Order("COALESCE(chats.latest_message_at, chats.created_at) DESC").
		Order("chats.id ASC").
		Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	return chats, nil
}

// Messages

// LastMessage returns the sequence number and timestamp of the newest message
// in a chat, or zero values for an empty chat.
func (r *Repository) LastMessage(ctx context.Context, chatID string) (int64, time.Time, error) {
	var msgs []domain.Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("seq DESC").
		Limit(1).
		Find(&msgs).Error; err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to load last message: %w", err)
	}
	if len(msgs) == 0 {
		return 0, time.Time{}, nil
	}
	return msgs[0].Seq, msgs[0].Timestamp, nil
}

// AppendMessage stores msg and advances the chat's latest-message pointer in
// one transaction. The pointer only moves forward in sequence order.
func (r *Repository) AppendMessage(ctx context.Context, msg *domain.Message) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}
		if err := tx.Model(&domain.Chat{}).
			Where("id = ? AND latest_message_seq < ?", msg.ChatID, msg.Seq).
			Updates(map[string]any{
				"latest_message_id":  msg.ID,
				"latest_message_seq": msg.Seq,
				"latest_message_at":  msg.Timestamp,
			}).Error; err != nil {
			return fmt.Errorf("failed to update latest message: %w", err)
		}
		return nil
	})
}

// Messages returns up to limit of the newest messages in a chat, oldest first.
func (r *Repository) Messages(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var msgs []domain.Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("seq DESC").
		Limit(limit).
		Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// Ping checks the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NotFound(format, args...)
	}
	return fmt.Errorf("query failed: %w", err)
}
