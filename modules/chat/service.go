package chat

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/singleflight"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/events"
	"github.com/example/realtime-chat/metrics"
)

const maxPersistAttempts = 3

// Repository is the storage the chat service needs.
type Repository interface {
	MissingUsers(ctx context.Context, ids []string) ([]string, error)
	CreateChat(ctx context.Context, c *domain.Chat) error
	CreatePrivateChat(ctx context.Context, c *domain.Chat) (*domain.Chat, bool, error)
	FindChat(ctx context.Context, id string) (*domain.Chat, error)
	FindChatByPairKey(ctx context.Context, pairKey string) (*domain.Chat, error)
	ChatsForUser(ctx context.Context, userID string) ([]domain.Chat, error)
	LastMessage(ctx context.Context, chatID string) (int64, time.Time, error)
	AppendMessage(ctx context.Context, msg *domain.Message) error
	Messages(ctx context.Context, chatID string, limit int) ([]domain.Message, error)
}

// Fanout delivers a frame to live connections.
type Fanout interface {
	Deliver(connIDs []string, payload any) error
}

// Subscribers returns the connections currently subscribed to a chat.
type Subscribers interface {
	Subscribers(chatID string) []string
}

// AttachmentResolver checks that an attachment reference points at a stored
// object.
type AttachmentResolver interface {
	Resolve(ctx context.Context, ref string) error
}

// Notifier receives domain events after they happen.
type Notifier interface {
	MessageSent(event events.MessageSentEvent)
	ChatCreated(event events.ChatCreatedEvent)
}

// Options configures a Service.
type Options struct {
	PersistTimeout time.Duration
	HistoryLimit   int
	MaxHistory     int
	Now            func() time.Time
}

// Service implements chat creation, listing, history and the message
// pipeline.
type Service struct {
	repo        Repository
	fanout      Fanout
	subscribers Subscribers
	attachments AttachmentResolver
	notifier    Notifier

	seq     *Sequencer
	private singleflight.Group
	opts    Options
	logger  types.Logger
}

// NewService creates a chat service.
func NewService(repo Repository, opts Options, logger types.Logger) *Service {
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 5 * time.Second
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if opts.MaxHistory < opts.HistoryLimit {
		opts.MaxHistory = opts.HistoryLimit
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		repo:   repo,
		seq:    NewSequencer(opts.Now),
		opts:   opts,
		logger: logger,
	}
}

// SetFanout sets the live delivery target.
func (s *Service) SetFanout(f Fanout) { s.fanout = f }

// SetSubscribers sets the source of chat subscriptions.
func (s *Service) SetSubscribers(sub Subscribers) { s.subscribers = sub }

// SetAttachmentResolver sets the attachment lookup. Without one, every
// attachment reference is unresolved.
func (s *Service) SetAttachmentResolver(r AttachmentResolver) { s.attachments = r }

// SetNotifier sets the domain event sink.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// CreatePrivate returns the private chat between userID and otherID,
// creating it on first use. Concurrent calls for the same pair return the
// same chat. The bool reports whether this call created it.
func (s *Service) CreatePrivate(ctx context.Context, userID, otherID string) (*domain.Chat, bool, error) {
	if userID == "" || otherID == "" {
		return nil, false, domain.Validation("both users are required")
	}
	if userID == otherID {
		return nil, false, domain.Validation("a private chat needs two different users")
	}
	if err := s.requireUsers(ctx, []string{userID, otherID}); err != nil {
		return nil, false, err
	}

	key := domain.PairKeyFor(userID, otherID)
	type result struct {
		chat    *domain.Chat
		created bool
	}
	// The flight outlives any one caller: a cancelled leader must not fail
	// the callers waiting on it.
	fctx := context.WithoutCancel(ctx)
	v, err, shared := s.private.Do(key, func() (any, error) {
		if existing, err := s.repo.FindChatByPairKey(fctx, key); err == nil {
			return result{chat: existing}, nil
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}

		pair := key
		c := &domain.Chat{
			ID:        uuid.New().String(),
			PairKey:   &pair,
			CreatedBy: userID,
			Members: []domain.ChatMember{
				{UserID: userID},
				{UserID: otherID},
			},
		}
		stored, created, err := s.repo.CreatePrivateChat(fctx, c)
		if err != nil {
			return nil, err
		}
		if created {
			metrics.ChatsCreated.WithLabelValues("private").Inc()
			s.notifyChatCreated(stored)
			s.logger.Info("Private chat created", "chat_id", stored.ID, "users", key)
		}
		return result{chat: stored, created: created}, nil
	})
	if err != nil {
		return nil, false, err
	}
	r := v.(result)
	// Only the caller that ran the flight created the chat.
	return r.chat, r.created && !shared, nil
}

// CreateGroup creates a named group chat. The creator is always a member and
// the group needs at least two distinct members.
func (s *Service) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*domain.Chat, error) {
	if creatorID == "" {
		return nil, domain.Validation("creator is required")
	}
	if err := ValidateGroupName(name); err != nil {
		return nil, err
	}

	members := distinct(append([]string{creatorID}, memberIDs...))
	if len(members) < 2 {
		return nil, domain.Validation("a group needs at least 2 distinct members")
	}
	if len(members) > MaxGroupMembers {
		return nil, domain.Validation("a group can have at most %d members", MaxGroupMembers)
	}
	if err := s.requireUsers(ctx, members); err != nil {
		return nil, err
	}

	c := &domain.Chat{
		ID:        uuid.New().String(),
		IsGroup:   true,
		Name:      strings.TrimSpace(name),
		CreatedBy: creatorID,
		Members:   make([]domain.ChatMember, 0, len(members)),
	}
	for _, id := range members {
		c.Members = append(c.Members, domain.ChatMember{ChatID: c.ID, UserID: id})
	}
	if err := s.repo.CreateChat(ctx, c); err != nil {
		return nil, err
	}

	metrics.ChatsCreated.WithLabelValues("group").Inc()
	s.notifyChatCreated(c)
	s.logger.Info("Group chat created", "chat_id", c.ID, "members", len(members))
	return c, nil
}

// ListFor returns the chats userID belongs to, each with its latest message.
func (s *Service) ListFor(ctx context.Context, userID string) ([]domain.Chat, error) {
	if userID == "" {
		return nil, domain.Validation("user id is required")
	}
	chats, err := s.repo.ChatsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if chats == nil {
		chats = []domain.Chat{}
	}
	return chats, nil
}

// History returns up to limit of a chat's newest messages, oldest first.
// Only members may read it.
func (s *Service) History(ctx context.Context, userID, chatID string, limit int) ([]domain.Message, error) {
	if err := s.CheckMembership(ctx, chatID, userID); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = s.opts.HistoryLimit
	case limit > s.opts.MaxHistory:
		limit = s.opts.MaxHistory
	}
	msgs, err := s.repo.Messages(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	return msgs, nil
}

// CheckMembership returns nil when userID belongs to chatID.
func (s *Service) CheckMembership(ctx context.Context, chatID, userID string) error {
	if chatID == "" || userID == "" {
		return domain.Validation("chat id and user id are required")
	}
	c, err := s.repo.FindChat(ctx, chatID)
	if err != nil {
		return err
	}
	if !c.HasMember(userID) {
		return domain.NotAMember("user %s is not a member of chat %s", userID, chatID)
	}
	return nil
}

// Submit runs a message through the pipeline: validate, stamp, persist,
// then fan out to the chat's current subscribers. Nothing is delivered
// unless the message was stored. Messages of one chat are stamped, stored
// and delivered in order; different chats proceed independently. The
// caller's cancellation does not abort a write in progress.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	res, err := s.submit(ctx, in)
	if err != nil {
		metrics.MessagesRejected.WithLabelValues(string(domain.KindOf(err))).Inc()
		return nil, err
	}
	transport := in.Transport
	if transport == "" {
		transport = TransportREST
	}
	metrics.MessagesSubmitted.WithLabelValues(transport).Inc()
	return res, nil
}

func (s *Service) submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if err := ValidateSubmit(in); err != nil {
		return nil, err
	}
	c, err := s.repo.FindChat(ctx, in.ChatID)
	if err != nil {
		return nil, err
	}
	if !c.HasMember(in.SenderID) {
		return nil, domain.NotAMember("user %s is not a member of chat %s", in.SenderID, in.ChatID)
	}
	if in.AttachmentRef != "" {
		if err := s.resolveAttachment(ctx, in.AttachmentRef); err != nil {
			return nil, err
		}
	}

	slot := s.seq.Lock(c.ID)
	msg, err := s.persist(ctx, slot, in)
	if err != nil {
		slot.Unlock()
		s.logger.Error("Failed to persist message", "chat_id", in.ChatID, "error", err)
		return nil, err
	}

	var recipients []string
	if s.subscribers != nil {
		recipients = s.subscribers.Subscribers(c.ID)
	}
	if s.fanout != nil && len(recipients) > 0 {
		if err := s.fanout.Deliver(recipients, MessageFrame{Type: EventMessage, Message: msg}); err != nil {
			s.logger.Warn("Failed to fan out message", "chat_id", c.ID, "message_id", msg.ID, "error", err)
		}
	}
	slot.Unlock()

	if s.notifier != nil {
		s.notifier.MessageSent(events.MessageSentEvent{
			MessageID:     msg.ID,
			ChatID:        msg.ChatID,
			SenderID:      msg.SenderID,
			Content:       msg.Content,
			AttachmentRef: msg.AttachmentRef,
			Seq:           msg.Seq,
			Timestamp:     msg.Timestamp,
			Recipients:    c.MemberIDs(),
		})
	}

	s.logger.Debug("Message stored", "chat_id", c.ID, "message_id", msg.ID, "seq", msg.Seq, "recipients", len(recipients))
	return &SubmitResult{Message: msg, Recipients: len(recipients), StoredAt: msg.Timestamp}, nil
}

// persist stores the next message of the slot's chat. A write that lost
// to another process writing the same sequence number is retried at the
// new position.
func (s *Service) persist(ctx context.Context, slot *Slot, in SubmitInput) (*domain.Message, error) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.PersistTimeout)
	defer cancel()

	for attempt := 1; ; attempt++ {
		if !slot.Loaded() {
			seq, ts, err := s.repo.LastMessage(pctx, in.ChatID)
			if err != nil {
				return nil, domain.NewError(domain.KindPersistenceFailed, "failed to read chat position: %v", err)
			}
			slot.Load(seq, ts)
		}

		seq, ts := slot.Next()
		msg := &domain.Message{
			ID:            ulid.Make().String(),
			ChatID:        in.ChatID,
			SenderID:      in.SenderID,
			Content:       in.Content,
			AttachmentRef: in.AttachmentRef,
			Seq:           seq,
			Timestamp:     ts,
		}

		start := time.Now()
		err := s.repo.AppendMessage(pctx, msg)
		metrics.PersistDuration.Observe(time.Since(start).Seconds())
		if err == nil {
			slot.Commit(seq, ts)
			return msg, nil
		}

		slot.Invalidate()
		if attempt >= maxPersistAttempts {
			return nil, domain.NewError(domain.KindPersistenceFailed, "failed to store message: %v", err)
		}
		stored, storedTS, lerr := s.repo.LastMessage(pctx, in.ChatID)
		if lerr != nil || stored < seq {
			return nil, domain.NewError(domain.KindPersistenceFailed, "failed to store message: %v", err)
		}
		slot.Load(stored, storedTS)
		s.logger.Warn("Sequence conflict, retrying", "chat_id", in.ChatID, "seq", seq, "attempt", attempt)
	}
}

func (s *Service) resolveAttachment(ctx context.Context, ref string) error {
	if s.attachments == nil {
		return domain.NewError(domain.KindAttachmentUnresolved, "attachments are not available")
	}
	if err := s.attachments.Resolve(ctx, ref); err != nil {
		if domain.KindOf(err) == domain.KindAttachmentUnresolved {
			return err
		}
		return domain.NewError(domain.KindAttachmentUnresolved, "attachment %s: %v", ref, err)
	}
	return nil
}

func (s *Service) requireUsers(ctx context.Context, ids []string) error {
	missing, err := s.repo.MissingUsers(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return domain.NotFound("unknown users: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (s *Service) notifyChatCreated(c *domain.Chat) {
	if s.notifier == nil {
		return
	}
	s.notifier.ChatCreated(events.ChatCreatedEvent{
		ChatID:    c.ID,
		IsGroup:   c.IsGroup,
		Name:      c.Name,
		Members:   c.MemberIDs(),
		CreatedBy: c.CreatedBy,
		Timestamp: c.CreatedAt,
	})
}

func distinct(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
