package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"

	domain "github.com/example/realtime-chat/domain/chat"
)

// ChatPort defines the chat operations other modules use.
type ChatPort interface {
	CreatePrivate(ctx context.Context, userID, otherUserID string) (*domain.Chat, bool, error)
	CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*domain.Chat, error)
	ListFor(ctx context.Context, userID string) ([]domain.Chat, error)
	History(ctx context.Context, userID, chatID string, limit int) ([]domain.Message, error)
	Submit(ctx context.Context, in SubmitInput) (*domain.Message, error)
	CheckMembership(ctx context.Context, chatID, userID string) error
}

// ChatAdapter implements ChatPort using the service container.
type ChatAdapter struct {
	container mono.ServiceContainer
}

var _ ChatPort = (*ChatAdapter)(nil)

// NewChatAdapter creates a new ChatAdapter.
func NewChatAdapter(container mono.ServiceContainer) *ChatAdapter {
	if container == nil {
		panic("chat: ServiceContainer is nil")
	}
	return &ChatAdapter{container: container}
}

// call sends req to a chat service and decodes the reply into resp.
func call[Req, Resp any](ctx context.Context, container mono.ServiceContainer, service string, req *Req, resp *Resp) error {
	if err := helper.CallRequestReplyService(
		ctx,
		container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	); err != nil {
		return fmt.Errorf("%s request failed: %w", service, err)
	}
	return nil
}

// errOf returns nil for a nil *domain.Error, avoiding a typed-nil error.
func errOf(e *domain.Error) error {
	if e == nil {
		return nil
	}
	return e
}

// CreatePrivate returns the private chat between two users.
func (a *ChatAdapter) CreatePrivate(ctx context.Context, userID, otherUserID string) (*domain.Chat, bool, error) {
	req := CreatePrivateRequest{UserID: userID, OtherUserID: otherUserID}
	var resp ChatResponse
	if err := call(ctx, a.container, ServiceCreatePrivate, &req, &resp); err != nil {
		return nil, false, err
	}
	if err := errOf(resp.Error); err != nil {
		return nil, false, err
	}
	return resp.Chat, resp.Created, nil
}

// CreateGroup creates a group chat.
func (a *ChatAdapter) CreateGroup(ctx context.Context, creatorID, name string, memberIDs []string) (*domain.Chat, error) {
	req := CreateGroupRequest{CreatorID: creatorID, Name: name, MemberIDs: memberIDs}
	var resp ChatResponse
	if err := call(ctx, a.container, ServiceCreateGroup, &req, &resp); err != nil {
		return nil, err
	}
	if err := errOf(resp.Error); err != nil {
		return nil, err
	}
	return resp.Chat, nil
}

// ListFor returns a user's chats.
func (a *ChatAdapter) ListFor(ctx context.Context, userID string) ([]domain.Chat, error) {
	req := ListChatsRequest{UserID: userID}
	var resp ListChatsResponse
	if err := call(ctx, a.container, ServiceListChats, &req, &resp); err != nil {
		return nil, err
	}
	if err := errOf(resp.Error); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// History returns a chat's recent messages.
func (a *ChatAdapter) History(ctx context.Context, userID, chatID string, limit int) ([]domain.Message, error) {
	req := HistoryRequest{UserID: userID, ChatID: chatID, Limit: limit}
	var resp HistoryResponse
	if err := call(ctx, a.container, ServiceHistory, &req, &resp); err != nil {
		return nil, err
	}
	if err := errOf(resp.Error); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Submit sends a message through the pipeline.
func (a *ChatAdapter) Submit(ctx context.Context, in SubmitInput) (*domain.Message, error) {
	var resp SubmitResponse
	if err := call(ctx, a.container, ServiceSubmit, &in, &resp); err != nil {
		return nil, err
	}
	if err := errOf(resp.Error); err != nil {
		return nil, err
	}
	return resp.Message, nil
}

// CheckMembership returns nil when userID belongs to chatID.
func (a *ChatAdapter) CheckMembership(ctx context.Context, chatID, userID string) error {
	req := MembershipRequest{ChatID: chatID, UserID: userID}
	var resp MembershipResponse
	if err := call(ctx, a.container, ServiceCheckMembership, &req, &resp); err != nil {
		return err
	}
	return errOf(resp.Error)
}
