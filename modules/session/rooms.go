package session

import (
	"context"
	"sync"

	domain "github.com/example/realtime-chat/domain/chat"
)

// Membership answers whether a user belongs to a chat. It returns nil for a
// member, a not_found error for an unknown chat and not_a_member otherwise.
type Membership interface {
	CheckMembership(ctx context.Context, chatID, userID string) error
}

// Rooms tracks which connections receive a chat's live events.
//
// Lock order is Rooms before Registry; the registry never calls into Rooms
// while holding its own lock.
type Rooms struct {
	mu         sync.RWMutex
	subs       map[string]map[string]struct{} // chatID -> connIDs
	byConn     map[string]map[string]struct{} // connID -> chatIDs
	registry   *Registry
	membership Membership
}

// NewRooms creates a tracker bound to registry. The registry unsubscribes
// connections from it on disconnect.
func NewRooms(registry *Registry, membership Membership) *Rooms {
	rooms := &Rooms{
		subs:       make(map[string]map[string]struct{}),
		byConn:     make(map[string]map[string]struct{}),
		registry:   registry,
		membership: membership,
	}
	registry.mu.Lock()
	registry.rooms = rooms
	registry.mu.Unlock()
	return rooms
}

// SetMembership replaces the membership checker.
func (r *Rooms) SetMembership(membership Membership) {
	r.mu.Lock()
	r.membership = membership
	r.mu.Unlock()
}

func (r *Rooms) hasMembership() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.membership != nil
}

// Subscribe adds connID to chatID's subscribers. The connection's user must be
// a member of the chat. Subscribing twice is a no-op.
func (r *Rooms) Subscribe(ctx context.Context, connID, chatID string) error {
	if chatID == "" {
		return domain.Validation("chat id is required")
	}
	userID, ok := r.registry.UserOf(connID)
	if !ok {
		return domain.NotFound("connection %s", connID)
	}
	if userID == "" {
		return domain.NotAMember("connection has not joined as a user")
	}

	r.mu.RLock()
	membership := r.membership
	r.mu.RUnlock()
	if membership == nil {
		return domain.NotFound("chat %s", chatID)
	}
	// The lookup may hit storage, so it runs outside the lock.
	if err := membership.CheckMembership(ctx, chatID, userID); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// The connection may have closed during the lookup.
	if !r.registry.isLive(connID) {
		return domain.NotFound("connection %s", connID)
	}
	if r.subs[chatID] == nil {
		r.subs[chatID] = make(map[string]struct{})
	}
	r.subs[chatID][connID] = struct{}{}
	if r.byConn[connID] == nil {
		r.byConn[connID] = make(map[string]struct{})
	}
	r.byConn[connID][chatID] = struct{}{}
	return nil
}

// UnsubscribeAll removes connID from every chat.
func (r *Rooms) UnsubscribeAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for chatID := range r.byConn[connID] {
		delete(r.subs[chatID], connID)
		if len(r.subs[chatID]) == 0 {
			delete(r.subs, chatID)
		}
	}
	delete(r.byConn, connID)
}

// Subscribers returns a snapshot of chatID's subscribed connections.
func (r *Rooms) Subscribers(chatID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.subs[chatID]))
	for id := range r.subs[chatID] {
		ids = append(ids, id)
	}
	return ids
}

// SubscriptionsOf returns the chats connID is subscribed to.
func (r *Rooms) SubscriptionsOf(connID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.byConn[connID]))
	for id := range r.byConn[connID] {
		ids = append(ids, id)
	}
	return ids
}

// ChatCount returns the number of chats with at least one subscriber.
func (r *Rooms) ChatCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
