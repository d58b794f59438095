package session

import (
	"sync"

	"github.com/google/uuid"

	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/metrics"
)

// PresenceSink receives presence transitions. Calls arrive in the order the
// registry observed them and must not block.
type PresenceSink interface {
	Transition(userID string, online bool)
}

type connection struct {
	userID string
}

// Registry maps live connections to users and refcounts each user's bound
// connections. A user is online while the count is above zero.
type Registry struct {
	mu       sync.RWMutex
	conns    map[string]*connection
	refs     map[string]int
	presence PresenceSink
	rooms    *Rooms
}

// NewRegistry creates an empty registry reporting transitions to presence.
func NewRegistry(presence PresenceSink) *Registry {
	return &Registry{
		conns:    make(map[string]*connection),
		refs:     make(map[string]int),
		presence: presence,
	}
}

// Connect allocates a connection with no bound user.
func (r *Registry) Connect() string {
	id := uuid.New().String()

	r.mu.Lock()
	r.conns[id] = &connection{}
	r.mu.Unlock()

	metrics.ActiveConnections.Inc()
	return id
}

// BindUser binds a connection to userID. A connection is bound at most once;
// a second bind fails with already_bound and keeps the first binding.
func (r *Registry) BindUser(connID, userID string) error {
	if userID == "" {
		return domain.Validation("user id is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return domain.NotFound("connection %s", connID)
	}
	if c.userID != "" {
		return domain.NewError(domain.KindAlreadyBound, "connection is bound to %s", c.userID)
	}

	c.userID = userID
	r.refs[userID]++
	if r.refs[userID] == 1 && r.presence != nil {
		r.presence.Transition(userID, true)
	}
	return nil
}

// Disconnect drops a connection and its subscriptions. Unknown ids are ignored.
func (r *Registry) Disconnect(connID string) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)
	if c.userID != "" {
		r.refs[c.userID]--
		if r.refs[c.userID] <= 0 {
			delete(r.refs, c.userID)
			if r.presence != nil {
				r.presence.Transition(c.userID, false)
			}
		}
	}
	rooms := r.rooms
	r.mu.Unlock()

	metrics.ActiveConnections.Dec()
	if rooms != nil {
		rooms.UnsubscribeAll(connID)
	}
}

// UserOf returns the user bound to connID. ok is false for unknown
// connections; an unbound connection returns "" and true.
func (r *Registry) UserOf(connID string) (userID string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return "", false
	}
	return c.userID, true
}

// IsOnline reports whether userID has at least one bound connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.refs[userID] > 0
}

// ConnectionCount returns the number of live connections.
func (r *Registry) ConnectionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// OnlineUsers returns the ids of users with a bound connection.
func (r *Registry) OnlineUsers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	users := make([]string, 0, len(r.refs))
	for id := range r.refs {
		users = append(users, id)
	}
	return users
}

// ConnectionsOf returns the connections bound to any of userIDs.
func (r *Registry) ConnectionsOf(userIDs []string) []string {
	want := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []string
	for connID, c := range r.conns {
		if c.userID != "" && want[c.userID] {
			ids = append(ids, connID)
		}
	}
	return ids
}

func (r *Registry) isLive(connID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[connID]
	return ok
}
