package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/realtime-chat/metrics"
)

// EventOnlineStatus is the frame type of presence broadcasts.
const EventOnlineStatus = "online-status"

const sideEffectTimeout = 5 * time.Second

// Change is a single presence transition.
type Change struct {
	UserID string    `json:"user_id"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

// StatusFrame is sent to every live connection on a transition.
type StatusFrame struct {
	Type   string `json:"type"`
	UserID string `json:"user_id"`
	Online bool   `json:"online"`
}

// Broadcaster delivers a payload to every live connection.
type Broadcaster interface {
	BroadcastAll(payload any) error
}

// PresenceStore persists the online flag.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID string, online bool) error
}

// Mirror publishes transitions to an external store.
type Mirror interface {
	Publish(ctx context.Context, change Change) error
}

// TrackerDeps are the collaborators notified of each transition. Any may be nil.
type TrackerDeps struct {
	Broadcaster Broadcaster
	Store       PresenceStore
	Mirror      Mirror
	Notify      func(Change)
}

// Tracker is the per-user Offline/Online state machine. Transition records
// the new state synchronously and queues the broadcast and side effects for a
// single worker, so they run in transition order without blocking callers.
type Tracker struct {
	mu      sync.Mutex
	state   map[string]bool
	pending []Change
	wake    chan struct{}
	done    chan struct{}
	deps    TrackerDeps
	logger  types.Logger
}

// NewTracker creates a tracker. Call Run to start delivering transitions.
func NewTracker(deps TrackerDeps, logger types.Logger) *Tracker {
	return &Tracker{
		state:  make(map[string]bool),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		deps:   deps,
		logger: logger,
	}
}

// SetDeps replaces the collaborators. Must be called before Run.
func (t *Tracker) SetDeps(deps TrackerDeps) {
	t.mu.Lock()
	t.deps = deps
	t.mu.Unlock()
}

// Transition moves userID to the given state. Repeating the current state
// produces no event.
func (t *Tracker) Transition(userID string, online bool) {
	t.mu.Lock()
	if t.state[userID] == online {
		t.mu.Unlock()
		return
	}
	if online {
		t.state[userID] = true
	} else {
		delete(t.state, userID)
	}
	t.pending = append(t.pending, Change{UserID: userID, Online: online, At: time.Now().UTC()})
	t.mu.Unlock()

	if online {
		metrics.OnlineUsers.Inc()
		metrics.PresenceTransitions.WithLabelValues("online").Inc()
	} else {
		metrics.OnlineUsers.Dec()
		metrics.PresenceTransitions.WithLabelValues("offline").Inc()
	}

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

// IsOnline returns the tracked state of userID.
func (t *Tracker) IsOnline(userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state[userID]
}

// Run delivers queued transitions until ctx is cancelled, then drains what
// is left.
func (t *Tracker) Run(ctx context.Context) {
	defer close(t.done)
	for {
		select {
		case <-ctx.Done():
			t.drain()
			return
		case <-t.wake:
			t.drain()
		}
	}
}

// Wait blocks until Run has returned.
func (t *Tracker) Wait() {
	<-t.done
}

func (t *Tracker) drain() {
	for {
		t.mu.Lock()
		batch := t.pending
		t.pending = nil
		deps := t.deps
		t.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, change := range batch {
			t.dispatch(deps, change)
		}
	}
}

func (t *Tracker) dispatch(deps TrackerDeps, change Change) {
	if deps.Broadcaster != nil {
		frame := StatusFrame{Type: EventOnlineStatus, UserID: change.UserID, Online: change.Online}
		if err := deps.Broadcaster.BroadcastAll(frame); err != nil {
			t.logger.Warn("Failed to broadcast presence", "user_id", change.UserID, "error", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()

	if deps.Store != nil {
		if err := deps.Store.SetOnline(ctx, change.UserID, change.Online); err != nil {
			t.logger.Warn("Failed to persist presence", "user_id", change.UserID, "error", err)
		}
	}
	if deps.Mirror != nil {
		if err := deps.Mirror.Publish(ctx, change); err != nil {
			t.logger.Warn("Failed to mirror presence", "user_id", change.UserID, "error", err)
		}
	}
	if deps.Notify != nil {
		deps.Notify(change)
	}

	t.logger.Debug("Presence changed", "user_id", change.UserID, "online", change.Online)
}
