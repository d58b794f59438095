package session

import (
	"context"
	"errors"
	"sort"
	"testing"

	domain "github.com/example/realtime-chat/domain/chat"
)

type allowAll struct{}

func (allowAll) CheckMembership(context.Context, string, string) error { return nil }

// fakeMembership knows chat -> members.
type fakeMembership map[string][]string

func (f fakeMembership) CheckMembership(_ context.Context, chatID, userID string) error {
	members, ok := f[chatID]
	if !ok {
		return domain.NotFound("chat %s", chatID)
	}
	for _, m := range members {
		if m == userID {
			return nil
		}
	}
	return domain.NotAMember("user %s in chat %s", userID, chatID)
}

func joinedConn(t *testing.T, r *Registry, userID string) string {
	t.Helper()
	conn := r.Connect()
	if err := r.BindUser(conn, userID); err != nil {
		t.Fatalf("BindUser() unexpected error: %v", err)
	}
	return conn
}

func TestRooms_Subscribe(t *testing.T) {
	r := NewRegistry(nil)
	rooms := NewRooms(r, fakeMembership{"c1": {"alice", "bob"}})
	ctx := context.Background()

	alice := joinedConn(t, r, "alice")
	carol := joinedConn(t, r, "carol")
	unbound := r.Connect()

	tests := []struct {
		name   string
		connID string
		chatID string
		want   error
	}{
		{"member", alice, "c1", nil},
		{"resubscribe is no-op", alice, "c1", nil},
		{"not a member", carol, "c1", domain.ErrNotAMember},
		{"unbound connection", unbound, "c1", domain.ErrNotAMember},
		{"unknown chat", alice, "c404", domain.ErrNotFound},
		{"unknown connection", "ghost", "c1", domain.ErrNotFound},
		{"empty chat id", alice, "", domain.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := rooms.Subscribe(ctx, tt.connID, tt.chatID)
			if tt.want == nil && err != nil {
				t.Fatalf("Subscribe() unexpected error: %v", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.want)
			}
		})
	}

	subs := rooms.Subscribers("c1")
	if len(subs) != 1 || subs[0] != alice {
		t.Errorf("Subscribers() = %v, want [%s]", subs, alice)
	}
}

func TestRooms_SubscribersSnapshot(t *testing.T) {
	r := NewRegistry(nil)
	rooms := NewRooms(r, allowAll{})
	ctx := context.Background()

	a := joinedConn(t, r, "alice")
	b := joinedConn(t, r, "bob")
	_ = rooms.Subscribe(ctx, a, "c1")
	_ = rooms.Subscribe(ctx, b, "c1")
	_ = rooms.Subscribe(ctx, a, "c2")

	snapshot := rooms.Subscribers("c1")
	rooms.UnsubscribeAll(b)

	if len(snapshot) != 2 {
		t.Errorf("snapshot changed after unsubscribe: %v", snapshot)
	}
	got := rooms.Subscribers("c1")
	if len(got) != 1 || got[0] != a {
		t.Errorf("Subscribers() = %v, want [%s]", got, a)
	}

	chats := rooms.SubscriptionsOf(a)
	sort.Strings(chats)
	if len(chats) != 2 || chats[0] != "c1" || chats[1] != "c2" {
		t.Errorf("SubscriptionsOf() = %v, want [c1 c2]", chats)
	}
}

// closingMembership disconnects the connection while the lookup is in flight.
type closingMembership struct {
	registry *Registry
	connID   string
}

func (m closingMembership) CheckMembership(context.Context, string, string) error {
	m.registry.Disconnect(m.connID)
	return nil
}

func TestRooms_SubscribeAfterDisconnectDuringLookup(t *testing.T) {
	r := NewRegistry(nil)
	rooms := NewRooms(r, nil)

	conn := joinedConn(t, r, "alice")
	rooms.SetMembership(closingMembership{registry: r, connID: conn})

	err := rooms.Subscribe(context.Background(), conn, "c1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Subscribe() error = %v, want not_found", err)
	}
	if subs := rooms.Subscribers("c1"); len(subs) != 0 {
		t.Errorf("closed connection left subscribed: %v", subs)
	}
}
