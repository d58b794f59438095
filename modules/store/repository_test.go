package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/realtime-chat/config"
	domain "github.com/example/realtime-chat/domain/chat"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("Open() unexpected error: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() unexpected error: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return NewRepository(db)
}

func createUser(t *testing.T, repo *Repository, name string) *domain.User {
	t.Helper()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     name,
		Email:        name + "@example.com",
		PasswordHash: "x",
	}
	if err := repo.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser(%s) unexpected error: %v", name, err)
	}
	return user
}

func privateChat(a, b string) *domain.Chat {
	key := domain.PairKeyFor(a, b)
	return &domain.Chat{
		ID:      uuid.NewString(),
		PairKey: &key,
		Members: []domain.ChatMember{{UserID: a}, {UserID: b}},
	}
}

func TestRepository_CreateUser_DuplicateEmail(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	createUser(t, repo, "alice")

	dup := &domain.User{ID: uuid.NewString(), Username: "alice2", Email: "alice@example.com", PasswordHash: "x"}
	err := repo.CreateUser(ctx, dup)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateUser() error = %v, want validation_error", err)
	}
}

func TestRepository_FindUser_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.FindUserByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("FindUserByID() error = %v, want not_found", err)
	}
}

func TestRepository_MissingUsers(t *testing.T) {
	repo := setupTestRepo(t)
	alice := createUser(t, repo, "alice")

	missing, err := repo.MissingUsers(context.Background(), []string{alice.ID, "ghost"})
	if err != nil {
		t.Fatalf("MissingUsers() unexpected error: %v", err)
	}
	if len(missing) != 1 || missing[0] != "ghost" {
		t.Errorf("MissingUsers() = %v, want [ghost]", missing)
	}
}

func TestRepository_SetOnline(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	alice := createUser(t, repo, "alice")

	if err := repo.SetOnline(ctx, alice.ID, true); err != nil {
		t.Fatalf("SetOnline() unexpected error: %v", err)
	}
	got, err := repo.FindUserByID(ctx, alice.ID)
	if err != nil {
		t.Fatalf("FindUserByID() unexpected error: %v", err)
	}
	if !got.Online {
		t.Error("expected user to be online")
	}
}

func TestRepository_CreatePrivateChat_ReturnsExisting(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	alice := createUser(t, repo, "alice")
	bob := createUser(t, repo, "bob")

	first, created, err := repo.CreatePrivateChat(ctx, privateChat(alice.ID, bob.ID))
	if err != nil || !created {
		t.Fatalf("CreatePrivateChat() = created %v, err %v", created, err)
	}

	second, created, err := repo.CreatePrivateChat(ctx, privateChat(bob.ID, alice.ID))
	if err != nil {
		t.Fatalf("CreatePrivateChat() second call unexpected error: %v", err)
	}
	if created {
		t.Error("second CreatePrivateChat() should not insert")
	}
	if second.ID != first.ID {
		t.Errorf("second chat id = %s, want %s", second.ID, first.ID)
	}
	if len(second.Members) != 2 {
		t.Errorf("members = %d, want 2", len(second.Members))
	}
}

func TestRepository_AppendMessage_LatestPointer(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	alice := createUser(t, repo, "alice")
	bob := createUser(t, repo, "bob")
	c, _, err := repo.CreatePrivateChat(ctx, privateChat(alice.ID, bob.ID))
	if err != nil {
		t.Fatalf("CreatePrivateChat() unexpected error: %v", err)
	}

	base := time.Now().UTC().Truncate(time.Microsecond)
	second := &domain.Message{ID: "01B", ChatID: c.ID, SenderID: alice.ID, Content: "second", Seq: 2, Timestamp: base.Add(time.Microsecond)}
	first := &domain.Message{ID: "01A", ChatID: c.ID, SenderID: bob.ID, Content: "first", Seq: 1, Timestamp: base}

	// A late writer with a lower sequence must not move the pointer back.
	if err := repo.AppendMessage(ctx, second); err != nil {
		t.Fatalf("AppendMessage(second) unexpected error: %v", err)
	}
	if err := repo.AppendMessage(ctx, first); err != nil {
		t.Fatalf("AppendMessage(first) unexpected error: %v", err)
	}

	got, err := repo.FindChat(ctx, c.ID)
	if err != nil {
		t.Fatalf("FindChat() unexpected error: %v", err)
	}
	if got.LatestMessageID == nil || *got.LatestMessageID != "01B" {
		t.Errorf("LatestMessageID = %v, want 01B", got.LatestMessageID)
	}

	seq, ts, err := repo.LastMessage(ctx, c.ID)
	if err != nil {
		t.Fatalf("LastMessage() unexpected error: %v", err)
	}
	if seq != 2 || !ts.Equal(second.Timestamp) {
		t.Errorf("LastMessage() = (%d, %v), want (2, %v)", seq, ts, second.Timestamp)
	}
}

func TestRepository_AppendMessage_DuplicateSeqRollsBack(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	alice := createUser(t, repo, "alice")
	bob := createUser(t, repo, "bob")
	c, _, _ := repo.CreatePrivateChat(ctx, privateChat(alice.ID, bob.ID))

	now := time.Now().UTC()
	if err := repo.AppendMessage(ctx, &domain.Message{ID: "01A", ChatID: c.ID, SenderID: alice.ID, Content: "a", Seq: 1, Timestamp: now}); err != nil {
		t.Fatalf("AppendMessage() unexpected error: %v", err)
	}
	err := repo.AppendMessage(ctx, &domain.Message{ID: "01B", ChatID: c.ID, SenderID: bob.ID, Content: "b", Seq: 1, Timestamp: now})
	if err == nil {
		t.Fatal("AppendMessage() with duplicate seq should fail")
	}

	msgs, err := repo.Messages(ctx, c.ID, 10)
	if err != nil {
		t.Fatalf("Messages() unexpected error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "01A" {
		t.Errorf("Messages() = %+v, want only 01A", msgs)
	}
}

func TestRepository_Messages_OrderAndLimit(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	alice := createUser(t, repo, "alice")
	bob := createUser(t, repo, "bob")
	c, _, _ := repo.CreatePrivateChat(ctx, privateChat(alice.ID, bob.ID))

	base := time.Now().UTC().Truncate(time.Microsecond)
	ids := []string{"01A", "01B", "01C", "01D"}
	for i, id := range ids {
		msg := &domain.Message{ID: id, ChatID: c.ID, SenderID: alice.ID, Content: id, Seq: int64(i + 1), Timestamp: base.Add(time.Duration(i) * time.Microsecond)}
		if err := repo.AppendMessage(ctx, msg); err != nil {
			t.Fatalf("AppendMessage(%s) unexpected error: %v", id, err)
		}
	}

	msgs, err := repo.Messages(ctx, c.ID, 3)
	if err != nil {
		t.Fatalf("Messages() unexpected error: %v", err)
	}
	want := []string{"01B", "01C", "01D"}
	if len(msgs) != len(want) {
		t.Fatalf("Messages() returned %d, want %d", len(msgs), len(want))
	}
	for i := range want {
		if msgs[i].ID != want[i] {
			t.Errorf("msgs[%d] = %s, want %s", i, msgs[i].ID, want[i])
		}
	}
}

func TestRepository_ChatsForUser(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	alice := createUser(t, repo, "alice")
	bob := createUser(t, repo, "bob")
	carol := createUser(t, repo, "carol")

	ab, _, _ := repo.CreatePrivateChat(ctx, privateChat(alice.ID, bob.ID))
	bc, _, _ := repo.CreatePrivateChat(ctx, privateChat(bob.ID, carol.ID))
	group := &domain.Chat{
		ID:      uuid.NewString(),
		IsGroup: true,
		Name:    "team",
		Members: []domain.ChatMember{{UserID: alice.ID}, {UserID: bob.ID}, {UserID: carol.ID}},
	}
	if err := repo.CreateChat(ctx, group); err != nil {
		t.Fatalf("CreateChat() unexpected error: %v", err)
	}

	later := time.Now().UTC().Add(time.Hour)
	if err := repo.AppendMessage(ctx, &domain.Message{ID: "01A", ChatID: ab.ID, SenderID: bob.ID, Content: "hi", Seq: 1, Timestamp: later}); err != nil {
		t.Fatalf("AppendMessage() unexpected error: %v", err)
	}

	chats, err := repo.ChatsForUser(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ChatsForUser() unexpected error: %v", err)
	}
	if len(chats) != 2 {
		t.Fatalf("ChatsForUser() returned %d chats, want 2", len(chats))
	}
	if chats[0].ID != ab.ID {
		t.Errorf("first chat = %s, want most recently active %s", chats[0].ID, ab.ID)
	}
	if chats[0].LatestMessage == nil || chats[0].LatestMessage.Content != "hi" {
		t.Errorf("LatestMessage = %+v, want hi", chats[0].LatestMessage)
	}
	for _, c := range chats {
		if c.ID == bc.ID {
			t.Error("alice should not see bob/carol chat")
		}
		if len(c.Members) == 0 || c.Members[0].User == nil {
			t.Errorf("chat %s members not preloaded", c.ID)
		}
	}
}
