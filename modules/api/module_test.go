package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/realtime-chat/config"
	domain "github.com/example/realtime-chat/domain/chat"
	"github.com/example/realtime-chat/logging"
	"github.com/example/realtime-chat/modules/attachment"
	"github.com/example/realtime-chat/modules/auth"
	"github.com/example/realtime-chat/modules/broadcast"
	"github.com/example/realtime-chat/modules/chat"
	"github.com/example/realtime-chat/modules/session"
)

const testSecret = "test-secret"

type fakeChat struct {
	mu        sync.Mutex
	submitted []chat.SubmitInput

	createPrivate func(userID, otherID string) (*domain.Chat, bool, error)
	createGroup   func(creatorID, name string, members []string) (*domain.Chat, error)
	history       func(userID, chatID string, limit int) ([]domain.Message, error)
	submit        func(in chat.SubmitInput) (*domain.Message, error)
	members       map[string][]string
}

func (f *fakeChat) CreatePrivate(_ context.Context, userID, otherID string) (*domain.Chat, bool, error) {
	return f.createPrivate(userID, otherID)
}

func (f *fakeChat) CreateGroup(_ context.Context, creatorID, name string, members []string) (*domain.Chat, error) {
	return f.createGroup(creatorID, name, members)
}

func (f *fakeChat) ListFor(_ context.Context, userID string) ([]domain.Chat, error) {
	var out []domain.Chat
	for chatID, members := range f.members {
		for _, m := range members {
			if m == userID {
				out = append(out, domain.Chat{ID: chatID})
			}
		}
	}
	return out, nil
}

func (f *fakeChat) History(_ context.Context, userID, chatID string, limit int) ([]domain.Message, error) {
	return f.history(userID, chatID, limit)
}

func (f *fakeChat) Submit(_ context.Context, in chat.SubmitInput) (*domain.Message, error) {
	f.mu.Lock()
	f.submitted = append(f.submitted, in)
	f.mu.Unlock()
	if f.submit != nil {
		return f.submit(in)
	}
	return &domain.Message{ID: "m1", ChatID: in.ChatID, SenderID: in.SenderID, Content: in.Content, Seq: 1}, nil
}

func (f *fakeChat) CheckMembership(_ context.Context, chatID, userID string) error {
	members, ok := f.members[chatID]
	if !ok {
		return domain.NotFound("chat %s", chatID)
	}
	for _, m := range members {
		if m == userID {
			return nil
		}
	}
	return domain.NotAMember("user %s is not a member of chat %s", userID, chatID)
}

// fakePipeline runs submissions through fakeChat.
type fakePipeline struct {
	chat *fakeChat
}

func (p fakePipeline) Submit(ctx context.Context, in chat.SubmitInput) (*chat.SubmitResult, error) {
	msg, err := p.chat.Submit(ctx, in)
	if err != nil {
		return nil, err
	}
	return &chat.SubmitResult{Message: msg, StoredAt: msg.Timestamp}, nil
}

func (f *fakeChat) submissions() []chat.SubmitInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]chat.SubmitInput(nil), f.submitted...)
}

type fakeAuth struct {
	users []domain.User
}

func (f *fakeAuth) Register(_ context.Context, username, email, _ string) (*auth.Session, error) {
	if email == "taken@example.com" {
		return nil, domain.Validation("email already registered")
	}
	return &auth.Session{Token: "tok", ExpiresIn: 3600, User: &domain.User{ID: "new", Username: username, Email: email}}, nil
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*auth.Session, error) {
	if email != "alice@example.com" || password != "secret1" {
		return nil, auth.ErrInvalidCredentials
	}
	return &auth.Session{Token: "tok", ExpiresIn: 3600, User: &domain.User{ID: "alice", Email: email}}, nil
}

func (f *fakeAuth) ListUsers(context.Context) ([]domain.User, error) {
	return f.users, nil
}

type fakeAttachments struct {
	files map[string][]byte
}

func (f *fakeAttachments) Upload(_ context.Context, filename string, data []byte, contentType string) (*attachment.Attachment, error) {
	ref := "0190a3e2-0000-7000-8000-000000000001/" + filename
	f.files[ref] = data
	return &attachment.Attachment{Ref: ref, Name: filename, Size: int64(len(data)), ContentType: contentType}, nil
}

func (f *fakeAttachments) Open(_ context.Context, ref string) ([]byte, *attachment.Attachment, error) {
	data, ok := f.files[ref]
	if !ok {
		return nil, nil, domain.NotFound("attachment %s", ref)
	}
	return data, &attachment.Attachment{Ref: ref, Name: "notes.txt", ContentType: "text/plain"}, nil
}

type fixture struct {
	module   *APIModule
	chat     *fakeChat
	auth     *fakeAuth
	files    *fakeAttachments
	registry *session.Registry
	hub      *broadcast.Hub
	cfg      *config.Config
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := &config.Config{
		Port:          "0",
		MaxUploadSize: 1024,
		CORSOrigins:   "*",
		JWT:           config.JWTConfig{Secret: testSecret, TTL: time.Hour},
		WS:            config.WSConfig{Rate: 1, Burst: 2},
	}

	fc := &fakeChat{members: map[string][]string{
		"chat-ab": {"alice", "bob"},
	}}
	fa := &fakeAuth{}
	files := &fakeAttachments{files: make(map[string][]byte)}

	hub := broadcast.NewHub(logging.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(func() {
		cancel()
		hub.Wait()
	})

	registry := session.NewRegistry(nil)
	rooms := session.NewRooms(registry, fc)

	m := NewModule(cfg, logging.Nop())
	m.SetPorts(fc, fa)
	m.SetPipeline(fakePipeline{chat: fc})
	m.SetHub(hub)
	m.SetSessions(registry, rooms)
	m.SetAttachments(files)
	m.app = m.newApp()

	return &fixture{module: m, chat: fc, auth: fa, files: files, registry: registry, hub: hub, cfg: cfg}
}

func (f *fixture) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.NewJWTManager(f.cfg.JWT).Generate(userID, userID+"@example.com")
	if err != nil {
		t.Fatalf("Generate() unexpected error: %v", err)
	}
	return token
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Marshal() unexpected error: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return f.send(t, req)
}

func (f *fixture) send(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := f.module.app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() unexpected error: %v", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("ReadAll() unexpected error: %v", err)
	}
	return resp, data
}

func errorCode(t *testing.T, body []byte) string {
	t.Helper()
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("invalid error body %q: %v", body, err)
	}
	return e.Error
}

func TestAPI_TokenLocations(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "alice")

	tests := []struct {
		name       string
		path       string
		header     string
		wantStatus int
	}{
		{"bearer header", "/api/v1/chats", "Bearer " + token, http.StatusOK},
		{"query parameter", "/api/v1/chats?token=" + token, "", http.StatusOK},
		{"header without scheme", "/api/v1/chats", token, http.StatusUnauthorized},
		{"wrong scheme", "/api/v1/chats", "Basic " + token, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, body := f.send(t, req)
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantStatus, body)
			}
		})
	}
}

func TestAPI_ProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
	}{
		{"no token", http.MethodGet, "/api/v1/chats", ""},
		{"garbage token", http.MethodGet, "/api/v1/chats", "not-a-jwt"},
		{"users", http.MethodGet, "/api/v1/users", ""},
		{"messages", http.MethodPost, "/api/v1/messages", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, tt.method, tt.path, tt.token, nil)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401 (body %s)", resp.StatusCode, body)
			}
		})
	}

	t.Run("foreign secret", func(t *testing.T) {
		other := auth.NewJWTManager(config.JWTConfig{Secret: "other", TTL: time.Hour})
		token, err := other.Generate("alice", "alice@example.com")
		if err != nil {
			t.Fatalf("Generate() unexpected error: %v", err)
		}
		resp, _ := f.do(t, http.MethodGet, "/api/v1/chats", token, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})
}

func TestAPI_Health(t *testing.T) {
	f := newFixture(t)
	resp, body := f.do(t, http.MethodGet, "/health", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var h HealthResponse
	if err := json.Unmarshal(body, &h); err != nil {
		t.Fatalf("Unmarshal() unexpected error: %v", err)
	}
	if h.Status != "healthy" {
		t.Errorf("Status = %q, want healthy", h.Status)
	}
}

func TestAPI_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name     string
		path     string
		body     any
		wantCode int
		wantErr  string
	}{
		{
			name:     "register",
			path:     "/api/v1/auth/register",
			body:     RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "secret1"},
			wantCode: http.StatusCreated,
		},
		{
			name:     "register bad email",
			path:     "/api/v1/auth/register",
			body:     RegisterRequest{Username: "carol", Email: "nope", Password: "secret1"},
			wantCode: http.StatusBadRequest,
			wantErr:  string(domain.KindValidation),
		},
		{
			name:     "register short password",
			path:     "/api/v1/auth/register",
			body:     RegisterRequest{Username: "carol", Email: "carol@example.com", Password: "123"},
			wantCode: http.StatusBadRequest,
			wantErr:  string(domain.KindValidation),
		},
		{
			name:     "register taken email",
			path:     "/api/v1/auth/register",
			body:     RegisterRequest{Username: "carol", Email: "taken@example.com", Password: "secret1"},
			wantCode: http.StatusBadRequest,
			wantErr:  string(domain.KindValidation),
		},
		{
			name:     "login",
			path:     "/api/v1/auth/login",
			body:     LoginRequest{Email: "alice@example.com", Password: "secret1"},
			wantCode: http.StatusOK,
		},
		{
			name:     "login wrong password",
			path:     "/api/v1/auth/login",
			body:     LoginRequest{Email: "alice@example.com", Password: "wrong"},
			wantCode: http.StatusUnauthorized,
			wantErr:  "invalid_credentials",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, tt.path, "", tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantCode, body)
			}
			if tt.wantErr != "" {
				if got := errorCode(t, body); got != tt.wantErr {
					t.Errorf("error = %q, want %q", got, tt.wantErr)
				}
				return
			}
			var s SessionResponse
			if err := json.Unmarshal(body, &s); err != nil {
				t.Fatalf("Unmarshal() unexpected error: %v", err)
			}
			if s.Token == "" || s.User == nil {
				t.Errorf("session = %+v, want token and user", s)
			}
		})
	}
}

func TestAPI_ListUsers(t *testing.T) {
	f := newFixture(t)
	f.auth.users = []domain.User{{ID: "alice", Online: true}, {ID: "bob"}}

	resp, body := f.do(t, http.MethodGet, "/api/v1/users", f.token(t, "alice"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var list UserListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("Unmarshal() unexpected error: %v", err)
	}
	if len(list.Users) != 2 || !list.Users[0].Online {
		t.Errorf("users = %+v", list.Users)
	}
}

func TestAPI_CreateChat(t *testing.T) {
	f := newFixture(t)
	existing := map[string]bool{}
	f.chat.createPrivate = func(userID, otherID string) (*domain.Chat, bool, error) {
		if userID == otherID {
			return nil, false, domain.Validation("cannot chat with yourself")
		}
		if otherID == "ghost" {
			return nil, false, domain.NotFound("user %s", otherID)
		}
		key := domain.PairKeyFor(userID, otherID)
		created := !existing[key]
		existing[key] = true
		return &domain.Chat{ID: "private-1"}, created, nil
	}
	f.chat.createGroup = func(creatorID, name string, members []string) (*domain.Chat, error) {
		if len(members) < 1 {
			return nil, domain.Validation("a group needs at least 2 members")
		}
		return &domain.Chat{ID: "group-1", IsGroup: true, Name: name, CreatedBy: creatorID}, nil
	}
	token := f.token(t, "alice")

	tests := []struct {
		name     string
		body     CreateChatRequest
		wantCode int
		wantErr  string
		wantID   string
	}{
		{"private new", CreateChatRequest{UserID: "bob"}, http.StatusCreated, "", "private-1"},
		{"private existing", CreateChatRequest{UserID: "bob"}, http.StatusOK, "", "private-1"},
		{"private missing user", CreateChatRequest{}, http.StatusBadRequest, string(domain.KindValidation), ""},
		{"private self", CreateChatRequest{UserID: "alice"}, http.StatusBadRequest, string(domain.KindValidation), ""},
		{"private unknown user", CreateChatRequest{UserID: "ghost"}, http.StatusNotFound, string(domain.KindNotFound), ""},
		{"group", CreateChatRequest{IsGroup: true, Name: "team", Users: []string{"bob", "carol"}}, http.StatusCreated, "", "group-1"},
		{"group missing name", CreateChatRequest{IsGroup: true, Users: []string{"bob"}}, http.StatusBadRequest, string(domain.KindValidation), ""},
		{"group missing users", CreateChatRequest{IsGroup: true, Name: "team"}, http.StatusBadRequest, string(domain.KindValidation), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, "/api/v1/chats", token, tt.body)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantCode, body)
			}
			if tt.wantErr != "" {
				if got := errorCode(t, body); got != tt.wantErr {
					t.Errorf("error = %q, want %q", got, tt.wantErr)
				}
				return
			}
			var c domain.Chat
			if err := json.Unmarshal(body, &c); err != nil {
				t.Fatalf("Unmarshal() unexpected error: %v", err)
			}
			if c.ID != tt.wantID {
				t.Errorf("chat id = %q, want %q", c.ID, tt.wantID)
			}
		})
	}
}

func TestAPI_ListChats(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/v1/chats", f.token(t, "carol"), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if !bytes.Contains(body, []byte(`"chats":[]`)) {
		t.Errorf("body = %s, want an empty chats array", body)
	}

	_, body = f.do(t, http.MethodGet, "/api/v1/chats", f.token(t, "alice"), nil)
	var list ChatListResponse
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("Unmarshal() unexpected error: %v", err)
	}
	if len(list.Chats) != 1 || list.Chats[0].ID != "chat-ab" {
		t.Errorf("chats = %+v, want [chat-ab]", list.Chats)
	}
}

func TestAPI_History(t *testing.T) {
	f := newFixture(t)
	var gotLimit int
	f.chat.history = func(userID, chatID string, limit int) ([]domain.Message, error) {
		gotLimit = limit
		if chatID != "chat-ab" {
			return nil, domain.NotFound("chat %s", chatID)
		}
		if userID != "alice" && userID != "bob" {
			return nil, domain.NotAMember("not a member")
		}
		return []domain.Message{{ID: "m1", ChatID: chatID, Seq: 1}}, nil
	}

	tests := []struct {
		name      string
		user      string
		path      string
		wantCode  int
		wantLimit int
	}{
		{"default limit", "alice", "/api/v1/chats/chat-ab/messages", http.StatusOK, 0},
		{"explicit limit", "alice", "/api/v1/chats/chat-ab/messages?limit=10", http.StatusOK, 10},
		{"bad limit", "alice", "/api/v1/chats/chat-ab/messages?limit=abc", http.StatusBadRequest, -1},
		{"zero limit", "alice", "/api/v1/chats/chat-ab/messages?limit=0", http.StatusBadRequest, -1},
		{"not a member", "carol", "/api/v1/chats/chat-ab/messages", http.StatusForbidden, 0},
		{"unknown chat", "alice", "/api/v1/chats/nope/messages", http.StatusNotFound, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLimit = -1
			resp, body := f.do(t, http.MethodGet, tt.path, f.token(t, tt.user), nil)
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantCode, body)
			}
			if gotLimit != tt.wantLimit {
				t.Errorf("limit = %d, want %d", gotLimit, tt.wantLimit)
			}
		})
	}
}

func TestAPI_SendMessage(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "alice")

	resp, body := f.do(t, http.MethodPost, "/api/v1/messages", token, SendMessageRequest{ChatID: "chat-ab", Content: "hello"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (body %s)", resp.StatusCode, body)
	}
	subs := f.chat.submissions()
	if len(subs) != 1 {
		t.Fatalf("Submit() called %d times, want 1", len(subs))
	}
	want := chat.SubmitInput{SenderID: "alice", ChatID: "chat-ab", Content: "hello", Transport: chat.TransportREST}
	if subs[0] != want {
		t.Errorf("Submit() input = %+v, want %+v", subs[0], want)
	}
}

func TestAPI_SendMessageErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"not a member", domain.NotAMember("no"), http.StatusForbidden, string(domain.KindNotAMember)},
		{"unknown chat", domain.NotFound("no"), http.StatusNotFound, string(domain.KindNotFound)},
		{"persistence failed", domain.NewError(domain.KindPersistenceFailed, "store down"), http.StatusServiceUnavailable, string(domain.KindPersistenceFailed)},
		{"attachment", domain.NewError(domain.KindAttachmentUnresolved, "missing"), http.StatusUnprocessableEntity, string(domain.KindAttachmentUnresolved)},
		{"validation", domain.Validation("empty"), http.StatusBadRequest, string(domain.KindValidation)},
		{"unclassified", io.ErrUnexpectedEOF, http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.chat.submit = func(chat.SubmitInput) (*domain.Message, error) { return nil, tt.err }

			resp, body := f.do(t, http.MethodPost, "/api/v1/messages", f.token(t, "alice"), SendMessageRequest{ChatID: "chat-ab", Content: "hi"})
			if resp.StatusCode != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", resp.StatusCode, tt.wantCode, body)
			}
			if got := errorCode(t, body); got != tt.wantErr {
				t.Errorf("error = %q, want %q", got, tt.wantErr)
			}
		})
	}

	t.Run("missing chat id", func(t *testing.T) {
		f := newFixture(t)
		resp, _ := f.do(t, http.MethodPost, "/api/v1/messages", f.token(t, "alice"), SendMessageRequest{Content: "hi"})
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", resp.StatusCode)
		}
		if n := len(f.chat.submissions()); n != 0 {
			t.Errorf("Submit() called %d times, want 0", n)
		}
	})
}

func TestAPI_Attachments(t *testing.T) {
	f := newFixture(t)
	token := f.token(t, "alice")

	upload := func(t *testing.T, content []byte) (*http.Response, []byte) {
		t.Helper()
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", "notes.txt")
		if err != nil {
			t.Fatalf("CreateFormFile() unexpected error: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("Write() unexpected error: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close() unexpected error: %v", err)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/attachments", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		return f.send(t, req)
	}

	resp, body := upload(t, []byte("remember the milk"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload status = %d, want 201 (body %s)", resp.StatusCode, body)
	}
	var att attachment.Attachment
	if err := json.Unmarshal(body, &att); err != nil {
		t.Fatalf("Unmarshal() unexpected error: %v", err)
	}

	resp, body = f.do(t, http.MethodGet, "/api/v1/attachments/"+att.Ref, token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d, want 200", resp.StatusCode)
	}
	if string(body) != "remember the milk" {
		t.Errorf("download body = %q", body)
	}

	resp, _ = f.do(t, http.MethodGet, "/api/v1/attachments/0190a3e2-0000-7000-8000-000000000001/other.txt", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing download status = %d, want 404", resp.StatusCode)
	}

	resp, _ = upload(t, bytes.Repeat([]byte("x"), 2048))
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("oversized upload status = %d, want 413", resp.StatusCode)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.Validation("x"), http.StatusBadRequest},
		{domain.NotAMember("x"), http.StatusForbidden},
		{domain.NotFound("x"), http.StatusNotFound},
		{domain.ErrAlreadyBound, http.StatusConflict},
		{domain.ErrAttachmentUnresolved, http.StatusUnprocessableEntity},
		{domain.ErrPersistenceFailed, http.StatusServiceUnavailable},
		{auth.ErrInvalidCredentials, http.StatusUnauthorized},
		{io.EOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got, _ := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestModule_StartRequiresDependencies(t *testing.T) {
	m := NewModule(&config.Config{Port: "0"}, logging.Nop())
	if err := m.Start(context.Background()); err == nil {
		t.Error("Start() error = nil, want missing dependency error")
	}
	if err := m.Stop(context.Background()); err != nil {
		t.Errorf("Stop() unexpected error: %v", err)
	}
}
