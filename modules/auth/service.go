package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	domain "github.com/example/realtime-chat/domain/chat"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 72 // bcrypt limit
	MaxUsernameLength = 50
)

// ErrInvalidCredentials is returned when login credentials are invalid.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserRepository is the storage the auth service needs.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// OnlineSource reports live presence.
type OnlineSource interface {
	IsOnline(userID string) bool
}

// Session is the result of a successful login or registration.
type Session struct {
	Token     string       `json:"token"`
	ExpiresIn int64        `json:"expires_in"`
	User      *domain.User `json:"user"`
}

// Service handles account registration, login and user listing.
type Service struct {
	repo     UserRepository
	hasher   *PasswordHasher
	jwt      *JWTManager
	online   OnlineSource
	validate *validator.Validate
}

// NewService creates a new auth service.
func NewService(repo UserRepository, hasher *PasswordHasher, jwt *JWTManager) *Service {
	return &Service{repo: repo, hasher: hasher, jwt: jwt, validate: validator.New()}
}

// SetOnlineSource makes ListUsers report live presence instead of the
// stored flag.
func (s *Service) SetOnlineSource(src OnlineSource) {
	s.online = src
}

// Register creates an account and logs it in.
func (s *Service) Register(ctx context.Context, username, email, password string) (*Session, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))

	if username == "" || len(username) > MaxUsernameLength {
		return nil, domain.Validation("username must be 1-%d characters", MaxUsernameLength)
	}
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, domain.Validation("invalid email format")
	}
	if len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return nil, domain.Validation("password must be %d-%d characters", MinPasswordLength, MaxPasswordLength)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	return s.session(user)
}

// Login authenticates a user and returns a token.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if !s.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

// ListUsers returns every account with its online flag.
func (s *Service) ListUsers(ctx context.Context) ([]domain.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if s.online != nil {
		for i := range users {
			users[i].Online = s.online.IsOnline(users[i].ID)
		}
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// ValidateToken returns the user id carried by a valid token.
func (s *Service) ValidateToken(token string) (string, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return "", err
	}
	return claims.UserID, nil
}

func (s *Service) session(user *domain.User) (*Session, error) {
	token, err := s.jwt.Generate(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &Session{Token: token, ExpiresIn: s.jwt.TTL(), User: user}, nil
}
