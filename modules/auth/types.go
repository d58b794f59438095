package auth

import (
	domain "github.com/example/realtime-chat/domain/chat"
)

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse carries a token and the logged in user. Rejected
// credentials set Unauthorized rather than failing the request.
type SessionResponse struct {
	Session      *Session      `json:"session,omitempty"`
	Unauthorized bool          `json:"unauthorized,omitempty"`
	Error        *domain.Error `json:"error,omitempty"`
}

// ListUsersRequest represents a user listing request.
type ListUsersRequest struct{}

// ListUsersResponse carries every account.
type ListUsersResponse struct {
	Users []domain.User `json:"users"`
	Error *domain.Error `json:"error,omitempty"`
}
