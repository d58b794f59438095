package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/realtime-chat/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret: "test-secret-key",
		TTL:    15 * time.Minute,
		Issuer: "test-issuer",
	}
}

func TestJWTManager_GenerateAndValidate(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())

	token, err := manager.Generate("user-123", "test@example.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if token == "" {
		t.Fatal("Generate() returned empty token")
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if claims.UserID != "user-123" {
		t.Errorf("claims.UserID = %v, want %v", claims.UserID, "user-123")
	}
	if claims.Email != "test@example.com" {
		t.Errorf("claims.Email = %v, want %v", claims.Email, "test@example.com")
	}
	if claims.Issuer != "test-issuer" {
		t.Errorf("claims.Issuer = %v, want %v", claims.Issuer, "test-issuer")
	}
	if manager.TTL() != 900 {
		t.Errorf("TTL() = %d, want 900", manager.TTL())
	}
}

func TestJWTManager_Validate_Errors(t *testing.T) {
	manager := NewJWTManager(testJWTConfig())

	expiredCfg := testJWTConfig()
	expiredCfg.TTL = -time.Minute
	expired, err := (&JWTManager{secret: []byte(expiredCfg.Secret), ttl: expiredCfg.TTL}).Generate("u", "e@x.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	otherCfg := testJWTConfig()
	otherCfg.Secret = "another-secret"
	foreign, err := NewJWTManager(otherCfg).Generate("u", "e@x.com")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{UserID: "u"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"expired", expired, ErrExpiredToken},
		{"wrong secret", foreign, ErrInvalidToken},
		{"none algorithm", none, ErrInvalidToken},
		{"garbage", "not-a-token", ErrInvalidToken},
		{"empty", "", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := manager.Validate(tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}
