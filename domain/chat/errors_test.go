package chat

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same kind", Validation("name is required"), ErrValidation, true},
		{"different kind", NotFound("chat %s", "c1"), ErrValidation, false},
		{"wrapped", fmt.Errorf("submit: %w", NotAMember("user u1")), ErrNotAMember, true},
		{"plain error", errors.New("boom"), ErrNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(KindPersistenceFailed, "db down"))
	if got := KindOf(err); got != KindPersistenceFailed {
		t.Errorf("KindOf() = %q, want %q", got, KindPersistenceFailed)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}

func TestError_Error(t *testing.T) {
	if got := ErrAlreadyBound.Error(); got != "already_bound" {
		t.Errorf("Error() = %q, want %q", got, "already_bound")
	}
	if got := Validation("too short").Error(); got != "validation_error: too short" {
		t.Errorf("Error() = %q", got)
	}
}

func TestPairKeyFor(t *testing.T) {
	if PairKeyFor("b", "a") != PairKeyFor("a", "b") {
		t.Error("PairKeyFor() should not depend on argument order")
	}
	if got := PairKeyFor("b", "a"); got != "a:b" {
		t.Errorf("PairKeyFor() = %q, want %q", got, "a:b")
	}
}

func TestChat_HasMember(t *testing.T) {
	c := &Chat{Members: []ChatMember{{UserID: "u1"}, {UserID: "u2"}}}
	if !c.HasMember("u2") {
		t.Error("HasMember(u2) = false, want true")
	}
	if c.HasMember("u3") {
		t.Error("HasMember(u3) = true, want false")
	}
	if ids := c.MemberIDs(); len(ids) != 2 || ids[0] != "u1" {
		t.Errorf("MemberIDs() = %v", ids)
	}
}
