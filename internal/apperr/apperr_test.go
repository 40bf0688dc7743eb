package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("tag %d not found", 7))

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected errors.Is(err, ErrNotFound)")
	}
	if errors.Is(err, ErrConflict) {
		t.Error("did not expect errors.Is(err, ErrConflict)")
	}
	if got := KindOf(err); got != KindNotFound {
		t.Errorf("KindOf() = %v, want %v", got, KindNotFound)
	}
}

func TestError_MessageDoesNotMatchSentinelOfOtherMessage(t *testing.T) {
	a := Unauthorized("incorrect email or password")
	b := Unauthorized("token revoked")

	if errors.Is(a, b) {
		t.Error("errors with different messages should not match each other")
	}
	if !errors.Is(a, ErrUnauthorized) {
		t.Error("expected match against the kind sentinel")
	}
}

func TestKindOf_PlainError(t *testing.T) {
	if got := KindOf(errors.New("boom")); got != 0 {
		t.Errorf("KindOf() = %v, want 0", got)
	}
}

func TestValidationFields(t *testing.T) {
	err := ValidationFields(map[string][]string{"password": {"too short"}})
	if err.Kind != KindValidation {
		t.Errorf("Kind = %v, want %v", err.Kind, KindValidation)
	}
	if got := err.Fields["password"]; len(got) != 1 || got[0] != "too short" {
		t.Errorf("Fields = %v", err.Fields)
	}
}
