package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/foodgram/apiserver/internal/apperr"
	"github.com/foodgram/apiserver/internal/auth"
	"github.com/foodgram/apiserver/internal/mq"
)

func TestRegister(t *testing.T) {
	e := newEnv(t)
	user := e.register(t, "alice")

	if user.ID == 0 {
		t.Fatal("expected user id to be assigned")
	}
	if user.PasswordHash == "" || user.PasswordHash == "password-alice" {
		t.Errorf("password was not hashed: %q", user.PasswordHash)
	}
	if !auth.VerifyPassword("password-alice", user.PasswordHash) {
		t.Error("stored hash does not verify")
	}
	if e.recorder.registered != 1 {
		t.Errorf("registered = %d, want 1", e.recorder.registered)
	}
	if got := e.events.Published(); len(got) != 1 || got[0] != mq.TopicUserRegistered {
		t.Errorf("events = %v", got)
	}
}

func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"bad email", RegisterInput{Email: "nope", Username: "bob", FirstName: "B", LastName: "B", Password: "password1"}, "email"},
		{"bad username", RegisterInput{Email: "b@example.com", Username: "bob smith", FirstName: "B", LastName: "B", Password: "password1"}, "username"},
		{"short password", RegisterInput{Email: "b@example.com", Username: "bob", FirstName: "B", LastName: "B", Password: "short"}, "password"},
		{"long password", RegisterInput{Email: "b@example.com", Username: "bob", FirstName: "B", LastName: "B", Password: strings.Repeat("x", 151)}, "password"},
		{"missing first name", RegisterInput{Email: "b@example.com", Username: "bob", LastName: "B", Password: "password1"}, "first_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, err := e.users.Register(context.Background(), tt.in)
			var appErr *apperr.Error
			if !errors.As(err, &appErr) || appErr.Kind != apperr.KindValidation {
				t.Fatalf("error = %v, want validation error", err)
			}
			if _, ok := appErr.Fields[tt.field]; !ok {
				t.Errorf("fields = %v, want %s", appErr.Fields, tt.field)
			}
		})
	}
}

func TestRegister_LongPasswordWithinPolicy(t *testing.T) {
	e := newEnv(t)
	password := strings.Repeat("p", 150)
	user, err := e.users.Register(context.Background(), RegisterInput{
		Email: "long@example.com", Username: "long", FirstName: "L", LastName: "P", Password: password,
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := e.users.Login(context.Background(), LoginInput{Email: user.Email, Password: password}); err != nil {
		t.Errorf("Login() error = %v", err)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alice")

	_, err := e.users.Register(context.Background(), RegisterInput{
		Email: "alice@example.com", Username: "alice2", FirstName: "A", LastName: "A", Password: "password1",
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("error = %v, want conflict", err)
	}
	var appErr *apperr.Error
	errors.As(err, &appErr)
	if _, ok := appErr.Fields["email"]; !ok {
		t.Errorf("fields = %v, want email", appErr.Fields)
	}
}

func TestLogin(t *testing.T) {
	e := newEnv(t)
	user := e.register(t, "alice")
	ctx := context.Background()

	token, err := e.users.Login(ctx, LoginInput{Email: user.Email, Password: "password-alice"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}

	session, err := e.users.ResolveToken(ctx, token)
	if err != nil {
		t.Fatalf("ResolveToken() error = %v", err)
	}
	if session.User.ID != user.ID || session.Claims.Type != auth.TokenTypeAccess {
		t.Errorf("session = %+v", session)
	}
	if e.recorder.logins != 1 {
		t.Errorf("logins = %d, want 1", e.recorder.logins)
	}
}

func TestLogin_UniformFailure(t *testing.T) {
	e := newEnv(t)
	user := e.register(t, "alice")
	ctx := context.Background()

	_, errUnknown := e.users.Login(ctx, LoginInput{Email: "ghost@example.com", Password: "whatever1"})
	_, errWrong := e.users.Login(ctx, LoginInput{Email: user.Email, Password: "wrong-password"})

	for _, err := range []error{errUnknown, errWrong} {
		if !errors.Is(err, apperr.ErrUnauthorized) {
			t.Fatalf("error = %v, want unauthorized", err)
		}
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Errorf("messages differ: %q vs %q", errUnknown, errWrong)
	}
	if e.recorder.failedLogins != 2 {
		t.Errorf("failed logins = %d, want 2", e.recorder.failedLogins)
	}
}

func TestResolveToken_Rejections(t *testing.T) {
	e := newEnv(t)
	user := e.register(t, "alice")
	ctx := context.Background()

	token, _ := e.users.Login(ctx, LoginInput{Email: user.Email, Password: "password-alice"})

	other, _ := auth.NewIssuer("other-secret", "HS256", time.Hour)
	forged, _, _ := other.Issue(user)

	if _, err := e.users.ResolveToken(ctx, forged); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("forged token error = %v, want unauthorized", err)
	}
	if _, err := e.users.ResolveToken(ctx, "garbage"); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("garbage token error = %v, want unauthorized", err)
	}

	e.now = e.now.Add(25 * time.Hour)
	if _, err := e.users.ResolveToken(ctx, token); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("expired token error = %v, want unauthorized", err)
	}
}

func TestLogout_RevokesForRemainingLifetime(t *testing.T) {
	e := newEnv(t)
	user := e.register(t, "alice")
	ctx := context.Background()

	token, _ := e.users.Login(ctx, LoginInput{Email: user.Email, Password: "password-alice"})
	session, err := e.users.ResolveToken(ctx, token)
	if err != nil {
		t.Fatalf("ResolveToken() error = %v", err)
	}

	e.now = e.now.Add(time.Hour)
	if err := e.users.Logout(ctx, session); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if e.recorder.revoked != 1 {
		t.Errorf("revoked = %d, want 1", e.recorder.revoked)
	}

	_, err = e.users.ResolveToken(ctx, token)
	if !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("revoked token error = %v, want unauthorized", err)
	}
	// Revoked and forged tokens are indistinguishable to the caller.
	_, forgedErr := e.users.ResolveToken(ctx, "garbage")
	if err.Error() != forgedErr.Error() {
		t.Errorf("revoked message = %q, invalid token message = %q", err.Error(), forgedErr.Error())
	}

	// A fresh token for the same user is unaffected.
	fresh, _ := e.users.Login(ctx, LoginInput{Email: user.Email, Password: "password-alice"})
	if _, err := e.users.ResolveToken(ctx, fresh); err != nil {
		t.Errorf("fresh token error = %v", err)
	}
}

func TestResolveToken_DenylistDisabled(t *testing.T) {
	e := newEnv(t)
	users := NewUserService(e.mem, e.issuer, nil)
	user := e.register(t, "alice")
	ctx := context.Background()

	token, _ := users.Login(ctx, LoginInput{Email: user.Email, Password: "password-alice"})
	session, _ := users.ResolveToken(ctx, token)
	if err := users.Logout(ctx, session); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := users.ResolveToken(ctx, token); err != nil {
		t.Errorf("ResolveToken() error = %v, want nil with denylist disabled", err)
	}
}

func TestResolveToken_DenylistFailure(t *testing.T) {
	e := newEnv(t)
	user := e.register(t, "alice")
	ctx := context.Background()
	token, _ := e.users.Login(ctx, LoginInput{Email: user.Email, Password: "password-alice"})

	e.denylist.Err = errors.New("redis down")
	_, err := e.users.ResolveToken(ctx, token)
	if err == nil || apperr.KindOf(err) != 0 {
		t.Errorf("error = %v, want infrastructure error", err)
	}
}

func TestSetPassword(t *testing.T) {
	e := newEnv(t)
	user := e.register(t, "alice")
	ctx := context.Background()

	err := e.users.SetPassword(ctx, user, SetPasswordInput{NewPassword: "new-password", CurrentPassword: "wrong-current"})
	if !errors.Is(err, apperr.ErrBadRequest) {
		t.Errorf("wrong current password error = %v, want bad request", err)
	}

	err = e.users.SetPassword(ctx, user, SetPasswordInput{NewPassword: "password-alice", CurrentPassword: "password-alice"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("same password error = %v, want validation", err)
	}

	err = e.users.SetPassword(ctx, user, SetPasswordInput{NewPassword: "short", CurrentPassword: "password-alice"})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("short password error = %v, want validation", err)
	}

	if err := e.users.SetPassword(ctx, user, SetPasswordInput{NewPassword: "new-password", CurrentPassword: "password-alice"}); err != nil {
		t.Fatalf("SetPassword() error = %v", err)
	}
	if _, err := e.users.Login(ctx, LoginInput{Email: user.Email, Password: "new-password"}); err != nil {
		t.Errorf("login with new password error = %v", err)
	}
	if _, err := e.users.Login(ctx, LoginInput{Email: user.Email, Password: "password-alice"}); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Errorf("login with old password error = %v, want unauthorized", err)
	}
}

func TestGetByIDAndList(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice")
	e.register(t, "bob")
	ctx := context.Background()

	got, err := e.users.GetByID(ctx, alice.ID)
	if err != nil || got.Username != "alice" {
		t.Fatalf("GetByID() = %+v, %v", got, err)
	}
	if _, err := e.users.GetByID(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("GetByID(missing) error = %v, want not found", err)
	}

	users, total, err := e.users.List(ctx, 0, 1)
	if err != nil || total != 2 || len(users) != 1 {
		t.Errorf("List() = %v, %d, %v", users, total, err)
	}
}

func TestPublishFailureDoesNotFailRegistration(t *testing.T) {
	e := newEnv(t)
	e.events.Err = errors.New("broker down")
	e.register(t, "alice")
}
