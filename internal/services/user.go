package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/foodgram/apiserver/internal/apperr"
	"github.com/foodgram/apiserver/internal/auth"
	"github.com/foodgram/apiserver/internal/mq"
	"github.com/foodgram/apiserver/internal/store"
	"github.com/foodgram/apiserver/types"
	"go.uber.org/zap"
)

const (
	msgBadCredentials = "Incorrect email or password"
	msgInvalidToken   = "Could not validate credentials"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	List(ctx context.Context, offset, limit int) ([]types.User, int, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	UpdatePassword(ctx context.Context, id int, passwordHash string) error
}

// Denylist records revoked token identifiers.
type Denylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Username  string `json:"username" validate:"required,max=150,username"`
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
	Password  string `json:"password" validate:"required,min=8,max=150"`
}

// LoginInput is the token login payload.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SetPasswordInput is the password change payload. The new password must
// differ from the current one.
type SetPasswordInput struct {
	NewPassword     string `json:"new_password" validate:"required,min=8,max=150,nefield=CurrentPassword"`
	CurrentPassword string `json:"current_password" validate:"required"`
}

// Session is an authenticated request: the user and the verified token claims.
type Session struct {
	User   types.User
	Claims auth.Claims
}

// UserService covers registration, authentication, token revocation and
// user lookups.
type UserService struct {
	repo     UserRepository
	issuer   *auth.Issuer
	denylist Denylist
	deps
}

// NewUserService constructs the service. A nil denylist disables revocation
// checks.
func NewUserService(repo UserRepository, issuer *auth.Issuer, denylist Denylist, opts ...Option) *UserService {
	return &UserService{
		repo:     repo,
		issuer:   issuer,
		denylist: denylist,
		deps:     newDeps(opts),
	}
}

// Register validates the input, hashes the password and stores the user.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (types.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if err := validateStruct(in); err != nil {
		return types.User{}, err
	}

	if err := s.ensureUnique(ctx, in.Email, in.Username); err != nil {
		return types.User{}, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        in.Email,
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, apperr.Conflict("a user with that email or username already exists")
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.recorder.RecordUserRegistered()
	s.logger.Info("user registered", zap.Int("user_id", user.ID))
	s.publish(ctx, mq.TopicUserRegistered, mq.UserRegistered{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
	})
	return user, nil
}

func (s *UserService) ensureUnique(ctx context.Context, email, username string) error {
	fields := map[string][]string{}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		fields["email"] = append(fields["email"], "A user with that email already exists.")
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lookup email: %w", err)
	}

	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		fields["username"] = append(fields["username"], "A user with that username already exists.")
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("lookup username: %w", err)
	}

	if len(fields) > 0 {
		return &apperr.Error{Kind: apperr.KindConflict, Message: "user already exists", Fields: fields}
	}
	return nil
}

// Login checks the credentials and issues an access token. Unknown email and
// wrong password fail identically.
func (s *UserService) Login(ctx context.Context, in LoginInput) (string, error) {
	if err := validateStruct(in); err != nil {
		return "", err
	}

	user, err := s.repo.GetByEmail(ctx, strings.TrimSpace(in.Email))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.recorder.RecordLogin(false)
			return "", apperr.Unauthorized(msgBadCredentials)
		}
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if !auth.VerifyPassword(in.Password, user.PasswordHash) {
		s.recorder.RecordLogin(false)
		return "", apperr.Unauthorized(msgBadCredentials)
	}

	token, _, err := s.issuer.Issue(user)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	s.recorder.RecordLogin(true)
	return token, nil
}

// ResolveToken verifies the token, rejects revoked ones and loads the user
// named by its subject.
func (s *UserService) ResolveToken(ctx context.Context, token string) (Session, error) {
	claims, err := s.issuer.Parse(token)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return Session{}, apperr.Unauthorized(msgInvalidToken)
	}

	if s.denylist != nil {
		revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
		if err != nil {
			return Session{}, fmt.Errorf("check denylist: %w", err)
		}
		if revoked {
			return Session{}, apperr.Unauthorized(msgInvalidToken)
		}
	}

	user, err := s.repo.GetByID(ctx, claims.User.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Session{}, apperr.Unauthorized(msgInvalidToken)
		}
		return Session{}, fmt.Errorf("lookup user: %w", err)
	}
	return Session{User: user, Claims: claims}, nil
}

// Logout revokes the session's token for the rest of its lifetime.
func (s *UserService) Logout(ctx context.Context, session Session) error {
	if s.denylist == nil {
		return nil
	}
	ttl := session.Claims.RemainingTTL(s.issuer.Now())
	if err := s.denylist.Revoke(ctx, session.Claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.recorder.RecordTokenRevoked()
	return nil
}

// SetPassword replaces the user's password after verifying the current one.
func (s *UserService) SetPassword(ctx context.Context, user types.User, in SetPasswordInput) error {
	if err := validateStruct(in); err != nil {
		return err
	}

	current, err := s.repo.GetByID(ctx, user.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("user %d not found", user.ID)
		}
		return fmt.Errorf("lookup user: %w", err)
	}
	if !auth.VerifyPassword(in.CurrentPassword, current.PasswordHash) {
		return apperr.BadRequest("Incorrect password")
	}

	hash, err := auth.HashPassword(in.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.repo.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

func (s *UserService) GetByID(ctx context.Context, id int) (types.User, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, apperr.NotFound("user %d not found", id)
		}
		return types.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *UserService) List(ctx context.Context, offset, limit int) ([]types.User, int, error) {
	users, total, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	return users, total, nil
}
