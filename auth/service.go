// Package auth signs users up, logs them in and revokes their tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"farmgate/errs"
	"farmgate/logging"
	"farmgate/middleware"
	"farmgate/models"
	"farmgate/store"
	"farmgate/utils"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPasswordMismatch   = errs.New(errs.KindValidation, "Passwords do not match")
	ErrUserExists         = errs.New(errs.KindValidation, "Username or Email already exists")
	ErrInvalidCredentials = errs.New(errs.KindValidation, "Invalid username or password")
)

// Revoker remembers token IDs that must no longer be accepted.
type Revoker interface {
	Mark(ctx context.Context, id string) error
}

type Service struct {
	users   store.UserStore
	secret  []byte
	ttl     time.Duration
	revoker Revoker
	now     func() time.Time
}

// NewService issues HS256 tokens valid for ttl. revoker may be nil, in which
// case logout only clears the cookie.
func NewService(users store.UserStore, secret []byte, ttl time.Duration, revoker Revoker) *Service {
	return &Service{users: users, secret: secret, ttl: ttl, revoker: revoker, now: time.Now}
}

type SignupInput struct {
	FullName        string      `json:"fullName" validate:"required"`
	Username        string      `json:"username" validate:"required,min=3,max=32"`
	Email           string      `json:"email" validate:"required,email"`
	Password        string      `json:"password" validate:"required,min=6"`
	ConfirmPassword string      `json:"confirmPassword" validate:"required"`
	Gender          string      `json:"gender" validate:"required,oneof=male female other"`
	Role            models.Role `json:"role" validate:"required,oneof=farmer buyer delivery_agent"`
	Phone           string      `json:"phone" validate:"required"`
	Address         string      `json:"address" validate:"required"`
	ProfilePicture  string      `json:"profilePicture"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is a signed-in user and their token.
type Session struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

func (s *Service) Signup(ctx context.Context, in SignupInput) (*Session, error) {
	if in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		ID:             utils.GetUUID(),
		FullName:       strings.TrimSpace(in.FullName),
		Username:       in.Username,
		Email:          strings.ToLower(strings.TrimSpace(in.Email)),
		Password:       string(hashed),
		Gender:         in.Gender,
		Role:           in.Role,
		Phone:          in.Phone,
		Address:        in.Address,
		ProfilePicture: in.ProfilePicture,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	logging.FromContext(ctx).Info("user registered",
		zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.issue(user)
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	user, err := s.users.FindUserByUsername(ctx, in.Username)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issue(user)
}

// Logout revokes the token with the given ID.
func (s *Service) Logout(ctx context.Context, tokenID string) error {
	if s.revoker == nil || tokenID == "" {
		return nil
	}
	if err := s.revoker.Mark(ctx, tokenID); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Me returns the authenticated user's profile.
func (s *Service) Me(ctx context.Context, actor models.Actor) (*models.User, error) {
	if actor.ID == "" {
		return nil, errs.ErrUnauthenticated
	}
	user, err := s.users.GetUser(ctx, actor.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errs.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *Service) issue(user *models.User) (*Session, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := &middleware.Claims{
		Username: user.Username,
		UserID:   user.ID,
		Role:     string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        utils.GetUUID(),
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}
	return &Session{User: user, Token: token, ExpiresAt: expires}, nil
}
