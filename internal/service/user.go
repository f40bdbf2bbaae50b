package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"travel/internal/domain"
	"travel/internal/repository"
)

// TokenIssuer signs caller tokens.
type TokenIssuer interface {
	Issue(user *domain.User) (string, error)
}

// UserService handles user registration.
type UserService struct {
	store  repository.Store
	tokens TokenIssuer
	log    *zap.Logger
}

// NewUserService creates a new UserService.
func NewUserService(store repository.Store, tokens TokenIssuer, log *zap.Logger) *UserService {
	return &UserService{
		store:  store,
		tokens: tokens,
		log:    log.With(zap.String("service", "user")),
	}
}

// RegisterRequest contains the parameters for registering a user.
type RegisterRequest struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
	Role      domain.Role
}

// Register creates a guest or host account and returns it with a signed
// token. Staff accounts cannot be self-registered.
func (s *UserService) Register(ctx context.Context, req RegisterRequest) (*domain.User, string, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", invalidArgument("invalid email %q", req.Email)
	}

	role := req.Role
	if role == "" {
		role = domain.RoleGuest
	}
	if role != domain.RoleGuest && role != domain.RoleHost {
		return nil, "", invalidArgument("role must be guest or host")
	}

	user := &domain.User{
		ID:        uuid.New().String(),
		Email:     email,
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Phone:     strings.TrimSpace(req.Phone),
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.store.Users().Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", fmt.Errorf("email %s: %w", email, ErrAlreadyExists)
		}
		return nil, "", fmt.Errorf("create user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", fmt.Errorf("issue token: %w", err)
	}

	s.log.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(role)))
	return user, token, nil
}
