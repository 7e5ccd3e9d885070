package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/erp-workflow/internal/auth"
	"github.com/spec-kit/erp-workflow/internal/config"
	"github.com/spec-kit/erp-workflow/internal/domain"
	"github.com/spec-kit/erp-workflow/internal/repository"
	apperrors "github.com/spec-kit/erp-workflow/pkg/util"
)

var fieldValidator = validator.New()

// AuthService coordinates login and user management.
type AuthService struct {
	users      repository.UserRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// CreateUserInput describes a new account.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.UserRole
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository, tokens *auth.TokenManager, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      users,
		tokenMgr:   tokens,
		bcryptCost: cfg.BcryptCost,
		logger:     logger,
	}
}

// Login verifies credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, storageError(err, "user", "")
	}
	if !user.Active {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.NewInternalError(err)
	}
	return user, token, exp, nil
}

// CreateUser registers an active account.
func (s *AuthService) CreateUser(ctx context.Context, input CreateUserInput) (*domain.User, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" {
		return nil, apperrors.NewValidationError("name required", map[string]any{"field": "name"})
	}
	if err := fieldValidator.Var(email, "required,email"); err != nil {
		return nil, apperrors.NewValidationError("valid email required", map[string]any{"field": "email"})
	}
	if len(input.Password) < 8 || len(input.Password) > 72 {
		return nil, apperrors.NewValidationError("password must be 8 to 72 characters", map[string]any{"field": "password"})
	}
	role := input.Role
	switch role {
	case "":
		role = domain.UserRoleEmployee
	case domain.UserRoleAdmin, domain.UserRoleEmployee:
	default:
		return nil, apperrors.NewValidationError("role must be ADMIN or EMPLOYEE", map[string]any{"field": "role"})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, apperrors.NewConflict("email already registered", map[string]any{"email": email})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, storageError(err, "user", "")
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, storageError(err, "user", user.ID)
	}
	s.logger.Info("user created", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return user, nil
}

// GetUser loads a user by id.
func (s *AuthService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, storageError(err, "user", id)
	}
	return user, nil
}

// EnsureBootstrapAdmin creates the configured administrator when no account
// with that email exists yet. It reports whether an account was created.
func (s *AuthService) EnsureBootstrapAdmin(ctx context.Context, cfg config.AuthConfig) (bool, error) {
	email := strings.TrimSpace(cfg.BootstrapAdminEmail)
	if email == "" || cfg.BootstrapAdminPass == "" {
		return false, nil
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, storageError(err, "user", "")
	}
	if _, err := s.CreateUser(ctx, CreateUserInput{
		Name:     cfg.BootstrapAdminName,
		Email:    email,
		Password: cfg.BootstrapAdminPass,
		Role:     domain.UserRoleAdmin,
	}); err != nil {
		return false, err
	}
	return true, nil
}
