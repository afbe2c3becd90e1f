package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

const (
	MinUsernameLength = 3
	MinPasswordLength = 6
	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72
)

var fieldValidator = validator.New()

func validEmail(email string) bool {
	return email != "" && fieldValidator.Var(email, "required,email") == nil
}

func checkPassword(field, password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return apperrors.NewValidationError(field+" must be at least 6 characters", map[string]any{"field": field})
	case len(password) > MaxPasswordBytes:
		return apperrors.NewValidationError(field+" must be at most 72 bytes", map[string]any{"field": field})
	}
	return nil
}

// AuthService coordinates registration, login and session lifecycle.
type AuthService struct {
	users      repository.UserRepository
	sessions   auth.SessionStore
	tokens     *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
	now        Clock
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Sessions auth.SessionStore
	Tokens   *auth.TokenManager
	Logger   *zap.Logger
	Clock    Clock
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	tokens := deps.Tokens
	if tokens == nil {
		tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL())
	}
	return &AuthService{
		users:      deps.UserRepo,
		sessions:   deps.Sessions,
		tokens:     tokens,
		bcryptCost: cfg.BcryptCost,
		logger:     defaultLogger(deps.Logger),
		now:        defaultClock(deps.Clock),
	}
}

// RegisterInput is the self-registration payload. Role may be empty.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// AuthResult is an authenticated user plus the credentials for its session.
type AuthResult struct {
	User    *domain.User
	Token   string
	Session *domain.Session
}

// Register creates an end-user account and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := domain.NormalizeEmail(in.Email)

	switch {
	case len(username) < MinUsernameLength:
		return nil, apperrors.NewValidationError("username must be at least 3 characters", map[string]any{"field": "username"})
	case !validEmail(email):
		return nil, apperrors.NewValidationError("invalid email", map[string]any{"field": "email"})
	}
	if err := checkPassword("password", in.Password); err != nil {
		return nil, err
	}

	if in.Role != "" {
		role, err := domain.ParseRole(in.Role)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"field": "role"})
		}
		if role != domain.RoleEndUser {
			return nil, apperrors.NewForbidden("self-registration is limited to end users")
		}
	}

	if err := s.ensureUnused(ctx, username, email); err != nil {
		return nil, err
	}

	user, err := s.createUser(ctx, username, email, in.Password, domain.RoleEndUser)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user registered", zap.Int64("user_id", user.ID))
	return s.startSession(ctx, user)
}

// CreateUser provisions an account with an arbitrary role. It backs the
// create-admin command.
func (s *AuthService) CreateUser(ctx context.Context, username, email, password string, role domain.Role) (*domain.User, error) {
	username = strings.TrimSpace(username)
	email = domain.NormalizeEmail(email)
	if len(username) < MinUsernameLength || !validEmail(email) {
		return nil, apperrors.NewValidationError("invalid account details", nil)
	}
	if err := checkPassword("password", password); err != nil {
		return nil, err
	}
	if err := s.ensureUnused(ctx, username, email); err != nil {
		return nil, err
	}
	return s.createUser(ctx, username, email, password, role)
}

func (s *AuthService) createUser(ctx context.Context, username, email, password string, role domain.Role) (*domain.User, error) {
	hash, err := auth.HashPassword(password, s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, apperrors.NewValidationError("password must be at most 72 bytes", map[string]any{"field": "password"})
	}
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, apperrors.MapError(conflict(err, "username or email already registered"))
	}
	return user, nil
}

func (s *AuthService) ensureUnused(ctx context.Context, username, email string) error {
	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return apperrors.NewValidationError("username already exists", map[string]any{"field": "username"})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return apperrors.MapError(err)
	}
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return apperrors.NewValidationError("email already registered", map[string]any{"field": "email"})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return apperrors.MapError(err)
	}
	return nil
}

// Login authenticates by username or email.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (*AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password are required", nil)
	}

	user, err := s.users.GetByUsername(ctx, identifier)
	if errors.Is(err, repository.ErrNotFound) {
		user, err = s.users.GetByEmail(ctx, domain.NormalizeEmail(identifier))
	}
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if !user.IsActive {
		return nil, apperrors.NewUserInactive()
	}
	return s.startSession(ctx, user)
}

func (s *AuthService) startSession(ctx context.Context, user *domain.User) (*AuthResult, error) {
	session, err := s.sessions.Create(ctx, user.ID, user.Role, s.tokens.TTL())
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	token, err := s.tokens.GenerateToken(session)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &AuthResult{User: user, Token: token, Session: session}, nil
}

// Logout destroys the session. A session that already expired is not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
		return apperrors.NewInternalError(err)
	}
	return nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, actor *domain.User, current, next string) error {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return apperrors.MapError(notFound(err, "user", actor.ID))
	}
	if err := auth.ComparePassword(user.PasswordHash, current); err != nil {
		return apperrors.NewValidationError("current password is incorrect", map[string]any{"field": "current_password"})
	}
	if err := checkPassword("new_password", next); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	if err := s.users.Update(ctx, user); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}
