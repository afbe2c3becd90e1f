package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/query"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// UserService exposes account management for admins and self-service profile edits.
type UserService struct {
	users  repository.UserRepository
	logger *zap.Logger
}

// UserDependencies bundles collaborators for the user service.
type UserDependencies struct {
	UserRepo repository.UserRepository
	Logger   *zap.Logger
}

// NewUserService constructs the service.
func NewUserService(deps UserDependencies) *UserService {
	return &UserService{users: deps.UserRepo, logger: defaultLogger(deps.Logger)}
}

// UserListInput carries raw listing parameters.
type UserListInput struct {
	Page    int
	PerPage int
	Role    string
	Search  string
}

// UserListResult is one page of users.
type UserListResult struct {
	Users []domain.User
	Meta  query.Meta
}

// UserUpdateInput is a partial profile update.
type UserUpdateInput struct {
	Username *string
	Email    *string
	Role     *string
	IsActive *bool
}

// List returns a filtered page of users, newest first.
func (s *UserService) List(ctx context.Context, in UserListInput) (*UserListResult, error) {
	filter := repository.UserFilter{
		Search: strings.TrimSpace(in.Search),
		Page:   query.NewPage(in.Page, in.PerPage, query.DefaultUserPerPage),
	}
	if in.Role != "" {
		role, err := domain.ParseRole(in.Role)
		if err != nil {
			return nil, apperrors.NewInvalidFilterValue("role", in.Role)
		}
		filter.Role = &role
	}
	users, total, err := s.users.ListWithFilter(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &UserListResult{Users: users, Meta: query.NewMeta(filter.Page, total)}, nil
}

// Agents lists active staff that tickets can be assigned to.
func (s *UserService) Agents(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.ListStaff(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return users, nil
}

// Stats aggregates account counts.
func (s *UserService) Stats(ctx context.Context) (domain.UserStats, error) {
	stats, err := s.users.Stats(ctx)
	if err != nil {
		return domain.UserStats{}, apperrors.MapError(err)
	}
	return stats, nil
}

// Get returns a user. End users may only look at themselves.
func (s *UserService) Get(ctx context.Context, actor *domain.User, id int64) (*domain.User, error) {
	if !actor.IsStaff() && actor.ID != id {
		return nil, apperrors.NewForbidden("access denied")
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "user", id))
	}
	return user, nil
}

// Update edits a profile. Username and email can only be changed by their
// owner; role and active flag only by admins.
func (s *UserService) Update(ctx context.Context, actor *domain.User, id int64, in UserUpdateInput) (*domain.User, error) {
	isAdmin := actor.Role == domain.RoleAdmin
	isSelf := actor.ID == id
	if !actor.IsStaff() && !isSelf {
		return nil, apperrors.NewForbidden("access denied")
	}

	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "user", id))
	}

	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if username != user.Username {
			if !isSelf {
				return nil, apperrors.NewForbidden("cannot change another user's username")
			}
			if len(username) < MinUsernameLength {
				return nil, apperrors.NewValidationError("username must be at least 3 characters", map[string]any{"field": "username"})
			}
			if err := s.ensureAvailable(ctx, s.users.GetByUsername, username, id, "username"); err != nil {
				return nil, err
			}
			user.Username = username
		}
	}

	if in.Email != nil {
		email := domain.NormalizeEmail(*in.Email)
		if email != user.Email {
			if !isSelf {
				return nil, apperrors.NewForbidden("cannot change another user's email")
			}
			if !validEmail(email) {
				return nil, apperrors.NewValidationError("invalid email", map[string]any{"field": "email"})
			}
			if err := s.ensureAvailable(ctx, s.users.GetByEmail, email, id, "email"); err != nil {
				return nil, err
			}
			user.Email = email
		}
	}

	if in.Role != nil && *in.Role != string(user.Role) {
		if !isAdmin {
			return nil, apperrors.NewForbidden("only admins can change roles")
		}
		role, err := domain.ParseRole(*in.Role)
		if err != nil {
			return nil, apperrors.NewValidationError("invalid role", map[string]any{"field": "role"})
		}
		user.Role = role
	}

	if in.IsActive != nil && *in.IsActive != user.IsActive {
		if !isAdmin {
			return nil, apperrors.NewForbidden("only admins can change account status")
		}
		if isSelf && !*in.IsActive {
			return nil, apperrors.NewValidationError("cannot deactivate your own account", nil)
		}
		user.IsActive = *in.IsActive
	}

	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(conflict(notFound(err, "user", id), "username or email already in use"))
	}
	return user, nil
}

// Activate re-enables an account.
func (s *UserService) Activate(ctx context.Context, actor *domain.User, id int64) (*domain.User, error) {
	return s.setActive(ctx, actor, id, true)
}

// Deactivate disables an account. Admins cannot deactivate themselves.
func (s *UserService) Deactivate(ctx context.Context, actor *domain.User, id int64) (*domain.User, error) {
	if actor.ID == id {
		return nil, apperrors.NewValidationError("cannot deactivate your own account", nil)
	}
	return s.setActive(ctx, actor, id, false)
}

func (s *UserService) setActive(ctx context.Context, actor *domain.User, id int64, active bool) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(notFound(err, "user", id))
	}
	user.IsActive = active
	if err := s.users.Update(ctx, user); err != nil {
		return nil, apperrors.MapError(notFound(err, "user", id))
	}
	s.logger.Info("user status changed",
		zap.Int64("user_id", id),
		zap.Int64("actor_id", actor.ID),
		zap.Bool("active", active))
	return user, nil
}

type userLookup func(ctx context.Context, value string) (*domain.User, error)

func (s *UserService) ensureAvailable(ctx context.Context, lookup userLookup, value string, selfID int64, field string) error {
	existing, err := lookup(ctx, value)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return apperrors.MapError(err)
	case existing.ID != selfID:
		return apperrors.NewValidationError(field+" already in use", map[string]any{"field": field})
	}
	return nil
}
