package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/FACorreiaa/go-users-api/app/observability/metrics"
	"github.com/FACorreiaa/go-users-api/internal/api/auth"
	"github.com/FACorreiaa/go-users-api/internal/types"
)

// Ensure implementation satisfies the interface
var _ UserService = (*UserServiceImpl)(nil)

// UserService defines the business logic contract for user operations.
type UserService interface {
	ListUsers(ctx context.Context) ([]types.UserDetail, error)
	GetUser(ctx context.Context, userID int64) (*types.UserDetail, error)
	// GetCurrentUser resolves the authenticated caller. A caller whose record
	// no longer exists gets types.ErrUnauthenticated rather than a 404.
	GetCurrentUser(ctx context.Context, userID int64) (*types.UserDetail, error)
	CreateUser(ctx context.Context, req types.CreateUserRequest) (*types.UserDetail, error)
	UpdateUser(ctx context.Context, userID int64, req types.UpdateUserRequest) (*types.UserDetail, error)
	DeleteUser(ctx context.Context, userID int64) error
}

// UserServiceImpl provides the implementation for UserService.
type UserServiceImpl struct {
	logger *slog.Logger
	repo   UserRepo
	hasher auth.PasswordHasher
	now    func() time.Time
}

// NewUserService creates a new user service instance.
func NewUserService(repo UserRepo, hasher auth.PasswordHasher, logger *slog.Logger) *UserServiceImpl {
	return &UserServiceImpl{
		logger: logger,
		repo:   repo,
		hasher: hasher,
		now:    time.Now,
	}
}

// WithClock returns a copy of the service that stamps createdAt and
// updatedAt from now.
func (s *UserServiceImpl) WithClock(now func() time.Time) *UserServiceImpl {
	c := *s
	c.now = now
	return &c
}

func (s *UserServiceImpl) ListUsers(ctx context.Context) ([]types.UserDetail, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "ListUsers")
	defer span.End()

	l := s.logger.With(slog.String("method", "ListUsers"))
	l.DebugContext(ctx, "Listing users")

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list users", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list users")
		return nil, fmt.Errorf("error listing users: %w", err)
	}

	details := make([]types.UserDetail, 0, len(users))
	for i := range users {
		details = append(details, users[i].Detail())
	}
	span.SetAttributes(attribute.Int("users.count", len(details)))
	span.SetStatus(codes.Ok, "users listed")
	return details, nil
}

func (s *UserServiceImpl) GetUser(ctx context.Context, userID int64) (*types.UserDetail, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "GetUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	l := s.logger.With(slog.String("method", "GetUser"), slog.Int64("userID", userID))
	l.DebugContext(ctx, "Fetching user")

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.InfoContext(ctx, "User not found")
		} else {
			l.ErrorContext(ctx, "Failed to fetch user", slog.Any("error", err))
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "failed to fetch user")
		return nil, fmt.Errorf("error fetching user: %w", err)
	}

	detail := user.Detail()
	return &detail, nil
}

func (s *UserServiceImpl) GetCurrentUser(ctx context.Context, userID int64) (*types.UserDetail, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "GetCurrentUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	l := s.logger.With(slog.String("method", "GetCurrentUser"), slog.Int64("userID", userID))

	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.WarnContext(ctx, "Authenticated user no longer exists")
			span.SetStatus(codes.Error, "user not found")
			return nil, types.ErrUnauthenticated
		}
		l.ErrorContext(ctx, "Failed to fetch current user", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch current user")
		return nil, fmt.Errorf("error fetching current user: %w", err)
	}

	detail := user.Detail()
	return &detail, nil
}

func (s *UserServiceImpl) CreateUser(ctx context.Context, req types.CreateUserRequest) (*types.UserDetail, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "CreateUser")
	defer span.End()

	l := s.logger.With(slog.String("method", "CreateUser"))

	status, err := types.ParseUserStatus(req.Status)
	if err != nil {
		l.InfoContext(ctx, "Rejected user with invalid status", slog.String("status", *req.Status))
		span.SetStatus(codes.Error, "invalid status")
		return nil, err
	}
	if err := req.Validate(); err != nil {
		l.InfoContext(ctx, "Rejected invalid user", slog.Any("error", err))
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	hash, err := s.hasher.Hash(req.PlaintextPassword())
	if err != nil {
		l.ErrorContext(ctx, "Failed to hash password", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to hash password")
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user, err := s.repo.CreateUser(ctx, types.CreateUserParams{
		Name:         req.Name,
		Email:        req.Email,
		PhoneNumber:  normalizePhone(req.PhoneNumber),
		PasswordHash: hash,
		Status:       status,
		CreatedAt:    s.timestamp(),
	})
	if err != nil {
		if errors.Is(err, types.ErrDuplicateEmail) {
			l.InfoContext(ctx, "Rejected duplicate email")
		} else {
			l.ErrorContext(ctx, "Failed to create user", slog.Any("error", err))
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "failed to create user")
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	metrics.Get().UsersCreatedTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(user.Status))))
	l.InfoContext(ctx, "User created", slog.Int64("userID", user.ID))
	span.SetAttributes(attribute.Int64("user.id", user.ID))
	span.SetStatus(codes.Ok, "user created")

	detail := user.Detail()
	return &detail, nil
}

func (s *UserServiceImpl) UpdateUser(ctx context.Context, userID int64, req types.UpdateUserRequest) (*types.UserDetail, error) {
	ctx, span := otel.Tracer("UserService").Start(ctx, "UpdateUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	l := s.logger.With(slog.String("method", "UpdateUser"), slog.Int64("userID", userID))

	status, err := types.ParseUserStatus(req.Status)
	if err != nil {
		l.InfoContext(ctx, "Rejected update with invalid status", slog.String("status", *req.Status))
		span.SetStatus(codes.Error, "invalid status")
		return nil, err
	}
	if err := req.Validate(); err != nil {
		l.InfoContext(ctx, "Rejected invalid update", slog.Any("error", err))
		span.SetStatus(codes.Error, "validation failed")
		return nil, err
	}

	user, err := s.repo.UpdateUser(ctx, userID, types.UpdateUserParams{
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: normalizePhone(req.PhoneNumber),
		Status:      status,
		UpdatedAt:   s.timestamp(),
	})
	if err != nil {
		if errors.Is(err, types.ErrNotFound) || errors.Is(err, types.ErrDuplicateEmail) {
			l.InfoContext(ctx, "Update rejected", slog.Any("error", err))
		} else {
			l.ErrorContext(ctx, "Failed to update user", slog.Any("error", err))
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "failed to update user")
		return nil, fmt.Errorf("error updating user: %w", err)
	}

	l.InfoContext(ctx, "User updated")
	span.SetStatus(codes.Ok, "user updated")
	detail := user.Detail()
	return &detail, nil
}

func (s *UserServiceImpl) DeleteUser(ctx context.Context, userID int64) error {
	ctx, span := otel.Tracer("UserService").Start(ctx, "DeleteUser")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", userID))

	l := s.logger.With(slog.String("method", "DeleteUser"), slog.Int64("userID", userID))

	if err := s.repo.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, types.ErrNotFound) {
			l.InfoContext(ctx, "User to delete not found")
		} else {
			l.ErrorContext(ctx, "Failed to delete user", slog.Any("error", err))
			span.RecordError(err)
		}
		span.SetStatus(codes.Error, "failed to delete user")
		return fmt.Errorf("error deleting user: %w", err)
	}

	l.InfoContext(ctx, "User deleted")
	span.SetStatus(codes.Ok, "user deleted")
	return nil
}

// timestamp is truncated to microseconds, the precision Postgres stores.
func (s *UserServiceImpl) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func normalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*phone)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
