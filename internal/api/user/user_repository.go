package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-users-api/app/observability/metrics"
	"github.com/FACorreiaa/go-users-api/internal/api/auth"
	"github.com/FACorreiaa/go-users-api/internal/types"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"

	emailUniqueConstraint = "users_email_key"
	statusCheckConstraint = "users_status_check"

	userColumns = `id, name, email, phone_number, password_hash, status, created_at, updated_at`
)

var (
	_ UserRepo             = (*PostgresUserRepo)(nil)
	_ auth.CredentialStore = (*PostgresUserRepo)(nil)
)

// UserRepo defines the contract for user persistence.
type UserRepo interface {
	// ListUsers returns every user, newest id first.
	ListUsers(ctx context.Context) ([]types.User, error)
	// GetUserByID returns types.ErrNotFound if the user doesn't exist.
	GetUserByID(ctx context.Context, userID int64) (*types.User, error)
	// GetUserByEmail matches the stored email exactly.
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	// CreateUser inserts a user. The email unique constraint makes the
	// duplicate check atomic; a clash returns types.ErrDuplicateEmail.
	CreateUser(ctx context.Context, params types.CreateUserParams) (*types.User, error)
	// UpdateUser replaces name, email, phone and status and stamps updated_at.
	UpdateUser(ctx context.Context, userID int64, params types.UpdateUserParams) (*types.User, error)
	DeleteUser(ctx context.Context, userID int64) error
}

// DB is the subset of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresUserRepo struct {
	logger *slog.Logger
	pgpool DB
}

func NewPostgresUserRepo(pgpool DB, logger *slog.Logger) *PostgresUserRepo {
	return &PostgresUserRepo{
		logger: logger,
		pgpool: pgpool,
	}
}

func (r *PostgresUserRepo) ListUsers(ctx context.Context) (users []types.User, err error) {
	ctx, span := startSpan(ctx, "ListUsers", "SELECT")
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveQuery(ctx, "list_users", start, err) }()

	rows, err := r.pgpool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id DESC`)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query users", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("error querying users: %w", err)
	}
	defer rows.Close()

	users = make([]types.User, 0)
	for rows.Next() {
		u, scanErr := scanUser(rows)
		if scanErr != nil {
			r.logger.ErrorContext(ctx, "Failed to scan user row", slog.Any("error", scanErr))
			span.RecordError(scanErr)
			return nil, fmt.Errorf("error scanning user row: %w", scanErr)
		}
		users = append(users, *u)
	}
	if err = rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}

func (r *PostgresUserRepo) GetUserByID(ctx context.Context, userID int64) (user *types.User, err error) {
	ctx, span := startSpan(ctx, "GetUserByID", "SELECT", attribute.Int64("user.id", userID))
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveQuery(ctx, "get_user_by_id", start, err) }()

	user, err = scanUser(r.pgpool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userID, types.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to fetch user by id", slog.Int64("userID", userID), slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("error fetching user by id: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) GetUserByEmail(ctx context.Context, email string) (user *types.User, err error) {
	ctx, span := startSpan(ctx, "GetUserByEmail", "SELECT")
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveQuery(ctx, "get_user_by_email", start, err) }()

	user, err = scanUser(r.pgpool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to fetch user by email", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("error fetching user by email: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) CreateUser(ctx context.Context, params types.CreateUserParams) (user *types.User, err error) {
	ctx, span := startSpan(ctx, "CreateUser", "INSERT")
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveQuery(ctx, "create_user", start, err) }()

	user, err = scanUser(r.pgpool.QueryRow(ctx, `
		INSERT INTO users (name, email, phone_number, password_hash, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+userColumns,
		params.Name, params.Email, params.PhoneNumber, params.PasswordHash, string(params.Status), params.CreatedAt,
	))
	if err != nil {
		if mapped := mapConstraintError(err); mapped != nil {
			r.logger.InfoContext(ctx, "User insert rejected by constraint", slog.Any("error", err))
			return nil, mapped
		}
		r.logger.ErrorContext(ctx, "Failed to insert user", slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("error inserting user: %w", err)
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	return user, nil
}

func (r *PostgresUserRepo) UpdateUser(ctx context.Context, userID int64, params types.UpdateUserParams) (user *types.User, err error) {
	ctx, span := startSpan(ctx, "UpdateUser", "UPDATE", attribute.Int64("user.id", userID))
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveQuery(ctx, "update_user", start, err) }()

	user, err = scanUser(r.pgpool.QueryRow(ctx, `
		UPDATE users
		SET name = $1, email = $2, phone_number = $3, status = $4, updated_at = $5
		WHERE id = $6
		RETURNING `+userColumns,
		params.Name, params.Email, params.PhoneNumber, string(params.Status), params.UpdatedAt, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", userID, types.ErrNotFound)
		}
		if mapped := mapConstraintError(err); mapped != nil {
			r.logger.InfoContext(ctx, "User update rejected by constraint", slog.Int64("userID", userID), slog.Any("error", err))
			return nil, mapped
		}
		r.logger.ErrorContext(ctx, "Failed to update user", slog.Int64("userID", userID), slog.Any("error", err))
		span.RecordError(err)
		return nil, fmt.Errorf("error updating user: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepo) DeleteUser(ctx context.Context, userID int64) (err error) {
	ctx, span := startSpan(ctx, "DeleteUser", "DELETE", attribute.Int64("user.id", userID))
	defer span.End()
	start := time.Now()
	defer func() { metrics.ObserveQuery(ctx, "delete_user", start, err) }()

	tag, err := r.pgpool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete user", slog.Int64("userID", userID), slog.Any("error", err))
		span.RecordError(err)
		return fmt.Errorf("error deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", userID, types.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (*types.User, error) {
	var (
		u      types.User
		status string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PhoneNumber, &u.PasswordHash, &status, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Status = types.UserStatus(status)
	return &u, nil
}

// mapConstraintError turns the constraint violations the schema declares
// into domain errors, or returns nil.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return nil
	}
	switch {
	case pgErr.Code == pgUniqueViolation && (pgErr.ConstraintName == emailUniqueConstraint || pgErr.ConstraintName == ""):
		return types.ErrDuplicateEmail
	case pgErr.Code == pgCheckViolation && pgErr.ConstraintName == statusCheckConstraint:
		return types.ErrInvalidStatus
	}
	return nil
}

func startSpan(ctx context.Context, name, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs,
		semconv.DBSystemPostgreSQL,
		semconv.DBOperationName(operation),
		semconv.DBCollectionName("users"),
	)
	return otel.Tracer("UserRepo").Start(ctx, name, trace.WithAttributes(attrs...))
}
