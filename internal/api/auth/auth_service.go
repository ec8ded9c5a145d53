package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/go-users-api/app/observability/metrics"
	"github.com/FACorreiaa/go-users-api/internal/types"
)

var _ AuthService = (*AuthServiceImpl)(nil)

type AuthService interface {
	// Login checks the credentials and issues an access token. Unknown email
	// and wrong password both return types.ErrInvalidCredentials.
	Login(ctx context.Context, email, password string) (*types.LoginResult, error)
}

type AuthServiceImpl struct {
	logger    *slog.Logger
	store     CredentialStore
	hasher    PasswordHasher
	tokens    TokenIssuer
	dummyHash string
}

func NewAuthService(store CredentialStore, hasher PasswordHasher, tokens TokenIssuer, logger *slog.Logger) *AuthServiceImpl {
	// Compared against when the email is unknown so both failure paths pay for a bcrypt run.
	dummyHash, err := hasher.Hash(uuid.NewString())
	if err != nil {
		logger.Warn("Failed to prepare dummy password hash", slog.Any("error", err))
	}
	return &AuthServiceImpl{
		logger:    logger,
		store:     store,
		hasher:    hasher,
		tokens:    tokens,
		dummyHash: dummyHash,
	}
}

func (s *AuthServiceImpl) Login(ctx context.Context, email, password string) (*types.LoginResult, error) {
	ctx, span := otel.Tracer("AuthService").Start(ctx, "Login")
	defer span.End()

	l := s.logger.With(slog.String("method", "Login"))

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			_ = s.hasher.Verify(password, s.dummyHash)
			l.InfoContext(ctx, "Login rejected: unknown email")
			s.recordOutcome(ctx, span, "invalid_credentials")
			return nil, types.ErrInvalidCredentials
		}
		l.ErrorContext(ctx, "Failed to look up credentials", slog.Any("error", err))
		span.RecordError(err)
		s.recordOutcome(ctx, span, "error")
		return nil, fmt.Errorf("error looking up user by email: %w", err)
	}
	span.SetAttributes(attribute.Int64("user.id", user.ID))

	if err := s.hasher.Verify(password, user.PasswordHash); err != nil {
		if !errors.Is(err, ErrPasswordMismatch) {
			l.ErrorContext(ctx, "Stored password hash could not be verified", slog.Int64("userID", user.ID), slog.Any("error", err))
		} else {
			l.InfoContext(ctx, "Login rejected: wrong password", slog.Int64("userID", user.ID))
		}
		s.recordOutcome(ctx, span, "invalid_credentials")
		return nil, types.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, types.IdentityClaims{Email: user.Email, Name: user.Name})
	if err != nil {
		l.ErrorContext(ctx, "Failed to issue token", slog.Int64("userID", user.ID), slog.Any("error", err))
		span.RecordError(err)
		s.recordOutcome(ctx, span, "error")
		return nil, fmt.Errorf("error issuing token: %w", err)
	}

	l.InfoContext(ctx, "User logged in", slog.Int64("userID", user.ID))
	s.recordOutcome(ctx, span, "success")
	return &types.LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.Summary(),
	}, nil
}

func (s *AuthServiceImpl) recordOutcome(ctx context.Context, span trace.Span, outcome string) {
	metrics.Get().LoginRequestsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	span.SetAttributes(attribute.String("login.outcome", outcome))
	if outcome == "success" {
		span.SetStatus(codes.Ok, "login succeeded")
		return
	}
	span.SetStatus(codes.Error, "login failed")
}
