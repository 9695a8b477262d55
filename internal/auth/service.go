package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/kmrl/opsboard/internal/shared"
)

// MinPasswordLength is enforced when creating accounts and on the login form.
const MinPasswordLength = 8

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger.With(slog.String("component", "auth")), now: time.Now}
}

// CheckCredentials validates email/password credentials. Every failure is
// reported as shared.ErrInvalidCredentials.
func (s *Service) CheckCredentials(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			s.logger.Error("lookup user", slog.Any("error", err))
		}
		return nil, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := s.repo.TouchLogin(ctx, user.ID, s.now().UTC()); err != nil {
		s.logger.Warn("record login", slog.Any("error", err))
	}
	return user, nil
}

// CreateUser hashes password and stores a new active account.
func (s *Service) CreateUser(ctx context.Context, email, name, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("auth: invalid email %q", email)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("auth: password must be at least %d characters", MinPasswordLength)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user := User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return &user, nil
}

// EnsureUser creates the account unless the email already exists.
func (s *Service) EnsureUser(ctx context.Context, email, name, password string) error {
	if _, err := s.CreateUser(ctx, email, name, password); err != nil && !errors.Is(err, ErrDuplicateEmail) {
		return err
	}
	return nil
}

var _ CredentialChecker = (*Service)(nil)
