// Package directory syncs provider identity claims into the local user
// directory. The directory owns authorization data (role, active flag) that
// the identity provider must never overwrite.
package directory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/opsboard/auth/providers"
)

// Role names known to the dashboard
const (
	RoleAdmin   = "admin"
	RoleAnalyst = "analyst"
	RoleUser    = "user"
)

var (
	// ErrUserNotFound indicates no local record exists for a provider identity
	ErrUserNotFound = errors.New("user not found")

	// ErrMissingSubject indicates the provider returned no stable identity;
	// a profile without a subject cannot be synced or authorized
	ErrMissingSubject = errors.New("profile has no subject identifier")
)

// SyncError wraps a directory store failure. It is non-fatal: session
// establishment proceeds even when sync fails, so a store outage degrades to
// "authenticated but unsynced" instead of locking users out.
type SyncError struct {
	Err error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	return fmt.Sprintf("directory sync failed: %v", e.Err)
}

// Unwrap returns the underlying error
func (e *SyncError) Unwrap() error {
	return e.Err
}

// LocalUser is the dashboard's record of an authenticated user.
// Role and IsActive are administrator-controlled; login only refreshes the
// provider-sourced fields.
type LocalUser struct {
	UserID        string
	Auth0ID       string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
	CreatedAt     time.Time
	LastLogin     time.Time
	Role          string
	IsActive      bool
}

// UserStore is the collaborator interface to the relational user directory.
type UserStore interface {
	// FindByProviderID looks up a user by the provider subject identifier.
	// Returns ErrUserNotFound when no record exists.
	FindByProviderID(ctx context.Context, auth0ID string) (*LocalUser, error)

	// Insert creates a new user record
	Insert(ctx context.Context, user *LocalUser) (*LocalUser, error)

	// Update refreshes the provider-sourced fields of an existing record
	Update(ctx context.Context, user *LocalUser) (*LocalUser, error)
}

// Service implements the upsert algorithm over a UserStore.
type Service struct {
	store  UserStore
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a directory sync service
func NewService(store UserStore) *Service {
	return &Service{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// SetLogger sets the logger used for sync events
func (s *Service) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetClock overrides the time source. Intended for tests.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Upsert creates or refreshes the local record for a provider profile.
//
// The subject identifier is the only mandatory claim. Email and name are
// resolved through fallback chains; a user is never rejected for missing
// either. On update, role and active flag are left untouched.
func (s *Service) Upsert(ctx context.Context, profile *providers.UserInfo) (*LocalUser, error) {
	if profile == nil || profile.Sub == "" {
		return nil, ErrMissingSubject
	}

	email := firstNonEmpty(profile.Email, profile.PreferredUsername)

	name := firstNonEmpty(profile.Name, profile.Nickname, profile.GivenName)
	if name == "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			name = email[:at]
		} else {
			name = "Unknown User"
		}
	}

	if email == "" {
		s.logger.Warn("User has no email address", "sub", profile.Sub)
		email = profile.Sub + "@unknown.auth0"
	}

	now := s.now()

	existing, err := s.store.FindByProviderID(ctx, profile.Sub)
	switch {
	case err == nil:
		existing.Email = email
		existing.Name = name
		existing.Picture = profile.Picture
		existing.EmailVerified = profile.EmailVerified
		existing.LastLogin = now

		updated, err := s.store.Update(ctx, existing)
		if err != nil {
			return nil, &SyncError{Err: fmt.Errorf("update user: %w", err)}
		}
		s.logger.Info("Updated user", "email", email, "name", name)
		return updated, nil

	case errors.Is(err, ErrUserNotFound):
		user := &LocalUser{
			UserID:        uuid.NewString(),
			Auth0ID:       profile.Sub,
			Email:         email,
			Name:          name,
			Picture:       profile.Picture,
			EmailVerified: profile.EmailVerified,
			CreatedAt:     now,
			LastLogin:     now,
			Role:          RoleUser,
			IsActive:      true,
		}
		inserted, err := s.store.Insert(ctx, user)
		if err != nil {
			return nil, &SyncError{Err: fmt.Errorf("insert user: %w", err)}
		}
		s.logger.Info("Created new user", "email", email, "name", name)
		return inserted, nil

	default:
		return nil, &SyncError{Err: fmt.Errorf("lookup user: %w", err)}
	}
}

// FindByProviderID exposes directory lookup for authorization checks
func (s *Service) FindByProviderID(ctx context.Context, auth0ID string) (*LocalUser, error) {
	return s.store.FindByProviderID(ctx, auth0ID)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
