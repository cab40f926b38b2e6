// Package auth implements email and password authentication against the
// profile table. Passwords are stored as bcrypt hashes; the signed-in
// user is held in memory for the lifetime of the process.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/raphaelgruber/chatdesk-go/internal/models"
)

var (
	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password, so a caller cannot probe which emails exist.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrNotSignedIn        = errors.New("not signed in")
)

// ProfileStore is the subset of the remote store auth needs.
type ProfileStore interface {
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	CreateProfile(ctx context.Context, email, passwordHash string) (*models.Profile, error)
}

// Authenticator signs users in and tracks the current session.
type Authenticator struct {
	store  ProfileStore
	logger *slog.Logger

	mu      sync.Mutex
	current *models.Profile
}

func New(store ProfileStore, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{store: store, logger: logger}
}

// SignIn verifies the password against the stored hash and makes the
// profile the current user.
func (a *Authenticator) SignIn(ctx context.Context, email, password string) (*models.Profile, error) {
	email = normalizeEmail(email)

	profile, err := a.store.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up profile: %w", err)
	}
	if profile == nil {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		a.logger.Warn("failed sign-in attempt", "email", email)
		return nil, ErrInvalidCredentials
	}

	a.mu.Lock()
	a.current = profile
	a.mu.Unlock()

	a.logger.Info("signed in", "email", email, "user_id", models.MustRecordIDString(profile.ID))
	return profile, nil
}

// SignUp registers a new profile and signs it in.
func (a *Authenticator) SignUp(ctx context.Context, email, password string) (*models.Profile, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errors.New("email is required")
	}
	if len(password) < 8 {
		return nil, errors.New("password must be at least 8 characters")
	}

	existing, err := a.store.GetProfileByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up profile: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	profile, err := a.store.CreateProfile(ctx, email, string(hash))
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	a.mu.Lock()
	a.current = profile
	a.mu.Unlock()

	a.logger.Info("signed up", "email", email, "user_id", models.MustRecordIDString(profile.ID))
	return profile, nil
}

// CurrentUser returns the signed-in profile, or ErrNotSignedIn.
func (a *Authenticator) CurrentUser() (*models.Profile, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil {
		return nil, ErrNotSignedIn
	}
	profile := *a.current
	return &profile, nil
}

// SignOut clears the current session. Safe to call when signed out.
func (a *Authenticator) SignOut() {
	a.mu.Lock()
	a.current = nil
	a.mu.Unlock()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
