// Package auth authenticates users against the configured identity backend
// and resolves request tokens into principals.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hongminglow/loandesk/internal/models"
)

var (
	// ErrInvalidCredentials is returned when email and password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")
)

// MinPasswordLength matches the hosted backend's default password policy.
const MinPasswordLength = 6

// User is an authenticated identity.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
}

// Session is a bearer token and its lifetime. RefreshToken is empty for
// providers that do not issue one.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the session is past its expiry at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// SignUpResult carries the new user and, when the backend signs the user in
// immediately, a session.
type SignUpResult struct {
	User    User
	Session *Session
}

// Provider is an identity backend.
type Provider interface {
	SignUp(ctx context.Context, email, password, fullName string) (SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
	SignOut(ctx context.Context, accessToken string) error
	// User returns the identity behind accessToken or ErrInvalidToken.
	User(ctx context.Context, accessToken string) (User, error)
}

// AccountStore persists credentials for the self-hosted provider.
type AccountStore interface {
	CreateAccount(ctx context.Context, a models.Account) (models.Account, error)
	AccountByEmail(ctx context.Context, email string) (models.Account, error)
}

// CredentialsError reports an unusable email or password before any backend call.
type CredentialsError struct {
	Message string
}

func (e *CredentialsError) Error() string { return e.Message }

func validateCredentials(email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") {
		return &CredentialsError{Message: "a valid email is required"}
	}
	if len(password) < MinPasswordLength {
		return &CredentialsError{Message: "password must be at least 6 characters"}
	}
	return nil
}
