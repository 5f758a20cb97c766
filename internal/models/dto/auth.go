// Package dto holds the JSON request and response bodies of the HTTP API.
package dto

import (
	"time"

	"github.com/hongminglow/loandesk/internal/auth"
)

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse is returned by sign-in and by sign-up when the backend
// starts a session immediately.
type SessionResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         auth.User `json:"user"`
}

type SignUpResponse struct {
	User    auth.User        `json:"user"`
	Session *SessionResponse `json:"session,omitempty"`
	// ConfirmationRequired is set when the user must confirm their email
	// before signing in.
	ConfirmationRequired bool `json:"confirmation_required"`
}

type MeResponse struct {
	User    auth.User `json:"user"`
	IsAdmin bool      `json:"is_admin"`
}

// NewSessionResponse converts a provider session.
func NewSessionResponse(s auth.Session) SessionResponse {
	return SessionResponse{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
		User:         s.User,
	}
}
