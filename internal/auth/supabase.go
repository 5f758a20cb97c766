package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hongminglow/loandesk/internal/supabase"
)

// SupabaseProvider delegates identity to the hosted backend's auth service.
type SupabaseProvider struct {
	client *supabase.Client
	now    func() time.Time
}

// NewSupabaseProvider constructs the provider.
func NewSupabaseProvider(client *supabase.Client) *SupabaseProvider {
	return &SupabaseProvider{client: client, now: time.Now}
}

func (p *SupabaseProvider) SignUp(ctx context.Context, email, password, fullName string) (SignUpResult, error) {
	if err := validateCredentials(email, password); err != nil {
		return SignUpResult{}, err
	}
	var metadata map[string]any
	if name := strings.TrimSpace(fullName); name != "" {
		metadata = map[string]any{"full_name": name}
	}
	resp, err := p.client.SignUp(ctx, strings.TrimSpace(email), password, metadata)
	if err != nil {
		return SignUpResult{}, mapAuthErr(err)
	}

	user := toUser(resp.User)
	if user.FullName == "" {
		user.FullName = strings.TrimSpace(fullName)
	}
	out := SignUpResult{User: user}
	if resp.AccessToken != "" {
		sess := p.session(resp, user)
		out.Session = &sess
	}
	return out, nil
}

func (p *SupabaseProvider) SignIn(ctx context.Context, email, password string) (Session, error) {
	resp, err := p.client.SignIn(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return Session{}, mapAuthErr(err)
	}
	if resp.AccessToken == "" || resp.User == nil {
		return Session{}, fmt.Errorf("sign in: backend returned no session")
	}
	return p.session(resp, toUser(resp.User)), nil
}

func (p *SupabaseProvider) SignOut(ctx context.Context, accessToken string) error {
	return mapAuthErr(p.client.SignOut(ctx, accessToken))
}

func (p *SupabaseProvider) User(ctx context.Context, accessToken string) (User, error) {
	u, err := p.client.GetUser(ctx, accessToken)
	if err != nil {
		return User{}, mapAuthErr(err)
	}
	if u.ID == "" {
		return User{}, ErrInvalidToken
	}
	return toUser(u), nil
}

func (p *SupabaseProvider) session(resp *supabase.AuthResponse, user User) Session {
	expires := time.Time{}
	switch {
	case resp.ExpiresAt > 0:
		expires = time.Unix(resp.ExpiresAt, 0).UTC()
	case resp.ExpiresIn > 0:
		expires = p.now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC()
	}
	return Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		ExpiresAt:    expires,
		User:         user,
	}
}

func toUser(u *supabase.User) User {
	if u == nil {
		return User{}
	}
	user := User{ID: u.ID, Email: u.Email}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		user.FullName = name
	}
	return user
}

func mapAuthErr(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *supabase.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	msg := strings.ToLower(apiErr.Message)
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrInvalidToken, apiErr.Message)
	case strings.Contains(msg, "invalid login credentials"), apiErr.Code == "invalid_credentials":
		return ErrInvalidCredentials
	case strings.Contains(msg, "already registered"), apiErr.Code == "user_already_exists":
		return ErrEmailTaken
	}
	return err
}
