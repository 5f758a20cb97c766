package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// User is an identity issued by the auth service.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	CreatedAt    string         `json:"created_at"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// AuthResponse is returned by sign-up and sign-in. Session fields are empty
// after sign-up when the project requires email confirmation.
type AuthResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// SignUp registers a user; metadata is stored as user_metadata.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*AuthResponse, error) {
	body := map[string]any{"email": email, "password": password}
	if len(metadata) > 0 {
		body["data"] = metadata
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/signup", nil, body, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}

	var out AuthResponse
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	// Without auto-confirm the endpoint returns the bare user object.
	if out.User == nil {
		var u User
		if err := resp.JSON(&u); err == nil && u.ID != "" {
			out.User = &u
		}
	}
	if out.User == nil {
		return nil, fmt.Errorf("signup response carried no user")
	}
	return &out, nil
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*AuthResponse, error) {
	query := url.Values{"grant_type": {"password"}}
	body := map[string]string{"email": email, "password": password}
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/token", query, body, "")
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var out AuthResponse
	if err := resp.JSON(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SignOut revokes the session behind accessToken.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil, nil, accessToken)
	if err != nil {
		return err
	}
	_, err = c.do(req)
	return err
}

// GetUser returns the user owning accessToken.
func (c *Client) GetUser(ctx context.Context, accessToken string) (*User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil, nil, accessToken)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var u User
	if err := resp.JSON(&u); err != nil {
		return nil, err
	}
	return &u, nil
}
