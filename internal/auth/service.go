package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/hongminglow/loandesk/internal/logging"
	"github.com/hongminglow/loandesk/internal/models"
	"github.com/hongminglow/loandesk/internal/storage"
)

// Principal is the caller of a service operation. The zero value is an
// anonymous caller.
type Principal struct {
	UserID      string
	Email       string
	AccessToken string
	IsAdmin     bool
}

// Authenticated reports whether the principal carries an identity.
func (p Principal) Authenticated() bool {
	return p.UserID != ""
}

// Context attaches the principal's access token for stores that forward it.
func (p Principal) Context(ctx context.Context) context.Context {
	return storage.WithAccessToken(ctx, p.AccessToken)
}

// ProfileStore reads and creates profile rows.
type ProfileStore interface {
	ProfileByID(ctx context.Context, id string) (models.Profile, error)
	InsertProfile(ctx context.Context, p models.Profile) (models.Profile, error)
}

// Service combines an identity provider with the profile table.
type Service struct {
	provider Provider
	profiles ProfileStore
	log      logging.Logger
}

// NewService constructs the service.
func NewService(provider Provider, profiles ProfileStore, log logging.Logger) *Service {
	return &Service{provider: provider, profiles: profiles, log: log.With("component", "auth")}
}

// SignUp registers the user and creates the matching profile row. A failed
// profile insert is logged and does not fail the sign-up.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (SignUpResult, error) {
	res, err := s.provider.SignUp(ctx, email, password, fullName)
	if err != nil {
		return SignUpResult{}, err
	}

	pctx := ctx
	if res.Session != nil {
		pctx = storage.WithAccessToken(ctx, res.Session.AccessToken)
	}
	_, err = s.profiles.InsertProfile(pctx, models.Profile{
		ID:       res.User.ID,
		Email:    strings.TrimSpace(email),
		FullName: strings.TrimSpace(fullName),
	})
	if err != nil && !errors.Is(err, storage.ErrAlreadyExists) {
		s.log.Warn(ctx, "create profile failed", "user_id", res.User.ID, "error", err)
	}
	return res, nil
}

// SignIn authenticates with email and password.
func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	return s.provider.SignIn(ctx, email, password)
}

// SignOut ends the session behind accessToken.
func (s *Service) SignOut(ctx context.Context, accessToken string) error {
	return s.provider.SignOut(ctx, accessToken)
}

// User returns the identity behind accessToken.
func (s *Service) User(ctx context.Context, accessToken string) (User, error) {
	return s.provider.User(ctx, accessToken)
}

// Resolve turns a bearer token into a principal. The admin flag comes from
// the profile row; a missing profile means a regular customer.
func (s *Service) Resolve(ctx context.Context, accessToken string) (Principal, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Principal{}, ErrInvalidToken
	}
	user, err := s.provider.User(ctx, accessToken)
	if err != nil {
		return Principal{}, err
	}

	p := Principal{UserID: user.ID, Email: user.Email, AccessToken: accessToken}
	profile, err := s.profiles.ProfileByID(p.Context(ctx), user.ID)
	switch {
	case err == nil:
		p.IsAdmin = profile.IsAdmin()
	case errors.Is(err, storage.ErrNotFound):
	default:
		s.log.Warn(ctx, "profile lookup failed", "user_id", user.ID, "error", err)
	}
	return p, nil
}
