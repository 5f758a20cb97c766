package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/loandesk/internal/models"
	"github.com/hongminglow/loandesk/internal/storage"
)

// LocalProvider authenticates against bcrypt hashes in an AccountStore and
// issues HS256 session tokens. Sign-out is stateless: tokens lapse at expiry.
type LocalProvider struct {
	accounts AccountStore
	tokens   *TokenManager
	cost     int
}

// NewLocalProvider constructs the provider.
func NewLocalProvider(accounts AccountStore, tokens *TokenManager) *LocalProvider {
	return &LocalProvider{accounts: accounts, tokens: tokens, cost: bcrypt.DefaultCost}
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password, fullName string) (SignUpResult, error) {
	if err := validateCredentials(email, password); err != nil {
		return SignUpResult{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return SignUpResult{}, err
	}

	acct, err := p.accounts.CreateAccount(ctx, models.Account{
		ID:           uuid.NewString(),
		Email:        strings.TrimSpace(email),
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return SignUpResult{}, ErrEmailTaken
		}
		return SignUpResult{}, err
	}

	user := User{ID: acct.ID, Email: acct.Email, FullName: strings.TrimSpace(fullName)}
	sess, err := p.issue(user)
	if err != nil {
		return SignUpResult{}, err
	}
	return SignUpResult{User: user, Session: &sess}, nil
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (Session, error) {
	acct, err := p.accounts.AccountByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return p.issue(User{ID: acct.ID, Email: acct.Email})
}

func (p *LocalProvider) SignOut(_ context.Context, accessToken string) error {
	_, err := p.tokens.Parse(accessToken)
	return err
}

func (p *LocalProvider) User(_ context.Context, accessToken string) (User, error) {
	claims, err := p.tokens.Parse(accessToken)
	if err != nil {
		return User{}, err
	}
	return User{ID: claims.Subject, Email: claims.Email}, nil
}

func (p *LocalProvider) issue(user User) (Session, error) {
	token, expires, err := p.tokens.Generate(user.ID, user.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: token, ExpiresAt: expires, User: user}, nil
}
