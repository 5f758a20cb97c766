// Package backend opens the persistence store and identity provider
// selected by configuration.
package backend

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hongminglow/loandesk/internal/auth"
	"github.com/hongminglow/loandesk/internal/config"
	"github.com/hongminglow/loandesk/internal/logging"
	"github.com/hongminglow/loandesk/internal/storage"
	"github.com/hongminglow/loandesk/internal/storage/local"
	"github.com/hongminglow/loandesk/internal/storage/postgres"
	sbstore "github.com/hongminglow/loandesk/internal/storage/supabase"
	"github.com/hongminglow/loandesk/internal/supabase"
)

// ErrRolesUnsupported is returned by SetRole when roles are managed outside
// this process.
var ErrRolesUnsupported = errors.New("roles are managed in the hosted backend dashboard")

// ErrResetUnsupported is returned by Reset outside local mode.
var ErrResetUnsupported = errors.New("reset is only available with local storage")

// RoleSetter changes a profile's role.
type RoleSetter interface {
	SetRole(ctx context.Context, id, role string) error
}

// Backend is an opened store plus the auth service on top of it.
type Backend struct {
	Mode  config.BackendMode
	Store storage.Store
	Auth  *auth.Service
	// Ping is nil for backends with nothing to check.
	Ping  func(ctx context.Context) error
	roles RoleSetter
	clear func() error
	close func()
}

// Open connects to the backend named by cfg.Mode.
func Open(ctx context.Context, cfg config.Config, log logging.Logger) (*Backend, error) {
	log = log.With("backend", string(cfg.Mode))
	if cfg.ModeDefaulted {
		log.Warn(ctx, "no backend configured; using local storage. Set BACKEND_MODE or SUPABASE_URL to use a shared backend")
	}

	b := &Backend{Mode: cfg.Mode, close: func() {}}
	switch cfg.Mode {
	case config.BackendLocal:
		kv, err := local.NewFileKV(cfg.LocalDataDir)
		if err != nil {
			return nil, fmt.Errorf("open local data dir: %w", err)
		}
		secret := cfg.JWTSecret
		if secret == "" {
			path, generated, err := localSecret(cfg.LocalDataDir, &secret)
			if err != nil {
				return nil, fmt.Errorf("local signing key: %w", err)
			}
			if generated {
				log.Warn(ctx, "JWT_SECRET not set; generated a signing key for local use", "path", path)
			}
		}
		store := local.NewStore(kv)
		tokens := auth.NewTokenManager(secret, cfg.JWTIssuer, cfg.JWTTTL)
		b.Store = store
		b.roles = store
		b.clear = store.ClearAll
		b.Auth = auth.NewService(auth.NewLocalProvider(store, tokens), store, log)

	case config.BackendPostgres:
		store, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init database: %w", err)
		}
		tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
		b.Store = store
		b.roles = store
		b.Ping = store.Ping
		b.close = store.Close
		b.Auth = auth.NewService(auth.NewLocalProvider(store, tokens), store, log)

	case config.BackendSupabase:
		client, err := supabase.New(supabase.Config{
			URL:       cfg.Supabase.URL,
			APIKey:    cfg.Supabase.AnonKey,
			Timeout:   cfg.Supabase.Timeout,
			RateLimit: cfg.Supabase.RateLimit,
		})
		if err != nil {
			return nil, err
		}
		store := sbstore.NewStore(client)
		b.Store = store
		b.Auth = auth.NewService(auth.NewSupabaseProvider(client), store, log)

	default:
		return nil, fmt.Errorf("unknown backend mode %q", cfg.Mode)
	}

	log.Info(ctx, "backend ready")
	return b, nil
}

// SetRole changes a profile's role where the backend allows it.
func (b *Backend) SetRole(ctx context.Context, id, role string) error {
	if b.roles == nil {
		return ErrRolesUnsupported
	}
	return b.roles.SetRole(ctx, id, role)
}

// Reset deletes all applications and payments in a local store.
func (b *Backend) Reset(_ context.Context) error {
	if b.clear == nil {
		return ErrResetUnsupported
	}
	return b.clear()
}

// Close releases backend connections.
func (b *Backend) Close() {
	b.close()
}

const secretFile = "jwt_secret"

// localSecret reads the signing key kept in dir, creating a random one on
// first use so tokens stay valid across restarts.
func localSecret(dir string, secret *string) (path string, generated bool, err error) {
	path = filepath.Join(dir, secretFile)
	raw, err := os.ReadFile(path)
	if err == nil && strings.TrimSpace(string(raw)) != "" {
		*secret = strings.TrimSpace(string(raw))
		return path, false, nil
	}
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return path, false, err
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return path, false, err
	}
	key := hex.EncodeToString(buf)
	if err := os.WriteFile(path, []byte(key+"\n"), 0o600); err != nil {
		return path, false, err
	}
	*secret = key
	return path, true, nil
}
