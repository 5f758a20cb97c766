package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/loandesk/internal/config"
	"github.com/hongminglow/loandesk/internal/logging"
	"github.com/hongminglow/loandesk/internal/models"
	"github.com/hongminglow/loandesk/internal/storage"
)

func TestOpen_Local(t *testing.T) {
	cfg := config.Config{
		Mode:          config.BackendLocal,
		ModeDefaulted: true,
		LocalDataDir:  t.TempDir(),
		JWTSecret:     "test-secret",
		JWTIssuer:     "loandesk",
		JWTTTL:        time.Hour,
	}
	ctx := context.Background()
	b, err := Open(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	defer b.Close()

	res, err := b.Auth.SignUp(ctx, "ada@example.com", "secret123", "Ada")
	require.NoError(t, err)
	require.NotNil(t, res.Session)

	require.NoError(t, b.SetRole(ctx, res.User.ID, models.RoleAdmin))
	p, err := b.Auth.Resolve(ctx, res.Session.AccessToken)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin)
	assert.Nil(t, b.Ping)

	_, err = b.Store.InsertApplication(ctx, models.LoanApplication{CustomerID: res.User.ID, CustomerName: "Ada Lovelace", LoanAmount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	require.NoError(t, b.Reset(ctx))
	page, err := b.Store.ListApplications(ctx, storage.ListQuery{})
	require.NoError(t, err)
	assert.Zero(t, page.TotalCount)
}

func TestOpen_DefaultedLocalGeneratesSigningKey(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		Mode:          config.BackendLocal,
		ModeDefaulted: true,
		LocalDataDir:  dir,
		JWTIssuer:     "loandesk",
		JWTTTL:        time.Hour,
	}
	ctx := context.Background()
	b, err := Open(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	res, err := b.Auth.SignUp(ctx, "ada@example.com", "secret123", "Ada")
	require.NoError(t, err)
	require.NotNil(t, res.Session)
	b.Close()

	key, err := os.ReadFile(filepath.Join(dir, "jwt_secret"))
	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(string(key)), 64)

	reopened, err := Open(ctx, cfg, logging.Discard())
	require.NoError(t, err)
	defer reopened.Close()
	p, err := reopened.Auth.Resolve(ctx, res.Session.AccessToken)
	require.NoError(t, err, "tokens survive a restart")
	assert.Equal(t, res.User.ID, p.UserID)
}

func TestOpen_SupabaseNeedsNoNetwork(t *testing.T) {
	cfg := config.Config{
		Mode:     config.BackendSupabase,
		Supabase: config.SupabaseConfig{URL: "https://example.supabase.co", AnonKey: "anon"},
	}
	b, err := Open(context.Background(), cfg, logging.Discard())
	require.NoError(t, err)
	defer b.Close()

	assert.ErrorIs(t, b.SetRole(context.Background(), "u1", models.RoleAdmin), ErrRolesUnsupported)
	assert.ErrorIs(t, b.Reset(context.Background()), ErrResetUnsupported)
}

func TestOpen_SupabaseMissingConfig(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Mode: config.BackendSupabase}, logging.Discard())
	assert.Error(t, err)
}

func TestOpen_UnknownMode(t *testing.T) {
	_, err := Open(context.Background(), config.Config{Mode: "sqlite"}, logging.Discard())
	assert.ErrorContains(t, err, "unknown backend mode")
}
