package cli

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/loandesk/internal/auth"
	"github.com/hongminglow/loandesk/internal/loans"
	"github.com/hongminglow/loandesk/internal/logging"
	"github.com/hongminglow/loandesk/internal/notify"
	"github.com/hongminglow/loandesk/internal/session"
	"github.com/hongminglow/loandesk/internal/storage/local"
	"github.com/hongminglow/loandesk/internal/validate"
	"github.com/hongminglow/loandesk/internal/workflow"
)

var appIDPattern = regexp.MustCompile(`APP-[A-Z0-9]{6}`)

type harness struct {
	t        *testing.T
	store    *local.Store
	sessions *session.Manager
	loans    *loans.Service
	notes    *notify.Recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	log := logging.Discard()
	store := local.NewStore(local.NewMemoryKV())
	tokens := auth.NewTokenManager("test-secret", "loandesk", time.Hour)
	authSvc := auth.NewService(auth.NewLocalProvider(store, tokens), store, log)
	notes := &notify.Recorder{}
	sessions := session.NewManager(authSvc, &session.MemoryStore{}, notes, log)
	t.Cleanup(sessions.Close)
	return &harness{
		t:        t,
		store:    store,
		sessions: sessions,
		loans:    loans.NewService(store, notes, log),
		notes:    notes,
	}
}

// run executes one command with input fed to prompts.
func (h *harness) run(input string, args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	reset := func(context.Context) error { return h.store.ClearAll() }
	app := NewApp(h.sessions, h.loans, h.store, strings.NewReader(input), &out, WithLocation(time.UTC), WithReset(reset))
	err := app.Run(context.Background(), args)
	return out.String(), err
}

func (h *harness) mustRun(input string, args ...string) string {
	h.t.Helper()
	out, err := h.run(input, args...)
	require.NoError(h.t, err, out)
	return out
}

func (h *harness) signUp(email, name string) string {
	h.t.Helper()
	h.mustRun("secret123\n", "signup", "-email", email, "-name", name)
	st := h.sessions.State()
	require.NotNil(h.t, st.User)
	return st.User.ID
}

func (h *harness) switchTo(email string) {
	h.t.Helper()
	h.mustRun("", "signout")
	h.mustRun("secret123\n", "signin", "-email", email)
}

func TestUsage(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("")
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, out, "usage: loanctl <command>")
	assert.Contains(t, out, "evidence APPLICATION_ID -description TEXT")

	out, err = h.run("", "launch")
	assert.ErrorIs(t, err, ErrUsage)
	assert.Contains(t, out, `unknown command "launch"`)

	_, err = h.run("", "show")
	assert.ErrorIs(t, err, ErrUsage)

	_, err = h.run("", "help")
	assert.NoError(t, err)
}

func TestCustomerFlow(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("", "list")
	assert.ErrorIs(t, err, loans.ErrAuthRequired)

	h.signUp("jane@example.com", "Jane Customer")

	out := h.mustRun("", "apply", "-name", "Jane Doe", "-amount", "1500.50")
	appID := appIDPattern.FindString(out)
	require.NotEmpty(t, appID, out)
	assert.Contains(t, out, "$1,500.50")

	out = h.mustRun("", "list")
	assert.Contains(t, out, appID)
	assert.Contains(t, out, "Jane Doe")
	assert.Contains(t, out, "Pending")

	out = h.mustRun("", "ids")
	assert.Equal(t, appID+"\n", out)

	out = h.mustRun("", "show", appID)
	assert.Contains(t, out, "Customer:")
	assert.Contains(t, out, "Next steps:")

	out = h.mustRun("", "pay", "-app", appID, "-amount", "100")
	assert.Regexp(t, `Recorded PAY-[A-Z0-9]{6}: \$100\.00 on `+appID, out)

	out = h.mustRun("", "payments")
	assert.Contains(t, out, appID)
	out = h.mustRun("", "payments", "-app", appID)
	assert.Contains(t, out, "$100.00")

	out = h.mustRun("", "whoami")
	assert.Contains(t, out, "jane@example.com")
	assert.Contains(t, out, "Role:  customer")
	assert.Contains(t, out, "Name:  Jane Customer")

	_, err = h.run("", "review")
	assert.ErrorIs(t, err, loans.ErrPermission)
}

func TestPromptsForMissingValues(t *testing.T) {
	h := newHarness(t)
	h.signUp("sam@example.com", "Sam")

	out := h.mustRun("Sam Smith\n2500\n", "apply")
	assert.Contains(t, out, "Customer name: ")
	assert.Contains(t, out, "Loan amount: ")
	assert.Regexp(t, appIDPattern, out)
}

func TestApplyValidation(t *testing.T) {
	h := newHarness(t)
	h.signUp("val@example.com", "Val")

	_, err := h.run("", "apply", "-name", "Val", "-amount", "lots")
	assert.ErrorIs(t, err, validate.ErrNotANumber)

	_, err = h.run("", "apply", "-name", "Val", "-amount", "99.99")
	var verr *validate.Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, h.notes.Errors(), "Loan amount must be between 100 and 100000")
}

func TestAdminFlow(t *testing.T) {
	h := newHarness(t)
	h.signUp("jane@example.com", "Jane")
	first := appIDPattern.FindString(h.mustRun("", "apply", "-name", "Jane Doe", "-amount", "5000"))
	second := appIDPattern.FindString(h.mustRun("", "apply", "-name", "Jane Doe", "-amount", "700"))
	h.mustRun("", "signout")

	adminID := h.signUp("root@example.com", "Root")
	out := h.mustRun("", "promote", adminID)
	assert.Contains(t, out, "Granted admin role")
	h.switchTo("root@example.com")
	require.True(t, h.sessions.State().IsAdmin)

	out = h.mustRun("", "search", "doe")
	assert.Contains(t, out, first)
	assert.Contains(t, out, second)

	out = h.mustRun("", "reject", first, "-reason", "income too low")
	assert.Contains(t, out, first+" is now Rejected")

	_, err := h.run("", "approve", first)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition)

	_, err = h.run("\n", "evidence", second)
	assert.ErrorIs(t, err, workflow.ErrReasonRequired)

	out = h.mustRun("", "show", first)
	assert.Contains(t, out, "Rejection reason:")
	assert.Contains(t, out, "income too low")
}

func TestReset(t *testing.T) {
	h := newHarness(t)
	h.signUp("jane@example.com", "Jane")
	id := appIDPattern.FindString(h.mustRun("", "apply", "-name", "Jane Doe", "-amount", "5000"))
	require.NotEmpty(t, id)
	h.mustRun("", "pay", "-app", id, "-amount", "100")

	_, err := h.run("", "reset", "-yes")
	assert.ErrorIs(t, err, loans.ErrPermission)

	h.mustRun("", "promote", h.sessions.State().User.ID)
	h.switchTo("jane@example.com")

	out := h.mustRun("no\n", "reset")
	assert.Contains(t, out, "Aborted.")
	apps, err := h.store.Applications()
	require.NoError(t, err)
	assert.Len(t, apps, 1)

	out = h.mustRun("reset\n", "reset")
	assert.Contains(t, out, "All applications and payments deleted.")
	apps, err = h.store.Applications()
	require.NoError(t, err)
	assert.Empty(t, apps)
	payments, err := h.store.ListPayments()
	require.NoError(t, err)
	assert.Empty(t, payments)

	out = h.mustRun("", "whoami")
	assert.Contains(t, out, "jane@example.com", "accounts survive a reset")
}

func TestResetUnavailable(t *testing.T) {
	h := newHarness(t)
	var out bytes.Buffer
	app := NewApp(h.sessions, h.loans, nil, strings.NewReader(""), &out)
	err := app.Run(context.Background(), []string{"reset", "-yes"})
	assert.EqualError(t, err, "reset is only available with local storage")
}

func TestReviewSession(t *testing.T) {
	h := newHarness(t)
	h.signUp("jane@example.com", "Jane")
	appID := appIDPattern.FindString(h.mustRun("", "apply", "-name", "Jane Doe", "-amount", "5000"))
	h.mustRun("", "apply", "-name", "Mary Major", "-amount", "900")
	h.mustRun("", "signout")

	adminID := h.signUp("root@example.com", "Root")
	h.mustRun("", "promote", adminID)
	h.switchTo("root@example.com")

	input := strings.Join([]string{
		"evidence " + appID + " last three payslips",
		"find jane",
		"approve APP-NOPE00",
		"bogus",
		"quit",
	}, "\n") + "\n"
	out := h.mustRun(input, "review", "-sort", "loanAmount", "-order", "asc")

	assert.Contains(t, out, "Page 1 of 1 (2 applications")
	assert.Contains(t, out, "Evidence Required")
	assert.Contains(t, out, "last three payslips")
	assert.Contains(t, out, `Filter: "jane"`)
	assert.Contains(t, out, "error: application is not on the current page")
	assert.Contains(t, out, `unknown command "bogus"`)

	app, err := h.loans.ApplicationByID(context.Background(), appID)
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, "last three payslips", app.Reason())
}
