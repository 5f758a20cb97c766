package local

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/loandesk/internal/models"
	"github.com/hongminglow/loandesk/internal/storage"
	"github.com/hongminglow/loandesk/internal/validate"
	"github.com/hongminglow/loandesk/internal/workflow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(NewMemoryKV())
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	var tick int
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	return s
}

func TestCreateApplication_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	created, err := s.CreateApplication("Jane Doe", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Regexp(t, `^APP-[A-Z0-9]{6}$`, created.ApplicationID)
	assert.NotEmpty(t, created.ID)

	got, err := s.FindByID(created.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.True(t, got.LoanAmount.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, "Jane Doe", got.CustomerName)
}

func TestFindByID_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.FindByID("APP-NOPE00")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFindByCustomerName_CaseInsensitiveExact(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateApplication("Jane Doe", decimal.NewFromInt(500))
	require.NoError(t, err)
	_, err = s.CreateApplication("Jane Doe-Smith", decimal.NewFromInt(700))
	require.NoError(t, err)

	got, err := s.FindByCustomerName("jane doe")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Doe", got[0].CustomerName)
}

func TestUpdateStatus(t *testing.T) {
	s := newTestStore(t)
	app, err := s.CreateApplication("Jane Doe", decimal.NewFromInt(500))
	require.NoError(t, err)

	ok, err := s.UpdateStatus(app.ApplicationID, models.StatusApproved)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.FindByID(app.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.NotNil(t, got.UpdatedAt)

	before, err := s.Applications()
	require.NoError(t, err)
	ok, err = s.UpdateStatus("APP-MISSING", models.StatusRejected)
	require.NoError(t, err)
	assert.False(t, ok)
	after, err := s.Applications()
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdateApplicationStatus_RejectedThenApproved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	app, err := s.CreateApplication("Jane Doe", decimal.NewFromInt(500))
	require.NoError(t, err)

	reason := "insufficient income"
	require.NoError(t, s.UpdateApplicationStatus(ctx, app.ApplicationID, storage.StatusUpdate{
		Status:          models.StatusRejected,
		RejectionReason: &reason,
	}))
	got, err := s.FindByID(app.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Equal(t, "insufficient income", got.RejectionReason)

	require.NoError(t, s.UpdateApplicationStatus(ctx, app.ApplicationID, storage.StatusUpdate{Status: models.StatusApproved}))
	got, err = s.FindByID(app.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Empty(t, got.Reason())
}

func TestPayments(t *testing.T) {
	s := newTestStore(t)
	app, err := s.CreateApplication("Jane Doe", decimal.NewFromInt(500))
	require.NoError(t, err)

	p1, err := s.CreatePayment(app.ApplicationID, decimal.NewFromInt(50))
	require.NoError(t, err)
	assert.Regexp(t, `^PAY-[A-Z0-9]{6}$`, p1.PaymentID)
	_, err = s.CreatePayment("APP-OTHER1", decimal.NewFromInt(10))
	require.NoError(t, err)

	all, err := s.ListPayments()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	forApp, err := s.FindPaymentsByApplication(app.ApplicationID)
	require.NoError(t, err)
	require.Len(t, forApp, 1)
	assert.Equal(t, p1.PaymentID, forApp[0].PaymentID)
}

func TestLegacyWritesRejectInvalidInput(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateApplication("", decimal.NewFromInt(-5))
	var verr *validate.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "customer_name", verr.Field)

	_, err = s.CreateApplication("Jane Doe", decimal.NewFromInt(50))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "loan_amount", verr.Field)

	_, err = s.CreatePayment("", decimal.Zero)
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "application_id", verr.Field)

	_, err = s.CreatePayment("APP-OTHER1", decimal.NewFromInt(-1))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "amount", verr.Field)

	apps, err := s.Applications()
	require.NoError(t, err)
	assert.Empty(t, apps)
	payments, err := s.ListPayments()
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestUpdateStatusRejectsUnknownAndTerminalMoves(t *testing.T) {
	s := newTestStore(t)
	app, err := s.CreateApplication("Jane Doe", decimal.NewFromInt(500))
	require.NoError(t, err)

	ok, err := s.UpdateStatus(app.ApplicationID, models.Status("Bogus"))
	var verr *validate.Error
	require.ErrorAs(t, err, &verr)
	assert.False(t, ok)

	got, err := s.FindByID(app.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, got.Status)

	ok, err = s.UpdateStatus(app.ApplicationID, models.StatusRejected)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.UpdateStatus(app.ApplicationID, models.StatusApproved)
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)
	assert.False(t, ok)

	got, err = s.FindByID(app.ApplicationID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRejected, got.Status)
}

func TestListApplicationIDsAndClearAll(t *testing.T) {
	s := newTestStore(t)
	a, err := s.CreateApplication("Jane Doe", decimal.NewFromInt(500))
	require.NoError(t, err)
	b, err := s.CreateApplication("John Roe", decimal.NewFromInt(900))
	require.NoError(t, err)
	_, err = s.CreatePayment(a.ApplicationID, decimal.NewFromInt(5))
	require.NoError(t, err)

	ids, err := s.ListApplicationIDs()
	require.NoError(t, err)
	assert.Equal(t, []string{a.ApplicationID, b.ApplicationID}, ids)

	require.NoError(t, s.ClearAll())
	apps, err := s.Applications()
	require.NoError(t, err)
	assert.Empty(t, apps)
	payments, err := s.ListPayments()
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func seed(t *testing.T, s *Store, n int) {
	t.Helper()
	for i := range n {
		_, err := s.InsertApplication(context.Background(), models.LoanApplication{
			CustomerID:   "cust-1",
			CustomerName: fmt.Sprintf("Customer %02d", i),
			LoanAmount:   decimal.NewFromInt(int64(1000 + i)),
		})
		require.NoError(t, err)
	}
}

func TestListApplications_Pagination(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, 25)
	ctx := context.Background()

	page, err := s.ListApplications(ctx, storage.ListQuery{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 10)
	assert.Equal(t, 25, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)

	page, err = s.ListApplications(ctx, storage.ListQuery{Page: 4, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 25, page.TotalCount)
}

func TestListApplications_SortAndFilter(t *testing.T) {
	s := newTestStore(t)
	seed(t, s, 5)
	ctx := context.Background()

	page, err := s.ListApplications(ctx, storage.ListQuery{Page: 1, PageSize: 10, SortBy: storage.SortByLoanAmount, SortOrder: storage.Ascending})
	require.NoError(t, err)
	require.Len(t, page.Items, 5)
	assert.True(t, page.Items[0].LoanAmount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, page.Items[4].LoanAmount.Equal(decimal.NewFromInt(1004)))

	page, err = s.ListApplications(ctx, storage.ListQuery{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, "Customer 04", page.Items[0].CustomerName, "default order is newest first")

	ok, err := s.UpdateStatus(page.Items[0].ApplicationID, models.StatusApproved)
	require.NoError(t, err)
	require.True(t, ok)
	page, err = s.ListApplications(ctx, storage.ListQuery{Page: 1, PageSize: 10, Status: models.StatusApproved})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.TotalCount)
}

func TestSearchApplications_MatchesNameOrKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	byName, err := s.InsertApplication(ctx, models.LoanApplication{CustomerName: "Jane Doe", LoanAmount: decimal.NewFromInt(500)})
	require.NoError(t, err)
	byKey, err := s.InsertApplication(ctx, models.LoanApplication{ApplicationID: "APP-DOE123", CustomerName: "Alex Smith", LoanAmount: decimal.NewFromInt(800)})
	require.NoError(t, err)
	_, err = s.InsertApplication(ctx, models.LoanApplication{CustomerName: "Other Person", LoanAmount: decimal.NewFromInt(900)})
	require.NoError(t, err)

	got, err := s.SearchApplications(ctx, "doe")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, byKey.ApplicationID, got[0].ApplicationID, "newest first")
	assert.Equal(t, byName.ApplicationID, got[1].ApplicationID)
}

func TestAccountsAndProfiles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acc, err := s.CreateAccount(ctx, models.Account{Email: "Jane@Example.com", PasswordHash: "hash"})
	require.NoError(t, err)
	_, err = s.CreateAccount(ctx, models.Account{Email: "jane@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)

	found, err := s.AccountByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, acc.ID, found.ID)
	assert.Equal(t, "hash", found.PasswordHash)

	_, err = s.InsertProfile(ctx, models.Profile{ID: acc.ID, Email: acc.Email, FullName: "Jane"})
	require.NoError(t, err)
	require.NoError(t, s.SetRole(ctx, acc.ID, models.RoleAdmin))
	p, err := s.ProfileByID(ctx, acc.ID)
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())

	_, err = s.ProfileByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFileKV_PersistsAcrossStores(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewFileKV(dir)
	require.NoError(t, err)

	app, err := NewStore(kv).CreateApplication("Jane Doe", decimal.RequireFromString("1250.50"))
	require.NoError(t, err)

	kv2, err := NewFileKV(dir)
	require.NoError(t, err)
	got, err := NewStore(kv2).FindByID(app.ApplicationID)
	require.NoError(t, err)
	assert.True(t, got.LoanAmount.Equal(decimal.RequireFromString("1250.50")))

	require.NoError(t, kv2.Delete(keyApplications))
	require.NoError(t, kv2.Delete(keyApplications), "deleting a missing key is not an error")
}
