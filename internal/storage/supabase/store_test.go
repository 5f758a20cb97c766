package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sbclient "github.com/hongminglow/loandesk/internal/supabase"

	"github.com/hongminglow/loandesk/internal/models"
	"github.com/hongminglow/loandesk/internal/storage"
)

func newTestStore(t *testing.T, h http.HandlerFunc) *Store {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c, err := sbclient.New(sbclient.Config{URL: ts.URL, APIKey: "anon-key"})
	require.NoError(t, err)
	return NewStore(c)
}

func TestApplicationByKey(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/loan_applications", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		switch r.URL.Query().Get("application_id") {
		case "eq.APP-ABC123":
			_, _ = w.Write([]byte(`[{"id":"r1","application_id":"APP-ABC123","customer_id":"u1","customer_name":"Jane Doe","loan_amount":5000,"status":"Rejected","rejection_reason":"low score","created_at":"2024-03-01T10:00:00Z"}]`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	})
	ctx := storage.WithAccessToken(context.Background(), "user-token")

	app, err := s.ApplicationByKey(ctx, "APP-ABC123")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", app.CustomerName)
	assert.True(t, app.LoanAmount.Equal(decimal.NewFromInt(5000)))
	assert.Equal(t, models.StatusRejected, app.Status)
	assert.Equal(t, "low score", app.Reason())
	assert.Equal(t, models.DefaultLoanType, app.LoanTypeOrDefault())
	assert.Nil(t, app.UpdatedAt)

	_, err = s.ApplicationByKey(ctx, "APP-NOPE00")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListApplications_PagesAndCounts(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "loan_amount.asc", q.Get("order"))
		assert.Equal(t, "eq.Pending", q.Get("status"))
		assert.Equal(t, "10", q.Get("offset"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "count=exact", r.Header.Get("Prefer"))
		w.Header().Set("Content-Range", "10-10/21")
		_, _ = w.Write([]byte(`[{"application_id":"APP-000021","loan_amount":"900.50","status":"Pending"}]`))
	})

	page, err := s.ListApplications(context.Background(), storage.ListQuery{
		Page:      2,
		PageSize:  10,
		Status:    models.StatusPending,
		SortBy:    storage.SortByLoanAmount,
		SortOrder: storage.Ascending,
	})
	require.NoError(t, err)
	assert.Equal(t, 21, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "900.5", page.Items[0].LoanAmount.String())
}

func TestListApplications_PastTheEnd(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") != "" {
			w.Header().Set("Content-Range", "*/25")
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			_, _ = w.Write([]byte(`{"code":"PGRST103","message":"Requested range not satisfiable"}`))
			return
		}
		w.Header().Set("Content-Range", "0-0/25")
		_, _ = w.Write([]byte(`[{"id":"x"}]`))
	})

	page, err := s.ListApplications(context.Background(), storage.ListQuery{Page: 4, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 25, page.TotalCount)
	assert.Equal(t, 3, page.TotalPages)
}

func TestSearchApplications_OrFilter(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "(customer_name.ilike.*doe*,application_id.ilike.*doe*)", r.URL.Query().Get("or"))
		assert.Equal(t, "created_at.desc", r.URL.Query().Get("order"))
		_, _ = w.Write([]byte(`[{"application_id":"APP-AAAAAA","customer_name":"John Doe"},{"application_id":"APP-BBBBBB","customer_name":"Jane Doe"}]`))
	})

	apps, err := s.SearchApplications(context.Background(), "  doe ")
	require.NoError(t, err)
	assert.Len(t, apps, 2)
}

func TestUpdateApplicationStatus(t *testing.T) {
	at := time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Rejected", body["status"])
		assert.Equal(t, "income too low", body["rejection_reason"])
		assert.NotContains(t, body, "evidence_required")
		assert.Equal(t, "2024-03-02T09:00:00Z", body["updated_at"])

		if r.URL.Query().Get("application_id") == "eq.APP-ABC123" {
			_, _ = w.Write([]byte(`[{"id":"r1"}]`))
			return
		}
		_, _ = w.Write([]byte(`[]`))
	})
	reason := "income too low"
	upd := storage.StatusUpdate{Status: models.StatusRejected, RejectionReason: &reason, UpdatedAt: at}

	require.NoError(t, s.UpdateApplicationStatus(context.Background(), "APP-ABC123", upd))
	err := s.UpdateApplicationStatus(context.Background(), "APP-MISSNG", upd)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInsertPayment(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rest/v1/payments", r.URL.Path)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PAY-XYZ789", body["payment_id"])
		assert.Equal(t, "250.75", body["amount"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`[{"id":"p1","payment_id":"PAY-XYZ789","application_id":"APP-ABC123","amount":250.75,"customer_id":"u1","created_at":"2024-03-01T10:00:00Z"}]`))
	})

	p, err := s.InsertPayment(context.Background(), models.Payment{
		PaymentID:     "PAY-XYZ789",
		ApplicationID: "APP-ABC123",
		Amount:        decimal.RequireFromString("250.75"),
		CustomerID:    "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestInsertProfile_Conflict(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "role")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint"}`))
	})

	_, err := s.InsertProfile(context.Background(), models.Profile{ID: "u1", Email: "jane@example.com", Role: models.RoleAdmin})
	assert.ErrorIs(t, err, storage.ErrAlreadyExists)
}

func TestProfileByID(t *testing.T) {
	s := newTestStore(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "eq.u1", r.URL.Query().Get("id"))
		_, _ = w.Write([]byte(`[{"id":"u1","email":"admin@example.com","role":"admin"}]`))
	})

	p, err := s.ProfileByID(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, p.IsAdmin())
}
