// Package supabase stores loan data in the hosted backend's tables through
// its REST API. The caller's access token is taken from the context so the
// backend's row-level policies see the real user.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sbclient "github.com/hongminglow/loandesk/internal/supabase"

	"github.com/hongminglow/loandesk/internal/models"
	"github.com/hongminglow/loandesk/internal/storage"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

// Store is a storage.Store backed by the hosted backend.
type Store struct {
	client *sbclient.Client
}

// NewStore wraps a configured client.
func NewStore(client *sbclient.Client) *Store {
	return &Store{client: client}
}

func (s *Store) from(ctx context.Context, table string) *sbclient.QueryBuilder {
	q := s.client.From(table)
	if tok, ok := storage.AccessToken(ctx); ok {
		q = q.WithToken(tok)
	}
	return q
}

func (s *Store) InsertApplication(ctx context.Context, app models.LoanApplication) (models.LoanApplication, error) {
	resp, err := s.from(ctx, tableApplications).Select("*").Insert(ctx, newApplicationRow(app))
	if err != nil {
		if sbclient.IsConflict(err) {
			return models.LoanApplication{}, storage.ErrAlreadyExists
		}
		return models.LoanApplication{}, fmt.Errorf("insert application: %w", err)
	}
	var rows []applicationRow
	if err := resp.JSON(&rows); err != nil {
		return models.LoanApplication{}, err
	}
	if len(rows) == 0 {
		return models.LoanApplication{}, fmt.Errorf("insert application: no row returned")
	}
	return rows[0].model(), nil
}

func (s *Store) ApplicationByKey(ctx context.Context, applicationID string) (models.LoanApplication, error) {
	rows, err := s.selectApplications(ctx, s.from(ctx, tableApplications).
		Select("*").
		Eq("application_id", applicationID).
		Limit(1))
	if err != nil {
		return models.LoanApplication{}, err
	}
	if len(rows) == 0 {
		return models.LoanApplication{}, storage.ErrNotFound
	}
	return rows[0], nil
}

func (s *Store) ApplicationsByCustomer(ctx context.Context, customerID string) ([]models.LoanApplication, error) {
	return s.selectApplications(ctx, s.from(ctx, tableApplications).
		Select("*").
		Eq("customer_id", customerID).
		Order("created_at", false))
}

func (s *Store) ApplicationKeysByCustomer(ctx context.Context, customerID string) ([]string, error) {
	apps, err := s.selectApplications(ctx, s.from(ctx, tableApplications).
		Select("application_id").
		Eq("customer_id", customerID).
		Order("created_at", false))
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(apps))
	for _, app := range apps {
		keys = append(keys, app.ApplicationID)
	}
	return keys, nil
}

func (s *Store) ListApplications(ctx context.Context, q storage.ListQuery) (storage.Page, error) {
	q = q.Normalize()

	column := "created_at"
	if q.SortBy == storage.SortByLoanAmount {
		column = "loan_amount"
	}
	qb := s.from(ctx, tableApplications).
		Select("*").
		Order(column, q.SortOrder == storage.Ascending).
		Range(q.Offset(), q.Offset()+q.PageSize-1).
		CountExact()
	if q.Status != "" {
		qb = qb.Eq("status", string(q.Status))
	}

	resp, err := qb.Execute(ctx)
	if err != nil {
		if isRangeNotSatisfiable(err) {
			return s.emptyPage(ctx, q)
		}
		return storage.Page{}, fmt.Errorf("list applications: %w", err)
	}
	var rows []applicationRow
	if err := resp.JSON(&rows); err != nil {
		return storage.Page{}, err
	}
	total, ok := resp.Count()
	if !ok {
		total = len(rows)
	}
	return storage.NewPage(q, toModels(rows), total), nil
}

// emptyPage answers a page past the end: the backend rejects the range with
// 416, so only the count is fetched.
func (s *Store) emptyPage(ctx context.Context, q storage.ListQuery) (storage.Page, error) {
	qb := s.from(ctx, tableApplications).Select("id").Limit(1).CountExact()
	if q.Status != "" {
		qb = qb.Eq("status", string(q.Status))
	}
	resp, err := qb.Execute(ctx)
	if err != nil {
		return storage.Page{}, fmt.Errorf("count applications: %w", err)
	}
	total, _ := resp.Count()
	return storage.NewPage(q, nil, total), nil
}

func (s *Store) SearchApplications(ctx context.Context, term string) ([]models.LoanApplication, error) {
	pattern := sbclient.Quote(sbclient.Contains(strings.TrimSpace(term)))
	return s.selectApplications(ctx, s.from(ctx, tableApplications).
		Select("*").
		Or("customer_name.ilike."+pattern, "application_id.ilike."+pattern).
		Order("created_at", false))
}

func (s *Store) UpdateApplicationStatus(ctx context.Context, applicationID string, upd storage.StatusUpdate) error {
	patch := map[string]any{"status": string(upd.Status)}
	if upd.RejectionReason != nil {
		patch["rejection_reason"] = *upd.RejectionReason
	}
	if upd.EvidenceRequired != nil {
		patch["evidence_required"] = *upd.EvidenceRequired
	}
	if !upd.UpdatedAt.IsZero() {
		patch["updated_at"] = upd.UpdatedAt.UTC().Format(time.RFC3339Nano)
	}

	resp, err := s.from(ctx, tableApplications).
		Select("id").
		Eq("application_id", applicationID).
		Update(ctx, patch)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	var rows []applicationRow
	if err := resp.JSON(&rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) InsertPayment(ctx context.Context, p models.Payment) (models.Payment, error) {
	row := paymentRow{
		PaymentID:     p.PaymentID,
		ApplicationID: p.ApplicationID,
		Amount:        p.Amount,
		CustomerID:    p.CustomerID,
	}
	resp, err := s.from(ctx, tablePayments).Select("*").Insert(ctx, row)
	if err != nil {
		if sbclient.IsConflict(err) {
			return models.Payment{}, storage.ErrAlreadyExists
		}
		return models.Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	var rows []paymentRow
	if err := resp.JSON(&rows); err != nil {
		return models.Payment{}, err
	}
	if len(rows) == 0 {
		return models.Payment{}, fmt.Errorf("insert payment: no row returned")
	}
	return rows[0].model(), nil
}

func (s *Store) PaymentsByCustomer(ctx context.Context, customerID string) ([]models.Payment, error) {
	return s.selectPayments(ctx, "customer_id", customerID)
}

func (s *Store) PaymentsByApplication(ctx context.Context, applicationID string) ([]models.Payment, error) {
	return s.selectPayments(ctx, "application_id", applicationID)
}

func (s *Store) selectPayments(ctx context.Context, column, value string) ([]models.Payment, error) {
	resp, err := s.from(ctx, tablePayments).
		Select("*").
		Eq(column, value).
		Order("created_at", false).
		Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("select payments: %w", err)
	}
	var rows []paymentRow
	if err := resp.JSON(&rows); err != nil {
		return nil, err
	}
	out := make([]models.Payment, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out, nil
}

func (s *Store) ProfileByID(ctx context.Context, id string) (models.Profile, error) {
	resp, err := s.from(ctx, tableProfiles).Select("*").Eq("id", id).Limit(1).Execute(ctx)
	if err != nil {
		return models.Profile{}, fmt.Errorf("select profile: %w", err)
	}
	var rows []profileRow
	if err := resp.JSON(&rows); err != nil {
		return models.Profile{}, err
	}
	if len(rows) == 0 {
		return models.Profile{}, storage.ErrNotFound
	}
	return rows[0].model(), nil
}

// InsertProfile never sends a role; roles are granted on the backend only.
func (s *Store) InsertProfile(ctx context.Context, p models.Profile) (models.Profile, error) {
	row := profileRow{ID: p.ID, Email: p.Email, FullName: ptr(p.FullName)}
	resp, err := s.from(ctx, tableProfiles).Select("*").Insert(ctx, row)
	if err != nil {
		if sbclient.IsConflict(err) {
			return models.Profile{}, storage.ErrAlreadyExists
		}
		return models.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	var rows []profileRow
	if err := resp.JSON(&rows); err != nil {
		return models.Profile{}, err
	}
	if len(rows) == 0 {
		return models.Profile{}, fmt.Errorf("insert profile: no row returned")
	}
	return rows[0].model(), nil
}

func (s *Store) selectApplications(ctx context.Context, qb *sbclient.QueryBuilder) ([]models.LoanApplication, error) {
	resp, err := qb.Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("select applications: %w", err)
	}
	var rows []applicationRow
	if err := resp.JSON(&rows); err != nil {
		return nil, err
	}
	return toModels(rows), nil
}

func toModels(rows []applicationRow) []models.LoanApplication {
	out := make([]models.LoanApplication, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out
}

func isRangeNotSatisfiable(err error) bool {
	var apiErr *sbclient.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == 416
}
