package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hongminglow/loandesk/internal/models"
)

// ErrNotFound indicates a record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness conflict.
var ErrAlreadyExists = errors.New("record already exists")

// SortField names the columns applications can be ordered by.
type SortField string

const (
	SortByCreatedAt  SortField = "createdAt"
	SortByLoanAmount SortField = "loanAmount"
)

// SortOrder is asc or desc.
type SortOrder string

const (
	Ascending  SortOrder = "asc"
	Descending SortOrder = "desc"
)

// ListQuery selects one page of applications. Page is 1-indexed.
type ListQuery struct {
	Page      int
	PageSize  int
	Status    models.Status // empty means all statuses
	SortBy    SortField
	SortOrder SortOrder
}

// Normalize fills defaults and clamps invalid values.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 10
	}
	if q.PageSize > 100 {
		q.PageSize = 100
	}
	if q.SortBy != SortByLoanAmount {
		q.SortBy = SortByCreatedAt
	}
	if q.SortOrder != Ascending {
		q.SortOrder = Descending
	}
	return q
}

// Offset returns the zero-based index of the first row of the page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// Page is one page of applications plus totals across all pages.
type Page struct {
	Items      []models.LoanApplication `json:"items"`
	TotalCount int                      `json:"total_count"`
	TotalPages int                      `json:"total_pages"`
	Page       int                      `json:"page"`
	PageSize   int                      `json:"page_size"`
}

// NewPage computes TotalPages from the total row count.
func NewPage(q ListQuery, items []models.LoanApplication, total int) Page {
	if items == nil {
		items = []models.LoanApplication{}
	}
	pages := 0
	if total > 0 {
		pages = (total + q.PageSize - 1) / q.PageSize
	}
	return Page{Items: items, TotalCount: total, TotalPages: pages, Page: q.Page, PageSize: q.PageSize}
}

// StatusUpdate is the write performed by a workflow transition.
type StatusUpdate struct {
	Status           models.Status
	RejectionReason  *string
	EvidenceRequired *string
	UpdatedAt        time.Time
}

// Store captures every persistence operation the loan service needs. The
// local, supabase and postgres packages provide implementations.
type Store interface {
	InsertApplication(ctx context.Context, app models.LoanApplication) (models.LoanApplication, error)
	ApplicationByKey(ctx context.Context, applicationID string) (models.LoanApplication, error)
	ApplicationsByCustomer(ctx context.Context, customerID string) ([]models.LoanApplication, error)
	ApplicationKeysByCustomer(ctx context.Context, customerID string) ([]string, error)
	ListApplications(ctx context.Context, q ListQuery) (Page, error)
	SearchApplications(ctx context.Context, term string) ([]models.LoanApplication, error)
	UpdateApplicationStatus(ctx context.Context, applicationID string, upd StatusUpdate) error

	InsertPayment(ctx context.Context, p models.Payment) (models.Payment, error)
	PaymentsByCustomer(ctx context.Context, customerID string) ([]models.Payment, error)
	PaymentsByApplication(ctx context.Context, applicationID string) ([]models.Payment, error)

	ProfileByID(ctx context.Context, id string) (models.Profile, error)
	InsertProfile(ctx context.Context, p models.Profile) (models.Profile, error)
}

type accessTokenKey struct{}

// WithAccessToken attaches the caller's backend access token so stores that
// forward requests to the hosted backend can apply its row-level policies.
func WithAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessToken returns the token attached by WithAccessToken.
func AccessToken(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(accessTokenKey{}).(string)
	return tok, ok && tok != ""
}
