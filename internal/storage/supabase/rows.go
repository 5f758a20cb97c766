package supabase

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hongminglow/loandesk/internal/models"
)

const (
	tableApplications = "loan_applications"
	tablePayments     = "payments"
	tableProfiles     = "profiles"
)

// applicationRow mirrors the loan_applications table. Nullable columns are pointers.
type applicationRow struct {
	ID               string          `json:"id,omitempty"`
	ApplicationID    string          `json:"application_id"`
	CustomerID       string          `json:"customer_id"`
	CustomerName     string          `json:"customer_name"`
	LoanAmount       decimal.Decimal `json:"loan_amount"`
	Status           string          `json:"status"`
	LoanType         *string         `json:"loan_type,omitempty"`
	RejectionReason  *string         `json:"rejection_reason,omitempty"`
	EvidenceRequired *string         `json:"evidence_required,omitempty"`
	CreatedAt        *time.Time      `json:"created_at,omitempty"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
}

func (r applicationRow) model() models.LoanApplication {
	app := models.LoanApplication{
		ID:            r.ID,
		ApplicationID: r.ApplicationID,
		CustomerID:    r.CustomerID,
		CustomerName:  r.CustomerName,
		LoanAmount:    r.LoanAmount,
		Status:        models.Status(r.Status),
		LoanType:      deref(r.LoanType),
		UpdatedAt:     r.UpdatedAt,
	}
	app.RejectionReason = deref(r.RejectionReason)
	app.EvidenceRequired = deref(r.EvidenceRequired)
	if r.CreatedAt != nil {
		app.CreatedAt = *r.CreatedAt
	}
	return app
}

func newApplicationRow(app models.LoanApplication) applicationRow {
	row := applicationRow{
		ApplicationID: app.ApplicationID,
		CustomerID:    app.CustomerID,
		CustomerName:  app.CustomerName,
		LoanAmount:    app.LoanAmount,
		Status:        string(app.Status),
		LoanType:      ptr(app.LoanType),
	}
	if !app.CreatedAt.IsZero() {
		row.CreatedAt = &app.CreatedAt
	}
	return row
}

type paymentRow struct {
	ID            string          `json:"id,omitempty"`
	PaymentID     string          `json:"payment_id"`
	ApplicationID string          `json:"application_id"`
	Amount        decimal.Decimal `json:"amount"`
	CustomerID    string          `json:"customer_id"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
}

func (r paymentRow) model() models.Payment {
	p := models.Payment{
		ID:            r.ID,
		PaymentID:     r.PaymentID,
		ApplicationID: r.ApplicationID,
		Amount:        r.Amount,
		CustomerID:    r.CustomerID,
	}
	if r.CreatedAt != nil {
		p.CreatedAt = *r.CreatedAt
	}
	return p
}

type profileRow struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	FullName  *string    `json:"full_name,omitempty"`
	Role      *string    `json:"role,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func (r profileRow) model() models.Profile {
	p := models.Profile{
		ID:        r.ID,
		Email:     r.Email,
		FullName:  deref(r.FullName),
		Role:      deref(r.Role),
		UpdatedAt: r.UpdatedAt,
	}
	if r.CreatedAt != nil {
		p.CreatedAt = *r.CreatedAt
	}
	return p
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
