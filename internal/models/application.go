package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultLoanType is shown for applications submitted without a loan type.
const DefaultLoanType = "Personal"

// LoanApplication is a customer's loan request tracked through the review workflow.
type LoanApplication struct {
	ID               string          `json:"id"`
	ApplicationID    string          `json:"application_id"`
	CustomerID       string          `json:"customer_id"`
	CustomerName     string          `json:"customer_name"`
	LoanAmount       decimal.Decimal `json:"loan_amount"`
	Status           Status          `json:"status"`
	LoanType         string          `json:"loan_type,omitempty"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
	EvidenceRequired string          `json:"evidence_required,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
}

// LoanTypeOrDefault returns the loan type, falling back to DefaultLoanType.
func (a LoanApplication) LoanTypeOrDefault() string {
	if a.LoanType == "" {
		return DefaultLoanType
	}
	return a.LoanType
}

// Reason returns the note that belongs to the current status. A rejection
// reason left over from an earlier status is never returned.
func (a LoanApplication) Reason() string {
	switch a.Status {
	case StatusRejected:
		return a.RejectionReason
	case StatusEvidenceRequired:
		return a.EvidenceRequired
	default:
		return ""
	}
}

// OwnedBy reports whether the application belongs to the given customer.
func (a LoanApplication) OwnedBy(customerID string) bool {
	return customerID != "" && a.CustomerID == customerID
}
