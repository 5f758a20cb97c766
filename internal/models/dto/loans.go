package dto

import (
	"github.com/shopspring/decimal"

	"github.com/hongminglow/loandesk/internal/models"
)

// ApplicationRequest accepts loan_amount as a JSON number or a numeric string.
type ApplicationRequest struct {
	CustomerName string          `json:"customer_name"`
	LoanAmount   decimal.Decimal `json:"loan_amount"`
}

type PaymentRequest struct {
	ApplicationID string          `json:"application_id"`
	Amount        decimal.Decimal `json:"amount"`
}

// StatusRequest changes an application's review status. Reason is the
// rejection reason or the evidence description.
type StatusRequest struct {
	Status models.Status `json:"status"`
	Reason string        `json:"reason,omitempty"`
}

// ApplicationView adds display fields to an application.
type ApplicationView struct {
	models.LoanApplication
	LoanType        string          `json:"loan_type"`
	Reason          string          `json:"reason,omitempty"`
	NextStatuses    []models.Status `json:"next_statuses"`
	FormattedAmount string          `json:"formatted_amount"`
}
