package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment records money paid against a loan application. Payments are immutable.
type Payment struct {
	ID            string          `json:"id"`
	PaymentID     string          `json:"payment_id"`
	ApplicationID string          `json:"application_id"`
	Amount        decimal.Decimal `json:"amount"`
	CustomerID    string          `json:"customer_id"`
	CreatedAt     time.Time       `json:"created_at"`
}
