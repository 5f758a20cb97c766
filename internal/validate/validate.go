// Package validate holds the form rules applied before any write reaches storage.
package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

var (
	MinLoanAmount = decimal.NewFromInt(100)
	MaxLoanAmount = decimal.NewFromInt(100000)
)

// ErrNotANumber is returned by ParseAmount for input that is not a decimal number.
var ErrNotANumber = errors.New("amount is not a number")

// Error reports a single field that failed validation.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Name reports whether the trimmed name has at least two characters.
func Name(name string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(name)) >= 2
}

// LoanAmount reports whether 100 <= amount <= 100000.
func LoanAmount(amount decimal.Decimal) bool {
	return amount.GreaterThanOrEqual(MinLoanAmount) && amount.LessThanOrEqual(MaxLoanAmount)
}

// PaymentAmount reports whether amount > 0.
func PaymentAmount(amount decimal.Decimal) bool {
	return amount.IsPositive()
}

// ApplicationID reports whether an application key was supplied.
func ApplicationID(id string) bool {
	return id != ""
}

// ParseAmount parses user input into a decimal. Empty input, NaN and other
// non-numeric strings fail with ErrNotANumber.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, ErrNotANumber
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotANumber, s)
	}
	return d, nil
}

// Application checks a new loan application and returns the first failure.
func Application(customerName string, loanAmount decimal.Decimal) error {
	if !Name(customerName) {
		return &Error{Field: "customer_name", Message: "name must be at least 2 characters"}
	}
	if !LoanAmount(loanAmount) {
		return &Error{Field: "loan_amount", Message: "loan amount must be between 100 and 100000"}
	}
	return nil
}

// Payment checks a new payment and returns the first failure.
func Payment(applicationID string, amount decimal.Decimal) error {
	if !ApplicationID(applicationID) {
		return &Error{Field: "application_id", Message: "application id is required"}
	}
	if !PaymentAmount(amount) {
		return &Error{Field: "amount", Message: "payment amount must be greater than 0"}
	}
	return nil
}
