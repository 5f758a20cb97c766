package validate

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanAmount_Boundaries(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"99.99", false},
		{"100", true},
		{"5000.50", true},
		{"100000", true},
		{"100000.01", false},
		{"-500", false},
		{"0", false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, LoanAmount(decimal.RequireFromString(tc.in)))
		})
	}
}

func TestName(t *testing.T) {
	assert.False(t, Name(" a "))
	assert.False(t, Name(""))
	assert.False(t, Name("   "))
	assert.True(t, Name("Al"))
	assert.True(t, Name("  Jane Doe  "))
	assert.True(t, Name("Łu"))
}

func TestPaymentAmount(t *testing.T) {
	assert.False(t, PaymentAmount(decimal.Zero))
	assert.False(t, PaymentAmount(decimal.RequireFromString("-0.01")))
	assert.True(t, PaymentAmount(decimal.RequireFromString("0.01")))
}

func TestApplicationID(t *testing.T) {
	assert.False(t, ApplicationID(""))
	assert.True(t, ApplicationID("APP-ABC123"))
}

func TestParseAmount(t *testing.T) {
	d, err := ParseAmount(" 250.75 ")
	require.NoError(t, err)
	assert.True(t, d.Equal(decimal.RequireFromString("250.75")))

	for _, in := range []string{"", "NaN", "abc", "1,000"} {
		_, err := ParseAmount(in)
		assert.ErrorIs(t, err, ErrNotANumber, "input %q", in)
	}
}

func TestApplication_ReturnsFieldError(t *testing.T) {
	err := Application("J", decimal.NewFromInt(500))
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "customer_name", verr.Field)

	err = Application("Jane", decimal.NewFromInt(50))
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "loan_amount", verr.Field)

	assert.NoError(t, Application("Jane", decimal.NewFromInt(500)))
}

func TestPayment_ReturnsFieldError(t *testing.T) {
	var verr *Error
	require.True(t, errors.As(Payment("", decimal.NewFromInt(1)), &verr))
	assert.Equal(t, "application_id", verr.Field)

	require.True(t, errors.As(Payment("APP-1", decimal.Zero), &verr))
	assert.Equal(t, "amount", verr.Field)

	assert.NoError(t, Payment("APP-1", decimal.NewFromInt(10)))
}
