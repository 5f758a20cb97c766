package format

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCurrency(t *testing.T) {
	tests := map[string]string{
		"0":         "$0.00",
		"100":       "$100.00",
		"1234.5":    "$1,234.50",
		"100000":    "$100,000.00",
		"1234567.8": "$1,234,567.80",
		"-42.125":   "-$42.13",
	}
	for in, want := range tests {
		assert.Equal(t, want, Currency(decimal.RequireFromString(in)), in)
	}
}

func TestDates(t *testing.T) {
	ts := time.Date(2024, 3, 1, 22, 5, 0, 0, time.UTC)
	assert.Equal(t, "Mar 1, 2024, 10:05 PM", DateTime(ts, time.UTC))
	assert.Equal(t, "Mar 1, 2024", Date(ts, time.UTC))
	assert.Empty(t, Date(time.Time{}, time.UTC))
}
