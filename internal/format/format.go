// Package format renders money and timestamps for terminal output.
package format

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency renders an amount as US dollars with thousands separators, e.g. $1,234.50.
func Currency(amount decimal.Decimal) string {
	s := amount.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if amount.IsNegative() {
		b.WriteByte('-')
	}
	b.WriteByte('$')
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteByte('.')
	b.WriteString(frac)
	return b.String()
}

// DateTime renders a timestamp like "Mar 1, 2024, 10:05 AM" in loc.
func DateTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("Jan 2, 2006, 3:04 PM")
}

// Date renders a timestamp like "Mar 1, 2024" in loc.
func Date(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format("Jan 2, 2006")
}
