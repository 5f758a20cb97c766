// Package idgen produces short human-readable business keys such as APP-7QK2ZD.
package idgen

import (
	"math/rand/v2"
	"strings"
)

const (
	alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	length   = 6

	ApplicationPrefix = "APP"
	PaymentPrefix     = "PAY"
)

// New returns "<prefix>-" followed by six random uppercase alphanumerics.
// Keys are not checked for collisions and are not security tokens.
func New(prefix string) string {
	var b strings.Builder
	b.Grow(len(prefix) + 1 + length)
	b.WriteString(prefix)
	b.WriteByte('-')
	for range length {
		b.WriteByte(alphabet[rand.IntN(len(alphabet))])
	}
	return b.String()
}

// Application returns a new loan application key.
func Application() string { return New(ApplicationPrefix) }

// Payment returns a new payment key.
func Payment() string { return New(PaymentPrefix) }
