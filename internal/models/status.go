package models

import "fmt"

// Status is the review state of a loan application.
type Status string

const (
	StatusPending          Status = "Pending"
	StatusApproved         Status = "Approved"
	StatusRejected         Status = "Rejected"
	StatusEvidenceRequired Status = "Evidence Required"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusApproved, StatusRejected, StatusEvidenceRequired}

// ParseStatus accepts the canonical status names.
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Terminal reports whether no further review action applies.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}
