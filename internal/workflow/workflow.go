// Package workflow is the loan application review state machine.
//
//	Pending           -> Approved | Rejected | Evidence Required
//	Evidence Required -> Approved | Rejected
//
// Approved and Rejected are terminal.
package workflow

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hongminglow/loandesk/internal/models"
)

var (
	// ErrInvalidTransition is returned when the target status is not reachable from the current one.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrReasonRequired is returned when a rejection or evidence request carries no text.
	ErrReasonRequired = errors.New("reason is required")
)

var edges = map[models.Status][]models.Status{
	models.StatusPending:          {models.StatusApproved, models.StatusRejected, models.StatusEvidenceRequired},
	models.StatusEvidenceRequired: {models.StatusApproved, models.StatusRejected},
}

// Transition is a requested status change. Reason carries the rejection
// reason or the evidence description and is ignored for approvals.
type Transition struct {
	To     models.Status
	Reason string
}

// Approve, Reject and RequestEvidence build the three review actions.
func Approve() Transition { return Transition{To: models.StatusApproved} }

func Reject(reason string) Transition {
	return Transition{To: models.StatusRejected, Reason: reason}
}

func RequestEvidence(description string) Transition {
	return Transition{To: models.StatusEvidenceRequired, Reason: description}
}

// Next lists the statuses reachable from the given one.
func Next(from models.Status) []models.Status {
	return append([]models.Status(nil), edges[from]...)
}

// CanTransition reports whether to is reachable from from.
func CanTransition(from, to models.Status) bool {
	for _, s := range edges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Validate checks a transition request against the current status.
func Validate(from models.Status, t Transition) error {
	if !CanTransition(from, t.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, t.To)
	}
	if needsReason(t.To) && strings.TrimSpace(t.Reason) == "" {
		return fmt.Errorf("%w for status %s", ErrReasonRequired, t.To)
	}
	return nil
}

// Apply validates t and returns the application with the new status and the
// matching note set. The note of the other kind is left as stored; callers
// display it through LoanApplication.Reason, which ignores stale notes.
func Apply(app models.LoanApplication, t Transition, now time.Time) (models.LoanApplication, error) {
	if err := Validate(app.Status, t); err != nil {
		return app, err
	}
	app.Status = t.To
	switch t.To {
	case models.StatusRejected:
		app.RejectionReason = strings.TrimSpace(t.Reason)
	case models.StatusEvidenceRequired:
		app.EvidenceRequired = strings.TrimSpace(t.Reason)
	}
	ts := now.UTC()
	app.UpdatedAt = &ts
	return app, nil
}

func needsReason(s models.Status) bool {
	return s == models.StatusRejected || s == models.StatusEvidenceRequired
}
