package loans

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthRequired is returned when an operation needs a signed-in caller.
	ErrAuthRequired = errors.New("not authenticated")
	// ErrPermission is matched by every authorization failure.
	ErrPermission = errors.New("permission denied")
	// ErrApplicationNotFound is returned by writes that reference an unknown application.
	ErrApplicationNotFound = errors.New("application not found")
)

type permissionError struct {
	msg string
}

func (e *permissionError) Error() string        { return e.msg }
func (e *permissionError) Is(target error) bool { return target == ErrPermission }

var (
	errNotOwner  = &permissionError{msg: "you do not have permission to make payments on this application"}
	errAdminOnly = &permissionError{msg: "administrator access required"}
	errNotViewer = &permissionError{msg: "you do not have permission to view this application"}
)

// BackendError wraps a storage failure with the operation that hit it.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// SubmissionError is returned when the backend refuses a new application.
// It wraps the *BackendError describing the refusal.
type SubmissionError struct {
	Err *BackendError
}

func (e *SubmissionError) Error() string {
	return "failed to submit loan application: " + e.Err.Err.Error()
}

func (e *SubmissionError) Unwrap() error { return e.Err }
