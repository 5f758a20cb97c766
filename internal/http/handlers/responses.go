package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/hongminglow/loandesk/internal/auth"
	"github.com/hongminglow/loandesk/internal/format"
	"github.com/hongminglow/loandesk/internal/http/respond"
	"github.com/hongminglow/loandesk/internal/loans"
	"github.com/hongminglow/loandesk/internal/models"
	"github.com/hongminglow/loandesk/internal/models/dto"
	"github.com/hongminglow/loandesk/internal/validate"
	"github.com/hongminglow/loandesk/internal/workflow"
)

// writeServiceError maps service and auth errors onto status codes. Backend
// details stay in the logs; the client only learns which operation failed.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		verr    *validate.Error
		credErr *auth.CredentialsError
		backend *loans.BackendError
	)
	switch {
	case errors.As(err, &verr):
		respond.JSON(w, http.StatusBadRequest, capitalize(verr.Message), map[string]string{"field": verr.Field})
	case errors.As(err, &credErr):
		respond.Error(w, http.StatusBadRequest, capitalize(credErr.Message))
	case errors.Is(err, workflow.ErrReasonRequired):
		respond.Error(w, http.StatusBadRequest, capitalize(err.Error()))
	case errors.Is(err, loans.ErrAuthRequired),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidCredentials):
		respond.Error(w, http.StatusUnauthorized, capitalize(err.Error()))
	case errors.Is(err, loans.ErrPermission):
		respond.Error(w, http.StatusForbidden, capitalize(err.Error()))
	case errors.Is(err, loans.ErrApplicationNotFound):
		respond.Error(w, http.StatusNotFound, "Application not found")
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, auth.ErrEmailTaken):
		respond.Error(w, http.StatusConflict, capitalize(err.Error()))
	case errors.As(err, &backend):
		respond.Error(w, http.StatusBadGateway, "Failed to "+backend.Op)
	default:
		respond.Error(w, http.StatusInternalServerError, "internal error")
	}
}

func writeBadRequest(w http.ResponseWriter, err error) {
	respond.Error(w, http.StatusBadRequest, err.Error())
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func applicationView(app models.LoanApplication) dto.ApplicationView {
	// Only the note belonging to the current status is shown.
	if app.Status != models.StatusRejected {
		app.RejectionReason = ""
	}
	if app.Status != models.StatusEvidenceRequired {
		app.EvidenceRequired = ""
	}
	next := workflow.Next(app.Status)
	if next == nil {
		next = []models.Status{}
	}
	return dto.ApplicationView{
		LoanApplication: app,
		LoanType:        app.LoanTypeOrDefault(),
		Reason:          app.Reason(),
		NextStatuses:    next,
		FormattedAmount: format.Currency(app.LoanAmount),
	}
}

func applicationViews(apps []models.LoanApplication) []dto.ApplicationView {
	out := make([]dto.ApplicationView, 0, len(apps))
	for _, app := range apps {
		out = append(out, applicationView(app))
	}
	return out
}
