package handlers

import (
	"net/http"

	"github.com/hongminglow/loandesk/internal/http/respond"
	"github.com/hongminglow/loandesk/internal/loans"
	"github.com/hongminglow/loandesk/internal/middleware"
	"github.com/hongminglow/loandesk/internal/models/dto"
)

// LoanHandler serves the customer-facing application, payment and profile
// endpoints.
type LoanHandler struct {
	loans *loans.Service
}

// NewLoanHandler constructs the handler.
func NewLoanHandler(svc *loans.Service) *LoanHandler {
	return &LoanHandler{loans: svc}
}

// Register attaches customer routes to the mux.
func (h *LoanHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /applications", h.handleList)
	mux.HandleFunc("POST /applications", h.handleSubmit)
	mux.HandleFunc("GET /applications/ids", h.handleIDs)
	mux.HandleFunc("GET /applications/{applicationId}", h.handleGet)
	mux.HandleFunc("GET /applications/{applicationId}/payments", h.handleApplicationPayments)
	mux.HandleFunc("GET /payments", h.handlePayments)
	mux.HandleFunc("POST /payments", h.handlePay)
	mux.HandleFunc("GET /profile", h.handleProfile)
}

func (h *LoanHandler) handleList(w http.ResponseWriter, r *http.Request) {
	apps, err := h.loans.UserApplications(r.Context(), middleware.PrincipalFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", applicationViews(apps))
}

func (h *LoanHandler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req dto.ApplicationRequest
	if err := respond.Decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	app, err := h.loans.SubmitApplication(r.Context(), middleware.PrincipalFrom(r.Context()), req.CustomerName, req.LoanAmount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "Loan application submitted", applicationView(app))
}

func (h *LoanHandler) handleIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := h.loans.ApplicationIDs(r.Context(), middleware.PrincipalFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", ids)
}

func (h *LoanHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	p := middleware.PrincipalFrom(r.Context())
	app, err := h.loans.ApplicationByID(p.Context(r.Context()), r.PathValue("applicationId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if app == nil {
		writeServiceError(w, loans.ErrApplicationNotFound)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", applicationView(*app))
}

func (h *LoanHandler) handleApplicationPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.loans.PaymentsForApplication(r.Context(), middleware.PrincipalFrom(r.Context()), r.PathValue("applicationId"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", payments)
}

func (h *LoanHandler) handlePayments(w http.ResponseWriter, r *http.Request) {
	payments, err := h.loans.Payments(r.Context(), middleware.PrincipalFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", payments)
}

func (h *LoanHandler) handlePay(w http.ResponseWriter, r *http.Request) {
	var req dto.PaymentRequest
	if err := respond.Decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	payment, err := h.loans.SubmitPayment(r.Context(), middleware.PrincipalFrom(r.Context()), req.ApplicationID, req.Amount)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.JSON(w, http.StatusCreated, "Payment submitted", payment)
}

func (h *LoanHandler) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.loans.Profile(r.Context(), middleware.PrincipalFrom(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if profile == nil {
		respond.Error(w, http.StatusNotFound, "Profile not found")
		return
	}
	respond.JSON(w, http.StatusOK, "ok", profile)
}
