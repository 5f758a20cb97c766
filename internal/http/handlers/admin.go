package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/hongminglow/loandesk/internal/http/respond"
	"github.com/hongminglow/loandesk/internal/loans"
	"github.com/hongminglow/loandesk/internal/middleware"
	"github.com/hongminglow/loandesk/internal/models"
	"github.com/hongminglow/loandesk/internal/models/dto"
	"github.com/hongminglow/loandesk/internal/storage"
)

// AdminHandler serves the review dashboard endpoints.
type AdminHandler struct {
	loans *loans.Service
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(svc *loans.Service) *AdminHandler {
	return &AdminHandler{loans: svc}
}

// Register attaches admin routes to the mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin/applications", h.handleList)
	mux.HandleFunc("GET /admin/applications/search", h.handleSearch)
	mux.HandleFunc("PATCH /admin/applications/{applicationId}/status", h.handleStatus)
}

type pageResponse struct {
	Items      []dto.ApplicationView `json:"items"`
	TotalCount int                   `json:"total_count"`
	TotalPages int                   `json:"total_pages"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
}

func (h *AdminHandler) handleList(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	page, err := h.loans.AllApplications(r.Context(), middleware.PrincipalFrom(r.Context()), q)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", pageResponse{
		Items:      applicationViews(page.Items),
		TotalCount: page.TotalCount,
		TotalPages: page.TotalPages,
		Page:       page.Page,
		PageSize:   page.PageSize,
	})
}

func (h *AdminHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	apps, err := h.loans.SearchApplications(r.Context(), middleware.PrincipalFrom(r.Context()), r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "ok", applicationViews(apps))
}

func (h *AdminHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.StatusRequest
	if err := respond.Decode(r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	status, err := models.ParseStatus(string(req.Status))
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	app, err := h.loans.UpdateApplicationStatus(r.Context(), middleware.PrincipalFrom(r.Context()),
		r.PathValue("applicationId"), status, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, "Application status updated", applicationView(app))
}

func parseListQuery(r *http.Request) (storage.ListQuery, error) {
	values := r.URL.Query()
	var q storage.ListQuery

	for name, dst := range map[string]*int{"page": &q.Page, "pageSize": &q.PageSize} {
		raw := values.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return q, fmt.Errorf("%s must be a positive integer", name)
		}
		*dst = n
	}

	if raw := values.Get("status"); raw != "" && raw != "all" {
		status, err := models.ParseStatus(raw)
		if err != nil {
			return q, err
		}
		q.Status = status
	}

	switch sortBy := storage.SortField(values.Get("sortBy")); sortBy {
	case "", storage.SortByCreatedAt, storage.SortByLoanAmount:
		q.SortBy = sortBy
	default:
		return q, fmt.Errorf("sortBy must be %s or %s", storage.SortByCreatedAt, storage.SortByLoanAmount)
	}

	switch order := storage.SortOrder(values.Get("sortOrder")); order {
	case "", storage.Ascending, storage.Descending:
		q.SortOrder = order
	default:
		return q, fmt.Errorf("sortOrder must be %s or %s", storage.Ascending, storage.Descending)
	}
	return q.Normalize(), nil
}
