// Package loans implements the customer and reviewer operations on loan
// applications and payments on top of a storage.Store.
//
// Reads that fail return an empty value together with a *BackendError;
// writes return the error. Every failure is also logged and sent to the
// Notifier as a short message for the user.
package loans

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/loandesk/internal/auth"
	"github.com/hongminglow/loandesk/internal/idgen"
	"github.com/hongminglow/loandesk/internal/logging"
	"github.com/hongminglow/loandesk/internal/models"
	"github.com/hongminglow/loandesk/internal/notify"
	"github.com/hongminglow/loandesk/internal/storage"
	"github.com/hongminglow/loandesk/internal/validate"
	"github.com/hongminglow/loandesk/internal/workflow"
)

const (
	opLoadApplications  = "load applications"
	opSubmitApplication = "submit application"
	opLoadApplication   = "load application"
	opUpdateStatus      = "update application status"
	opListApplications  = "list applications"
	opSearch            = "search applications"
	opApplicationIDs    = "load application ids"
	opLoadPayments      = "load payments"
	opSubmitPayment     = "submit payment"
	opLoadProfile       = "load profile"
)

var failureNotices = map[string]string{
	opLoadApplications:  "Failed to load loan applications",
	opSubmitApplication: "Failed to submit loan application",
	opLoadApplication:   "Failed to load application details",
	opUpdateStatus:      "Failed to update application status",
	opListApplications:  "Failed to load loan applications",
	opSearch:            "Failed to search loan applications",
	opApplicationIDs:    "Failed to load application ids",
	opLoadPayments:      "Failed to load payments",
	opSubmitPayment:     "Failed to submit payment",
	opLoadProfile:       "Failed to load profile",
}

// keyAttempts bounds retries when a generated business key collides.
const keyAttempts = 3

// Service exposes every loan operation for an explicit caller.
type Service struct {
	store    storage.Store
	notifier notify.Notifier
	log      logging.Logger
	now      func() time.Time
}

// NewService constructs the service.
func NewService(store storage.Store, notifier notify.Notifier, log logging.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		log:      log.With("component", "loans"),
		now:      time.Now,
	}
}

// UserApplications returns the caller's applications, newest first.
func (s *Service) UserApplications(ctx context.Context, p auth.Principal) ([]models.LoanApplication, error) {
	if err := s.requireUser(ctx, p, opLoadApplications); err != nil {
		return []models.LoanApplication{}, err
	}
	apps, err := s.store.ApplicationsByCustomer(p.Context(ctx), p.UserID)
	if err != nil {
		return []models.LoanApplication{}, s.backendFailure(ctx, opLoadApplications, err)
	}
	return apps, nil
}

// SubmitApplication validates and stores a new Pending application owned by the caller.
func (s *Service) SubmitApplication(ctx context.Context, p auth.Principal, customerName string, loanAmount decimal.Decimal) (models.LoanApplication, error) {
	if err := s.requireUser(ctx, p, opSubmitApplication); err != nil {
		return models.LoanApplication{}, err
	}
	if err := validate.Application(customerName, loanAmount); err != nil {
		return models.LoanApplication{}, s.rejected(ctx, opSubmitApplication, err)
	}

	app := models.LoanApplication{
		ID:           uuid.NewString(),
		CustomerID:   p.UserID,
		CustomerName: strings.TrimSpace(customerName),
		LoanAmount:   loanAmount,
		Status:       models.StatusPending,
		CreatedAt:    s.now().UTC(),
	}

	var err error
	for range keyAttempts {
		app.ApplicationID = idgen.Application()
		var created models.LoanApplication
		created, err = s.store.InsertApplication(p.Context(ctx), app)
		if err == nil {
			s.log.Info(ctx, "application submitted", "application_id", created.ApplicationID, "customer_id", p.UserID)
			notify.Success(ctx, s.notifier, "Loan application submitted")
			return created, nil
		}
		if !errors.Is(err, storage.ErrAlreadyExists) {
			break
		}
	}
	return models.LoanApplication{}, &SubmissionError{Err: s.backendFailure(ctx, opSubmitApplication, err)}
}

// ApplicationByID looks an application up by business key. It returns nil
// and no error when the key does not exist.
func (s *Service) ApplicationByID(ctx context.Context, applicationID string) (*models.LoanApplication, error) {
	app, err := s.store.ApplicationByKey(ctx, strings.TrimSpace(applicationID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, s.backendFailure(ctx, opLoadApplication, err)
	}
	return &app, nil
}

// UpdateApplicationStatus moves an application through the review workflow.
// Only administrators may call it. reason is the rejection reason or the
// evidence description and is ignored for approvals.
func (s *Service) UpdateApplicationStatus(ctx context.Context, p auth.Principal, applicationID string, status models.Status, reason string) (models.LoanApplication, error) {
	if err := s.requireAdmin(ctx, p, opUpdateStatus); err != nil {
		return models.LoanApplication{}, err
	}
	sctx := p.Context(ctx)

	current, err := s.store.ApplicationByKey(sctx, applicationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.LoanApplication{}, s.rejected(ctx, opUpdateStatus, ErrApplicationNotFound)
		}
		return models.LoanApplication{}, s.backendFailure(ctx, opUpdateStatus, err)
	}

	updated, err := workflow.Apply(current, workflow.Transition{To: status, Reason: reason}, s.now())
	if err != nil {
		return models.LoanApplication{}, s.rejected(ctx, opUpdateStatus, err)
	}

	upd := storage.StatusUpdate{Status: updated.Status, UpdatedAt: *updated.UpdatedAt}
	switch updated.Status {
	case models.StatusRejected:
		upd.RejectionReason = &updated.RejectionReason
	case models.StatusEvidenceRequired:
		upd.EvidenceRequired = &updated.EvidenceRequired
	}
	if err := s.store.UpdateApplicationStatus(sctx, applicationID, upd); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.LoanApplication{}, s.rejected(ctx, opUpdateStatus, ErrApplicationNotFound)
		}
		return models.LoanApplication{}, s.backendFailure(ctx, opUpdateStatus, err)
	}

	s.log.Info(ctx, "application status updated",
		"application_id", applicationID, "from", string(current.Status), "to", string(updated.Status), "reviewer", p.UserID)
	return updated, nil
}

// AllApplications returns one page of every customer's applications.
func (s *Service) AllApplications(ctx context.Context, p auth.Principal, q storage.ListQuery) (storage.Page, error) {
	q = q.Normalize()
	if err := s.requireAdmin(ctx, p, opListApplications); err != nil {
		return storage.NewPage(q, nil, 0), err
	}
	page, err := s.store.ListApplications(p.Context(ctx), q)
	if err != nil {
		return storage.NewPage(q, nil, 0), s.backendFailure(ctx, opListApplications, err)
	}
	return page, nil
}

// SearchApplications matches term against customer names and application
// keys, ignoring case. An empty term matches everything.
func (s *Service) SearchApplications(ctx context.Context, p auth.Principal, term string) ([]models.LoanApplication, error) {
	if err := s.requireAdmin(ctx, p, opSearch); err != nil {
		return []models.LoanApplication{}, err
	}
	apps, err := s.store.SearchApplications(p.Context(ctx), term)
	if err != nil {
		return []models.LoanApplication{}, s.backendFailure(ctx, opSearch, err)
	}
	return apps, nil
}

// ApplicationIDs returns the business keys the caller owns.
func (s *Service) ApplicationIDs(ctx context.Context, p auth.Principal) ([]string, error) {
	if err := s.requireUser(ctx, p, opApplicationIDs); err != nil {
		return []string{}, err
	}
	keys, err := s.store.ApplicationKeysByCustomer(p.Context(ctx), p.UserID)
	if err != nil {
		return []string{}, s.backendFailure(ctx, opApplicationIDs, err)
	}
	return keys, nil
}

// Payments returns the caller's payments, newest first.
func (s *Service) Payments(ctx context.Context, p auth.Principal) ([]models.Payment, error) {
	if err := s.requireUser(ctx, p, opLoadPayments); err != nil {
		return []models.Payment{}, err
	}
	payments, err := s.store.PaymentsByCustomer(p.Context(ctx), p.UserID)
	if err != nil {
		return []models.Payment{}, s.backendFailure(ctx, opLoadPayments, err)
	}
	return payments, nil
}

// PaymentsForApplication returns the payments made against one application.
// The owner and administrators may call it.
func (s *Service) PaymentsForApplication(ctx context.Context, p auth.Principal, applicationID string) ([]models.Payment, error) {
	if err := s.requireUser(ctx, p, opLoadPayments); err != nil {
		return []models.Payment{}, err
	}
	sctx := p.Context(ctx)
	app, err := s.store.ApplicationByKey(sctx, applicationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return []models.Payment{}, s.rejected(ctx, opLoadPayments, ErrApplicationNotFound)
		}
		return []models.Payment{}, s.backendFailure(ctx, opLoadPayments, err)
	}
	if !p.IsAdmin && !app.OwnedBy(p.UserID) {
		return []models.Payment{}, s.rejected(ctx, opLoadPayments, errNotViewer)
	}
	payments, err := s.store.PaymentsByApplication(sctx, applicationID)
	if err != nil {
		return []models.Payment{}, s.backendFailure(ctx, opLoadPayments, err)
	}
	return payments, nil
}

// SubmitPayment records a payment against one of the caller's applications.
// Payments on another customer's application fail with ErrPermission
// before anything is written.
func (s *Service) SubmitPayment(ctx context.Context, p auth.Principal, applicationID string, amount decimal.Decimal) (models.Payment, error) {
	if err := s.requireUser(ctx, p, opSubmitPayment); err != nil {
		return models.Payment{}, err
	}
	applicationID = strings.TrimSpace(applicationID)
	if err := validate.Payment(applicationID, amount); err != nil {
		return models.Payment{}, s.rejected(ctx, opSubmitPayment, err)
	}

	sctx := p.Context(ctx)
	app, err := s.store.ApplicationByKey(sctx, applicationID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Payment{}, s.rejected(ctx, opSubmitPayment, ErrApplicationNotFound)
		}
		return models.Payment{}, s.backendFailure(ctx, opSubmitPayment, err)
	}
	if !app.OwnedBy(p.UserID) {
		s.log.Warn(ctx, "payment refused: not owner", "application_id", applicationID, "customer_id", p.UserID)
		return models.Payment{}, s.rejected(ctx, opSubmitPayment, errNotOwner)
	}

	payment := models.Payment{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		Amount:        amount,
		CustomerID:    p.UserID,
		CreatedAt:     s.now().UTC(),
	}
	for range keyAttempts {
		payment.PaymentID = idgen.Payment()
		var created models.Payment
		created, err = s.store.InsertPayment(sctx, payment)
		if err == nil {
			s.log.Info(ctx, "payment submitted", "payment_id", created.PaymentID, "application_id", applicationID)
			notify.Success(ctx, s.notifier, "Payment submitted")
			return created, nil
		}
		if !errors.Is(err, storage.ErrAlreadyExists) {
			break
		}
	}
	return models.Payment{}, s.backendFailure(ctx, opSubmitPayment, err)
}

// Profile returns the caller's profile, or nil when none exists.
func (s *Service) Profile(ctx context.Context, p auth.Principal) (*models.Profile, error) {
	if err := s.requireUser(ctx, p, opLoadProfile); err != nil {
		return nil, err
	}
	profile, err := s.store.ProfileByID(p.Context(ctx), p.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, s.backendFailure(ctx, opLoadProfile, err)
	}
	return &profile, nil
}

func (s *Service) requireUser(ctx context.Context, p auth.Principal, op string) error {
	if p.Authenticated() {
		return nil
	}
	return s.rejected(ctx, op, ErrAuthRequired)
}

func (s *Service) requireAdmin(ctx context.Context, p auth.Principal, op string) error {
	if err := s.requireUser(ctx, p, op); err != nil {
		return err
	}
	if !p.IsAdmin {
		return s.rejected(ctx, op, errAdminOnly)
	}
	return nil
}

// rejected reports a failure caught before the backend was asked to write.
// The notice carries the error text since it is meant for the user.
func (s *Service) rejected(ctx context.Context, op string, err error) error {
	s.log.Warn(ctx, op+" rejected", "error", err)
	notify.Error(ctx, s.notifier, userMessage(err))
	return err
}

func (s *Service) backendFailure(ctx context.Context, op string, err error) *BackendError {
	s.log.Error(ctx, op+" failed", "error", err)
	notify.Error(ctx, s.notifier, failureNotices[op])
	return &BackendError{Op: op, Err: err}
}

func userMessage(err error) string {
	msg := err.Error()
	var verr *validate.Error
	if errors.As(err, &verr) {
		msg = verr.Message
	}
	if msg == "" {
		return msg
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
