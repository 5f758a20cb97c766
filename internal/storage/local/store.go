// Package local is the fallback persistence layer used when no hosted backend
// is configured. Each collection is one JSON document in a KV; every write
// re-serialises the whole collection.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hongminglow/loandesk/internal/idgen"
	"github.com/hongminglow/loandesk/internal/models"
	"github.com/hongminglow/loandesk/internal/storage"
	"github.com/hongminglow/loandesk/internal/validate"
	"github.com/hongminglow/loandesk/internal/workflow"
)

const (
	keyApplications = "loanApplications"
	keyPayments     = "payments"
	keyProfiles     = "profiles"
	keyAccounts     = "accounts"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

// Store is safe for use by one process. Concurrent processes sharing a
// FileKV directory are last-writer-wins.
type Store struct {
	mu  sync.Mutex
	kv  KV
	now func() time.Time
}

// NewStore wraps a KV.
func NewStore(kv KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// account is the persisted form of models.Account; the model hides the hash from JSON.
type account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

func load[T any](kv KV, key string) ([]T, error) {
	data, ok, err := kv.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok || len(data) == 0 {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}

func save[T any](kv KV, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return kv.Set(key, data)
}

// Applications returns every application in insertion order.
func (s *Store) Applications() ([]models.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load[models.LoanApplication](s.kv, keyApplications)
}

// CreateApplication validates and stores a new Pending application with a
// fresh key. Invalid input fails with a *validate.Error and writes nothing.
func (s *Store) CreateApplication(customerName string, loanAmount decimal.Decimal) (models.LoanApplication, error) {
	if err := validate.Application(customerName, loanAmount); err != nil {
		return models.LoanApplication{}, err
	}
	return s.InsertApplication(context.Background(), models.LoanApplication{
		CustomerName: strings.TrimSpace(customerName),
		LoanAmount:   loanAmount,
	})
}

// FindByCustomerName matches the customer name exactly, ignoring case.
func (s *Store) FindByCustomerName(name string) ([]models.LoanApplication, error) {
	apps, err := s.Applications()
	if err != nil {
		return nil, err
	}
	var out []models.LoanApplication
	for _, app := range apps {
		if strings.EqualFold(app.CustomerName, name) {
			out = append(out, app)
		}
	}
	return out, nil
}

// FindByID looks an application up by business key.
func (s *Store) FindByID(applicationID string) (models.LoanApplication, error) {
	return s.ApplicationByKey(context.Background(), applicationID)
}

// UpdateStatus sets the status of one application and reports whether it
// was found. A miss writes nothing. Unknown statuses and moves the review
// workflow does not allow, such as leaving Approved or Rejected, fail.
func (s *Store) UpdateStatus(applicationID string, status models.Status) (bool, error) {
	if _, err := models.ParseStatus(string(status)); err != nil {
		return false, &validate.Error{Field: "status", Message: err.Error()}
	}
	current, err := s.FindByID(applicationID)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !workflow.CanTransition(current.Status, status) {
		return false, fmt.Errorf("%w: %s -> %s", workflow.ErrInvalidTransition, current.Status, status)
	}

	err = s.UpdateApplicationStatus(context.Background(), applicationID, storage.StatusUpdate{
		Status:    status,
		UpdatedAt: s.now(),
	})
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListPayments returns every payment in insertion order.
func (s *Store) ListPayments() ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return load[models.Payment](s.kv, keyPayments)
}

// CreatePayment validates and stores a payment against an application key.
func (s *Store) CreatePayment(applicationID string, amount decimal.Decimal) (models.Payment, error) {
	applicationID = strings.TrimSpace(applicationID)
	if err := validate.Payment(applicationID, amount); err != nil {
		return models.Payment{}, err
	}
	return s.InsertPayment(context.Background(), models.Payment{ApplicationID: applicationID, Amount: amount})
}

// FindPaymentsByApplication returns the payments made on one application.
func (s *Store) FindPaymentsByApplication(applicationID string) ([]models.Payment, error) {
	return s.PaymentsByApplication(context.Background(), applicationID)
}

// ListApplicationIDs returns every application key.
func (s *Store) ListApplicationIDs() ([]string, error) {
	apps, err := s.Applications()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(apps))
	for _, app := range apps {
		ids = append(ids, app.ApplicationID)
	}
	return ids, nil
}

// ClearAll wipes applications and payments.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(keyApplications); err != nil {
		return err
	}
	return s.kv.Delete(keyPayments)
}

func (s *Store) InsertApplication(_ context.Context, app models.LoanApplication) (models.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apps, err := load[models.LoanApplication](s.kv, keyApplications)
	if err != nil {
		return models.LoanApplication{}, err
	}
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.ApplicationID == "" {
		app.ApplicationID = idgen.Application()
	}
	if app.Status == "" {
		app.Status = models.StatusPending
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = s.now().UTC()
	}
	for _, existing := range apps {
		if existing.ApplicationID == app.ApplicationID {
			return models.LoanApplication{}, storage.ErrAlreadyExists
		}
	}
	apps = append(apps, app)
	if err := save(s.kv, keyApplications, apps); err != nil {
		return models.LoanApplication{}, err
	}
	return app, nil
}

func (s *Store) ApplicationByKey(_ context.Context, applicationID string) (models.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apps, err := load[models.LoanApplication](s.kv, keyApplications)
	if err != nil {
		return models.LoanApplication{}, err
	}
	for _, app := range apps {
		if app.ApplicationID == applicationID {
			return app, nil
		}
	}
	return models.LoanApplication{}, storage.ErrNotFound
}

func (s *Store) ApplicationsByCustomer(_ context.Context, customerID string) ([]models.LoanApplication, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apps, err := load[models.LoanApplication](s.kv, keyApplications)
	if err != nil {
		return nil, err
	}
	out := make([]models.LoanApplication, 0)
	for _, app := range apps {
		if app.CustomerID == customerID {
			out = append(out, app)
		}
	}
	newestFirst(out)
	return out, nil
}

func (s *Store) ApplicationKeysByCustomer(ctx context.Context, customerID string) ([]string, error) {
	apps, err := s.ApplicationsByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(apps))
	for _, app := range apps {
		keys = append(keys, app.ApplicationID)
	}
	return keys, nil
}

func (s *Store) ListApplications(_ context.Context, q storage.ListQuery) (storage.Page, error) {
	q = q.Normalize()

	s.mu.Lock()
	apps, err := load[models.LoanApplication](s.kv, keyApplications)
	s.mu.Unlock()
	if err != nil {
		return storage.Page{}, err
	}

	filtered := make([]models.LoanApplication, 0, len(apps))
	for _, app := range apps {
		if q.Status == "" || app.Status == q.Status {
			filtered = append(filtered, app)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		a, b := filtered[i], filtered[j]
		var cmp int
		if q.SortBy == storage.SortByLoanAmount {
			cmp = a.LoanAmount.Cmp(b.LoanAmount)
		} else {
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		}
		if q.SortOrder == storage.Ascending {
			return cmp < 0
		}
		return cmp > 0
	})

	total := len(filtered)
	start := min(q.Offset(), total)
	end := min(start+q.PageSize, total)
	return storage.NewPage(q, filtered[start:end], total), nil
}

func (s *Store) SearchApplications(_ context.Context, term string) ([]models.LoanApplication, error) {
	s.mu.Lock()
	apps, err := load[models.LoanApplication](s.kv, keyApplications)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]models.LoanApplication, 0)
	for _, app := range apps {
		if strings.Contains(strings.ToLower(app.CustomerName), needle) ||
			strings.Contains(strings.ToLower(app.ApplicationID), needle) {
			out = append(out, app)
		}
	}
	newestFirst(out)
	return out, nil
}

func (s *Store) UpdateApplicationStatus(_ context.Context, applicationID string, upd storage.StatusUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	apps, err := load[models.LoanApplication](s.kv, keyApplications)
	if err != nil {
		return err
	}
	for i := range apps {
		if apps[i].ApplicationID != applicationID {
			continue
		}
		apps[i].Status = upd.Status
		if upd.RejectionReason != nil {
			apps[i].RejectionReason = *upd.RejectionReason
		}
		if upd.EvidenceRequired != nil {
			apps[i].EvidenceRequired = *upd.EvidenceRequired
		}
		if !upd.UpdatedAt.IsZero() {
			ts := upd.UpdatedAt.UTC()
			apps[i].UpdatedAt = &ts
		}
		return save(s.kv, keyApplications, apps)
	}
	return storage.ErrNotFound
}

func (s *Store) InsertPayment(_ context.Context, p models.Payment) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payments, err := load[models.Payment](s.kv, keyPayments)
	if err != nil {
		return models.Payment{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.PaymentID == "" {
		p.PaymentID = idgen.Payment()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	payments = append(payments, p)
	if err := save(s.kv, keyPayments, payments); err != nil {
		return models.Payment{}, err
	}
	return p, nil
}

func (s *Store) PaymentsByCustomer(_ context.Context, customerID string) ([]models.Payment, error) {
	return s.filterPayments(func(p models.Payment) bool { return p.CustomerID == customerID })
}

func (s *Store) PaymentsByApplication(_ context.Context, applicationID string) ([]models.Payment, error) {
	return s.filterPayments(func(p models.Payment) bool { return p.ApplicationID == applicationID })
}

func (s *Store) filterPayments(keep func(models.Payment) bool) ([]models.Payment, error) {
	s.mu.Lock()
	payments, err := load[models.Payment](s.kv, keyPayments)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([]models.Payment, 0)
	for _, p := range payments {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) ProfileByID(_ context.Context, id string) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := load[models.Profile](s.kv, keyProfiles)
	if err != nil {
		return models.Profile{}, err
	}
	for _, p := range profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Profile{}, storage.ErrNotFound
}

func (s *Store) InsertProfile(_ context.Context, p models.Profile) (models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := load[models.Profile](s.kv, keyProfiles)
	if err != nil {
		return models.Profile{}, err
	}
	for _, existing := range profiles {
		if existing.ID == p.ID {
			return models.Profile{}, storage.ErrAlreadyExists
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now().UTC()
	}
	profiles = append(profiles, p)
	if err := save(s.kv, keyProfiles, profiles); err != nil {
		return models.Profile{}, err
	}
	return p, nil
}

// SetRole changes a profile's role. There is no API for this; operators use
// it to promote the first administrator in fallback mode.
func (s *Store) SetRole(_ context.Context, id, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	profiles, err := load[models.Profile](s.kv, keyProfiles)
	if err != nil {
		return err
	}
	for i := range profiles {
		if profiles[i].ID == id {
			profiles[i].Role = role
			ts := s.now().UTC()
			profiles[i].UpdatedAt = &ts
			return save(s.kv, keyProfiles, profiles)
		}
	}
	return storage.ErrNotFound
}

// CreateAccount stores credentials; emails are unique ignoring case.
func (s *Store) CreateAccount(_ context.Context, a models.Account) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := load[account](s.kv, keyAccounts)
	if err != nil {
		return models.Account{}, err
	}
	for _, existing := range accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return models.Account{}, storage.ErrAlreadyExists
		}
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	accounts = append(accounts, account{ID: a.ID, Email: a.Email, PasswordHash: a.PasswordHash, CreatedAt: a.CreatedAt})
	if err := save(s.kv, keyAccounts, accounts); err != nil {
		return models.Account{}, err
	}
	return a, nil
}

// AccountByEmail finds credentials by email, ignoring case.
func (s *Store) AccountByEmail(_ context.Context, email string) (models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts, err := load[account](s.kv, keyAccounts)
	if err != nil {
		return models.Account{}, err
	}
	for _, a := range accounts {
		if strings.EqualFold(a.Email, email) {
			return models.Account{ID: a.ID, Email: a.Email, PasswordHash: a.PasswordHash, CreatedAt: a.CreatedAt}, nil
		}
	}
	return models.Account{}, storage.ErrNotFound
}

func newestFirst(apps []models.LoanApplication) {
	sort.SliceStable(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
}
