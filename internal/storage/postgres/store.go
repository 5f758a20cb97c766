package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/hongminglow/loandesk/internal/models"
	"github.com/hongminglow/loandesk/internal/storage"
	"github.com/hongminglow/loandesk/internal/storage/postgres/migrations"
)

// Ensure Store satisfies the storage.Store interface at compile time.
var _ storage.Store = (*Store)(nil)

// Store provides Postgres-backed persistence for applications, payments,
// profiles and the credentials of the self-hosted auth provider.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to databaseURL and runs migrations.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases database resources.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

const applicationColumns = `id::text, application_id, customer_id::text, customer_name, loan_amount, status,
	loan_type, rejection_reason, evidence_required, created_at, updated_at`

func (s *Store) InsertApplication(ctx context.Context, app models.LoanApplication) (models.LoanApplication, error) {
	query := `
		INSERT INTO loan_applications (id, application_id, customer_id, customer_name, loan_amount, status, loan_type, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))
		RETURNING ` + applicationColumns
	var createdAt any
	if !app.CreatedAt.IsZero() {
		createdAt = app.CreatedAt
	}
	row := s.pool.QueryRow(ctx, query,
		app.ID, app.ApplicationID, app.CustomerID, app.CustomerName,
		app.LoanAmount, string(app.Status), nullable(app.LoanType), createdAt)
	created, err := scanApplication(row)
	if err != nil {
		return models.LoanApplication{}, mapWriteErr(err)
	}
	return created, nil
}

func (s *Store) ApplicationByKey(ctx context.Context, applicationID string) (models.LoanApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM loan_applications WHERE application_id = $1`
	return scanApplication(s.pool.QueryRow(ctx, query, applicationID))
}

func (s *Store) ApplicationsByCustomer(ctx context.Context, customerID string) ([]models.LoanApplication, error) {
	query := `SELECT ` + applicationColumns + `
		FROM loan_applications
		WHERE customer_id = $1
		ORDER BY created_at DESC`
	return s.queryApplications(ctx, query, customerID)
}

func (s *Store) ApplicationKeysByCustomer(ctx context.Context, customerID string) ([]string, error) {
	const query = `
		SELECT application_id FROM loan_applications
		WHERE customer_id = $1
		ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, err
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

func (s *Store) ListApplications(ctx context.Context, q storage.ListQuery) (storage.Page, error) {
	q = q.Normalize()

	where := ""
	args := []any{}
	if q.Status != "" {
		where = "WHERE status = $1"
		args = append(args, string(q.Status))
	}

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM loan_applications `+where, args...).Scan(&total); err != nil {
		return storage.Page{}, fmt.Errorf("count applications: %w", err)
	}

	column := "created_at"
	if q.SortBy == storage.SortByLoanAmount {
		column = "loan_amount"
	}
	direction := "DESC"
	if q.SortOrder == storage.Ascending {
		direction = "ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM loan_applications %s ORDER BY %s %s, id LIMIT $%d OFFSET $%d`,
		applicationColumns, where, column, direction, len(args)+1, len(args)+2)
	args = append(args, q.PageSize, q.Offset())

	items, err := s.queryApplications(ctx, query, args...)
	if err != nil {
		return storage.Page{}, err
	}
	return storage.NewPage(q, items, total), nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (s *Store) SearchApplications(ctx context.Context, term string) ([]models.LoanApplication, error) {
	pattern := "%" + likeEscaper.Replace(strings.TrimSpace(term)) + "%"
	query := `SELECT ` + applicationColumns + `
		FROM loan_applications
		WHERE customer_name ILIKE $1 ESCAPE '\' OR application_id ILIKE $1 ESCAPE '\'
		ORDER BY created_at DESC`
	return s.queryApplications(ctx, query, pattern)
}

func (s *Store) UpdateApplicationStatus(ctx context.Context, applicationID string, upd storage.StatusUpdate) error {
	const query = `
		UPDATE loan_applications SET
			status = $2,
			rejection_reason = COALESCE($3, rejection_reason),
			evidence_required = COALESCE($4, evidence_required),
			updated_at = COALESCE($5, NOW())
		WHERE application_id = $1`
	var updatedAt any
	if !upd.UpdatedAt.IsZero() {
		updatedAt = upd.UpdatedAt
	}
	tag, err := s.pool.Exec(ctx, query, applicationID, string(upd.Status), upd.RejectionReason, upd.EvidenceRequired, updatedAt)
	if err != nil {
		return fmt.Errorf("update application status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const paymentColumns = `id::text, payment_id, application_id, amount, customer_id::text, created_at`

func (s *Store) InsertPayment(ctx context.Context, p models.Payment) (models.Payment, error) {
	query := `
		INSERT INTO payments (id, payment_id, application_id, amount, customer_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + paymentColumns
	row := s.pool.QueryRow(ctx, query, p.ID, p.PaymentID, p.ApplicationID, p.Amount, p.CustomerID)
	created, err := scanPayment(row)
	if err != nil {
		return models.Payment{}, mapWriteErr(err)
	}
	return created, nil
}

func (s *Store) PaymentsByCustomer(ctx context.Context, customerID string) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE customer_id = $1 ORDER BY created_at DESC`
	return s.queryPayments(ctx, query, customerID)
}

func (s *Store) PaymentsByApplication(ctx context.Context, applicationID string) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE application_id = $1 ORDER BY created_at DESC`
	return s.queryPayments(ctx, query, applicationID)
}

const profileColumns = `id::text, email, full_name, role, created_at, updated_at`

func (s *Store) ProfileByID(ctx context.Context, id string) (models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(s.pool.QueryRow(ctx, query, id))
}

func (s *Store) InsertProfile(ctx context.Context, p models.Profile) (models.Profile, error) {
	query := `
		INSERT INTO profiles (id, email, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + profileColumns
	row := s.pool.QueryRow(ctx, query, p.ID, p.Email, nullable(p.FullName), nullable(p.Role))
	created, err := scanProfile(row)
	if err != nil {
		return models.Profile{}, mapWriteErr(err)
	}
	return created, nil
}

// SetRole grants or clears a profile role. Used by operators; no API exposes it.
func (s *Store) SetRole(ctx context.Context, id, role string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE profiles SET role = $2, updated_at = NOW() WHERE id = $1`, id, nullable(role))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// CreateAccount stores credentials for the self-hosted auth provider.
func (s *Store) CreateAccount(ctx context.Context, a models.Account) (models.Account, error) {
	const query = `
		INSERT INTO accounts (id, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id::text, email, password_hash, created_at`
	var out models.Account
	err := s.pool.QueryRow(ctx, query, a.ID, a.Email, a.PasswordHash).
		Scan(&out.ID, &out.Email, &out.PasswordHash, &out.CreatedAt)
	if err != nil {
		return models.Account{}, mapWriteErr(err)
	}
	return out, nil
}

// AccountByEmail looks an account up case-insensitively.
func (s *Store) AccountByEmail(ctx context.Context, email string) (models.Account, error) {
	const query = `
		SELECT id::text, email, password_hash, created_at
		FROM accounts WHERE LOWER(email) = LOWER($1)`
	var out models.Account
	err := s.pool.QueryRow(ctx, query, email).Scan(&out.ID, &out.Email, &out.PasswordHash, &out.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, storage.ErrNotFound
		}
		return models.Account{}, err
	}
	return out, nil
}

func (s *Store) queryApplications(ctx context.Context, query string, args ...any) ([]models.LoanApplication, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.LoanApplication, 0)
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, app)
	}
	return out, rows.Err()
}

func (s *Store) queryPayments(ctx context.Context, query string, args ...any) ([]models.Payment, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanApplication(row pgx.Row) (models.LoanApplication, error) {
	var app models.LoanApplication
	var status string
	var loanType, rejection, evidence *string
	err := row.Scan(&app.ID, &app.ApplicationID, &app.CustomerID, &app.CustomerName, &app.LoanAmount, &status,
		&loanType, &rejection, &evidence, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.LoanApplication{}, storage.ErrNotFound
		}
		return models.LoanApplication{}, err
	}
	app.Status = models.Status(status)
	app.LoanType = deref(loanType)
	app.RejectionReason = deref(rejection)
	app.EvidenceRequired = deref(evidence)
	return app, nil
}

func scanPayment(row pgx.Row) (models.Payment, error) {
	var p models.Payment
	if err := row.Scan(&p.ID, &p.PaymentID, &p.ApplicationID, &p.Amount, &p.CustomerID, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Payment{}, storage.ErrNotFound
		}
		return models.Payment{}, err
	}
	return p, nil
}

func scanProfile(row pgx.Row) (models.Profile, error) {
	var p models.Profile
	var fullName, role *string
	if err := row.Scan(&p.ID, &p.Email, &fullName, &role, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Profile{}, storage.ErrNotFound
		}
		return models.Profile{}, err
	}
	p.FullName = deref(fullName)
	p.Role = deref(role)
	return p, nil
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return storage.ErrAlreadyExists
	}
	return err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
