// Package dashboard keeps the reviewer's view of the application list in
// sync with the backend. Status changes show immediately and are rolled
// back if the backend refuses them.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hongminglow/loandesk/internal/auth"
	"github.com/hongminglow/loandesk/internal/models"
	"github.com/hongminglow/loandesk/internal/storage"
	"github.com/hongminglow/loandesk/internal/workflow"
)

var (
	// ErrStale is returned when a result was discarded because a newer
	// fetch started or the board was closed.
	ErrStale = errors.New("result discarded: superseded")
	// ErrNotOnPage is returned when reviewing an application that is not
	// in the current page.
	ErrNotOnPage = errors.New("application is not on the current page")
)

// Reviewer is the part of loans.Service the board drives.
type Reviewer interface {
	AllApplications(ctx context.Context, p auth.Principal, q storage.ListQuery) (storage.Page, error)
	UpdateApplicationStatus(ctx context.Context, p auth.Principal, applicationID string, status models.Status, reason string) (models.LoanApplication, error)
}

// View is a snapshot of the board.
type View struct {
	Query   storage.ListQuery
	Page    storage.Page
	Loading bool
	Err     error
}

// Board is safe for concurrent use.
type Board struct {
	reviewer  Reviewer
	principal auth.Principal
	now       func() time.Time

	mu   sync.Mutex
	view View
	gen  uint64
	// pageVer changes only when a fetch actually replaces view.Page.
	pageVer uint64
	closed  bool
}

// NewBoard creates an empty board for p.
func NewBoard(r Reviewer, p auth.Principal) *Board {
	q := storage.ListQuery{}.Normalize()
	return &Board{
		reviewer:  r,
		principal: p,
		now:       time.Now,
		view:      View{Query: q, Page: storage.NewPage(q, nil, 0)},
	}
}

// View returns the current snapshot.
func (b *Board) View() View {
	b.mu.Lock()
	defer b.mu.Unlock()
	v := b.view
	v.Page.Items = append([]models.LoanApplication(nil), b.view.Page.Items...)
	return v
}

// Load fetches the page described by q and makes it current.
func (b *Board) Load(ctx context.Context, q storage.ListQuery) error {
	q = q.Normalize()
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrStale
	}
	b.gen++
	gen := b.gen
	b.view.Query = q
	b.view.Loading = true
	b.mu.Unlock()

	page, err := b.reviewer.AllApplications(ctx, b.principal, q)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed || gen != b.gen {
		return ErrStale
	}
	b.view.Loading = false
	b.view.Err = err
	if err != nil {
		return err
	}
	b.view.Page = page
	b.pageVer++
	return nil
}

// Refresh reloads the current query.
func (b *Board) Refresh(ctx context.Context) error {
	return b.Load(ctx, b.View().Query)
}

// Review applies t to an application on the current page. The new status
// is shown at once; on success the page is refetched, on failure the
// previous record is restored unless a fetch has since replaced the page.
func (b *Board) Review(ctx context.Context, applicationID string, t workflow.Transition) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrStale
	}
	idx := b.indexOf(applicationID)
	if idx < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotOnPage, applicationID)
	}
	previous := b.view.Page.Items[idx]
	optimistic, err := workflow.Apply(previous, t, b.now())
	if err != nil {
		b.mu.Unlock()
		return err
	}
	b.view.Page.Items[idx] = optimistic
	ver := b.pageVer
	b.mu.Unlock()

	_, err = b.reviewer.UpdateApplicationStatus(ctx, b.principal, applicationID, t.To, t.Reason)
	if err != nil {
		b.mu.Lock()
		if !b.closed && ver == b.pageVer {
			if i := b.indexOf(applicationID); i >= 0 {
				b.view.Page.Items[i] = previous
			}
			b.view.Err = err
		}
		b.mu.Unlock()
		return err
	}

	if err := b.Refresh(ctx); err != nil && !errors.Is(err, ErrStale) {
		return err
	}
	return nil
}

// Close stops the board from applying any result that is still in flight.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.gen++
}

func (b *Board) indexOf(applicationID string) int {
	for i, app := range b.view.Page.Items {
		if app.ApplicationID == applicationID {
			return i
		}
	}
	return -1
}

// Filter narrows the current page on the client by status and by a
// case-insensitive match on customer name or application key. Empty
// arguments match everything.
func (b *Board) Filter(status models.Status, term string) []models.LoanApplication {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]models.LoanApplication, 0)
	for _, app := range b.View().Page.Items {
		if status != "" && app.Status != status {
			continue
		}
		if term != "" &&
			!strings.Contains(strings.ToLower(app.CustomerName), term) &&
			!strings.Contains(strings.ToLower(app.ApplicationID), term) {
			continue
		}
		out = append(out, app)
	}
	return out
}

// Actions lists the review actions offered for app.
func Actions(app models.LoanApplication) []models.Status {
	return workflow.Next(app.Status)
}
