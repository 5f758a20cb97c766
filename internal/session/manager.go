// Package session holds the signed-in state of a client process: who the
// user is, their session, whether the first restore is still running and
// whether they are an administrator. Listeners are told about every change.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hongminglow/loandesk/internal/auth"
	"github.com/hongminglow/loandesk/internal/logging"
	"github.com/hongminglow/loandesk/internal/notify"
)

// Event names an auth state change.
type Event string

const (
	EventInitialSession Event = "INITIAL_SESSION"
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
)

// State is a snapshot of the session.
type State struct {
	User    *auth.User
	Session *auth.Session
	// Loading stays true until the persisted session has been checked.
	Loading bool
	IsAdmin bool
}

// Listener receives state changes. It runs on the goroutine that caused the change.
type Listener func(Event, State)

// Authenticator is the part of auth.Service the manager needs.
type Authenticator interface {
	SignUp(ctx context.Context, email, password, fullName string) (auth.SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (auth.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Resolve(ctx context.Context, accessToken string) (auth.Principal, error)
}

// ErrClosed is returned by operations on a closed manager.
var ErrClosed = errors.New("session manager closed")

// Manager is safe for concurrent use.
type Manager struct {
	auth     Authenticator
	store    Store
	notifier notify.Notifier
	log      logging.Logger
	now      func() time.Time

	mu        sync.Mutex
	state     State
	listeners map[int]Listener
	nextID    int
	gen       uint64
	started   bool
	closed    bool
}

// NewManager builds a manager in the loading state.
func NewManager(a Authenticator, store Store, notifier notify.Notifier, log logging.Logger) *Manager {
	return &Manager{
		auth:      a,
		store:     store,
		notifier:  notifier,
		log:       log.With("component", "session"),
		now:       time.Now,
		state:     State{Loading: true},
		listeners: make(map[int]Listener),
	}
}

// Start restores the persisted session once. The admin flag is always
// re-read from the backend, never from what was stored.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	gen := m.gen
	m.mu.Unlock()

	next := State{}
	stored, err := m.store.Load()
	if err != nil {
		m.log.Warn(ctx, "load stored session failed", "error", err)
	}
	if stored != nil {
		if stored.Expired(m.now()) {
			m.forget(ctx)
		} else if p, err := m.auth.Resolve(ctx, stored.AccessToken); err != nil {
			m.log.Info(ctx, "stored session rejected", "error", err)
			if errors.Is(err, auth.ErrInvalidToken) {
				m.forget(ctx)
			}
		} else {
			next = stateFor(*stored, p)
		}
	}

	m.commit(gen, EventInitialSession, next)
	return nil
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Principal returns the caller identity for service operations.
func (m *Manager) Principal() auth.Principal {
	st := m.State()
	if st.User == nil || st.Session == nil {
		return auth.Principal{}
	}
	return auth.Principal{
		UserID:      st.User.ID,
		Email:       st.User.Email,
		AccessToken: st.Session.AccessToken,
		IsAdmin:     st.IsAdmin,
	}
}

// Subscribe registers l and returns a function that removes it.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return func() {}
	}
	id := m.nextID
	m.nextID++
	m.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// SignIn authenticates and persists the session. Failures are notified
// and returned; the loading flag is always cleared.
func (m *Manager) SignIn(ctx context.Context, email, password string) error {
	gen, err := m.begin()
	if err != nil {
		return err
	}

	sess, err := m.auth.SignIn(ctx, email, password)
	if err != nil {
		return m.fail(ctx, gen, "Sign in failed: "+err.Error(), err)
	}
	return m.establish(ctx, gen, sess)
}

// SignUp registers the user. When the backend requires email confirmation
// no session is returned and the user stays signed out.
func (m *Manager) SignUp(ctx context.Context, email, password, fullName string) error {
	gen, err := m.begin()
	if err != nil {
		return err
	}

	res, err := m.auth.SignUp(ctx, email, password, fullName)
	if err != nil {
		return m.fail(ctx, gen, "Sign up failed: "+err.Error(), err)
	}
	if res.Session == nil {
		notify.Success(ctx, m.notifier, "Account created. Check your email to confirm it before signing in.")
		m.commit(gen, EventSignedOut, State{})
		return nil
	}
	return m.establish(ctx, gen, *res.Session)
}

// SignOut ends the session locally even when the backend call fails.
func (m *Manager) SignOut(ctx context.Context) error {
	gen, err := m.begin()
	if err != nil {
		return err
	}
	prev := m.Principal()

	var outErr error
	if prev.AccessToken != "" {
		if err := m.auth.SignOut(ctx, prev.AccessToken); err != nil && !errors.Is(err, auth.ErrInvalidToken) {
			m.log.Warn(ctx, "backend sign out failed", "error", err)
			notify.Error(ctx, m.notifier, "Sign out failed on the server; the local session was removed")
			outErr = err
		}
	}
	m.forget(ctx)
	m.commit(gen, EventSignedOut, State{})
	return outErr
}

// Close drops every listener. Operations still running finish without
// touching state.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.gen++
	m.listeners = make(map[int]Listener)
}

func (m *Manager) begin() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.gen++
	m.state.Loading = true
	return m.gen, nil
}

func (m *Manager) establish(ctx context.Context, gen uint64, sess auth.Session) error {
	p, err := m.auth.Resolve(ctx, sess.AccessToken)
	if err != nil {
		return m.fail(ctx, gen, "Could not load your account: "+err.Error(), err)
	}
	if err := m.store.Save(sess); err != nil {
		m.log.Warn(ctx, "persist session failed", "error", err)
	}
	m.commit(gen, EventSignedIn, stateFor(sess, p))
	return nil
}

func (m *Manager) fail(ctx context.Context, gen uint64, msg string, err error) error {
	m.log.Warn(ctx, "auth operation failed", "error", err)
	notify.Error(ctx, m.notifier, msg)

	m.mu.Lock()
	if !m.closed && gen == m.gen {
		m.state.Loading = false
	}
	m.mu.Unlock()
	return err
}

func (m *Manager) forget(ctx context.Context) {
	if err := m.store.Clear(); err != nil {
		m.log.Warn(ctx, "clear stored session failed", "error", err)
	}
}

// commit installs next unless the manager was closed or a newer operation
// started since gen was taken.
func (m *Manager) commit(gen uint64, ev Event, next State) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	next.Loading = false
	m.state = next
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		m.deliver(l, ev, next)
	}
}

func (m *Manager) deliver(l Listener, ev Event, st State) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error(context.Background(), "session listener panicked", "event", string(ev), "panic", r)
		}
	}()
	l(ev, st)
}

func stateFor(sess auth.Session, p auth.Principal) State {
	user := sess.User
	if user.ID == "" {
		user = auth.User{ID: p.UserID, Email: p.Email}
	}
	return State{User: &user, Session: &sess, IsAdmin: p.IsAdmin}
}
