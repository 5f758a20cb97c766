package session

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hongminglow/loandesk/internal/auth"
	"github.com/hongminglow/loandesk/internal/logging"
	"github.com/hongminglow/loandesk/internal/notify"
)

type fakeAuth struct {
	mu        sync.Mutex
	admins    map[string]bool
	tokens    map[string]string // token -> user id
	signInErr error
	signOuts  int
	confirm   bool
	block     chan struct{}
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{admins: map[string]bool{}, tokens: map[string]string{}}
}

func (f *fakeAuth) session(userID string) auth.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	tok := "tok-" + userID
	f.tokens[tok] = userID
	return auth.Session{
		AccessToken: tok,
		ExpiresAt:   time.Now().Add(time.Hour),
		User:        auth.User{ID: userID, Email: userID + "@example.com"},
	}
}

func (f *fakeAuth) SignUp(_ context.Context, email, _, fullName string) (auth.SignUpResult, error) {
	user := auth.User{ID: email, Email: email, FullName: fullName}
	if f.confirm {
		return auth.SignUpResult{User: user}, nil
	}
	s := f.session(email)
	return auth.SignUpResult{User: user, Session: &s}, nil
}

func (f *fakeAuth) SignIn(_ context.Context, email, _ string) (auth.Session, error) {
	if f.block != nil {
		<-f.block
	}
	if f.signInErr != nil {
		return auth.Session{}, f.signInErr
	}
	return f.session(email), nil
}

func (f *fakeAuth) SignOut(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signOuts++
	delete(f.tokens, token)
	return nil
}

func (f *fakeAuth) Resolve(_ context.Context, token string) (auth.Principal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.tokens[token]
	if !ok {
		return auth.Principal{}, auth.ErrInvalidToken
	}
	return auth.Principal{UserID: id, Email: id + "@example.com", AccessToken: token, IsAdmin: f.admins[id]}, nil
}

func newManager(t *testing.T, a Authenticator, store Store) (*Manager, *notify.Recorder) {
	t.Helper()
	notes := &notify.Recorder{}
	m := NewManager(a, store, notes, logging.Discard())
	t.Cleanup(m.Close)
	return m, notes
}

func TestStart_NoStoredSession(t *testing.T) {
	m, _ := newManager(t, newFakeAuth(), &MemoryStore{})
	assert.True(t, m.State().Loading)

	var events []Event
	m.Subscribe(func(ev Event, _ State) { events = append(events, ev) })

	require.NoError(t, m.Start(context.Background()))
	st := m.State()
	assert.False(t, st.Loading)
	assert.Nil(t, st.User)
	assert.Equal(t, []Event{EventInitialSession}, events)

	require.NoError(t, m.Start(context.Background()))
	assert.Len(t, events, 1, "restore runs once")
}

func TestStart_RestoresAndReadsAdminFromBackend(t *testing.T) {
	fa := newFakeAuth()
	store := &MemoryStore{}
	sess := fa.session("root")
	require.NoError(t, store.Save(sess))
	fa.admins["root"] = true

	m, _ := newManager(t, fa, store)
	require.NoError(t, m.Start(context.Background()))

	st := m.State()
	require.NotNil(t, st.User)
	assert.Equal(t, "root", st.User.ID)
	assert.True(t, st.IsAdmin)
	assert.Equal(t, "tok-root", m.Principal().AccessToken)
}

func TestStart_DropsRejectedSession(t *testing.T) {
	store := &MemoryStore{}
	require.NoError(t, store.Save(auth.Session{AccessToken: "revoked", ExpiresAt: time.Now().Add(time.Hour)}))

	m, _ := newManager(t, newFakeAuth(), store)
	require.NoError(t, m.Start(context.Background()))
	assert.Nil(t, m.State().User)

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestSignInSignOut(t *testing.T) {
	fa := newFakeAuth()
	store := &MemoryStore{}
	m, _ := newManager(t, fa, store)
	require.NoError(t, m.Start(context.Background()))

	var events []Event
	unsubscribe := m.Subscribe(func(ev Event, _ State) { events = append(events, ev) })

	require.NoError(t, m.SignIn(context.Background(), "alice", "pw"))
	st := m.State()
	require.NotNil(t, st.User)
	assert.Equal(t, "alice", st.User.ID)
	assert.False(t, st.IsAdmin)
	assert.False(t, st.Loading)

	stored, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, stored)

	require.NoError(t, m.SignOut(context.Background()))
	assert.Nil(t, m.State().User)
	assert.Equal(t, 1, fa.signOuts)
	assert.Equal(t, []Event{EventSignedIn, EventSignedOut}, events)

	unsubscribe()
	unsubscribe()
	require.NoError(t, m.SignIn(context.Background(), "alice", "pw"))
	assert.Len(t, events, 2, "unsubscribed listener is not called")
}

func TestSignIn_FailureNotifiesAndClearsLoading(t *testing.T) {
	fa := newFakeAuth()
	fa.signInErr = auth.ErrInvalidCredentials
	m, notes := newManager(t, fa, &MemoryStore{})
	require.NoError(t, m.Start(context.Background()))

	err := m.SignIn(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.False(t, m.State().Loading)
	assert.Equal(t, []string{"Sign in failed: invalid credentials"}, notes.Errors())
}

func TestSignUp_ConfirmationPending(t *testing.T) {
	fa := newFakeAuth()
	fa.confirm = true
	m, notes := newManager(t, fa, &MemoryStore{})
	require.NoError(t, m.Start(context.Background()))

	require.NoError(t, m.SignUp(context.Background(), "new@example.com", "secret123", "New User"))
	assert.Nil(t, m.State().User)
	require.Len(t, notes.Notices(), 1)
	assert.Equal(t, notify.LevelSuccess, notes.Notices()[0].Level)
}

func TestClose_IgnoresLateResults(t *testing.T) {
	fa := newFakeAuth()
	fa.block = make(chan struct{})
	m, _ := newManager(t, fa, &MemoryStore{})
	require.NoError(t, m.Start(context.Background()))

	called := false
	m.Subscribe(func(Event, State) { called = true })

	done := make(chan error, 1)
	go func() { done <- m.SignIn(context.Background(), "alice", "pw") }()

	m.Close()
	close(fa.block)
	<-done

	assert.Nil(t, m.State().User)
	assert.False(t, called)
	assert.ErrorIs(t, m.SignIn(context.Background(), "alice", "pw"), ErrClosed)
}

func TestListenerPanicIsContained(t *testing.T) {
	m, _ := newManager(t, newFakeAuth(), &MemoryStore{})
	m.Subscribe(func(Event, State) { panic("boom") })
	assert.NotPanics(t, func() { _ = m.Start(context.Background()) })
}

func TestFileStore(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"))

	s, err := fs.Load()
	require.NoError(t, err)
	assert.Nil(t, s)

	want := auth.Session{AccessToken: "tok", ExpiresAt: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), User: auth.User{ID: "u1"}}
	require.NoError(t, fs.Save(want))

	s, err = fs.Load()
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, want.AccessToken, s.AccessToken)
	assert.True(t, want.ExpiresAt.Equal(s.ExpiresAt))

	require.NoError(t, fs.Clear())
	require.NoError(t, fs.Clear())
	s, err = fs.Load()
	require.NoError(t, err)
	assert.Nil(t, s)
}
