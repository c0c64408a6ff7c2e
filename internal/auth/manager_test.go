package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/linkvault/internal/backend"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

// fakeAuth accepts tokens registered in users (token -> user id).
type fakeAuth struct {
	mu         sync.Mutex
	users      map[string]string
	revoked    []string
	refreshErr error
}

func newFakeAuth() *fakeAuth { return &fakeAuth{users: map[string]string{}} }

func (f *fakeAuth) grant(token, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[token] = userID
}

func (f *fakeAuth) Verify(_ context.Context, token string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	uid, ok := f.users[token]
	if !ok {
		return nil, backend.ErrInvalidSession
	}
	return &domain.Session{UserID: uid, AccessToken: token, ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeAuth) Refresh(ctx context.Context, token string, ttl time.Duration) (*domain.Session, error) {
	f.mu.Lock()
	err := f.refreshErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	sess, err := f.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	sess.ExpiresAt = time.Now().Add(ttl)
	return sess, nil
}

func (f *fakeAuth) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, token)
	f.revoked = append(f.revoked, token)
	return nil
}

// memStore is an in-memory SessionStore.
type memStore struct {
	mu   sync.Mutex
	sess *domain.Session
}

func (s *memStore) Load() (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil, ErrNoSession
	}
	return s.sess.Clone(), nil
}

func (s *memStore) Save(sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = sess.Clone()
	return nil
}

func (s *memStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	return nil
}

// fakeFlow hands out pendings that the test completes by hand.
type fakeFlow struct {
	mu       sync.Mutex
	complete func(string)
}

func (f *fakeFlow) Begin(_ context.Context, provider string) (*Pending, error) {
	p, complete := NewPending("https://idp.example/authorize?provider="+provider, nil)
	f.mu.Lock()
	f.complete = complete
	f.mu.Unlock()
	return p, nil
}

func (f *fakeFlow) finish(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete(token)
}

type recorded struct {
	event domain.AuthEvent
	user  string
}

func record(m *Manager) (func() []recorded, chan recorded) {
	var mu sync.Mutex
	var got []recorded
	ch := make(chan recorded, 16)
	m.OnSessionChange(func(e domain.AuthEvent, s *domain.Session) {
		r := recorded{event: e}
		if s != nil {
			r.user = s.UserID
		}
		mu.Lock()
		got = append(got, r)
		mu.Unlock()
		ch <- r
	})
	return func() []recorded {
		mu.Lock()
		defer mu.Unlock()
		return append([]recorded(nil), got...)
	}, ch
}

func newTestManager(t *testing.T, a *fakeAuth, st SessionStore, flow LoginFlow) *Manager {
	t.Helper()
	m := NewManager(a, st, flow, logger.Nop(), Options{SessionTTL: time.Hour, LoginTimeout: 2 * time.Second})
	t.Cleanup(m.Close)
	return m
}

func waitEvent(t *testing.T, ch chan recorded) recorded {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no session event")
		return recorded{}
	}
}

func TestInitializeWithoutSavedSession(t *testing.T) {
	m := newTestManager(t, newFakeAuth(), &memStore{}, &fakeFlow{})
	events, _ := record(m)

	assert.Nil(t, m.Initialize(context.Background()))
	assert.Nil(t, m.Current())
	assert.Equal(t, []recorded{{event: domain.AuthInitialSession}}, events())

	select {
	case <-m.Ready():
	default:
		t.Fatal("Ready should be closed after Initialize")
	}
}

func TestInitializeRestoresValidSession(t *testing.T) {
	a := newFakeAuth()
	a.grant("tok-a", "alice")
	st := &memStore{sess: &domain.Session{UserID: "alice", AccessToken: "tok-a", Provider: "github"}}

	m := newTestManager(t, a, st, &fakeFlow{})
	events, _ := record(m)

	sess := m.Initialize(context.Background())
	require.NotNil(t, sess)
	assert.Equal(t, "alice", sess.UserID)
	assert.Equal(t, "github", sess.Provider)

	// second call is a no-op
	m.Initialize(context.Background())
	assert.Equal(t, []recorded{{event: domain.AuthInitialSession, user: "alice"}}, events())
}

func TestInitializeDropsRejectedSession(t *testing.T) {
	st := &memStore{sess: &domain.Session{UserID: "alice", AccessToken: "stale"}}
	m := newTestManager(t, newFakeAuth(), st, &fakeFlow{})

	assert.Nil(t, m.Initialize(context.Background()))
	_, err := st.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestInitializeDropsExpiredSavedSession(t *testing.T) {
	a := newFakeAuth()
	a.grant("tok-a", "alice")
	st := &memStore{sess: &domain.Session{UserID: "alice", AccessToken: "tok-a", ExpiresAt: time.Now().Add(-time.Minute)}}
	m := newTestManager(t, a, st, &fakeFlow{})

	assert.Nil(t, m.Initialize(context.Background()))
	assert.Nil(t, m.Current())
	_, err := st.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSignInSignOut(t *testing.T) {
	a := newFakeAuth()
	a.grant("tok-b", "bob")
	st := &memStore{}
	flow := &fakeFlow{}

	m := newTestManager(t, a, st, flow)
	_, ch := record(m)
	m.Initialize(context.Background())
	waitEvent(t, ch)

	u, err := m.SignInWithProvider(context.Background(), "google")
	require.NoError(t, err)
	assert.Contains(t, u, "provider=google")
	assert.Nil(t, m.Current(), "session must not exist before the redirect")

	flow.finish("tok-b")
	r := waitEvent(t, ch)
	assert.Equal(t, recorded{event: domain.AuthSignedIn, user: "bob"}, r)

	cur := m.Current()
	require.NotNil(t, cur)
	assert.Equal(t, "google", cur.Provider)
	saved, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-b", saved.AccessToken)

	require.NoError(t, m.SignOut(context.Background()))
	assert.Equal(t, recorded{event: domain.AuthSignedOut}, waitEvent(t, ch))
	assert.Nil(t, m.Current())
	assert.Contains(t, a.revoked, "tok-b")
	_, err = st.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSignInRequiresProvider(t *testing.T) {
	m := newTestManager(t, newFakeAuth(), &memStore{}, &fakeFlow{})
	_, err := m.SignInWithProvider(context.Background(), "")
	assert.Error(t, err)
}

func TestAbortedLoginLeavesStateUntouched(t *testing.T) {
	flow := &fakeFlow{}
	m := newTestManager(t, newFakeAuth(), &memStore{}, flow)
	events, _ := record(m)
	m.Initialize(context.Background())

	_, err := m.SignInWithProvider(context.Background(), "google")
	require.NoError(t, err)
	flow.finish("")
	m.Close()

	assert.Nil(t, m.Current())
	assert.Len(t, events(), 1)
}

func TestRefresh(t *testing.T) {
	a := newFakeAuth()
	a.grant("tok-a", "alice")
	st := &memStore{sess: &domain.Session{UserID: "alice", AccessToken: "tok-a"}}
	m := newTestManager(t, a, st, &fakeFlow{})
	_, ch := record(m)
	m.Initialize(context.Background())
	waitEvent(t, ch)

	require.NoError(t, m.Refresh(context.Background()))
	assert.Equal(t, recorded{event: domain.AuthTokenRefreshed, user: "alice"}, waitEvent(t, ch))

	t.Run("transport failure keeps the session", func(t *testing.T) {
		a.mu.Lock()
		a.refreshErr = errors.New("connection refused")
		a.mu.Unlock()
		defer func() {
			a.mu.Lock()
			a.refreshErr = nil
			a.mu.Unlock()
		}()

		assert.Error(t, m.Refresh(context.Background()))
		assert.NotNil(t, m.Current())
	})

	t.Run("rejected token signs out", func(t *testing.T) {
		require.NoError(t, a.Revoke(context.Background(), "tok-a"))
		err := m.Refresh(context.Background())
		assert.ErrorIs(t, err, backend.ErrInvalidSession)
		assert.Equal(t, recorded{event: domain.AuthSignedOut}, waitEvent(t, ch))
		assert.Nil(t, m.Current())
	})

	assert.ErrorIs(t, m.Refresh(context.Background()), ErrNoSession)
}

func TestWithSessionHoldsTransitions(t *testing.T) {
	a := newFakeAuth()
	a.grant("tok-a", "alice")
	st := &memStore{sess: &domain.Session{UserID: "alice", AccessToken: "tok-a"}}
	m := newTestManager(t, a, st, &fakeFlow{})
	m.Initialize(context.Background())
	_, ch := record(m)

	signedOut := make(chan struct{})
	m.WithSession(func(s *domain.Session) {
		require.NotNil(t, s)
		assert.Equal(t, "alice", s.UserID)

		go func() {
			_ = m.SignOut(context.Background())
			close(signedOut)
		}()
		select {
		case <-ch:
			t.Error("transition ran while WithSession was active")
		case <-time.After(50 * time.Millisecond):
		}
	})

	assert.Equal(t, domain.AuthSignedOut, waitEvent(t, ch).event)
	<-signedOut
	assert.Nil(t, m.Current())
}

func TestListenersRunInOrderAndUnregister(t *testing.T) {
	m := newTestManager(t, newFakeAuth(), &memStore{}, &fakeFlow{})

	var order []string
	m.OnSessionChange(func(domain.AuthEvent, *domain.Session) { order = append(order, "first") })
	unregister := m.OnSessionChange(func(domain.AuthEvent, *domain.Session) { order = append(order, "second") })
	m.OnSessionChange(func(domain.AuthEvent, *domain.Session) { order = append(order, "third") })

	m.Initialize(context.Background())
	assert.Equal(t, []string{"first", "second", "third"}, order)

	unregister()
	unregister()
	order = nil
	require.NoError(t, m.SignOut(context.Background()))
	assert.Equal(t, []string{"first", "third"}, order)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	fs := NewFileStore(path)

	_, err := fs.Load()
	assert.ErrorIs(t, err, ErrNoSession)

	want := &domain.Session{UserID: "alice", AccessToken: "tok", Provider: "google", ExpiresAt: time.Unix(1700000000, 0).UTC()}
	require.NoError(t, fs.Save(want))

	got, err := fs.Load()
	require.NoError(t, err)
	assert.Equal(t, want.UserID, got.UserID)
	assert.Equal(t, want.AccessToken, got.AccessToken)
	assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))

	require.NoError(t, fs.Clear())
	require.NoError(t, fs.Clear())
	_, err = fs.Load()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestRedirectFlow(t *testing.T) {
	flow := NewRedirectFlow("https://idp.example/authorize", "http://localhost:8080/", logger.Nop())

	p, err := flow.Begin(context.Background(), "github")
	require.NoError(t, err)

	u, err := url.Parse(p.URL)
	require.NoError(t, err)
	assert.Equal(t, "idp.example", u.Host)
	assert.Equal(t, "github", u.Query().Get("provider"))
	assert.Equal(t, "http://localhost:8080/auth/callback", u.Query().Get("redirect_to"))
	state := u.Query().Get("state")
	require.NotEmpty(t, state)

	handler := flow.Callback()

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?state=bogus&access_token=x", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?state="+state+"&access_token=tok-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	tok, err := p.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	// state is single use
	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?state="+state+"&access_token=tok-2", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPendingWaitTimesOut(t *testing.T) {
	aborted := false
	p, _ := NewPending("https://idp.example", func() { aborted = true })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, aborted)
}
