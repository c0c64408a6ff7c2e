// Package auth owns the client's session: restoring it at startup, interactive
// login through an identity provider, refresh, sign-out and change notification.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/backend"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

// Listener is notified of every session transition. It runs synchronously, in
// registration order, and must not call back into the Manager's mutating methods.
type Listener func(event domain.AuthEvent, sess *domain.Session)

type Options struct {
	SessionTTL   time.Duration // lifetime requested on refresh
	LoginTimeout time.Duration // how long a started login waits for the redirect
}

type listenerEntry struct {
	id int
	fn Listener
}

type Manager struct {
	auth   backend.Auth
	store  SessionStore
	flow   LoginFlow
	logger logger.Logger
	opts   Options

	// transitionMu orders state changes with their notifications.
	transitionMu sync.Mutex

	mu        sync.Mutex
	current   *domain.Session
	listeners []listenerEntry
	nextID    int

	initOnce sync.Once
	ready    chan struct{}

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(auth backend.Auth, store SessionStore, flow LoginFlow, log logger.Logger, opts Options) *Manager {
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 5 * time.Minute
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = time.Hour
	}
	root, cancel := context.WithCancel(context.Background())
	return &Manager{
		auth:   auth,
		store:  store,
		flow:   flow,
		logger: log.With(logger.String("component", "auth")),
		opts:   opts,
		ready:  make(chan struct{}),
		root:   root,
		cancel: cancel,
	}
}

// Initialize restores the persisted session, if it still verifies, and emits
// INITIAL_SESSION. Only the first call does any work; it never fails, a session
// that cannot be restored simply yields nil.
func (m *Manager) Initialize(ctx context.Context) *domain.Session {
	m.initOnce.Do(func() {
		sess := m.restore(ctx)
		if sess != nil {
			m.logger.Info("session restored", logger.String("user_id", sess.UserID))
		} else {
			m.logger.Info("no session to restore")
		}
		m.apply(domain.AuthInitialSession, sess, nil)
		close(m.ready)
	})
	return m.Current()
}

// Ready is closed once Initialize has completed.
func (m *Manager) Ready() <-chan struct{} { return m.ready }

func (m *Manager) restore(ctx context.Context) *domain.Session {
	saved, err := m.store.Load()
	if errors.Is(err, ErrNoSession) {
		return nil
	}
	if err != nil {
		m.logger.Warn("failed to load saved session", logger.Error(err))
		return nil
	}
	if !saved.Valid(time.Now()) {
		m.logger.Info("saved session expired", logger.String("user_id", saved.UserID))
		m.forget()
		return nil
	}

	sess, err := m.auth.Verify(ctx, saved.AccessToken)
	if err != nil {
		m.logger.Warn("saved session rejected", logger.Error(err))
		if errors.Is(err, backend.ErrInvalidSession) {
			m.forget()
		}
		return nil
	}
	if sess.Provider == "" {
		sess.Provider = saved.Provider
	}
	return sess
}

// forget removes the persisted session.
func (m *Manager) forget() {
	if err := m.store.Clear(); err != nil {
		m.logger.Warn("failed to clear saved session", logger.Error(err))
	}
}

// Current returns a copy of the active session, or nil.
func (m *Manager) Current() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

// WithSession calls fn with the current session. No transition or notification
// runs while fn does, so fn must not call back into the manager.
func (m *Manager) WithSession(fn func(*domain.Session)) {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()
	fn(m.Current())
}

// OnSessionChange registers fn and returns a function that removes it.
func (m *Manager) OnSessionChange(fn Listener) (unregister func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners = append(m.listeners, listenerEntry{id: id, fn: fn})
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, l := range m.listeners {
				if l.id == id {
					m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// apply installs sess and notifies listeners. When cond is non-nil the change is
// only applied if cond accepts the session that is current at that moment.
func (m *Manager) apply(event domain.AuthEvent, sess *domain.Session, cond func(cur *domain.Session) bool) bool {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	m.mu.Lock()
	if cond != nil && !cond(m.current) {
		m.mu.Unlock()
		return false
	}
	m.current = sess.Clone()
	listeners := make([]listenerEntry, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	m.logger.Debug("session transition", logger.String("event", string(event)))
	for _, l := range listeners {
		l.fn(event, sess.Clone())
	}
	return true
}

// SignInWithProvider starts an interactive login and returns the URL the user must
// visit. The session is established in the background once the provider redirects
// back, followed by a SIGNED_IN notification.
func (m *Manager) SignInWithProvider(ctx context.Context, provider string) (string, error) {
	if provider == "" {
		return "", fmt.Errorf("provider is required")
	}
	if m.root.Err() != nil {
		return "", fmt.Errorf("session manager closed")
	}

	pending, err := m.flow.Begin(ctx, provider)
	if err != nil {
		return "", fmt.Errorf("failed to start login: %w", err)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.completeLogin(pending, provider)
	}()
	return pending.URL, nil
}

func (m *Manager) completeLogin(p *Pending, provider string) {
	ctx, cancel := context.WithTimeout(m.root, m.opts.LoginTimeout)
	defer cancel()

	token, err := p.Wait(ctx)
	if err != nil {
		m.logger.Warn("interactive login did not complete",
			logger.String("provider", provider), logger.Error(err))
		return
	}

	sess, err := m.auth.Verify(ctx, token)
	if err != nil {
		m.logger.Warn("login token rejected", logger.String("provider", provider), logger.Error(err))
		return
	}
	if sess.Provider == "" {
		sess.Provider = provider
	}

	if err := m.store.Save(sess); err != nil {
		m.logger.Warn("failed to persist session", logger.Error(err))
	}
	m.logger.Info("signed in", logger.String("user_id", sess.UserID), logger.String("provider", provider))
	m.apply(domain.AuthSignedIn, sess, nil)
}

// SignOut revokes the session with the backend (best effort), forgets it locally
// and emits SIGNED_OUT. The only reported error is failing to delete the saved
// session, which would otherwise be restored on the next start.
func (m *Manager) SignOut(ctx context.Context) error {
	if sess := m.Current(); sess != nil {
		if err := m.auth.Revoke(ctx, sess.AccessToken); err != nil {
			m.logger.Warn("failed to revoke session", logger.Error(err))
		}
	}

	clearErr := m.store.Clear()
	if clearErr != nil {
		m.logger.Warn("failed to clear saved session", logger.Error(clearErr))
	}

	m.apply(domain.AuthSignedOut, nil, nil)
	m.logger.Info("signed out")
	return clearErr
}

// Refresh extends the current session and emits TOKEN_REFRESHED. A session the
// backend no longer accepts is dropped as if signed out.
func (m *Manager) Refresh(ctx context.Context) error {
	sess := m.Current()
	if sess == nil {
		return ErrNoSession
	}
	sameToken := func(cur *domain.Session) bool {
		return cur != nil && cur.AccessToken == sess.AccessToken
	}

	updated, err := m.auth.Refresh(ctx, sess.AccessToken, m.opts.SessionTTL)
	if errors.Is(err, backend.ErrInvalidSession) {
		m.logger.Warn("session no longer valid", logger.String("user_id", sess.UserID))
		if m.apply(domain.AuthSignedOut, nil, sameToken) {
			if cerr := m.store.Clear(); cerr != nil {
				m.logger.Warn("failed to clear saved session", logger.Error(cerr))
			}
		}
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to refresh session: %w", err)
	}

	if updated.Provider == "" {
		updated.Provider = sess.Provider
	}
	if !m.apply(domain.AuthTokenRefreshed, updated, sameToken) {
		return nil
	}
	if err := m.store.Save(updated); err != nil {
		m.logger.Warn("failed to persist session", logger.Error(err))
	}
	return nil
}

// Close aborts pending logins and waits for them to finish.
func (m *Manager) Close() {
	m.cancel()
	m.wg.Wait()
}
