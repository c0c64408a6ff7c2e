// Package dashboard holds the single top-level application state: session, cached
// bookmarks, live feed and the add/edit form. Views are rendered from View().
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/linkvault/internal/auth"
	"github.com/MrSnakeDoc/linkvault/internal/bookmarks"
	"github.com/MrSnakeDoc/linkvault/internal/domain"
	"github.com/MrSnakeDoc/linkvault/internal/index"
	"github.com/MrSnakeDoc/linkvault/internal/live"
	"github.com/MrSnakeDoc/linkvault/internal/logger"
	"github.com/MrSnakeDoc/linkvault/internal/sources/homepage"
)

var (
	ErrClosed          = errors.New("dashboard closed")
	ErrNotSignedIn     = errors.New("not signed in")
	ErrUnknownBookmark = errors.New("bookmark not in list")
)

// SessionManager is the part of auth.Manager the dashboard drives.
type SessionManager interface {
	Initialize(ctx context.Context) *domain.Session
	OnSessionChange(fn auth.Listener) (unregister func())
	WithSession(fn func(*domain.Session))
	SignInWithProvider(ctx context.Context, provider string) (string, error)
	SignOut(ctx context.Context) error
}

type Phase string

const (
	PhaseLoading         Phase = "loading"
	PhaseUnauthenticated Phase = "unauthenticated"
	PhaseDashboard       Phase = "dashboard"
)

type Mode string

const (
	ModeAdd  Mode = "add"
	ModeEdit Mode = "edit"
)

// Form is the unsaved draft. EditingID is set while editing an existing bookmark.
type Form struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	EditingID *int64 `json:"editing_id,omitempty"`
}

func (f Form) Mode() Mode {
	if f.EditingID != nil {
		return ModeEdit
	}
	return ModeAdd
}

func (f Form) sameTarget(o Form) bool {
	if f.EditingID == nil || o.EditingID == nil {
		return f.EditingID == nil && o.EditingID == nil
	}
	return *f.EditingID == *o.EditingID
}

// ViewState is an immutable snapshot of everything a view renders.
type ViewState struct {
	Phase       Phase             `json:"phase"`
	UserID      string            `json:"user_id,omitempty"`
	Bookmarks   []domain.Bookmark `json:"bookmarks"`
	Form        Form              `json:"form"`
	Mode        Mode              `json:"mode"`
	Saving      bool              `json:"saving"`
	Error       string            `json:"error,omitempty"`
	Success     string            `json:"success,omitempty"`
	RefreshedAt time.Time         `json:"refreshed_at"`
}

// ImportResult counts the outcome of an import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

type Controller struct {
	sessions SessionManager
	cache    *index.BookmarkCache
	listener *live.Listener
	crud     *bookmarks.Service
	logger   logger.Logger
	provider string

	mu         sync.Mutex
	phase      Phase
	session    *domain.Session
	form       Form
	errMsg     string
	successMsg string
	inflight   int
	closed     bool
	unregister func()

	refreshCh   chan struct{}
	pendingUser string // user the queued background refresh was requested for
	root        context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

// New creates a controller. defaultProvider is used when Login is called without one.
func New(
	sessions SessionManager,
	cache *index.BookmarkCache,
	listener *live.Listener,
	crud *bookmarks.Service,
	log logger.Logger,
	defaultProvider string,
) *Controller {
	root, cancel := context.WithCancel(context.Background())
	return &Controller{
		sessions:  sessions,
		cache:     cache,
		listener:  listener,
		crud:      crud,
		logger:    log.With(logger.String("component", "dashboard")),
		provider:  defaultProvider,
		phase:     PhaseLoading,
		refreshCh: make(chan struct{}, 1),
		root:      root,
		cancel:    cancel,
	}
}

// Start subscribes to session changes, then runs the initial session check. The
// first fetch happens only once that check has completed.
func (c *Controller) Start(ctx context.Context) {
	c.mu.Lock()
	c.unregister = c.sessions.OnSessionChange(c.onSessionChange)
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.refreshLoop()
	}()

	c.sessions.Initialize(ctx)

	// Initialize may have run before we registered. Reading the session in the
	// manager's transition order keeps a concurrent sign-in from being overwritten.
	c.sessions.WithSession(func(sess *domain.Session) {
		c.mu.Lock()
		loading := c.phase == PhaseLoading
		c.mu.Unlock()
		if loading {
			c.onSessionChange(domain.AuthInitialSession, sess)
		}
	})
}

func userOf(s *domain.Session) string {
	if s == nil {
		return ""
	}
	return s.UserID
}

// onSessionChange runs synchronously inside the session manager's notification.
func (c *Controller) onSessionChange(event domain.AuthEvent, sess *domain.Session) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	prev := c.session
	firstCheck := c.phase == PhaseLoading
	c.session = sess
	if sess == nil {
		c.phase = PhaseUnauthenticated
	} else {
		c.phase = PhaseDashboard
	}
	changed := firstCheck || userOf(prev) != userOf(sess)
	if changed {
		c.form = Form{}
		c.errMsg, c.successMsg = "", ""
		c.pendingUser = ""
		c.cache.Reset(userOf(sess))
	}
	c.mu.Unlock()

	c.logger.Debug("session changed",
		logger.String("event", string(event)), logger.String("user_id", userOf(sess)))
	if !changed {
		return
	}

	// The previous user's feed goes first so none of its events reach the next user.
	c.listener.Unsubscribe()
	if sess == nil {
		return
	}

	if err := c.listener.Subscribe(c.root, sess, c.onChange); err != nil {
		c.logger.Warn("live updates unavailable", logger.String("user_id", sess.UserID), logger.Error(err))
	}
	if c.root.Err() != nil {
		// closed while subscribing
		c.listener.Unsubscribe()
		return
	}
	c.refresh(c.root, sess)
}

// onChange runs on the feed goroutine and only schedules a refresh.
func (c *Controller) onChange(e domain.ChangeEvent) {
	c.logger.Debug("change received",
		logger.String("type", string(e.Type)), logger.Int64("id", e.RecordID))
	c.requestRefresh(e.UserID)
}

// requestRefresh queues a background refresh for userID. It is dropped if userID
// is not the signed-in user, now or when the refresh loop picks it up.
func (c *Controller) requestRefresh(userID string) bool {
	c.mu.Lock()
	if c.closed || userID == "" || userOf(c.session) != userID {
		c.mu.Unlock()
		return false
	}
	c.pendingUser = userID
	c.mu.Unlock()

	select {
	case c.refreshCh <- struct{}{}:
	default:
	}
	return true
}

// Resync schedules a background refetch of the list, for when feed events may
// have been lost. Does nothing while signed out.
func (c *Controller) Resync() bool {
	sess := c.currentSession()
	if sess == nil {
		return false
	}
	return c.requestRefresh(sess.UserID)
}

func (c *Controller) refreshLoop() {
	for {
		select {
		case <-c.root.Done():
			return
		case <-c.refreshCh:
			if sess := c.takePending(); sess != nil {
				c.refresh(c.root, sess)
			}
		}
	}
}

// takePending returns the session to refresh for the queued request, or nil when
// the user it was queued for is no longer signed in.
func (c *Controller) takePending() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	uid := c.pendingUser
	c.pendingUser = ""
	if c.closed || uid == "" || userOf(c.session) != uid {
		return nil
	}
	return c.session.Clone()
}

func (c *Controller) currentSession() *domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.session.Clone()
}

// active reports whether results computed for sess may still be applied.
func (c *Controller) active(sess *domain.Session) bool {
	return !c.closed && c.session != nil && c.session.UserID == sess.UserID
}

func (c *Controller) refresh(ctx context.Context, sess *domain.Session) {
	err := c.cache.Refresh(ctx, sess)
	if err == nil || errors.Is(err, index.ErrOwnerMismatch) {
		return
	}

	ferr := bookmarks.Failure(bookmarks.OpLoad, err)
	c.logger.Error("failed to load bookmarks", logger.String("user_id", sess.UserID), logger.Error(ferr))
	c.mu.Lock()
	if c.active(sess) {
		c.errMsg = bookmarks.UserMessage(ferr)
	}
	c.mu.Unlock()
}

// View returns the current state.
func (c *Controller) View() ViewState {
	c.mu.Lock()
	v := ViewState{
		Phase:   c.phase,
		UserID:  userOf(c.session),
		Form:    c.form,
		Mode:    c.form.Mode(),
		Saving:  c.inflight > 0,
		Error:   c.errMsg,
		Success: c.successMsg,
	}
	if c.form.EditingID != nil {
		id := *c.form.EditingID
		v.Form.EditingID = &id
	}

	// Read under mu so the list always belongs to UserID.
	v.Bookmarks = []domain.Bookmark{}
	if v.Phase == PhaseDashboard {
		v.Bookmarks = c.cache.Snapshot()
		v.RefreshedAt = c.cache.LastRefresh()
	}
	c.mu.Unlock()
	return v
}

// UpdateDraft replaces the draft text, keeping the current mode.
func (c *Controller) UpdateDraft(title, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form.Title = title
	c.form.URL = url
}

// BeginEdit switches the form to editing id, preloaded with its cached values.
// Switching from another edit target replaces the draft entirely.
func (c *Controller) BeginEdit(id int64) error {
	b, ok := c.cache.Get(id)
	if !ok {
		return ErrUnknownBookmark
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.form = Form{Title: b.Title, URL: b.URL, EditingID: &id}
	return nil
}

// CancelEdit returns to add mode with an empty draft.
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.form = Form{}
}

// begin starts an operation for the signed-in user and clears the previous outcome.
func (c *Controller) begin() (*domain.Session, Form, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, Form{}, ErrClosed
	}
	if c.session == nil {
		return nil, Form{}, ErrNotSignedIn
	}
	c.errMsg, c.successMsg = "", ""
	c.inflight++
	return c.session.Clone(), c.form, nil
}

// finish records the outcome of an operation started by begin. It returns false
// when the result arrived too late to be shown.
func (c *Controller) finish(sess *domain.Session, err error, success string, onSuccess func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--
	if !c.active(sess) {
		return false
	}
	if err != nil {
		c.errMsg = bookmarks.UserMessage(err)
		return true
	}
	c.successMsg = success
	if onSuccess != nil {
		onSuccess()
	}
	return true
}

// Submit saves the draft: an update in edit mode, a create otherwise. Failures keep
// the draft and mode; the returned error carries the user-facing message.
func (c *Controller) Submit(ctx context.Context) error {
	sess, form, err := c.begin()
	if err != nil {
		return err
	}

	var success string
	if form.EditingID != nil {
		err = c.crud.Update(ctx, sess, *form.EditingID, form.Title, form.URL)
		success = bookmarks.MsgUpdated
	} else {
		_, err = c.crud.Create(ctx, sess, form.Title, form.URL)
		success = bookmarks.MsgAdded
	}

	applied := c.finish(sess, err, success, func() {
		// A draft edited while the request was in flight targets something else now.
		if c.form.sameTarget(form) {
			c.form = Form{}
		}
	})
	if err != nil {
		return err
	}
	if applied {
		c.refresh(ctx, sess)
	}
	return nil
}

// Delete removes bookmark id.
func (c *Controller) Delete(ctx context.Context, id int64) error {
	sess, _, err := c.begin()
	if err != nil {
		return err
	}

	err = c.crud.Delete(ctx, sess, id)
	applied := c.finish(sess, err, bookmarks.MsgDeleted, func() {
		if c.form.EditingID != nil && *c.form.EditingID == id {
			c.form = Form{}
		}
	})
	if err != nil {
		return err
	}
	if applied {
		c.refresh(ctx, sess)
	}
	return nil
}

// Login starts the interactive login and returns the URL the user must open.
func (c *Controller) Login(ctx context.Context, provider string) (string, error) {
	if provider == "" {
		provider = c.provider
	}
	return c.sessions.SignInWithProvider(ctx, provider)
}

func (c *Controller) Logout(ctx context.Context) error {
	return c.sessions.SignOut(ctx)
}

// Import creates every valid entry of a Homepage bookmarks.yaml for the signed-in
// user. Entries failing validation are skipped; a backend failure stops the import.
func (c *Controller) Import(ctx context.Context, path string) (ImportResult, error) {
	var res ImportResult

	sess := c.currentSession()
	if sess == nil {
		return res, ErrNotSignedIn
	}

	config, err := homepage.NewLoader(path).Load()
	if err != nil {
		return res, err
	}

	for _, e := range homepage.Entries(config) {
		_, err := c.crud.Create(ctx, sess, e.Title, e.URL)
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			res.Skipped++
			c.logger.Debug("skipping bookmark", logger.String("title", e.Title), logger.String("reason", verr.Message))
		case err != nil:
			c.requestRefresh(sess.UserID)
			return res, fmt.Errorf("import stopped after %d bookmarks: %w", res.Imported, err)
		default:
			res.Imported++
		}
	}

	c.logger.Info("bookmarks imported",
		logger.String("user_id", sess.UserID),
		logger.Int("imported", res.Imported),
		logger.Int("skipped", res.Skipped))

	c.mu.Lock()
	if c.active(sess) {
		c.successMsg = fmt.Sprintf("Imported %d bookmarks.", res.Imported)
	}
	c.mu.Unlock()
	c.refresh(ctx, sess)
	return res, nil
}

// Close releases the live feed and stops background work. Results of operations
// still in flight are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	unregister := c.unregister
	c.mu.Unlock()

	c.cancel()
	if unregister != nil {
		unregister()
	}
	c.listener.Unsubscribe()
	c.wg.Wait()
	c.cache.Reset("")
}
