package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/linkvault/internal/logger"
)

// ErrLoginAborted means the provider redirected back without a token.
var ErrLoginAborted = errors.New("login aborted")

// LoginFlow starts interactive, redirect-based logins.
type LoginFlow interface {
	Begin(ctx context.Context, provider string) (*Pending, error)
}

// Pending is a login waiting for the user to come back from the provider.
type Pending struct {
	// URL is where the user must be sent to authenticate.
	URL string

	token <-chan string
	abort func()
}

// NewPending returns a pending login and the function that completes it.
// Completing with an empty token aborts the login.
func NewPending(authorizeURL string, abort func()) (*Pending, func(token string)) {
	ch := make(chan string, 1)
	var once sync.Once
	complete := func(token string) {
		once.Do(func() {
			if token != "" {
				ch <- token
			}
			close(ch)
		})
	}
	if abort == nil {
		abort = func() {}
	}
	return &Pending{URL: authorizeURL, token: ch, abort: abort}, complete
}

// Wait blocks until the redirect delivers an access token.
func (p *Pending) Wait(ctx context.Context) (string, error) {
	select {
	case tok, ok := <-p.token:
		if !ok {
			return "", ErrLoginAborted
		}
		return tok, nil
	case <-ctx.Done():
		p.abort()
		return "", ctx.Err()
	}
}

// RedirectFlow sends the user to the identity provider's authorize endpoint and
// receives them back on CallbackPath with the access token.
type RedirectFlow struct {
	authorizeURL string
	callbackURL  string
	logger       logger.Logger

	mu      sync.Mutex
	pending map[string]func(token string)
}

// CallbackPath is where the identity provider redirects after login.
const CallbackPath = "/auth/callback"

func NewRedirectFlow(authorizeURL, publicURL string, log logger.Logger) *RedirectFlow {
	return &RedirectFlow{
		authorizeURL: authorizeURL,
		callbackURL:  strings.TrimRight(publicURL, "/") + CallbackPath,
		logger:       log.With(logger.String("component", "login-flow")),
		pending:      make(map[string]func(string)),
	}
}

func (f *RedirectFlow) Begin(_ context.Context, provider string) (*Pending, error) {
	u, err := url.Parse(f.authorizeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid authorize url: %w", err)
	}

	state := uuid.NewString()
	q := u.Query()
	q.Set("provider", provider)
	q.Set("redirect_to", f.callbackURL)
	q.Set("state", state)
	u.RawQuery = q.Encode()

	p, complete := NewPending(u.String(), func() { f.take(state) })

	f.mu.Lock()
	f.pending[state] = complete
	f.mu.Unlock()

	f.logger.Info("interactive login started", logger.String("provider", provider))
	return p, nil
}

// take removes and returns the completion for state.
func (f *RedirectFlow) take(state string) func(string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	complete, ok := f.pending[state]
	if !ok {
		return nil
	}
	delete(f.pending, state)
	return complete
}

// Callback handles the provider's redirect: ?state=...&access_token=... or ?state=...&error=...
func (f *RedirectFlow) Callback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		complete := f.take(q.Get("state"))
		if complete == nil {
			f.logger.Warn("login callback with unknown state")
			http.Error(w, "unknown or expired login", http.StatusBadRequest)
			return
		}

		token := q.Get("access_token")
		if token == "" {
			complete("")
			f.logger.Warn("login callback without token", logger.String("error", q.Get("error")))
			http.Error(w, "login was not completed", http.StatusBadRequest)
			return
		}

		complete(token)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write([]byte("✅ Signed in, you can close this tab.\n"))
	}
}
