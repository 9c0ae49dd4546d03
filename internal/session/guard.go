package session

import (
	"context"
	"sync"
)

// DefaultLoginPath is where Guard sends signed-out users.
const DefaultLoginPath = "/login"

// Navigator moves the client to another view.
type Navigator interface {
	Push(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

// Push calls f(path).
func (f NavigatorFunc) Push(path string) { f(path) }

// Router is a Navigator that remembers where it is and ignores pushes to
// the current location.
type Router struct {
	mu         sync.Mutex
	current    string
	onNavigate func(path string)
}

// NewRouter starts at initial and calls onNavigate for every real move.
func NewRouter(initial string, onNavigate func(path string)) *Router {
	return &Router{current: initial, onNavigate: onNavigate}
}

// Push navigates to path unless already there.
func (r *Router) Push(path string) {
	r.mu.Lock()
	if r.current == path {
		r.mu.Unlock()
		return
	}
	r.current = path
	r.mu.Unlock()

	if r.onNavigate != nil {
		r.onNavigate(path)
	}
}

// Current returns the current location.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

type guardKey struct {
	authenticated bool
	loading       bool
}

// Guard redirects to the login path once loading has finished without an
// authenticated user.
type Guard struct {
	auth      *Auth
	nav       Navigator
	loginPath string

	mu      sync.Mutex
	last    guardKey
	hasLast bool
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithLoginPath overrides DefaultLoginPath.
func WithLoginPath(path string) GuardOption {
	return func(g *Guard) {
		g.loginPath = path
	}
}

// NewGuard creates a guard over auth.
func NewGuard(auth *Auth, nav Navigator, opts ...GuardOption) *Guard {
	g := &Guard{
		auth:      auth,
		nav:       nav,
		loginPath: DefaultLoginPath,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate runs the redirect effect against the current state. The effect
// only fires when (authenticated, loading) differs from the last evaluation.
func (g *Guard) Evaluate() bool {
	state := g.auth.State()
	key := guardKey{authenticated: state.IsAuthenticated, loading: state.IsLoading}

	g.mu.Lock()
	changed := !g.hasLast || g.last != key
	g.last = key
	g.hasLast = true
	g.mu.Unlock()

	if changed && !key.loading && !key.authenticated {
		g.nav.Push(g.loginPath)
	}
	return shouldRender(state)
}

// ShouldRender reports whether protected content may be shown.
func (g *Guard) ShouldRender() bool {
	return shouldRender(g.auth.State())
}

// State returns the underlying gated state.
func (g *Guard) State() State {
	return g.auth.State()
}

// Start evaluates once and then after every auth change.
func (g *Guard) Start() (stop func()) {
	unsubscribe := g.auth.Subscribe(func(State) {
		g.Evaluate()
	})
	g.Evaluate()
	return unsubscribe
}

// Wait blocks until loading has finished or ctx is done.
func (g *Guard) Wait(ctx context.Context) (State, error) {
	changed := make(chan struct{}, 1)
	unsubscribe := g.auth.Subscribe(func(State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	for {
		state := g.auth.State()
		if !state.IsLoading {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return state, ctx.Err()
		case <-changed:
		}
	}
}

func shouldRender(state State) bool {
	return state.IsLoading || state.IsAuthenticated
}
