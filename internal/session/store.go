// Package session holds client-side authentication state and the readiness
// and redirect logic that sits between that state and protected views.
//
// Data flows one way: a Store owns the session, Auth gates reads from it
// until hydration, and Guard turns the gated state into a navigation to the
// login view.
package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// User is the signed-in account as seen by the client.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// State is a snapshot of the session.
type State struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
	Err             error
}

// Store is the contract Auth consumes.
type Store interface {
	State() State
	InitializeAuth(ctx context.Context)
	Subscribe(fn func(State)) (unsubscribe func())
}

// LoaderFunc resolves the current user. A nil user with a nil error means
// nobody is signed in.
type LoaderFunc func(ctx context.Context) (*User, error)

// Container is the default Store implementation.
type Container struct {
	mu          sync.Mutex
	state       State
	load        LoaderFunc
	subscribers map[int]func(State)
	nextID      int
	logger      zerolog.Logger
}

// NewContainer creates a store in the loading state.
func NewContainer(load LoaderFunc, logger zerolog.Logger) *Container {
	return &Container{
		state:       State{IsLoading: true},
		load:        load,
		subscribers: make(map[int]func(State)),
		logger:      logger.With().Str("component", "session_store").Logger(),
	}
}

// State returns the current snapshot.
func (c *Container) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InitializeAuth resolves the session through the loader. Loader errors are
// kept on the state as-is; they are not returned.
func (c *Container) InitializeAuth(ctx context.Context) {
	c.set(func(s *State) {
		s.IsLoading = true
		s.Err = nil
	})

	if c.load == nil {
		c.set(func(s *State) {
			*s = State{}
		})
		return
	}

	user, err := c.load(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Session loader failed")
	}

	c.set(func(s *State) {
		s.User = user
		s.IsAuthenticated = user != nil && err == nil
		if !s.IsAuthenticated {
			s.User = nil
		}
		s.IsLoading = false
		s.Err = err
	})
}

// SignIn marks the session authenticated as user.
func (c *Container) SignIn(user *User) {
	c.set(func(s *State) {
		*s = State{User: user, IsAuthenticated: user != nil}
	})
}

// SignOut clears the session.
func (c *Container) SignOut() {
	c.set(func(s *State) {
		*s = State{}
	})
}

// Subscribe registers fn for every state change. The returned func removes it.
func (c *Container) Subscribe(fn func(State)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subscribers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subscribers, id)
			c.mu.Unlock()
		})
	}
}

func (c *Container) set(mutate func(*State)) {
	c.mu.Lock()
	before := c.state
	mutate(&c.state)
	after := c.state
	if sameState(before, after) {
		c.mu.Unlock()
		return
	}
	fns := make([]func(State), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(after)
	}
}

func sameState(a, b State) bool {
	return a.User == b.User &&
		a.IsAuthenticated == b.IsAuthenticated &&
		a.IsLoading == b.IsLoading &&
		a.Err == b.Err
}
