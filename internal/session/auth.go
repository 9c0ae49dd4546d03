package session

import (
	"context"
	"sync"
)

// Auth wraps a Store with a readiness flag. Until Hydrate runs, every read
// reports a signed-out, loading session no matter what the store holds.
type Auth struct {
	store Store

	mu          sync.Mutex
	hydrated    bool
	subscribers map[int]func(State)
	nextID      int

	initOnce    sync.Once
	unsubscribe func()
}

// NewAuth attaches to store. Call Close when the consumer goes away.
func NewAuth(store Store) *Auth {
	a := &Auth{
		store:       store,
		subscribers: make(map[int]func(State)),
	}
	a.unsubscribe = store.Subscribe(func(State) {
		if a.Hydrated() {
			a.notify()
		}
	})
	return a
}

// State returns the gated session snapshot.
func (a *Auth) State() State {
	if !a.Hydrated() {
		return State{IsLoading: true}
	}
	return a.store.State()
}

// Hydrated reports whether Hydrate has run.
func (a *Auth) Hydrated() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hydrated
}

// Hydrate opens the gate and starts store initialization. Only the first
// call has any effect.
func (a *Auth) Hydrate(ctx context.Context) {
	a.initOnce.Do(func() {
		a.mu.Lock()
		a.hydrated = true
		a.mu.Unlock()

		a.notify()
		a.store.InitializeAuth(ctx)
	})
}

// Subscribe registers fn for every change of the gated state.
func (a *Auth) Subscribe(fn func(State)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.subscribers[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.subscribers, id)
		a.mu.Unlock()
	}
}

// Close detaches from the store.
func (a *Auth) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

func (a *Auth) notify() {
	a.mu.Lock()
	fns := make([]func(State), 0, len(a.subscribers))
	for _, fn := range a.subscribers {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	state := a.State()
	for _, fn := range fns {
		fn(state)
	}
}
