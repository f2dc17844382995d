package store

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Store owns the current committed state and the observer registry.
// State transitions happen only through Dispatch; observers see state only
// through read-only tracking views.
type Store struct {
	reducer Reducer

	// stateMu protects state. Reads are frequent (every view creation),
	// writes happen once per committed dispatch.
	stateMu sync.RWMutex
	state   State

	// dispatchMu serializes whole dispatches, notification pass included.
	// dispatchGID holds the goroutine ID of the in-progress dispatch so a
	// nested call from a reducer or callback is rejected instead of
	// deadlocking.
	dispatchMu  sync.Mutex
	dispatchGID atomic.Uint64

	// subMu protects the observer list. Notification uses copy-before-
	// notify, so callbacks run without this lock held and may subscribe
	// or unsubscribe freely.
	subMu     sync.Mutex
	observers []*observer

	logger *slog.Logger
	instr  Instrumentation
}

// Option configures a Store at construction.
type Option func(*Store)

// WithLogger sets the logger used for recovered observer panics.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithInstrumentation installs per-dispatch observability hooks.
// See the telemetry package for a Prometheus/OpenTelemetry implementation.
func WithInstrumentation(instr Instrumentation) Option {
	return func(s *Store) {
		s.instr = instr
	}
}

// New creates a store with the given reducer and initial state.
// Fails with ErrNilReducer or ErrNilInitialState on invalid arguments.
func New(reducer Reducer, initial State, opts ...Option) (*Store, error) {
	if reducer == nil {
		return nil, ErrNilReducer
	}
	if initial == nil {
		return nil, ErrNilInitialState
	}

	s := &Store{
		reducer: reducer,
		state:   initial,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the current committed state. The returned map must be
// treated as read-only; use a tracking view for observed reads.
func (s *Store) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// Observe registers callback and returns a Subscription handle. The
// callback runs synchronously during Dispatch whenever a transition
// changes a key the subscription has read (or unconditionally until its
// first read pass). Callbacks must not call Dispatch.
func (s *Store) Observe(callback func()) *Subscription {
	obs := newObserver(callback, s.State())

	s.subMu.Lock()
	s.observers = append(s.observers, obs)
	n := len(s.observers)
	s.subMu.Unlock()

	if s.instr.OnObservers != nil {
		s.instr.OnObservers(n)
	}
	return &Subscription{store: s, obs: obs}
}

// Subscribe registers callback and returns an unsubscribe function.
// This is the minimal interface; Observe additionally hands back a
// Subscription for creating tracking views. A callback registered through
// Subscribe never reads through a view, so it is notified on every
// transition. Calling the returned function twice is a no-op.
func (s *Store) Subscribe(callback func()) func() {
	sub := s.Observe(callback)
	return sub.Cancel
}

// unsubscribe removes obs from the registry. Idempotent.
func (s *Store) unsubscribe(obs *observer) {
	if obs.removed.Swap(true) {
		return
	}

	s.subMu.Lock()
	for i, existing := range s.observers {
		if existing.id == obs.id {
			// Order matters for notification; shift rather than swap.
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			break
		}
	}
	n := len(s.observers)
	s.subMu.Unlock()

	if s.instr.OnObservers != nil {
		s.instr.OnObservers(n)
	}
}

// Dispatch applies action through the reducer and, if the state changed,
// runs the notification pass before returning. Dispatches are serialized
// across goroutines; a nested dispatch from a reducer or observer callback
// fails with ErrReentrantDispatch without disturbing the outer dispatch.
//
// A reducer panic is recovered: no state is committed, no observers run,
// and the panic is returned as an error. An observer callback panic is
// recovered and logged, the remaining observers in the pass still run, and
// the panics are joined into the returned error.
func (s *Store) Dispatch(action Action) error {
	gid := getGoroutineID()
	if s.dispatchGID.Load() == gid {
		return ErrReentrantDispatch
	}

	s.dispatchMu.Lock()
	s.dispatchGID.Store(gid)
	defer func() {
		s.dispatchGID.Store(0)
		s.dispatchMu.Unlock()
	}()

	start := time.Now()
	notified := 0
	err := func() (err error) {
		oldState := s.State()

		newState, err := s.reduce(oldState, action)
		if err != nil {
			return err
		}
		if sameReference(oldState, newState) {
			// Reducer reported no change; nothing to commit or deliver.
			return nil
		}

		s.stateMu.Lock()
		s.state = newState
		s.stateMu.Unlock()

		notified, err = s.notify(newState)
		return err
	}()

	if s.instr.OnDispatch != nil {
		s.instr.OnDispatch(action.Kind(), time.Since(start), notified, err)
	}
	return err
}

// reduce runs the reducer, converting a panic into an error so a broken
// reducer cannot leave the store half-committed.
func (s *Store) reduce(current State, action Action) (next State, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("keyhole: reducer panicked on %q: %v", action.Kind(), r)
		}
	}()
	return s.reducer(current, action), nil
}

// notify runs the change-detection pass for a committed transition.
// Observers are visited in subscription order; each one whose tracked keys
// changed since its last-seen state (or that has no tracked keys yet) gets
// its cycle reset and its callback invoked. Returns how many observers
// were notified.
func (s *Store) notify(newState State) (int, error) {
	// Copy before notify so callbacks can subscribe and unsubscribe
	// without holding subMu.
	s.subMu.Lock()
	pass := make([]*observer, len(s.observers))
	copy(pass, s.observers)
	s.subMu.Unlock()

	notified := 0
	var errs []error
	for _, obs := range pass {
		if obs.removed.Load() {
			continue
		}
		if !obs.interestedIn(newState) {
			continue
		}

		// Reset before the callback so keys it reads through a fresh
		// view land in the new cycle's tracked set.
		obs.beginCycle(newState)
		notified++

		if err := s.invoke(obs); err != nil {
			errs = append(errs, err)
		}
	}
	return notified, errors.Join(errs...)
}

// invoke runs one observer callback, recovering a panic so one misbehaving
// observer cannot block delivery to the rest of the pass.
func (s *Store) invoke(obs *observer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("keyhole: observer %d panicked: %v", obs.id, r)
			s.logger.Error("observer callback panicked",
				"observer", obs.id,
				"panic", r,
			)
		}
	}()
	obs.callback()
	return nil
}

// sameReference reports whether two states are the same map.
func sameReference(a, b State) bool {
	if len(a) != len(b) {
		return false
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return SameValue(a, b)
}
