// Package keyhole provides the public API for the keyhole observable
// store.
//
// This is the recommended import for most applications:
//
//	import "github.com/keyhole-dev/keyhole"
//
// Usage:
//
//	st, err := keyhole.New(reducer, keyhole.State{"counter": 0})
//	sub := st.Observe(onChange)
//	st.Dispatch(keyhole.Act{Type: "increment"})
//
// The core types live in pkg/store; this package re-exports them so
// libraries embedding keyhole can depend on the sub-packages directly
// while applications use one flat import.
package keyhole

import (
	"log/slog"

	"github.com/keyhole-dev/keyhole/pkg/store"
)

// State is the store's state value: a shallow key-to-value mapping
// treated as immutable.
type State = store.State

// Action is a message requesting a state transition.
type Action = store.Action

// Act is a generic tagged action.
type Act = store.Act

// Reducer is a pure transition function from (state, action) to the next
// state.
type Reducer = store.Reducer

// Store owns the current committed state and the observer registry.
type Store = store.Store

// Subscription is the handle returned by Store.Observe.
type Subscription = store.Subscription

// View is a short-lived read-only tracking window over a state snapshot.
type View = store.View

// Option configures a Store at construction.
type Option = store.Option

// Instrumentation carries optional per-dispatch observability hooks.
type Instrumentation = store.Instrumentation

// Sentinel errors returned by store operations.
var (
	ErrNilReducer        = store.ErrNilReducer
	ErrNilInitialState   = store.ErrNilInitialState
	ErrReentrantDispatch = store.ErrReentrantDispatch
	ErrReadOnlyView      = store.ErrReadOnlyView
)

// New creates a store with the given reducer and initial state.
func New(reducer Reducer, initial State, opts ...Option) (*Store, error) {
	return store.New(reducer, initial, opts...)
}

// WithLogger sets the logger used for recovered observer panics.
func WithLogger(logger *slog.Logger) Option {
	return store.WithLogger(logger)
}

// WithInstrumentation installs per-dispatch observability hooks.
func WithInstrumentation(instr Instrumentation) Option {
	return store.WithInstrumentation(instr)
}

// SameValue reports whether two top-level state values are the same under
// the store's shallow change-detection policy.
func SameValue(a, b any) bool {
	return store.SameValue(a, b)
}
