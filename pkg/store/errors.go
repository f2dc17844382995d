package store

import "errors"

// ErrNilReducer is returned by New when the reducer is nil.
// The store cannot transition state without one; fix the call site.
var ErrNilReducer = errors.New("keyhole: reducer must not be nil")

// ErrNilInitialState is returned by New when the initial state is nil.
// A store always holds a committed state; pass an empty State{} if the
// store starts with no data.
var ErrNilInitialState = errors.New("keyhole: initial state must not be nil")

// ErrReentrantDispatch is returned when Dispatch is called while another
// dispatch is in progress on the same goroutine, i.e. from within a reducer
// or an observer callback. The nested call is rejected; the outer dispatch
// continues unaffected.
//
// Applications should move follow-up dispatches out of reducers and
// callbacks, e.g. by queueing them to run after Dispatch returns.
var ErrReentrantDispatch = errors.New("keyhole: dispatch called during dispatch")

// ErrReadOnlyView is returned when a write is attempted through a tracking
// View. Views are read-only windows over a committed state snapshot; all
// state changes go through Dispatch.
var ErrReadOnlyView = errors.New("keyhole: tracking view is read-only")
