// Package store provides an observable state container with fine-grained
// change notification.
//
// A Store holds a single immutable State value and transitions it through
// a pure Reducer in response to dispatched Actions. Observers subscribe to
// the store and read state through short-lived tracking Views; each key read
// through a View is recorded, and on the next committed transition an
// observer is only notified if one of the keys it actually read changed.
//
// Usage:
//
//	st, err := store.New(reducer, store.State{"counter": 0})
//	sub := st.Observe(func() {
//	    v := sub.View()
//	    fmt.Println("counter is now", v.Int("counter"))
//	})
//	st.Dispatch(store.Act{Type: "increment"})
//
// # Tracking Model
//
// Tracking is shallow: only top-level keys are recorded, and change
// detection compares old and new values per key by identity (== for
// comparable kinds, reference identity for maps, slices, funcs and
// pointers), never by deep traversal. Reading v.Get("person") marks
// "person" as used; any transition that installs a new person value, even
// if structurally equal, counts as a change. This trades precision for
// predictability and is a deliberate limitation, not a bug.
//
// An observer that has not yet read any key (freshly subscribed, not yet
// rendered) is treated as interested in everything and is always notified.
//
// # Concurrency
//
// Dispatch calls are serialized; the notification pass for a transition
// completes before Dispatch returns. Nested dispatch from a reducer or an
// observer callback is rejected with ErrReentrantDispatch.
package store
