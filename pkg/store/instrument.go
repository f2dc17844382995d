package store

import "time"

// Instrumentation carries optional observability hooks, installed with
// WithInstrumentation. Nil funcs are skipped. Hooks run synchronously on
// the dispatching goroutine and must be fast and non-blocking; they must
// not call back into the store.
type Instrumentation struct {
	// OnDispatch runs after every Dispatch, including no-ops and
	// failures. notified is the number of observers whose callback ran.
	OnDispatch func(kind string, duration time.Duration, notified int, err error)

	// OnObservers runs after every subscribe/unsubscribe with the new
	// registry size.
	OnObservers func(count int)
}
