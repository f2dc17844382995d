package store

import (
	"sync"
	"sync/atomic"
)

// observer is the registry record for one subscriber: its callback plus the
// tracked-key bookkeeping that drives selective notification.
type observer struct {
	id       uint64
	callback func()

	// mu protects tracked and lastState. Views append to tracked from
	// whatever goroutine the subscriber reads on.
	mu        sync.Mutex
	tracked   map[string]struct{}
	lastState State

	// removed flips once on unsubscribe. Checked during the notification
	// pass so an observer removed mid-pass is skipped, not crashed into.
	removed atomic.Bool
}

func newObserver(callback func(), current State) *observer {
	return &observer{
		id:        nextID(),
		callback:  callback,
		tracked:   make(map[string]struct{}),
		lastState: current,
	}
}

// record marks key as read since the last notification.
func (o *observer) record(key string) {
	o.mu.Lock()
	o.tracked[key] = struct{}{}
	o.mu.Unlock()
}

// interestedIn reports whether newState differs from the observer's
// last-seen state on any key it read. An observer that has not read
// anything yet is treated as interested in everything: a fresh subscriber
// must not silently miss updates before its first read pass.
func (o *observer) interestedIn(newState State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.tracked) == 0 {
		return true
	}
	for key := range o.tracked {
		if !SameValue(o.lastState[key], newState[key]) {
			return true
		}
	}
	return false
}

// beginCycle resets the tracked set for the next read pass and pins the
// state the observer is about to re-read. Called just before the callback
// runs, so keys read during the callback land in the fresh set.
func (o *observer) beginCycle(newState State) {
	o.mu.Lock()
	o.tracked = make(map[string]struct{})
	o.lastState = newState
	o.mu.Unlock()
}

// Subscription is the handle returned by Store.Observe. It creates
// tracking views tied to its observer and cancels the registration.
type Subscription struct {
	store *Store
	obs   *observer
}

// View returns a fresh read-only tracking view over the store's current
// committed state. Keys read through it are recorded for this
// subscription. Create one view per read pass and discard it afterwards;
// views do not see later transitions.
func (s *Subscription) View() *View {
	return &View{state: s.store.State(), obs: s.obs}
}

// Cancel removes the subscription. Safe to call more than once and safe to
// call from inside a notification callback; the observer is skipped for
// the remainder of the current pass.
func (s *Subscription) Cancel() {
	s.store.unsubscribe(s.obs)
}
