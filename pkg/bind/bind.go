// Package bind connects a store to a render function.
//
// A Binding is the "re-render on notify" half of the tracking contract:
// it subscribes to the store, runs the render function with a fresh
// tracking view on every notification, and by doing so repopulates the
// tracked-key set for the next cycle. Host UI layers mount a Binding per
// component and close it on unmount.
package bind

import (
	"sync/atomic"

	"github.com/keyhole-dev/keyhole/pkg/store"
)

// RenderFunc renders from a tracking view. It must read every key it
// depends on through the view it is given; keys read elsewhere are not
// tracked and will not trigger re-renders.
type RenderFunc func(*store.View)

// Scheduler routes render execution. The default runs renders
// synchronously on the notifying goroutine.
type Scheduler interface {
	Schedule(fn func())
}

// SchedulerFunc adapts a function into a Scheduler.
type SchedulerFunc func(func())

// Schedule dispatches fn using the wrapped function.
func (f SchedulerFunc) Schedule(fn func()) {
	if f == nil || fn == nil {
		return
	}
	f(fn)
}

// DirectScheduler runs renders immediately in the caller goroutine.
var DirectScheduler Scheduler = SchedulerFunc(func(fn func()) { fn() })

// Binding ties one render function to one store subscription.
type Binding struct {
	sub    *store.Subscription
	render RenderFunc
	sched  Scheduler
	closed atomic.Bool

	renders atomic.Uint64
}

// Option configures a Binding.
type Option func(*Binding)

// WithScheduler routes render passes through sched, e.g. onto a UI
// thread. Nil is ignored.
func WithScheduler(sched Scheduler) Option {
	return func(b *Binding) {
		if sched != nil {
			b.sched = sched
		}
	}
}

// Bind subscribes render to st and runs the initial render pass
// synchronously so the tracked-key set is populated from the start.
func Bind(st *store.Store, render RenderFunc, opts ...Option) *Binding {
	b := &Binding{
		render: render,
		sched:  DirectScheduler,
	}
	for _, opt := range opts {
		opt(b)
	}

	b.sub = st.Observe(func() {
		b.sched.Schedule(b.renderPass)
	})
	b.renderPass()
	return b
}

// renderPass runs the render function over a fresh tracking view.
// The previous view is simply abandoned; views are snapshots and hold no
// resources.
func (b *Binding) renderPass() {
	if b.closed.Load() {
		return
	}
	b.renders.Add(1)
	b.render(b.sub.View())
}

// Renders returns how many render passes have run, the initial one
// included.
func (b *Binding) Renders() uint64 {
	return b.renders.Load()
}

// Close cancels the subscription and stops further renders. Idempotent.
func (b *Binding) Close() {
	if b.closed.Swap(true) {
		return
	}
	b.sub.Cancel()
}
