package store

// View is a short-lived read-only window over a state snapshot. Every key
// read through it is recorded into the owning subscription's tracked set,
// so the store can tell which transitions the subscriber cares about.
//
// A View pins the snapshot it was created over; it never observes later
// transitions. Obtain a fresh one per read pass via Subscription.View.
type View struct {
	state State
	obs   *observer // nil for untracked views
}

// NewUntrackedView returns a view over state that records nothing.
// Useful for code paths (serialization, debugging) that must read state
// without widening a subscription's tracked set.
func NewUntrackedView(state State) *View {
	return &View{state: state}
}

// Get returns the value under key and records the read.
func (v *View) Get(key string) any {
	if v.obs != nil {
		v.obs.record(key)
	}
	return v.state[key]
}

// Has reports whether key is present, recording the read.
func (v *View) Has(key string) bool {
	if v.obs != nil {
		v.obs.record(key)
	}
	_, ok := v.state[key]
	return ok
}

// Set always fails with ErrReadOnlyView. Views are read-only; state
// changes go through Store.Dispatch. The underlying state is untouched.
func (v *View) Set(key string, value any) error {
	return ErrReadOnlyView
}

// Delete always fails with ErrReadOnlyView.
func (v *View) Delete(key string) error {
	return ErrReadOnlyView
}

// Int returns the value under key as an int, recording the read.
// Returns 0 if the key is absent or holds a different type.
func (v *View) Int(key string) int {
	n, _ := v.Get(key).(int)
	return n
}

// Int64 returns the value under key as an int64, recording the read.
func (v *View) Int64(key string) int64 {
	n, _ := v.Get(key).(int64)
	return n
}

// Float64 returns the value under key as a float64, recording the read.
func (v *View) Float64(key string) float64 {
	f, _ := v.Get(key).(float64)
	return f
}

// String returns the value under key as a string, recording the read.
func (v *View) String(key string) string {
	s, _ := v.Get(key).(string)
	return s
}

// Bool returns the value under key as a bool, recording the read.
func (v *View) Bool(key string) bool {
	b, _ := v.Get(key).(bool)
	return b
}
