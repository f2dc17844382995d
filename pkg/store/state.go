package store

import "reflect"

// State is the store's state value: a shallow mapping from key to value.
// States are treated as immutable; reducers derive new states with With
// and never modify a map they were handed.
type State map[string]any

// With returns a copy of s with key set to value. The receiver is not
// modified.
func (s State) With(key string, value any) State {
	next := make(State, len(s)+1)
	for k, v := range s {
		next[k] = v
	}
	next[key] = value
	return next
}

// Without returns a copy of s with key removed. The receiver is not
// modified.
func (s State) Without(key string) State {
	next := make(State, len(s))
	for k, v := range s {
		if k != key {
			next[k] = v
		}
	}
	return next
}

// SameValue reports whether two top-level state values are the same under
// the store's change-detection policy. Comparable kinds compare with ==; maps,
// slices, funcs, channels and pointers compare by reference identity.
// There is deliberately no deep comparison: a reducer that installs a new
// nested value is reporting a change, even if the new value is
// structurally equal to the old one.
func SameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	va := reflect.ValueOf(a)
	vb := reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Map, reflect.Func, reflect.Chan, reflect.Pointer, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		// Identity of the backing array plus length. Two slices over the
		// same array with the same length read the same data.
		return va.Len() == vb.Len() && va.Pointer() == vb.Pointer()
	default:
		if va.Type().Comparable() {
			return a == b
		}
		// Uncomparable non-reference kind (e.g. struct containing a
		// slice). Treat as changed; reducers producing these should use
		// pointer values instead.
		return false
	}
}
