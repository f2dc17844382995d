package store

import "runtime"

// getGoroutineID returns a unique identifier for the current goroutine,
// parsed from the runtime stack header. Used only to distinguish a nested
// dispatch on the dispatching goroutine from a concurrent dispatch on
// another one. Implementation detail; never expose goroutine IDs.
func getGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The stack starts with "goroutine <id> ".
	var id uint64
	for i := 10; i < n; i++ { // skip "goroutine "
		if buf[i] == ' ' {
			break
		}
		id = id*10 + uint64(buf[i]-'0')
	}
	return id
}
