package store

// Action is a message requesting a state transition. Implementations are
// typically small tagged structs; Kind returns the discriminator the
// reducer matches on.
type Action interface {
	Kind() string
}

// Act is a generic tagged action for cases where defining a dedicated
// action type is not worth it (demos, wire adapters, tests).
type Act struct {
	Type    string
	Payload any
}

// Kind returns the action's type tag.
func (a Act) Kind() string { return a.Type }

// Reducer is a pure transition function from (state, action) to the next
// state. Returning the state it was given (same map reference) signals
// "no change" and suppresses the notification pass.
//
// A reducer must not mutate the state it receives; it builds the next
// state with State.With or by constructing a fresh map.
type Reducer func(State, Action) State
