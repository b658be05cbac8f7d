package container

// Action is anything dispatched to a Store.
type Action interface {
	Type() string
}

// Simple is an Action identified by a type string, with an optional payload.
type Simple struct {
	Name    string
	Payload any
}

// Type implements Action.
func (a Simple) Type() string { return a.Name }

// Reducer computes the next state from the current one and an action.
// It receives a nil state the first time it runs and must return its
// initial state then.
type Reducer func(state any, action Action) any

// InitType is the type of the action every Store dispatches on creation.
const InitType = "@@container/INIT"

// Init is dispatched once when a Store is created so reducers can produce
// their initial state.
var Init Action = Simple{Name: InitType}
