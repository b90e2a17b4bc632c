package runner

// Event carries an event through the runner's queue
type Event[E comparable] struct {
	ID      E
	Payload any  // Action data, only used when Action is set
	Action  bool // Dispatch with OnAction instead of Trigger
}

// envelope wraps a queued event with an optional completion channel
type envelope[E comparable] struct {
	event Event[E]
	done  chan error
}
