package emit

// NullEmitter implements Emitter by discarding all events.
//
// Use cases:
//   - Deployments where observability overhead is unwanted
//   - Tests that don't inspect events
//
// Example usage:
//
//	emitter := emit.NewNullEmitter()
//	eng := agent.New(reducer, st, emitter, opts)
type NullEmitter struct{}

// NewNullEmitter returns a NullEmitter that discards all events. It is
// safe for concurrent use and has zero overhead.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event without any processing.
func (n *NullEmitter) Emit(event Event) {
	// No-op: discard the event
}
