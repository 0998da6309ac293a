package emit

import "sync"

// BufferedEmitter implements Emitter by storing events in memory, keyed
// by thread ID.
//
// Use cases:
//   - Tests that assert on the sequence of executed steps
//   - Development debugging of routing decisions
//   - Post-turn analysis
//
// Warning: all events are kept in memory. For long-lived deployments use
// LogEmitter or OTelEmitter instead, or Clear threads periodically.
//
// Example usage:
//
//	emitter := emit.NewBufferedEmitter()
//	eng := agent.New(reducer, st, emitter, opts)
//	eng.Run(ctx, "t-001", input)
//
//	for _, ev := range emitter.History("t-001") {
//	    fmt.Println(ev.Step, ev.StepName, ev.Msg)
//	}
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event // threadID -> events
}

// NewBufferedEmitter returns a BufferedEmitter safe for concurrent use.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores an event in the buffer.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[event.ThreadID] = append(b.events[event.ThreadID], event)
}

// History retrieves all events for a thread in emission order. Returns a
// copy; the caller may modify the result freely.
func (b *BufferedEmitter) History(threadID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[threadID]
	out := make([]Event, len(events))
	copy(out, events)
	return out
}

// StepNames returns the ordered step names recorded for a thread,
// restricted to step-completion events. Convenient for asserting routing
// order in tests.
func (b *BufferedEmitter) StepNames(threadID string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var names []string
	for _, ev := range b.events[threadID] {
		if ev.Msg == "step completed" {
			names = append(names, ev.StepName)
		}
	}
	return names
}

// Clear removes all buffered events for a thread. Clearing an unknown
// thread is a no-op.
func (b *BufferedEmitter) Clear(threadID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.events, threadID)
}
