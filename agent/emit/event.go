// Package emit provides observability events for conversation graph
// execution.
package emit

// Event represents an observability event emitted during a conversation
// turn.
//
// Events provide insight into graph behavior:
//   - Step execution completion and failure
//   - Checkpoint operations
//   - Tool dispatch outcomes
//
// Events are emitted to an Emitter which can log to stdout, send spans to
// OpenTelemetry, or buffer for inspection in tests.
type Event struct {
	// ThreadID identifies the conversation thread that emitted this event.
	ThreadID string

	// Step is the sequential step number within the thread (1-indexed,
	// continuing across turns). Zero for thread-level events.
	Step int

	// StepName identifies which graph step emitted this event.
	// Empty string for thread-level events.
	StepName string

	// Msg is a human-readable description of the event.
	Msg string

	// Meta contains additional structured data specific to this event.
	// Common keys:
	//   - "error": error details
	//   - "tool": tool name for dispatch events
	//   - "checkpoint_id": checkpoint identifier
	Meta map[string]interface{}
}
