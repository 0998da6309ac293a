package emit

// Emitter receives and processes observability events from conversation
// graph execution.
//
// Emitters enable pluggable observability backends:
//   - Logging: stdout, files
//   - Distributed tracing: OpenTelemetry
//   - In-memory capture for tests and debugging
//
// Implementations should be:
//   - Non-blocking: avoid slowing down turn execution
//   - Thread-safe: may be called concurrently from multiple threads
//   - Resilient: handle failures gracefully without crashing the run
type Emitter interface {
	// Emit sends an observability event to the configured backend.
	//
	// Emit should not panic and should not block turn execution. Errors
	// must be handled internally (logged or dropped).
	Emit(event Event)
}
