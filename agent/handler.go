package agent

import "context"

// Handler is a named unit of processing in the conversation graph.
// It receives the full conversation state, performs its work (call the
// model, dispatch a tool, read or write the inventory store), and returns
// the updated state.
//
// Handlers are pure with respect to the engine: the engine owns
// persistence and routing, a handler only transforms state. A returned
// error aborts the run; recoverable failures (tool errors, domain
// validation) must instead be encoded into the state so the assistant can
// react to them.
//
// Type parameter S is the state type shared across the graph.
type Handler[S any] interface {
	// Run executes the step with the given context and state and returns
	// the updated state.
	Run(ctx context.Context, state S) (S, error)
}

// HandlerFunc is a function adapter that implements the Handler interface.
// It allows using plain functions as steps without creating custom types.
//
// Example:
//
//	greet := HandlerFunc[State](func(ctx context.Context, s State) (State, error) {
//	    s.Greeted = true
//	    return s, nil
//	})
type HandlerFunc[S any] func(ctx context.Context, state S) (S, error)

// Run implements the Handler interface for HandlerFunc.
func (f HandlerFunc[S]) Run(ctx context.Context, state S) (S, error) {
	return f(ctx, state)
}

// End is the step name a Router returns to terminate the turn instead
// of naming a successor step.
const End = ""

// Router computes the next step for a conditional edge by inspecting the
// current state (typically the tool-call name on the last message).
// Returning End terminates the turn.
//
// Routers must be deterministic and side-effect free. Returning an error
// marks a configuration problem (an unroutable state) and aborts the run;
// it is never surfaced to the model as a recoverable failure.
//
// Type parameter S is the state type to inspect.
type Router[S any] func(state S) (string, error)

// Reducer merges a turn's input into the state restored from the thread
// checkpoint. For conversation state this appends the new user message to
// the existing history; history is append-only and order-preserving.
//
// Reducers must be deterministic: given the same prev and input they
// always produce the same merged state.
type Reducer[S any] func(prev, input S) S
