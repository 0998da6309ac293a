package agent

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dshills/salesagent-go/agent/emit"
	"github.com/dshills/salesagent-go/agent/store"
)

// Engine orchestrates stateful conversation workflows with per-step
// checkpointing.
//
// The Engine is the core runtime that:
//   - Manages graph topology (steps, static edges, conditional edges)
//   - Restores a thread's state from its checkpoint at the start of a turn
//   - Executes steps sequentially, threading state through each handler
//   - Persists state after every step via the store
//   - Emits observability events via the emitter
//   - Enforces the per-turn MaxSteps limit
//
// A step with no outgoing static edge and no router is terminal: reaching
// it ends the turn and the final state is returned to the caller.
//
// Type parameter S is the state type shared across the graph.
//
// Example:
//
//	eng := agent.New(mergeTurn, store.NewMemStore[State](), emit.NewNullEmitter(), agent.Options{MaxSteps: 50})
//	eng.RegisterStep("assistant", assistantStep)
//	eng.RegisterStep("tools", toolStep)
//	eng.AddConditionalEdge("assistant", routeAssistant)
//	eng.AddStaticEdge("tools", "assistant")
//	eng.StartAt("assistant")
//
//	final, err := eng.Run(ctx, "thread-001", State{Messages: []model.Message{userMsg}})
type Engine[S any] struct {
	mu sync.RWMutex

	// reducer merges the turn input into the checkpointed state
	reducer Reducer[S]

	// steps maps step names to Handler implementations
	steps map[string]Handler[S]

	// static maps a step name to its unconditional successor
	static map[string]string

	// routers maps a step name to its conditional routing function
	routers map[string]Router[S]

	// entry is the step every turn starts at
	entry string

	// st persists thread state after every step
	st store.Store[S]

	// emitter receives observability events
	emitter emit.Emitter

	// opts contains execution configuration
	opts Options
}

// Options configures Engine execution behavior.
//
// Zero values are valid; the Engine will use sensible defaults.
type Options struct {
	// MaxSteps limits the number of steps executed per turn to prevent
	// routing loops. If 0, no limit is enforced (use with caution).
	MaxSteps int

	// Metrics, if non-nil, records step counts and latencies.
	Metrics *Metrics
}

// New creates a new Engine with the given configuration.
//
// Parameters:
//   - reducer: merges the turn input into checkpointed state (required)
//   - st: persistence backend for thread checkpoints (required)
//   - emitter: observability event receiver (optional, may be nil)
//   - opts: execution configuration
//
// The constructor does not validate parameters; validation occurs when
// Run is called, and graph shape is checked by Validate.
func New[S any](reducer Reducer[S], st store.Store[S], emitter emit.Emitter, opts Options) *Engine[S] {
	return &Engine[S]{
		reducer: reducer,
		steps:   make(map[string]Handler[S]),
		static:  make(map[string]string),
		routers: make(map[string]Router[S]),
		st:      st,
		emitter: emitter,
		opts:    opts,
	}
}

// RegisterStep registers a named step in the graph.
//
// Step names must be unique. Returns an error if the name is empty, the
// handler is nil, or the name is already registered.
func (e *Engine[S]) RegisterStep(name string, h Handler[S]) error {
	if name == "" {
		return &EngineError{Message: "step name cannot be empty"}
	}
	if h == nil {
		return &EngineError{Message: "handler cannot be nil"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.steps[name]; exists {
		return &EngineError{
			Message: "duplicate step name: " + name,
			Code:    "DUPLICATE_STEP",
		}
	}

	e.steps[name] = h
	return nil
}

// AddStaticEdge creates an unconditional transition between two steps.
//
// A step can have either one static edge or one router, never both.
// Endpoint existence is checked by Validate, not here, so graphs can be
// assembled in any order.
func (e *Engine[S]) AddStaticEdge(from, to string) error {
	if from == "" || to == "" {
		return &EngineError{Message: "edge endpoints cannot be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.routers[from]; exists {
		return &EngineError{
			Message: "step already has a conditional edge: " + from,
			Code:    "CONFLICTING_EDGE",
		}
	}
	if _, exists := e.static[from]; exists {
		return &EngineError{
			Message: "step already has a static edge: " + from,
			Code:    "CONFLICTING_EDGE",
		}
	}

	e.static[from] = to
	return nil
}

// AddConditionalEdge binds a router to a step. After the step runs, the
// router inspects the updated state and names the next step.
func (e *Engine[S]) AddConditionalEdge(from string, router Router[S]) error {
	if from == "" {
		return &EngineError{Message: "edge source cannot be empty"}
	}
	if router == nil {
		return &EngineError{Message: "router cannot be nil"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.static[from]; exists {
		return &EngineError{
			Message: "step already has a static edge: " + from,
			Code:    "CONFLICTING_EDGE",
		}
	}
	if _, exists := e.routers[from]; exists {
		return &EngineError{
			Message: "step already has a conditional edge: " + from,
			Code:    "CONFLICTING_EDGE",
		}
	}

	e.routers[from] = router
	return nil
}

// StartAt sets the entry step executed first on every turn.
func (e *Engine[S]) StartAt(name string) error {
	if name == "" {
		return &EngineError{Message: "entry step name cannot be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.steps[name]; !exists {
		return &EngineError{
			Message: "entry step does not exist: " + name,
			Code:    "STEP_NOT_FOUND",
		}
	}

	e.entry = name
	return nil
}

// Validate checks the graph shape before any turn runs.
//
// It verifies that:
//   - an entry step is set and registered
//   - every static edge connects two registered steps
//   - every router is bound to a registered step
//
// Misconfiguration is fatal at build time; a graph that passes Validate
// cannot fail routing lookups for static edges at run time. Router return
// values are necessarily checked during execution, since routers are
// opaque functions.
func (e *Engine[S]) Validate() error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.entry == "" {
		return &EngineError{
			Message: "entry step not set (call StartAt before Run)",
			Code:    "NO_ENTRY_STEP",
		}
	}
	if _, exists := e.steps[e.entry]; !exists {
		return &EngineError{
			Message: "entry step does not exist: " + e.entry,
			Code:    "STEP_NOT_FOUND",
		}
	}

	for from, to := range e.static {
		if _, exists := e.steps[from]; !exists {
			return &EngineError{
				Message: "edge source is not a registered step: " + from,
				Code:    "STEP_NOT_FOUND",
			}
		}
		if _, exists := e.steps[to]; !exists {
			return &EngineError{
				Message: "edge target is not a registered step: " + to,
				Code:    "STEP_NOT_FOUND",
			}
		}
	}

	for from := range e.routers {
		if _, exists := e.steps[from]; !exists {
			return &EngineError{
				Message: "router source is not a registered step: " + from,
				Code:    "STEP_NOT_FOUND",
			}
		}
	}

	return nil
}

// Run executes one conversation turn for a thread.
//
// Turn execution:
//  1. Validates engine configuration and graph shape
//  2. Restores the thread's latest checkpointed state (zero state for a
//     new thread)
//  3. Merges the turn input via the reducer
//  4. Executes steps starting at the entry step
//  5. Persists state after every step; step numbers continue across turns
//  6. Follows static edges, then routers; a step with neither is terminal
//  7. Enforces the per-turn MaxSteps limit and context cancellation
//
// Parameters:
//   - ctx: context for cancellation
//   - threadID: stable conversation identifier supplied by the caller
//   - input: the turn's contribution to state (e.g. the new user message)
//
// Returns the final state after the terminal step, or an error if
// configuration is invalid, a handler fails, or persistence fails.
func (e *Engine[S]) Run(ctx context.Context, threadID string, input S) (S, error) {
	var zero S

	if e.reducer == nil {
		return zero, &EngineError{
			Message: "reducer is required",
			Code:    "MISSING_REDUCER",
		}
	}
	if e.st == nil {
		return zero, &EngineError{
			Message: "store is required",
			Code:    "MISSING_STORE",
		}
	}
	if threadID == "" {
		return zero, &EngineError{
			Message: "thread ID cannot be empty",
			Code:    "MISSING_THREAD_ID",
		}
	}
	if err := e.Validate(); err != nil {
		return zero, err
	}

	// Restore the thread's checkpoint. A brand-new thread has none.
	prev, lastSeq, err := e.st.LoadLatest(ctx, threadID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return zero, &EngineError{
			Message: "failed to load thread checkpoint: " + err.Error(),
			Code:    "STORE_ERROR",
		}
	}

	state := e.reducer(prev, input)
	current := e.entry
	seq := lastSeq
	turnSteps := 0

	if e.opts.Metrics != nil {
		e.opts.Metrics.RunStarted()
	}

	for {
		turnSteps++
		seq++

		if e.opts.MaxSteps > 0 && turnSteps > e.opts.MaxSteps {
			return zero, ErrMaxStepsExceeded
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		default:
		}

		e.mu.RLock()
		handler, exists := e.steps[current]
		e.mu.RUnlock()

		if !exists {
			return zero, &EngineError{
				Message: "step not found during execution: " + current,
				Code:    "STEP_NOT_FOUND",
			}
		}

		started := time.Now()
		next, err := handler.Run(ctx, state)
		if e.opts.Metrics != nil {
			e.opts.Metrics.ObserveStep(current, err, time.Since(started))
		}
		if err != nil {
			e.emit(emit.Event{
				ThreadID: threadID,
				Step:     seq,
				StepName: current,
				Msg:      "step failed",
				Meta:     map[string]interface{}{"error": err.Error()},
			})
			return zero, err
		}
		state = next

		if err := e.st.SaveStep(ctx, threadID, seq, current, state); err != nil {
			return zero, &EngineError{
				Message: "failed to save step: " + err.Error(),
				Code:    "STORE_ERROR",
			}
		}

		e.emit(emit.Event{
			ThreadID: threadID,
			Step:     seq,
			StepName: current,
			Msg:      "step completed",
		})

		nextStep, terminal, err := e.route(current, state)
		if err != nil {
			return zero, err
		}
		if terminal {
			return state, nil
		}
		current = nextStep
	}
}

// route determines the step following from, or reports that from is
// terminal. Static edges win over routers by construction (a step can
// only have one of the two).
func (e *Engine[S]) route(from string, state S) (next string, terminal bool, err error) {
	e.mu.RLock()
	to, hasStatic := e.static[from]
	router, hasRouter := e.routers[from]
	e.mu.RUnlock()

	if hasStatic {
		return to, false, nil
	}
	if !hasRouter {
		return "", true, nil
	}

	to, err = router(state)
	if err != nil {
		return "", false, &EngineError{
			Message: "router failed for step " + from + ": " + err.Error(),
			Code:    "ROUTE_ERROR",
		}
	}
	if to == End {
		return "", true, nil
	}

	e.mu.RLock()
	_, exists := e.steps[to]
	e.mu.RUnlock()
	if !exists {
		return "", false, &EngineError{
			Message: "router selected unregistered step: " + to,
			Code:    "STEP_NOT_FOUND",
		}
	}

	return to, false, nil
}

// SaveCheckpoint creates a named checkpoint for the most recent state of a
// thread. Named checkpoints mark resumption points independent of the
// per-step history (e.g. "before-migration").
func (e *Engine[S]) SaveCheckpoint(ctx context.Context, threadID, cpID string) error {
	latest, seq, err := e.st.LoadLatest(ctx, threadID)
	if err != nil {
		return &EngineError{
			Message: "cannot create checkpoint: thread state not found: " + err.Error(),
			Code:    "THREAD_NOT_FOUND",
		}
	}

	if err := e.st.SaveCheckpoint(ctx, cpID, latest, seq); err != nil {
		return &EngineError{
			Message: "failed to save checkpoint: " + err.Error(),
			Code:    "CHECKPOINT_SAVE_FAILED",
		}
	}

	e.emit(emit.Event{
		ThreadID: threadID,
		Step:     seq,
		Msg:      "checkpoint saved: " + cpID,
		Meta:     map[string]interface{}{"checkpoint_id": cpID},
	})
	return nil
}

// RestoreCheckpoint copies a named checkpoint into a thread so the next
// turn resumes from that snapshot.
func (e *Engine[S]) RestoreCheckpoint(ctx context.Context, cpID, threadID string) error {
	state, seq, err := e.st.LoadCheckpoint(ctx, cpID)
	if err != nil {
		return &EngineError{
			Message: "cannot restore: checkpoint not found: " + err.Error(),
			Code:    "CHECKPOINT_NOT_FOUND",
		}
	}

	if err := e.st.SaveStep(ctx, threadID, seq, e.entry, state); err != nil {
		return &EngineError{
			Message: "failed to restore checkpoint: " + err.Error(),
			Code:    "STORE_ERROR",
		}
	}
	return nil
}

func (e *Engine[S]) emit(ev emit.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}
