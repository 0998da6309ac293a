// Package store provides persistence for conversation thread checkpoints.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested thread ID or checkpoint ID
// does not exist.
var ErrNotFound = errors.New("not found")

// Store persists conversation state per thread so execution can suspend
// and resume across user turns.
//
// It enables:
//   - Step-by-step state persistence during a turn
//   - Latest state retrieval when the next turn arrives
//   - Named checkpoint save/load for manual resumption points
//
// Checkpoints are keyed by thread identifier with no cross-thread
// sharing; implementations only need atomic per-key updates, no
// cross-key locking. Stale threads are never garbage-collected by the
// store itself.
//
// Implementations provided:
//   - MemStore: in-memory, for tests and short-lived processes
//   - SQLiteStore: single-file database, zero-setup local persistence
//   - MySQLStore: shared relational backend for multi-process deployments
//   - DynamoStore: serverless deployments on AWS
//
// Type parameter S is the state type to persist (must be
// JSON-serializable).
type Store[S any] interface {
	// SaveStep persists the state after a graph step.
	//
	// Parameters:
	//   - threadID: stable conversation identifier
	//   - step: sequential step number (1-indexed, continuing across turns)
	//   - stepName: name of the graph step that produced this state
	//   - state: the full conversation state after the step
	//
	// Saving the same (threadID, step) twice replaces the earlier record.
	SaveStep(ctx context.Context, threadID string, step int, stepName string, state S) error

	// LoadLatest retrieves the most recent state for a thread, with the
	// step number it was saved at. Returns ErrNotFound for an unknown
	// thread.
	LoadLatest(ctx context.Context, threadID string) (state S, step int, err error)

	// SaveCheckpoint creates a named snapshot of conversation state,
	// independent of the per-step history.
	SaveCheckpoint(ctx context.Context, cpID string, state S, step int) error

	// LoadCheckpoint retrieves a previously saved named checkpoint.
	// Returns ErrNotFound for an unknown checkpoint ID.
	LoadCheckpoint(ctx context.Context, cpID string) (state S, step int, err error)
}

// StepRecord represents a single persisted step in a thread's history.
// Used internally by Store implementations.
type StepRecord[S any] struct {
	// Step is the sequential step number (1-indexed).
	Step int

	// StepName identifies which graph step produced this state.
	StepName string

	// State is the conversation state after this step completed.
	State S
}

// Checkpoint represents a named snapshot of conversation state.
type Checkpoint[S any] struct {
	// ID is the unique checkpoint identifier.
	ID string

	// State is the snapshotted conversation state.
	State S

	// Step is the step number when this checkpoint was created.
	Step int
}
