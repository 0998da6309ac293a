package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemStore is an in-memory implementation of Store[S].
//
// Designed for:
//   - Testing and development
//   - Single-process assistants without durability requirements
//
// MemStore is thread-safe and supports concurrent access. State is
// deep-copied through a JSON round-trip on save and load so callers can
// never mutate a stored snapshot through shared maps or slices.
//
// Limitations:
//   - Data is lost when the process terminates
//   - Memory usage grows with conversation history
//
// Type parameter S is the state type to persist.
type MemStore[S any] struct {
	mu          sync.RWMutex
	steps       map[string][]StepRecord[S] // threadID -> step history
	checkpoints map[string]Checkpoint[S]   // checkpointID -> checkpoint
}

// NewMemStore creates a new in-memory store.
//
// Example:
//
//	st := store.NewMemStore[State]()
//	eng := agent.New(reducer, st, emitter, opts)
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{
		steps:       make(map[string][]StepRecord[S]),
		checkpoints: make(map[string]Checkpoint[S]),
	}
}

// deepCopy creates an independent copy of state using a JSON round-trip.
// Works for any JSON-serializable state; unexported fields and fields
// tagged json:"-" are intentionally dropped, matching what durable
// backends would persist.
func deepCopy[S any](state S) (S, error) {
	var copied S

	data, err := json.Marshal(state)
	if err != nil {
		return copied, fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := json.Unmarshal(data, &copied); err != nil {
		return copied, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return copied, nil
}

// SaveStep persists a step record, replacing any record with the same
// step number. Thread-safe for concurrent writes.
func (m *MemStore[S]) SaveStep(_ context.Context, threadID string, step int, stepName string, state S) error {
	copied, err := deepCopy(state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	records := m.steps[threadID]
	for i, record := range records {
		if record.Step == step {
			records[i] = StepRecord[S]{Step: step, StepName: stepName, State: copied}
			return nil
		}
	}

	m.steps[threadID] = append(records, StepRecord[S]{
		Step:     step,
		StepName: stepName,
		State:    copied,
	})
	return nil
}

// LoadLatest retrieves the record with the highest step number for a
// thread. Handles out-of-order step saves correctly.
func (m *MemStore[S]) LoadLatest(_ context.Context, threadID string) (state S, step int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, exists := m.steps[threadID]
	if !exists || len(records) == 0 {
		var zero S
		return zero, 0, ErrNotFound
	}

	latest := records[0]
	for _, record := range records[1:] {
		if record.Step > latest.Step {
			latest = record
		}
	}

	copied, err := deepCopy(latest.State)
	if err != nil {
		var zero S
		return zero, 0, err
	}
	return copied, latest.Step, nil
}

// SaveCheckpoint creates or overwrites a named checkpoint.
func (m *MemStore[S]) SaveCheckpoint(_ context.Context, cpID string, state S, step int) error {
	copied, err := deepCopy(state)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkpoints[cpID] = Checkpoint[S]{
		ID:    cpID,
		State: copied,
		Step:  step,
	}
	return nil
}

// LoadCheckpoint retrieves a named checkpoint.
func (m *MemStore[S]) LoadCheckpoint(_ context.Context, cpID string) (state S, step int, err error) {
	m.mu.RLock()
	cp, exists := m.checkpoints[cpID]
	m.mu.RUnlock()

	if !exists {
		var zero S
		return zero, 0, ErrNotFound
	}

	copied, err := deepCopy(cp.State)
	if err != nil {
		var zero S
		return zero, 0, err
	}
	return copied, cp.Step, nil
}
