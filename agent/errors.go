// Package agent provides the conversation graph execution engine.
package agent

import "errors"

// ErrMaxStepsExceeded indicates that a single turn reached the maximum
// allowed step count without hitting a terminal step. This prevents
// routing loops from running away.
var ErrMaxStepsExceeded = errors.New("turn exceeded maximum steps limit")

// ErrNoUsableResponse indicates the chat model produced neither text nor a
// tool call after the configured number of retries. The assistant step's
// "ask again" loop is bounded; exhausting it fails the run instead of
// spinning forever.
var ErrNoUsableResponse = errors.New("no usable response from chat model")

// ErrNoCustomerID indicates an order-scoped tool was invoked without a
// customer identifier in the calling context. Continuing would attribute
// orders to nobody, so this is fatal configuration, not a tool error.
var ErrNoCustomerID = errors.New("no customer ID configured")

// EngineError represents an error from Engine operations.
type EngineError struct {
	Message string
	Code    string
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}
