// Package salesagent assembles the virtual sales assistant: the
// conversation state, tools, graph steps and routing that sit on top
// of the agent engine and the inventory store.
package salesagent

import (
	"github.com/dshills/salesagent-go/agent/model"
)

// State is the conversation state threaded through the graph and
// persisted to the thread checkpoint after every step.
//
// Messages is append-only and order-preserving: steps add messages,
// they never reorder or drop earlier ones. The only in-place edit is
// a domain step rewriting the content of the tool-result message it
// is processing, which mirrors how the tool payloads flow.
//
// ValidProducts and ProductsAvailability are per-run scratch consumed
// by the next routing decision; they are excluded from persisted
// history.
type State struct {
	// Messages is the full conversation history.
	Messages []model.Message `json:"messages"`

	// UserInfo identifies the customer this thread belongs to. Set by
	// the caller on every turn.
	UserInfo string `json:"user_info,omitempty"`

	// ValidProducts maps lower-cased product names from an order
	// request to "yes"/"no" catalog existence.
	ValidProducts map[string]string `json:"-"`

	// ProductsAvailability maps lower-cased product names to "yes"/"no"
	// stock sufficiency, recorded when an order fails on stock.
	ProductsAvailability map[string]string `json:"-"`
}

// mergeTurn is the engine reducer: it appends the turn's new messages
// to the checkpointed history and refreshes the customer identity.
func mergeTurn(prev, input State) State {
	merged := prev
	merged.Messages = append(append([]model.Message{}, prev.Messages...), input.Messages...)
	if input.UserInfo != "" {
		merged.UserInfo = input.UserInfo
	}
	// Scratch never survives across turns.
	merged.ValidProducts = nil
	merged.ProductsAvailability = nil
	return merged
}

// lastMessage returns the most recent message, or false for an empty
// history.
func lastMessage(s State) (model.Message, bool) {
	if len(s.Messages) == 0 {
		return model.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// setLastContent rewrites the content of the most recent message.
// Domain steps use this to replace a tool request payload with the
// tool's result.
func setLastContent(s *State, content string) {
	if len(s.Messages) > 0 {
		s.Messages[len(s.Messages)-1].Content = content
	}
}
