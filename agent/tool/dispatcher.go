package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dshills/salesagent-go/agent/model"
)

// ErrorHook is called whenever a dispatched tool returns an error.
// Used to wire tool failures into metrics without coupling the
// dispatcher to a metrics backend.
type ErrorHook func(toolName string, err error)

// Dispatcher executes assistant tool calls against a Registry and
// converts the results into tool-result messages.
//
// Tool execution errors are recoverable: instead of failing the turn,
// the dispatcher produces a tool-result message carrying the error text
// and an instruction to fix the mistake, so the assistant can retry
// with corrected arguments. Only an unregistered tool name is treated
// as a hard error, since it indicates a configuration bug rather than
// a bad model output.
type Dispatcher struct {
	registry *Registry
	onError  ErrorHook
}

// NewDispatcher creates a dispatcher over the given registry.
//
// The onError hook may be nil.
func NewDispatcher(registry *Registry, onError ErrorHook) *Dispatcher {
	return &Dispatcher{registry: registry, onError: onError}
}

// Dispatch executes a single tool call and returns the tool-result
// message to append to the conversation.
//
// The returned message always carries the call's ID and tool name so
// the model can correlate results with its requests.
//
// Returns an error only if the named tool is not registered.
func (d *Dispatcher) Dispatch(ctx context.Context, call model.ToolCall) (model.Message, error) {
	t, ok := d.registry.Get(call.Name)
	if !ok {
		return model.Message{}, fmt.Errorf("no tool registered with name %q", call.Name)
	}

	output, err := t.Call(ctx, call.Input)
	if err != nil {
		if d.onError != nil {
			d.onError(call.Name, err)
		}
		return errorResult(call, err), nil
	}

	content, err := json.Marshal(output)
	if err != nil {
		if d.onError != nil {
			d.onError(call.Name, err)
		}
		return errorResult(call, fmt.Errorf("failed to encode tool output: %w", err)), nil
	}

	return model.Message{
		Role:       model.RoleTool,
		Content:    string(content),
		ToolName:   call.Name,
		ToolCallID: call.ID,
	}, nil
}

// DispatchAll executes every call in order and returns one tool-result
// message per call. Stops early only on an unregistered tool.
func (d *Dispatcher) DispatchAll(ctx context.Context, calls []model.ToolCall) ([]model.Message, error) {
	results := make([]model.Message, 0, len(calls))
	for _, call := range calls {
		msg, err := d.Dispatch(ctx, call)
		if err != nil {
			return nil, err
		}
		results = append(results, msg)
	}
	return results, nil
}

// errorResult builds the recoverable-error tool result. The trailing
// instruction nudges the model to correct its arguments on the next
// attempt instead of repeating the same call.
func errorResult(call model.ToolCall, err error) model.Message {
	return model.Message{
		Role:       model.RoleTool,
		Content:    fmt.Sprintf("Error: %v\n please fix your mistakes.", err),
		ToolName:   call.Name,
		ToolCallID: call.ID,
	}
}
