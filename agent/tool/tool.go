// Package tool provides the executable tool abstraction and the
// dispatcher that routes assistant tool calls to registered tools.
package tool

import "context"

// Tool defines the interface for executable tools that the assistant
// model can invoke.
//
// Tools enable the assistant to interact with external systems and
// perform actions:
//   - Inventory lookups
//   - Order placement and status queries
//   - Product recommendations
//   - Escalation to a human employee
//
// Implementations should:
//   - Validate input parameters
//   - Respect context cancellation and timeouts
//   - Return structured output as map[string]interface{}
//   - Return descriptive errors; the dispatcher converts them into
//     tool-result messages the assistant can recover from
//
// Example implementation:
//
//	type PingTool struct{}
//
//	func (p *PingTool) Name() string {
//	    return "ping"
//	}
//
//	func (p *PingTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
//	    return map[string]interface{}{"pong": true}, nil
//	}
type Tool interface {
	// Name returns the unique identifier for this tool.
	//
	// The name must match the tool name in the ToolSpec presented to
	// the model. Names should be lowercase with underscores.
	//
	// Examples: "create_order", "check_order_status"
	Name() string

	// Call executes the tool with the provided input and returns the result.
	//
	// Parameters:
	//   - ctx: Context for cancellation, timeout, and metadata propagation
	//   - input: Tool parameters as key-value pairs (may be nil for
	//     parameterless tools)
	//
	// Returns:
	//   - map[string]interface{}: Tool execution result
	//   - error: Execution errors, validation errors, or context cancellation
	//
	// The input structure should match the Schema defined in the
	// corresponding ToolSpec.
	Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error)
}
