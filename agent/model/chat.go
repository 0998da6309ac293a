// Package model provides LLM integration adapters.
package model

import "context"

// ChatModel defines the interface for LLM chat providers.
//
// This interface abstracts the differences between providers
// (OpenAI, Anthropic, local models) providing a unified API for
// chat-based interactions.
//
// Implementations should:
//   - Handle provider-specific authentication
//   - Convert the standard Message format to the provider's format
//   - Parse provider responses back to the standard ChatOut format
//   - Respect context cancellation and timeouts
//   - Handle retries and rate limiting appropriately
//
// Example usage:
//
//	m := openai.NewChatModel(apiKey, "gpt-4o")
//	messages := []model.Message{
//	    {Role: model.RoleUser, Content: "Do you have wireless mice in stock?"},
//	}
//	out, err := m.Chat(ctx, messages, toolSpecs)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, call := range out.ToolCalls {
//	    fmt.Printf("Tool: %s, Input: %v\n", call.Name, call.Input)
//	}
type ChatModel interface {
	// Chat sends messages to the LLM and returns the response.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - messages: Conversation history (system, user, assistant, tool messages)
	//   - tools: Optional tool specifications the LLM can use (nil if no tools)
	//
	// Returns:
	//   - ChatOut: LLM response containing text and/or tool calls
	//   - error: Provider errors, network errors, or context cancellation
	//
	// The LLM may respond with:
	//   - Text only: direct answer to the user
	//   - Tool calls only: request to invoke external tools
	//   - Both: text explanation plus tool invocations
	Chat(ctx context.Context, messages []Message, tools []ToolSpec) (ChatOut, error)
}

// Message represents a single message in an LLM conversation.
//
// Messages are the fundamental unit of communication with LLM
// providers and the unit of persisted conversation history. JSON tags
// keep the serialized form stable across checkpoint backends.
//
// Typical conversation structure:
//   - System message (optional): sets context and behavior
//   - User messages: user input or questions
//   - Assistant messages: LLM responses, possibly with tool calls
//   - Tool messages: results of executed tool calls
type Message struct {
	// Role identifies the message sender.
	// Use the Role* constants for consistency.
	Role string `json:"role"`

	// Content contains the message text.
	// May be empty for assistant messages that only contain tool calls.
	Content string `json:"content"`

	// ToolCalls holds tool invocations requested by an assistant
	// message. Empty for every other role.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolName identifies which tool produced a tool-result message.
	ToolName string `json:"tool_name,omitempty"`

	// ToolCallID links a tool-result message back to the assistant
	// tool call that requested it. Required on RoleTool messages.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// Standard role constants for LLM conversations.
// These align with the conventions used by major LLM providers.
const (
	// RoleSystem indicates a system message that sets context or
	// instructions. System messages typically appear first.
	RoleSystem = "system"

	// RoleUser indicates a message from the human user.
	RoleUser = "user"

	// RoleAssistant indicates a response from the LLM.
	RoleAssistant = "assistant"

	// RoleTool indicates the result of an executed tool call.
	RoleTool = "tool"
)

// ToolSpec describes a tool that an LLM can call.
//
// The Schema field follows JSON Schema format and describes the
// expected input parameters.
//
// Example:
//
//	spec := model.ToolSpec{
//	    Name:        "check_product_quantity",
//	    Description: "Check how many units of a product are in stock",
//	    Schema: map[string]interface{}{
//	        "type": "object",
//	        "properties": map[string]interface{}{
//	            "product": map[string]interface{}{
//	                "type":        "string",
//	                "description": "Product name",
//	            },
//	        },
//	        "required": []string{"product"},
//	    },
//	}
type ToolSpec struct {
	// Name uniquely identifies the tool.
	// Must be a valid function name (alphanumeric + underscores).
	Name string

	// Description explains what the tool does.
	// The LLM uses this to decide when to call the tool.
	Description string

	// Schema defines the tool's input parameters using JSON Schema.
	// Optional for tools with no parameters.
	Schema map[string]interface{}
}

// ChatOut represents the output from an LLM chat completion.
//
// LLMs can respond with text only, tool calls only, or both.
type ChatOut struct {
	// Text contains the LLM's generated response.
	// May be empty if the LLM only wants to call tools.
	Text string

	// ToolCalls contains tools the LLM wants to invoke.
	// Empty if the LLM provided a direct text response.
	ToolCalls []ToolCall
}

// ToolCall represents a request from the LLM to invoke a specific tool.
//
// After the LLM requests tool calls, the application should:
//  1. Execute each tool with the provided Input
//  2. Collect the results
//  3. Send results back to the LLM as RoleTool messages carrying the
//     matching ID
type ToolCall struct {
	// ID is the provider-assigned identifier for this call.
	// Tool-result messages must echo it in ToolCallID.
	ID string `json:"id"`

	// Name identifies which tool to call.
	// Must match a ToolSpec.Name from the available tools.
	Name string `json:"name"`

	// Input contains the parameters for the tool call.
	// Structure matches the ToolSpec.Schema for this tool.
	// May be nil for tools that take no parameters.
	Input map[string]interface{} `json:"input,omitempty"`
}
