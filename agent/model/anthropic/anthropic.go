// Package anthropic adapts the Anthropic Messages API to the
// model.ChatModel interface.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dshills/salesagent-go/agent/model"
)

const defaultMaxTokens = 4096

// ChatModel implements model.ChatModel for Anthropic's Claude API.
//
// Provides access to Claude models with:
//   - Tool/function calling support
//   - Context cancellation
//   - System prompt extraction (Anthropic uses a separate system
//     parameter)
//
// Example usage:
//
//	apiKey := os.Getenv("ANTHROPIC_API_KEY")
//	m := anthropic.NewChatModel(apiKey, "claude-sonnet-4-20250514")
//
//	out, err := m.Chat(ctx, messages, toolSpecs)
//	if err != nil {
//	    log.Fatal(err)
//	}
type ChatModel struct {
	modelName string
	client    messageClient
}

// messageClient defines the interface for the underlying API call.
// This allows for easy mocking in tests.
type messageClient interface {
	createMessage(ctx context.Context, systemPrompt string, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error)
}

// NewChatModel creates a new Anthropic ChatModel.
//
// Parameters:
//   - apiKey: Anthropic API key (get from https://console.anthropic.com/)
//   - modelName: Model to use. Empty string uses a default.
func NewChatModel(apiKey, modelName string) *ChatModel {
	if modelName == "" {
		modelName = "claude-sonnet-4-20250514"
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	return &ChatModel{
		modelName: modelName,
		client:    &sdkClient{client: &client, modelName: modelName, apiKey: apiKey},
	}
}

// Chat implements the model.ChatModel interface.
//
// Sends messages to Anthropic's API and returns the response. System
// messages are lifted out of the conversation and passed as the
// system parameter, matching what the API expects.
func (m *ChatModel) Chat(ctx context.Context, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if ctx.Err() != nil {
		return model.ChatOut{}, ctx.Err()
	}

	systemPrompt, conversation := extractSystemPrompt(messages)

	return m.client.createMessage(ctx, systemPrompt, conversation, tools)
}

// extractSystemPrompt separates system messages from conversation
// messages. Multiple system messages are concatenated.
func extractSystemPrompt(messages []model.Message) (string, []model.Message) {
	var systemPrompt string
	var conversation []model.Message

	for _, msg := range messages {
		if msg.Role == model.RoleSystem {
			if systemPrompt != "" {
				systemPrompt += "\n\n"
			}
			systemPrompt += msg.Content
		} else {
			conversation = append(conversation, msg)
		}
	}

	return systemPrompt, conversation
}

// sdkClient wraps the official anthropic-sdk-go client.
type sdkClient struct {
	client    *anthropic.Client
	modelName string
	apiKey    string
}

func (c *sdkClient) createMessage(ctx context.Context, systemPrompt string, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	if c.apiKey == "" {
		return model.ChatOut{}, errors.New("Anthropic API key is required")
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelName),
		MaxTokens: defaultMaxTokens,
		Messages:  convertMessages(messages),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if len(tools) > 0 {
		params.Tools = convertTools(tools)
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return model.ChatOut{}, err
	}

	return convertResponse(message), nil
}

// convertMessages maps the common message format to Anthropic message
// params. Tool results become tool_result content blocks on user
// messages; assistant tool calls become tool_use blocks.
func convertMessages(messages []model.Message) []anthropic.MessageParam {
	converted := make([]anthropic.MessageParam, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleUser:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))

		case model.RoleAssistant:
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				input := call.Input
				if input == nil {
					input = map[string]interface{}{}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
			}
			converted = append(converted, anthropic.NewAssistantMessage(blocks...))

		case model.RoleTool:
			result := anthropic.ToolResultBlockParam{
				ToolUseID: msg.ToolCallID,
				Content: []anthropic.ToolResultBlockParamContentUnion{
					{OfText: &anthropic.TextBlockParam{Text: msg.Content}},
				},
			}
			converted = append(converted, anthropic.NewUserMessage(
				anthropic.ContentBlockParamUnion{OfToolResult: &result},
			))
		}
	}

	return converted
}

// convertTools maps tool specs to Anthropic tool params. The schema's
// properties and required list carry over; everything else in the
// schema is implied by the fixed object type.
func convertTools(tools []model.ToolSpec) []anthropic.ToolUnionParam {
	converted := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, spec := range tools {
		schema := anthropic.ToolInputSchemaParam{}
		if spec.Schema != nil {
			schema.Properties = spec.Schema["properties"]
			if required, ok := spec.Schema["required"].([]string); ok {
				schema.Required = required
			}
		}
		converted = append(converted, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        spec.Name,
				Description: anthropic.String(spec.Description),
				InputSchema: schema,
			},
		})
	}
	return converted
}

// convertResponse maps an Anthropic message back to the common output
// format.
func convertResponse(message *anthropic.Message) model.ChatOut {
	var out model.ChatOut

	for _, block := range message.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Text += variant.Text
		case anthropic.ToolUseBlock:
			input := map[string]interface{}{}
			if len(variant.Input) > 0 {
				_ = json.Unmarshal(variant.Input, &input)
			}
			out.ToolCalls = append(out.ToolCalls, model.ToolCall{
				ID:    variant.ID,
				Name:  variant.Name,
				Input: input,
			})
		}
	}

	return out
}
