package anthropic

import (
	"context"
	"errors"
	"testing"

	"github.com/dshills/salesagent-go/agent/model"
)

// fakeClient records what reaches the underlying API call.
type fakeClient struct {
	systemPrompt string
	messages     []model.Message
	tools        []model.ToolSpec
	out          model.ChatOut
	err          error
}

func (f *fakeClient) createMessage(_ context.Context, systemPrompt string, messages []model.Message, tools []model.ToolSpec) (model.ChatOut, error) {
	f.systemPrompt = systemPrompt
	f.messages = messages
	f.tools = tools
	return f.out, f.err
}

func TestChat(t *testing.T) {
	ctx := context.Background()

	t.Run("lifts system messages out of the conversation", func(t *testing.T) {
		client := &fakeClient{out: model.ChatOut{Text: "hi"}}
		m := &ChatModel{modelName: "claude-sonnet-4-20250514", client: client}

		out, err := m.Chat(ctx, []model.Message{
			{Role: model.RoleSystem, Content: "You are a sales assistant."},
			{Role: model.RoleUser, Content: "hello"},
		}, nil)
		if err != nil {
			t.Fatalf("Chat failed: %v", err)
		}
		if out.Text != "hi" {
			t.Errorf("out = %+v", out)
		}
		if client.systemPrompt != "You are a sales assistant." {
			t.Errorf("systemPrompt = %q", client.systemPrompt)
		}
		if len(client.messages) != 1 || client.messages[0].Role != model.RoleUser {
			t.Errorf("conversation = %+v", client.messages)
		}
	})

	t.Run("errors surface", func(t *testing.T) {
		apiErr := errors.New("overloaded")
		m := &ChatModel{modelName: "claude-sonnet-4-20250514", client: &fakeClient{err: apiErr}}

		if _, err := m.Chat(ctx, nil, nil); !errors.Is(err, apiErr) {
			t.Fatalf("expected api error, got %v", err)
		}
	})

	t.Run("cancelled context stops immediately", func(t *testing.T) {
		client := &fakeClient{}
		m := &ChatModel{modelName: "claude-sonnet-4-20250514", client: client}

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		if _, err := m.Chat(cancelled, nil, nil); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if client.messages != nil {
			t.Error("client was called after cancellation")
		}
	})
}

func TestExtractSystemPrompt(t *testing.T) {
	t.Run("concatenates multiple system messages", func(t *testing.T) {
		system, conversation := extractSystemPrompt([]model.Message{
			{Role: model.RoleSystem, Content: "first"},
			{Role: model.RoleUser, Content: "hello"},
			{Role: model.RoleSystem, Content: "second"},
		})
		if system != "first\n\nsecond" {
			t.Errorf("system = %q", system)
		}
		if len(conversation) != 1 {
			t.Errorf("conversation = %+v", conversation)
		}
	})

	t.Run("no system messages", func(t *testing.T) {
		system, conversation := extractSystemPrompt([]model.Message{
			{Role: model.RoleUser, Content: "hello"},
		})
		if system != "" || len(conversation) != 1 {
			t.Errorf("system=%q conversation=%+v", system, conversation)
		}
	})
}

func TestNewChatModel(t *testing.T) {
	t.Run("empty model name uses default", func(t *testing.T) {
		m := NewChatModel("sk-ant-test", "")
		if m.modelName != "claude-sonnet-4-20250514" {
			t.Errorf("modelName = %q", m.modelName)
		}
	})
}
