package salesagent

import (
	"testing"

	"github.com/dshills/salesagent-go/agent/model"
)

func TestMergeTurn(t *testing.T) {
	t.Run("appends input messages to history", func(t *testing.T) {
		prev := State{
			Messages: []model.Message{
				{Role: model.RoleUser, Content: "hi"},
				{Role: model.RoleAssistant, Content: "hello"},
			},
			UserInfo: "cust-1",
		}
		input := State{
			Messages: []model.Message{{Role: model.RoleUser, Content: "order please"}},
			UserInfo: "cust-1",
		}

		merged := mergeTurn(prev, input)
		if len(merged.Messages) != 3 {
			t.Fatalf("got %d messages, want 3", len(merged.Messages))
		}
		if merged.Messages[2].Content != "order please" {
			t.Errorf("last message = %q", merged.Messages[2].Content)
		}
		// Appending must not alias the previous history.
		merged.Messages[0].Content = "mutated"
		if prev.Messages[0].Content != "hi" {
			t.Error("merge aliases the previous history slice")
		}
	})

	t.Run("empty input UserInfo keeps the previous identity", func(t *testing.T) {
		merged := mergeTurn(State{UserInfo: "cust-1"}, State{})
		if merged.UserInfo != "cust-1" {
			t.Errorf("UserInfo = %q, want cust-1", merged.UserInfo)
		}
	})

	t.Run("scratch never survives across turns", func(t *testing.T) {
		prev := State{
			ValidProducts:        map[string]string{"notebook": "yes"},
			ProductsAvailability: map[string]string{"notebook": "no"},
		}
		merged := mergeTurn(prev, State{})
		if merged.ValidProducts != nil || merged.ProductsAvailability != nil {
			t.Error("scratch maps leaked into the next turn")
		}
	})
}

func TestSetLastContent(t *testing.T) {
	st := stateWith(
		model.Message{Role: model.RoleUser, Content: "hi"},
		model.Message{Role: model.RoleTool, Content: "{}", ToolCallID: "c1"},
	)
	setLastContent(&st, `{"done":true}`)

	if st.Messages[1].Content != `{"done":true}` {
		t.Errorf("content = %q", st.Messages[1].Content)
	}
	if st.Messages[1].ToolCallID != "c1" {
		t.Error("rewrite lost the correlation ID")
	}
	if st.Messages[0].Content != "hi" {
		t.Error("rewrite touched an earlier message")
	}

	// No-op on empty state.
	empty := State{}
	setLastContent(&empty, "x")
}
