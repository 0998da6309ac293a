package tool

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/salesagent-go/agent/model"
)

func newTestRegistry(t *testing.T, tools ...Tool) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, tl := range tools {
		if err := r.Register(tl); err != nil {
			t.Fatalf("Register(%q) failed: %v", tl.Name(), err)
		}
	}
	return r
}

func TestRegistry(t *testing.T) {
	t.Run("rejects nil tool", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(nil); err == nil {
			t.Error("expected error for nil tool")
		}
	})

	t.Run("rejects empty name", func(t *testing.T) {
		r := NewRegistry()
		if err := r.Register(&MockTool{}); err == nil {
			t.Error("expected error for empty tool name")
		}
	})

	t.Run("rejects duplicate registration", func(t *testing.T) {
		r := newTestRegistry(t, &MockTool{ToolName: "lookup"})
		if err := r.Register(&MockTool{ToolName: "lookup"}); err == nil {
			t.Error("expected error for duplicate tool name")
		}
	})

	t.Run("Names returns sorted names", func(t *testing.T) {
		r := newTestRegistry(t,
			&MockTool{ToolName: "zeta"},
			&MockTool{ToolName: "alpha"},
		)
		names := r.Names()
		if len(names) != 2 || names[0] != "alpha" || names[1] != "zeta" {
			t.Errorf("Names() = %v, want [alpha zeta]", names)
		}
	})
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("success encodes output and correlates the call", func(t *testing.T) {
		mock := &MockTool{
			ToolName:  "lookup",
			Responses: []map[string]interface{}{{"answer": "yes"}},
		}
		d := NewDispatcher(newTestRegistry(t, mock), nil)

		msg, err := d.Dispatch(ctx, model.ToolCall{
			ID:    "call_1",
			Name:  "lookup",
			Input: map[string]interface{}{"q": "in stock?"},
		})
		if err != nil {
			t.Fatalf("Dispatch failed: %v", err)
		}

		if msg.Role != model.RoleTool {
			t.Errorf("Role = %q, want %q", msg.Role, model.RoleTool)
		}
		if msg.ToolCallID != "call_1" || msg.ToolName != "lookup" {
			t.Errorf("correlation fields wrong: %+v", msg)
		}

		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(msg.Content), &decoded); err != nil {
			t.Fatalf("content is not JSON: %v", err)
		}
		if decoded["answer"] != "yes" {
			t.Errorf("content = %q", msg.Content)
		}
		if mock.CallCount() != 1 {
			t.Errorf("tool called %d times, want 1", mock.CallCount())
		}
	})

	t.Run("tool error becomes a recoverable result message", func(t *testing.T) {
		mock := &MockTool{ToolName: "lookup", Err: errors.New("bad arguments")}
		var hookName string
		d := NewDispatcher(newTestRegistry(t, mock), func(name string, _ error) {
			hookName = name
		})

		msg, err := d.Dispatch(ctx, model.ToolCall{ID: "call_2", Name: "lookup"})
		if err != nil {
			t.Fatalf("Dispatch returned hard error for tool failure: %v", err)
		}

		if !strings.HasPrefix(msg.Content, "Error:") {
			t.Errorf("content should start with Error:, got %q", msg.Content)
		}
		if !strings.Contains(msg.Content, "please fix your mistakes") {
			t.Errorf("content missing retry instruction: %q", msg.Content)
		}
		if msg.ToolCallID != "call_2" {
			t.Errorf("ToolCallID = %q, want call_2", msg.ToolCallID)
		}
		if hookName != "lookup" {
			t.Errorf("error hook got %q, want lookup", hookName)
		}
	})

	t.Run("unregistered tool is a hard error", func(t *testing.T) {
		d := NewDispatcher(NewRegistry(), nil)
		if _, err := d.Dispatch(ctx, model.ToolCall{Name: "ghost"}); err == nil {
			t.Error("expected error for unregistered tool")
		}
	})
}

func TestDispatchAll(t *testing.T) {
	ctx := context.Background()

	t.Run("returns one result per call in order", func(t *testing.T) {
		first := &MockTool{ToolName: "first", Responses: []map[string]interface{}{{"n": 1.0}}}
		second := &MockTool{ToolName: "second", Err: errors.New("nope")}
		d := NewDispatcher(newTestRegistry(t, first, second), nil)

		results, err := d.DispatchAll(ctx, []model.ToolCall{
			{ID: "c1", Name: "first"},
			{ID: "c2", Name: "second"},
		})
		if err != nil {
			t.Fatalf("DispatchAll failed: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("got %d results, want 2", len(results))
		}
		if results[0].ToolCallID != "c1" || results[1].ToolCallID != "c2" {
			t.Errorf("results out of order: %+v", results)
		}
		if !strings.HasPrefix(results[1].Content, "Error:") {
			t.Errorf("second result should be recoverable error: %q", results[1].Content)
		}
	})

	t.Run("stops on unregistered tool", func(t *testing.T) {
		d := NewDispatcher(newTestRegistry(t, &MockTool{ToolName: "known"}), nil)
		_, err := d.DispatchAll(ctx, []model.ToolCall{
			{ID: "c1", Name: "known"},
			{ID: "c2", Name: "ghost"},
		})
		if err == nil {
			t.Error("expected error for unregistered tool")
		}
	})
}
