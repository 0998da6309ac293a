package salesagent

import (
	"testing"

	"github.com/dshills/salesagent-go/agent"
	"github.com/dshills/salesagent-go/agent/model"
)

func stateWith(msgs ...model.Message) State {
	return State{Messages: msgs}
}

func TestRouteAssistant(t *testing.T) {
	t.Run("tool calls enter the tool pipeline", func(t *testing.T) {
		st := stateWith(model.Message{
			Role:      model.RoleAssistant,
			ToolCalls: []model.ToolCall{{ID: "c1", Name: toolCreateOrder}},
		})
		next, err := routeAssistant(st)
		if err != nil {
			t.Fatalf("routeAssistant failed: %v", err)
		}
		if next != stepTools {
			t.Errorf("next = %q, want %q", next, stepTools)
		}
	})

	t.Run("text reply ends the turn", func(t *testing.T) {
		st := stateWith(model.Message{Role: model.RoleAssistant, Content: "done"})
		next, err := routeAssistant(st)
		if err != nil {
			t.Fatalf("routeAssistant failed: %v", err)
		}
		if next != agent.End {
			t.Errorf("next = %q, want End", next)
		}
	})

	t.Run("empty history is an error", func(t *testing.T) {
		if _, err := routeAssistant(State{}); err == nil {
			t.Error("expected error for empty history")
		}
	})
}

func TestRouteToolResult(t *testing.T) {
	t.Run("each tool routes to its domain step", func(t *testing.T) {
		for toolName, wantStep := range routeTable {
			st := stateWith(model.Message{
				Role:     model.RoleTool,
				ToolName: toolName,
				Content:  "{}",
			})
			next, err := routeToolResult(st)
			if err != nil {
				t.Fatalf("routeToolResult(%s) failed: %v", toolName, err)
			}
			if next != wantStep {
				t.Errorf("tool %s routed to %q, want %q", toolName, next, wantStep)
			}
		}
	})

	t.Run("recoverable error returns to the assistant", func(t *testing.T) {
		st := stateWith(model.Message{
			Role:     model.RoleTool,
			ToolName: toolCreateOrder,
			Content:  "Error: products parameter required\n please fix your mistakes.",
		})
		next, err := routeToolResult(st)
		if err != nil {
			t.Fatalf("routeToolResult failed: %v", err)
		}
		if next != stepAssistant {
			t.Errorf("next = %q, want %q", next, stepAssistant)
		}
	})

	t.Run("unknown tool is an error", func(t *testing.T) {
		st := stateWith(model.Message{Role: model.RoleTool, ToolName: "ghost", Content: "{}"})
		if _, err := routeToolResult(st); err == nil {
			t.Error("expected error for unroutable tool")
		}
	})

	t.Run("missing tool result is an error", func(t *testing.T) {
		st := stateWith(model.Message{Role: model.RoleAssistant, Content: "hi"})
		if _, err := routeToolResult(st); err == nil {
			t.Error("expected error when last message is not a tool result")
		}
	})
}

func TestRouteCreateOrder(t *testing.T) {
	t.Run("all products valid proceeds to placement", func(t *testing.T) {
		st := State{ValidProducts: map[string]string{"notebook": "yes", "desk lamp": "yes"}}
		next, err := routeCreateOrder(st)
		if err != nil {
			t.Fatalf("routeCreateOrder failed: %v", err)
		}
		if next != stepPlaceOrder {
			t.Errorf("next = %q, want %q", next, stepPlaceOrder)
		}
	})

	t.Run("any invalid product returns to the assistant", func(t *testing.T) {
		st := State{ValidProducts: map[string]string{"notebook": "yes", "hoverboard": "no"}}
		next, err := routeCreateOrder(st)
		if err != nil {
			t.Fatalf("routeCreateOrder failed: %v", err)
		}
		if next != stepAssistant {
			t.Errorf("next = %q, want %q", next, stepAssistant)
		}
	})
}

func TestRouteTableCoversRegistry(t *testing.T) {
	registry, err := newToolRegistry()
	if err != nil {
		t.Fatalf("newToolRegistry failed: %v", err)
	}
	for _, name := range registry.Names() {
		if _, ok := routeTable[name]; !ok {
			t.Errorf("tool %q has no route table entry", name)
		}
	}
	if len(routeTable) != registry.Len() {
		t.Errorf("route table has %d entries, registry has %d tools", len(routeTable), registry.Len())
	}
}

func TestToolSpecsMatchRegistry(t *testing.T) {
	registry, err := newToolRegistry()
	if err != nil {
		t.Fatalf("newToolRegistry failed: %v", err)
	}
	specs := toolSpecs()
	if len(specs) != registry.Len() {
		t.Fatalf("%d specs for %d registered tools", len(specs), registry.Len())
	}
	for _, spec := range specs {
		if _, ok := registry.Get(spec.Name); !ok {
			t.Errorf("spec %q has no registered tool", spec.Name)
		}
	}
}
