package salesagent

import (
	"fmt"
	"strings"

	"github.com/dshills/salesagent-go/agent"
	"github.com/dshills/salesagent-go/agent/tool"
)

// Step names. Domain step names follow the tool they serve.
const (
	stepAssistant       = "assistant"
	stepTools           = "tools"
	stepQueryProducts   = "query_products_info_state"
	stepCreateOrder     = "create_order_state"
	stepPlaceOrder      = "place_order_state"
	stepOrderStatus     = "check_order_status_state"
	stepRecommendations = "search_products_recommendations_state"
	stepEscalate        = "escalate_to_employee_state"
)

// routeTable maps each tool name to the domain step that consumes its
// payload. Every registered tool must have an entry and every target
// must be a registered step; buildGraph enforces both before any turn
// runs.
var routeTable = map[string]string{
	toolQueryProducts:   stepQueryProducts,
	toolCreateOrder:     stepCreateOrder,
	toolOrderStatus:     stepOrderStatus,
	toolRecommendations: stepRecommendations,
	toolEscalate:        stepEscalate,
}

// routeAssistant ends the turn when the assistant answered with text,
// and enters the tool pipeline when it requested tool calls.
func routeAssistant(st State) (string, error) {
	last, ok := lastMessage(st)
	if !ok {
		return "", fmt.Errorf("no assistant output to route")
	}
	if len(last.ToolCalls) > 0 {
		return stepTools, nil
	}
	return agent.End, nil
}

// routeToolResult routes a tool-result message to its domain step via
// the route table. Recoverable tool errors (the dispatcher's fallback
// messages) go straight back to the assistant so it can fix its
// arguments.
func routeToolResult(st State) (string, error) {
	last, ok := lastMessage(st)
	if !ok || last.ToolName == "" {
		return "", fmt.Errorf("no tool result to route")
	}
	if strings.HasPrefix(last.Content, "Error:") {
		return stepAssistant, nil
	}

	target, ok := routeTable[last.ToolName]
	if !ok {
		return "", fmt.Errorf("no route for tool %q", last.ToolName)
	}
	return target, nil
}

// routeCreateOrder continues to order placement only when every
// requested product exists; otherwise the availability payload written
// by the validation step goes back to the assistant.
func routeCreateOrder(st State) (string, error) {
	for _, validity := range st.ValidProducts {
		if validity == "no" {
			return stepAssistant, nil
		}
	}
	return stepPlaceOrder, nil
}

// buildGraph assembles and validates the conversation graph.
//
// Topology:
//
//	assistant -(tool calls?)-> tools | END
//	tools -(route table)-> one domain step
//	create_order_state -(all products valid?)-> place_order_state | assistant
//	every other domain step -> assistant
func buildGraph(eng *agent.Engine[State], s *steps, registry *tool.Registry) error {
	stepHandlers := map[string]agent.HandlerFunc[State]{
		stepAssistant:       s.assistant,
		stepTools:           s.tools,
		stepQueryProducts:   s.queryProductsInfo,
		stepCreateOrder:     s.createOrder,
		stepPlaceOrder:      s.placeOrder,
		stepOrderStatus:     s.checkOrderStatus,
		stepRecommendations: s.searchRecommendations,
		stepEscalate:        s.escalateToEmployee,
	}
	for name, handler := range stepHandlers {
		if err := eng.RegisterStep(name, handler); err != nil {
			return err
		}
	}

	// Every registered tool must be routable, and every route target
	// must exist. Checked here so an unroutable tool fails at build
	// time, not mid-conversation.
	for _, toolName := range registry.Names() {
		target, ok := routeTable[toolName]
		if !ok {
			return fmt.Errorf("tool %q has no route table entry", toolName)
		}
		if _, ok := stepHandlers[target]; !ok {
			return fmt.Errorf("route for tool %q targets unregistered step %q", toolName, target)
		}
	}

	if err := eng.AddConditionalEdge(stepAssistant, routeAssistant); err != nil {
		return err
	}
	if err := eng.AddConditionalEdge(stepTools, routeToolResult); err != nil {
		return err
	}
	if err := eng.AddConditionalEdge(stepCreateOrder, routeCreateOrder); err != nil {
		return err
	}
	for _, from := range []string{
		stepQueryProducts,
		stepPlaceOrder,
		stepOrderStatus,
		stepRecommendations,
		stepEscalate,
	} {
		if err := eng.AddStaticEdge(from, stepAssistant); err != nil {
			return err
		}
	}

	if err := eng.StartAt(stepAssistant); err != nil {
		return err
	}
	return eng.Validate()
}
