package salesagent

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/salesagent-go/agent/model"
	"github.com/dshills/salesagent-go/agent/tool"
)

// Tool names. The route table in graph.go maps each to its domain
// step.
const (
	toolQueryProducts   = "query_products_info"
	toolCreateOrder     = "create_order"
	toolOrderStatus     = "check_order_status"
	toolRecommendations = "search_products_recommendations"
	toolEscalate        = "escalate_to_employee"
)

type customerIDKey struct{}

// withCustomerID attaches the customer identifier for the current turn
// to the context so order-scoped tools can stamp their payloads.
func withCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, customerIDKey{}, customerID)
}

func customerIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(customerIDKey{}).(string)
	return id
}

// The tools themselves do no storage work. Each one validates its
// arguments and produces the structured payload its domain step
// consumes; the graph routes the tool-result message to that step.

// queryProductsTool accepts a free-form product question.
type queryProductsTool struct{}

func (queryProductsTool) Name() string { return toolQueryProducts }

func (queryProductsTool) Call(_ context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	userMessage, _ := input["user_message"].(string)
	if userMessage == "" {
		return nil, errors.New("user_message parameter required")
	}
	return map[string]interface{}{"user_message": userMessage}, nil
}

// createOrderTool accepts the product/quantity list for a new order.
type createOrderTool struct{}

func (createOrderTool) Name() string { return toolCreateOrder }

func (createOrderTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	products, ok := input["products"].([]interface{})
	if !ok || len(products) == 0 {
		return nil, errors.New("products parameter required")
	}
	for _, p := range products {
		entry, ok := p.(map[string]interface{})
		if !ok {
			return nil, errors.New("each product must be an object with ProductName and Quantity")
		}
		if name, _ := entry["ProductName"].(string); name == "" {
			return nil, errors.New("each product requires a ProductName")
		}
		if qty := toInt(entry["Quantity"]); qty <= 0 {
			return nil, fmt.Errorf("invalid Quantity for product %v", entry["ProductName"])
		}
	}
	return map[string]interface{}{
		"Products":   products,
		"CustomerId": customerIDFromContext(ctx),
	}, nil
}

// orderStatusTool accepts an optional order ID.
type orderStatusTool struct{}

func (orderStatusTool) Name() string { return toolOrderStatus }

func (orderStatusTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"OrderId":    nil,
		"CustomerId": customerIDFromContext(ctx),
	}
	if orderID, ok := input["order_id"]; ok && orderID != nil && orderID != "" {
		payload["OrderId"] = orderID
	}
	return payload, nil
}

// recommendationsTool takes no arguments.
type recommendationsTool struct{}

func (recommendationsTool) Name() string { return toolRecommendations }

func (recommendationsTool) Call(ctx context.Context, _ map[string]interface{}) (map[string]interface{}, error) {
	return map[string]interface{}{
		"CustomerId": customerIDFromContext(ctx),
	}, nil
}

// escalateTool accepts the reason for handing off to a human.
type escalateTool struct{}

func (escalateTool) Name() string { return toolEscalate }

func (escalateTool) Call(ctx context.Context, input map[string]interface{}) (map[string]interface{}, error) {
	reason, _ := input["reason"].(string)
	return map[string]interface{}{
		"CustomerId": customerIDFromContext(ctx),
		"Reason":     reason,
	}, nil
}

// orderScopedTools name the tools that cannot run without a customer
// identity.
var orderScopedTools = map[string]bool{
	toolCreateOrder:     true,
	toolOrderStatus:     true,
	toolRecommendations: true,
	toolEscalate:        true,
}

// newToolRegistry registers the assistant's tool set.
func newToolRegistry() (*tool.Registry, error) {
	registry := tool.NewRegistry()
	for _, t := range []tool.Tool{
		queryProductsTool{},
		createOrderTool{},
		orderStatusTool{},
		recommendationsTool{},
		escalateTool{},
	} {
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// toolSpecs describes the tool set for the chat model.
func toolSpecs() []model.ToolSpec {
	return []model.ToolSpec{
		{
			Name:        toolQueryProducts,
			Description: "Answers questions about the product catalog: availability, pricing, descriptions and stock levels.",
			Schema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"user_message": map[string]interface{}{
						"type":        "string",
						"description": "The user's question about products, in their own words",
					},
				},
				"required": []string{"user_message"},
			},
		},
		{
			Name:        toolCreateOrder,
			Description: "Creates a new order when the customer wants to buy products.",
			Schema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"products": map[string]interface{}{
						"type":        "array",
						"description": "Products to include in the order",
						"items": map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"ProductName": map[string]interface{}{"type": "string"},
								"Quantity":    map[string]interface{}{"type": "integer"},
							},
							"required": []string{"ProductName", "Quantity"},
						},
					},
				},
				"required": []string{"products"},
			},
		},
		{
			Name:        toolOrderStatus,
			Description: "Checks the status of the customer's orders. If order_id is omitted, all orders for the customer are returned.",
			Schema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"order_id": map[string]interface{}{
						"type":        "string",
						"description": "The ID of a specific order to check",
					},
				},
			},
		},
		{
			Name:        toolRecommendations,
			Description: "Searches for product recommendations based on the customer's purchase history.",
			Schema: map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			},
		},
		{
			Name:        toolEscalate,
			Description: "Escalates the conversation to a human sales support agent.",
			Schema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"reason": map[string]interface{}{
						"type":        "string",
						"description": "Why the conversation needs a human",
					},
				},
			},
		},
	}
}

// toInt converts the number representations that arrive from JSON tool
// arguments.
func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		var parsed int
		if _, err := fmt.Sscanf(n, "%d", &parsed); err == nil {
			return parsed
		}
	}
	return 0
}
