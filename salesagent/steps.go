package salesagent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dshills/salesagent-go/agent"
	"github.com/dshills/salesagent-go/agent/model"
	"github.com/dshills/salesagent-go/agent/tool"
	"github.com/dshills/salesagent-go/inventory"
)

// maxAssistantAttempts bounds the "ask again" loop when the model
// returns neither text nor tool calls.
const maxAssistantAttempts = 3

// retryNudge is the synthetic user message appended before re-asking
// the model for a usable reply.
const retryNudge = "Respond with a real output."

// steps bundles the dependencies shared by every graph step.
type steps struct {
	chat       model.ChatModel
	specs      []model.ToolSpec
	dispatcher *tool.Dispatcher
	inv        *inventory.Store
	queryGen   QueryGenerator
	metrics    *agent.Metrics
	now        func() time.Time
}

// assistant calls the chat model with the system prompt, full history
// and tool specs. An empty reply (no text, no tool calls) triggers a
// bounded retry with a synthetic nudge; exhausting the retries fails
// the run with ErrNoUsableResponse.
func (s *steps) assistant(ctx context.Context, st State) (State, error) {
	working := append([]model.Message{systemMessage(st.UserInfo, s.now())}, st.Messages...)

	for attempt := 0; attempt < maxAssistantAttempts; attempt++ {
		out, err := s.chat.Chat(ctx, working, s.specs)
		if err != nil {
			return st, fmt.Errorf("assistant model call failed: %w", err)
		}

		if len(out.ToolCalls) == 0 && strings.TrimSpace(out.Text) == "" {
			// The nudge is part of the prompt only, never of the
			// persisted history.
			working = append(working, model.Message{Role: model.RoleUser, Content: retryNudge})
			continue
		}

		st.Messages = append(st.Messages, model.Message{
			Role:      model.RoleAssistant,
			Content:   out.Text,
			ToolCalls: out.ToolCalls,
		})
		return st, nil
	}

	return st, agent.ErrNoUsableResponse
}

// tools dispatches the pending tool calls from the last assistant
// message and appends one tool-result message per call. An order-scoped
// tool without a customer identity is a fatal configuration error,
// caught before any tool runs.
func (s *steps) tools(ctx context.Context, st State) (State, error) {
	last, ok := lastMessage(st)
	if !ok || len(last.ToolCalls) == 0 {
		return st, errors.New("tools step requires pending tool calls")
	}

	for _, call := range last.ToolCalls {
		if orderScopedTools[call.Name] && st.UserInfo == "" {
			return st, agent.ErrNoCustomerID
		}
	}

	results, err := s.dispatcher.DispatchAll(withCustomerID(ctx, st.UserInfo), last.ToolCalls)
	if err != nil {
		return st, err
	}
	st.Messages = append(st.Messages, results...)
	return st, nil
}

// queryProductsInfo generates a SELECT for the user's product question,
// runs it against the catalog and writes the result into the tool
// message. Generation and execution failures are recoverable: the
// assistant gets an error payload and decides what to tell the user.
func (s *steps) queryProductsInfo(ctx context.Context, st State) (State, error) {
	payload, err := parsePayload(st)
	if err != nil {
		setLastContent(&st, errorPayload(err))
		return st, nil
	}
	userMessage, _ := payload["user_message"].(string)

	query, err := s.queryGen.GenerateQuery(ctx, "sqlite", productsTableInfo, userMessage)
	if err != nil {
		setLastContent(&st, errorPayload(err))
		return st, nil
	}

	rows, err := s.inv.SelectQuery(ctx, query)
	if err != nil {
		setLastContent(&st, errorPayload(err))
		return st, nil
	}

	result, err := json.Marshal(rows)
	if err != nil {
		setLastContent(&st, errorPayload(err))
		return st, nil
	}

	setLastContent(&st, jsonPayload(map[string]interface{}{
		"query": query,
		"query_result": "For the user message: " + userMessage +
			" the query result is: " + string(result),
	}))
	return st, nil
}

// createOrder validates that every requested product exists in the
// catalog, recording the outcome in ValidProducts for the routing
// decision. Missing products produce an availability payload and the
// router sends the conversation back to the assistant.
func (s *steps) createOrder(ctx context.Context, st State) (State, error) {
	payload, err := parsePayload(st)
	if err != nil {
		st.ValidProducts = map[string]string{"": "no"}
		setLastContent(&st, errorPayload(err))
		return st, nil
	}

	lines, err := parseLineItems(payload["Products"])
	if err != nil {
		st.ValidProducts = map[string]string{"": "no"}
		setLastContent(&st, errorPayload(err))
		return st, nil
	}

	st.ValidProducts = make(map[string]string, len(lines))
	var missing []string
	for _, line := range lines {
		name := strings.ToLower(line.Product)
		_, err := s.inv.ProductByName(ctx, name)
		var unknown *inventory.UnknownProductError
		switch {
		case err == nil:
			st.ValidProducts[name] = "yes"
		case errors.As(err, &unknown):
			st.ValidProducts[name] = "no"
			missing = append(missing, name)
		default:
			st.ValidProducts[name] = "no"
			setLastContent(&st, errorPayload(err))
			return st, nil
		}
	}

	if len(missing) > 0 {
		setLastContent(&st, jsonPayload(map[string]interface{}{
			"Availability": "Product not available in stock: " + strings.Join(missing, ", "),
		}))
	}
	return st, nil
}

// placeOrder commits the order through the single fulfillment
// transaction. Stock shortfalls and unknown products roll the whole
// order back and surface availability payloads; storage failures
// surface a generic retry payload. Success rewrites the tool message
// with the assigned order ID.
func (s *steps) placeOrder(ctx context.Context, st State) (State, error) {
	payload, err := parsePayload(st)
	if err != nil {
		setLastContent(&st, errorPayload(err))
		return st, nil
	}

	customerID, _ := payload["CustomerId"].(string)
	lines, err := parseLineItems(payload["Products"])
	if err != nil {
		setLastContent(&st, errorPayload(err))
		return st, nil
	}

	order, err := s.inv.PlaceOrder(ctx, customerID, lines)
	if err != nil {
		var stockErr *inventory.StockError
		var unknownErr *inventory.UnknownProductError
		switch {
		case errors.As(err, &stockErr):
			st.ProductsAvailability = map[string]string{strings.ToLower(stockErr.Product): "no"}
			s.observeOrder("unavailable")
			setLastContent(&st, jsonPayload(map[string]interface{}{
				"Availability": "Insufficient quantity for product: " + strings.ToLower(stockErr.Product),
			}))
		case errors.As(err, &unknownErr):
			s.observeOrder("unavailable")
			setLastContent(&st, jsonPayload(map[string]interface{}{
				"Availability": "Product not available in stock: " + strings.ToLower(unknownErr.Product),
			}))
		default:
			s.observeOrder("failed")
			setLastContent(&st, jsonPayload(map[string]interface{}{
				"error": "The order could not be placed, please try again.",
			}))
		}
		return st, nil
	}

	s.observeOrder("created")
	setLastContent(&st, jsonPayload(map[string]interface{}{
		"OrderId":    order.ID,
		"CustomerId": order.CustomerID,
		"Products":   payload["Products"],
		"Status":     order.Status,
	}))
	return st, nil
}

// checkOrderStatus answers for one order or the customer's full
// history, most recent first. Unknown orders and empty histories get
// structured "not found" payloads.
func (s *steps) checkOrderStatus(ctx context.Context, st State) (State, error) {
	payload, err := parsePayload(st)
	if err != nil {
		setLastContent(&st, errorPayload(err))
		return st, nil
	}

	customerID, _ := payload["CustomerId"].(string)

	if raw, ok := payload["OrderId"]; ok && raw != nil {
		orderID, err := toOrderID(raw)
		if err != nil {
			setLastContent(&st, errorPayload(err))
			return st, nil
		}

		order, err := s.inv.OrderByID(ctx, customerID, orderID)
		switch {
		case errors.Is(err, inventory.ErrOrderNotFound):
			setLastContent(&st, jsonPayload(map[string]interface{}{"error": "Order not found."}))
		case err != nil:
			setLastContent(&st, errorPayload(err))
		default:
			setLastContent(&st, jsonPayload(orderPayload(order)))
		}
		return st, nil
	}

	orders, err := s.inv.OrdersForCustomer(ctx, customerID)
	switch {
	case errors.Is(err, inventory.ErrNoOrders):
		setLastContent(&st, jsonPayload(map[string]interface{}{
			"error": "No orders found for the given customer.",
		}))
	case err != nil:
		setLastContent(&st, errorPayload(err))
	default:
		payloads := make([]map[string]interface{}, 0, len(orders))
		for _, order := range orders {
			payloads = append(payloads, orderPayload(order))
		}
		content, merr := json.Marshal(payloads)
		if merr != nil {
			setLastContent(&st, errorPayload(merr))
		} else {
			setLastContent(&st, string(content))
		}
	}
	return st, nil
}

// searchRecommendations suggests products from the customer's purchase
// history. A customer with no history gets an explicit payload rather
// than an empty list.
func (s *steps) searchRecommendations(ctx context.Context, st State) (State, error) {
	payload, err := parsePayload(st)
	if err != nil {
		setLastContent(&st, errorPayload(err))
		return st, nil
	}
	customerID, _ := payload["CustomerId"].(string)

	recs, err := s.inv.Recommendations(ctx, customerID)
	if err != nil {
		setLastContent(&st, errorPayload(err))
		return st, nil
	}

	if len(recs) == 0 {
		setLastContent(&st, jsonPayload(map[string]interface{}{
			"recommendations": "This customer has no recent orders.",
		}))
		return st, nil
	}

	content, err := json.Marshal(recs)
	if err != nil {
		setLastContent(&st, errorPayload(err))
		return st, nil
	}
	setLastContent(&st, string(content))
	return st, nil
}

// escalateToEmployee picks a random support agent and hands their
// contact details back, carrying the stated reason through.
func (s *steps) escalateToEmployee(ctx context.Context, st State) (State, error) {
	payload, err := parsePayload(st)
	if err != nil {
		setLastContent(&st, errorPayload(err))
		return st, nil
	}

	employee, err := s.inv.SupportAgent(ctx)
	switch {
	case errors.Is(err, inventory.ErrNoSupportAgent):
		setLastContent(&st, jsonPayload(map[string]interface{}{
			"error": "No support agent is currently available.",
		}))
	case err != nil:
		setLastContent(&st, errorPayload(err))
	default:
		setLastContent(&st, jsonPayload(map[string]interface{}{
			"Employee": map[string]interface{}{
				"LastName":  employee.LastName,
				"FirstName": employee.FirstName,
				"Email":     employee.Email,
			},
			"CustomerId": payload["CustomerId"],
			"Reason":     payload["Reason"],
		}))
	}
	return st, nil
}

func (s *steps) observeOrder(status string) {
	if s.metrics != nil {
		s.metrics.ObserveOrder(status)
	}
}

// parsePayload decodes the JSON payload of the last (tool-result)
// message.
func parsePayload(st State) (map[string]interface{}, error) {
	last, ok := lastMessage(st)
	if !ok {
		return nil, errors.New("no message to read tool payload from")
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(last.Content), &payload); err != nil {
		return nil, fmt.Errorf("invalid tool payload: %w", err)
	}
	return payload, nil
}

// parseLineItems converts the Products payload entry into line items.
func parseLineItems(raw interface{}) ([]inventory.LineItem, error) {
	entries, ok := raw.([]interface{})
	if !ok || len(entries) == 0 {
		return nil, errors.New("order payload has no products")
	}

	lines := make([]inventory.LineItem, 0, len(entries))
	for _, entry := range entries {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, errors.New("invalid product entry in order payload")
		}
		name, _ := m["ProductName"].(string)
		quantity := toInt(m["Quantity"])
		if name == "" || quantity <= 0 {
			return nil, fmt.Errorf("invalid product entry: %v", entry)
		}
		lines = append(lines, inventory.LineItem{Product: name, Quantity: quantity})
	}
	return lines, nil
}

// toOrderID accepts the order ID as a JSON number or string.
func toOrderID(raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case float64:
		return int64(v), nil
	case string:
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid order ID %q", v)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("invalid order ID %v", raw)
	}
}

func orderPayload(order inventory.Order) map[string]interface{} {
	return map[string]interface{}{
		"OrderId":   order.ID,
		"Status":    order.Status,
		"OrderDate": order.Date.Format(time.RFC3339),
	}
}

// jsonPayload marshals a payload, falling back to a plain error object
// if marshaling fails.
func jsonPayload(v interface{}) string {
	content, err := json.Marshal(v)
	if err != nil {
		return `{"error":"internal payload encoding failure"}`
	}
	return string(content)
}

func errorPayload(err error) string {
	return jsonPayload(map[string]interface{}{"error": err.Error()})
}
