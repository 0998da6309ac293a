// Package inventory provides the product catalog, order book and
// employee directory backing the sales assistant.
package inventory

import (
	"errors"
	"fmt"
	"time"
)

// ErrOrderNotFound is returned when an order ID does not exist for the
// requesting customer. Orders are customer-scoped: asking about
// another customer's order behaves exactly like asking about a
// nonexistent one.
var ErrOrderNotFound = errors.New("order not found")

// ErrNoOrders is returned when a customer has no order history.
var ErrNoOrders = errors.New("no orders found for the given customer")

// ErrNoSupportAgent is returned when no employee with the support
// title exists to escalate to.
var ErrNoSupportAgent = errors.New("no support agent available")

// StockError indicates an order failed because a product did not have
// enough stock at commit time. The whole order is rolled back; no
// partial fulfillment occurs.
type StockError struct {
	// Product is the name of the product that was short.
	Product string
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %q", e.Product)
}

// UnknownProductError indicates a requested product name does not
// exist in the catalog.
type UnknownProductError struct {
	Product string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("product %q not found", e.Product)
}

// Product is a catalog entry. Names are stored lower-cased and act as
// a natural key for lookups, so "Wireless Mouse" and "wireless mouse"
// refer to the same product.
type Product struct {
	ID          int64   `json:"ProductId"`
	Name        string  `json:"ProductName"`
	Category    string  `json:"Category"`
	Description string  `json:"Description"`
	Price       float64 `json:"Price"`
	Quantity    int     `json:"Quantity"`
}

// LineItem is one product/quantity pair in an order request.
type LineItem struct {
	Product  string `json:"ProductName"`
	Quantity int    `json:"Quantity"`
}

// Order is a placed order. Status starts as "Pending".
type Order struct {
	ID         int64     `json:"OrderId"`
	CustomerID string    `json:"CustomerId"`
	Date       time.Time `json:"OrderDate"`
	Status     string    `json:"Status"`
}

// Recommendation is a catalog entry suggested from a customer's
// purchase history.
type Recommendation struct {
	ProductID   int64   `json:"ProductId"`
	ProductName string  `json:"ProductName"`
	Category    string  `json:"Category"`
	Description string  `json:"Description"`
	Price       float64 `json:"Price"`
}

// Employee is a staff member from the employee directory.
type Employee struct {
	FirstName string `json:"FirstName"`
	LastName  string `json:"LastName"`
	Email     string `json:"Email"`
	Title     string `json:"Title"`
}

// SupportAgentTitle is the employee title eligible for escalations.
const SupportAgentTitle = "Sales Support Agent"

// StatusPending is the status assigned to newly placed orders.
const StatusPending = "Pending"
