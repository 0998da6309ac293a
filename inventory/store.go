package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides access to products, orders and employees in a SQLite
// database.
//
// All order placement goes through a single transaction so stock
// checks and decrements cannot race with concurrent orders: the
// decrement is conditional on sufficient remaining quantity, and a
// failed decrement rolls back the entire order.
//
// Store is safe for concurrent use.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewStore opens (or creates) the inventory database at path.
//
// The path parameter specifies the database file location:
//   - "./inventory.db" - file in current directory
//   - ":memory:" - in-memory database (data lost on close; for tests)
//
// The store automatically creates required tables, enables WAL mode,
// and sets a busy timeout.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open inventory database: %w", err)
	}

	// SQLite supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}

	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

func (s *Store) createTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			ProductId INTEGER PRIMARY KEY AUTOINCREMENT,
			ProductName TEXT NOT NULL UNIQUE,
			Category TEXT NOT NULL,
			Description TEXT NOT NULL DEFAULT '',
			Price REAL NOT NULL,
			Quantity INTEGER NOT NULL,
			CHECK (Quantity >= 0)
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			OrderId INTEGER PRIMARY KEY AUTOINCREMENT,
			CustomerId TEXT NOT NULL,
			OrderDate TIMESTAMP NOT NULL,
			Status TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_customer ON orders(CustomerId, OrderDate)`,
		`CREATE TABLE IF NOT EXISTS orders_details (
			OrderDetailId INTEGER PRIMARY KEY AUTOINCREMENT,
			OrderId INTEGER NOT NULL REFERENCES orders(OrderId),
			ProductId INTEGER NOT NULL REFERENCES products(ProductId),
			Quantity INTEGER NOT NULL,
			UnitPrice REAL NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS employees (
			EmployeeId INTEGER PRIMARY KEY AUTOINCREMENT,
			FirstName TEXT NOT NULL,
			LastName TEXT NOT NULL,
			Title TEXT NOT NULL,
			Email TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// AddProduct inserts a catalog entry. The product name is lower-cased
// before storage so later lookups are case-insensitive.
func (s *Store) AddProduct(ctx context.Context, p Product) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	query := `
		INSERT INTO products (ProductName, Category, Description, Price, Quantity)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		strings.ToLower(p.Name), p.Category, p.Description, p.Price, p.Quantity)
	if err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// AddEmployee inserts a staff member into the employee directory.
func (s *Store) AddEmployee(ctx context.Context, e Employee) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	query := `
		INSERT INTO employees (FirstName, LastName, Title, Email)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, e.FirstName, e.LastName, e.Title, e.Email)
	if err != nil {
		return fmt.Errorf("failed to insert employee: %w", err)
	}
	return nil
}

// ProductByName looks up a catalog entry by name, case-insensitively.
// Returns UnknownProductError if no such product exists.
func (s *Store) ProductByName(ctx context.Context, name string) (Product, error) {
	var p Product
	if err := s.checkOpen(); err != nil {
		return p, err
	}

	query := `
		SELECT ProductId, ProductName, Category, Description, Price, Quantity
		FROM products
		WHERE ProductName = ?
	`
	err := s.db.QueryRowContext(ctx, query, strings.ToLower(name)).
		Scan(&p.ID, &p.Name, &p.Category, &p.Description, &p.Price, &p.Quantity)
	if err == sql.ErrNoRows {
		return p, &UnknownProductError{Product: name}
	}
	if err != nil {
		return p, fmt.Errorf("failed to load product: %w", err)
	}
	return p, nil
}

// CheckAvailability reports for each requested line whether the
// catalog currently holds enough stock. The result maps lower-cased
// product names to "yes" or "no"; unknown products map to "no".
//
// This is a point-in-time read for messaging purposes only. PlaceOrder
// re-verifies stock inside its transaction, so a "yes" here is not a
// reservation.
func (s *Store) CheckAvailability(ctx context.Context, lines []LineItem) (map[string]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	availability := make(map[string]string, len(lines))
	for _, line := range lines {
		name := strings.ToLower(line.Product)

		var quantity int
		err := s.db.QueryRowContext(ctx,
			"SELECT Quantity FROM products WHERE ProductName = ?", name).Scan(&quantity)
		if err == sql.ErrNoRows {
			availability[name] = "no"
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to check availability: %w", err)
		}

		if quantity < line.Quantity {
			availability[name] = "no"
		} else {
			availability[name] = "yes"
		}
	}
	return availability, nil
}

// PlaceOrder creates an order with its lines and decrements stock, all
// in one transaction.
//
// For every line the decrement is conditional on the remaining
// quantity: UPDATE ... SET Quantity = Quantity - ? WHERE ... AND
// Quantity >= ?. If any line's decrement affects zero rows the product
// sold out between the availability check and now, and the whole
// order rolls back with a *StockError. An unknown product rolls back
// with an *UnknownProductError.
//
// Two concurrent orders competing for the last units can therefore
// never both commit; stock never goes negative.
//
// Returns the created order with its assigned ID and Pending status.
func (s *Store) PlaceOrder(ctx context.Context, customerID string, lines []LineItem) (Order, error) {
	var order Order
	if err := s.checkOpen(); err != nil {
		return order, err
	}
	if customerID == "" {
		return order, errors.New("customer ID is required")
	}
	if len(lines) == 0 {
		return order, errors.New("order must contain at least one line")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return order, fmt.Errorf("failed to begin order transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		"INSERT INTO orders (CustomerId, OrderDate, Status) VALUES (?, ?, ?)",
		customerID, now, StatusPending)
	if err != nil {
		return order, fmt.Errorf("failed to insert order: %w", err)
	}
	orderID, err := res.LastInsertId()
	if err != nil {
		return order, fmt.Errorf("failed to read order ID: %w", err)
	}

	for _, line := range lines {
		name := strings.ToLower(line.Product)
		if line.Quantity <= 0 {
			return order, fmt.Errorf("invalid quantity %d for product %q", line.Quantity, line.Product)
		}

		var productID int64
		var price float64
		err := tx.QueryRowContext(ctx,
			"SELECT ProductId, Price FROM products WHERE ProductName = ?", name).
			Scan(&productID, &price)
		if err == sql.ErrNoRows {
			return order, &UnknownProductError{Product: line.Product}
		}
		if err != nil {
			return order, fmt.Errorf("failed to load product %q: %w", name, err)
		}

		// Unit price is captured at order time, not looked up later.
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO orders_details (OrderId, ProductId, Quantity, UnitPrice) VALUES (?, ?, ?, ?)",
			orderID, productID, line.Quantity, price); err != nil {
			return order, fmt.Errorf("failed to insert order line: %w", err)
		}

		// Conditional decrement: zero rows affected means the stock is
		// no longer sufficient and the whole order must fail.
		decr, err := tx.ExecContext(ctx,
			"UPDATE products SET Quantity = Quantity - ? WHERE ProductId = ? AND Quantity >= ?",
			line.Quantity, productID, line.Quantity)
		if err != nil {
			return order, fmt.Errorf("failed to decrement stock: %w", err)
		}
		affected, err := decr.RowsAffected()
		if err != nil {
			return order, fmt.Errorf("failed to read decrement result: %w", err)
		}
		if affected == 0 {
			return order, &StockError{Product: line.Product}
		}
	}

	if err := tx.Commit(); err != nil {
		return order, fmt.Errorf("failed to commit order: %w", err)
	}

	return Order{
		ID:         orderID,
		CustomerID: customerID,
		Date:       now,
		Status:     StatusPending,
	}, nil
}

// OrderByID fetches a single order, scoped to the requesting customer.
// Returns ErrOrderNotFound when the order does not exist or belongs to
// a different customer.
func (s *Store) OrderByID(ctx context.Context, customerID string, orderID int64) (Order, error) {
	var order Order
	if err := s.checkOpen(); err != nil {
		return order, err
	}

	query := `
		SELECT o.OrderId, o.CustomerId, o.OrderDate, o.Status
		FROM orders o
		WHERE o.CustomerId = ? AND o.OrderId = ?
	`
	err := s.db.QueryRowContext(ctx, query, customerID, orderID).
		Scan(&order.ID, &order.CustomerID, &order.Date, &order.Status)
	if err == sql.ErrNoRows {
		return order, ErrOrderNotFound
	}
	if err != nil {
		return order, fmt.Errorf("failed to load order: %w", err)
	}
	return order, nil
}

// OrdersForCustomer fetches all orders for a customer, most recent
// first. Returns ErrNoOrders when the customer has no history.
func (s *Store) OrdersForCustomer(ctx context.Context, customerID string) ([]Order, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		SELECT o.OrderId, o.CustomerId, o.OrderDate, o.Status
		FROM orders o
		WHERE o.CustomerId = ?
		ORDER BY o.OrderDate DESC
	`
	rows, err := s.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load orders: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		var order Order
		if err := rows.Scan(&order.ID, &order.CustomerID, &order.Date, &order.Status); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	if len(orders) == 0 {
		return nil, ErrNoOrders
	}
	return orders, nil
}

// Recommendations suggests products based on a customer's recent
// orders: it finds the categories of the last five distinct products
// the customer bought and returns up to five of the highest-priced
// products per category, excluding products already purchased.
//
// Returns an empty slice (no error) when the customer has no order
// history to recommend from.
func (s *Store) Recommendations(ctx context.Context, customerID string) ([]Recommendation, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	query := `
		WITH RecentOrders AS (
			SELECT
				od.ProductId,
				p.Category AS Category,
				COUNT(od.ProductId) AS ProductFrequency
			FROM orders o
			INNER JOIN orders_details od ON o.OrderId = od.OrderId
			INNER JOIN products p ON od.ProductId = p.ProductId
			WHERE o.CustomerId = ?
			GROUP BY od.ProductId, p.Category
			ORDER BY MAX(o.OrderDate) DESC
			LIMIT 5
		),
		TopCategories AS (
			SELECT
				Category,
				COUNT(Category) AS CategoryFrequency
			FROM RecentOrders
			GROUP BY Category
			ORDER BY CategoryFrequency DESC
		),
		RecommendedProducts AS (
			SELECT
				p.ProductId,
				p.ProductName,
				p.Category,
				p.Description,
				p.Price,
				ROW_NUMBER() OVER (PARTITION BY p.Category ORDER BY p.Price DESC) AS Rank
			FROM products p
			WHERE p.Category IN (SELECT Category FROM TopCategories)
			AND p.ProductId NOT IN (SELECT ProductId FROM RecentOrders)
		)
		SELECT
			ProductId,
			ProductName,
			Category,
			Description,
			Price
		FROM RecommendedProducts
		WHERE Rank <= 5
	`
	rows, err := s.db.QueryContext(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load recommendations: %w", err)
	}
	defer rows.Close()

	var recs []Recommendation
	for rows.Next() {
		var r Recommendation
		if err := rows.Scan(&r.ProductID, &r.ProductName, &r.Category, &r.Description, &r.Price); err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read recommendations: %w", err)
	}
	return recs, nil
}

// SupportAgent picks a random employee with the support title for an
// escalation handoff. Returns ErrNoSupportAgent if none exists.
func (s *Store) SupportAgent(ctx context.Context) (Employee, error) {
	var e Employee
	if err := s.checkOpen(); err != nil {
		return e, err
	}

	query := `
		SELECT LastName, FirstName, Email, Title
		FROM employees
		WHERE Title = ?
		ORDER BY RANDOM()
		LIMIT 1
	`
	err := s.db.QueryRowContext(ctx, query, SupportAgentTitle).
		Scan(&e.LastName, &e.FirstName, &e.Email, &e.Title)
	if err == sql.ErrNoRows {
		return e, ErrNoSupportAgent
	}
	if err != nil {
		return e, fmt.Errorf("failed to load support agent: %w", err)
	}
	return e, nil
}

// SelectQuery runs a read-only SELECT against the catalog and returns
// the rows as column-keyed maps. Used by the free-form product lookup
// path, where the query text is generated rather than hand-written.
//
// Anything other than a single SELECT statement is rejected before
// touching the database.
func (s *Store) SelectQuery(ctx context.Context, query string) ([]map[string]interface{}, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if err := validateSelect(query); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var results []map[string]interface{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return results, nil
}

// validateSelect rejects anything that is not a single SELECT
// statement.
func validateSelect(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return errors.New("empty query")
	}
	if !strings.HasPrefix(strings.ToUpper(trimmed), "SELECT") {
		return errors.New("only SELECT queries are allowed")
	}
	// A trailing semicolon is fine; an embedded one means a second
	// statement.
	if idx := strings.Index(trimmed, ";"); idx >= 0 && idx != len(trimmed)-1 {
		return errors.New("multiple statements are not allowed")
	}
	return nil
}

// Close closes the database connection. After Close, all operations
// return an error. Calling Close multiple times is safe.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
