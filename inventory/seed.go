package inventory

import "context"

// Seed populates an empty database with a small demo catalog and an
// employee directory so the assistant can be exercised without any
// external data load. Seeding a non-empty database is a no-op.
func (s *Store) Seed(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM products").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	products := []Product{
		{Name: "wireless mouse", Category: "Electronics", Description: "2.4GHz wireless optical mouse", Price: 29.99, Quantity: 40},
		{Name: "mechanical keyboard", Category: "Electronics", Description: "Tenkeyless mechanical keyboard, brown switches", Price: 89.99, Quantity: 25},
		{Name: "usb-c hub", Category: "Electronics", Description: "7-in-1 USB-C hub with HDMI and card reader", Price: 49.99, Quantity: 30},
		{Name: "noise cancelling headphones", Category: "Audio", Description: "Over-ear wireless headphones with ANC", Price: 199.99, Quantity: 15},
		{Name: "bluetooth speaker", Category: "Audio", Description: "Portable waterproof bluetooth speaker", Price: 59.99, Quantity: 20},
		{Name: "desk lamp", Category: "Office", Description: "LED desk lamp with adjustable color temperature", Price: 34.99, Quantity: 50},
		{Name: "standing desk mat", Category: "Office", Description: "Anti-fatigue standing desk mat", Price: 44.99, Quantity: 18},
		{Name: "notebook", Category: "Office", Description: "A5 dotted notebook, 192 pages", Price: 12.99, Quantity: 100},
	}
	for _, p := range products {
		if err := s.AddProduct(ctx, p); err != nil {
			return err
		}
	}

	employees := []Employee{
		{FirstName: "Jane", LastName: "Peacock", Title: SupportAgentTitle, Email: "jane@company.example"},
		{FirstName: "Margaret", LastName: "Park", Title: SupportAgentTitle, Email: "margaret@company.example"},
		{FirstName: "Steve", LastName: "Johnson", Title: SupportAgentTitle, Email: "steve@company.example"},
	}
	for _, e := range employees {
		if err := s.AddEmployee(ctx, e); err != nil {
			return err
		}
	}

	return nil
}
