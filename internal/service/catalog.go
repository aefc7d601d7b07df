package service

import "github.com/shopspring/decimal"

// DefaultCatalog returns the sample products inserted into an empty catalog.
func DefaultCatalog() []ProductRequest {
	return []ProductRequest{
		{Name: "Laptop Dell XPS 13", Quantity: 15, Price: decimal.RequireFromString("8500.00")},
		{Name: "iPhone 14 Pro", Quantity: 25, Price: decimal.RequireFromString("6200.00")},
		{Name: "Samsung Galaxy S23", Quantity: 30, Price: decimal.RequireFromString("4800.00")},
		{Name: "HP LaserJet Printer", Quantity: 12, Price: decimal.RequireFromString("1500.00")},
		{Name: "Logitech Wireless Mouse", Quantity: 50, Price: decimal.RequireFromString("250.00")},
		{Name: "Mechanical Keyboard", Quantity: 40, Price: decimal.RequireFromString("450.00")},
		{Name: "27-inch Monitor", Quantity: 20, Price: decimal.RequireFromString("2200.00")},
		{Name: "USB-C Hub", Quantity: 60, Price: decimal.RequireFromString("180.00")},
		{Name: "External Hard Drive 2TB", Quantity: 35, Price: decimal.RequireFromString("650.00")},
		{Name: "Wireless Headphones", Quantity: 45, Price: decimal.RequireFromString("380.00")},
		{Name: "Webcam HD 1080p", Quantity: 28, Price: decimal.RequireFromString("320.00")},
		{Name: "Gaming Mouse Pad", Quantity: 100, Price: decimal.RequireFromString("85.00")},
		{Name: "Phone Case", Quantity: 150, Price: decimal.RequireFromString("65.00")},
		{Name: "Screen Protector", Quantity: 200, Price: decimal.RequireFromString("45.00")},
		{Name: "Power Bank 20000mAh", Quantity: 55, Price: decimal.RequireFromString("280.00")},
	}
}
