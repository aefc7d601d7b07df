// Package store provides persistence for the product catalog and the sales ledger.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog row.
type Product struct {
	ID        int64           `db:"id"`
	Name      string          `db:"name"`
	Quantity  int64           `db:"quantity"`
	Price     decimal.Decimal `db:"price"`
	CreatedAt time.Time       `db:"created_at"`
}

// Sale is a ledger row. ProductName and TotalAmount are snapshots taken at sale time
// and do not follow later changes to the product.
type Sale struct {
	ID           int64           `db:"id"`
	ProductID    int64           `db:"product_id"`
	ProductName  string          `db:"product_name"`
	QuantitySold int64           `db:"quantity_sold"`
	TotalAmount  decimal.Decimal `db:"total_amount"`
	SaleDate     time.Time       `db:"sale_date"`
}

// NewProduct carries the values of a product that does not exist yet.
type NewProduct struct {
	Name     string
	Quantity int64
	Price    decimal.Decimal
}

// InventoryStore is the only component allowed to read or write persisted rows.
// Every method returns nil or exactly one error of the internal/errors taxonomy.
type InventoryStore interface {
	// FindAll returns all products ordered by ascending id.
	// Returns an empty slice if no products exist.
	FindAll(ctx context.Context) ([]Product, error)

	// FindByNameContaining returns products whose name contains fragment, ordered by ascending id.
	// Matching follows the LIKE semantics of the underlying database.
	FindByNameContaining(ctx context.Context, fragment string) ([]Product, error)

	// FindByID retrieves a single product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	FindByID(ctx context.Context, id int64) (*Product, error)

	// Create adds a new product stamped with createdAt.
	// Returns ErrNameConflict if the name is already taken, a ValidationError if the price
	// is too large to store.
	Create(ctx context.Context, p NewProduct, createdAt time.Time) (*Product, error)

	// Update overwrites name, quantity and price of an existing product.
	// Returns ErrProductNotFound if the product does not exist, ErrNameConflict if another
	// product already has the new name.
	Update(ctx context.Context, id int64, p NewProduct) (*Product, error)

	// DeleteByID removes a product. Its sales stay in the ledger.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteByID(ctx context.Context, id int64) error

	// Purchase decrements the product's quantity and appends a sale as one atomic unit.
	// Returns ErrProductNotFound, an InsufficientStockError, or a ValidationError when the
	// total is too large to store, without changing anything.
	Purchase(ctx context.Context, id int64, quantity int64, soldAt time.Time) (*Sale, error)

	// FindAllSales returns the ledger, newest sale first.
	FindAllSales(ctx context.Context) ([]Sale, error)

	// SeedIfEmpty inserts products, stamped with createdAt, only when the catalog is empty.
	// It returns the number of inserted products.
	SeedIfEmpty(ctx context.Context, products []NewProduct, createdAt time.Time) (int, error)

	// Ping checks that the database is reachable.
	Ping(ctx context.Context) error
}
