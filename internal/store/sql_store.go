package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	perrors "github.com/abgdnv/stockroom/internal/errors"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// maxAmount bounds every stored money value. SQLite keeps money as a float64 REAL,
// which cannot hold anything near or above it.
var maxAmount = decimal.New(1, 300)

const (
	productColumns = "id, name, quantity, price, created_at"
	saleColumns    = "id, product_id, product_name, quantity_sold, total_amount, sale_date"
)

// SQLStore implements InventoryStore on top of SQLite or PostgreSQL through sqlx.
type SQLStore struct {
	db      *sqlx.DB
	dialect dialect
}

// NewSQLStore creates a new instance of InventoryStore for an open database.
// The dialect is derived from the driver the database was opened with.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{
		db:      db,
		dialect: dialectOf(db),
	}
}

// FindAll retrieves all products ordered by id.
func (s *SQLStore) FindAll(ctx context.Context) ([]Product, error) {
	products := []Product{}
	err := s.db.SelectContext(ctx, &products, "SELECT "+productColumns+" FROM products ORDER BY id")
	if err != nil {
		return nil, perrors.Storage("list products", err)
	}
	return normalizeProducts(products), nil
}

// FindByNameContaining retrieves products whose name contains fragment, ordered by id.
func (s *SQLStore) FindByNameContaining(ctx context.Context, fragment string) ([]Product, error) {
	products := []Product{}
	query := s.db.Rebind("SELECT " + productColumns + ` FROM products WHERE name LIKE ? ESCAPE '\' ORDER BY id`)
	if err := s.db.SelectContext(ctx, &products, query, containsPattern(fragment)); err != nil {
		return nil, perrors.Storage("search products", err)
	}
	return normalizeProducts(products), nil
}

// FindByID retrieves a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *SQLStore) FindByID(ctx context.Context, id int64) (*Product, error) {
	product, err := s.findProduct(ctx, s.db, id, "")
	if err != nil {
		return nil, err
	}
	return product, nil
}

// Create adds a new product to the catalog.
// Returns ErrNameConflict if a product with the same name exists.
func (s *SQLStore) Create(ctx context.Context, p NewProduct, createdAt time.Time) (*Product, error) {
	if err := checkPrice(p.Price); err != nil {
		return nil, err
	}
	var created *Product
	txErr := s.withTransaction(ctx, "create product", func(tx *sqlx.Tx) error {
		if err := s.ensureNameFree(ctx, tx, p.Name, 0); err != nil {
			return err
		}
		var id int64
		query := s.db.Rebind("INSERT INTO products (name, quantity, price, created_at) VALUES (?, ?, ?, ?) RETURNING id")
		if err := tx.GetContext(ctx, &id, query, p.Name, p.Quantity, p.Price, createdAt.UTC()); err != nil {
			if isUniqueViolation(err) {
				return perrors.ErrNameConflict
			}
			return perrors.Storage("insert product", err)
		}
		product, err := s.findProduct(ctx, tx, id, "")
		if err != nil {
			return err
		}
		created = product
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return created, nil
}

// Update overwrites name, quantity and price of the product with the given id.
// Existence is checked before name uniqueness.
func (s *SQLStore) Update(ctx context.Context, id int64, p NewProduct) (*Product, error) {
	if err := checkPrice(p.Price); err != nil {
		return nil, err
	}
	var updated *Product
	txErr := s.withTransaction(ctx, "update product", func(tx *sqlx.Tx) error {
		if _, err := s.findProduct(ctx, tx, id, s.dialect.rowLock()); err != nil {
			return err
		}
		if err := s.ensureNameFree(ctx, tx, p.Name, id); err != nil {
			return err
		}
		query := s.db.Rebind("UPDATE products SET name = ?, quantity = ?, price = ? WHERE id = ?")
		if _, err := tx.ExecContext(ctx, query, p.Name, p.Quantity, p.Price, id); err != nil {
			if isUniqueViolation(err) {
				return perrors.ErrNameConflict
			}
			return perrors.Storage("update product", err)
		}
		product, err := s.findProduct(ctx, tx, id, "")
		if err != nil {
			return err
		}
		updated = product
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return updated, nil
}

// DeleteByID removes a product by its unique identifier.
// Returns ErrProductNotFound if no product exists with the given ID.
func (s *SQLStore) DeleteByID(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind("DELETE FROM products WHERE id = ?"), id)
	if err != nil {
		return perrors.Storage("delete product", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return perrors.Storage("delete product", err)
	}
	if count == 0 {
		return perrors.ErrProductNotFound
	}
	return nil
}

// Purchase sells quantity units of a product. The stock decrement and the sale insert
// share one transaction: both are committed or neither is.
func (s *SQLStore) Purchase(ctx context.Context, id int64, quantity int64, soldAt time.Time) (*Sale, error) {
	var sale *Sale
	txErr := s.withTransaction(ctx, "purchase product", func(tx *sqlx.Tx) error {
		product, err := s.findProduct(ctx, tx, id, s.dialect.rowLock())
		if err != nil {
			return err
		}
		if quantity > product.Quantity {
			return &perrors.InsufficientStockError{ProductID: id, Available: product.Quantity, Requested: quantity}
		}

		res, err := tx.ExecContext(ctx,
			s.db.Rebind("UPDATE products SET quantity = quantity - ? WHERE id = ? AND quantity >= ?"),
			quantity, id, quantity)
		if err != nil {
			return perrors.Storage("decrement stock", err)
		}
		if count, err := res.RowsAffected(); err != nil {
			return perrors.Storage("decrement stock", err)
		} else if count == 0 {
			return &perrors.InsufficientStockError{ProductID: id, Available: product.Quantity, Requested: quantity}
		}

		total := product.Price.Mul(decimal.NewFromInt(quantity))
		if !amountInRange(total) {
			return perrors.NewValidationError("quantity", "total_range")
		}
		var saleID int64
		query := s.db.Rebind("INSERT INTO sales (product_id, product_name, quantity_sold, total_amount, sale_date) VALUES (?, ?, ?, ?, ?) RETURNING id")
		if err := tx.GetContext(ctx, &saleID, query, product.ID, product.Name, quantity, total, soldAt.UTC()); err != nil {
			return perrors.Storage("insert sale", err)
		}
		var recorded Sale
		if err := tx.GetContext(ctx, &recorded, s.db.Rebind("SELECT "+saleColumns+" FROM sales WHERE id = ?"), saleID); err != nil {
			return perrors.Storage("read sale", err)
		}
		recorded.SaleDate = recorded.SaleDate.UTC()
		sale = &recorded
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return sale, nil
}

// FindAllSales retrieves the whole ledger, newest first.
func (s *SQLStore) FindAllSales(ctx context.Context) ([]Sale, error) {
	sales := []Sale{}
	if err := s.db.SelectContext(ctx, &sales, "SELECT "+saleColumns+" FROM sales ORDER BY id DESC"); err != nil {
		return nil, perrors.Storage("list sales", err)
	}
	for i := range sales {
		sales[i].SaleDate = sales[i].SaleDate.UTC()
	}
	return sales, nil
}

// SeedIfEmpty inserts products in one transaction when the catalog has no rows.
func (s *SQLStore) SeedIfEmpty(ctx context.Context, products []NewProduct, createdAt time.Time) (int, error) {
	for _, p := range products {
		if err := checkPrice(p.Price); err != nil {
			return 0, err
		}
	}
	inserted := 0
	txErr := s.withTransaction(ctx, "seed catalog", func(tx *sqlx.Tx) error {
		var count int64
		if err := tx.GetContext(ctx, &count, "SELECT COUNT(*) FROM products"); err != nil {
			return perrors.Storage("count products", err)
		}
		if count > 0 {
			return nil
		}
		query := s.db.Rebind("INSERT INTO products (name, quantity, price, created_at) VALUES (?, ?, ?, ?)")
		for _, p := range products {
			if _, err := tx.ExecContext(ctx, query, p.Name, p.Quantity, p.Price, createdAt.UTC()); err != nil {
				if isUniqueViolation(err) {
					return perrors.ErrNameConflict
				}
				return perrors.Storage("insert product", err)
			}
			inserted++
		}
		return nil
	})
	if txErr != nil {
		return 0, txErr
	}
	return inserted, nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return perrors.Storage("ping", s.db.PingContext(ctx))
}

// findProduct loads one product through q, which is either the database or a transaction.
func (s *SQLStore) findProduct(ctx context.Context, q sqlx.QueryerContext, id int64, lock string) (*Product, error) {
	var product Product
	query := s.db.Rebind("SELECT " + productColumns + " FROM products WHERE id = ?" + lock)
	if err := sqlx.GetContext(ctx, q, &product, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, perrors.Storage("find product", err)
	}
	return normalizeProduct(&product), nil
}

// ensureNameFree fails with ErrNameConflict when a product other than exceptID uses name.
func (s *SQLStore) ensureNameFree(ctx context.Context, tx *sqlx.Tx, name string, exceptID int64) error {
	var taken bool
	query := s.db.Rebind("SELECT EXISTS (SELECT 1 FROM products WHERE name = ? AND id <> ?)")
	if err := tx.GetContext(ctx, &taken, query, name, exceptID); err != nil {
		return perrors.Storage("check product name", err)
	}
	if taken {
		return perrors.ErrNameConflict
	}
	return nil
}

// withTransaction runs fn in a transaction, rolling back when fn fails.
func (s *SQLStore) withTransaction(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return perrors.Storage(op+": begin transaction", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return perrors.Storage(op+": rollback", errors.Join(err, rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return perrors.Storage(op+": commit", err)
	}
	return nil
}

// checkPrice rejects prices that cannot be stored and read back.
func checkPrice(price decimal.Decimal) error {
	if !amountInRange(price) {
		return perrors.NewValidationError("price", "range")
	}
	return nil
}

func amountInRange(d decimal.Decimal) bool {
	return d.Abs().LessThan(maxAmount)
}

func normalizeProduct(p *Product) *Product {
	p.CreatedAt = p.CreatedAt.UTC()
	return p
}

func normalizeProducts(products []Product) []Product {
	for i := range products {
		normalizeProduct(&products[i])
	}
	return products
}
