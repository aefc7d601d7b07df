// Package service provides the inventory core: catalog maintenance and the sales ledger.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	perrors "github.com/abgdnv/stockroom/internal/errors"
	"github.com/abgdnv/stockroom/internal/metrics"
	"github.com/abgdnv/stockroom/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// InventoryService defines the operations the presentation layer may call.
// Every operation completes or fails as a unit; failures carry an internal/errors kind.
type InventoryService interface {
	// ListProducts returns all products ordered by ascending id.
	// Returns an empty slice if no products exist.
	ListProducts(ctx context.Context) ([]ProductDto, error)

	// SearchProducts returns products whose name contains term, ordered by ascending id.
	// A blank term behaves like ListProducts.
	SearchProducts(ctx context.Context, term string) ([]ProductDto, error)

	// GetProduct retrieves a single product.
	// Returns ErrProductNotFound if no product exists with the given ID.
	GetProduct(ctx context.Context, id int64) (*ProductDto, error)

	// AddProduct validates and stores a new product.
	// Returns a ValidationError for malformed input, ErrNameConflict for a taken name.
	AddProduct(ctx context.Context, req ProductRequest) (*ProductDto, error)

	// UpdateProduct replaces name, quantity and price of an existing product.
	// Returns a ValidationError, ErrProductNotFound or ErrNameConflict.
	UpdateProduct(ctx context.Context, id int64, req ProductRequest) (*ProductDto, error)

	// DeleteProduct removes a product; its past sales stay in the ledger.
	// Returns ErrProductNotFound if no product exists with the given ID.
	DeleteProduct(ctx context.Context, id int64) error

	// PurchaseProduct sells req.Quantity units, decrementing stock and recording a sale atomically.
	// Returns a ValidationError, ErrProductNotFound or an InsufficientStockError.
	PurchaseProduct(ctx context.Context, id int64, req PurchaseRequest) (*SaleDto, error)

	// ListSales returns the whole ledger, newest sale first.
	ListSales(ctx context.Context) ([]SaleDto, error)

	// SeedCatalog inserts the sample catalog if no products exist and reports how many were inserted.
	SeedCatalog(ctx context.Context) (int, error)
}

// ProductRequest carries the user-supplied values of a product.
// Price is capped at 1e12 so every sale total stays representable in storage.
type ProductRequest struct {
	Name     string          `json:"name" validate:"required,max=255"`
	Quantity int64           `json:"quantity" validate:"gte=0"`
	Price    decimal.Decimal `json:"price" validate:"gt=0,lte=1000000000000"`
}

// PurchaseRequest carries the number of units to sell.
type PurchaseRequest struct {
	Quantity int64 `json:"quantity" validate:"gt=0"`
}

// ProductDto represents the data transfer object for a product.
type ProductDto struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

// SaleDto represents the data transfer object for a ledger entry.
type SaleDto struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	QuantitySold int64           `json:"quantity_sold"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	SaleDate     time.Time       `json:"sale_date"`
}

// Option customises a Service.
type Option func(*Service)

// WithClock replaces the time source used to stamp products and sales.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithCatalog replaces the products inserted by SeedCatalog.
func WithCatalog(catalog []ProductRequest) Option {
	return func(s *Service) {
		s.catalog = catalog
	}
}

// Service implements InventoryService on top of an InventoryStore.
type Service struct {
	store    store.InventoryStore
	validate *validator.Validate
	now      func() time.Time
	catalog  []ProductRequest
	logger   *slog.Logger
}

// NewService creates a new instance of InventoryService with the provided store.
func NewService(inventoryStore store.InventoryStore, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    inventoryStore,
		validate: newValidator(),
		now:      time.Now,
		catalog:  DefaultCatalog(),
		logger:   logger.With("component", "service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListProducts retrieves all products and returns them as ProductDtos.
func (s *Service) ListProducts(ctx context.Context) ([]ProductDto, error) {
	defer observe("list_products", time.Now())
	products, err := s.store.FindAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list products", "error", err)
		return nil, err
	}
	return toProductDtos(products), nil
}

// SearchProducts retrieves products by a name fragment. The fragment is matched as given,
// surrounding spaces included; only an all-blank term lists everything.
func (s *Service) SearchProducts(ctx context.Context, term string) ([]ProductDto, error) {
	if strings.TrimSpace(term) == "" {
		return s.ListProducts(ctx)
	}
	defer observe("search_products", time.Now())
	products, err := s.store.FindByNameContaining(ctx, term)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to search products", "term", term, "error", err)
		return nil, err
	}
	return toProductDtos(products), nil
}

// GetProduct retrieves a product by its ID.
func (s *Service) GetProduct(ctx context.Context, id int64) (*ProductDto, error) {
	defer observe("get_product", time.Now())
	product, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toProductDto(product), nil
}

// AddProduct creates a new product stamped with the current time.
func (s *Service) AddProduct(ctx context.Context, req ProductRequest) (*ProductDto, error) {
	defer observe("add_product", time.Now())
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateStruct(req); err != nil {
		s.logger.DebugContext(ctx, "Rejected product", "error", err)
		return nil, err
	}

	created, err := s.store.Create(ctx, toNewProduct(req), s.now().UTC())
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to create product", "name", req.Name, "error", err)
		return nil, err
	}
	metrics.ProductsCreatedTotal.Inc()
	s.logger.InfoContext(ctx, "Product created", "ID", created.ID, "name", created.Name)
	return toProductDto(created), nil
}

// UpdateProduct overwrites an existing product. The creation timestamp is kept.
func (s *Service) UpdateProduct(ctx context.Context, id int64, req ProductRequest) (*ProductDto, error) {
	defer observe("update_product", time.Now())
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateStruct(req); err != nil {
		s.logger.DebugContext(ctx, "Rejected product update", "ID", id, "error", err)
		return nil, err
	}

	updated, err := s.store.Update(ctx, id, toNewProduct(req))
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to update product", "ID", id, "error", err)
		return nil, err
	}
	metrics.ProductsUpdatedTotal.Inc()
	s.logger.InfoContext(ctx, "Product updated", "ID", updated.ID)
	return toProductDto(updated), nil
}

// DeleteProduct deletes a product by its ID.
func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	defer observe("delete_product", time.Now())
	if err := s.store.DeleteByID(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "Failed to delete product", "ID", id, "error", err)
		return err
	}
	metrics.ProductsDeletedTotal.Inc()
	s.logger.InfoContext(ctx, "Product deleted", "ID", id)
	return nil
}

// PurchaseProduct sells units of a product and returns the recorded sale.
func (s *Service) PurchaseProduct(ctx context.Context, id int64, req PurchaseRequest) (*SaleDto, error) {
	defer observe("purchase_product", time.Now())
	if err := s.validateStruct(req); err != nil {
		metrics.PurchasesRejectedTotal.WithLabelValues(metrics.RejectValidation).Inc()
		return nil, err
	}

	sale, err := s.store.Purchase(ctx, id, req.Quantity, s.now().UTC())
	if err != nil {
		reason := rejectReason(err)
		metrics.PurchasesRejectedTotal.WithLabelValues(reason).Inc()
		if reason == metrics.RejectStorage {
			s.logger.ErrorContext(ctx, "Purchase failed", "ID", id, "quantity", req.Quantity, "error", err)
		} else {
			s.logger.WarnContext(ctx, "Purchase rejected", "ID", id, "quantity", req.Quantity, "reason", reason)
		}
		return nil, err
	}

	metrics.SalesRecordedTotal.Inc()
	metrics.UnitsSoldTotal.Add(float64(sale.QuantitySold))
	metrics.RevenueTotal.Add(sale.TotalAmount.InexactFloat64())
	s.logger.InfoContext(ctx, "Sale recorded",
		"saleID", sale.ID, "productID", sale.ProductID, "quantity", sale.QuantitySold, "total", sale.TotalAmount.String())
	return toSaleDto(sale), nil
}

// ListSales retrieves the ledger and returns it as SaleDtos.
func (s *Service) ListSales(ctx context.Context) ([]SaleDto, error) {
	defer observe("list_sales", time.Now())
	sales, err := s.store.FindAllSales(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list sales", "error", err)
		return nil, err
	}
	dtos := make([]SaleDto, len(sales))
	for i := range sales {
		dtos[i] = *toSaleDto(&sales[i])
	}
	return dtos, nil
}

// SeedCatalog inserts the configured catalog when the product table is empty.
func (s *Service) SeedCatalog(ctx context.Context) (int, error) {
	defer observe("seed_catalog", time.Now())
	products := make([]store.NewProduct, 0, len(s.catalog))
	for _, req := range s.catalog {
		req.Name = strings.TrimSpace(req.Name)
		if err := s.validateStruct(req); err != nil {
			return 0, fmt.Errorf("invalid catalog entry %q: %w", req.Name, err)
		}
		products = append(products, toNewProduct(req))
	}

	inserted, err := s.store.SeedIfEmpty(ctx, products, s.now().UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to seed catalog", "error", err)
		return 0, err
	}
	if inserted > 0 {
		metrics.ProductsCreatedTotal.Add(float64(inserted))
		s.logger.InfoContext(ctx, "Catalog seeded", "count", inserted)
	}
	return inserted, nil
}

// validateStruct runs the validator and converts its failures into a ValidationError keyed by json field name.
func (s *Service) validateStruct(v any) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		ve := &perrors.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
		for _, fe := range fieldErrs {
			ve.Fields[fe.Field()] = fe.Tag()
		}
		return ve
	}
	return fmt.Errorf("%w: %v", perrors.ErrValidation, err)
}

// newValidator returns a validator that reports json field names and compares decimals as numbers.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, perrors.ErrProductNotFound):
		return metrics.RejectNotFound
	case errors.Is(err, perrors.ErrInsufficientStock):
		return metrics.RejectInsufficientStock
	case errors.Is(err, perrors.ErrValidation):
		return metrics.RejectValidation
	default:
		return metrics.RejectStorage
	}
}

func observe(operation string, start time.Time) {
	metrics.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func toNewProduct(req ProductRequest) store.NewProduct {
	return store.NewProduct{
		Name:     req.Name,
		Quantity: req.Quantity,
		Price:    req.Price,
	}
}

func toProductDto(p *store.Product) *ProductDto {
	return &ProductDto{
		ID:        p.ID,
		Name:      p.Name,
		Quantity:  p.Quantity,
		Price:     p.Price,
		CreatedAt: p.CreatedAt,
	}
}

func toProductDtos(products []store.Product) []ProductDto {
	dtos := make([]ProductDto, len(products))
	for i := range products {
		dtos[i] = *toProductDto(&products[i])
	}
	return dtos
}

func toSaleDto(s *store.Sale) *SaleDto {
	return &SaleDto{
		ID:           s.ID,
		ProductID:    s.ProductID,
		ProductName:  s.ProductName,
		QuantitySold: s.QuantitySold,
		TotalAmount:  s.TotalAmount,
		SaleDate:     s.SaleDate,
	}
}
