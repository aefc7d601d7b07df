// Package e2e drives the inventory HTTP API end to end.
// The suite opens a real SQLite database in a temporary directory, applies the embedded
// migrations and serves the application handler from an httptest.Server.
// Each test starts from empty tables.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/abgdnv/stockroom/internal/app"
	"github.com/abgdnv/stockroom/internal/config"
	"github.com/abgdnv/stockroom/internal/service"
	"github.com/abgdnv/stockroom/internal/store"
	"github.com/abgdnv/stockroom/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/stockroom/pkg/config"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// skipE2ETests is the environment variable that can be set to skip E2E tests.
const skipE2ETests = "INVENTORY_SKIP_E2E_TESTS"

const (
	productURL = "/api/v1/products"
	salesURL   = "/api/v1/sales"
)

type InventoryE2ESuite struct {
	suite.Suite
	db         *sqlx.DB
	deps       *app.Dependencies
	server     *httptest.Server
	httpClient *http.Client
	logger     *slog.Logger
	ctx        context.Context
}

// testConfig creates a configuration with metrics on and every optional listener off.
func testConfig(dbPath string) *config.Config {
	var cfg config.Config
	cfg.HTTPServer.Host = "127.0.0.1"
	cfg.HTTPServer.MaxHeaderBytes = 1 << 20
	cfg.HTTPServer.Timeout.Read = time.Minute
	cfg.HTTPServer.Timeout.Write = time.Minute
	cfg.HTTPServer.Timeout.Idle = time.Minute
	cfg.HTTPServer.Timeout.ReadHeader = time.Minute
	cfg.Database = pkgconfig.DatabaseConfig{Driver: pkgconfig.DriverSQLite, URL: dbPath, Timeout: 5 * time.Second}
	cfg.Metrics = pkgconfig.MetricsConfig{Enabled: true, Path: "/metrics"}
	return &cfg
}

func (s *InventoryE2ESuite) SetupSuite() {
	s.ctx = context.Background()
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	dbPath := filepath.Join(s.T().TempDir(), "inventory.db")
	cfg := testConfig(dbPath)

	var err error
	s.db, err = bootstrap.NewDB(s.ctx, cfg.Database)
	require.NoError(s.T(), err, "Failed to open SQLite database")
	require.NoError(s.T(), store.Migrate(s.db, dbPath), "Failed to apply migrations")

	s.deps = app.SetupDependencies(s.db, s.logger)
	s.server = httptest.NewServer(app.SetupHttpHandler(s.deps, cfg))
	s.httpClient = s.server.Client()
}

func (s *InventoryE2ESuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
}

// SetupTest empties both tables so every test starts from a blank inventory.
func (s *InventoryE2ESuite) SetupTest() {
	_, err := s.db.ExecContext(s.ctx, "DELETE FROM sales")
	require.NoError(s.T(), err)
	_, err = s.db.ExecContext(s.ctx, "DELETE FROM products")
	require.NoError(s.T(), err)
}

func TestInventoryE2E(t *testing.T) {
	if os.Getenv(skipE2ETests) == "1" {
		t.Skip("Skipping E2E tests based on " + skipE2ETests + " env var")
	}
	suite.Run(t, new(InventoryE2ESuite))
}

// --------------------------------------------------------------------------
// ---------------------------- Helper methods ------------------------------
// --------------------------------------------------------------------------

type productPayload struct {
	Name     string `json:"name"`
	Quantity int64  `json:"quantity"`
	Price    string `json:"price"`
}

type purchasePayload struct {
	Quantity int64 `json:"quantity"`
}

// doRequest sends a JSON request and returns the response body and status code.
func (s *InventoryE2ESuite) doRequest(method, path string, payload any) ([]byte, int) {
	s.T().Helper()
	var body io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		require.NoError(s.T(), err)
		body = bytes.NewBuffer(payloadBytes)
	}
	req, err := http.NewRequestWithContext(s.ctx, method, s.server.URL+path, body)
	require.NoError(s.T(), err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.do(req)
}

// doForm sends a form-encoded request the way an HTML form would.
func (s *InventoryE2ESuite) doForm(method, path string, values url.Values) ([]byte, int) {
	s.T().Helper()
	req, err := http.NewRequestWithContext(s.ctx, method, s.server.URL+path, strings.NewReader(values.Encode()))
	require.NoError(s.T(), err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *InventoryE2ESuite) do(req *http.Request) ([]byte, int) {
	s.T().Helper()
	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err, "HTTP request failed")
	defer func() {
		require.NoError(s.T(), resp.Body.Close())
	}()
	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)
	return bodyBytes, resp.StatusCode
}

func (s *InventoryE2ESuite) createProduct(name string, quantity int64, price string) service.ProductDto {
	s.T().Helper()
	body, status := s.doRequest(http.MethodPost, productURL, productPayload{Name: name, Quantity: quantity, Price: price})
	require.Equal(s.T(), http.StatusCreated, status, string(body))
	var product service.ProductDto
	require.NoError(s.T(), json.Unmarshal(body, &product))
	return product
}

func (s *InventoryE2ESuite) getProduct(id int64) (service.ProductDto, int) {
	s.T().Helper()
	body, status := s.doRequest(http.MethodGet, fmt.Sprintf("%s/%d", productURL, id), nil)
	var product service.ProductDto
	if status == http.StatusOK {
		require.NoError(s.T(), json.Unmarshal(body, &product))
	}
	return product, status
}

func (s *InventoryE2ESuite) listProducts(query string) []service.ProductDto {
	s.T().Helper()
	path := productURL
	if query != "" {
		path += "?q=" + url.QueryEscape(query)
	}
	body, status := s.doRequest(http.MethodGet, path, nil)
	require.Equal(s.T(), http.StatusOK, status)
	var products []service.ProductDto
	require.NoError(s.T(), json.Unmarshal(body, &products))
	return products
}

func (s *InventoryE2ESuite) purchase(id, quantity int64) ([]byte, int) {
	s.T().Helper()
	return s.doRequest(http.MethodPost, fmt.Sprintf("%s/%d/purchase", productURL, id), purchasePayload{Quantity: quantity})
}

func (s *InventoryE2ESuite) listSales() []service.SaleDto {
	s.T().Helper()
	body, status := s.doRequest(http.MethodGet, salesURL, nil)
	require.Equal(s.T(), http.StatusOK, status)
	var sales []service.SaleDto
	require.NoError(s.T(), json.Unmarshal(body, &sales))
	return sales
}

// --------------------------------------------------------------
// ---------------------- E2E test methods ----------------------
// --------------------------------------------------------------

func (s *InventoryE2ESuite) TestPurchaseScenario_E2E() {
	// given
	laptop := s.createProduct("Dell Laptop", 10, "1200.00")

	// when
	body, status := s.purchase(laptop.ID, 3)

	// then
	s.Require().Equal(http.StatusCreated, status, string(body))
	var sale service.SaleDto
	s.Require().NoError(json.Unmarshal(body, &sale))
	s.Equal(laptop.ID, sale.ProductID)
	s.Equal("Dell Laptop", sale.ProductName)
	s.Equal(int64(3), sale.QuantitySold)
	s.True(decimal.RequireFromString("3600").Equal(sale.TotalAmount), "total was %s", sale.TotalAmount)

	after, status := s.getProduct(laptop.ID)
	s.Require().Equal(http.StatusOK, status)
	s.Equal(int64(7), after.Quantity)

	sales := s.listSales()
	s.Require().Len(sales, 1)
	s.Equal(sale.ID, sales[0].ID)
}

func (s *InventoryE2ESuite) TestPurchase_Rejections_E2E() {
	laptop := s.createProduct("Dell Laptop", 2, "1200.00")

	testCases := []struct {
		name         string
		productID    int64
		quantity     int64
		expectedCode int
	}{
		{name: "more than stock", productID: laptop.ID, quantity: 5, expectedCode: http.StatusUnprocessableEntity},
		{name: "zero quantity", productID: laptop.ID, quantity: 0, expectedCode: http.StatusBadRequest},
		{name: "negative quantity", productID: laptop.ID, quantity: -1, expectedCode: http.StatusBadRequest},
		{name: "unknown product", productID: laptop.ID + 1000, quantity: 1, expectedCode: http.StatusNotFound},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			// when
			_, status := s.purchase(tc.productID, tc.quantity)

			// then
			s.Equal(tc.expectedCode, status)
		})
	}

	// nothing changed
	after, _ := s.getProduct(laptop.ID)
	s.Equal(int64(2), after.Quantity)
	s.Empty(s.listSales())
}

func (s *InventoryE2ESuite) TestPurchase_InsufficientStockBody_E2E() {
	// given
	laptop := s.createProduct("Dell Laptop", 2, "1200.00")

	// when
	body, status := s.purchase(laptop.ID, 5)

	// then
	s.Require().Equal(http.StatusUnprocessableEntity, status)
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(body, &resp))
	s.Equal("Insufficient stock", resp["error"])
	s.EqualValues(2, resp["available"])
	s.EqualValues(5, resp["requested"])
}

func (s *InventoryE2ESuite) TestConcurrentPurchases_NeverOversell_E2E() {
	// given
	product := s.createProduct("Limited Edition", 5, "10.00")
	const buyers = 10

	// when
	var wg sync.WaitGroup
	statuses := make(chan int, buyers)
	for range buyers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, err := http.NewRequestWithContext(s.ctx, http.MethodPost,
				fmt.Sprintf("%s%s/%d/purchase", s.server.URL, productURL, product.ID),
				strings.NewReader(`{"quantity":1}`))
			if err != nil {
				statuses <- 0
				return
			}
			req.Header.Set("Content-Type", "application/json")
			resp, err := s.httpClient.Do(req)
			if err != nil {
				statuses <- 0
				return
			}
			_ = resp.Body.Close()
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	// then
	counts := map[int]int{}
	for status := range statuses {
		counts[status]++
	}
	s.Equal(5, counts[http.StatusCreated])
	s.Equal(5, counts[http.StatusUnprocessableEntity])
	after, _ := s.getProduct(product.ID)
	s.Equal(int64(0), after.Quantity)
	s.Len(s.listSales(), 5)
}

func (s *InventoryE2ESuite) TestProductLifecycle_E2E() {
	// given
	created := s.createProduct("Office Chair", 4, "149.99")
	s.Positive(created.ID)
	s.False(created.CreatedAt.IsZero())

	// when
	body, status := s.doRequest(http.MethodPut, fmt.Sprintf("%s/%d", productURL, created.ID),
		productPayload{Name: "Ergonomic Office Chair", Quantity: 6, Price: "179.50"})

	// then
	s.Require().Equal(http.StatusOK, status, string(body))
	fetched, status := s.getProduct(created.ID)
	s.Require().Equal(http.StatusOK, status)
	s.Equal("Ergonomic Office Chair", fetched.Name)
	s.Equal(int64(6), fetched.Quantity)
	s.True(decimal.RequireFromString("179.50").Equal(fetched.Price))
	s.True(created.CreatedAt.Equal(fetched.CreatedAt), "update keeps created_at")

	// when
	_, status = s.doRequest(http.MethodDelete, fmt.Sprintf("%s/%d", productURL, created.ID), nil)

	// then
	s.Equal(http.StatusNoContent, status)
	_, status = s.getProduct(created.ID)
	s.Equal(http.StatusNotFound, status)
	_, status = s.doRequest(http.MethodDelete, fmt.Sprintf("%s/%d", productURL, created.ID), nil)
	s.Equal(http.StatusNotFound, status)
}

func (s *InventoryE2ESuite) TestDeleteKeepsSales_E2E() {
	// given
	monitor := s.createProduct("Monitor", 3, "250.00")
	_, status := s.purchase(monitor.ID, 1)
	s.Require().Equal(http.StatusCreated, status)

	// when
	_, status = s.doRequest(http.MethodDelete, fmt.Sprintf("%s/%d", productURL, monitor.ID), nil)

	// then
	s.Require().Equal(http.StatusNoContent, status)
	sales := s.listSales()
	s.Require().Len(sales, 1)
	s.Equal("Monitor", sales[0].ProductName)
	s.Equal(monitor.ID, sales[0].ProductID)
}

func (s *InventoryE2ESuite) TestAddProduct_Validation_E2E() {
	s.createProduct("Taken", 1, "1.00")

	testCases := []struct {
		name         string
		payload      productPayload
		expectedCode int
	}{
		{name: "empty name", payload: productPayload{Name: "  ", Quantity: 1, Price: "1.00"}, expectedCode: http.StatusBadRequest},
		{name: "zero price", payload: productPayload{Name: "Free", Quantity: 1, Price: "0"}, expectedCode: http.StatusBadRequest},
		{name: "negative quantity", payload: productPayload{Name: "Owed", Quantity: -1, Price: "1.00"}, expectedCode: http.StatusBadRequest},
		{name: "price beyond float range", payload: productPayload{Name: "Overflow", Quantity: 1, Price: "1e400"}, expectedCode: http.StatusBadRequest},
		{name: "price above the cap", payload: productPayload{Name: "Pricey", Quantity: 1, Price: "1000000000001"}, expectedCode: http.StatusBadRequest},
		{name: "duplicate name", payload: productPayload{Name: "Taken", Quantity: 1, Price: "1.00"}, expectedCode: http.StatusConflict},
		{name: "name is trimmed before the conflict check", payload: productPayload{Name: " Taken ", Quantity: 1, Price: "1.00"}, expectedCode: http.StatusConflict},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			// when
			_, status := s.doRequest(http.MethodPost, productURL, tc.payload)

			// then
			s.Equal(tc.expectedCode, status)
		})
	}
	s.Len(s.listProducts(""), 1)
}

func (s *InventoryE2ESuite) TestAddProduct_FromForm_E2E() {
	// when
	body, status := s.doForm(http.MethodPost, productURL, url.Values{
		"name":     {"Desk Lamp"},
		"quantity": {""},
		"price":    {"19.90"},
	})

	// then
	s.Require().Equal(http.StatusCreated, status, string(body))
	var product service.ProductDto
	s.Require().NoError(json.Unmarshal(body, &product))
	s.Equal(int64(0), product.Quantity)

	// when
	body, status = s.doForm(http.MethodPost, productURL, url.Values{
		"name":     {"Broken"},
		"quantity": {"many"},
		"price":    {"abc"},
	})

	// then
	s.Require().Equal(http.StatusBadRequest, status)
	var resp map[string]map[string]string
	s.Require().NoError(json.Unmarshal(body, &resp))
	s.Contains(resp["validation_errors"], "quantity")
	s.Contains(resp["validation_errors"], "price")
}

func (s *InventoryE2ESuite) TestSearch_E2E() {
	s.createProduct("Dell Laptop", 1, "1.00")
	s.createProduct("Dell Monitor", 1, "1.00")
	s.createProduct("Keyboard", 1, "1.00")
	s.createProduct("100% Cotton Shirt", 1, "1.00")

	testCases := []struct {
		name          string
		query         string
		expectedNames []string
	}{
		{name: "blank lists everything", query: "", expectedNames: []string{"Dell Laptop", "Dell Monitor", "Keyboard", "100% Cotton Shirt"}},
		{name: "substring", query: "Dell", expectedNames: []string{"Dell Laptop", "Dell Monitor"}},
		{name: "ascii case-insensitive on sqlite", query: "dell", expectedNames: []string{"Dell Laptop", "Dell Monitor"}},
		{name: "wildcard is literal", query: "%", expectedNames: []string{"100% Cotton Shirt"}},
		{name: "no match", query: "Phone", expectedNames: []string{}},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			// when
			products := s.listProducts(tc.query)

			// then
			names := make([]string, 0, len(products))
			for _, p := range products {
				names = append(names, p.Name)
			}
			s.Equal(tc.expectedNames, names)
		})
	}
}

func (s *InventoryE2ESuite) TestSeedCatalog_E2E() {
	// when
	inserted, err := s.deps.InventoryService.SeedCatalog(s.ctx)

	// then
	s.Require().NoError(err)
	s.Equal(len(service.DefaultCatalog()), inserted)
	s.Len(s.listProducts(""), inserted)

	// when
	again, err := s.deps.InventoryService.SeedCatalog(s.ctx)

	// then
	s.Require().NoError(err)
	s.Zero(again)
}

func (s *InventoryE2ESuite) TestOperationalEndpoints_E2E() {
	s.listProducts("")

	_, status := s.doRequest(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, status)

	body, status := s.doRequest(http.MethodGet, "/metrics", nil)
	s.Equal(http.StatusOK, status)
	assert.Contains(s.T(), string(body), "inventory_operation_duration_seconds")
}
