// Package metrics holds the Prometheus collectors of the inventory core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Reasons a purchase can be rejected with.
const (
	RejectValidation        = "validation"
	RejectNotFound          = "not_found"
	RejectInsufficientStock = "insufficient_stock"
	RejectStorage           = "storage"
)

var (
	ProductsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_products_created_total",
		Help: "Total number of products added to the catalog",
	})

	ProductsUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_products_updated_total",
		Help: "Total number of product updates",
	})

	ProductsDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_products_deleted_total",
		Help: "Total number of products removed from the catalog",
	})

	SalesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_sales_recorded_total",
		Help: "Total number of sales appended to the ledger",
	})

	UnitsSoldTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_units_sold_total",
		Help: "Total number of units sold",
	})

	RevenueTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_revenue_total",
		Help: "Sum of sale totals",
	})

	PurchasesRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_purchases_rejected_total",
		Help: "Total number of rejected purchases",
	}, []string{"reason"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_operation_duration_seconds",
		Help:    "Latency of inventory service operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)
