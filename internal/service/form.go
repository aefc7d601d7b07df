package service

import (
	"strconv"
	"strings"

	perrors "github.com/abgdnv/stockroom/internal/errors"
	"github.com/shopspring/decimal"
)

// ParseProductForm converts raw user-entered strings into a ProductRequest.
// An empty quantity means 0. Numbers that do not parse are reported per field as a ValidationError.
// The name is passed through untouched; trimming and range checks happen in the service.
func ParseProductForm(name, quantity, price string) (ProductRequest, error) {
	req := ProductRequest{Name: name}
	fields := map[string]string{}

	if q := strings.TrimSpace(quantity); q != "" {
		n, err := strconv.ParseInt(q, 10, 64)
		if err != nil {
			fields["quantity"] = "integer"
		}
		req.Quantity = n
	}

	switch p := strings.TrimSpace(price); p {
	case "":
		fields["price"] = "required"
	default:
		d, err := decimal.NewFromString(p)
		if err != nil {
			fields["price"] = "number"
		}
		req.Price = d
	}

	if len(fields) > 0 {
		return ProductRequest{}, &perrors.ValidationError{Fields: fields}
	}
	return req, nil
}

// ParsePurchaseForm converts the raw purchase quantity into a PurchaseRequest.
func ParsePurchaseForm(quantity string) (PurchaseRequest, error) {
	q := strings.TrimSpace(quantity)
	if q == "" {
		return PurchaseRequest{}, perrors.NewValidationError("quantity", "required")
	}
	n, err := strconv.ParseInt(q, 10, 64)
	if err != nil {
		return PurchaseRequest{}, perrors.NewValidationError("quantity", "integer")
	}
	return PurchaseRequest{Quantity: n}, nil
}
