package errors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := error(&ValidationError{Fields: map[string]string{"price": "gt", "name": "required"}})

	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrStorage)
	assert.Equal(t, "validation failed: name: required; price: gt", err.Error())

	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
	assert.Equal(t, "required", vErr.Fields["name"])
}

func TestInsufficientStockError(t *testing.T) {
	err := error(&InsufficientStockError{ProductID: 7, Available: 12, Requested: 20})

	assert.ErrorIs(t, err, ErrInsufficientStock)
	assert.Equal(t, "insufficient stock for product 7: available 12, requested 20", err.Error())
}

func TestStorage(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Storage("insert product", nil))
	})

	t.Run("matches sentinel and cause", func(t *testing.T) {
		err := Storage("list products", context.Canceled)

		assert.ErrorIs(t, err, ErrStorage)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, "storage failure: list products: context canceled", err.Error())
	})
}
