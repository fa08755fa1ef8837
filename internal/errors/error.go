// Package errors provides custom error types for product-related operations.
package errors

import (
	"errors"
	"fmt"
)

var ErrProductNotFound = errors.New("product not found")

var ErrInvalidArgument = errors.New("invalid argument")

// ErrSomeProductsNotFound is returned by batch validation when at least one requested id has no row.
var ErrSomeProductsNotFound = fmt.Errorf("some products were not found: %w", ErrInvalidArgument)

// NotFoundError reports a missing or unavailable product together with the requested id.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("Product with id #%d not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrProductNotFound
}
