// Package store provides an interface for product storage operations.
package store

import (
	"context"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// Product is a row of the products table.
type Product struct {
	ID        int64           `db:"id"`
	Name      string          `db:"name"`
	Price     decimal.Decimal `db:"price"`
	Available bool            `db:"available"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// Filter selects rows. A nil IDs slice does not restrict by id; an empty one matches nothing.
type Filter struct {
	IDs           []int64
	AvailableOnly bool
}

// ByID selects the row with the given id.
func ByID(id int64, availableOnly bool) Filter {
	return Filter{IDs: []int64{id}, AvailableOnly: availableOnly}
}

// Match reports whether p satisfies the filter.
func (f Filter) Match(p Product) bool {
	if f.AvailableOnly && !p.Available {
		return false
	}
	if f.IDs != nil && !slices.Contains(f.IDs, p.ID) {
		return false
	}
	return true
}

// Page is an offset window over the store's default order. Limit 0 means no limit.
type Page struct {
	Offset int64
	Limit  int32
}

// CreateParams holds the fields of a new product. The store assigns the id and marks the product available.
type CreateParams struct {
	Name  string
	Price decimal.Decimal
}

// UpdateParams is a partial update: nil fields are left untouched.
type UpdateParams struct {
	Name      *string
	Price     *decimal.Decimal
	Available *bool
}

// IsEmpty reports whether no field is set.
func (p UpdateParams) IsEmpty() bool {
	return p.Name == nil && p.Price == nil && p.Available == nil
}

// ProductStore is an interface for product storage operations.
// It abstracts the underlying data store, allowing for different implementations (e.g., in-memory, database).
type ProductStore interface {
	// Count returns the number of rows matching the filter.
	Count(ctx context.Context, filter Filter) (int64, error)

	// FindMany returns the rows matching the filter within the page, ordered by id.
	// Returns an empty slice if nothing matches.
	FindMany(ctx context.Context, filter Filter, page Page) ([]Product, error)

	// FindFirst returns the first row matching the filter.
	// Returns ErrProductNotFound if no row matches.
	FindFirst(ctx context.Context, filter Filter) (*Product, error)

	// Create adds a new product.
	Create(ctx context.Context, params CreateParams) (*Product, error)

	// Update applies a partial update to the product with the given id.
	// Returns ErrProductNotFound if the row does not exist.
	Update(ctx context.Context, id int64, params UpdateParams) (*Product, error)

	// Ping checks that the store is reachable.
	Ping(ctx context.Context) error
}
