package store

import (
	"context"
	"slices"
	"sync"
	"time"

	perrors "github.com/abgdnv/products-ms/internal/errors"
)

// InMemoryStore implements ProductStore using a map. Used by tests and the "memory" database driver.
type InMemoryStore struct {
	mu       sync.RWMutex
	products map[int64]Product
	nextID   int64
	now      func() time.Time
}

// NewInMemoryStore creates an empty in-memory store. Ids start at 1.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		products: make(map[int64]Product),
		nextID:   1,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// sorted returns the rows matching filter in id order. Caller holds the lock.
func (s *InMemoryStore) sorted(filter Filter) []Product {
	list := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Match(p) {
			list = append(list, p)
		}
	}
	slices.SortFunc(list, func(a, b Product) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return list
}

// Count returns the number of products matching the filter.
func (s *InMemoryStore) Count(_ context.Context, filter Filter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, p := range s.products {
		if filter.Match(p) {
			n++
		}
	}
	return n, nil
}

// FindMany returns the products matching the filter in ascending id order, windowed by page.
// A zero page limit returns every row from the offset on.
func (s *InMemoryStore) FindMany(_ context.Context, filter Filter, page Page) ([]Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.sorted(filter)
	offset := int(max(page.Offset, 0))
	if offset >= len(list) {
		return []Product{}, nil
	}
	list = list[offset:]
	if page.Limit > 0 && int(page.Limit) < len(list) {
		list = list[:page.Limit]
	}
	return list, nil
}

// FindFirst returns the lowest-id product matching the filter or perrors.ErrProductNotFound.
func (s *InMemoryStore) FindFirst(_ context.Context, filter Filter) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.sorted(filter)
	if len(list) == 0 {
		return nil, perrors.ErrProductNotFound
	}
	return &list[0], nil
}

// Create stores a new available product under the next id. Names are not required to be unique.
func (s *InMemoryStore) Create(_ context.Context, params CreateParams) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	product := Product{
		ID:        s.nextID,
		Name:      params.Name,
		Price:     params.Price,
		Available: true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.nextID++
	s.products[product.ID] = product

	return &product, nil
}

// Update applies the non-nil fields of params to the product with the given id and refreshes
// UpdatedAt. It returns perrors.ErrProductNotFound if no such product exists.
func (s *InMemoryStore) Update(_ context.Context, id int64, params UpdateParams) (*Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, ok := s.products[id]
	if !ok {
		return nil, perrors.ErrProductNotFound
	}
	if params.Name != nil {
		product.Name = *params.Name
	}
	if params.Price != nil {
		product.Price = *params.Price
	}
	if params.Available != nil {
		product.Available = *params.Available
	}
	product.UpdatedAt = s.now()
	s.products[id] = product

	return &product, nil
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(context.Context) error {
	return nil
}
