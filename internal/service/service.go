// Package service provides the implementation of product-related business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	perrors "github.com/abgdnv/products-ms/internal/errors"
	"github.com/abgdnv/products-ms/internal/store"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// ProductService defines the methods for managing products.
// It abstracts the underlying business logic and data access.
type ProductService interface {
	// Create adds a new, available product.
	Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error)

	// FindAll returns one page of available products together with pagination metadata.
	FindAll(ctx context.Context, pagination PaginationDto) (*PagedProducts, error)

	// FindByID returns an available product.
	// Returns a NotFoundError (ErrProductNotFound) if the product does not exist or was removed.
	FindByID(ctx context.Context, id int64) (*ProductDto, error)

	// Update applies a partial update to an available product.
	// Returns a NotFoundError (ErrProductNotFound) if the product does not exist or was removed.
	Update(ctx context.Context, id int64, product ProductUpdateDto) (*ProductDto, error)

	// Remove marks an available product as unavailable and returns it.
	// Returns a NotFoundError (ErrProductNotFound) if the product does not exist or was removed.
	Remove(ctx context.Context, id int64) (*ProductDto, error)

	// ValidateProducts checks that every requested id exists, regardless of availability.
	// Returns ErrSomeProductsNotFound if at least one id is unknown.
	ValidateProducts(ctx context.Context, ids []int64) ([]ProductDto, error)
}

// Service implements ProductService and provides methods to manage products.
type Service struct {
	repository store.ProductStore
}

// NewService creates a new instance of ProductService with the provided repository.
func NewService(repo store.ProductStore) *Service {
	return &Service{
		repository: repo,
	}
}

// ProductCreateDto represents the data transfer object for creating a new product.
type ProductCreateDto struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ProductUpdateDto is a partial update. It has no id field: the id of the target row is never changed.
type ProductUpdateDto struct {
	Name  *string          `json:"name,omitempty"`
	Price *decimal.Decimal `json:"price,omitempty"`
}

// IsEmpty reports whether the update carries no field.
func (d ProductUpdateDto) IsEmpty() bool {
	return d.Name == nil && d.Price == nil
}

// ProductDto represents the data transfer object for a product.
type ProductDto struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// PaginationDto selects a page. Both fields are 1-based and must be positive.
type PaginationDto struct {
	Page  int32 `json:"page"`
	Limit int32 `json:"limit"`
}

// PageMetadata describes the position of a page within all available products.
type PageMetadata struct {
	Total    int64 `json:"total"`
	Page     int32 `json:"page"`
	LastPage int64 `json:"lastPage"`
}

// PagedProducts is one page of products.
type PagedProducts struct {
	Data     []ProductDto `json:"data"`
	Metadata PageMetadata `json:"metadata"`
}

// Create creates a new product and returns it as a ProductDto.
func (s *Service) Create(ctx context.Context, product ProductCreateDto) (*ProductDto, error) {
	p, err := s.repository.Create(ctx, store.CreateParams{Name: product.Name, Price: product.Price})
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return toDto(p), nil
}

// FindAll counts the available products and fetches the requested page concurrently.
// The two reads are independent, so total may not describe the returned page exactly under concurrent writes.
func (s *Service) FindAll(ctx context.Context, pagination PaginationDto) (*PagedProducts, error) {
	if pagination.Page < 1 || pagination.Limit < 1 {
		return nil, fmt.Errorf("page and limit must be positive, got page=%d limit=%d: %w",
			pagination.Page, pagination.Limit, perrors.ErrInvalidArgument)
	}
	filter := store.Filter{AvailableOnly: true}
	page := store.Page{
		Offset: int64(pagination.Page-1) * int64(pagination.Limit),
		Limit:  pagination.Limit,
	}

	var (
		total    int64
		products []store.Product
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repository.Count(gCtx, filter)
		if err != nil {
			return fmt.Errorf("failed to count products: %w", err)
		}
		total = n
		return nil
	})
	g.Go(func() error {
		list, err := s.repository.FindMany(gCtx, filter, page)
		if err != nil {
			return fmt.Errorf("failed to fetch products: %w", err)
		}
		products = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &PagedProducts{
		Data: toDtos(products),
		Metadata: PageMetadata{
			Total:    total,
			Page:     pagination.Page,
			LastPage: lastPage(total, pagination.Limit),
		},
	}, nil
}

// FindByID retrieves an available product by its ID.
func (s *Service) FindByID(ctx context.Context, id int64) (*ProductDto, error) {
	product, err := s.repository.FindFirst(ctx, store.ByID(id, true))
	if err != nil {
		if errors.Is(err, perrors.ErrProductNotFound) {
			return nil, &perrors.NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to fetch product by ID %d: %w", id, err)
	}

	return toDto(product), nil
}

// Update checks that the product is available and merges the provided fields into it.
// An empty update returns the current product unchanged.
func (s *Service) Update(ctx context.Context, id int64, product ProductUpdateDto) (*ProductDto, error) {
	current, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if product.IsEmpty() {
		return current, nil
	}

	updated, err := s.repository.Update(ctx, id, store.UpdateParams{Name: product.Name, Price: product.Price})
	if err != nil {
		if errors.Is(err, perrors.ErrProductNotFound) {
			return nil, &perrors.NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to update product with ID %d: %w", id, err)
	}

	return toDto(updated), nil
}

// Remove soft-deletes an available product by clearing its availability flag.
func (s *Service) Remove(ctx context.Context, id int64) (*ProductDto, error) {
	if _, err := s.FindByID(ctx, id); err != nil {
		return nil, err
	}

	unavailable := false
	removed, err := s.repository.Update(ctx, id, store.UpdateParams{Available: &unavailable})
	if err != nil {
		if errors.Is(err, perrors.ErrProductNotFound) {
			return nil, &perrors.NotFoundError{ID: id}
		}
		return nil, fmt.Errorf("failed to remove product with ID %d: %w", id, err)
	}

	return toDto(removed), nil
}

// ValidateProducts collapses duplicate ids and checks that each of them has a row.
// Availability is not considered. Only the cardinality is compared, so the error does not name the missing ids.
func (s *Service) ValidateProducts(ctx context.Context, ids []int64) ([]ProductDto, error) {
	unique := uniqueIDs(ids)
	if len(unique) == 0 {
		return []ProductDto{}, nil
	}

	products, err := s.repository.FindMany(ctx, store.Filter{IDs: unique}, store.Page{})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch products: %w", err)
	}
	if len(products) != len(unique) {
		return nil, perrors.ErrSomeProductsNotFound
	}

	return toDtos(products), nil
}

// lastPage returns ceil(total / limit).
func lastPage(total int64, limit int32) int64 {
	l := int64(limit)
	return (total + l - 1) / l
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}

// toDto converts a store.Product to a ProductDto.
func toDto(product *store.Product) *ProductDto {
	return &ProductDto{
		ID:        product.ID,
		Name:      product.Name,
		Price:     product.Price,
		Available: product.Available,
		CreatedAt: product.CreatedAt,
		UpdatedAt: product.UpdatedAt,
	}
}

func toDtos(products []store.Product) []ProductDto {
	dtos := make([]ProductDto, len(products))
	for i := range products {
		dtos[i] = *toDto(&products[i])
	}
	return dtos
}
