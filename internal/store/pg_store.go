package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	perrors "github.com/abgdnv/products-ms/internal/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const productColumns = "id, name, price, available, created_at, updated_at"

// PgStore implements ProductStore using PostgreSQL as the data store.
type PgStore struct {
	db *pgxpool.Pool
}

// NewPgStore creates a new instance of ProductStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

// where renders the filter as a WHERE clause, appending its arguments to args.
func (f Filter) where(args []any) (string, []any) {
	var conds []string
	if f.IDs != nil {
		args = append(args, f.IDs)
		conds = append(conds, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if f.AvailableOnly {
		conds = append(conds, "available")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Count returns the number of products matching the filter.
func (p *PgStore) Count(ctx context.Context, filter Filter) (int64, error) {
	where, args := filter.where(nil)
	var count int64
	if err := p.db.QueryRow(ctx, "SELECT count(*) FROM products"+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return count, nil
}

// FindMany retrieves the products matching the filter, ordered by id, within the page.
// It returns a slice of products, which may be empty.
func (p *PgStore) FindMany(ctx context.Context, filter Filter, page Page) ([]Product, error) {
	where, args := filter.where(nil)
	var sb strings.Builder
	sb.WriteString("SELECT " + productColumns + " FROM products" + where + " ORDER BY id")
	if page.Limit > 0 {
		args = append(args, page.Limit)
		sb.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)))
	}
	if page.Offset > 0 {
		args = append(args, page.Offset)
		sb.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)))
	}

	rows, err := p.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	products, err := pgx.CollectRows(rows, pgx.RowToStructByName[Product])
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

// FindFirst retrieves the first product matching the filter.
// Returns ErrProductNotFound if no product matches.
func (p *PgStore) FindFirst(ctx context.Context, filter Filter) (*Product, error) {
	where, args := filter.where(nil)
	rows, err := p.db.Query(ctx, "SELECT "+productColumns+" FROM products"+where+" ORDER BY id LIMIT 1", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find product: %w", err)
	}
	product, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Product])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to scan product: %w", err)
	}
	return &product, nil
}

// Create adds a new product. The row is available by default.
func (p *PgStore) Create(ctx context.Context, params CreateParams) (*Product, error) {
	rows, err := p.db.Query(ctx,
		"INSERT INTO products (name, price) VALUES ($1, $2) RETURNING "+productColumns,
		params.Name, params.Price)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	product, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Product])
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return &product, nil
}

// Update applies the non-nil fields of params to the product and bumps updated_at.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) Update(ctx context.Context, id int64, params UpdateParams) (*Product, error) {
	rows, err := p.db.Query(ctx, `
		UPDATE products SET
			name       = COALESCE($2::text, name),
			price      = COALESCE($3::numeric, price),
			available  = COALESCE($4::boolean, available),
			updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		id, params.Name, params.Price, params.Available)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	product, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[Product])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &product, nil
}

// Ping checks the database connection.
func (p *PgStore) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}
