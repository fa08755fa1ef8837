//go:build integration

package store

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	perrors "github.com/abgdnv/products-ms/internal/errors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const skipIntegrationTests = "PRODUCTS_SKIP_INTEGRATION_TESTS"

// PgStoreSuite runs PgStore against a PostgreSQL container with the service migrations applied.
type PgStoreSuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	store       *PgStore
	logger      *slog.Logger
	ctx         context.Context
}

func (s *PgStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("products_db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgxpool")
	for i := range 10 {
		s.logger.Info("Pinging PostgreSQL database", "attempt", i+1)
		if err = s.dbPool.Ping(s.ctx); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	require.NoError(s.T(), err, "Failed to connect to PostgreSQL after retries")

	wd, _ := os.Getwd()
	m, err := migrate.New("file://"+filepath.Join(wd, "../../migrations"), connStr)
	require.NoError(s.T(), err, "Failed to create migrate instance")
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		_, _ = m.Close()
		require.NoError(s.T(), err, "Failed to apply migrations")
	}
	_, _ = m.Close()

	s.store = NewPgStore(s.dbPool)
}

func (s *PgStoreSuite) TearDownSuite() {
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("failed to terminate PostgreSQL container", "error", err)
		}
	}
}

// SetupTest isolates each test by truncating the table and restarting the identity.
func (s *PgStoreSuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE products RESTART IDENTITY")
	require.NoError(s.T(), err)
}

func TestPgStoreSuite(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" {
		t.Skip("Skipping integration tests based on " + skipIntegrationTests + " env var")
	}
	suite.Run(t, new(PgStoreSuite))
}

func (s *PgStoreSuite) create(name, price string) Product {
	p, err := s.store.Create(s.ctx, CreateParams{Name: name, Price: decimal.RequireFromString(price)})
	s.Require().NoError(err)
	return *p
}

func (s *PgStoreSuite) TestCreateAndFindFirst() {
	// given
	created := s.create("Keyboard", "49.99")

	// when
	found, err := s.store.FindFirst(s.ctx, ByID(created.ID, true))

	// then
	s.Require().NoError(err)
	s.Equal(int64(1), found.ID)
	s.Equal("Keyboard", found.Name)
	s.True(decimal.RequireFromString("49.99").Equal(found.Price))
	s.True(found.Available)
	s.False(found.CreatedAt.IsZero())
}

func (s *PgStoreSuite) TestFindFirst_NotFound() {
	_, err := s.store.FindFirst(s.ctx, ByID(999, true))
	s.ErrorIs(err, perrors.ErrProductNotFound)
}

func (s *PgStoreSuite) TestFindManyAndCount() {
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		s.create(name, "1.00")
	}
	unavailable := false
	_, err := s.store.Update(s.ctx, 2, UpdateParams{Available: &unavailable})
	s.Require().NoError(err)

	live, err := s.store.Count(s.ctx, Filter{AvailableOnly: true})
	s.Require().NoError(err)
	s.Equal(int64(4), live)

	page, err := s.store.FindMany(s.ctx, Filter{AvailableOnly: true}, Page{Offset: 1, Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(page, 2)
	s.Equal(int64(3), page[0].ID)
	s.Equal(int64(4), page[1].ID)

	byIDs, err := s.store.FindMany(s.ctx, Filter{IDs: []int64{2, 5, 42}}, Page{})
	s.Require().NoError(err)
	s.Len(byIDs, 2)

	empty, err := s.store.FindMany(s.ctx, Filter{AvailableOnly: true}, Page{Offset: 100, Limit: 10})
	s.Require().NoError(err)
	s.NotNil(empty)
	s.Empty(empty)
}

func (s *PgStoreSuite) TestUpdate_Partial() {
	created := s.create("Mouse", "19.90")

	name := "Wireless Mouse"
	updated, err := s.store.Update(s.ctx, created.ID, UpdateParams{Name: &name})

	s.Require().NoError(err)
	s.Equal("Wireless Mouse", updated.Name)
	s.True(created.Price.Equal(updated.Price))
	s.True(updated.Available)
	s.False(updated.UpdatedAt.Before(created.UpdatedAt))
}

func (s *PgStoreSuite) TestUpdate_NotFound() {
	name := "ghost"
	_, err := s.store.Update(s.ctx, 12345, UpdateParams{Name: &name})
	s.ErrorIs(err, perrors.ErrProductNotFound)
}

func (s *PgStoreSuite) TestPing() {
	s.NoError(s.store.Ping(s.ctx))
}

func (s *PgStoreSuite) TestCreate_DuplicateNameAllowed() {
	// given
	params := CreateParams{Name: "Keyboard", Price: decimal.NewFromInt(10)}
	first, err := s.store.Create(s.ctx, params)
	s.Require().NoError(err)

	// when
	second, err := s.store.Create(s.ctx, params)

	// then
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID)
	count, err := s.store.Count(s.ctx, Filter{})
	s.Require().NoError(err)
	s.Equal(int64(2), count)
}
