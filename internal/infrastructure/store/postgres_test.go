package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/example/furniture-market/internal/catalog"
	"github.com/example/furniture-market/internal/domain/order"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *sql.DB {
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := ConnectPostgres(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, RunMigrations(db, "../../../migrations"))
	// A second run finds nothing to do.
	require.NoError(t, RunMigrations(db, "../../../migrations"))
	return db
}

func TestPostgres(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("order round trip", func(t *testing.T) {
		repo := NewPostgresOrderRepository(db)
		o := &order.Order{
			ID:     uuid.New().String(),
			UserID: "user-1",
			Items: []order.OrderItem{
				{ProductID: "table", Quantity: 1, Price: 45000},
				{ProductID: "chair", Quantity: 4, Price: 7500},
			},
			Subtotal:       75000,
			Shipping:       1500,
			Total:          76500,
			ShippingMethod: order.ShippingFlat,
			Status:         order.StatusPlaced,
			CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
		}
		require.NoError(t, repo.Create(ctx, o))

		got, err := repo.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, o.Items, got.Items)
		assert.Equal(t, o.Total, got.Total)
		assert.Equal(t, order.ShippingFlat, got.ShippingMethod)
		assert.True(t, o.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("order not found", func(t *testing.T) {
		repo := NewPostgresOrderRepository(db)

		_, err := repo.Get(ctx, uuid.New().String())
		assert.ErrorIs(t, err, order.ErrOrderNotFound)

		_, err = repo.Get(ctx, "not-a-uuid")
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})

	t.Run("failed item insert rolls back", func(t *testing.T) {
		repo := NewPostgresOrderRepository(db)
		o := &order.Order{
			ID:             uuid.New().String(),
			UserID:         "user-1",
			Items:          []order.OrderItem{{ProductID: "chair", Quantity: 0, Price: 100}},
			ShippingMethod: order.ShippingFlat,
			Status:         order.StatusPlaced,
			CreatedAt:      time.Now(),
		}

		require.Error(t, repo.Create(ctx, o))

		_, err := repo.Get(ctx, o.ID)
		assert.ErrorIs(t, err, order.ErrOrderNotFound)
	})

	t.Run("catalog reader", func(t *testing.T) {
		_, err := db.ExecContext(ctx, `
			INSERT INTO products (id, name, price, image_url, seller_id, seller_city, seller_lat, seller_lng) VALUES
			('sofa', 'Linen Sofa', 90000, 'sofa.png', 's-1', 'Berlin', 52.52, 13.405),
			('stool', 'Stool', 3000, NULL, 's-2', 'Munich', NULL, NULL),
			('draft', 'Unpriced', NULL, NULL, 's-2', 'Munich', NULL, NULL)`)
		require.NoError(t, err)
		reader := catalog.NewPostgresReader(db)

		sofa, err := reader.GetProduct(ctx, "sofa")
		require.NoError(t, err)
		assert.Equal(t, 90000, sofa.Price)
		require.NotNil(t, sofa.SellerLocation)
		assert.InDelta(t, 52.52, sofa.SellerLocation.Lat, 1e-9)

		draft, err := reader.GetProduct(ctx, "draft")
		require.NoError(t, err)
		assert.Equal(t, -1, draft.Price)
		assert.Nil(t, draft.SellerLocation)

		_, err = reader.GetProduct(ctx, "ghost")
		assert.ErrorIs(t, err, catalog.ErrProductNotFound)

		products, err := reader.GetProducts(ctx, []string{"sofa", "stool", "ghost"})
		require.NoError(t, err)
		assert.Len(t, products, 2)
		assert.Empty(t, products["stool"].ImageURL)
	})
}
