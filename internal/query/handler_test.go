package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/example/furniture-market/internal/catalog"
	"github.com/example/furniture-market/internal/domain/cart"
	"github.com/example/furniture-market/internal/domain/order"
	"github.com/example/furniture-market/internal/infrastructure/cache"
	"github.com/example/furniture-market/internal/infrastructure/store/mocks"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueryHandler(t *testing.T) (*Handler, *mocks.MockCartRepository, *mocks.MockCatalog, *miniredis.Miniredis) {
	t.Helper()
	repo := mocks.NewMockCartRepository()
	products := mocks.NewMockCatalog(
		&catalog.Product{ID: "sofa", Name: "Velvet Sofa", Price: 50000, SellerID: "s1", SellerCity: "Berlin"},
	)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	carts := cart.NewService(repo, nil, cart.DefaultShippingRule())
	orders := order.NewService(mocks.NewMockOrderRepository(), nil)
	return NewHandler(carts, orders, products, cache.NewRedisCache(client)), repo, products, mr
}

func storedCart(userID string) *cart.Cart {
	c := cart.New(userID, time.Now())
	_ = c.AddItem("sofa", 2, 50000)
	c.Recalculate(cart.DefaultShippingRule())
	c.Version = 1
	return c
}

// ============================================
// Cart Query Tests
// ============================================

func TestHandler_GetCart_Absent(t *testing.T) {
	handler, _, _, mr := newTestQueryHandler(t)

	view, err := handler.GetCart(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Nil(t, view)
	assert.False(t, mr.Exists("cart:user-1"))
}

func TestHandler_GetCart_JoinsCatalogAndCaches(t *testing.T) {
	handler, repo, products, mr := newTestQueryHandler(t)
	repo.Put(storedCart("user-1"))

	view, err := handler.GetCart(context.Background(), "user-1")

	require.NoError(t, err)
	require.NotNil(t, view)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "Velvet Sofa", view.Items[0].Name)
	assert.Equal(t, 100000, view.Subtotal)
	assert.Equal(t, 101500, view.Total)
	assert.True(t, mr.Exists("cart:user-1"))
	assert.Len(t, products.GetProductsCalls, 1)
}

func TestHandler_GetCart_ServesFromCache(t *testing.T) {
	handler, repo, products, _ := newTestQueryHandler(t)
	repo.Put(storedCart("user-1"))
	ctx := context.Background()

	_, err := handler.GetCart(ctx, "user-1")
	require.NoError(t, err)
	view, err := handler.GetCart(ctx, "user-1")
	require.NoError(t, err)

	assert.Equal(t, 101500, view.Total)
	assert.Equal(t, 1, repo.GetCalls)
	assert.Len(t, products.GetProductsCalls, 1)
}

func TestHandler_Invalidate(t *testing.T) {
	handler, repo, _, mr := newTestQueryHandler(t)
	repo.Put(storedCart("user-1"))
	ctx := context.Background()

	_, err := handler.GetCart(ctx, "user-1")
	require.NoError(t, err)
	handler.Invalidate(ctx, "user-1")

	assert.False(t, mr.Exists("cart:user-1"))
	_, err = handler.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, repo.GetCalls)
}

// slowReader loads the cart, then holds the loaded copy until released.
type slowReader struct {
	inner   CartReader
	loaded  chan struct{}
	release chan struct{}
}

func (r *slowReader) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	c, err := r.inner.GetCart(ctx, userID)
	close(r.loaded)
	<-r.release
	return c, err
}

func TestHandler_GetCart_InvalidateDuringLoadIsNotOverwritten(t *testing.T) {
	repo := mocks.NewMockCartRepository()
	products := mocks.NewMockCatalog(&catalog.Product{ID: "sofa", Name: "Velvet Sofa", Price: 50000})
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	ctx := context.Background()

	carts := cart.NewService(repo, nil, cart.DefaultShippingRule())
	_, err := carts.AddItem(ctx, "user-1", "sofa", 1, 50000)
	require.NoError(t, err)

	reader := &slowReader{inner: carts, loaded: make(chan struct{}), release: make(chan struct{})}
	redisCache := cache.NewRedisCache(client)
	slow := NewHandler(reader, nil, products, redisCache)
	handler := NewHandler(carts, nil, products, redisCache)

	done := make(chan error)
	go func() {
		_, err := slow.GetCart(ctx, "user-1")
		done <- err
	}()
	<-reader.loaded

	_, err = carts.UpdateQuantity(ctx, "user-1", "sofa", 5)
	require.NoError(t, err)
	handler.Invalidate(ctx, "user-1")

	close(reader.release)
	require.NoError(t, <-done)
	assert.False(t, mr.Exists("cart:user-1"))

	view, err := handler.GetCart(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, 250000, view.Subtotal)
	assert.Equal(t, int64(2), view.Version)
}

func TestHandler_GetCart_RepositoryError(t *testing.T) {
	handler, repo, _, _ := newTestQueryHandler(t)
	repo.GetErr = errors.New("mongo unavailable")

	view, err := handler.GetCart(context.Background(), "user-1")

	assert.Error(t, err)
	assert.Nil(t, view)
}

func TestHandler_GetCart_CatalogError(t *testing.T) {
	handler, repo, products, mr := newTestQueryHandler(t)
	repo.Put(storedCart("user-1"))
	products.Err = errors.New("postgres unavailable")

	_, err := handler.GetCart(context.Background(), "user-1")

	assert.Error(t, err)
	assert.False(t, mr.Exists("cart:user-1"))
}

func TestHandler_GetCart_RedisDownStillServes(t *testing.T) {
	handler, repo, _, mr := newTestQueryHandler(t)
	repo.Put(storedCart("user-1"))
	mr.Close()

	view, err := handler.GetCart(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Equal(t, 101500, view.Total)
}

// ============================================
// Order Query Tests
// ============================================

func TestHandler_GetOrder_NotFound(t *testing.T) {
	handler, _, _, _ := newTestQueryHandler(t)

	_, err := handler.GetOrder(context.Background(), "user-1", "missing")

	assert.ErrorIs(t, err, order.ErrOrderNotFound)
}
