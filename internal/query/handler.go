package query

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/example/furniture-market/internal/catalog"
	"github.com/example/furniture-market/internal/domain/cart"
	"github.com/example/furniture-market/internal/domain/order"
	"github.com/example/furniture-market/internal/infrastructure/cache"
	"github.com/example/furniture-market/internal/readmodel"
	"golang.org/x/sync/singleflight"
)

type CartReader interface {
	GetCart(ctx context.Context, userID string) (*cart.Cart, error)
}

type OrderReader interface {
	Get(ctx context.Context, userID, orderID string) (*order.Order, error)
}

type Handler struct {
	carts   CartReader
	orders  OrderReader
	catalog catalog.Reader
	cache   cache.CartCache
	sfg     singleflight.Group
}

func NewHandler(carts CartReader, orders OrderReader, products catalog.Reader, c cache.CartCache) *Handler {
	if c == nil {
		c = cache.Nop{}
	}
	return &Handler{carts: carts, orders: orders, catalog: products, cache: c}
}

// GetCart returns the owner's cart with product details, or nil when the
// owner has no cart yet.
func (h *Handler) GetCart(ctx context.Context, userID string) (*readmodel.CartReadModel, error) {
	v, err, _ := h.sfg.Do(userID, func() (interface{}, error) {
		cached, err := h.cache.Get(ctx, userID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Printf("[Query] Cache get for %s failed: %v", userID, err)
		}

		// The fence is read before the cart so that a mutation committed
		// after this load also invalidates the view built from it.
		fence, fenceErr := h.cache.Fence(ctx, userID)
		if fenceErr != nil {
			log.Printf("[Query] Cache fence for %s failed: %v", userID, fenceErr)
		}

		c, err := h.carts.GetCart(ctx, userID)
		if errors.Is(err, cart.ErrCartNotFound) {
			return (*readmodel.CartReadModel)(nil), nil
		}
		if err != nil {
			return nil, err
		}

		view, err := h.BuildCart(ctx, c)
		if err != nil {
			return nil, err
		}
		if fenceErr != nil {
			return view, nil
		}
		err = h.cache.Set(ctx, userID, fence, view)
		switch {
		case errors.Is(err, cache.ErrFenced):
			log.Printf("[Query] Cart of %s changed while loading; view not cached", userID)
		case err != nil:
			log.Printf("[Query] Cache set for %s failed: %v", userID, err)
		}
		return view, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*readmodel.CartReadModel), nil
}

// BuildCart joins c with the current catalog entries of its lines.
func (h *Handler) BuildCart(ctx context.Context, c *cart.Cart) (*readmodel.CartReadModel, error) {
	products, err := h.catalog.GetProducts(ctx, readmodel.ProductIDs(c))
	if err != nil {
		return nil, fmt.Errorf("failed to load cart products: %w", err)
	}
	return readmodel.FromCart(c, products), nil
}

// Invalidate drops the cached cart of userID. Failures are only logged.
func (h *Handler) Invalidate(ctx context.Context, userID string) {
	if err := h.cache.Delete(ctx, userID); err != nil {
		log.Printf("[Query] Cache invalidate for %s failed: %v", userID, err)
	}
}

func (h *Handler) GetOrder(ctx context.Context, userID, orderID string) (*order.Order, error) {
	return h.orders.Get(ctx, userID, orderID)
}
