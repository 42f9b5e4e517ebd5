package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/example/furniture-market/internal/catalog"
	"github.com/example/furniture-market/internal/domain/cart"
	"github.com/example/furniture-market/internal/domain/order"
	"github.com/example/furniture-market/internal/query"
	"github.com/example/furniture-market/internal/readmodel"
	"github.com/example/furniture-market/internal/shipping"
)

type Options struct {
	// AsyncCartClear leaves emptying the cart after checkout to the
	// OrderPlaced consumer.
	AsyncCartClear bool
}

type Handler struct {
	cartSvc  *cart.Service
	orderSvc *order.Service
	catalog  catalog.Reader
	quotes   *shipping.QuoteService
	views    *query.Handler
	opts     Options
}

func NewHandler(
	cartSvc *cart.Service,
	orderSvc *order.Service,
	products catalog.Reader,
	quotes *shipping.QuoteService,
	views *query.Handler,
	opts Options,
) *Handler {
	return &Handler{
		cartSvc:  cartSvc,
		orderSvc: orderSvc,
		catalog:  products,
		quotes:   quotes,
		views:    views,
		opts:     opts,
	}
}

// AddToCart adds an item to cart at the current catalog price
func (h *Handler) AddToCart(ctx context.Context, cmd AddToCart) (*readmodel.CartReadModel, error) {
	if cmd.ProductID == "" {
		return nil, cart.ErrInvalidProduct
	}
	if !cart.ValidQuantity(cmd.Quantity) {
		return nil, cart.ErrInvalidQuantity
	}

	p, err := h.catalog.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}
	if !cart.ValidPrice(p.Price) {
		log.Printf("[Command] Product %s has invalid price %d", p.ID, p.Price)
		return nil, cart.ErrInvalidPrice
	}

	c, err := h.cartSvc.AddItem(ctx, cmd.UserID, cmd.ProductID, cmd.Quantity, p.Price)
	if err != nil {
		return nil, err
	}
	return h.reconcile(ctx, c)
}

// UpdateCartItem sets the quantity of an existing line
func (h *Handler) UpdateCartItem(ctx context.Context, cmd UpdateCartItem) (*readmodel.CartReadModel, error) {
	c, err := h.cartSvc.UpdateQuantity(ctx, cmd.UserID, cmd.ProductID, cmd.Quantity)
	if err != nil {
		return nil, err
	}
	return h.reconcile(ctx, c)
}

// RemoveFromCart removes an item from cart
func (h *Handler) RemoveFromCart(ctx context.Context, cmd RemoveFromCart) (*readmodel.CartReadModel, error) {
	c, err := h.cartSvc.RemoveItem(ctx, cmd.UserID, cmd.ProductID)
	if err != nil {
		return nil, err
	}
	return h.reconcile(ctx, c)
}

// ClearCart clears all items from cart
func (h *Handler) ClearCart(ctx context.Context, cmd ClearCart) error {
	if _, err := h.cartSvc.Clear(ctx, cmd.UserID); err != nil {
		return err
	}
	h.views.Invalidate(ctx, cmd.UserID)
	return nil
}

// CalculateShipping quotes delivery of one product to the buyer's city.
func (h *Handler) CalculateShipping(ctx context.Context, cmd CalculateShipping) (shipping.Quote, error) {
	if cmd.ProductID == "" {
		return shipping.Quote{}, cart.ErrInvalidProduct
	}
	buyerCity := strings.TrimSpace(cmd.BuyerCity)
	if buyerCity == "" {
		return shipping.Quote{}, shipping.ErrInvalidCity
	}

	p, err := h.catalog.GetProduct(ctx, cmd.ProductID)
	if err != nil {
		return shipping.Quote{}, err
	}

	quote, ok := h.quotes.Quote(ctx, p.SellerCity, buyerCity, p.SellerLocation)
	if !ok {
		return shipping.Quote{}, fmt.Errorf("%w: %s to %s", shipping.ErrQuoteUnavailable, p.SellerCity, buyerCity)
	}
	return quote, nil
}

// PlaceOrder creates an order from cart
func (h *Handler) PlaceOrder(ctx context.Context, cmd PlaceOrder) (*order.Order, error) {
	c, err := h.cartSvc.GetCart(ctx, cmd.UserID)
	if err != nil && !errors.Is(err, cart.ErrCartNotFound) {
		return nil, err
	}
	if c == nil || c.IsEmpty() {
		return nil, order.ErrEmptyOrder
	}

	items := make([]order.OrderItem, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, order.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	params := order.PlaceParams{
		UserID:   cmd.UserID,
		Items:    items,
		Shipping: c.Shipping,
		Method:   order.ShippingFlat,
	}

	if city := strings.TrimSpace(cmd.BuyerCity); city != "" {
		fee, err := h.distanceShipping(ctx, c, city)
		if err != nil {
			return nil, err
		}
		params.Shipping = fee
		params.Method = order.ShippingDistance
		params.BuyerCity = city
	}

	o, err := h.orderSvc.Place(ctx, params)
	if err != nil {
		return nil, err
	}

	if !h.opts.AsyncCartClear {
		if _, err := h.cartSvc.RemoveOrdered(ctx, cmd.UserID, o.ID, c.Items); err != nil {
			log.Printf("[Command] Order %s placed but removing its lines from cart of %s failed: %v", o.ID, cmd.UserID, err)
		}
		h.views.Invalidate(ctx, cmd.UserID)
	}

	return o, nil
}

func (h *Handler) distanceShipping(ctx context.Context, c *cart.Cart, buyerCity string) (int, error) {
	products, err := h.catalog.GetProducts(ctx, readmodel.ProductIDs(c))
	if err != nil {
		return 0, fmt.Errorf("failed to load cart products: %w", err)
	}

	shipments := make([]shipping.Shipment, 0, len(c.Items))
	for _, item := range c.Items {
		p, ok := products[item.ProductID]
		if !ok {
			return 0, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, item.ProductID)
		}
		shipments = append(shipments, shipping.Shipment{
			SellerID:       p.SellerID,
			SellerCity:     p.SellerCity,
			SellerLocation: p.SellerLocation,
		})
	}

	est, err := h.quotes.Estimate(ctx, buyerCity, shipments)
	if err != nil {
		return 0, err
	}
	return est.Fee, nil
}

// reconcile drops the stale cached view and returns c with product details.
func (h *Handler) reconcile(ctx context.Context, c *cart.Cart) (*readmodel.CartReadModel, error) {
	h.views.Invalidate(ctx, c.UserID)
	return h.views.BuildCart(ctx, c)
}
