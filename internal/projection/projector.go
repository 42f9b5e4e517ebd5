package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/example/furniture-market/internal/domain/cart"
	"github.com/example/furniture-market/internal/domain/order"
	"github.com/example/furniture-market/internal/event"
)

type CartClearer interface {
	RemoveOrdered(ctx context.Context, userID, orderID string, ordered []cart.LineItem) (*cart.Cart, error)
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}

// Projector reacts to bus events: a placed order takes its lines out of the
// buyer's cart, and every cart change drops the cached cart view.
type Projector struct {
	carts CartClearer
	views CacheInvalidator
}

func NewProjector(carts CartClearer, views CacheInvalidator) *Projector {
	return &Projector{carts: carts, views: views}
}

func (p *Projector) HandleEvent(ctx context.Context, key, value []byte) error {
	var evt event.Event
	if err := json.Unmarshal(value, &evt); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}

	log.Printf("[Projector] Received event: %s (aggregate: %s)", evt.EventType, evt.AggregateType)

	switch evt.AggregateType {
	case order.AggregateType:
		return p.handleOrderEvent(ctx, &evt)
	case cart.AggregateType:
		return p.handleCartEvent(ctx, &evt)
	}
	return nil
}

func (p *Projector) handleOrderEvent(ctx context.Context, evt *event.Event) error {
	if evt.EventType != order.EventOrderPlaced {
		return nil
	}

	var placed order.OrderPlaced
	if err := evt.Decode(&placed); err != nil {
		return fmt.Errorf("decode %s: %w", evt.EventType, err)
	}
	if placed.UserID == "" {
		return fmt.Errorf("%s %s has no user", evt.EventType, placed.OrderID)
	}

	ordered := make([]cart.LineItem, 0, len(placed.Items))
	for _, item := range placed.Items {
		ordered = append(ordered, cart.LineItem{ProductID: item.ProductID, Quantity: item.Quantity, Price: item.Price})
	}
	if _, err := p.carts.RemoveOrdered(ctx, placed.UserID, placed.OrderID, ordered); err != nil {
		return fmt.Errorf("remove ordered lines after order %s: %w", placed.OrderID, err)
	}
	p.views.Invalidate(ctx, placed.UserID)
	log.Printf("[Projector] Removed %d ordered lines from cart of %s after order %s", len(ordered), placed.UserID, placed.OrderID)
	return nil
}

func (p *Projector) handleCartEvent(ctx context.Context, evt *event.Event) error {
	var data struct {
		UserID string `json:"user_id"`
	}
	if err := evt.Decode(&data); err != nil {
		return fmt.Errorf("decode %s: %w", evt.EventType, err)
	}
	if data.UserID != "" {
		p.views.Invalidate(ctx, data.UserID)
	}
	return nil
}
