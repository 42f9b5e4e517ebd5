package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/furniture-market/internal/event"
	"github.com/google/uuid"
)

const AggregateType = "Order"

type Status string

const StatusPlaced Status = "placed"

// ShippingMethod records how the order's shipping fee was computed.
type ShippingMethod string

const (
	ShippingFlat     ShippingMethod = "flat"
	ShippingDistance ShippingMethod = "distance"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrEmptyOrder     = errors.New("order must have at least one item")
	ErrInvalidFee     = errors.New("shipping fee must not be negative")
	ErrInvalidProduct = errors.New("order item is invalid")
)

type Order struct {
	ID             string         `json:"id"`
	UserID         string         `json:"userId"`
	Items          []OrderItem    `json:"items"`
	Subtotal       int            `json:"subtotal"`
	Shipping       int            `json:"shipping"`
	Total          int            `json:"total"`
	BuyerCity      string         `json:"buyerCity,omitempty"`
	ShippingMethod ShippingMethod `json:"shippingMethod"`
	Status         Status         `json:"status"`
	CreatedAt      time.Time      `json:"createdAt"`
}

// Repository persists placed orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, orderID string) (*Order, error)
}

type PlaceParams struct {
	UserID    string
	Items     []OrderItem
	Shipping  int
	Method    ShippingMethod
	BuyerCity string
}

type Service struct {
	repo      Repository
	publisher event.Publisher
	now       func() time.Time
}

func NewService(repo Repository, publisher event.Publisher) *Service {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	return &Service{repo: repo, publisher: publisher, now: time.Now}
}

// Place freezes the given items and shipping fee into a new order.
func (s *Service) Place(ctx context.Context, p PlaceParams) (*Order, error) {
	if len(p.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if p.Shipping < 0 {
		return nil, ErrInvalidFee
	}

	items := make([]OrderItem, len(p.Items))
	subtotal := 0
	for i, item := range p.Items {
		if item.ProductID == "" || item.Quantity <= 0 || item.Price < 0 {
			return nil, fmt.Errorf("%w: %+v", ErrInvalidProduct, item)
		}
		items[i] = item
		subtotal += item.Price * item.Quantity
	}

	method := p.Method
	if method == "" {
		method = ShippingFlat
	}

	o := &Order{
		ID:             uuid.New().String(),
		UserID:         p.UserID,
		Items:          items,
		Subtotal:       subtotal,
		Shipping:       p.Shipping,
		Total:          subtotal + p.Shipping,
		BuyerCity:      p.BuyerCity,
		ShippingMethod: method,
		Status:         StatusPlaced,
		CreatedAt:      s.now().UTC(),
	}

	if err := s.repo.Create(ctx, o); err != nil {
		log.Printf("[Order] Failed to persist order for user %s (subtotal=%d, shipping=%d): %v", o.UserID, o.Subtotal, o.Shipping, err)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	placed := OrderPlaced{
		OrderID:        o.ID,
		UserID:         o.UserID,
		Items:          o.Items,
		Subtotal:       o.Subtotal,
		Shipping:       o.Shipping,
		Total:          o.Total,
		ShippingMethod: string(o.ShippingMethod),
		PlacedAt:       o.CreatedAt,
	}
	evt, err := event.New(o.ID, AggregateType, EventOrderPlaced, placed, 1)
	if err != nil {
		log.Printf("[Order] Failed to build %s for %s: %v", EventOrderPlaced, o.ID, err)
		return o, nil
	}
	if err := s.publisher.Publish(ctx, o.UserID, evt); err != nil {
		log.Printf("[Order] Failed to publish %s for %s: %v", EventOrderPlaced, o.ID, err)
	}

	return o, nil
}

// Get returns the order if it belongs to userID.
func (s *Service) Get(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}
