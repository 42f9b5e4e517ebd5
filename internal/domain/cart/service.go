package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/furniture-market/internal/event"
	"github.com/example/furniture-market/internal/keylock"
)

const maxSaveAttempts = 3

// Repository persists carts. Save must only succeed when the stored version
// equals expectedVersion (0 meaning no stored cart yet) and must report a
// lost race as ErrVersionConflict.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart, expectedVersion int64) error
}

type Service struct {
	repo      Repository
	publisher event.Publisher
	rule      ShippingRule
	locks     *keylock.Locker
	now       func() time.Time
}

func NewService(repo Repository, publisher event.Publisher, rule ShippingRule) *Service {
	if publisher == nil {
		publisher = event.NopPublisher{}
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		rule:      rule,
		locks:     keylock.New(),
		now:       time.Now,
	}
}

// Rule returns the flat shipping rule the service applies.
func (s *Service) Rule() ShippingRule {
	return s.rule
}

type mutation struct {
	create    bool
	eventType string
	detail    string
	apply     func(c *Cart) (changed bool, err error)
	payload   func(c *Cart, at time.Time) interface{}
}

func (s *Service) GetCart(ctx context.Context, userID string) (*Cart, error) {
	return s.repo.Get(ctx, userID)
}

func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity, price int) (*Cart, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}
	if !ValidQuantity(quantity) {
		return nil, ErrInvalidQuantity
	}
	if !ValidPrice(price) {
		return nil, ErrInvalidPrice
	}

	return s.mutate(ctx, userID, mutation{
		create:    true,
		eventType: EventItemAdded,
		detail:    fmt.Sprintf("add product=%s quantity=%d price=%d", productID, quantity, price),
		apply: func(c *Cart) (bool, error) {
			return true, c.AddItem(productID, quantity, price)
		},
		payload: func(c *Cart, at time.Time) interface{} {
			return ItemAddedToCart{
				CartID:    c.ID,
				UserID:    userID,
				ProductID: productID,
				Quantity:  quantity,
				Price:     price,
				Subtotal:  c.Subtotal,
				Total:     c.Total,
				AddedAt:   at,
			}
		},
	})
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}
	if !ValidQuantity(quantity) {
		return nil, ErrInvalidQuantity
	}

	return s.mutate(ctx, userID, mutation{
		eventType: EventQuantityUpdated,
		detail:    fmt.Sprintf("update product=%s quantity=%d", productID, quantity),
		apply: func(c *Cart) (bool, error) {
			return true, c.UpdateQuantity(productID, quantity)
		},
		payload: func(c *Cart, at time.Time) interface{} {
			return CartItemQuantityUpdated{
				CartID:    c.ID,
				UserID:    userID,
				ProductID: productID,
				Quantity:  quantity,
				Subtotal:  c.Subtotal,
				Total:     c.Total,
				UpdatedAt: at,
			}
		},
	})
}

// RemoveItem fails only when the owner has no cart. Removing a product that
// is not in the cart returns the cart unchanged.
func (s *Service) RemoveItem(ctx context.Context, userID, productID string) (*Cart, error) {
	if productID == "" {
		return nil, ErrInvalidProduct
	}

	return s.mutate(ctx, userID, mutation{
		eventType: EventItemRemoved,
		detail:    fmt.Sprintf("remove product=%s", productID),
		apply: func(c *Cart) (bool, error) {
			return c.RemoveItem(productID), nil
		},
		payload: func(c *Cart, at time.Time) interface{} {
			return ItemRemovedFromCart{
				CartID:    c.ID,
				UserID:    userID,
				ProductID: productID,
				Subtotal:  c.Subtotal,
				Total:     c.Total,
				RemovedAt: at,
			}
		},
	})
}

// Clear empties the owner's cart. A missing cart is not an error and
// yields a nil cart.
func (s *Service) Clear(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.mutate(ctx, userID, mutation{
		eventType: EventCartCleared,
		detail:    "clear",
		apply: func(c *Cart) (bool, error) {
			return c.Clear(), nil
		},
		payload: func(c *Cart, at time.Time) interface{} {
			return CartCleared{CartID: c.ID, UserID: userID, ClearedAt: at}
		},
	})
	if errors.Is(err, ErrCartNotFound) {
		return nil, nil
	}
	return c, err
}

// RemoveOrdered takes the lines of a placed order out of the owner's cart,
// leaving whatever was added since the order read it. A missing cart is not
// an error and yields a nil cart.
func (s *Service) RemoveOrdered(ctx context.Context, userID, orderID string, ordered []LineItem) (*Cart, error) {
	c, err := s.mutate(ctx, userID, mutation{
		eventType: EventCheckedOut,
		detail:    fmt.Sprintf("checkout order=%s lines=%d", orderID, len(ordered)),
		apply: func(c *Cart) (bool, error) {
			return c.RemoveOrdered(orderID, ordered), nil
		},
		payload: func(c *Cart, at time.Time) interface{} {
			return CartCheckedOut{
				CartID:       c.ID,
				UserID:       userID,
				OrderID:      orderID,
				Items:        ordered,
				Subtotal:     c.Subtotal,
				Total:        c.Total,
				CheckedOutAt: at,
			}
		},
	})
	if errors.Is(err, ErrCartNotFound) {
		return nil, nil
	}
	return c, err
}

// mutate loads the cart, applies m and writes it back with a version check.
// A lost race reloads and retries.
func (s *Service) mutate(ctx context.Context, userID string, m mutation) (*Cart, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	for attempt := 1; attempt <= maxSaveAttempts; attempt++ {
		current, err := s.repo.Get(ctx, userID)
		switch {
		case errors.Is(err, ErrCartNotFound):
			if !m.create {
				return nil, ErrCartNotFound
			}
			current = New(userID, s.now())
		case err != nil:
			log.Printf("[Cart] Failed to load cart for user %s (%s): %v", userID, m.detail, err)
			return nil, fmt.Errorf("failed to load cart: %w", err)
		}

		expected := current.Version
		next := current.Clone()
		changed, err := m.apply(next)
		if err != nil {
			return nil, err
		}
		if !changed {
			return current, nil
		}

		now := s.now()
		next.Recalculate(s.rule)
		next.Version = expected + 1
		next.UpdatedAt = now

		err = s.repo.Save(ctx, next, expected)
		if errors.Is(err, ErrVersionConflict) {
			log.Printf("[Cart] Version conflict for user %s at version %d (attempt %d/%d)", userID, expected, attempt, maxSaveAttempts)
			continue
		}
		if err != nil {
			log.Printf("[Cart] Failed to save cart for user %s (%s, subtotal=%d, total=%d): %v",
				userID, m.detail, next.Subtotal, next.Total, err)
			return nil, fmt.Errorf("failed to save cart: %w", err)
		}

		s.publish(ctx, next, m.eventType, m.payload(next, now))
		return next, nil
	}

	return nil, fmt.Errorf("giving up after %d attempts: %w", maxSaveAttempts, ErrVersionConflict)
}

func (s *Service) publish(ctx context.Context, c *Cart, eventType string, payload interface{}) {
	evt, err := event.New(c.ID, AggregateType, eventType, payload, c.Version)
	if err != nil {
		log.Printf("[Cart] Failed to build %s event for %s: %v", eventType, c.ID, err)
		return
	}
	if err := s.publisher.Publish(ctx, c.ID, evt); err != nil {
		log.Printf("[Cart] Failed to publish %s for %s: %v", eventType, c.ID, err)
	}
}
