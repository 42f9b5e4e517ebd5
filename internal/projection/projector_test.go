package projection

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/example/furniture-market/internal/domain/cart"
	"github.com/example/furniture-market/internal/domain/order"
	"github.com/example/furniture-market/internal/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCarts struct {
	cleared []string
	orders  []string
	ordered [][]cart.LineItem
	err     error
}

func (f *fakeCarts) RemoveOrdered(_ context.Context, userID, orderID string, ordered []cart.LineItem) (*cart.Cart, error) {
	f.cleared = append(f.cleared, userID)
	f.orders = append(f.orders, orderID)
	f.ordered = append(f.ordered, ordered)
	return nil, f.err
}

type fakeViews struct {
	invalidated []string
}

func (f *fakeViews) Invalidate(_ context.Context, userID string) {
	f.invalidated = append(f.invalidated, userID)
}

func newTestProjector() (*Projector, *fakeCarts, *fakeViews) {
	carts := &fakeCarts{}
	views := &fakeViews{}
	return NewProjector(carts, views), carts, views
}

func makeEvent(t *testing.T, aggregateType, eventType string, data interface{}) []byte {
	t.Helper()
	evt, err := event.New("agg-123", aggregateType, eventType, data, 1)
	require.NoError(t, err)
	value, err := json.Marshal(evt)
	require.NoError(t, err)
	return value
}

func TestProjector_OrderPlacedRemovesOrderedLines(t *testing.T) {
	projector, carts, views := newTestProjector()

	value := makeEvent(t, order.AggregateType, order.EventOrderPlaced, order.OrderPlaced{
		OrderID:  "order-1",
		UserID:   "user-1",
		Items:    []order.OrderItem{{ProductID: "chair", Quantity: 1, Price: 2000}},
		Total:    3500,
		PlacedAt: time.Now(),
	})

	err := projector.HandleEvent(context.Background(), []byte("user-1"), value)

	require.NoError(t, err)
	assert.Equal(t, []string{"user-1"}, carts.cleared)
	assert.Equal(t, []string{"order-1"}, carts.orders)
	assert.Equal(t, [][]cart.LineItem{{{ProductID: "chair", Quantity: 1, Price: 2000}}}, carts.ordered)
	assert.Equal(t, []string{"user-1"}, views.invalidated)
}

func TestProjector_OrderPlacedWithoutUser(t *testing.T) {
	projector, carts, _ := newTestProjector()

	value := makeEvent(t, order.AggregateType, order.EventOrderPlaced, order.OrderPlaced{OrderID: "order-1"})

	err := projector.HandleEvent(context.Background(), nil, value)

	assert.Error(t, err)
	assert.Empty(t, carts.cleared)
}

func TestProjector_ClearFailureIsReturned(t *testing.T) {
	projector, carts, views := newTestProjector()
	carts.err = errors.New("mongo down")

	value := makeEvent(t, order.AggregateType, order.EventOrderPlaced, order.OrderPlaced{OrderID: "order-1", UserID: "user-1"})

	err := projector.HandleEvent(context.Background(), nil, value)

	assert.ErrorContains(t, err, "mongo down")
	assert.Empty(t, views.invalidated)
}

func TestProjector_CartEventInvalidatesView(t *testing.T) {
	projector, carts, views := newTestProjector()

	value := makeEvent(t, cart.AggregateType, cart.EventItemAdded, cart.ItemAddedToCart{
		CartID:    "cart-user-2",
		UserID:    "user-2",
		ProductID: "lamp",
		Quantity:  1,
		Price:     5000,
	})

	err := projector.HandleEvent(context.Background(), nil, value)

	require.NoError(t, err)
	assert.Empty(t, carts.cleared)
	assert.Equal(t, []string{"user-2"}, views.invalidated)
}

func TestProjector_UnknownAggregateIgnored(t *testing.T) {
	projector, carts, views := newTestProjector()

	value := makeEvent(t, "Review", "ReviewPosted", map[string]string{"id": "r1"})

	require.NoError(t, projector.HandleEvent(context.Background(), nil, value))
	assert.Empty(t, carts.cleared)
	assert.Empty(t, views.invalidated)
}

func TestProjector_InvalidJSON(t *testing.T) {
	projector, _, _ := newTestProjector()

	err := projector.HandleEvent(context.Background(), nil, []byte("not json"))

	assert.Error(t, err)
}
