package cart_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/example/furniture-market/internal/domain/cart"
	"github.com/example/furniture-market/internal/event"
	"github.com/example/furniture-market/internal/infrastructure/store/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCartService() (*cart.Service, *mocks.MockCartRepository, *mocks.MockPublisher) {
	repo := mocks.NewMockCartRepository()
	publisher := mocks.NewMockPublisher()
	return cart.NewService(repo, publisher, cart.DefaultShippingRule()), repo, publisher
}

func assertTotals(t *testing.T, c *cart.Cart) {
	t.Helper()
	subtotal := 0
	for _, item := range c.Items {
		subtotal += item.Price * item.Quantity
	}
	assert.Equal(t, subtotal, c.Subtotal)
	assert.Equal(t, c.Subtotal+c.Shipping, c.Total)
}

// ============================================
// Add Item Tests
// ============================================

func TestService_AddItem_CreatesCart(t *testing.T) {
	service, repo, publisher := newTestCartService()
	ctx := context.Background()

	c, err := service.AddItem(ctx, "user-123", "prod-456", 2, 1000)

	require.NoError(t, err)
	assert.Equal(t, "cart-user-123", c.ID)
	assert.Equal(t, "user-123", c.UserID)
	assert.Equal(t, int64(1), c.Version)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2000, c.Subtotal)
	assert.Equal(t, 1500, c.Shipping)
	assert.Equal(t, 3500, c.Total)

	require.Len(t, repo.SaveCalls, 1)
	assert.Equal(t, int64(0), repo.SaveCalls[0].ExpectedVersion)

	assert.Equal(t, []string{cart.EventItemAdded}, publisher.EventTypes())
	evt := publisher.Calls()[0].Event.(*event.Event)
	assert.Equal(t, "cart-user-123", evt.AggregateID)
	assert.Equal(t, cart.AggregateType, evt.AggregateType)

	var data cart.ItemAddedToCart
	require.NoError(t, evt.Decode(&data))
	assert.Equal(t, "prod-456", data.ProductID)
	assert.Equal(t, 2, data.Quantity)
	assert.Equal(t, 1000, data.Price)
	assert.Equal(t, 3500, data.Total)
}

func TestService_AddItem_MergesExistingLine(t *testing.T) {
	service, _, _ := newTestCartService()
	ctx := context.Background()

	_, err := service.AddItem(ctx, "user-1", "chair", 1, 2000)
	require.NoError(t, err)
	c, err := service.AddItem(ctx, "user-1", "chair", 1, 2000)
	require.NoError(t, err)

	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, 4000, c.Subtotal)
	assert.Equal(t, 5500, c.Total)
	assert.Equal(t, int64(2), c.Version)
}

func TestService_AddItem_Validation(t *testing.T) {
	tests := []struct {
		name      string
		productID string
		quantity  int
		price     int
		want      error
	}{
		{"empty product", "", 1, 100, cart.ErrInvalidProduct},
		{"zero quantity", "p", 0, 100, cart.ErrInvalidQuantity},
		{"negative quantity", "p", -1, 100, cart.ErrInvalidQuantity},
		{"negative price", "p", 1, -5, cart.ErrInvalidPrice},
		{"overflowing quantity", "sofa", math.MaxInt / 1000, 50000, cart.ErrInvalidQuantity},
		{"price above max", "p", 1, cart.MaxPrice + 1, cart.ErrInvalidPrice},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			service, repo, publisher := newTestCartService()

			_, err := service.AddItem(context.Background(), "user-1", tt.productID, tt.quantity, tt.price)

			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, repo.SaveCalls)
			assert.Empty(t, publisher.PublishCalls)
		})
	}
}

func TestService_AddItem_MergeAboveMaxQuantity(t *testing.T) {
	service, repo, _ := newTestCartService()
	ctx := context.Background()

	_, err := service.AddItem(ctx, "user-1", "sofa", cart.MaxLineQuantity, 50000)
	require.NoError(t, err)

	_, err = service.AddItem(ctx, "user-1", "sofa", 1, 50000)
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)

	stored, ok := repo.Stored("user-1")
	require.True(t, ok)
	assert.Equal(t, cart.MaxLineQuantity, stored.Items[0].Quantity)
	assert.Equal(t, int64(1), stored.Version)
	assertTotals(t, stored)

	_, err = service.UpdateQuantity(ctx, "user-1", "sofa", cart.MaxLineQuantity+1)
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
}

func TestService_AddItem_ZeroPriceAllowed(t *testing.T) {
	service, _, _ := newTestCartService()

	c, err := service.AddItem(context.Background(), "user-1", "free-cushion", 1, 0)

	require.NoError(t, err)
	assert.Equal(t, 0, c.Subtotal)
}

// Sum of adds: subtotal equals the sum of every added line at its first price.
func TestService_AddItem_SubtotalIsSumOfAdds(t *testing.T) {
	service, _, _ := newTestCartService()
	ctx := context.Background()

	adds := []struct {
		productID string
		quantity  int
		price     int
	}{
		{"table", 1, 45000},
		{"chair", 4, 7500},
		{"lamp", 2, 3200},
		{"chair", 3, 7500},
	}

	var c *cart.Cart
	var err error
	expected := 0
	for _, a := range adds {
		c, err = service.AddItem(ctx, "user-1", a.productID, a.quantity, a.price)
		require.NoError(t, err)
		expected += a.quantity * a.price
		assertTotals(t, c)
	}

	assert.Equal(t, expected, c.Subtotal)
	assert.Len(t, c.Items, 3)
	assert.Equal(t, 0, c.Shipping)
}

// ============================================
// Update Quantity Tests
// ============================================

func TestService_UpdateQuantity_RecomputesTotals(t *testing.T) {
	service, _, publisher := newTestCartService()
	ctx := context.Background()

	_, err := service.AddItem(ctx, "user-1", "chair", 1, 2000)
	require.NoError(t, err)

	c, err := service.UpdateQuantity(ctx, "user-1", "chair", 5)

	require.NoError(t, err)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, 10000, c.Subtotal)
	assert.Equal(t, 11500, c.Total)
	assert.Equal(t, []string{cart.EventItemAdded, cart.EventQuantityUpdated}, publisher.EventTypes())
}

func TestService_UpdateQuantity_NoCart(t *testing.T) {
	service, repo, _ := newTestCartService()

	_, err := service.UpdateQuantity(context.Background(), "user-1", "chair", 2)

	assert.ErrorIs(t, err, cart.ErrCartNotFound)
	assert.Empty(t, repo.SaveCalls)
}

func TestService_UpdateQuantity_ItemMissing(t *testing.T) {
	service, repo, _ := newTestCartService()
	ctx := context.Background()
	_, err := service.AddItem(ctx, "user-1", "chair", 1, 2000)
	require.NoError(t, err)

	_, err = service.UpdateQuantity(ctx, "user-1", "table", 2)

	assert.ErrorIs(t, err, cart.ErrItemNotFound)
	assert.Len(t, repo.SaveCalls, 1)
}

func TestService_UpdateQuantity_RejectsNonPositive(t *testing.T) {
	service, _, _ := newTestCartService()
	ctx := context.Background()
	_, err := service.AddItem(ctx, "user-1", "chair", 1, 2000)
	require.NoError(t, err)

	_, err = service.UpdateQuantity(ctx, "user-1", "chair", 0)
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
	_, err = service.UpdateQuantity(ctx, "user-1", "chair", -2)
	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
}

// ============================================
// Remove Item Tests
// ============================================

func TestService_RemoveItem_LastLineLeavesEmptyCart(t *testing.T) {
	service, repo, _ := newTestCartService()
	ctx := context.Background()
	_, err := service.AddItem(ctx, "user-1", "chair", 2, 2000)
	require.NoError(t, err)

	c, err := service.RemoveItem(ctx, "user-1", "chair")

	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Equal(t, 0, c.Subtotal)
	assert.Equal(t, 0, c.Shipping)
	assert.Equal(t, 0, c.Total)

	stored, ok := repo.Stored("user-1")
	require.True(t, ok)
	assert.Empty(t, stored.Items)
}

func TestService_RemoveItem_AbsentProductIsNoop(t *testing.T) {
	service, repo, publisher := newTestCartService()
	ctx := context.Background()
	_, err := service.AddItem(ctx, "user-1", "chair", 1, 2000)
	require.NoError(t, err)

	c, err := service.RemoveItem(ctx, "user-1", "sofa")

	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
	assert.Equal(t, 3500, c.Total)
	assert.Len(t, repo.SaveCalls, 1)
	assert.Len(t, publisher.PublishCalls, 1)
}

func TestService_RemoveItem_NoCart(t *testing.T) {
	service, _, _ := newTestCartService()

	_, err := service.RemoveItem(context.Background(), "user-1", "chair")

	assert.ErrorIs(t, err, cart.ErrCartNotFound)
}

// ============================================
// Clear Tests
// ============================================

func TestService_Clear(t *testing.T) {
	service, _, publisher := newTestCartService()
	ctx := context.Background()
	_, err := service.AddItem(ctx, "user-1", "chair", 1, 2000)
	require.NoError(t, err)

	c, err := service.Clear(ctx, "user-1")

	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Equal(t, 0, c.Total)
	assert.Equal(t, []string{cart.EventItemAdded, cart.EventCartCleared}, publisher.EventTypes())
}

func TestService_Clear_NoCart(t *testing.T) {
	service, repo, _ := newTestCartService()

	c, err := service.Clear(context.Background(), "user-1")

	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Empty(t, repo.SaveCalls)
}

// ============================================
// Checkout Tests
// ============================================

func TestService_RemoveOrdered_LeavesUnorderedLines(t *testing.T) {
	service, _, publisher := newTestCartService()
	ctx := context.Background()
	_, err := service.AddItem(ctx, "user-1", "chair", 3, 2000)
	require.NoError(t, err)
	_, err = service.AddItem(ctx, "user-1", "sofa", 1, 50000)
	require.NoError(t, err)
	_, err = service.AddItem(ctx, "user-1", "lamp", 1, 5000)
	require.NoError(t, err)

	ordered := []cart.LineItem{
		{ProductID: "chair", Quantity: 2, Price: 2000},
		{ProductID: "sofa", Quantity: 1, Price: 50000},
	}
	c, err := service.RemoveOrdered(ctx, "user-1", "order-1", ordered)

	require.NoError(t, err)
	assert.Equal(t, []cart.LineItem{
		{ProductID: "chair", Quantity: 1, Price: 2000},
		{ProductID: "lamp", Quantity: 1, Price: 5000},
	}, c.Items)
	assert.Equal(t, "order-1", c.LastOrderID)
	assertTotals(t, c)
	assert.Equal(t, cart.EventCheckedOut, publisher.EventTypes()[len(publisher.EventTypes())-1])
}

func TestService_RemoveOrdered_SameOrderTwiceIsNoop(t *testing.T) {
	service, repo, _ := newTestCartService()
	ctx := context.Background()
	_, err := service.AddItem(ctx, "user-1", "chair", 2, 2000)
	require.NoError(t, err)
	ordered := []cart.LineItem{{ProductID: "chair", Quantity: 2, Price: 2000}}

	_, err = service.RemoveOrdered(ctx, "user-1", "order-1", ordered)
	require.NoError(t, err)
	_, err = service.AddItem(ctx, "user-1", "chair", 1, 2000)
	require.NoError(t, err)

	c, err := service.RemoveOrdered(ctx, "user-1", "order-1", ordered)

	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 1, c.Items[0].Quantity)
	assert.Len(t, repo.SaveCalls, 3)
}

func TestService_RemoveOrdered_NoCart(t *testing.T) {
	service, repo, _ := newTestCartService()

	c, err := service.RemoveOrdered(context.Background(), "user-1", "order-1",
		[]cart.LineItem{{ProductID: "chair", Quantity: 1}})

	require.NoError(t, err)
	assert.Nil(t, c)
	assert.Empty(t, repo.SaveCalls)
}

// ============================================
// Concurrency Tests
// ============================================

func TestService_RetriesOnVersionConflict(t *testing.T) {
	service, repo, _ := newTestCartService()
	repo.ConflictsToInject = 2

	c, err := service.AddItem(context.Background(), "user-1", "chair", 1, 2000)

	require.NoError(t, err)
	assert.Equal(t, 3500, c.Total)
	assert.Len(t, repo.SaveCalls, 3)
	assert.GreaterOrEqual(t, repo.GetCalls, 3)
}

func TestService_GivesUpAfterRepeatedConflicts(t *testing.T) {
	service, repo, publisher := newTestCartService()
	repo.ConflictsToInject = 10

	_, err := service.AddItem(context.Background(), "user-1", "chair", 1, 2000)

	assert.ErrorIs(t, err, cart.ErrVersionConflict)
	assert.Len(t, repo.SaveCalls, 3)
	assert.Empty(t, publisher.PublishCalls)
}

func TestService_SaveFailureIsReturned(t *testing.T) {
	service, repo, publisher := newTestCartService()
	repo.SaveErr = errors.New("disk full")

	_, err := service.AddItem(context.Background(), "user-1", "chair", 1, 2000)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, publisher.PublishCalls)
}

func TestService_PublishFailureDoesNotFailMutation(t *testing.T) {
	service, repo, publisher := newTestCartService()
	publisher.PublishErr = errors.New("broker down")

	c, err := service.AddItem(context.Background(), "user-1", "chair", 1, 2000)

	require.NoError(t, err)
	assert.Equal(t, 3500, c.Total)
	_, ok := repo.Stored("user-1")
	assert.True(t, ok)
}

func TestService_ConcurrentAddsAreNotLost(t *testing.T) {
	service, repo, _ := newTestCartService()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.AddItem(ctx, "user-1", "chair", 1, 100)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, ok := repo.Stored("user-1")
	require.True(t, ok)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 25, stored.Items[0].Quantity)
	assert.Equal(t, 2500, stored.Subtotal)
	assert.Equal(t, int64(25), stored.Version)
}

func TestService_MergeScenario(t *testing.T) {
	service, _, _ := newTestCartService()
	ctx := context.Background()

	c, err := service.AddItem(ctx, "user-1", "P", 2, 1000)
	require.NoError(t, err)
	assert.Equal(t, 2000, c.Subtotal)

	c, err = service.AddItem(ctx, "user-1", "P", 3, 1000)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, 5000, c.Subtotal)
}

func TestService_TotalsScenario(t *testing.T) {
	service, _, _ := newTestCartService()
	ctx := context.Background()

	c, err := service.AddItem(ctx, "user-1", "chair", 1, 2000)
	require.NoError(t, err)
	assert.Equal(t, 2000, c.Subtotal)
	assert.Equal(t, 3500, c.Total)

	c, err = service.UpdateQuantity(ctx, "user-1", "chair", 2)
	require.NoError(t, err)
	assert.Equal(t, 4000, c.Subtotal)
	assert.Equal(t, 5500, c.Total)

	got, err := service.GetCart(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, c.Total, got.Total)
	assertTotals(t, got)
}
