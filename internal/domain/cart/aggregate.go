package cart

import (
	"errors"
	"time"
)

const AggregateType = "Cart"

// Upper bounds that keep price*quantity and the cart sums inside int.
const (
	MaxLineQuantity = 999
	MaxPrice        = 1_000_000_000
)

var (
	ErrInvalidQuantity = errors.New("quantity must be between 1 and 999")
	ErrInvalidProduct  = errors.New("product_id is required")
	ErrInvalidPrice    = errors.New("product price is invalid")
	ErrCartNotFound    = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrVersionConflict = errors.New("cart was modified concurrently")
)

// LineItem references a catalog product. Price is captured when the product
// is first added and never re-synced.
type LineItem struct {
	ProductID string `json:"productId" bson:"product_id" dynamodbav:"product_id"`
	Quantity  int    `json:"quantity" bson:"quantity" dynamodbav:"quantity"`
	Price     int    `json:"price" bson:"price" dynamodbav:"price"`
}

// Cart is the server-side cart of one owner. Subtotal, Shipping and Total
// are derived from Items by Recalculate and stored with them.
type Cart struct {
	ID        string     `json:"id" bson:"_id" dynamodbav:"id"`
	UserID    string     `json:"userId" bson:"user_id" dynamodbav:"user_id"`
	Items     []LineItem `json:"items" bson:"items" dynamodbav:"items"`
	Subtotal  int        `json:"subtotal" bson:"subtotal" dynamodbav:"subtotal"`
	Shipping  int        `json:"shipping" bson:"shipping" dynamodbav:"shipping"`
	Total     int        `json:"total" bson:"total" dynamodbav:"total"`
	Version   int64      `json:"version" bson:"version" dynamodbav:"version"`
	CreatedAt time.Time  `json:"createdAt" bson:"created_at" dynamodbav:"created_at"`
	UpdatedAt time.Time  `json:"updatedAt" bson:"updated_at" dynamodbav:"updated_at"`

	// LastOrderID is the latest order whose lines were taken out of the cart.
	LastOrderID string `json:"lastOrderId,omitempty" bson:"last_order_id,omitempty" dynamodbav:"last_order_id,omitempty"`
}

// ShippingRule is the flat free-delivery rule applied to every cart.
type ShippingRule struct {
	FreeThreshold int `json:"free_threshold"`
	FlatFee       int `json:"flat_fee"`
}

func DefaultShippingRule() ShippingRule {
	return ShippingRule{FreeThreshold: 100000, FlatFee: 1500}
}

// Fee returns the shipping charged for a cart with the given subtotal.
func (r ShippingRule) Fee(subtotal int) int {
	if subtotal > r.FreeThreshold {
		return 0
	}
	return r.FlatFee
}

func ValidQuantity(quantity int) bool {
	return quantity >= 1 && quantity <= MaxLineQuantity
}

func ValidPrice(price int) bool {
	return price >= 0 && price <= MaxPrice
}

// GetCartID returns the cart ID for a user
func GetCartID(userID string) string {
	return "cart-" + userID
}

func New(userID string, now time.Time) *Cart {
	return &Cart{
		ID:        GetCartID(userID),
		UserID:    userID,
		Items:     []LineItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (c *Cart) index(productID string) int {
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

func (c *Cart) Find(productID string) (LineItem, bool) {
	if i := c.index(productID); i >= 0 {
		return c.Items[i], true
	}
	return LineItem{}, false
}

// AddItem merges into an existing line, keeping its price, or appends a new one.
func (c *Cart) AddItem(productID string, quantity, price int) error {
	if productID == "" {
		return ErrInvalidProduct
	}
	if !ValidQuantity(quantity) {
		return ErrInvalidQuantity
	}
	if !ValidPrice(price) {
		return ErrInvalidPrice
	}
	if i := c.index(productID); i >= 0 {
		if c.Items[i].Quantity > MaxLineQuantity-quantity {
			return ErrInvalidQuantity
		}
		c.Items[i].Quantity += quantity
		return nil
	}
	c.Items = append(c.Items, LineItem{ProductID: productID, Quantity: quantity, Price: price})
	return nil
}

func (c *Cart) UpdateQuantity(productID string, quantity int) error {
	if productID == "" {
		return ErrInvalidProduct
	}
	if !ValidQuantity(quantity) {
		return ErrInvalidQuantity
	}
	i := c.index(productID)
	if i < 0 {
		return ErrItemNotFound
	}
	c.Items[i].Quantity = quantity
	return nil
}

// RemoveItem reports whether a line was removed.
func (c *Cart) RemoveItem(productID string) bool {
	i := c.index(productID)
	if i < 0 {
		return false
	}
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
	return true
}

// RemoveOrdered takes the lines of order orderID out of the cart. Each
// ordered quantity is subtracted from the matching line, so anything added
// after the order was read stays. Applying the same order twice is a no-op.
func (c *Cart) RemoveOrdered(orderID string, ordered []LineItem) bool {
	if orderID == "" || c.LastOrderID == orderID {
		return false
	}
	for _, o := range ordered {
		i := c.index(o.ProductID)
		if i < 0 {
			continue
		}
		if c.Items[i].Quantity <= o.Quantity {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			continue
		}
		c.Items[i].Quantity -= o.Quantity
	}
	c.LastOrderID = orderID
	return true
}

// Clear reports whether the cart had anything to clear.
func (c *Cart) Clear() bool {
	if len(c.Items) == 0 {
		return false
	}
	c.Items = []LineItem{}
	return true
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Recalculate derives the totals from the items. An empty cart ships free.
func (c *Cart) Recalculate(rule ShippingRule) {
	subtotal := 0
	for _, item := range c.Items {
		subtotal += item.Price * item.Quantity
	}
	c.Subtotal = subtotal
	c.Shipping = 0
	if len(c.Items) > 0 {
		c.Shipping = rule.Fee(subtotal)
	}
	c.Total = c.Subtotal + c.Shipping
}

func (c *Cart) Clone() *Cart {
	clone := *c
	clone.Items = make([]LineItem, len(c.Items))
	copy(clone.Items, c.Items)
	return &clone
}
