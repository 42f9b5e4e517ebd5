package cart

import "time"

const (
	EventItemAdded       = "ItemAddedToCart"
	EventQuantityUpdated = "CartItemQuantityUpdated"
	EventItemRemoved     = "ItemRemovedFromCart"
	EventCartCleared     = "CartCleared"
	EventCheckedOut      = "CartCheckedOut"
)

type ItemAddedToCart struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Price     int       `json:"price"`
	Subtotal  int       `json:"subtotal"`
	Total     int       `json:"total"`
	AddedAt   time.Time `json:"added_at"`
}

type CartItemQuantityUpdated struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Subtotal  int       `json:"subtotal"`
	Total     int       `json:"total"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ItemRemovedFromCart struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	Subtotal  int       `json:"subtotal"`
	Total     int       `json:"total"`
	RemovedAt time.Time `json:"removed_at"`
}

type CartCleared struct {
	CartID    string    `json:"cart_id"`
	UserID    string    `json:"user_id"`
	ClearedAt time.Time `json:"cleared_at"`
}

type CartCheckedOut struct {
	CartID       string     `json:"cart_id"`
	UserID       string     `json:"user_id"`
	OrderID      string     `json:"order_id"`
	Items        []LineItem `json:"items"`
	Subtotal     int        `json:"subtotal"`
	Total        int        `json:"total"`
	CheckedOutAt time.Time  `json:"checked_out_at"`
}
