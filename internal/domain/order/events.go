package order

import "time"

const EventOrderPlaced = "OrderPlaced"

type OrderItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Price     int    `json:"price"`
}

type OrderPlaced struct {
	OrderID        string      `json:"order_id"`
	UserID         string      `json:"user_id"`
	Items          []OrderItem `json:"items"`
	Subtotal       int         `json:"subtotal"`
	Shipping       int         `json:"shipping"`
	Total          int         `json:"total"`
	ShippingMethod string      `json:"shipping_method"`
	PlacedAt       time.Time   `json:"placed_at"`
}
