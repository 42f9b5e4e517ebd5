package command

// Cart Commands
type AddToCart struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateCartItem struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type RemoveFromCart struct {
	UserID    string `json:"user_id"`
	ProductID string `json:"product_id"`
}

type ClearCart struct {
	UserID string `json:"user_id"`
}

// Shipping Commands
type CalculateShipping struct {
	ProductID string `json:"product_id"`
	BuyerCity string `json:"buyer_city"`
}

// Order Commands
type PlaceOrder struct {
	UserID string `json:"user_id"`
	// BuyerCity switches shipping from the flat cart rule to per-seller
	// distance pricing.
	BuyerCity string `json:"buyer_city"`
}
