package readmodel

import (
	"time"

	"github.com/example/furniture-market/internal/catalog"
	"github.com/example/furniture-market/internal/domain/cart"
)

// CartItemReadModel is a cart line joined with its catalog entry. Price is
// the price captured in the cart, not the current catalog price.
type CartItemReadModel struct {
	ProductID  string `json:"productId"`
	Name       string `json:"name"`
	ImageURL   string `json:"imageUrl,omitempty"`
	SellerID   string `json:"sellerId,omitempty"`
	SellerCity string `json:"sellerCity,omitempty"`
	Quantity   int    `json:"quantity"`
	Price      int    `json:"price"`
	LineTotal  int    `json:"lineTotal"`
}

// CartReadModel is the cart as returned to clients
type CartReadModel struct {
	ID        string              `json:"id"`
	UserID    string              `json:"userId"`
	Items     []CartItemReadModel `json:"items"`
	Subtotal  int                 `json:"subtotal"`
	Shipping  int                 `json:"shipping"`
	Total     int                 `json:"total"`
	Version   int64               `json:"version"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// FromCart joins c with products. Lines whose product has left the catalog
// keep their captured price and an empty name.
func FromCart(c *cart.Cart, products map[string]*catalog.Product) *CartReadModel {
	items := make([]CartItemReadModel, 0, len(c.Items))
	for _, line := range c.Items {
		item := CartItemReadModel{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Price:     line.Price,
			LineTotal: line.Price * line.Quantity,
		}
		if p, ok := products[line.ProductID]; ok {
			item.Name = p.Name
			item.ImageURL = p.ImageURL
			item.SellerID = p.SellerID
			item.SellerCity = p.SellerCity
		}
		items = append(items, item)
	}

	return &CartReadModel{
		ID:        c.ID,
		UserID:    c.UserID,
		Items:     items,
		Subtotal:  c.Subtotal,
		Shipping:  c.Shipping,
		Total:     c.Total,
		Version:   c.Version,
		UpdatedAt: c.UpdatedAt,
	}
}

// ProductIDs lists the product ids referenced by c in line order.
func ProductIDs(c *cart.Cart) []string {
	ids := make([]string, 0, len(c.Items))
	for _, item := range c.Items {
		ids = append(ids, item.ProductID)
	}
	return ids
}
