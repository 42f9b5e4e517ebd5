package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrMalformedPayload = errors.New("malformed response payload")

// CartItem is the canonical client-side cart line.
type CartItem struct {
	ProductID string `json:"productId"`
	Name      string `json:"name,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Price     int    `json:"price"`
	Quantity  int    `json:"quantity"`
}

type Cart struct {
	Items    []CartItem
	Subtotal int
	Shipping int
	Total    int
	Version  int64
}

type ShippingQuote struct {
	Fee        int
	DistanceKm float64
}

type Order struct {
	ID             string     `json:"id"`
	Items          []CartItem `json:"items"`
	Subtotal       int        `json:"subtotal"`
	Shipping       int        `json:"shipping"`
	Total          int        `json:"total"`
	BuyerCity      string     `json:"buyerCity,omitempty"`
	ShippingMethod string     `json:"shippingMethod"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"createdAt"`
}

type cartEnvelope struct {
	Cart *wireCart `json:"cart"`
}

type wireCart struct {
	Items    []wireItem `json:"items"`
	Subtotal int        `json:"subtotal"`
	Shipping int        `json:"shipping"`
	Total    int        `json:"total"`
	Version  int64      `json:"version"`
}

// wireItem accepts every line shape the API has served: a flat productId,
// or a populated product object keyed by id or _id.
type wireItem struct {
	ProductID string          `json:"productId"`
	Product   json.RawMessage `json:"product"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"imageUrl"`
	Price     *int            `json:"price"`
	Quantity  int             `json:"quantity"`
}

type wireProduct struct {
	ID       string `json:"id"`
	MongoID  string `json:"_id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
	Image    string `json:"image"`
	Price    *int   `json:"price"`
}

func normalizeCart(w *wireCart) (*Cart, error) {
	if w == nil {
		return nil, nil
	}
	items := make([]CartItem, 0, len(w.Items))
	for i, wi := range w.Items {
		item, err := normalizeItem(wi)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return &Cart{
		Items:    items,
		Subtotal: w.Subtotal,
		Shipping: w.Shipping,
		Total:    w.Total,
		Version:  w.Version,
	}, nil
}

func normalizeItem(w wireItem) (CartItem, error) {
	item := CartItem{
		ProductID: strings.TrimSpace(w.ProductID),
		Name:      w.Name,
		ImageURL:  w.ImageURL,
		Quantity:  w.Quantity,
	}
	if w.Price != nil {
		item.Price = *w.Price
	}

	if len(w.Product) > 0 && string(w.Product) != "null" {
		var id string
		if err := json.Unmarshal(w.Product, &id); err == nil {
			if item.ProductID == "" {
				item.ProductID = strings.TrimSpace(id)
			}
		} else {
			var p wireProduct
			if err := json.Unmarshal(w.Product, &p); err != nil {
				return CartItem{}, fmt.Errorf("%w: product: %v", ErrMalformedPayload, err)
			}
			if item.ProductID == "" {
				item.ProductID = strings.TrimSpace(firstNonEmpty(p.ID, p.MongoID))
			}
			if item.Name == "" {
				item.Name = p.Name
			}
			if item.ImageURL == "" {
				item.ImageURL = firstNonEmpty(p.ImageURL, p.Image)
			}
			if w.Price == nil && p.Price != nil {
				item.Price = *p.Price
			}
		}
	}

	if item.ProductID == "" {
		return CartItem{}, fmt.Errorf("%w: line without product id", ErrMalformedPayload)
	}
	if item.Quantity < 1 {
		return CartItem{}, fmt.Errorf("%w: quantity %d for %s", ErrMalformedPayload, item.Quantity, item.ProductID)
	}
	return item, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
