package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/example/furniture-market/internal/api/middleware"
	"github.com/example/furniture-market/internal/catalog"
	"github.com/example/furniture-market/internal/command"
	"github.com/example/furniture-market/internal/domain/cart"
	"github.com/example/furniture-market/internal/domain/order"
	"github.com/example/furniture-market/internal/query"
	"github.com/example/furniture-market/internal/readmodel"
	"github.com/example/furniture-market/internal/shipping"
	"github.com/go-chi/chi/v5"
)

const (
	maxProductIDLength = 64
	maxBodyBytes       = 1 << 20
)

var (
	errInvalidBody      = errors.New("invalid request body")
	errInvalidProductID = errors.New("invalid product id")
)

type Handlers struct {
	cmdHandler   *command.Handler
	queryHandler *query.Handler
}

func NewHandlers(cmdHandler *command.Handler, queryHandler *query.Handler) *Handlers {
	return &Handlers{
		cmdHandler:   cmdHandler,
		queryHandler: queryHandler,
	}
}

type cartResponse struct {
	Success bool                     `json:"success"`
	Cart    *readmodel.CartReadModel `json:"cart"`
}

type orderResponse struct {
	Success bool         `json:"success"`
	Order   *order.Order `json:"order"`
}

type shippingResponse struct {
	Success  bool    `json:"success"`
	Fee      int     `json:"fee"`
	Distance float64 `json:"distance"`
}

// Cart Handlers

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if !validProductID(req.ProductID) {
		respondError(w, errInvalidProductID)
		return
	}

	view, err := h.cmdHandler.AddToCart(r.Context(), command.AddToCart{
		UserID:    middleware.GetUserID(r.Context()),
		ProductID: strings.TrimSpace(req.ProductID),
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Success: true, Cart: view})
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if !validProductID(productID) {
		respondError(w, errInvalidProductID)
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, err)
		return
	}

	view, err := h.cmdHandler.UpdateCartItem(r.Context(), command.UpdateCartItem{
		UserID:    middleware.GetUserID(r.Context()),
		ProductID: productID,
		Quantity:  req.Quantity,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Success: true, Cart: view})
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if !validProductID(productID) {
		respondError(w, errInvalidProductID)
		return
	}

	view, err := h.cmdHandler.RemoveFromCart(r.Context(), command.RemoveFromCart{
		UserID:    middleware.GetUserID(r.Context()),
		ProductID: productID,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Success: true, Cart: view})
}

// GetCart answers with cart null when the caller has never added anything.
func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.queryHandler.GetCart(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cartResponse{Success: true, Cart: view})
}

// ClearCart empties the caller's cart. Clearing an absent cart succeeds.
func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cmdHandler.ClearCart(r.Context(), command.ClearCart{UserID: middleware.GetUserID(r.Context())}); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// Shipping Handlers

func (h *Handlers) CalculateShipping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProductID string `json:"productId"`
		BuyerCity string `json:"buyerCity"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		respondError(w, err)
		return
	}
	if !validProductID(req.ProductID) {
		respondError(w, errInvalidProductID)
		return
	}

	quote, err := h.cmdHandler.CalculateShipping(r.Context(), command.CalculateShipping{
		ProductID: strings.TrimSpace(req.ProductID),
		BuyerCity: req.BuyerCity,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, shippingResponse{Success: true, Fee: quote.Fee, Distance: quote.DistanceKm})
}

// Order Handlers

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BuyerCity string `json:"buyerCity"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(w, r, &req); err != nil {
			respondError(w, err)
			return
		}
	}

	o, err := h.cmdHandler.PlaceOrder(r.Context(), command.PlaceOrder{
		UserID:    middleware.GetUserID(r.Context()),
		BuyerCity: req.BuyerCity,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, orderResponse{Success: true, Order: o})
}

func (h *Handlers) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.queryHandler.GetOrder(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, orderResponse{Success: true, Order: o})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Helpers

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
}

// respondError maps domain errors onto HTTP statuses. Anything unknown is
// logged and reported as a 500 without leaking details.
func respondError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	message := err.Error()

	switch {
	case errors.Is(err, errInvalidBody),
		errors.Is(err, errInvalidProductID),
		errors.Is(err, cart.ErrInvalidProduct),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, shipping.ErrInvalidCity):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, cart.ErrInvalidPrice):
		status, code = http.StatusBadRequest, "invalid_price"
	case errors.Is(err, order.ErrEmptyOrder):
		status, code = http.StatusBadRequest, "empty_cart"
	case errors.Is(err, cart.ErrCartNotFound):
		status, code = http.StatusNotFound, "cart_not_found"
	case errors.Is(err, cart.ErrItemNotFound):
		status, code = http.StatusNotFound, "item_not_found"
	case errors.Is(err, catalog.ErrProductNotFound):
		status, code = http.StatusNotFound, "product_not_found"
	case errors.Is(err, shipping.ErrQuoteUnavailable):
		status, code = http.StatusNotFound, "city_not_found"
	case errors.Is(err, order.ErrOrderNotFound):
		status, code = http.StatusNotFound, "order_not_found"
	case errors.Is(err, cart.ErrVersionConflict):
		status, code = http.StatusConflict, "conflict"
	default:
		log.Printf("[API] Internal error: %v", err)
		message = "internal server error"
	}

	respondJSON(w, status, errorResponse{Success: false, Error: message, Code: code})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errInvalidBody
	}
	return nil
}

func validProductID(id string) bool {
	trimmed := strings.TrimSpace(id)
	return trimmed != "" && len(id) <= maxProductIDLength
}
