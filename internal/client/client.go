// Package client is a typed HTTP client for the marketplace API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBytes = 1 << 20

// Credentials authenticate a single request. They are passed into every
// call instead of being stored on the Client.
type Credentials struct {
	Token string
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the API at baseURL. A nil httpClient gets a
// client with a 15 second timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// GetCart returns the caller's cart, or nil when none exists yet.
func (c *Client) GetCart(ctx context.Context, creds Credentials) (*Cart, error) {
	var resp cartEnvelope
	if err := c.do(ctx, creds, http.MethodGet, "/cart", nil, &resp); err != nil {
		return nil, err
	}
	return normalizeCart(resp.Cart)
}

func (c *Client) AddItem(ctx context.Context, creds Credentials, productID string, quantity int) (*Cart, error) {
	body := map[string]interface{}{"productId": productID, "quantity": quantity}
	var resp cartEnvelope
	if err := c.do(ctx, creds, http.MethodPost, "/cart", body, &resp); err != nil {
		return nil, err
	}
	return normalizeCart(resp.Cart)
}

func (c *Client) UpdateQuantity(ctx context.Context, creds Credentials, productID string, quantity int) (*Cart, error) {
	body := map[string]interface{}{"quantity": quantity}
	var resp cartEnvelope
	if err := c.do(ctx, creds, http.MethodPut, "/cart/"+url.PathEscape(productID), body, &resp); err != nil {
		return nil, err
	}
	return normalizeCart(resp.Cart)
}

func (c *Client) RemoveItem(ctx context.Context, creds Credentials, productID string) (*Cart, error) {
	var resp cartEnvelope
	if err := c.do(ctx, creds, http.MethodDelete, "/cart/"+url.PathEscape(productID), nil, &resp); err != nil {
		return nil, err
	}
	return normalizeCart(resp.Cart)
}

// CalculateShipping quotes one product to buyerCity. The endpoint is public.
func (c *Client) CalculateShipping(ctx context.Context, productID, buyerCity string) (ShippingQuote, error) {
	body := map[string]string{"productId": productID, "buyerCity": buyerCity}
	var resp struct {
		Fee      int     `json:"fee"`
		Distance float64 `json:"distance"`
	}
	if err := c.do(ctx, Credentials{}, http.MethodPost, "/order/calculate-shipping", body, &resp); err != nil {
		return ShippingQuote{}, err
	}
	return ShippingQuote{Fee: resp.Fee, DistanceKm: resp.Distance}, nil
}

// PlaceOrder checks out the caller's cart. An empty buyerCity uses the flat
// shipping rule.
func (c *Client) PlaceOrder(ctx context.Context, creds Credentials, buyerCity string) (*Order, error) {
	var body interface{}
	if buyerCity != "" {
		body = map[string]string{"buyerCity": buyerCity}
	}
	var resp struct {
		Order *Order `json:"order"`
	}
	if err := c.do(ctx, creds, http.MethodPost, "/order", body, &resp); err != nil {
		return nil, err
	}
	if resp.Order == nil {
		return nil, fmt.Errorf("%w: order missing", ErrMalformedPayload)
	}
	return resp.Order, nil
}

func (c *Client) do(ctx context.Context, creds Credentials, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var envelope struct {
			Error   string `json:"error"`
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if json.Unmarshal(data, &envelope) == nil {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Error
			if apiErr.Message == "" {
				apiErr.Message = envelope.Message
			}
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
