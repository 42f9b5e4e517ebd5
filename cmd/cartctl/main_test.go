package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a tiny in-memory stand-in for the marketplace API.
type fakeAPI struct {
	mu    sync.Mutex
	items []map[string]interface{}
	token string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path != "/order/calculate-shipping" && r.Header.Get("Authorization") != "Bearer "+f.token {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"success":false,"error":"authentication required","code":"auth_required"}`))
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/cart":
		f.writeCart(w)
	case r.Method == http.MethodPost && r.URL.Path == "/cart":
		var body struct {
			ProductID string `json:"productId"`
			Quantity  int    `json:"quantity"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		if body.ProductID == "ghost" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"success":false,"error":"product not found","code":"product_not_found"}`))
			return
		}
		f.items = append(f.items, map[string]interface{}{
			"productId": body.ProductID, "name": strings.ToUpper(body.ProductID), "price": 1000, "quantity": body.Quantity,
		})
		f.writeCart(w)
	case r.Method == http.MethodDelete && strings.HasPrefix(r.URL.Path, "/cart/"):
		id := strings.TrimPrefix(r.URL.Path, "/cart/")
		kept := f.items[:0]
		for _, item := range f.items {
			if item["productId"] != id {
				kept = append(kept, item)
			}
		}
		f.items = kept
		f.writeCart(w)
	case r.Method == http.MethodPost && r.URL.Path == "/order/calculate-shipping":
		w.Write([]byte(`{"success":true,"fee":800,"distance":18.5}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeAPI) writeCart(w http.ResponseWriter) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"cart":    map[string]interface{}{"items": f.items},
	})
}

func runCLI(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	state := filepath.Join(t.TempDir(), "cart.json")
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--api", srv.URL, "--token", "secret", "--state", state}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_AddThenShow(t *testing.T) {
	api := &fakeAPI{token: "secret"}
	srv := httptest.NewServer(api)
	defer srv.Close()

	out, err := runCLI(t, srv, "add", "chair", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "CHAIR")
	assert.Contains(t, out, "Subtotal: 2000")

	out, err = runCLI(t, srv, "cart")
	require.NoError(t, err)
	assert.Contains(t, out, "chair")
}

func TestCLI_EmptyCart(t *testing.T) {
	srv := httptest.NewServer(&fakeAPI{token: "secret"})
	defer srv.Close()

	out, err := runCLI(t, srv, "cart")

	require.NoError(t, err)
	assert.Contains(t, out, "Cart is empty")
}

func TestCLI_AddUnknownProduct(t *testing.T) {
	srv := httptest.NewServer(&fakeAPI{token: "secret"})
	defer srv.Close()

	_, err := runCLI(t, srv, "add", "ghost")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "product not found")
}

func TestCLI_RemoveAndEstimate(t *testing.T) {
	api := &fakeAPI{token: "secret"}
	srv := httptest.NewServer(api)
	defer srv.Close()

	_, err := runCLI(t, srv, "add", "chair")
	require.NoError(t, err)
	_, err = runCLI(t, srv, "add", "lamp", "3")
	require.NoError(t, err)

	out, err := runCLI(t, srv, "estimate", "Potsdam")
	require.NoError(t, err)
	assert.Contains(t, out, "Subtotal: 4000")
	assert.Contains(t, out, "Shipping: 1600")
	assert.Contains(t, out, "Total:    5600")

	out, err = runCLI(t, srv, "rm", "chair")
	require.NoError(t, err)
	assert.NotContains(t, out, "CHAIR")
	assert.Contains(t, out, "LAMP")
}

func TestCLI_RequiresToken(t *testing.T) {
	t.Setenv("CARTCTL_TOKEN", "")
	cmd := newRootCmd()
	cmd.SetArgs([]string{"--state", filepath.Join(t.TempDir(), "c.json"), "cart"})

	err := cmd.Execute()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token")
}

func TestCLI_InvalidQuantity(t *testing.T) {
	srv := httptest.NewServer(&fakeAPI{token: "secret"})
	defer srv.Close()

	_, err := runCLI(t, srv, "add", "chair", "0")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid quantity")
}
