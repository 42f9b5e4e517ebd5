// Package shipping computes distance-based shipping quotes.
package shipping

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/example/furniture-market/internal/geo"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidCity      = errors.New("city is required")
	ErrQuoteUnavailable = errors.New("shipping quote unavailable")
)

// estimateConcurrency bounds parallel seller lookups in one Estimate.
const estimateConcurrency = 4

// Geocoder resolves a city name. found is false for unknown cities and for
// upstream failures alike.
type Geocoder interface {
	Geocode(ctx context.Context, city string) (coords geo.Coordinates, found bool)
}

type Quote struct {
	DistanceKm float64 `json:"distance"`
	Fee        int     `json:"fee"`
}

// Shipment is one seller's share of a cart.
type Shipment struct {
	SellerID   string
	SellerCity string
	// SellerLocation skips geocoding the seller side when set.
	SellerLocation *geo.Coordinates
}

func (s Shipment) key() string {
	if s.SellerID != "" {
		return s.SellerID
	}
	return strings.ToLower(strings.TrimSpace(s.SellerCity))
}

type Estimate struct {
	Fee    int              `json:"fee"`
	Quotes map[string]Quote `json:"quotes"`
}

type QuoteService struct {
	geocoder Geocoder
	table    *TierTable
}

func NewQuoteService(geocoder Geocoder, table *TierTable) *QuoteService {
	return &QuoteService{geocoder: geocoder, table: table}
}

// Table returns the fee table every quote of this service is priced with.
func (s *QuoteService) Table() *TierTable {
	return s.table
}

// Quote prices a single seller/buyer pair. ok is false when either city
// cannot be resolved.
func (s *QuoteService) Quote(ctx context.Context, sellerCity, buyerCity string, sellerHint *geo.Coordinates) (Quote, bool) {
	seller, ok := s.resolve(ctx, sellerCity, sellerHint)
	if !ok {
		log.Printf("[Shipping] Seller city %q not resolved", sellerCity)
		return Quote{}, false
	}
	buyer, ok := s.geocoder.Geocode(ctx, buyerCity)
	if !ok {
		log.Printf("[Shipping] Buyer city %q not resolved", buyerCity)
		return Quote{}, false
	}
	return s.price(seller, buyer), true
}

// Estimate quotes every distinct seller once and sums the fees. The buyer
// city is resolved a single time for the whole pass.
func (s *QuoteService) Estimate(ctx context.Context, buyerCity string, shipments []Shipment) (*Estimate, error) {
	if strings.TrimSpace(buyerCity) == "" {
		return nil, ErrInvalidCity
	}
	buyer, ok := s.geocoder.Geocode(ctx, buyerCity)
	if !ok {
		return nil, fmt.Errorf("%w: buyer city %q", ErrQuoteUnavailable, buyerCity)
	}

	distinct := make(map[string]Shipment)
	for _, sh := range shipments {
		if _, seen := distinct[sh.key()]; !seen {
			distinct[sh.key()] = sh
		}
	}

	var mu sync.Mutex
	est := &Estimate{Quotes: make(map[string]Quote, len(distinct))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(estimateConcurrency)
	for key, sh := range distinct {
		key := key
		sh := sh
		g.Go(func() error {
			seller, ok := s.resolve(gctx, sh.SellerCity, sh.SellerLocation)
			if !ok {
				return fmt.Errorf("%w: seller city %q", ErrQuoteUnavailable, sh.SellerCity)
			}
			q := s.price(seller, buyer)
			mu.Lock()
			est.Quotes[key] = q
			est.Fee += q.Fee
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return est, nil
}

func (s *QuoteService) resolve(ctx context.Context, city string, hint *geo.Coordinates) (geo.Coordinates, bool) {
	if hint != nil {
		return *hint, true
	}
	return s.geocoder.Geocode(ctx, city)
}

func (s *QuoteService) price(seller, buyer geo.Coordinates) Quote {
	km := geo.Distance(seller, buyer)
	return Quote{DistanceKm: km, Fee: s.table.Fee(km)}
}
