// Package cartstore mirrors the server cart on the client and applies
// mutations optimistically.
package cartstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/example/furniture-market/internal/client"
	"github.com/example/furniture-market/internal/keylock"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrInvalidProduct  = errors.New("product id is required")
	ErrInvalidCity     = errors.New("buyer city is required")
)

// Backend is the slice of the API the store talks to.
type Backend interface {
	GetCart(ctx context.Context, creds client.Credentials) (*client.Cart, error)
	AddItem(ctx context.Context, creds client.Credentials, productID string, quantity int) (*client.Cart, error)
	UpdateQuantity(ctx context.Context, creds client.Credentials, productID string, quantity int) (*client.Cart, error)
	RemoveItem(ctx context.Context, creds client.Credentials, productID string) (*client.Cart, error)
	CalculateShipping(ctx context.Context, productID, buyerCity string) (client.ShippingQuote, error)
}

type Item = client.CartItem

// Estimate is a checkout preview built from the local mirror.
type Estimate struct {
	Subtotal int
	Shipping int
	Total    int
}

// Store holds the last known cart of one user. Mutations on the same
// product run one at a time; mutations on different products overlap.
type Store struct {
	backend  Backend
	creds    client.Credentials
	snapshot *snapshotFile
	locks    *keylock.Locker

	mu      sync.Mutex
	items   []Item
	stamps  map[string]uint64
	clock   uint64
	epoch   uint64
	loading int
	lastErr error

	estimateMu     sync.Mutex
	cancelEstimate context.CancelFunc
	estimateSeq    uint64
}

type Option func(*Store)

// WithSnapshotFile persists the mirror to path after every change and
// restores it on construction.
func WithSnapshotFile(path string) Option {
	return func(s *Store) {
		s.snapshot = &snapshotFile{path: path}
	}
}

func New(backend Backend, creds client.Credentials, opts ...Option) (*Store, error) {
	s := &Store{
		backend: backend,
		creds:   creds,
		locks:   keylock.New(),
		stamps:  make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.snapshot != nil {
		items, err := s.snapshot.load()
		if err != nil {
			return nil, err
		}
		s.items = items
	}
	return s, nil
}

// Items returns a copy of the mirrored lines.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.items)
}

// Subtotal is recomputed from the local lines and may differ from the
// server's figure until the next Fetch.
func (s *Store) Subtotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return subtotal(s.items)
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// Err returns the failure recorded by the last operation, if any.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Fetch replaces the mirror with the server cart. On failure the mirror is
// emptied rather than left stale.
func (s *Store) Fetch(ctx context.Context) error {
	s.begin()
	defer s.end()

	cart, err := s.backend.GetCart(ctx, s.creds)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.stamps = make(map[string]uint64)
	if err != nil {
		log.Printf("[CartStore] Fetch failed: %v", err)
		s.items = nil
		s.lastErr = err
		s.persistLocked()
		return err
	}

	s.items = nil
	if cart != nil && len(cart.Items) > 0 {
		s.items = cloneItems(cart.Items)
	}
	s.lastErr = nil
	s.persistLocked()
	return nil
}

// Add merges item into the mirror, then asks the server to do the same.
// item.Quantity is the amount to add.
func (s *Store) Add(ctx context.Context, item Item) error {
	item.ProductID = strings.TrimSpace(item.ProductID)
	if item.ProductID == "" {
		return s.reject(ErrInvalidProduct)
	}
	if item.Quantity < 1 {
		return s.reject(ErrInvalidQuantity)
	}

	return s.mutate(ctx, item.ProductID, func(items []Item) []Item {
		if i := indexOf(items, item.ProductID); i >= 0 {
			items[i].Quantity += item.Quantity
			return items
		}
		return append(items, item)
	}, func(ctx context.Context) error {
		_, err := s.backend.AddItem(ctx, s.creds, item.ProductID, item.Quantity)
		return err
	})
}

// UpdateQuantity sets the quantity of a line. Anything below 1 removes it.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return s.Remove(ctx, productID)
	}
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return s.reject(ErrInvalidProduct)
	}

	return s.mutate(ctx, productID, func(items []Item) []Item {
		if i := indexOf(items, productID); i >= 0 {
			items[i].Quantity = quantity
		}
		return items
	}, func(ctx context.Context) error {
		_, err := s.backend.UpdateQuantity(ctx, s.creds, productID, quantity)
		return err
	})
}

func (s *Store) Remove(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return s.reject(ErrInvalidProduct)
	}

	return s.mutate(ctx, productID, func(items []Item) []Item {
		if i := indexOf(items, productID); i >= 0 {
			return append(items[:i], items[i+1:]...)
		}
		return items
	}, func(ctx context.Context) error {
		_, err := s.backend.RemoveItem(ctx, s.creds, productID)
		return err
	})
}

// mutate runs the optimistic protocol for one product: apply locally, call
// the server, and on failure put that product's line back the way it was.
// The revert is skipped when a Fetch or a newer mutation of the product has
// replaced the state since.
func (s *Store) mutate(ctx context.Context, productID string, apply func([]Item) []Item, call func(context.Context) error) error {
	unlock := s.locks.Lock(productID)
	defer unlock()

	s.begin()
	defer s.end()

	s.mu.Lock()
	prevIndex := indexOf(s.items, productID)
	var prev *Item
	if prevIndex >= 0 {
		line := s.items[prevIndex]
		prev = &line
	}
	s.items = apply(cloneItems(s.items))
	s.clock++
	stamp := s.clock
	s.stamps[productID] = stamp
	epoch := s.epoch
	s.persistLocked()
	s.mu.Unlock()

	err := call(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	superseded := s.epoch != epoch || s.stamps[productID] != stamp
	if !superseded {
		delete(s.stamps, productID)
	}
	if err == nil {
		s.lastErr = nil
		return nil
	}

	s.lastErr = err
	if superseded {
		log.Printf("[CartStore] Mutation of %s failed after newer state arrived, not reverting: %v", productID, err)
		return err
	}
	s.items = restoreLine(s.items, productID, prev, prevIndex)
	s.persistLocked()
	log.Printf("[CartStore] Mutation of %s failed, reverted: %v", productID, err)
	return err
}

// EstimateShipping quotes every line to buyerCity and adds the fees to the
// local subtotal. Starting a new estimate cancels the one in flight.
func (s *Store) EstimateShipping(ctx context.Context, buyerCity string) (Estimate, error) {
	buyerCity = strings.TrimSpace(buyerCity)
	if buyerCity == "" {
		return Estimate{}, ErrInvalidCity
	}

	ctx, cancel := context.WithCancel(ctx)
	s.estimateMu.Lock()
	if s.cancelEstimate != nil {
		s.cancelEstimate()
	}
	s.cancelEstimate = cancel
	s.estimateSeq++
	seq := s.estimateSeq
	s.estimateMu.Unlock()

	defer func() {
		s.estimateMu.Lock()
		if s.estimateSeq == seq {
			s.cancelEstimate = nil
		}
		s.estimateMu.Unlock()
		cancel()
	}()

	items := s.Items()
	fees := make([]int, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, item := range items {
		i := i
		item := item
		g.Go(func() error {
			quote, err := s.backend.CalculateShipping(gctx, item.ProductID, buyerCity)
			if err != nil {
				return fmt.Errorf("shipping for %s: %w", item.ProductID, err)
			}
			fees[i] = quote.Fee
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return Estimate{}, ctx.Err()
		}
		return Estimate{}, err
	}
	if err := ctx.Err(); err != nil {
		return Estimate{}, err
	}

	est := Estimate{Subtotal: subtotal(items)}
	for _, fee := range fees {
		est.Shipping += fee
	}
	est.Total = est.Subtotal + est.Shipping
	return est, nil
}

func (s *Store) reject(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}

func (s *Store) begin() {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
}

func (s *Store) end() {
	s.mu.Lock()
	s.loading--
	s.mu.Unlock()
}

func (s *Store) persistLocked() {
	if s.snapshot == nil {
		return
	}
	if err := s.snapshot.save(s.items); err != nil {
		log.Printf("[CartStore] Failed to write snapshot %s: %v", s.snapshot.path, err)
	}
}

// restoreLine puts productID's line back to prev at its old position, or
// drops it when it did not exist before.
func restoreLine(items []Item, productID string, prev *Item, prevIndex int) []Item {
	items = cloneItems(items)
	i := indexOf(items, productID)
	switch {
	case prev == nil && i >= 0:
		return append(items[:i], items[i+1:]...)
	case prev == nil:
		return items
	case i >= 0:
		items = append(items[:i], items[i+1:]...)
	}
	if prevIndex > len(items) {
		prevIndex = len(items)
	}
	items = append(items, Item{})
	copy(items[prevIndex+1:], items[prevIndex:])
	items[prevIndex] = *prev
	return items
}

func indexOf(items []Item, productID string) int {
	for i := range items {
		if items[i].ProductID == productID {
			return i
		}
	}
	return -1
}

func subtotal(items []Item) int {
	total := 0
	for _, item := range items {
		total += item.Price * item.Quantity
	}
	return total
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	return append([]Item(nil), items...)
}
