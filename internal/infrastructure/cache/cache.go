package cache

import (
	"context"
	"errors"

	"github.com/example/furniture-market/internal/readmodel"
)

// CartCache holds cart views. Every Delete advances the owner's fence; a
// view built after reading fence f is only stored while the fence is still f,
// so a read that raced a mutation cannot resurrect the old cart.
type CartCache interface {
	Get(ctx context.Context, userID string) (*readmodel.CartReadModel, error)
	Fence(ctx context.Context, userID string) (int64, error)
	Set(ctx context.Context, userID string, fence int64, cart *readmodel.CartReadModel) error
	Delete(ctx context.Context, userID string) error
}

var (
	ErrCacheMiss = errors.New("cache miss")
	// ErrFenced reports a Set skipped because the cart changed since the fence was read.
	ErrFenced = errors.New("cart view is outdated")
)

// Nop never stores anything. Used when Redis is not configured.
type Nop struct{}

func (Nop) Get(context.Context, string) (*readmodel.CartReadModel, error)      { return nil, ErrCacheMiss }
func (Nop) Fence(context.Context, string) (int64, error)                       { return 0, nil }
func (Nop) Set(context.Context, string, int64, *readmodel.CartReadModel) error { return nil }
func (Nop) Delete(context.Context, string) error                               { return nil }
