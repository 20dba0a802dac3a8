package cache

import (
	"context"
	"errors"

	"github.com/fjod/ordermanagement/internal/domain"
)

// CartCache holds read-through cart views. Each buyer has a generation that
// Delete advances; Set only writes a view read under the current generation,
// so a fill that raced with a mutation is dropped instead of cached.
type CartCache interface {
	Get(ctx context.Context, buyerID int64) (*domain.CartView, error)
	Version(ctx context.Context, buyerID int64) (int64, error)
	Set(ctx context.Context, buyerID int64, version int64, cart *domain.CartView) error
	Delete(ctx context.Context, buyerID int64) error
}

var (
	ErrCacheMiss    = errors.New("cache miss")
	ErrStaleVersion = errors.New("cart changed since the view was read")
)

// NoopCache always misses. Used when no Redis address is configured.
type NoopCache struct{}

func (NoopCache) Get(context.Context, int64) (*domain.CartView, error) {
	return nil, ErrCacheMiss
}

func (NoopCache) Version(context.Context, int64) (int64, error) {
	return 0, nil
}

func (NoopCache) Set(context.Context, int64, int64, *domain.CartView) error {
	return nil
}

func (NoopCache) Delete(context.Context, int64) error {
	return nil
}
