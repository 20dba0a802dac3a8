package cart

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/fjod/ordermanagement/internal/cache"
	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/fjod/ordermanagement/internal/inventory"
	"github.com/fjod/ordermanagement/internal/repository"
	"golang.org/x/sync/singleflight"
)

const loadTimeout = 5 * time.Second

// Service is the cart aggregate. Every mutation is one transaction that starts
// by locking the buyer's cart row, so operations on one cart never interleave.
type Service struct {
	store  repository.TxRunner
	ledger *inventory.Ledger
	cache  cache.CartCache
	sfg    singleflight.Group
}

func NewService(store repository.TxRunner, ledger *inventory.Ledger, c cache.CartCache) *Service {
	if c == nil {
		c = cache.NoopCache{}
	}
	return &Service{
		store:  store,
		ledger: ledger,
		cache:  c,
	}
}

// GetOrCreate returns the buyer's cart, creating an empty one on first access.
// Concurrent reads of one cart share a single load. The load runs detached from
// the caller's cancellation so one caller giving up does not fail the others.
func (s *Service) GetOrCreate(ctx context.Context, buyerID int64) (*domain.CartView, error) {
	ch := s.sfg.DoChan(strconv.FormatInt(buyerID, 10), func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		return s.load(loadCtx, buyerID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.CartView), nil
	}
}

func (s *Service) load(ctx context.Context, buyerID int64) (*domain.CartView, error) {
	view, err := s.cache.Get(ctx, buyerID)
	if err == nil {
		return view, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		slog.WarnContext(ctx, "cart cache get failed", "buyer_id", buyerID, "error", err)
	}

	// the generation is read before the cart so a mutation committed in
	// between makes the fill below a no-op
	version, verErr := s.cache.Version(ctx, buyerID)
	if verErr != nil {
		slog.WarnContext(ctx, "cart cache version failed", "buyer_id", buyerID, "error", verErr)
	}

	err = s.store.InTx(ctx, func(tx repository.Tx) error {
		c, err := tx.LockCart(ctx, buyerID)
		if err != nil {
			return err
		}
		view = c.View()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if verErr == nil {
		s.fillCache(buyerID, version, view)
	}
	return view, nil
}

// AddItem reserves qty units of the option and merges them into the cart.
// A repeat add of the same option grows the existing line.
func (s *Service) AddItem(ctx context.Context, buyerID, optionID int64, qty int) (*domain.CartView, error) {
	if qty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	return s.mutate(ctx, buyerID, func(tx repository.Tx, c *domain.Cart) error {
		option, err := tx.GetStockOption(ctx, optionID)
		if err != nil {
			return err
		}
		if _, err := s.ledger.Reserve(ctx, tx, optionID, qty); err != nil {
			return err
		}

		if line, ok := c.LineForOption(optionID); ok {
			line.Quantity += qty
			return tx.UpdateCartLineQuantity(ctx, line.ID, line.Quantity)
		}

		line := domain.NewCartLine(c.ID, option, qty)
		if err := tx.InsertCartLine(ctx, &line); err != nil {
			return err
		}
		c.Lines = append(c.Lines, line)
		return nil
	})
}

// UpdateQuantity sets a line to newQty, reserving or releasing the difference.
func (s *Service) UpdateQuantity(ctx context.Context, buyerID, lineID int64, newQty int) (*domain.CartView, error) {
	if newQty <= 0 {
		return nil, domain.ErrInvalidQuantity
	}
	return s.mutate(ctx, buyerID, func(tx repository.Tx, c *domain.Cart) error {
		line, ok := c.Line(lineID)
		if !ok {
			return domain.ErrLineNotFound
		}

		delta := newQty - line.Quantity
		switch {
		case delta > 0:
			if _, err := s.ledger.Reserve(ctx, tx, line.OptionID, delta); err != nil {
				return err
			}
		case delta < 0:
			if _, err := s.ledger.Release(ctx, tx, line.OptionID, -delta); err != nil {
				return err
			}
		default:
			return nil
		}

		line.Quantity = newQty
		return tx.UpdateCartLineQuantity(ctx, line.ID, newQty)
	})
}

// RemoveItem releases the line's full quantity and deletes it.
func (s *Service) RemoveItem(ctx context.Context, buyerID, lineID int64) (*domain.CartView, error) {
	return s.mutate(ctx, buyerID, func(tx repository.Tx, c *domain.Cart) error {
		line, ok := c.Line(lineID)
		if !ok {
			return domain.ErrLineNotFound
		}
		if _, err := s.ledger.Release(ctx, tx, line.OptionID, line.Quantity); err != nil {
			return err
		}
		if err := tx.DeleteCartLine(ctx, line.ID); err != nil {
			return err
		}
		c.RemoveLine(lineID)
		return nil
	})
}

// Clear releases every line back to stock and empties the cart.
func (s *Service) Clear(ctx context.Context, buyerID int64) (*domain.CartView, error) {
	return s.mutate(ctx, buyerID, func(tx repository.Tx, c *domain.Cart) error {
		for _, line := range c.Lines {
			if _, err := s.ledger.Release(ctx, tx, line.OptionID, line.Quantity); err != nil {
				return err
			}
		}
		if err := tx.DeleteCartLines(ctx, c.ID); err != nil {
			return err
		}
		c.Lines = nil
		return nil
	})
}

// Invalidate drops the cached view of a buyer's cart.
func (s *Service) Invalidate(buyerID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, buyerID); err != nil {
		slog.Warn("cart cache invalidate failed", "buyer_id", buyerID, "error", err)
	}
}

// mutate locks the cart, applies fn, and persists the recomputed total in the same
// transaction. The cache is invalidated only after a successful commit.
func (s *Service) mutate(ctx context.Context, buyerID int64, fn func(tx repository.Tx, c *domain.Cart) error) (*domain.CartView, error) {
	var view *domain.CartView
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		c, err := tx.LockCart(ctx, buyerID)
		if err != nil {
			return err
		}
		if err := fn(tx, c); err != nil {
			return err
		}
		c.Total = c.ComputeTotal()
		if err := tx.UpdateCartTotal(ctx, c.ID, c.Total); err != nil {
			return err
		}
		view = c.View()
		return nil
	})
	if err != nil {
		slog.InfoContext(ctx, "cart operation rejected", "buyer_id", buyerID, "error", err)
		return nil, err
	}

	s.Invalidate(buyerID)
	return view, nil
}

func (s *Service) fillCache(buyerID, version int64, view *domain.CartView) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := s.cache.Set(ctx, buyerID, version, view)
	switch {
	case err == nil:
	case errors.Is(err, cache.ErrStaleVersion):
		slog.Debug("cart changed during read, cache fill skipped", "buyer_id", buyerID)
	default:
		slog.Warn("cart cache set failed", "buyer_id", buyerID, "error", err)
	}
}
