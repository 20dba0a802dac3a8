package inventory

import (
	"context"
	"errors"
	"log/slog"

	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/fjod/ordermanagement/internal/metrics"
)

// StockWriter is the part of a transaction the ledger needs. Reservations and
// releases always run on the caller's transaction so they commit or roll back
// together with the cart write that triggered them.
type StockWriter interface {
	DecrementStock(ctx context.Context, optionID int64, qty int) (int, error)
	IncrementStock(ctx context.Context, optionID int64, qty int) (int, error)
}

// Ledger owns per-option stock counts.
type Ledger struct {
	metrics *metrics.Metrics
}

func NewLedger(m *metrics.Metrics) *Ledger {
	return &Ledger{metrics: m}
}

// Reserve takes qty units of optionID out of stock and returns the remaining balance.
// It fails with domain.ErrInsufficientStock when fewer than qty units are available.
func (l *Ledger) Reserve(ctx context.Context, tx StockWriter, optionID int64, qty int) (int, error) {
	if qty <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	balance, err := tx.DecrementStock(ctx, optionID, qty)
	l.record(ctx, "reserve", optionID, qty, balance, err)
	return balance, err
}

// Release returns qty units of optionID to stock.
func (l *Ledger) Release(ctx context.Context, tx StockWriter, optionID int64, qty int) (int, error) {
	if qty <= 0 {
		return 0, domain.ErrInvalidQuantity
	}
	balance, err := tx.IncrementStock(ctx, optionID, qty)
	l.record(ctx, "release", optionID, qty, balance, err)
	return balance, err
}

func (l *Ledger) record(ctx context.Context, op string, optionID int64, qty, balance int, err error) {
	result := "ok"
	switch {
	case err == nil:
		slog.DebugContext(ctx, "stock "+op, "option_id", optionID, "qty", qty, "balance", balance)
	case errors.Is(err, domain.ErrInsufficientStock):
		result = "insufficient_stock"
	case errors.Is(err, domain.ErrNotFound):
		result = "not_found"
	default:
		result = "error"
		slog.ErrorContext(ctx, "stock "+op+" failed", "option_id", optionID, "qty", qty, "error", err)
	}
	l.metrics.StockOperation(op, result)
}
