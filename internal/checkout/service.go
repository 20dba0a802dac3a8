package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/fjod/ordermanagement/internal/metrics"
	"github.com/fjod/ordermanagement/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrMissingRecipient = fmt.Errorf("recipient is required: %w", domain.ErrInvalidArgument)
	ErrMissingAddress   = fmt.Errorf("address is required: %w", domain.ErrInvalidArgument)
)

type Request struct {
	BuyerID          int64
	ShippingMethodID int64
	Recipient        string
	Address          string
}

// CartInvalidator drops cached cart views once the checkout has committed.
type CartInvalidator interface {
	Invalidate(buyerID int64)
}

type Service struct {
	store   repository.TxRunner
	carts   CartInvalidator
	metrics *metrics.Metrics
}

func NewService(store repository.TxRunner, carts CartInvalidator, m *metrics.Metrics) *Service {
	return &Service{store: store, carts: carts, metrics: m}
}

// Checkout turns the buyer's cart into an order with a pending shipment and empties
// the cart, all in one transaction. Stock reserved by the cart lines moves to the
// order as is; nothing is re-validated or released.
func (s *Service) Checkout(ctx context.Context, req Request) (uuid.UUID, error) {
	req.Recipient = strings.TrimSpace(req.Recipient)
	req.Address = strings.TrimSpace(req.Address)
	if req.Recipient == "" {
		return uuid.Nil, ErrMissingRecipient
	}
	if req.Address == "" {
		return uuid.Nil, ErrMissingAddress
	}

	var order *domain.Order
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		cart, err := tx.LockCart(ctx, req.BuyerID)
		if err != nil {
			return err
		}
		if cart.IsEmpty() {
			return domain.ErrEmptyCart
		}
		method, err := tx.GetShippingMethod(ctx, req.ShippingMethodID)
		if err != nil {
			return err
		}

		order = domain.NewOrder(cart)
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		shipment := domain.NewShipment(order.ID, method.ID, req.Recipient, req.Address)
		if err := tx.InsertShipment(ctx, shipment); err != nil {
			return err
		}
		order.Shipment = shipment

		if err := tx.DeleteCartLines(ctx, cart.ID); err != nil {
			return err
		}
		if err := tx.UpdateCartTotal(ctx, cart.ID, decimal.Zero); err != nil {
			return err
		}

		event, err := domain.NewOrderEvent(domain.EventOrderPlaced, order)
		if err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, event)
	})
	if err != nil {
		s.metrics.Checkout(resultLabel(err))
		slog.InfoContext(ctx, "checkout failed", "buyer_id", req.BuyerID, "error", err)
		return uuid.Nil, err
	}

	s.metrics.Checkout("ok")
	if s.carts != nil {
		s.carts.Invalidate(req.BuyerID)
	}
	slog.InfoContext(ctx, "order placed",
		"order_id", order.ID, "buyer_id", order.BuyerID, "total", order.Total.String(), "items", len(order.Items))
	return order.ID, nil
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInvalidShippingMethod):
		return "invalid_shipping_method"
	default:
		return "error"
	}
}
