package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/fjod/ordermanagement/internal/metrics"
	"github.com/fjod/ordermanagement/internal/repository"
	"github.com/google/uuid"
)

var ErrMissingTrackingNumber = fmt.Errorf("tracking number is required: %w", domain.ErrInvalidArgument)

type Store interface {
	repository.TxRunner
	repository.OrderReader
}

// Lifecycle applies post-checkout status changes. Each change locks the order row,
// checks the transition table of the affected axis, and records an outbox event
// in the same transaction.
type Lifecycle struct {
	store   Store
	metrics *metrics.Metrics
}

func NewLifecycle(store Store, m *metrics.Metrics) *Lifecycle {
	return &Lifecycle{store: store, metrics: m}
}

// UpdateStatus sets one status axis of an order to value on behalf of actorID.
// Payment changes are reserved to the buyer and shipping changes to a seller of
// the order; the order axis accepts either.
func (l *Lifecycle) UpdateStatus(ctx context.Context, actorID int64, orderID uuid.UUID, field domain.StatusField, value string) (bool, error) {
	_, err := l.transition(ctx, orderID, guardFor(actorID, field), func(o *domain.Order) error {
		return o.ApplyStatus(field, value)
	})
	if err != nil {
		return false, err
	}
	l.metrics.Transition(string(field), value)
	return true, nil
}

func (l *Lifecycle) Cancel(ctx context.Context, actorID int64, orderID uuid.UUID) (bool, error) {
	return l.UpdateStatus(ctx, actorID, orderID, domain.FieldOrder, domain.OrderStatusCanceled.String())
}

// Pay marks the order paid. Only the order's buyer may pay.
func (l *Lifecycle) Pay(ctx context.Context, buyerID int64, orderID uuid.UUID) (bool, error) {
	_, err := l.transition(ctx, orderID, buyerGuard(buyerID), func(o *domain.Order) error {
		return o.ApplyStatus(domain.FieldPayment, domain.PaymentStatusPaid.String())
	})
	if err != nil {
		return false, err
	}
	l.metrics.Transition(string(domain.FieldPayment), domain.PaymentStatusPaid.String())
	return true, nil
}

// Ship advances the shipping status. The actor must sell at least one item of the order.
func (l *Lifecycle) Ship(ctx context.Context, sellerID int64, orderID uuid.UUID, next domain.ShippingStatus) (bool, error) {
	_, err := l.transition(ctx, orderID, sellerGuard(sellerID), func(o *domain.Order) error {
		return o.ApplyStatus(domain.FieldShipping, next.String())
	})
	if err != nil {
		return false, err
	}
	l.metrics.Transition(string(domain.FieldShipping), next.String())
	return true, nil
}

// RecordShipment stores the carrier tracking number and marks the shipment dispatched.
func (l *Lifecycle) RecordShipment(ctx context.Context, sellerID int64, orderID uuid.UUID, trackingNumber string) (*domain.Shipment, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if trackingNumber == "" {
		return nil, ErrMissingTrackingNumber
	}

	var shipment *domain.Shipment
	err := l.store.InTx(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if err := sellerGuard(sellerID)(o); err != nil {
			return err
		}
		if o.Status == domain.OrderStatusCanceled {
			return fmt.Errorf("%w: order is canceled", domain.ErrIllegalTransition)
		}
		if o.Shipment == nil {
			return fmt.Errorf("shipment for order %s: %w", orderID, domain.ErrNotFound)
		}

		o.Shipment.TrackingNumber = trackingNumber
		o.Shipment.Status = domain.ShipmentStatusDispatched
		o.Shipment.UpdatedAt = time.Now().UTC()
		if err := tx.UpdateShipment(ctx, o.Shipment); err != nil {
			return err
		}
		shipment = o.Shipment
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "shipment dispatched", "order_id", orderID, "tracking_number", trackingNumber)
	return shipment, nil
}

func (l *Lifecycle) Get(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return l.store.GetOrder(ctx, orderID)
}

// GetForActor returns the order only to its buyer or to one of its sellers.
func (l *Lifecycle) GetForActor(ctx context.Context, actorID int64, orderID uuid.UUID) (*domain.Order, error) {
	o, err := l.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := participantGuard(actorID)(o); err != nil {
		return nil, err
	}
	return o, nil
}

func (l *Lifecycle) ListForBuyer(ctx context.Context, buyerID int64) ([]*domain.Order, error) {
	return l.store.ListOrdersByBuyer(ctx, buyerID)
}

func (l *Lifecycle) ListForSeller(ctx context.Context, sellerID int64) ([]*domain.Order, error) {
	return l.store.ListOrdersBySeller(ctx, sellerID)
}

func (l *Lifecycle) transition(ctx context.Context, orderID uuid.UUID, guard func(*domain.Order) error, apply func(*domain.Order) error) (*domain.Order, error) {
	var order *domain.Order
	err := l.store.InTx(ctx, func(tx repository.Tx) error {
		o, err := tx.LockOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if guard != nil {
			if err := guard(o); err != nil {
				return err
			}
		}
		if err := apply(o); err != nil {
			return err
		}
		if err := tx.UpdateOrderStatuses(ctx, o); err != nil {
			return err
		}

		event, err := domain.NewOrderEvent(domain.EventOrderStatusChanged, o)
		if err != nil {
			return err
		}
		if err := tx.InsertOutboxEvent(ctx, event); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		slog.InfoContext(ctx, "order transition rejected", "order_id", orderID, "error", err)
		return nil, err
	}

	slog.InfoContext(ctx, "order transition applied",
		"order_id", orderID,
		"status", order.Status,
		"payment_status", order.PaymentStatus,
		"shipping_status", order.ShippingStatus)
	return order, nil
}

func guardFor(actorID int64, field domain.StatusField) func(*domain.Order) error {
	switch field {
	case domain.FieldPayment:
		return buyerGuard(actorID)
	case domain.FieldShipping:
		return sellerGuard(actorID)
	default:
		return participantGuard(actorID)
	}
}

func participantGuard(actorID int64) func(*domain.Order) error {
	return func(o *domain.Order) error {
		if o.BuyerID != actorID && !o.HasSeller(actorID) {
			return fmt.Errorf("user %d is not a party to order %s: %w", actorID, o.ID, domain.ErrUnauthorized)
		}
		return nil
	}
}

func buyerGuard(buyerID int64) func(*domain.Order) error {
	return func(o *domain.Order) error {
		if o.BuyerID != buyerID {
			return fmt.Errorf("buyer %d does not own order %s: %w", buyerID, o.ID, domain.ErrUnauthorized)
		}
		return nil
	}
}

func sellerGuard(sellerID int64) func(*domain.Order) error {
	return func(o *domain.Order) error {
		if !o.HasSeller(sellerID) {
			return fmt.Errorf("user %d sells nothing in order %s: %w", sellerID, o.ID, domain.ErrUnauthorized)
		}
		return nil
	}
}
