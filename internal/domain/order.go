package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is created once per checkout. Its items are a snapshot and never change.
type Order struct {
	ID             uuid.UUID       `json:"id"`
	BuyerID        int64           `json:"buyer_id"`
	Total          decimal.Decimal `json:"total"`
	Status         OrderStatus     `json:"status"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	ShippingStatus ShippingStatus  `json:"shipping_status"`
	Items          []OrderItem     `json:"items"`
	Shipment       *Shipment       `json:"shipment,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     uuid.UUID       `json:"order_id"`
	ItemID      int64           `json:"item_id"`
	OptionID    int64           `json:"option_id"`
	SellerID    int64           `json:"seller_id"`
	ItemName    string          `json:"item_name"`
	OptionLabel string          `json:"option_label"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

type Shipment struct {
	ID               int64          `json:"id"`
	OrderID          uuid.UUID      `json:"order_id"`
	ShippingMethodID int64          `json:"shipping_method_id"`
	Recipient        string         `json:"recipient"`
	Address          string         `json:"address"`
	Status           ShipmentStatus `json:"status"`
	TrackingNumber   string         `json:"tracking_number,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// NewOrder snapshots the cart lines into order items. The total is copied from
// the cart, not recomputed from the snapshot.
func NewOrder(cart *Cart) *Order {
	now := time.Now().UTC()
	order := &Order{
		ID:             uuid.New(),
		BuyerID:        cart.BuyerID,
		Total:          cart.Total,
		Status:         OrderStatusPending,
		PaymentStatus:  PaymentStatusUnpaid,
		ShippingStatus: ShippingStatusNotShipped,
		Items:          make([]OrderItem, 0, len(cart.Lines)),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for _, l := range cart.Lines {
		order.Items = append(order.Items, OrderItem{
			OrderID:     order.ID,
			ItemID:      l.ItemID,
			OptionID:    l.OptionID,
			SellerID:    l.SellerID,
			ItemName:    l.ItemName,
			OptionLabel: l.OptionLabel,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
		})
	}
	return order
}

func NewShipment(orderID uuid.UUID, methodID int64, recipient, address string) *Shipment {
	now := time.Now().UTC()
	return &Shipment{
		OrderID:          orderID,
		ShippingMethodID: methodID,
		Recipient:        recipient,
		Address:          address,
		Status:           ShipmentStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// HasSeller reports whether sellerID sold at least one item of the order.
func (o *Order) HasSeller(sellerID int64) bool {
	for _, it := range o.Items {
		if it.SellerID == sellerID {
			return true
		}
	}
	return false
}

// ApplyStatus moves one status axis to value, enforcing that axis' transition table.
// Payment and shipping cannot advance once the order is canceled; refunding a
// payment stays possible.
func (o *Order) ApplyStatus(field StatusField, value string) error {
	switch field {
	case FieldOrder:
		next := OrderStatus(value)
		if !next.IsValid() {
			return ErrUnknownStatus
		}
		if o.Status == OrderStatusCanceled && next == OrderStatusCanceled {
			return ErrAlreadyCanceled
		}
		if !o.Status.CanTransitionTo(next) {
			return illegal(field, o.Status.String(), value)
		}
		o.Status = next
	case FieldPayment:
		next := PaymentStatus(value)
		if !next.IsValid() {
			return ErrUnknownStatus
		}
		if next == PaymentStatusPaid && o.Status == OrderStatusCanceled {
			return illegal(field, o.PaymentStatus.String(), value)
		}
		if !o.PaymentStatus.CanTransitionTo(next) {
			return illegal(field, o.PaymentStatus.String(), value)
		}
		o.PaymentStatus = next
	case FieldShipping:
		next := ShippingStatus(value)
		if !next.IsValid() {
			return ErrUnknownStatus
		}
		if o.Status == OrderStatusCanceled || !o.ShippingStatus.CanTransitionTo(next) {
			return illegal(field, o.ShippingStatus.String(), value)
		}
		o.ShippingStatus = next
	default:
		return ErrUnknownField
	}
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func illegal(field StatusField, from, to string) error {
	return fmt.Errorf("%w: %s %q -> %q", ErrIllegalTransition, field, from, to)
}
