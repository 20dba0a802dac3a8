package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
)

// OutboxEvent is stored in the same transaction as the change it reports and
// published later by the outbox poller.
type OutboxEvent struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     json.RawMessage
	CreatedAt   time.Time
}

// OrderEvent is the payload of every order event on the wire.
type OrderEvent struct {
	Type           string           `json:"type"`
	OrderID        string           `json:"order_id"`
	BuyerID        int64            `json:"buyer_id"`
	Total          decimal.Decimal  `json:"total"`
	Status         OrderStatus      `json:"status"`
	PaymentStatus  PaymentStatus    `json:"payment_status"`
	ShippingStatus ShippingStatus   `json:"shipping_status"`
	Items          []OrderEventItem `json:"items"`
	PlacedAt       time.Time        `json:"placed_at"`
	OccurredAt     time.Time        `json:"occurred_at"`
}

type OrderEventItem struct {
	ItemName    string          `json:"item_name"`
	OptionLabel string          `json:"option_label"`
	SellerID    int64           `json:"seller_id"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

func NewOrderEvent(eventType string, o *Order) (*OutboxEvent, error) {
	ev := OrderEvent{
		Type:           eventType,
		OrderID:        o.ID.String(),
		BuyerID:        o.BuyerID,
		Total:          o.Total,
		Status:         o.Status,
		PaymentStatus:  o.PaymentStatus,
		ShippingStatus: o.ShippingStatus,
		Items:          make([]OrderEventItem, 0, len(o.Items)),
		PlacedAt:       o.CreatedAt,
		OccurredAt:     time.Now().UTC(),
	}
	for _, it := range o.Items {
		ev.Items = append(ev.Items, OrderEventItem{
			ItemName:    it.ItemName,
			OptionLabel: it.OptionLabel,
			SellerID:    it.SellerID,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
		})
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal order event: %w", err)
	}
	return &OutboxEvent{
		AggregateID: ev.OrderID,
		EventType:   eventType,
		Payload:     payload,
		CreatedAt:   ev.OccurredAt,
	}, nil
}
