package domain

import "slices"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusCompleted  OrderStatus = "Completed"
	OrderStatusCanceled   OrderStatus = "Canceled"
	OrderStatusRefunded   OrderStatus = "Refunded"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCanceled},
	OrderStatusProcessing: {OrderStatusCompleted, OrderStatusCanceled},
	OrderStatusCompleted:  {OrderStatusRefunded},
}

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCanceled, OrderStatusRefunded:
		return true
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCanceled || s == OrderStatusRefunded
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return slices.Contains(orderTransitions[s], next)
}

func (s OrderStatus) String() string {
	return string(s)
}

type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "Unpaid"
	PaymentStatusPaid     PaymentStatus = "Paid"
	PaymentStatusRefunded PaymentStatus = "Refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusUnpaid: {PaymentStatusPaid},
	PaymentStatusPaid:   {PaymentStatusRefunded},
}

func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	return slices.Contains(paymentTransitions[s], next)
}

func (s PaymentStatus) String() string {
	return string(s)
}

// ShippingStatus advances one step at a time.
type ShippingStatus string

const (
	ShippingStatusNotShipped     ShippingStatus = "Not Shipped"
	ShippingStatusShipped        ShippingStatus = "Shipped"
	ShippingStatusPendingReceipt ShippingStatus = "Pending Receipt"
	ShippingStatusDelivered      ShippingStatus = "Delivered"
)

var shippingTransitions = map[ShippingStatus][]ShippingStatus{
	ShippingStatusNotShipped:     {ShippingStatusShipped},
	ShippingStatusShipped:        {ShippingStatusPendingReceipt},
	ShippingStatusPendingReceipt: {ShippingStatusDelivered},
}

func (s ShippingStatus) IsValid() bool {
	switch s {
	case ShippingStatusNotShipped, ShippingStatusShipped, ShippingStatusPendingReceipt, ShippingStatusDelivered:
		return true
	}
	return false
}

func (s ShippingStatus) CanTransitionTo(next ShippingStatus) bool {
	return slices.Contains(shippingTransitions[s], next)
}

func (s ShippingStatus) String() string {
	return string(s)
}

type ShipmentStatus string

const (
	ShipmentStatusPending    ShipmentStatus = "Pending"
	ShipmentStatusDispatched ShipmentStatus = "Dispatched"
)

// StatusField names one of the three independent status axes of an order.
type StatusField string

const (
	FieldOrder    StatusField = "order"
	FieldPayment  StatusField = "payment"
	FieldShipping StatusField = "shipping"
)

func ParseStatusField(s string) (StatusField, error) {
	switch f := StatusField(s); f {
	case FieldOrder, FieldPayment, FieldShipping:
		return f, nil
	}
	return "", ErrUnknownField
}
