package grpc

import "github.com/fjod/ordermanagement/internal/domain"

type GetCartRequest struct{}

type ClearCartRequest struct{}

type AddCartItemRequest struct {
	OptionID int64 `json:"option_id"`
	Quantity int   `json:"quantity"`
}

type UpdateCartItemQuantityRequest struct {
	LineID   int64 `json:"line_id"`
	Quantity int   `json:"quantity"`
}

type RemoveCartItemRequest struct {
	LineID int64 `json:"line_id"`
}

type CartResponse struct {
	Cart *domain.CartView `json:"cart"`
}

type CheckoutRequest struct {
	ShippingMethodID int64  `json:"shipping_method_id"`
	Recipient        string `json:"recipient"`
	Address          string `json:"address"`
}

type CheckoutResponse struct {
	OrderID string `json:"order_id"`
}

type UpdateOrderStatusRequest struct {
	OrderID string `json:"order_id"`
	Field   string `json:"field"`
	Value   string `json:"value"`
}

type OrderRequest struct {
	OrderID string `json:"order_id"`
}

type ShipOrderRequest struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

type RecordShipmentRequest struct {
	OrderID        string `json:"order_id"`
	TrackingNumber string `json:"tracking_number"`
}

type StatusResponse struct {
	Success bool `json:"success"`
}

type ShipmentResponse struct {
	Shipment *domain.Shipment `json:"shipment"`
}

type OrderResponse struct {
	Order *domain.Order `json:"order"`
}

type ListOrdersRequest struct {
	// Role is buyer (default) or seller.
	Role string `json:"role"`
}

type ListOrdersResponse struct {
	Orders []*domain.Order `json:"orders"`
}
