package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/fjod/ordermanagement/internal/projection"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrderService interface {
	UpdateStatus(ctx context.Context, actorID int64, orderID uuid.UUID, field domain.StatusField, value string) (bool, error)
	Cancel(ctx context.Context, actorID int64, orderID uuid.UUID) (bool, error)
	Pay(ctx context.Context, buyerID int64, orderID uuid.UUID) (bool, error)
	Ship(ctx context.Context, sellerID int64, orderID uuid.UUID, next domain.ShippingStatus) (bool, error)
	RecordShipment(ctx context.Context, sellerID int64, orderID uuid.UUID, trackingNumber string) (*domain.Shipment, error)
	GetForActor(ctx context.Context, actorID int64, orderID uuid.UUID) (*domain.Order, error)
	ListForBuyer(ctx context.Context, buyerID int64) ([]*domain.Order, error)
	ListForSeller(ctx context.Context, sellerID int64) ([]*domain.Order, error)
}

type HistoryReader interface {
	History(ctx context.Context, buyerID int64) ([]projection.OrderHistory, error)
}

type OrdersHandler struct {
	orders  OrderService
	history HistoryReader
	timeout time.Duration
}

// NewOrdersHandler builds the order routes. history may be nil when the
// projection is not configured.
func NewOrdersHandler(orders OrderService, history HistoryReader, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{
		orders:  orders,
		history: history,
		timeout: timeout,
	}
}

type OrderItemDTO struct {
	ItemID      int64  `json:"item_id"`
	OptionID    int64  `json:"option_id"`
	SellerID    int64  `json:"seller_id"`
	ItemName    string `json:"item_name"`
	OptionLabel string `json:"option_label"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
}

type ShipmentDTO struct {
	ShippingMethodID int64  `json:"shipping_method_id"`
	Recipient        string `json:"recipient"`
	Address          string `json:"address"`
	Status           string `json:"status"`
	TrackingNumber   string `json:"tracking_number,omitempty"`
}

type OrderResponseDTO struct {
	ID             string         `json:"id"`
	BuyerID        int64          `json:"buyer_id"`
	Total          string         `json:"total"`
	Status         string         `json:"status"`
	PaymentStatus  string         `json:"payment_status"`
	ShippingStatus string         `json:"shipping_status"`
	Items          []OrderItemDTO `json:"items"`
	Shipment       *ShipmentDTO   `json:"shipment,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

type UpdateStatusRequestDTO struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type ShipRequestDTO struct {
	Status string `json:"status"`
}

type RecordShipmentRequestDTO struct {
	TrackingNumber string `json:"tracking_number"`
}

type StatusResponseDTO struct {
	Success bool `json:"success"`
}

// GET /api/v1/orders?role=buyer|seller
func (h *OrdersHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondUnauthenticated(w)
		return
	}

	var (
		orders []*domain.Order
		err    error
	)
	switch role := r.URL.Query().Get("role"); role {
	case "", "buyer":
		orders, err = h.orders.ListForBuyer(ctx, userID)
	case "seller":
		orders, err = h.orders.ListForSeller(ctx, userID)
	default:
		respondError(w, http.StatusBadRequest, "invalid_role", "role must be buyer or seller")
		return
	}
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	dtos := make([]OrderResponseDTO, 0, len(orders))
	for _, o := range orders {
		dtos = append(dtos, convertOrder(o))
	}
	respondJSON(w, http.StatusOK, dtos)
}

// GET /api/v1/orders/history
func (h *OrdersHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondUnauthenticated(w)
		return
	}
	if h.history == nil {
		respondError(w, http.StatusServiceUnavailable, "history_unavailable", "order history is not configured")
		return
	}

	history, err := h.history.History(ctx, userID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, history)
}

// GET /api/v1/orders/{order_id}
func (h *OrdersHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondUnauthenticated(w)
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetForActor(ctx, userID, orderID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertOrder(order))
}

// PATCH /api/v1/orders/{order_id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondUnauthenticated(w)
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	field, err := domain.ParseStatusField(req.Field)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	updated, err := h.orders.UpdateStatus(ctx, userID, orderID, field, req.Value)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponseDTO{Success: updated})
}

// POST /api/v1/orders/{order_id}/cancel
func (h *OrdersHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondUnauthenticated(w)
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	canceled, err := h.orders.Cancel(ctx, userID, orderID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponseDTO{Success: canceled})
}

// POST /api/v1/orders/{order_id}/pay
func (h *OrdersHandler) PayOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondUnauthenticated(w)
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	paid, err := h.orders.Pay(ctx, userID, orderID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponseDTO{Success: paid})
}

// POST /api/v1/orders/{order_id}/ship
func (h *OrdersHandler) ShipOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondUnauthenticated(w)
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req ShipRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	shipped, err := h.orders.Ship(ctx, userID, orderID, domain.ShippingStatus(req.Status))
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, StatusResponseDTO{Success: shipped})
}

// PUT /api/v1/orders/{order_id}/shipment
func (h *OrdersHandler) RecordShipment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondUnauthenticated(w)
		return
	}
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req RecordShipmentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	shipment, err := h.orders.RecordShipment(ctx, userID, orderID, req.TrackingNumber)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, convertShipment(shipment))
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "order_id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order_id must be a UUID")
		return uuid.Nil, false
	}
	return orderID, true
}

func convertOrder(o *domain.Order) OrderResponseDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemDTO{
			ItemID:      it.ItemID,
			OptionID:    it.OptionID,
			SellerID:    it.SellerID,
			ItemName:    it.ItemName,
			OptionLabel: it.OptionLabel,
			UnitPrice:   it.UnitPrice.StringFixed(2),
			Quantity:    it.Quantity,
		})
	}

	dto := OrderResponseDTO{
		ID:             o.ID.String(),
		BuyerID:        o.BuyerID,
		Total:          o.Total.StringFixed(2),
		Status:         o.Status.String(),
		PaymentStatus:  o.PaymentStatus.String(),
		ShippingStatus: o.ShippingStatus.String(),
		Items:          items,
		CreatedAt:      o.CreatedAt.Format(time.RFC3339),
	}
	if o.Shipment != nil {
		dto.Shipment = convertShipment(o.Shipment)
	}
	return dto
}

func convertShipment(s *domain.Shipment) *ShipmentDTO {
	return &ShipmentDTO{
		ShippingMethodID: s.ShippingMethodID,
		Recipient:        s.Recipient,
		Address:          s.Address,
		Status:           string(s.Status),
		TrackingNumber:   s.TrackingNumber,
	}
}
