package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/ordermanagement/internal/checkout"
	"github.com/google/uuid"
)

type CheckoutService interface {
	Checkout(ctx context.Context, req checkout.Request) (uuid.UUID, error)
}

type CheckoutHandler struct {
	checkout CheckoutService
	timeout  time.Duration
}

func NewCheckoutHandler(svc CheckoutService, timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: svc,
		timeout:  timeout,
	}
}

type CheckoutRequestDTO struct {
	ShippingMethodID int64  `json:"shipping_method_id"`
	Recipient        string `json:"recipient"`
	Address          string `json:"address"`
}

type CheckoutResponseDTO struct {
	OrderID string `json:"order_id"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	userID := getUserIDFromContext(r.Context())
	if userID == 0 {
		respondUnauthenticated(w)
		return
	}

	var req CheckoutRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	orderID, err := h.checkout.Checkout(ctx, checkout.Request{
		BuyerID:          userID,
		ShippingMethodID: req.ShippingMethodID,
		Recipient:        req.Recipient,
		Address:          req.Address,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, CheckoutResponseDTO{OrderID: orderID.String()})
}
