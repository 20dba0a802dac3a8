package grpc

import (
	"context"
	"strconv"

	"github.com/fjod/ordermanagement/internal/checkout"
	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	grpcgo "google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// UserIDMetadataKey carries the caller identity, set by the gateway in front of the service.
const UserIDMetadataKey = "user-id"

type CartService interface {
	GetOrCreate(ctx context.Context, buyerID int64) (*domain.CartView, error)
	AddItem(ctx context.Context, buyerID, optionID int64, qty int) (*domain.CartView, error)
	UpdateQuantity(ctx context.Context, buyerID, lineID int64, newQty int) (*domain.CartView, error)
	RemoveItem(ctx context.Context, buyerID, lineID int64) (*domain.CartView, error)
	Clear(ctx context.Context, buyerID int64) (*domain.CartView, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, req checkout.Request) (uuid.UUID, error)
}

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

type OrderManagementService struct {
	carts    CartService
	checkout CheckoutService
	orders   OrderService
}

func NewOrderManagementService(carts CartService, co CheckoutService, orders OrderService) *OrderManagementService {
	return &OrderManagementService{carts: carts, checkout: co, orders: orders}
}

// NewServer returns a gRPC server with the service, health checks and tracing registered.
func NewServer(svc OrderManagementServer, opts ...grpcgo.ServerOption) (*grpcgo.Server, *health.Server) {
	opts = append([]grpcgo.ServerOption{grpcgo.StatsHandler(otelgrpc.NewServerHandler())}, opts...)
	s := grpcgo.NewServer(opts...)
	RegisterOrderManagementServer(s, svc)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s, hs
}

func userIDFromContext(ctx context.Context) (int64, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0, status.Error(codes.Unauthenticated, "missing metadata")
	}
	values := md.Get(UserIDMetadataKey)
	if len(values) == 0 {
		return 0, status.Error(codes.Unauthenticated, "missing user-id")
	}
	userID, err := strconv.ParseInt(values[0], 10, 64)
	if err != nil || userID <= 0 {
		return 0, status.Error(codes.Unauthenticated, "invalid user-id")
	}
	return userID, nil
}

func parseOrderID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, status.Error(codes.InvalidArgument, "order_id must be a UUID")
	}
	return id, nil
}

func (s *OrderManagementService) GetCart(ctx context.Context, _ *GetCartRequest) (*CartResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, toStatus(ctx, "GetCart", err)
	}
	return &CartResponse{Cart: view}, nil
}

func (s *OrderManagementService) AddCartItem(ctx context.Context, req *AddCartItemRequest) (*CartResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if req.OptionID <= 0 {
		return nil, status.Error(codes.InvalidArgument, "option_id must be greater than 0")
	}
	view, err := s.carts.AddItem(ctx, userID, req.OptionID, req.Quantity)
	if err != nil {
		return nil, toStatus(ctx, "AddCartItem", err)
	}
	return &CartResponse{Cart: view}, nil
}

func (s *OrderManagementService) UpdateCartItemQuantity(ctx context.Context, req *UpdateCartItemQuantityRequest) (*CartResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.carts.UpdateQuantity(ctx, userID, req.LineID, req.Quantity)
	if err != nil {
		return nil, toStatus(ctx, "UpdateCartItemQuantity", err)
	}
	return &CartResponse{Cart: view}, nil
}

func (s *OrderManagementService) RemoveCartItem(ctx context.Context, req *RemoveCartItemRequest) (*CartResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.carts.RemoveItem(ctx, userID, req.LineID)
	if err != nil {
		return nil, toStatus(ctx, "RemoveCartItem", err)
	}
	return &CartResponse{Cart: view}, nil
}

func (s *OrderManagementService) ClearCart(ctx context.Context, _ *ClearCartRequest) (*CartResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	view, err := s.carts.Clear(ctx, userID)
	if err != nil {
		return nil, toStatus(ctx, "ClearCart", err)
	}
	return &CartResponse{Cart: view}, nil
}

func (s *OrderManagementService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	orderID, err := s.checkout.Checkout(ctx, checkout.Request{
		BuyerID:          userID,
		ShippingMethodID: req.ShippingMethodID,
		Recipient:        req.Recipient,
		Address:          req.Address,
	})
	if err != nil {
		return nil, toStatus(ctx, "Checkout", err)
	}
	return &CheckoutResponse{OrderID: orderID.String()}, nil
}

func (s *OrderManagementService) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*StatusResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	orderID, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	field, err := domain.ParseStatusField(req.Field)
	if err != nil {
		return nil, toStatus(ctx, "UpdateOrderStatus", err)
	}
	ok, err := s.orders.UpdateStatus(ctx, userID, orderID, field, req.Value)
	if err != nil {
		return nil, toStatus(ctx, "UpdateOrderStatus", err)
	}
	return &StatusResponse{Success: ok}, nil
}

func (s *OrderManagementService) CancelOrder(ctx context.Context, req *OrderRequest) (*StatusResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	orderID, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	ok, err := s.orders.Cancel(ctx, userID, orderID)
	if err != nil {
		return nil, toStatus(ctx, "CancelOrder", err)
	}
	return &StatusResponse{Success: ok}, nil
}

func (s *OrderManagementService) PayOrder(ctx context.Context, req *OrderRequest) (*StatusResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	orderID, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	ok, err := s.orders.Pay(ctx, userID, orderID)
	if err != nil {
		return nil, toStatus(ctx, "PayOrder", err)
	}
	return &StatusResponse{Success: ok}, nil
}

func (s *OrderManagementService) ShipOrder(ctx context.Context, req *ShipOrderRequest) (*StatusResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	orderID, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	ok, err := s.orders.Ship(ctx, userID, orderID, domain.ShippingStatus(req.Status))
	if err != nil {
		return nil, toStatus(ctx, "ShipOrder", err)
	}
	return &StatusResponse{Success: ok}, nil
}

func (s *OrderManagementService) RecordShipment(ctx context.Context, req *RecordShipmentRequest) (*ShipmentResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	orderID, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	shipment, err := s.orders.RecordShipment(ctx, userID, orderID, req.TrackingNumber)
	if err != nil {
		return nil, toStatus(ctx, "RecordShipment", err)
	}
	return &ShipmentResponse{Shipment: shipment}, nil
}

func (s *OrderManagementService) GetOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	orderID, err := parseOrderID(req.OrderID)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.GetForActor(ctx, userID, orderID)
	if err != nil {
		return nil, toStatus(ctx, "GetOrder", err)
	}
	return &OrderResponse{Order: order}, nil
}

func (s *OrderManagementService) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	userID, err := userIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var orders []*domain.Order
	switch req.Role {
	case "", "buyer":
		orders, err = s.orders.ListForBuyer(ctx, userID)
	case "seller":
		orders, err = s.orders.ListForSeller(ctx, userID)
	default:
		return nil, status.Error(codes.InvalidArgument, "role must be buyer or seller")
	}
	if err != nil {
		return nil, toStatus(ctx, "ListOrders", err)
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return &ListOrdersResponse{Orders: orders}, nil
}
