package grpc

import (
	"context"

	grpcgo "google.golang.org/grpc"
)

const ServiceName = "ordermanagement.v1.OrderManagement"

type OrderManagementServer interface {
	GetCart(context.Context, *GetCartRequest) (*CartResponse, error)
	AddCartItem(context.Context, *AddCartItemRequest) (*CartResponse, error)
	UpdateCartItemQuantity(context.Context, *UpdateCartItemQuantityRequest) (*CartResponse, error)
	RemoveCartItem(context.Context, *RemoveCartItemRequest) (*CartResponse, error)
	ClearCart(context.Context, *ClearCartRequest) (*CartResponse, error)
	Checkout(context.Context, *CheckoutRequest) (*CheckoutResponse, error)
	UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*StatusResponse, error)
	CancelOrder(context.Context, *OrderRequest) (*StatusResponse, error)
	PayOrder(context.Context, *OrderRequest) (*StatusResponse, error)
	ShipOrder(context.Context, *ShipOrderRequest) (*StatusResponse, error)
	RecordShipment(context.Context, *RecordShipmentRequest) (*ShipmentResponse, error)
	GetOrder(context.Context, *OrderRequest) (*OrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
}

var ServiceDesc = grpcgo.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderManagementServer)(nil),
	Methods: []grpcgo.MethodDesc{
		unary("GetCart", OrderManagementServer.GetCart),
		unary("AddCartItem", OrderManagementServer.AddCartItem),
		unary("UpdateCartItemQuantity", OrderManagementServer.UpdateCartItemQuantity),
		unary("RemoveCartItem", OrderManagementServer.RemoveCartItem),
		unary("ClearCart", OrderManagementServer.ClearCart),
		unary("Checkout", OrderManagementServer.Checkout),
		unary("UpdateOrderStatus", OrderManagementServer.UpdateOrderStatus),
		unary("CancelOrder", OrderManagementServer.CancelOrder),
		unary("PayOrder", OrderManagementServer.PayOrder),
		unary("ShipOrder", OrderManagementServer.ShipOrder),
		unary("RecordShipment", OrderManagementServer.RecordShipment),
		unary("GetOrder", OrderManagementServer.GetOrder),
		unary("ListOrders", OrderManagementServer.ListOrders),
	},
}

func RegisterOrderManagementServer(s grpcgo.ServiceRegistrar, srv OrderManagementServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// unary adapts a typed server method to the generic handler shape grpc dispatches to.
func unary[Req, Resp any](method string, call func(OrderManagementServer, context.Context, *Req) (*Resp, error)) grpcgo.MethodDesc {
	return grpcgo.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpcgo.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			impl := srv.(OrderManagementServer)
			if interceptor == nil {
				return call(impl, ctx, in)
			}
			info := &grpcgo.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(impl, ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
