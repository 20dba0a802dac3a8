package grpc

import (
	"context"
	"strconv"

	grpcgo "google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// Client calls the service on behalf of one user over the JSON codec.
type Client struct {
	cc     grpcgo.ClientConnInterface
	userID int64
}

func NewClient(cc grpcgo.ClientConnInterface, userID int64) *Client {
	return &Client{cc: cc, userID: userID}
}

func (c *Client) invoke(ctx context.Context, method string, in, out any) error {
	ctx = metadata.AppendToOutgoingContext(ctx, UserIDMetadataKey, strconv.FormatInt(c.userID, 10))
	return c.cc.Invoke(ctx, fullMethod(method), in, out, grpcgo.CallContentSubtype(CodecName))
}

func call[Resp any](ctx context.Context, c *Client, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := c.invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCart(ctx context.Context) (*CartResponse, error) {
	return call[CartResponse](ctx, c, "GetCart", &GetCartRequest{})
}

func (c *Client) AddCartItem(ctx context.Context, in *AddCartItemRequest) (*CartResponse, error) {
	return call[CartResponse](ctx, c, "AddCartItem", in)
}

func (c *Client) UpdateCartItemQuantity(ctx context.Context, in *UpdateCartItemQuantityRequest) (*CartResponse, error) {
	return call[CartResponse](ctx, c, "UpdateCartItemQuantity", in)
}

func (c *Client) RemoveCartItem(ctx context.Context, in *RemoveCartItemRequest) (*CartResponse, error) {
	return call[CartResponse](ctx, c, "RemoveCartItem", in)
}

func (c *Client) ClearCart(ctx context.Context) (*CartResponse, error) {
	return call[CartResponse](ctx, c, "ClearCart", &ClearCartRequest{})
}

func (c *Client) Checkout(ctx context.Context, in *CheckoutRequest) (*CheckoutResponse, error) {
	return call[CheckoutResponse](ctx, c, "Checkout", in)
}

func (c *Client) UpdateOrderStatus(ctx context.Context, in *UpdateOrderStatusRequest) (*StatusResponse, error) {
	return call[StatusResponse](ctx, c, "UpdateOrderStatus", in)
}

func (c *Client) CancelOrder(ctx context.Context, in *OrderRequest) (*StatusResponse, error) {
	return call[StatusResponse](ctx, c, "CancelOrder", in)
}

func (c *Client) PayOrder(ctx context.Context, in *OrderRequest) (*StatusResponse, error) {
	return call[StatusResponse](ctx, c, "PayOrder", in)
}

func (c *Client) ShipOrder(ctx context.Context, in *ShipOrderRequest) (*StatusResponse, error) {
	return call[StatusResponse](ctx, c, "ShipOrder", in)
}

func (c *Client) RecordShipment(ctx context.Context, in *RecordShipmentRequest) (*ShipmentResponse, error) {
	return call[ShipmentResponse](ctx, c, "RecordShipment", in)
}

func (c *Client) GetOrder(ctx context.Context, in *OrderRequest) (*OrderResponse, error) {
	return call[OrderResponse](ctx, c, "GetOrder", in)
}

func (c *Client) ListOrders(ctx context.Context, in *ListOrdersRequest) (*ListOrdersResponse, error) {
	return call[ListOrdersResponse](ctx, c, "ListOrders", in)
}
