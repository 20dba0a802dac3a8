package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fjod/ordermanagement/internal/cart"
	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/fjod/ordermanagement/internal/inventory"
	"github.com/fjod/ordermanagement/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	buyerID  int64 = 42
	sellerID int64 = 500
	optionM  int64 = 10
	courier  int64 = 1
)

type MockInvalidator struct {
	invalidated []int64
}

func (m *MockInvalidator) Invalidate(buyerID int64) {
	m.invalidated = append(m.invalidated, buyerID)
}

// failingStore injects a failure into the shipment insert of every transaction.
type failingStore struct {
	*repository.MemoryStore
	err error
}

type failingTx struct {
	repository.Tx
	err error
}

func (f *failingTx) InsertShipment(context.Context, *domain.Shipment) error {
	return f.err
}

func (f *failingStore) InTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return f.MemoryStore.InTx(ctx, func(tx repository.Tx) error {
		return fn(&failingTx{Tx: tx, err: f.err})
	})
}

func newStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	store := repository.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertItem(ctx, domain.Item{ID: 1, Name: "Shirt", SellerID: sellerID}))
	require.NoError(t, store.UpsertStockOption(ctx, domain.StockOption{
		ID: optionM, ItemID: 1, Label: "M", Price: decimal.RequireFromString("20.00"), Available: 10,
	}))
	require.NoError(t, store.UpsertShippingMethod(ctx, domain.ShippingMethod{ID: courier, Name: "Courier"}))
	return store
}

func fillCart(t *testing.T, store *repository.MemoryStore, qty int) *domain.CartView {
	t.Helper()
	carts := cart.NewService(store, inventory.NewLedger(nil), nil)
	view, err := carts.AddItem(context.Background(), buyerID, optionM, qty)
	require.NoError(t, err)
	return view
}

func request() Request {
	return Request{BuyerID: buyerID, ShippingMethodID: courier, Recipient: "Ann Lee", Address: "1 Main St"}
}

func TestCheckout_CreatesOrderAndEmptiesCart(t *testing.T) {
	store := newStore(t)
	before := fillCart(t, store, 3)
	inv := &MockInvalidator{}
	svc := NewService(store, inv, nil)
	ctx := context.Background()

	orderID, err := svc.Checkout(ctx, request())
	require.NoError(t, err)

	order, err := store.GetOrder(ctx, orderID)
	require.NoError(t, err)
	assert.True(t, order.Total.Equal(before.Total))
	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusUnpaid, order.PaymentStatus)
	assert.Equal(t, domain.ShippingStatusNotShipped, order.ShippingStatus)
	require.Len(t, order.Items, 1)
	assert.Equal(t, sellerID, order.Items[0].SellerID)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, "20", order.Items[0].UnitPrice.String())

	require.NotNil(t, order.Shipment)
	assert.Equal(t, domain.ShipmentStatusPending, order.Shipment.Status)
	assert.Equal(t, "Ann Lee", order.Shipment.Recipient)
	assert.Equal(t, "1 Main St", order.Shipment.Address)
	assert.Equal(t, courier, order.Shipment.ShippingMethodID)

	view, err := cart.NewService(store, inventory.NewLedger(nil), nil).GetOrCreate(ctx, buyerID)
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.True(t, view.Total.IsZero())
	assert.Equal(t, before.CartID, view.CartID)

	// reserved stock moves to the order, it is not released
	opt, err := store.GetStockOption(ctx, optionM)
	require.NoError(t, err)
	assert.Equal(t, 7, opt.Available)

	assert.Equal(t, []int64{buyerID}, inv.invalidated)
}

func TestCheckout_WritesOrderPlacedEvent(t *testing.T) {
	store := newStore(t)
	fillCart(t, store, 2)
	ctx := context.Background()

	orderID, err := NewService(store, nil, nil).Checkout(ctx, request())
	require.NoError(t, err)

	events, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventOrderPlaced, events[0].EventType)
	assert.Equal(t, orderID.String(), events[0].AggregateID)

	var payload domain.OrderEvent
	require.NoError(t, json.Unmarshal(events[0].Payload, &payload))
	assert.Equal(t, buyerID, payload.BuyerID)
	assert.Equal(t, "40", payload.Total.String())
	assert.Len(t, payload.Items, 1)
}

func TestCheckout_EmptyCart(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := NewService(store, nil, nil).Checkout(ctx, request())
	assert.ErrorIs(t, err, domain.ErrEmptyCart)
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	orders, err := store.ListOrdersByBuyer(ctx, buyerID)
	require.NoError(t, err)
	assert.Empty(t, orders)
	events, err := store.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestCheckout_InvalidShippingMethod(t *testing.T) {
	store := newStore(t)
	before := fillCart(t, store, 2)
	ctx := context.Background()

	req := request()
	req.ShippingMethodID = 99
	_, err := NewService(store, nil, nil).Checkout(ctx, req)
	assert.ErrorIs(t, err, domain.ErrInvalidShippingMethod)

	view, err := cart.NewService(store, inventory.NewLedger(nil), nil).GetOrCreate(ctx, buyerID)
	require.NoError(t, err)
	assert.Len(t, view.Lines, 1)
	assert.True(t, view.Total.Equal(before.Total))
}

func TestCheckout_RequiresRecipientAndAddress(t *testing.T) {
	store := newStore(t)
	fillCart(t, store, 1)
	svc := NewService(store, nil, nil)

	req := request()
	req.Recipient = "   "
	_, err := svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, ErrMissingRecipient)

	req = request()
	req.Address = ""
	_, err = svc.Checkout(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestCheckout_FailureRollsBackEverything(t *testing.T) {
	store := newStore(t)
	before := fillCart(t, store, 4)
	ctx := context.Background()
	boom := errors.New("disk full")

	_, err := NewService(&failingStore{MemoryStore: store, err: boom}, nil, nil).Checkout(ctx, request())
	assert.ErrorIs(t, err, boom)

	orders, err := store.ListOrdersByBuyer(ctx, buyerID)
	require.NoError(t, err)
	assert.Empty(t, orders)

	view, err := cart.NewService(store, inventory.NewLedger(nil), nil).GetOrCreate(ctx, buyerID)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 4, view.Lines[0].Quantity)
	assert.True(t, view.Total.Equal(before.Total))

	opt, err := store.GetStockOption(ctx, optionM)
	require.NoError(t, err)
	assert.Equal(t, 6, opt.Available)
}

func TestCheckout_SecondCheckoutSeesEmptyCart(t *testing.T) {
	store := newStore(t)
	fillCart(t, store, 1)
	svc := NewService(store, nil, nil)
	ctx := context.Background()

	_, err := svc.Checkout(ctx, request())
	require.NoError(t, err)
	_, err = svc.Checkout(ctx, request())
	assert.ErrorIs(t, err, domain.ErrEmptyCart)

	orders, err := store.ListOrdersByBuyer(ctx, buyerID)
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}
