package repository

import (
	"context"
	"errors"

	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrDuplicateShipment = errors.New("shipment already exists for order")

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}

// Tx is the set of writes and locking reads available inside one transaction.
// Every cart, checkout and lifecycle operation runs entirely on a single Tx.
type Tx interface {
	// LockCart returns the buyer's cart with its lines, creating an empty one
	// if none exists, and holds a row lock on it until the transaction ends.
	LockCart(ctx context.Context, buyerID int64) (*domain.Cart, error)
	InsertCartLine(ctx context.Context, line *domain.CartLine) error
	UpdateCartLineQuantity(ctx context.Context, lineID int64, qty int) error
	DeleteCartLine(ctx context.Context, lineID int64) error
	DeleteCartLines(ctx context.Context, cartID int64) error
	UpdateCartTotal(ctx context.Context, cartID int64, total decimal.Decimal) error

	GetStockOption(ctx context.Context, optionID int64) (*domain.StockOption, error)
	// DecrementStock subtracts qty only if enough is available and returns the new balance.
	DecrementStock(ctx context.Context, optionID int64, qty int) (int, error)
	IncrementStock(ctx context.Context, optionID int64, qty int) (int, error)

	GetShippingMethod(ctx context.Context, methodID int64) (*domain.ShippingMethod, error)
	// InsertOrder stores the order row and its items.
	InsertOrder(ctx context.Context, order *domain.Order) error
	InsertShipment(ctx context.Context, shipment *domain.Shipment) error
	// LockOrder loads an order with items and shipment and holds a row lock on it.
	LockOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	UpdateOrderStatuses(ctx context.Context, order *domain.Order) error
	UpdateShipment(ctx context.Context, shipment *domain.Shipment) error

	InsertOutboxEvent(ctx context.Context, event *domain.OutboxEvent) error
}

// TxRunner runs fn in a transaction: committed when fn returns nil, rolled back otherwise.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID int64) ([]*domain.Order, error)
	ListOrdersBySeller(ctx context.Context, sellerID int64) ([]*domain.Order, error)
}

type OutboxStore interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkEventAsProcessed(ctx context.Context, id int64) error
}

type CatalogStore interface {
	UpsertItem(ctx context.Context, item domain.Item) error
	// UpsertStockOption creates the option with its stock; an existing option
	// keeps its current stock count.
	UpsertStockOption(ctx context.Context, option domain.StockOption) error
	UpsertShippingMethod(ctx context.Context, method domain.ShippingMethod) error
	GetStockOption(ctx context.Context, optionID int64) (*domain.StockOption, error)
}

type Store interface {
	TxRunner
	OrderReader
	OutboxStore
	CatalogStore
	Close() error
}
