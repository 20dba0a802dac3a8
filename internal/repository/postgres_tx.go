package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LockCart(ctx context.Context, buyerID int64) (*domain.Cart, error) {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO carts (buyer_id) VALUES ($1) ON CONFLICT (buyer_id) DO NOTHING`, buyerID)
	if err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}

	var c domain.Cart
	err = t.tx.QueryRowContext(ctx,
		`SELECT id, buyer_id, total, created_at, updated_at FROM carts WHERE buyer_id = $1 FOR UPDATE`,
		buyerID).Scan(&c.ID, &c.BuyerID, &c.Total, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("lock cart: %w", err)
	}

	rows, err := t.tx.QueryContext(ctx,
		`SELECT id, cart_id, option_id, item_id, seller_id, item_name, option_label, unit_price, quantity, added_at
		 FROM cart_lines WHERE cart_id = $1 ORDER BY id`, c.ID)
	if err != nil {
		return nil, fmt.Errorf("query cart lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.CartLine
		if err := rows.Scan(&l.ID, &l.CartID, &l.OptionID, &l.ItemID, &l.SellerID,
			&l.ItemName, &l.OptionLabel, &l.UnitPrice, &l.Quantity, &l.AddedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		c.Lines = append(c.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart lines: %w", err)
	}
	return &c, nil
}

func (t *pgTx) InsertCartLine(ctx context.Context, line *domain.CartLine) error {
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO cart_lines (cart_id, option_id, item_id, seller_id, item_name, option_label, unit_price, quantity, added_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`,
		line.CartID, line.OptionID, line.ItemID, line.SellerID, line.ItemName, line.OptionLabel,
		line.UnitPrice, line.Quantity, line.AddedAt).Scan(&line.ID)
	if err != nil {
		return fmt.Errorf("insert cart line: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateCartLineQuantity(ctx context.Context, lineID int64, qty int) error {
	return t.execOne(ctx, domain.ErrLineNotFound,
		`UPDATE cart_lines SET quantity = $1 WHERE id = $2`, qty, lineID)
}

func (t *pgTx) DeleteCartLine(ctx context.Context, lineID int64) error {
	return t.execOne(ctx, domain.ErrLineNotFound, `DELETE FROM cart_lines WHERE id = $1`, lineID)
}

func (t *pgTx) DeleteCartLines(ctx context.Context, cartID int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM cart_lines WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("delete cart lines: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateCartTotal(ctx context.Context, cartID int64, total decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx,
		`UPDATE carts SET total = $1, updated_at = NOW() WHERE id = $2`, total, cartID)
	if err != nil {
		return fmt.Errorf("update cart total: %w", err)
	}
	return nil
}

func (t *pgTx) GetStockOption(ctx context.Context, optionID int64) (*domain.StockOption, error) {
	return getStockOption(ctx, t.tx, optionID)
}

// DecrementStock relies on the conditional update for atomicity: concurrent
// callers block on the row lock and re-check the predicate after it is released.
func (t *pgTx) DecrementStock(ctx context.Context, optionID int64, qty int) (int, error) {
	var balance int
	err := t.tx.QueryRowContext(ctx,
		`UPDATE stock_options SET available = available - $1
		 WHERE id = $2 AND available >= $1 RETURNING available`, qty, optionID).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("decrement stock: %w", err)
	}

	var exists bool
	if err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM stock_options WHERE id = $1)`, optionID).Scan(&exists); err != nil {
		return 0, fmt.Errorf("check stock option: %w", err)
	}
	if !exists {
		return 0, domain.ErrOptionNotFound
	}
	return 0, domain.ErrInsufficientStock
}

func (t *pgTx) IncrementStock(ctx context.Context, optionID int64, qty int) (int, error) {
	var balance int
	err := t.tx.QueryRowContext(ctx,
		`UPDATE stock_options SET available = available + $1 WHERE id = $2 RETURNING available`,
		qty, optionID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrOptionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment stock: %w", err)
	}
	return balance, nil
}

func (t *pgTx) GetShippingMethod(ctx context.Context, methodID int64) (*domain.ShippingMethod, error) {
	var m domain.ShippingMethod
	err := t.tx.QueryRowContext(ctx,
		`SELECT id, name FROM shipping_methods WHERE id = $1`, methodID).Scan(&m.ID, &m.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrInvalidShippingMethod
	}
	if err != nil {
		return nil, fmt.Errorf("query shipping method: %w", err)
	}
	return &m, nil
}

func (t *pgTx) InsertOrder(ctx context.Context, order *domain.Order) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO orders (id, buyer_id, total, status, payment_status, shipping_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		order.ID, order.BuyerID, order.Total, order.Status, order.PaymentStatus, order.ShippingStatus,
		order.CreatedAt, order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range order.Items {
		it := &order.Items[i]
		err := t.tx.QueryRowContext(ctx,
			`INSERT INTO order_items (order_id, item_id, option_id, seller_id, item_name, option_label, unit_price, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
			order.ID, it.ItemID, it.OptionID, it.SellerID, it.ItemName, it.OptionLabel, it.UnitPrice, it.Quantity).
			Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (t *pgTx) InsertShipment(ctx context.Context, s *domain.Shipment) error {
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO shipments (order_id, shipping_method_id, recipient, address, status, tracking_number, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		s.OrderID, s.ShippingMethodID, s.Recipient, s.Address, s.Status, s.TrackingNumber, s.CreatedAt, s.UpdatedAt).
		Scan(&s.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateShipment
		}
		return fmt.Errorf("insert shipment: %w", err)
	}
	return nil
}

func (t *pgTx) LockOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return loadOrder(ctx, t.tx, orderID, true)
}

func (t *pgTx) UpdateOrderStatuses(ctx context.Context, o *domain.Order) error {
	return t.execOne(ctx, domain.ErrOrderNotFound,
		`UPDATE orders SET status = $1, payment_status = $2, shipping_status = $3, updated_at = $4 WHERE id = $5`,
		o.Status, o.PaymentStatus, o.ShippingStatus, o.UpdatedAt, o.ID)
}

func (t *pgTx) UpdateShipment(ctx context.Context, s *domain.Shipment) error {
	return t.execOne(ctx, domain.ErrOrderNotFound,
		`UPDATE shipments SET status = $1, tracking_number = $2, updated_at = $3 WHERE order_id = $4`,
		s.Status, s.TrackingNumber, s.UpdatedAt, s.OrderID)
}

func (t *pgTx) InsertOutboxEvent(ctx context.Context, ev *domain.OutboxEvent) error {
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO outbox_events (aggregate_id, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		ev.AggregateID, ev.EventType, string(ev.Payload), ev.CreatedAt).Scan(&ev.ID)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

// execOne runs a statement that must touch exactly one row and maps zero rows to notFound.
func (t *pgTx) execOne(ctx context.Context, notFound error, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
