package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Repository struct {
	db *sql.DB
}

func NewRepository(cred *Credentials) (*Repository, error) {
	psqlconn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cred.Host,
		cred.Port,
		cred.User,
		cred.Password,
		cred.DBName)

	db, err := sql.Open("postgres", psqlconn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if e2 := db.Ping(); e2 != nil {
		return nil, fmt.Errorf("failed to ping database: %w", e2)
	}

	db.SetMaxOpenConns(100)
	db.SetMaxIdleConns(10)
	slog.Info("connected to postgres", "host", cred.Host, "db", cred.DBName)
	return &Repository{db: db}, nil
}

func (r *Repository) RunMigrations(cred *Credentials) error {
	driver, err := postgres.WithInstance(r.db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", cred.MigrationsDirPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if e2 := m.Up(); e2 != nil && !errors.Is(e2, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", e2)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}

	if err := fn(&pgTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "rollback failed", "error", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}

func (r *Repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return loadOrder(ctx, r.db, orderID, false)
}

func (r *Repository) ListOrdersByBuyer(ctx context.Context, buyerID int64) ([]*domain.Order, error) {
	return r.listOrders(ctx,
		`SELECT id FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
}

func (r *Repository) ListOrdersBySeller(ctx context.Context, sellerID int64) ([]*domain.Order, error) {
	return r.listOrders(ctx,
		`SELECT o.id FROM orders o
		 WHERE EXISTS (SELECT 1 FROM order_items i WHERE i.order_id = o.id AND i.seller_id = $1)
		 ORDER BY o.created_at DESC`, sellerID)
}

func (r *Repository) listOrders(ctx context.Context, query string, actorID int64) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, actorID)
	if err != nil {
		return nil, fmt.Errorf("query order ids: %w", err)
	}
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan order id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate order ids: %w", err)
	}
	rows.Close()

	orders := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		o, err := loadOrder(ctx, r.db, id, false)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (r *Repository) GetUnprocessedEvents(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, aggregate_id, event_type, payload, created_at
		 FROM outbox_events WHERE processed_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox events: %w", err)
	}
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var ev domain.OutboxEvent
		if err := rows.Scan(&ev.ID, &ev.AggregateID, &ev.EventType, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func (r *Repository) MarkEventAsProcessed(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE outbox_events SET processed_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("mark outbox event %d: %w", id, err)
	}
	return nil
}

func (r *Repository) UpsertItem(ctx context.Context, item domain.Item) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO items (id, name, seller_id) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, seller_id = EXCLUDED.seller_id`,
		item.ID, item.Name, item.SellerID)
	if err != nil {
		return fmt.Errorf("upsert item %d: %w", item.ID, err)
	}
	return nil
}

func (r *Repository) UpsertStockOption(ctx context.Context, option domain.StockOption) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stock_options (id, item_id, label, price, available) VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET label = EXCLUDED.label, price = EXCLUDED.price`,
		option.ID, option.ItemID, option.Label, option.Price, option.Available)
	if err != nil {
		return fmt.Errorf("upsert stock option %d: %w", option.ID, err)
	}
	return nil
}

func (r *Repository) UpsertShippingMethod(ctx context.Context, method domain.ShippingMethod) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO shipping_methods (id, name) VALUES ($1, $2)
		 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
		method.ID, method.Name)
	if err != nil {
		return fmt.Errorf("upsert shipping method %d: %w", method.ID, err)
	}
	return nil
}

func (r *Repository) GetStockOption(ctx context.Context, optionID int64) (*domain.StockOption, error) {
	return getStockOption(ctx, r.db, optionID)
}

func getStockOption(ctx context.Context, q querier, optionID int64) (*domain.StockOption, error) {
	var o domain.StockOption
	err := q.QueryRowContext(ctx,
		`SELECT o.id, o.item_id, i.name, o.label, o.price, o.available, i.seller_id
		 FROM stock_options o JOIN items i ON i.id = o.item_id
		 WHERE o.id = $1`, optionID).
		Scan(&o.ID, &o.ItemID, &o.ItemName, &o.Label, &o.Price, &o.Available, &o.SellerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOptionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query stock option %d: %w", optionID, err)
	}
	return &o, nil
}

func loadOrder(ctx context.Context, q querier, orderID uuid.UUID, lock bool) (*domain.Order, error) {
	query := `SELECT id, buyer_id, total, status, payment_status, shipping_status, created_at, updated_at
	          FROM orders WHERE id = $1`
	if lock {
		query += ` FOR UPDATE`
	}

	var o domain.Order
	err := q.QueryRowContext(ctx, query, orderID).Scan(
		&o.ID,
		&o.BuyerID,
		&o.Total,
		&o.Status,
		&o.PaymentStatus,
		&o.ShippingStatus,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query order %s: %w", orderID, err)
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, order_id, item_id, option_id, seller_id, item_name, option_label, unit_price, quantity
		 FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ItemID, &it.OptionID, &it.SellerID,
			&it.ItemName, &it.OptionLabel, &it.UnitPrice, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order items: %w", err)
	}

	var s domain.Shipment
	err = q.QueryRowContext(ctx,
		`SELECT id, order_id, shipping_method_id, recipient, address, status, tracking_number, created_at, updated_at
		 FROM shipments WHERE order_id = $1`, orderID).
		Scan(&s.ID, &s.OrderID, &s.ShippingMethodID, &s.Recipient, &s.Address, &s.Status,
			&s.TrackingNumber, &s.CreatedAt, &s.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("query shipment: %w", err)
	default:
		o.Shipment = &s
	}
	return &o, nil
}
