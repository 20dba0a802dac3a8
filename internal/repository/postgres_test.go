package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)

	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	creds := &Credentials{
		Host:              host,
		Port:              port.Int(),
		User:              "testuser",
		Password:          "testpass",
		DBName:            "testdb",
		MigrationsDirPath: "./migrations",
	}

	repo, err := NewRepository(creds)
	require.NoError(t, err)

	err = repo.RunMigrations(creds)
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func seedCatalog(t *testing.T, store CatalogStore, available int) {
	ctx := context.Background()
	require.NoError(t, store.UpsertItem(ctx, domain.Item{ID: 1, Name: "Shirt", SellerID: 500}))
	require.NoError(t, store.UpsertStockOption(ctx, domain.StockOption{
		ID: 10, ItemID: 1, Label: "M", Price: decimal.RequireFromString("20.00"), Available: available,
	}))
	require.NoError(t, store.UpsertShippingMethod(ctx, domain.ShippingMethod{ID: 1, Name: "Courier"}))
}

func TestPostgres_LockCart_CreatesOnce(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	var first, second *domain.Cart
	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		var err error
		first, err = tx.LockCart(ctx, 42)
		return err
	}))
	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		var err error
		second, err = tx.LockCart(ctx, 42)
		return err
	}))

	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.Total.IsZero())
	assert.Empty(t, second.Lines)
}

func TestPostgres_DecrementStock(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	seedCatalog(t, repo, 5)
	ctx := context.Background()

	err := repo.InTx(ctx, func(tx Tx) error {
		balance, err := tx.DecrementStock(ctx, 10, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, balance)

		_, err = tx.DecrementStock(ctx, 10, 3)
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)

		_, err = tx.DecrementStock(ctx, 999, 1)
		assert.ErrorIs(t, err, domain.ErrOptionNotFound)

		balance, err = tx.IncrementStock(ctx, 10, 1)
		require.NoError(t, err)
		assert.Equal(t, 3, balance)
		return nil
	})
	require.NoError(t, err)

	opt, err := repo.GetStockOption(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, opt.Available)
	assert.Equal(t, "Shirt", opt.ItemName)
	assert.Equal(t, int64(500), opt.SellerID)
}

func TestPostgres_InTx_RollsBackOnError(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	seedCatalog(t, repo, 5)
	ctx := context.Background()

	boom := errors.New("boom")
	err := repo.InTx(ctx, func(tx Tx) error {
		if _, err := tx.DecrementStock(ctx, 10, 4); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	opt, err := repo.GetStockOption(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, opt.Available)
}

func TestPostgres_ConcurrentDecrement_NeverOvercommits(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	seedCatalog(t, repo, 5)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, qty := range []int{3, 4} {
		wg.Add(1)
		go func(i, qty int) {
			defer wg.Done()
			errs[i] = repo.InTx(ctx, func(tx Tx) error {
				if _, err := tx.DecrementStock(ctx, 10, qty); err != nil {
					return err
				}
				// hold the row lock so the other transaction has to wait on it
				time.Sleep(100 * time.Millisecond)
				return nil
			})
		}(i, qty)
	}
	wg.Wait()

	var ok, insufficient int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrInsufficientStock):
			insufficient++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, insufficient)

	opt, err := repo.GetStockOption(ctx, 10)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, opt.Available, 0)
	assert.Contains(t, []int{1, 2}, opt.Available)
}

func TestPostgres_OrderRoundTrip(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	seedCatalog(t, repo, 5)
	ctx := context.Background()

	var order *domain.Order
	err := repo.InTx(ctx, func(tx Tx) error {
		cart, err := tx.LockCart(ctx, 42)
		if err != nil {
			return err
		}
		opt, err := tx.GetStockOption(ctx, 10)
		if err != nil {
			return err
		}
		line := domain.NewCartLine(cart.ID, opt, 2)
		if err := tx.InsertCartLine(ctx, &line); err != nil {
			return err
		}
		cart.Lines = append(cart.Lines, line)
		cart.Total = cart.ComputeTotal()

		order = domain.NewOrder(cart)
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		if err := tx.InsertShipment(ctx, domain.NewShipment(order.ID, 1, "Ann", "1 Main St")); err != nil {
			return err
		}
		return tx.DeleteCartLines(ctx, cart.ID)
	})
	require.NoError(t, err)

	got, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.BuyerID)
	assert.Equal(t, "40", got.Total.String())
	assert.Equal(t, domain.OrderStatusPending, got.Status)
	require.Len(t, got.Items, 1)
	assert.Equal(t, int64(500), got.Items[0].SellerID)
	require.NotNil(t, got.Shipment)
	assert.Equal(t, domain.ShipmentStatusPending, got.Shipment.Status)

	err = repo.InTx(ctx, func(tx Tx) error {
		return tx.InsertShipment(ctx, domain.NewShipment(order.ID, 1, "Ann", "1 Main St"))
	})
	assert.ErrorIs(t, err, ErrDuplicateShipment)

	bySeller, err := repo.ListOrdersBySeller(ctx, 500)
	require.NoError(t, err)
	assert.Len(t, bySeller, 1)

	byBuyer, err := repo.ListOrdersByBuyer(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, byBuyer)
}

func TestPostgres_OrderStatusUpdate(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	seedCatalog(t, repo, 5)
	ctx := context.Background()

	cart := &domain.Cart{BuyerID: 42, Lines: []domain.CartLine{{
		OptionID: 10, ItemID: 1, SellerID: 500, ItemName: "Shirt", OptionLabel: "M",
		UnitPrice: decimal.RequireFromString("20.00"), Quantity: 1,
	}}}
	cart.Total = cart.ComputeTotal()
	order := domain.NewOrder(cart)
	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertOrder(ctx, order); err != nil {
			return err
		}
		return tx.InsertShipment(ctx, domain.NewShipment(order.ID, 1, "Ann", "1 Main St"))
	}))

	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		o, err := tx.LockOrder(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := o.ApplyStatus(domain.FieldOrder, "Canceled"); err != nil {
			return err
		}
		o.Shipment.TrackingNumber = "TRK-1"
		o.Shipment.Status = domain.ShipmentStatusDispatched
		if err := tx.UpdateShipment(ctx, o.Shipment); err != nil {
			return err
		}
		return tx.UpdateOrderStatuses(ctx, o)
	}))

	got, err := repo.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCanceled, got.Status)
	assert.Equal(t, "TRK-1", got.Shipment.TrackingNumber)
}

func TestPostgres_Outbox(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	ev := &domain.OutboxEvent{
		AggregateID: "order-1",
		EventType:   domain.EventOrderPlaced,
		Payload:     []byte(`{"order_id":"order-1"}`),
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.InTx(ctx, func(tx Tx) error {
		return tx.InsertOutboxEvent(ctx, ev)
	}))
	assert.NotZero(t, ev.ID)

	events, err := repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "order-1", events[0].AggregateID)
	assert.JSONEq(t, `{"order_id":"order-1"}`, string(events[0].Payload))

	require.NoError(t, repo.MarkEventAsProcessed(ctx, ev.ID))
	events, err = repo.GetUnprocessedEvents(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestPostgres_GetOrder_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetOrder(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}
