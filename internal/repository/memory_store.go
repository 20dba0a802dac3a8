package repository

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/fjod/ordermanagement/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MemoryStore implements Store in process memory. Transactions are serialized
// behind one mutex and rolled back by restoring a snapshot taken at the start.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memCart struct {
	ID        int64
	BuyerID   int64
	Total     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

type memState struct {
	items      map[int64]domain.Item
	options    map[int64]domain.StockOption
	methods    map[int64]domain.ShippingMethod
	carts      map[int64]memCart // buyerID -> cart
	lines      map[int64]domain.CartLine
	orders     map[uuid.UUID]domain.Order
	orderItems map[uuid.UUID][]domain.OrderItem
	shipments  map[uuid.UUID]domain.Shipment
	events     []domain.OutboxEvent
	processed  map[int64]bool

	nextCartID     int64
	nextLineID     int64
	nextOrderItem  int64
	nextShipmentID int64
	nextEventID    int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		items:      make(map[int64]domain.Item),
		options:    make(map[int64]domain.StockOption),
		methods:    make(map[int64]domain.ShippingMethod),
		carts:      make(map[int64]memCart),
		lines:      make(map[int64]domain.CartLine),
		orders:     make(map[uuid.UUID]domain.Order),
		orderItems: make(map[uuid.UUID][]domain.OrderItem),
		shipments:  make(map[uuid.UUID]domain.Shipment),
		processed:  make(map[int64]bool),
	}}
}

func (s *memState) clone() *memState {
	c := *s
	c.items = maps.Clone(s.items)
	c.options = maps.Clone(s.options)
	c.methods = maps.Clone(s.methods)
	c.carts = maps.Clone(s.carts)
	c.lines = maps.Clone(s.lines)
	c.orders = maps.Clone(s.orders)
	c.orderItems = make(map[uuid.UUID][]domain.OrderItem, len(s.orderItems))
	for k, v := range s.orderItems {
		c.orderItems[k] = slices.Clone(v)
	}
	c.shipments = maps.Clone(s.shipments)
	c.events = slices.Clone(s.events)
	c.processed = maps.Clone(s.processed)
	return &c
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := m.state.clone()
	if err := fn(&memTx{s: m.state}); err != nil {
		m.state = snapshot
		return err
	}
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) GetOrder(_ context.Context, orderID uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.order(orderID)
}

func (m *MemoryStore) ListOrdersByBuyer(_ context.Context, buyerID int64) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.listOrders(func(o *domain.Order) bool { return o.BuyerID == buyerID }), nil
}

func (m *MemoryStore) ListOrdersBySeller(_ context.Context, sellerID int64) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.listOrders(func(o *domain.Order) bool { return o.HasSeller(sellerID) }), nil
}

func (m *MemoryStore) GetUnprocessedEvents(_ context.Context, limit int) ([]*domain.OutboxEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.OutboxEvent
	for _, ev := range m.state.events {
		if len(out) == limit {
			break
		}
		if m.state.processed[ev.ID] {
			continue
		}
		e := ev
		out = append(out, &e)
	}
	return out, nil
}

func (m *MemoryStore) MarkEventAsProcessed(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.processed[id] = true
	return nil
}

func (m *MemoryStore) UpsertItem(_ context.Context, item domain.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.items[item.ID] = item
	for id, o := range m.state.options {
		if o.ItemID == item.ID {
			o.ItemName = item.Name
			o.SellerID = item.SellerID
			m.state.options[id] = o
		}
	}
	return nil
}

func (m *MemoryStore) UpsertStockOption(_ context.Context, option domain.StockOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if item, ok := m.state.items[option.ItemID]; ok {
		option.ItemName = item.Name
		option.SellerID = item.SellerID
	}
	if existing, ok := m.state.options[option.ID]; ok {
		option.Available = existing.Available
	}
	m.state.options[option.ID] = option
	return nil
}

func (m *MemoryStore) UpsertShippingMethod(_ context.Context, method domain.ShippingMethod) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.methods[method.ID] = method
	return nil
}

func (m *MemoryStore) GetStockOption(_ context.Context, optionID int64) (*domain.StockOption, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.option(optionID)
}

func (s *memState) option(optionID int64) (*domain.StockOption, error) {
	o, ok := s.options[optionID]
	if !ok {
		return nil, domain.ErrOptionNotFound
	}
	return &o, nil
}

func (s *memState) order(orderID uuid.UUID) (*domain.Order, error) {
	o, ok := s.orders[orderID]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o.Items = slices.Clone(s.orderItems[orderID])
	if sh, ok := s.shipments[orderID]; ok {
		o.Shipment = &sh
	}
	return &o, nil
}

func (s *memState) listOrders(match func(o *domain.Order) bool) []*domain.Order {
	var out []*domain.Order
	for id := range s.orders {
		o, _ := s.order(id)
		if match(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// memTx operates on the live state; InTx restores the snapshot on failure.
type memTx struct {
	s *memState
}

func (t *memTx) LockCart(_ context.Context, buyerID int64) (*domain.Cart, error) {
	c, ok := t.s.carts[buyerID]
	if !ok {
		t.s.nextCartID++
		now := time.Now().UTC()
		c = memCart{ID: t.s.nextCartID, BuyerID: buyerID, Total: decimal.Zero, CreatedAt: now, UpdatedAt: now}
		t.s.carts[buyerID] = c
	}

	cart := &domain.Cart{
		ID:        c.ID,
		BuyerID:   c.BuyerID,
		Total:     c.Total,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for _, l := range t.s.lines {
		if l.CartID == c.ID {
			cart.Lines = append(cart.Lines, l)
		}
	}
	sort.Slice(cart.Lines, func(i, j int) bool { return cart.Lines[i].ID < cart.Lines[j].ID })
	return cart, nil
}

func (t *memTx) InsertCartLine(_ context.Context, line *domain.CartLine) error {
	t.s.nextLineID++
	line.ID = t.s.nextLineID
	t.s.lines[line.ID] = *line
	return nil
}

func (t *memTx) UpdateCartLineQuantity(_ context.Context, lineID int64, qty int) error {
	l, ok := t.s.lines[lineID]
	if !ok {
		return domain.ErrLineNotFound
	}
	l.Quantity = qty
	t.s.lines[lineID] = l
	return nil
}

func (t *memTx) DeleteCartLine(_ context.Context, lineID int64) error {
	if _, ok := t.s.lines[lineID]; !ok {
		return domain.ErrLineNotFound
	}
	delete(t.s.lines, lineID)
	return nil
}

func (t *memTx) DeleteCartLines(_ context.Context, cartID int64) error {
	for id, l := range t.s.lines {
		if l.CartID == cartID {
			delete(t.s.lines, id)
		}
	}
	return nil
}

func (t *memTx) UpdateCartTotal(_ context.Context, cartID int64, total decimal.Decimal) error {
	for buyer, c := range t.s.carts {
		if c.ID == cartID {
			c.Total = total
			c.UpdatedAt = time.Now().UTC()
			t.s.carts[buyer] = c
			return nil
		}
	}
	return domain.ErrNotFound
}

func (t *memTx) GetStockOption(_ context.Context, optionID int64) (*domain.StockOption, error) {
	return t.s.option(optionID)
}

func (t *memTx) DecrementStock(_ context.Context, optionID int64, qty int) (int, error) {
	o, ok := t.s.options[optionID]
	if !ok {
		return 0, domain.ErrOptionNotFound
	}
	if o.Available < qty {
		return 0, domain.ErrInsufficientStock
	}
	o.Available -= qty
	t.s.options[optionID] = o
	return o.Available, nil
}

func (t *memTx) IncrementStock(_ context.Context, optionID int64, qty int) (int, error) {
	o, ok := t.s.options[optionID]
	if !ok {
		return 0, domain.ErrOptionNotFound
	}
	o.Available += qty
	t.s.options[optionID] = o
	return o.Available, nil
}

func (t *memTx) GetShippingMethod(_ context.Context, methodID int64) (*domain.ShippingMethod, error) {
	m, ok := t.s.methods[methodID]
	if !ok {
		return nil, domain.ErrInvalidShippingMethod
	}
	return &m, nil
}

func (t *memTx) InsertOrder(_ context.Context, order *domain.Order) error {
	items := make([]domain.OrderItem, len(order.Items))
	for i := range order.Items {
		t.s.nextOrderItem++
		order.Items[i].ID = t.s.nextOrderItem
		items[i] = order.Items[i]
	}
	row := *order
	row.Items = nil
	row.Shipment = nil
	t.s.orders[order.ID] = row
	t.s.orderItems[order.ID] = items
	return nil
}

func (t *memTx) InsertShipment(_ context.Context, s *domain.Shipment) error {
	if _, ok := t.s.shipments[s.OrderID]; ok {
		return ErrDuplicateShipment
	}
	t.s.nextShipmentID++
	s.ID = t.s.nextShipmentID
	t.s.shipments[s.OrderID] = *s
	return nil
}

func (t *memTx) LockOrder(_ context.Context, orderID uuid.UUID) (*domain.Order, error) {
	return t.s.order(orderID)
}

func (t *memTx) UpdateOrderStatuses(_ context.Context, o *domain.Order) error {
	row, ok := t.s.orders[o.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	row.Status = o.Status
	row.PaymentStatus = o.PaymentStatus
	row.ShippingStatus = o.ShippingStatus
	row.UpdatedAt = o.UpdatedAt
	t.s.orders[o.ID] = row
	return nil
}

func (t *memTx) UpdateShipment(_ context.Context, s *domain.Shipment) error {
	row, ok := t.s.shipments[s.OrderID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	row.Status = s.Status
	row.TrackingNumber = s.TrackingNumber
	row.UpdatedAt = s.UpdatedAt
	t.s.shipments[s.OrderID] = row
	return nil
}

func (t *memTx) InsertOutboxEvent(_ context.Context, ev *domain.OutboxEvent) error {
	t.s.nextEventID++
	ev.ID = t.s.nextEventID
	t.s.events = append(t.s.events, *ev)
	return nil
}
