package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/pricechek-rider/internal/core/domain"
)

// Mock DatabaseRepository
type mockDB struct {
	mu      sync.Mutex
	users   map[string]domain.User
	orders  map[string]domain.Order
	failGet  bool
	failPut  bool
	failSave bool // SaveUser only
}

func newMockDB() *mockDB {
	return &mockDB{
		users:  make(map[string]domain.User),
		orders: make(map[string]domain.Order),
	}
}

var errStoreDown = errors.New("store unavailable")

func (m *mockDB) GetUser(ctx context.Context, phone string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errStoreDown
	}
	u, ok := m.users[phone]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *mockDB) SaveUser(ctx context.Context, user domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut || m.failSave {
		return errStoreDown
	}
	m.users[user.PhoneNumber] = user
	return nil
}

func (m *mockDB) ListUsers(ctx context.Context) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	return users, nil
}

func (m *mockDB) CreateOrder(ctx context.Context, order domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPut {
		return errStoreDown
	}
	m.orders[order.ID] = order
	return nil
}

func (m *mockDB) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *mockDB) userOrders(phone string) []domain.Order {
	var orders []domain.Order
	for _, o := range m.orders {
		if o.UserPhone == phone {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders
}

func (m *mockDB) LatestOrder(ctx context.Context, phone string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := m.userOrders(phone)
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

func (m *mockDB) RecentOrders(ctx context.Context, phone string, limit int) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, errStoreDown
	}
	orders := m.userOrders(phone)
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (m *mockDB) ListOrders(ctx context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		orders = append(orders, o)
	}
	return orders, nil
}

func (m *mockDB) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if o.Status != from {
		return domain.ErrOrderStatusConflict
	}
	o.Status = to
	m.orders[id] = o
	return nil
}

func (m *mockDB) user(phone string) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[phone]
}

func (m *mockDB) orderList() []domain.Order {
	orders, _ := m.ListOrders(context.Background())
	return orders
}

// Mock CacheRepository
type mockCache struct {
	mu             sync.Mutex
	locks          map[string]*sync.Mutex
	idempotencySet map[string]bool
	failLock       bool
}

func newMockCache() *mockCache {
	return &mockCache{
		locks:          make(map[string]*sync.Mutex),
		idempotencySet: make(map[string]bool),
	}
}

func (m *mockCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.idempotencySet[key] {
		return false, nil
	}
	m.idempotencySet[key] = true
	return true, nil
}

func (m *mockCache) DeleteIdempotency(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.idempotencySet, key)
	return nil
}

func (m *mockCache) AcquireLock(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	if m.failLock {
		m.mu.Unlock()
		return nil, errors.New("lock unavailable")
	}
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock, nil
}

// Stub PriceProvider with exact-name lookup
type stubPrices map[string][]domain.PriceRow

func (s stubPrices) Lookup(ctx context.Context, product string) ([]domain.PriceRow, error) {
	return s[strings.ToLower(product)], nil
}

func row(store string, price int64) domain.PriceRow {
	return domain.PriceRow{Store: store, Area: "Kileleshwa", Price: decimal.NewFromInt(price), ETA: "5 min"}
}

func testPrices() stubPrices {
	return stubPrices{
		"sugar": {row("Naivas", 230), row("Quickmart", 245), row("Tuskys", 250), row("Carrefour", 235)},
		"milk":  {row("Naivas", 120), row("Quickmart", 125), row("Tuskys", 130), row("Carrefour", 118)},
	}
}

// Recording Notifier
type recordingNotifier struct {
	mu       sync.Mutex
	messages []domain.OutboundMessage
	reject   bool
}

func (r *recordingNotifier) Notify(phone, text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reject {
		return false
	}
	r.messages = append(r.messages, domain.OutboundMessage{To: phone, Text: text})
	return true
}

func (r *recordingNotifier) sent() []domain.OutboundMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.OutboundMessage(nil), r.messages...)
}

// Controllable clock
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 1, 29, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
