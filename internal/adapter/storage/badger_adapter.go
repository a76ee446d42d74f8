package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	"github.com/rl1809/pricechek-rider/internal/core/domain"
)

const (
	userKeyPrefix      = "user:"
	orderKeyPrefix     = "order:"
	userOrderKeyPrefix = "user_order:"
)

// OpenBadger opens an embedded store in dir, or a throwaway in-memory store
// when inMemory is set.
func OpenBadger(dir string, inMemory bool, log *zap.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	if log == nil {
		opts = opts.WithLogger(nil)
	} else {
		opts = opts.WithLogger(badgerLogger{log.Sugar().Named("badger")})
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

type badgerLogger struct {
	l *zap.SugaredLogger
}

func (b badgerLogger) Errorf(f string, v ...interface{})   { b.l.Errorf(f, v...) }
func (b badgerLogger) Warningf(f string, v ...interface{}) { b.l.Warnf(f, v...) }
func (b badgerLogger) Infof(f string, v ...interface{})    { b.l.Debugf(f, v...) }
func (b badgerLogger) Debugf(f string, v ...interface{})   { b.l.Debugf(f, v...) }

// BadgerAdapter keeps users and orders as JSON values. Orders are indexed
// per user by creation time for latest-order lookups.
type BadgerAdapter struct {
	db  *badger.DB
	now func() time.Time
}

func NewBadgerAdapter(db *badger.DB) *BadgerAdapter {
	return &BadgerAdapter{db: db, now: time.Now}
}

func userKey(phone string) []byte { return []byte(userKeyPrefix + phone) }
func orderKey(id string) []byte   { return []byte(orderKeyPrefix + id) }

func userOrderPrefix(phone string) []byte {
	return []byte(userOrderKeyPrefix + phone + ":")
}

func userOrderKey(order domain.Order) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%s", userOrderKeyPrefix, order.UserPhone, order.CreatedAt.UnixNano(), order.ID))
}

func (b *BadgerAdapter) GetUser(ctx context.Context, phone string) (*domain.User, error) {
	var user domain.User
	found, err := b.get(userKey(phone), &user)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &user, nil
}

func (b *BadgerAdapter) SaveUser(ctx context.Context, user domain.User) error {
	val, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(userKey(user.PhoneNumber), val)
	})
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (b *BadgerAdapter) ListUsers(ctx context.Context) ([]domain.User, error) {
	var users []domain.User
	err := b.scan([]byte(userKeyPrefix), func(val []byte) error {
		var u domain.User
		if err := json.Unmarshal(val, &u); err != nil {
			return err
		}
		users = append(users, u)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (b *BadgerAdapter) CreateOrder(ctx context.Context, order domain.Order) error {
	val, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("encode order: %w", err)
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(orderKey(order.ID)); err == nil {
			return fmt.Errorf("order %s already exists", order.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(orderKey(order.ID), val); err != nil {
			return err
		}
		return txn.Set(userOrderKey(order), []byte(order.ID))
	})
	if err != nil {
		return fmt.Errorf("create order: %w", err)
	}
	return nil
}

func (b *BadgerAdapter) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	found, err := b.get(orderKey(id), &order)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &order, nil
}

func (b *BadgerAdapter) LatestOrder(ctx context.Context, phone string) (*domain.Order, error) {
	orders, err := b.RecentOrders(ctx, phone, 1)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

func (b *BadgerAdapter) RecentOrders(ctx context.Context, phone string, limit int) ([]domain.Order, error) {
	var orders []domain.Order
	err := b.db.View(func(txn *badger.Txn) error {
		prefix := userOrderPrefix(phone)
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append(prefix, 0xFF)); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(orders) >= limit {
				break
			}
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(orderKey(string(id)))
			if err != nil {
				return err
			}
			var o domain.Order
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &o) }); err != nil {
				return err
			}
			orders = append(orders, o)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recent orders: %w", err)
	}
	return orders, nil
}

func (b *BadgerAdapter) ListOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	err := b.scan([]byte(orderKeyPrefix), func(val []byte) error {
		var o domain.Order
		if err := json.Unmarshal(val, &o); err != nil {
			return err
		}
		orders = append(orders, o)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (b *BadgerAdapter) UpdateOrderStatus(ctx context.Context, id string, from, to domain.OrderStatus) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(orderKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return domain.ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		var o domain.Order
		if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &o) }); err != nil {
			return err
		}
		if o.Status != from {
			return domain.ErrOrderStatusConflict
		}
		o.Status = to
		o.UpdatedAt = b.now()
		val, err := json.Marshal(o)
		if err != nil {
			return err
		}
		return txn.Set(orderKey(id), val)
	})
	if errors.Is(err, badger.ErrConflict) {
		return domain.ErrOrderStatusConflict
	}
	if err != nil && !errors.Is(err, domain.ErrOrderNotFound) && !errors.Is(err, domain.ErrOrderStatusConflict) {
		return fmt.Errorf("update order status: %w", err)
	}
	return err
}

func (b *BadgerAdapter) get(key []byte, dst interface{}) (bool, error) {
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error { return json.Unmarshal(val, dst) })
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (b *BadgerAdapter) scan(prefix []byte, fn func(val []byte) error) error {
	return b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(fn); err != nil {
				return err
			}
		}
		return nil
	})
}
