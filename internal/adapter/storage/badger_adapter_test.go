package storage

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
)

func newMemoryBadger(t *testing.T) *BadgerAdapter {
	t.Helper()
	db, err := OpenBadger("", true, nil)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBadgerAdapter(db)
}

func TestBadgerAdapter_Contract(t *testing.T) {
	runRepositoryContract(t, newMemoryBadger(t))
}

func TestBadgerAdapter_ListOrdersNewestFirst(t *testing.T) {
	repo := newMemoryBadger(t)
	ctx := context.Background()

	older := newOrder(testPhone(), base)
	newer := newOrder(testPhone(), base.Add(time.Hour))
	if err := repo.CreateOrder(ctx, older); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if err := repo.CreateOrder(ctx, newer); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}

	orders, err := repo.ListOrders(ctx)
	if err != nil {
		t.Fatalf("ListOrders failed: %v", err)
	}
	if len(orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(orders))
	}
	if orders[0].ID != newer.ID {
		t.Errorf("expected newest order first")
	}
}

func TestBadgerAdapter_ListUsersSkipsOrderIndex(t *testing.T) {
	repo := newMemoryBadger(t)
	ctx := context.Background()

	phone := testPhone()
	if err := repo.CreateOrder(ctx, newOrder(phone, base)); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	users, err := repo.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("expected no users, got %d", len(users))
	}
}

func TestBadgerAdapter_DuplicateOrderRejected(t *testing.T) {
	repo := newMemoryBadger(t)
	ctx := context.Background()

	o := newOrder(testPhone(), base)
	if err := repo.CreateOrder(ctx, o); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	if err := repo.CreateOrder(ctx, o); err == nil {
		t.Error("expected error for duplicate order id")
	}
}

func TestBadgerAdapter_RecentOrdersDoesNotLeakAcrossPhones(t *testing.T) {
	repo := newMemoryBadger(t)
	ctx := context.Background()

	// "+2547001" is a prefix of "+25470012"; the index separator keeps them apart.
	short, long := "+2547001", "+25470012"
	if err := repo.CreateOrder(ctx, newOrder(long, base.Add(time.Hour))); err != nil {
		t.Fatalf("CreateOrder failed: %v", err)
	}
	o, err := repo.LatestOrder(ctx, short)
	if err != nil {
		t.Fatalf("LatestOrder failed: %v", err)
	}
	if o != nil {
		t.Errorf("expected no order for %s, got one for %s", short, o.UserPhone)
	}
}

func TestOpenBadger_Dir(t *testing.T) {
	db, err := OpenBadger(t.TempDir(), false, nil)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	defer db.Close()

	err = db.Update(func(txn *badger.Txn) error { return txn.Set([]byte("k"), []byte("v")) })
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
}
