package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rl1809/pricechek-rider/internal/core/domain"
	"github.com/rl1809/pricechek-rider/internal/port"
)

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

var timeEqual = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })

var base = time.Date(2026, 1, 29, 12, 0, 0, 0, time.UTC)

func testPhone() string {
	return "+2547" + uuid.NewString()[:8]
}

func newOrder(phone string, created time.Time) domain.Order {
	return domain.Order{
		ID:         uuid.NewString(),
		UserPhone:  phone,
		Items:      []string{"sugar", "milk"},
		TotalPrice: decimal.NewFromInt(415),
		Status:     domain.OrderStatusConfirmed,
		CreatedAt:  created,
		UpdatedAt:  created,
	}
}

// runRepositoryContract checks behaviour every DatabaseRepository backend
// must share.
func runRepositoryContract(t *testing.T, repo port.DatabaseRepository) {
	ctx := context.Background()

	t.Run("missing user", func(t *testing.T) {
		u, err := repo.GetUser(ctx, testPhone())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if u != nil {
			t.Errorf("expected nil user, got %+v", u)
		}
	})

	t.Run("save and load user", func(t *testing.T) {
		user := domain.NewUser(testPhone(), base)
		user.CityCode = "NRB"
		user.Location = "Kileleshwa"
		user.ConversationStep = domain.StepAwaitingOrderDecision
		user.SessionData = domain.SessionData{
			SearchType:   domain.SearchTypeMultiple,
			PendingTotal: decimal.NewFromInt(265),
			Comparison: &domain.Comparison{
				Products: []domain.ProductComparison{{
					Product:  "sugar",
					Cheapest: domain.PriceRow{Store: "Naivas", Area: "Kileleshwa", Price: decimal.NewFromInt(265), ETA: "5 min"},
					Average:  decimal.NewFromInt(272),
				}},
				TotalCheapest: decimal.NewFromInt(265),
			},
		}

		if err := repo.SaveUser(ctx, user); err != nil {
			t.Fatalf("SaveUser failed: %v", err)
		}
		got, err := repo.GetUser(ctx, user.PhoneNumber)
		if err != nil || got == nil {
			t.Fatalf("GetUser = %v, %v", got, err)
		}
		if diff := cmp.Diff(user, *got, decimalEqual, timeEqual); diff != "" {
			t.Errorf("user mismatch (-want +got):\n%s", diff)
		}

		user.ConversationStep = domain.StepAwaitingProducts
		user.SessionData.ClearComparison()
		user.UpdatedAt = base.Add(time.Minute)
		if err := repo.SaveUser(ctx, user); err != nil {
			t.Fatalf("SaveUser update failed: %v", err)
		}
		got, _ = repo.GetUser(ctx, user.PhoneNumber)
		if got.ConversationStep != domain.StepAwaitingProducts {
			t.Errorf("expected step %s, got %s", domain.StepAwaitingProducts, got.ConversationStep)
		}
		if got.SessionData.Comparison != nil {
			t.Error("expected comparison to be cleared")
		}
	})

	t.Run("latest and recent orders", func(t *testing.T) {
		phone := testPhone()
		if o, err := repo.LatestOrder(ctx, phone); err != nil || o != nil {
			t.Fatalf("LatestOrder on empty = %v, %v", o, err)
		}

		var ids []string
		for i := 0; i < 3; i++ {
			o := newOrder(phone, base.Add(time.Duration(i)*time.Minute))
			if err := repo.CreateOrder(ctx, o); err != nil {
				t.Fatalf("CreateOrder failed: %v", err)
			}
			ids = append(ids, o.ID)
		}
		if err := repo.CreateOrder(ctx, newOrder(testPhone(), base.Add(time.Hour))); err != nil {
			t.Fatalf("CreateOrder other user failed: %v", err)
		}

		latest, err := repo.LatestOrder(ctx, phone)
		if err != nil || latest == nil {
			t.Fatalf("LatestOrder = %v, %v", latest, err)
		}
		if latest.ID != ids[2] {
			t.Errorf("expected latest %s, got %s", ids[2], latest.ID)
		}
		if !latest.TotalPrice.Equal(decimal.NewFromInt(415)) {
			t.Errorf("expected total 415, got %s", latest.TotalPrice)
		}
		if diff := cmp.Diff([]string{"sugar", "milk"}, latest.Items); diff != "" {
			t.Errorf("items mismatch (-want +got):\n%s", diff)
		}

		recent, err := repo.RecentOrders(ctx, phone, 2)
		if err != nil {
			t.Fatalf("RecentOrders failed: %v", err)
		}
		var got []string
		for _, o := range recent {
			got = append(got, o.ID)
		}
		if diff := cmp.Diff([]string{ids[2], ids[1]}, got); diff != "" {
			t.Errorf("recent mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("get order", func(t *testing.T) {
		o := newOrder(testPhone(), base)
		if err := repo.CreateOrder(ctx, o); err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}
		got, err := repo.GetOrder(ctx, o.ID)
		if err != nil || got == nil {
			t.Fatalf("GetOrder = %v, %v", got, err)
		}
		if got.UserPhone != o.UserPhone {
			t.Errorf("expected phone %s, got %s", o.UserPhone, got.UserPhone)
		}
		missing, err := repo.GetOrder(ctx, uuid.NewString())
		if err != nil || missing != nil {
			t.Errorf("GetOrder missing = %v, %v", missing, err)
		}
	})

	t.Run("conditional status update", func(t *testing.T) {
		o := newOrder(testPhone(), base)
		if err := repo.CreateOrder(ctx, o); err != nil {
			t.Fatalf("CreateOrder failed: %v", err)
		}

		if err := repo.UpdateOrderStatus(ctx, o.ID, domain.OrderStatusConfirmed, domain.OrderStatusCancelled); err != nil {
			t.Fatalf("first update failed: %v", err)
		}
		err := repo.UpdateOrderStatus(ctx, o.ID, domain.OrderStatusConfirmed, domain.OrderStatusCancelled)
		if !errors.Is(err, domain.ErrOrderStatusConflict) {
			t.Errorf("expected ErrOrderStatusConflict, got %v", err)
		}
		err = repo.UpdateOrderStatus(ctx, uuid.NewString(), domain.OrderStatusConfirmed, domain.OrderStatusCancelled)
		if !errors.Is(err, domain.ErrOrderNotFound) {
			t.Errorf("expected ErrOrderNotFound, got %v", err)
		}

		got, _ := repo.GetOrder(ctx, o.ID)
		if got.Status != domain.OrderStatusCancelled {
			t.Errorf("expected cancelled, got %s", got.Status)
		}
	})
}
