package handler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"

	"github.com/rl1809/pricechek-rider/internal/adapter/pricing"
	"github.com/rl1809/pricechek-rider/internal/adapter/storage"
	"github.com/rl1809/pricechek-rider/internal/core/domain"
	"github.com/rl1809/pricechek-rider/internal/core/service"
)

type testEnv struct {
	redis   *redis.Client
	mysql   *sql.DB
	cache   *storage.RedisAdapter
	db      *storage.MySQLAdapter
	cleanup func()
}

func setupTestEnv(t *testing.T) *testEnv {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		mysqlDSN = "root:root@tcp(localhost:3306)/pricechek?parseTime=true"
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		rdb.Close()
		t.Skipf("MySQL not available: %v", err)
	}
	if err := db.Ping(); err != nil {
		rdb.Close()
		t.Skipf("MySQL not available: %v", err)
	}

	adapter := storage.NewMySQLAdapter(db)
	if err := adapter.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return &testEnv{
		redis: rdb,
		mysql: db,
		cache: storage.NewRedisAdapter(rdb, 5*time.Second, zaptest.NewLogger(t)),
		db:    adapter,
		cleanup: func() {
			rdb.Close()
			db.Close()
		},
	}
}

type captureSender struct {
	mu   sync.Mutex
	msgs map[string][]string
}

func (c *captureSender) Send(ctx context.Context, phone, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.msgs == nil {
		c.msgs = make(map[string][]string)
	}
	c.msgs[phone] = append(c.msgs[phone], text)
	return nil
}

func (c *captureSender) count(phone string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs[phone])
}

func TestIntegration_ConcurrentJourneys(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	log := zaptest.NewLogger(t)
	sender := &captureSender{}
	dispatcher := service.NewDispatcher(sender, service.DispatcherConfig{QueueSize: 200, Workers: 3}, log, nil)
	dispatcher.Start()

	ussd := service.NewUSSDService(env.db, env.cache, dispatcher, log, nil)
	sms := service.NewSMSService(env.db, env.cache, pricing.NewMockProvider(), dispatcher, service.DefaultDialogOptions(), log, nil)

	run := uuid.NewString()[:6]
	customers := 10
	var (
		wg      sync.WaitGroup
		ordered atomic.Int32
	)
	phones := make([]string, customers)
	for i := 0; i < customers; i++ {
		phones[i] = fmt.Sprintf("+2547%s%02d", run, i)
		wg.Add(1)
		go func(phone string) {
			defer wg.Done()
			ussd.Handle(ctx, service.USSDRequest{PhoneNumber: phone, Text: "1*NAI"})
			for _, body := range []string{"NAI-Kileleshwa", "2", "sugar, milk", "ORDER"} {
				if _, err := sms.Handle(ctx, phone, body); err != nil {
					t.Errorf("%s %q: %v", phone, body, err)
					return
				}
			}
			ordered.Add(1)
		}(phones[i])
	}
	wg.Wait()
	dispatcher.Close()

	if int(ordered.Load()) != customers {
		t.Fatalf("expected %d journeys to finish, got %d", customers, ordered.Load())
	}
	for _, phone := range phones {
		order, err := env.db.LatestOrder(ctx, phone)
		if err != nil || order == nil {
			t.Errorf("%s: expected an order, got %v", phone, err)
			continue
		}
		if order.Status != domain.OrderStatusConfirmed {
			t.Errorf("%s: expected confirmed, got %s", phone, order.Status)
		}
		if n := sender.count(phone); n != 5 {
			t.Errorf("%s: expected 5 delivered messages, got %d", phone, n)
		}
	}

	for _, phone := range phones {
		env.mysql.ExecContext(ctx, `DELETE FROM orders WHERE user_phone = ?`, phone)
		env.mysql.ExecContext(ctx, `DELETE FROM users WHERE phone_number = ?`, phone)
	}
}

func TestIntegration_IdempotencyPreventsDoubleTurn(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	s := newStack(t)
	sms := service.NewSMSService(env.db, env.cache, pricing.NewMockProvider(), s.notifier, service.DefaultDialogOptions(), zaptest.NewLogger(t), nil)

	phone := "+2547" + uuid.NewString()[:8]
	msg := service.InboundSMS{From: phone, To: "384", Text: "NAI-Kileleshwa", ID: "ATXid_" + uuid.NewString()}

	var (
		wg        sync.WaitGroup
		processed atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sms.HandleInbound(ctx, msg)
			if err == nil {
				processed.Add(1)
			} else if !errors.Is(err, service.ErrDuplicateMessage) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if processed.Load() != 1 {
		t.Errorf("expected exactly one processed delivery, got %d", processed.Load())
	}
	user, _ := env.db.GetUser(ctx, phone)
	if user == nil || user.Step() != domain.StepAwaitingSearchType {
		t.Errorf("expected one transition to AWAITING_SEARCH_TYPE, got %+v", user)
	}

	env.mysql.ExecContext(ctx, `DELETE FROM users WHERE phone_number = ?`, phone)
}

func TestIntegration_CancelAfterWindow(t *testing.T) {
	env := setupTestEnv(t)
	defer env.cleanup()

	ctx := context.Background()
	s := newStack(t)
	opts := service.DefaultDialogOptions()
	opts.CancelWindow = time.Millisecond
	sms := service.NewSMSService(env.db, env.cache, pricing.NewMockProvider(), s.notifier, opts, zaptest.NewLogger(t), nil)

	phone := "+2547" + uuid.NewString()[:8]
	for _, body := range []string{"NAI-Kileleshwa", "2", "sugar", "ORDER"} {
		if _, err := sms.Handle(ctx, phone, body); err != nil {
			t.Fatalf("%q: %v", body, err)
		}
	}
	time.Sleep(10 * time.Millisecond)
	if _, err := sms.Handle(ctx, phone, "CANCEL"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	order, _ := env.db.LatestOrder(ctx, phone)
	if order == nil || order.Status != domain.OrderStatusConfirmed {
		t.Errorf("order outside the window must stay confirmed, got %+v", order)
	}

	env.mysql.ExecContext(ctx, `DELETE FROM orders WHERE user_phone = ?`, phone)
	env.mysql.ExecContext(ctx, `DELETE FROM users WHERE phone_number = ?`, phone)
}
