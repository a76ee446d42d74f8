package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/pricechek-rider/internal/adapter/gateway"
	"github.com/rl1809/pricechek-rider/internal/adapter/pricing"
	"github.com/rl1809/pricechek-rider/internal/adapter/storage"
	"github.com/rl1809/pricechek-rider/internal/core/domain"
	"github.com/rl1809/pricechek-rider/internal/core/service"
)

type deliveryCounter struct {
	sent, failed, dropped atomic.Int32
}

func (c *deliveryCounter) USSDScreen(int, bool)            {}
func (c *deliveryCounter) SMSTurn(domain.ConversationStep) {}
func (c *deliveryCounter) Delivery(result string) {
	switch result {
	case service.DeliverySent:
		c.sent.Add(1)
	case service.DeliveryFailed:
		c.failed.Add(1)
	default:
		c.dropped.Add(1)
	}
}

func main() {
	customers := flag.Int("customers", 50, "number of concurrent simulated customers")
	retries := flag.Int("retries", 20, "duplicate deliveries of one inbound sms")
	flag.Parse()

	ctx := context.Background()

	bdb, err := storage.OpenBadger("", true, nil)
	if err != nil {
		log.Fatalf("failed to open badger: %v", err)
	}
	defer bdb.Close()

	cache, err := storage.NewMemoryCache(0)
	if err != nil {
		log.Fatalf("failed to create cache: %v", err)
	}

	db := storage.NewBadgerAdapter(bdb)
	counter := &deliveryCounter{}
	dispatcher := service.NewDispatcher(gateway.NewLogSender(zap.NewNop()), service.DispatcherConfig{
		QueueSize: *customers * 8,
		Workers:   8,
	}, nil, counter)
	dispatcher.Start()

	ussd := service.NewUSSDService(db, cache, dispatcher, nil, counter)
	sms := service.NewSMSService(db, cache, pricing.NewMockProvider(), dispatcher, service.DefaultDialogOptions(), nil, counter)

	var (
		ordered   atomic.Int32
		cancelled atomic.Int32
		failed    atomic.Int32
		wg        sync.WaitGroup
	)
	start := time.Now()

	for i := 0; i < *customers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			phone := fmt.Sprintf("+2547%08d", n)

			screen := ussd.Handle(ctx, service.USSDRequest{PhoneNumber: phone, SessionID: fmt.Sprintf("sim-%d", n), Text: "1*NAI"})
			if screen.Continues {
				failed.Add(1)
				return
			}
			for _, body := range []string{"NAI-Kileleshwa", "2", "sugar, milk, bread"} {
				if _, err := sms.Handle(ctx, phone, body); err != nil {
					failed.Add(1)
					return
				}
			}

			reply, err := sms.Handle(ctx, phone, "ORDER")
			if err != nil || !strings.Contains(reply, "Order confirmed!") {
				failed.Add(1)
				return
			}
			ordered.Add(1)

			order, err := db.LatestOrder(ctx, phone)
			if err != nil || order == nil {
				failed.Add(1)
				return
			}
			if _, err := sms.Handle(ctx, phone, "CANCEL"); err != nil {
				failed.Add(1)
				return
			}
			if got, _ := db.GetOrder(ctx, order.ID); got != nil && got.Status == domain.OrderStatusCancelled {
				cancelled.Add(1)
			}
		}(i)
	}
	wg.Wait()

	// Gateway retries of one message must advance the dialog once.
	var processed, duplicates atomic.Int32
	retryPhone := "+254799999999"
	msg := service.InboundSMS{From: retryPhone, To: "384", Text: "NAI-Westlands", ID: "ATXid_retry"}
	for i := 0; i < *retries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sms.HandleInbound(ctx, msg)
			switch {
			case err == nil:
				processed.Add(1)
			case errors.Is(err, service.ErrDuplicateMessage):
				duplicates.Add(1)
			default:
				failed.Add(1)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	dispatcher.Close()

	orders, _ := db.ListOrders(ctx)
	retryUser, _ := db.GetUser(ctx, retryPhone)

	fmt.Println("========== SIMULATION RESULTS ==========")
	fmt.Printf("Customers:        %d\n", *customers)
	fmt.Printf("Orders placed:    %d\n", ordered.Load())
	fmt.Printf("Orders cancelled: %d\n", cancelled.Load())
	fmt.Printf("Orders stored:    %d\n", len(orders))
	fmt.Printf("Failures:         %d\n", failed.Load())
	fmt.Printf("Retry processed:  %d (duplicates %d)\n", processed.Load(), duplicates.Load())
	fmt.Printf("SMS sent:         %d (failed %d, dropped %d)\n", counter.sent.Load(), counter.failed.Load(), counter.dropped.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("========================================")

	if int(ordered.Load()) == *customers && int(cancelled.Load()) == *customers && len(orders) == *customers {
		fmt.Println("PASS: every customer ordered and cancelled once")
	} else {
		fmt.Printf("FAIL: expected %d orders and cancellations\n", *customers)
	}

	if processed.Load() == 1 && retryUser != nil && retryUser.Step() == domain.StepAwaitingSearchType {
		fmt.Println("PASS: duplicate deliveries advanced the dialog once")
	} else {
		fmt.Printf("FAIL: expected one processed retry, got %d\n", processed.Load())
	}
}
