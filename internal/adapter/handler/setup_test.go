package handler

import (
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/rl1809/pricechek-rider/internal/adapter/pricing"
	"github.com/rl1809/pricechek-rider/internal/adapter/storage"
	"github.com/rl1809/pricechek-rider/internal/core/domain"
	"github.com/rl1809/pricechek-rider/internal/core/service"
)

const testPhone = "+254712345678"

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []domain.OutboundMessage
}

func (n *recordingNotifier) Notify(phone, text string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, domain.OutboundMessage{To: phone, Text: text})
	return true
}

func (n *recordingNotifier) sent() []domain.OutboundMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.OutboundMessage(nil), n.msgs...)
}

type stack struct {
	db       *storage.BadgerAdapter
	notifier *recordingNotifier
	ussd     *service.USSDService
	sms      *service.SMSService
}

func newStack(t *testing.T) *stack {
	t.Helper()
	bdb, err := storage.OpenBadger("", true, nil)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	t.Cleanup(func() { bdb.Close() })

	cache, err := storage.NewMemoryCache(0)
	if err != nil {
		t.Fatalf("memory cache: %v", err)
	}

	log := zaptest.NewLogger(t)
	db := storage.NewBadgerAdapter(bdb)
	notifier := &recordingNotifier{}
	return &stack{
		db:       db,
		notifier: notifier,
		ussd:     service.NewUSSDService(db, cache, notifier, log, nil),
		sms:      service.NewSMSService(db, cache, pricing.NewMockProvider(), notifier, service.DefaultDialogOptions(), log, nil),
	}
}
