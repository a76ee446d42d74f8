package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/rl1809/pricechek-rider/internal/core/domain"
	"github.com/rl1809/pricechek-rider/internal/port"
)

const (
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
	DeliveryDropped = "dropped"
)

type DispatcherConfig struct {
	QueueSize     int
	Workers       int
	RatePerSecond float64 // <= 0 disables rate limiting
	Burst         int
	SendTimeout   time.Duration
}

// Dispatcher delivers outbound messages from a bounded queue with a pool of
// workers, so dialog turns never wait on the gateway.
type Dispatcher struct {
	sender  port.MessageSender
	cfg     DispatcherConfig
	queue   chan domain.OutboundMessage
	limiter *rate.Limiter
	log     *zap.Logger
	metrics port.Metrics

	mu      sync.RWMutex
	closed  bool
	started bool
	wg      sync.WaitGroup
}

func NewDispatcher(sender port.MessageSender, cfg DispatcherConfig, log *zap.Logger, metrics port.Metrics) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	d := &Dispatcher{
		sender:  sender,
		cfg:     cfg,
		queue:   make(chan domain.OutboundMessage, cfg.QueueSize),
		log:     log,
		metrics: metrics,
	}
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return d
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started || d.closed {
		return
	}
	d.started = true
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func(id int) {
			defer d.wg.Done()
			d.workerLoop(id)
		}(i)
	}
	d.log.Info("dispatcher started", zap.Int("workers", d.cfg.Workers), zap.Int("queue_size", d.cfg.QueueSize))
}

// Notify queues a message and reports whether it was accepted. It never
// blocks: a full or closed queue drops the message.
func (d *Dispatcher) Notify(phone, text string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn("dispatcher closed, message dropped", zap.String("phone", phone))
		d.metrics.Delivery(DeliveryDropped)
		return false
	}
	select {
	case d.queue <- domain.OutboundMessage{To: phone, Text: text}:
		return true
	default:
		d.log.Warn("dispatch queue full, message dropped", zap.String("phone", phone))
		d.metrics.Delivery(DeliveryDropped)
		return false
	}
}

// Close stops accepting messages, drains the queue and waits for workers.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	started := d.started
	d.mu.Unlock()

	if !started {
		for msg := range d.queue {
			d.log.Warn("dispatcher never started, message dropped", zap.String("phone", msg.To))
			d.metrics.Delivery(DeliveryDropped)
		}
		return
	}
	d.wg.Wait()
	d.log.Info("dispatcher stopped")
}

func (d *Dispatcher) workerLoop(id int) {
	for msg := range d.queue {
		if d.limiter != nil {
			if err := d.limiter.Wait(context.Background()); err != nil {
				d.log.Error("rate limiter failed", zap.Int("worker", id), zap.Error(err))
			}
		}

		ctx, cancel := context.WithTimeout(context.Background(), d.cfg.SendTimeout)
		err := d.sender.Send(ctx, msg.To, msg.Text)
		cancel()

		if err != nil {
			d.log.Error("failed to deliver message",
				zap.Int("worker", id), zap.String("phone", msg.To), zap.Error(err))
			d.metrics.Delivery(DeliveryFailed)
			continue
		}
		d.log.Debug("delivered message", zap.Int("worker", id), zap.String("phone", msg.To))
		d.metrics.Delivery(DeliverySent)
	}
}
