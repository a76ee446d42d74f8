package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/pricechek-rider/internal/core/domain"
	"github.com/rl1809/pricechek-rider/internal/port"
)

var ErrDuplicateMessage = errors.New("duplicate message")

type DialogOptions struct {
	CancelWindow    time.Duration
	DeliveryFee     decimal.Decimal
	TrackingBaseURL string
}

func DefaultDialogOptions() DialogOptions {
	return DialogOptions{
		CancelWindow:    5 * time.Minute,
		DeliveryFee:     decimal.NewFromInt(150),
		TrackingBaseURL: "https://pricechekrider.co.ke/track",
	}
}

// InboundSMS is a message received from the SMS gateway.
type InboundSMS struct {
	From   string
	To     string
	Text   string
	Date   string
	ID     string
	LinkID string
}

// SMSService runs the SMS dialog. The conversation step is persisted on the
// user, so every turn is a locked read-modify-write of the user record.
type SMSService struct {
	db       port.DatabaseRepository
	cache    port.CacheRepository
	prices   port.PriceProvider
	notifier port.Notifier
	opts     DialogOptions
	log      *zap.Logger
	metrics  port.Metrics
	now      func() time.Time
}

func NewSMSService(
	db port.DatabaseRepository,
	cache port.CacheRepository,
	prices port.PriceProvider,
	notifier port.Notifier,
	opts DialogOptions,
	log *zap.Logger,
	metrics port.Metrics,
) *SMSService {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &SMSService{
		db:       db,
		cache:    cache,
		prices:   prices,
		notifier: notifier,
		opts:     opts,
		log:      log,
		metrics:  metrics,
		now:      time.Now,
	}
}

// HandleInbound drops gateway retries of an already processed message and
// runs the dialog turn for the rest. A failed turn gives up its key so the
// gateway's retry is processed.
func (s *SMSService) HandleInbound(ctx context.Context, msg InboundSMS) (string, error) {
	key := idempotencyKey(msg)
	if key != "" {
		ok, err := s.cache.SetIdempotency(ctx, key)
		if err != nil {
			return "", fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return "", ErrDuplicateMessage
		}
	}

	reply, err := s.Handle(ctx, msg.From, msg.Text)
	if err != nil && key != "" {
		if derr := s.cache.DeleteIdempotency(context.WithoutCancel(ctx), key); derr != nil {
			s.log.Error("failed to release idempotency key",
				zap.String("phone", msg.From), zap.String("key", key), zap.Error(derr))
		}
	}
	return reply, err
}

func idempotencyKey(msg InboundSMS) string {
	if msg.ID != "" {
		return "sms:" + msg.ID
	}
	if msg.Date == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(msg.From + "\x00" + msg.Date + "\x00" + msg.Text))
	return "sms:" + hex.EncodeToString(sum[:])
}

// Handle runs one dialog turn and returns the reply, which is also queued for
// delivery. An error means the user record could not be read or written.
func (s *SMSService) Handle(ctx context.Context, phone, body string) (string, error) {
	release, err := s.cache.AcquireLock(ctx, userLockKey(phone))
	if err != nil {
		return "", fmt.Errorf("lock user: %w", err)
	}
	defer release()

	user, err := s.db.GetUser(ctx, phone)
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	now := s.now()
	if user == nil {
		u := domain.NewUser(phone, now)
		user = &u
	}

	step := user.Step()
	s.metrics.SMSTurn(step)
	body = strings.TrimSpace(body)
	s.log.Info("sms turn", zap.String("phone", phone), zap.String("step", string(step)))

	reply, err := s.turn(ctx, user, body, now)
	if err != nil {
		return "", err
	}

	user.UpdatedAt = now
	if err := s.db.SaveUser(ctx, *user); err != nil {
		return "", fmt.Errorf("save user: %w", err)
	}
	if user.ConversationStep != step {
		s.log.Info("sms step changed", zap.String("phone", phone),
			zap.String("from", string(step)), zap.String("to", string(user.ConversationStep)))
	}

	if !s.notifier.Notify(phone, reply) {
		s.log.Warn("sms reply not queued", zap.String("phone", phone))
	}
	return reply, nil
}

func (s *SMSService) turn(ctx context.Context, user *domain.User, body string, now time.Time) (string, error) {
	switch ParseCommand(body) {
	case CommandNew:
		user.SessionData.ClearComparison()
		user.ConversationStep = domain.StepAwaitingProducts
		return smsProductList, nil
	case CommandCancel:
		return s.cancel(ctx, user, now)
	case CommandOrder:
		return s.order(ctx, user, now)
	}

	switch user.Step() {
	case domain.StepAwaitingSearchType:
		st, ok := ParseSearchType(body)
		if !ok {
			return smsSearchTypeRetry, nil
		}
		user.SessionData.SearchType = st
		user.ConversationStep = domain.StepAwaitingProducts
		if st == domain.SearchTypeSingle {
			return smsSingleProduct, nil
		}
		return smsProductList, nil

	case domain.StepAwaitingProducts:
		return s.compare(ctx, user, body)

	case domain.StepAwaitingOrderDecision:
		return smsOrderDecision, nil

	case domain.StepOrderPlaced:
		return formatPostOrder(s.opts.CancelWindow), nil

	default:
		loc, ok := ParseLocation(body)
		if !ok {
			return smsLocationFormat, nil
		}
		user.CityCode = loc.CityCode
		user.Location = loc.Area
		user.ConversationStep = domain.StepAwaitingSearchType
		return smsSearchType, nil
	}
}

func (s *SMSService) compare(ctx context.Context, user *domain.User, body string) (string, error) {
	products := ParseProducts(body)
	if len(products) == 0 {
		return smsProductList, nil
	}
	cmp, err := Compare(ctx, s.prices, products)
	if err != nil {
		return "", fmt.Errorf("compare prices: %w", err)
	}
	if len(cmp.Products) == 0 {
		return formatNothingFound(cmp.NotFound), nil
	}
	user.SessionData.Comparison = &cmp
	user.SessionData.PendingTotal = cmp.TotalCheapest
	user.SessionData.PendingOrderID = uuid.NewString()
	user.ConversationStep = domain.StepAwaitingOrderDecision
	return formatResults(cmp, s.opts.DeliveryFee), nil
}

// order turns the pending comparison into a confirmed order. The order total
// is the cheapest total plus the delivery fee. The order id comes from the
// session, so an ORDER repeated after a failed user save finds the order
// already stored instead of creating a second one.
func (s *SMSService) order(ctx context.Context, user *domain.User, now time.Time) (string, error) {
	cmp := user.SessionData.Comparison
	if user.Step() != domain.StepAwaitingOrderDecision || cmp == nil || len(cmp.Products) == 0 {
		if user.Step() == domain.StepAwaitingOrderDecision {
			user.SessionData.ClearComparison()
			user.ConversationStep = domain.StepAwaitingProducts
		}
		return smsNoComparison, nil
	}

	id := user.SessionData.PendingOrderID
	if id == "" {
		id = uuid.NewString()
	}
	existing, err := s.db.GetOrder(ctx, id)
	if err != nil {
		return "", fmt.Errorf("get order: %w", err)
	}

	var order domain.Order
	if existing != nil && existing.UserPhone == user.PhoneNumber {
		order = *existing
		s.log.Info("order already stored", zap.String("phone", user.PhoneNumber), zap.String("order_id", order.ID))
	} else {
		if existing != nil {
			id = uuid.NewString()
		}
		order = domain.Order{
			ID:         id,
			UserPhone:  user.PhoneNumber,
			Items:      cmp.Items(),
			TotalPrice: cmp.TotalCheapest.Add(s.opts.DeliveryFee),
			Status:     domain.OrderStatusConfirmed,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.db.CreateOrder(ctx, order); err != nil {
			return "", fmt.Errorf("create order: %w", err)
		}
		s.log.Info("order confirmed", zap.String("phone", user.PhoneNumber),
			zap.String("order_id", order.ID), zap.String("total", order.TotalPrice.String()))
	}

	user.SessionData.ClearComparison()
	user.SessionData.LastOrderID = order.ID
	user.ConversationStep = domain.StepOrderPlaced
	return formatOrderConfirmation(order, s.trackingURL(order.ID), s.opts.CancelWindow), nil
}

func (s *SMSService) cancel(ctx context.Context, user *domain.User, now time.Time) (string, error) {
	order, err := s.db.LatestOrder(ctx, user.PhoneNumber)
	if err != nil {
		return "", fmt.Errorf("latest order: %w", err)
	}
	if order == nil || order.Status == domain.OrderStatusCancelled {
		return smsNothingToCancel, nil
	}
	if !order.Cancellable(now, s.opts.CancelWindow) {
		return smsCancelExpired, nil
	}

	err = s.db.UpdateOrderStatus(ctx, order.ID, order.Status, domain.OrderStatusCancelled)
	if errors.Is(err, domain.ErrOrderStatusConflict) || errors.Is(err, domain.ErrOrderNotFound) {
		return smsNothingToCancel, nil
	}
	if err != nil {
		return "", fmt.Errorf("cancel order: %w", err)
	}
	s.log.Info("order cancelled", zap.String("phone", user.PhoneNumber), zap.String("order_id", order.ID))

	if user.Step() == domain.StepOrderPlaced {
		user.ConversationStep = domain.StepAwaitingProducts
	}
	return smsCancelled, nil
}

func (s *SMSService) trackingURL(orderID string) string {
	return strings.TrimRight(s.opts.TrackingBaseURL, "/") + "/" + orderID
}
