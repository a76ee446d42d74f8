package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/pricechek-rider/internal/core/domain"
	"github.com/rl1809/pricechek-rider/internal/port"
)

type USSDRequest struct {
	PhoneNumber string
	SessionID   string
	ServiceCode string
	Text        string // cumulative input, segments separated by '*'
}

// Screen is the next USSD screen. Continues screens keep the session open.
type Screen struct {
	Continues bool
	Message   string
}

func (s Screen) String() string {
	if s.Continues {
		return "CON " + s.Message
	}
	return "END " + s.Message
}

func con(msg string) Screen { return Screen{Continues: true, Message: msg} }
func end(msg string) Screen { return Screen{Continues: false, Message: msg} }

// USSDService interprets the cumulative text of a USSD session. Apart from
// onboarding writes it keeps no state: the gateway resends the full input on
// every turn.
type USSDService struct {
	db       port.DatabaseRepository
	cache    port.CacheRepository
	notifier port.Notifier
	log      *zap.Logger
	metrics  port.Metrics
	now      func() time.Time
}

func NewUSSDService(db port.DatabaseRepository, cache port.CacheRepository, notifier port.Notifier, log *zap.Logger, metrics port.Metrics) *USSDService {
	if log == nil {
		log = zap.NewNop()
	}
	if metrics == nil {
		metrics = port.NopMetrics{}
	}
	return &USSDService{
		db:       db,
		cache:    cache,
		notifier: notifier,
		log:      log,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (s *USSDService) Handle(ctx context.Context, req USSDRequest) Screen {
	text := strings.TrimSpace(req.Text)
	var parts []string
	if text != "" {
		parts = strings.Split(text, "*")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	s.log.Info("ussd request",
		zap.String("phone", req.PhoneNumber),
		zap.String("session_id", req.SessionID),
		zap.String("service_code", req.ServiceCode),
		zap.Int("level", len(parts)))

	screen := s.route(ctx, req.PhoneNumber, parts)
	s.metrics.USSDScreen(len(parts), screen.Continues)
	return screen
}

func (s *USSDService) route(ctx context.Context, phone string, parts []string) Screen {
	switch {
	case len(parts) == 0:
		return con(screenMainMenu)
	case len(parts) == 1:
		switch parts[0] {
		case "1":
			return con(screenCityPrompt)
		case "2":
			return s.recentOrders(ctx, phone)
		case "3":
			return end(screenHelp)
		case "4":
			return end(screenGoodbye)
		}
	case len(parts) == 2 && parts[0] == "1":
		return s.registerCity(ctx, phone, parts[1])
	}
	return end(screenInvalidOption)
}

func (s *USSDService) recentOrders(ctx context.Context, phone string) Screen {
	if phone == "" {
		return end(screenNoOrders)
	}
	orders, err := s.db.RecentOrders(ctx, phone, recentOrdersLimit)
	if err != nil {
		s.log.Error("failed to load recent orders", zap.String("phone", phone), zap.Error(err))
		return end(screenError)
	}
	if len(orders) == 0 {
		return end(screenNoOrders)
	}
	return end(formatRecentOrders(orders))
}

// registerCity stores the city code and hands the dialog over to SMS.
func (s *USSDService) registerCity(ctx context.Context, phone, input string) Screen {
	code, ok := ParseCityCode(input)
	if !ok {
		return end(screenInvalidCity)
	}
	if phone == "" {
		return end(screenInvalidOption)
	}

	release, err := s.cache.AcquireLock(ctx, userLockKey(phone))
	if err != nil {
		s.log.Error("failed to lock user", zap.String("phone", phone), zap.Error(err))
		return end(screenError)
	}
	defer release()

	user, err := s.db.GetUser(ctx, phone)
	if err != nil {
		s.log.Error("failed to load user", zap.String("phone", phone), zap.Error(err))
		return end(screenError)
	}
	now := s.now()
	if user == nil {
		u := domain.NewUser(phone, now)
		user = &u
	}
	user.CityCode = code
	user.ConversationStep = domain.StepAwaitingLocation
	user.SessionData = domain.SessionData{LastOrderID: user.SessionData.LastOrderID}
	user.UpdatedAt = now

	if err := s.db.SaveUser(ctx, *user); err != nil {
		s.log.Error("failed to save user", zap.String("phone", phone), zap.Error(err))
		return end(screenError)
	}

	if !s.notifier.Notify(phone, smsWelcome) {
		s.log.Warn("location prompt not queued", zap.String("phone", phone))
	}
	s.log.Info("city registered", zap.String("phone", phone), zap.String("city_code", code))
	return end(screenCityNoted)
}

func userLockKey(phone string) string {
	return "user:" + phone
}
