package gateway

import (
	"context"

	"go.uber.org/zap"
)

// LogSender only logs messages. Used when no gateway is configured.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, phone, text string) error {
	s.log.Info("sms not delivered, no gateway configured",
		zap.String("phone", NormalizePhone(phone)),
		zap.String("text", text),
	)
	return nil
}
