package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

const DefaultSubject = "pricechek.sms.outbound"

type outboundMessage struct {
	To       string    `json:"to"`
	Message  string    `json:"message"`
	From     string    `json:"from,omitempty"`
	QueuedAt time.Time `json:"queued_at"`
}

// NATSSender hands messages to an SMS worker listening on a subject.
type NATSSender struct {
	conn    *nats.Conn
	subject string
	from    string
	now     func() time.Time
}

func ConnectNATS(url string, timeout time.Duration) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("pricechek-rider"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

func NewNATSSender(conn *nats.Conn, subject, from string) *NATSSender {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSSender{conn: conn, subject: subject, from: from, now: time.Now}
}

func (s *NATSSender) Send(ctx context.Context, phone, text string) error {
	data, err := json.Marshal(outboundMessage{
		To:       NormalizePhone(phone),
		Message:  text,
		From:     s.from,
		QueuedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	if err := s.conn.Publish(s.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", s.subject, err)
	}
	if err := s.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", s.subject, err)
	}
	return nil
}
