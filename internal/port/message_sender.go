package port

import "context"

// MessageSender delivers a text message to a phone number.
type MessageSender interface {
	Send(ctx context.Context, phone, text string) error
}

// Notifier queues a message for delivery without blocking the caller.
type Notifier interface {
	Notify(phone, text string) bool
}
