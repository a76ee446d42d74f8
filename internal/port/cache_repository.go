package port

import "context"

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// DeleteIdempotency forgets a key so a retry of a failed request is processed again
	DeleteIdempotency(ctx context.Context, key string) error

	// AcquireLock blocks until the key is held or ctx ends; release must be called exactly once
	AcquireLock(ctx context.Context, key string) (release func(), err error)
}
