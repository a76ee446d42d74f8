package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

const defaultSeenCapacity = 100000

// MemoryCache is the single-process CacheRepository used when no Redis
// address is configured.
type MemoryCache struct {
	mu    sync.Mutex
	locks map[string]*keyLock
	seen  *lru.Cache
	ttl   time.Duration
	now   func() time.Time
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

func NewMemoryCache(capacity int) (*MemoryCache, error) {
	if capacity <= 0 {
		capacity = defaultSeenCapacity
	}
	seen, err := lru.New(capacity)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}
	return &MemoryCache{
		locks: make(map[string]*keyLock),
		seen:  seen,
		ttl:   idempotencyKeyTTL,
		now:   time.Now,
	}, nil
}

func (c *MemoryCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if v, ok := c.seen.Peek(key); ok {
		if at, _ := v.(time.Time); now.Sub(at) < c.ttl {
			return false, nil
		}
	}
	c.seen.Add(key, now)
	return true, nil
}

func (c *MemoryCache) DeleteIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seen.Remove(key)
	return nil
}

func (c *MemoryCache) AcquireLock(ctx context.Context, key string) (func(), error) {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{sem: make(chan struct{}, 1)}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		c.unref(key, l)
		return nil, fmt.Errorf("acquire lock %s: %w", key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.sem
			c.unref(key, l)
		})
	}, nil
}

func (c *MemoryCache) unref(key string, l *keyLock) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(c.locks, key)
	}
}
