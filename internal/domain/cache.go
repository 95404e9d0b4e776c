package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// EventCache holds the latest projected snapshot of each event.
type EventCache interface {
	Set(ctx context.Context, ev Event) error
	Get(ctx context.Context, id uint64) (Event, error)
	Invalidate(ctx context.Context, id uint64) error
}

// Lease is a renewable hold on a named lock.
type Lease interface {
	Renew(ctx context.Context) error
	Release()
}

// LeaseManager hands out renewable locks.
type LeaseManager interface {
	AcquireLease(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}
