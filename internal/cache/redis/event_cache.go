package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// DefaultEventTTL applies when NewEventCache is given a non-positive TTL.
const DefaultEventTTL = 10 * time.Minute

// EventCache implements domain.EventCache with one JSON string per event.
//
// Key schema:
//
//	{ns}:event:{id} - JSON of domain.Event
type EventCache struct {
	c   *Client
	rdb *redis.Client
	ttl time.Duration
}

// NewEventCache creates an EventCache backed by the given Client.
func NewEventCache(c *Client, ttl time.Duration) *EventCache {
	if ttl <= 0 {
		ttl = DefaultEventTTL
	}
	return &EventCache{c: c, rdb: c.rdb, ttl: ttl}
}

func (ec *EventCache) eventKey(id uint64) string {
	return ec.c.key("event", strconv.FormatUint(id, 10))
}

// Set stores the latest snapshot of ev.
func (ec *EventCache) Set(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis: marshal event %d: %w", ev.ID, err)
	}
	if err := ec.rdb.Set(ctx, ec.eventKey(ev.ID), data, ec.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set event %d: %w", ev.ID, err)
	}
	return nil
}

// Get returns the cached snapshot, or domain.ErrNotFound on a miss.
func (ec *EventCache) Get(ctx context.Context, id uint64) (domain.Event, error) {
	data, err := ec.rdb.Get(ctx, ec.eventKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("redis: get event %d: %w", id, err)
	}
	var ev domain.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return domain.Event{}, fmt.Errorf("redis: unmarshal event %d: %w", id, err)
	}
	return ev, nil
}

// Invalidate drops the cached snapshot.
func (ec *EventCache) Invalidate(ctx context.Context, id uint64) error {
	if err := ec.rdb.Del(ctx, ec.eventKey(id)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate event %d: %w", id, err)
	}
	return nil
}

var _ domain.EventCache = (*EventCache)(nil)
