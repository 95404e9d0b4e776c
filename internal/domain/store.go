package domain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// EventStore is the relational read model of events.
type EventStore interface {
	Upsert(ctx context.Context, ev Event) error
	GetByID(ctx context.Context, id uint64) (Event, error)
	List(ctx context.Context, filter EventFilter, opts ListOpts) ([]Event, error)
	Count(ctx context.Context) (int64, error)
}

// WagerStore is the relational read model of wagers.
type WagerStore interface {
	Upsert(ctx context.Context, w Wager) error
	Get(ctx context.Context, key WagerKey) (Wager, error)
	ListByEvent(ctx context.Context, eventID uint64, opts ListOpts) ([]Wager, error)
	ListByAccount(ctx context.Context, account common.Address, opts ListOpts) ([]Wager, error)
}

// Journal is the durable, ordered record of executed transactions.
type Journal interface {
	Append(ctx context.Context, r Receipt) error
	ListAfter(ctx context.Context, seq int64, limit int) ([]Receipt, error)
	// ListBefore pages through receipts older than before, in Seq order.
	ListBefore(ctx context.Context, before time.Time, afterSeq int64, limit int) ([]Receipt, error)
	GetByTxID(ctx context.Context, txID string) (Receipt, error)
	LastSeq(ctx context.Context) (int64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}
