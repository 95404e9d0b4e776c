package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL. Amounts live in
// NUMERIC(78,0) columns and cross the wire as decimal text.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

const eventCols = `id, proposer, metadata, state, fee_paid::text, vig, end_time,
	max_per_bet::text, liquidity::text, k::text, options, stakes::text[],
	winner, note, proposed_at, updated_at`

// Upsert inserts or replaces the projection of ev.
func (s *EventStore) Upsert(ctx context.Context, ev domain.Event) error {
	const query = `
		INSERT INTO events (
			id, proposer, metadata, state, fee_paid, vig, end_time,
			max_per_bet, liquidity, k, options, stakes,
			winner, note, proposed_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5::numeric, $6, $7,
			$8::numeric, $9::numeric, $10::numeric, $11, $12::numeric[],
			$13, $14, $15, $16
		)
		ON CONFLICT (id) DO UPDATE SET
			metadata    = EXCLUDED.metadata,
			state       = EXCLUDED.state,
			fee_paid    = EXCLUDED.fee_paid,
			vig         = EXCLUDED.vig,
			end_time    = EXCLUDED.end_time,
			max_per_bet = EXCLUDED.max_per_bet,
			liquidity   = EXCLUDED.liquidity,
			k           = EXCLUDED.k,
			options     = EXCLUDED.options,
			stakes      = EXCLUDED.stakes,
			winner      = EXCLUDED.winner,
			note        = EXCLUDED.note,
			updated_at  = EXCLUDED.updated_at`

	stakes := make([]string, len(ev.Stakes))
	for i := range ev.Stakes {
		stakes[i] = ev.Stakes[i].Dec()
	}
	var winner *int16
	if ev.HasWinner() {
		w := int16(ev.Winner)
		winner = &w
	}
	_, err := s.pool.Exec(ctx, query,
		int64(ev.ID), ev.Proposer.Hex(), ev.Metadata, ev.State.String(), ev.FeePaid.Dec(), int32(ev.Vig), ev.EndTime,
		ev.MaxPerBet.Dec(), ev.Liquidity.Dec(), ev.K.Dec(), int16(ev.Options), stakes,
		winner, ev.Note, ev.ProposedAt, ev.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert event %d: %w", ev.ID, err)
	}
	return nil
}

func scanEvent(row pgx.Row) (domain.Event, error) {
	var (
		ev                         domain.Event
		id                         int64
		proposer, state            string
		feePaid, maxPerBet, liq, k string
		vig                        int32
		options                    int16
		stakes                     []string
		winner                     *int16
	)
	err := row.Scan(
		&id, &proposer, &ev.Metadata, &state, &feePaid, &vig, &ev.EndTime,
		&maxPerBet, &liq, &k, &options, &stakes,
		&winner, &ev.Note, &ev.ProposedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return domain.Event{}, err
	}
	ev.ID = uint64(id)
	ev.Proposer = common.HexToAddress(proposer)
	if ev.State, err = domain.ParseEventState(state); err != nil {
		return domain.Event{}, err
	}
	ev.Vig = uint16(vig)
	ev.Options = uint8(options)
	for _, f := range []struct {
		dst *uint256.Int
		src string
	}{
		{&ev.FeePaid, feePaid},
		{&ev.MaxPerBet, maxPerBet},
		{&ev.Liquidity, liq},
		{&ev.K, k},
	} {
		if err := domain.ParseAmountInto(f.dst, f.src); err != nil {
			return domain.Event{}, err
		}
	}
	ev.Stakes = make([]uint256.Int, len(stakes))
	for i, st := range stakes {
		if err := domain.ParseAmountInto(&ev.Stakes[i], st); err != nil {
			return domain.Event{}, err
		}
	}
	if winner != nil {
		ev.Winner = uint8(*winner)
	}
	ev.ProposedAt = ev.ProposedAt.UTC()
	ev.UpdatedAt = ev.UpdatedAt.UTC()
	return ev, nil
}

// GetByID retrieves an event by id.
func (s *EventStore) GetByID(ctx context.Context, id uint64) (domain.Event, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+eventCols+` FROM events WHERE id = $1`, int64(id))
	ev, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Event{}, fmt.Errorf("postgres: event %d: %w", id, domain.ErrNotFound)
		}
		return domain.Event{}, fmt.Errorf("postgres: get event %d: %w", id, err)
	}
	return ev, nil
}

// List returns events matching filter in id order.
func (s *EventStore) List(ctx context.Context, filter domain.EventFilter, opts domain.ListOpts) ([]domain.Event, error) {
	q := newQuery(`SELECT ` + eventCols + ` FROM events WHERE 1=1`)
	if filter.State != nil {
		q.where("state = %s", filter.State.String())
	}
	if filter.Proposer != nil {
		q.where("proposer = %s", filter.Proposer.Hex())
	}
	q.window("proposed_at", opts)
	q.order("id")
	q.page(opts)

	rows, err := s.pool.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list events rows: %w", err)
	}
	return events, nil
}

// Count returns the number of projected events.
func (s *EventStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count events: %w", err)
	}
	return count, nil
}
