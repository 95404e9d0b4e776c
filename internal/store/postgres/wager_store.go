package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// WagerStore implements domain.WagerStore using PostgreSQL.
type WagerStore struct {
	pool *pgxpool.Pool
}

// NewWagerStore creates a new WagerStore backed by the given connection pool.
func NewWagerStore(pool *pgxpool.Pool) *WagerStore {
	return &WagerStore{pool: pool}
}

const wagerCols = `event_id, account, option, amount::text, claimed, refunded, paid::text, updated_at`

// Upsert inserts or replaces the projection of w.
func (s *WagerStore) Upsert(ctx context.Context, w domain.Wager) error {
	const query = `
		INSERT INTO wagers (
			event_id, account, option, amount, claimed, refunded, paid, updated_at
		) VALUES (
			$1, $2, $3, $4::numeric, $5, $6, $7::numeric, $8
		)
		ON CONFLICT (event_id, account, option) DO UPDATE SET
			amount     = EXCLUDED.amount,
			claimed    = EXCLUDED.claimed,
			refunded   = EXCLUDED.refunded,
			paid       = EXCLUDED.paid,
			updated_at = EXCLUDED.updated_at`

	_, err := s.pool.Exec(ctx, query,
		int64(w.EventID), w.Account.Hex(), int16(w.Option),
		w.Amount.Dec(), w.Claimed, w.Refunded, w.Paid.Dec(), w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert wager %d/%s/%d: %w", w.EventID, w.Account.Hex(), w.Option, err)
	}
	return nil
}

func scanWager(row pgx.Row) (domain.Wager, error) {
	var (
		w            domain.Wager
		eventID      int64
		account      string
		option       int16
		amount, paid string
	)
	if err := row.Scan(&eventID, &account, &option, &amount, &w.Claimed, &w.Refunded, &paid, &w.UpdatedAt); err != nil {
		return domain.Wager{}, err
	}
	w.EventID = uint64(eventID)
	w.Account = common.HexToAddress(account)
	w.Option = uint8(option)
	w.UpdatedAt = w.UpdatedAt.UTC()
	if err := domain.ParseAmountInto(&w.Amount, amount); err != nil {
		return domain.Wager{}, err
	}
	if err := domain.ParseAmountInto(&w.Paid, paid); err != nil {
		return domain.Wager{}, err
	}
	return w, nil
}

// Get retrieves one wager.
func (s *WagerStore) Get(ctx context.Context, key domain.WagerKey) (domain.Wager, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+wagerCols+` FROM wagers WHERE event_id = $1 AND account = $2 AND option = $3`,
		int64(key.EventID), key.Account.Hex(), int16(key.Option))
	w, err := scanWager(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Wager{}, fmt.Errorf("postgres: wager %d/%s/%d: %w", key.EventID, key.Account.Hex(), key.Option, domain.ErrNotFound)
		}
		return domain.Wager{}, fmt.Errorf("postgres: get wager: %w", err)
	}
	return w, nil
}

// ListByEvent returns the wagers on one event ordered by option then account.
func (s *WagerStore) ListByEvent(ctx context.Context, eventID uint64, opts domain.ListOpts) ([]domain.Wager, error) {
	q := newQuery(`SELECT ` + wagerCols + ` FROM wagers WHERE 1=1`)
	q.where("event_id = %s", int64(eventID))
	q.window("updated_at", opts)
	q.order("option, account")
	q.page(opts)
	return s.list(ctx, q)
}

// ListByAccount returns one account's wagers ordered by event then option.
func (s *WagerStore) ListByAccount(ctx context.Context, account common.Address, opts domain.ListOpts) ([]domain.Wager, error) {
	q := newQuery(`SELECT ` + wagerCols + ` FROM wagers WHERE 1=1`)
	q.where("account = %s", account.Hex())
	q.window("updated_at", opts)
	q.order("event_id, option")
	q.page(opts)
	return s.list(ctx, q)
}

func (s *WagerStore) list(ctx context.Context, q *query) ([]domain.Wager, error) {
	rows, err := s.pool.Query(ctx, q.sql, q.args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wagers: %w", err)
	}
	defer rows.Close()

	var wagers []domain.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan wager: %w", err)
		}
		wagers = append(wagers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list wagers rows: %w", err)
	}
	return wagers, nil
}
