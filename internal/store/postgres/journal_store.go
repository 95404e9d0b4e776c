package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// JournalStore implements domain.Journal using PostgreSQL.
type JournalStore struct {
	pool *pgxpool.Pool
}

// NewJournalStore creates a new JournalStore backed by the given connection pool.
func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

const journalCols = `seq, tx_id::text, sender, nonce::text, action, payload,
	time, success, error, result, logs, signature`

// Append inserts r. A duplicate seq or tx id is an error; the journal is
// append-only.
func (s *JournalStore) Append(ctx context.Context, r domain.Receipt) error {
	logs, err := json.Marshal(r.Logs)
	if err != nil {
		return fmt.Errorf("postgres: marshal logs of seq %d: %w", r.Seq, err)
	}
	const query = `
		INSERT INTO journal (
			seq, tx_id, sender, nonce, action, payload,
			time, success, error, result, logs, signature
		) VALUES (
			$1, $2, $3, $4::numeric, $5, $6,
			$7, $8, $9, $10, $11::jsonb, $12
		)`
	_, err = s.pool.Exec(ctx, query,
		r.Seq, r.TxID, r.Sender.Hex(), strconv.FormatUint(r.Nonce, 10), r.Action, []byte(r.Payload),
		r.Time, r.Success, r.Error, []byte(r.Result), string(logs), r.Signature,
	)
	if err != nil {
		return fmt.Errorf("postgres: append receipt seq %d: %w", r.Seq, err)
	}
	return nil
}

// ListAfter returns up to limit receipts with seq > seq, in seq order.
func (s *JournalStore) ListAfter(ctx context.Context, seq int64, limit int) ([]domain.Receipt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+journalCols+` FROM journal WHERE seq > $1 ORDER BY seq LIMIT $2`,
		seq, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal after %d: %w", seq, err)
	}
	return collectReceipts(rows)
}

// ListBefore returns up to limit receipts with seq > afterSeq and time
// before the cutoff, in seq order.
func (s *JournalStore) ListBefore(ctx context.Context, before time.Time, afterSeq int64, limit int) ([]domain.Receipt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+journalCols+` FROM journal WHERE seq > $1 AND time < $2 ORDER BY seq LIMIT $3`,
		afterSeq, before, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal before %s: %w", before.Format(time.RFC3339), err)
	}
	return collectReceipts(rows)
}

// GetByTxID retrieves one receipt.
func (s *JournalStore) GetByTxID(ctx context.Context, txID string) (domain.Receipt, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+journalCols+` FROM journal WHERE tx_id::text = $1`, txID)
	r, err := scanReceipt(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Receipt{}, fmt.Errorf("postgres: tx %s: %w", txID, domain.ErrNotFound)
		}
		return domain.Receipt{}, fmt.Errorf("postgres: get receipt %s: %w", txID, err)
	}
	return r, nil
}

// LastSeq returns the highest journaled seq, 0 when empty.
func (s *JournalStore) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(seq), 0) FROM journal`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("postgres: last seq: %w", err)
	}
	return seq, nil
}

func scanReceipt(row pgx.Row) (domain.Receipt, error) {
	var (
		r       domain.Receipt
		sender  string
		nonce   string
		payload []byte
		result  []byte
		logs    []byte
	)
	err := row.Scan(
		&r.Seq, &r.TxID, &sender, &nonce, &r.Action, &payload,
		&r.Time, &r.Success, &r.Error, &result, &logs, &r.Signature,
	)
	if err != nil {
		return domain.Receipt{}, err
	}
	r.Sender = common.HexToAddress(sender)
	if r.Nonce, err = strconv.ParseUint(nonce, 10, 64); err != nil {
		return domain.Receipt{}, fmt.Errorf("nonce %q: %w", nonce, err)
	}
	r.Time = r.Time.UTC()
	if payload != nil {
		r.Payload = payload
	}
	if result != nil {
		r.Result = result
	}
	if err := json.Unmarshal(logs, &r.Logs); err != nil {
		return domain.Receipt{}, fmt.Errorf("logs of seq %d: %w", r.Seq, err)
	}
	return r, nil
}

func collectReceipts(rows pgx.Rows) ([]domain.Receipt, error) {
	defer rows.Close()
	var out []domain.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan receipt: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: journal rows: %w", err)
	}
	return out, nil
}

// limitOrAll maps a non-positive limit to NULL, which Postgres reads as no
// limit.
func limitOrAll(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}
