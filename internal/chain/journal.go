package chain

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// MemoryJournal keeps receipts in process. It backs nodes run without
// Postgres and tests.
type MemoryJournal struct {
	mu       sync.RWMutex
	receipts []domain.Receipt
	byTxID   map[string]int
}

// NewMemoryJournal returns an empty journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{byTxID: make(map[string]int)}
}

// Append stores r. Seq must follow the last stored receipt.
func (j *MemoryJournal) Append(_ context.Context, r domain.Receipt) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if want := int64(len(j.receipts)) + 1; r.Seq != want {
		return fmt.Errorf("chain: journal: seq %d out of order, want %d", r.Seq, want)
	}
	j.byTxID[r.TxID] = len(j.receipts)
	j.receipts = append(j.receipts, r)
	return nil
}

// ListAfter returns up to limit receipts with Seq > seq.
func (j *MemoryJournal) ListAfter(_ context.Context, seq int64, limit int) ([]domain.Receipt, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if seq < 0 {
		seq = 0
	}
	if seq >= int64(len(j.receipts)) {
		return nil, nil
	}
	end := len(j.receipts)
	if limit > 0 && int(seq)+limit < end {
		end = int(seq) + limit
	}
	out := make([]domain.Receipt, end-int(seq))
	copy(out, j.receipts[seq:end])
	return out, nil
}

// ListBefore returns up to limit receipts with Seq > afterSeq executed
// before the cutoff.
func (j *MemoryJournal) ListBefore(_ context.Context, before time.Time, afterSeq int64, limit int) ([]domain.Receipt, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if afterSeq < 0 {
		afterSeq = 0
	}
	var out []domain.Receipt
	for i := int(min(afterSeq, int64(len(j.receipts)))); i < len(j.receipts); i++ {
		r := j.receipts[i]
		if !r.Time.Before(before) {
			break
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// GetByTxID looks up one receipt.
func (j *MemoryJournal) GetByTxID(_ context.Context, txID string) (domain.Receipt, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	i, ok := j.byTxID[txID]
	if !ok {
		return domain.Receipt{}, fmt.Errorf("chain: journal: tx %s: %w", txID, domain.ErrNotFound)
	}
	return j.receipts[i], nil
}

// LastSeq is the highest stored Seq, 0 when empty.
func (j *MemoryJournal) LastSeq(_ context.Context) (int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return int64(len(j.receipts)), nil
}
