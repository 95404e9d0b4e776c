package app

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// receiptVerifier recovers the signer of a journaled receipt.
type receiptVerifier interface {
	ReceiptSigner(r domain.Receipt) (common.Address, error)
}

// journalLister pages through the journal in seq order.
type journalLister interface {
	ListAfter(ctx context.Context, seq int64, limit int) ([]domain.Receipt, error)
}

// verifyJournal checks that every journaled receipt was signed by node and
// returns how many were checked.
func verifyJournal(ctx context.Context, journal journalLister, v receiptVerifier, node common.Address, pageSize int) (int, error) {
	if pageSize <= 0 {
		pageSize = 500
	}
	var (
		checked int
		after   int64
	)
	for {
		page, err := journal.ListAfter(ctx, after, pageSize)
		if err != nil {
			return checked, fmt.Errorf("verify journal: %w", err)
		}
		if len(page) == 0 {
			return checked, nil
		}
		for _, r := range page {
			signer, err := v.ReceiptSigner(r)
			if err != nil {
				return checked, fmt.Errorf("verify journal: seq %d: %w", r.Seq, err)
			}
			if signer != node {
				return checked, fmt.Errorf("verify journal: seq %d signed by %s, want %s", r.Seq, signer.Hex(), node.Hex())
			}
			after = r.Seq
			checked++
		}
	}
}
