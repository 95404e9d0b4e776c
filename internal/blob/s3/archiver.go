package s3blob

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

const defaultBatch = 1000

// JournalReader is the slice of domain.Journal the archiver reads.
type JournalReader interface {
	ListBefore(ctx context.Context, before time.Time, afterSeq int64, limit int) ([]domain.Receipt, error)
}

// ArchiverConfig tunes an Archiver.
type ArchiverConfig struct {
	// BatchSize is how many receipts are read from the journal per query.
	BatchSize int
}

// Archiver implements domain.Archiver. Receipts are grouped by UTC day
// and each day is written once, then read back and checked. Days already
// archived are skipped, so reruns are safe. The journal itself is never
// pruned here.
type Archiver struct {
	journal JournalReader
	writer  domain.ArchiveWriter
	reader  domain.ArchiveReader
	audit   domain.AuditStore
	cfg     ArchiverConfig
	logger  *slog.Logger
}

// NewArchiver creates an Archiver. audit may be nil.
func NewArchiver(journal JournalReader, writer domain.ArchiveWriter, reader domain.ArchiveReader,
	audit domain.AuditStore, cfg ArchiverConfig, logger *slog.Logger) *Archiver {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatch
	}
	return &Archiver{
		journal: journal,
		writer:  writer,
		reader:  reader,
		audit:   audit,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveJournal uploads the receipts of every whole UTC day before the
// cutoff. The cutoff is rounded down to midnight so no day is split.
func (a *Archiver) ArchiveJournal(ctx context.Context, before time.Time) (int64, error) {
	cutoff := before.UTC().Truncate(24 * time.Hour)

	var (
		total   int64
		afterSq int64
		day     time.Time
		pending []domain.Receipt
	)
	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		n, err := a.writeDay(ctx, day, pending)
		total += n
		pending = nil
		return err
	}

	for {
		page, err := a.journal.ListBefore(ctx, cutoff, afterSq, a.cfg.BatchSize)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive journal query: %w", err)
		}
		if len(page) == 0 {
			break
		}
		for _, r := range page {
			d := r.Time.UTC().Truncate(24 * time.Hour)
			if !d.Equal(day) {
				if err := flush(); err != nil {
					return total, err
				}
				day = d
			}
			pending = append(pending, r)
			afterSq = r.Seq
		}
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// writeDay uploads one day unless it is already archived, then verifies
// the stored copy.
func (a *Archiver) writeDay(ctx context.Context, day time.Time, receipts []domain.Receipt) (int64, error) {
	date := day.Format(dayLayout)
	exists, err := a.reader.HasDay(ctx, day)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", date, err)
	}
	if exists {
		a.logger.DebugContext(ctx, "day already archived", slog.String("day", date))
		return 0, nil
	}

	if err := a.writer.PutDay(ctx, day, receipts); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", date, err)
	}
	if err := a.reader.VerifyDay(ctx, day, receipts); err != nil {
		return 0, fmt.Errorf("s3blob: archive %s: %w", date, err)
	}

	count := int64(len(receipts))
	first, last := receipts[0].Seq, receipts[len(receipts)-1].Seq
	a.logger.InfoContext(ctx, "archived journal day",
		slog.String("day", date),
		slog.Int64("count", count),
		slog.Int64("first_seq", first),
		slog.Int64("last_seq", last),
	)
	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.journal", map[string]any{
			"day":       date,
			"count":     count,
			"first_seq": first,
			"last_seq":  last,
		}); err != nil {
			return count, fmt.Errorf("s3blob: archive %s audit log: %w", date, err)
		}
	}
	return count, nil
}

var _ domain.Archiver = (*Archiver)(nil)
