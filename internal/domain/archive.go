package domain

import (
	"context"
	"time"
)

// ArchiveWriter stores the receipts of one UTC day as a single object.
type ArchiveWriter interface {
	PutDay(ctx context.Context, day time.Time, receipts []Receipt) error
}

// ArchiveReader reads archived journal days back.
type ArchiveReader interface {
	HasDay(ctx context.Context, day time.Time) (bool, error)
	ReadDay(ctx context.Context, day time.Time) ([]Receipt, error)
	// VerifyDay reads a day back and checks it holds exactly want.
	VerifyDay(ctx context.Context, day time.Time, want []Receipt) error
	// Days lists the archived days, oldest first.
	Days(ctx context.Context) ([]time.Time, error)
}

// Archiver copies journaled receipts to cold storage.
type Archiver interface {
	// ArchiveJournal uploads every whole UTC day of receipts older than
	// before and returns how many receipts were written.
	ArchiveJournal(ctx context.Context, before time.Time) (int64, error)
}
