package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/alanyoungcy/tiqet/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	ndjson = "application/x-ndjson"
	// minPartSize is the minimum allowed part size for S3 multipart uploads (5 MiB).
	minPartSize int64 = 5 * 1024 * 1024
)

// Writer implements domain.ArchiveWriter over the client's archive prefix.
type Writer struct {
	c *Client
}

// NewWriter creates a Writer for the client's archive.
func NewWriter(c *Client) *Writer {
	return &Writer{c: c}
}

// PutDay uploads receipts as the JSONL object of day. Objects above one
// part are sent as a concurrent multipart upload. The count and sequence
// range ride along as object metadata.
func (w *Writer) PutDay(ctx context.Context, day time.Time, receipts []domain.Receipt) error {
	if len(receipts) == 0 {
		return nil
	}
	key := w.c.DayKey(day)
	buf, err := marshalJSONL(receipts)
	if err != nil {
		return fmt.Errorf("s3blob: marshal %s: %w", key, err)
	}

	in := &s3.PutObjectInput{
		Bucket:      aws.String(w.c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf),
		ContentType: aws.String(ndjson),
		Metadata:    dayMetadata(receipts),
	}
	if int64(len(buf)) > minPartSize {
		uploader := manager.NewUploader(w.c.s3, func(u *manager.Uploader) {
			u.PartSize = minPartSize
		})
		if _, err := uploader.Upload(ctx, in); err != nil {
			return fmt.Errorf("s3blob: multipart upload %s: %w", key, err)
		}
		return nil
	}
	if _, err := w.c.s3.PutObject(ctx, in); err != nil {
		return fmt.Errorf("s3blob: put %s: %w", key, err)
	}
	return nil
}

func dayMetadata(receipts []domain.Receipt) map[string]string {
	return map[string]string{
		"count":     strconv.Itoa(len(receipts)),
		"first-seq": strconv.FormatInt(receipts[0].Seq, 10),
		"last-seq":  strconv.FormatInt(receipts[len(receipts)-1].Seq, 10),
	}
}

// marshalJSONL encodes each item as one line of JSON.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.ArchiveWriter = (*Writer)(nil)
