package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/alanyoungcy/tiqet/internal/domain"
)

// Reader implements domain.ArchiveReader over the client's archive prefix.
type Reader struct {
	c *Client
}

// NewReader creates a Reader for the client's archive.
func NewReader(c *Client) *Reader {
	return &Reader{c: c}
}

// HasDay reports whether day has been archived, using HeadObject.
func (r *Reader) HasDay(ctx context.Context, day time.Time) (bool, error) {
	key := r.c.DayKey(day)
	_, err := r.c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(r.c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("s3blob: head %s: %w", key, err)
	}
	return true, nil
}

// ReadDay decodes the archived receipts of day. A missing day is
// domain.ErrNotFound.
func (r *Reader) ReadDay(ctx context.Context, day time.Time) ([]domain.Receipt, error) {
	key := r.c.DayKey(day)
	out, err := r.c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("s3blob: get %s: %w", key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("s3blob: get %s: %w", key, err)
	}
	defer out.Body.Close()

	receipts, err := decodeDay(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3blob: %s: %w", key, err)
	}
	return receipts, nil
}

// VerifyDay reads day back and compares it with want.
func (r *Reader) VerifyDay(ctx context.Context, day time.Time, want []domain.Receipt) error {
	got, err := r.ReadDay(ctx, day)
	if err != nil {
		return err
	}
	if err := checkDay(got, want); err != nil {
		return fmt.Errorf("s3blob: verify %s: %w", r.c.DayKey(day), err)
	}
	return nil
}

// Days lists the archived days, oldest first. Keys under the prefix that
// are not day objects are ignored.
func (r *Reader) Days(ctx context.Context) ([]time.Time, error) {
	var days []time.Time

	paginator := s3.NewListObjectsV2Paginator(r.c.s3, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.c.bucket),
		Prefix: aws.String(r.c.prefix + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("s3blob: list %s: %w", r.c.prefix, err)
		}
		for _, obj := range page.Contents {
			if d, ok := r.c.dayOf(aws.ToString(obj.Key)); ok {
				days = append(days, d)
			}
		}
	}
	return days, nil
}

// decodeDay reads one JSONL day object. Blank lines are skipped.
func decodeDay(body io.Reader) ([]domain.Receipt, error) {
	var out []domain.Receipt
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var r domain.Receipt
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("decode line %d: %w", line, err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return out, nil
}

// checkDay requires got to hold the same receipts as want, in order, by
// sequence number and transaction id.
func checkDay(got, want []domain.Receipt) error {
	if len(got) != len(want) {
		return fmt.Errorf("read back %d receipts, wrote %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Seq != want[i].Seq || got[i].TxID != want[i].TxID {
			return fmt.Errorf("receipt %d is seq %d tx %s, wrote seq %d tx %s",
				i, got[i].Seq, got[i].TxID, want[i].Seq, want[i].TxID)
		}
	}
	return nil
}

// isNotFound matches NoSuchKey, NotFound and bare 404 responses.
func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	// HeadObject reports a missing key as NotFound, not NoSuchKey.
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	// Some compatible providers only return the status.
	type httpResponseError interface {
		HTTPStatusCode() int
	}
	var httpErr httpResponseError
	if errors.As(err, &httpErr) && httpErr.HTTPStatusCode() == 404 {
		return true
	}

	return false
}

var _ domain.ArchiveReader = (*Reader)(nil)
